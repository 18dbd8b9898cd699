package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/roach88/questcore/internal/goal"
	"github.com/roach88/questcore/internal/store"
)

var _ store.Repository = (*Store)(nil)

// CreateGoal inserts doc. Returns store.ErrConflict if the id is taken.
func (s *Store) CreateGoal(ctx context.Context, doc goal.Document) (string, error) {
	data, rev, err := store.EncodeGoal(doc)
	if err != nil {
		return "", fmt.Errorf("create goal: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return "", fmt.Errorf("create goal: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, `
		INSERT INTO goals (id, type, status, family_id, doc, revision, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO NOTHING
	`, doc.ID, string(doc.Type), string(doc.Status), doc.FamilyID, string(data), rev, s.timestamp())
	if err != nil {
		return "", fmt.Errorf("create goal: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return "", fmt.Errorf("create goal %s: %w", doc.ID, store.ErrConflict)
	}

	if err := writeParticipants(ctx, tx, doc); err != nil {
		return "", fmt.Errorf("create goal: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return "", fmt.Errorf("create goal: %w", err)
	}

	s.logger.Debug("goal created", "goal_id", doc.ID, "revision", rev)
	return rev, nil
}

// SaveGoal replaces the goal when its stored revision equals expected.
// Returns store.ErrNotFound for unknown ids and store.ErrConflict when the
// revision moved on.
func (s *Store) SaveGoal(ctx context.Context, doc goal.Document, expected string) (string, error) {
	data, rev, err := store.EncodeGoal(doc)
	if err != nil {
		return "", fmt.Errorf("save goal: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return "", fmt.Errorf("save goal: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, `
		UPDATE goals
		SET type = ?, status = ?, family_id = ?, doc = ?, revision = ?, updated_at = ?
		WHERE id = ? AND revision = ?
	`, string(doc.Type), string(doc.Status), doc.FamilyID, string(data), rev, s.timestamp(), doc.ID, expected)
	if err != nil {
		return "", fmt.Errorf("save goal: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		var exists int
		err := tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM goals WHERE id = ?`, doc.ID).Scan(&exists)
		if err != nil {
			return "", fmt.Errorf("save goal: %w", err)
		}
		if exists == 0 {
			return "", fmt.Errorf("save goal %s: %w", doc.ID, store.ErrNotFound)
		}
		return "", fmt.Errorf("save goal %s: %w", doc.ID, store.ErrConflict)
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM goal_participants WHERE goal_id = ?`, doc.ID); err != nil {
		return "", fmt.Errorf("save goal: %w", err)
	}
	if err := writeParticipants(ctx, tx, doc); err != nil {
		return "", fmt.Errorf("save goal: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return "", fmt.Errorf("save goal: %w", err)
	}

	s.logger.Debug("goal saved", "goal_id", doc.ID, "status", doc.Status, "revision", rev)
	return rev, nil
}

func writeParticipants(ctx context.Context, tx *sql.Tx, doc goal.Document) error {
	for _, p := range doc.Participants {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO goal_participants (goal_id, participant_id)
			VALUES (?, ?)
			ON CONFLICT DO NOTHING
		`, doc.ID, p)
		if err != nil {
			return fmt.Errorf("write participant %s: %w", p, err)
		}
	}
	return nil
}

// LoadGoal returns the goal with id, or store.ErrNotFound.
func (s *Store) LoadGoal(ctx context.Context, id string) (store.GoalRecord, error) {
	var data, rev string
	err := s.db.QueryRowContext(ctx, `SELECT doc, revision FROM goals WHERE id = ?`, id).Scan(&data, &rev)
	if errors.Is(err, sql.ErrNoRows) {
		return store.GoalRecord{}, fmt.Errorf("load goal %s: %w", id, store.ErrNotFound)
	}
	if err != nil {
		return store.GoalRecord{}, fmt.Errorf("load goal %s: %w", id, err)
	}

	doc, err := store.DecodeGoal([]byte(data))
	if err != nil {
		return store.GoalRecord{}, fmt.Errorf("load goal %s: %w", id, err)
	}
	return store.GoalRecord{Doc: doc, Revision: rev}, nil
}

// ActiveGoalsFor returns active goals that include participantID, ordered
// by id.
func (s *Store) ActiveGoalsFor(ctx context.Context, participantID string) ([]store.GoalRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT g.doc, g.revision
		FROM goals g
		JOIN goal_participants p ON p.goal_id = g.id
		WHERE p.participant_id = ? AND g.status = ?
		ORDER BY g.id COLLATE BINARY ASC
	`, participantID, string(goal.StatusActive))
	if err != nil {
		return nil, fmt.Errorf("active goals for %s: %w", participantID, err)
	}
	defer rows.Close()

	var out []store.GoalRecord
	for rows.Next() {
		var data, rev string
		if err := rows.Scan(&data, &rev); err != nil {
			return nil, fmt.Errorf("active goals for %s: %w", participantID, err)
		}
		doc, err := store.DecodeGoal([]byte(data))
		if err != nil {
			return nil, fmt.Errorf("active goals for %s: %w", participantID, err)
		}
		out = append(out, store.GoalRecord{Doc: doc, Revision: rev})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("active goals for %s: %w", participantID, err)
	}
	return out, nil
}

// CountCompletedGoals counts completed goals that include participantID.
func (s *Store) CountCompletedGoals(ctx context.Context, participantID string) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*)
		FROM goals g
		JOIN goal_participants p ON p.goal_id = g.id
		WHERE p.participant_id = ? AND g.status = ?
	`, participantID, string(goal.StatusCompleted)).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count completed goals for %s: %w", participantID, err)
	}
	return n, nil
}
