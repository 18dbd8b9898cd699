package sqlite

import (
	"context"
	"fmt"
	"time"

	"github.com/roach88/questcore/internal/stats"
)

// AppendCompletion stores c. A completion whose id already exists is
// ignored and reported as not inserted.
func (s *Store) AppendCompletion(ctx context.Context, c stats.Completion) (bool, error) {
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO quest_completions (id, user_id, quest_id, xp, difficulty, completed_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO NOTHING
	`, c.ID, c.UserID, c.QuestID, c.XP, c.Difficulty, c.CompletedAt.UTC().Format(timeLayout))
	if err != nil {
		return false, fmt.Errorf("append completion: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("append completion: %w", err)
	}
	return n > 0, nil
}

// Completions returns userID's completions ordered by completed_at, then id.
func (s *Store) Completions(ctx context.Context, userID string) ([]stats.Completion, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, user_id, quest_id, xp, difficulty, completed_at
		FROM quest_completions
		WHERE user_id = ?
		ORDER BY completed_at ASC, id COLLATE BINARY ASC
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("completions for %s: %w", userID, err)
	}
	defer rows.Close()

	var out []stats.Completion
	for rows.Next() {
		var c stats.Completion
		var at string
		if err := rows.Scan(&c.ID, &c.UserID, &c.QuestID, &c.XP, &c.Difficulty, &at); err != nil {
			return nil, fmt.Errorf("completions for %s: %w", userID, err)
		}
		c.CompletedAt, err = time.Parse(time.RFC3339Nano, at)
		if err != nil {
			return nil, fmt.Errorf("completions for %s: parse time: %w", userID, err)
		}
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("completions for %s: %w", userID, err)
	}
	return out, nil
}
