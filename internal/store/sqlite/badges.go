package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/roach88/questcore/internal/badge"
	"github.com/roach88/questcore/internal/store"
)

// LoadBadges returns the user's collection, or store.ErrNotFound.
func (s *Store) LoadBadges(ctx context.Context, userID string) (store.BadgeRecord, error) {
	var data, rev string
	err := s.db.QueryRowContext(ctx,
		`SELECT doc, revision FROM user_badges WHERE user_id = ?`, userID).Scan(&data, &rev)
	if errors.Is(err, sql.ErrNoRows) {
		return store.BadgeRecord{}, fmt.Errorf("load badges %s: %w", userID, store.ErrNotFound)
	}
	if err != nil {
		return store.BadgeRecord{}, fmt.Errorf("load badges %s: %w", userID, err)
	}

	records, err := store.DecodeBadges([]byte(data))
	if err != nil {
		return store.BadgeRecord{}, fmt.Errorf("load badges %s: %w", userID, err)
	}
	return store.BadgeRecord{UserID: userID, Records: records, Revision: rev}, nil
}

// SaveBadges writes the collection. An empty expected revision creates it
// and fails with store.ErrConflict if one already exists.
func (s *Store) SaveBadges(ctx context.Context, userID string, records []badge.Record, expected string) (string, error) {
	data, rev, err := store.EncodeBadges(records)
	if err != nil {
		return "", fmt.Errorf("save badges: %w", err)
	}

	var res sql.Result
	if expected == "" {
		res, err = s.db.ExecContext(ctx, `
			INSERT INTO user_badges (user_id, doc, revision, updated_at)
			VALUES (?, ?, ?, ?)
			ON CONFLICT(user_id) DO NOTHING
		`, userID, string(data), rev, s.timestamp())
	} else {
		res, err = s.db.ExecContext(ctx, `
			UPDATE user_badges SET doc = ?, revision = ?, updated_at = ?
			WHERE user_id = ? AND revision = ?
		`, string(data), rev, s.timestamp(), userID, expected)
	}
	if err != nil {
		return "", fmt.Errorf("save badges %s: %w", userID, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return "", fmt.Errorf("save badges %s: %w", userID, store.ErrConflict)
	}

	s.logger.Debug("badges saved", "user_id", userID, "unlocked", badge.CountUnlocked(records), "revision", rev)
	return rev, nil
}
