package firestore

import (
	"context"
	"fmt"

	"cloud.google.com/go/firestore"

	"github.com/roach88/questcore/internal/badge"
	"github.com/roach88/questcore/internal/store"
)

// LoadBadges returns the user's collection, or store.ErrNotFound.
func (s *Store) LoadBadges(ctx context.Context, userID string) (store.BadgeRecord, error) {
	snap, err := s.client.Collection(UserBadgesCollection).Doc(userID).Get(ctx)
	if err != nil {
		if isNotFound(err) {
			return store.BadgeRecord{}, fmt.Errorf("load badges %s: %w", userID, store.ErrNotFound)
		}
		return store.BadgeRecord{}, fmt.Errorf("load badges %s: %w", userID, err)
	}

	var f docFields
	if err := snap.DataTo(&f); err != nil {
		return store.BadgeRecord{}, fmt.Errorf("load badges %s: %w", userID, err)
	}
	records, err := store.DecodeBadges([]byte(f.Doc))
	if err != nil {
		return store.BadgeRecord{}, fmt.Errorf("load badges %s: %w", userID, err)
	}
	return store.BadgeRecord{UserID: userID, Records: records, Revision: f.Revision}, nil
}

// SaveBadges writes the collection. An empty expected revision creates it.
func (s *Store) SaveBadges(ctx context.Context, userID string, records []badge.Record, expected string) (string, error) {
	data, rev, err := store.EncodeBadges(records)
	if err != nil {
		return "", fmt.Errorf("save badges: %w", err)
	}
	fields := docFields{Doc: string(data), Revision: rev, UpdatedAt: s.now().UTC()}

	ref := s.client.Collection(UserBadgesCollection).Doc(userID)
	err = s.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		snap, err := tx.Get(ref)
		switch {
		case isNotFound(err):
			if expected != "" {
				return store.ErrConflict
			}
			return tx.Create(ref, fields)
		case err != nil:
			return err
		}

		var current docFields
		if err := snap.DataTo(&current); err != nil {
			return err
		}
		if expected == "" || current.Revision != expected {
			return store.ErrConflict
		}
		return tx.Set(ref, fields)
	})
	if err != nil {
		return "", fmt.Errorf("save badges %s: %w", userID, err)
	}

	s.logger.Debug("badges saved", "user_id", userID, "unlocked", badge.CountUnlocked(records), "revision", rev)
	return rev, nil
}
