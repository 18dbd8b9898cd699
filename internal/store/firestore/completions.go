package firestore

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"google.golang.org/api/iterator"

	"github.com/roach88/questcore/internal/stats"
)

type completionFields struct {
	UserID      string    `firestore:"userId"`
	QuestID     string    `firestore:"questId"`
	XP          int       `firestore:"xp"`
	Difficulty  string    `firestore:"difficulty"`
	CompletedAt time.Time `firestore:"completedAt"`
}

// AppendCompletion stores c under its id. An existing id is ignored and
// reported as not inserted.
func (s *Store) AppendCompletion(ctx context.Context, c stats.Completion) (bool, error) {
	_, err := s.client.Collection(CompletionsCollection).Doc(c.ID).Create(ctx, completionFields{
		UserID:      c.UserID,
		QuestID:     c.QuestID,
		XP:          c.XP,
		Difficulty:  c.Difficulty,
		CompletedAt: c.CompletedAt.UTC(),
	})
	if err != nil {
		if isAlreadyExists(err) {
			return false, nil
		}
		return false, fmt.Errorf("append completion: %w", err)
	}
	return true, nil
}

// Completions returns userID's completions ordered by time, then id.
func (s *Store) Completions(ctx context.Context, userID string) ([]stats.Completion, error) {
	iter := s.client.Collection(CompletionsCollection).Where("userId", "==", userID).Documents(ctx)
	defer iter.Stop()

	var out []stats.Completion
	for {
		snap, err := iter.Next()
		if errors.Is(err, iterator.Done) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("completions for %s: %w", userID, err)
		}
		var f completionFields
		if err := snap.DataTo(&f); err != nil {
			return nil, fmt.Errorf("completions for %s: %w", userID, err)
		}
		out = append(out, stats.Completion{
			ID:          snap.Ref.ID,
			UserID:      f.UserID,
			QuestID:     f.QuestID,
			XP:          f.XP,
			Difficulty:  f.Difficulty,
			CompletedAt: f.CompletedAt,
		})
	}

	// Sorted here rather than with OrderBy to avoid a composite index.
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CompletedAt.Equal(out[j].CompletedAt) {
			return out[i].CompletedAt.Before(out[j].CompletedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}
