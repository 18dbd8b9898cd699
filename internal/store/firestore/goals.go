package firestore

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"cloud.google.com/go/firestore"
	"google.golang.org/api/iterator"

	"github.com/roach88/questcore/internal/goal"
	"github.com/roach88/questcore/internal/store"
)

// goalFields adds the queryable columns to docFields.
type goalFields struct {
	docFields
	Type         string   `firestore:"type"`
	Status       string   `firestore:"status"`
	FamilyID     string   `firestore:"familyId"`
	Participants []string `firestore:"participants"`
}

func (s *Store) goalFields(doc goal.Document) (goalFields, string, error) {
	data, rev, err := store.EncodeGoal(doc)
	if err != nil {
		return goalFields{}, "", err
	}
	return goalFields{
		docFields:    docFields{Doc: string(data), Revision: rev, UpdatedAt: s.now().UTC()},
		Type:         string(doc.Type),
		Status:       string(doc.Status),
		FamilyID:     doc.FamilyID,
		Participants: doc.Participants,
	}, rev, nil
}

func (s *Store) goalRef(id string) *firestore.DocumentRef {
	return s.client.Collection(GoalsCollection).Doc(id)
}

// CreateGoal inserts doc. Returns store.ErrConflict if the id is taken.
func (s *Store) CreateGoal(ctx context.Context, doc goal.Document) (string, error) {
	fields, rev, err := s.goalFields(doc)
	if err != nil {
		return "", fmt.Errorf("create goal: %w", err)
	}

	if _, err := s.goalRef(doc.ID).Create(ctx, fields); err != nil {
		if isAlreadyExists(err) {
			return "", fmt.Errorf("create goal %s: %w", doc.ID, store.ErrConflict)
		}
		return "", fmt.Errorf("create goal %s: %w", doc.ID, err)
	}

	s.logger.Debug("goal created", "goal_id", doc.ID, "revision", rev)
	return rev, nil
}

// SaveGoal replaces the goal inside a transaction when its stored revision
// equals expected.
func (s *Store) SaveGoal(ctx context.Context, doc goal.Document, expected string) (string, error) {
	fields, rev, err := s.goalFields(doc)
	if err != nil {
		return "", fmt.Errorf("save goal: %w", err)
	}

	ref := s.goalRef(doc.ID)
	err = s.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		snap, err := tx.Get(ref)
		if err != nil {
			if isNotFound(err) {
				return store.ErrNotFound
			}
			return err
		}
		var current docFields
		if err := snap.DataTo(&current); err != nil {
			return err
		}
		if current.Revision != expected {
			return store.ErrConflict
		}
		return tx.Set(ref, fields)
	})
	if err != nil {
		return "", fmt.Errorf("save goal %s: %w", doc.ID, err)
	}

	s.logger.Debug("goal saved", "goal_id", doc.ID, "status", doc.Status, "revision", rev)
	return rev, nil
}

// LoadGoal returns the goal with id, or store.ErrNotFound.
func (s *Store) LoadGoal(ctx context.Context, id string) (store.GoalRecord, error) {
	snap, err := s.goalRef(id).Get(ctx)
	if err != nil {
		if isNotFound(err) {
			return store.GoalRecord{}, fmt.Errorf("load goal %s: %w", id, store.ErrNotFound)
		}
		return store.GoalRecord{}, fmt.Errorf("load goal %s: %w", id, err)
	}
	rec, err := decodeGoalSnapshot(snap)
	if err != nil {
		return store.GoalRecord{}, fmt.Errorf("load goal %s: %w", id, err)
	}
	return rec, nil
}

func decodeGoalSnapshot(snap *firestore.DocumentSnapshot) (store.GoalRecord, error) {
	var f docFields
	if err := snap.DataTo(&f); err != nil {
		return store.GoalRecord{}, err
	}
	doc, err := store.DecodeGoal([]byte(f.Doc))
	if err != nil {
		return store.GoalRecord{}, err
	}
	return store.GoalRecord{Doc: doc, Revision: f.Revision}, nil
}

func (s *Store) goalsWith(ctx context.Context, participantID string, st goal.Status) ([]store.GoalRecord, error) {
	iter := s.client.Collection(GoalsCollection).
		Where("participants", "array-contains", participantID).
		Where("status", "==", string(st)).
		Documents(ctx)
	defer iter.Stop()

	var out []store.GoalRecord
	for {
		snap, err := iter.Next()
		if errors.Is(err, iterator.Done) {
			break
		}
		if err != nil {
			return nil, err
		}
		rec, err := decodeGoalSnapshot(snap)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Doc.ID < out[j].Doc.ID })
	return out, nil
}

// ActiveGoalsFor returns active goals that include participantID, ordered
// by id.
func (s *Store) ActiveGoalsFor(ctx context.Context, participantID string) ([]store.GoalRecord, error) {
	recs, err := s.goalsWith(ctx, participantID, goal.StatusActive)
	if err != nil {
		return nil, fmt.Errorf("active goals for %s: %w", participantID, err)
	}
	return recs, nil
}

// CountCompletedGoals counts completed goals that include participantID.
func (s *Store) CountCompletedGoals(ctx context.Context, participantID string) (int, error) {
	recs, err := s.goalsWith(ctx, participantID, goal.StatusCompleted)
	if err != nil {
		return 0, fmt.Errorf("count completed goals for %s: %w", participantID, err)
	}
	return len(recs), nil
}
