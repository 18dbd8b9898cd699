package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/roach88/questcore/internal/badge"
	"github.com/roach88/questcore/internal/canonical"
	"github.com/roach88/questcore/internal/goal"
	"github.com/roach88/questcore/internal/stats"
)

var (
	// ErrNotFound is returned when a document does not exist.
	ErrNotFound = errors.New("not found")

	// ErrConflict is returned when the stored revision differs from the
	// one the writer expected, or a create hits an existing document.
	ErrConflict = errors.New("revision conflict")
)

// GoalRecord is a stored goal with its current revision.
type GoalRecord struct {
	Doc      goal.Document
	Revision string
}

// BadgeRecord is a user's stored badge collection with its revision.
type BadgeRecord struct {
	UserID   string
	Records  []badge.Record
	Revision string
}

// Repository is implemented by every backing store.
type Repository interface {
	// CreateGoal inserts a new goal. ErrConflict if the id exists.
	CreateGoal(ctx context.Context, doc goal.Document) (string, error)

	// SaveGoal replaces a goal when its revision equals expected.
	SaveGoal(ctx context.Context, doc goal.Document, expected string) (string, error)

	// LoadGoal returns ErrNotFound for unknown ids.
	LoadGoal(ctx context.Context, id string) (GoalRecord, error)

	// ActiveGoalsFor lists active goals participantID takes part in,
	// ordered by id.
	ActiveGoalsFor(ctx context.Context, participantID string) ([]GoalRecord, error)

	// CountCompletedGoals counts completed goals participantID took part in.
	CountCompletedGoals(ctx context.Context, participantID string) (int, error)

	// LoadBadges returns ErrNotFound when the user has no collection yet.
	LoadBadges(ctx context.Context, userID string) (BadgeRecord, error)

	// SaveBadges writes a collection when its revision equals expected.
	SaveBadges(ctx context.Context, userID string, records []badge.Record, expected string) (string, error)

	// AppendCompletion stores a quest completion. Duplicate ids are
	// ignored; the result reports whether the row was new.
	AppendCompletion(ctx context.Context, c stats.Completion) (bool, error)

	// Completions returns a user's completions ordered by time, then id.
	Completions(ctx context.Context, userID string) ([]stats.Completion, error)

	Close() error
}

// EncodeGoal returns the canonical bytes and revision of doc.
func EncodeGoal(doc goal.Document) ([]byte, string, error) {
	return canonical.Encode(canonical.DomainGoal, doc)
}

// DecodeGoal parses a stored goal document.
func DecodeGoal(data []byte) (goal.Document, error) {
	var doc goal.Document
	if err := json.Unmarshal(data, &doc); err != nil {
		return goal.Document{}, fmt.Errorf("decode goal: %w", err)
	}
	return doc, nil
}

// EncodeBadges returns the canonical bytes and revision of a collection.
func EncodeBadges(records []badge.Record) ([]byte, string, error) {
	return canonical.Encode(canonical.DomainUserBadges, badge.ToPersistable(records))
}

// DecodeBadges parses a stored badge collection.
func DecodeBadges(data []byte) ([]badge.Record, error) {
	var doc badge.Document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("decode badges: %w", err)
	}
	return badge.FromPersisted(doc), nil
}

// RevisionOf recomputes the revision of stored canonical bytes.
func RevisionOf(domain string, data []byte) string {
	return canonical.Revision(domain, data)
}
