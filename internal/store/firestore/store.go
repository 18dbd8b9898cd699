// Package firestore stores goals, badge collections and quest completions
// in a hosted Cloud Firestore project.
//
// Each goal and badge document keeps its canonical JSON in a "doc" field
// next to the revision, so both backends compute identical revisions.
// Set FIRESTORE_EMULATOR_HOST to run against the local emulator.
package firestore

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"cloud.google.com/go/firestore"
	firebase "firebase.google.com/go/v4"
	"google.golang.org/api/option"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/roach88/questcore/internal/store"
)

// Collection names.
const (
	GoalsCollection       = "goals"
	UserBadgesCollection  = "userBadges"
	CompletionsCollection = "questCompletions"
)

// Config selects the Firebase project.
type Config struct {
	ProjectID string

	// CredentialsFile is a service account key. Empty uses application
	// default credentials, or none when talking to the emulator.
	CredentialsFile string
}

// Store is the Firestore-backed store.Repository.
type Store struct {
	client *firestore.Client
	logger *slog.Logger
	now    func() time.Time
}

var _ store.Repository = (*Store)(nil)

// Option configures a Store.
type Option func(*Store)

// WithLogger sets the logger. Default: slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(s *Store) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithClock sets the clock used for updatedAt. Default: time.Now.
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		if now != nil {
			s.now = now
		}
	}
}

// Open initializes a Firebase app and its Firestore client.
func Open(ctx context.Context, cfg Config, opts ...Option) (*Store, error) {
	if cfg.ProjectID == "" {
		return nil, fmt.Errorf("firestore: project id is required")
	}

	var clientOpts []option.ClientOption
	if cfg.CredentialsFile != "" {
		clientOpts = append(clientOpts, option.WithCredentialsFile(cfg.CredentialsFile))
	}

	app, err := firebase.NewApp(ctx, &firebase.Config{ProjectID: cfg.ProjectID}, clientOpts...)
	if err != nil {
		return nil, fmt.Errorf("error initializing firebase app: %w", err)
	}

	client, err := app.Firestore(ctx)
	if err != nil {
		return nil, fmt.Errorf("error getting firestore client: %w", err)
	}

	s := &Store{client: client, logger: slog.Default(), now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	s.logger.Debug("firestore store opened", "project", cfg.ProjectID)
	return s, nil
}

// Close releases the client.
func (s *Store) Close() error {
	return s.client.Close()
}

func isNotFound(err error) bool {
	return status.Code(err) == codes.NotFound
}

func isAlreadyExists(err error) bool {
	return status.Code(err) == codes.AlreadyExists
}

// docFields is the stored shape of goal and badge documents.
type docFields struct {
	Doc       string    `firestore:"doc"`
	Revision  string    `firestore:"revision"`
	UpdatedAt time.Time `firestore:"updatedAt"`
}
