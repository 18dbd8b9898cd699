// Package app executes the side effects the goal and badge engines ask for.
//
// The engines only compute new state. Service loads documents from a
// store.Repository, runs the engines, and writes the results back with a
// compare-and-swap on the document revision. A write that loses the race
// reloads and reapplies, up to MaxAttempts times.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/roach88/questcore/internal/badge"
	"github.com/roach88/questcore/internal/goal"
	"github.com/roach88/questcore/internal/ids"
	"github.com/roach88/questcore/internal/metrics"
	"github.com/roach88/questcore/internal/store"
)

// MaxAttempts bounds the load-apply-save loop on revision conflicts.
const MaxAttempts = 3

// Service coordinates engines and persistence.
type Service struct {
	repo    store.Repository
	badges  *badge.Engine
	metrics *metrics.Recorder
	logger  *slog.Logger
	now     func() time.Time
	idGen   ids.Generator
	loc     *time.Location
}

// Option configures a Service.
type Option func(*Service)

// WithLogger sets the logger. Default: slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithClock sets the time source. Default: time.Now.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

// WithIDGenerator sets the goal id source. Default: UUIDv7.
func WithIDGenerator(gen ids.Generator) Option {
	return func(s *Service) {
		if gen != nil {
			s.idGen = gen
		}
	}
}

// WithLocation sets the time zone for stats snapshots. Default: UTC.
func WithLocation(loc *time.Location) Option {
	return func(s *Service) {
		if loc != nil {
			s.loc = loc
		}
	}
}

// WithMetrics sets the metrics recorder. Default: none.
func WithMetrics(r *metrics.Recorder) Option {
	return func(s *Service) { s.metrics = r }
}

// WithCatalog evaluates badges against catalog instead of the default.
func WithCatalog(catalog *badge.Catalog) Option {
	return func(s *Service) {
		if catalog != nil {
			s.badges = badge.NewEngine(catalog, badge.WithClock(s.nowFunc))
		}
	}
}

// New creates a Service over repo.
func New(repo store.Repository, opts ...Option) *Service {
	s := &Service{
		repo:   repo,
		logger: slog.Default(),
		now:    time.Now,
		idGen:  ids.UUIDv7Generator{},
		loc:    time.UTC,
	}
	s.badges = badge.NewEngine(nil, badge.WithClock(s.nowFunc))
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// nowFunc defers to s.now so options applied later still take effect.
func (s *Service) nowFunc() time.Time {
	return s.now()
}

// BadgeEngine returns the engine used for unlock evaluation.
func (s *Service) BadgeEngine() *badge.Engine {
	return s.badges
}

func (s *Service) goalOptions() []goal.Option {
	return []goal.Option{goal.WithClock(s.nowFunc), goal.WithIDGenerator(s.idGen)}
}

// CreateGoal validates p and stores a new draft. A failed validation is
// returned in the Validation with a nil goal and nil error.
func (s *Service) CreateGoal(ctx context.Context, p goal.Params) (*goal.Goal, goal.Validation, error) {
	g, v := goal.New(p, s.goalOptions()...)
	if !v.IsValid {
		return nil, v, nil
	}
	if err := s.insertGoal(ctx, g); err != nil {
		return nil, v, err
	}
	s.logger.Info("goal created", "goal_id", g.ID, "type", g.Type, "participants", len(g.Participants))
	return g, v, nil
}

func (s *Service) insertGoal(ctx context.Context, g *goal.Goal) error {
	doc, err := g.ToPersistable()
	if err != nil {
		return fmt.Errorf("create goal: %w", err)
	}
	if _, err := s.repo.CreateGoal(ctx, doc); err != nil {
		return fmt.Errorf("create goal: %w", err)
	}
	s.metrics.GoalTransition(g.Type, g.Status)
	return nil
}

// LoadGoal returns the stored goal with id.
func (s *Service) LoadGoal(ctx context.Context, id string) (*goal.Goal, error) {
	rec, err := s.repo.LoadGoal(ctx, id)
	if err != nil {
		return nil, err
	}
	g, err := goal.FromPersisted(rec.Doc, s.goalOptions()...)
	if err != nil {
		return nil, fmt.Errorf("load goal: %w", err)
	}
	return g, nil
}

// mutateGoal loads id, applies fn and saves when fn reports a change.
// fn runs again on a fresh copy after a revision conflict.
func (s *Service) mutateGoal(ctx context.Context, id string, fn func(*goal.Goal) (bool, error)) (*goal.Goal, error) {
	for attempt := 1; ; attempt++ {
		rec, err := s.repo.LoadGoal(ctx, id)
		if err != nil {
			return nil, err
		}
		g, err := goal.FromPersisted(rec.Doc, s.goalOptions()...)
		if err != nil {
			return nil, fmt.Errorf("load goal: %w", err)
		}

		changed, err := fn(g)
		if err != nil {
			return nil, err
		}
		if !changed {
			return g, nil
		}

		doc, err := g.ToPersistable()
		if err != nil {
			return nil, fmt.Errorf("save goal: %w", err)
		}
		_, err = s.repo.SaveGoal(ctx, doc, rec.Revision)
		if errors.Is(err, store.ErrConflict) && attempt < MaxAttempts {
			s.logger.Warn("goal revision conflict, retrying", "goal_id", id, "attempt", attempt)
			continue
		}
		if err != nil {
			return nil, err
		}
		return g, nil
	}
}

// transition runs a status-changing lifecycle call and records it.
func (s *Service) transition(ctx context.Context, id, op string, fn func(*goal.Goal) error) (*goal.Goal, error) {
	g, err := s.mutateGoal(ctx, id, func(g *goal.Goal) (bool, error) {
		return true, fn(g)
	})
	if err != nil {
		return nil, fmt.Errorf("%s goal %s: %w", op, id, err)
	}
	s.metrics.GoalTransition(g.Type, g.Status)
	s.logger.Info("goal "+op, "goal_id", id, "status", g.Status)
	return g, nil
}

// StartGoal activates a draft goal.
func (s *Service) StartGoal(ctx context.Context, id string) (*goal.Goal, error) {
	return s.transition(ctx, id, "start", (*goal.Goal).Start)
}

// PauseGoal suspends an active goal.
func (s *Service) PauseGoal(ctx context.Context, id, reason, by string) (*goal.Goal, error) {
	return s.transition(ctx, id, "pause", func(g *goal.Goal) error { return g.Pause(reason, by) })
}

// ResumeGoal reactivates a paused goal.
func (s *Service) ResumeGoal(ctx context.Context, id, by string) (*goal.Goal, error) {
	return s.transition(ctx, id, "resume", func(g *goal.Goal) error { return g.Resume(by) })
}

// CancelGoal cancels a goal that is not yet finished.
func (s *Service) CancelGoal(ctx context.Context, id, reason, by string) (*goal.Goal, error) {
	return s.transition(ctx, id, "cancel", func(g *goal.Goal) error { return g.Cancel(reason, by) })
}

// CompleteGoal completes a goal by hand. A recurring goal's follow-on
// draft is stored and returned.
func (s *Service) CompleteGoal(ctx context.Context, id string, data map[string]any) (*goal.Goal, *goal.Goal, error) {
	var next *goal.Goal
	g, err := s.transition(ctx, id, "complete", func(g *goal.Goal) error {
		var err error
		next, err = g.Complete(data)
		return err
	})
	if err != nil {
		return nil, nil, err
	}
	if next != nil {
		if err := s.insertGoal(ctx, next); err != nil {
			return g, nil, err
		}
		s.logger.Info("recurring goal scheduled", "goal_id", next.ID, "parent_goal_id", g.ID)
	}
	return g, next, nil
}

// Contribute applies one progress update to a goal. Rejections come back
// in the result, not as errors. An expiry found during the update is
// persisted.
func (s *Service) Contribute(ctx context.Context, id, participantID string, value float64, event map[string]any) (goal.UpdateResult, *goal.Goal, error) {
	var result goal.UpdateResult
	g, err := s.mutateGoal(ctx, id, func(g *goal.Goal) (bool, error) {
		before := g.Status
		result = g.UpdateProgress(participantID, value, event)
		return result.Updated || g.Status != before, nil
	})
	if err != nil {
		return goal.UpdateResult{}, nil, fmt.Errorf("contribute to goal %s: %w", id, err)
	}
	s.metrics.GoalUpdate(g.Type, result)

	if !result.Updated {
		s.logger.Debug("goal update rejected", "goal_id", id, "participant_id", participantID, "reason", result.Reason)
		return result, g, nil
	}
	if result.MilestoneReached != nil {
		s.logger.Info("milestone reached", "goal_id", id, "threshold", result.MilestoneReached.Threshold)
	}
	if result.GoalCompleted {
		s.logger.Info("goal completed", "goal_id", id, "xp_reward", g.CalculateXPReward())
	}
	if result.NextGoal != nil {
		if err := s.insertGoal(ctx, result.NextGoal); err != nil {
			return result, g, err
		}
		s.logger.Info("recurring goal scheduled", "goal_id", result.NextGoal.ID, "parent_goal_id", id)
	}
	return result, g, nil
}
