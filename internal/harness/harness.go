package harness

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/roach88/questcore/internal/app"
	"github.com/roach88/questcore/internal/goal"
	"github.com/roach88/questcore/internal/ids"
	"github.com/roach88/questcore/internal/stats"
	"github.com/roach88/questcore/internal/store/sqlite"
	"github.com/roach88/questcore/internal/testutil"
)

// Harness executes one scenario.
type Harness struct {
	svc    *app.Service
	clock  *testutil.FixedClock
	logger *slog.Logger

	// refs maps scenario goal refs to stored goal ids.
	refs map[string]string
}

// Option configures Run.
type Option func(*Harness)

// WithLogger sets the logger for the service under test. Default: discard.
func WithLogger(l *slog.Logger) Option {
	return func(h *Harness) {
		if l != nil {
			h.logger = l
		}
	}
}

// Run executes a scenario and returns the result.
//
// Each scenario runs in a fresh in-memory database. A non-nil error means
// the scenario could not be executed at all; failed expectations are
// reported in Result.Errors.
func Run(scenario *Scenario, opts ...Option) (*Result, error) {
	start, err := scenario.start()
	if err != nil {
		return nil, err
	}
	loc, err := scenario.location()
	if err != nil {
		return nil, err
	}

	h := &Harness{
		clock:  testutil.NewFixedClock(start),
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
		refs:   make(map[string]string, len(scenario.Goals)),
	}
	for _, opt := range opts {
		opt(h)
	}

	st, err := sqlite.Open(":memory:", sqlite.WithLogger(h.logger), sqlite.WithClock(h.clock.Now))
	if err != nil {
		return nil, fmt.Errorf("failed to create in-memory store: %w", err)
	}
	defer st.Close()

	h.svc = app.New(st,
		app.WithLogger(h.logger),
		app.WithClock(h.clock.Now),
		app.WithIDGenerator(ids.NewSequenceGenerator("goal")),
		app.WithLocation(loc),
	)

	ctx := context.Background()
	if err := h.createGoals(ctx, scenario.Goals); err != nil {
		return nil, fmt.Errorf("failed to create goals: %w", err)
	}

	result := NewResult()
	for i, step := range scenario.Flow {
		if err := h.executeStep(ctx, i+1, step, result); err != nil {
			return nil, fmt.Errorf("flow step %d: %w", i+1, err)
		}
	}

	for _, msg := range h.evaluateAssertions(ctx, scenario.Assertions, result) {
		result.AddError(msg)
	}
	return result, nil
}

func (h *Harness) createGoals(ctx context.Context, defs []GoalDef) error {
	for _, def := range defs {
		g, v, err := h.svc.CreateGoal(ctx, def.params())
		if err != nil {
			return err
		}
		if !v.IsValid {
			return fmt.Errorf("goal %q: %w", def.Ref, v.Err())
		}
		h.refs[def.Ref] = g.ID

		if def.Start {
			if _, err := h.svc.StartGoal(ctx, g.ID); err != nil {
				return fmt.Errorf("goal %q: %w", def.Ref, err)
			}
		}
	}
	return nil
}

func (def GoalDef) params() goal.Params {
	title := def.Title
	if title == "" {
		title = def.Ref
	}
	p := goal.Params{
		Title:        title,
		FamilyID:     "family",
		CreatedBy:    "harness",
		Type:         goal.Type(def.Type),
		Metric:       goal.Metric(def.Metric),
		Target:       def.Target,
		Difficulty:   goal.Difficulty(def.Difficulty),
		Participants: def.Participants,
	}
	for _, m := range def.Milestones {
		p.Milestones = append(p.Milestones, goal.Milestone{Title: m.Title, Threshold: m.Threshold, Target: m.Target})
	}
	if def.Recurring != nil {
		p.Recurring = &goal.RecurringPattern{
			Type:         goal.RecurrenceType(def.Recurring.Type),
			DurationDays: def.Recurring.DurationDays,
		}
	}
	return p
}

// executeStep runs one flow step, records it in the trace and checks its
// expect clause. Only infrastructure failures are returned as errors.
func (h *Harness) executeStep(ctx context.Context, n int, step FlowStep, result *Result) error {
	var (
		outcome map[string]any
		err     error
	)

	switch step.Action {
	case ActionStart, ActionPause, ActionResume, ActionCancel, ActionComplete:
		outcome = h.lifecycle(ctx, step)
	case ActionContribute:
		outcome, err = h.contribute(ctx, step)
	case ActionQuest:
		outcome, err = h.quest(ctx, step)
	case ActionAdvance:
		d, _ := time.ParseDuration(step.Duration)
		now := h.clock.Advance(d)
		outcome = map[string]any{"now": now.Format(time.RFC3339)}
	}
	if err != nil {
		return err
	}

	target := step.Goal
	if step.Action == ActionQuest {
		target = step.Quest.User
	}
	result.AddTrace(n, step.Action, target, outcome)

	for _, msg := range checkExpect(step, outcome) {
		result.AddError(fmt.Sprintf("step %d (%s): %s", n, step.Action, msg))
	}
	return nil
}

// lifecycle runs a status transition. Rejected transitions are outcomes,
// not harness failures.
func (h *Harness) lifecycle(ctx context.Context, step FlowStep) map[string]any {
	id := h.refs[step.Goal]

	var (
		g    *goal.Goal
		next *goal.Goal
		err  error
	)
	switch step.Action {
	case ActionStart:
		g, err = h.svc.StartGoal(ctx, id)
	case ActionPause:
		g, err = h.svc.PauseGoal(ctx, id, step.Reason, step.By)
	case ActionResume:
		g, err = h.svc.ResumeGoal(ctx, id, step.By)
	case ActionCancel:
		g, err = h.svc.CancelGoal(ctx, id, step.Reason, step.By)
	case ActionComplete:
		g, next, err = h.svc.CompleteGoal(ctx, id, map[string]any{"trigger": "manual"})
	}
	if err != nil {
		return map[string]any{"error": errorKind(err)}
	}

	outcome := map[string]any{"status": string(g.Status)}
	if next != nil {
		outcome["next_goal"] = next.ID
	}
	return outcome
}

func errorKind(err error) string {
	if goal.IsInvalidState(err) {
		return "INVALID_STATE"
	}
	return err.Error()
}

func (h *Harness) contribute(ctx context.Context, step FlowStep) (map[string]any, error) {
	res, g, err := h.svc.Contribute(ctx, h.refs[step.Goal], step.Participant, step.Value, nil)
	if err != nil {
		return nil, err
	}

	outcome := map[string]any{
		"participant": step.Participant,
		"value":       step.Value,
		"updated":     res.Updated,
		"status":      string(g.Status),
	}
	if !res.Updated {
		outcome["reason"] = res.Reason
		return outcome, nil
	}
	outcome["completed"] = res.GoalCompleted
	if res.MilestoneReached != nil {
		outcome["milestone"] = res.MilestoneReached.Threshold
	}
	if res.GoalCompleted {
		outcome["xp_reward"] = g.CalculateXPReward()
		if w, ok := res.CompletionData["winner"]; ok {
			outcome["winner"] = w
		}
	}
	if res.NextGoal != nil {
		outcome["next_goal"] = res.NextGoal.ID
	}
	return outcome, nil
}

func (h *Harness) quest(ctx context.Context, step FlowStep) (map[string]any, error) {
	q := step.Quest
	questID := q.Quest
	if questID == "" {
		questID = q.ID
	}
	out, err := h.svc.RecordQuestCompletion(ctx, stats.Completion{
		ID:          q.ID,
		UserID:      q.User,
		QuestID:     questID,
		XP:          q.XP,
		Difficulty:  q.Difficulty,
		CompletedAt: h.clock.Now(),
	})
	if err != nil {
		return nil, err
	}

	badges := make([]string, 0, len(out.NewlyUnlocked))
	for _, b := range out.NewlyUnlocked {
		badges = append(badges, b.ID)
	}
	goals := make([]string, 0, len(out.Goals))
	for _, gu := range out.Goals {
		goals = append(goals, h.refFor(gu.GoalID))
	}

	return map[string]any{
		"id":        q.ID,
		"duplicate": out.Duplicate,
		"badges":    badges,
		"badge_xp":  out.BadgeXP,
		"goals":     goals,
	}, nil
}

// refFor maps a goal id back to its scenario ref. Follow-on goals keep
// their generated id.
func (h *Harness) refFor(id string) string {
	for ref, gid := range h.refs {
		if gid == id {
			return ref
		}
	}
	return id
}
