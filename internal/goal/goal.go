package goal

import (
	"slices"
	"time"

	"golang.org/x/text/unicode/norm"

	"github.com/roach88/questcore/internal/ids"
)

// Goal is a shared, time-boxed objective.
//
// Progress is nil while the goal is a draft and set by Start. It only
// changes while Status is active.
type Goal struct {
	ID          string
	FamilyID    string
	CreatedBy   string
	Title       string
	Description string

	Type       Type
	Metric     Metric
	Target     float64
	Difficulty Difficulty
	Status     Status

	Participants []string
	Milestones   []Milestone
	Rewards      []Reward
	Progress     Progress

	// Contributions is the append-only log of accepted updates.
	Contributions []Contribution

	Recurring *RecurringPattern

	// ParentGoalID links a recurring follow-on to the goal it replaced.
	ParentGoalID string

	CreatedAt   time.Time
	StartDate   *time.Time
	EndDate     *time.Time
	CompletedAt *time.Time
	CancelledAt *time.Time
	PausedAt    *time.Time
	ResumedAt   *time.Time
	ExpiredAt   *time.Time

	CompletionData map[string]any
	CancelReason   string
	CancelledBy    string
	PauseReason    string
	PausedBy       string
	ResumedBy      string

	now   func() time.Time
	idGen ids.Generator
}

// Option configures a Goal's clock and id source.
type Option func(*Goal)

// WithClock sets the time source. Default: time.Now.
func WithClock(now func() time.Time) Option {
	return func(g *Goal) {
		if now != nil {
			g.now = now
		}
	}
}

// WithIDGenerator sets the id source used for new and follow-on goals.
// Default: ids.UUIDv7Generator.
func WithIDGenerator(gen ids.Generator) Option {
	return func(g *Goal) {
		if gen != nil {
			g.idGen = gen
		}
	}
}

func (g *Goal) apply(opts []Option) {
	g.now = time.Now
	g.idGen = ids.UUIDv7Generator{}
	for _, opt := range opts {
		opt(g)
	}
}

// New validates p and returns a draft goal. The goal is nil when the
// validation fails. Title and description are NFC-normalized; participant
// ids are kept as given.
func New(p Params, opts ...Option) (*Goal, Validation) {
	v := Validate(p)
	if !v.IsValid {
		return nil, v
	}

	g := &Goal{
		FamilyID:     p.FamilyID,
		CreatedBy:    p.CreatedBy,
		Title:        norm.NFC.String(p.Title),
		Description:  norm.NFC.String(p.Description),
		Type:         p.Type,
		Metric:       p.Metric,
		Target:       p.Target,
		Difficulty:   p.Difficulty,
		Status:       StatusDraft,
		Participants: slices.Clone(p.Participants),
		Milestones:   resetMilestones(p.Milestones),
		Rewards:      slices.Clone(p.Rewards),
		StartDate:    copyTime(p.StartDate),
		EndDate:      copyTime(p.EndDate),
	}
	if g.Difficulty == "" {
		g.Difficulty = DifficultyMedium
	}
	if p.Recurring != nil {
		r := *p.Recurring
		g.Recurring = &r
	}
	g.apply(opts)
	g.ID = g.idGen.Generate()
	g.CreatedAt = g.now()
	return g, v
}

// IsRecurring reports whether completing the goal spawns a follow-on.
func (g *Goal) IsRecurring() bool {
	return g.Recurring != nil
}

// IsParticipant reports whether id takes part in the goal.
func (g *Goal) IsParticipant(id string) bool {
	return slices.Contains(g.Participants, id)
}

// Start moves a draft goal to active, stamps StartDate, defaults EndDate
// to seven days later and initializes Progress for the goal type. A
// recurring follow-on keeps its scheduled duration from the actual start.
func (g *Goal) Start() error {
	if g.Status != StatusDraft {
		return g.invalid("start", StatusDraft)
	}
	now := g.now()
	if g.ParentGoalID != "" && g.StartDate != nil && g.EndDate != nil {
		end := now.Add(g.EndDate.Sub(*g.StartDate))
		g.EndDate = &end
	}
	g.Status = StatusActive
	g.StartDate = &now
	if g.EndDate == nil {
		end := now.Add(DefaultDuration)
		g.EndDate = &end
	}
	if g.Type == TypeCooperative && len(g.Milestones) == 0 {
		g.Milestones = []Milestone{{Threshold: 100, Target: g.Target}}
	}
	g.Progress = newProgress(g)
	return nil
}

// Pause suspends an active goal.
func (g *Goal) Pause(reason, pausedBy string) error {
	if g.Status != StatusActive {
		return g.invalid("pause", StatusActive)
	}
	now := g.now()
	g.Status = StatusPaused
	g.PausedAt = &now
	g.PauseReason = reason
	g.PausedBy = pausedBy
	return nil
}

// Resume returns a paused goal to active.
func (g *Goal) Resume(resumedBy string) error {
	if g.Status != StatusPaused {
		return g.invalid("resume", StatusPaused)
	}
	now := g.now()
	g.Status = StatusActive
	g.ResumedAt = &now
	g.ResumedBy = resumedBy
	return nil
}

// Cancel ends a goal that has not yet reached a terminal state.
func (g *Goal) Cancel(reason, cancelledBy string) error {
	if g.Status.Terminal() {
		return g.invalid("cancel", StatusDraft, StatusActive, StatusPaused)
	}
	now := g.now()
	g.Status = StatusCancelled
	g.CancelledAt = &now
	g.CancelReason = reason
	g.CancelledBy = cancelledBy
	return nil
}

// Complete marks an active or paused goal completed and records data.
// For a recurring goal it returns the follow-on draft, which the caller
// must persist. Otherwise the returned goal is nil.
func (g *Goal) Complete(data map[string]any) (*Goal, error) {
	if g.Status != StatusActive && g.Status != StatusPaused {
		return nil, g.invalid("complete", StatusActive, StatusPaused)
	}
	now := g.now()
	g.Status = StatusCompleted
	g.CompletedAt = &now
	g.CompletionData = data
	if !g.IsRecurring() {
		return nil, nil
	}
	return g.nextOccurrence(), nil
}

// IsExpired reports whether EndDate is set and already passed.
func (g *Goal) IsExpired() bool {
	return g.EndDate != nil && g.now().After(*g.EndDate)
}

// Expire moves an active or paused goal to expired.
func (g *Goal) Expire() error {
	if g.Status != StatusActive && g.Status != StatusPaused {
		return g.invalid("expire", StatusActive, StatusPaused)
	}
	now := g.now()
	g.Status = StatusExpired
	g.ExpiredAt = &now
	return nil
}

// CheckExpiry expires the goal if its window has passed. It reports
// whether the status changed.
func (g *Goal) CheckExpiry() bool {
	if g.Status.Terminal() || g.Status == StatusDraft || !g.IsExpired() {
		return false
	}
	return g.Expire() == nil
}

func (g *Goal) invalid(op string, allowed ...Status) error {
	return &InvalidStateError{Op: op, GoalID: g.ID, Status: g.Status, Allowed: allowed}
}

func copyTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	c := *t
	return &c
}

// resetMilestones copies ms with all runtime state cleared.
func resetMilestones(ms []Milestone) []Milestone {
	if len(ms) == 0 {
		return nil
	}
	out := make([]Milestone, len(ms))
	for i, m := range ms {
		out[i] = Milestone{Title: m.Title, Threshold: m.Threshold, Target: m.Target}
	}
	return out
}
