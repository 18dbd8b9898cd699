package goal

import "time"

// Type selects how participants' contributions combine.
type Type string

const (
	TypeCollective  Type = "collective"
	TypeIndividual  Type = "individual"
	TypeCompetitive Type = "competitive"
	TypeCooperative Type = "cooperative"
)

// Metric names what a goal counts.
type Metric string

const (
	MetricQuestCount   Metric = "quest_count"
	MetricXPTotal      Metric = "xp_total"
	MetricStreakDays   Metric = "streak_days"
	MetricBadgesEarned Metric = "badges_earned"
	MetricCustom       Metric = "custom"
)

// Difficulty scales the XP reward.
type Difficulty string

const (
	DifficultyEasy   Difficulty = "easy"
	DifficultyMedium Difficulty = "medium"
	DifficultyHard   Difficulty = "hard"
	DifficultyEpic   Difficulty = "epic"
)

// Status is the lifecycle state of a goal.
type Status string

const (
	StatusDraft     Status = "draft"
	StatusActive    Status = "active"
	StatusPaused    Status = "paused"
	StatusCompleted Status = "completed"
	StatusCancelled Status = "cancelled"
	StatusExpired   Status = "expired"
)

// Terminal reports whether no further transition is possible.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusCancelled || s == StatusExpired
}

// DefaultDuration is the window applied by Start when no end date is set.
const DefaultDuration = 7 * 24 * time.Hour

// BaseXPReward is the reward for a medium goal without completion bonus
// before the difficulty multiplier.
const BaseXPReward = 200

var (
	validTypes        = []Type{TypeCollective, TypeIndividual, TypeCompetitive, TypeCooperative}
	validMetrics      = []Metric{MetricQuestCount, MetricXPTotal, MetricStreakDays, MetricBadgesEarned, MetricCustom}
	validDifficulties = []Difficulty{DifficultyEasy, DifficultyMedium, DifficultyHard, DifficultyEpic}
)

// multiplierTenths holds the difficulty multipliers 1.0, 1.5, 2.0 and 3.0
// scaled by ten so reward math stays in integers.
var multiplierTenths = map[Difficulty]int{
	DifficultyEasy:   10,
	DifficultyMedium: 15,
	DifficultyHard:   20,
	DifficultyEpic:   30,
}

// Multiplier returns the XP multiplier for d. Unknown difficulties count as 1.
func (d Difficulty) Multiplier() float64 {
	m, ok := multiplierTenths[d]
	if !ok {
		return 1
	}
	return float64(m) / 10
}

// Milestone is an intermediate threshold. Threshold is a percentage in
// (0, 100]. For cooperative goals each milestone is a phase with its own
// Target and accumulated Progress.
type Milestone struct {
	Title       string     `json:"title,omitempty"`
	Threshold   float64    `json:"threshold"`
	Target      float64    `json:"target,omitempty"`
	Progress    float64    `json:"progress,omitempty"`
	Completed   bool       `json:"completed"`
	CompletedAt *time.Time `json:"completedAt,omitempty"`
	Notified    bool       `json:"notified"`
}

// RecurrenceType is how far a follow-on goal is shifted.
type RecurrenceType string

const (
	RecurDaily   RecurrenceType = "daily"
	RecurWeekly  RecurrenceType = "weekly"
	RecurMonthly RecurrenceType = "monthly"
)

// RecurringPattern describes how a completed goal spawns the next one.
// DurationDays of zero means seven days.
type RecurringPattern struct {
	Type         RecurrenceType `json:"type"`
	DurationDays int            `json:"durationDays,omitempty"`
}

// Reward is a free-form payout description. The engine never reads it.
type Reward struct {
	Type        string  `json:"type"`
	Value       float64 `json:"value,omitempty"`
	Description string  `json:"description,omitempty"`
}

// Contribution is one accepted progress update.
type Contribution struct {
	ParticipantID string         `json:"participantId"`
	Value         float64        `json:"value"`
	At            time.Time      `json:"at"`
	Event         map[string]any `json:"event,omitempty"`
}

// Params are the caller-supplied attributes of a new goal.
type Params struct {
	Title        string
	Description  string
	FamilyID     string
	CreatedBy    string
	Type         Type
	Metric       Metric
	Target       float64
	Difficulty   Difficulty
	Participants []string
	Milestones   []Milestone
	Rewards      []Reward
	StartDate    *time.Time
	EndDate      *time.Time
	Recurring    *RecurringPattern
}
