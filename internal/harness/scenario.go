package harness

import (
	"bytes"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Scenario defines a goal and badge scenario.
type Scenario struct {
	// Name uniquely identifies this scenario and names its golden file.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// Now is the RFC 3339 start time of the fixed clock.
	// Empty means 2026-01-05T09:00:00Z.
	Now string `yaml:"now,omitempty"`

	// Timezone buckets completions into days for stats. Empty means UTC.
	Timezone string `yaml:"timezone,omitempty"`

	// Goals are created, in order, before the flow runs.
	Goals []GoalDef `yaml:"goals,omitempty"`

	// Flow is the sequence of steps to execute.
	Flow []FlowStep `yaml:"flow"`

	// Assertions validate the final state.
	Assertions []Assertion `yaml:"assertions,omitempty"`
}

// GoalDef declares a goal by a scenario-local reference.
type GoalDef struct {
	Ref          string         `yaml:"ref"`
	Title        string         `yaml:"title,omitempty"`
	Type         string         `yaml:"type"`
	Metric       string         `yaml:"metric"`
	Target       float64        `yaml:"target"`
	Difficulty   string         `yaml:"difficulty,omitempty"`
	Participants []string       `yaml:"participants"`
	Milestones   []MilestoneDef `yaml:"milestones,omitempty"`
	Recurring    *RecurringDef  `yaml:"recurring,omitempty"`

	// Start activates the goal right after creation.
	Start bool `yaml:"start,omitempty"`
}

// MilestoneDef declares a milestone.
type MilestoneDef struct {
	Title     string  `yaml:"title,omitempty"`
	Threshold float64 `yaml:"threshold"`
	Target    float64 `yaml:"target,omitempty"`
}

// RecurringDef declares a recurrence.
type RecurringDef struct {
	Type         string `yaml:"type"`
	DurationDays int    `yaml:"duration_days,omitempty"`
}

// FlowStep is one step of the flow. Which fields apply depends on Action.
type FlowStep struct {
	Action      string    `yaml:"action"`
	Goal        string    `yaml:"goal,omitempty"`
	Participant string    `yaml:"participant,omitempty"`
	Value       float64   `yaml:"value,omitempty"`
	Quest       *QuestDef `yaml:"quest,omitempty"`
	Reason      string    `yaml:"reason,omitempty"`
	By          string    `yaml:"by,omitempty"`
	Duration    string    `yaml:"duration,omitempty"`

	// Expect is checked against the step's outcome. Nil means any outcome
	// that is not an error.
	Expect *ExpectClause `yaml:"expect,omitempty"`
}

// QuestDef is a quest completion.
type QuestDef struct {
	ID         string `yaml:"id"`
	User       string `yaml:"user"`
	Quest      string `yaml:"quest,omitempty"`
	XP         int    `yaml:"xp"`
	Difficulty string `yaml:"difficulty,omitempty"`
}

// ExpectClause specifies the expected outcome of a step. Unset fields are
// not checked.
type ExpectClause struct {
	// Error is a substring of the expected error. Lifecycle steps only.
	Error string `yaml:"error,omitempty"`

	// Status is the goal status after a lifecycle or contribute step.
	Status string `yaml:"status,omitempty"`

	// Contribute results.
	Updated   *bool    `yaml:"updated,omitempty"`
	Reason    string   `yaml:"reason,omitempty"`
	Milestone *float64 `yaml:"milestone,omitempty"`
	Completed *bool    `yaml:"completed,omitempty"`

	// Quest results.
	Duplicate *bool    `yaml:"duplicate,omitempty"`
	Badges    []string `yaml:"badges,omitempty"`
	BadgeXP   *int     `yaml:"badge_xp,omitempty"`
	Goals     []string `yaml:"goals,omitempty"`
}

// Assertion validates final state.
type Assertion struct {
	Type string `yaml:"type"`

	// goal_state
	Goal     string `yaml:"goal,omitempty"`
	Status   string `yaml:"status,omitempty"`
	XPReward *int   `yaml:"xp_reward,omitempty"`

	// badges_unlocked, snapshot
	User   string             `yaml:"user,omitempty"`
	Badges []string           `yaml:"badges,omitempty"`
	Stats  map[string]float64 `yaml:"stats,omitempty"`

	// trace_count
	Action string `yaml:"action,omitempty"`
	Count  int    `yaml:"count,omitempty"`
}

// Flow actions.
const (
	ActionStart      = "start"
	ActionPause      = "pause"
	ActionResume     = "resume"
	ActionCancel     = "cancel"
	ActionComplete   = "complete"
	ActionContribute = "contribute"
	ActionQuest      = "quest"
	ActionAdvance    = "advance"
)

// Assertion types.
const (
	AssertGoalState      = "goal_state"
	AssertBadgesUnlocked = "badges_unlocked"
	AssertSnapshot       = "snapshot"
	AssertTraceCount     = "trace_count"
)

// DefaultNow is the clock start when a scenario sets none.
var DefaultNow = time.Date(2026, 1, 5, 9, 0, 0, 0, time.UTC)

// LoadScenario reads and parses a scenario YAML file.
// Returns an error if the file doesn't exist, is malformed,
// contains unknown fields (typos), or is missing required fields.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}
	return ParseScenario(data)
}

// ParseScenario parses and validates scenario YAML.
func ParseScenario(data []byte) (*Scenario, error) {
	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}
	return &scenario, nil
}

// start returns the parsed clock start.
func (s *Scenario) start() (time.Time, error) {
	if s.Now == "" {
		return DefaultNow, nil
	}
	t, err := time.Parse(time.RFC3339, s.Now)
	if err != nil {
		return time.Time{}, fmt.Errorf("now: %w", err)
	}
	return t.UTC(), nil
}

func (s *Scenario) location() (*time.Location, error) {
	if s.Timezone == "" {
		return time.UTC, nil
	}
	loc, err := time.LoadLocation(s.Timezone)
	if err != nil {
		return nil, fmt.Errorf("timezone: %w", err)
	}
	return loc, nil
}

// validateScenario checks that required fields are present and valid.
func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}
	if s.Description == "" {
		return fmt.Errorf("description is required")
	}
	if len(s.Flow) == 0 {
		return fmt.Errorf("flow list is required and must be non-empty")
	}
	if _, err := s.start(); err != nil {
		return err
	}
	if _, err := s.location(); err != nil {
		return err
	}

	refs := make(map[string]bool, len(s.Goals))
	for i, g := range s.Goals {
		if g.Ref == "" {
			return fmt.Errorf("goals[%d]: ref is required", i)
		}
		if refs[g.Ref] {
			return fmt.Errorf("goals[%d]: duplicate ref %q", i, g.Ref)
		}
		refs[g.Ref] = true
	}

	for i, step := range s.Flow {
		if err := validateStep(step, refs); err != nil {
			return fmt.Errorf("flow[%d]: %w", i, err)
		}
	}

	for i, a := range s.Assertions {
		if err := validateAssertion(a, refs); err != nil {
			return fmt.Errorf("assertions[%d]: %w", i, err)
		}
	}
	return nil
}

func validateStep(step FlowStep, refs map[string]bool) error {
	switch step.Action {
	case ActionStart, ActionPause, ActionResume, ActionCancel, ActionComplete:
		if !refs[step.Goal] {
			return fmt.Errorf("unknown goal %q", step.Goal)
		}
	case ActionContribute:
		if !refs[step.Goal] {
			return fmt.Errorf("unknown goal %q", step.Goal)
		}
		if step.Participant == "" {
			return fmt.Errorf("participant is required for contribute")
		}
	case ActionQuest:
		if step.Quest == nil || step.Quest.ID == "" || step.Quest.User == "" {
			return fmt.Errorf("quest.id and quest.user are required for quest")
		}
	case ActionAdvance:
		d, err := time.ParseDuration(step.Duration)
		if err != nil {
			return fmt.Errorf("duration: %w", err)
		}
		if d <= 0 {
			return fmt.Errorf("duration must be positive")
		}
	case "":
		return fmt.Errorf("action is required")
	default:
		return fmt.Errorf("unknown action %q", step.Action)
	}
	return nil
}

func validateAssertion(a Assertion, refs map[string]bool) error {
	switch a.Type {
	case AssertGoalState:
		if !refs[a.Goal] {
			return fmt.Errorf("unknown goal %q", a.Goal)
		}
	case AssertBadgesUnlocked, AssertSnapshot:
		if a.User == "" {
			return fmt.Errorf("user is required for %s", a.Type)
		}
	case AssertTraceCount:
		if a.Action == "" {
			return fmt.Errorf("action is required for trace_count")
		}
		if a.Count < 0 {
			return fmt.Errorf("count must be non-negative for trace_count")
		}
	case "":
		return fmt.Errorf("type is required")
	default:
		return fmt.Errorf("unknown assertion type %q", a.Type)
	}
	return nil
}
