package stats

import (
	"sort"
	"strings"
	"time"
)

// Completion is one entry of a user's quest-completion log.
type Completion struct {
	ID          string    `json:"id"`
	UserID      string    `json:"userId"`
	QuestID     string    `json:"questId"`
	XP          int       `json:"xp"`
	Difficulty  string    `json:"difficulty,omitempty"`
	CompletedAt time.Time `json:"completedAt"`
}

// Time-of-day windows for the early/late flags, in local hours.
const (
	earlyMorningBefore = 7
	lateNightFrom      = 22
	xpPerLevel         = 100
)

type buildOptions struct {
	loc                  *time.Location
	now                  time.Time
	familyGoalsCompleted int
	badgesEarned         int
}

// BuildOption configures Build.
type BuildOption func(*buildOptions)

// WithLocation sets the time zone used to bucket completions into days.
// Default: UTC.
func WithLocation(loc *time.Location) BuildOption {
	return func(o *buildOptions) {
		if loc != nil {
			o.loc = loc
		}
	}
}

// WithNow sets the reference time for the current streak. Default: the most
// recent completion, so Build stays a pure function of its inputs.
func WithNow(now time.Time) BuildOption {
	return func(o *buildOptions) { o.now = now }
}

// WithFamilyGoalsCompleted sets the familyGoalsCompleted counter, which is
// tracked by the goal collaborator rather than the completion log.
func WithFamilyGoalsCompleted(n int) BuildOption {
	return func(o *buildOptions) { o.familyGoalsCompleted = n }
}

// WithBadgesEarned sets the badgesEarned counter.
func WithBadgesEarned(n int) BuildOption {
	return func(o *buildOptions) { o.badgesEarned = n }
}

// Build derives a Snapshot from a completion log. The log may be unordered.
func Build(completions []Completion, opts ...BuildOption) Snapshot {
	o := buildOptions{loc: time.UTC}
	for _, opt := range opts {
		opt(&o)
	}

	snap := Snapshot{
		QuestsCompleted:      float64(len(completions)),
		FamilyGoalsCompleted: float64(o.familyGoalsCompleted),
		BadgesEarned:         float64(o.badgesEarned),
		EarlyMorningQuest:    0,
		LateNightQuest:       0,
	}

	totalXP := 0
	weekend := 0
	hard := 0
	days := make(map[int64]bool)
	var latest time.Time

	for _, c := range completions {
		totalXP += c.XP
		local := c.CompletedAt.In(o.loc)

		switch local.Weekday() {
		case time.Saturday, time.Sunday:
			weekend++
		}
		switch strings.ToLower(c.Difficulty) {
		case "hard", "epic":
			hard++
		}
		if local.Hour() < earlyMorningBefore {
			snap[EarlyMorningQuest] = 1
		}
		if local.Hour() >= lateNightFrom {
			snap[LateNightQuest] = 1
		}

		days[dayNumber(local)] = true
		if c.CompletedAt.After(latest) {
			latest = c.CompletedAt
		}
	}

	now := o.now
	if now.IsZero() {
		now = latest
	}

	current, longest := streaks(days, dayNumber(now.In(o.loc)))

	snap[TotalXP] = float64(totalXP)
	snap[Level] = float64(totalXP/xpPerLevel + 1)
	snap[WeekendQuests] = float64(weekend)
	snap[HardQuestsCompleted] = float64(hard)
	snap[CurrentStreak] = float64(current)
	snap[StreakDays] = float64(current)
	snap[LongestStreak] = float64(longest)
	return snap
}

// dayNumber maps a local time to a civil day index.
func dayNumber(t time.Time) int64 {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC).Unix() / 86400
}

// streaks returns the current streak, counted back from today or yesterday,
// and the longest run of consecutive active days.
func streaks(days map[int64]bool, today int64) (current, longest int) {
	if len(days) == 0 {
		return 0, 0
	}

	sorted := make([]int64, 0, len(days))
	for d := range days {
		sorted = append(sorted, d)
	}
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })

	run := 0
	for i, d := range sorted {
		if i > 0 && d == sorted[i-1]+1 {
			run++
		} else {
			run = 1
		}
		if run > longest {
			longest = run
		}
	}

	start := today
	if !days[start] {
		start = today - 1
	}
	for d := start; days[d]; d-- {
		current++
	}
	return current, longest
}
