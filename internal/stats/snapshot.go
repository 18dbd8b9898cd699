// Package stats defines the Stats Snapshot read by the badge and goal engines
// and a builder that derives one from a user's quest-completion history.
package stats

import (
	"encoding/json"
	"fmt"
	"math"
)

// Well-known snapshot keys.
const (
	QuestsCompleted      = "questsCompleted"
	TotalXP              = "totalXP"
	Level                = "level"
	CurrentStreak        = "currentStreak"
	LongestStreak        = "longestStreak"
	StreakDays           = "streakDays"
	FamilyGoalsCompleted = "familyGoalsCompleted"
	WeekendQuests        = "weekendQuests"
	HardQuestsCompleted  = "hardQuestsCompleted"
	BadgesEarned         = "badgesEarned"

	EarlyMorningQuest = "early_morning_quest"
	LateNightQuest    = "late_night_quest"
)

// Snapshot is a flat, read-only mapping of named counters. Boolean flags are
// stored as 1 (true) or 0 (false). Missing keys read as zero.
type Snapshot map[string]float64

// Number returns the counter for key, or 0 when absent.
func (s Snapshot) Number(key string) float64 {
	return s[key]
}

// Flag reports whether key holds a non-zero value.
func (s Snapshot) Flag(key string) bool {
	return s[key] != 0
}

// With returns a copy of s with key set to v. s is not modified.
func (s Snapshot) With(key string, v float64) Snapshot {
	out := make(Snapshot, len(s)+1)
	for k, val := range s {
		out[k] = val
	}
	out[key] = v
	return out
}

// UnmarshalJSON accepts numbers and booleans as values.
func (s *Snapshot) UnmarshalJSON(data []byte) error {
	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("decode snapshot: %w", err)
	}

	out := make(Snapshot, len(raw))
	for k, v := range raw {
		switch val := v.(type) {
		case float64:
			if math.IsNaN(val) || math.IsInf(val, 0) {
				return fmt.Errorf("decode snapshot: %q is not finite", k)
			}
			out[k] = val
		case bool:
			if val {
				out[k] = 1
			} else {
				out[k] = 0
			}
		case nil:
			out[k] = 0
		default:
			return fmt.Errorf("decode snapshot: %q has unsupported type %T", k, v)
		}
	}
	*s = out
	return nil
}
