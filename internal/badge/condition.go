package badge

import (
	"fmt"
	"math"

	"github.com/roach88/questcore/internal/stats"
)

// ConditionKind selects how a condition reads the snapshot.
type ConditionKind string

const (
	// KindThreshold is satisfied when a counter reaches Threshold.
	KindThreshold ConditionKind = "threshold"

	// KindFlag is satisfied when a boolean flag is set.
	KindFlag ConditionKind = "flag"
)

// Condition is a declarative unlock predicate over a stats.Snapshot.
type Condition struct {
	Kind      ConditionKind `json:"kind"`
	Stat      string        `json:"stat"`
	Threshold float64       `json:"threshold,omitempty"`
}

// AtLeast returns a condition satisfied when stat >= n.
func AtLeast(stat string, n float64) Condition {
	return Condition{Kind: KindThreshold, Stat: stat, Threshold: n}
}

// FlagSet returns a condition satisfied when the boolean flag stat is true.
func FlagSet(stat string) Condition {
	return Condition{Kind: KindFlag, Stat: stat}
}

// Satisfied evaluates the predicate itself, independent of progress rounding.
func (c Condition) Satisfied(s stats.Snapshot) bool {
	switch c.Kind {
	case KindThreshold:
		return s.Number(c.Stat) >= c.Threshold
	case KindFlag:
		return s.Flag(c.Stat)
	default:
		return false
	}
}

// Progress returns how close the snapshot is to satisfying the condition,
// in [0, 100]. Flags are all-or-nothing.
func (c Condition) Progress(s stats.Snapshot) float64 {
	switch c.Kind {
	case KindThreshold:
		if c.Threshold <= 0 {
			return 0
		}
		p := s.Number(c.Stat) * 100 / c.Threshold
		return math.Max(0, math.Min(100, p))
	case KindFlag:
		if s.Flag(c.Stat) {
			return 100
		}
		return 0
	default:
		return 0
	}
}

// Validate reports a malformed condition.
func (c Condition) Validate() error {
	if c.Stat == "" {
		return fmt.Errorf("condition stat is required")
	}
	switch c.Kind {
	case KindThreshold:
		if !(c.Threshold > 0) || math.IsInf(c.Threshold, 0) {
			return fmt.Errorf("threshold for %q must be positive, got %v", c.Stat, c.Threshold)
		}
	case KindFlag:
	default:
		return fmt.Errorf("unknown condition kind %q", c.Kind)
	}
	return nil
}

func (c Condition) String() string {
	if c.Kind == KindFlag {
		return c.Stat
	}
	return fmt.Sprintf("%s >= %g", c.Stat, c.Threshold)
}
