package harness

import (
	"context"
	"fmt"
	"reflect"
	"sort"
	"strings"

	"github.com/roach88/questcore/internal/badge"
)

// AssertionError is returned when an assertion fails.
type AssertionError struct {
	Type     string
	Expected string
	Actual   string
}

// Error implements the error interface.
func (e *AssertionError) Error() string {
	return fmt.Sprintf("assertion failed: %s: expected %s, got %s", e.Type, e.Expected, e.Actual)
}

// checkExpect compares a step outcome against its expect clause.
func checkExpect(step FlowStep, outcome map[string]any) []string {
	e := step.Expect
	errMsg, failed := outcome["error"].(string)

	if e == nil {
		if failed {
			return []string{"unexpected error: " + errMsg}
		}
		return nil
	}

	var msgs []string
	mismatch := func(field string, want, got any) {
		msgs = append(msgs, fmt.Sprintf("%s: expected %v, got %v", field, want, got))
	}

	if e.Error != "" {
		if !failed || !strings.Contains(errMsg, e.Error) {
			mismatch("error", e.Error, outcome["error"])
		}
		return msgs
	}
	if failed {
		return []string{"unexpected error: " + errMsg}
	}

	if e.Status != "" && outcome["status"] != e.Status {
		mismatch("status", e.Status, outcome["status"])
	}
	if e.Updated != nil && outcome["updated"] != *e.Updated {
		mismatch("updated", *e.Updated, outcome["updated"])
	}
	if e.Reason != "" && outcome["reason"] != e.Reason {
		mismatch("reason", e.Reason, outcome["reason"])
	}
	if e.Milestone != nil && outcome["milestone"] != *e.Milestone {
		mismatch("milestone", *e.Milestone, outcome["milestone"])
	}
	if e.Completed != nil && (outcome["completed"] == true) != *e.Completed {
		mismatch("completed", *e.Completed, outcome["completed"])
	}
	if e.Duplicate != nil && outcome["duplicate"] != *e.Duplicate {
		mismatch("duplicate", *e.Duplicate, outcome["duplicate"])
	}
	if e.Badges != nil && !sameStrings(e.Badges, outcome["badges"]) {
		mismatch("badges", e.Badges, outcome["badges"])
	}
	if e.BadgeXP != nil && outcome["badge_xp"] != *e.BadgeXP {
		mismatch("badge_xp", *e.BadgeXP, outcome["badge_xp"])
	}
	if e.Goals != nil && !sameStrings(e.Goals, outcome["goals"]) {
		mismatch("goals", e.Goals, outcome["goals"])
	}
	return msgs
}

func sameStrings(want []string, got any) bool {
	g, _ := got.([]string)
	if len(want) == 0 && len(g) == 0 {
		return true
	}
	return reflect.DeepEqual(want, g)
}

// evaluateAssertions checks every assertion and returns one message per
// failure.
func (h *Harness) evaluateAssertions(ctx context.Context, assertions []Assertion, result *Result) []string {
	var msgs []string
	for i, a := range assertions {
		var err error
		switch a.Type {
		case AssertGoalState:
			err = h.assertGoalState(ctx, a)
		case AssertBadgesUnlocked:
			err = h.assertBadgesUnlocked(ctx, a)
		case AssertSnapshot:
			err = h.assertSnapshot(ctx, a)
		case AssertTraceCount:
			err = assertTraceCount(result.Trace, a)
		}
		if err != nil {
			msgs = append(msgs, fmt.Sprintf("assertions[%d]: %v", i, err))
		}
	}
	return msgs
}

func (h *Harness) assertGoalState(ctx context.Context, a Assertion) error {
	g, err := h.svc.LoadGoal(ctx, h.refs[a.Goal])
	if err != nil {
		return err
	}
	if a.Status != "" && string(g.Status) != a.Status {
		return &AssertionError{Type: a.Type, Expected: "status " + a.Status, Actual: "status " + string(g.Status)}
	}
	if a.XPReward != nil {
		if got := g.CalculateXPReward(); got != *a.XPReward {
			return &AssertionError{
				Type:     a.Type,
				Expected: fmt.Sprintf("xp_reward %d", *a.XPReward),
				Actual:   fmt.Sprintf("xp_reward %d", got),
			}
		}
	}
	return nil
}

func (h *Harness) assertBadgesUnlocked(ctx context.Context, a Assertion) error {
	badges, err := h.svc.Badges(ctx, a.User)
	if err != nil {
		return err
	}
	got := []string{}
	for _, b := range badge.Unlocked(badges) {
		got = append(got, b.ID)
	}
	want := append([]string{}, a.Badges...)
	sort.Strings(got)
	sort.Strings(want)
	if !reflect.DeepEqual(want, got) {
		return &AssertionError{Type: a.Type, Expected: fmt.Sprint(want), Actual: fmt.Sprint(got)}
	}
	return nil
}

func (h *Harness) assertSnapshot(ctx context.Context, a Assertion) error {
	snap, err := h.svc.Snapshot(ctx, a.User)
	if err != nil {
		return err
	}
	keys := make([]string, 0, len(a.Stats))
	for k := range a.Stats {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		if got := snap.Number(k); got != a.Stats[k] {
			return &AssertionError{
				Type:     a.Type,
				Expected: fmt.Sprintf("%s = %v", k, a.Stats[k]),
				Actual:   fmt.Sprintf("%s = %v", k, got),
			}
		}
	}
	return nil
}

func assertTraceCount(trace []TraceEvent, a Assertion) error {
	count := 0
	for _, ev := range trace {
		if ev.Action == a.Action {
			count++
		}
	}
	if count != a.Count {
		return &AssertionError{
			Type:     a.Type,
			Expected: fmt.Sprintf("%d %s steps", a.Count, a.Action),
			Actual:   fmt.Sprintf("%d", count),
		}
	}
	return nil
}
