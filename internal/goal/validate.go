package goal

import (
	"fmt"
	"math"
	"slices"
	"strings"
)

// Validate checks p and collects every problem.
func Validate(p Params) Validation {
	var errs []string
	add := func(format string, args ...any) {
		errs = append(errs, fmt.Sprintf(format, args...))
	}

	if strings.TrimSpace(p.Title) == "" {
		add("title is required")
	}
	if !slices.Contains(validTypes, p.Type) {
		add("unknown goal type %q", p.Type)
	}
	if !slices.Contains(validMetrics, p.Metric) {
		add("unknown metric %q", p.Metric)
	}
	if p.Difficulty != "" && !slices.Contains(validDifficulties, p.Difficulty) {
		add("unknown difficulty %q", p.Difficulty)
	}
	if !(p.Target > 0) || math.IsInf(p.Target, 0) {
		add("target must be a positive number")
	}

	if len(p.Participants) == 0 {
		add("at least one participant is required")
	}
	seen := make(map[string]bool, len(p.Participants))
	for i, id := range p.Participants {
		if strings.TrimSpace(id) == "" {
			add("participant %d is blank", i)
			continue
		}
		if seen[id] {
			add("duplicate participant %q", id)
		}
		seen[id] = true
	}

	prev := 0.0
	for i, m := range p.Milestones {
		if m.Target < 0 || math.IsNaN(m.Target) || math.IsInf(m.Target, 0) {
			add("milestone %d target must not be negative", i)
		}
		// Cooperative milestones are phases measured by target.
		if p.Type == TypeCooperative {
			continue
		}
		if !(m.Threshold > 0 && m.Threshold <= 100) {
			add("milestone %d threshold must be in (0, 100]", i)
			continue
		}
		if m.Threshold <= prev {
			add("milestone %d threshold must be greater than %g", i, prev)
		}
		prev = m.Threshold
	}

	if p.StartDate != nil && p.EndDate != nil && !p.EndDate.After(*p.StartDate) {
		add("end date must be after start date")
	}

	if r := p.Recurring; r != nil {
		switch r.Type {
		case RecurDaily, RecurWeekly, RecurMonthly:
		default:
			add("unknown recurrence %q", r.Type)
		}
		if r.DurationDays < 0 {
			add("recurrence duration must not be negative")
		}
	}

	return Validation{IsValid: len(errs) == 0, Errors: errs}
}
