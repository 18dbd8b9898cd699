package goal

import "time"

// nextOccurrence builds the draft that follows a completed recurring goal.
// The window starts one period after this goal's start and lasts
// DurationDays (seven when unset).
func (g *Goal) nextOccurrence() *Goal {
	base := g.CreatedAt
	if g.StartDate != nil {
		base = *g.StartDate
	}
	start := shift(base, g.Recurring.Type)
	days := g.Recurring.DurationDays
	if days == 0 {
		days = 7
	}
	end := start.AddDate(0, 0, days)

	r := *g.Recurring
	next := &Goal{
		FamilyID:     g.FamilyID,
		CreatedBy:    g.CreatedBy,
		Title:        g.Title,
		Description:  g.Description,
		Type:         g.Type,
		Metric:       g.Metric,
		Target:       g.Target,
		Difficulty:   g.Difficulty,
		Status:       StatusDraft,
		Participants: append([]string(nil), g.Participants...),
		Milestones:   resetMilestones(g.Milestones),
		Rewards:      append([]Reward(nil), g.Rewards...),
		Recurring:    &r,
		ParentGoalID: g.ID,
		StartDate:    &start,
		EndDate:      &end,
		now:          g.now,
		idGen:        g.idGen,
	}
	next.ID = g.idGen.Generate()
	next.CreatedAt = g.now()
	return next
}

// shift advances t by one recurrence period. Monthly uses calendar months,
// so Jan 31 rolls into early March as time.AddDate normalizes.
func shift(t time.Time, r RecurrenceType) time.Time {
	switch r {
	case RecurDaily:
		return t.AddDate(0, 0, 1)
	case RecurWeekly:
		return t.AddDate(0, 0, 7)
	case RecurMonthly:
		return t.AddDate(0, 1, 0)
	default:
		return t
	}
}
