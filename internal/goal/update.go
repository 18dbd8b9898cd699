package goal

import (
	"math"
	"sort"
	"time"
)

// UpdateResult is the outcome of UpdateProgress. When Updated is false
// only Reason is set.
type UpdateResult struct {
	Updated bool   `json:"updated"`
	Reason  string `json:"reason,omitempty"`

	OldProgress      Progress       `json:"oldProgress,omitempty"`
	NewProgress      Progress       `json:"newProgress,omitempty"`
	MilestoneReached *Milestone     `json:"milestoneReached,omitempty"`
	GoalCompleted    bool           `json:"goalCompleted"`
	CompletionData   map[string]any `json:"completionData,omitempty"`

	// NextGoal is the recurring follow-on created by an automatic
	// completion. The caller persists it.
	NextGoal *Goal `json:"-"`
}

func rejected(reason string) UpdateResult {
	return UpdateResult{Updated: false, Reason: reason}
}

// UpdateProgress records value from participantID.
//
// Preconditions are checked in order: the goal is active, participantID
// takes part, the goal has not expired, value is a finite non-negative
// number. The first failure is returned as a rejection. An expired goal
// is also moved to expired.
//
// On success the type-specific progress is updated, the first newly
// crossed milestone is reported, and the goal is completed when the
// type's completion predicate holds.
func (g *Goal) UpdateProgress(participantID string, value float64, event map[string]any) UpdateResult {
	if g.Status != StatusActive {
		return rejected(ReasonNotActive)
	}
	if !g.IsParticipant(participantID) {
		return rejected(ReasonNotParticipant)
	}
	if g.IsExpired() {
		_ = g.Expire()
		return rejected(ReasonExpired)
	}
	if value < 0 || math.IsNaN(value) || math.IsInf(value, 0) {
		return rejected(ReasonInvalidValue)
	}
	if g.Progress == nil {
		g.Progress = newProgress(g)
	}

	now := g.now()
	old := cloneProgress(g.Progress)

	switch p := g.Progress.(type) {
	case *CollectiveProgress:
		g.applyCollective(p, participantID, value)
	case *IndividualProgress:
		g.applyIndividual(p, participantID, value)
	case *CompetitiveProgress:
		g.applyCompetitive(p, participantID, value)
	case *CooperativeProgress:
		g.applyCooperative(p, value, now)
	}

	g.Contributions = append(g.Contributions, Contribution{
		ParticipantID: participantID,
		Value:         value,
		At:            now,
		Event:         event,
	})

	result := UpdateResult{
		Updated:          true,
		OldProgress:      old,
		MilestoneReached: g.checkMilestones(now),
	}

	if g.isAchieved() && g.Status == StatusActive {
		data := g.completionData(participantID)
		next, err := g.Complete(data)
		if err == nil {
			result.GoalCompleted = true
			result.CompletionData = data
			result.NextGoal = next
		}
	}

	result.NewProgress = cloneProgress(g.Progress)
	return result
}

func (g *Goal) applyCollective(p *CollectiveProgress, id string, value float64) {
	if p.Contributions == nil {
		p.Contributions = map[string]float64{}
	}
	p.Contributions[id] += value

	total := 0.0
	for _, pid := range sortedKeys(p.Contributions) {
		total += p.Contributions[pid]
	}
	p.Total = total
	p.Percentage = math.Min(100, total/p.Target*100)
}

func (g *Goal) applyIndividual(p *IndividualProgress, id string, value float64) {
	e := p.Individual[id]
	if e.Target == 0 {
		e.Target = g.Target
	}
	e.Current += value
	if !e.Completed && e.Current >= e.Target {
		e.Completed = true
		p.Completed++
	}
	p.Individual[id] = e

	if p.Target > 0 {
		p.Percentage = math.Min(100, float64(p.Completed)/float64(p.Target)*100)
	}
}

func (g *Goal) applyCompetitive(p *CompetitiveProgress, id string, value float64) {
	e := p.Individual[id]
	e.Current += value
	p.Individual[id] = e

	board := make([]LeaderboardEntry, 0, len(g.Participants))
	for _, pid := range g.Participants {
		board = append(board, LeaderboardEntry{ParticipantID: pid, Score: p.Individual[pid].Current})
	}
	sort.SliceStable(board, func(i, j int) bool {
		return board[i].Score > board[j].Score
	})
	for i := range board {
		board[i].Rank = i + 1
		c := p.Individual[board[i].ParticipantID]
		c.Rank = i + 1
		p.Individual[board[i].ParticipantID] = c
	}
	p.Leaderboard = board

	// Re-derived on every call: whoever leads once the target is reached.
	p.Winner = nil
	if len(board) > 0 && board[0].Score >= g.Target {
		w := board[0].ParticipantID
		p.Winner = &w
	}
}

func (g *Goal) applyCooperative(p *CooperativeProgress, value float64, now time.Time) {
	if !p.Completed && p.CurrentPhase < len(g.Milestones) {
		m := &g.Milestones[p.CurrentPhase]
		m.Progress += value
		if m.Progress >= g.phaseTarget(*m) {
			at := now
			m.Completed = true
			m.CompletedAt = &at
			p.Phases = append(p.Phases, PhaseRecord{
				Phase:       p.CurrentPhase,
				Progress:    m.Progress,
				CompletedAt: at,
			})
			p.CurrentPhase++
		}
	}
	p.Completed = p.CurrentPhase >= p.TotalPhases
}

// phaseTarget is the amount a cooperative phase needs. Milestones without
// their own target use the goal target.
func (g *Goal) phaseTarget(m Milestone) float64 {
	if m.Target > 0 {
		return m.Target
	}
	return g.Target
}

// checkMilestones reports the first milestone not yet notified whose
// threshold is now met, marking it notified.
func (g *Goal) checkMilestones(now time.Time) *Milestone {
	pct, ok := g.percentComplete()
	for i := range g.Milestones {
		m := &g.Milestones[i]
		if m.Notified {
			continue
		}
		if g.Type == TypeCooperative {
			if !m.Completed {
				continue
			}
		} else {
			if !ok || pct < m.Threshold {
				continue
			}
			at := now
			m.Completed = true
			m.CompletedAt = &at
		}
		m.Notified = true
		reached := *m
		return &reached
	}
	return nil
}

// percentComplete returns the percentage used for milestone thresholds.
// Cooperative goals measure milestones by phase instead.
func (g *Goal) percentComplete() (float64, bool) {
	switch p := g.Progress.(type) {
	case *CollectiveProgress:
		return p.Percentage, true
	case *IndividualProgress:
		return p.Percentage, true
	case *CompetitiveProgress:
		if len(p.Leaderboard) == 0 {
			return 0, true
		}
		return math.Min(100, p.Leaderboard[0].Score/g.Target*100), true
	default:
		return 0, false
	}
}

// isAchieved evaluates the completion predicate for the goal type.
func (g *Goal) isAchieved() bool {
	switch p := g.Progress.(type) {
	case *CollectiveProgress:
		return p.Total >= g.Target
	case *IndividualProgress:
		return p.Completed >= p.Target
	case *CompetitiveProgress:
		return p.Winner != nil
	case *CooperativeProgress:
		return p.Completed
	default:
		return false
	}
}

func (g *Goal) completionData(participantID string) map[string]any {
	data := map[string]any{
		"trigger":       "progress",
		"participantId": participantID,
	}
	if p, ok := g.Progress.(*CompetitiveProgress); ok && p.Winner != nil {
		data["winner"] = *p.Winner
	}
	return data
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
