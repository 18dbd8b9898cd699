package goal

import (
	"maps"
	"time"
)

// Progress is the type-specific progress record of a started goal.
// The concrete type always matches the goal's Type.
type Progress interface {
	// Kind returns the goal type this record belongs to.
	Kind() Type

	clone() Progress
}

// CollectiveProgress pools every participant's contributions.
type CollectiveProgress struct {
	Total         float64            `json:"total"`
	Target        float64            `json:"target"`
	Percentage    float64            `json:"percentage"`
	Contributions map[string]float64 `json:"contributions"`
}

func (*CollectiveProgress) Kind() Type { return TypeCollective }

func (p *CollectiveProgress) clone() Progress {
	c := *p
	c.Contributions = maps.Clone(p.Contributions)
	if c.Contributions == nil {
		c.Contributions = map[string]float64{}
	}
	return &c
}

// IndividualEntry tracks one participant of an individual goal.
type IndividualEntry struct {
	Current   float64 `json:"current"`
	Target    float64 `json:"target"`
	Completed bool    `json:"completed"`
}

// IndividualProgress gives every participant the same personal target.
// Target is the number of participants that must finish.
type IndividualProgress struct {
	Individual map[string]IndividualEntry `json:"individual"`
	Completed  int                        `json:"completed"`
	Target     int                        `json:"target"`
	Percentage float64                    `json:"percentage"`
}

func (*IndividualProgress) Kind() Type { return TypeIndividual }

func (p *IndividualProgress) clone() Progress {
	c := *p
	c.Individual = maps.Clone(p.Individual)
	if c.Individual == nil {
		c.Individual = map[string]IndividualEntry{}
	}
	return &c
}

// LeaderboardEntry is one row of a competitive leaderboard.
type LeaderboardEntry struct {
	ParticipantID string  `json:"participantId"`
	Score         float64 `json:"score"`
	Rank          int     `json:"rank"`
}

// CompetitorEntry tracks one participant of a competitive goal.
type CompetitorEntry struct {
	Current float64 `json:"current"`
	Rank    int     `json:"rank"`
}

// CompetitiveProgress ranks participants by score. Winner is nil until
// the leader reaches the goal target.
type CompetitiveProgress struct {
	Leaderboard []LeaderboardEntry         `json:"leaderboard"`
	Individual  map[string]CompetitorEntry `json:"individual"`
	Winner      *string                    `json:"winner"`
}

func (*CompetitiveProgress) Kind() Type { return TypeCompetitive }

func (p *CompetitiveProgress) clone() Progress {
	c := *p
	c.Leaderboard = append([]LeaderboardEntry{}, p.Leaderboard...)
	c.Individual = maps.Clone(p.Individual)
	if c.Individual == nil {
		c.Individual = map[string]CompetitorEntry{}
	}
	if p.Winner != nil {
		w := *p.Winner
		c.Winner = &w
	}
	return &c
}

// PhaseRecord notes a finished cooperative phase.
type PhaseRecord struct {
	Phase       int       `json:"phase"`
	Progress    float64   `json:"progress"`
	CompletedAt time.Time `json:"completedAt"`
}

// CooperativeProgress walks participants through the goal's milestones
// one phase at a time.
type CooperativeProgress struct {
	Phases       []PhaseRecord `json:"phases"`
	CurrentPhase int           `json:"currentPhase"`
	TotalPhases  int           `json:"totalPhases"`
	Completed    bool          `json:"completed"`
}

func (*CooperativeProgress) Kind() Type { return TypeCooperative }

func (p *CooperativeProgress) clone() Progress {
	c := *p
	c.Phases = append([]PhaseRecord{}, p.Phases...)
	return &c
}

// newProgress returns the zero progress record for g's type.
func newProgress(g *Goal) Progress {
	switch g.Type {
	case TypeCollective:
		return &CollectiveProgress{
			Target:        g.Target,
			Contributions: map[string]float64{},
		}
	case TypeIndividual:
		ind := make(map[string]IndividualEntry, len(g.Participants))
		for _, id := range g.Participants {
			ind[id] = IndividualEntry{Target: g.Target}
		}
		return &IndividualProgress{Individual: ind, Target: len(g.Participants)}
	case TypeCompetitive:
		ind := make(map[string]CompetitorEntry, len(g.Participants))
		for _, id := range g.Participants {
			ind[id] = CompetitorEntry{}
		}
		return &CompetitiveProgress{Leaderboard: []LeaderboardEntry{}, Individual: ind}
	case TypeCooperative:
		return &CooperativeProgress{
			Phases:      []PhaseRecord{},
			TotalPhases: max(1, len(g.Milestones)),
		}
	default:
		return nil
	}
}

func cloneProgress(p Progress) Progress {
	if p == nil {
		return nil
	}
	return p.clone()
}
