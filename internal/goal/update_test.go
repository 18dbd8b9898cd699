package goal

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/questcore/internal/ids"
	"github.com/roach88/questcore/internal/testutil"
)

// =============================================================================
// Rejections
// =============================================================================

func TestUpdateProgress_RejectsDraft(t *testing.T) {
	g, _ := newTestGoal(t, testParams(TypeCollective))

	r := g.UpdateProgress("p1", 1, nil)
	assert.False(t, r.Updated)
	assert.Equal(t, ReasonNotActive, r.Reason)
	assert.Nil(t, g.Progress)
}

func TestUpdateProgress_RejectsPaused(t *testing.T) {
	g, _ := startedGoal(t, testParams(TypeCollective))
	require.NoError(t, g.Pause("", "parent"))

	r := g.UpdateProgress("p1", 1, nil)
	assert.Equal(t, ReasonNotActive, r.Reason)
}

func TestUpdateProgress_RejectsStranger(t *testing.T) {
	g, _ := startedGoal(t, testParams(TypeCollective))

	r := g.UpdateProgress("stranger", 1, nil)
	assert.False(t, r.Updated)
	assert.Equal(t, ReasonNotParticipant, r.Reason)
	assert.Empty(t, g.Contributions)
}

func TestUpdateProgress_ExpiredGoal(t *testing.T) {
	p := testParams(TypeCollective)
	end := testutil.Epoch.Add(24 * time.Hour)
	p.EndDate = &end
	g, clock := startedGoal(t, p)

	clock.Advance(25 * time.Hour)
	r := g.UpdateProgress("p1", 5, nil)

	assert.False(t, r.Updated)
	assert.Equal(t, ReasonExpired, r.Reason)
	assert.Equal(t, StatusExpired, g.Status)
	require.NotNil(t, g.ExpiredAt)
	assert.Equal(t, 0.0, g.Progress.(*CollectiveProgress).Total)

	// Subsequent calls see an inactive goal.
	r = g.UpdateProgress("p1", 5, nil)
	assert.Equal(t, ReasonNotActive, r.Reason)
}

func TestUpdateProgress_PreconditionOrder(t *testing.T) {
	p := testParams(TypeCollective)
	end := testutil.Epoch.Add(time.Hour)
	p.EndDate = &end
	g, clock := startedGoal(t, p)
	clock.Advance(2 * time.Hour)

	// Non-participant is checked before expiry and leaves the goal active.
	r := g.UpdateProgress("stranger", 1, nil)
	assert.Equal(t, ReasonNotParticipant, r.Reason)
	assert.Equal(t, StatusActive, g.Status)
}

func TestUpdateProgress_RejectsInvalidValues(t *testing.T) {
	g, _ := startedGoal(t, testParams(TypeCollective))

	for _, v := range []float64{-1, math.NaN(), math.Inf(1)} {
		r := g.UpdateProgress("p1", v, nil)
		assert.False(t, r.Updated)
		assert.Equal(t, ReasonInvalidValue, r.Reason)
	}
	assert.Empty(t, g.Contributions)
}

// =============================================================================
// Collective
// =============================================================================

func TestCollective_CompletesOnTarget(t *testing.T) {
	g, _ := startedGoal(t, testParams(TypeCollective))

	r1 := g.UpdateProgress("p1", 12, nil)
	require.True(t, r1.Updated)
	assert.False(t, r1.GoalCompleted)
	assert.Equal(t, 60.0, r1.NewProgress.(*CollectiveProgress).Percentage)

	r2 := g.UpdateProgress("p2", 8, map[string]any{"questId": "dishes"})
	require.True(t, r2.Updated)
	assert.True(t, r2.GoalCompleted)
	assert.Equal(t, StatusCompleted, g.Status)

	p := g.Progress.(*CollectiveProgress)
	assert.Equal(t, 20.0, p.Total)
	assert.Equal(t, 100.0, p.Percentage)
	assert.Equal(t, map[string]float64{"p1": 12, "p2": 8}, p.Contributions)

	assert.Equal(t, 12.0, r2.OldProgress.(*CollectiveProgress).Total)
	assert.Equal(t, "p2", r2.CompletionData["participantId"])
	assert.Equal(t, r2.CompletionData, g.CompletionData)

	require.Len(t, g.Contributions, 2)
	assert.Equal(t, "dishes", g.Contributions[1].Event["questId"])
}

func TestCollective_PercentageBoundAndConservation(t *testing.T) {
	p := testParams(TypeCollective)
	p.Participants = []string{"p1", "p2", "p3"}
	p.Target = 1000
	g, _ := startedGoal(t, p)

	values := []float64{0, 3.5, 250, 0.25, 17, 400, 99, 1000}
	for i, v := range values {
		id := p.Participants[i%3]
		r := g.UpdateProgress(id, v, nil)
		if !r.Updated {
			break
		}
		cp := r.NewProgress.(*CollectiveProgress)
		sum := 0.0
		for _, c := range cp.Contributions {
			sum += c
		}
		assert.InDelta(t, sum, cp.Total, 1e-9)
		assert.GreaterOrEqual(t, cp.Percentage, 0.0)
		assert.LessOrEqual(t, cp.Percentage, 100.0)
	}
	assert.Equal(t, StatusCompleted, g.Status)
	assert.Equal(t, 100.0, g.Progress.(*CollectiveProgress).Percentage)
}

func TestUpdateProgress_OldProgressIsSnapshot(t *testing.T) {
	g, _ := startedGoal(t, testParams(TypeCollective))

	r := g.UpdateProgress("p1", 5, nil)
	old := r.OldProgress.(*CollectiveProgress)
	assert.Empty(t, old.Contributions)
	assert.Equal(t, 0.0, old.Total)

	g.UpdateProgress("p1", 5, nil)
	assert.Equal(t, 5.0, r.NewProgress.(*CollectiveProgress).Total)
}

// =============================================================================
// Individual
// =============================================================================

func TestIndividual_CompletesAfterLastParticipant(t *testing.T) {
	p := testParams(TypeIndividual)
	p.Target = 5
	g, _ := startedGoal(t, p)

	r := g.UpdateProgress("p1", 3, nil)
	assert.False(t, r.GoalCompleted)

	r = g.UpdateProgress("p1", 2, nil)
	assert.False(t, r.GoalCompleted)
	ip := g.Progress.(*IndividualProgress)
	assert.Equal(t, 1, ip.Completed)
	assert.Equal(t, 50.0, ip.Percentage)
	assert.True(t, ip.Individual["p1"].Completed)

	// More work from a finished participant does not count twice.
	r = g.UpdateProgress("p1", 10, nil)
	assert.False(t, r.GoalCompleted)
	assert.Equal(t, 1, g.Progress.(*IndividualProgress).Completed)

	r = g.UpdateProgress("p2", 7, nil)
	assert.True(t, r.GoalCompleted)
	ip = g.Progress.(*IndividualProgress)
	assert.Equal(t, 2, ip.Completed)
	assert.Equal(t, 2, ip.Target)
	assert.Equal(t, 100.0, ip.Percentage)
	assert.Equal(t, StatusCompleted, g.Status)
}

// =============================================================================
// Competitive
// =============================================================================

func TestCompetitive_RankConsistency(t *testing.T) {
	p := testParams(TypeCompetitive)
	p.Participants = []string{"ana", "ben", "cy"}
	p.Target = 100
	g, _ := startedGoal(t, p)

	steps := []struct {
		id    string
		value float64
	}{{"ben", 5}, {"cy", 5}, {"ana", 3}, {"cy", 20}, {"ana", 22}, {"ben", 0}}

	for _, s := range steps {
		r := g.UpdateProgress(s.id, s.value, nil)
		require.True(t, r.Updated)
		cp := r.NewProgress.(*CompetitiveProgress)
		require.Len(t, cp.Leaderboard, 3)
		for i, e := range cp.Leaderboard {
			assert.Equal(t, i+1, e.Rank)
			assert.Equal(t, e.Rank, cp.Individual[e.ParticipantID].Rank)
			if i > 0 {
				assert.GreaterOrEqual(t, cp.Leaderboard[i-1].Score, e.Score)
			}
		}
	}

	cp := g.Progress.(*CompetitiveProgress)
	// ana and cy tie on 25; ana is listed first among participants.
	assert.Equal(t, []LeaderboardEntry{
		{ParticipantID: "ana", Score: 25, Rank: 1},
		{ParticipantID: "cy", Score: 25, Rank: 2},
		{ParticipantID: "ben", Score: 5, Rank: 3},
	}, cp.Leaderboard)
	assert.Nil(t, cp.Winner)
}

func TestCompetitive_WinnerCompletesGoal(t *testing.T) {
	p := testParams(TypeCompetitive)
	p.Target = 10
	g, _ := startedGoal(t, p)

	g.UpdateProgress("p1", 9, nil)
	r := g.UpdateProgress("p2", 10, nil)

	require.True(t, r.GoalCompleted)
	cp := g.Progress.(*CompetitiveProgress)
	require.NotNil(t, cp.Winner)
	assert.Equal(t, "p2", *cp.Winner)
	assert.Equal(t, "p2", r.CompletionData["winner"])
}

// =============================================================================
// Cooperative
// =============================================================================

func TestCooperative_AdvancesPhases(t *testing.T) {
	p := testParams(TypeCooperative)
	p.Target = 10
	p.Milestones = []Milestone{
		{Title: "sweep", Threshold: 50, Target: 4},
		{Title: "mop", Threshold: 100},
	}
	g, clock := startedGoal(t, p)

	r := g.UpdateProgress("p1", 3, nil)
	assert.Nil(t, r.MilestoneReached)
	assert.Equal(t, 0, g.Progress.(*CooperativeProgress).CurrentPhase)

	clock.Advance(time.Minute)
	r = g.UpdateProgress("p2", 1, nil)
	require.NotNil(t, r.MilestoneReached)
	assert.Equal(t, "sweep", r.MilestoneReached.Title)
	assert.True(t, r.MilestoneReached.Notified)
	assert.False(t, r.GoalCompleted)

	cp := g.Progress.(*CooperativeProgress)
	assert.Equal(t, 1, cp.CurrentPhase)
	require.Len(t, cp.Phases, 1)
	assert.Equal(t, testutil.Epoch.Add(time.Minute), cp.Phases[0].CompletedAt)

	// Second phase falls back to the goal target.
	r = g.UpdateProgress("p1", 9, nil)
	assert.False(t, r.GoalCompleted)
	r = g.UpdateProgress("p2", 1, nil)
	assert.True(t, r.GoalCompleted)
	require.NotNil(t, r.MilestoneReached)
	assert.Equal(t, "mop", r.MilestoneReached.Title)
	assert.True(t, g.Progress.(*CooperativeProgress).Completed)
}

// =============================================================================
// Milestones
// =============================================================================

func TestMilestones_ReportedOncePerCall(t *testing.T) {
	p := testParams(TypeCollective)
	p.Target = 100
	p.Milestones = []Milestone{{Threshold: 25}, {Threshold: 50}, {Threshold: 75}}
	g, _ := startedGoal(t, p)

	// One jump past two thresholds reports only the first.
	r := g.UpdateProgress("p1", 60, nil)
	require.NotNil(t, r.MilestoneReached)
	assert.Equal(t, 25.0, r.MilestoneReached.Threshold)

	r = g.UpdateProgress("p1", 0, nil)
	require.NotNil(t, r.MilestoneReached)
	assert.Equal(t, 50.0, r.MilestoneReached.Threshold)

	r = g.UpdateProgress("p1", 0, nil)
	assert.Nil(t, r.MilestoneReached)

	for _, m := range g.Milestones[:2] {
		assert.True(t, m.Completed)
		assert.True(t, m.Notified)
	}
	assert.False(t, g.Milestones[2].Notified)
}

func TestMilestones_Competitive(t *testing.T) {
	p := testParams(TypeCompetitive)
	p.Target = 40
	p.Milestones = []Milestone{{Threshold: 50}}
	g, _ := startedGoal(t, p)

	r := g.UpdateProgress("p2", 19, nil)
	assert.Nil(t, r.MilestoneReached)

	r = g.UpdateProgress("p2", 1, nil)
	require.NotNil(t, r.MilestoneReached)
}

// =============================================================================
// Recurrence
// =============================================================================

func TestRecurring_FollowOnGoal(t *testing.T) {
	tests := []struct {
		name      string
		pattern   RecurringPattern
		wantStart time.Time
		wantEnd   time.Time
	}{
		{
			name:      "daily",
			pattern:   RecurringPattern{Type: RecurDaily, DurationDays: 1},
			wantStart: testutil.Epoch.AddDate(0, 0, 1),
			wantEnd:   testutil.Epoch.AddDate(0, 0, 2),
		},
		{
			name:      "weekly default duration",
			pattern:   RecurringPattern{Type: RecurWeekly},
			wantStart: testutil.Epoch.AddDate(0, 0, 7),
			wantEnd:   testutil.Epoch.AddDate(0, 0, 14),
		},
		{
			name:      "monthly",
			pattern:   RecurringPattern{Type: RecurMonthly, DurationDays: 30},
			wantStart: time.Date(2026, 2, 5, 9, 0, 0, 0, time.UTC),
			wantEnd:   time.Date(2026, 3, 7, 9, 0, 0, 0, time.UTC),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := testParams(TypeCollective)
			p.Milestones = []Milestone{{Threshold: 50}}
			pattern := tt.pattern
			p.Recurring = &pattern

			clock := testutil.NewFixedClock(testutil.Epoch)
			g, v := New(p, WithClock(clock.Now), WithIDGenerator(ids.NewFixedGenerator("g1", "g2")))
			require.True(t, v.IsValid)
			require.NoError(t, g.Start())

			r := g.UpdateProgress("p1", 20, nil)
			require.True(t, r.GoalCompleted)
			next := r.NextGoal
			require.NotNil(t, next)

			assert.Equal(t, "g2", next.ID)
			assert.Equal(t, "g1", next.ParentGoalID)
			assert.Equal(t, StatusDraft, next.Status)
			assert.Nil(t, next.Progress)
			assert.Empty(t, next.Contributions)
			assert.Equal(t, tt.wantStart, *next.StartDate)
			assert.Equal(t, tt.wantEnd, *next.EndDate)
			assert.False(t, next.Milestones[0].Notified)
			assert.True(t, g.Milestones[0].Notified)

			require.NoError(t, next.Start())
		})
	}
}

func TestComplete_ManualRecurring(t *testing.T) {
	p := testParams(TypeCollective)
	p.Recurring = &RecurringPattern{Type: RecurWeekly}
	g, _ := startedGoal(t, p)

	next, err := g.Complete(map[string]any{"trigger": "manual"})
	require.NoError(t, err)
	require.NotNil(t, next)
	assert.Equal(t, g.ID, next.ParentGoalID)
	assert.NotEqual(t, g.ID, next.ID)
}
