package app

import (
	"context"
	"io"
	"log/slog"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/questcore/internal/badge"
	"github.com/roach88/questcore/internal/goal"
	"github.com/roach88/questcore/internal/ids"
	"github.com/roach88/questcore/internal/metrics"
	"github.com/roach88/questcore/internal/stats"
	"github.com/roach88/questcore/internal/store"
	"github.com/roach88/questcore/internal/store/sqlite"
	"github.com/roach88/questcore/internal/testutil"
)

// =============================================================================
// Helpers
// =============================================================================

type fixture struct {
	svc     *Service
	repo    store.Repository
	clock   *testutil.FixedClock
	metrics *metrics.Recorder
}

func newFixture(t *testing.T, wrap ...func(store.Repository) store.Repository) *fixture {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	clock := testutil.NewFixedClock(testutil.Epoch)

	db, err := sqlite.Open(filepath.Join(t.TempDir(), "app.db"), sqlite.WithLogger(logger), sqlite.WithClock(clock.Now))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	var repo store.Repository = db
	for _, w := range wrap {
		repo = w(repo)
	}

	rec := metrics.NewRecorder()
	svc := New(repo,
		WithLogger(logger),
		WithClock(clock.Now),
		WithIDGenerator(ids.NewSequenceGenerator("goal")),
		WithMetrics(rec),
	)
	return &fixture{svc: svc, repo: repo, clock: clock, metrics: rec}
}

func choreGoal(target float64, participants ...string) goal.Params {
	return goal.Params{
		Title:        "Kitchen crew",
		FamilyID:     "fam-1",
		CreatedBy:    "parent",
		Type:         goal.TypeCollective,
		Metric:       goal.MetricQuestCount,
		Target:       target,
		Participants: participants,
	}
}

func (f *fixture) startedGoal(t *testing.T, p goal.Params) *goal.Goal {
	t.Helper()
	ctx := context.Background()
	g, v, err := f.svc.CreateGoal(ctx, p)
	require.NoError(t, err)
	require.True(t, v.IsValid, "validation: %v", v.Errors)
	g, err = f.svc.StartGoal(ctx, g.ID)
	require.NoError(t, err)
	return g
}

func (f *fixture) complete(t *testing.T, id, user string, xp int) Outcome {
	t.Helper()
	out, err := f.svc.RecordQuestCompletion(context.Background(), stats.Completion{
		ID:          id,
		UserID:      user,
		QuestID:     "quest-dishes",
		XP:          xp,
		Difficulty:  "easy",
		CompletedAt: f.clock.Now(),
	})
	require.NoError(t, err)
	return out
}

func badgeIDs(badges []badge.Badge) []string {
	out := make([]string, 0, len(badges))
	for _, b := range badges {
		out = append(out, b.ID)
	}
	return out
}

// conflictOnce fails the first SaveGoal with ErrConflict after letting a
// competing write through.
type conflictOnce struct {
	store.Repository
	fired bool
}

func (c *conflictOnce) SaveGoal(ctx context.Context, doc goal.Document, expected string) (string, error) {
	if !c.fired {
		c.fired = true
		if _, err := c.Repository.SaveGoal(ctx, doc, expected); err != nil {
			return "", err
		}
		return "", store.ErrConflict
	}
	return c.Repository.SaveGoal(ctx, doc, expected)
}

// alwaysConflict rejects every SaveGoal.
type alwaysConflict struct {
	store.Repository
	calls int
}

func (a *alwaysConflict) SaveGoal(context.Context, goal.Document, string) (string, error) {
	a.calls++
	return "", store.ErrConflict
}

// =============================================================================
// Lifecycle
// =============================================================================

func TestCreateGoal_InvalidParams(t *testing.T) {
	f := newFixture(t)

	g, v, err := f.svc.CreateGoal(context.Background(), goal.Params{Type: goal.TypeCollective})
	require.NoError(t, err)
	assert.Nil(t, g)
	assert.False(t, v.IsValid)
	assert.NotEmpty(t, v.Errors)
}

func TestLifecycle_PersistsTransitions(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	g := f.startedGoal(t, choreGoal(5, "alice", "bob"))
	assert.Equal(t, "goal-1", g.ID)

	_, err := f.svc.PauseGoal(ctx, g.ID, "holiday", "parent")
	require.NoError(t, err)

	loaded, err := f.svc.LoadGoal(ctx, g.ID)
	require.NoError(t, err)
	assert.Equal(t, goal.StatusPaused, loaded.Status)
	assert.Equal(t, "holiday", loaded.PauseReason)

	res, _, err := f.svc.Contribute(ctx, g.ID, "alice", 1, nil)
	require.NoError(t, err)
	assert.False(t, res.Updated)
	assert.Equal(t, goal.ReasonNotActive, res.Reason)

	_, err = f.svc.ResumeGoal(ctx, g.ID, "parent")
	require.NoError(t, err)

	cancelled, err := f.svc.CancelGoal(ctx, g.ID, "moved house", "parent")
	require.NoError(t, err)
	assert.Equal(t, goal.StatusCancelled, cancelled.Status)
}

func TestStartGoal_InvalidStateIsWrapped(t *testing.T) {
	f := newFixture(t)
	g := f.startedGoal(t, choreGoal(5, "alice"))

	_, err := f.svc.StartGoal(context.Background(), g.ID)
	require.Error(t, err)
	assert.True(t, goal.IsInvalidState(err))
}

func TestLoadGoal_NotFound(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.LoadGoal(context.Background(), "missing")
	assert.ErrorIs(t, err, store.ErrNotFound)
}

// =============================================================================
// Contributions
// =============================================================================

func TestContribute_CompletesAndRewards(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	p := choreGoal(4, "alice", "bob")
	p.Milestones = []goal.Milestone{{Title: "halfway", Threshold: 50}}
	g := f.startedGoal(t, p)

	res, _, err := f.svc.Contribute(ctx, g.ID, "alice", 2, nil)
	require.NoError(t, err)
	require.True(t, res.Updated)
	require.NotNil(t, res.MilestoneReached)
	assert.Equal(t, 50.0, res.MilestoneReached.Threshold)

	res, done, err := f.svc.Contribute(ctx, g.ID, "bob", 2, nil)
	require.NoError(t, err)
	assert.True(t, res.GoalCompleted)
	assert.Equal(t, goal.StatusCompleted, done.Status)
	assert.Equal(t, 360, done.CalculateXPReward())

	n, err := f.repo.CountCompletedGoals(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestContribute_NonParticipantNotSaved(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	g := f.startedGoal(t, choreGoal(4, "alice"))

	before, err := f.repo.LoadGoal(ctx, g.ID)
	require.NoError(t, err)

	res, _, err := f.svc.Contribute(ctx, g.ID, "mallory", 1, nil)
	require.NoError(t, err)
	assert.False(t, res.Updated)
	assert.Equal(t, goal.ReasonNotParticipant, res.Reason)

	after, err := f.repo.LoadGoal(ctx, g.ID)
	require.NoError(t, err)
	assert.Equal(t, before.Revision, after.Revision)
}

func TestContribute_DecomposedParticipantSurvivesReload(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	jose := "Jose\u0301"
	g := f.startedGoal(t, choreGoal(3, jose, "p2"))

	loaded, err := f.svc.LoadGoal(ctx, g.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{jose, "p2"}, loaded.Participants)

	res, _, err := f.svc.Contribute(ctx, g.ID, jose, 1, nil)
	require.NoError(t, err)
	require.True(t, res.Updated, "reason: %s", res.Reason)

	res, _, err = f.svc.Contribute(ctx, g.ID, jose, 1, nil)
	require.NoError(t, err)
	require.True(t, res.Updated, "reason: %s", res.Reason)
	p := res.NewProgress.(*goal.CollectiveProgress)
	assert.Equal(t, map[string]float64{jose: 2}, p.Contributions)

	active, err := f.repo.ActiveGoalsFor(ctx, jose)
	require.NoError(t, err)
	require.Len(t, active, 1)
	assert.Equal(t, g.ID, active[0].Doc.ID)
}

func TestContribute_ExpiryIsPersisted(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	g := f.startedGoal(t, choreGoal(4, "alice"))

	f.clock.Advance(8 * 24 * time.Hour)
	res, _, err := f.svc.Contribute(ctx, g.ID, "alice", 1, nil)
	require.NoError(t, err)
	assert.False(t, res.Updated)
	assert.Equal(t, goal.ReasonExpired, res.Reason)

	loaded, err := f.svc.LoadGoal(ctx, g.ID)
	require.NoError(t, err)
	assert.Equal(t, goal.StatusExpired, loaded.Status)
}

func TestContribute_RecurringStoresFollowOn(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	p := choreGoal(1, "alice")
	p.Recurring = &goal.RecurringPattern{Type: goal.RecurWeekly}
	g := f.startedGoal(t, p)

	res, _, err := f.svc.Contribute(ctx, g.ID, "alice", 1, nil)
	require.NoError(t, err)
	require.True(t, res.GoalCompleted)
	require.NotNil(t, res.NextGoal)

	next, err := f.svc.LoadGoal(ctx, res.NextGoal.ID)
	require.NoError(t, err)
	assert.Equal(t, "goal-2", next.ID)
	assert.Equal(t, goal.StatusDraft, next.Status)
	assert.Equal(t, g.ID, next.ParentGoalID)
	require.NotNil(t, next.StartDate)
	assert.Equal(t, testutil.Epoch.AddDate(0, 0, 7), *next.StartDate)
}

func TestContribute_RetriesOnConflict(t *testing.T) {
	var wrapped *conflictOnce
	f := newFixture(t, func(r store.Repository) store.Repository {
		wrapped = &conflictOnce{Repository: r, fired: true}
		return wrapped
	})
	ctx := context.Background()
	g := f.startedGoal(t, choreGoal(10, "alice"))
	wrapped.fired = false

	res, updated, err := f.svc.Contribute(ctx, g.ID, "alice", 1, nil)
	require.NoError(t, err)
	assert.True(t, res.Updated)

	// The competing write landed first, so the retry builds on it.
	progress, ok := updated.Progress.(*goal.CollectiveProgress)
	require.True(t, ok)
	assert.Equal(t, 2.0, progress.Total)
}

func TestContribute_GivesUpAfterMaxAttempts(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	g := f.startedGoal(t, choreGoal(10, "alice"))

	wrapped := &alwaysConflict{Repository: f.repo}
	svc := New(wrapped, WithClock(f.clock.Now), WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))))

	_, _, err := svc.Contribute(ctx, g.ID, "alice", 1, nil)
	assert.ErrorIs(t, err, store.ErrConflict)
	assert.Equal(t, MaxAttempts, wrapped.calls)
}

// =============================================================================
// Quest completions
// =============================================================================

func TestRecordQuestCompletion_FirstQuest(t *testing.T) {
	f := newFixture(t)

	out := f.complete(t, "c1", "alice", 30)
	assert.False(t, out.Duplicate)
	assert.Equal(t, []string{"first_quest"}, badgeIDs(out.NewlyUnlocked))
	assert.Equal(t, 25, out.BadgeXP)
	assert.Empty(t, out.Goals)
	assert.Equal(t, 1.0, out.Snapshot.Number(stats.QuestsCompleted))
	assert.Equal(t, 1.0, out.Snapshot.Number(stats.BadgesEarned))
}

func TestRecordQuestCompletion_Duplicate(t *testing.T) {
	f := newFixture(t)
	f.complete(t, "c1", "alice", 30)

	out := f.complete(t, "c1", "alice", 30)
	assert.True(t, out.Duplicate)
	assert.Empty(t, out.NewlyUnlocked)

	snap, err := f.svc.Snapshot(context.Background(), "alice")
	require.NoError(t, err)
	assert.Equal(t, 1.0, snap.Number(stats.QuestsCompleted))
}

func TestRecordQuestCompletion_DrivesFamilyGoal(t *testing.T) {
	f := newFixture(t)
	g := f.startedGoal(t, choreGoal(3, "alice", "bob"))

	out := f.complete(t, "c1", "alice", 30)
	require.Len(t, out.Goals, 1)
	assert.Equal(t, g.ID, out.Goals[0].GoalID)
	assert.Equal(t, 1.0, out.Goals[0].Delta)
	assert.True(t, out.Goals[0].Result.Updated)

	f.complete(t, "c2", "bob", 30)
	out = f.complete(t, "c3", "alice", 30)

	require.Len(t, out.Goals, 1)
	assert.True(t, out.Goals[0].Result.GoalCompleted)
	assert.Equal(t, 360, out.Goals[0].XPReward)
	assert.Equal(t, []string{"family_goal_1"}, badgeIDs(out.NewlyUnlocked))
	assert.Equal(t, 75, out.BadgeXP)
	assert.Equal(t, 1.0, out.Snapshot.Number(stats.FamilyGoalsCompleted))

	// bob's family badge unlocks on his next completion.
	out = f.complete(t, "c4", "bob", 30)
	assert.Equal(t, []string{"family_goal_1"}, badgeIDs(out.NewlyUnlocked))
	assert.Empty(t, out.Goals)
}

func TestRecordQuestCompletion_XPMetric(t *testing.T) {
	f := newFixture(t)
	p := choreGoal(100, "alice")
	p.Metric = goal.MetricXPTotal
	g := f.startedGoal(t, p)

	out := f.complete(t, "c1", "alice", 40)
	require.Len(t, out.Goals, 1)
	assert.Equal(t, 40.0, out.Goals[0].Delta)

	loaded, err := f.svc.LoadGoal(context.Background(), g.ID)
	require.NoError(t, err)
	progress := loaded.Progress.(*goal.CollectiveProgress)
	assert.Equal(t, 40.0, progress.Total)
}

func TestRecordQuestCompletion_CustomMetricIgnored(t *testing.T) {
	f := newFixture(t)
	p := choreGoal(5, "alice")
	p.Metric = goal.MetricCustom
	f.startedGoal(t, p)

	out := f.complete(t, "c1", "alice", 40)
	assert.Empty(t, out.Goals)
}

// =============================================================================
// Reads
// =============================================================================

func TestBadges_UnknownUserAllLocked(t *testing.T) {
	f := newFixture(t)

	badges, err := f.svc.Badges(context.Background(), "carol")
	require.NoError(t, err)
	assert.Len(t, badges, badge.DefaultCatalog().Len())
	assert.Empty(t, badge.Unlocked(badges))
}

func TestBadges_ReflectsUnlocks(t *testing.T) {
	f := newFixture(t)
	f.complete(t, "c1", "alice", 30)

	badges, err := f.svc.Badges(context.Background(), "alice")
	require.NoError(t, err)
	unlocked := badge.Unlocked(badges)
	require.Len(t, unlocked, 1)
	assert.Equal(t, "first_quest", unlocked[0].ID)
	require.NotNil(t, unlocked[0].DateEarned)
	assert.Equal(t, testutil.Epoch, *unlocked[0].DateEarned)
}

func TestWithCatalog_UsesCustomCatalog(t *testing.T) {
	f := newFixture(t)
	catalog := badge.MustCatalog([]badge.Definition{
		{ID: "two_quests", Name: "Double", Category: badge.CategoryMilestone, Rarity: badge.RarityCommon,
			XPReward: 10, Condition: badge.AtLeast(stats.QuestsCompleted, 2)},
	})
	f.svc = New(f.repo, WithClock(f.clock.Now), WithCatalog(catalog),
		WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))))

	out := f.complete(t, "c1", "alice", 10)
	assert.Empty(t, out.NewlyUnlocked)

	out = f.complete(t, "c2", "alice", 10)
	assert.Equal(t, []string{"two_quests"}, badgeIDs(out.NewlyUnlocked))
}
