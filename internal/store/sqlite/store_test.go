package sqlite

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
	"github.com/roach88/questcore/internal/stats"
	"github.com/roach88/questcore/internal/store"
	"github.com/roach88/questcore/internal/testutil"
)

// =============================================================================
// Helpers
// =============================================================================

func openTestStore(t *testing.T) *Store {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	clock := testutil.NewFixedClock(testutil.Epoch)
	s, err := Open(filepath.Join(t.TempDir(), "test.db"), WithLogger(logger), WithClock(clock.Now))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func newGoalDoc(t *testing.T, id string, participants ...string) (*goal.Goal, goal.Document) {
	t.Helper()
	clock := testutil.NewFixedClock(testutil.Epoch)
	g, v := goal.New(goal.Params{
		Title:        "Weekly chores",
		Type:         goal.TypeCollective,
		Metric:       goal.MetricQuestCount,
		Target:       10,
		Participants: participants,
	}, goal.WithClock(clock.Now), goal.WithIDGenerator(ids.NewFixedGenerator(id)))
	require.True(t, v.IsValid)

	doc, err := g.ToPersistable()
	require.NoError(t, err)
	return g, doc
}

func toDoc(t *testing.T, g *goal.Goal) goal.Document {
	t.Helper()
	doc, err := g.ToPersistable()
	require.NoError(t, err)
	return doc
}

// =============================================================================
// Open
// =============================================================================

func TestOpen_Pragmas(t *testing.T) {
	s := openTestStore(t)

	assert.NoError(t, s.verifyPragma("journal_mode", "wal"))
	assert.NoError(t, s.verifyPragma("foreign_keys", "1"))
	assert.NoError(t, s.verifyPragma("user_version", "1"))
}

func TestOpen_Idempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.db")
	for i := 0; i < 3; i++ {
		s, err := Open(path)
		require.NoError(t, err, "iteration %d", i)
		require.NoError(t, s.Close())
	}

	s, err := Open(path)
	require.NoError(t, err)
	defer s.Close()

	for _, table := range []string{"goals", "goal_participants", "user_badges", "quest_completions"} {
		var name string
		err := s.db.QueryRow(`SELECT name FROM sqlite_master WHERE type = 'table' AND name = ?`, table).Scan(&name)
		assert.NoError(t, err, "table %s", table)
	}
}

func TestOpen_BadPath(t *testing.T) {
	_, err := Open(filepath.Join(t.TempDir(), "missing", "dir", "test.db"))
	assert.Error(t, err)
}

// =============================================================================
// Goals
// =============================================================================

func TestCreateAndLoadGoal(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	_, doc := newGoalDoc(t, "g-1", "kid-a", "kid-b")

	rev, err := s.CreateGoal(ctx, doc)
	require.NoError(t, err)
	assert.Len(t, rev, 64)

	rec, err := s.LoadGoal(ctx, "g-1")
	require.NoError(t, err)
	assert.Equal(t, rev, rec.Revision)
	assert.Equal(t, "Weekly chores", rec.Doc.Title)
	assert.Equal(t, []string{"kid-a", "kid-b"}, rec.Doc.Participants)
}

func TestCreateGoal_Duplicate(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	_, doc := newGoalDoc(t, "g-1", "kid-a")

	_, err := s.CreateGoal(ctx, doc)
	require.NoError(t, err)

	_, err = s.CreateGoal(ctx, doc)
	assert.ErrorIs(t, err, store.ErrConflict)
}

func TestLoadGoal_NotFound(t *testing.T) {
	s := openTestStore(t)

	_, err := s.LoadGoal(context.Background(), "nope")
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestSaveGoal_CompareAndSwap(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	g, doc := newGoalDoc(t, "g-1", "kid-a")

	rev1, err := s.CreateGoal(ctx, doc)
	require.NoError(t, err)

	require.NoError(t, g.Start())
	rev2, err := s.SaveGoal(ctx, toDoc(t, g), rev1)
	require.NoError(t, err)
	assert.NotEqual(t, rev1, rev2)

	// A writer still holding rev1 loses.
	_, err = s.SaveGoal(ctx, toDoc(t, g), rev1)
	assert.ErrorIs(t, err, store.ErrConflict)

	_, other := newGoalDoc(t, "g-2", "kid-a")
	_, err = s.SaveGoal(ctx, other, "")
	assert.ErrorIs(t, err, store.ErrNotFound)

	rec, err := s.LoadGoal(ctx, "g-1")
	require.NoError(t, err)
	assert.Equal(t, goal.StatusActive, rec.Doc.Status)
	assert.Equal(t, rev2, rec.Revision)
}

func TestActiveGoalsFor(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	for _, tc := range []struct {
		id     string
		start  bool
		people []string
	}{
		{"g-3", true, []string{"kid-a", "kid-b"}},
		{"g-1", true, []string{"kid-a"}},
		{"g-2", false, []string{"kid-a"}},
		{"g-4", true, []string{"kid-b"}},
	} {
		g, doc := newGoalDoc(t, tc.id, tc.people...)
		rev, err := s.CreateGoal(ctx, doc)
		require.NoError(t, err)
		if tc.start {
			require.NoError(t, g.Start())
			_, err = s.SaveGoal(ctx, toDoc(t, g), rev)
			require.NoError(t, err)
		}
	}

	recs, err := s.ActiveGoalsFor(ctx, "kid-a")
	require.NoError(t, err)
	require.Len(t, recs, 2)
	assert.Equal(t, "g-1", recs[0].Doc.ID)
	assert.Equal(t, "g-3", recs[1].Doc.ID)

	recs, err = s.ActiveGoalsFor(ctx, "nobody")
	require.NoError(t, err)
	assert.Empty(t, recs)
}

func TestCountCompletedGoals(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	g, doc := newGoalDoc(t, "g-1", "kid-a", "kid-b")
	rev, err := s.CreateGoal(ctx, doc)
	require.NoError(t, err)
	require.NoError(t, g.Start())
	_, err = g.Complete(nil)
	require.NoError(t, err)
	_, err = s.SaveGoal(ctx, toDoc(t, g), rev)
	require.NoError(t, err)

	n, err := s.CountCompletedGoals(ctx, "kid-b")
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	n, err = s.CountCompletedGoals(ctx, "kid-c")
	require.NoError(t, err)
	assert.Equal(t, 0, n)
}

// =============================================================================
// Badges
// =============================================================================

func TestBadges_CreateLoadSave(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	engine := badge.NewEngine(nil)

	_, err := s.LoadBadges(ctx, "kid-a")
	require.ErrorIs(t, err, store.ErrNotFound)

	rev1, err := s.SaveBadges(ctx, "kid-a", engine.InitializeUserBadges(), "")
	require.NoError(t, err)

	_, err = s.SaveBadges(ctx, "kid-a", engine.InitializeUserBadges(), "")
	assert.ErrorIs(t, err, store.ErrConflict)

	rec, err := s.LoadBadges(ctx, "kid-a")
	require.NoError(t, err)
	assert.Equal(t, rev1, rec.Revision)

	res := engine.CheckBadgeUnlocks(stats.Snapshot{stats.QuestsCompleted: 1}, rec.Records)
	rev2, err := s.SaveBadges(ctx, "kid-a", res.AllBadges, rec.Revision)
	require.NoError(t, err)

	_, err = s.SaveBadges(ctx, "kid-a", res.AllBadges, rev1)
	assert.ErrorIs(t, err, store.ErrConflict)

	rec, err = s.LoadBadges(ctx, "kid-a")
	require.NoError(t, err)
	assert.Equal(t, rev2, rec.Revision)
	assert.Equal(t, 1, badge.CountUnlocked(rec.Records))
}

// =============================================================================
// Completions
// =============================================================================

func TestCompletions_AppendAndOrder(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	at := testutil.Epoch
	in := []stats.Completion{
		{ID: "c-2", UserID: "kid-a", QuestID: "dishes", XP: 10, CompletedAt: at.Add(500 * time.Millisecond)},
		{ID: "c-1", UserID: "kid-a", QuestID: "laundry", XP: 20, Difficulty: "hard", CompletedAt: at.Add(550 * time.Millisecond)},
		{ID: "c-3", UserID: "kid-b", QuestID: "dishes", XP: 10, CompletedAt: at},
	}
	for _, c := range in {
		inserted, err := s.AppendCompletion(ctx, c)
		require.NoError(t, err)
		assert.True(t, inserted)
	}

	inserted, err := s.AppendCompletion(ctx, in[0])
	require.NoError(t, err)
	assert.False(t, inserted)

	got, err := s.Completions(ctx, "kid-a")
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "c-2", got[0].ID)
	assert.Equal(t, "c-1", got[1].ID)
	assert.Equal(t, "hard", got[1].Difficulty)
	assert.True(t, in[1].CompletedAt.Equal(got[1].CompletedAt))
}
