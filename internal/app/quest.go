package app

import (
	"context"
	"errors"
	"fmt"
	"reflect"

	"github.com/roach88/questcore/internal/badge"
	"github.com/roach88/questcore/internal/goal"
	"github.com/roach88/questcore/internal/stats"
	"github.com/roach88/questcore/internal/store"
)

// GoalUpdate is the effect of one quest completion on one goal.
type GoalUpdate struct {
	GoalID   string            `json:"goalId"`
	Metric   goal.Metric       `json:"metric"`
	Delta    float64           `json:"delta"`
	Result   goal.UpdateResult `json:"result"`
	XPReward int               `json:"xpReward,omitempty"`
}

// Outcome summarizes RecordQuestCompletion.
type Outcome struct {
	// Duplicate is set when the completion id was already recorded;
	// nothing else was evaluated.
	Duplicate bool `json:"duplicate"`

	Snapshot      stats.Snapshot `json:"snapshot,omitempty"`
	NewlyUnlocked []badge.Badge  `json:"newlyUnlocked"`
	BadgeXP       int            `json:"badgeXp"`
	Goals         []GoalUpdate   `json:"goals"`
	FollowOns     []string       `json:"followOnGoals,omitempty"`
}

// RecordQuestCompletion stores c and applies its consequences:
//
//  1. the completion is appended to the user's log
//  2. the stats snapshot is rebuilt
//  3. badges are evaluated and saved
//  4. each active goal the user joins receives the metric increase
//
// Badges are evaluated again when a goal completed, so family goal badges
// unlock in the same call.
func (s *Service) RecordQuestCompletion(ctx context.Context, c stats.Completion) (Outcome, error) {
	inserted, err := s.repo.AppendCompletion(ctx, c)
	if err != nil {
		return Outcome{}, fmt.Errorf("record completion: %w", err)
	}
	if !inserted {
		s.logger.Info("completion already recorded", "user_id", c.UserID, "completion_id", c.ID)
		return Outcome{Duplicate: true, NewlyUnlocked: []badge.Badge{}, Goals: []GoalUpdate{}}, nil
	}

	completions, err := s.repo.Completions(ctx, c.UserID)
	if err != nil {
		return Outcome{}, fmt.Errorf("record completion: %w", err)
	}
	previous := make([]stats.Completion, 0, len(completions))
	for _, pc := range completions {
		if pc.ID != c.ID {
			previous = append(previous, pc)
		}
	}

	familyGoals, err := s.repo.CountCompletedGoals(ctx, c.UserID)
	if err != nil {
		return Outcome{}, fmt.Errorf("record completion: %w", err)
	}
	badgesBefore, err := s.unlockedCount(ctx, c.UserID)
	if err != nil {
		return Outcome{}, fmt.Errorf("record completion: %w", err)
	}

	before := s.snapshot(previous, familyGoals, badgesBefore)
	after := s.snapshot(completions, familyGoals, badgesBefore)

	out := Outcome{NewlyUnlocked: []badge.Badge{}, Goals: []GoalUpdate{}}
	unlocked, err := s.evaluateBadges(ctx, c.UserID, after)
	if err != nil {
		return Outcome{}, fmt.Errorf("record completion: %w", err)
	}
	out.add(unlocked)
	after = after.With(stats.BadgesEarned, float64(badgesBefore+len(unlocked.NewlyUnlocked)))

	goals, err := s.repo.ActiveGoalsFor(ctx, c.UserID)
	if err != nil {
		return Outcome{}, fmt.Errorf("record completion: %w", err)
	}

	completedGoals := 0
	event := map[string]any{"completionId": c.ID, "questId": c.QuestID}
	for _, rec := range goals {
		delta, ok := goal.MetricDelta(rec.Doc.Metric, before, after)
		if !ok || delta == 0 {
			continue
		}
		res, g, err := s.Contribute(ctx, rec.Doc.ID, c.UserID, delta, event)
		if err != nil {
			return Outcome{}, fmt.Errorf("record completion: %w", err)
		}
		gu := GoalUpdate{GoalID: rec.Doc.ID, Metric: rec.Doc.Metric, Delta: delta, Result: res}
		if res.GoalCompleted {
			completedGoals++
			gu.XPReward = g.CalculateXPReward()
		}
		if res.NextGoal != nil {
			out.FollowOns = append(out.FollowOns, res.NextGoal.ID)
		}
		out.Goals = append(out.Goals, gu)
	}

	if completedGoals > 0 {
		after = after.With(stats.FamilyGoalsCompleted, float64(familyGoals+completedGoals))
		again, err := s.evaluateBadges(ctx, c.UserID, after)
		if err != nil {
			return Outcome{}, fmt.Errorf("record completion: %w", err)
		}
		out.add(again)
	}

	out.Snapshot = after
	s.logger.Info("quest completion recorded",
		"user_id", c.UserID,
		"completion_id", c.ID,
		"badges_unlocked", len(out.NewlyUnlocked),
		"goals_updated", len(out.Goals))
	return out, nil
}

func (o *Outcome) add(res badge.UnlockResult) {
	o.NewlyUnlocked = append(o.NewlyUnlocked, res.NewlyUnlocked...)
	o.BadgeXP += res.TotalXPReward
}

func (s *Service) snapshot(completions []stats.Completion, familyGoals, badgesEarned int) stats.Snapshot {
	return stats.Build(completions,
		stats.WithLocation(s.loc),
		stats.WithNow(s.now()),
		stats.WithFamilyGoalsCompleted(familyGoals),
		stats.WithBadgesEarned(badgesEarned),
	)
}

func (s *Service) unlockedCount(ctx context.Context, userID string) (int, error) {
	rec, err := s.repo.LoadBadges(ctx, userID)
	if errors.Is(err, store.ErrNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return badge.CountUnlocked(rec.Records), nil
}

// evaluateBadges runs the unlock check for userID and saves the result
// when anything changed. A new user starts from InitializeUserBadges.
func (s *Service) evaluateBadges(ctx context.Context, userID string, snap stats.Snapshot) (badge.UnlockResult, error) {
	for attempt := 1; ; attempt++ {
		records, rev, err := s.loadBadgeRecords(ctx, userID)
		if err != nil {
			return badge.UnlockResult{}, err
		}

		res := s.badges.CheckBadgeUnlocks(snap, records)
		if rev != "" && reflect.DeepEqual(res.AllBadges, records) {
			return res, nil
		}

		_, err = s.repo.SaveBadges(ctx, userID, res.AllBadges, rev)
		if errors.Is(err, store.ErrConflict) && attempt < MaxAttempts {
			s.logger.Warn("badge revision conflict, retrying", "user_id", userID, "attempt", attempt)
			continue
		}
		if err != nil {
			return badge.UnlockResult{}, err
		}

		s.metrics.BadgesUnlocked(res)
		for _, b := range res.NewlyUnlocked {
			s.logger.Info("badge unlocked", "user_id", userID, "badge_id", b.ID, "xp_reward", b.XPReward)
		}
		return res, nil
	}
}

func (s *Service) loadBadgeRecords(ctx context.Context, userID string) ([]badge.Record, string, error) {
	rec, err := s.repo.LoadBadges(ctx, userID)
	if errors.Is(err, store.ErrNotFound) {
		return s.badges.InitializeUserBadges(), "", nil
	}
	if err != nil {
		return nil, "", err
	}
	return rec.Records, rec.Revision, nil
}

// Badges returns the user's collection joined with the catalog. Catalog
// entries with no stored record appear locked.
func (s *Service) Badges(ctx context.Context, userID string) ([]badge.Badge, error) {
	records, _, err := s.loadBadgeRecords(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("badges for %s: %w", userID, err)
	}
	have := make(map[string]bool, len(records))
	for _, r := range records {
		have[r.BadgeID] = true
	}
	for _, def := range s.badges.Catalog().Definitions() {
		if !have[def.ID] {
			records = append(records, badge.Record{BadgeID: def.ID})
		}
	}
	return s.badges.Join(records), nil
}

// Snapshot rebuilds the current stats snapshot for userID.
func (s *Service) Snapshot(ctx context.Context, userID string) (stats.Snapshot, error) {
	completions, err := s.repo.Completions(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("snapshot for %s: %w", userID, err)
	}
	familyGoals, err := s.repo.CountCompletedGoals(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("snapshot for %s: %w", userID, err)
	}
	badgesEarned, err := s.unlockedCount(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("snapshot for %s: %w", userID, err)
	}
	return s.snapshot(completions, familyGoals, badgesEarned), nil
}
