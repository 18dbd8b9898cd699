// Package metrics counts badge unlocks and goal activity with Prometheus.
//
// The process is short-lived, so counters are exported through a
// node-exporter textfile rather than a scrape endpoint.
package metrics

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/roach88/questcore/internal/badge"
	"github.com/roach88/questcore/internal/goal"
)

// Update result labels.
const (
	ResultUpdated        = "updated"
	ResultNotActive      = "not_active"
	ResultNotParticipant = "not_participant"
	ResultExpired        = "expired"
	ResultInvalidValue   = "invalid_value"
)

var reasonLabels = map[string]string{
	goal.ReasonNotActive:      ResultNotActive,
	goal.ReasonNotParticipant: ResultNotParticipant,
	goal.ReasonExpired:        ResultExpired,
	goal.ReasonInvalidValue:   ResultInvalidValue,
}

// Recorder owns a registry and the questcore counters. A nil *Recorder is
// valid and records nothing.
type Recorder struct {
	registry *prometheus.Registry

	badgesUnlocked  *prometheus.CounterVec
	badgeXP         prometheus.Counter
	goalTransitions *prometheus.CounterVec
	goalUpdates     *prometheus.CounterVec
	milestones      *prometheus.CounterVec
}

// NewRecorder creates a Recorder with its own registry.
func NewRecorder() *Recorder {
	r := &Recorder{
		registry: prometheus.NewRegistry(),
		badgesUnlocked: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "questcore_badges_unlocked_total",
				Help: "Total number of badges unlocked",
			},
			[]string{"category", "rarity"},
		),
		badgeXP: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "questcore_badge_xp_awarded_total",
			Help: "Total XP awarded for badge unlocks",
		}),
		goalTransitions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "questcore_goal_transitions_total",
				Help: "Total number of goal status transitions",
			},
			[]string{"type", "status"},
		),
		goalUpdates: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "questcore_goal_updates_total",
				Help: "Total number of goal progress updates by result",
			},
			[]string{"result"},
		),
		milestones: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "questcore_milestones_reached_total",
				Help: "Total number of goal milestones reached",
			},
			[]string{"type"},
		),
	}
	r.registry.MustRegister(r.badgesUnlocked, r.badgeXP, r.goalTransitions, r.goalUpdates, r.milestones)
	return r
}

// Registry exposes the underlying registry.
func (r *Recorder) Registry() *prometheus.Registry {
	if r == nil {
		return nil
	}
	return r.registry
}

// BadgesUnlocked counts an unlock result.
func (r *Recorder) BadgesUnlocked(res badge.UnlockResult) {
	if r == nil {
		return
	}
	for _, b := range res.NewlyUnlocked {
		r.badgesUnlocked.WithLabelValues(string(b.Category), string(b.Rarity)).Inc()
	}
	r.badgeXP.Add(float64(res.TotalXPReward))
}

// GoalTransition counts a goal entering status.
func (r *Recorder) GoalTransition(t goal.Type, status goal.Status) {
	if r == nil {
		return
	}
	r.goalTransitions.WithLabelValues(string(t), string(status)).Inc()
}

// GoalUpdate counts one UpdateProgress outcome, including any milestone
// and completion it produced.
func (r *Recorder) GoalUpdate(t goal.Type, res goal.UpdateResult) {
	if r == nil {
		return
	}
	label := ResultUpdated
	if !res.Updated {
		label = reasonLabels[res.Reason]
		if label == "" {
			label = "rejected"
		}
	}
	r.goalUpdates.WithLabelValues(label).Inc()

	if res.MilestoneReached != nil {
		r.milestones.WithLabelValues(string(t)).Inc()
	}
	if res.GoalCompleted {
		r.goalTransitions.WithLabelValues(string(t), string(goal.StatusCompleted)).Inc()
	}
	if res.Reason == goal.ReasonExpired {
		r.goalTransitions.WithLabelValues(string(t), string(goal.StatusExpired)).Inc()
	}
}

// WriteTextfile writes all counters in the text exposition format for the
// node-exporter textfile collector. The write is atomic.
func (r *Recorder) WriteTextfile(path string) error {
	if r == nil || path == "" {
		return nil
	}
	if err := prometheus.WriteToTextfile(path, r.registry); err != nil {
		return fmt.Errorf("write metrics textfile: %w", err)
	}
	return nil
}
