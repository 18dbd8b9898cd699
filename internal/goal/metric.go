package goal

import "github.com/roach88/questcore/internal/stats"

var metricStats = map[Metric]string{
	MetricQuestCount:   stats.QuestsCompleted,
	MetricXPTotal:      stats.TotalXP,
	MetricStreakDays:   stats.CurrentStreak,
	MetricBadgesEarned: stats.BadgesEarned,
}

// MetricValue reads the counter that m tracks from s. Custom metrics have
// no counter and report false.
func MetricValue(m Metric, s stats.Snapshot) (float64, bool) {
	key, ok := metricStats[m]
	if !ok {
		return 0, false
	}
	return s.Number(key), true
}

// MetricDelta returns how much m grew between two snapshots, suitable for
// UpdateProgress. Decreases report zero.
func MetricDelta(m Metric, before, after stats.Snapshot) (float64, bool) {
	a, ok := MetricValue(m, after)
	if !ok {
		return 0, false
	}
	b, _ := MetricValue(m, before)
	return max(0, a-b), true
}
