package monitor

import "fraudmonitor/internal/model"

// StatsAggregator maintains the four running counters for one session.
//
// There is no decrement path: counters only grow, and replayed events (same
// upstream id) count again. Deduplication is explicitly not this component's
// job. The aggregator is driven by a single processing goroutine and performs
// no locking of its own; Session provides the synchronization for readers.
type StatsAggregator struct {
	stats model.SessionStats
}

// NewStatsAggregator returns a zeroed aggregator for a fresh session.
func NewStatsAggregator() *StatsAggregator {
	return &StatsAggregator{}
}

// Record applies one classification to the counters.
func (a *StatsAggregator) Record(c model.Classification) {
	a.stats.Total++
	if c.IsAlert {
		a.stats.Alerts++
	}
	if c.IsTruePositive {
		a.stats.TruePositives++
	}
	if c.IsFalsePositive {
		a.stats.FalsePositives++
	}
}

// Snapshot returns a copy of the current counters.
func (a *StatsAggregator) Snapshot() model.SessionStats {
	return a.stats
}
