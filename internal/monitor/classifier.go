// Package monitor provides the session-scoped core of the real-time alert
// monitor: classification of scored transactions, running statistics, bounded
// history windows, and the alert notification side channel.
package monitor

import "fraudmonitor/internal/model"

// Classify derives alert outcome facts from a single transaction event.
//
// The alerting decision itself is a trust boundary: it was made upstream and
// is never recomputed here. Classification only relates that decision to the
// ground-truth label. Non-alerted events carry no outcome facts, so true and
// false negatives are not tracked.
func Classify(event model.TransactionEvent) model.Classification {
	c := model.Classification{IsAlert: event.IsAlert}
	if c.IsAlert {
		c.IsTruePositive = event.FraudActual == 1
		c.IsFalsePositive = event.FraudActual == 0
	}
	return c
}
