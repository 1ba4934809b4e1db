// Package model defines core data types for the fraud alert monitoring service.
//
// This package contains the fundamental structures used throughout the system
// for representing scored transactions, alert classifications, and per-session
// monitoring statistics. Monetary amounts use decimal.Decimal for precise
// financial values and to avoid floating-point rounding issues.
package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// ConnectionState describes the lifecycle state of the upstream feed connection.
type ConnectionState int32

const (
	// Disconnected means no transport is active and no frames will arrive.
	Disconnected ConnectionState = iota

	// Connecting means the initial handshake is in progress.
	Connecting

	// Connected means the transport is established and frames are flowing.
	Connected

	// Reconnecting means the transport dropped and a new dial is being attempted
	// with backoff.
	Reconnecting
)

// String returns a human-readable name for the connection state.
func (s ConnectionState) String() string {
	switch s {
	case Disconnected:
		return "disconnected"
	case Connecting:
		return "connecting"
	case Connected:
		return "connected"
	case Reconnecting:
		return "reconnecting"
	default:
		return "unknown"
	}
}

// TransactionEvent represents a single scored transaction from the upstream
// inference service.
//
// Events are immutable once received: the monitor never rewrites the upstream
// alerting decision or the ground-truth label, it only derives facts from them.
//
// Invariants carried by the wire schema and enforced at the decode boundary:
//   - Amount >= 0
//   - SenderRiskScore and ReceiverRiskScore in [0, 1]
//   - FraudActual in {0, 1}
type TransactionEvent struct {
	ID                int64           `json:"transaction_id"`      // Upstream transaction identifier
	Timestamp         time.Time       `json:"timestamp"`           // Transaction time as reported upstream
	SenderID          int64           `json:"sender_id"`           // Sending account identifier
	ReceiverID        int64           `json:"receiver_id"`         // Receiving account identifier
	Amount            decimal.Decimal `json:"amount"`              // Transferred amount (precise decimal)
	Type              string          `json:"transaction_type"`    // Transaction type (e.g. "normal", "laundering")
	IsAlert           bool            `json:"is_alert"`            // Alerting decision made upstream
	SenderRiskScore   float64         `json:"sender_risk_score"`   // Model fraud probability for the sender
	ReceiverRiskScore float64         `json:"receiver_risk_score"` // Model fraud probability for the receiver
	FraudActual       int             `json:"fraud_actual"`        // Ground-truth label: 1 fraud, 0 legitimate
}

// Classification holds the alert outcome facts derived from one event.
//
// True negatives and false negatives are deliberately not represented: the
// monitor scores only the alerted subset, which is a scope boundary inherited
// from the upstream contract rather than an oversight.
type Classification struct {
	IsAlert         bool `json:"is_alert"`          // Event was flagged upstream
	IsTruePositive  bool `json:"is_true_positive"`  // Alert confirmed by the ground-truth label
	IsFalsePositive bool `json:"is_false_positive"` // Alert contradicted by the ground-truth label
}

// SessionStats holds the running counters for one monitoring session.
//
// Counters are monotonically non-decreasing for the life of a session and
// reset only when a new session (new connection) starts. The invariants
// Alerts <= Total and TruePositives + FalsePositives == Alerts hold after
// every processed event.
type SessionStats struct {
	Total          uint64 `json:"total_transactions"` // All transaction events processed
	Alerts         uint64 `json:"total_alerts"`       // Events flagged upstream
	TruePositives  uint64 `json:"true_positives"`     // Alerts with FraudActual == 1
	FalsePositives uint64 `json:"false_positives"`    // Alerts with FraudActual == 0
}
