package monitor

import (
	"fraudmonitor/internal/model"

	"github.com/rs/zerolog/log"
)

// NotificationSink receives a best-effort cue each time an alert arrives.
//
// Implementations must never propagate failures: the sink is a non-critical
// side channel, and a broken cue must not affect buffer or stat correctness.
// The sink is injectable so tests and headless deployments can substitute
// NopSink.
type NotificationSink interface {
	// Notify is called once per alerted event, after buffers and counters
	// have been updated.
	Notify(event model.TransactionEvent)
}

// LogSink emits a structured log line per alert. It is the default sink.
type LogSink struct{}

// Notify implements NotificationSink.
func (LogSink) Notify(event model.TransactionEvent) {
	log.Warn().
		Int64("transactionId", event.ID).
		Int64("senderId", event.SenderID).
		Int64("receiverId", event.ReceiverID).
		Str("amount", event.Amount.String()).
		Str("type", event.Type).
		Float64("senderRisk", event.SenderRiskScore).
		Float64("receiverRisk", event.ReceiverRiskScore).
		Msg("fraud alert")
}

// NopSink discards all notifications. Useful in tests.
type NopSink struct{}

// Notify implements NotificationSink.
func (NopSink) Notify(model.TransactionEvent) {}
