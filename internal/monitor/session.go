package monitor

import (
	"sync"

	"fraudmonitor/internal/model"
	"fraudmonitor/internal/window"
)

const (
	// defaultTransactionWindow is the default capacity of the recent
	// transaction stream view.
	defaultTransactionWindow = 50

	// defaultAlertWindow is the default capacity of the alert feed view.
	defaultAlertWindow = 20
)

// SessionConfig defines settings for a monitoring session.
type SessionConfig struct {
	// TransactionWindow is the capacity of the recent-transaction buffer.
	TransactionWindow int

	// AlertWindow is the capacity of the alert-feed buffer.
	AlertWindow int

	// Sink receives alert notifications. Defaults to LogSink.
	Sink NotificationSink
}

// Session owns the derived state of one feed connection: both bounded
// windows, the running counters, and the protocol-error diagnostic. It is
// created when a connection is established and discarded with it; a
// reconnect always starts a fresh, zeroed session. Nothing here is global.
//
// Processing is driven by a single goroutine (the transport's message
// handler), so events are applied strictly in arrival order. The mutex
// exists only so snapshot readers on other goroutines observe consistent
// state, not to serialize processing.
type Session struct {
	mu            sync.RWMutex
	transactions  *window.Buffer[model.TransactionEvent]
	alerts        *window.Buffer[model.TransactionEvent]
	stats         *StatsAggregator
	sink          NotificationSink
	droppedFrames uint64
}

// Snapshot is a read-only view of a session's derived state.
type Snapshot struct {
	Stats         model.SessionStats
	Transactions  []model.TransactionEvent // newest-first
	Alerts        []model.TransactionEvent // newest-first, alerted events only
	DroppedFrames uint64                   // frames rejected at the decode boundary
}

// NewSession creates a fresh session with zeroed counters and empty windows.
func NewSession(cfg SessionConfig) *Session {
	if cfg.TransactionWindow <= 0 {
		cfg.TransactionWindow = defaultTransactionWindow
	}
	if cfg.AlertWindow <= 0 {
		cfg.AlertWindow = defaultAlertWindow
	}
	if cfg.Sink == nil {
		cfg.Sink = LogSink{}
	}

	return &Session{
		transactions: window.New[model.TransactionEvent](cfg.TransactionWindow),
		alerts:       window.New[model.TransactionEvent](cfg.AlertWindow),
		stats:        NewStatsAggregator(),
		sink:         cfg.Sink,
	}
}

// Process handles one transaction event to completion: classify, buffer,
// count, then notify if alerted. The returned classification lets callers
// forward the derived facts downstream without recomputing them.
func (s *Session) Process(event model.TransactionEvent) model.Classification {
	c := Classify(event)

	s.mu.Lock()
	s.transactions.Push(event)
	if c.IsAlert {
		s.alerts.Push(event)
	}
	s.stats.Record(c)
	s.mu.Unlock()

	// Notify outside the lock: the sink is best-effort and must not be able
	// to stall snapshot readers.
	if c.IsAlert {
		s.sink.Notify(event)
	}

	return c
}

// RecordDroppedFrame counts a frame that failed to decode. The session keeps
// going; the counter makes a malformed feed visible to operators.
func (s *Session) RecordDroppedFrame() {
	s.mu.Lock()
	s.droppedFrames++
	s.mu.Unlock()
}

// Stats returns a copy of the current counters.
func (s *Session) Stats() model.SessionStats {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.stats.Snapshot()
}

// Snapshot returns a consistent copy of counters and both windows.
func (s *Session) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return Snapshot{
		Stats:         s.stats.Snapshot(),
		Transactions:  s.transactions.Items(),
		Alerts:        s.alerts.Items(),
		DroppedFrames: s.droppedFrames,
	}
}
