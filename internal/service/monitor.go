package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog/log"

	"fraudmonitor/internal/feed"
	"fraudmonitor/internal/model"
	"fraudmonitor/internal/monitor"
	"fraudmonitor/internal/window"
)

const (
	// defaultNoticeHistory bounds the operator notice feed.
	defaultNoticeHistory = 50

	// updateBuffer absorbs bursts between the processing goroutine and the
	// dispatcher; overflow drops pushes, never events.
	updateBuffer = 1000
)

// Config defines settings for the Monitor.
type Config struct {
	// Endpoint is the WebSocket URL of the alert feed.
	Endpoint string

	// TransactionWindow and AlertWindow size the session's bounded views.
	// Zero selects the session defaults.
	TransactionWindow int
	AlertWindow       int

	// Sink receives alert notifications; nil selects the logging sink.
	Sink monitor.NotificationSink

	// ReconnectWait enables reconnect hardening when positive; see feed.Config.
	ReconnectWait    time.Duration
	MaxReconnectWait time.Duration

	// TLSInsecureSkip disables TLS certificate verification on the feed dial.
	TLSInsecureSkip bool

	// NoticeHistory bounds the retained operator notices. Zero selects the default.
	NoticeHistory int

	// Dispatcher configures the viewer fan-out.
	Dispatcher DispatcherConfig
}

// Notice is a non-blocking operator message, typically an upstream-reported
// error. Notices inform; they never interrupt processing.
type Notice struct {
	Time    time.Time `json:"time"`
	Message string    `json:"message"`
}

// Status is the externally visible health view of the monitor.
type Status struct {
	State   string   `json:"state"`
	Notices []Notice `json:"notices"` // newest-first
}

// Monitor owns one feed connection and the session state derived from it.
//
// A session (windows plus counters) lives exactly as long as its connection:
// every successful dial, including reconnects, swaps in a fresh zeroed
// session. The presentation layer only ever reads copies.
type Monitor struct {
	cfg Config

	mu      sync.RWMutex
	client  *feed.Client
	session *monitor.Session
	notices *window.Buffer[Notice]

	dispatcher *Dispatcher
	updates    chan Update
	started    atomic.Bool
	cancel     context.CancelFunc
}

// New creates a Monitor in the stopped state.
func New(cfg Config) *Monitor {
	if cfg.NoticeHistory <= 0 {
		cfg.NoticeHistory = defaultNoticeHistory
	}

	return &Monitor{
		cfg:        cfg,
		notices:    window.New[Notice](cfg.NoticeHistory),
		dispatcher: NewDispatcher(cfg.Dispatcher),
		updates:    make(chan Update, updateBuffer),
	}
}

// Start connects to the feed and begins processing. A connection failure is
// returned to the caller and leaves the monitor stopped; the connectivity
// indicator reads Disconnected.
func (m *Monitor) Start(ctx context.Context) error {
	if !m.started.CompareAndSwap(false, true) {
		return errors.New("monitor already started")
	}

	ctx, cancel := context.WithCancel(ctx)

	if err := m.dispatcher.StartDispatching(ctx, m.updates); err != nil {
		cancel()
		m.started.Store(false)
		return fmt.Errorf("failed to start dispatching: %w", err)
	}

	client, err := feed.Dial(ctx, feed.Config{
		Endpoint:         m.cfg.Endpoint,
		Handler:          m.handleMessage,
		OnConnect:        m.startSession,
		OnMalformed:      m.recordDroppedFrame,
		TLSInsecureSkip:  m.cfg.TLSInsecureSkip,
		ReconnectWait:    m.cfg.ReconnectWait,
		MaxReconnectWait: m.cfg.MaxReconnectWait,
	})
	if err != nil {
		cancel()
		m.started.Store(false)
		return fmt.Errorf("failed to connect to alert feed: %w", err)
	}

	m.mu.Lock()
	m.client = client
	m.mu.Unlock()
	m.cancel = cancel

	log.Info().Str("endpoint", m.cfg.Endpoint).Msg("monitor started")
	return nil
}

// Stop closes the feed connection and the dispatcher. Idempotent with Start:
// stopping a stopped monitor returns an error, closing is otherwise safe at
// any time.
func (m *Monitor) Stop() error {
	if !m.started.CompareAndSwap(true, false) {
		return errors.New("monitor not started")
	}

	m.mu.RLock()
	client := m.client
	m.mu.RUnlock()
	if client != nil {
		client.Close()
	}
	if m.cancel != nil {
		m.cancel()
	}

	log.Info().Msg("monitor stopped")
	return nil
}

// startSession installs a fresh session. Runs on every successful dial,
// giving each connection its own windows and zeroed counters.
func (m *Monitor) startSession() {
	session := monitor.NewSession(monitor.SessionConfig{
		TransactionWindow: m.cfg.TransactionWindow,
		AlertWindow:       m.cfg.AlertWindow,
		Sink:              m.cfg.Sink,
	})

	m.mu.Lock()
	m.session = session
	m.mu.Unlock()

	log.Info().Msg("monitoring session started")
}

// handleMessage processes one decoded frame. Invoked by the feed client from
// its single processing goroutine, strictly in arrival order.
func (m *Monitor) handleMessage(msg feed.Message) {
	switch msg.Kind {
	case feed.KindTransaction:
		session := m.currentSession()
		if session == nil {
			return
		}

		c := session.Process(msg.Transaction)

		// Push to viewers without ever blocking the processing path.
		select {
		case m.updates <- Update{Event: msg.Transaction, Classification: c, Stats: session.Stats()}:
		default:
		}

	case feed.KindError:
		// Upstream errors inform the operator but never tear down the
		// transport or touch session state.
		log.Warn().Str("message", msg.ErrMessage).Msg("upstream error reported on feed")
		m.mu.Lock()
		m.notices.Push(Notice{Time: time.Now(), Message: msg.ErrMessage})
		m.mu.Unlock()
	}
}

// recordDroppedFrame counts a frame rejected at the decode boundary against
// the current session.
func (m *Monitor) recordDroppedFrame(err error) {
	if session := m.currentSession(); session != nil {
		session.RecordDroppedFrame()
	}
}

func (m *Monitor) currentSession() *monitor.Session {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.session
}

// State returns the feed connectivity indicator.
func (m *Monitor) State() model.ConnectionState {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.client == nil {
		return model.Disconnected
	}
	return m.client.State()
}

// Status returns the connectivity state together with recent operator notices.
func (m *Monitor) Status() Status {
	m.mu.RLock()
	notices := m.notices.Items()
	m.mu.RUnlock()

	return Status{
		State:   m.State().String(),
		Notices: notices,
	}
}

// Snapshot returns a copy of the current session's derived state. Before the
// first connection it is empty.
func (m *Monitor) Snapshot() monitor.Snapshot {
	session := m.currentSession()
	if session == nil {
		return monitor.Snapshot{}
	}
	return session.Snapshot()
}

// Subscribe registers a dashboard viewer for live updates.
func (m *Monitor) Subscribe() (*Subscriber, error) {
	return m.dispatcher.Subscribe()
}

// Unsubscribe removes a dashboard viewer.
func (m *Monitor) Unsubscribe(sub *Subscriber) error {
	return m.dispatcher.Unsubscribe(sub)
}
