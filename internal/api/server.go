// Package api exposes the monitor's state over HTTP for dashboard frontends.
//
// The surface is read-only: JSON endpoints for snapshots of the windows,
// counters, and connectivity, plus a WebSocket endpoint that pushes live
// updates as they are processed. All responses are derived from copies, so
// handlers never contend with the feed processing path.
package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	json "github.com/goccy/go-json"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"fraudmonitor/internal/model"
	"fraudmonitor/internal/monitor"
	"fraudmonitor/internal/service"
)

const (
	defaultReadTimeout     = 10 * time.Second
	defaultWriteTimeout    = 10 * time.Second
	defaultShutdownTimeout = 5 * time.Second

	// wsWriteTimeout bounds a single push to a dashboard socket.
	wsWriteTimeout = 5 * time.Second
)

// MonitorSource is the read surface the API serves. *service.Monitor
// implements it.
type MonitorSource interface {
	Status() service.Status
	Snapshot() monitor.Snapshot
	Subscribe() (*service.Subscriber, error)
	Unsubscribe(*service.Subscriber) error
}

// Config defines settings for the dashboard API server.
type Config struct {
	// Addr is the listen address, e.g. ":8080".
	Addr string

	// Monitor provides the state to serve. Required.
	Monitor MonitorSource

	// ReadTimeout and WriteTimeout apply to the HTTP server. Zero selects
	// the defaults.
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// Server serves the dashboard HTTP and WebSocket API.
type Server struct {
	cfg      Config
	router   chi.Router
	upgrader websocket.Upgrader
	logger   zerolog.Logger
}

// NewServer creates a Server. It returns an error if no monitor is wired in.
func NewServer(cfg Config) (*Server, error) {
	if cfg.Monitor == nil {
		return nil, errors.New("monitor source is required")
	}
	if cfg.ReadTimeout <= 0 {
		cfg.ReadTimeout = defaultReadTimeout
	}
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = defaultWriteTimeout
	}

	s := &Server{
		cfg: cfg,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			// Dashboards are served from arbitrary dev origins.
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		logger: log.With().Str("component", "api").Logger(),
	}

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Get("/healthz", s.handleHealth)
	r.Route("/api", func(r chi.Router) {
		r.Get("/status", s.handleStatus)
		r.Get("/stats", s.handleStats)
		r.Get("/transactions", s.handleTransactions)
		r.Get("/alerts", s.handleAlerts)
	})
	r.Get("/ws/live", s.handleLive)
	s.router = r

	return s, nil
}

// Handler returns the routed handler, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.router
}

// ListenAndServe runs the HTTP server until the context is cancelled, then
// shuts it down gracefully.
func (s *Server) ListenAndServe(ctx context.Context) error {
	srv := &http.Server{
		Addr:         s.cfg.Addr,
		Handler:      s.router,
		ReadTimeout:  s.cfg.ReadTimeout,
		WriteTimeout: s.cfg.WriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info().Str("addr", s.cfg.Addr).Msg("dashboard API listening")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), defaultShutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return srv.Close()
		}
		return nil
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleStatus reports feed connectivity and recent upstream notices.
func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, s.cfg.Monitor.Status())
}

// handleStats reports the current session's counters.
func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	snap := s.cfg.Monitor.Snapshot()
	s.writeJSON(w, http.StatusOK, struct {
		Stats         model.SessionStats `json:"stats"`
		DroppedFrames uint64             `json:"dropped_frames"`
	}{Stats: snap.Stats, DroppedFrames: snap.DroppedFrames})
}

// handleTransactions reports the recent-transaction window, newest first.
func (s *Server) handleTransactions(w http.ResponseWriter, r *http.Request) {
	snap := s.cfg.Monitor.Snapshot()
	s.writeJSON(w, http.StatusOK, snap.Transactions)
}

// handleAlerts reports the recent-alert window, newest first.
func (s *Server) handleAlerts(w http.ResponseWriter, r *http.Request) {
	snap := s.cfg.Monitor.Snapshot()
	s.writeJSON(w, http.StatusOK, snap.Alerts)
}

// handleLive upgrades to WebSocket and streams live updates to the viewer
// until either side disconnects.
func (s *Server) handleLive(w http.ResponseWriter, r *http.Request) {
	sub, err := s.cfg.Monitor.Subscribe()
	if err != nil {
		http.Error(w, "monitor not running", http.StatusServiceUnavailable)
		return
	}
	defer s.cfg.Monitor.Unsubscribe(sub)

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn().Err(err).Msg("websocket upgrade failed")
		return
	}
	defer conn.Close()

	s.logger.Info().Str("remote", conn.RemoteAddr().String()).Msg("dashboard viewer connected")

	// Read pump: the viewer sends nothing we act on, but reading is the only
	// way to notice a client-side close.
	clientGone := make(chan struct{})
	go func() {
		defer close(clientGone)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case <-r.Context().Done():
			return
		case <-clientGone:
			s.logger.Info().Str("remote", conn.RemoteAddr().String()).Msg("dashboard viewer disconnected")
			return
		case update, ok := <-sub.Updates():
			if !ok {
				// Dispatcher shut down or the viewer was evicted.
				return
			}
			payload, err := json.Marshal(update)
			if err != nil {
				s.logger.Error().Err(err).Msg("failed to marshal update")
				continue
			}
			conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
			if err := conn.WriteMessage(websocket.TextMessage, payload); err != nil {
				s.logger.Info().Err(err).Msg("dropping viewer, write failed")
				return
			}
		}
	}
}

// writeJSON encodes v as the response body with the given status.
func (s *Server) writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Error().Err(err).Msg("failed to encode response")
	}
}
