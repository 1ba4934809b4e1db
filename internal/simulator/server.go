package simulator

import (
	"net/http"
	"time"

	json "github.com/goccy/go-json"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"fraudmonitor/internal/model"
)

// defaultInterval is the pacing between replayed events.
const defaultInterval = 50 * time.Millisecond

// ServerConfig controls the replay behavior.
type ServerConfig struct {
	// Events is the dataset to replay. If nil, each connection generates a
	// fresh dataset from Generator.
	Events []model.TransactionEvent

	// Generator builds per-connection datasets when Events is nil. If both
	// are nil, connections receive an error frame and are closed.
	Generator *Generator

	// Interval paces the replay. Zero selects the default.
	Interval time.Duration

	// Loop restarts the replay when the dataset is exhausted instead of
	// closing the connection.
	Loop bool

	// Threshold is echoed in each frame. Zero selects DefaultThreshold.
	Threshold float64
}

// Server replays scored transactions over WebSocket, mimicking the upstream
// inference service's feed endpoint.
type Server struct {
	cfg      ServerConfig
	upgrader websocket.Upgrader
	logger   zerolog.Logger
}

// NewServer creates a replay server.
func NewServer(cfg ServerConfig) *Server {
	if cfg.Interval <= 0 {
		cfg.Interval = defaultInterval
	}
	if cfg.Threshold <= 0 {
		cfg.Threshold = DefaultThreshold
	}

	return &Server{
		cfg: cfg,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		logger: log.With().Str("component", "simulator").Logger(),
	}
}

// Handler returns the HTTP handler. Mount it at /ws/realtime-monitor.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/ws/realtime-monitor", s.handleMonitor)
	return mux
}

// wireFrame is the outbound transaction frame, field for field what the
// inference service emits: plain JSON numbers for amounts and scores,
// RFC 3339 timestamps.
type wireFrame struct {
	Type              string  `json:"type"`
	TransactionID     int64   `json:"transaction_id"`
	Timestamp         string  `json:"timestamp"`
	SenderID          int64   `json:"sender_id"`
	ReceiverID        int64   `json:"receiver_id"`
	Amount            float64 `json:"amount"`
	IsAlert           bool    `json:"is_alert"`
	SenderRiskScore   float64 `json:"sender_risk_score"`
	ReceiverRiskScore float64 `json:"receiver_risk_score"`
	FraudActual       int     `json:"fraud_actual"`
	TransactionType   string  `json:"transaction_type"`
	Threshold         float64 `json:"threshold"`
}

type errorFrame struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

func (s *Server) handleMonitor(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn().Err(err).Msg("websocket upgrade failed")
		return
	}
	defer conn.Close()

	s.logger.Info().Str("remote", conn.RemoteAddr().String()).Msg("monitor client connected")

	// Read pump: detect the client going away mid-replay.
	clientGone := make(chan struct{})
	go func() {
		defer close(clientGone)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	events := s.cfg.Events
	if events == nil && s.cfg.Generator != nil {
		events = s.cfg.Generator.Dataset()
	}
	if len(events) == 0 {
		s.writeFrame(conn, errorFrame{Type: "error", Message: "no dataset available, generate one first"})
		return
	}

	ticker := time.NewTicker(s.cfg.Interval)
	defer ticker.Stop()

	for {
		for _, event := range events {
			select {
			case <-clientGone:
				s.logger.Info().Msg("monitor client disconnected")
				return
			case <-r.Context().Done():
				return
			case <-ticker.C:
			}

			if err := s.writeFrame(conn, s.toWire(event)); err != nil {
				s.logger.Info().Err(err).Msg("replay write failed, closing")
				return
			}
		}

		if !s.cfg.Loop {
			s.logger.Info().Int("events", len(events)).Msg("replay complete")
			return
		}
	}
}

func (s *Server) toWire(event model.TransactionEvent) wireFrame {
	amount, _ := event.Amount.Float64()
	return wireFrame{
		Type:              "transaction",
		TransactionID:     event.ID,
		Timestamp:         event.Timestamp.Format(time.RFC3339),
		SenderID:          event.SenderID,
		ReceiverID:        event.ReceiverID,
		Amount:            amount,
		IsAlert:           event.IsAlert,
		SenderRiskScore:   event.SenderRiskScore,
		ReceiverRiskScore: event.ReceiverRiskScore,
		FraudActual:       event.FraudActual,
		TransactionType:   event.Type,
		Threshold:         s.cfg.Threshold,
	}
}

func (s *Server) writeFrame(conn *websocket.Conn, v interface{}) error {
	payload, err := json.Marshal(v)
	if err != nil {
		return err
	}
	conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
	return conn.WriteMessage(websocket.TextMessage, payload)
}
