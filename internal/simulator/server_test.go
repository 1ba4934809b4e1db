package simulator

import (
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fraudmonitor/internal/feed"
	"fraudmonitor/internal/model"
)

func dialMonitor(t *testing.T, server *httptest.Server) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(server.URL, "http") + "/ws/realtime-monitor"
	conn, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err, "Should connect to replay endpoint")
	if resp != nil {
		resp.Body.Close()
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func Test_Server_ReplaysDataset(t *testing.T) {
	events := []model.TransactionEvent{
		{
			ID:                0,
			Timestamp:         time.Date(2026, 3, 14, 9, 30, 0, 0, time.UTC),
			SenderID:          4,
			ReceiverID:        9,
			Amount:            decimal.NewFromFloat(812.44),
			Type:              "ring_internal",
			IsAlert:           true,
			SenderRiskScore:   0.91,
			ReceiverRiskScore: 0.88,
			FraudActual:       1,
		},
		{
			ID:         1,
			Timestamp:  time.Date(2026, 3, 14, 9, 31, 0, 0, time.UTC),
			SenderID:   12,
			ReceiverID: 30,
			Amount:     decimal.NewFromFloat(55.10),
			Type:       "normal",
		},
	}

	srv := NewServer(ServerConfig{Events: events, Interval: time.Millisecond})
	ts := httptest.NewServer(srv.Handler())
	defer ts.Close()

	conn := dialMonitor(t, ts)

	// The frames must decode cleanly with the monitor's own boundary decoder.
	decoder := feed.NewDecoder()

	for i, want := range events {
		conn.SetReadDeadline(time.Now().Add(2 * time.Second))
		_, payload, err := conn.ReadMessage()
		require.NoError(t, err, "Should receive replayed frame %d", i)

		msg, err := decoder.Decode(payload)
		require.NoError(t, err, "Replayed frame should pass boundary validation")
		require.Equal(t, feed.KindTransaction, msg.Kind)

		got := msg.Transaction
		assert.Equal(t, want.ID, got.ID)
		assert.Equal(t, want.SenderID, got.SenderID)
		assert.Equal(t, want.ReceiverID, got.ReceiverID)
		assert.True(t, want.Amount.Equal(got.Amount), "Amount should round-trip: want %s got %s", want.Amount, got.Amount)
		assert.Equal(t, want.Type, got.Type)
		assert.Equal(t, want.IsAlert, got.IsAlert)
		assert.Equal(t, want.FraudActual, got.FraudActual)
		assert.True(t, want.Timestamp.Equal(got.Timestamp), "Timestamp should round-trip")
	}

	// Without Loop the server closes after the replay.
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, _, err := conn.ReadMessage()
	assert.Error(t, err, "Connection should close when the dataset is exhausted")
}

func Test_Server_Loop(t *testing.T) {
	events := []model.TransactionEvent{{
		ID:        0,
		Timestamp: time.Date(2026, 3, 14, 9, 30, 0, 0, time.UTC),
		Amount:    decimal.NewFromFloat(20.00),
		Type:      "normal",
	}}

	srv := NewServer(ServerConfig{Events: events, Interval: time.Millisecond, Loop: true})
	ts := httptest.NewServer(srv.Handler())
	defer ts.Close()

	conn := dialMonitor(t, ts)

	// More reads than the dataset holds proves the replay wrapped around.
	for i := 0; i < 5; i++ {
		conn.SetReadDeadline(time.Now().Add(2 * time.Second))
		_, _, err := conn.ReadMessage()
		require.NoError(t, err, "Looping replay should keep streaming")
	}
}

func Test_Server_NoDataset(t *testing.T) {
	srv := NewServer(ServerConfig{Interval: time.Millisecond})
	ts := httptest.NewServer(srv.Handler())
	defer ts.Close()

	conn := dialMonitor(t, ts)

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, payload, err := conn.ReadMessage()
	require.NoError(t, err, "Should receive an error frame")

	msg, err := feed.NewDecoder().Decode(payload)
	require.NoError(t, err)
	assert.Equal(t, feed.KindError, msg.Kind, "Empty replay should surface as an upstream error")
	assert.Contains(t, msg.ErrMessage, "no dataset", "Error should explain the missing dataset")
}

func Test_Server_GeneratedDataset(t *testing.T) {
	srv := NewServer(ServerConfig{
		Generator: NewGenerator(GeneratorConfig{Nodes: 50, Transactions: 20, Seed: 3}),
		Interval:  time.Millisecond,
	})
	ts := httptest.NewServer(srv.Handler())
	defer ts.Close()

	conn := dialMonitor(t, ts)
	decoder := feed.NewDecoder()

	for i := 0; i < 20; i++ {
		conn.SetReadDeadline(time.Now().Add(2 * time.Second))
		_, payload, err := conn.ReadMessage()
		require.NoError(t, err, "Should stream the generated dataset")

		msg, err := decoder.Decode(payload)
		require.NoError(t, err, "Generated frames should pass boundary validation")
		assert.Equal(t, feed.KindTransaction, msg.Kind)
		assert.Equal(t, int64(i), msg.Transaction.ID, "IDs should arrive in stream order")
	}
}
