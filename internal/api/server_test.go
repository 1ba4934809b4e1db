package api

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	json "github.com/goccy/go-json"

	"fraudmonitor/internal/model"
	"fraudmonitor/internal/monitor"
	"fraudmonitor/internal/service"
)

// testFeed is a minimal upstream WebSocket server for driving the monitor.
type testFeed struct {
	server      *httptest.Server
	upgrader    websocket.Upgrader
	mu          sync.Mutex
	connections []*websocket.Conn
}

func newTestFeed() *testFeed {
	tf := &testFeed{
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}
	tf.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := tf.upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		tf.mu.Lock()
		tf.connections = append(tf.connections, conn)
		tf.mu.Unlock()
		go func() {
			for {
				if _, _, err := conn.ReadMessage(); err != nil {
					return
				}
			}
		}()
	}))
	return tf
}

func (tf *testFeed) send(t *testing.T, frame string) {
	t.Helper()
	require.Eventually(t, func() bool {
		tf.mu.Lock()
		defer tf.mu.Unlock()
		return len(tf.connections) > 0
	}, time.Second, 10*time.Millisecond, "no feed connection to send on")

	tf.mu.Lock()
	conn := tf.connections[len(tf.connections)-1]
	tf.mu.Unlock()
	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(frame)))
}

func (tf *testFeed) Close() {
	tf.mu.Lock()
	for _, conn := range tf.connections {
		conn.Close()
	}
	tf.connections = nil
	tf.mu.Unlock()
	tf.server.Close()
}

func (tf *testFeed) URL() string {
	return "ws" + strings.TrimPrefix(tf.server.URL, "http")
}

func feedFrame(id int64, isAlert bool, fraudActual int) string {
	return fmt.Sprintf(`{"type":"transaction","transaction_id":%d,`+
		`"timestamp":"2026-03-14T09:30:00Z","sender_id":11,"receiver_id":22,"amount":310.00,`+
		`"is_alert":%t,"sender_risk_score":0.85,"receiver_risk_score":0.1,"fraud_actual":%d,`+
		`"transaction_type":"ring_internal","threshold":0.75}`, id, isAlert, fraudActual)
}

// newTestStack starts a feed, a monitor consuming it, and an API server in
// front of the monitor.
func newTestStack(t *testing.T) (*testFeed, *service.Monitor, *httptest.Server) {
	t.Helper()

	feed := newTestFeed()
	t.Cleanup(feed.Close)

	m := service.New(service.Config{
		Endpoint: feed.URL(),
		Sink:     monitor.NopSink{},
	})
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	require.NoError(t, m.Start(ctx), "Should start monitor")
	t.Cleanup(func() { m.Stop() })

	srv, err := NewServer(Config{Addr: ":0", Monitor: m})
	require.NoError(t, err, "Should create API server")

	api := httptest.NewServer(srv.Handler())
	t.Cleanup(api.Close)

	return feed, m, api
}

func getJSON(t *testing.T, url string, out interface{}) int {
	t.Helper()
	resp, err := http.Get(url)
	require.NoError(t, err, "Request should succeed")
	defer resp.Body.Close()

	if out != nil {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(out), "Response should be valid JSON")
	}
	return resp.StatusCode
}

func Test_NewServer_RequiresMonitor(t *testing.T) {
	srv, err := NewServer(Config{Addr: ":0"})
	assert.Error(t, err, "Should reject configuration without a monitor")
	assert.Nil(t, srv)
}

func Test_Server_Health(t *testing.T) {
	_, _, api := newTestStack(t)

	var body map[string]string
	status := getJSON(t, api.URL+"/healthz", &body)
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "ok", body["status"])
}

func Test_Server_Status(t *testing.T) {
	feed, m, api := newTestStack(t)

	var body struct {
		State   string `json:"state"`
		Notices []struct {
			Message string `json:"message"`
		} `json:"notices"`
	}
	status := getJSON(t, api.URL+"/api/status", &body)
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "connected", body.State, "Should report live connectivity")
	assert.Empty(t, body.Notices)

	feed.send(t, `{"type":"error","message":"scoring backlog"}`)
	require.Eventually(t, func() bool { return len(m.Status().Notices) == 1 },
		2*time.Second, 10*time.Millisecond, "expected the notice to land")

	status = getJSON(t, api.URL+"/api/status", &body)
	assert.Equal(t, http.StatusOK, status)
	require.Len(t, body.Notices, 1, "Upstream errors should be visible to the dashboard")
	assert.Equal(t, "scoring backlog", body.Notices[0].Message)
}

func Test_Server_StatsAndWindows(t *testing.T) {
	feed, m, api := newTestStack(t)

	feed.send(t, feedFrame(1, false, 0))
	feed.send(t, feedFrame(2, true, 1))
	feed.send(t, feedFrame(3, true, 0))
	require.Eventually(t, func() bool { return m.Snapshot().Stats.Total == 3 },
		2*time.Second, 10*time.Millisecond, "expected three processed transactions")

	var stats struct {
		Stats         model.SessionStats `json:"stats"`
		DroppedFrames uint64             `json:"dropped_frames"`
	}
	status := getJSON(t, api.URL+"/api/stats", &stats)
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, model.SessionStats{Total: 3, Alerts: 2, TruePositives: 1, FalsePositives: 1}, stats.Stats)
	assert.Zero(t, stats.DroppedFrames)

	var transactions []model.TransactionEvent
	status = getJSON(t, api.URL+"/api/transactions", &transactions)
	assert.Equal(t, http.StatusOK, status)
	require.Len(t, transactions, 3)
	assert.Equal(t, int64(3), transactions[0].ID, "Transactions should be newest-first")
	assert.Equal(t, "ring_internal", transactions[0].Type, "Wire fields should round-trip to the dashboard")

	var alerts []model.TransactionEvent
	status = getJSON(t, api.URL+"/api/alerts", &alerts)
	assert.Equal(t, http.StatusOK, status)
	require.Len(t, alerts, 2, "Only alerted events belong in the alert window")
	assert.Equal(t, int64(3), alerts[0].ID)
	assert.Equal(t, int64(2), alerts[1].ID)
}

func Test_Server_LiveStream(t *testing.T) {
	feed, _, api := newTestStack(t)

	wsURL := "ws" + strings.TrimPrefix(api.URL, "http") + "/ws/live"
	conn, resp, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err, "Should upgrade to WebSocket")
	if resp != nil {
		resp.Body.Close()
	}
	defer conn.Close()

	// Give the subscription time to register before frames flow.
	time.Sleep(20 * time.Millisecond)

	feed.send(t, feedFrame(1, true, 1))
	feed.send(t, feedFrame(2, false, 0))

	var updates []service.Update
	for len(updates) < 2 {
		conn.SetReadDeadline(time.Now().Add(2 * time.Second))
		_, payload, err := conn.ReadMessage()
		require.NoError(t, err, "Should receive live updates")

		var u service.Update
		require.NoError(t, json.Unmarshal(payload, &u), "Update should be valid JSON")
		updates = append(updates, u)
	}

	assert.Equal(t, int64(1), updates[0].Event.ID, "Updates should arrive in feed order")
	assert.True(t, updates[0].Classification.IsTruePositive, "Classification should ride along")
	assert.Equal(t, uint64(1), updates[0].Stats.Total, "Stats should be as-of the carried event")
	assert.Equal(t, uint64(2), updates[1].Stats.Total)
	assert.False(t, updates[1].Event.IsAlert)
}

func Test_Server_LiveStream_MonitorStopped(t *testing.T) {
	feed := newTestFeed()
	t.Cleanup(feed.Close)

	m := service.New(service.Config{Endpoint: feed.URL(), Sink: monitor.NopSink{}})
	srv, err := NewServer(Config{Addr: ":0", Monitor: m})
	require.NoError(t, err)

	api := httptest.NewServer(srv.Handler())
	t.Cleanup(api.Close)

	// The monitor was never started; subscriptions must be refused.
	wsURL := "ws" + strings.TrimPrefix(api.URL, "http") + "/ws/live"
	conn, resp, err := websocket.DefaultDialer.Dial(wsURL, nil)
	assert.Error(t, err, "Upgrade should fail when the monitor is not running")
	if resp != nil {
		assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
		resp.Body.Close()
	}
	if conn != nil {
		conn.Close()
	}
}
