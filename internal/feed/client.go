package feed

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"math/rand"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"fraudmonitor/internal/model"
	"fraudmonitor/internal/utils"
)

const (
	// defaultPingPeriod defines the default interval for sending WebSocket ping messages.
	defaultPingPeriod = 15 * time.Second

	// defaultSendTimeout defines the default timeout for WebSocket write operations.
	defaultSendTimeout = 5 * time.Second

	// defaultReadLimit defines the maximum size of incoming WebSocket messages.
	defaultReadLimit = 1 << 20 // 1MB

	// defaultHandshakeTimeout defines the maximum time allowed for WebSocket handshake.
	defaultHandshakeTimeout = 10 * time.Second

	// defaultMaxReconnectWait caps the reconnect backoff when hardening is enabled.
	defaultMaxReconnectWait = 30 * time.Second
)

// Common errors returned by the feed client.
var (
	// ErrClientShuttingDown indicates that the client is in the process of shutting down.
	ErrClientShuttingDown = errors.New("client is shutting down")

	// ErrConnectionFailed indicates the transport could not be established.
	ErrConnectionFailed = errors.New("connection failed")
)

// Config defines settings for the feed client.
type Config struct {
	// Endpoint is the WebSocket URL of the alert feed.
	// Required: this field must be provided and non-empty.
	Endpoint string

	// Handler is called once per decoded transaction or upstream-error
	// message, strictly in arrival order, from a single goroutine.
	// Required: this field must be provided and non-nil.
	Handler func(Message)

	// OnConnect is called after every successful dial, including reconnects,
	// before any message from that connection reaches Handler. This is where
	// the owner starts a fresh session.
	OnConnect func()

	// OnMalformed is called for frames rejected at the decode boundary. The
	// frame is dropped either way; this hook only feeds diagnostics.
	OnMalformed func(error)

	// TLSInsecureSkip disables TLS certificate verification.
	TLSInsecureSkip bool

	// PingPeriod is the interval between WebSocket ping messages.
	PingPeriod time.Duration

	// SendTimeout is the maximum time allowed for WebSocket write operations.
	SendTimeout time.Duration

	// ReconnectWait is the initial backoff before redialing a dropped
	// connection. Zero disables reconnection entirely: the first transport
	// failure ends the client (at-most-once, no-retry delivery).
	ReconnectWait time.Duration

	// MaxReconnectWait caps the exponential backoff between redial attempts.
	MaxReconnectWait time.Duration
}

// Client owns one persistent connection to the alert feed endpoint and
// sequences all downstream processing.
//
// Exactly one handler invocation is in flight at any time: frames are read,
// decoded, and handled to completion before the next read. All derived state
// downstream therefore reflects events in exactly the order the transport
// delivered them.
type Client struct {
	// conn stores the active WebSocket connection using atomic operations.
	conn atomic.Value // stores *websocket.Conn

	// state is the externally observable connectivity indicator.
	state atomic.Int32 // stores model.ConnectionState

	// decoder parses inbound frames.
	decoder *Decoder

	// disconnect signals when the client has terminally disconnected.
	disconnect chan struct{}

	// errChan reports fatal errors that cause client termination.
	errChan chan error

	// cfg holds the client configuration.
	cfg *Config

	// ctx is the cancellation context for coordinating shutdown.
	ctx context.Context

	// cancel is the function to trigger context cancellation.
	cancel context.CancelFunc

	// once ensures Close() is only executed once.
	once sync.Once

	// wg coordinates goroutine shutdown.
	wg sync.WaitGroup
}

// Dial returns a connected feed client and starts its processing goroutines.
//
// A failed initial dial is reported both through the returned error (wrapping
// ErrConnectionFailed) and through the connectivity indicator, which is left
// at Disconnected.
func Dial(ctx context.Context, cfg Config) (*Client, error) {
	// Validate required configuration fields
	if cfg.Endpoint == "" {
		return nil, errors.New("endpoint URL is required")
	}
	if err := utils.ValidateEndpoint(cfg.Endpoint); err != nil {
		return nil, err
	}
	if cfg.Handler == nil {
		return nil, errors.New("message handler is required")
	}

	// Apply defaults for optional fields
	if cfg.PingPeriod == 0 {
		cfg.PingPeriod = defaultPingPeriod
	}
	if cfg.SendTimeout == 0 {
		cfg.SendTimeout = defaultSendTimeout
	}
	if cfg.ReconnectWait > 0 && cfg.MaxReconnectWait == 0 {
		cfg.MaxReconnectWait = defaultMaxReconnectWait
	}

	// Create cancellable context for client lifecycle
	ctx, cancel := context.WithCancel(ctx)

	client := &Client{
		cfg:        &cfg,
		decoder:    NewDecoder(),
		ctx:        ctx,
		cancel:     cancel,
		disconnect: make(chan struct{}),
		errChan:    make(chan error, 1),
	}

	client.state.Store(int32(model.Connecting))

	conn, err := client.dial(ctx)
	if err != nil {
		client.state.Store(int32(model.Disconnected))
		cancel()
		return nil, fmt.Errorf("%w: %v", ErrConnectionFailed, err)
	}

	client.adopt(conn)
	client.state.Store(int32(model.Connected))
	if cfg.OnConnect != nil {
		cfg.OnConnect()
	}

	// Start background goroutines with WaitGroup tracking. The shutdown
	// listener is deliberately untracked: it calls Close itself, and waiting
	// on it from inside Close would deadlock.
	client.wg.Add(2)
	go func() {
		defer client.wg.Done()
		client.runLoop()
	}()
	go func() {
		defer client.wg.Done()
		client.pingLoop()
	}()
	go client.shutdownListener()

	return client, nil
}

// adopt installs a freshly dialed connection and configures its read side.
func (c *Client) adopt(conn *websocket.Conn) {
	conn.SetReadLimit(defaultReadLimit)
	conn.SetPongHandler(func(appData string) error {
		// Update read deadline when pong is received
		deadline := time.Now().Add(c.cfg.PingPeriod * 2)
		if err := conn.SetReadDeadline(deadline); err != nil {
			log.Warn().Err(err).Msg("failed to set read deadline in pong handler")
		}
		return nil
	})
	c.conn.Store(conn)
}

// runLoop drives the read loop across the lifetime of the client, redialing
// with backoff when reconnection is enabled. It terminates on shutdown, on a
// transport failure with reconnection disabled, or when redialing is
// abandoned.
func (c *Client) runLoop() {
	logger := log.With().
		Str("endpoint", c.cfg.Endpoint).
		Str("component", "runLoop").
		Logger()

	defer func() {
		c.state.Store(int32(model.Disconnected))
		close(c.disconnect)
		logger.Info().Msg("feed client terminated")
	}()

	for {
		readErr := c.readLoop()

		if c.ctx.Err() != nil {
			c.reportError(ErrClientShuttingDown)
			return
		}

		if c.cfg.ReconnectWait <= 0 {
			// At-most-once, no-retry delivery: the session dies with its
			// transport.
			c.reportError(readErr)
			return
		}

		c.state.Store(int32(model.Reconnecting))
		logger.Warn().Err(readErr).Msg("connection lost, reconnecting")

		conn, err := c.redial()
		if err != nil {
			c.reportError(err)
			return
		}

		c.adopt(conn)
		c.state.Store(int32(model.Connected))
		logger.Info().Msg("reconnected")

		// A reconnect starts a new session: fresh windows, zeroed counters.
		if c.cfg.OnConnect != nil {
			c.cfg.OnConnect()
		}
	}
}

// redial attempts to re-establish the connection with capped exponential
// backoff plus jitter, until it succeeds or the client shuts down.
func (c *Client) redial() (*websocket.Conn, error) {
	wait := c.cfg.ReconnectWait

	for attempt := 1; ; attempt++ {
		jitter := time.Duration(rand.Int63n(int64(wait)/4 + 1))
		select {
		case <-c.ctx.Done():
			return nil, ErrClientShuttingDown
		case <-time.After(wait + jitter):
		}

		conn, err := c.dial(c.ctx)
		if err == nil {
			return conn, nil
		}

		log.Warn().
			Err(err).
			Int("attempt", attempt).
			Dur("nextWait", wait).
			Msg("redial failed")

		wait *= 2
		if wait > c.cfg.MaxReconnectWait {
			wait = c.cfg.MaxReconnectWait
		}
	}
}

// readLoop reads and processes frames from the current connection until the
// connection fails or the client shuts down. It returns the terminal read
// error for the connection.
func (c *Client) readLoop() error {
	conn := c.conn.Load().(*websocket.Conn)
	logger := log.With().
		Str("endpoint", c.cfg.Endpoint).
		Str("component", "readLoop").
		Logger()

	logger.Debug().Msg("starting read loop")

	for {
		select {
		case <-c.ctx.Done():
			logger.Info().Msg("context cancelled, exiting read loop")
			return c.ctx.Err()
		default:
			_, data, err := conn.ReadMessage()
			if err != nil {
				// Categorize and log different error types
				if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
					logger.Info().Err(err).Msg("websocket closed normally")
				} else if websocket.IsUnexpectedCloseError(err) {
					logger.Warn().Err(err).Msg("unexpected websocket closure")
				} else {
					logger.Error().Err(err).Msg("read error")
				}
				return err
			}

			// Close() guarantees no handler runs after it returns; a frame
			// read concurrently with shutdown is discarded here.
			if c.ctx.Err() != nil {
				return c.ctx.Err()
			}

			c.handleFrame(logger, data)
		}
	}
}

// handleFrame decodes one frame and dispatches it to the configured handler.
// Malformed frames are dropped, unknown tags are no-ops, and handler panics
// are contained so a bad frame can never take the client down.
func (c *Client) handleFrame(logger zerolog.Logger, data []byte) {
	msg, err := c.decoder.Decode(data)
	if err != nil {
		logger.Warn().Err(err).Int("bytes", len(data)).Msg("dropping malformed frame")
		if c.cfg.OnMalformed != nil {
			c.cfg.OnMalformed(err)
		}
		return
	}

	if msg.Kind == KindUnknown {
		logger.Debug().Msg("ignoring frame with unknown type tag")
		return
	}

	func() {
		// Recover from handler panics to prevent client crash
		defer func() {
			if r := recover(); r != nil {
				logger.Error().Any("recover", r).Msg("panic in message handler")
			}
		}()
		c.cfg.Handler(msg)
	}()
}

// pingLoop sends periodic ping messages to keep the connection alive and to
// detect dead peers between frames.
func (c *Client) pingLoop() {
	ticker := time.NewTicker(c.cfg.PingPeriod)
	defer ticker.Stop()

	logger := log.With().
		Str("endpoint", c.cfg.Endpoint).
		Str("component", "pingLoop").
		Logger()

	for {
		select {
		case <-ticker.C:
			if model.ConnectionState(c.state.Load()) != model.Connected {
				continue
			}

			// Get connection safely on each iteration
			connVal := c.conn.Load()
			if connVal == nil {
				continue
			}
			conn := connVal.(*websocket.Conn)

			// Set write deadline to prevent hanging
			deadline := time.Now().Add(c.cfg.SendTimeout)
			if err := conn.SetWriteDeadline(deadline); err != nil {
				logger.Warn().Err(err).Msg("failed to set write deadline")
				continue
			}

			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				logger.Warn().Err(err).Msg("ping error")
			}
		case <-c.ctx.Done():
			return
		}
	}
}

// shutdownListener waits for context cancellation and closes the client.
func (c *Client) shutdownListener() {
	<-c.ctx.Done()
	c.Close()
}

// Close gracefully shuts down the client. It is safe to call at any time and
// from any goroutine, and it is idempotent. When Close returns, no further
// handler invocations will occur.
func (c *Client) Close() {
	c.once.Do(func() {
		logger := log.With().
			Str("endpoint", c.cfg.Endpoint).
			Str("component", "close").
			Logger()

		logger.Info().Msg("initiating graceful shutdown")

		// First cancel context to signal all goroutines
		c.cancel()

		// Then close the websocket connection
		if conn := c.conn.Load(); conn != nil {
			if ws, ok := conn.(*websocket.Conn); ok {
				// Send close frame with normal closure code
				if err := ws.WriteControl(
					websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
					time.Now().Add(time.Second),
				); err != nil {
					logger.Warn().Err(err).Msg("failed to send close frame")
				}

				if err := ws.Close(); err != nil {
					logger.Warn().Err(err).Msg("error closing websocket connection")
				}
			}
		}

		// Wait for the read and ping loops to finish
		done := make(chan struct{})
		go func() {
			c.wg.Wait()
			close(done)
		}()

		select {
		case <-done:
			logger.Info().Msg("all goroutines completed")
		case <-time.After(5 * time.Second):
			logger.Warn().Msg("timeout waiting for goroutines to complete")
		}
	})
}

// dial establishes a WebSocket connection to the feed endpoint.
func (c *Client) dial(ctx context.Context) (*websocket.Conn, error) {
	logger := log.With().
		Str("endpoint", c.cfg.Endpoint).
		Bool("tlsInsecureSkip", c.cfg.TLSInsecureSkip).
		Logger()

	logger.Info().Msg("attempting websocket connection")

	dialer := websocket.Dialer{
		Proxy:            http.ProxyFromEnvironment,
		TLSClientConfig:  &tls.Config{InsecureSkipVerify: c.cfg.TLSInsecureSkip},
		HandshakeTimeout: defaultHandshakeTimeout,
	}

	conn, resp, err := dialer.DialContext(ctx, c.cfg.Endpoint, make(http.Header))
	if err != nil {
		if resp != nil {
			logger.Error().
				Err(err).
				Int("statusCode", resp.StatusCode).
				Msg("connection failed")
		} else {
			logger.Error().Err(err).Msg("connection failed")
		}
		return nil, err
	}

	logger.Info().Msg("websocket connection established")
	return conn, nil
}

// reportError tries to send an error without blocking; the channel holds one
// terminal error and later ones are dropped.
func (c *Client) reportError(err error) {
	select {
	case c.errChan <- err:
	default:
	}
}

// State returns the connectivity indicator. This is the sole externally
// observable health signal of the session.
func (c *Client) State() model.ConnectionState {
	return model.ConnectionState(c.state.Load())
}

// DisconnectChan returns a channel that is closed once the client has
// terminally disconnected and will invoke no further handlers.
func (c *Client) DisconnectChan() <-chan struct{} {
	return c.disconnect
}

// ErrChan returns a channel that emits the terminal error, if any.
func (c *Client) ErrChan() <-chan error {
	return c.errChan
}
