// Package wsconn provides a managed WebSocket connection with automatic
// reconnection, exponential backoff, keep-alive pings and connection
// statistics. It is transport-only: it carries opaque byte frames and
// knows nothing about the protocol spoken over them.
package wsconn

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/coder/websocket"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/fd1az/dex-arb-bot/internal/apperror"
	"github.com/fd1az/dex-arb-bot/internal/logger"
)

const meterName = "wsconn"

// State describes the lifecycle phase of a managed connection.
type State string

const (
	StateDisconnected State = "disconnected"
	StateConnecting   State = "connecting"
	StateConnected    State = "connected"
	StateReconnecting State = "reconnecting"
	StateFailed       State = "failed"
)

// Config holds connection parameters.
type Config struct {
	URL  string // WebSocket endpoint
	Name string // label used in logs and metrics

	InitialBackoff time.Duration // first reconnect delay
	MaxBackoff     time.Duration // ceiling for the doubled delay
	MaxReconnects  int           // 0 means retry forever
	PingInterval   time.Duration // 0 disables keep-alive pings
	ConnectTimeout time.Duration // per-attempt dial timeout
	WriteTimeout   time.Duration // per-message send timeout
}

// DefaultConfig returns the standard reconnect policy for the given endpoint.
func DefaultConfig(url, name string) Config {
	return Config{
		URL:            url,
		Name:           name,
		InitialBackoff: 1 * time.Second,
		MaxBackoff:     30 * time.Second,
		MaxReconnects:  0,
		PingInterval:   30 * time.Second,
		ConnectTimeout: 10 * time.Second,
		WriteTimeout:   10 * time.Second,
	}
}

// Stats is a snapshot of connection counters. All counters are monotonic
// for the lifetime of the client; ConnectedAt refers to the current
// connection episode.
type Stats struct {
	ConnectedAt      time.Time
	LastMessageAt    time.Time
	MessagesReceived uint64
	ReconnectCount   uint64
	ErrorCount       uint64
}

// Status combines the state with the detail that state carries:
// the attempt number while reconnecting, the reason once failed.
type Status struct {
	State   State
	Attempt int
	Reason  string
}

// MessageHandler receives every inbound frame. It is invoked from the
// read loop, so a slow handler delays subsequent reads.
type MessageHandler func(ctx context.Context, data []byte)

// clientMetrics holds OTEL metric instruments.
type clientMetrics struct {
	messagesReceived metric.Int64Counter
	reconnects       metric.Int64Counter
	errors           metric.Int64Counter
}

type loopReason int

const (
	reasonShutdown loopReason = iota
	reasonPeerClosed
	reasonError
)

// Client is a managed WebSocket connection.
type Client struct {
	config Config
	logger logger.LoggerInterface

	conn   *websocket.Conn
	connMu sync.RWMutex

	status   Status
	stats    Stats
	statusMu sync.RWMutex

	onMessage  MessageHandler
	onConnect  func(ctx context.Context)
	handlersMu sync.RWMutex

	done     chan struct{}
	closeOne sync.Once

	metrics  *clientMetrics
	connAttr attribute.Set
}

// New creates a managed connection. It does not dial; call Connect or
// ConnectWithRetry to establish the link.
func New(cfg Config, log logger.LoggerInterface) (*Client, error) {
	if cfg.URL == "" {
		return nil, apperror.New(apperror.CodeValidationError,
			apperror.WithMessage("wsconn: URL is required"))
	}
	if cfg.InitialBackoff <= 0 {
		cfg.InitialBackoff = 1 * time.Second
	}
	if cfg.MaxBackoff < cfg.InitialBackoff {
		cfg.MaxBackoff = cfg.InitialBackoff
	}
	if cfg.ConnectTimeout <= 0 {
		cfg.ConnectTimeout = 10 * time.Second
	}

	c := &Client{
		config:   cfg,
		logger:   log,
		status:   Status{State: StateDisconnected},
		done:     make(chan struct{}),
		connAttr: attribute.NewSet(attribute.String("connection", cfg.Name)),
	}

	if err := c.initMetrics(); err != nil {
		return nil, fmt.Errorf("init metrics: %w", err)
	}

	return c, nil
}

func (c *Client) initMetrics() error {
	meter := otel.Meter(meterName)
	var err error

	c.metrics = &clientMetrics{}

	c.metrics.messagesReceived, err = meter.Int64Counter(
		"wsconn.messages.received",
		metric.WithDescription("Total frames received"),
	)
	if err != nil {
		return err
	}

	c.metrics.reconnects, err = meter.Int64Counter(
		"wsconn.reconnect.attempts",
		metric.WithDescription("Total reconnection attempts"),
	)
	if err != nil {
		return err
	}

	c.metrics.errors, err = meter.Int64Counter(
		"wsconn.errors",
		metric.WithDescription("Connection and transport errors"),
	)
	return err
}

// OnMessage registers the inbound frame handler. Set it before connecting;
// frames received with no handler registered are dropped.
func (c *Client) OnMessage(fn MessageHandler) {
	c.handlersMu.Lock()
	c.onMessage = fn
	c.handlersMu.Unlock()
}

// OnConnect registers a callback invoked after every successful dial,
// including reconnects. Use it to replay subscriptions the peer forgot
// when the previous connection dropped.
func (c *Client) OnConnect(fn func(ctx context.Context)) {
	c.handlersMu.Lock()
	c.onConnect = fn
	c.handlersMu.Unlock()
}

// Connect performs a single dial attempt. On success the read loop and
// keep-alive start in the background and later disconnects are handled
// by the reconnect policy.
func (c *Client) Connect(ctx context.Context) error {
	c.setStatus(Status{State: StateConnecting})

	conn, err := c.dial(ctx)
	if err != nil {
		c.recordError(ctx)
		c.setStatus(Status{State: StateDisconnected})
		return apperror.New(apperror.CodeConnectionFailed,
			apperror.WithCause(err),
			apperror.WithContext("url", c.config.URL),
			apperror.WithContext("connection", c.config.Name))
	}

	c.adoptConn(conn)
	go c.run(conn)
	return nil
}

// ConnectWithRetry dials until the first connection succeeds, applying
// the reconnect backoff policy between attempts. It returns once
// connected, when ctx is cancelled, or when the attempt budget is
// exhausted, in which case the client is left in StateFailed.
func (c *Client) ConnectWithRetry(ctx context.Context) error {
	attempt := 0
	delay := c.config.InitialBackoff

	c.setStatus(Status{State: StateConnecting})
	for {
		select {
		case <-ctx.Done():
			c.setStatus(Status{State: StateDisconnected})
			return ctx.Err()
		case <-c.done:
			c.setStatus(Status{State: StateDisconnected})
			return apperror.New(apperror.CodeWebSocketClosed)
		default:
		}

		conn, err := c.dial(ctx)
		if err == nil {
			c.adoptConn(conn)
			go c.run(conn)
			return nil
		}
		c.recordError(ctx)
		c.logger.Warn(ctx, "connect attempt failed",
			"connection", c.config.Name, "attempt", attempt+1, "error", err)

		attempt++
		if c.config.MaxReconnects > 0 && attempt >= c.config.MaxReconnects {
			return c.failTerminal(ctx, "max reconnection attempts reached")
		}
		c.noteReconnecting(ctx, attempt)
		if !c.sleep(ctx, delay) {
			c.setStatus(Status{State: StateDisconnected})
			return ctx.Err()
		}
		delay = nextBackoff(delay, c.config.MaxBackoff)
	}
}

// run owns a live connection and the reconnect loop that replaces it.
// It exits on Close, on context-free terminal failure, or never.
func (c *Client) run(conn *websocket.Conn) {
	ctx := context.Background()

	for {
		reason := c.messageLoop(ctx, conn)
		c.dropConn()

		if reason == reasonShutdown {
			c.setStatus(Status{State: StateDisconnected})
			return
		}
		if reason == reasonError {
			c.recordError(ctx)
		}

		// The episode reached Connected, so the backoff restarts
		// from the initial delay.
		attempt := 0
		delay := c.config.InitialBackoff
		for {
			attempt++
			if c.config.MaxReconnects > 0 && attempt >= c.config.MaxReconnects {
				c.failTerminal(ctx, "max reconnection attempts reached")
				return
			}
			c.noteReconnecting(ctx, attempt)
			if !c.sleep(ctx, delay) {
				c.setStatus(Status{State: StateDisconnected})
				return
			}
			delay = nextBackoff(delay, c.config.MaxBackoff)

			next, err := c.dial(ctx)
			if err != nil {
				c.recordError(ctx)
				c.logger.Warn(ctx, "reconnect attempt failed",
					"connection", c.config.Name, "attempt", attempt, "error", err)
				continue
			}
			conn = next
			c.adoptConn(conn)
			break
		}
	}
}

// messageLoop reads frames until the connection drops or the client is
// closed. Protocol pings from the peer are answered transparently by the
// transport during reads.
func (c *Client) messageLoop(ctx context.Context, conn *websocket.Conn) loopReason {
	msgs := make(chan []byte)
	errs := make(chan error, 1)

	readCtx, cancelRead := context.WithCancel(ctx)
	defer cancelRead()

	go func() {
		for {
			_, data, err := conn.Read(readCtx)
			if err != nil {
				errs <- err
				return
			}
			select {
			case msgs <- data:
			case <-c.done:
				return
			case <-readCtx.Done():
				// The loop left through the ping-failure branch; no
				// receiver remains for this frame.
				return
			}
		}
	}()

	var pings <-chan time.Time
	if c.config.PingInterval > 0 {
		t := time.NewTicker(c.config.PingInterval)
		defer t.Stop()
		pings = t.C
	}

	for {
		select {
		case <-c.done:
			conn.Close(websocket.StatusNormalClosure, "client shutdown")
			return reasonShutdown

		case <-pings:
			pingCtx, cancel := context.WithTimeout(ctx, c.config.ConnectTimeout)
			err := conn.Ping(pingCtx)
			cancel()
			if err != nil {
				c.logger.Warn(ctx, "keep-alive ping failed",
					"connection", c.config.Name, "error", err)
				conn.Close(websocket.StatusGoingAway, "ping timeout")
				return reasonError
			}

		case data := <-msgs:
			c.recordMessage(ctx)
			c.handlersMu.RLock()
			fn := c.onMessage
			c.handlersMu.RUnlock()
			if fn != nil {
				fn(ctx, data)
			}

		case err := <-errs:
			select {
			case <-c.done:
				return reasonShutdown
			default:
			}
			if websocket.CloseStatus(err) != -1 {
				c.logger.Info(ctx, "connection closed by peer",
					"connection", c.config.Name, "status", websocket.CloseStatus(err))
				return reasonPeerClosed
			}
			c.logger.Warn(ctx, "read error",
				"connection", c.config.Name, "error", err)
			return reasonError
		}
	}
}

func (c *Client) dial(ctx context.Context) (*websocket.Conn, error) {
	dialCtx, cancel := context.WithTimeout(ctx, c.config.ConnectTimeout)
	defer cancel()

	conn, _, err := websocket.Dial(dialCtx, c.config.URL, nil)
	if err != nil {
		return nil, err
	}
	conn.SetReadLimit(-1)
	return conn, nil
}

// Send writes a raw frame on the current connection.
func (c *Client) Send(ctx context.Context, data []byte) error {
	c.connMu.RLock()
	conn := c.conn
	c.connMu.RUnlock()

	if conn == nil {
		return apperror.New(apperror.CodeWebSocketConnectionError,
			apperror.WithContext("connection", c.config.Name))
	}

	if c.config.WriteTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.config.WriteTimeout)
		defer cancel()
	}

	if err := conn.Write(ctx, websocket.MessageText, data); err != nil {
		c.recordError(ctx)
		return apperror.New(apperror.CodeWebSocketSendError,
			apperror.WithCause(err),
			apperror.WithContext("connection", c.config.Name))
	}
	return nil
}

// SendJSON marshals v and sends it as a text frame.
func (c *Client) SendJSON(ctx context.Context, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return apperror.New(apperror.CodeInvalidInput, apperror.WithCause(err))
	}
	return c.Send(ctx, data)
}

// Close shuts the client down. The underlying connection is closed
// before Close returns; the reconnect loop will not dial again.
func (c *Client) Close() error {
	c.closeOne.Do(func() {
		close(c.done)
	})

	c.connMu.Lock()
	conn := c.conn
	c.conn = nil
	c.connMu.Unlock()

	if conn != nil {
		conn.Close(websocket.StatusNormalClosure, "client shutdown")
	}
	return nil
}

// State returns the current lifecycle state.
func (c *Client) State() State {
	c.statusMu.RLock()
	defer c.statusMu.RUnlock()
	return c.status.State
}

// Status returns the state together with the reconnect attempt number
// or the terminal failure reason.
func (c *Client) Status() Status {
	c.statusMu.RLock()
	defer c.statusMu.RUnlock()
	return c.status
}

// IsConnected reports whether the connection is currently established.
func (c *Client) IsConnected() bool {
	return c.State() == StateConnected
}

// Stats returns a snapshot of the connection counters.
func (c *Client) Stats() Stats {
	c.statusMu.RLock()
	defer c.statusMu.RUnlock()
	return c.stats
}

// Name returns the label this connection reports under.
func (c *Client) Name() string { return c.config.Name }

func (c *Client) adoptConn(conn *websocket.Conn) {
	c.connMu.Lock()
	c.conn = conn
	c.connMu.Unlock()

	c.statusMu.Lock()
	c.status = Status{State: StateConnected}
	c.stats.ConnectedAt = time.Now()
	c.statusMu.Unlock()

	c.logger.Info(context.Background(), "connected",
		"connection", c.config.Name, "url", c.config.URL)

	c.handlersMu.RLock()
	fn := c.onConnect
	c.handlersMu.RUnlock()
	if fn != nil {
		go fn(context.Background())
	}
}

func (c *Client) dropConn() {
	c.connMu.Lock()
	c.conn = nil
	c.connMu.Unlock()
}

func (c *Client) setStatus(s Status) {
	c.statusMu.Lock()
	c.status = s
	c.statusMu.Unlock()
}

func (c *Client) noteReconnecting(ctx context.Context, attempt int) {
	c.statusMu.Lock()
	c.status = Status{State: StateReconnecting, Attempt: attempt}
	c.stats.ReconnectCount++
	c.statusMu.Unlock()
	c.metrics.reconnects.Add(ctx, 1, metric.WithAttributeSet(c.connAttr))
}

func (c *Client) failTerminal(ctx context.Context, reason string) error {
	c.setStatus(Status{State: StateFailed, Reason: reason})
	c.logger.Error(ctx, "connection failed permanently",
		"connection", c.config.Name, "reason", reason)
	return apperror.New(apperror.CodeMaxReconnectsExceeded,
		apperror.WithContext("connection", c.config.Name),
		apperror.WithContext("max_attempts", c.config.MaxReconnects))
}

func (c *Client) recordMessage(ctx context.Context) {
	c.statusMu.Lock()
	c.stats.MessagesReceived++
	c.stats.LastMessageAt = time.Now()
	c.statusMu.Unlock()
	c.metrics.messagesReceived.Add(ctx, 1, metric.WithAttributeSet(c.connAttr))
}

func (c *Client) recordError(ctx context.Context) {
	c.statusMu.Lock()
	c.stats.ErrorCount++
	c.statusMu.Unlock()
	c.metrics.errors.Add(ctx, 1, metric.WithAttributeSet(c.connAttr))
}

// sleep waits for d unless the client closes or ctx ends first.
func (c *Client) sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return true
	case <-c.done:
		return false
	case <-ctx.Done():
		return false
	}
}

func nextBackoff(cur, max time.Duration) time.Duration {
	next := cur * 2
	if next > max {
		next = max
	}
	return next
}
