// Package stream maintains the push channel from the backend.
package stream

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"slices"
	"sync"
	"time"

	"github.com/failsafe-go/failsafe-go"
	"github.com/failsafe-go/failsafe-go/retrypolicy"
	"github.com/gorilla/websocket"
	"github.com/tidwall/gjson"

	"github.com/j-veylop/token-monitor-tui/internal/config"
	"github.com/j-veylop/token-monitor-tui/internal/logger"
)

// Event kinds delivered by the backend.
const (
	EventStatsUpdated     = "stats-updated"
	EventProviderSwitched = "provider-switched"
	EventFileChanged      = "file-changed"
)

// Control frames exchanged with the backend.
const (
	frameSubscribe   = "subscribe"
	frameUnsubscribe = "unsubscribe"
	framePing        = "ping"
	framePong        = "pong"
	frameConnected   = "connected"
	frameHeartbeat   = "heartbeat"
)

var (
	// ErrClosed is returned when the client has been closed.
	ErrClosed = errors.New("stream client closed")
	// ErrAlreadyStarted is returned by a second call to Start.
	ErrAlreadyStarted = errors.New("stream client already started")
)

// State is the connection state of the push channel.
type State string

// Connection states.
const (
	StateDisconnected State = "disconnected"
	StateConnecting   State = "connecting"
	StateConnected    State = "connected"
)

// Config configures a Client.
type Config struct {
	URL      string
	ClientID string

	// ReconnectDelay and MaxReconnectDelay bound the exponential backoff
	// between attempts. MaxReconnects bounds the retries of one cycle.
	ReconnectDelay    time.Duration
	MaxReconnectDelay time.Duration
	MaxReconnects     int

	Dialer *websocket.Dialer

	OnStateChange func(State)
	OnError       func(error)
}

// ConfigFrom maps application configuration onto a client configuration.
func ConfigFrom(cfg *config.Config) Config {
	return Config{
		URL:               cfg.StreamURL,
		ClientID:          cfg.StreamClientID,
		ReconnectDelay:    cfg.StreamReconnectDelay,
		MaxReconnectDelay: cfg.StreamMaxReconnectDelay,
		MaxReconnects:     cfg.StreamMaxReconnects,
	}
}

type controlFrame struct {
	Type  string `json:"type"`
	Event string `json:"event,omitempty"`
}

// Client is a WebSocket push channel with automatic reconnects.
type Client struct {
	cfg Config

	mu        sync.Mutex
	state     State
	conn      *websocket.Conn
	listeners map[string]map[uint64]func([]byte)
	nextID    uint64
	started   bool
	closed    bool

	writeMu   sync.Mutex
	reconnect chan struct{}

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewClient creates a client. It does not connect until Start is called.
func NewClient(cfg Config) *Client {
	if cfg.ReconnectDelay <= 0 {
		cfg.ReconnectDelay = time.Second
	}
	if cfg.MaxReconnectDelay < cfg.ReconnectDelay {
		cfg.MaxReconnectDelay = cfg.ReconnectDelay
	}
	if cfg.MaxReconnects < 0 {
		cfg.MaxReconnects = 0
	}
	if cfg.Dialer == nil {
		cfg.Dialer = websocket.DefaultDialer
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Client{
		cfg:       cfg,
		state:     StateDisconnected,
		listeners: make(map[string]map[uint64]func([]byte)),
		reconnect: make(chan struct{}, 1),
		ctx:       ctx,
		cancel:    cancel,
	}
}

// Start launches the connection loop.
func (c *Client) Start() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return ErrClosed
	}
	if c.started {
		return ErrAlreadyStarted
	}
	c.started = true

	c.wg.Add(1)
	go c.run()
	return nil
}

// State returns the current connection state.
func (c *Client) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Listen registers fn for the payloads of one event kind. The first listener
// of a kind subscribes to it on the server; the last one to leave
// unsubscribes. Subscriptions are re-sent after every reconnect.
func (c *Client) Listen(kind string, fn func([]byte)) (func(), error) {
	if !knownEvent(kind) {
		return nil, fmt.Errorf("unknown stream event %q", kind)
	}

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil, ErrClosed
	}
	set, ok := c.listeners[kind]
	if !ok {
		set = make(map[uint64]func([]byte))
		c.listeners[kind] = set
	}
	first := len(set) == 0
	c.nextID++
	id := c.nextID
	set[id] = fn
	conn := c.conn
	c.mu.Unlock()

	if first && conn != nil {
		if err := c.send(conn, controlFrame{Type: frameSubscribe, Event: kind}); err != nil {
			c.remove(kind, id)
			return nil, fmt.Errorf("subscribe %s: %w", kind, err)
		}
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			if last, conn := c.remove(kind, id); last && conn != nil {
				if err := c.send(conn, controlFrame{Type: frameUnsubscribe, Event: kind}); err != nil {
					logger.Debug("unsubscribe failed", "event", kind, "error", err)
				}
			}
		})
	}, nil
}

// remove drops one listener and reports whether it was the last of its kind.
func (c *Client) remove(kind string, id uint64) (last bool, conn *websocket.Conn) {
	c.mu.Lock()
	defer c.mu.Unlock()

	set := c.listeners[kind]
	if _, ok := set[id]; !ok {
		return false, nil
	}
	delete(set, id)
	return len(set) == 0, c.conn
}

// Reconnect starts a new connection cycle after the previous one gave up.
// It does nothing while connected.
func (c *Client) Reconnect() {
	if c.State() == StateConnected {
		return
	}
	select {
	case c.reconnect <- struct{}{}:
	default:
	}
}

// Close disconnects and stops reconnecting. Listeners are dropped.
func (c *Client) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	conn := c.conn
	c.listeners = make(map[string]map[uint64]func([]byte))
	c.mu.Unlock()

	c.cancel()

	if conn != nil {
		c.writeMu.Lock()
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(time.Second))
		c.writeMu.Unlock()
		_ = conn.Close()
	}

	c.wg.Wait()

	c.mu.Lock()
	c.state = StateDisconnected
	c.mu.Unlock()
	return nil
}

func (c *Client) run() {
	defer c.wg.Done()

	for {
		conn, err := c.connect()
		if err != nil {
			if c.ctx.Err() != nil {
				return
			}
			c.setState(StateDisconnected)
			c.reportError(fmt.Errorf("stream unavailable: %w", err))

			select {
			case <-c.reconnect:
				continue
			case <-c.ctx.Done():
				return
			}
		}

		c.serve(conn)
		if c.ctx.Err() != nil {
			return
		}
		c.setState(StateDisconnected)
	}
}

// connect dials until it succeeds or the retry budget of one cycle is spent.
// Attempts run one after another on the calling goroutine.
func (c *Client) connect() (*websocket.Conn, error) {
	policy := retrypolicy.NewBuilder[*websocket.Conn]().
		WithMaxRetries(c.cfg.MaxReconnects).
		WithBackoff(c.cfg.ReconnectDelay, c.cfg.MaxReconnectDelay).
		Build()

	attempt := 0
	return failsafe.With[*websocket.Conn](policy).WithContext(c.ctx).Get(func() (*websocket.Conn, error) {
		attempt++
		c.setState(StateConnecting)
		conn, err := c.dial()
		if err != nil {
			logger.Debug("stream dial failed", "attempt", attempt, "error", err)
		}
		return conn, err
	})
}

func (c *Client) dial() (*websocket.Conn, error) {
	target, err := c.target()
	if err != nil {
		return nil, err
	}

	conn, resp, err := c.cfg.Dialer.DialContext(c.ctx, target, nil)
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("%w (status %d)", err, resp.StatusCode)
		}
		return nil, err
	}
	return conn, nil
}

func (c *Client) target() (string, error) {
	if c.cfg.ClientID == "" {
		return c.cfg.URL, nil
	}
	u, err := url.Parse(c.cfg.URL)
	if err != nil {
		return "", err
	}
	q := u.Query()
	q.Set("client_id", c.cfg.ClientID)
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// serve owns conn until it drops.
func (c *Client) serve(conn *websocket.Conn) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		_ = conn.Close()
		return
	}
	c.conn = conn
	kinds := c.subscribedLocked()
	c.mu.Unlock()

	c.setState(StateConnected)
	logger.Info("stream connected", "url", c.cfg.URL)

	for _, kind := range kinds {
		if err := c.send(conn, controlFrame{Type: frameSubscribe, Event: kind}); err != nil {
			logger.Warn("resubscribe failed", "event", kind, "error", err)
		}
	}

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if c.ctx.Err() == nil {
				logger.Warn("stream connection lost", "error", err)
			}
			break
		}
		c.dispatch(conn, data)
	}

	c.mu.Lock()
	c.conn = nil
	c.mu.Unlock()
	_ = conn.Close()
}

func (c *Client) subscribedLocked() []string {
	kinds := make([]string, 0, len(c.listeners))
	for kind, set := range c.listeners {
		if len(set) > 0 {
			kinds = append(kinds, kind)
		}
	}
	slices.Sort(kinds)
	return kinds
}

func (c *Client) dispatch(conn *websocket.Conn, data []byte) {
	if !gjson.ValidBytes(data) {
		logger.Warn("dropping malformed stream frame", "size", len(data))
		return
	}

	kind := gjson.GetBytes(data, "type").String()
	switch kind {
	case framePing:
		if err := c.send(conn, controlFrame{Type: framePong}); err != nil {
			logger.Debug("pong failed", "error", err)
		}
		return
	case frameConnected, frameHeartbeat, framePong:
		logger.Debug("stream control frame", "type", kind)
		return
	}

	payload := gjson.GetBytes(data, "data")
	if !payload.Exists() {
		logger.Warn("dropping stream frame without data", "type", kind)
		return
	}

	c.mu.Lock()
	set := c.listeners[kind]
	ids := make([]uint64, 0, len(set))
	for id := range set {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	fns := make([]func([]byte), len(ids))
	for i, id := range ids {
		fns[i] = set[id]
	}
	c.mu.Unlock()

	if len(fns) == 0 {
		logger.Debug("no listener for stream event", "type", kind)
		return
	}

	raw := []byte(payload.Raw)
	for _, fn := range fns {
		fn(raw)
	}
}

func (c *Client) send(conn *websocket.Conn, frame controlFrame) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return conn.WriteJSON(frame)
}

func (c *Client) setState(s State) {
	c.mu.Lock()
	if c.state == s {
		c.mu.Unlock()
		return
	}
	c.state = s
	hook := c.cfg.OnStateChange
	closed := c.closed
	c.mu.Unlock()

	logger.Debug("stream state changed", "state", string(s))
	if hook != nil && !closed {
		hook(s)
	}
}

func (c *Client) reportError(err error) {
	logger.Warn("stream error", "error", err)
	if c.cfg.OnError != nil {
		c.cfg.OnError(err)
	}
}

func knownEvent(kind string) bool {
	switch kind {
	case EventStatsUpdated, EventProviderSwitched, EventFileChanged:
		return true
	}
	return false
}
