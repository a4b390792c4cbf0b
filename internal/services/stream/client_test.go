package stream

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/j-veylop/token-monitor-tui/internal/logger"
	"github.com/j-veylop/token-monitor-tui/internal/models"
)

func init() {
	logger.Discard()
}

// fakeServer accepts WebSocket connections and records the frames clients
// send to it.
type fakeServer struct {
	srv      *httptest.Server
	accepts  atomic.Int32
	requests atomic.Int32
	conns    chan *websocket.Conn
	frames   chan controlFrame
	query    chan string
	reject   atomic.Bool
}

func newFakeServer(t *testing.T) *fakeServer {
	t.Helper()
	fs := &fakeServer{
		conns:  make(chan *websocket.Conn, 8),
		frames: make(chan controlFrame, 64),
		query:  make(chan string, 8),
	}
	upgrader := websocket.Upgrader{}

	fs.srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fs.requests.Add(1)
		if fs.reject.Load() {
			http.Error(w, "unavailable", http.StatusServiceUnavailable)
			return
		}
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		fs.accepts.Add(1)
		fs.query <- r.URL.RawQuery
		fs.conns <- conn

		for {
			_, data, err := conn.ReadMessage()
			if err != nil {
				return
			}
			var f controlFrame
			if json.Unmarshal(data, &f) == nil {
				fs.frames <- f
			}
		}
	}))
	t.Cleanup(fs.srv.Close)
	return fs
}

func (fs *fakeServer) url() string {
	return "ws" + strings.TrimPrefix(fs.srv.URL, "http")
}

func (fs *fakeServer) nextConn(t *testing.T) *websocket.Conn {
	t.Helper()
	select {
	case c := <-fs.conns:
		return c
	case <-time.After(2 * time.Second):
		t.Fatal("no client connected")
		return nil
	}
}

func (fs *fakeServer) expectFrame(t *testing.T, want controlFrame) {
	t.Helper()
	deadline := time.After(2 * time.Second)
	for {
		select {
		case f := <-fs.frames:
			if f == want {
				return
			}
		case <-deadline:
			t.Fatalf("frame %+v never received", want)
		}
	}
}

func newTestClient(t *testing.T, cfg Config) *Client {
	t.Helper()
	if cfg.ReconnectDelay == 0 {
		cfg.ReconnectDelay = time.Millisecond
		cfg.MaxReconnectDelay = 5 * time.Millisecond
	}
	c := NewClient(cfg)
	t.Cleanup(func() { _ = c.Close() })
	return c
}

func sendEvent(t *testing.T, conn *websocket.Conn, kind string, data any) {
	t.Helper()
	msg := map[string]any{"type": kind, "data": data, "timestamp": time.Now().Format(time.RFC3339)}
	if err := conn.WriteJSON(msg); err != nil {
		t.Fatalf("write event: %v", err)
	}
}

func TestClient_DeliversSubscribedEvents(t *testing.T) {
	fs := newFakeServer(t)
	c := newTestClient(t, Config{URL: fs.url(), ClientID: "tui-1", MaxReconnects: 3})

	got := make(chan models.Snapshot, 1)
	unsub, err := SubscribeAll(c, Handlers{
		StatsUpdated: func(s models.Snapshot) { got <- s },
	})
	if err != nil {
		t.Fatalf("SubscribeAll() failed: %v", err)
	}
	defer unsub()

	if err := c.Start(); err != nil {
		t.Fatalf("Start() failed: %v", err)
	}
	conn := fs.nextConn(t)
	if q := <-fs.query; q != "client_id=tui-1" {
		t.Errorf("query = %q, want client_id=tui-1", q)
	}
	fs.expectFrame(t, controlFrame{Type: frameSubscribe, Event: EventStatsUpdated})

	sendEvent(t, conn, frameHeartbeat, nil)
	sendEvent(t, conn, EventStatsUpdated, map[string]any{"total_cost_usd": 4.25, "total_input_tokens": 10})

	select {
	case s := <-got:
		if s.TotalCostUSD != 4.25 || s.TotalInputTokens != 10 {
			t.Errorf("snapshot = %+v", s)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("event not delivered")
	}

	if c.State() != StateConnected {
		t.Errorf("State() = %s, want connected", c.State())
	}
}

func TestClient_RepliesToPing(t *testing.T) {
	fs := newFakeServer(t)
	c := newTestClient(t, Config{URL: fs.url()})
	if err := c.Start(); err != nil {
		t.Fatalf("Start() failed: %v", err)
	}

	conn := fs.nextConn(t)
	if err := conn.WriteJSON(map[string]string{"type": framePing}); err != nil {
		t.Fatalf("write ping: %v", err)
	}
	fs.expectFrame(t, controlFrame{Type: framePong})
}

func TestClient_MalformedFramesDoNotStopReading(t *testing.T) {
	fs := newFakeServer(t)
	c := newTestClient(t, Config{URL: fs.url()})

	got := make(chan []string, 1)
	var bad atomic.Int32
	if _, err := SubscribeAll(c, Handlers{
		FileChanged:  func(p []string) { got <- p },
		StatsUpdated: func(models.Snapshot) { bad.Add(1) },
	}); err != nil {
		t.Fatalf("SubscribeAll() failed: %v", err)
	}
	if err := c.Start(); err != nil {
		t.Fatalf("Start() failed: %v", err)
	}

	conn := fs.nextConn(t)
	fs.expectFrame(t, controlFrame{Type: frameSubscribe, Event: EventFileChanged})

	_ = conn.WriteMessage(websocket.TextMessage, []byte("{not json"))
	sendEvent(t, conn, EventStatsUpdated, "not a snapshot")
	sendEvent(t, conn, EventFileChanged, []string{"/tmp/a.jsonl"})

	select {
	case p := <-got:
		if len(p) != 1 || p[0] != "/tmp/a.jsonl" {
			t.Errorf("paths = %v", p)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("event after malformed frames not delivered")
	}
	if bad.Load() != 0 {
		t.Error("malformed payload reached the handler")
	}
}

func TestClient_ReconnectsAndResubscribes(t *testing.T) {
	fs := newFakeServer(t)

	var mu sync.Mutex
	var states []State
	c := newTestClient(t, Config{
		URL:           fs.url(),
		MaxReconnects: 5,
		OnStateChange: func(s State) {
			mu.Lock()
			states = append(states, s)
			mu.Unlock()
		},
	})
	if _, err := c.Listen(EventProviderSwitched, func([]byte) {}); err != nil {
		t.Fatalf("Listen() failed: %v", err)
	}
	if err := c.Start(); err != nil {
		t.Fatalf("Start() failed: %v", err)
	}

	first := fs.nextConn(t)
	fs.expectFrame(t, controlFrame{Type: frameSubscribe, Event: EventProviderSwitched})
	_ = first.Close()

	fs.nextConn(t)
	fs.expectFrame(t, controlFrame{Type: frameSubscribe, Event: EventProviderSwitched})

	if n := fs.accepts.Load(); n != 2 {
		t.Errorf("accepted connections = %d, want 2", n)
	}

	mu.Lock()
	defer mu.Unlock()
	connected := 0
	for _, s := range states {
		if s == StateConnected {
			connected++
		}
	}
	if connected != 2 {
		t.Errorf("states = %v, want two connected transitions", states)
	}
}

func TestClient_ReconnectIsBounded(t *testing.T) {
	fs := newFakeServer(t)
	fs.reject.Store(true)

	errs := make(chan error, 4)
	c := newTestClient(t, Config{
		URL:           fs.url(),
		MaxReconnects: 2,
		OnError:       func(err error) { errs <- err },
	})
	if err := c.Start(); err != nil {
		t.Fatalf("Start() failed: %v", err)
	}

	select {
	case <-errs:
	case <-time.After(2 * time.Second):
		t.Fatal("retry budget never exhausted")
	}
	time.Sleep(50 * time.Millisecond)

	if n := fs.requests.Load(); n != 3 {
		t.Errorf("dial attempts = %d, want 3", n)
	}
	if c.State() != StateDisconnected {
		t.Errorf("State() = %s, want disconnected", c.State())
	}

	// A manual reconnect starts a fresh cycle that can succeed.
	fs.reject.Store(false)
	c.Reconnect()
	fs.nextConn(t)
	deadline := time.Now().Add(2 * time.Second)
	for c.State() != StateConnected && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	if c.State() != StateConnected {
		t.Errorf("State() = %s after Reconnect, want connected", c.State())
	}
}

func TestClient_Lifecycle(t *testing.T) {
	c := NewClient(Config{URL: "ws://127.0.0.1:1/ws"})

	if _, err := c.Listen("quota-updated", func([]byte) {}); err == nil {
		t.Error("expected error for unknown event kind")
	}
	if err := c.Start(); err != nil {
		t.Fatalf("Start() failed: %v", err)
	}
	if err := c.Start(); !errors.Is(err, ErrAlreadyStarted) {
		t.Errorf("second Start: err = %v, want ErrAlreadyStarted", err)
	}

	if err := c.Close(); err != nil {
		t.Errorf("Close() failed: %v", err)
	}
	if err := c.Close(); err != nil {
		t.Errorf("second Close() failed: %v", err)
	}
	if _, err := c.Listen(EventStatsUpdated, func([]byte) {}); !errors.Is(err, ErrClosed) {
		t.Errorf("Listen after Close: err = %v, want ErrClosed", err)
	}
	if c.State() != StateDisconnected {
		t.Errorf("State() = %s, want disconnected", c.State())
	}
}

func TestShared_SingleInstance(t *testing.T) {
	cfg := Config{URL: "ws://127.0.0.1:1/ws", ReconnectDelay: time.Millisecond}

	a, err := Shared(cfg)
	if err != nil {
		t.Fatalf("Shared() failed: %v", err)
	}
	b, err := Shared(Config{URL: "ws://other.invalid/ws"})
	if err != nil {
		t.Fatalf("Shared() failed: %v", err)
	}
	if a != b {
		t.Error("Shared returned a second instance")
	}

	if err := Destroy(); err != nil {
		t.Fatalf("Destroy() failed: %v", err)
	}
	if _, err := a.Listen(EventStatsUpdated, func([]byte) {}); !errors.Is(err, ErrClosed) {
		t.Error("destroyed client still accepts listeners")
	}

	c, err := Shared(cfg)
	if err != nil {
		t.Fatalf("Shared() failed: %v", err)
	}
	defer func() { _ = Destroy() }()
	if c == a {
		t.Error("Shared reused a destroyed instance")
	}
	if err := Destroy(); err != nil {
		t.Fatalf("Destroy() failed: %v", err)
	}
	if err := Destroy(); err != nil {
		t.Errorf("Destroy() without instance = %v", err)
	}
}
