package wsclient

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/url"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/classboard/classboard/pkg/logger"
)

// State is the connection lifecycle state of a Manager.
type State int

const (
	StateIdle State = iota
	StateConnecting
	StateOpen
	StateClosed
	StateGivenUp
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateConnecting:
		return "connecting"
	case StateOpen:
		return "open"
	case StateClosed:
		return "closed"
	case StateGivenUp:
		return "given_up"
	default:
		return "unknown"
	}
}

// Message is a parsed inbound frame. Data is left raw so each consumer
// decodes only the payloads it cares about.
type Message struct {
	Type      string          `json:"type"`
	Message   string          `json:"message,omitempty"`
	UserID    string          `json:"userId,omitempty"`
	Data      json.RawMessage `json:"data,omitempty"`
	Timestamp time.Time       `json:"timestamp,omitempty"`
}

// Listener receives every parsed inbound frame.
type Listener func(Message)

// Config tunes the Manager's connection behavior.
type Config struct {
	URL            string        // WebSocket endpoint, e.g. "ws://api.internal/ws"
	ConnectTimeout time.Duration // bound on one connect attempt; default 10s
	BackoffBase    time.Duration // first reconnect delay; default 1s, doubled per attempt
	MaxAttempts    int           // reconnect attempt cap; default 5
}

func (c Config) withDefaults() Config {
	if c.ConnectTimeout <= 0 {
		c.ConnectTimeout = 10 * time.Second
	}
	if c.BackoffBase <= 0 {
		c.BackoffBase = time.Second
	}
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = 5
	}
	return c
}

// authFrame is sent immediately after a successful open.
type authFrame struct {
	Type      string    `json:"type"`
	UserID    string    `json:"userId"`
	UserRole  string    `json:"userRole"`
	Timestamp time.Time `json:"timestamp"`
}

// pingFrame elicits a pong from the server.
type pingFrame struct {
	Type string `json:"type"`
}

// Manager owns one logical WebSocket connection and its retry lifecycle:
// Idle -> Connecting -> Open -> Closed -> (backoff) -> Connecting ...,
// terminating in GivenUp once the attempt cap is exhausted.
type Manager struct {
	cfg    Config
	dialer *websocket.Dialer
	log    *slog.Logger

	mu        sync.Mutex
	writeMu   sync.Mutex // serializes socket writes; gorilla forbids concurrent writers
	state     State
	conn      *websocket.Conn
	attempts  int
	gen       int // connection generation; stale goroutines check it and bail
	listeners map[int]Listener
	nextID    int
	userID    string
	role      string
	timer     *time.Timer
	stopped   bool
}

// ManagerOption configures a Manager.
type ManagerOption func(*Manager)

// WithManagerLogger sets the logger for the Manager.
func WithManagerLogger(log *slog.Logger) ManagerOption {
	return func(m *Manager) {
		if log != nil {
			m.log = log
		}
	}
}

// WithDialer overrides the websocket dialer.
func WithDialer(d *websocket.Dialer) ManagerOption {
	return func(m *Manager) {
		if d != nil {
			m.dialer = d
		}
	}
}

// New creates a Manager. It does not connect until Connect is called.
func New(cfg Config, opts ...ManagerOption) *Manager {
	m := &Manager{
		cfg:       cfg.withDefaults(),
		dialer:    websocket.DefaultDialer,
		log:       slog.Default(),
		listeners: make(map[int]Listener),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// State returns the current lifecycle state.
func (m *Manager) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Connect opens the transport for the given identity. It is a no-op while a
// connection attempt is in flight or a connection is open, so repeated calls
// from racing initializers are harmless. Calling it from Idle or GivenUp
// starts a fresh attempt budget.
func (m *Manager) Connect(userID, role string) {
	m.mu.Lock()
	if m.state == StateConnecting || m.state == StateOpen {
		m.mu.Unlock()
		return
	}
	m.userID = userID
	m.role = role
	m.stopped = false
	if m.state == StateIdle || m.state == StateGivenUp {
		m.attempts = 0
	}
	m.state = StateConnecting
	m.gen++
	gen := m.gen
	m.mu.Unlock()

	go m.dial(gen, userID, role)
}

// Disconnect closes the transport, clears the listener set, and stops any
// scheduled reconnect. Used on logout or session end.
func (m *Manager) Disconnect() {
	m.mu.Lock()
	m.stopped = true
	m.gen++
	if m.timer != nil {
		m.timer.Stop()
		m.timer = nil
	}
	conn := m.conn
	m.conn = nil
	m.state = StateIdle
	m.listeners = make(map[int]Listener)
	m.mu.Unlock()

	if conn != nil {
		_ = conn.Close()
	}
}

// AddListener subscribes to parsed inbound frames and returns an unsubscribe
// function that removes exactly this listener and is safe to call multiple
// times.
func (m *Manager) AddListener(fn Listener) func() {
	m.mu.Lock()
	id := m.nextID
	m.nextID++
	m.listeners[id] = fn
	m.mu.Unlock()

	return func() {
		m.mu.Lock()
		delete(m.listeners, id)
		m.mu.Unlock()
	}
}

// Ping sends a ping frame on the open connection, if any.
func (m *Manager) Ping() error {
	m.mu.Lock()
	conn := m.conn
	m.mu.Unlock()

	if conn == nil {
		return nil
	}
	return m.writeJSON(conn, pingFrame{Type: "ping"})
}

// writeJSON is the single write path to the socket. The auth write on open
// and Ping share it so overlapping calls cannot interleave frames.
func (m *Manager) writeJSON(conn *websocket.Conn, v any) error {
	m.writeMu.Lock()
	defer m.writeMu.Unlock()
	return conn.WriteJSON(v)
}

// dial performs one connect attempt. The ConnectTimeout context doubles as
// the connect watchdog: an attempt still unresolved when it expires fails
// and routes through the close path like any other connect failure.
func (m *Manager) dial(gen int, userID, role string) {
	ctx, cancel := context.WithTimeout(context.Background(), m.cfg.ConnectTimeout)
	defer cancel()

	q := url.Values{}
	q.Set("userId", userID)
	q.Set("role", role)
	endpoint := m.cfg.URL + "?" + q.Encode()

	conn, resp, err := m.dialer.DialContext(ctx, endpoint, nil)
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}

	m.mu.Lock()
	if m.stopped || gen != m.gen {
		m.mu.Unlock()
		if conn != nil {
			_ = conn.Close()
		}
		return
	}
	if err != nil {
		m.mu.Unlock()
		m.log.Warn("websocket connect failed", logger.Error(err))
		m.handleClose(gen)
		return
	}

	m.conn = conn
	m.state = StateOpen
	m.attempts = 0
	m.mu.Unlock()

	if err := m.writeJSON(conn, authFrame{
		Type:      "auth",
		UserID:    userID,
		UserRole:  role,
		Timestamp: time.Now(),
	}); err != nil {
		m.log.Warn("failed to send auth frame", logger.Error(err))
		_ = conn.Close()
		m.handleClose(gen)
		return
	}

	m.log.Debug("websocket connected", logger.UserID(userID))
	go m.readLoop(conn, gen)
}

// readLoop consumes frames until the connection drops. Parse failures are
// dropped with a warning and must never take the transport down.
func (m *Manager) readLoop(conn *websocket.Conn, gen int) {
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			break
		}

		var msg Message
		if err := json.Unmarshal(data, &msg); err != nil {
			m.log.Warn("dropping malformed frame", logger.Error(err))
			continue
		}

		m.dispatch(msg)
	}

	_ = conn.Close()
	m.handleClose(gen)
}

// dispatch fans a frame out to all listeners. Each callback runs inside its
// own recover boundary so one panicking subscriber cannot suppress delivery
// to the rest.
func (m *Manager) dispatch(msg Message) {
	m.mu.Lock()
	listeners := make([]Listener, 0, len(m.listeners))
	for _, fn := range m.listeners {
		listeners = append(listeners, fn)
	}
	m.mu.Unlock()

	for _, fn := range listeners {
		func() {
			defer func() {
				if r := recover(); r != nil {
					m.log.Error("listener panicked", slog.Any("panic", r))
				}
			}()
			fn(msg)
		}()
	}
}

// handleClose drives the retry path after a connect failure or dropped
// connection. Attempts 1..MaxAttempts wait BackoffBase * 2^(attempt-1);
// past the cap the manager transitions to GivenUp and stops scheduling.
func (m *Manager) handleClose(gen int) {
	m.mu.Lock()
	if m.stopped || gen != m.gen {
		m.mu.Unlock()
		return
	}

	m.conn = nil
	m.state = StateClosed

	if m.attempts >= m.cfg.MaxAttempts {
		m.state = StateGivenUp
		m.mu.Unlock()
		m.log.Warn("reconnect attempts exhausted, degrading to poll-only delivery")
		return
	}

	delay := m.backoffDelay(m.attempts)
	m.attempts++
	attempt := m.attempts
	m.timer = time.AfterFunc(delay, m.redial)
	m.mu.Unlock()

	m.log.Info("scheduling reconnect", logger.Attempt(attempt), logger.Duration(delay))
}

// redial transitions Closed -> Connecting when a scheduled reconnect fires.
func (m *Manager) redial() {
	m.mu.Lock()
	if m.stopped || m.state != StateClosed {
		m.mu.Unlock()
		return
	}
	m.state = StateConnecting
	m.gen++
	gen := m.gen
	userID, role := m.userID, m.role
	m.mu.Unlock()

	go m.dial(gen, userID, role)
}

// backoffDelay returns the wait before reconnect attempt (attempt+1):
// base, 2*base, 4*base, ...
func (m *Manager) backoffDelay(attempt int) time.Duration {
	return m.cfg.BackoffBase << attempt
}
