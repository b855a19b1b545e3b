package wsclient

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testUpgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// startEchoServer accepts WebSocket connections and holds them open, draining
// inbound frames. onConn runs once per accepted connection.
func startEchoServer(t *testing.T, onConn func(n int64, conn *websocket.Conn)) (*httptest.Server, string, *atomic.Int64) {
	t.Helper()

	var connCount atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := testUpgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		n := connCount.Add(1)
		if onConn != nil {
			onConn(n, conn)
		}
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				_ = conn.Close()
				return
			}
		}
	}))
	t.Cleanup(srv.Close)

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http")
	return srv, wsURL, &connCount
}

func TestBackoffDelay(t *testing.T) {
	m := New(Config{URL: "ws://unused", BackoffBase: time.Second})

	want := []time.Duration{
		1 * time.Second,
		2 * time.Second,
		4 * time.Second,
		8 * time.Second,
		16 * time.Second,
	}
	for attempt, expected := range want {
		assert.Equal(t, expected, m.backoffDelay(attempt), "attempt %d", attempt)
	}
}

func TestConfigDefaults(t *testing.T) {
	cfg := Config{URL: "ws://unused"}.withDefaults()
	assert.Equal(t, 10*time.Second, cfg.ConnectTimeout)
	assert.Equal(t, time.Second, cfg.BackoffBase)
	assert.Equal(t, 5, cfg.MaxAttempts)
}

func TestManager_ConnectAndAuth(t *testing.T) {
	authed := make(chan authFrame, 1)
	_, wsURL, _ := startEchoServer(t, func(n int64, conn *websocket.Conn) {
		_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
		var frame authFrame
		if err := conn.ReadJSON(&frame); err == nil {
			authed <- frame
		}
	})

	m := New(Config{URL: wsURL})
	defer m.Disconnect()

	m.Connect("u1", "student")

	select {
	case frame := <-authed:
		assert.Equal(t, "auth", frame.Type)
		assert.Equal(t, "u1", frame.UserID)
		assert.Equal(t, "student", frame.UserRole)
	case <-time.After(2 * time.Second):
		t.Fatal("auth frame never arrived")
	}

	require.Eventually(t, func() bool { return m.State() == StateOpen }, 2*time.Second, 10*time.Millisecond)
}

func TestManager_ConnectIsIdempotentWhileOpen(t *testing.T) {
	_, wsURL, connCount := startEchoServer(t, nil)

	m := New(Config{URL: wsURL})
	defer m.Disconnect()

	m.Connect("u1", "student")
	require.Eventually(t, func() bool { return m.State() == StateOpen }, 2*time.Second, 10*time.Millisecond)

	m.Connect("u1", "student")
	m.Connect("u1", "student")

	time.Sleep(100 * time.Millisecond)
	assert.Equal(t, int64(1), connCount.Load())
	assert.Equal(t, StateOpen, m.State())
}

func TestManager_GivesUpAfterAttemptCap(t *testing.T) {
	var requests atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests.Add(1)
		http.Error(w, "no", http.StatusServiceUnavailable)
	}))
	t.Cleanup(srv.Close)
	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http")

	m := New(Config{URL: wsURL, BackoffBase: 2 * time.Millisecond, MaxAttempts: 5})
	m.Connect("u1", "student")

	require.Eventually(t, func() bool { return m.State() == StateGivenUp }, 3*time.Second, 10*time.Millisecond)

	// Initial attempt plus five retries, then nothing more.
	assert.Equal(t, int64(6), requests.Load())
	time.Sleep(100 * time.Millisecond)
	assert.Equal(t, int64(6), requests.Load())
	assert.Equal(t, StateGivenUp, m.State())
}

func TestManager_ConnectFromGivenUpResetsBudget(t *testing.T) {
	var accept atomic.Bool
	var requests atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests.Add(1)
		if !accept.Load() {
			http.Error(w, "no", http.StatusServiceUnavailable)
			return
		}
		conn, err := testUpgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				_ = conn.Close()
				return
			}
		}
	}))
	t.Cleanup(srv.Close)
	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http")

	m := New(Config{URL: wsURL, BackoffBase: 2 * time.Millisecond, MaxAttempts: 2})
	m.Connect("u1", "student")
	require.Eventually(t, func() bool { return m.State() == StateGivenUp }, 3*time.Second, 10*time.Millisecond)

	accept.Store(true)
	m.Connect("u1", "student")
	require.Eventually(t, func() bool { return m.State() == StateOpen }, 2*time.Second, 10*time.Millisecond)
	m.Disconnect()
}

func TestManager_ReconnectsAfterDrop(t *testing.T) {
	_, wsURL, connCount := startEchoServer(t, func(n int64, conn *websocket.Conn) {
		if n == 1 {
			// Kill the first connection so the manager has to retry.
			_ = conn.Close()
		}
	})

	m := New(Config{URL: wsURL, BackoffBase: 5 * time.Millisecond})
	defer m.Disconnect()

	m.Connect("u1", "student")

	require.Eventually(t, func() bool {
		return connCount.Load() >= 2 && m.State() == StateOpen
	}, 3*time.Second, 10*time.Millisecond)
}

func TestManager_ListenersReceiveFrames(t *testing.T) {
	_, wsURL, _ := startEchoServer(t, func(n int64, conn *websocket.Conn) {
		payload, _ := json.Marshal(map[string]any{
			"type":   "notification",
			"userId": "u1",
			"data":   map[string]any{"id": "n1", "title": "hi"},
		})
		_ = conn.WriteMessage(websocket.TextMessage, payload)
	})

	m := New(Config{URL: wsURL})
	defer m.Disconnect()

	received := make(chan Message, 4)
	unsubscribe := m.AddListener(func(msg Message) { received <- msg })

	m.Connect("u1", "student")

	select {
	case msg := <-received:
		assert.Equal(t, "notification", msg.Type)
		assert.Equal(t, "u1", msg.UserID)
		assert.NotEmpty(t, msg.Data)
	case <-time.After(2 * time.Second):
		t.Fatal("listener never received the frame")
	}

	unsubscribe()
	unsubscribe() // safe to call twice

	m.mu.Lock()
	remaining := len(m.listeners)
	m.mu.Unlock()
	assert.Equal(t, 0, remaining)
}

func TestManager_PanickingListenerDoesNotSuppressOthers(t *testing.T) {
	m := New(Config{URL: "ws://unused"})

	received := make(chan Message, 1)
	m.AddListener(func(Message) { panic("subscriber bug") })
	m.AddListener(func(msg Message) { received <- msg })

	m.dispatch(Message{Type: "notification"})

	select {
	case msg := <-received:
		assert.Equal(t, "notification", msg.Type)
	default:
		t.Fatal("second listener was suppressed")
	}
}

func TestManager_Disconnect(t *testing.T) {
	_, wsURL, _ := startEchoServer(t, nil)

	m := New(Config{URL: wsURL, BackoffBase: 5 * time.Millisecond})
	m.Connect("u1", "student")
	require.Eventually(t, func() bool { return m.State() == StateOpen }, 2*time.Second, 10*time.Millisecond)

	m.AddListener(func(Message) {})
	m.Disconnect()

	assert.Equal(t, StateIdle, m.State())

	// No reconnect fires after an explicit disconnect.
	time.Sleep(100 * time.Millisecond)
	assert.Equal(t, StateIdle, m.State())
}

func TestManager_PingWithoutConnection(t *testing.T) {
	m := New(Config{URL: "ws://unused"})
	assert.NoError(t, m.Ping())
}

func TestManager_ConcurrentPings(t *testing.T) {
	_, wsURL, _ := startEchoServer(t, nil)

	m := New(Config{URL: wsURL})
	defer m.Disconnect()

	m.Connect("u1", "student")
	require.Eventually(t, func() bool { return m.State() == StateOpen }, 2*time.Second, 10*time.Millisecond)

	// Writes share one socket; overlapping pings must serialize rather than
	// interleave frames.
	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 25; j++ {
				_ = m.Ping()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, StateOpen, m.State())
}

func TestState_String(t *testing.T) {
	assert.Equal(t, "idle", StateIdle.String())
	assert.Equal(t, "connecting", StateConnecting.String())
	assert.Equal(t, "open", StateOpen.String())
	assert.Equal(t, "closed", StateClosed.String())
	assert.Equal(t, "given_up", StateGivenUp.String())
	assert.Equal(t, "unknown", State(99).String())
}
