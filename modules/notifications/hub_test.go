package notifications

import (
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeConn records writes and can be flipped to fail, standing in for a real
// socket in registry tests.
type fakeConn struct {
	mu     sync.Mutex
	writes []any
	fail   bool
	closed bool
}

func (c *fakeConn) WriteJSON(v any) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.fail {
		return errors.New("write on closed socket")
	}
	c.writes = append(c.writes, v)
	return nil
}

func (c *fakeConn) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	return nil
}

func (c *fakeConn) setFail(fail bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.fail = fail
}

func (c *fakeConn) written() []any {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]any, len(c.writes))
	copy(out, c.writes)
	return out
}

func (c *fakeConn) isClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

func TestHub_RegisterUnregister(t *testing.T) {
	t.Run("entry appears on first handle and disappears with the last", func(t *testing.T) {
		hub := NewHub()
		c1 := &fakeConn{}
		c2 := &fakeConn{}

		hub.Register("u1", c1)
		hub.Register("u1", c2)
		assert.Equal(t, 2, hub.ConnectionCount())
		assert.Equal(t, []string{"u1"}, hub.ConnectedUsers())

		hub.Unregister("u1", c1)
		assert.Equal(t, 1, hub.ConnectionCount())
		assert.Equal(t, []string{"u1"}, hub.ConnectedUsers())

		hub.Unregister("u1", c2)
		assert.Equal(t, 0, hub.ConnectionCount())
		assert.Empty(t, hub.ConnectedUsers())
	})

	t.Run("duplicate register is a no-op", func(t *testing.T) {
		hub := NewHub()
		c := &fakeConn{}
		hub.Register("u1", c)
		hub.Register("u1", c)
		assert.Equal(t, 1, hub.ConnectionCount())
	})

	t.Run("unregister of absent handle is a no-op", func(t *testing.T) {
		hub := NewHub()
		hub.Unregister("nobody", &fakeConn{})
		assert.Equal(t, 0, hub.ConnectionCount())
	})
}

func TestHub_SendToUser(t *testing.T) {
	notif := Notification{ID: "n1", UserID: "u1", Type: TypeChat, Title: "hi"}

	t.Run("returns false with no side effects when recipient is offline", func(t *testing.T) {
		hub := NewHub()
		assert.False(t, hub.SendToUser("u1", notif))
		assert.Equal(t, 0, hub.ConnectionCount())
	})

	t.Run("delivers to every session of the recipient", func(t *testing.T) {
		hub := NewHub()
		c1 := &fakeConn{}
		c2 := &fakeConn{}
		hub.Register("u1", c1)
		hub.Register("u1", c2)
		hub.Register("u2", &fakeConn{})

		assert.True(t, hub.SendToUser("u1", notif))

		require.Len(t, c1.written(), 1)
		require.Len(t, c2.written(), 1)

		env, ok := c1.written()[0].(Envelope)
		require.True(t, ok)
		assert.Equal(t, EnvelopeNotification, env.Type)
		assert.Equal(t, "u1", env.UserID)
	})

	t.Run("failed write evicts only that handle and the other keeps working", func(t *testing.T) {
		hub := NewHub()
		dead := &fakeConn{}
		dead.setFail(true)
		live := &fakeConn{}
		hub.Register("u1", dead)
		hub.Register("u1", live)

		assert.True(t, hub.SendToUser("u1", notif))

		assert.True(t, dead.isClosed())
		assert.Len(t, live.written(), 1)
		assert.Equal(t, 1, hub.ConnectionCount())

		// A second send reaches the surviving handle only.
		assert.True(t, hub.SendToUser("u1", notif))
		assert.Len(t, live.written(), 2)
	})
}

func TestHub_SendToUsers(t *testing.T) {
	hub := NewHub()
	hub.Register("a", &fakeConn{})
	hub.Register("b", &fakeConn{})

	notif := Notification{ID: "n1", Type: TypeAnnouncement}
	delivered := hub.SendToUsers([]string{"a", "b", "c"}, notif)

	assert.Equal(t, map[string]bool{"a": true, "b": true, "c": false}, delivered)
}

func TestHub_Broadcast(t *testing.T) {
	t.Run("reaches every handle across recipients", func(t *testing.T) {
		hub := NewHub()
		conns := make([]*fakeConn, 0, 3)
		for _, userID := range []string{"a", "a", "b"} {
			c := &fakeConn{}
			conns = append(conns, c)
			hub.Register(userID, c)
		}

		count := hub.Broadcast(map[string]any{"message": "maintenance at noon"})
		assert.Equal(t, 3, count)

		for _, c := range conns {
			require.Len(t, c.written(), 1)
			env, ok := c.written()[0].(Envelope)
			require.True(t, ok)
			assert.Equal(t, EnvelopeBroadcast, env.Type)
		}
	})

	t.Run("empty registry broadcasts to nobody", func(t *testing.T) {
		hub := NewHub()
		assert.Equal(t, 0, hub.Broadcast("ping"))
	})
}

func TestHub_Sweep(t *testing.T) {
	hub := NewHub()
	live := &fakeConn{}
	dead := &fakeConn{}
	dead.setFail(true)
	hub.Register("u1", live)
	hub.Register("u2", dead)

	evicted := hub.Sweep()

	assert.Equal(t, 1, evicted)
	assert.True(t, dead.isClosed())
	assert.Equal(t, 1, hub.ConnectionCount())
	assert.Equal(t, []string{"u1"}, hub.ConnectedUsers())
}

func TestHub_CloseAll(t *testing.T) {
	hub := NewHub()
	conns := []*fakeConn{{}, {}, {}}
	for i, c := range conns {
		hub.Register(fmt.Sprintf("u%d", i), c)
	}

	hub.CloseAll()

	assert.Equal(t, 0, hub.ConnectionCount())
	for _, c := range conns {
		assert.True(t, c.isClosed())
	}
}

func TestHub_ConcurrentChurn(t *testing.T) {
	hub := NewHub()
	notif := Notification{ID: "n1", UserID: "u1", Type: TypeChat}

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			userID := fmt.Sprintf("u%d", i%4)
			c := &fakeConn{}
			hub.Register(userID, c)
			hub.SendToUser(userID, notif)
			hub.Broadcast("tick")
			hub.Unregister(userID, c)
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 0, hub.ConnectionCount())
}
