package notifications

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBridge_HandlePayload(t *testing.T) {
	notif := Notification{ID: "n1", UserID: "u1", Type: TypeChat, Title: "hi"}

	t.Run("remote message is delivered to the local hub", func(t *testing.T) {
		hub := NewHub()
		conn := &fakeConn{}
		hub.Register("u1", conn)
		bridge := NewBridge(nil, hub)

		payload, err := json.Marshal(bridgeMessage{Origin: "other-instance", Notification: notif})
		require.NoError(t, err)

		bridge.handlePayload(payload)

		require.Len(t, conn.written(), 1)
		env, ok := conn.written()[0].(Envelope)
		require.True(t, ok)
		assert.Equal(t, EnvelopeNotification, env.Type)
	})

	t.Run("own message is skipped", func(t *testing.T) {
		hub := NewHub()
		conn := &fakeConn{}
		hub.Register("u1", conn)
		bridge := NewBridge(nil, hub)

		payload, err := json.Marshal(bridgeMessage{Origin: bridge.origin, Notification: notif})
		require.NoError(t, err)

		bridge.handlePayload(payload)

		assert.Empty(t, conn.written())
	})

	t.Run("malformed payload is dropped", func(t *testing.T) {
		hub := NewHub()
		conn := &fakeConn{}
		hub.Register("u1", conn)
		bridge := NewBridge(nil, hub)

		bridge.handlePayload([]byte("{broken"))

		assert.Empty(t, conn.written())
	})

	t.Run("offline recipient on this instance is not an error", func(t *testing.T) {
		bridge := NewBridge(nil, NewHub())

		payload, err := json.Marshal(bridgeMessage{Origin: "other-instance", Notification: notif})
		require.NoError(t, err)

		assert.NotPanics(t, func() { bridge.handlePayload(payload) })
	})
}

func TestBridge_DistinctOrigins(t *testing.T) {
	a := NewBridge(nil, NewHub())
	b := NewBridge(nil, NewHub())
	assert.NotEmpty(t, a.origin)
	assert.NotEqual(t, a.origin, b.origin)
}
