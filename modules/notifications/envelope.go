package notifications

import "time"

// EnvelopeType discriminates wire frames on the WebSocket connection.
type EnvelopeType string

const (
	// Server -> client.
	EnvelopeConnected    EnvelopeType = "connected"
	EnvelopeNotification EnvelopeType = "notification"
	EnvelopeBroadcast    EnvelopeType = "broadcast"
	EnvelopePong         EnvelopeType = "pong"
	EnvelopeError        EnvelopeType = "error"

	// Client -> server.
	FrameAuth EnvelopeType = "auth"
	FramePing EnvelopeType = "ping"
)

// Envelope is the outbound wire frame. Envelopes are transient; only the
// payload inside a notification or broadcast frame corresponds to a stored
// Notification row.
type Envelope struct {
	Type      EnvelopeType `json:"type"`
	Message   string       `json:"message,omitempty"`
	UserID    string       `json:"userId,omitempty"`
	Data      any          `json:"data,omitempty"`
	Timestamp time.Time    `json:"timestamp,omitempty"`
}

// InboundFrame is the client -> server frame shape. Unknown fields are
// ignored so protocol additions stay backward compatible.
type InboundFrame struct {
	Type      EnvelopeType `json:"type"`
	UserID    string       `json:"userId,omitempty"`
	UserRole  string       `json:"userRole,omitempty"`
	Timestamp time.Time    `json:"timestamp,omitempty"`
}

// ConnectedEnvelope acknowledges a successful handshake.
func ConnectedEnvelope(userID string) Envelope {
	return Envelope{
		Type:      EnvelopeConnected,
		Message:   "connection established",
		UserID:    userID,
		Timestamp: time.Now(),
	}
}

// NotificationEnvelope wraps a notification for delivery to one recipient.
func NotificationEnvelope(n Notification) Envelope {
	return Envelope{
		Type:      EnvelopeNotification,
		UserID:    n.UserID,
		Data:      n,
		Timestamp: time.Now(),
	}
}

// BroadcastEnvelope wraps a payload addressed to every live connection.
func BroadcastEnvelope(data any) Envelope {
	return Envelope{
		Type:      EnvelopeBroadcast,
		Data:      data,
		Timestamp: time.Now(),
	}
}

// PongEnvelope answers a client ping.
func PongEnvelope() Envelope {
	return Envelope{
		Type:      EnvelopePong,
		Timestamp: time.Now(),
	}
}

// ErrorEnvelope reports a transport-level problem to the client.
func ErrorEnvelope(msg string) Envelope {
	return Envelope{
		Type:    EnvelopeError,
		Message: msg,
	}
}
