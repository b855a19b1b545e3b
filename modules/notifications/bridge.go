package notifications

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/classboard/classboard/pkg/logger"
)

// defaultBridgeChannel is the pub/sub channel instances share.
const defaultBridgeChannel = "classboard:notifications"

// bridgeMessage is the cross-instance wire format. Origin identifies the
// publishing instance so it can skip its own messages on the subscribe side.
type bridgeMessage struct {
	Origin       string       `json:"origin"`
	Notification Notification `json:"notification"`
}

// Bridge fans pushed notifications out across server instances through Redis
// pub/sub. Each instance delivers locally through its own Hub and publishes
// for the others; remote instances deliver to whatever connections they hold
// for the recipient.
//
// Bridge implements Pusher, wrapping a Hub: the local delivery result stays
// authoritative for the boolean producers see, since the publishing instance
// cannot know about remote registries synchronously.
type Bridge struct {
	client  *redis.Client
	hub     *Hub
	channel string
	origin  string
	log     *slog.Logger
}

// BridgeOption configures a Bridge.
type BridgeOption func(*Bridge)

// WithBridgeChannel overrides the pub/sub channel name.
func WithBridgeChannel(name string) BridgeOption {
	return func(b *Bridge) {
		if name != "" {
			b.channel = name
		}
	}
}

// WithBridgeLogger sets the logger for the Bridge.
func WithBridgeLogger(log *slog.Logger) BridgeOption {
	return func(b *Bridge) {
		if log != nil {
			b.log = log
		}
	}
}

// NewBridge creates a cross-instance fan-out bridge around the local hub.
func NewBridge(client *redis.Client, hub *Hub, opts ...BridgeOption) *Bridge {
	b := &Bridge{
		client:  client,
		hub:     hub,
		channel: defaultBridgeChannel,
		origin:  uuid.New().String(),
		log:     slog.Default(),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// SendToUser delivers locally, then publishes for other instances. Publish
// failures are logged, not surfaced: the row is already durable and remote
// recipients fall back to polling.
func (b *Bridge) SendToUser(userID string, notif Notification) bool {
	delivered := b.hub.SendToUser(userID, notif)

	if err := b.publish(context.Background(), notif); err != nil {
		b.log.Warn("failed to publish notification to bridge",
			logger.NotificationID(notif.ID),
			logger.UserID(userID),
			logger.Error(err),
		)
	}

	return delivered
}

// SendToUsers applies SendToUser per recipient.
func (b *Bridge) SendToUsers(userIDs []string, notif Notification) map[string]bool {
	delivered := make(map[string]bool, len(userIDs))
	for _, id := range userIDs {
		delivered[id] = b.SendToUser(id, notif)
	}
	return delivered
}

func (b *Bridge) publish(ctx context.Context, notif Notification) error {
	payload, err := json.Marshal(bridgeMessage{
		Origin:       b.origin,
		Notification: notif,
	})
	if err != nil {
		return fmt.Errorf("marshal bridge message: %w", err)
	}
	return b.client.Publish(ctx, b.channel, payload).Err()
}

// Run subscribes to the bridge channel and delivers remote-originated
// notifications to the local hub until ctx is cancelled.
func (b *Bridge) Run(ctx context.Context) error {
	sub := b.client.Subscribe(ctx, b.channel)
	defer func() { _ = sub.Close() }()

	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			b.handlePayload([]byte(msg.Payload))
		}
	}
}

// handlePayload delivers one bridge message to the local hub, skipping
// messages this instance published itself.
func (b *Bridge) handlePayload(payload []byte) {
	var msg bridgeMessage
	if err := json.Unmarshal(payload, &msg); err != nil {
		b.log.Warn("dropping malformed bridge message", logger.Error(err))
		return
	}
	if msg.Origin == b.origin {
		return
	}

	b.hub.SendToUser(msg.Notification.UserID, msg.Notification)
}
