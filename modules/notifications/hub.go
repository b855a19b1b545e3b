package notifications

import (
	"log/slog"
	"sync"

	"github.com/classboard/classboard/pkg/logger"
)

// Conn is an opaque live transport handle held by the registry. Implementations
// must tolerate concurrent WriteJSON calls; the WebSocket adapter serializes
// writes with a mutex.
type Conn interface {
	WriteJSON(v any) error
	Close() error
}

// Hub maps recipient identities to their live connections and routes
// outbound payloads. A recipient has an entry iff it holds at least one
// handle; the entry is removed, never left empty, when the last handle
// closes.
//
// Hub is an explicit instance passed by reference to connection handlers and
// event producers. All methods are safe for concurrent use, and no method
// holds the registry lock across a transport write: sends operate on a
// snapshot of the handle set so a slow socket cannot stall unrelated
// connect/disconnect traffic.
type Hub struct {
	mu    sync.RWMutex
	conns map[string]map[Conn]struct{}
	log   *slog.Logger
}

// HubOption configures a Hub.
type HubOption func(*Hub)

// WithHubLogger sets the logger for the Hub.
func WithHubLogger(log *slog.Logger) HubOption {
	return func(h *Hub) {
		if log != nil {
			h.log = log
		}
	}
}

// NewHub creates an empty connection registry.
func NewHub(opts ...HubOption) *Hub {
	h := &Hub{
		conns: make(map[string]map[Conn]struct{}),
		log:   slog.Default(),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Register adds a handle to the recipient's set, creating the entry on the
// first connection. It never fails; registering the same handle twice is a
// no-op.
func (h *Hub) Register(userID string, conn Conn) {
	h.mu.Lock()
	set, ok := h.conns[userID]
	if !ok {
		set = make(map[Conn]struct{})
		h.conns[userID] = set
	}
	set[conn] = struct{}{}
	count := len(set)
	h.mu.Unlock()

	h.log.Debug("connection registered", logger.UserID(userID), logger.ConnectionCount(count))
}

// Unregister removes a handle; removing an absent handle is a no-op. The
// recipient's entry is deleted when its handle set empties.
func (h *Hub) Unregister(userID string, conn Conn) {
	h.mu.Lock()
	set, ok := h.conns[userID]
	if ok {
		delete(set, conn)
		if len(set) == 0 {
			delete(h.conns, userID)
		}
	}
	h.mu.Unlock()
}

// snapshot returns the recipient's handles at this instant. Senders iterate
// the snapshot so registry mutation during the send cannot corrupt anything.
func (h *Hub) snapshot(userID string) []Conn {
	h.mu.RLock()
	defer h.mu.RUnlock()

	set := h.conns[userID]
	if len(set) == 0 {
		return nil
	}
	conns := make([]Conn, 0, len(set))
	for c := range set {
		conns = append(conns, c)
	}
	return conns
}

// SendToUser pushes a notification envelope to every live connection of the
// recipient. It returns false without side effects when the recipient has no
// connections; in that case the stored row is the only record and the client
// picks it up on its next poll.
//
// A handle whose write fails is assumed dead and evicted; there is no retry.
// The return value means "recipient was reachable", not "every session
// received the frame" — durability comes from storage, not this boolean.
func (h *Hub) SendToUser(userID string, notif Notification) bool {
	conns := h.snapshot(userID)
	if len(conns) == 0 {
		return false
	}

	env := NotificationEnvelope(notif)
	for _, c := range conns {
		if err := c.WriteJSON(env); err != nil {
			h.evict(userID, c, err)
		}
	}
	return true
}

// SendToUsers applies SendToUser per recipient. One recipient's failure never
// blocks or skips the others.
func (h *Hub) SendToUsers(userIDs []string, notif Notification) map[string]bool {
	delivered := make(map[string]bool, len(userIDs))
	for _, id := range userIDs {
		delivered[id] = h.SendToUser(id, notif)
	}
	return delivered
}

// Broadcast sends a broadcast envelope to every live connection across all
// recipients. It returns the number of handles the attempt was made on — a
// snapshot at iteration time, not a delivery guarantee.
func (h *Hub) Broadcast(data any) int {
	type target struct {
		userID string
		conn   Conn
	}

	h.mu.RLock()
	targets := make([]target, 0, len(h.conns))
	for userID, set := range h.conns {
		for c := range set {
			targets = append(targets, target{userID: userID, conn: c})
		}
	}
	h.mu.RUnlock()

	env := BroadcastEnvelope(data)
	for _, t := range targets {
		if err := t.conn.WriteJSON(env); err != nil {
			h.evict(t.userID, t.conn, err)
		}
	}
	return len(targets)
}

// Sweep writes a heartbeat frame to every live connection and evicts handles
// whose write fails. Eviction is otherwise lazy (only on send failure), so a
// connection that went half-open without a close event would linger in the
// registry until the next send; a periodic sweep bounds that window. Returns
// the number of evicted handles.
func (h *Hub) Sweep() int {
	type target struct {
		userID string
		conn   Conn
	}

	h.mu.RLock()
	targets := make([]target, 0, len(h.conns))
	for userID, set := range h.conns {
		for c := range set {
			targets = append(targets, target{userID: userID, conn: c})
		}
	}
	h.mu.RUnlock()

	evicted := 0
	env := PongEnvelope()
	for _, t := range targets {
		if err := t.conn.WriteJSON(env); err != nil {
			h.evict(t.userID, t.conn, err)
			evicted++
		}
	}
	return evicted
}

// evict drops a single dead handle. Only the failed handle is removed;
// the failure never propagates to other handles or recipients.
func (h *Hub) evict(userID string, conn Conn, err error) {
	h.Unregister(userID, conn)
	_ = conn.Close()
	h.log.Warn("evicted dead connection", logger.UserID(userID), logger.Error(err))
}

// ConnectionCount returns the total number of live handles.
func (h *Hub) ConnectionCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()

	count := 0
	for _, set := range h.conns {
		count += len(set)
	}
	return count
}

// ConnectedUsers returns the identities currently holding at least one
// live connection.
func (h *Hub) ConnectedUsers() []string {
	h.mu.RLock()
	defer h.mu.RUnlock()

	users := make([]string, 0, len(h.conns))
	for userID := range h.conns {
		users = append(users, userID)
	}
	return users
}

// CloseAll closes every live connection and clears the registry. Used on
// shutdown.
func (h *Hub) CloseAll() {
	h.mu.Lock()
	conns := h.conns
	h.conns = make(map[string]map[Conn]struct{})
	h.mu.Unlock()

	for _, set := range conns {
		for c := range set {
			_ = c.Close()
		}
	}
}
