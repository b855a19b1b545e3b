package wsclient

import (
	"encoding/json"
	"sort"
	"sync"
	"time"
)

// Notification is the client-side view of a notification row. The field set
// mirrors the server wire format; the client deliberately keeps its own type
// so it can be versioned independently of the server module.
type Notification struct {
	ID        string         `json:"id"`
	UserID    string         `json:"userId"`
	SenderID  string         `json:"senderId,omitempty"`
	Type      string         `json:"type"`
	Title     string         `json:"title"`
	Message   string         `json:"message"`
	Metadata  map[string]any `json:"metadata,omitempty"`
	Read      bool           `json:"isRead"`
	ReadAt    *time.Time     `json:"readAt,omitempty"`
	CreatedAt time.Time      `json:"createdAt"`
}

// Inbox holds the in-memory notification list and unread counter for one
// client session. It merges live push frames with REST-fetched history and
// mirrors the server's read-state invariants: the unread counter equals the
// number of held unread notifications, and read transitions are monotonic.
type Inbox struct {
	mu     sync.Mutex
	items  []Notification
	unread int
}

// NewInbox creates an empty inbox.
func NewInbox() *Inbox {
	return &Inbox{}
}

// Attach subscribes the inbox to a Manager's push frames. Only notification
// frames mutate state; the returned detach function unsubscribes.
func (b *Inbox) Attach(m *Manager) func() {
	return m.AddListener(func(msg Message) {
		if msg.Type != "notification" {
			return
		}
		var n Notification
		if err := json.Unmarshal(msg.Data, &n); err != nil {
			return
		}
		b.ApplyPush(n)
	})
}

// ApplyPush merges one pushed notification. Pushes are at-most-once but the
// same row can also arrive via a history fetch, so merging de-dupes by ID.
func (b *Inbox) ApplyPush(n Notification) {
	b.mu.Lock()
	defer b.mu.Unlock()

	for _, existing := range b.items {
		if existing.ID == n.ID {
			return
		}
	}

	b.items = append([]Notification{n}, b.items...)
	if !n.Read {
		b.unread++
	}
}

// MergeHistory folds a REST history page into the inbox. Fetched rows are
// authoritative for rows present in both; pushed rows the fetch window
// missed are kept. The server's unreadCount is authoritative because it
// covers all pages, including rows the client never fetched.
func (b *Inbox) MergeHistory(items []Notification, unreadCount int) {
	b.mu.Lock()
	defer b.mu.Unlock()

	merged := make(map[string]Notification, len(items)+len(b.items))
	for _, n := range b.items {
		merged[n.ID] = n
	}
	for _, n := range items {
		merged[n.ID] = n
	}

	b.items = make([]Notification, 0, len(merged))
	for _, n := range merged {
		b.items = append(b.items, n)
	}
	sort.SliceStable(b.items, func(i, j int) bool {
		return b.items[i].CreatedAt.After(b.items[j].CreatedAt)
	})

	b.unread = unreadCount
}

// MarkRead applies a local read transition, matching the server-side
// idempotent semantics: marking an already-read or unknown notification
// never decrements the counter.
func (b *Inbox) MarkRead(id string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	for i := range b.items {
		if b.items[i].ID == id {
			if !b.items[i].Read {
				b.items[i].Read = true
				now := time.Now()
				b.items[i].ReadAt = &now
				if b.unread > 0 {
					b.unread--
				}
			}
			return
		}
	}
}

// MarkAllRead applies the bulk read transition locally.
func (b *Inbox) MarkAllRead() {
	b.mu.Lock()
	defer b.mu.Unlock()

	now := time.Now()
	for i := range b.items {
		if !b.items[i].Read {
			b.items[i].Read = true
			b.items[i].ReadAt = &now
		}
	}
	b.unread = 0
}

// Remove deletes a notification locally.
func (b *Inbox) Remove(id string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	for i, n := range b.items {
		if n.ID == id {
			if !n.Read && b.unread > 0 {
				b.unread--
			}
			b.items = append(b.items[:i:i], b.items[i+1:]...)
			return
		}
	}
}

// Notifications returns a copy of the held list, newest first.
func (b *Inbox) Notifications() []Notification {
	b.mu.Lock()
	defer b.mu.Unlock()

	out := make([]Notification, len(b.items))
	copy(out, b.items)
	return out
}

// UnreadCount returns the current unread counter.
func (b *Inbox) UnreadCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.unread
}
