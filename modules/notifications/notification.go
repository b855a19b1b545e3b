package notifications

import "time"

// Type classifies what kind of event a notification describes.
type Type string

const (
	TypeChat         Type = "chat"
	TypeAnnouncement Type = "announcement"
	TypeAssignment   Type = "assignment"
	TypeGrade        Type = "grade"
	TypeGeneral      Type = "general"
)

// Valid reports whether t is one of the known notification types.
func (t Type) Valid() bool {
	switch t {
	case TypeChat, TypeAnnouncement, TypeAssignment, TypeGrade, TypeGeneral:
		return true
	}
	return false
}

// Notification is the durable record of a single event directed at one
// recipient. Read state is monotonic: once read, a notification never
// transitions back to unread, and ReadAt is set exactly when Read is.
type Notification struct {
	ID        string         `json:"id"`
	UserID    string         `json:"userId"`
	SenderID  string         `json:"senderId,omitempty"`
	Type      Type           `json:"type"`
	Title     string         `json:"title"`
	Message   string         `json:"message"`
	Metadata  map[string]any `json:"metadata,omitempty"` // open payload: course ref, grade percent, ...
	Read      bool           `json:"isRead"`
	ReadAt    *time.Time     `json:"readAt,omitempty"`
	CreatedAt time.Time      `json:"createdAt"`
}

// MarkAsRead marks the notification as read with the current timestamp.
// Calling it on an already-read notification is a no-op, preserving the
// original ReadAt.
func (n *Notification) MarkAsRead() {
	if n.Read {
		return
	}
	n.Read = true
	now := time.Now()
	n.ReadAt = &now
}
