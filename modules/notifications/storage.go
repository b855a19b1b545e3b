package notifications

import "context"

// ListOptions controls pagination and filtering for history reads.
type ListOptions struct {
	Page       int  // 1-based page number; values < 1 are treated as 1
	Limit      int  // page size; values < 1 fall back to DefaultPageLimit, capped at MaxPageLimit
	OnlyUnread bool // when true, only unread notifications are returned
}

const (
	DefaultPageLimit = 20
	MaxPageLimit     = 100
)

// normalize clamps pagination parameters to sane values.
func (o ListOptions) normalize() ListOptions {
	if o.Page < 1 {
		o.Page = 1
	}
	if o.Limit < 1 {
		o.Limit = DefaultPageLimit
	}
	if o.Limit > MaxPageLimit {
		o.Limit = MaxPageLimit
	}
	return o
}

// Page describes the pagination window of a list result.
type Page struct {
	Page       int `json:"page"`
	Limit      int `json:"limit"`
	Total      int `json:"total"`
	TotalPages int `json:"totalPages"`
}

// ListResult is one page of a recipient's history, newest first.
// UnreadCount always reflects the recipient's current total unread count,
// independent of the pagination window and the OnlyUnread filter.
type ListResult struct {
	Items       []Notification `json:"data"`
	Pagination  Page           `json:"pagination"`
	UnreadCount int            `json:"unreadCount"`
}

// Storage handles notification persistence and the read-state lifecycle.
// Every operation that targets a single row is ownership-checked: a row
// belonging to another recipient behaves exactly like a missing row.
type Storage interface {
	// Create stores a new notification.
	Create(ctx context.Context, notif Notification) error

	// Get retrieves a single notification owned by userID.
	Get(ctx context.Context, userID, notifID string) (*Notification, error)

	// List returns one page of the recipient's history, newest first.
	List(ctx context.Context, userID string, opts ListOptions) (*ListResult, error)

	// MarkRead marks one notification as read and returns the updated row.
	// Marking an already-read notification is a successful no-op.
	MarkRead(ctx context.Context, userID, notifID string) (*Notification, error)

	// MarkAllRead marks every unread notification of the recipient as read
	// and returns the resulting unread count, which must be zero.
	MarkAllRead(ctx context.Context, userID string) (int, error)

	// Delete removes a notification owned by userID.
	Delete(ctx context.Context, userID, notifID string) error

	// CountUnread returns the recipient's current unread count.
	CountUnread(ctx context.Context, userID string) (int, error)
}
