package notifications

import (
	"context"
	"sort"
	"sync"
	"time"
)

// MemoryStorage is an in-memory implementation of the Storage interface.
// Suitable for development and testing.
type MemoryStorage struct {
	notifications map[string][]Notification // userID -> notifications
	mu            sync.RWMutex
}

// NewMemoryStorage creates a new in-memory notification storage.
func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{
		notifications: make(map[string][]Notification),
	}
}

func (s *MemoryStorage) Create(ctx context.Context, notif Notification) error {
	if notif.UserID == "" {
		return ErrRecipientRequired
	}
	if !notif.Type.Valid() {
		return ErrInvalidType
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if notif.CreatedAt.IsZero() {
		notif.CreatedAt = time.Now()
	}

	s.notifications[notif.UserID] = append(s.notifications[notif.UserID], notif)
	return nil
}

func (s *MemoryStorage) Get(ctx context.Context, userID, notifID string) (*Notification, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, n := range s.notifications[userID] {
		if n.ID == notifID {
			// Copy so callers cannot mutate stored state.
			notif := n
			return &notif, nil
		}
	}

	return nil, ErrNotificationNotFound
}

func (s *MemoryStorage) List(ctx context.Context, userID string, opts ListOptions) (*ListResult, error) {
	opts = opts.normalize()

	s.mu.RLock()
	defer s.mu.RUnlock()

	all := s.notifications[userID]

	unread := 0
	filtered := make([]Notification, 0, len(all))
	for _, n := range all {
		if !n.Read {
			unread++
		}
		if opts.OnlyUnread && n.Read {
			continue
		}
		filtered = append(filtered, n)
	}

	sort.SliceStable(filtered, func(i, j int) bool {
		return filtered[i].CreatedAt.After(filtered[j].CreatedAt)
	})

	total := len(filtered)
	totalPages := (total + opts.Limit - 1) / opts.Limit

	start := (opts.Page - 1) * opts.Limit
	if start > total {
		start = total
	}
	end := start + opts.Limit
	if end > total {
		end = total
	}

	items := make([]Notification, end-start)
	copy(items, filtered[start:end])

	return &ListResult{
		Items: items,
		Pagination: Page{
			Page:       opts.Page,
			Limit:      opts.Limit,
			Total:      total,
			TotalPages: totalPages,
		},
		UnreadCount: unread,
	}, nil
}

func (s *MemoryStorage) MarkRead(ctx context.Context, userID, notifID string) (*Notification, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	list := s.notifications[userID]
	for i := range list {
		if list[i].ID == notifID {
			list[i].MarkAsRead()
			notif := list[i]
			return &notif, nil
		}
	}

	return nil, ErrNotificationNotFound
}

func (s *MemoryStorage) MarkAllRead(ctx context.Context, userID string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	list := s.notifications[userID]
	for i := range list {
		list[i].MarkAsRead()
	}

	return 0, nil
}

func (s *MemoryStorage) Delete(ctx context.Context, userID, notifID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	list := s.notifications[userID]
	for i, n := range list {
		if n.ID == notifID {
			s.notifications[userID] = append(list[:i:i], list[i+1:]...)
			return nil
		}
	}

	return ErrNotificationNotFound
}

func (s *MemoryStorage) CountUnread(ctx context.Context, userID string) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	count := 0
	for _, n := range s.notifications[userID] {
		if !n.Read {
			count++
		}
	}

	return count, nil
}
