package notifications

import (
	"context"
	"fmt"
	"log/slog"
	"maps"
	"time"

	"github.com/google/uuid"

	"github.com/classboard/classboard/pkg/logger"
)

// Pusher is the live delivery surface the Service depends on. Satisfied by
// *Hub directly and by *Bridge in multi-instance deployments.
type Pusher interface {
	SendToUser(userID string, notif Notification) bool
	SendToUsers(userIDs []string, notif Notification) map[string]bool
}

// CreateParams is the input for creating one notification.
type CreateParams struct {
	UserID   string
	SenderID string
	Type     Type
	Title    string
	Message  string
	Metadata map[string]any
}

// CourseEvent carries the course context fan-out helpers stamp into
// notification metadata.
type CourseEvent struct {
	CourseID   string
	CourseName string
	SenderID   string // the teacher or author triggering the event
}

// Service orchestrates storage and live delivery. Persistence always comes
// first: a notification is stored durably before any push attempt, and a
// failed or impossible push is never an error — the recipient sees the row
// on the next history poll.
type Service struct {
	storage Storage
	pusher  Pusher
	log     *slog.Logger
}

// ServiceOption configures a Service.
type ServiceOption func(*Service)

// WithPusher sets the live delivery surface. Without one the Service is
// store-only, which is valid for worker processes that never own sockets.
func WithPusher(p Pusher) ServiceOption {
	return func(s *Service) { s.pusher = p }
}

// WithServiceLogger sets the logger for the Service.
func WithServiceLogger(log *slog.Logger) ServiceOption {
	return func(s *Service) {
		if log != nil {
			s.log = log
		}
	}
}

// NewService creates a notification service on top of the given storage.
func NewService(storage Storage, opts ...ServiceOption) *Service {
	s := &Service{
		storage: storage,
		log:     slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Create validates, persists, and best-effort pushes a single notification.
// The returned row carries the generated ID and timestamp so callers can use
// it immediately without a second round trip.
func (s *Service) Create(ctx context.Context, p CreateParams) (*Notification, error) {
	if p.UserID == "" {
		return nil, ErrRecipientRequired
	}
	if !p.Type.Valid() {
		return nil, ErrInvalidType
	}

	notif := Notification{
		ID:        uuid.New().String(),
		UserID:    p.UserID,
		SenderID:  p.SenderID,
		Type:      p.Type,
		Title:     p.Title,
		Message:   p.Message,
		Metadata:  p.Metadata,
		CreatedAt: time.Now(),
	}

	if err := s.storage.Create(ctx, notif); err != nil {
		return nil, fmt.Errorf("failed to store notification: %w", err)
	}

	s.push(ctx, notif)
	return &notif, nil
}

// push attempts live delivery after the row is durable. A false return from
// the pusher only means the recipient is offline, which is expected.
func (s *Service) push(ctx context.Context, notif Notification) {
	if s.pusher == nil {
		return
	}
	if delivered := s.pusher.SendToUser(notif.UserID, notif); !delivered {
		s.log.DebugContext(ctx, "recipient offline, notification stored for next poll",
			logger.NotificationID(notif.ID),
			logger.UserID(notif.UserID),
		)
	}
}

// List returns one page of the recipient's history, newest first, together
// with the current total unread count.
func (s *Service) List(ctx context.Context, userID string, opts ListOptions) (*ListResult, error) {
	return s.storage.List(ctx, userID, opts)
}

// MarkRead marks one notification as read for its owner. Idempotent: marking
// an already-read notification succeeds without changing ReadAt.
func (s *Service) MarkRead(ctx context.Context, userID, notifID string) (*Notification, error) {
	return s.storage.MarkRead(ctx, userID, notifID)
}

// MarkAllRead marks every unread notification of the recipient as read and
// returns the resulting unread count.
func (s *Service) MarkAllRead(ctx context.Context, userID string) (int, error) {
	return s.storage.MarkAllRead(ctx, userID)
}

// Delete removes a notification owned by userID.
func (s *Service) Delete(ctx context.Context, userID, notifID string) error {
	return s.storage.Delete(ctx, userID, notifID)
}

// CountUnread returns the recipient's current unread count.
func (s *Service) CountUnread(ctx context.Context, userID string) (int, error) {
	return s.storage.CountUnread(ctx, userID)
}

// NotifyCourseAnnouncement fans an announcement out to every recipient.
// Each recipient gets its own row inside an independent failure boundary:
// one recipient's persistence failure is logged and does not abort creation
// for the rest. Returns the notifications that were created.
func (s *Service) NotifyCourseAnnouncement(ctx context.Context, recipients []string, ev CourseEvent, title, message string) []Notification {
	created := s.fanOut(ctx, recipients, CreateParams{
		SenderID: ev.SenderID,
		Type:     TypeAnnouncement,
		Title:    title,
		Message:  message,
		Metadata: courseMetadata(ev),
	})

	s.log.DebugContext(ctx, "course announcement fanned out",
		logger.CourseID(ev.CourseID),
		slog.Int("recipients", len(recipients)),
		slog.Int("created", len(created)),
	)
	return created
}

// NotifyCourseAssignment fans a new-assignment notification out to every
// enrolled recipient with the same partial-success semantics.
func (s *Service) NotifyCourseAssignment(ctx context.Context, recipients []string, ev CourseEvent, assignmentTitle string) []Notification {
	meta := courseMetadata(ev)
	meta["assignmentTitle"] = assignmentTitle

	created := s.fanOut(ctx, recipients, CreateParams{
		SenderID: ev.SenderID,
		Type:     TypeAssignment,
		Title:    "New Assignment",
		Message:  fmt.Sprintf("%q was posted in %s", assignmentTitle, ev.CourseName),
		Metadata: meta,
	})

	s.log.DebugContext(ctx, "assignment notifications fanned out",
		logger.CourseID(ev.CourseID),
		slog.Int("recipients", len(recipients)),
		slog.Int("created", len(created)),
	)
	return created
}

// NotifyGrade notifies a single student that a grade was entered.
func (s *Service) NotifyGrade(ctx context.Context, studentID string, ev CourseEvent, assignmentTitle string, percent float64) (*Notification, error) {
	meta := courseMetadata(ev)
	meta["assignmentTitle"] = assignmentTitle
	meta["gradePercent"] = percent

	return s.Create(ctx, CreateParams{
		UserID:   studentID,
		SenderID: ev.SenderID,
		Type:     TypeGrade,
		Title:    "Grade Posted",
		Message:  fmt.Sprintf("Your %q submission was graded: %.0f%%", assignmentTitle, percent),
		Metadata: meta,
	})
}

// fanOut creates one notification per recipient with independent error
// handling, then pushes to reachable recipients in one batch.
func (s *Service) fanOut(ctx context.Context, recipients []string, template CreateParams) []Notification {
	created := make([]Notification, 0, len(recipients))

	for _, userID := range recipients {
		notif := Notification{
			ID:       uuid.New().String(),
			UserID:   userID,
			SenderID: template.SenderID,
			Type:     template.Type,
			Title:    template.Title,
			Message:  template.Message,
			// Each row owns its metadata; recipients must not alias one
			// mutable map.
			Metadata:  maps.Clone(template.Metadata),
			CreatedAt: time.Now(),
		}

		if err := s.storage.Create(ctx, notif); err != nil {
			s.log.ErrorContext(ctx, "failed to store fan-out notification, continuing with remaining recipients",
				logger.UserID(userID),
				logger.Event(string(template.Type)),
				logger.Error(err),
			)
			continue
		}

		created = append(created, notif)
	}

	if s.pusher != nil {
		for _, notif := range created {
			s.push(ctx, notif)
		}
	}

	return created
}

func courseMetadata(ev CourseEvent) map[string]any {
	meta := make(map[string]any, 4)
	if ev.CourseID != "" {
		meta["courseId"] = ev.CourseID
	}
	if ev.CourseName != "" {
		meta["courseName"] = ev.CourseName
	}
	return meta
}
