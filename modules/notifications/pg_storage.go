package notifications

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresStorage is the pgx-backed Storage implementation. The schema is
// created by migrations/00001_notifications.sql.
type PostgresStorage struct {
	pool *pgxpool.Pool
}

// NewPostgresStorage creates a Postgres-backed notification storage.
func NewPostgresStorage(pool *pgxpool.Pool) *PostgresStorage {
	return &PostgresStorage{pool: pool}
}

const notificationColumns = `id, user_id, sender_id, type, title, message, metadata, is_read, read_at, created_at`

func scanNotification(row pgx.Row) (*Notification, error) {
	var (
		n        Notification
		senderID *string
		readAt   *time.Time
	)
	if err := row.Scan(&n.ID, &n.UserID, &senderID, &n.Type, &n.Title, &n.Message, &n.Metadata, &n.Read, &readAt, &n.CreatedAt); err != nil {
		return nil, err
	}
	if senderID != nil {
		n.SenderID = *senderID
	}
	n.ReadAt = readAt
	return &n, nil
}

func (s *PostgresStorage) Create(ctx context.Context, notif Notification) error {
	if notif.UserID == "" {
		return ErrRecipientRequired
	}
	if !notif.Type.Valid() {
		return ErrInvalidType
	}
	if notif.CreatedAt.IsZero() {
		notif.CreatedAt = time.Now()
	}

	var senderID *string
	if notif.SenderID != "" {
		senderID = &notif.SenderID
	}

	_, err := s.pool.Exec(ctx, `
		INSERT INTO notifications (id, user_id, sender_id, type, title, message, metadata, is_read, read_at, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		notif.ID, notif.UserID, senderID, notif.Type, notif.Title, notif.Message,
		notif.Metadata, notif.Read, notif.ReadAt, notif.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert notification: %w", err)
	}
	return nil
}

func (s *PostgresStorage) Get(ctx context.Context, userID, notifID string) (*Notification, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+notificationColumns+` FROM notifications WHERE id = $1 AND user_id = $2`,
		notifID, userID,
	)

	n, err := scanNotification(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotificationNotFound
		}
		return nil, fmt.Errorf("get notification: %w", err)
	}
	return n, nil
}

func (s *PostgresStorage) List(ctx context.Context, userID string, opts ListOptions) (*ListResult, error) {
	opts = opts.normalize()

	var total, unread int
	err := s.pool.QueryRow(ctx, `
		SELECT
			COUNT(*) FILTER (WHERE NOT $2 OR NOT is_read),
			COUNT(*) FILTER (WHERE NOT is_read)
		FROM notifications WHERE user_id = $1`,
		userID, opts.OnlyUnread,
	).Scan(&total, &unread)
	if err != nil {
		return nil, fmt.Errorf("count notifications: %w", err)
	}

	query := `SELECT ` + notificationColumns + ` FROM notifications WHERE user_id = $1`
	if opts.OnlyUnread {
		query += ` AND is_read = FALSE`
	}
	query += ` ORDER BY created_at DESC LIMIT $2 OFFSET $3`

	rows, err := s.pool.Query(ctx, query, userID, opts.Limit, (opts.Page-1)*opts.Limit)
	if err != nil {
		return nil, fmt.Errorf("list notifications: %w", err)
	}
	defer rows.Close()

	items := make([]Notification, 0, opts.Limit)
	for rows.Next() {
		n, err := scanNotification(rows)
		if err != nil {
			return nil, fmt.Errorf("scan notification: %w", err)
		}
		items = append(items, *n)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list notifications: %w", err)
	}

	return &ListResult{
		Items: items,
		Pagination: Page{
			Page:       opts.Page,
			Limit:      opts.Limit,
			Total:      total,
			TotalPages: (total + opts.Limit - 1) / opts.Limit,
		},
		UnreadCount: unread,
	}, nil
}

func (s *PostgresStorage) MarkRead(ctx context.Context, userID, notifID string) (*Notification, error) {
	row := s.pool.QueryRow(ctx, `
		UPDATE notifications SET is_read = TRUE, read_at = NOW()
		WHERE id = $1 AND user_id = $2 AND is_read = FALSE
		RETURNING `+notificationColumns,
		notifID, userID,
	)

	n, err := scanNotification(row)
	if err == nil {
		return n, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("mark notification read: %w", err)
	}

	// Either already read (idempotent success) or missing/foreign
	// (not found). Get distinguishes the two with the same ownership check.
	return s.Get(ctx, userID, notifID)
}

func (s *PostgresStorage) MarkAllRead(ctx context.Context, userID string) (int, error) {
	_, err := s.pool.Exec(ctx, `
		UPDATE notifications SET is_read = TRUE, read_at = NOW()
		WHERE user_id = $1 AND is_read = FALSE`,
		userID,
	)
	if err != nil {
		return 0, fmt.Errorf("mark all notifications read: %w", err)
	}

	return s.CountUnread(ctx, userID)
}

func (s *PostgresStorage) Delete(ctx context.Context, userID, notifID string) error {
	tag, err := s.pool.Exec(ctx,
		`DELETE FROM notifications WHERE id = $1 AND user_id = $2`,
		notifID, userID,
	)
	if err != nil {
		return fmt.Errorf("delete notification: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotificationNotFound
	}
	return nil
}

func (s *PostgresStorage) CountUnread(ctx context.Context, userID string) (int, error) {
	var count int
	err := s.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM notifications WHERE user_id = $1 AND is_read = FALSE`,
		userID,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count unread notifications: %w", err)
	}
	return count, nil
}
