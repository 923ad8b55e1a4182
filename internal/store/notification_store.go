package store

import (
	"context"
	"fmt"
	"time"

	"github.com/shopcrm/crm-console/internal/model"
)

// notificationRow mirrors the notifications table layout.
type notificationRow struct {
	Arrival    int64     `db:"arrival"`
	ID         int       `db:"id"`
	Title      string    `db:"title"`
	Message    string    `db:"message"`
	Priority   string    `db:"priority"`
	Type       string    `db:"type"`
	ActionURL  string    `db:"action_url"`
	Data       string    `db:"data"`
	IsRead     int       `db:"is_read"`
	CreatedAt  time.Time `db:"created_at"`
	ReceivedAt time.Time `db:"received_at"`
}

func (r notificationRow) toModel() model.Notification {
	n := model.Notification{
		ID:        r.ID,
		Title:     r.Title,
		Message:   r.Message,
		Priority:  model.Priority(r.Priority),
		Type:      r.Type,
		ActionURL: r.ActionURL,
		CreatedAt: r.CreatedAt,
		IsRead:    r.IsRead != 0,
	}
	if r.Data != "" {
		n.Data = []byte(r.Data)
	}
	return n
}

// SaveNotification records a received notification. Re-receiving the
// same server id (the server replays unread notifications on connect)
// leaves the existing row, and in particular its read flag, untouched.
func (s *SQLiteStore) SaveNotification(ctx context.Context, n model.Notification) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO notifications (
			id, title, message, priority, type, action_url, data, is_read, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO NOTHING`,
		n.ID, n.Title, n.Message, string(n.Priority), n.Type,
		n.ActionURL, string(n.Data), boolToInt(n.IsRead), n.CreatedAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("saving notification %d: %w", n.ID, err)
	}
	return nil
}

// GetNotifications retrieves up to limit notifications, most recently
// received first.
func (s *SQLiteStore) GetNotifications(ctx context.Context, limit int) ([]model.Notification, error) {
	if limit <= 0 {
		limit = 50
	}

	rows, err := s.db.QueryxContext(ctx, `
		SELECT * FROM notifications
		ORDER BY arrival DESC
		LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("querying notifications: %w", err)
	}
	defer rows.Close()

	var notifications []model.Notification
	for rows.Next() {
		var r notificationRow
		if err := rows.StructScan(&r); err != nil {
			return nil, fmt.Errorf("scanning notification: %w", err)
		}
		notifications = append(notifications, r.toModel())
	}

	return notifications, rows.Err()
}

// MarkNotificationRead flips a single notification's read flag.
func (s *SQLiteStore) MarkNotificationRead(ctx context.Context, id int) error {
	_, err := s.db.ExecContext(ctx,
		"UPDATE notifications SET is_read = 1 WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("marking notification %d read: %w", id, err)
	}
	return nil
}

// MarkAllNotificationsRead flips every stored notification's read flag.
func (s *SQLiteStore) MarkAllNotificationsRead(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx,
		"UPDATE notifications SET is_read = 1 WHERE is_read = 0")
	if err != nil {
		return fmt.Errorf("marking all notifications read: %w", err)
	}
	return nil
}

// PruneNotifications deletes everything beyond the keep most recently
// received notifications, regardless of read state.
func (s *SQLiteStore) PruneNotifications(ctx context.Context, keep int) error {
	if keep <= 0 {
		return nil
	}
	_, err := s.db.ExecContext(ctx, `
		DELETE FROM notifications
		WHERE arrival NOT IN (
			SELECT arrival FROM notifications
			ORDER BY arrival DESC
			LIMIT ?
		)`, keep)
	if err != nil {
		return fmt.Errorf("pruning notifications: %w", err)
	}
	return nil
}

// UnreadNotificationCount returns the number of locally unread
// notifications. The server-supplied count remains authoritative; this
// is only used to seed the counter before the first reconciliation.
func (s *SQLiteStore) UnreadNotificationCount(ctx context.Context) (int, error) {
	var count int
	err := s.db.GetContext(ctx, &count,
		"SELECT COUNT(*) FROM notifications WHERE is_read = 0")
	if err != nil {
		return 0, fmt.Errorf("counting unread notifications: %w", err)
	}
	return count, nil
}
