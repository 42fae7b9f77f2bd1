package postgres

import (
	"context"
	"fmt"
)

// NotificationStore persists user notifications
type NotificationStore struct {
	conns *ConnectionManager
}

// NewNotificationStore creates a notification store
func NewNotificationStore(conns *ConnectionManager) *NotificationStore {
	return &NotificationStore{conns: conns}
}

// Create inserts a notification for a user
func (s *NotificationStore) Create(ctx context.Context, userID int64, title, message string) (*Notification, error) {
	row := s.conns.Primary().QueryRowContext(ctx,
		`INSERT INTO notifications (user_id, title, message)
		 VALUES ($1, $2, $3)
		 RETURNING id, user_id, title, message, is_read, created_at`,
		userID, title, message)

	var n Notification
	if err := row.Scan(&n.ID, &n.UserID, &n.Title, &n.Message, &n.IsRead, &n.CreatedAt); err != nil {
		return nil, fmt.Errorf("failed to create notification: %w", err)
	}
	return &n, nil
}

// ListByUser returns a user's notifications, newest first. unreadOnly
// filters to unread.
func (s *NotificationStore) ListByUser(ctx context.Context, userID int64, unreadOnly bool) ([]*Notification, error) {
	query := `SELECT id, user_id, title, message, is_read, created_at
	          FROM notifications WHERE user_id = $1`
	if unreadOnly {
		query += ` AND NOT is_read`
	}
	query += ` ORDER BY created_at DESC`

	rows, err := s.conns.Replica().QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list notifications: %w", err)
	}
	defer rows.Close()

	var notifications []*Notification
	for rows.Next() {
		var n Notification
		if err := rows.Scan(&n.ID, &n.UserID, &n.Title, &n.Message, &n.IsRead, &n.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan notification: %w", err)
		}
		notifications = append(notifications, &n)
	}
	return notifications, rows.Err()
}

// MarkRead marks one of the user's notifications as read. The user id
// guards against marking someone else's notification.
func (s *NotificationStore) MarkRead(ctx context.Context, id, userID int64) error {
	result, err := s.conns.Primary().ExecContext(ctx,
		`UPDATE notifications SET is_read = TRUE WHERE id = $1 AND user_id = $2`, id, userID)
	if err != nil {
		return fmt.Errorf("failed to mark notification read: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read affected rows: %w", err)
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

// Delete removes a notification by id
func (s *NotificationStore) Delete(ctx context.Context, id int64) error {
	result, err := s.conns.Primary().ExecContext(ctx,
		`DELETE FROM notifications WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete notification: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read affected rows: %w", err)
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

// MarkAllRead marks all of the user's notifications as read
func (s *NotificationStore) MarkAllRead(ctx context.Context, userID int64) error {
	_, err := s.conns.Primary().ExecContext(ctx,
		`UPDATE notifications SET is_read = TRUE WHERE user_id = $1 AND NOT is_read`, userID)
	if err != nil {
		return fmt.Errorf("failed to mark notifications read: %w", err)
	}
	return nil
}
