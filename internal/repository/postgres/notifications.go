package postgres

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"

	"github.com/jiralite/api/internal/domain"
	"github.com/jiralite/api/internal/repository"
)

// InsertNotification stores an in-app notification.
func (r *Repository) InsertNotification(ctx context.Context, n *domain.Notification) error {
	const query = `INSERT INTO notifications (id, user_id, type, title, message, link, is_read, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`
	_, err := r.pool.Exec(ctx, query, n.ID, n.UserID, n.Type, n.Title, n.Message, n.Link, n.IsRead, n.CreatedAt)
	return err
}

// ListNotifications returns a page of a user's notifications, newest first.
func (r *Repository) ListNotifications(ctx context.Context, userID string, unreadOnly bool, limit, offset int) ([]domain.Notification, error) {
	query := `SELECT id, user_id, type, title, message, link, is_read, read_at, created_at
		FROM notifications WHERE user_id = $1`
	if unreadOnly {
		query += ` AND is_read = FALSE`
	}
	query += ` ORDER BY created_at DESC LIMIT $2 OFFSET $3`
	rows, err := r.pool.Query(ctx, query, userID, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var notifications []domain.Notification
	for rows.Next() {
		var n domain.Notification
		if err := rows.Scan(&n.ID, &n.UserID, &n.Type, &n.Title, &n.Message, &n.Link, &n.IsRead, &n.ReadAt, &n.CreatedAt); err != nil {
			return nil, err
		}
		notifications = append(notifications, n)
	}
	return notifications, rows.Err()
}

// MarkNotificationRead marks one notification read, scoped to its recipient.
func (r *Repository) MarkNotificationRead(ctx context.Context, notificationID, userID string) (*domain.Notification, error) {
	const query = `UPDATE notifications SET is_read = TRUE, read_at = now()
		WHERE id = $1 AND user_id = $2
		RETURNING id, user_id, type, title, message, link, is_read, read_at, created_at`
	row := r.pool.QueryRow(ctx, query, notificationID, userID)
	var n domain.Notification
	if err := row.Scan(&n.ID, &n.UserID, &n.Type, &n.Title, &n.Message, &n.Link, &n.IsRead, &n.ReadAt, &n.CreatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, err
	}
	return &n, nil
}

// MarkAllNotificationsRead marks every unread notification of a user read.
func (r *Repository) MarkAllNotificationsRead(ctx context.Context, userID string) error {
	const query = `UPDATE notifications SET is_read = TRUE, read_at = now()
		WHERE user_id = $1 AND is_read = FALSE`
	_, err := r.pool.Exec(ctx, query, userID)
	return err
}

// CountUnreadNotifications counts unread notifications for a user.
func (r *Repository) CountUnreadNotifications(ctx context.Context, userID string) (int, error) {
	const query = `SELECT COUNT(1) FROM notifications WHERE user_id = $1 AND is_read = FALSE`
	var count int
	if err := r.pool.QueryRow(ctx, query, userID).Scan(&count); err != nil {
		return 0, err
	}
	return count, nil
}
