package notification

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"log/slog"

	"github.com/google/uuid"

	"github.com/jiralite/api/internal/apperr"
	"github.com/jiralite/api/internal/domain"
	"github.com/jiralite/api/internal/repository"
	"github.com/jiralite/api/internal/ws"
)

// Notification types raised by the system.
const (
	TypeRoleChange    = "role_change"
	TypeIssueAssigned = "issue_assigned"
	TypeComment       = "comment"
	TypeInvite        = "team_invite"
)

// Service persists in-app notifications and pushes them to connected clients.
type Service struct {
	repo   repository.NotificationRepository
	hub    *ws.Hub
	logger *slog.Logger
}

// New constructs a Service. The hub may be nil in tests.
func New(repo repository.NotificationRepository, hub *ws.Hub, logger *slog.Logger) Service {
	return Service{repo: repo, hub: hub, logger: logger}
}

// Notify stores a notification and broadcasts it to the recipient's open
// connections. Push failures are logged, never surfaced: delivery to storage
// is the contract, the socket is best effort.
func (s Service) Notify(ctx context.Context, userID, kind, title, message, link string) error {
	n := &domain.Notification{
		ID:        uuid.NewString(),
		UserID:    userID,
		Type:      kind,
		Title:     title,
		Message:   message,
		Link:      link,
		CreatedAt: time.Now().UTC(),
	}
	if err := s.repo.InsertNotification(ctx, n); err != nil {
		return err
	}
	if s.hub != nil {
		payload, err := json.Marshal(n)
		if err == nil {
			s.hub.Broadcast(userID, payload)
		} else if s.logger != nil {
			s.logger.Warn("notification payload marshal failed", "notification_id", n.ID, "error", err)
		}
	}
	return nil
}

// List returns a page of the user's notifications, newest first.
func (s Service) List(ctx context.Context, userID string, unreadOnly bool, limit, offset int) ([]domain.Notification, error) {
	if limit <= 0 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}
	return s.repo.ListNotifications(ctx, userID, unreadOnly, limit, offset)
}

// MarkRead marks a single notification read for its recipient.
func (s Service) MarkRead(ctx context.Context, userID, notificationID string) (*domain.Notification, error) {
	n, err := s.repo.MarkNotificationRead(ctx, notificationID, userID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, apperr.NotFound("notification not found")
		}
		return nil, err
	}
	return n, nil
}

// MarkAllRead marks every unread notification of the user read.
func (s Service) MarkAllRead(ctx context.Context, userID string) error {
	return s.repo.MarkAllNotificationsRead(ctx, userID)
}

// UnreadCount returns the number of unread notifications.
func (s Service) UnreadCount(ctx context.Context, userID string) (int, error) {
	return s.repo.CountUnreadNotifications(ctx, userID)
}
