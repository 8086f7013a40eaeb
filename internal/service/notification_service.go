package service

import (
	"context"
	"log/slog"

	"inkwell/internal/middleware"
	"inkwell/internal/models"
	"inkwell/internal/notifications"
	"inkwell/internal/observability"
	"inkwell/internal/pagination"
	"inkwell/internal/repository"
)

// NotificationService stores notifications and pushes them to connected clients.
type NotificationService struct {
	repo     repository.NotificationRepository
	notifier *notifications.Notifier
}

// NewNotificationService creates a NotificationService. notifier may be nil.
func NewNotificationService(repo repository.NotificationRepository, notifier *notifications.Notifier) *NotificationService {
	return &NotificationService{repo: repo, notifier: notifier}
}

// Notify stores one notification and publishes it. It runs after the triggering write has
// committed, so failures are logged and never returned.
func (s *NotificationService) Notify(ctx context.Context, userID uint, typ models.NotificationType, content string, payload map[string]string) {
	s.NotifyMany(ctx, []uint{userID}, typ, content, payload)
}

// NotifyMany fans one notification out to every recipient.
func (s *NotificationService) NotifyMany(ctx context.Context, userIDs []uint, typ models.NotificationType, content string, payload map[string]string) {
	if len(userIDs) == 0 {
		return
	}
	// The triggering request may already be finished.
	ctx = context.WithoutCancel(ctx)

	batch := make([]models.Notification, 0, len(userIDs))
	for _, id := range userIDs {
		batch = append(batch, models.Notification{
			Type:    typ,
			Content: content,
			UserID:  id,
			Payload: payload,
		})
	}
	if err := s.repo.CreateBatch(ctx, batch); err != nil {
		middleware.Logger.ErrorContext(ctx, "Failed to store notifications",
			slog.String("type", string(typ)),
			slog.Int("recipients", len(userIDs)),
			slog.String("error", err.Error()))
		return
	}
	observability.NotificationsCreated.WithLabelValues(string(typ)).Add(float64(len(batch)))

	for i := range batch {
		if err := s.notifier.PublishNotification(ctx, &batch[i]); err != nil {
			middleware.Logger.WarnContext(ctx, "Failed to publish notification",
				slog.Uint64("notification_id", uint64(batch[i].ID)),
				slog.String("error", err.Error()))
		}
	}
}

// ListUnread pages the caller's unread notifications, newest first.
func (s *NotificationService) ListUnread(ctx context.Context, userID uint, p pagination.Params) (pagination.Page[models.Notification], error) {
	items, total, err := s.repo.ListUnread(ctx, userID, p.Offset(), p.Limit)
	if err != nil {
		return pagination.Page[models.Notification]{}, err
	}
	return pagination.NewPage(items, p, total), nil
}

func (s *NotificationService) MarkRead(ctx context.Context, id, userID uint) error {
	return s.repo.MarkRead(ctx, id, userID)
}

func (s *NotificationService) MarkAllRead(ctx context.Context, userID uint) (int64, error) {
	return s.repo.MarkAllRead(ctx, userID)
}
