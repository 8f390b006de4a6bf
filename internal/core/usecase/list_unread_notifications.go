package usecase

import (
	"context"
	"fmt"

	"github.com/brunomacedo1203/taskcollab/internal/contextkeys"
	"github.com/brunomacedo1203/taskcollab/internal/core/domain"
	"github.com/brunomacedo1203/taskcollab/internal/core/port"
)

const (
	DefaultUnreadLimit = 10
	MaxUnreadLimit     = 100
)

type ListUnreadNotificationsUseCase struct {
	repo port.NotificationRepositoryPort
}

func NewListUnreadNotificationsUseCase(repo port.NotificationRepositoryPort) *ListUnreadNotificationsUseCase {
	return &ListUnreadNotificationsUseCase{repo: repo}
}

// Execute возвращает до limit непрочитанных уведомлений, новые первыми.
// limit вне [1, 100] заменяется значением по умолчанию или обрезается.
func (uc *ListUnreadNotificationsUseCase) Execute(ctx context.Context, recipientID string, limit int) ([]domain.Notification, error) {
	if limit <= 0 {
		limit = DefaultUnreadLimit
	}
	if limit > MaxUnreadLimit {
		limit = MaxUnreadLimit
	}

	notifications, err := uc.repo.ListUnread(ctx, recipientID, limit)
	if err != nil {
		contextkeys.LoggerFromContext(ctx).Error("Failed to list unread notifications", err, port.Fields{
			"use_case":     "ListUnreadNotifications",
			"recipient_id": recipientID,
		})
		return nil, fmt.Errorf("list unread notifications: %w", err)
	}
	return notifications, nil
}
