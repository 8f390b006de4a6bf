package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/brunomacedo1203/taskcollab/internal/contextkeys"
	"github.com/brunomacedo1203/taskcollab/internal/core/domain"
	"github.com/brunomacedo1203/taskcollab/internal/core/port"
)

type MarkNotificationReadUseCase struct {
	repo port.NotificationRepositoryPort
	now  func() time.Time
}

func NewMarkNotificationReadUseCase(repo port.NotificationRepositoryPort) *MarkNotificationReadUseCase {
	return &MarkNotificationReadUseCase{
		repo: repo,
		now:  func() time.Time { return time.Now().UTC() },
	}
}

// Execute идемпотентен: повторный вызов возвращает запись с исходным read_at.
func (uc *MarkNotificationReadUseCase) Execute(ctx context.Context, id, recipientID string) (*domain.Notification, error) {
	ucLogger := contextkeys.LoggerFromContext(ctx).WithFields(port.Fields{
		"use_case":        "MarkNotificationRead",
		"notification_id": id,
		"recipient_id":    recipientID,
	})

	n, err := uc.repo.MarkRead(ctx, id, recipientID, uc.now())
	if errors.Is(err, domain.ErrNotificationNotFound) {
		ucLogger.Warn("Notification not found for recipient", nil)
		return nil, err
	}
	if err != nil {
		ucLogger.Error("Failed to mark notification as read", err, nil)
		return nil, fmt.Errorf("mark notification %s as read: %w", id, err)
	}
	return n, nil
}
