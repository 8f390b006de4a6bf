package usecase

import (
	"context"
	"fmt"
	"time"

	"github.com/brunomacedo1203/taskcollab/internal/core/domain"
	"github.com/brunomacedo1203/taskcollab/internal/core/port"

	"github.com/google/uuid"
)

// notificationDraft - текст уведомления для одного получателя.
type notificationDraft struct {
	recipientID string
	title       string
	body        string
}

// saveNotifications строит записи по черновикам и возвращает получателей
// реально сохраненных записей (повторная доставка события ничего не добавляет).
func saveNotifications(
	ctx context.Context,
	repo port.NotificationRepositoryPort,
	event domain.TaskEvent,
	commentID *string,
	drafts []notificationDraft,
	now time.Time,
) ([]string, error) {
	if len(drafts) == 0 {
		return []string{}, nil
	}

	meta := event.Meta()
	notifications := make([]domain.Notification, 0, len(drafts))
	for _, d := range drafts {
		notifications = append(notifications, domain.Notification{
			ID:          uuid.New().String(),
			RecipientID: d.recipientID,
			Type:        event.Type(),
			TaskID:      meta.TaskID,
			CommentID:   commentID,
			Title:       truncateRunes(d.title, maxTitleLength),
			Body:        d.body,
			CreatedAt:   now,
			DedupKey:    domain.NotificationDedupKey(d.recipientID, event),
		})
	}

	saved, err := repo.InsertMany(ctx, notifications)
	if err != nil {
		return nil, fmt.Errorf("failed to save %d notifications: %w", len(notifications), err)
	}

	recipients := make([]string, 0, len(saved))
	for _, n := range saved {
		recipients = append(recipients, n.RecipientID)
	}
	return recipients, nil
}
