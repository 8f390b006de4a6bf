package usecase

import (
	"context"
	"fmt"
	"time"

	"github.com/brunomacedo1203/taskcollab/internal/contextkeys"
	"github.com/brunomacedo1203/taskcollab/internal/core/domain"
	"github.com/brunomacedo1203/taskcollab/internal/core/port"
)

type HandleTaskCreatedUseCase struct {
	participants  port.ParticipantRepositoryPort
	notifications port.NotificationRepositoryPort
	now           func() time.Time
}

func NewHandleTaskCreatedUseCase(participants port.ParticipantRepositoryPort, notifications port.NotificationRepositoryPort) *HandleTaskCreatedUseCase {
	return &HandleTaskCreatedUseCase{
		participants:  participants,
		notifications: notifications,
		now:           func() time.Time { return time.Now().UTC() },
	}
}

// Execute сохраняет снимок участников (создатель = актор) и уведомляет
// назначенных исполнителей, кроме самого актора.
func (uc *HandleTaskCreatedUseCase) Execute(ctx context.Context, event domain.TaskCreatedEvent) ([]string, error) {
	ucLogger := contextkeys.LoggerFromContext(ctx).WithFields(port.Fields{
		"use_case": "HandleTaskCreated",
		"task_id":  event.TaskID,
	})

	assignees := normalizeIDs(event.Payload.AssigneeIDs)
	snapshot := domain.ParticipantSnapshot{
		TaskID:      event.TaskID,
		CreatorID:   event.ActorID,
		AssigneeIDs: assignees,
	}
	if err := uc.participants.Upsert(ctx, snapshot); err != nil {
		ucLogger.Error("Failed to upsert participants snapshot", err, nil)
		return nil, fmt.Errorf("upsert participants for task %s: %w", event.TaskID, err)
	}

	recipients := newRecipientSet()
	recipients.add(assignees...)
	recipients.remove(event.ActorID)

	drafts := make([]notificationDraft, 0, len(recipients.order))
	for _, id := range recipients.list() {
		drafts = append(drafts, notificationDraft{
			recipientID: id,
			title:       "New task: " + event.Payload.Title,
			body:        "A new task was created.",
		})
	}

	saved, err := saveNotifications(ctx, uc.notifications, event, nil, drafts, uc.now())
	if err != nil {
		ucLogger.Error("Failed to save notifications", err, nil)
		return nil, err
	}

	ucLogger.Info("Task created event handled", port.Fields{
		"assignees":  len(assignees),
		"recipients": len(saved),
		"duplicates": len(drafts) - len(saved),
	})
	return saved, nil
}
