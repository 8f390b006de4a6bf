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

type HandleTaskCommentCreatedUseCase struct {
	participants  port.ParticipantRepositoryPort
	notifications port.NotificationRepositoryPort
	now           func() time.Time
}

func NewHandleTaskCommentCreatedUseCase(participants port.ParticipantRepositoryPort, notifications port.NotificationRepositoryPort) *HandleTaskCommentCreatedUseCase {
	return &HandleTaskCommentCreatedUseCase{
		participants:  participants,
		notifications: notifications,
		now:           func() time.Time { return time.Now().UTC() },
	}
}

// Execute уведомляет исполнителей и создателя, кроме автора комментария и актора.
// Снимок не изменяется; без снимка событие пропускается.
func (uc *HandleTaskCommentCreatedUseCase) Execute(ctx context.Context, event domain.TaskCommentCreatedEvent) ([]string, error) {
	ucLogger := contextkeys.LoggerFromContext(ctx).WithFields(port.Fields{
		"use_case":   "HandleTaskCommentCreated",
		"task_id":    event.TaskID,
		"comment_id": event.Payload.CommentID,
	})

	snapshot, err := uc.participants.FindByTaskID(ctx, event.TaskID)
	if errors.Is(err, domain.ErrSnapshotNotFound) {
		ucLogger.Warn("No known participants for task, skipping comment", nil)
		return []string{}, nil
	}
	if err != nil {
		ucLogger.Error("Failed to load participants snapshot", err, nil)
		return nil, fmt.Errorf("load participants for task %s: %w", event.TaskID, err)
	}

	recipients := newRecipientSet()
	recipients.add(snapshot.AssigneeIDs...)
	recipients.add(snapshot.CreatorID)
	recipients.remove(event.Payload.AuthorID)
	recipients.remove(event.ActorID)

	preview := truncateRunes(event.Payload.Content, commentPreviewLimit)
	drafts := make([]notificationDraft, 0, len(recipients.order))
	for _, id := range recipients.list() {
		drafts = append(drafts, notificationDraft{
			recipientID: id,
			title:       "New comment",
			body:        preview,
		})
	}

	commentID := event.Payload.CommentID
	saved, err := saveNotifications(ctx, uc.notifications, event, &commentID, drafts, uc.now())
	if err != nil {
		ucLogger.Error("Failed to save notifications", err, nil)
		return nil, err
	}

	ucLogger.Info("Comment event handled", port.Fields{
		"recipients": len(saved),
		"duplicates": len(drafts) - len(saved),
	})
	return saved, nil
}
