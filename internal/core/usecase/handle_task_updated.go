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

const (
	changedFieldStatus    = "status"
	changedFieldAssignees = "assigneeIds"
)

type HandleTaskUpdatedUseCase struct {
	participants  port.ParticipantRepositoryPort
	notifications port.NotificationRepositoryPort
	now           func() time.Time
}

func NewHandleTaskUpdatedUseCase(participants port.ParticipantRepositoryPort, notifications port.NotificationRepositoryPort) *HandleTaskUpdatedUseCase {
	return &HandleTaskUpdatedUseCase{
		participants:  participants,
		notifications: notifications,
		now:           func() time.Time { return time.Now().UTC() },
	}
}

// Execute обновляет снимок (создатель сохраняется) и уведомляет:
//   - при смене статуса - всех исполнителей и создателя;
//   - при смене исполнителей - только добавленных;
//
// актор из получателей исключается.
func (uc *HandleTaskUpdatedUseCase) Execute(ctx context.Context, event domain.TaskUpdatedEvent) ([]string, error) {
	ucLogger := contextkeys.LoggerFromContext(ctx).WithFields(port.Fields{
		"use_case": "HandleTaskUpdated",
		"task_id":  event.TaskID,
	})

	nextAssignees := normalizeIDs(event.Payload.AssigneeIDs)

	existing, err := uc.participants.FindByTaskID(ctx, event.TaskID)
	if err != nil && !errors.Is(err, domain.ErrSnapshotNotFound) {
		ucLogger.Error("Failed to load participants snapshot", err, nil)
		return nil, fmt.Errorf("load participants for task %s: %w", event.TaskID, err)
	}

	creatorID := ""
	var previousAssignees []string
	if existing != nil {
		creatorID = existing.CreatorID
		previousAssignees = existing.AssigneeIDs
	}

	snapshot := domain.ParticipantSnapshot{
		TaskID:      event.TaskID,
		CreatorID:   creatorID,
		AssigneeIDs: nextAssignees,
	}
	if err := uc.participants.Upsert(ctx, snapshot); err != nil {
		ucLogger.Error("Failed to upsert participants snapshot", err, nil)
		return nil, fmt.Errorf("upsert participants for task %s: %w", event.TaskID, err)
	}

	added, err := addedAssignees(event.Payload, previousAssignees, nextAssignees)
	if err != nil {
		ucLogger.Error("Malformed assignee change", err, nil)
		return nil, err
	}

	recipients := newRecipientSet()
	if event.Payload.HasChange(changedFieldStatus) {
		recipients.add(nextAssignees...)
		recipients.add(creatorID)
	}
	recipients.add(added.list()...)
	recipients.remove(event.ActorID)

	drafts := make([]notificationDraft, 0, len(recipients.order))
	for _, id := range recipients.list() {
		if added.has(id) {
			drafts = append(drafts, notificationDraft{
				recipientID: id,
				title:       "Task assigned",
				body:        "You were assigned to this task.",
			})
			continue
		}
		drafts = append(drafts, notificationDraft{
			recipientID: id,
			title:       "Task updated",
			body:        fmt.Sprintf("Status changed to %s.", event.Payload.Status),
		})
	}

	saved, err := saveNotifications(ctx, uc.notifications, event, nil, drafts, uc.now())
	if err != nil {
		ucLogger.Error("Failed to save notifications", err, nil)
		return nil, err
	}

	ucLogger.Info("Task updated event handled", port.Fields{
		"changed_fields": len(event.Payload.ChangedFields),
		"added":          len(added.order),
		"recipients":     len(saved),
		"duplicates":     len(drafts) - len(saved),
	})
	return saved, nil
}

// addedAssignees = to \ from. Явные from/to из changedFields имеют приоритет;
// иначе from берется из прошлого снимка, to - из payload.
func addedAssignees(payload domain.TaskUpdatedPayload, previous, next []string) (*recipientSet, error) {
	added := newRecipientSet()
	change, ok := payload.ChangedFields[changedFieldAssignees]
	if !ok {
		return added, nil
	}

	from := normalizeIDs(previous)
	if change.From != nil {
		ids, ok := idsFromAny(change.From)
		if !ok {
			return nil, fmt.Errorf("changedFields.assigneeIds.from must be an array, got %T", change.From)
		}
		from = ids
	}

	to := next
	if change.To != nil {
		ids, ok := idsFromAny(change.To)
		if !ok {
			return nil, fmt.Errorf("changedFields.assigneeIds.to must be an array, got %T", change.To)
		}
		to = ids
	}

	before := newRecipientSet()
	before.add(from...)
	for _, id := range to {
		if !before.has(id) {
			added.add(id)
		}
	}
	return added, nil
}
