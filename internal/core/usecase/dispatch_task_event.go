package usecase

import (
	"context"

	"github.com/brunomacedo1203/taskcollab/internal/contextkeys"
	"github.com/brunomacedo1203/taskcollab/internal/core/domain"
	"github.com/brunomacedo1203/taskcollab/internal/core/port"
	"github.com/brunomacedo1203/taskcollab/internal/core/port/usecases_port"
)

// DispatchTaskEventUseCase - обработчик событий для потребителя: сохраняет
// уведомления и пушит событие в реальном времени тем, для кого они сохранены.
type DispatchTaskEventUseCase struct {
	created  usecases_port.HandleTaskCreatedUseCasePort
	updated  usecases_port.HandleTaskUpdatedUseCasePort
	comments usecases_port.HandleTaskCommentCreatedUseCasePort
	pusher   port.RealtimePusherPort
}

var _ domain.TaskEventHandler = (*DispatchTaskEventUseCase)(nil)

func NewDispatchTaskEventUseCase(
	created usecases_port.HandleTaskCreatedUseCasePort,
	updated usecases_port.HandleTaskUpdatedUseCasePort,
	comments usecases_port.HandleTaskCommentCreatedUseCasePort,
	pusher port.RealtimePusherPort,
) *DispatchTaskEventUseCase {
	return &DispatchTaskEventUseCase{
		created:  created,
		updated:  updated,
		comments: comments,
		pusher:   pusher,
	}
}

func (uc *DispatchTaskEventUseCase) HandleTaskCreated(ctx context.Context, event domain.TaskCreatedEvent) error {
	recipients, err := uc.created.Execute(ctx, event)
	if err != nil {
		return err
	}
	uc.push(ctx, port.RealtimeTaskCreated, event, recipients)
	return nil
}

func (uc *DispatchTaskEventUseCase) HandleTaskUpdated(ctx context.Context, event domain.TaskUpdatedEvent) error {
	recipients, err := uc.updated.Execute(ctx, event)
	if err != nil {
		return err
	}
	uc.push(ctx, port.RealtimeTaskUpdated, event, recipients)
	return nil
}

func (uc *DispatchTaskEventUseCase) HandleTaskCommentCreated(ctx context.Context, event domain.TaskCommentCreatedEvent) error {
	recipients, err := uc.comments.Execute(ctx, event)
	if err != nil {
		return err
	}
	uc.push(ctx, port.RealtimeCommentNew, event, recipients)
	return nil
}

func (uc *DispatchTaskEventUseCase) push(ctx context.Context, name string, event domain.TaskEvent, recipients []string) {
	if len(recipients) == 0 {
		contextkeys.LoggerFromContext(ctx).Debug("No recipients, nothing to push", port.Fields{"realtime_event": name})
		return
	}
	uc.pusher.EmitToUsers(ctx, name, event, recipients)
}
