package usecases_port

import (
	"context"

	"github.com/brunomacedo1203/taskcollab/internal/core/domain"
)

// Каждый обработчик возвращает получателей, для которых уведомление было сохранено.

type HandleTaskCreatedUseCasePort interface {
	Execute(ctx context.Context, event domain.TaskCreatedEvent) ([]string, error)
}

type HandleTaskUpdatedUseCasePort interface {
	Execute(ctx context.Context, event domain.TaskUpdatedEvent) ([]string, error)
}

type HandleTaskCommentCreatedUseCasePort interface {
	Execute(ctx context.Context, event domain.TaskCommentCreatedEvent) ([]string, error)
}
