package port

import (
	"context"

	"github.com/brunomacedo1203/taskcollab/internal/core/domain"
)

// EventListenerPort - долгоживущий слушатель очереди.
type EventListenerPort interface {
	Start(ctx context.Context) error
	Close() error
}

// TaskEventPublisherPort публикует события задач. Доставка at-most-once:
// ошибки логируются, вызывающий о них не узнает.
type TaskEventPublisherPort interface {
	Publish(ctx context.Context, event domain.TaskEvent)
	Close() error
}
