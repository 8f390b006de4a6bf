package usecases_port

import (
	"context"

	"github.com/brunomacedo1203/taskcollab/internal/core/domain"
)

type MarkNotificationReadUseCasePort interface {
	Execute(ctx context.Context, id, recipientID string) (*domain.Notification, error)
}
