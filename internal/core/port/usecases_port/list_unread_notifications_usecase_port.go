package usecases_port

import (
	"context"

	"github.com/brunomacedo1203/taskcollab/internal/core/domain"
)

type ListUnreadNotificationsUseCasePort interface {
	Execute(ctx context.Context, recipientID string, limit int) ([]domain.Notification, error)
}
