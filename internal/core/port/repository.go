package port

import (
	"context"
	"time"

	"github.com/brunomacedo1203/taskcollab/internal/core/domain"
)

// ParticipantRepositoryPort хранит снимки участников задач (last-write-wins).
type ParticipantRepositoryPort interface {
	Upsert(ctx context.Context, snapshot domain.ParticipantSnapshot) error
	// FindByTaskID возвращает domain.ErrSnapshotNotFound, если снимка нет.
	FindByTaskID(ctx context.Context, taskID string) (*domain.ParticipantSnapshot, error)
}

// NotificationRepositoryPort хранит уведомления.
type NotificationRepositoryPort interface {
	// InsertMany сохраняет уведомления и возвращает только реально вставленные:
	// записи с уже существующим DedupKey пропускаются.
	InsertMany(ctx context.Context, notifications []domain.Notification) ([]domain.Notification, error)
	// ListUnread - непрочитанные уведомления получателя, новые первыми.
	ListUnread(ctx context.Context, recipientID string, limit int) ([]domain.Notification, error)
	// MarkRead идемпотентно проставляет read_at. domain.ErrNotificationNotFound,
	// если уведомления нет или оно принадлежит другому получателю.
	MarkRead(ctx context.Context, id, recipientID string, readAt time.Time) (*domain.Notification, error)
}
