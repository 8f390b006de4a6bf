package postgres_adapter

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/brunomacedo1203/taskcollab/internal/contextkeys"
	"github.com/brunomacedo1203/taskcollab/internal/core/domain"
	"github.com/brunomacedo1203/taskcollab/internal/core/port"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// NotificationRepository - уведомления в PostgreSQL.
type NotificationRepository struct {
	pool *pgxpool.Pool
}

var _ port.NotificationRepositoryPort = (*NotificationRepository)(nil)

const notificationColumns = `id, recipient_id, type, task_id, comment_id, title, body, read_at, created_at, dedup_key`

func NewNotificationRepository(pool *pgxpool.Pool) (*NotificationRepository, error) {
	if pool == nil {
		return nil, fmt.Errorf("pgxpool.Pool cannot be nil")
	}
	return &NotificationRepository{pool: pool}, nil
}

func scanNotification(row pgx.Row) (domain.Notification, error) {
	var (
		n         domain.Notification
		eventType string
	)
	err := row.Scan(&n.ID, &n.RecipientID, &eventType, &n.TaskID, &n.CommentID,
		&n.Title, &n.Body, &n.ReadAt, &n.CreatedAt, &n.DedupKey)
	n.Type = domain.EventType(eventType)
	return n, err
}

// InsertMany вставляет записи в одной транзакции. Дубликаты по dedup_key
// пропускаются (ON CONFLICT DO NOTHING ничего не возвращает).
func (r *NotificationRepository) InsertMany(ctx context.Context, notifications []domain.Notification) ([]domain.Notification, error) {
	if len(notifications) == 0 {
		return []domain.Notification{}, nil
	}
	repoLogger := contextkeys.LoggerFromContext(ctx).WithFields(port.Fields{
		"component": "NotificationRepository",
		"method":    "InsertMany",
	})

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	query := `
		INSERT INTO notifications (` + notificationColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (dedup_key) DO NOTHING
		RETURNING ` + notificationColumns

	saved := make([]domain.Notification, 0, len(notifications))
	for _, n := range notifications {
		row := tx.QueryRow(ctx, query,
			n.ID, n.RecipientID, string(n.Type), n.TaskID, n.CommentID,
			n.Title, n.Body, n.ReadAt, n.CreatedAt, n.DedupKey,
		)
		inserted, err := scanNotification(row)
		if errors.Is(err, pgx.ErrNoRows) {
			repoLogger.Debug("Duplicate notification skipped", port.Fields{"dedup_key": n.DedupKey})
			continue
		}
		if err != nil {
			repoLogger.Error("Failed to insert notification", err, port.Fields{"recipient_id": n.RecipientID})
			return nil, fmt.Errorf("failed to insert notification for %s: %w", n.RecipientID, err)
		}
		saved = append(saved, inserted)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit notifications: %w", err)
	}
	return saved, nil
}

func (r *NotificationRepository) ListUnread(ctx context.Context, recipientID string, limit int) ([]domain.Notification, error) {
	query := `
		SELECT ` + notificationColumns + `
		FROM notifications
		WHERE recipient_id = $1 AND read_at IS NULL
		ORDER BY created_at DESC, id DESC
		LIMIT $2`

	rows, err := r.pool.Query(ctx, query, recipientID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list unread notifications: %w", err)
	}
	defer rows.Close()

	out := make([]domain.Notification, 0, limit)
	for rows.Next() {
		n, err := scanNotification(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan notification: %w", err)
		}
		out = append(out, n)
	}
	return out, rows.Err()
}

// MarkRead: COALESCE сохраняет первое значение read_at.
func (r *NotificationRepository) MarkRead(ctx context.Context, id, recipientID string, readAt time.Time) (*domain.Notification, error) {
	query := `
		UPDATE notifications
		SET read_at = COALESCE(read_at, $3)
		WHERE id = $1 AND recipient_id = $2
		RETURNING ` + notificationColumns

	n, err := scanNotification(r.pool.QueryRow(ctx, query, id, recipientID, readAt))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotificationNotFound
		}
		return nil, fmt.Errorf("failed to mark notification %s as read: %w", id, err)
	}
	return &n, nil
}
