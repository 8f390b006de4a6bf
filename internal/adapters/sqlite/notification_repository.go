package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/brunomacedo1203/taskcollab/internal/core/domain"
	"github.com/brunomacedo1203/taskcollab/internal/core/port"

	"github.com/jmoiron/sqlx"
)

type NotificationRepository struct {
	db *sqlx.DB
}

var _ port.NotificationRepositoryPort = (*NotificationRepository)(nil)

const notificationColumns = "id, recipient_id, type, task_id, comment_id, title, body, read_at, created_at, dedup_key"

type notificationRow struct {
	ID          string         `db:"id"`
	RecipientID string         `db:"recipient_id"`
	Type        string         `db:"type"`
	TaskID      string         `db:"task_id"`
	CommentID   sql.NullString `db:"comment_id"`
	Title       string         `db:"title"`
	Body        string         `db:"body"`
	ReadAt      sql.NullString `db:"read_at"`
	CreatedAt   string         `db:"created_at"`
	DedupKey    string         `db:"dedup_key"`
}

func (row notificationRow) toDomain() (domain.Notification, error) {
	createdAt, err := parseTime(row.CreatedAt)
	if err != nil {
		return domain.Notification{}, err
	}
	n := domain.Notification{
		ID:          row.ID,
		RecipientID: row.RecipientID,
		Type:        domain.EventType(row.Type),
		TaskID:      row.TaskID,
		Title:       row.Title,
		Body:        row.Body,
		CreatedAt:   createdAt,
		DedupKey:    row.DedupKey,
	}
	if row.CommentID.Valid {
		commentID := row.CommentID.String
		n.CommentID = &commentID
	}
	if row.ReadAt.Valid {
		readAt, err := parseTime(row.ReadAt.String)
		if err != nil {
			return domain.Notification{}, err
		}
		n.ReadAt = &readAt
	}
	return n, nil
}

// InsertMany вставляет все записи в одной транзакции. Записи с уже существующим
// dedup_key пропускаются и в результат не попадают.
func (r *NotificationRepository) InsertMany(ctx context.Context, notifications []domain.Notification) ([]domain.Notification, error) {
	if len(notifications) == 0 {
		return []domain.Notification{}, nil
	}

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PreparexContext(ctx, `
		INSERT INTO notifications (`+notificationColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(dedup_key) DO NOTHING`)
	if err != nil {
		return nil, fmt.Errorf("preparing insert statement: %w", err)
	}
	defer stmt.Close()

	saved := make([]domain.Notification, 0, len(notifications))
	for _, n := range notifications {
		var commentID sql.NullString
		if n.CommentID != nil {
			commentID = sql.NullString{String: *n.CommentID, Valid: true}
		}
		var readAt sql.NullString
		if n.ReadAt != nil {
			readAt = sql.NullString{String: formatTime(*n.ReadAt), Valid: true}
		}

		res, err := stmt.ExecContext(ctx,
			n.ID, n.RecipientID, string(n.Type), n.TaskID, commentID,
			n.Title, n.Body, readAt, formatTime(n.CreatedAt), n.DedupKey,
		)
		if err != nil {
			return nil, fmt.Errorf("inserting notification %s: %w", n.ID, err)
		}
		affected, err := res.RowsAffected()
		if err != nil {
			return nil, fmt.Errorf("reading affected rows: %w", err)
		}
		if affected == 1 {
			saved = append(saved, n)
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("committing notifications: %w", err)
	}
	return saved, nil
}

func (r *NotificationRepository) ListUnread(ctx context.Context, recipientID string, limit int) ([]domain.Notification, error) {
	var rows []notificationRow
	err := r.db.SelectContext(ctx, &rows, `
		SELECT `+notificationColumns+` FROM notifications
		WHERE recipient_id = ? AND read_at IS NULL
		ORDER BY created_at DESC, id DESC
		LIMIT ?`, recipientID, limit)
	if err != nil {
		return nil, fmt.Errorf("listing unread notifications for %s: %w", recipientID, err)
	}

	out := make([]domain.Notification, 0, len(rows))
	for _, row := range rows {
		n, err := row.toDomain()
		if err != nil {
			return nil, err
		}
		out = append(out, n)
	}
	return out, nil
}

// MarkRead не перезаписывает уже проставленный read_at.
func (r *NotificationRepository) MarkRead(ctx context.Context, id, recipientID string, readAt time.Time) (*domain.Notification, error) {
	res, err := r.db.ExecContext(ctx,
		"UPDATE notifications SET read_at = COALESCE(read_at, ?) WHERE id = ? AND recipient_id = ?",
		formatTime(readAt), id, recipientID)
	if err != nil {
		return nil, fmt.Errorf("marking notification %s as read: %w", id, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("reading affected rows: %w", err)
	}
	if affected == 0 {
		return nil, domain.ErrNotificationNotFound
	}

	var row notificationRow
	err = r.db.GetContext(ctx, &row, "SELECT "+notificationColumns+" FROM notifications WHERE id = ?", id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotificationNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("getting notification %s: %w", id, err)
	}
	n, err := row.toDomain()
	if err != nil {
		return nil, err
	}
	return &n, nil
}
