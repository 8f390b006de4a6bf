package domain

import (
	"strings"
	"time"
)

// Notification - персистентная запись уведомления для одного получателя.
type Notification struct {
	ID          string     `json:"id"`
	RecipientID string     `json:"recipientId"`
	Type        EventType  `json:"type"`
	TaskID      string     `json:"taskId"`
	CommentID   *string    `json:"commentId"`
	Title       string     `json:"title"`
	Body        string     `json:"body"`
	ReadAt      *time.Time `json:"readAt"`
	CreatedAt   time.Time  `json:"createdAt"`

	// DedupKey уникален для пары (получатель, событие): повторная доставка
	// того же события не создает вторую запись.
	DedupKey string `json:"-"`
}

// IsRead сообщает, прочитано ли уведомление.
func (n Notification) IsRead() bool {
	return n.ReadAt != nil
}

// NotificationDedupKey строит ключ идемпотентности: recipient|task|type|occurredAt|comment.
func NotificationDedupKey(recipientID string, event TaskEvent) string {
	meta := event.Meta()
	commentID := ""
	if c, ok := event.(TaskCommentCreatedEvent); ok {
		commentID = c.Payload.CommentID
	}
	return strings.Join([]string{recipientID, meta.TaskID, string(event.Type()), meta.OccurredAt, commentID}, "|")
}
