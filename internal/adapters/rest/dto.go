package rest

import (
	"time"

	"github.com/brunomacedo1203/taskcollab/internal/core/domain"
)

// NotificationResponse - DTO одного уведомления
type NotificationResponse struct {
	ID          string     `json:"id"`
	RecipientID string     `json:"recipientId"`
	Type        string     `json:"type"`
	TaskID      string     `json:"taskId"`
	CommentID   *string    `json:"commentId"`
	Title       string     `json:"title"`
	Body        string     `json:"body"`
	ReadAt      *time.Time `json:"readAt"`
	CreatedAt   time.Time  `json:"createdAt"`
}

type NotificationsListResponse struct {
	Data []NotificationResponse `json:"data"`
	Size int                    `json:"size"`
}

type MarkReadResponse struct {
	ID     string     `json:"id"`
	ReadAt *time.Time `json:"readAt"`
}

type MetricsResponse struct {
	Service string                 `json:"service"`
	Data    domain.MetricsSnapshot `json:"data"`
}

func toNotificationResponse(n domain.Notification) NotificationResponse {
	return NotificationResponse{
		ID:          n.ID,
		RecipientID: n.RecipientID,
		Type:        string(n.Type),
		TaskID:      n.TaskID,
		CommentID:   n.CommentID,
		Title:       n.Title,
		Body:        n.Body,
		ReadAt:      n.ReadAt,
		CreatedAt:   n.CreatedAt,
	}
}
