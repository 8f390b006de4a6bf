package port

import "context"

// Имена событий, которые получают клиенты WebSocket.
const (
	RealtimeTaskCreated        = "task:created"
	RealtimeTaskUpdated        = "task:updated"
	RealtimeCommentNew         = "comment:new"
	RealtimeNotificationUnread = "notification:unread"
)

// RealtimePusherPort доставляет событие всем живым соединениям указанных пользователей.
// Доставка best-effort: офлайн-пользователи пропускаются, ошибки отправки только логируются.
type RealtimePusherPort interface {
	EmitToUsers(ctx context.Context, event string, payload any, userIDs []string)
}
