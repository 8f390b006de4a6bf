package constants

// Обменник и очередь событий задач
const (
	TasksEventsExchange     = "tasks.events"
	TasksEventsExchangeType = "topic"
	NotificationsQueue      = "notifications.q"
	TasksEventsRoutingAll   = "task.#"
	NotificationsConsumer   = "notifications-service"
)

// Ключи маршрутизации совпадают с типами событий
const (
	RoutingKeyTaskCreated        = "task.created"
	RoutingKeyTaskUpdated        = "task.updated"
	RoutingKeyTaskCommentCreated = "task.comment.created"
)
