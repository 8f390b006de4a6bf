package constants

const (
	DefaultWSPath = "/ws"

	// Сколько непрочитанных уведомлений отправляется при подключении
	UnreadBacklogSize = 10
)
