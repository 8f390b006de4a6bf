package port

import "github.com/brunomacedo1203/taskcollab/internal/core/domain"

// EventMetricsPort - счетчики потребителя событий.
type EventMetricsPort interface {
	IncReceived(routingKey string)
	IncProcessed(eventType string)
	IncFailed(eventType string)
	Snapshot() domain.MetricsSnapshot
}
