package domain

import "time"

// MetricsSnapshot - копия счетчиков потребителя на момент запроса.
type MetricsSnapshot struct {
	ReceivedByRoutingKey map[string]int64 `json:"receivedByRoutingKey"`
	ProcessedByType      map[string]int64 `json:"processedByType"`
	FailedByType         map[string]int64 `json:"failedByType"`
	Timestamp            time.Time        `json:"timestamp"`
}
