package metrics

import (
	"context"
	"sync"
	"time"

	"github.com/brunomacedo1203/taskcollab/internal/core/domain"
	"github.com/brunomacedo1203/taskcollab/internal/core/port"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const meterName = "notifications.task_events"

// Counter считает полученные, обработанные и упавшие события.
// Локальные карты отдаются через Snapshot (GET /metrics), OTel-счетчики
// уходят в MeterProvider, установленный pkg/telemetry (OTEL_ENABLED).
type Counter struct {
	mu        sync.Mutex
	received  map[string]int64
	processed map[string]int64
	failed    map[string]int64
	now       func() time.Time

	receivedCounter  metric.Int64Counter
	processedCounter metric.Int64Counter
	failedCounter    metric.Int64Counter
}

var _ port.EventMetricsPort = (*Counter)(nil)

func NewCounter() *Counter {
	return NewCounterWithMeter(otel.Meter(meterName))
}

func NewCounterWithMeter(meter metric.Meter) *Counter {
	// Ошибки создания инструментов игнорируются: noop-счетчик все равно возвращается
	received, _ := meter.Int64Counter("task_events.received",
		metric.WithDescription("Task events received from the broker"))
	processed, _ := meter.Int64Counter("task_events.processed",
		metric.WithDescription("Task events handled successfully"))
	failed, _ := meter.Int64Counter("task_events.failed",
		metric.WithDescription("Task events rejected or failed in a handler"))

	return &Counter{
		received:         make(map[string]int64),
		processed:        make(map[string]int64),
		failed:           make(map[string]int64),
		now:              func() time.Time { return time.Now().UTC() },
		receivedCounter:  received,
		processedCounter: processed,
		failedCounter:    failed,
	}
}

func (c *Counter) IncReceived(routingKey string) {
	c.inc(c.received, routingKey)
	c.receivedCounter.Add(context.Background(), 1, metric.WithAttributes(attribute.String("routing_key", routingKey)))
}

func (c *Counter) IncProcessed(eventType string) {
	c.inc(c.processed, eventType)
	c.processedCounter.Add(context.Background(), 1, metric.WithAttributes(attribute.String("event_type", eventType)))
}

func (c *Counter) IncFailed(eventType string) {
	c.inc(c.failed, eventType)
	c.failedCounter.Add(context.Background(), 1, metric.WithAttributes(attribute.String("event_type", eventType)))
}

func (c *Counter) inc(target map[string]int64, key string) {
	c.mu.Lock()
	target[key]++
	c.mu.Unlock()
}

// Snapshot возвращает копии карт: вызывающий может их менять.
func (c *Counter) Snapshot() domain.MetricsSnapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return domain.MetricsSnapshot{
		ReceivedByRoutingKey: copyCounts(c.received),
		ProcessedByType:      copyCounts(c.processed),
		FailedByType:         copyCounts(c.failed),
		Timestamp:            c.now(),
	}
}

func copyCounts(src map[string]int64) map[string]int64 {
	out := make(map[string]int64, len(src))
	for k, v := range src {
		out[k] = v
	}
	return out
}
