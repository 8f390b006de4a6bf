package rabbitmq

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/brunomacedo1203/taskcollab/internal/contextkeys"
	"github.com/brunomacedo1203/taskcollab/internal/contracts"
	"github.com/brunomacedo1203/taskcollab/internal/core/domain"
	"github.com/brunomacedo1203/taskcollab/internal/core/port"
	"github.com/brunomacedo1203/taskcollab/pkg/rabbitmq/rabbitmq_common"
	"github.com/brunomacedo1203/taskcollab/pkg/rabbitmq/rabbitmq_producer"

	amqp "github.com/rabbitmq/amqp091-go"
)

const DefaultPublishTimeout = 5 * time.Second

// eventPublisher - часть rabbitmq_producer.Publisher, нужная адаптеру.
type eventPublisher interface {
	Publish(ctx context.Context, routingKey string, msg amqp.Publishing) error
	State() rabbitmq_common.ConnectionState
	Close() error
}

// TaskEventsPublisherAdapter публикует события задач. Ключ маршрутизации = тип события.
// Доставка at-most-once. Пока не было ни одной успешной публикации, Publish ждет
// ленивое подключение не дольше timeout. После этого событие, пришедшее во время
// переподключения, сразу отбрасывается и вызывающий не блокируется.
type TaskEventsPublisherAdapter struct {
	producer eventPublisher
	timeout  time.Duration
	warm     atomic.Bool
}

var _ port.TaskEventPublisherPort = (*TaskEventsPublisherAdapter)(nil)

func NewTaskEventsPublisherAdapter(producer *rabbitmq_producer.Publisher, timeout time.Duration) (*TaskEventsPublisherAdapter, error) {
	if producer == nil {
		return nil, fmt.Errorf("rabbitmq adapter: producer cannot be nil")
	}
	return newTaskEventsPublisherAdapter(producer, timeout), nil
}

func newTaskEventsPublisherAdapter(producer eventPublisher, timeout time.Duration) *TaskEventsPublisherAdapter {
	if timeout <= 0 {
		timeout = DefaultPublishTimeout
	}
	return &TaskEventsPublisherAdapter{producer: producer, timeout: timeout}
}

// Publish никогда не возвращает ошибку: сбои только логируются.
func (a *TaskEventsPublisherAdapter) Publish(ctx context.Context, event domain.TaskEvent) {
	routingKey := string(event.Type())
	adapterLogger := contextkeys.LoggerFromContext(ctx).WithFields(port.Fields{
		"component":   "TaskEventsPublisher",
		"routing_key": routingKey,
		"task_id":     event.Meta().TaskID,
	})

	body, err := contracts.EncodeTaskEvent(event)
	if err != nil {
		adapterLogger.Error("Failed to encode task event, dropping it", err, nil)
		return
	}

	msg := amqp.Publishing{
		ContentType:  "application/json",
		Body:         body,
		DeliveryMode: amqp.Persistent, // Для сохранения сообщений при перезапуске брокера
		Timestamp:    time.Now(),
		Headers:      make(amqp.Table),
	}
	if traceID := contextkeys.TraceIDFromContext(ctx); traceID != "" {
		msg.Headers[traceIDHeader] = traceID
	}

	if state := a.producer.State(); a.warm.Load() && state != rabbitmq_common.StateConnected {
		adapterLogger.Error("Broker channel unavailable, dropping task event", rabbitmq_common.ErrNotConnected,
			port.Fields{"state": state.String()})
		return
	}

	publishCtx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	if err := a.producer.Publish(publishCtx, routingKey, msg); err != nil {
		adapterLogger.Error("Failed to publish task event, dropping it", err, nil)
		return
	}
	a.warm.Store(true)
	adapterLogger.Debug("Task event published", nil)
}

func (a *TaskEventsPublisherAdapter) Close() error {
	return a.producer.Close()
}
