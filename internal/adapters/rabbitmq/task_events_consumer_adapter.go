package rabbitmq

import (
	"context"
	"errors"
	"fmt"
	"unicode/utf8"

	"github.com/brunomacedo1203/taskcollab/internal/contextkeys"
	"github.com/brunomacedo1203/taskcollab/internal/contracts"
	"github.com/brunomacedo1203/taskcollab/internal/core/domain"
	"github.com/brunomacedo1203/taskcollab/internal/core/port"
	"github.com/brunomacedo1203/taskcollab/pkg/rabbitmq/rabbitmq_consumer"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const (
	traceIDHeader       = "x-trace-id"
	maxLogPreviewLength = 200
	consumerTracerName  = "notifications.consumer"
)

// TaskEventsConsumerAdapter читает события задач из очереди, проверяет их
// и передает обработчику. ack/nack делает pkg-потребитель по возвращенной ошибке.
type TaskEventsConsumerAdapter struct {
	consumer *rabbitmq_consumer.Consumer
	handler  domain.TaskEventHandler
	metrics  port.EventMetricsPort
	tracer   trace.Tracer
	logger   port.LoggerPort
}

func NewTaskEventsConsumerAdapter(
	consumerCfg rabbitmq_consumer.ConsumerConfig,
	handler domain.TaskEventHandler,
	metrics port.EventMetricsPort,
	logger port.LoggerPort,
) (*TaskEventsConsumerAdapter, error) {
	if handler == nil {
		return nil, fmt.Errorf("task events consumer: handler cannot be nil")
	}
	if metrics == nil {
		return nil, fmt.Errorf("task events consumer: metrics cannot be nil")
	}

	adapter := &TaskEventsConsumerAdapter{
		handler: handler,
		metrics: metrics,
		tracer:  otel.Tracer(consumerTracerName),
		logger:  logger.WithFields(port.Fields{"component": "TaskEventsConsumer"}),
	}

	pkgLogger := logger.WithFields(port.Fields{"component": "rabbitmq_consumer", "queue": consumerCfg.QueueName})
	consumerCfg.Logger = NewPkgLoggerBridge(pkgLogger)

	consumer, err := rabbitmq_consumer.NewConsumer(consumerCfg, adapter.messageHandler)
	if err != nil {
		return nil, fmt.Errorf("failed to create RabbitMQ consumer for task events: %w", err)
	}
	adapter.consumer = consumer
	return adapter, nil
}

// messageHandler: nil - ack; ошибка - nack без повторной постановки.
func (a *TaskEventsConsumerAdapter) messageHandler(ctx context.Context, d amqp.Delivery) error {
	routingKey := d.RoutingKey
	a.metrics.IncReceived(routingKey)

	traceID, ok := d.Headers[traceIDHeader].(string)
	if !ok || traceID == "" {
		traceID = uuid.New().String()
	}

	msgLogger := a.logger.WithFields(port.Fields{
		"trace_id":     traceID,
		"delivery_tag": d.DeliveryTag,
		"routing_key":  routingKey,
	})
	ctx = contextkeys.ContextWithLogger(ctx, msgLogger)
	ctx = contextkeys.ContextWithTraceID(ctx, traceID)

	ctx, span := a.tracer.Start(ctx, routingKey+".consume",
		trace.WithSpanKind(trace.SpanKindConsumer),
		trace.WithAttributes(
			attribute.String("messaging.system", "rabbitmq"),
			attribute.String("messaging.rabbitmq.routing_key", routingKey),
			attribute.String("trace_id", traceID),
		))
	defer span.End()

	msgLogger.Info("Task event received", port.Fields{"preview": payloadPreview(d.Body)})

	event, err := contracts.ParseTaskEvent(routingKey, d.Body)
	if err != nil {
		return a.fail(msgLogger, span, routingKey, "Task event rejected by validation", err)
	}

	if err := event.Accept(ctx, a.handler); err != nil {
		return a.fail(msgLogger, span, routingKey, "Task event handler failed", err)
	}

	a.metrics.IncProcessed(string(event.Type()))
	msgLogger.Debug("Task event processed", port.Fields{"task_id": event.Meta().TaskID})
	return nil
}

func (a *TaskEventsConsumerAdapter) fail(logger port.LoggerPort, span trace.Span, routingKey, msg string, err error) error {
	a.metrics.IncFailed(routingKey)
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())

	fields := port.Fields{}
	var ve *contracts.ValidationError
	if errors.As(err, &ve) {
		fields["reason"] = ve.Reason
	}
	logger.Error(msg, err, fields)
	return err
}

// payloadPreview обрезает тело до maxLogPreviewLength символов.
func payloadPreview(body []byte) string {
	if utf8.RuneCount(body) <= maxLogPreviewLength {
		return string(body)
	}
	return string([]rune(string(body))[:maxLogPreviewLength]) + "…"
}

// Start реализует EventListenerPort
func (a *TaskEventsConsumerAdapter) Start(ctx context.Context) error {
	return a.consumer.Start(ctx)
}

// Close реализует EventListenerPort
func (a *TaskEventsConsumerAdapter) Close() error {
	return a.consumer.Close()
}
