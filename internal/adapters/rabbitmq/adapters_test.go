package rabbitmq

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/brunomacedo1203/taskcollab/internal/contextkeys"
	"github.com/brunomacedo1203/taskcollab/internal/contracts"
	"github.com/brunomacedo1203/taskcollab/internal/core/domain"
	"github.com/brunomacedo1203/taskcollab/internal/core/port"
	"github.com/brunomacedo1203/taskcollab/pkg/rabbitmq/rabbitmq_common"
	"github.com/brunomacedo1203/taskcollab/pkg/rabbitmq/rabbitmq_consumer"
	"github.com/brunomacedo1203/taskcollab/pkg/rabbitmq/rabbitmqtest"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"go.opentelemetry.io/otel/trace"
)

const validCreated = `{"type":"task.created","taskId":"t-1","occurredAt":"2024-05-01T10:00:00Z","actorId":"u-1",` +
	`"payload":{"title":"T","description":null,"status":"TODO","priority":"LOW","dueDate":null,"assigneeIds":["u-2"]}}`

type countingMetrics struct {
	mu        sync.Mutex
	received  map[string]int64
	processed map[string]int64
	failed    map[string]int64
}

func newCountingMetrics() *countingMetrics {
	return &countingMetrics{received: map[string]int64{}, processed: map[string]int64{}, failed: map[string]int64{}}
}

func (m *countingMetrics) IncReceived(k string)  { m.inc(m.received, k) }
func (m *countingMetrics) IncProcessed(k string) { m.inc(m.processed, k) }
func (m *countingMetrics) IncFailed(k string)    { m.inc(m.failed, k) }

func (m *countingMetrics) inc(target map[string]int64, k string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	target[k]++
}

func (m *countingMetrics) Snapshot() domain.MetricsSnapshot {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := func(src map[string]int64) map[string]int64 {
		out := make(map[string]int64, len(src))
		for k, v := range src {
			out[k] = v
		}
		return out
	}
	return domain.MetricsSnapshot{ReceivedByRoutingKey: cp(m.received), ProcessedByType: cp(m.processed), FailedByType: cp(m.failed)}
}

type recordingHandler struct {
	mu      sync.Mutex
	events  []domain.TaskEvent
	traceID string
	err     error
}

func (h *recordingHandler) record(ctx context.Context, e domain.TaskEvent) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.events = append(h.events, e)
	h.traceID = contextkeys.TraceIDFromContext(ctx)
	return h.err
}

func (h *recordingHandler) HandleTaskCreated(ctx context.Context, e domain.TaskCreatedEvent) error {
	return h.record(ctx, e)
}

func (h *recordingHandler) HandleTaskUpdated(ctx context.Context, e domain.TaskUpdatedEvent) error {
	return h.record(ctx, e)
}

func (h *recordingHandler) HandleTaskCommentCreated(ctx context.Context, e domain.TaskCommentCreatedEvent) error {
	return h.record(ctx, e)
}

func (h *recordingHandler) count() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.events)
}

func consumerConfig(dialer *rabbitmqtest.Dialer) rabbitmq_consumer.ConsumerConfig {
	return rabbitmq_consumer.ConsumerConfig{
		Config:          rabbitmq_common.Config{URL: "amqp://localhost:5672"},
		QueueName:       "notifications.q",
		DurableQueue:    true,
		ExchangeName:    "tasks.events",
		ExchangeType:    "topic",
		DurableExchange: true,
		DeclareExchange: true,
		RoutingKeys:     []string{"task.#"},
		PrefetchCount:   10,
		ConsumerTag:     "notifications-test",
		Backoff:         rabbitmq_common.BackoffConfig{Initial: time.Millisecond, Max: time.Millisecond, Multiplier: 1.5},
		Dial:            dialer.Dial,
	}
}

func newTestAdapter(t *testing.T, handler domain.TaskEventHandler, metrics port.EventMetricsPort) *TaskEventsConsumerAdapter {
	t.Helper()
	adapter, err := NewTaskEventsConsumerAdapter(consumerConfig(&rabbitmqtest.Dialer{}), handler, metrics, contextkeys.NoopLogger())
	require.NoError(t, err)
	return adapter
}

func TestMessageHandlerDispatchesValidEvent(t *testing.T) {
	handler := &recordingHandler{}
	metrics := newCountingMetrics()
	adapter := newTestAdapter(t, handler, metrics)

	d := rabbitmqtest.NewDelivery(&rabbitmqtest.Acknowledger{}, 1, "task.created", []byte(validCreated))
	d.Headers = amqp.Table{"x-trace-id": "trace-42"}

	require.NoError(t, adapter.messageHandler(context.Background(), d))
	require.Equal(t, 1, handler.count())
	assert.Equal(t, "trace-42", handler.traceID)

	snap := metrics.Snapshot()
	assert.Equal(t, int64(1), snap.ReceivedByRoutingKey["task.created"])
	assert.Equal(t, int64(1), snap.ProcessedByType["task.created"])
	assert.Empty(t, snap.FailedByType)
}

func TestMessageHandlerRejectsMismatchedRoutingKey(t *testing.T) {
	handler := &recordingHandler{}
	metrics := newCountingMetrics()
	adapter := newTestAdapter(t, handler, metrics)

	d := rabbitmqtest.NewDelivery(&rabbitmqtest.Acknowledger{}, 1, "task.updated", []byte(validCreated))
	err := adapter.messageHandler(context.Background(), d)

	var ve *contracts.ValidationError
	require.ErrorAs(t, err, &ve)
	assert.Equal(t, 0, handler.count(), "rejected event must never be dispatched")

	snap := metrics.Snapshot()
	assert.Equal(t, int64(1), snap.ReceivedByRoutingKey["task.updated"])
	assert.Equal(t, int64(1), snap.FailedByType["task.updated"])
	assert.Empty(t, snap.ProcessedByType)
}

func TestMessageHandlerCountsHandlerFailure(t *testing.T) {
	handler := &recordingHandler{err: errors.New("db down")}
	metrics := newCountingMetrics()
	adapter := newTestAdapter(t, handler, metrics)

	d := rabbitmqtest.NewDelivery(&rabbitmqtest.Acknowledger{}, 1, "task.created", []byte(validCreated))
	require.Error(t, adapter.messageHandler(context.Background(), d))
	assert.Equal(t, int64(1), metrics.Snapshot().FailedByType["task.created"])
}

func TestMessageHandlerRecordsConsumerSpans(t *testing.T) {
	adapter := newTestAdapter(t, &recordingHandler{}, newCountingMetrics())
	recorder := tracetest.NewSpanRecorder()
	adapter.tracer = sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder)).Tracer("test")

	ok := rabbitmqtest.NewDelivery(&rabbitmqtest.Acknowledger{}, 1, "task.created", []byte(validCreated))
	require.NoError(t, adapter.messageHandler(context.Background(), ok))
	bad := rabbitmqtest.NewDelivery(&rabbitmqtest.Acknowledger{}, 2, "task.updated", []byte(validCreated))
	require.Error(t, adapter.messageHandler(context.Background(), bad))

	spans := recorder.Ended()
	require.Len(t, spans, 2)

	assert.Equal(t, "task.created.consume", spans[0].Name())
	assert.Equal(t, trace.SpanKindConsumer, spans[0].SpanKind())
	assert.NotEqual(t, codes.Error, spans[0].Status().Code)

	assert.Equal(t, "task.updated.consume", spans[1].Name())
	assert.Equal(t, codes.Error, spans[1].Status().Code)
	require.NotEmpty(t, spans[1].Events(), "the rejection must be recorded on the span")
	assert.Equal(t, "exception", spans[1].Events()[0].Name)
}

func TestConsumerAcksAndNacksThroughBroker(t *testing.T) {
	dialer := &rabbitmqtest.Dialer{}
	handler := &recordingHandler{}
	adapter, err := NewTaskEventsConsumerAdapter(consumerConfig(dialer), handler, newCountingMetrics(), contextkeys.NoopLogger())
	require.NoError(t, err)
	t.Cleanup(func() { _ = adapter.Close() })

	require.NoError(t, adapter.Start(context.Background()))
	ch := dialer.LastConnection().LastChannel()
	require.Equal(t, []rabbitmqtest.Binding{{Queue: "notifications.q", Key: "task.#", Exchange: "tasks.events"}}, ch.Bindings)

	good := &rabbitmqtest.Acknowledger{}
	bad := &rabbitmqtest.Acknowledger{}
	tornDown := &rabbitmqtest.Acknowledger{AckErr: amqp.ErrClosed}
	ch.Deliver(rabbitmqtest.NewDelivery(good, 1, "task.created", []byte(validCreated)))
	ch.Deliver(rabbitmqtest.NewDelivery(bad, 2, "task.created", []byte(`{"type":"task.created"`)))
	ch.Deliver(rabbitmqtest.NewDelivery(tornDown, 3, "task.created", []byte(validCreated)))

	require.Eventually(t, func() bool {
		_, nacks, _ := tornDown.Counts()
		return nacks == 1
	}, time.Second, time.Millisecond)

	acks, nacks, requeued := good.Counts()
	assert.Equal(t, 1, acks)
	assert.Equal(t, 0, nacks)
	assert.False(t, requeued)

	acks, nacks, requeued = bad.Counts()
	assert.Equal(t, 0, acks)
	assert.Equal(t, 1, nacks)
	assert.False(t, requeued)

	acks, nacks, requeued = tornDown.Counts()
	assert.Equal(t, 1, acks)
	assert.Equal(t, 1, nacks)
	assert.False(t, requeued)
}

func TestPayloadPreview(t *testing.T) {
	assert.Equal(t, "short", payloadPreview([]byte("short")))

	long := strings.Repeat("я", 250)
	preview := payloadPreview([]byte(long))
	assert.Equal(t, strings.Repeat("я", 200)+"…", preview)
}

func TestPkgLoggerBridgeSkipsMalformedPairs(t *testing.T) {
	b := &PkgLoggerBridge{internalLogger: contextkeys.NoopLogger()}
	fields := b.toFields("queue", "q", 42, "ignored", "dangling")
	assert.Equal(t, port.Fields{"queue": "q"}, fields)
}

type fakeProducer struct {
	mu       sync.Mutex
	keys     []string
	msgs     []amqp.Publishing
	deadline bool
	err      error
	state    rabbitmq_common.ConnectionState
}

func (p *fakeProducer) State() rabbitmq_common.ConnectionState {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

func (p *fakeProducer) setState(s rabbitmq_common.ConnectionState) {
	p.mu.Lock()
	p.state = s
	p.mu.Unlock()
}

func (p *fakeProducer) Publish(ctx context.Context, routingKey string, msg amqp.Publishing) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	_, p.deadline = ctx.Deadline()
	if p.err != nil {
		return p.err
	}
	p.keys = append(p.keys, routingKey)
	p.msgs = append(p.msgs, msg)
	return nil
}

func (p *fakeProducer) Close() error { return nil }

func TestPublisherAdapterSendsPersistentEventByType(t *testing.T) {
	producer := &fakeProducer{}
	adapter := newTaskEventsPublisherAdapter(producer, time.Second)

	event := domain.TaskCommentCreatedEvent{
		EventMeta: domain.EventMeta{TaskID: "t-1", OccurredAt: "2024-05-01T10:00:00Z"},
		Payload:   domain.TaskCommentPayload{CommentID: "c-1", Content: "hi"},
	}
	ctx := contextkeys.ContextWithTraceID(context.Background(), "trace-7")
	adapter.Publish(ctx, event)

	require.Len(t, producer.msgs, 1)
	assert.True(t, producer.deadline)
	assert.Equal(t, "task.comment.created", producer.keys[0])

	msg := producer.msgs[0]
	assert.Equal(t, amqp.Persistent, msg.DeliveryMode)
	assert.Equal(t, "application/json", msg.ContentType)
	assert.Equal(t, "trace-7", msg.Headers["x-trace-id"])
	assert.False(t, msg.Timestamp.IsZero())

	parsed, err := contracts.ParseTaskEvent("task.comment.created", msg.Body)
	require.NoError(t, err)
	assert.Equal(t, event, parsed)
}

func TestPublisherAdapterSwallowsFailures(t *testing.T) {
	producer := &fakeProducer{err: rabbitmq_common.ErrShuttingDown}
	adapter := newTaskEventsPublisherAdapter(producer, 0)
	assert.Equal(t, DefaultPublishTimeout, adapter.timeout)

	assert.NotPanics(t, func() {
		adapter.Publish(context.Background(), domain.TaskCreatedEvent{EventMeta: domain.EventMeta{TaskID: "t-1"}})
	})
	assert.Empty(t, producer.msgs)
}

func TestPublisherAdapterDropsWhileReconnecting(t *testing.T) {
	producer := &fakeProducer{}
	adapter := newTaskEventsPublisherAdapter(producer, time.Second)
	event := domain.TaskCreatedEvent{EventMeta: domain.EventMeta{TaskID: "t-1", OccurredAt: "2024-05-01T10:00:00Z"}}

	// Первая публикация ждет ленивое подключение
	adapter.Publish(context.Background(), event)
	require.Len(t, producer.msgs, 1)

	producer.setState(rabbitmq_common.StateConnecting)
	adapter.Publish(context.Background(), event)
	assert.Len(t, producer.msgs, 1, "event must be dropped without waiting for the reconnect")

	producer.setState(rabbitmq_common.StateConnected)
	adapter.Publish(context.Background(), event)
	assert.Len(t, producer.msgs, 2)
}
