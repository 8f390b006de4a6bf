package rabbitmq_producer

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/brunomacedo1203/taskcollab/pkg/rabbitmq/rabbitmq_common"
	"github.com/brunomacedo1203/taskcollab/pkg/rabbitmq/rabbitmqtest"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestPublisher(t *testing.T, dialer *rabbitmqtest.Dialer) *Publisher {
	t.Helper()
	p, err := NewPublisher(PublisherConfig{
		Config:                   rabbitmq_common.Config{URL: "amqp://localhost:5672"},
		ExchangeName:             "tasks.events",
		ExchangeType:             "topic",
		DurableExchange:          true,
		DeclareExchangeIfMissing: true,
		Backoff:                  rabbitmq_common.BackoffConfig{Initial: time.Millisecond, Max: time.Millisecond, Multiplier: 1.5},
		Dial:                     dialer.Dial,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = p.Close() })
	return p
}

func TestNewPublisherValidation(t *testing.T) {
	_, err := NewPublisher(PublisherConfig{Config: rabbitmq_common.Config{URL: "amqp://localhost"}, DeclareExchangeIfMissing: true})
	require.Error(t, err)

	_, err = NewPublisher(PublisherConfig{Config: rabbitmq_common.Config{URL: "amqp://localhost"}, ExchangeName: "x", DeclareExchangeIfMissing: true})
	require.Error(t, err)
}

func TestPublishConnectsLazilyAndDeclaresDurableExchange(t *testing.T) {
	dialer := &rabbitmqtest.Dialer{}
	p := newTestPublisher(t, dialer)
	assert.Equal(t, 0, dialer.Calls())

	msg := amqp.Publishing{ContentType: "application/json", DeliveryMode: amqp.Persistent, Body: []byte(`{}`)}
	require.NoError(t, p.Publish(context.Background(), "task.created", msg))

	ch := dialer.LastConnection().LastChannel()
	require.Len(t, ch.Exchanges, 1)
	assert.Equal(t, rabbitmqtest.ExchangeDeclare{Name: "tasks.events", Kind: "topic", Durable: true}, ch.Exchanges[0])

	published := ch.PublishedMessages()
	require.Len(t, published, 1)
	assert.Equal(t, "tasks.events", published[0].Exchange)
	assert.Equal(t, "task.created", published[0].RoutingKey)
	assert.Equal(t, amqp.Persistent, published[0].Msg.DeliveryMode)
}

func TestConcurrentPublishesShareOneConnection(t *testing.T) {
	gate := make(chan struct{})
	dialer := &rabbitmqtest.Dialer{Gate: gate}
	p := newTestPublisher(t, dialer)

	var wg sync.WaitGroup
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.NoError(t, p.Publish(context.Background(), "task.updated", amqp.Publishing{Body: []byte(`{}`)}))
		}()
	}
	require.Eventually(t, func() bool { return p.State() == rabbitmq_common.StateConnecting }, time.Second, time.Millisecond)
	close(gate)
	wg.Wait()

	assert.Equal(t, 1, dialer.Calls())
	assert.Len(t, dialer.LastConnection().LastChannel().PublishedMessages(), 5)
}

func TestPublishFailsWhenBrokerStaysUnavailable(t *testing.T) {
	dialer := &rabbitmqtest.Dialer{Failures: -1}
	p := newTestPublisher(t, dialer)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	err := p.Publish(ctx, "task.created", amqp.Publishing{Body: []byte(`{}`)})
	require.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestPublishAfterCloseReturnsShuttingDown(t *testing.T) {
	dialer := &rabbitmqtest.Dialer{}
	p := newTestPublisher(t, dialer)
	require.NoError(t, p.Close())

	err := p.Publish(context.Background(), "task.created", amqp.Publishing{})
	require.ErrorIs(t, err, rabbitmq_common.ErrShuttingDown)
}
