package rabbitmq_consumer

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/brunomacedo1203/taskcollab/pkg/rabbitmq/rabbitmq_common"

	amqp "github.com/rabbitmq/amqp091-go"
)

// MessageHandler обрабатывает одно сообщение. Пакет сам решает, как делать ack/nack:
// nil - ack, ошибка - nack без повторной постановки в очередь.
type MessageHandler func(ctx context.Context, delivery amqp.Delivery) error

var ErrConsumerClosed = errors.New("consumer is closed")

// Consumer читает очередь строго последовательно: следующее сообщение канала
// не берется, пока предыдущее не подтверждено или отклонено.
type Consumer struct {
	config  ConsumerConfig
	handler MessageHandler
	manager *rabbitmq_common.ConnectionManager

	ctx    context.Context
	cancel context.CancelFunc

	mu     sync.Mutex
	closed bool
	loops  sync.WaitGroup

	Logger rabbitmq_common.Logger
}

// NewConsumer создает нового потребителя. Подключение происходит в Start.
func NewConsumer(cfg ConsumerConfig, handler MessageHandler) (*Consumer, error) {
	if handler == nil {
		return nil, fmt.Errorf("consumer: message handler is required")
	}
	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("consumer: invalid config: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	c := &Consumer{
		config:  cfg,
		handler: handler,
		ctx:     ctx,
		cancel:  cancel,
		Logger:  cfg.Logger,
	}
	if c.Logger == nil {
		c.Logger = rabbitmq_common.NewNoopLogger()
	}

	manager, err := rabbitmq_common.NewConnectionManager(rabbitmq_common.ManagerConfig{
		Config:  cfg.Config,
		Name:    "consumer",
		Backoff: cfg.Backoff,
		Setup:   c.setup,
		Dial:    cfg.Dial,
		Logger:  c.Logger,
	})
	if err != nil {
		cancel()
		return nil, fmt.Errorf("consumer: %w", err)
	}
	c.manager = manager
	return c, nil
}

// Start подключается (с ретраями) и начинает потребление. Возвращает управление,
// когда первое подключение установлено, ctx отменен или потребитель закрыт.
// Дальнейшие переподключения происходят в фоне.
func (c *Consumer) Start(ctx context.Context) error {
	if _, err := c.manager.EnsureConnected(ctx); err != nil {
		return fmt.Errorf("consumer %s: %w", c.config.ConsumerTag, err)
	}
	return nil
}

// setup вызывается менеджером на каждом новом канале.
func (c *Consumer) setup(ch rabbitmq_common.Channel) error {
	if err := declareTopology(ch, c.config, c.Logger); err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return ErrConsumerClosed
	}

	msgs, err := ch.Consume(
		c.config.QueueName,
		c.config.ConsumerTag,
		false, // auto-ack
		c.config.ExclusiveConsumer,
		false, // no-local
		false, // no-wait
		nil,   // args
	)
	if err != nil {
		return fmt.Errorf("failed to register a consumer on queue '%s': %w", c.config.QueueName, err)
	}

	c.loops.Add(1)
	go c.consumeLoop(ch, msgs)

	c.Logger.Info("[*] Waiting for messages on queue", "queue_name", c.config.QueueName)
	return nil
}

func (c *Consumer) consumeLoop(ch rabbitmq_common.Channel, msgs <-chan amqp.Delivery) {
	defer c.loops.Done()
	for {
		select {
		case <-c.ctx.Done():
			c.Logger.Info("Consumer context cancelled, exiting consumption loop", "queue_name", c.config.QueueName)
			return
		case d, ok := <-msgs:
			if !ok {
				c.Logger.Warn("Deliveries channel closed", "queue_name", c.config.QueueName)
				c.manager.ReportLost(ch, "deliveries")
				return
			}
			c.handleDelivery(d)
		}
	}
}

// handleDelivery - ack при успехе, nack(requeue=false) при ошибке обработчика или ack.
func (c *Consumer) handleDelivery(d amqp.Delivery) {
	err := c.safeHandle(d)
	if err != nil {
		c.Logger.Error(err, "Handler failed, rejecting message without requeue",
			"routing_key", d.RoutingKey,
			"delivery_tag", d.DeliveryTag,
		)
		if nackErr := d.Nack(false, false); nackErr != nil {
			c.Logger.Error(nackErr, "Failed to nack message", "delivery_tag", d.DeliveryTag)
		}
		return
	}

	if ackErr := d.Ack(false); ackErr != nil {
		c.Logger.Error(ackErr, "Failed to ack message, rejecting without requeue",
			"routing_key", d.RoutingKey,
			"delivery_tag", d.DeliveryTag,
		)
		if nackErr := d.Nack(false, false); nackErr != nil {
			c.Logger.Error(nackErr, "Failed to nack message after ack failure", "delivery_tag", d.DeliveryTag)
		}
	}
}

// safeHandle превращает панику обработчика в ошибку.
func (c *Consumer) safeHandle(d amqp.Delivery) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("handler panic: %v", r)
		}
	}()
	// Обработчик не должен обрываться при остановке потребителя.
	return c.handler(context.WithoutCancel(c.ctx), d)
}

// State - состояние соединения потребителя.
func (c *Consumer) State() rabbitmq_common.ConnectionState {
	return c.manager.State()
}

// Close дожидается текущего сообщения и закрывает канал и соединение.
func (c *Consumer) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	c.mu.Unlock()

	c.cancel()
	c.Logger.Debug("Waiting for message handlers to finish...")
	c.loops.Wait()
	c.Logger.Debug("All message handlers finished")

	err := c.manager.Close()
	c.Logger.Info("Consumer closed")
	return err
}
