package rabbitmq_producer

import (
	"context"
	"fmt"

	"github.com/brunomacedo1203/taskcollab/pkg/rabbitmq/rabbitmq_common"

	amqp "github.com/rabbitmq/amqp091-go"
)

// PublisherConfig конфигурация для производителя
type PublisherConfig struct {
	rabbitmq_common.Config
	ExchangeName       string     // Имя обменника для публикации
	ExchangeType       string     // Тип обменника (direct, fanout, topic, headers)
	DurableExchange    bool       // Долговечность обменника
	AutoDeleteExchange bool       // Автоудаление обменника
	InternalExchange   bool       // Внутренний ли обменник
	ExchangeArgs       amqp.Table // Дополнительные аргументы для обменника

	// Объявлять ли обменник при каждом (пере)подключении
	DeclareExchangeIfMissing bool

	Backoff rabbitmq_common.BackoffConfig
	Dial    rabbitmq_common.DialFunc // nil - amqp091 по умолчанию
	Logger  rabbitmq_common.Logger
}

// Publisher публикует сообщения через собственное соединение.
// Соединение открывается лениво при первой публикации; одновременные вызовы
// ждут одну и ту же попытку подключения.
type Publisher struct {
	config  PublisherConfig
	manager *rabbitmq_common.ConnectionManager

	Logger rabbitmq_common.Logger
}

// NewPublisher создает нового производителя. Подключение к брокеру не выполняется.
func NewPublisher(cfg PublisherConfig) (*Publisher, error) {
	logger := cfg.Logger
	if logger == nil {
		logger = rabbitmq_common.NewNoopLogger()
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("producer: invalid base config: %w", err)
	}
	if cfg.DeclareExchangeIfMissing && cfg.ExchangeName == "" {
		return nil, fmt.Errorf("producer: exchange name is required when DeclareExchangeIfMissing is true")
	}
	if cfg.DeclareExchangeIfMissing && cfg.ExchangeType == "" {
		return nil, fmt.Errorf("producer: exchange type is required when DeclareExchangeIfMissing is true")
	}

	p := &Publisher{
		config: cfg,
		Logger: logger,
	}

	manager, err := rabbitmq_common.NewConnectionManager(rabbitmq_common.ManagerConfig{
		Config:  cfg.Config,
		Name:    "publisher",
		Backoff: cfg.Backoff,
		Setup:   p.setup,
		Dial:    cfg.Dial,
		Logger:  logger,
	})
	if err != nil {
		return nil, fmt.Errorf("producer: %w", err)
	}
	p.manager = manager
	return p, nil
}

// setup выполняется на каждом новом канале
func (p *Publisher) setup(ch rabbitmq_common.Channel) error {
	if !p.config.DeclareExchangeIfMissing {
		p.Logger.Debug("Assuming exchange already exists", "name", p.config.ExchangeName)
		return nil
	}

	p.Logger.Debug("Declaring exchange",
		"name", p.config.ExchangeName,
		"type", p.config.ExchangeType,
		"durable", p.config.DurableExchange,
	)
	err := ch.ExchangeDeclare(
		p.config.ExchangeName,
		p.config.ExchangeType,
		p.config.DurableExchange,
		p.config.AutoDeleteExchange,
		p.config.InternalExchange,
		false, // no-wait
		p.config.ExchangeArgs,
	)
	if err != nil {
		return fmt.Errorf("producer: failed to declare exchange '%s': %w", p.config.ExchangeName, err)
	}
	return nil
}

// Connect прогревает соединение заранее. Необязателен: Publish подключается сам.
func (p *Publisher) Connect(ctx context.Context) error {
	if _, err := p.manager.EnsureConnected(ctx); err != nil {
		return fmt.Errorf("producer: failed to connect: %w", err)
	}
	return nil
}

// Publish публикует сообщение. Ожидание канала ограничено ctx: если брокер
// недоступен дольше, сообщение не отправляется и возвращается ошибка.
func (p *Publisher) Publish(ctx context.Context, routingKey string, msg amqp.Publishing) error {
	ch, err := p.manager.EnsureConnected(ctx)
	if err != nil {
		return fmt.Errorf("producer: channel unavailable: %w", err)
	}

	err = ch.PublishWithContext(
		ctx,
		p.config.ExchangeName, // имя обменника из конфигурации (пустая строка для default exchange)
		routingKey,
		false, // mandatory
		false, // immediate
		msg,
	)
	if err != nil {
		return fmt.Errorf("producer: failed to publish message: %w", err)
	}
	return nil
}

// State - текущее состояние соединения издателя.
func (p *Publisher) State() rabbitmq_common.ConnectionState {
	return p.manager.State()
}

// Close закрывает канал и соединение производителя
func (p *Publisher) Close() error {
	p.Logger.Debug("Producer: Closing...")
	err := p.manager.Close()
	p.Logger.Info("Producer closed.")
	return err
}
