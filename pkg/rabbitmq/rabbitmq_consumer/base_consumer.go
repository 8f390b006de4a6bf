package rabbitmq_consumer

import (
	"fmt"

	"github.com/brunomacedo1203/taskcollab/pkg/rabbitmq/rabbitmq_common"

	amqp "github.com/rabbitmq/amqp091-go"
)

// ConsumerConfig конфигурация для потребителя
type ConsumerConfig struct {
	rabbitmq_common.Config
	// Настройки очереди
	QueueName       string
	DurableQueue    bool
	ExclusiveQueue  bool
	AutoDeleteQueue bool
	QueueArgs       amqp.Table // Дополнительные аргументы очереди (x-message-ttl и т.п.)
	// Если задан, очередь объявляется с x-dead-letter-exchange
	DeadLetterExchange string
	// Настройки обменника
	ExchangeName    string // Обменник для привязки (если пусто, привязка не выполняется)
	ExchangeType    string
	DurableExchange bool
	DeclareExchange bool
	// Каждый ключ - отдельная привязка очереди к обменнику
	RoutingKeys []string
	BindingArgs amqp.Table
	// Настройки QoS
	PrefetchCount int // 0 - без ограничений
	// Настройки потребителя
	ConsumerTag       string // Тег потребителя (если пустой, генерируется RabbitMQ)
	ExclusiveConsumer bool

	Backoff rabbitmq_common.BackoffConfig
	Dial    rabbitmq_common.DialFunc
	Logger  rabbitmq_common.Logger
}

func (cfg ConsumerConfig) validate() error {
	if err := cfg.Config.Validate(); err != nil {
		return err
	}
	if cfg.QueueName == "" {
		return fmt.Errorf("queue name is required")
	}
	if cfg.DeclareExchange && (cfg.ExchangeName == "" || cfg.ExchangeType == "") {
		return fmt.Errorf("exchange name and type are required when DeclareExchange is true")
	}
	if cfg.ExchangeName != "" && len(cfg.RoutingKeys) == 0 {
		return fmt.Errorf("at least one routing key is required to bind queue '%s' to '%s'", cfg.QueueName, cfg.ExchangeName)
	}
	if cfg.PrefetchCount < 0 {
		return fmt.Errorf("prefetch count cannot be negative")
	}
	return nil
}

// queueArgs возвращает копию аргументов очереди с учетом dead-letter обменника
func (cfg ConsumerConfig) queueArgs() amqp.Table {
	if len(cfg.QueueArgs) == 0 && cfg.DeadLetterExchange == "" {
		return nil
	}
	args := make(amqp.Table, len(cfg.QueueArgs)+1)
	for k, v := range cfg.QueueArgs {
		args[k] = v
	}
	if cfg.DeadLetterExchange != "" {
		args["x-dead-letter-exchange"] = cfg.DeadLetterExchange
	}
	return args
}

// declareTopology объявляет обменник, очередь, привязки и QoS на свежем канале.
func declareTopology(ch rabbitmq_common.Channel, cfg ConsumerConfig, logger rabbitmq_common.Logger) error {
	if cfg.DeclareExchange {
		logger.Debug("Declaring exchange",
			"name", cfg.ExchangeName,
			"type", cfg.ExchangeType,
			"durable", cfg.DurableExchange,
		)
		err := ch.ExchangeDeclare(
			cfg.ExchangeName,
			cfg.ExchangeType,
			cfg.DurableExchange,
			false, // auto-deleted
			false, // internal
			false, // no-wait
			nil,
		)
		if err != nil {
			return fmt.Errorf("failed to declare exchange '%s': %w", cfg.ExchangeName, err)
		}
	}

	logger.Debug("Declaring queue",
		"name", cfg.QueueName,
		"durable", cfg.DurableQueue,
		"dead_letter_exchange", cfg.DeadLetterExchange,
	)
	_, err := ch.QueueDeclare(
		cfg.QueueName,
		cfg.DurableQueue,
		cfg.AutoDeleteQueue,
		cfg.ExclusiveQueue,
		false, // no-wait
		cfg.queueArgs(),
	)
	if err != nil {
		return fmt.Errorf("failed to declare queue '%s': %w", cfg.QueueName, err)
	}

	if cfg.ExchangeName != "" {
		for _, key := range cfg.RoutingKeys {
			logger.Debug("Binding queue to exchange",
				"queue_name", cfg.QueueName,
				"exchange_name", cfg.ExchangeName,
				"routing_key", key,
			)
			if err := ch.QueueBind(cfg.QueueName, key, cfg.ExchangeName, false, cfg.BindingArgs); err != nil {
				return fmt.Errorf("failed to bind queue '%s' to exchange '%s' with key '%s': %w", cfg.QueueName, cfg.ExchangeName, key, err)
			}
		}
	}

	if cfg.PrefetchCount > 0 {
		logger.Debug("Setting QoS", "prefetch_count", cfg.PrefetchCount)
		if err := ch.Qos(cfg.PrefetchCount, 0, false); err != nil {
			return fmt.Errorf("failed to set QoS: %w", err)
		}
	}

	logger.Debug("Setup complete", "queue", cfg.QueueName)
	return nil
}
