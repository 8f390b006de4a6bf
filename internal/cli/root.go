package cli

import (
	"io"
	"log/slog"

	logger_adapter "github.com/brunomacedo1203/taskcollab/internal/adapters/logger"
	rabbitmq_adapter "github.com/brunomacedo1203/taskcollab/internal/adapters/rabbitmq"
	"github.com/brunomacedo1203/taskcollab/internal/configs"
	"github.com/brunomacedo1203/taskcollab/internal/constants"
	"github.com/brunomacedo1203/taskcollab/internal/core/port"
	"github.com/brunomacedo1203/taskcollab/pkg/rabbitmq/rabbitmq_common"
	"github.com/brunomacedo1203/taskcollab/pkg/rabbitmq/rabbitmq_producer"

	"github.com/spf13/cobra"
)

var version = "dev"

// PublisherFactory создает издателя событий для заданной конфигурации брокера.
type PublisherFactory func(cfg configs.RabbitMQConfig, logger port.LoggerPort) (port.TaskEventPublisherPort, error)

type options struct {
	rabbitMQ     configs.RabbitMQConfig
	auth         configs.AuthConfig
	verbose      bool
	newPublisher PublisherFactory
}

// NewRootCmd - корневая команда taskevents.
func NewRootCmd() *cobra.Command {
	return newRootCmd(newRabbitPublisher)
}

func newRootCmd(factory PublisherFactory) *cobra.Command {
	opts := &options{newPublisher: factory}
	opts.rabbitMQ, opts.auth = configs.LoadPublisherConfig()

	rootCmd := &cobra.Command{
		Use:           "taskevents",
		Short:         "Producer-side tools for the task events pipeline",
		Long:          `taskevents publishes task events to the tasks exchange and issues access tokens signed with the shared secret.`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	flags := rootCmd.PersistentFlags()
	flags.StringVar(&opts.rabbitMQ.URL, "rabbitmq-url", opts.rabbitMQ.URL, "RabbitMQ URL (RABBITMQ_URL)")
	flags.StringVar(&opts.rabbitMQ.Exchange, "exchange", opts.rabbitMQ.Exchange, "Topic exchange for task events (TASKS_EVENTS_EXCHANGE)")
	flags.StringVar(&opts.auth.AccessSecret, "secret", opts.auth.AccessSecret, "JWT signing secret (JWT_ACCESS_SECRET)")
	flags.BoolVarP(&opts.verbose, "verbose", "v", false, "Debug logging to stderr")

	rootCmd.AddCommand(
		newPublishCmd(opts),
		newTokenCmd(opts),
	)
	return rootCmd
}

func (o *options) logger(w io.Writer) port.LoggerPort {
	level := slog.LevelInfo
	if o.verbose {
		level = slog.LevelDebug
	}
	return logger_adapter.NewSlogAdapter(logger_adapter.SlogConfig{Writer: w, Level: level, UseColor: true}).
		WithFields(port.Fields{"service_name": "taskevents"})
}

func newRabbitPublisher(cfg configs.RabbitMQConfig, logger port.LoggerPort) (port.TaskEventPublisherPort, error) {
	producer, err := rabbitmq_producer.NewPublisher(rabbitmq_producer.PublisherConfig{
		Config:                   rabbitmq_common.Config{URL: cfg.URL},
		ExchangeName:             cfg.Exchange,
		ExchangeType:             constants.TasksEventsExchangeType,
		DurableExchange:          true,
		DeclareExchangeIfMissing: true,
		Backoff: rabbitmq_common.BackoffConfig{
			Initial:    cfg.RetryBase,
			Max:        cfg.RetryMax,
			Multiplier: cfg.RetryMultiplier,
		},
		Logger: rabbitmq_adapter.NewPkgLoggerBridge(logger.WithFields(port.Fields{"component": "rabbitmq_producer"})),
	})
	if err != nil {
		return nil, err
	}
	return rabbitmq_adapter.NewTaskEventsPublisherAdapter(producer, cfg.PublishTimeout)
}
