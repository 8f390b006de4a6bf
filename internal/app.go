package internal

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	token_adapter "github.com/brunomacedo1203/taskcollab/internal/adapters/jwt"
	logger_adapter "github.com/brunomacedo1203/taskcollab/internal/adapters/logger"
	"github.com/brunomacedo1203/taskcollab/internal/adapters/metrics"
	postgres_adapter "github.com/brunomacedo1203/taskcollab/internal/adapters/postgres"
	rabbitmq_adapter "github.com/brunomacedo1203/taskcollab/internal/adapters/rabbitmq"
	"github.com/brunomacedo1203/taskcollab/internal/adapters/realtime"
	"github.com/brunomacedo1203/taskcollab/internal/adapters/rest"
	"github.com/brunomacedo1203/taskcollab/internal/adapters/sqlite"
	"github.com/brunomacedo1203/taskcollab/internal/configs"
	"github.com/brunomacedo1203/taskcollab/internal/constants"
	"github.com/brunomacedo1203/taskcollab/internal/core/port"
	"github.com/brunomacedo1203/taskcollab/internal/core/usecase"
	fluentlogger "github.com/brunomacedo1203/taskcollab/pkg/fluent_logger"
	"github.com/brunomacedo1203/taskcollab/pkg/postgres"
	"github.com/brunomacedo1203/taskcollab/pkg/rabbitmq/rabbitmq_common"
	"github.com/brunomacedo1203/taskcollab/pkg/rabbitmq/rabbitmq_consumer"
	"github.com/brunomacedo1203/taskcollab/pkg/telemetry"

	"github.com/fluent/fluent-logger-golang/fluent"
	"github.com/google/uuid"
)

const shutdownTimeout = 10 * time.Second

// storage - репозитории выбранного драйвера и функция их закрытия.
type storage struct {
	participants  port.ParticipantRepositoryPort
	notifications port.NotificationRepositoryPort
	close         func()
}

type App struct {
	config          *configs.AppConfig
	storage         *storage
	apiServer       *rest.Server
	gateway         *realtime.Gateway
	taskEventsInput port.EventListenerPort

	logger       port.LoggerPort
	fluentClient *fluent.Fluent
	telemetry    *telemetry.Providers
}

func NewApp() (*App, error) {
	appConfig, err := configs.LoadConfig()
	if err != nil {
		return nil, fmt.Errorf("error loading application configuration: %w", err)
	}

	// --- 1. ИНИЦИАЛИЗАЦИЯ ЛОГГЕРОВ ---
	var activeLoggers []port.LoggerPort

	stdoutLogger := logger_adapter.NewSlogAdapter(logger_adapter.SlogConfig{
		Level:    parseLogLevel(appConfig.StdoutLogger.Level),
		IsJSON:   appConfig.StdoutLogger.IsJSON,
		UseColor: true,
	})
	activeLoggers = append(activeLoggers, stdoutLogger)

	var fluentClient *fluent.Fluent
	if appConfig.FluentBit.Enabled {
		fluentClient, err = fluentlogger.NewClient(fluentlogger.Config{
			Host:      appConfig.FluentBit.Host,
			Port:      appConfig.FluentBit.Port,
			TagPrefix: appConfig.AppName,
			Async:     true,
		})
		if err != nil {
			stdoutLogger.Error("Failed to create fluentbit client", err, nil)
			return nil, fmt.Errorf("failed to create fluentbit client: %w", err)
		}

		// Префикс тега уже задан в клиенте
		fluentAdapter, err := logger_adapter.NewFluentLoggerAdapter(fluentClient, "", parseLogLevel(appConfig.FluentBit.Level))
		if err != nil {
			stdoutLogger.Error("Failed to create fluentbit adapter", err, nil)
			fluentClient.Close()
			return nil, err
		}
		activeLoggers = append(activeLoggers, fluentAdapter)
	}

	multiLogger, err := logger_adapter.NewMultiLoggerAdapter(activeLoggers...)
	if err != nil {
		return nil, fmt.Errorf("failed to create multi-logger: %w", err)
	}

	// --- 2. БАЗОВЫЙ ЛОГГЕР ПРИЛОЖЕНИЯ ---
	baseLogger := multiLogger.WithFields(port.Fields{
		"service_name": appConfig.AppName,
	})

	appLogger := baseLogger.WithFields(port.Fields{"component": "app"})
	appLogger.Info("Logger system initialized", port.Fields{
		"active_loggers": len(activeLoggers), "fluent_enabled": appConfig.FluentBit.Enabled,
	})
	if appConfig.Auth.InsecureSecret {
		appLogger.Warn("JWT_ACCESS_SECRET is not set, using insecure default secret", nil)
	}

	// --- 3. ХРАНИЛИЩЕ ---
	store, err := openStorage(appConfig.Storage, appLogger)
	if err != nil {
		return nil, err
	}

	// --- 4. USE CASES ---
	tokenService, err := token_adapter.NewTokenService(appConfig.Auth.AccessSecret)
	if err != nil {
		store.close()
		return nil, fmt.Errorf("failed to create token service: %w", err)
	}

	listUnreadUC := usecase.NewListUnreadNotificationsUseCase(store.notifications)
	markReadUC := usecase.NewMarkNotificationReadUseCase(store.notifications)

	gateway := realtime.NewGateway(realtime.GatewayConfig{
		Path:           appConfig.Realtime.Path,
		AllowedOrigins: appConfig.Rest.CORSOrigins,
		ConnectRate:    appConfig.Realtime.ConnectRate,
		ConnectBurst:   appConfig.Realtime.ConnectBurst,
		BacklogSize:    constants.UnreadBacklogSize,
	}, tokenService, listUnreadUC, baseLogger)

	dispatchUC := usecase.NewDispatchTaskEventUseCase(
		usecase.NewHandleTaskCreatedUseCase(store.participants, store.notifications),
		usecase.NewHandleTaskUpdatedUseCase(store.participants, store.notifications),
		usecase.NewHandleTaskCommentCreatedUseCase(store.participants, store.notifications),
		gateway,
	)
	appLogger.Info("All use cases initialized.", nil)

	// Провайдеры ставятся до создания счетчиков и трейсера потребителя
	var otelProviders *telemetry.Providers
	if appConfig.Telemetry.Enabled {
		otelProviders, err = telemetry.Setup(telemetry.Config{
			ServiceName:    appConfig.AppName,
			Exporter:       appConfig.Telemetry.Exporter,
			ExportInterval: appConfig.Telemetry.ExportInterval,
		})
		if err != nil {
			gateway.Close()
			store.close()
			return nil, fmt.Errorf("failed to set up OpenTelemetry: %w", err)
		}
		appLogger.Info("OpenTelemetry providers installed.", port.Fields{
			"exporter": appConfig.Telemetry.Exporter,
			"interval": appConfig.Telemetry.ExportInterval.String(),
		})
	}

	eventMetrics := metrics.NewCounter()

	// --- 5. REST + WebSocket ---
	apiHandlers := rest.NewNotificationHandler(listUnreadUC, markReadUC, eventMetrics, appConfig.AppName)
	apiServer := rest.NewServer(rest.ServerConfig{
		Port:            appConfig.Rest.Port,
		WSPath:          appConfig.Realtime.Path,
		CORSOrigins:     appConfig.Rest.CORSOrigins,
		CORSCredentials: appConfig.Rest.CORSCredentials,
	}, apiHandlers, tokenService, gateway, baseLogger)
	appLogger.Info("REST API server configured.", nil)

	// --- 6. RabbitMQ ---
	rmq := appConfig.RabbitMQ
	consumerCfg := rabbitmq_consumer.ConsumerConfig{
		Config:             rabbitmq_common.Config{URL: rmq.URL},
		QueueName:          rmq.Queue,
		DurableQueue:       true,
		DeadLetterExchange: rmq.DeadLetterExchange,
		ExchangeName:       rmq.Exchange,
		ExchangeType:       constants.TasksEventsExchangeType,
		DurableExchange:    true,
		DeclareExchange:    true,
		RoutingKeys:        rmq.RoutingKeys,
		PrefetchCount:      rmq.Prefetch,
		ConsumerTag:        constants.NotificationsConsumer + "-" + uuid.NewString()[:8],
		Backoff: rabbitmq_common.BackoffConfig{
			Initial:    rmq.RetryBase,
			Max:        rmq.RetryMax,
			Multiplier: rmq.RetryMultiplier,
		},
	}

	taskEventsInput, err := rabbitmq_adapter.NewTaskEventsConsumerAdapter(consumerCfg, dispatchUC, eventMetrics, baseLogger)
	if err != nil {
		appLogger.Error("Failed to create task events consumer", err, nil)
		gateway.Close()
		store.close()
		if otelProviders != nil {
			_ = otelProviders.Shutdown(context.Background())
		}
		return nil, fmt.Errorf("failed to create task events consumer adapter: %w", err)
	}
	appLogger.Info("RabbitMQ listener initialized.", port.Fields{
		"queue":        rmq.Queue,
		"routing_keys": rmq.RoutingKeys,
		"prefetch":     rmq.Prefetch,
	})

	return &App{
		config:          appConfig,
		storage:         store,
		apiServer:       apiServer,
		gateway:         gateway,
		taskEventsInput: taskEventsInput,
		logger:          appLogger,
		fluentClient:    fluentClient,
		telemetry:       otelProviders,
	}, nil
}

func openStorage(cfg configs.StorageConfig, logger port.LoggerPort) (*storage, error) {
	switch cfg.Driver {
	case "sqlite":
		db, err := sqlite.Open(cfg.SQLitePath)
		if err != nil {
			logger.Error("Failed to open SQLite database", err, port.Fields{"path": cfg.SQLitePath})
			return nil, fmt.Errorf("failed to open sqlite storage: %w", err)
		}
		logger.Info("SQLite storage opened", port.Fields{"path": cfg.SQLitePath})
		return &storage{
			participants:  db.Participants(),
			notifications: db.Notifications(),
			close: func() {
				if err := db.Close(); err != nil {
					logger.Error("Error closing SQLite database", err, nil)
				}
			},
		}, nil

	default:
		ctx := context.Background()
		dbPool, err := postgres.NewClient(ctx, postgres.Config{DatabaseURL: cfg.DatabaseURL})
		if err != nil {
			logger.Error("Failed to connect to PostgreSQL", err, nil)
			return nil, fmt.Errorf("failed to connect to PostgreSQL: %w", err)
		}
		logger.Info("Successfully connected to PostgreSQL pool!", nil)

		if err := postgres_adapter.EnsureSchema(ctx, dbPool); err != nil {
			dbPool.Close()
			return nil, err
		}

		participants, err := postgres_adapter.NewParticipantRepository(dbPool)
		if err != nil {
			dbPool.Close()
			return nil, fmt.Errorf("failed to create participants repository: %w", err)
		}
		notifications, err := postgres_adapter.NewNotificationRepository(dbPool)
		if err != nil {
			dbPool.Close()
			return nil, fmt.Errorf("failed to create notifications repository: %w", err)
		}
		return &storage{
			participants:  participants,
			notifications: notifications,
			close: func() {
				dbPool.Close()
				logger.Info("PostgreSQL pool closed.", nil)
			},
		}, nil
	}
}

func (a *App) Run() error {
	appCtx, cancelApp := context.WithCancel(context.Background())
	defer cancelApp()

	defer func() {
		a.logger.Info("Shutdown sequence initiated...", nil)

		// Сначала перестаем брать сообщения: текущее будет обработано до конца
		if err := a.taskEventsInput.Close(); err != nil {
			a.logger.Error("Error closing task events listener", err, nil)
		}

		a.gateway.Close()

		stopCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := a.apiServer.Stop(stopCtx); err != nil {
			a.logger.Error("Error during API server shutdown", err, nil)
		}

		a.storage.close()

		if a.telemetry != nil {
			otelCtx, otelCancel := context.WithTimeout(context.Background(), shutdownTimeout)
			if err := a.telemetry.Shutdown(otelCtx); err != nil {
				a.logger.Error("Error shutting down OpenTelemetry providers", err, nil)
			}
			otelCancel()
		}

		a.logger.Info("Application shut down gracefully.", nil)
		if a.fluentClient != nil {
			if err := a.fluentClient.Close(); err != nil {
				fmt.Printf("ERROR: Error closing fluent client: %v\n", err)
			}
		}
	}()

	a.logger.Info("Application is starting...", nil)

	errorsCh := make(chan error, 2)

	go func() {
		if err := a.apiServer.Start(); err != nil && err != http.ErrServerClosed {
			errorsCh <- fmt.Errorf("HTTP server start error: %w", err)
		}
	}()

	go func() {
		listenerLogger := a.logger.WithFields(port.Fields{"listener": "Task Events Listener"})
		listenerLogger.Info("Starting listener...", nil)
		// Start возвращается после первого подключения; переподключения идут в фоне
		if err := a.taskEventsInput.Start(appCtx); err != nil && appCtx.Err() == nil {
			listenerLogger.Error("Listener failed to start", err, nil)
			errorsCh <- fmt.Errorf("task events listener error: %w", err)
			return
		}
		listenerLogger.Info("Listener connected.", nil)
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	a.logger.Info("Application running. Waiting for signals or component error...", nil)
	var runErr error
	select {
	case receivedSignal := <-quit:
		a.logger.Warn("Received OS signal, shutting down...", port.Fields{"signal": receivedSignal.String()})
	case err := <-errorsCh:
		a.logger.Error("A critical component failed, shutting down", err, nil)
		runErr = err
	}

	cancelApp()
	return runErr
}

func parseLogLevel(levelStr string) slog.Level {
	switch strings.ToLower(levelStr) {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		log.Printf("Warning: Unknown log level '%s'. Defaulting to 'info'.", levelStr)
		return slog.LevelInfo
	}
}
