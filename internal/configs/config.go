package configs

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const insecureDefaultSecret = "change-me-access"

// RabbitMQConfig хранит конфигурацию для RabbitMQ
type RabbitMQConfig struct {
	URL                string
	Exchange           string
	Queue              string
	RoutingKeys        []string
	DeadLetterExchange string
	Prefetch           int
	RetryBase          time.Duration
	RetryMax           time.Duration
	RetryMultiplier    float64
	PublishTimeout     time.Duration
}

type RESTConfig struct {
	Port            string
	CORSOrigins     []string
	CORSCredentials bool
}

type RealtimeConfig struct {
	Path         string
	ConnectRate  float64
	ConnectBurst int
}

type AuthConfig struct {
	AccessSecret string
	// true, если секрет не задан и используется значение по умолчанию
	InsecureSecret bool
}

type StorageConfig struct {
	Driver      string // postgres | sqlite
	DatabaseURL string
	SQLitePath  string
}

type StdoutLogConfig struct {
	Level  string
	IsJSON bool
}

type FluentBitConfig struct {
	Host    string
	Port    int
	Enabled bool
	Level   string
}

type TelemetryConfig struct {
	Enabled        bool
	Exporter       string // stdout | none
	ExportInterval time.Duration
}

// AppConfig хранит всю конфигурацию приложения
type AppConfig struct {
	AppName      string
	RabbitMQ     RabbitMQConfig
	Rest         RESTConfig
	Realtime     RealtimeConfig
	Auth         AuthConfig
	Storage      StorageConfig
	FluentBit    FluentBitConfig
	StdoutLogger StdoutLogConfig
	Telemetry    TelemetryConfig
}

// LoadConfig загружает конфигурацию из .env (если он есть) и переменных окружения
func LoadConfig(envPath ...string) (*AppConfig, error) {
	var err error
	if len(envPath) > 0 {
		err = godotenv.Load(envPath[0])
	} else {
		err = godotenv.Load()
	}
	if err != nil {
		log.Printf("Info: Could not load .env file (path: %v): %v. Using environment only.\n", envPath, err)
	}

	cfg := &AppConfig{}
	cfg.AppName = getEnvAsString("APP_NAME", "notifications-service")

	cfg.RabbitMQ = loadRabbitMQ()

	cfg.Rest.Port = getEnvAsString("PORT", "3004")
	cfg.Rest.CORSOrigins = getEnvAsList("CORS_ORIGIN", []string{"*"})
	cfg.Rest.CORSCredentials = getEnvAsBool("CORS_CREDENTIALS", false)

	cfg.Realtime.Path = getEnvAsString("WS_PATH", "/ws")
	cfg.Realtime.ConnectRate = getEnvAsFloat("WS_CONNECT_RATE", 50)
	cfg.Realtime.ConnectBurst = getEnvAsInt("WS_CONNECT_BURST", 100)

	cfg.Auth = loadAuth()

	cfg.Storage.Driver = strings.ToLower(getEnvAsString("STORAGE_DRIVER", "postgres"))
	switch cfg.Storage.Driver {
	case "postgres":
		cfg.Storage.DatabaseURL = os.Getenv("DATABASE_URL")
		if cfg.Storage.DatabaseURL == "" {
			return nil, fmt.Errorf("DATABASE_URL environment variable is required when STORAGE_DRIVER=postgres")
		}
	case "sqlite":
		cfg.Storage.SQLitePath = getEnvAsString("SQLITE_PATH", "notifications.db")
	default:
		return nil, fmt.Errorf("unsupported STORAGE_DRIVER %q (expected postgres or sqlite)", cfg.Storage.Driver)
	}

	cfg.FluentBit.Enabled = getEnvAsBool("FLUENTBIT_ENABLED", false)
	if cfg.FluentBit.Enabled {
		cfg.FluentBit.Host = os.Getenv("FLUENTBIT_HOST")
		if cfg.FluentBit.Host == "" {
			log.Println("WARNING: FLUENTBIT_ENABLED is true, but FLUENTBIT_HOST is not set. Disabling Fluent Bit.")
			cfg.FluentBit.Enabled = false
		}
		cfg.FluentBit.Port = getEnvAsInt("FLUENTBIT_PORT", 24224)
		cfg.FluentBit.Level = getEnvAsString("FLUENTBIT_LOG_LEVEL", "info")
	}

	cfg.StdoutLogger.Level = getEnvAsString("STDOUT_LOG_LEVEL", "debug")
	cfg.StdoutLogger.IsJSON = getEnvAsBool("STDOUT_LOG_JSON", false)

	cfg.Telemetry.Enabled = getEnvAsBool("OTEL_ENABLED", false)
	cfg.Telemetry.Exporter = strings.ToLower(getEnvAsString("OTEL_EXPORTER", "stdout"))
	cfg.Telemetry.ExportInterval = time.Duration(getEnvAsInt("OTEL_EXPORT_INTERVAL_MS", 60000)) * time.Millisecond

	return cfg, nil
}

func loadRabbitMQ() RabbitMQConfig {
	return RabbitMQConfig{
		URL:                getEnvAsString("RABBITMQ_URL", "amqp://localhost:5672"),
		Exchange:           getEnvAsString("TASKS_EVENTS_EXCHANGE", "tasks.events"),
		Queue:              getEnvAsString("NOTIFICATIONS_QUEUE", "notifications.q"),
		RoutingKeys:        getEnvAsList("TASKS_EVENTS_ROUTING", []string{"task.#"}),
		DeadLetterExchange: getEnvAsString("NOTIFICATIONS_DLX", ""),
		Prefetch:           getEnvAsInt("RABBITMQ_PREFETCH", 10),
		RetryBase:          time.Duration(getEnvAsInt("RABBITMQ_RETRY_BASE_MS", 500)) * time.Millisecond,
		RetryMax:           time.Duration(getEnvAsInt("RABBITMQ_RETRY_MAX_MS", 10000)) * time.Millisecond,
		RetryMultiplier:    getEnvAsFloat("RABBITMQ_RETRY_MULTIPLIER", 1.5),
		PublishTimeout:     time.Duration(getEnvAsInt("PUBLISH_TIMEOUT_MS", 5000)) * time.Millisecond,
	}
}

// loadAuth: JWT_ACCESS_SECRET, затем JWT_SECRET, затем небезопасное значение по умолчанию.
func loadAuth() AuthConfig {
	secret := os.Getenv("JWT_ACCESS_SECRET")
	if secret == "" {
		secret = os.Getenv("JWT_SECRET")
	}
	if secret == "" {
		return AuthConfig{AccessSecret: insecureDefaultSecret, InsecureSecret: true}
	}
	return AuthConfig{AccessSecret: secret}
}

// LoadPublisherConfig - то, что нужно CLI taskevents: брокер и секрет JWT.
func LoadPublisherConfig() (RabbitMQConfig, AuthConfig) {
	if err := godotenv.Load(); err != nil {
		log.Printf("Info: Could not load .env file: %v. Using environment only.\n", err)
	}
	return loadRabbitMQ(), loadAuth()
}

func getEnvAsString(key string, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists && value != "" {
		return value
	}
	return defaultValue
}

// getEnvAsInt читает переменную окружения как int или возвращает значение по умолчанию
// Логирует ошибку, если переменная есть, но не может быть преобразована в int
func getEnvAsInt(key string, defaultValue int) int {
	valueStr, exists := os.LookupEnv(key)
	if !exists || valueStr == "" {
		return defaultValue
	}

	valueInt, err := strconv.Atoi(valueStr)
	if err != nil {
		log.Printf("Warning: Environment variable %s (value: %s) could not be parsed as int: %v. Using default value: %d\n", key, valueStr, err, defaultValue)
		return defaultValue
	}
	return valueInt
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	valueStr, exists := os.LookupEnv(key)
	if !exists || valueStr == "" {
		return defaultValue
	}

	value, err := strconv.ParseFloat(valueStr, 64)
	if err != nil {
		log.Printf("Warning: Environment variable %s (value: %s) could not be parsed as float: %v. Using default value: %g\n", key, valueStr, err, defaultValue)
		return defaultValue
	}
	return value
}

// getEnvAsBool читает переменную окружения как bool или возвращает значение по умолчанию
func getEnvAsBool(key string, defaultValue bool) bool {
	valStr, exists := os.LookupEnv(key)
	if !exists || valStr == "" {
		return defaultValue
	}
	valBool, err := strconv.ParseBool(valStr)
	if err != nil {
		log.Printf("Warning: Environment variable %s (value: %s) could not be parsed as bool: %v. Using default value: %t\n", key, valStr, err, defaultValue)
		return defaultValue
	}
	return valBool
}

// getEnvAsList разбирает список через запятую, пустые элементы отбрасываются
func getEnvAsList(key string, defaultValue []string) []string {
	valStr, exists := os.LookupEnv(key)
	if !exists {
		return defaultValue
	}
	var out []string
	for _, item := range strings.Split(valStr, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	if len(out) == 0 {
		return defaultValue
	}
	return out
}
