package configs

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// missingEnv указывает на несуществующий .env: загрузка должна идти только из окружения.
func missingEnv(t *testing.T) string {
	return filepath.Join(t.TempDir(), "absent.env")
}

func TestLoadConfigDefaults(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://u:p@localhost:5432/db")
	for _, key := range []string{"JWT_ACCESS_SECRET", "JWT_SECRET", "TASKS_EVENTS_ROUTING", "CORS_ORIGIN", "STORAGE_DRIVER",
		"OTEL_ENABLED", "OTEL_EXPORTER", "OTEL_EXPORT_INTERVAL_MS"} {
		t.Setenv(key, "")
	}

	cfg, err := LoadConfig(missingEnv(t))
	require.NoError(t, err)

	assert.Equal(t, "notifications-service", cfg.AppName)
	assert.Equal(t, "amqp://localhost:5672", cfg.RabbitMQ.URL)
	assert.Equal(t, "tasks.events", cfg.RabbitMQ.Exchange)
	assert.Equal(t, "notifications.q", cfg.RabbitMQ.Queue)
	assert.Equal(t, []string{"task.#"}, cfg.RabbitMQ.RoutingKeys)
	assert.Equal(t, 10, cfg.RabbitMQ.Prefetch)
	assert.Equal(t, 500*time.Millisecond, cfg.RabbitMQ.RetryBase)
	assert.Equal(t, 10*time.Second, cfg.RabbitMQ.RetryMax)
	assert.Equal(t, 1.5, cfg.RabbitMQ.RetryMultiplier)
	assert.Equal(t, 5*time.Second, cfg.RabbitMQ.PublishTimeout)
	assert.Equal(t, "3004", cfg.Rest.Port)
	assert.Equal(t, []string{"*"}, cfg.Rest.CORSOrigins)
	assert.Equal(t, "/ws", cfg.Realtime.Path)
	assert.Equal(t, "postgres", cfg.Storage.Driver)
	assert.True(t, cfg.Auth.InsecureSecret)
	assert.Equal(t, insecureDefaultSecret, cfg.Auth.AccessSecret)
	assert.False(t, cfg.FluentBit.Enabled)
	assert.False(t, cfg.Telemetry.Enabled)
	assert.Equal(t, "stdout", cfg.Telemetry.Exporter)
	assert.Equal(t, time.Minute, cfg.Telemetry.ExportInterval)
}

func TestLoadConfigOverrides(t *testing.T) {
	t.Setenv("STORAGE_DRIVER", "SQLite")
	t.Setenv("SQLITE_PATH", "/tmp/n.db")
	t.Setenv("TASKS_EVENTS_ROUTING", "task.created, task.updated,,")
	t.Setenv("NOTIFICATIONS_DLX", "notifications.dlx")
	t.Setenv("RABBITMQ_PREFETCH", "not-a-number")
	t.Setenv("CORS_ORIGIN", "http://a.local,http://b.local")
	t.Setenv("CORS_CREDENTIALS", "true")
	t.Setenv("JWT_ACCESS_SECRET", "")
	t.Setenv("JWT_SECRET", "fallback-secret")
	t.Setenv("OTEL_ENABLED", "true")
	t.Setenv("OTEL_EXPORTER", "None")
	t.Setenv("OTEL_EXPORT_INTERVAL_MS", "1500")

	cfg, err := LoadConfig(missingEnv(t))
	require.NoError(t, err)

	assert.Equal(t, "sqlite", cfg.Storage.Driver)
	assert.Equal(t, "/tmp/n.db", cfg.Storage.SQLitePath)
	assert.Equal(t, []string{"task.created", "task.updated"}, cfg.RabbitMQ.RoutingKeys)
	assert.Equal(t, "notifications.dlx", cfg.RabbitMQ.DeadLetterExchange)
	assert.Equal(t, 10, cfg.RabbitMQ.Prefetch)
	assert.Equal(t, []string{"http://a.local", "http://b.local"}, cfg.Rest.CORSOrigins)
	assert.True(t, cfg.Rest.CORSCredentials)
	assert.Equal(t, "fallback-secret", cfg.Auth.AccessSecret)
	assert.False(t, cfg.Auth.InsecureSecret)
	assert.True(t, cfg.Telemetry.Enabled)
	assert.Equal(t, "none", cfg.Telemetry.Exporter)
	assert.Equal(t, 1500*time.Millisecond, cfg.Telemetry.ExportInterval)
}

func TestLoadConfigRequiresDatabaseURLForPostgres(t *testing.T) {
	t.Setenv("STORAGE_DRIVER", "postgres")
	t.Setenv("DATABASE_URL", "")

	_, err := LoadConfig(missingEnv(t))
	require.Error(t, err)
}

func TestLoadConfigRejectsUnknownDriver(t *testing.T) {
	t.Setenv("STORAGE_DRIVER", "mongo")

	_, err := LoadConfig(missingEnv(t))
	require.Error(t, err)
}

func TestLoadConfigReadsDotEnvFile(t *testing.T) {
	t.Setenv("STORAGE_DRIVER", "")
	t.Setenv("DATABASE_URL", "")
	os.Unsetenv("DATABASE_URL")
	os.Unsetenv("APP_NAME")
	t.Cleanup(func() {
		os.Unsetenv("DATABASE_URL")
		os.Unsetenv("APP_NAME")
	})

	path := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(path, []byte("DATABASE_URL=postgres://from-file\nAPP_NAME=notif-test\n"), 0o600))

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, "postgres://from-file", cfg.Storage.DatabaseURL)
	assert.Equal(t, "notif-test", cfg.AppName)
}
