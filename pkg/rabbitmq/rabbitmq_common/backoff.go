package rabbitmq_common

import "time"

const (
	DefaultBackoffInitial    = 500 * time.Millisecond
	DefaultBackoffMax        = 10 * time.Second
	DefaultBackoffMultiplier = 1.5
)

// BackoffConfig задает экспоненциальную задержку между попытками подключения.
type BackoffConfig struct {
	Initial    time.Duration
	Max        time.Duration
	Multiplier float64
}

// DefaultBackoff возвращает 500ms -> x1.5 -> потолок 10s.
func DefaultBackoff() BackoffConfig {
	return BackoffConfig{
		Initial:    DefaultBackoffInitial,
		Max:        DefaultBackoffMax,
		Multiplier: DefaultBackoffMultiplier,
	}
}

// withDefaults подставляет значения по умолчанию вместо нулевых
func (b BackoffConfig) withDefaults() BackoffConfig {
	if b.Initial <= 0 {
		b.Initial = DefaultBackoffInitial
	}
	if b.Max <= 0 {
		b.Max = DefaultBackoffMax
	}
	if b.Max < b.Initial {
		b.Max = b.Initial
	}
	if b.Multiplier < 1 {
		b.Multiplier = DefaultBackoffMultiplier
	}
	return b
}

// Next возвращает следующую задержку: min(Max, floor(current * Multiplier)).
func (b BackoffConfig) Next(current time.Duration) time.Duration {
	b = b.withDefaults()
	next := time.Duration(float64(current) * b.Multiplier)
	if next > b.Max {
		return b.Max
	}
	return next
}
