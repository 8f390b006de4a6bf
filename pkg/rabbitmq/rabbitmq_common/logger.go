package rabbitmq_common

// Logger - минимальный логгер pkg-уровня в стиле key/value.
// Сервисы подключают свой LoggerPort через мост (см. PkgLoggerBridge).
type Logger interface {
	Debug(msg string, keysAndValues ...interface{})
	Info(msg string, keysAndValues ...interface{})
	Warn(msg string, keysAndValues ...interface{})
	Error(err error, msg string, keysAndValues ...interface{})
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...interface{})        {}
func (noopLogger) Info(string, ...interface{})         {}
func (noopLogger) Warn(string, ...interface{})         {}
func (noopLogger) Error(error, string, ...interface{}) {}

// NewNoopLogger returns a logger that performs no operations.
func NewNoopLogger() Logger {
	return noopLogger{}
}

func loggerOrNoop(l Logger) Logger {
	if l == nil {
		return NewNoopLogger()
	}
	return l
}
