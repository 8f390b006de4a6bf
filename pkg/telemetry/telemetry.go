package telemetry

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/stdout/stdoutmetric"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

const (
	ExporterStdout = "stdout"
	ExporterNone   = "none"
)

// Config хранит конфигурацию OpenTelemetry.
type Config struct {
	ServiceName    string
	Exporter       string        // stdout | none
	ExportInterval time.Duration // период выгрузки метрик
	Writer         io.Writer     // nil - os.Stdout
}

// Providers - установленные глобально MeterProvider и TracerProvider.
type Providers struct {
	MeterProvider  *sdkmetric.MeterProvider
	TracerProvider *sdktrace.TracerProvider
}

// Setup создает SDK-провайдеры метрик и трассировки и регистрирует их глобально,
// так что otel.Meter и otel.Tracer начинают отдавать данные в экспортер.
func Setup(cfg Config) (*Providers, error) {
	if cfg.ServiceName == "" {
		return nil, fmt.Errorf("telemetry: service name is required")
	}

	res := resource.NewSchemaless(attribute.String("service.name", cfg.ServiceName))

	meterOpts := []sdkmetric.Option{sdkmetric.WithResource(res)}
	tracerOpts := []sdktrace.TracerProviderOption{sdktrace.WithResource(res)}

	switch cfg.Exporter {
	case ExporterStdout:
		w := cfg.Writer
		if w == nil {
			w = os.Stdout
		}
		metricExporter, err := stdoutmetric.New(stdoutmetric.WithWriter(w))
		if err != nil {
			return nil, fmt.Errorf("telemetry: failed to create metric exporter: %w", err)
		}
		traceExporter, err := stdouttrace.New(stdouttrace.WithWriter(w))
		if err != nil {
			return nil, fmt.Errorf("telemetry: failed to create trace exporter: %w", err)
		}

		interval := cfg.ExportInterval
		if interval <= 0 {
			interval = time.Minute
		}
		meterOpts = append(meterOpts, sdkmetric.WithReader(
			sdkmetric.NewPeriodicReader(metricExporter, sdkmetric.WithInterval(interval)),
		))
		tracerOpts = append(tracerOpts, sdktrace.WithBatcher(traceExporter))
	case ExporterNone, "":
		// Провайдеры без экспортера: инструменты работают, данные никуда не уходят
	default:
		return nil, fmt.Errorf("telemetry: unknown exporter %q", cfg.Exporter)
	}

	p := &Providers{
		MeterProvider:  sdkmetric.NewMeterProvider(meterOpts...),
		TracerProvider: sdktrace.NewTracerProvider(tracerOpts...),
	}
	otel.SetMeterProvider(p.MeterProvider)
	otel.SetTracerProvider(p.TracerProvider)
	return p, nil
}

// Shutdown выгружает накопленные данные и останавливает оба провайдера.
func (p *Providers) Shutdown(ctx context.Context) error {
	return errors.Join(
		p.TracerProvider.Shutdown(ctx),
		p.MeterProvider.Shutdown(ctx),
	)
}
