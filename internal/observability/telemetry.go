package observability

import (
	"context"
	"time"

	"github.com/annel0/mmo-gates/internal/logging"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.21.0"
	"go.opentelemetry.io/otel/trace"
)

var logger = logging.GetComponentLogger("telemetry")

// InstrumentationName имя трассировщика компонентов врат
const InstrumentationName = "github.com/annel0/mmo-gates"

// ShutdownFunc завершает работу провайдера трассировки
type ShutdownFunc func(context.Context) error

// InitTelemetry настраивает OTLP экспортер и устанавливает глобальный TracerProvider.
// Возвращает функцию shutdown, которую нужно вызвать при завершении приложения.
func InitTelemetry(ctx context.Context, serviceName string) (ShutdownFunc, error) {
	// OTLP HTTP экспортер (по умолчанию localhost:4318)
	exp, err := otlptracehttp.New(ctx)
	if err != nil {
		return nil, err
	}
	return install(ctx, serviceName, sdktrace.WithBatcher(exp))
}

// InitWithExporter устанавливает провайдер с заданным экспортером
// (например, tracetest.InMemoryExporter в тестах).
func InitWithExporter(ctx context.Context, serviceName string, exp sdktrace.SpanExporter) (ShutdownFunc, error) {
	return install(ctx, serviceName, sdktrace.WithSyncer(exp))
}

func install(ctx context.Context, serviceName string, opt sdktrace.TracerProviderOption) (ShutdownFunc, error) {
	res, err := resource.New(ctx,
		resource.WithAttributes(semconv.ServiceName(serviceName)),
	)
	if err != nil {
		return nil, err
	}

	tp := sdktrace.NewTracerProvider(opt, sdktrace.WithResource(res))
	otel.SetTracerProvider(tp)
	logger.Info("📡 OpenTelemetry инициализирован (service=%s)", serviceName)

	return func(ctx context.Context) error {
		ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		return tp.Shutdown(ctx)
	}, nil
}

// Tracer возвращает трассировщик из глобального провайдера. Без
// InitTelemetry это no-op трассировщик.
func Tracer() trace.Tracer {
	return otel.Tracer(InstrumentationName)
}
