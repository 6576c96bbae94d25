// Package telemetry installs the process-wide OpenTelemetry tracer
// provider that every package's package-level otel.Tracer(...) call
// (pipeline, and any future instrumented package) resolves against.
// Without it, those calls silently bind to the otel API's no-op
// provider and spans are discarded.
package telemetry

import (
	"context"

	"go.opentelemetry.io/otel"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"

	sdkresource "go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

// ProviderConfig names the service reported on every emitted span.
// Exporter may be nil, in which case spans are recorded (and sampled)
// but never shipped anywhere — useful for local development or tests
// that only care whether the SDK is wired, not where spans land.
type ProviderConfig struct {
	ServiceName    string
	ServiceVersion string
	Exporter       sdktrace.SpanExporter
}

// InitTracerProvider builds and installs a TracerProvider as the global
// otel provider, per spec.md §5's tracing of request stages. Call it once
// at process start, before any Controller.Ask runs; the returned shutdown
// flushes pending spans and releases the exporter.
func InitTracerProvider(ctx context.Context, cfg ProviderConfig) (shutdown func(context.Context) error, err error) {
	if cfg.ServiceName == "" {
		cfg.ServiceName = "coreqa"
	}

	res, err := sdkresource.Merge(
		sdkresource.Default(),
		sdkresource.NewWithAttributes(
			semconv.SchemaURL,
			semconv.ServiceName(cfg.ServiceName),
			semconv.ServiceVersion(cfg.ServiceVersion),
		),
	)
	if err != nil {
		return nil, err
	}

	opts := []sdktrace.TracerProviderOption{sdktrace.WithResource(res)}
	if cfg.Exporter != nil {
		opts = append(opts, sdktrace.WithBatcher(cfg.Exporter))
	}

	tp := sdktrace.NewTracerProvider(opts...)
	otel.SetTracerProvider(tp)
	return tp.Shutdown, nil
}
