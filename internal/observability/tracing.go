// Package observability provides OpenTelemetry integration for distributed tracing.
//
// Traces are exported over OTLP HTTP to whatever collector the
// OTEL_EXPORTER_OTLP_ENDPOINT variable points at (an OpenTelemetry
// Collector, a Datadog Agent with OTLP ingestion enabled, Jaeger, ...).
// When no endpoint is configured, tracing is a no-op.
package observability

import (
	"context"
	"fmt"
	"log/slog"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.37.0"
)

// Config for trace export.
type Config struct {
	// Endpoint is the OTLP HTTP collector endpoint (host:port).
	// Empty disables tracing.
	Endpoint string
	// ServiceName is the service name attached to every span.
	ServiceName string
	// Version is the service version attached to the trace resource.
	Version string
}

// Setup installs a global TracerProvider exporting to cfg.Endpoint.
//
// Returns a shutdown function that flushes pending spans. The returned
// function is always safe to call, including when tracing is disabled.
func Setup(ctx context.Context, cfg Config, logger *slog.Logger) (func(context.Context) error, error) {
	noop := func(context.Context) error { return nil }

	if cfg.Endpoint == "" {
		logger.Debug("tracing disabled, no OTLP endpoint configured")
		return noop, nil
	}

	exporter, err := otlptracehttp.New(ctx,
		otlptracehttp.WithEndpoint(cfg.Endpoint),
		otlptracehttp.WithInsecure(), // local collectors don't terminate TLS
	)
	if err != nil {
		return noop, fmt.Errorf("creating OTLP exporter: %w", err)
	}

	res, err := resource.Merge(resource.Default(), resource.NewWithAttributes(
		semconv.SchemaURL,
		semconv.ServiceName(cfg.ServiceName),
		semconv.ServiceVersion(cfg.Version),
	))
	if err != nil {
		return noop, fmt.Errorf("building trace resource: %w", err)
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
	)
	otel.SetTracerProvider(tp)

	logger.Debug("tracing enabled",
		"endpoint", cfg.Endpoint,
		"service", cfg.ServiceName,
	)

	return tp.Shutdown, nil
}
