// Package tracing wires OpenTelemetry for request and inference spans.
package tracing

import (
	"context"
	"errors"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
)

// ServiceName is reported as service.name on every span.
const ServiceName = "schedchat"

// APIKeyHeader carries the tracing API key on OTLP export requests.
const APIKeyHeader = "x-api-key"

// Config holds exporter settings.
type Config struct {
	APIKey   string
	Endpoint string // full OTLP/HTTP URL; empty uses the OTEL_* environment defaults
	Project  string
}

// Setup installs a global tracer provider that batches spans to an OTLP/HTTP
// collector. The returned function flushes and stops the provider.
func Setup(ctx context.Context, cfg Config) (func(context.Context) error, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("tracing API key is empty")
	}

	opts := []otlptracehttp.Option{
		otlptracehttp.WithHeaders(map[string]string{APIKeyHeader: cfg.APIKey}),
	}
	if cfg.Endpoint != "" {
		opts = append(opts, otlptracehttp.WithEndpointURL(cfg.Endpoint))
	}

	exporter, err := otlptracehttp.New(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("creating OTLP exporter: %w", err)
	}

	attrs := []attribute.KeyValue{attribute.String("service.name", ServiceName)}
	if cfg.Project != "" {
		attrs = append(attrs, attribute.String("schedchat.project", cfg.Project))
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(resource.NewWithAttributes("", attrs...)),
	)
	otel.SetTracerProvider(tp)
	return tp.Shutdown, nil
}

// Tracer returns a tracer from the global provider. Before Setup it is a no-op.
func Tracer(name string) trace.Tracer {
	return otel.Tracer(name)
}
