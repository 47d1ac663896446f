// Package telemetry exports traces to an OTLP/HTTP collector. Disabled
// by default; the daemon runs fine without a collector.
package telemetry

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"
)

const defaultServiceName = "ccontrol"

// Config holds the trace export settings.
type Config struct {
	// Endpoint is the OTLP/HTTP collector address, host:port.
	Endpoint string

	// ServiceName sets the service.name resource attribute.
	// Defaults to "ccontrol".
	ServiceName string

	// ServiceVersion sets the service.version resource attribute.
	ServiceVersion string

	// SampleRatio is the head sampling ratio. Values outside (0, 1]
	// fall back to 1 (sample everything).
	SampleRatio float64

	// Insecure disables TLS to the collector. Required for a plain
	// HTTP collector such as a local otel-collector on 4318.
	Insecure bool
}

// Provider owns the tracer provider and its exporter.
type Provider struct {
	tp     *sdktrace.TracerProvider
	logger *slog.Logger
}

// NewProvider builds an OTLP/HTTP exporter and installs a sampling
// tracer provider as the process global. The exporter does not dial
// until the first batch is flushed, so construction succeeds even when
// the collector is down.
func NewProvider(ctx context.Context, cfg Config, logger *slog.Logger) (*Provider, error) {
	if cfg.Endpoint == "" {
		return nil, errors.New("telemetry: endpoint required")
	}
	if logger == nil {
		logger = slog.Default()
	}

	name := cfg.ServiceName
	if name == "" {
		name = defaultServiceName
	}
	ratio := normalizeRatio(cfg.SampleRatio)

	opts := []otlptracehttp.Option{otlptracehttp.WithEndpoint(cfg.Endpoint)}
	if cfg.Insecure {
		opts = append(opts, otlptracehttp.WithInsecure())
	}
	exporter, err := otlptracehttp.New(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("telemetry: creating OTLP exporter: %w", err)
	}

	res, err := resource.Merge(resource.Default(), resource.NewWithAttributes(
		semconv.SchemaURL,
		semconv.ServiceName(name),
		semconv.ServiceVersion(cfg.ServiceVersion),
	))
	if err != nil {
		return nil, fmt.Errorf("telemetry: building resource: %w", err)
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sdktrace.ParentBased(sdktrace.TraceIDRatioBased(ratio))),
	)

	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	logger.Info("telemetry: trace export enabled",
		"endpoint", cfg.Endpoint,
		"service", name,
		"sample_ratio", ratio,
	)
	return &Provider{tp: tp, logger: logger}, nil
}

// Tracer returns a named tracer from the provider.
func (p *Provider) Tracer(name string) trace.Tracer {
	return p.tp.Tracer(name)
}

// Shutdown flushes pending spans and stops the exporter.
func (p *Provider) Shutdown(ctx context.Context) error {
	if err := p.tp.Shutdown(ctx); err != nil {
		return fmt.Errorf("telemetry: shutdown: %w", err)
	}
	return nil
}

func normalizeRatio(r float64) float64 {
	if r <= 0 || r > 1 {
		return 1
	}
	return r
}
