// Package telemetry configures the OpenTelemetry trace pipeline the
// orchestrator's tracers (archon.orchestrator, archon.assistant.*) export
// into, grounded on the teacher's OTLP span-processor setup.
package telemetry

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/sdk/resource"
	"go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
)

// Config mirrors config.TelemetryConfig without importing internal/config,
// keeping this package usable from tests without a config dependency.
type Config struct {
	Enabled     bool
	Endpoint    string
	ServiceName string
}

// Setup configures the global TracerProvider against an OTLP/gRPC
// collector endpoint. Callers must invoke the returned shutdown func
// before process exit to flush pending spans. A disabled config returns
// a no-op shutdown.
func Setup(ctx context.Context, cfg Config) (shutdown func(context.Context) error, err error) {
	if !cfg.Enabled {
		return func(context.Context) error { return nil }, nil
	}

	exporter, err := otlptracegrpc.New(ctx,
		otlptracegrpc.WithEndpoint(cfg.Endpoint),
		otlptracegrpc.WithInsecure(),
	)
	if err != nil {
		return nil, fmt.Errorf("telemetry: create OTLP exporter: %w", err)
	}

	serviceName := cfg.ServiceName
	if serviceName == "" {
		serviceName = "archon"
	}
	res, err := resource.Merge(
		resource.Default(),
		resource.NewWithAttributes(semconv.SchemaURL, semconv.ServiceName(serviceName)),
	)
	if err != nil {
		return nil, fmt.Errorf("telemetry: build resource: %w", err)
	}

	processor := trace.NewBatchSpanProcessor(exporter, trace.WithBatchTimeout(5*time.Second))
	provider := trace.NewTracerProvider(trace.WithSpanProcessor(processor), trace.WithResource(res))
	otel.SetTracerProvider(provider)

	return provider.Shutdown, nil
}
