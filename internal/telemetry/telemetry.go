// Package telemetry installs the global OpenTelemetry tracer and meter
// providers (SPEC_FULL.md §4.11). The package-level tracers in store
// (one span per task write) and hooks (one span per hook run) are
// obtained from the global otel providers, which are no-ops until Init
// is called — so the core is fully usable, and silent, with telemetry
// never configured. No package in the core records metrics.
package telemetry

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetrichttp"
	"go.opentelemetry.io/otel/exporters/stdout/stdoutmetric"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/attribute"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

// Options configures Init. The CLI fills MetricsEndpoint from the
// LATTICE_OTEL_METRICS_ENDPOINT environment variable (InitFromEnv);
// config.dashboard.otel_endpoint is not read.
type Options struct {
	// ServiceName tags every span/metric.
	ServiceName string
	// MetricsEndpoint, if set, sends metrics via OTLP/HTTP instead of
	// stdout (host:port, no scheme).
	MetricsEndpoint string
	// TraceWriter receives stdout-exporter trace output; defaults to
	// io.Discard so tests and non-diagnostic runs stay quiet.
	TraceWriter io.Writer
}

// Shutdown flushes and stops the providers Init installed.
type Shutdown func(context.Context) error

// Init installs global tracer and meter providers per opts. Returns a
// Shutdown that must be called (typically deferred from cmd/lattice's
// root command) to flush buffered spans/metrics on exit.
func Init(ctx context.Context, opts Options) (Shutdown, error) {
	if opts.ServiceName == "" {
		opts.ServiceName = "lattice"
	}
	res, err := resource.Merge(resource.Default(),
		resource.NewSchemaless(attribute.String("service.name", opts.ServiceName)))
	if err != nil {
		return nil, fmt.Errorf("telemetry: build resource: %w", err)
	}

	traceWriter := opts.TraceWriter
	if traceWriter == nil {
		traceWriter = io.Discard
	}
	traceExporter, err := stdouttrace.New(stdouttrace.WithWriter(traceWriter))
	if err != nil {
		return nil, fmt.Errorf("telemetry: stdout trace exporter: %w", err)
	}
	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(traceExporter),
		sdktrace.WithResource(res),
	)
	otel.SetTracerProvider(tp)

	var metricReader sdkmetric.Reader
	if opts.MetricsEndpoint != "" {
		metricExporter, err := otlpmetrichttp.New(ctx, otlpmetrichttp.WithEndpoint(opts.MetricsEndpoint))
		if err != nil {
			return nil, fmt.Errorf("telemetry: otlp metric exporter: %w", err)
		}
		metricReader = sdkmetric.NewPeriodicReader(metricExporter, sdkmetric.WithInterval(15*time.Second))
	} else {
		metricExporter, err := stdoutmetric.New(stdoutmetric.WithWriter(io.Discard))
		if err != nil {
			return nil, fmt.Errorf("telemetry: stdout metric exporter: %w", err)
		}
		metricReader = sdkmetric.NewPeriodicReader(metricExporter, sdkmetric.WithInterval(15*time.Second))
	}
	mp := sdkmetric.NewMeterProvider(
		sdkmetric.WithResource(res),
		sdkmetric.WithReader(metricReader),
	)
	otel.SetMeterProvider(mp)

	return func(shutdownCtx context.Context) error {
		if err := tp.Shutdown(shutdownCtx); err != nil {
			return err
		}
		return mp.Shutdown(shutdownCtx)
	}, nil
}

// InitFromEnv is cmd/lattice's convenience entry point: it reads
// LATTICE_OTEL_METRICS_ENDPOINT the way the rest of the config layer
// reads env overrides, and otherwise behaves like Init with defaults.
func InitFromEnv(ctx context.Context) (Shutdown, error) {
	return Init(ctx, Options{MetricsEndpoint: os.Getenv("LATTICE_OTEL_METRICS_ENDPOINT")})
}
