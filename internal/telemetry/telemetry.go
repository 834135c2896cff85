// Package telemetry installs the process-wide tracing and metrics
// providers the query execution plan (C9) instruments its operators
// with. Only the stdout exporters are wired: a real deployment would
// swap these for an OTLP exporter, but shipping a network exporter is
// outside this module's scope (see DESIGN.md).
package telemetry

import (
	"context"
	"fmt"
	"io"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/stdout/stdoutmetric"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
)

// Shutdown flushes and releases the installed providers.
type Shutdown func(ctx context.Context) error

// Configure installs a TracerProvider and MeterProvider writing to w as
// the process-wide otel globals, returning a Shutdown to call on exit.
// Callers that never call Configure still get usable no-op globals from
// the otel package itself, so instrumented code never needs a nil check.
func Configure(w io.Writer) (Shutdown, error) {
	traceExp, err := stdouttrace.New(stdouttrace.WithWriter(w), stdouttrace.WithoutTimestamps())
	if err != nil {
		return nil, fmt.Errorf("telemetry: trace exporter: %w", err)
	}
	tp := sdktrace.NewTracerProvider(sdktrace.WithBatcher(traceExp))
	otel.SetTracerProvider(tp)

	metricExp, err := stdoutmetric.New(stdoutmetric.WithWriter(w))
	if err != nil {
		return nil, fmt.Errorf("telemetry: metric exporter: %w", err)
	}
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(sdkmetric.NewPeriodicReader(metricExp)))
	otel.SetMeterProvider(mp)

	return func(ctx context.Context) error {
		if err := tp.Shutdown(ctx); err != nil {
			return fmt.Errorf("telemetry: trace shutdown: %w", err)
		}
		if err := mp.Shutdown(ctx); err != nil {
			return fmt.Errorf("telemetry: metric shutdown: %w", err)
		}
		return nil
	}, nil
}

// Tracer is the tracer every C9 operator starts its execution span on.
func Tracer() trace.Tracer { return otel.Tracer("coredb/plan") }

// Meter is the meter every C9 operator records execution duration on.
func Meter() metric.Meter { return otel.Meter("coredb/plan") }
