package tracing

import (
	"context"
	"fmt"
	"io"
	"os"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
)

// Config configures span export for one run
type Config struct {
	ServiceName string
	Version     string

	// Output receives finished spans as JSON, one object per span.
	// Defaults to stderr.
	Output io.Writer
}

// Tracer owns the tracer provider of one run. Spans are batched in memory
// and exported when the run ends.
type Tracer struct {
	tp *sdktrace.TracerProvider
}

// InitOpenTelemetry installs a process-wide tracer provider. Until it is
// called, spans are no-ops.
func InitOpenTelemetry(cfg Config) (*Tracer, error) {
	out := cfg.Output
	if out == nil {
		out = os.Stderr
	}

	exporter, err := stdouttrace.New(stdouttrace.WithWriter(out))
	if err != nil {
		return nil, fmt.Errorf("failed to create span exporter: %w", err)
	}

	res, err := resource.New(
		context.Background(),
		resource.WithAttributes(
			semconv.ServiceName(cfg.ServiceName),
			semconv.ServiceVersion(cfg.Version),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to build trace resource: %w", err)
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
	)
	otel.SetTracerProvider(tp)

	return &Tracer{tp: tp}, nil
}

// Shutdown exports every buffered span and puts the no-op provider back
func (t *Tracer) Shutdown(ctx context.Context) error {
	if t == nil {
		return nil
	}
	otel.SetTracerProvider(noop.NewTracerProvider())
	return t.tp.Shutdown(ctx)
}

// StartSpan starts a span and records its trace ID in the context so that
// LoggerFromContext can attach it.
func StartSpan(ctx context.Context, tracerName, spanName string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	if ctx == nil {
		ctx = context.Background()
	}

	ctx, span := otel.Tracer(tracerName).Start(ctx, spanName, trace.WithAttributes(attrs...))

	if GetTraceID(ctx) == "" {
		if sc := span.SpanContext(); sc.IsValid() {
			ctx = WithTraceID(ctx, sc.TraceID().String())
		}
	}

	return ctx, span
}
