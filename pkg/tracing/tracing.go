package tracing

import (
	"context"
	"net/http"

	"github.com/hookrelay/hookrelay/config/modules"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
)

const instrumentationName = "github.com/hookrelay/hookrelay"

// Tracer owns the exporting provider installed as the otel global.
type Tracer struct {
	provider trace.TracerProvider
	shutdown func(ctx context.Context) error
}

// New installs an OTLP exporting provider. A disabled config keeps the
// no-op global provider and returns nil.
func New(cfg *modules.TracingConfig) (*Tracer, error) {
	if !cfg.Enabled {
		return nil, nil
	}

	tp, err := SetupOTEL(cfg)
	if err != nil {
		return nil, err
	}
	return &Tracer{provider: tp, shutdown: tp.Shutdown}, nil
}

func (t *Tracer) TracerProvider() trace.TracerProvider {
	if t == nil {
		return otel.GetTracerProvider()
	}
	return t.provider
}

// Stop flushes pending spans.
func (t *Tracer) Stop(ctx context.Context) error {
	if t == nil || t.shutdown == nil {
		return nil
	}
	return t.shutdown(ctx)
}

// Start starts a span on the global provider. Spans are dropped until a
// provider is installed.
func Start(ctx context.Context, name string, opts ...trace.SpanStartOption) (context.Context, trace.Span) {
	return otel.Tracer(instrumentationName).Start(ctx, name, opts...)
}

// Extract continues the trace carried by inbound headers.
func Extract(ctx context.Context, header http.Header) context.Context {
	return otel.GetTextMapPropagator().Extract(ctx, propagation.HeaderCarrier(header))
}

// Error marks span as failed.
func Error(span trace.Span, err error) {
	if err == nil {
		return
	}
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
}

// TraceID returns the hex trace id of the span in ctx, or "".
func TraceID(ctx context.Context) string {
	sc := trace.SpanContextFromContext(ctx)
	if !sc.IsValid() {
		return ""
	}
	return sc.TraceID().String()
}
