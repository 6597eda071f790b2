package observability

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const (
	instrumentationName = "github.com/seb7887/gofw/sietch"
)

// Tracer creates spans around repository operations and batch executions.
// A nil *Tracer creates no spans.
type Tracer struct {
	tracer trace.Tracer
}

// NewTracer creates a new tracer with the given tracer provider.
// If provider is nil, uses the global tracer provider.
func NewTracer(provider trace.TracerProvider) *Tracer {
	if provider == nil {
		provider = otel.GetTracerProvider()
	}
	return &Tracer{tracer: provider.Tracer(instrumentationName)}
}

// Start opens a span named name and returns the updated context.
func (t *Tracer) Start(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	if t == nil {
		return ctx, trace.SpanFromContext(ctx)
	}
	return t.tracer.Start(ctx, name,
		trace.WithSpanKind(trace.SpanKindInternal),
		trace.WithAttributes(attrs...),
	)
}

// End completes span, marking it as failed when err is non-nil.
func (t *Tracer) End(span trace.Span, err error) {
	if t == nil {
		return
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	} else {
		span.SetStatus(codes.Ok, "")
	}
	span.End()
}

// AddEvent adds an event to span, e.g. the execution path a batch took.
func (t *Tracer) AddEvent(span trace.Span, name string, attrs ...attribute.KeyValue) {
	if t == nil {
		return
	}
	span.AddEvent(name, trace.WithAttributes(attrs...))
}
