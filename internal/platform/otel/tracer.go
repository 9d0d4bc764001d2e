package otel

import (
	"context"
	"geopandemic/internal/core"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const instrumentationName = "geopandemic"

// Tracer adapts an OpenTelemetry tracer to core.Tracer.
type Tracer struct {
	tracer trace.Tracer
}

var _ core.Tracer = Tracer{}

// NewTracer uses the global provider registered by Setup.
func NewTracer() Tracer {
	return NewTracerFrom(otel.GetTracerProvider())
}

// NewTracerFrom uses an explicit provider.
func NewTracerFrom(tp trace.TracerProvider) Tracer {
	return Tracer{tracer: tp.Tracer(instrumentationName)}
}

// Start implements core.Tracer.
func (t Tracer) Start(ctx context.Context, operation string) (context.Context, core.TraceSpan) {
	ctx, span := t.tracer.Start(ctx, operation)
	return ctx, otelSpan{span: span}
}

type otelSpan struct {
	span trace.Span
}

func (s otelSpan) End(err error) {
	if err != nil {
		s.span.RecordError(err)
		s.span.SetStatus(codes.Error, err.Error())
	} else {
		s.span.SetStatus(codes.Ok, "")
	}
	s.span.End()
}
