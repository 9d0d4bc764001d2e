package core

import (
	"context"
	"time"
)

// MetricsRecorder receives the outcome of timed simulation operations such as
// a day step or a single cell update.
type MetricsRecorder interface {
	Observe(ctx context.Context, operation string, success bool, duration time.Duration)
}

// Tracer starts spans around simulation operations.
type Tracer interface {
	Start(ctx context.Context, operation string) (context.Context, TraceSpan)
}

// TraceSpan is ended exactly once with the operation's error, if any.
type TraceSpan interface {
	End(err error)
}

// NoopMetricsRecorder discards observations.
type NoopMetricsRecorder struct{}

// Observe implements MetricsRecorder.
func (NoopMetricsRecorder) Observe(context.Context, string, bool, time.Duration) {}

// NoopTracer starts spans that record nothing.
type NoopTracer struct{}

// Start implements Tracer.
func (NoopTracer) Start(ctx context.Context, _ string) (context.Context, TraceSpan) {
	return ctx, noopSpan{}
}

type noopSpan struct{}

func (noopSpan) End(error) {}

// Instrument runs fn inside a span and records its duration and outcome.
func Instrument(ctx context.Context, metrics MetricsRecorder, tracer Tracer, operation string, fn func(context.Context) error) error {
	if metrics == nil {
		metrics = NoopMetricsRecorder{}
	}
	if tracer == nil {
		tracer = NoopTracer{}
	}
	ctx, span := tracer.Start(ctx, operation)
	started := time.Now()
	err := fn(ctx)
	metrics.Observe(ctx, operation, err == nil, time.Since(started))
	span.End(err)
	return err
}

// MultiMetricsRecorder fans observations out to every non-nil recorder.
type MultiMetricsRecorder []MetricsRecorder

// Observe implements MetricsRecorder.
func (m MultiMetricsRecorder) Observe(ctx context.Context, operation string, success bool, duration time.Duration) {
	for _, r := range m {
		if r != nil {
			r.Observe(ctx, operation, success, duration)
		}
	}
}
