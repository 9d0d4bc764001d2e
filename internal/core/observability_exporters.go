package core

import (
	"context"
	"encoding/json"
	"expvar"
	"fmt"
	"io"
	"sync"
	"sync/atomic"
	"time"
)

var timingSeq uint64

// Operation names reported by the engine.
const (
	OpRun        = "run"
	OpStep       = "step"
	OpCellUpdate = "cell_update"
)

// OperationTiming aggregates the observations of one operation.
type OperationTiming struct {
	Calls     int64   `json:"calls"`
	Failures  int64   `json:"failures"`
	TotalMS   float64 `json:"total_ms"`
	SlowestMS float64 `json:"slowest_ms"`
}

// MeanMS is the average duration per call.
func (o OperationTiming) MeanMS() float64 {
	if o.Calls == 0 {
		return 0
	}
	return o.TotalMS / float64(o.Calls)
}

// TimingSnapshot is a copy of a TimingRecorder at one instant.
type TimingSnapshot struct {
	Operations map[string]OperationTiming `json:"operations"`
	// DaysSimulated counts successful steps, CellUpdates successful cell
	// updates.
	DaysSimulated int64     `json:"days_simulated"`
	CellUpdates   int64     `json:"cell_updates"`
	TakenAt       time.Time `json:"taken_at"`
}

// CellUpdatesPerDay is the mean number of cells advanced by each simulated day.
func (s TimingSnapshot) CellUpdatesPerDay() float64 {
	if s.DaysSimulated == 0 {
		return 0
	}
	return float64(s.CellUpdates) / float64(s.DaysSimulated)
}

// TimingRecorder is a MetricsRecorder that keeps per-operation timings of a
// simulation and publishes them through expvar.
type TimingRecorder struct {
	name string
	mu   sync.Mutex
	ops  map[string]*OperationTiming
}

// NewTimingRecorder publishes a recorder under name, or under a generated
// geopandemic_timings_<n> name when empty. Names must be unique per process.
func NewTimingRecorder(name string) *TimingRecorder {
	if name == "" {
		name = fmt.Sprintf("geopandemic_timings_%d", atomic.AddUint64(&timingSeq, 1))
	}
	rec := &TimingRecorder{name: name, ops: make(map[string]*OperationTiming)}
	expvar.Publish(name, expvar.Func(func() any { return rec.Snapshot() }))
	return rec
}

// Name returns the expvar key.
func (r *TimingRecorder) Name() string { return r.name }

// Observe implements MetricsRecorder. Observations without an operation name
// are dropped.
func (r *TimingRecorder) Observe(_ context.Context, operation string, success bool, duration time.Duration) {
	if operation == "" {
		return
	}
	ms := float64(duration) / float64(time.Millisecond)
	r.mu.Lock()
	defer r.mu.Unlock()
	op, ok := r.ops[operation]
	if !ok {
		op = &OperationTiming{}
		r.ops[operation] = op
	}
	op.Calls++
	if !success {
		op.Failures++
	}
	op.TotalMS += ms
	op.SlowestMS = max(op.SlowestMS, ms)
}

// Snapshot copies the current timings.
func (r *TimingRecorder) Snapshot() TimingSnapshot {
	r.mu.Lock()
	defer r.mu.Unlock()
	snap := TimingSnapshot{Operations: make(map[string]OperationTiming, len(r.ops)), TakenAt: time.Now().UTC()}
	for name, op := range r.ops {
		snap.Operations[name] = *op
	}
	if op, ok := r.ops[OpStep]; ok {
		snap.DaysSimulated = op.Calls - op.Failures
	}
	if op, ok := r.ops[OpCellUpdate]; ok {
		snap.CellUpdates = op.Calls - op.Failures
	}
	return snap
}

// TraceRecord is one finished span as written by JSONTraceTracer.
type TraceRecord struct {
	Operation  string    `json:"operation"`
	Failed     bool      `json:"failed"`
	Error      string    `json:"error,omitempty"`
	Start      time.Time `json:"start"`
	DurationMS float64   `json:"duration_ms"`
}

// JSONTraceTracer writes finished spans as JSON lines and keeps them in
// memory. The CLI's -trace flag writes them to a file.
type JSONTraceTracer struct {
	mu      sync.Mutex
	enc     *json.Encoder
	records []TraceRecord
}

// NewJSONTracer returns a tracer writing to w. A nil writer only retains spans.
func NewJSONTracer(w io.Writer) *JSONTraceTracer {
	t := &JSONTraceTracer{}
	if w != nil {
		t.enc = json.NewEncoder(w)
	}
	return t
}

// Records returns the finished spans in completion order.
func (t *JSONTraceTracer) Records() []TraceRecord {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]TraceRecord(nil), t.records...)
}

// Start implements Tracer.
func (t *JSONTraceTracer) Start(ctx context.Context, operation string) (context.Context, TraceSpan) {
	return ctx, &jsonSpan{tracer: t, rec: TraceRecord{Operation: operation, Start: time.Now().UTC()}}
}

type jsonSpan struct {
	tracer *JSONTraceTracer
	rec    TraceRecord
}

func (s *jsonSpan) End(err error) {
	s.rec.DurationMS = float64(time.Since(s.rec.Start)) / float64(time.Millisecond)
	if err != nil {
		s.rec.Failed = true
		s.rec.Error = err.Error()
	}
	s.tracer.mu.Lock()
	defer s.tracer.mu.Unlock()
	s.tracer.records = append(s.tracer.records, s.rec)
	if s.tracer.enc != nil {
		_ = s.tracer.enc.Encode(s.rec)
	}
}
