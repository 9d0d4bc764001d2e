// Package engine drives a set of cells through simulated days. Every cell of
// a day reads the same immutable published snapshot; results become visible
// together once the whole day is accepted.
package engine

import (
	"context"
	"errors"
	"fmt"
	"geopandemic/internal/core"
	"geopandemic/pkg/domain"
	"io"
	"log"
	"runtime"

	"golang.org/x/sync/errgroup"
)

// ErrHalted is returned by Step after a previous day failed. A failed day may
// have advanced some cells' hysteresis, so the run cannot continue.
var ErrHalted = errors.New("engine halted after a failed day")

// Sink receives the reports of every accepted day, cells in ascending id order.
type Sink interface {
	Publish(ctx context.Context, day int, reports []domain.CellReport) error
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(ctx context.Context, day int, reports []domain.CellReport) error

// Publish implements Sink.
func (f SinkFunc) Publish(ctx context.Context, day int, reports []domain.CellReport) error {
	return f(ctx, day, reports)
}

// Options configures an Engine. Zero values select defaults.
type Options struct {
	// Workers bounds concurrent cell updates; 0 uses GOMAXPROCS.
	Workers int
	// Rules run on each day's candidate states. Nil disables day checks.
	Rules   *domain.RulesEngine
	Metrics core.MetricsRecorder
	Tracer  core.Tracer
	Logger  *log.Logger
	Sinks   []Sink
}

// Engine owns the cells, the published snapshot and the day clock.
type Engine struct {
	cells     []*core.Cell
	published core.StateMap
	previous  core.StateMap
	day       int
	started   bool
	failed    error

	workers int
	rules   *domain.RulesEngine
	metrics core.MetricsRecorder
	tracer  core.Tracer
	logger  *log.Logger
	sinks   []Sink
}

// New checks that cell ids are unique and that every neighbor exists, then
// publishes the initial states as day 0.
func New(cells []*core.Cell, opts Options) (*Engine, error) {
	if len(cells) == 0 {
		return nil, errors.New("engine: no cells")
	}
	published := make(core.StateMap, len(cells))
	for _, c := range cells {
		if _, dup := published[c.ID]; dup {
			return nil, fmt.Errorf("engine: duplicate cell %s", c.ID)
		}
		published[c.ID] = c.State
	}
	for _, c := range cells {
		for _, n := range c.Neighbors() {
			if _, ok := published[n]; !ok {
				return nil, fmt.Errorf("engine: cell %s: neighbor %s: %w", c.ID, n, domain.ErrUnknownNeighbor)
			}
		}
	}
	e := &Engine{
		cells:     cells,
		published: published,
		workers:   opts.Workers,
		rules:     opts.Rules,
		metrics:   opts.Metrics,
		tracer:    opts.Tracer,
		logger:    opts.Logger,
		sinks:     opts.Sinks,
	}
	if e.workers <= 0 {
		e.workers = runtime.GOMAXPROCS(0)
	}
	if e.metrics == nil {
		e.metrics = core.NoopMetricsRecorder{}
	}
	if e.tracer == nil {
		e.tracer = core.NoopTracer{}
	}
	if e.logger == nil {
		e.logger = log.New(io.Discard, "", 0)
	}
	return e, nil
}

// Day returns the last accepted simulated day.
func (e *Engine) Day() int { return e.day }

// Cells returns the simulated cells in input order.
func (e *Engine) Cells() []*core.Cell {
	out := make([]*core.Cell, len(e.cells))
	copy(out, e.cells)
	return out
}

// Published returns a copy of the snapshot table. The states themselves are
// shared and must be treated as read-only.
func (e *Engine) Published() core.StateMap {
	out := make(core.StateMap, len(e.published))
	for id, s := range e.published {
		out[id] = s
	}
	return out
}

// Reports returns the report of every cell for the last accepted day.
func (e *Engine) Reports() []domain.CellReport {
	return buildReports(e.day, e.cells, e.published)
}

// Run publishes day 0 if needed and then steps the given number of days,
// stopping at the first error.
func (e *Engine) Run(ctx context.Context, days int) error {
	return core.Instrument(ctx, e.metrics, e.tracer, core.OpRun, func(ctx context.Context) error {
		if err := e.start(ctx); err != nil {
			return err
		}
		for range days {
			if err := e.Step(ctx); err != nil {
				return err
			}
		}
		return nil
	})
}

// Step computes the next day for every cell in parallel, runs the rules on
// the candidate states and, when accepted, publishes them and notifies the
// sinks.
func (e *Engine) Step(ctx context.Context) error {
	if e.failed != nil {
		return fmt.Errorf("%w: %v", ErrHalted, e.failed)
	}
	if err := e.start(ctx); err != nil {
		return err
	}
	day := e.day + core.OutputDelay
	err := core.Instrument(ctx, e.metrics, e.tracer, core.OpStep, func(ctx context.Context) error {
		return e.step(ctx, day)
	})
	if err != nil {
		e.failed = err
		return err
	}
	return e.publish(ctx, e.day)
}

func (e *Engine) start(ctx context.Context) error {
	if e.started {
		return nil
	}
	e.started = true
	return e.publish(ctx, 0)
}

func (e *Engine) step(ctx context.Context, day int) error {
	next := make([]*domain.State, len(e.cells))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.workers)
	for i, c := range e.cells {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			return core.Instrument(gctx, e.metrics, e.tracer, core.OpCellUpdate, func(context.Context) error {
				s, err := c.Step(e.published, day)
				if err != nil {
					return err
				}
				next[i] = s
				return nil
			})
		})
	}
	if err := g.Wait(); err != nil {
		return fmt.Errorf("day %d: %w", day, err)
	}

	candidate := make(core.StateMap, len(e.cells))
	for i, c := range e.cells {
		candidate[c.ID] = next[i]
	}
	if err := e.evaluate(ctx, day, candidate); err != nil {
		return err
	}
	for i, c := range e.cells {
		c.State = next[i]
	}
	e.previous, e.published = e.published, candidate
	e.day = day
	return nil
}

func (e *Engine) evaluate(ctx context.Context, day int, candidate core.StateMap) error {
	if e.rules == nil {
		return nil
	}
	res, err := e.rules.Evaluate(ctx, &dayView{day: day, cells: e.cells, current: candidate, previous: e.published})
	if err != nil {
		return fmt.Errorf("day %d: rules: %w", day, err)
	}
	for _, v := range res.Violations {
		if v.Severity != domain.SeverityBlock {
			e.logger.Printf("day %d cell %s: %s: %s", v.Day, v.CellID, v.Rule, v.Message)
		}
	}
	if res.HasBlocking() {
		return domain.RuleViolationError{Result: res}
	}
	return nil
}

func (e *Engine) publish(ctx context.Context, day int) error {
	if len(e.sinks) == 0 {
		return nil
	}
	reports := buildReports(day, e.cells, e.published)
	for _, s := range e.sinks {
		if err := s.Publish(ctx, day, reports); err != nil {
			return fmt.Errorf("day %d: publish: %w", day, err)
		}
	}
	return nil
}

func buildReports(day int, cells []*core.Cell, states core.StateMap) []domain.CellReport {
	out := make([]domain.CellReport, 0, len(cells))
	for _, id := range sortedIDs(cells) {
		out = append(out, domain.CellReport{CellID: id, Day: day, Report: domain.NewReport(states[id])})
	}
	return out
}
