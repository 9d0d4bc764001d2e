package engine

import (
	"bytes"
	"context"
	"errors"
	"geopandemic/internal/config"
	"geopandemic/internal/core"
	"geopandemic/pkg/domain"
	"log"
	"math"
	"strings"
	"sync"
	"testing"
)

const scenarioFixture = "../config/testdata/two_cells.json"

func loadCells(t *testing.T) []*core.Cell {
	t.Helper()
	sc, err := config.LoadScenarioFile(scenarioFixture, config.ScenarioOptions{AutoSelfNeighbor: true})
	if err != nil {
		t.Fatalf("load scenario: %v", err)
	}
	return sc.Cells
}

type captureSink struct {
	mu   sync.Mutex
	days []int
	all  [][]domain.CellReport
}

func (s *captureSink) Publish(_ context.Context, day int, reports []domain.CellReport) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.days = append(s.days, day)
	s.all = append(s.all, reports)
	return nil
}

func TestRunPublishesEveryDay(t *testing.T) {
	sink := &captureSink{}
	metrics := core.NewTimingRecorder("")
	e, err := New(loadCells(t), Options{Workers: 2, Rules: core.NewDefaultRulesEngine(), Metrics: metrics, Sinks: []Sink{sink}})
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	if err := e.Run(context.Background(), 30); err != nil {
		t.Fatalf("run: %v", err)
	}
	if e.Day() != 30 {
		t.Fatalf("day: %d", e.Day())
	}
	if len(sink.days) != 31 || sink.days[0] != 0 || sink.days[30] != 30 {
		t.Fatalf("published days: %v", sink.days)
	}
	for _, reports := range sink.all {
		if len(reports) != 2 || reports[0].CellID != "north" || reports[1].CellID != "south" {
			t.Fatalf("report order: %+v", reports)
		}
	}
	for id, s := range e.Published() {
		for age := range s.AgeGroups {
			if math.Abs(s.AgeGroupTotal(age)-1) > s.Tolerance() {
				t.Fatalf("cell %s age %d lost mass", id, age)
			}
		}
	}
	snap := metrics.Snapshot()
	if snap.CellUpdates != 60 || snap.DaysSimulated != 30 || snap.Operations[core.OpRun].Calls != 1 {
		t.Fatalf("metrics: %+v", snap)
	}
	if snap.CellUpdatesPerDay() != 2 {
		t.Fatalf("cell updates per day: %g", snap.CellUpdatesPerDay())
	}
}

func TestParallelismDoesNotChangeResults(t *testing.T) {
	run := func(workers int) []domain.CellReport {
		e, err := New(loadCells(t), Options{Workers: workers})
		if err != nil {
			t.Fatalf("new: %v", err)
		}
		if err := e.Run(context.Background(), 25); err != nil {
			t.Fatalf("run: %v", err)
		}
		return e.Reports()
	}
	serial, parallel := run(1), run(8)
	for i := range serial {
		if serial[i] != parallel[i] {
			t.Fatalf("report %d differs: %+v vs %+v", i, serial[i], parallel[i])
		}
	}
}

type blockingRule struct{}

func (blockingRule) Name() string { return "always_block" }

func (blockingRule) Evaluate(_ context.Context, view domain.RuleView) (domain.Result, error) {
	return domain.Result{Violations: []domain.Violation{{Rule: "always_block", Severity: domain.SeverityBlock, Message: "no", Day: view.Day()}}}, nil
}

type warningRule struct{}

func (warningRule) Name() string { return "always_warn" }

func (warningRule) Evaluate(_ context.Context, view domain.RuleView) (domain.Result, error) {
	var res domain.Result
	for _, id := range view.CellIDs() {
		if _, ok := view.Previous(id); !ok {
			continue
		}
		res.Violations = append(res.Violations, domain.Violation{Rule: "always_warn", Severity: domain.SeverityWarn, Message: "watch", CellID: id, Day: view.Day()})
	}
	return res, nil
}

func TestBlockingRuleRejectsDayAndHalts(t *testing.T) {
	rules := domain.NewRulesEngine()
	rules.Register(blockingRule{})
	cells := loadCells(t)
	initial := cells[0].State
	e, err := New(cells, Options{Rules: rules})
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	err = e.Step(context.Background())
	var rv domain.RuleViolationError
	if !errors.As(err, &rv) {
		t.Fatalf("expected rule violation, got %v", err)
	}
	if e.Day() != 0 || cells[0].State != initial {
		t.Fatalf("rejected day must not be published")
	}
	if err := e.Step(context.Background()); !errors.Is(err, ErrHalted) {
		t.Fatalf("expected halted engine, got %v", err)
	}
}

func TestWarningsAreLogged(t *testing.T) {
	var buf bytes.Buffer
	rules := domain.NewRulesEngine()
	rules.Register(warningRule{})
	e, err := New(loadCells(t), Options{Rules: rules, Logger: log.New(&buf, "", 0)})
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	if err := e.Run(context.Background(), 2); err != nil {
		t.Fatalf("run: %v", err)
	}
	if !strings.Contains(buf.String(), "day 2 cell south: always_warn: watch") {
		t.Fatalf("log: %q", buf.String())
	}
}

func TestInvariantViolationStopsRun(t *testing.T) {
	cells := loadCells(t)
	cells[0].State.FatalityModifier = 100
	cells[0].State.HospitalCapacity = 0
	e, err := New(cells, Options{})
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	err = e.Run(context.Background(), 5)
	var inv *domain.InvariantError
	if !errors.As(err, &inv) || inv.Cell != "north" || inv.Day != 1 {
		t.Fatalf("expected invariant error for north on day 1, got %v", err)
	}
}

func TestNewRejectsBadTopology(t *testing.T) {
	cells := loadCells(t)
	if _, err := New(cells[:1], Options{}); !errors.Is(err, domain.ErrUnknownNeighbor) {
		t.Fatalf("expected unknown neighbor, got %v", err)
	}
	if _, err := New([]*core.Cell{cells[0], cells[1], cells[0]}, Options{}); err == nil {
		t.Fatalf("expected duplicate cell error")
	}
	if _, err := New(nil, Options{}); err == nil {
		t.Fatalf("expected error for no cells")
	}
}

func TestStepHonoursCancellation(t *testing.T) {
	e, err := New(loadCells(t), Options{})
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := e.Step(ctx); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected cancellation, got %v", err)
	}
}

func TestSinkErrorsPropagate(t *testing.T) {
	boom := errors.New("disk full")
	e, err := New(loadCells(t), Options{Sinks: []Sink{SinkFunc(func(context.Context, int, []domain.CellReport) error { return boom })}})
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	if err := e.Run(context.Background(), 1); !errors.Is(err, boom) {
		t.Fatalf("expected sink error, got %v", err)
	}
}

func TestSummarizeWeightsByPopulation(t *testing.T) {
	got := Summarize([]domain.CellReport{
		{CellID: "a", Report: domain.Report{Population: 1000, Infected: 0.1, Fatalities: 0.01}},
		{CellID: "b", Report: domain.Report{Population: 3000, Infected: 0.2}},
	})
	if got.Population != 4000 || math.Abs(got.Infected-0.175) > 1e-12 || math.Abs(got.Fatalities-0.0025) > 1e-12 {
		t.Fatalf("summary: %+v", got)
	}
	if empty := Summarize(nil); empty.Population != 0 {
		t.Fatalf("empty summary: %+v", empty)
	}
}
