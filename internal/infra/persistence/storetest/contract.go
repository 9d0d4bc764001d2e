// Package storetest holds the behavioural contract every domain.ReportStore
// implementation is tested against.
package storetest

import (
	"context"
	"errors"
	"geopandemic/pkg/domain"
	"testing"
	"time"
)

// Report builds a deterministic report for a cell-day.
func Report(cell string, day int) domain.CellReport {
	f := float64(day)
	return domain.CellReport{CellID: cell, Day: day, Report: domain.Report{
		Population:   1000,
		Susceptible:  0.9 - f*0.01,
		Exposed:      0.01,
		Dose1:        0.02,
		Dose2:        0.03,
		Infected:     0.02 + f*0.001,
		Recovered:    f * 0.005,
		NewExposed:   0.004,
		NewInfected:  0.003,
		NewRecovered: 0.002,
		Fatalities:   f * 0.0001,
	}}
}

// RunContract exercises the ReportStore contract against a fresh store.
func RunContract(t *testing.T, store domain.ReportStore) {
	t.Helper()
	ctx := context.Background()
	base := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

	second, err := store.CreateRun(ctx, domain.Run{ID: "run-b", Scenario: "demo", Cells: 2, CreatedAt: base.Add(time.Minute)})
	if err != nil {
		t.Fatalf("create run-b: %v", err)
	}
	if second.CreatedAt != base.Add(time.Minute) {
		t.Fatalf("explicit created_at should be kept, got %v", second.CreatedAt)
	}
	if _, err := store.CreateRun(ctx, domain.Run{ID: "run-a", Scenario: "demo", Cells: 2, CreatedAt: base}); err != nil {
		t.Fatalf("create run-a: %v", err)
	}
	if _, err := store.CreateRun(ctx, domain.Run{}); err == nil {
		t.Fatalf("expected empty id to be rejected")
	}

	day0 := []domain.CellReport{Report("south", 0), Report("north", 0)}
	day1 := []domain.CellReport{Report("north", 1), Report("south", 1)}
	if err := store.AppendReports(ctx, "run-a", day0); err != nil {
		t.Fatalf("append day0: %v", err)
	}
	if err := store.AppendReports(ctx, "run-a", day1); err != nil {
		t.Fatalf("append day1: %v", err)
	}
	if err := store.AppendReports(ctx, "missing", day0); !errors.Is(err, domain.ErrRunNotFound) {
		t.Fatalf("expected ErrRunNotFound on append, got %v", err)
	}

	got, err := store.ListReports(ctx, "run-a")
	if err != nil {
		t.Fatalf("list reports: %v", err)
	}
	want := []domain.CellReport{Report("north", 0), Report("south", 0), Report("north", 1), Report("south", 1)}
	if len(got) != len(want) {
		t.Fatalf("expected %d reports, got %d", len(want), len(got))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("report %d: got %+v want %+v", i, got[i], want[i])
		}
	}
	empty, err := store.ListReports(ctx, "run-b")
	if err != nil || len(empty) != 0 {
		t.Fatalf("expected no reports for run-b, got %v (%v)", empty, err)
	}
	if _, err := store.ListReports(ctx, "missing"); !errors.Is(err, domain.ErrRunNotFound) {
		t.Fatalf("expected ErrRunNotFound on list, got %v", err)
	}

	runs, err := store.ListRuns(ctx)
	if err != nil {
		t.Fatalf("list runs: %v", err)
	}
	if len(runs) != 2 || runs[0].ID != "run-a" || runs[1].ID != "run-b" {
		t.Fatalf("runs should be ordered by creation time, got %+v", runs)
	}
	if runs[0].Scenario != "demo" || runs[0].Cells != 2 || !runs[0].CreatedAt.Equal(base) {
		t.Fatalf("unexpected run fields: %+v", runs[0])
	}
}
