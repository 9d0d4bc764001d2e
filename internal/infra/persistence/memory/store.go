// Package memory provides an in-memory report store used for tests and
// ephemeral runs.
package memory

import (
	"context"
	"fmt"
	"geopandemic/pkg/domain"
	"sort"
	"sync"
	"time"
)

var _ domain.ReportStore = (*Store)(nil)

type runRecord struct {
	run     domain.Run
	reports []domain.CellReport
}

// Store keeps runs and their reports in process memory.
type Store struct {
	mu   sync.RWMutex
	runs map[string]*runRecord
	now  func() time.Time
}

// NewStore constructs an empty store.
func NewStore() *Store {
	return &Store{runs: make(map[string]*runRecord), now: time.Now}
}

// CreateRun records a run. CreatedAt defaults to the current time.
func (s *Store) CreateRun(_ context.Context, run domain.Run) (domain.Run, error) {
	if run.ID == "" {
		return domain.Run{}, fmt.Errorf("create run: empty id")
	}
	if run.CreatedAt.IsZero() {
		run.CreatedAt = s.now().UTC()
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.runs[run.ID]; ok {
		return domain.Run{}, fmt.Errorf("create run %s: already exists", run.ID)
	}
	s.runs[run.ID] = &runRecord{run: run}
	return run, nil
}

// AppendReports adds reports to an existing run.
func (s *Store) AppendReports(_ context.Context, runID string, reports []domain.CellReport) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.runs[runID]
	if !ok {
		return fmt.Errorf("append reports %s: %w", runID, domain.ErrRunNotFound)
	}
	rec.reports = append(rec.reports, reports...)
	return nil
}

// ListReports returns a run's reports ordered by day then cell.
func (s *Store) ListReports(_ context.Context, runID string) ([]domain.CellReport, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.runs[runID]
	if !ok {
		return nil, fmt.Errorf("list reports %s: %w", runID, domain.ErrRunNotFound)
	}
	out := append([]domain.CellReport(nil), rec.reports...)
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Day != out[j].Day {
			return out[i].Day < out[j].Day
		}
		return out[i].CellID < out[j].CellID
	})
	return out, nil
}

// ListRuns returns every run ordered by creation time.
func (s *Store) ListRuns(_ context.Context) ([]domain.Run, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.Run, 0, len(s.runs))
	for _, rec := range s.runs {
		out = append(out, rec.run)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

// Close is a no-op.
func (s *Store) Close() error { return nil }
