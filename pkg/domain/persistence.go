package domain

import (
	"context"
	"errors"
	"time"
)

// ErrRunNotFound is returned when a run identifier is unknown to a store.
var ErrRunNotFound = errors.New("run not found")

// Run describes one simulation run recorded by a ReportStore.
type Run struct {
	ID        string    `json:"id"`
	Scenario  string    `json:"scenario"`
	Cells     int       `json:"cells"`
	CreatedAt time.Time `json:"created_at"`
}

// ReportStore is the durable sink for cell-day reports. Implementations must
// be safe for concurrent use.
type ReportStore interface {
	CreateRun(ctx context.Context, run Run) (Run, error)
	AppendReports(ctx context.Context, runID string, reports []CellReport) error
	ListReports(ctx context.Context, runID string) ([]CellReport, error)
	ListRuns(ctx context.Context) ([]Run, error)
	Close() error
}
