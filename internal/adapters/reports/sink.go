package reports

import (
	"context"
	"fmt"
	"geopandemic/internal/engine"
	"geopandemic/pkg/domain"
)

// StoreSink returns an engine sink that appends each published day to runID
// in store.
func StoreSink(store domain.ReportStore, runID string) engine.Sink {
	return engine.SinkFunc(func(ctx context.Context, day int, reports []domain.CellReport) error {
		if err := store.AppendReports(ctx, runID, reports); err != nil {
			return fmt.Errorf("persist day %d: %w", day, err)
		}
		return nil
	})
}
