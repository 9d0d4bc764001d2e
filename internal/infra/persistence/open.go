// Package persistence selects a domain.ReportStore backend from settings.
package persistence

import (
	"context"
	"fmt"
	"geopandemic/internal/config"
	"geopandemic/internal/infra/persistence/memory"
	"geopandemic/internal/infra/persistence/postgres"
	"geopandemic/internal/infra/persistence/sqlite"
	"geopandemic/pkg/domain"
)

// Driver identifies a concrete report store implementation.
type Driver string

const (
	DriverMemory   Driver = "memory"   // in-memory only (tests / ephemeral)
	DriverSQLite   Driver = "sqlite"   // embedded sqlite file
	DriverPostgres Driver = "postgres" // PostgreSQL server
)

// Open returns the store named by settings.StorageDriver (memory when unset).
func Open(ctx context.Context, settings config.Settings) (domain.ReportStore, error) {
	switch Driver(settings.StorageDriver) {
	case "", DriverMemory:
		return memory.NewStore(), nil
	case DriverSQLite:
		s, err := sqlite.NewStore(ctx, settings.SQLitePath)
		if err != nil {
			return nil, err
		}
		return s, nil
	case DriverPostgres:
		s, err := postgres.NewStore(ctx, settings.PostgresDSN)
		if err != nil {
			return nil, err
		}
		return s, nil
	default:
		return nil, fmt.Errorf("unknown storage driver %s", settings.StorageDriver)
	}
}
