// Package sqlstore implements domain.ReportStore on database/sql. The sqlite
// and postgres packages supply the driver and dialect.
package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"geopandemic/pkg/domain"
	"strconv"
	"strings"
	"time"
)

var _ domain.ReportStore = (*Store)(nil)

// Dialect captures the differences between supported SQL engines.
type Dialect struct {
	Name string
	// Placeholder renders the n-th (1-based) bind parameter.
	Placeholder func(n int) string
	FloatType   string
	IntType     string
}

// Postgres numbers its placeholders.
var Postgres = Dialect{
	Name:        "postgres",
	Placeholder: func(n int) string { return "$" + strconv.Itoa(n) },
	FloatType:   "DOUBLE PRECISION",
	IntType:     "BIGINT",
}

// SQLite uses positional question marks.
var SQLite = Dialect{
	Name:        "sqlite",
	Placeholder: func(int) string { return "?" },
	FloatType:   "REAL",
	IntType:     "INTEGER",
}

// Store persists runs and cell reports in two tables.
type Store struct {
	db      *sql.DB
	dialect Dialect
	now     func() time.Time
}

// New wraps an open database and ensures the schema exists.
func New(ctx context.Context, db *sql.DB, dialect Dialect) (*Store, error) {
	s := &Store{db: db, dialect: dialect, now: time.Now}
	for _, stmt := range s.schema() {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return nil, fmt.Errorf("apply %s schema: %w", dialect.Name, err)
		}
	}
	return s, nil
}

// DB exposes the underlying handle.
func (s *Store) DB() *sql.DB { return s.db }

func (s *Store) schema() []string {
	values := make([]string, len(domain.ReportColumns))
	for i, col := range domain.ReportColumns {
		values[i] = fmt.Sprintf("\t%s %s NOT NULL", col, s.dialect.FloatType)
	}
	return []string{
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS runs (
	id TEXT PRIMARY KEY,
	scenario TEXT NOT NULL,
	cells %[1]s NOT NULL,
	created_at %[1]s NOT NULL
)`, s.dialect.IntType),
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS cell_reports (
	run_id TEXT NOT NULL REFERENCES runs(id),
	day %s NOT NULL,
	cell_id TEXT NOT NULL,
%s,
	PRIMARY KEY (run_id, day, cell_id)
)`, s.dialect.IntType, strings.Join(values, ",\n")),
	}
}

func (s *Store) placeholders(from, n int) string {
	parts := make([]string, n)
	for i := range parts {
		parts[i] = s.dialect.Placeholder(from + i)
	}
	return strings.Join(parts, ",")
}

// CreateRun inserts a run row. CreatedAt defaults to the current time and is
// stored as unix nanoseconds.
func (s *Store) CreateRun(ctx context.Context, run domain.Run) (domain.Run, error) {
	if run.ID == "" {
		return domain.Run{}, fmt.Errorf("create run: empty id")
	}
	if run.CreatedAt.IsZero() {
		run.CreatedAt = s.now().UTC()
	}
	query := "INSERT INTO runs (id, scenario, cells, created_at) VALUES (" + s.placeholders(1, 4) + ")"
	if _, err := s.db.ExecContext(ctx, query, run.ID, run.Scenario, int64(run.Cells), run.CreatedAt.UnixNano()); err != nil {
		return domain.Run{}, fmt.Errorf("create run %s: %w", run.ID, err)
	}
	return run, nil
}

func (s *Store) runExists(ctx context.Context, q interface {
	QueryRowContext(context.Context, string, ...any) *sql.Row
}, runID string) error {
	var id string
	err := q.QueryRowContext(ctx, "SELECT id FROM runs WHERE id = "+s.dialect.Placeholder(1), runID).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.ErrRunNotFound
	}
	return err
}

// AppendReports inserts reports for a run inside one transaction.
func (s *Store) AppendReports(ctx context.Context, runID string, reports []domain.CellReport) (err error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("append reports %s: begin: %w", runID, err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()
	if err = s.runExists(ctx, tx, runID); err != nil {
		return fmt.Errorf("append reports %s: %w", runID, err)
	}
	cols := "run_id, day, cell_id, " + strings.Join(domain.ReportColumns, ", ")
	query := "INSERT INTO cell_reports (" + cols + ") VALUES (" + s.placeholders(1, 3+len(domain.ReportColumns)) + ")"
	for _, r := range reports {
		args := make([]any, 0, 3+len(domain.ReportColumns))
		args = append(args, runID, int64(r.Day), r.CellID)
		for _, v := range r.Report.Values() {
			args = append(args, v)
		}
		if _, err = tx.ExecContext(ctx, query, args...); err != nil {
			return fmt.Errorf("append reports %s: day %d cell %s: %w", runID, r.Day, r.CellID, err)
		}
	}
	if err = tx.Commit(); err != nil {
		return fmt.Errorf("append reports %s: commit: %w", runID, err)
	}
	return nil
}

// ListReports returns a run's reports ordered by day then cell.
func (s *Store) ListReports(ctx context.Context, runID string) ([]domain.CellReport, error) {
	if err := s.runExists(ctx, s.db, runID); err != nil {
		return nil, fmt.Errorf("list reports %s: %w", runID, err)
	}
	query := "SELECT day, cell_id, " + strings.Join(domain.ReportColumns, ", ") +
		" FROM cell_reports WHERE run_id = " + s.dialect.Placeholder(1) + " ORDER BY day, cell_id"
	rows, err := s.db.QueryContext(ctx, query, runID)
	if err != nil {
		return nil, fmt.Errorf("list reports %s: %w", runID, err)
	}
	defer func() { _ = rows.Close() }()
	var out []domain.CellReport
	for rows.Next() {
		var (
			day int64
			cr  domain.CellReport
		)
		r := &cr.Report
		if err := rows.Scan(&day, &cr.CellID,
			&r.Population, &r.Susceptible, &r.Exposed, &r.Dose1, &r.Dose2,
			&r.Infected, &r.Recovered, &r.NewExposed, &r.NewInfected, &r.NewRecovered, &r.Fatalities,
		); err != nil {
			return nil, fmt.Errorf("scan report: %w", err)
		}
		cr.Day = int(day)
		out = append(out, cr)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list reports %s: %w", runID, err)
	}
	return out, nil
}

// ListRuns returns every run ordered by creation time.
func (s *Store) ListRuns(ctx context.Context) ([]domain.Run, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT id, scenario, cells, created_at FROM runs ORDER BY created_at, id")
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer func() { _ = rows.Close() }()
	var out []domain.Run
	for rows.Next() {
		var (
			run     domain.Run
			cells   int64
			created int64
		)
		if err := rows.Scan(&run.ID, &run.Scenario, &cells, &created); err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		run.Cells = int(cells)
		run.CreatedAt = time.Unix(0, created).UTC()
		out = append(out, run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	return out, nil
}

// Close closes the database handle.
func (s *Store) Close() error { return s.db.Close() }
