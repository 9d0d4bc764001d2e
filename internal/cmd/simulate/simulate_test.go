package simulate

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"flag"
	"geopandemic/internal/config"
	"geopandemic/internal/core"
	"geopandemic/internal/infra/persistence/sqlite"
	"geopandemic/pkg/domain"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

const scenarioFixture = "../../config/testdata/two_cells.json"

func baseConfig(t *testing.T) Config {
	t.Helper()
	settings, err := config.LoadSettingsFrom(map[string]string{})
	if err != nil {
		t.Fatalf("settings: %v", err)
	}
	settings.BlobRoot = t.TempDir()
	settings.SQLitePath = filepath.Join(t.TempDir(), "runs.db")
	settings.Days = 3
	settings.Workers = 2
	return Config{Settings: settings, Scenario: scenarioFixture, AutoSelf: true}
}

func TestParseConfigDefaults(t *testing.T) {
	fs := flag.NewFlagSet("geopandemic", flag.ContinueOnError)
	cfg, err := ParseConfig(fs, nil)
	if err != nil {
		t.Fatalf("parse config: %v", err)
	}
	if cfg.Days != 100 {
		t.Fatalf("expected default days 100, got %d", cfg.Days)
	}
	if cfg.StorageDriver != "memory" || cfg.BlobDriver != "fs" {
		t.Fatalf("unexpected drivers %q %q", cfg.StorageDriver, cfg.BlobDriver)
	}
	if cfg.AutoSelf {
		t.Fatal("auto-self should default to false")
	}
}

func TestParseConfigFlagsOverrideEnv(t *testing.T) {
	t.Setenv("GEOPANDEMIC_DAYS", "7")
	t.Setenv("GEOPANDEMIC_SCENARIO", "env.json")
	t.Setenv("GEOPANDEMIC_EXPORT", "csv")

	fs := flag.NewFlagSet("geopandemic", flag.ContinueOnError)
	cfg, err := ParseConfig(fs, []string{"-days", "3", "-export", "png,json", "-auto-self"})
	if err != nil {
		t.Fatalf("parse config: %v", err)
	}
	if cfg.Days != 3 {
		t.Fatalf("flag should override env days, got %d", cfg.Days)
	}
	if cfg.Scenario != "env.json" {
		t.Fatalf("env scenario should survive, got %q", cfg.Scenario)
	}
	if cfg.Export != "png,json" || !cfg.AutoSelf {
		t.Fatalf("unexpected config %+v", cfg)
	}
}

func TestParseConfigRejectsBadEnv(t *testing.T) {
	t.Setenv("GEOPANDEMIC_DAYS", "many")
	fs := flag.NewFlagSet("geopandemic", flag.ContinueOnError)
	if _, err := ParseConfig(fs, nil); err == nil {
		t.Fatal("expected env parse error")
	}
}

func TestRunRequiresScenario(t *testing.T) {
	cfg := baseConfig(t)
	cfg.Scenario = ""
	if err := Run(context.Background(), cfg, nil, nil); err == nil || !strings.Contains(err.Error(), "scenario path is required") {
		t.Fatalf("expected missing scenario error, got %v", err)
	}
}

func TestRunRejectsBadInputs(t *testing.T) {
	cfg := baseConfig(t)
	cfg.Days = -1
	if err := Run(context.Background(), cfg, nil, nil); err == nil {
		t.Fatal("expected negative days error")
	}
	cfg = baseConfig(t)
	cfg.Export = "gif"
	if err := Run(context.Background(), cfg, nil, nil); err == nil {
		t.Fatal("expected format error")
	}
}

func TestRunFailsWithoutSelfNeighbor(t *testing.T) {
	cfg := baseConfig(t)
	cfg.AutoSelf = false
	err := Run(context.Background(), cfg, nil, nil)
	if !errors.Is(err, domain.ErrMissingSelfVicinity) {
		t.Fatalf("expected missing self vicinity, got %v", err)
	}
}

func TestRunPrintsDailySummaryAndExports(t *testing.T) {
	cfg := baseConfig(t)
	cfg.Export = "csv,log"
	var out, errOut bytes.Buffer
	if err := Run(context.Background(), cfg, &out, &errOut); err != nil {
		t.Fatalf("run: %v\n%s", err, errOut.String())
	}
	text := out.String()
	for _, want := range []string{
		"scenario two_cells, 2 cells, 3 days",
		"day 0: population 6,000 ",
		"day 3: population",
		"exported csv",
		"exported log",
	} {
		if !strings.Contains(text, want) {
			t.Fatalf("output missing %q:\n%s", want, text)
		}
	}
	if !strings.Contains(errOut.String(), "step: 3 calls (0 failed)") || !strings.Contains(errOut.String(), "simulated 3 days, 2.0 cell updates per day") {
		t.Fatalf("expected step timings in log:\n%s", errOut.String())
	}

	var csvs []string
	err := filepath.WalkDir(cfg.BlobRoot, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if filepath.Base(path) == "reports.csv" {
			csvs = append(csvs, path)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("walk artifacts: %v", err)
	}
	if len(csvs) != 1 {
		t.Fatalf("expected one csv artifact, got %v", csvs)
	}
	data, err := os.ReadFile(csvs[0])
	if err != nil {
		t.Fatalf("read csv: %v", err)
	}
	// header plus 2 cells for days 0..3
	if lines := strings.Count(strings.TrimSpace(string(data)), "\n") + 1; lines != 9 {
		t.Fatalf("expected 9 csv lines, got %d", lines)
	}
}

func TestRunPersistsToSQLiteAndTraces(t *testing.T) {
	cfg := baseConfig(t)
	cfg.StorageDriver = "sqlite"
	cfg.Quiet = true
	cfg.TraceFile = filepath.Join(t.TempDir(), "trace.jsonl")
	var out bytes.Buffer
	if err := Run(context.Background(), cfg, &out, nil); err != nil {
		t.Fatalf("run: %v", err)
	}
	if strings.Contains(out.String(), "day 1:") {
		t.Fatalf("quiet run should not print summaries:\n%s", out.String())
	}

	store, err := sqlite.NewStore(context.Background(), cfg.SQLitePath)
	if err != nil {
		t.Fatalf("reopen sqlite: %v", err)
	}
	defer func() { _ = store.Close() }()
	runs, err := store.ListRuns(context.Background())
	if err != nil || len(runs) != 1 {
		t.Fatalf("expected one run, got %v (%v)", runs, err)
	}
	if runs[0].Scenario != "two_cells" || runs[0].Cells != 2 {
		t.Fatalf("unexpected run %+v", runs[0])
	}
	reps, err := store.ListReports(context.Background(), runs[0].ID)
	if err != nil {
		t.Fatalf("list reports: %v", err)
	}
	if len(reps) != 8 {
		t.Fatalf("expected 8 reports, got %d", len(reps))
	}

	raw, err := os.ReadFile(cfg.TraceFile)
	if err != nil {
		t.Fatalf("read trace: %v", err)
	}
	ops := map[string]int{}
	for _, line := range strings.Split(strings.TrimSpace(string(raw)), "\n") {
		var entry core.TraceRecord
		if err := json.Unmarshal([]byte(line), &entry); err != nil {
			t.Fatalf("decode trace line %q: %v", line, err)
		}
		ops[entry.Operation]++
	}
	if ops["run"] != 1 || ops["step"] != 3 || ops["cell_update"] != 6 {
		t.Fatalf("unexpected trace ops %v", ops)
	}
}

func TestRunServesMetrics(t *testing.T) {
	cfg := baseConfig(t)
	cfg.MetricsAddr = "127.0.0.1:0"
	cfg.Quiet = true
	var errOut bytes.Buffer
	if err := Run(context.Background(), cfg, nil, &errOut); err != nil {
		t.Fatalf("run: %v", err)
	}
	if !strings.Contains(errOut.String(), "metrics listening on 127.0.0.1:") {
		t.Fatalf("expected metrics listener log:\n%s", errOut.String())
	}
}

func TestSummarySinkFormatsNumbers(t *testing.T) {
	var buf bytes.Buffer
	sink := SummarySink(&buf)
	reports := []domain.CellReport{
		{CellID: "a", Report: domain.Report{Population: 1500000, Susceptible: 1, Infected: 0}},
		{CellID: "b", Report: domain.Report{Population: 500000, Susceptible: 0.5, Infected: 0.5}},
	}
	if err := sink.Publish(context.Background(), 4, reports); err != nil {
		t.Fatalf("publish: %v", err)
	}
	got := buf.String()
	if !strings.HasPrefix(got, "day 4: population 2,000,000 susceptible 0.8750 exposed 0.0000 infected 0.1250") {
		t.Fatalf("unexpected summary %q", got)
	}
}
