// Package simulate implements the geopandemic command: load a scenario, step
// it for a number of days, persist every cell-day report and optionally
// export artifacts.
package simulate

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"geopandemic/internal/adapters/reports"
	"geopandemic/internal/blob"
	"geopandemic/internal/config"
	"geopandemic/internal/core"
	"geopandemic/internal/engine"
	"geopandemic/internal/infra/persistence"
	"geopandemic/internal/platform/metrics"
	platformotel "geopandemic/internal/platform/otel"
	"geopandemic/pkg/domain"
	"io"
	"log"
	"net"
	"net/http"
	"os"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/google/uuid"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

const serviceName = "geopandemic"

// Config holds the command configuration: process settings plus the run's
// inputs.
type Config struct {
	config.Settings

	Scenario     string `env:"GEOPANDEMIC_SCENARIO"`
	InfectedFile string `env:"GEOPANDEMIC_INFECTED_FILE"`
	Export       string `env:"GEOPANDEMIC_EXPORT"`
	TraceFile    string `env:"GEOPANDEMIC_TRACE_FILE"`
	AutoSelf     bool   `env:"GEOPANDEMIC_AUTO_SELF_NEIGHBOR"`
	Quiet        bool   `env:"GEOPANDEMIC_QUIET"`
}

// ParseConfig reads the environment and then lets flags override it.
func ParseConfig(fs *flag.FlagSet, args []string) (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}

	fs.StringVar(&cfg.Scenario, "scenario", cfg.Scenario, "path to scenario JSON file")
	fs.StringVar(&cfg.InfectedFile, "infected", cfg.InfectedFile, "optional JSON file of per-cell state overrides")
	fs.IntVar(&cfg.Days, "days", cfg.Days, "number of days to simulate")
	fs.IntVar(&cfg.Workers, "workers", cfg.Workers, "concurrent cell updates (0 uses GOMAXPROCS)")
	fs.StringVar(&cfg.Export, "export", cfg.Export, "comma separated export formats (csv,json,log,png,mjpeg)")
	fs.StringVar(&cfg.TraceFile, "trace", cfg.TraceFile, "write JSON spans to this file")
	fs.BoolVar(&cfg.AutoSelf, "auto-self", cfg.AutoSelf, "insert the default self vicinity for cells that omit it")
	fs.StringVar(&cfg.StorageDriver, "storage", cfg.StorageDriver, "report store driver (memory, sqlite, postgres)")
	fs.StringVar(&cfg.BlobDriver, "blob", cfg.BlobDriver, "artifact store driver (fs, s3, memory)")
	fs.StringVar(&cfg.MetricsAddr, "metrics-addr", cfg.MetricsAddr, "serve Prometheus metrics on this address")
	fs.BoolVar(&cfg.Quiet, "quiet", cfg.Quiet, "suppress the per-day summary")
	if err := fs.Parse(args); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Run executes one simulation.
func Run(ctx context.Context, cfg Config, out io.Writer, errOut io.Writer) (err error) {
	if out == nil {
		out = io.Discard
	}
	if errOut == nil {
		errOut = io.Discard
	}
	if cfg.Scenario == "" {
		return errors.New("scenario path is required")
	}
	if cfg.Days < 0 {
		return fmt.Errorf("days must be non-negative, got %d", cfg.Days)
	}
	var formats []reports.Format
	if cfg.Export != "" {
		if formats, err = reports.ParseFormats(cfg.Export); err != nil {
			return err
		}
	}
	logger := log.New(errOut, "", 0)

	sc, err := config.LoadScenarioFile(cfg.Scenario, config.ScenarioOptions{
		AutoSelfNeighbor: cfg.AutoSelf,
		InfectedFile:     cfg.InfectedFile,
	})
	if err != nil {
		return fmt.Errorf("load scenario: %w", err)
	}

	shutdownTracing, err := platformotel.Setup(ctx, serviceName, platformotel.Config{
		Endpoint: cfg.OTelEndpoint,
		Enabled:  cfg.OTelEnabled,
	})
	if err != nil {
		return fmt.Errorf("setup tracing: %w", err)
	}
	defer func() {
		sctx, cancel := context.WithTimeout(context.Background(), cfg.OTelShutdown)
		defer cancel()
		if serr := shutdownTracing(sctx); serr != nil {
			logger.Printf("tracing shutdown: %v", serr)
		}
	}()

	tracer, closeTrace, err := openTracer(cfg)
	if err != nil {
		return err
	}
	defer closeTrace()

	timings := core.NewTimingRecorder("")
	promMetrics := metrics.NewRecorder()
	if cfg.MetricsAddr != "" {
		stop, err := serveMetrics(cfg.MetricsAddr, promMetrics, logger)
		if err != nil {
			return err
		}
		defer stop()
	}

	store, err := persistence.Open(ctx, cfg.Settings)
	if err != nil {
		return fmt.Errorf("open report store: %w", err)
	}
	defer func() {
		if cerr := store.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("close report store: %w", cerr)
		}
	}()

	run, err := store.CreateRun(ctx, domain.Run{ID: uuid.NewString(), Scenario: sc.Name, Cells: len(sc.Cells)})
	if err != nil {
		return err
	}

	sinks := []engine.Sink{reports.StoreSink(store, run.ID)}
	if !cfg.Quiet {
		sinks = append(sinks, SummarySink(out))
	}
	e, err := engine.New(sc.Cells, engine.Options{
		Workers: cfg.Workers,
		Rules:   core.NewDefaultRulesEngine(),
		Metrics: core.MultiMetricsRecorder{timings, promMetrics},
		Tracer:  tracer,
		Logger:  logger,
		Sinks:   sinks,
	})
	if err != nil {
		return err
	}

	fmt.Fprintf(out, "run %s: scenario %s, %d cells, %d days\n", run.ID, sc.Name, len(sc.Cells), cfg.Days)
	if err := e.Run(ctx, cfg.Days); err != nil {
		return fmt.Errorf("run %s: %w", run.ID, err)
	}
	logTimings(logger, timings.Snapshot())

	if len(formats) == 0 {
		return nil
	}
	return export(ctx, cfg, store, run.ID, formats, out, logger)
}

func openTracer(cfg Config) (core.Tracer, func(), error) {
	switch {
	case cfg.TraceFile != "":
		f, err := os.Create(cfg.TraceFile)
		if err != nil {
			return nil, nil, fmt.Errorf("create trace file: %w", err)
		}
		return core.NewJSONTracer(f), func() { _ = f.Close() }, nil
	case cfg.OTelEnabled && cfg.OTelEndpoint != "":
		return platformotel.NewTracer(), func() {}, nil
	default:
		return core.NoopTracer{}, func() {}, nil
	}
}

func serveMetrics(addr string, rec *metrics.Recorder, logger *log.Logger) (func(), error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("listen metrics: %w", err)
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", rec.Handler())
	srv := &http.Server{Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Printf("metrics server: %v", err)
		}
	}()
	logger.Printf("metrics listening on %s", ln.Addr())
	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctx)
	}, nil
}

func export(ctx context.Context, cfg Config, store domain.ReportStore, runID string, formats []reports.Format, out io.Writer, logger *log.Logger) error {
	blobs, err := blob.Open(ctx, cfg.Settings)
	if err != nil {
		return fmt.Errorf("open artifact store: %w", err)
	}
	worker := reports.NewWorker(store, blobs, reports.Options{QueueSize: cfg.ExportQueueSize, Logger: logger})
	worker.Start()
	defer func() {
		sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = worker.Stop(sctx)
	}()

	queued, err := worker.EnqueueExport(ctx, reports.ExportInput{RunID: runID, Formats: formats})
	if err != nil {
		return fmt.Errorf("enqueue export: %w", err)
	}
	record, err := worker.Wait(ctx, queued.ID)
	if err != nil {
		return fmt.Errorf("wait export: %w", err)
	}
	if record.Status != reports.ExportStatusSucceeded {
		return fmt.Errorf("export %s: %s", record.ID, record.Error)
	}
	for _, a := range record.Artifacts {
		location := a.URL
		if location == "" {
			location = a.Key
		}
		fmt.Fprintf(out, "exported %s (%d bytes) to %s\n", a.Format, a.SizeBytes, location)
	}
	return nil
}

// SummarySink prints the population-weighted aggregate of every published day.
func SummarySink(out io.Writer) engine.Sink {
	p := message.NewPrinter(language.English)
	return engine.SinkFunc(func(_ context.Context, day int, cells []domain.CellReport) error {
		s := engine.Summarize(cells)
		_, err := p.Fprintf(out,
			"day %d: population %.0f susceptible %.4f exposed %.4f infected %.4f recovered %.4f dose1 %.4f dose2 %.4f fatalities %.4f\n",
			day, s.Population, s.Susceptible, s.Exposed, s.Infected, s.Recovered, s.Dose1, s.Dose2, s.Fatalities)
		return err
	})
}

func logTimings(logger *log.Logger, snap core.TimingSnapshot) {
	for _, name := range []string{core.OpStep, core.OpCellUpdate} {
		op := snap.Operations[name]
		if op.Calls == 0 {
			continue
		}
		logger.Printf("%s: %d calls (%d failed), %.2fms mean, %.2fms slowest", name, op.Calls, op.Failures, op.MeanMS(), op.SlowestMS)
	}
	if snap.DaysSimulated > 0 {
		logger.Printf("simulated %d days, %.1f cell updates per day", snap.DaysSimulated, snap.CellUpdatesPerDay())
	}
}
