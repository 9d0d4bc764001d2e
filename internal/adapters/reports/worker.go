// Package reports renders the cell-day reports of a run into artifacts (CSV,
// JSON, message log, chart, animation) and stores them in the blob store.
// Exports run asynchronously on a worker.
package reports

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"geopandemic/internal/blob"
	"geopandemic/pkg/domain"
	"io"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// ExportStatus describes the lifecycle stage of an export request.
type ExportStatus string

const (
	ExportStatusQueued    ExportStatus = "queued"
	ExportStatusRunning   ExportStatus = "running"
	ExportStatusSucceeded ExportStatus = "succeeded"
	ExportStatusFailed    ExportStatus = "failed"
)

const defaultQueueSize = 16

// ErrQueueFull is returned by EnqueueExport when the worker is saturated.
var ErrQueueFull = errors.New("export queue full")

// ExportArtifact captures a stored artifact.
type ExportArtifact struct {
	Key         string    `json:"key"`
	Format      Format    `json:"format"`
	ContentType string    `json:"content_type"`
	SizeBytes   int64     `json:"size_bytes"`
	URL         string    `json:"url,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

// ExportRecord tracks an export request and its artifacts.
type ExportRecord struct {
	ID          string           `json:"id"`
	RunID       string           `json:"run_id"`
	Formats     []Format         `json:"formats"`
	Status      ExportStatus     `json:"status"`
	Error       string           `json:"error,omitempty"`
	Artifacts   []ExportArtifact `json:"artifacts,omitempty"`
	CreatedAt   time.Time        `json:"created_at"`
	UpdatedAt   time.Time        `json:"updated_at"`
	CompletedAt *time.Time       `json:"completed_at,omitempty"`
}

// Done reports whether the export reached a terminal status.
func (r ExportRecord) Done() bool {
	return r.Status == ExportStatusSucceeded || r.Status == ExportStatusFailed
}

func (r ExportRecord) copy() ExportRecord {
	dup := r
	dup.Formats = append([]Format(nil), r.Formats...)
	dup.Artifacts = append([]ExportArtifact(nil), r.Artifacts...)
	return dup
}

// ExportInput is an enqueue request.
type ExportInput struct {
	RunID   string
	Formats []Format
}

// Options configures a Worker.
type Options struct {
	QueueSize int
	Logger    *log.Logger
}

// Worker executes exports asynchronously.
type Worker struct {
	reports domain.ReportStore
	blobs   blob.Store
	logger  *log.Logger

	queue chan string
	mu    sync.RWMutex
	jobs  map[string]*ExportRecord
	done  map[string]chan struct{}

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewWorker constructs an export worker reading from reports and writing to
// blobs.
func NewWorker(reports domain.ReportStore, blobs blob.Store, opts Options) *Worker {
	size := opts.QueueSize
	if size <= 0 {
		size = defaultQueueSize
	}
	logger := opts.Logger
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Worker{
		reports: reports,
		blobs:   blobs,
		logger:  logger,
		queue:   make(chan string, size),
		jobs:    make(map[string]*ExportRecord),
		done:    make(map[string]chan struct{}),
		ctx:     ctx,
		cancel:  cancel,
	}
}

// Start begins processing export requests.
func (w *Worker) Start() {
	w.wg.Add(1)
	go w.loop()
}

// Stop signals the worker to halt and waits for it, bounded by ctx.
func (w *Worker) Stop(ctx context.Context) error {
	w.cancel()
	finished := make(chan struct{})
	go func() {
		w.wg.Wait()
		close(finished)
	}()
	select {
	case <-finished:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (w *Worker) loop() {
	defer w.wg.Done()
	for {
		select {
		case <-w.ctx.Done():
			return
		case id := <-w.queue:
			w.process(id)
		}
	}
}

// EnqueueExport schedules an export of a run and returns the queued record.
func (w *Worker) EnqueueExport(_ context.Context, input ExportInput) (ExportRecord, error) {
	if strings.TrimSpace(input.RunID) == "" {
		return ExportRecord{}, fmt.Errorf("run id required")
	}
	formats := make([]Format, 0, len(input.Formats))
	seen := make(map[Format]struct{})
	for _, f := range input.Formats {
		if !f.Valid() {
			return ExportRecord{}, fmt.Errorf("unsupported export format %q", f)
		}
		if _, dup := seen[f]; dup {
			continue
		}
		seen[f] = struct{}{}
		formats = append(formats, f)
	}
	if len(formats) == 0 {
		formats = []Format{FormatCSV, FormatJSON}
	}

	now := time.Now().UTC()
	record := ExportRecord{
		ID:        uuid.NewString(),
		RunID:     input.RunID,
		Formats:   formats,
		Status:    ExportStatusQueued,
		CreatedAt: now,
		UpdatedAt: now,
	}
	w.mu.Lock()
	w.jobs[record.ID] = &record
	w.done[record.ID] = make(chan struct{})
	snapshot := record.copy()
	w.mu.Unlock()

	select {
	case w.queue <- record.ID:
	default:
		w.fail(record.ID, ErrQueueFull.Error())
		return ExportRecord{}, ErrQueueFull
	}
	return snapshot, nil
}

// GetExport returns a snapshot of the export record.
func (w *Worker) GetExport(id string) (ExportRecord, bool) {
	w.mu.RLock()
	defer w.mu.RUnlock()
	record, ok := w.jobs[id]
	if !ok {
		return ExportRecord{}, false
	}
	return record.copy(), true
}

// Wait blocks until the export finishes or ctx is done.
func (w *Worker) Wait(ctx context.Context, id string) (ExportRecord, error) {
	w.mu.RLock()
	ch, ok := w.done[id]
	w.mu.RUnlock()
	if !ok {
		return ExportRecord{}, fmt.Errorf("export %s not found", id)
	}
	select {
	case <-ch:
		record, _ := w.GetExport(id)
		return record, nil
	case <-ctx.Done():
		return ExportRecord{}, ctx.Err()
	}
}

func (w *Worker) process(id string) {
	record, ok := w.GetExport(id)
	if !ok {
		return
	}
	w.updateStatus(id, ExportStatusRunning)

	reports, err := w.reports.ListReports(w.ctx, record.RunID)
	if err != nil {
		w.fail(id, fmt.Sprintf("load reports: %v", err))
		return
	}
	if len(reports) == 0 {
		w.fail(id, fmt.Sprintf("run %s has no reports", record.RunID))
		return
	}
	days := groupByDay(reports)

	artifacts := make([]ExportArtifact, 0, len(record.Formats))
	for _, f := range record.Formats {
		payload, err := render(f, record.RunID, days)
		if err != nil {
			w.fail(id, err.Error())
			return
		}
		key := ArtifactKey(record.RunID, f)
		info, err := w.blobs.Put(w.ctx, key, bytes.NewReader(payload), blob.PutOptions{
			ContentType: f.ContentType(),
			Metadata:    map[string]string{"run": record.RunID, "format": string(f)},
			Overwrite:   true,
		})
		if err != nil {
			w.fail(id, fmt.Sprintf("store artifact failed: %v", err))
			return
		}
		artifacts = append(artifacts, ExportArtifact{
			Key:         key,
			Format:      f,
			ContentType: f.ContentType(),
			SizeBytes:   int64(len(payload)),
			URL:         info.URL,
			CreatedAt:   info.LastModified,
		})
		w.logger.Printf("export %s: stored %s (%d bytes)", id, key, len(payload))
	}
	w.complete(id, artifacts)
}

func (w *Worker) updateStatus(id string, status ExportStatus) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if record, ok := w.jobs[id]; ok {
		record.Status = status
		record.UpdatedAt = time.Now().UTC()
	}
}

func (w *Worker) complete(id string, artifacts []ExportArtifact) {
	w.finish(id, func(r *ExportRecord) {
		r.Status = ExportStatusSucceeded
		r.Error = ""
		r.Artifacts = artifacts
	})
}

func (w *Worker) fail(id, reason string) {
	w.logger.Printf("export %s failed: %s", id, reason)
	w.finish(id, func(r *ExportRecord) {
		r.Status = ExportStatusFailed
		r.Error = reason
	})
}

func (w *Worker) finish(id string, apply func(*ExportRecord)) {
	now := time.Now().UTC()
	w.mu.Lock()
	defer w.mu.Unlock()
	record, ok := w.jobs[id]
	if !ok || record.Done() {
		return
	}
	apply(record)
	record.UpdatedAt = now
	record.CompletedAt = &now
	close(w.done[id])
}
