package metrics

import (
	"context"
	"errors"
	"geopandemic/internal/core"
	"io"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestRecorderCountsOutcomes(t *testing.T) {
	r := NewRecorder()
	ctx := context.Background()
	r.Observe(ctx, "step", true, 5*time.Millisecond)
	r.Observe(ctx, "step", true, 7*time.Millisecond)
	r.Observe(ctx, "step", false, time.Millisecond)

	if got := testutil.ToFloat64(r.operations.WithLabelValues("step", "success")); got != 2 {
		t.Fatalf("expected 2 successes, got %v", got)
	}
	if got := testutil.ToFloat64(r.operations.WithLabelValues("step", "error")); got != 1 {
		t.Fatalf("expected 1 error, got %v", got)
	}
	if n := testutil.CollectAndCount(r.durations); n != 1 {
		t.Fatalf("expected one histogram series, got %d", n)
	}
}

func TestRecorderWithInstrument(t *testing.T) {
	r := NewRecorder()
	_ = core.Instrument(context.Background(), r, nil, "cell_update", func(context.Context) error {
		return errors.New("diverged")
	})
	if got := testutil.ToFloat64(r.operations.WithLabelValues("cell_update", "error")); got != 1 {
		t.Fatalf("expected instrumented error to be counted, got %v", got)
	}
}

func TestHandlerServesRegistry(t *testing.T) {
	r := NewRecorder()
	r.Observe(context.Background(), "step", true, time.Millisecond)

	srv := httptest.NewServer(r.Handler())
	defer srv.Close()
	resp, err := srv.Client().Get(srv.URL)
	if err != nil {
		t.Fatalf("get metrics: %v", err)
	}
	defer func() { _ = resp.Body.Close() }()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	text := string(body)
	for _, want := range []string{
		`geopandemic_operations_total{operation="step",outcome="success"} 1`,
		"geopandemic_operation_duration_seconds_bucket",
	} {
		if !strings.Contains(text, want) {
			t.Fatalf("metrics output missing %q:\n%s", want, text)
		}
	}
}
