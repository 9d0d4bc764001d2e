// Package metrics exposes simulation operation metrics to Prometheus.
package metrics

import (
	"context"
	"geopandemic/internal/core"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "geopandemic"

// Recorder implements core.MetricsRecorder on a private registry.
type Recorder struct {
	registry   *prometheus.Registry
	durations  *prometheus.HistogramVec
	operations *prometheus.CounterVec
}

var _ core.MetricsRecorder = (*Recorder)(nil)

// NewRecorder registers the operation collectors on a fresh registry.
func NewRecorder() *Recorder {
	r := &Recorder{
		registry: prometheus.NewRegistry(),
		durations: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "operation_duration_seconds",
			Help:      "Duration of simulation operations.",
			Buckets:   prometheus.ExponentialBuckets(0.0001, 4, 10),
		}, []string{"operation"}),
		operations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "operations_total",
			Help:      "Simulation operations by outcome.",
		}, []string{"operation", "outcome"}),
	}
	r.registry.MustRegister(r.durations, r.operations)
	return r
}

// Observe implements core.MetricsRecorder.
func (r *Recorder) Observe(_ context.Context, operation string, success bool, duration time.Duration) {
	outcome := "success"
	if !success {
		outcome = "error"
	}
	r.durations.WithLabelValues(operation).Observe(duration.Seconds())
	r.operations.WithLabelValues(operation, outcome).Inc()
}

// Registry returns the registry holding the recorder's collectors.
func (r *Recorder) Registry() *prometheus.Registry { return r.registry }

// Handler serves the registry in the Prometheus exposition format.
func (r *Recorder) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{})
}
