// Package metrics exposes prometheus instrumentation for editing sessions.
//
// All methods are safe on a nil *Metrics, so callers that run without
// metrics pass nil instead of branching.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "cfgedit"

const historySubsystem = "history"

// Edit results.
const (
	EditRecorded   = "recorded"
	EditRejected   = "rejected"
	EditUnrecorded = "unrecorded"
	EditFailed     = "failed"
)

// Metrics holds the history instrumentation of one process.
type Metrics struct {
	registry *prometheus.Registry

	// EditsTotal counts edits by result.
	// Labels: result (recorded, rejected, unrecorded, failed)
	EditsTotal *prometheus.CounterVec

	// NavigationsTotal counts undo and redo requests.
	// Labels: direction (undo, redo), status (success, error)
	NavigationsTotal *prometheus.CounterVec

	// PersistFailuresTotal counts artifact I/O failures.
	// Labels: op (create, restore, release, sweep)
	PersistFailuresTotal *prometheus.CounterVec

	// ReleasedTotal counts released snapshots.
	ReleasedTotal prometheus.Counter

	// SweptTotal counts stranded artifacts removed.
	SweptTotal prometheus.Counter

	// Depth is the number of history entries.
	Depth prometheus.Gauge

	// Cursor is the index of the active entry (-1 when empty).
	Cursor prometheus.Gauge

	// SnapshotSeconds measures snapshot creation time.
	SnapshotSeconds prometheus.Histogram
}

// New registers the metrics on a fresh registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,
		EditsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: historySubsystem,
			Name:      "edits_total",
			Help:      "Edits by result",
		}, []string{"result"}),
		NavigationsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: historySubsystem,
			Name:      "navigations_total",
			Help:      "Undo and redo requests by direction and status",
		}, []string{"direction", "status"}),
		PersistFailuresTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: historySubsystem,
			Name:      "persist_failures_total",
			Help:      "Snapshot artifact I/O failures by operation",
		}, []string{"op"}),
		ReleasedTotal: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: historySubsystem,
			Name:      "released_total",
			Help:      "Snapshots released",
		}),
		SweptTotal: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: historySubsystem,
			Name:      "swept_artifacts_total",
			Help:      "Stranded artifacts removed",
		}),
		Depth: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: historySubsystem,
			Name:      "depth",
			Help:      "Number of history entries",
		}),
		Cursor: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: historySubsystem,
			Name:      "cursor",
			Help:      "Index of the active history entry",
		}),
		SnapshotSeconds: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: historySubsystem,
			Name:      "snapshot_seconds",
			Help:      "Time to write one snapshot",
			Buckets:   []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5},
		}),
	}
}

// Registry returns the registry holding the metrics.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// Handler serves the metrics in the prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Edit records the result of one edit.
func (m *Metrics) Edit(result string) {
	if m == nil {
		return
	}
	m.EditsTotal.WithLabelValues(result).Inc()
}

// Navigate records an undo or redo request.
func (m *Metrics) Navigate(direction string, err error) {
	if m == nil {
		return
	}
	status := "success"
	if err != nil {
		status = "error"
	}
	m.NavigationsTotal.WithLabelValues(direction, status).Inc()
}

// PersistFailure records a failed artifact operation.
func (m *Metrics) PersistFailure(op string) {
	if m == nil {
		return
	}
	m.PersistFailuresTotal.WithLabelValues(op).Inc()
}

// Released records a snapshot release attempt.
func (m *Metrics) Released(err error) {
	if m == nil {
		return
	}
	if err != nil {
		m.PersistFailure("release")
		return
	}
	m.ReleasedTotal.Inc()
}

// Swept records removed stranded artifacts.
func (m *Metrics) Swept(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.SweptTotal.Add(float64(n))
}

// Position updates the depth and cursor gauges.
func (m *Metrics) Position(depth, cursor int) {
	if m == nil {
		return
	}
	m.Depth.Set(float64(depth))
	m.Cursor.Set(float64(cursor))
}

// ObserveSnapshot records the duration of a snapshot write started at start.
func (m *Metrics) ObserveSnapshot(start time.Time) {
	if m == nil {
		return
	}
	m.SnapshotSeconds.Observe(time.Since(start).Seconds())
}
