// Package obsmetrics exposes the Prometheus metrics the orchestrator
// updates as it runs a dataset through detection ingest, tracking,
// mapping, quality filtering and aggregation.
//
// Grounded on DimaJoyti-go-coffee's internal/object-detection/monitoring
// package: a single Metrics struct of promauto-registered vecs/gauges.
// New registers against the Registerer it is given, so tests use a fresh
// registry each; Default builds the process-wide instance once via
// sync.Once.
package obsmetrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds every collector the pipeline touches.
type Metrics struct {
	DetectionsIngestedTotal *prometheus.CounterVec
	TracksFinalizedTotal    *prometheus.CounterVec
	ActiveTracks            prometheus.Gauge

	EventsMappedTotal   *prometheus.CounterVec
	EventsRejectedTotal *prometheus.CounterVec
	EventsForbiddenTotal *prometheus.CounterVec

	CorrectionsAppliedTotal *prometheus.CounterVec

	RebuildDuration  *prometheus.HistogramVec
	RebuildsTotal    *prometheus.CounterVec
	RebuildsInFlight prometheus.Gauge

	LockWaitDuration *prometheus.HistogramVec
}

var (
	instance *Metrics
	once     sync.Once
)

// New builds and registers every collector against reg (use
// prometheus.DefaultRegisterer in production, a fresh prometheus.NewRegistry
// per test to avoid cross-test collisions).
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		DetectionsIngestedTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "aforo_detections_ingested_total",
				Help: "Raw detections consumed from the repository, by canonical class.",
			},
			[]string{"dataset_id", "class"},
		),
		TracksFinalizedTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "aforo_tracks_finalized_total",
				Help: "Tracker hypotheses that reached finalization, by outcome.",
			},
			[]string{"dataset_id", "outcome"}, // outcome: kept|unsegmented|unmapped
		),
		ActiveTracks: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "aforo_active_tracks",
				Help: "Tracker hypotheses currently live (not yet retired).",
			},
		),
		EventsMappedTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "aforo_events_mapped_total",
				Help: "Segmented movements successfully mapped to a RILSA code.",
			},
			[]string{"dataset_id", "rilsa_code"},
		),
		EventsRejectedTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "aforo_events_rejected_total",
				Help: "Movements dropped by the quality filter layer, by reject reason.",
			},
			[]string{"dataset_id", "reason"},
		),
		EventsForbiddenTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "aforo_events_forbidden_total",
				Help: "Mapped events tagged against a configured forbidden movement.",
			},
			[]string{"dataset_id", "rilsa_code"},
		),
		CorrectionsAppliedTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "aforo_corrections_applied_total",
				Help: "Manual corrections applied by the correction engine, by outcome.",
			},
			[]string{"dataset_id", "outcome"}, // outcome: applied|dropped_unmappable
		),
		RebuildDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "aforo_rebuild_duration_seconds",
				Help:    "Wall-clock duration of a full dataset rebuild.",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"dataset_id"},
		),
		RebuildsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "aforo_rebuilds_total",
				Help: "Completed dataset rebuilds, by outcome.",
			},
			[]string{"dataset_id", "outcome"}, // outcome: ok|error|canceled
		),
		RebuildsInFlight: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "aforo_rebuilds_in_flight",
				Help: "Dataset rebuilds currently executing across this worker.",
			},
		),
		LockWaitDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "aforo_lock_wait_duration_seconds",
				Help:    "Time spent waiting to acquire a dataset's advisory lock.",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"dataset_id"},
		),
	}
}

// Default returns the process-wide Metrics registered against
// prometheus.DefaultRegisterer, building it once.
func Default() *Metrics {
	once.Do(func() {
		instance = New(prometheus.DefaultRegisterer)
	})
	return instance
}
