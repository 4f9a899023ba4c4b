// Package metrics defines the prometheus collectors of the pipeline. All
// collectors are registered on an injected registry.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "ytetl"

// Metrics holds every collector the pipeline and its adapters update.
type Metrics struct {
	FilesProcessed *prometheus.CounterVec
	FileErrors     *prometheus.CounterVec
	RowsRead       *prometheus.CounterVec
	RowsWritten    *prometheus.CounterVec
	RowsRemoved    *prometheus.CounterVec
	ValuesFilled   *prometheus.CounterVec
	Encodings      *prometheus.CounterVec
	ReferenceLoads *prometheus.CounterVec
	StageDuration  *prometheus.HistogramVec
	Runs           prometheus.Counter
	EventsReceived *prometheus.CounterVec
	BytesWritten   prometheus.Counter
}

// New registers the collectors on reg.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		FilesProcessed: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "files_processed_total",
			Help:      "Files handled by the pipeline by outcome",
		}, []string{"status"}), // written, skipped, empty, failed
		FileErrors: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "file_errors_total",
			Help:      "Per-file failures by error kind",
		}, []string{"kind"}),
		RowsRead: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rows_read_total",
			Help:      "Rows decoded from source files",
		}, []string{"country"}),
		RowsWritten: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rows_written_total",
			Help:      "Rows appended to the output dataset",
		}, []string{"country"}),
		RowsRemoved: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rows_removed_total",
			Help:      "Rows removed during cleaning",
		}, []string{"reason"}), // duplicate, missing_required
		ValuesFilled: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "values_filled_total",
			Help:      "Cell values replaced during cleaning",
		}, []string{"kind"}), // numeric, text
		Encodings: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "encodings_total",
			Help:      "Encoding chosen per decoded file",
		}, []string{"encoding", "lossy"}),
		ReferenceLoads: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "reference_loads_total",
			Help:      "Category map lookups by source",
		}, []string{"source"}), // run, cache, store, empty
		StageDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "stage_duration_seconds",
			Help:      "Duration of pipeline stages",
			Buckets:   prometheus.ExponentialBuckets(0.001, 2, 16), // 1ms to ~33s
		}, []string{"stage"}),
		Runs: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "runs_total",
			Help:      "Pipeline invocations",
		}),
		EventsReceived: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "events_received_total",
			Help:      "Trigger events received by transport and outcome",
		}, []string{"transport", "status"}),
		BytesWritten: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "bytes_written_total",
			Help:      "Bytes of parquet appended to the output dataset",
		}),
	}
}

// ObserveStage records the time since start for a stage.
func (m *Metrics) ObserveStage(stage string, start time.Time) {
	m.StageDuration.WithLabelValues(stage).Observe(time.Since(start).Seconds())
}
