// Package metrics holds the pipeline's Prometheus instruments. All methods
// are nil-safe so the orchestrator can run without metrics wired, as in
// tests.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Pipeline instruments one orchestrator.
type Pipeline struct {
	runsTotal     *prometheus.CounterVec
	stageDuration *prometheus.HistogramVec
	stageRows     *prometheus.CounterVec
	anomalies     *prometheus.CounterVec
	ingestFiles   *prometheus.CounterVec
}

// New creates and registers the pipeline metrics on the default registry.
func New() *Pipeline {
	return &Pipeline{
		runsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "fluxmap_pipeline_runs_total",
			Help: "Completed pipeline runs by final status.",
		}, []string{"status"}),
		stageDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "fluxmap_stage_duration_seconds",
			Help:    "Wall time per pipeline stage.",
			Buckets: prometheus.DefBuckets,
		}, []string{"stage"}),
		stageRows: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "fluxmap_stage_rows",
			Help: "Rows entering and leaving each stage.",
		}, []string{"stage", "direction"}),
		anomalies: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "fluxmap_anomalies_total",
			Help: "Anomalous region-days detected, by severity.",
		}, []string{"severity"}),
		ingestFiles: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "fluxmap_ingest_files_total",
			Help: "Raw files seen by ingestion, by kind and outcome.",
		}, []string{"kind", "result"}),
	}
}

// ObserveRun records one finished run.
func (m *Pipeline) ObserveRun(status string) {
	if m == nil {
		return
	}
	m.runsTotal.WithLabelValues(status).Inc()
}

// ObserveStage records one stage execution.
func (m *Pipeline) ObserveStage(stage string, rowsIn, rowsOut int, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.stageDuration.WithLabelValues(stage).Observe(elapsed.Seconds())
	m.stageRows.WithLabelValues(stage, "in").Add(float64(rowsIn))
	m.stageRows.WithLabelValues(stage, "out").Add(float64(rowsOut))
}

// ObserveAnomaly counts one flagged region-day.
func (m *Pipeline) ObserveAnomaly(severity string) {
	if m == nil {
		return
	}
	m.anomalies.WithLabelValues(severity).Inc()
}

// ObserveIngestFile counts one raw file outcome.
func (m *Pipeline) ObserveIngestFile(kind, result string) {
	if m == nil {
		return
	}
	m.ingestFiles.WithLabelValues(kind, result).Inc()
}
