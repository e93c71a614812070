// Package observability provides Prometheus metrics for monitoring.
package observability

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for the application.
type Metrics struct {
	// Ingestion metrics
	CapturesIngested prometheus.Counter
	CapturesReplayed prometheus.Counter
	IngestErrors     *prometheus.CounterVec
	FeedBufferSize   prometheus.Gauge

	// Normalization metrics
	BatchRunsTotal   *prometheus.CounterVec
	BatchRunDuration prometheus.Histogram
	ListingsReceived prometheus.Counter
	RecordsAccepted  prometheus.Counter
	RecordsRejected  *prometheus.CounterVec

	// Reporting metrics
	ReportsGenerated prometheus.Counter

	// Verification metrics
	ReplaysTotal *prometheus.CounterVec

	// Health metrics
	LastSuccessfulIngestion prometheus.Gauge
	LastSuccessfulRun       prometheus.Gauge
}

// NewMetrics creates a new Metrics instance with all metrics registered.
func NewMetrics(namespace string) *Metrics {
	if namespace == "" {
		namespace = "comic_price_lab"
	}

	return &Metrics{
		// Ingestion metrics
		CapturesIngested: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ingestion",
			Name:      "captures_ingested_total",
			Help:      "Total number of raw listing captures stored",
		}),
		CapturesReplayed: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ingestion",
			Name:      "captures_replayed_total",
			Help:      "Total number of captures skipped as already seen",
		}),
		IngestErrors: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ingestion",
			Name:      "errors_total",
			Help:      "Total number of ingestion errors by source and type",
		}, []string{"source", "error_type"}),
		FeedBufferSize: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "ingestion",
			Name:      "feed_buffer_size",
			Help:      "Current number of captures buffered from the live feed",
		}),

		// Normalization metrics
		BatchRunsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "normalization",
			Name:      "batch_runs_total",
			Help:      "Total number of batch runs by status",
		}, []string{"status"}),
		BatchRunDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "normalization",
			Name:      "batch_run_duration_seconds",
			Help:      "Batch run execution duration in seconds",
			Buckets:   []float64{1, 5, 10, 30, 60, 120, 300, 600},
		}),
		ListingsReceived: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "normalization",
			Name:      "listings_received_total",
			Help:      "Total number of raw listings fed into batch runs",
		}),
		RecordsAccepted: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "normalization",
			Name:      "records_accepted_total",
			Help:      "Total number of normalized records produced",
		}),
		RecordsRejected: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "normalization",
			Name:      "records_rejected_total",
			Help:      "Total number of rejected records by taxonomy reason",
		}, []string{"reason"}),

		// Reporting metrics
		ReportsGenerated: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "reporting",
			Name:      "reports_generated_total",
			Help:      "Total number of batch run reports generated",
		}),

		// Verification metrics
		ReplaysTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "verification",
			Name:      "replays_total",
			Help:      "Total number of replay verifications by outcome",
		}, []string{"outcome"}),

		// Health metrics
		LastSuccessfulIngestion: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "health",
			Name:      "last_successful_ingestion_timestamp",
			Help:      "Unix timestamp of last successful ingestion",
		}),
		LastSuccessfulRun: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "health",
			Name:      "last_successful_run_timestamp",
			Help:      "Unix timestamp of last successful batch run",
		}),
	}
}

// Handler returns an HTTP handler for the /metrics endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}

// DefaultMetrics is the default metrics instance.
var DefaultMetrics = NewMetrics("")

// RecordCapturesIngested adds to the captures ingested counter.
func RecordCapturesIngested(n int) {
	DefaultMetrics.CapturesIngested.Add(float64(n))
}

// RecordCaptureReplayed increments the replayed captures counter.
func RecordCaptureReplayed() {
	DefaultMetrics.CapturesReplayed.Inc()
}

// RecordIngestError records one ingestion error.
func RecordIngestError(source, errorType string) {
	DefaultMetrics.IngestErrors.WithLabelValues(source, errorType).Inc()
}

// UpdateFeedBufferSize updates the live feed buffer gauge.
func UpdateFeedBufferSize(n int) {
	DefaultMetrics.FeedBufferSize.Set(float64(n))
}

// RecordBatchRun records one batch run outcome and duration.
func RecordBatchRun(status string, durationSeconds float64) {
	DefaultMetrics.BatchRunsTotal.WithLabelValues(status).Inc()
	DefaultMetrics.BatchRunDuration.Observe(durationSeconds)
}

// RecordBatchCounts records the volume of one batch run.
func RecordBatchCounts(received, accepted int) {
	DefaultMetrics.ListingsReceived.Add(float64(received))
	DefaultMetrics.RecordsAccepted.Add(float64(accepted))
}

// RecordRejections adds to the per-reason rejection counter.
func RecordRejections(reason string, n int) {
	DefaultMetrics.RecordsRejected.WithLabelValues(reason).Add(float64(n))
}

// RecordReportGenerated increments the reports generated counter.
func RecordReportGenerated() {
	DefaultMetrics.ReportsGenerated.Inc()
}

// RecordReplay records one replay verification outcome.
func RecordReplay(outcome string) {
	DefaultMetrics.ReplaysTotal.WithLabelValues(outcome).Inc()
}

// MarkIngestionSuccess sets the last successful ingestion timestamp gauge.
func MarkIngestionSuccess() {
	DefaultMetrics.LastSuccessfulIngestion.SetToCurrentTime()
}

// MarkRunSuccess sets the last successful batch run timestamp gauge.
func MarkRunSuccess() {
	DefaultMetrics.LastSuccessfulRun.SetToCurrentTime()
}
