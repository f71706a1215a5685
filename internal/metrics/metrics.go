// Package metrics records upload pipeline outcomes via Prometheus.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Prometheus metrics for the upload pipeline
var (
	// DocumentsTotal counts documents by terminal outcome
	DocumentsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ndr_upload_documents_total",
			Help: "Total number of documents by terminal outcome",
		},
		[]string{"outcome"},
	)

	// BatchDuration tracks end-to-end batch upload latency by outcome
	BatchDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "ndr_upload_batch_duration_seconds",
			Help:    "End-to-end batch upload latency in seconds",
			Buckets: []float64{1, 5, 10, 30, 60, 120, 300, 600},
		},
		[]string{"outcome"},
	)

	// ScanResultsTotal counts virus scan results
	ScanResultsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ndr_upload_scan_results_total",
			Help: "Total number of virus scan results",
		},
		[]string{"result"},
	)

	// RetriesTotal counts per-document upload retry attempts
	RetriesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "ndr_upload_retries_total",
			Help: "Total number of per-document upload retry attempts",
		},
	)
)

// Recorder abstracts metric recording so the orchestrator can be tested
// without touching the default Prometheus registry.
type Recorder interface {
	RecordDocument(outcome string)
	RecordBatchDuration(outcome string, d time.Duration)
	RecordScanResult(result string)
	RecordRetry()
}

// PrometheusRecorder implements Recorder using Prometheus
type PrometheusRecorder struct{}

// NewPrometheusRecorder creates a new Prometheus metrics recorder
func NewPrometheusRecorder() *PrometheusRecorder {
	return &PrometheusRecorder{}
}

// RecordDocument records a document terminal outcome
func (r *PrometheusRecorder) RecordDocument(outcome string) {
	DocumentsTotal.WithLabelValues(outcome).Inc()
}

// RecordBatchDuration records end-to-end batch latency
func (r *PrometheusRecorder) RecordBatchDuration(outcome string, d time.Duration) {
	BatchDuration.WithLabelValues(outcome).Observe(d.Seconds())
}

// RecordScanResult records a virus scan result
func (r *PrometheusRecorder) RecordScanResult(result string) {
	ScanResultsTotal.WithLabelValues(result).Inc()
}

// RecordRetry records a per-document retry attempt
func (r *PrometheusRecorder) RecordRetry() {
	RetriesTotal.Inc()
}

// NopRecorder discards all metrics; used in tests.
type NopRecorder struct{}

// RecordDocument implements Recorder.
func (NopRecorder) RecordDocument(string) {}

// RecordBatchDuration implements Recorder.
func (NopRecorder) RecordBatchDuration(string, time.Duration) {}

// RecordScanResult implements Recorder.
func (NopRecorder) RecordScanResult(string) {}

// RecordRetry implements Recorder.
func (NopRecorder) RecordRetry() {}
