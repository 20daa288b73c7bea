// Package metrics provides Prometheus metrics for the signature monitor.
// Scrape these at /metrics for Grafana dashboards and alerting.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// HTTP Metrics
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "skg_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "skg_http_request_duration_seconds",
			Help:    "HTTP request latency in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	// Pipeline run metrics
	RunsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "skg_runs_total",
			Help: "Total pipeline runs by outcome",
		},
		[]string{"outcome"}, // "success", "failure", "skipped"
	)

	RunDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "skg_run_duration_seconds",
			Help:    "Time taken by one fetch-compute-store cycle",
			Buckets: []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		},
	)

	ConsecutiveErrors = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "skg_consecutive_errors",
			Help: "Consecutive failed runs since the last success",
		},
	)

	// Campaign metrics
	SignatureCount = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "skg_signature_count",
			Help: "Most recently sampled signature count",
		},
	)

	SignatureGoal = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "skg_signature_goal",
			Help: "Campaign signature goal",
		},
	)

	ProgressPercent = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "skg_progress_percent",
			Help: "Signatures as a percentage of the goal",
		},
	)

	// Store metrics
	StoreConflictsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "skg_store_conflicts_total",
			Help: "Optimistic-concurrency conflicts seen by the store",
		},
	)

	HistoryLength = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "skg_history_length",
			Help: "Number of records in the stored history sequence",
		},
	)
)
