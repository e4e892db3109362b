// SOC Analyst Workbench - Proxy Log Ingestion and Threat Pattern Detection
// Copyright 2026 ToyDingo
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/ToyDingo/SOC-Analyst-Workbench

// Package metrics provides Prometheus instrumentation for the analytical
// pipeline: ingest throughput, rollup rebuild cost, detector timings, and
// API request counters. Collectors register on the default registry via
// promauto and are exposed on /metrics.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Ingest metrics
	EventsInserted = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "ingest_events_inserted_total",
			Help: "Total number of normalized events inserted",
		},
	)

	BadLines = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "ingest_bad_lines_total",
			Help: "Total number of malformed input lines skipped",
		},
	)

	BatchFlushDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "ingest_batch_flush_duration_seconds",
			Help:    "Duration of event batch inserts in seconds",
			Buckets: prometheus.DefBuckets,
		},
	)

	IngestRuns = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ingest_runs_total",
			Help: "Total number of ingest runs by terminal status",
		},
		[]string{"status"}, // "done", "failed"
	)

	// Rollup / feature metrics
	RollupRowsInserted = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "rollup_rows_inserted_total",
			Help: "Total number of minute rollup rows inserted across rebuilds",
		},
	)

	RollupRebuildDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "rollup_rebuild_duration_seconds",
			Help:    "Duration of full minute-rollup rebuilds in seconds",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
		},
	)

	FeatureComputeDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "features_compute_duration_seconds",
			Help:    "Duration of upload feature computation in seconds",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
		},
	)

	// Detection metrics
	FindingsEmitted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "detect_findings_total",
			Help: "Total number of persisted findings by pattern",
		},
		[]string{"pattern"},
	)

	DetectorDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "detect_detector_duration_seconds",
			Help:    "Per-detector evaluation duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"pattern"},
	)

	DetectorErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "detect_detector_errors_total",
			Help: "Total number of detector evaluation or persistence errors",
		},
		[]string{"pattern"},
	)

	// API metrics
	APIRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "api_requests_total",
			Help: "Total number of API requests",
		},
		[]string{"method", "endpoint", "status_code"},
	)

	APIRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "api_request_duration_seconds",
			Help:    "API request duration in seconds",
			Buckets: []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		},
		[]string{"method", "endpoint"},
	)

	// Job runner metrics
	JobsEnqueued = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "jobs_enqueued_total",
			Help: "Total number of background units of work enqueued by kind",
		},
		[]string{"kind"}, // "ingest", "detect"
	)

	JobsQueueDepth = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "jobs_queue_depth",
			Help: "Current number of queued background units of work",
		},
	)
)

// ObserveDuration records elapsed time since start on a histogram observer.
//
//	defer metrics.ObserveDuration(metrics.RollupRebuildDuration, time.Now())
func ObserveDuration(h prometheus.Observer, start time.Time) {
	h.Observe(time.Since(start).Seconds())
}
