// HerpAtlas - Wildlife Observation Records API
// Copyright 2026 HerpAtlas Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/herpatlas/herpatlas

// Package metrics provides Prometheus instrumentation for the records
// pipeline: HTTP latency, record creation outcomes, allocator behavior,
// and voucher ingestion.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// API Endpoint Metrics
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

	// Record Writer Metrics
	RecordsCreated = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "records_created_total",
			Help: "Total number of animal records successfully created",
		},
	)

	RecordCreateFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "record_create_failures_total",
			Help: "Total number of failed record creations",
		},
		[]string{"stage"}, // "resolving", "inserting", "content_entry", "linking", "media"
	)

	RecordCreateDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "record_create_duration_seconds",
			Help:    "Duration of one animal record creation in seconds",
			Buckets: prometheus.DefBuckets,
		},
	)

	// Allocator Metrics
	AllocatorRetries = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "allocator_insert_retries_total",
			Help: "Total number of insert retries after primary-key collisions",
		},
		[]string{"namespace"},
	)

	AllocatorLockTimeouts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "allocator_lock_timeouts_total",
			Help: "Total number of allocation lock timeouts",
		},
		[]string{"namespace"},
	)

	// Voucher Metrics
	VouchersIngested = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "vouchers_ingested_total",
			Help: "Total number of voucher files stored",
		},
		[]string{"kind"}, // "image", "video", "audio"
	)

	VoucherFailures = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "voucher_failures_total",
			Help: "Total number of voucher files that failed to store",
		},
	)
)

// RecordAPIRequest records latency and count for one request.
func RecordAPIRequest(method, endpoint, statusCode string, duration time.Duration) {
	APIRequestsTotal.WithLabelValues(method, endpoint, statusCode).Inc()
	APIRequestDuration.WithLabelValues(method, endpoint).Observe(duration.Seconds())
}

// RecordCreation records the outcome of one animal record creation.
func RecordCreation(duration time.Duration, failedStage string) {
	if failedStage == "" {
		RecordsCreated.Inc()
		RecordCreateDuration.Observe(duration.Seconds())
		return
	}
	RecordCreateFailures.WithLabelValues(failedStage).Inc()
}
