// Vedalytics - Client Behavioral Analytics and Personalization Engine
// Copyright 2026 Prakriti Labs
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/prakritilabs/vedalytics

// Package metrics provides Prometheus instrumentation for the analytics
// engine. Metrics are exposed at /metrics in Prometheus text format.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Event pipeline metrics.

	EventsTracked = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "events_tracked_total",
			Help: "Total events accepted by the pipeline",
		},
		[]string{"kind"},
	)

	EventsDroppedConsent = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "events_dropped_consent_total",
			Help: "Events dropped by the consent gate",
		},
		[]string{"kind"},
	)

	TelemetryForwardFailures = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "telemetry_forward_failures_total",
			Help: "Failed forwards to the external telemetry sink",
		},
	)

	// Storage metrics.

	StorageErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "storage_errors_total",
			Help: "Key-value storage read/write failures, degraded to absent data",
		},
		[]string{"component"},
	)

	// Session and funnel metrics.

	SessionsStarted = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "sessions_started_total",
			Help: "New visitor sessions minted after timeout or first visit",
		},
	)

	FunnelsCompleted = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "funnels_completed_total",
			Help: "Booking funnels completed",
		},
	)

	FunnelsAbandoned = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "funnels_abandoned_total",
			Help: "Booking funnels abandoned",
		},
	)

	// Governance metrics.

	RetentionPurges = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "retention_purges_total",
			Help: "Inventory items purged by the retention janitor",
		},
	)

	// HTTP metrics.

	APIRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "api_requests_total",
			Help: "Total API requests",
		},
		[]string{"method", "endpoint", "status_code"},
	)

	APIRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "api_request_duration_seconds",
			Help:    "API request duration in seconds",
			Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 2.5},
		},
		[]string{"method", "endpoint"},
	)

	// WebSocket metrics.

	WebSocketClients = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "websocket_clients",
			Help: "Currently connected broadcast clients",
		},
	)
)
