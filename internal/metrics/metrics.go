// Reelsync - Multi-Device Watchlist Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/reelsync

package metrics

import (
	"context"
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Sync Action Metrics
	SyncActionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sync_actions_total",
			Help: "Total number of sync actions applied",
		},
		[]string{"action", "outcome"}, // outcome: "success", "conflict", "validation_failed", "not_found", ...
	)

	SyncActionDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "sync_action_duration_seconds",
			Help:    "Duration of a single sync action in seconds",
			Buckets: []float64{0.0005, 0.001, 0.0025, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 1},
		},
		[]string{"action"},
	)

	SyncConflicts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sync_conflicts_total",
			Help: "Total number of actions rejected because the server copy is newer",
		},
		[]string{"action"},
	)

	SyncBatchSize = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "sync_batch_size",
			Help:    "Number of actions in sync batches",
			Buckets: []float64{1, 5, 10, 25, 50, 100, 250, 500},
		},
	)

	// Change Feed Metrics
	SyncFeedRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sync_feed_requests_total",
			Help: "Total number of change feed requests",
		},
		[]string{"mode"}, // "snapshot", "incremental"
	)

	SyncFeedEntities = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "sync_feed_entities",
			Help:    "Number of entities returned in a change feed page",
			Buckets: []float64{0, 1, 10, 50, 100, 250, 500},
		},
	)

	// Store Metrics
	StoreOperationDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "store_operation_duration_seconds",
			Help:    "Duration of entity store transactions in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"operation"}, // "update", "view"
	)

	StoreOperationErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "store_operation_errors_total",
			Help: "Total number of entity store transactions that returned an error",
		},
		[]string{"operation"},
	)

	StoreGCRuns = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "store_gc_runs_total",
			Help: "Total number of value log GC passes",
		},
		[]string{"result"}, // "success", "error"
	)

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

	APIActiveRequests = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "api_active_requests",
			Help: "Current number of active API requests",
		},
	)

	// WebSocket Metrics
	WSConnections = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "websocket_connections",
			Help: "Current number of active WebSocket connections",
		},
	)

	WSUsers = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "websocket_users",
			Help: "Current number of users with at least one live connection",
		},
	)

	WSMessagesSent = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "websocket_messages_sent_total",
			Help: "Total number of WebSocket messages sent",
		},
	)

	WSMessagesReceived = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "websocket_messages_received_total",
			Help: "Total number of WebSocket messages received",
		},
	)

	WSErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "websocket_errors_total",
			Help: "Total number of WebSocket errors",
		},
		[]string{"error_type"}, // "send_buffer_full", "delivery_backpressure", "delivery_dropped", "hub_unavailable", "rate_limited", "read", "write", "upgrade", "auth", "envelope_decode"
	)

	// Event Bus Metrics
	EventBusPublished = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "eventbus_messages_published_total",
			Help: "Total number of change envelopes published to the event bus",
		},
	)

	EventBusConsumed = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "eventbus_messages_consumed_total",
			Help: "Total number of change envelopes consumed from the event bus",
		},
	)

	EventBusPublishFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "eventbus_publish_failures_total",
			Help: "Total number of failed event bus publishes",
		},
		[]string{"reason"}, // "breaker_open", "error"
	)

	// Circuit Breaker Metrics
	CircuitBreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "circuit_breaker_state",
			Help: "Circuit breaker state (0=closed, 1=half-open, 2=open)",
		},
		[]string{"name"},
	)

	CircuitBreakerTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "circuit_breaker_state_transitions_total",
			Help: "Total number of circuit breaker state transitions",
		},
		[]string{"name", "from_state", "to_state"},
	)

	// Auth Metrics
	AuthFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "auth_failures_total",
			Help: "Total number of rejected credentials",
		},
		[]string{"reason"}, // "missing_token", "invalid_token"
	)

	// System Metrics
	AppInfo = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "app_info",
			Help: "Application version and build information",
		},
		[]string{"version", "go_version"},
	)
)

// Circuit breaker state values exported by CircuitBreakerState.
const (
	BreakerClosed   = 0
	BreakerHalfOpen = 1
	BreakerOpen     = 2
)

// RecordAction records the outcome and latency of one sync action.
// outcome is "success" or the error code of the failure.
func RecordAction(action, outcome string, duration time.Duration) {
	SyncActionsTotal.WithLabelValues(action, outcome).Inc()
	SyncActionDuration.WithLabelValues(action).Observe(duration.Seconds())
}

// RecordConflict records an action rejected by conflict detection
func RecordConflict(action string) {
	SyncConflicts.WithLabelValues(action).Inc()
}

// RecordBatch records the size of a batch submission
func RecordBatch(size int) {
	SyncBatchSize.Observe(float64(size))
}

// RecordFeed records a change feed page.
func RecordFeed(snapshot bool, entities int) {
	mode := "incremental"
	if snapshot {
		mode = "snapshot"
	}
	SyncFeedRequests.WithLabelValues(mode).Inc()
	SyncFeedEntities.Observe(float64(entities))
}

// RecordStoreOperation records an entity store transaction. Errors returned by
// the transaction body (not found, conflicts) are counted alongside storage
// failures; context cancellation is not.
func RecordStoreOperation(operation string, duration time.Duration, err error) {
	StoreOperationDuration.WithLabelValues(operation).Observe(duration.Seconds())
	if err != nil && !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded) {
		StoreOperationErrors.WithLabelValues(operation).Inc()
	}
}

// RecordStoreGC records a value log GC pass
func RecordStoreGC(err error) {
	if err != nil {
		StoreGCRuns.WithLabelValues("error").Inc()
		return
	}
	StoreGCRuns.WithLabelValues("success").Inc()
}

// RecordAPIRequest records an API request metric
func RecordAPIRequest(method, endpoint, statusCode string, duration time.Duration) {
	APIRequestsTotal.WithLabelValues(method, endpoint, statusCode).Inc()
	APIRequestDuration.WithLabelValues(method, endpoint).Observe(duration.Seconds())
}

// TrackActiveRequest tracks active API requests
func TrackActiveRequest(inc bool) {
	if inc {
		APIActiveRequests.Inc()
	} else {
		APIActiveRequests.Dec()
	}
}

// SetWSGauges publishes the hub's current connection and user counts.
func SetWSGauges(connections, users int) {
	WSConnections.Set(float64(connections))
	WSUsers.Set(float64(users))
}

// RecordWSError records a WebSocket error by type
func RecordWSError(errorType string) {
	WSErrors.WithLabelValues(errorType).Inc()
}

// RecordAuthFailure records a rejected request or live connection.
func RecordAuthFailure(reason string) {
	AuthFailures.WithLabelValues(reason).Inc()
}

// RecordEventPublish records an event bus publish attempt.
func RecordEventPublish(err error, breakerOpen bool) {
	switch {
	case err == nil:
		EventBusPublished.Inc()
	case breakerOpen:
		EventBusPublishFailures.WithLabelValues("breaker_open").Inc()
	default:
		EventBusPublishFailures.WithLabelValues("error").Inc()
	}
}

// RecordEventConsume records a consumed event bus message
func RecordEventConsume() {
	EventBusConsumed.Inc()
}

// RecordBreakerTransition records a circuit breaker state change. States use
// gobreaker's String() names: "closed", "half-open", "open".
func RecordBreakerTransition(name, from, to string) {
	CircuitBreakerTransitions.WithLabelValues(name, from, to).Inc()
	CircuitBreakerState.WithLabelValues(name).Set(breakerStateValue(to))
}

func breakerStateValue(state string) float64 {
	switch state {
	case "half-open":
		return BreakerHalfOpen
	case "open":
		return BreakerOpen
	default:
		return BreakerClosed
	}
}
