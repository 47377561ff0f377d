// Reelsync - Multi-Device Watchlist Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/reelsync

/*
Package metrics provides Prometheus metrics collection and export for observability.

All collectors are registered with the default registry through promauto and
exposed at /metrics in Prometheus text format:

	curl http://localhost:8000/metrics

# Available Metrics

Sync Metrics:
  - sync_actions_total: Applied actions (counter)
    Labels: action, outcome (success or an error code such as conflict)
  - sync_action_duration_seconds: Per-action latency (histogram)
    Labels: action
  - sync_conflicts_total: Actions rejected as stale (counter)
    Labels: action
  - sync_batch_size: Actions per batch submission (histogram)
  - sync_feed_requests_total: Change feed requests (counter)
    Labels: mode (snapshot, incremental)
  - sync_feed_entities: Entities per feed page (histogram)

Store Metrics:
  - store_operation_duration_seconds: Transaction latency (histogram)
    Labels: operation (update, view)
  - store_operation_errors_total: Failed transactions (counter)
  - store_gc_runs_total: Value log GC passes (counter)
    Labels: result

API Metrics:
  - api_requests_total, api_request_duration_seconds, api_active_requests

WebSocket Metrics:
  - websocket_connections: Live connections (gauge)
  - websocket_users: Users with at least one live connection (gauge)
  - websocket_messages_sent_total, websocket_messages_received_total
  - websocket_errors_total: Labels: error_type

Event Bus Metrics:
  - eventbus_messages_published_total, eventbus_messages_consumed_total
  - eventbus_publish_failures_total: Labels: reason
  - circuit_breaker_state: 0=closed, 1=half-open, 2=open
  - circuit_breaker_state_transitions_total: Labels: name, from_state, to_state

# Usage

Record helpers wrap the collectors so callers never touch label order:

	start := time.Now()
	resp := proc.Apply(ctx, userID, action)
	metrics.RecordAction(string(action.Kind), outcome, time.Since(start))
*/
package metrics
