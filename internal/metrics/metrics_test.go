// Reelsync - Multi-Device Watchlist Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/reelsync

package metrics

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	dto "github.com/prometheus/client_model/go"
)

// histogramCount reads the sample count of one histogram series.
func histogramCount(t *testing.T, observe interface{ Write(*dto.Metric) error }) uint64 {
	t.Helper()
	var m dto.Metric
	if err := observe.Write(&m); err != nil {
		t.Fatalf("write metric: %v", err)
	}
	return m.GetHistogram().GetSampleCount()
}

func TestRecordAction(t *testing.T) {
	tests := []struct {
		name    string
		action  string
		outcome string
	}{
		{"success", "markWatched", "success"},
		{"conflict", "markWatched", "conflict"},
		{"validation", "updateRating", "validation_failed"},
		{"unknown action", "unknown", "unknown_action"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			counter := SyncActionsTotal.WithLabelValues(tt.action, tt.outcome)
			before := testutil.ToFloat64(counter)

			RecordAction(tt.action, tt.outcome, 3*time.Millisecond)

			if got := testutil.ToFloat64(counter) - before; got != 1 {
				t.Errorf("sync_actions_total delta = %v, want 1", got)
			}
		})
	}
}

func TestRecordAction_ObservesDuration(t *testing.T) {
	h := SyncActionDuration.WithLabelValues("addList").(interface{ Write(*dto.Metric) error })
	before := histogramCount(t, h)

	RecordAction("addList", "success", time.Millisecond)
	RecordAction("addList", "not_found", time.Millisecond)

	if got := histogramCount(t, h) - before; got != 2 {
		t.Errorf("duration samples delta = %d, want 2", got)
	}
}

func TestRecordConflict(t *testing.T) {
	c := SyncConflicts.WithLabelValues("updateStatus")
	before := testutil.ToFloat64(c)
	RecordConflict("updateStatus")
	RecordConflict("updateStatus")
	if got := testutil.ToFloat64(c) - before; got != 2 {
		t.Errorf("conflicts delta = %v, want 2", got)
	}
}

func TestRecordBatch(t *testing.T) {
	before := histogramCount(t, SyncBatchSize)
	for _, size := range []int{1, 50, 500} {
		RecordBatch(size)
	}
	if got := histogramCount(t, SyncBatchSize) - before; got != 3 {
		t.Errorf("batch samples delta = %d, want 3", got)
	}
}

func TestRecordFeed(t *testing.T) {
	tests := []struct {
		name     string
		snapshot bool
		mode     string
	}{
		{"snapshot", true, "snapshot"},
		{"incremental", false, "incremental"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := SyncFeedRequests.WithLabelValues(tt.mode)
			before := testutil.ToFloat64(c)
			RecordFeed(tt.snapshot, 12)
			if got := testutil.ToFloat64(c) - before; got != 1 {
				t.Errorf("feed requests delta = %v, want 1", got)
			}
		})
	}
}

func TestRecordStoreOperation(t *testing.T) {
	tests := []struct {
		name      string
		err       error
		wantError bool
	}{
		{"success", nil, false},
		{"storage failure", errors.New("disk full"), true},
		{"wrapped failure", fmt.Errorf("apply: %w", errors.New("boom")), true},
		{"cancelled", context.Canceled, false},
		{"deadline", fmt.Errorf("txn: %w", context.DeadlineExceeded), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			errs := StoreOperationErrors.WithLabelValues("update")
			before := testutil.ToFloat64(errs)

			RecordStoreOperation("update", time.Millisecond, tt.err)

			delta := testutil.ToFloat64(errs) - before
			if tt.wantError && delta != 1 {
				t.Errorf("error counter delta = %v, want 1", delta)
			}
			if !tt.wantError && delta != 0 {
				t.Errorf("error counter delta = %v, want 0", delta)
			}
		})
	}
}

func TestRecordStoreGC(t *testing.T) {
	ok := StoreGCRuns.WithLabelValues("success")
	bad := StoreGCRuns.WithLabelValues("error")
	okBefore, badBefore := testutil.ToFloat64(ok), testutil.ToFloat64(bad)

	RecordStoreGC(nil)
	RecordStoreGC(errors.New("gc failed"))

	if testutil.ToFloat64(ok)-okBefore != 1 || testutil.ToFloat64(bad)-badBefore != 1 {
		t.Error("expected one success and one error GC run")
	}
}

func TestRecordAPIRequest(t *testing.T) {
	c := APIRequestsTotal.WithLabelValues("POST", "/api/v1/sync", "200")
	before := testutil.ToFloat64(c)
	RecordAPIRequest("POST", "/api/v1/sync", "200", 20*time.Millisecond)
	if got := testutil.ToFloat64(c) - before; got != 1 {
		t.Errorf("api_requests_total delta = %v, want 1", got)
	}
}

func TestTrackActiveRequest_Concurrent(t *testing.T) {
	before := testutil.ToFloat64(APIActiveRequests)

	var wg sync.WaitGroup
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			TrackActiveRequest(true)
			TrackActiveRequest(false)
		}()
	}
	wg.Wait()

	if got := testutil.ToFloat64(APIActiveRequests); got != before {
		t.Errorf("active requests = %v, want %v", got, before)
	}
}

func TestSetWSGauges(t *testing.T) {
	SetWSGauges(7, 3)
	if got := testutil.ToFloat64(WSConnections); got != 7 {
		t.Errorf("websocket_connections = %v, want 7", got)
	}
	if got := testutil.ToFloat64(WSUsers); got != 3 {
		t.Errorf("websocket_users = %v, want 3", got)
	}
}

func TestRecordEventPublish(t *testing.T) {
	published := testutil.ToFloat64(EventBusPublished)
	open := testutil.ToFloat64(EventBusPublishFailures.WithLabelValues("breaker_open"))
	failed := testutil.ToFloat64(EventBusPublishFailures.WithLabelValues("error"))

	RecordEventPublish(nil, false)
	RecordEventPublish(errors.New("open"), true)
	RecordEventPublish(errors.New("nats down"), false)

	if testutil.ToFloat64(EventBusPublished)-published != 1 {
		t.Error("expected one published message")
	}
	if testutil.ToFloat64(EventBusPublishFailures.WithLabelValues("breaker_open"))-open != 1 {
		t.Error("expected one breaker_open failure")
	}
	if testutil.ToFloat64(EventBusPublishFailures.WithLabelValues("error"))-failed != 1 {
		t.Error("expected one error failure")
	}
}

func TestRecordBreakerTransition(t *testing.T) {
	tests := []struct {
		from, to string
		want     float64
	}{
		{"closed", "open", BreakerOpen},
		{"open", "half-open", BreakerHalfOpen},
		{"half-open", "closed", BreakerClosed},
	}

	for _, tt := range tests {
		t.Run(tt.from+"->"+tt.to, func(t *testing.T) {
			c := CircuitBreakerTransitions.WithLabelValues("eventbus-test", tt.from, tt.to)
			before := testutil.ToFloat64(c)

			RecordBreakerTransition("eventbus-test", tt.from, tt.to)

			if testutil.ToFloat64(c)-before != 1 {
				t.Error("transition not counted")
			}
			if got := testutil.ToFloat64(CircuitBreakerState.WithLabelValues("eventbus-test")); got != tt.want {
				t.Errorf("state = %v, want %v", got, tt.want)
			}
		})
	}
}
