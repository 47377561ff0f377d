// Reelsync - Multi-Device Watchlist Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/reelsync

package websocket

import (
	"context"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/tomtom215/reelsync/internal/clock"
	"github.com/tomtom215/reelsync/internal/logging"
	"github.com/tomtom215/reelsync/internal/metrics"
	"github.com/tomtom215/reelsync/internal/models"
)

//nolint:gochecknoinits // init ensures consistent logging for tests
func init() {
	logging.Init(logging.Config{
		Level:  "info",
		Format: "console",
		Output: io.Discard,
	})
}

const testNow = 1700000000.0

// setupHub starts a hub on a manual clock and stops it when the test ends.
func setupHub(t *testing.T) *Hub {
	t.Helper()
	hub := NewHub(clock.NewManual(testNow))
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		_ = hub.RunWithContext(ctx)
		close(done)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})
	return hub
}

// newTestClient builds a connectionless client; only the hub side is used.
func newTestClient(hub *Hub, userID string, buffer int) *Client {
	return NewClient(hub, nil, userID, ClientOptions{SendBuffer: buffer})
}

// connect registers c and consumes its connected frame.
func connect(t *testing.T, hub *Hub, c *Client) {
	t.Helper()
	hub.Register(context.Background(), c)
	f := nextFrame(t, c)
	if f.Type != models.FrameConnected || f.ConnectionID != c.ConnectionID() {
		t.Fatalf("first frame = %+v, want connected with %s", f, c.ConnectionID())
	}
}

func nextFrame(t *testing.T, c *Client) models.Frame {
	t.Helper()
	select {
	case f, ok := <-c.send:
		if !ok {
			t.Fatal("send channel closed")
		}
		return f
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for frame")
		return models.Frame{}
	}
}

func expectNoFrame(t *testing.T, c *Client) {
	t.Helper()
	select {
	case f, ok := <-c.send:
		if ok {
			t.Fatalf("unexpected frame %+v", f)
		}
	case <-time.After(50 * time.Millisecond):
	}
}

func expectClosed(t *testing.T, c *Client) {
	t.Helper()
	deadline := time.After(2 * time.Second)
	for {
		select {
		case _, ok := <-c.send:
			if !ok {
				return
			}
		case <-deadline:
			t.Fatal("send channel was not closed")
		}
	}
}

func eventually(t *testing.T, cond func() bool, msg string) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal(msg)
}

func TestHub_RegisterSendsConnected(t *testing.T) {
	hub := setupHub(t)
	c := newTestClient(hub, "u1", 8)

	hub.Register(context.Background(), c)
	f := nextFrame(t, c)
	if f.Type != models.FrameConnected {
		t.Errorf("Type = %q, want connected", f.Type)
	}
	if f.ConnectionID == "" || f.ConnectionID != c.ConnectionID() {
		t.Errorf("ConnectionID = %q, want %q", f.ConnectionID, c.ConnectionID())
	}
	if f.Timestamp != testNow {
		t.Errorf("Timestamp = %v, want %v", f.Timestamp, testNow)
	}
	if hub.ClientCount() != 1 || hub.UserCount() != 1 || hub.UserClientCount("u1") != 1 {
		t.Errorf("counts = %d/%d/%d", hub.ClientCount(), hub.UserCount(), hub.UserClientCount("u1"))
	}
}

func TestHub_NotifyExcludesOrigin(t *testing.T) {
	hub := setupHub(t)
	phone := newTestClient(hub, "u1", 8)
	laptop := newTestClient(hub, "u1", 8)
	stranger := newTestClient(hub, "u2", 8)
	for _, c := range []*Client{phone, laptop, stranger} {
		connect(t, hub, c)
	}

	hub.Notify(context.Background(), "u1", phone.ConnectionID(), []models.Event{
		models.MovieEvent(models.EventMovieUpdated, "tt0111161"),
		models.ListEvent("list-1"),
	})

	f := nextFrame(t, laptop)
	if f.Type != string(models.EventMovieUpdated) || f.IMDbID != "tt0111161" || f.Timestamp != testNow {
		t.Errorf("first frame = %+v", f)
	}
	f = nextFrame(t, laptop)
	if f.Type != string(models.EventListUpdated) || f.ListID != "list-1" {
		t.Errorf("second frame = %+v", f)
	}
	expectNoFrame(t, phone)
	expectNoFrame(t, stranger)
}

func TestHub_NotifyWithoutOriginReachesAll(t *testing.T) {
	hub := setupHub(t)
	a := newTestClient(hub, "u1", 8)
	b := newTestClient(hub, "u1", 8)
	connect(t, hub, a)
	connect(t, hub, b)

	hub.Notify(context.Background(), "u1", "", []models.Event{models.PeopleEvent()})

	for _, c := range []*Client{a, b} {
		if f := nextFrame(t, c); f.Type != string(models.EventPeopleUpdated) {
			t.Errorf("frame = %+v", f)
		}
	}
}

func TestHub_NotifyUnknownUserIsNoop(t *testing.T) {
	hub := setupHub(t)
	c := newTestClient(hub, "u1", 8)
	connect(t, hub, c)

	hub.Notify(context.Background(), "nobody", "", []models.Event{models.PeopleEvent()})
	hub.Notify(context.Background(), "u1", "", nil)
	expectNoFrame(t, c)
	if hub.UserCount() != 1 {
		t.Errorf("UserCount = %d", hub.UserCount())
	}
}

func TestHub_UnregisterPrunesUser(t *testing.T) {
	hub := setupHub(t)
	a := newTestClient(hub, "u1", 8)
	b := newTestClient(hub, "u1", 8)
	connect(t, hub, a)
	connect(t, hub, b)

	hub.Unregister(a)
	expectClosed(t, a)
	if hub.UserClientCount("u1") != 1 {
		t.Errorf("UserClientCount = %d, want 1", hub.UserClientCount("u1"))
	}

	// Removing twice must not close the channel again.
	hub.Unregister(a)
	hub.Unregister(b)
	expectClosed(t, b)
	eventually(t, func() bool { return hub.UserCount() == 0 }, "user not pruned")
}

func TestHub_UnregisterUnknownClient(t *testing.T) {
	hub := setupHub(t)
	c := newTestClient(hub, "u1", 8)

	hub.Unregister(c)
	connect(t, hub, c)
	if hub.ClientCount() != 1 {
		t.Errorf("ClientCount = %d, want 1", hub.ClientCount())
	}
}

func TestHub_FullBufferRemovesClient(t *testing.T) {
	hub := setupHub(t)
	before := testutil.ToFloat64(metrics.WSErrors.WithLabelValues("send_buffer_full"))

	slow := newTestClient(hub, "u1", 1)
	fast := newTestClient(hub, "u1", 8)
	hub.Register(context.Background(), slow) // connected frame fills the buffer
	connect(t, hub, fast)
	eventually(t, func() bool { return hub.UserClientCount("u1") == 2 }, "slow client not registered")

	hub.Notify(context.Background(), "u1", "", []models.Event{models.PeopleEvent()})

	if f := nextFrame(t, fast); f.Type != string(models.EventPeopleUpdated) {
		t.Errorf("fast client frame = %+v", f)
	}
	expectClosed(t, slow)
	eventually(t, func() bool { return hub.UserClientCount("u1") == 1 }, "slow client not removed")

	if got := testutil.ToFloat64(metrics.WSErrors.WithLabelValues("send_buffer_full")) - before; got != 1 {
		t.Errorf("send_buffer_full delta = %v, want 1", got)
	}
}

func TestHub_DeliverWaitsForRoom(t *testing.T) {
	hub := NewHub(clock.NewManual(testNow)) // not running yet
	frames := []models.Frame{{Type: string(models.EventPeopleUpdated)}}
	for i := 0; i < deliveryBuffer; i++ {
		if !hub.Deliver(context.Background(), "u1", "", frames) {
			t.Fatalf("Deliver %d dropped with room in the queue", i)
		}
	}

	delivered := make(chan bool, 1)
	go func() { delivered <- hub.Deliver(context.Background(), "u1", "", frames) }()

	select {
	case <-delivered:
		t.Fatal("Deliver returned while the queue was full")
	case <-time.After(50 * time.Millisecond):
	}

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go func() { _ = hub.RunWithContext(ctx) }()

	select {
	case ok := <-delivered:
		if !ok {
			t.Error("waiting delivery was dropped")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Deliver still blocked after the hub started")
	}
}

func TestHub_DeliverDropsWhenContextEnds(t *testing.T) {
	hub := NewHub(clock.NewManual(testNow)) // never started
	before := testutil.ToFloat64(metrics.WSErrors.WithLabelValues("delivery_dropped"))

	frames := []models.Frame{{Type: string(models.EventPeopleUpdated)}}
	for i := 0; i < deliveryBuffer; i++ {
		hub.Deliver(context.Background(), "u1", "", frames)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	done := make(chan bool, 1)
	go func() { done <- hub.Deliver(ctx, "u1", "", frames) }()

	select {
	case ok := <-done:
		if ok {
			t.Error("Deliver reported success on a saturated hub")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Deliver ignored context cancellation")
	}
	if got := testutil.ToFloat64(metrics.WSErrors.WithLabelValues("delivery_dropped")) - before; got != 1 {
		t.Errorf("delivery_dropped delta = %v, want 1", got)
	}
}

func TestHub_StoppedHubNeverBlocks(t *testing.T) {
	hub := NewHub(clock.NewManual(testNow))
	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- hub.RunWithContext(ctx) }()

	connected := newTestClient(hub, "u1", 8)
	connect(t, hub, connected)
	cancel()
	<-errCh

	frames := []models.Frame{{Type: string(models.EventPeopleUpdated)}}
	done := make(chan struct{})
	go func() {
		defer close(done)
		// More operations than either queue holds.
		for i := 0; i < deliveryBuffer+lifecycleBuffer+10; i++ {
			if hub.Register(context.Background(), newTestClient(hub, "u2", 1)) {
				t.Error("Register succeeded on a stopped hub")
				return
			}
			hub.Unregister(connected)
			if hub.Deliver(context.Background(), "u1", "", frames) {
				t.Error("Deliver succeeded on a stopped hub")
				return
			}
		}
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("hub operations blocked after the hub stopped")
	}
	expectClosed(t, connected)
}

func TestHub_ShutdownClosesQueuedRegistrations(t *testing.T) {
	hub := NewHub(clock.NewManual(testNow))
	queued := newTestClient(hub, "u1", 8)
	if !hub.Register(context.Background(), queued) {
		t.Fatal("Register refused on a fresh hub")
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_ = hub.RunWithContext(ctx)

	// Either the run registered it before stopping or shutdown drained it;
	// both must leave the send channel closed.
	expectClosed(t, queued)
}

func TestHub_ConcurrentOperations(t *testing.T) {
	hub := setupHub(t)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			c := newTestClient(hub, "u1", 64)
			hub.Register(context.Background(), c)
			hub.Notify(context.Background(), "u1", "", []models.Event{models.PeopleEvent()})
			_ = hub.UserClientCount("u1")
			hub.Unregister(c)
		}()
	}
	wg.Wait()

	eventually(t, func() bool { return hub.ClientCount() == 0 }, "clients left after unregister")
}

func TestHub_RunWithContext(t *testing.T) {
	t.Run("shutdown closes clients", func(t *testing.T) {
		hub := NewHub(clock.NewManual(testNow))
		ctx, cancel := context.WithCancel(context.Background())
		errCh := make(chan error, 1)
		go func() { errCh <- hub.RunWithContext(ctx) }()

		a := newTestClient(hub, "u1", 8)
		b := newTestClient(hub, "u2", 8)
		connect(t, hub, a)
		connect(t, hub, b)

		cancel()
		select {
		case err := <-errCh:
			if !errors.Is(err, context.Canceled) {
				t.Errorf("RunWithContext() = %v, want context.Canceled", err)
			}
		case <-time.After(2 * time.Second):
			t.Fatal("hub did not stop")
		}
		expectClosed(t, a)
		expectClosed(t, b)
		if hub.ClientCount() != 0 || hub.UserCount() != 0 {
			t.Errorf("counts after shutdown = %d/%d", hub.ClientCount(), hub.UserCount())
		}
	})

	t.Run("deadline", func(t *testing.T) {
		hub := NewHub(nil)
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
		defer cancel()
		if err := hub.RunWithContext(ctx); !errors.Is(err, context.DeadlineExceeded) {
			t.Errorf("RunWithContext() = %v, want DeadlineExceeded", err)
		}
	})

	t.Run("restartable", func(t *testing.T) {
		hub := NewHub(clock.NewManual(testNow))
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		_ = hub.RunWithContext(ctx)

		ctx2, cancel2 := context.WithCancel(context.Background())
		defer cancel2()
		go func() { _ = hub.RunWithContext(ctx2) }()

		// Register refuses until the new run has reopened the hub.
		c := newTestClient(hub, "u1", 8)
		eventually(t, func() bool { return hub.Register(context.Background(), c) }, "hub did not restart")
		if f := nextFrame(t, c); f.Type != models.FrameConnected {
			t.Errorf("first frame = %+v, want connected", f)
		}
	})
}

func TestGetShutdownReason(t *testing.T) {
	tests := []struct {
		name     string
		setupCtx func() context.Context
		expected ShutdownReason
	}{
		{
			name: "canceled",
			setupCtx: func() context.Context {
				ctx, cancel := context.WithCancel(context.Background())
				cancel()
				return ctx
			},
			expected: ShutdownReasonContextCanceled,
		},
		{
			name: "deadline exceeded",
			setupCtx: func() context.Context {
				ctx, cancel := context.WithTimeout(context.Background(), time.Nanosecond)
				defer cancel()
				time.Sleep(5 * time.Millisecond)
				return ctx
			},
			expected: ShutdownReasonContextDeadline,
		},
		{
			name:     "active context",
			setupCtx: context.Background,
			expected: ShutdownReasonContextCanceled,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := getShutdownReason(tt.setupCtx()); got != tt.expected {
				t.Errorf("getShutdownReason() = %q, want %q", got, tt.expected)
			}
		})
	}
}

func BenchmarkHub_Notify(b *testing.B) {
	hub := NewHub(clock.NewManual(testNow))
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = hub.RunWithContext(ctx) }()

	c := newTestClient(hub, "u1", 1<<16)
	hub.Register(context.Background(), c)
	go func() {
		for range c.send { //nolint:revive // drain
		}
	}()

	events := []models.Event{models.MovieEvent(models.EventMovieUpdated, "tt1")}
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		hub.Notify(ctx, "u1", "", events)
	}
}
