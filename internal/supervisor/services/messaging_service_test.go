// Reelsync - Multi-Device Watchlist Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/reelsync

package services

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/thejerf/suture/v4"
)

// mockRunner stands in for both the hub and the relay.
type mockRunner struct {
	err  error
	runs atomic.Int32
}

func (m *mockRunner) run(ctx context.Context) error {
	m.runs.Add(1)
	if m.err != nil {
		return m.err
	}
	<-ctx.Done()
	return ctx.Err()
}

func (m *mockRunner) RunWithContext(ctx context.Context) error { return m.run(ctx) }
func (m *mockRunner) Run(ctx context.Context) error            { return m.run(ctx) }

func TestMessagingServices(t *testing.T) {
	tests := []struct {
		name     string
		build    func(*mockRunner) suture.Service
		wantName string
	}{
		{"hub", func(m *mockRunner) suture.Service { return NewWebSocketHubService(m) }, "websocket-hub"},
		{"relay", func(m *mockRunner) suture.Service { return NewRelayService(m) }, "eventbus-relay"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			runner := &mockRunner{}
			svc := tt.build(runner)

			if s, ok := svc.(interface{ String() string }); !ok || s.String() != tt.wantName {
				t.Errorf("name = %v, want %s", svc, tt.wantName)
			}

			ctx, cancel := context.WithCancel(context.Background())
			errCh := serveAsync(ctx, svc)
			cancel()
			if err := await(t, errCh); !errors.Is(err, context.Canceled) {
				t.Errorf("Serve() = %v, want context.Canceled", err)
			}

			failing := &mockRunner{err: errors.New("subscription closed")}
			if err := tt.build(failing).Serve(context.Background()); !errors.Is(err, failing.err) {
				t.Errorf("Serve() = %v, want %v", err, failing.err)
			}
		})
	}
}

// A relay whose subscription drops is resubscribed by its supervisor.
func TestRelayService_RestartedBySupervisor(t *testing.T) {
	relay := &flakyRunner{failures: 2}
	sup := suture.New("messaging-layer", suture.Spec{
		FailureThreshold: 10,
		FailureBackoff:   10 * time.Millisecond,
		Timeout:          time.Second,
	})
	sup.Add(NewRelayService(relay))

	ctx, cancel := context.WithCancel(context.Background())
	errCh := sup.ServeBackground(ctx)

	deadline := time.Now().Add(2 * time.Second)
	for relay.runs.Load() < 3 {
		if time.Now().After(deadline) {
			t.Fatalf("relay runs = %d, want 3", relay.runs.Load())
		}
		time.Sleep(5 * time.Millisecond)
	}
	cancel()
	<-errCh
}

type flakyRunner struct {
	failures int32
	runs     atomic.Int32
}

func (f *flakyRunner) Run(ctx context.Context) error {
	if f.runs.Add(1) <= f.failures {
		return errors.New("event bus subscription closed")
	}
	<-ctx.Done()
	return ctx.Err()
}
