// Reelsync - Multi-Device Watchlist Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/reelsync

package main

import (
	"testing"
	"time"

	"github.com/tomtom215/reelsync/internal/config"
	"github.com/tomtom215/reelsync/internal/eventbus"
)

func TestEventBusConfig(t *testing.T) {
	tests := []struct {
		name  string
		in    config.EventBusConfig
		check func(*testing.T, eventbus.Config)
	}{
		{
			name: "memory keeps defaults",
			in:   config.EventBusConfig{Backend: "memory"},
			check: func(t *testing.T, c eventbus.Config) {
				d := eventbus.DefaultConfig()
				if c.Topic != d.Topic || c.Breaker.FailureThreshold != d.Breaker.FailureThreshold {
					t.Errorf("config = %+v, want defaults", c)
				}
			},
		},
		{
			name: "external nats",
			in: config.EventBusConfig{
				Backend:                 "nats",
				Topic:                   "sync.events",
				NATSURL:                 "nats://broker:4222",
				BreakerFailureThreshold: 9,
				BreakerTimeout:          time.Minute,
			},
			check: func(t *testing.T, c eventbus.Config) {
				if c.Backend != eventbus.BackendNATS || c.Embedded {
					t.Errorf("backend = %s embedded = %v", c.Backend, c.Embedded)
				}
				if c.NATSURL != "nats://broker:4222" || c.Topic != "sync.events" {
					t.Errorf("config = %+v", c)
				}
				if c.Breaker.FailureThreshold != 9 || c.Breaker.Timeout != time.Minute {
					t.Errorf("breaker = %+v", c.Breaker)
				}
			},
		},
		{
			name: "embedded nats",
			in: config.EventBusConfig{
				Backend:      "nats",
				NATSEmbedded: true,
				NATSHost:     "0.0.0.0",
				NATSPort:     -1,
				NATSStoreDir: "/tmp/nats",
			},
			check: func(t *testing.T, c eventbus.Config) {
				if !c.Embedded || c.Host != "0.0.0.0" || c.Port != -1 || c.StoreDir != "/tmp/nats" {
					t.Errorf("config = %+v", c)
				}
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.check(t, eventBusConfig(&config.Config{EventBus: tt.in}))
		})
	}
}

func TestOpenEventBus_Memory(t *testing.T) {
	bus, err := openEventBus(&config.Config{EventBus: config.EventBusConfig{Backend: "memory"}})
	if err != nil {
		t.Fatalf("openEventBus: %v", err)
	}
	defer bus.Close()

	if bus.Backend() != eventbus.BackendMemory {
		t.Errorf("Backend() = %s", bus.Backend())
	}
	if err := bus.Ping(); err != nil {
		t.Errorf("Ping() = %v", err)
	}
}
