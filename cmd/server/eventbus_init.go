// Reelsync - Multi-Device Watchlist Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/reelsync

package main

import (
	"github.com/tomtom215/reelsync/internal/config"
	"github.com/tomtom215/reelsync/internal/eventbus"
	"github.com/tomtom215/reelsync/internal/logging"
)

// eventBusConfig maps the EVENTBUS_* and NATS_* settings onto the bus
// configuration. Anything the application config does not expose keeps the
// bus default.
func eventBusConfig(cfg *config.Config) eventbus.Config {
	bc := eventbus.DefaultConfig()
	src := cfg.EventBus

	bc.Backend = src.Backend
	if src.Topic != "" {
		bc.Topic = src.Topic
	}
	if src.NATSURL != "" {
		bc.NATSURL = src.NATSURL
	}
	bc.Embedded = src.NATSEmbedded
	if src.NATSHost != "" {
		bc.Host = src.NATSHost
	}
	bc.Port = src.NATSPort
	if src.NATSStoreDir != "" {
		bc.StoreDir = src.NATSStoreDir
	}
	if src.BreakerFailureThreshold > 0 {
		bc.Breaker.FailureThreshold = src.BreakerFailureThreshold
	}
	if src.BreakerTimeout > 0 {
		bc.Breaker.Timeout = src.BreakerTimeout
	}
	return bc
}

// openEventBus opens the configured backend with watermill logging routed
// through zerolog.
func openEventBus(cfg *config.Config) (*eventbus.Bus, error) {
	return eventbus.Open(eventBusConfig(cfg), logging.NewWatermillAdapter())
}
