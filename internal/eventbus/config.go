// Reelsync - Multi-Device Watchlist Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/reelsync

package eventbus

import (
	"errors"
	"fmt"
	"time"
)

// Backends.
const (
	BackendMemory = "memory"
	BackendNATS   = "nats"
)

// DefaultTopic carries sync notifications between instances.
const DefaultTopic = "reelsync.sync.events"

// ErrInvalidConfig is returned by Config.Validate.
var ErrInvalidConfig = errors.New("invalid event bus configuration")

// Config selects and tunes the event bus backend.
type Config struct {
	// Backend is "memory" (single process) or "nats".
	Backend string
	Topic   string

	// NATSURL is used when Backend is "nats" and Embedded is false.
	NATSURL       string
	MaxReconnects int
	ReconnectWait time.Duration

	// Embedded starts an in-process NATS server and connects to it.
	Embedded bool
	Host     string
	Port     int
	StoreDir string

	// OutputBuffer sizes the memory backend's per-subscriber channel.
	OutputBuffer int64

	Breaker CircuitBreakerConfig
}

// CircuitBreakerConfig tunes the publish breaker.
type CircuitBreakerConfig struct {
	Name             string
	MaxRequests      uint32
	Interval         time.Duration
	Timeout          time.Duration
	FailureThreshold uint32
}

// DefaultCircuitBreakerConfig returns the breaker defaults.
func DefaultCircuitBreakerConfig(name string) CircuitBreakerConfig {
	return CircuitBreakerConfig{
		Name:             name,
		MaxRequests:      1,
		Interval:         time.Minute,
		Timeout:          30 * time.Second,
		FailureThreshold: 5,
	}
}

// DefaultConfig returns an in-process bus.
func DefaultConfig() Config {
	return Config{
		Backend:       BackendMemory,
		Topic:         DefaultTopic,
		NATSURL:       "nats://127.0.0.1:4222",
		MaxReconnects: -1,
		ReconnectWait: 2 * time.Second,
		Host:          "127.0.0.1",
		Port:          4222,
		StoreDir:      "/data/nats",
		OutputBuffer:  256,
		Breaker:       DefaultCircuitBreakerConfig("eventbus-publisher"),
	}
}

// Validate checks the configuration.
func (c *Config) Validate() error {
	switch c.Backend {
	case BackendMemory:
	case BackendNATS:
		if !c.Embedded && c.NATSURL == "" {
			return fmt.Errorf("%w: NATS_URL is required when NATS_EMBEDDED is false", ErrInvalidConfig)
		}
		// -1 asks nats-server for a random free port.
		if c.Embedded && (c.Port < -1 || c.Port > 65535) {
			return fmt.Errorf("%w: NATS_PORT must be -1 or between 0 and 65535", ErrInvalidConfig)
		}
	default:
		return fmt.Errorf("%w: EVENTBUS_BACKEND must be %q or %q, got %q", ErrInvalidConfig, BackendMemory, BackendNATS, c.Backend)
	}
	if c.Topic == "" {
		return fmt.Errorf("%w: EVENTBUS_TOPIC is required", ErrInvalidConfig)
	}
	if c.Breaker.FailureThreshold == 0 {
		return fmt.Errorf("%w: EVENTBUS_BREAKER_THRESHOLD must be positive", ErrInvalidConfig)
	}
	return nil
}
