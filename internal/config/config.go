// Reelsync - Multi-Device Watchlist Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/reelsync

package config

import (
	"time"
)

// Config holds all application configuration.
//
// Configuration Loading Order (Koanf v2):
//  1. Defaults: Built-in defaults for every setting
//  2. Config File: Optional YAML file (config.yaml or CONFIG_PATH)
//  3. Environment Variables: Override any setting
//
// Config is immutable after Load() and safe for concurrent reads.
type Config struct {
	Server    ServerConfig    `koanf:"server"`
	Security  SecurityConfig  `koanf:"security"`
	Storage   StorageConfig   `koanf:"storage"`
	Sync      SyncConfig      `koanf:"sync"`
	WebSocket WebSocketConfig `koanf:"websocket"`
	EventBus  EventBusConfig  `koanf:"eventbus"`
	Logging   LoggingConfig   `koanf:"logging"`
}

// ServerConfig holds HTTP server settings
type ServerConfig struct {
	Port        int           `koanf:"port"`
	Host        string        `koanf:"host"`
	Timeout     time.Duration `koanf:"timeout"`
	Environment string        `koanf:"environment"` // development, staging, production
}

// SecurityConfig holds authentication and request limiting settings.
//
// Environment Variables:
//   - AUTH_MODE: jwt or none (default: jwt)
//   - JWT_SECRET: HS256 signing secret, at least 32 characters in jwt mode
//   - DEFAULT_USER_ID: user every request acts as when AUTH_MODE=none (default: local)
//   - RATE_LIMIT_REQUESTS / RATE_LIMIT_WINDOW / DISABLE_RATE_LIMIT
//   - CORS_ORIGINS: comma-separated origins (default: *)
type SecurityConfig struct {
	AuthMode          string        `koanf:"auth_mode"`
	JWTSecret         string        `koanf:"jwt_secret"`
	DefaultUserID     string        `koanf:"default_user_id"`
	RateLimitReqs     int           `koanf:"rate_limit_reqs"`
	RateLimitWindow   time.Duration `koanf:"rate_limit_window"`
	RateLimitDisabled bool          `koanf:"rate_limit_disabled"`
	CORSOrigins       []string      `koanf:"cors_origins"`
}

// StorageConfig holds BadgerDB settings
type StorageConfig struct {
	Path           string        `koanf:"path"`
	InMemory       bool          `koanf:"in_memory"`
	SyncWrites     bool          `koanf:"sync_writes"`
	GCInterval     time.Duration `koanf:"gc_interval"`
	GCDiscardRatio float64       `koanf:"gc_discard_ratio"`
}

// SyncConfig tunes action processing and the change feed.
type SyncConfig struct {
	// SkewGraceSeconds is how far behind the server copy a client timestamp
	// may be before an action is rejected as a conflict.
	SkewGraceSeconds float64 `koanf:"skew_grace_seconds"`

	MaxBatchSize     int `koanf:"max_batch_size"`
	DefaultFeedLimit int `koanf:"default_feed_limit"`
	MaxFeedLimit     int `koanf:"max_feed_limit"`

	// SeedQuickRecommenders creates the built-in quick recommender people the
	// first time a user syncs.
	SeedQuickRecommenders bool `koanf:"seed_quick_recommenders"`
}

// WebSocketConfig tunes live connections
type WebSocketConfig struct {
	SendBuffer   int     `koanf:"send_buffer"`
	InboundRate  float64 `koanf:"inbound_rate"`
	InboundBurst int     `koanf:"inbound_burst"`
}

// EventBusConfig selects the notification backend.
//
// Environment Variables:
//   - EVENTBUS_BACKEND: memory or nats (default: memory)
//   - EVENTBUS_TOPIC: subject for sync notifications
//   - NATS_URL: external broker, used when NATS_EMBEDDED=false
//   - NATS_EMBEDDED / NATS_HOST / NATS_PORT / NATS_STORE_DIR: in-process broker
//   - EVENTBUS_BREAKER_THRESHOLD / EVENTBUS_BREAKER_TIMEOUT: publish circuit breaker
type EventBusConfig struct {
	Backend                 string        `koanf:"backend"`
	Topic                   string        `koanf:"topic"`
	NATSURL                 string        `koanf:"nats_url"`
	NATSEmbedded            bool          `koanf:"nats_embedded"`
	NATSHost                string        `koanf:"nats_host"`
	NATSPort                int           `koanf:"nats_port"`
	NATSStoreDir            string        `koanf:"nats_store_dir"`
	BreakerFailureThreshold uint32        `koanf:"breaker_failure_threshold"`
	BreakerTimeout          time.Duration `koanf:"breaker_timeout"`
}

// LoggingConfig holds logging configuration.
//
// Environment Variables:
//   - LOG_LEVEL: trace, debug, info, warn, error (default: info)
//   - LOG_FORMAT: json, console (default: json)
//   - LOG_CALLER: true/false - include caller file:line (default: false)
type LoggingConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
	Caller bool   `koanf:"caller"`
}

// Load reads configuration from defaults, an optional config file and the
// environment, then validates it.
func Load() (*Config, error) {
	return LoadWithKoanf()
}
