// Reelsync - Multi-Device Watchlist Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/reelsync

package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

// DefaultConfigPaths lists the paths where config files are searched in order of priority.
// The first file found will be used.
var DefaultConfigPaths = []string{
	"config.yaml",
	"config.yml",
	"/etc/reelsync/config.yaml",
	"/etc/reelsync/config.yml",
}

// ConfigPathEnvVar is the environment variable that can override the config file path.
const ConfigPathEnvVar = "CONFIG_PATH"

func defaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Port:        8000,
			Host:        "0.0.0.0",
			Timeout:     30 * time.Second,
			Environment: "development",
		},
		Security: SecurityConfig{
			AuthMode:          "jwt",
			JWTSecret:         "",
			DefaultUserID:     "local",
			RateLimitReqs:     300,
			RateLimitWindow:   time.Minute,
			RateLimitDisabled: false,
			CORSOrigins:       []string{"*"},
		},
		Storage: StorageConfig{
			Path:           "/data/reelsync",
			InMemory:       false,
			SyncWrites:     true,
			GCInterval:     10 * time.Minute,
			GCDiscardRatio: 0.5,
		},
		Sync: SyncConfig{
			SkewGraceSeconds:      1.0,
			MaxBatchSize:          500,
			DefaultFeedLimit:      100,
			MaxFeedLimit:          500,
			SeedQuickRecommenders: true,
		},
		WebSocket: WebSocketConfig{
			SendBuffer:   256,
			InboundRate:  5,
			InboundBurst: 20,
		},
		EventBus: EventBusConfig{
			Backend:                 "memory",
			Topic:                   "reelsync.sync.events",
			NATSURL:                 "nats://127.0.0.1:4222",
			NATSEmbedded:            false,
			NATSHost:                "127.0.0.1",
			NATSPort:                4222,
			NATSStoreDir:            "/data/nats",
			BreakerFailureThreshold: 5,
			BreakerTimeout:          30 * time.Second,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Caller: false,
		},
	}
}

// LoadWithKoanf loads configuration using Koanf v2 with layered sources:
//  1. Defaults
//  2. Config File: Optional YAML config file (if exists)
//  3. Environment Variables: Override any setting
func LoadWithKoanf() (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(structs.Provider(defaultConfig(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	if configPath := findConfigFile(); configPath != "" {
		if err := k.Load(file.Provider(configPath), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", configPath, err)
		}
	}

	// HTTP_PORT -> server.port, NATS_URL -> eventbus.nats_url
	if err := k.Load(env.Provider("", ".", envTransformFunc), nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	if err := processSliceFields(k); err != nil {
		return nil, fmt.Errorf("failed to process slice fields: %w", err)
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal configuration: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// findConfigFile returns CONFIG_PATH when it exists, else the first
// existing default path, else "".
func findConfigFile() string {
	if envPath := os.Getenv(ConfigPathEnvVar); envPath != "" {
		if _, err := os.Stat(envPath); err == nil {
			return envPath
		}
	}

	for _, path := range DefaultConfigPaths {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}

	return ""
}

// sliceConfigPaths defines which config paths should be parsed as comma-separated slices
var sliceConfigPaths = []string{
	"security.cors_origins",
}

// processSliceFields converts comma-separated string values to slices for known slice fields.
// Env vars arrive as strings; YAML lists are left alone.
func processSliceFields(k *koanf.Koanf) error {
	for _, path := range sliceConfigPaths {
		strVal, ok := k.Get(path).(string)
		if !ok || strVal == "" {
			continue
		}

		parts := strings.Split(strVal, ",")
		trimmed := make([]string, 0, len(parts))
		for _, p := range parts {
			if p = strings.TrimSpace(p); p != "" {
				trimmed = append(trimmed, p)
			}
		}
		if len(trimmed) > 0 {
			if err := k.Set(path, trimmed); err != nil {
				return fmt.Errorf("failed to set %s: %w", path, err)
			}
		}
	}
	return nil
}

// envMappings is the allow-list of environment variables, lower-cased,
// mapped to koanf paths.
var envMappings = map[string]string{
	// Server
	"http_port":    "server.port",
	"http_host":    "server.host",
	"http_timeout": "server.timeout",
	"environment":  "server.environment",

	// Security
	"auth_mode":           "security.auth_mode",
	"jwt_secret":          "security.jwt_secret",
	"default_user_id":     "security.default_user_id",
	"rate_limit_requests": "security.rate_limit_reqs",
	"rate_limit_window":   "security.rate_limit_window",
	"disable_rate_limit":  "security.rate_limit_disabled",
	"cors_origins":        "security.cors_origins",

	// Storage
	"storage_path":             "storage.path",
	"storage_in_memory":        "storage.in_memory",
	"storage_sync_writes":      "storage.sync_writes",
	"storage_gc_interval":      "storage.gc_interval",
	"storage_gc_discard_ratio": "storage.gc_discard_ratio",

	// Sync
	"sync_skew_grace_seconds":      "sync.skew_grace_seconds",
	"sync_max_batch_size":          "sync.max_batch_size",
	"sync_default_feed_limit":      "sync.default_feed_limit",
	"sync_max_feed_limit":          "sync.max_feed_limit",
	"sync_seed_quick_recommenders": "sync.seed_quick_recommenders",

	// WebSocket
	"ws_send_buffer":   "websocket.send_buffer",
	"ws_inbound_rate":  "websocket.inbound_rate",
	"ws_inbound_burst": "websocket.inbound_burst",

	// Event bus
	"eventbus_backend":           "eventbus.backend",
	"eventbus_topic":             "eventbus.topic",
	"nats_url":                   "eventbus.nats_url",
	"nats_embedded":              "eventbus.nats_embedded",
	"nats_host":                  "eventbus.nats_host",
	"nats_port":                  "eventbus.nats_port",
	"nats_store_dir":             "eventbus.nats_store_dir",
	"eventbus_breaker_threshold": "eventbus.breaker_failure_threshold",
	"eventbus_breaker_timeout":   "eventbus.breaker_timeout",

	// Logging
	"log_level":  "logging.level",
	"log_format": "logging.format",
	"log_caller": "logging.caller",
}

// envTransformFunc maps an environment variable name to its koanf path.
// Unmapped variables return "" and are skipped so unrelated environment
// does not pollute the configuration.
func envTransformFunc(key string) string {
	return envMappings[strings.ToLower(key)]
}
