// Reelsync - Multi-Device Watchlist Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/reelsync

/*
Package config loads and validates reelsync configuration.

# Configuration Sources

Koanf v2 layers three sources, later ones winning:
  - Built-in defaults (defaultConfig)
  - An optional YAML file: CONFIG_PATH, else config.yaml or /etc/reelsync/config.yaml
  - Environment variables from an explicit allow-list

Environment variables outside the allow-list are ignored.

# Environment Variables

Server:
  - HTTP_PORT (8000), HTTP_HOST (0.0.0.0), HTTP_TIMEOUT (30s), ENVIRONMENT (development)

Security:
  - AUTH_MODE (jwt), JWT_SECRET, DEFAULT_USER_ID (local)
  - RATE_LIMIT_REQUESTS (300), RATE_LIMIT_WINDOW (1m), DISABLE_RATE_LIMIT (false)
  - CORS_ORIGINS (*)

Storage:
  - STORAGE_PATH (/data/reelsync), STORAGE_IN_MEMORY (false), STORAGE_SYNC_WRITES (true)
  - STORAGE_GC_INTERVAL (10m), STORAGE_GC_DISCARD_RATIO (0.5)

Sync:
  - SYNC_SKEW_GRACE_SECONDS (1.0), SYNC_MAX_BATCH_SIZE (500)
  - SYNC_DEFAULT_FEED_LIMIT (100), SYNC_MAX_FEED_LIMIT (500)
  - SYNC_SEED_QUICK_RECOMMENDERS (true)

WebSocket:
  - WS_SEND_BUFFER (256), WS_INBOUND_RATE (5), WS_INBOUND_BURST (20)

Event bus:
  - EVENTBUS_BACKEND (memory), EVENTBUS_TOPIC (reelsync.sync.events)
  - NATS_URL, NATS_EMBEDDED, NATS_HOST, NATS_PORT, NATS_STORE_DIR
  - EVENTBUS_BREAKER_THRESHOLD (5), EVENTBUS_BREAKER_TIMEOUT (30s)

Logging:
  - LOG_LEVEL (info), LOG_FORMAT (json), LOG_CALLER (false)

# Validation

Validate runs one validator per section and stops at the first failure.
Messages name the environment variable to change. Production deployments
(ENVIRONMENT=production) refuse AUTH_MODE=none and wildcard CORS with
authentication enabled.

# Usage

	cfg, err := config.Load()
	if err != nil {
	    logging.Fatal().Err(err).Msg("Failed to load configuration")
	}
*/
package config
