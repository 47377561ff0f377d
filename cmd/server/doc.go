// Reelsync - Multi-Device Watchlist Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/reelsync

/*
Package main is the entry point for the Reelsync sync server.

The server keeps one user's watchlist, people and custom lists consistent
across their devices. Devices push queued actions, pull a change feed since
their last sync and hold a WebSocket open for live notifications.

# Application Architecture

	reelsync
	├── data-layer
	│   └── store GC (BadgerDB value log)
	├── messaging-layer
	│   ├── WebSocket hub
	│   └── event bus relay (memory or NATS)
	└── api-layer
	    └── HTTP server (chi)

Initialization order:

 1. Configuration: Koanf v2 (defaults, config.yaml, environment)
 2. Logging: zerolog, JSON or console
 3. Store: BadgerDB on disk, or in memory with STORAGE_IN_MEMORY=true
 4. Event bus: watermill over gochannel or NATS JetStream
 5. Hub, processor, change feed and authentication
 6. Supervisor tree, then the HTTP server inside it

# Configuration

Common settings:

	HTTP_PORT=8000
	AUTH_MODE=jwt                # or none for a single-user install
	JWT_SECRET=...               # 32+ characters
	STORAGE_PATH=/data/reelsync
	EVENTBUS_BACKEND=memory      # nats to share notifications across instances
	NATS_URL=nats://nats:4222
	LOG_LEVEL=info

# Signal Handling

SIGINT and SIGTERM cancel the supervisor tree. The HTTP server drains for up
to 10s, the hub closes live connections, and then the event bus and store
are closed.
*/
package main
