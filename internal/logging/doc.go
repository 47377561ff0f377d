// Reelsync - Multi-Device Watchlist Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/reelsync

// Package logging provides centralized zerolog-based structured logging for Reelsync.
//
// Every component logs through the global logger configured here. JSON output
// is the production default; console output is available for development.
//
// # Quick Start
//
//	logging.Init(logging.Config{
//	    Level:   cfg.Logging.Level,
//	    Format:  cfg.Logging.Format,
//	    Service: "reelsync",
//	    Version: version,
//	})
//
//	logging.Info().Str("addr", addr).Msg("HTTP server listening")
//	logging.Error().Err(err).Msg("Batch apply failed")
//
// # Context Fields
//
// Request handlers attach a request id, the authenticated user and the live
// connection id to the context. Ctx picks them up automatically:
//
//	ctx = logging.ContextWithUserID(ctx, userID)
//	logging.Ctx(ctx).Info().Str("action", "markWatched").Msg("Action applied")
//	// {"level":"info","request_id":"...","user_id":"alice","action":"markWatched",...}
//
// # Adapters
//
// Two adapters route third-party logging into zerolog:
//
//   - SlogHandler implements slog.Handler for sutureslog (supervisor events)
//   - WatermillAdapter implements watermill.LoggerAdapter for the event bus
//
// # Configuration
//
// Environment Variables:
//   - LOG_LEVEL: trace, debug, info, warn, error, disabled (default: info).
//     ParseLevel is shared with config validation.
//   - LOG_FORMAT: json, console (default: json)
//   - LOG_CALLER: true/false (default: false)
package logging
