// Reelsync - Multi-Device Watchlist Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/reelsync

/*
Package auth resolves the user a request acts for.

Every stored entity is scoped to a user id, and that id comes only from here:
the subject of an HS256 JWT in jwt mode, or DEFAULT_USER_ID in none mode.
Tokens are issued elsewhere; JWTManager.GenerateToken exists for tooling
and tests.

Authentication Modes:

  - jwt (default): "Authorization: Bearer <token>" on API requests. The
    live channel also accepts ?token=<token> because browsers cannot set
    headers on a WebSocket handshake.
  - none: every request acts as DEFAULT_USER_ID. Refused in production.

Usage:

	jwtManager, err := auth.NewJWTManager(cfg.Security.JWTSecret, 0)
	mw, err := auth.NewMiddleware(jwtManager, cfg.Security.AuthMode, cfg.Security.DefaultUserID)

	r.With(mw.Authenticate).Post("/api/v1/sync", h.SyncAction)

	userID := auth.UserIDFromContext(r.Context())
*/
package auth
