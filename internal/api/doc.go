// Reelsync - Multi-Device Watchlist Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/reelsync

/*
Package api provides the HTTP surface of the sync engine.

Routes:

	POST /api/v1/sync           one action            -> ActionResponse
	POST /api/v1/sync/batch     queued actions        -> {results, server_timestamp}
	GET  /api/v1/sync/changes   since, limit, offset  -> change feed page
	GET  /ws/sync               live channel (token query parameter or bearer header)
	GET  /api/v1/health[/live|/ready]
	GET  /metrics

Response Shapes:

Sync endpoints answer with the bare payloads devices expect. A request that
is rejected as a whole (malformed body, oversized batch, bad pagination,
missing credentials) gets the APIResponse envelope instead:

	{"success": false, "error": {"code": "BAD_REQUEST", "message": "...", "request_id": "..."}}

Per-action failures never change the HTTP status. An unknown action kind, a
conflict or a missing entity is a 200 whose ActionResponse carries
success=false and the error text.

Originating Device:

The live channel announces a connection_id in its connected frame. A device
that echoes it in the X-Sync-Connection-ID header of its sync requests does
not receive the notifications its own writes trigger. Requests without the
header notify every connection of the user.

Middleware Stack:

	RequestIDWithLogging -> RealIP -> Recoverer -> CORS
	/api/v1/sync:   httprate per IP -> security headers -> Prometheus -> access log
	                -> JWT authentication -> httprate per user [-> gzip for feed reads]
*/
package api
