// Reelsync - Multi-Device Watchlist Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/reelsync

/*
Package websocket pushes sync notifications to a user's live devices.

Each device opens one WebSocket connection at /ws/sync. The hub keeps a
registry of connections per user and, when a sync request changes data,
sends a small frame to every other connection of that user. Frames only
say what changed; devices fetch the data itself through the change feed.

Key Components:

  - Hub: per-user connection registry, owned by a single goroutine
  - Client: one connection with its read and write pumps
  - Relay: subscribes to the event bus and hands envelopes to the hub

Architecture:

	sync request ──▶ eventbus.Fanout ──▶ topic ──▶ Relay (every instance)
	                                                   │
	                                                   ▼
	                                                  Hub
	                                          ┌────────┼────────┐
	                                          ▼        ▼        ▼
	                                       phone    laptop    tablet

Frames:

	{"type":"connected","connection_id":"...","timestamp":1700000000.0}
	{"type":"movieUpdated","imdb_id":"tt0111161","timestamp":...}
	{"type":"movieAdded","imdb_id":"...","timestamp":...}
	{"type":"movieDeleted","imdb_id":"...","timestamp":...}
	{"type":"peopleUpdated","timestamp":...}
	{"type":"listUpdated","list_id":"...","timestamp":...}
	{"type":"pong","timestamp":...}

The connection id in the connected frame is echoed by the device in the
X-Sync-Connection-ID header of its sync requests so it does not receive
notifications for its own changes.

Delivery:

Delivery is best effort. A client whose send buffer is full is removed and
its connection closed; the device reconnects and catches up through the
change feed. When the hub's own queue is full, Deliver waits for room until
the caller's context ends; only then are the frames dropped.

Register, Unregister and Deliver return as soon as the hub has stopped, so a
read pump can always exit. Register reports false in that case and the
caller closes the connection.

Thread Safety:

Register, Unregister, Deliver and Notify are safe for concurrent use. The
registry is only mutated by RunWithContext; count accessors take a read
lock.
*/
package websocket
