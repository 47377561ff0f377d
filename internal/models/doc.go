// Reelsync - Multi-Device Watchlist Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/reelsync

/*
Package models defines the entities tracked per user and the events emitted
when they change.

Entities:

  - MediaItem: a movie or show keyed by (user, imdb_id). Stored as one aggregate
    holding its Status, optional WatchEntry and Recommendations, so deleting the
    item removes everything it owns.
  - Person: a recommender, unique per (user, name), referenced by numeric id.
  - CustomList: a user defined list that Status values of state "custom" point at.

Every entity carries LastModified (Unix seconds). Only the server clock writes
it; see package clock.

Events:

Event pairs an EventKind with an optional entity identifier. DedupeEvents
collapses the events produced by one request into a sorted unique set, and
Event.Frame renders the JSON frame pushed to live connections:

	{"type":"movieUpdated","imdb_id":"tt0111161","timestamp":1700000000.5}
*/
package models
