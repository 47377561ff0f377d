// Reelsync - Multi-Device Watchlist Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/reelsync

/*
Package services adapts the sync server's long-running components to
suture.Service.

	HTTPServerService    *http.Server; ListenAndServe until ctx ends, then Shutdown
	WebSocketHubService  websocket.Hub.RunWithContext
	RelayService         websocket.Relay.Run; a lost subscription is a failure
	StoreGCService       periodic badger value log GC

Each wrapper depends on a one-method interface so the package does not import
the components it runs. Services return ctx.Err() on shutdown and
suture.ErrDoNotRestart when there is nothing left to do, such as a closed
store.
*/
package services
