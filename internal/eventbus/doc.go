// Reelsync - Multi-Device Watchlist Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/reelsync

/*
Package eventbus carries sync notifications between server instances.

Every accepted sync request produces at most one Envelope: the user, the
connection that made the request, and the deduplicated events. Fanout
publishes that envelope on a single topic and every instance runs a relay
that subscribes to the topic and hands envelopes to its local websocket hub.
A single process deployment uses the in-memory gochannel backend; several
instances share a NATS subject, either through an external broker or an
embedded nats-server.

Backends:

	memory  watermill gochannel, no network
	nats    watermill-nats on core NATS (JetStream disabled, no queue group)

Every instance must see every envelope, so the NATS subscriber never joins a
queue group and nothing is persisted. A notification missed during an outage
is recovered by the client through the change feed.

Publishing goes through a gobreaker circuit breaker. While the breaker is
open, Fanout fails fast and delivers to the local hub directly so devices
connected to the same instance still get live updates.

Usage:

	bus, err := eventbus.Open(cfg, nil)
	if err != nil {
	    return err
	}
	defer bus.Close()

	notifier := eventbus.NewFanout(bus, hub)
	notifier.Notify(ctx, userID, connID, events)
*/
package eventbus
