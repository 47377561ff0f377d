// Reelsync - Multi-Device Watchlist Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/reelsync

package eventbus

import (
	"context"

	"github.com/tomtom215/reelsync/internal/logging"
	"github.com/tomtom215/reelsync/internal/models"
)

// Notifier delivers the events of one request to a user's live connections.
type Notifier interface {
	Notify(ctx context.Context, userID, originConnID string, events []models.Event)
}

// Fanout publishes one envelope per request so every instance can reach its
// own connections. When publishing fails, events go straight to the local
// fallback; remote devices then catch up through the change feed.
type Fanout struct {
	publisher *Publisher
	topic     string
	fallback  Notifier
}

var _ Notifier = (*Fanout)(nil)

// NewFanout creates a Fanout publishing on the bus topic. fallback may be nil.
func NewFanout(bus *Bus, fallback Notifier) *Fanout {
	return &Fanout{publisher: bus.Publisher(), topic: bus.Topic(), fallback: fallback}
}

// Notify implements Notifier.
func (f *Fanout) Notify(ctx context.Context, userID, originConnID string, events []models.Event) {
	if len(events) == 0 {
		return
	}

	err := f.publisher.PublishEnvelope(ctx, f.topic, &Envelope{
		UserID:             userID,
		OriginConnectionID: originConnID,
		Events:             events,
	})
	if err == nil {
		return
	}

	logging.CtxWarn(ctx).
		Err(err).
		Str("breaker", f.publisher.BreakerState()).
		Int("events", len(events)).
		Msg("Failed to publish sync notification")

	if f.fallback != nil {
		f.fallback.Notify(ctx, userID, originConnID, events)
	}
}
