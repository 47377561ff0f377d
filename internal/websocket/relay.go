// Reelsync - Multi-Device Watchlist Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/reelsync

package websocket

import (
	"context"
	"fmt"

	"github.com/ThreeDotsLabs/watermill/message"

	"github.com/tomtom215/reelsync/internal/eventbus"
	"github.com/tomtom215/reelsync/internal/logging"
	"github.com/tomtom215/reelsync/internal/metrics"
)

// EnvelopeSource is the subscribing half of the event bus.
type EnvelopeSource interface {
	Subscribe(ctx context.Context) (<-chan *message.Message, error)
}

// Relay bridges the event bus to the local hub. Each instance runs one relay
// so envelopes published by any instance reach the connections held here.
type Relay struct {
	source EnvelopeSource
	hub    *Hub
}

// NewRelay creates a relay delivering envelopes from source to hub.
func NewRelay(source EnvelopeSource, hub *Hub) *Relay {
	return &Relay{source: source, hub: hub}
}

// Run subscribes and forwards envelopes until ctx is canceled or the
// subscription closes. A closed subscription while ctx is live is an error
// so a supervisor restarts the relay.
func (r *Relay) Run(ctx context.Context) error {
	messages, err := r.source.Subscribe(ctx)
	if err != nil {
		return fmt.Errorf("subscribe to event bus: %w", err)
	}

	logging.Info().Str("component", "websocket-relay").Msg("event relay started")
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg, ok := <-messages:
			if !ok {
				if ctx.Err() != nil {
					return ctx.Err()
				}
				return fmt.Errorf("event bus subscription closed")
			}
			r.handle(ctx, msg)
		}
	}
}

// handle acks every message, including malformed ones, since redelivery
// could never make them decodable.
func (r *Relay) handle(ctx context.Context, msg *message.Message) {
	defer msg.Ack()

	env, err := eventbus.EnvelopeFromMessage(msg)
	if err != nil {
		metrics.RecordWSError("envelope_decode")
		logging.Warn().Err(err).Str("message_uuid", msg.UUID).Msg("dropping undecodable envelope")
		return
	}
	metrics.RecordEventConsume()
	r.hub.Notify(ctx, env.UserID, env.OriginConnectionID, env.Events)
}
