// Reelsync - Multi-Device Watchlist Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/reelsync

package services

import (
	"context"

	"github.com/thejerf/suture/v4"
)

// ContextHub is satisfied by *websocket.Hub.
type ContextHub interface {
	RunWithContext(ctx context.Context) error
}

// WebSocketHubService runs the live connection hub. On shutdown the hub
// closes every connection it holds.
type WebSocketHubService struct {
	hub  ContextHub
	name string
}

var _ suture.Service = (*WebSocketHubService)(nil)

// NewWebSocketHubService wraps hub.
func NewWebSocketHubService(hub ContextHub) *WebSocketHubService {
	return &WebSocketHubService{hub: hub, name: "websocket-hub"}
}

// Serve implements suture.Service.
func (w *WebSocketHubService) Serve(ctx context.Context) error {
	return w.hub.RunWithContext(ctx)
}

func (w *WebSocketHubService) String() string {
	return w.name
}

// Runner is satisfied by *websocket.Relay.
type Runner interface {
	Run(ctx context.Context) error
}

// RelayService runs the event bus relay. A lost subscription returns an
// error and suture resubscribes after its backoff.
type RelayService struct {
	relay Runner
	name  string
}

var _ suture.Service = (*RelayService)(nil)

// NewRelayService wraps relay.
func NewRelayService(relay Runner) *RelayService {
	return &RelayService{relay: relay, name: "eventbus-relay"}
}

// Serve implements suture.Service.
func (r *RelayService) Serve(ctx context.Context) error {
	return r.relay.Run(ctx)
}

func (r *RelayService) String() string {
	return r.name
}
