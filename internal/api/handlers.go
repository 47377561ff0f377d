// Reelsync - Multi-Device Watchlist Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/reelsync

package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/tomtom215/reelsync/internal/auth"
	"github.com/tomtom215/reelsync/internal/cache"
	"github.com/tomtom215/reelsync/internal/clock"
	"github.com/tomtom215/reelsync/internal/config"
	"github.com/tomtom215/reelsync/internal/eventbus"
	"github.com/tomtom215/reelsync/internal/feed"
	"github.com/tomtom215/reelsync/internal/logging"
	"github.com/tomtom215/reelsync/internal/models"
	"github.com/tomtom215/reelsync/internal/processor"
	"github.com/tomtom215/reelsync/internal/store"
	ws "github.com/tomtom215/reelsync/internal/websocket"
)

// BusHealth is the part of the event bus the health endpoints inspect.
type BusHealth interface {
	Ping() error
	Backend() string
}

// Dependencies are the collaborators of Handler. Bus is optional; every
// other field is required.
type Dependencies struct {
	Config    *config.Config
	Clock     clock.Clock
	Store     store.Store
	Processor *processor.Processor
	Feed      *feed.Builder
	Hub       *ws.Hub
	Notifier  eventbus.Notifier
	Bus       BusHealth
	Auth      *auth.Middleware
	Version   string
}

// Handler contains dependencies for API handlers
//
// Handler methods are split across files:
//   - handlers.go: Handler struct, constructor, seeding and upgrade helpers
//   - handlers_sync.go: single action, batch and change feed endpoints
//   - handlers_ws.go: live channel endpoint
//   - handlers_health.go: health and readiness endpoints
type Handler struct {
	config    *config.Config
	clock     clock.Clock
	store     store.Store
	processor *processor.Processor
	feed      *feed.Builder
	hub       *ws.Hub
	notifier  eventbus.Notifier
	bus       BusHealth
	auth      *auth.Middleware
	version   string
	upgrader  websocket.Upgrader
	startTime time.Time

	// seeded holds users whose quick recommenders were checked recently.
	seeded *cache.KeySet
}

// NewHandler creates the API handler.
//
// Example:
//
//	handler, err := api.NewHandler(api.Dependencies{
//	    Config: cfg, Clock: clk, Store: st, Processor: proc, Feed: builder,
//	    Hub: hub, Notifier: fanout, Bus: bus, Auth: authMiddleware,
//	})
func NewHandler(deps Dependencies) (*Handler, error) {
	switch {
	case deps.Config == nil:
		return nil, errors.New("api: config is required")
	case deps.Clock == nil:
		return nil, errors.New("api: clock is required")
	case deps.Store == nil:
		return nil, errors.New("api: store is required")
	case deps.Processor == nil:
		return nil, errors.New("api: processor is required")
	case deps.Feed == nil:
		return nil, errors.New("api: feed builder is required")
	case deps.Hub == nil:
		return nil, errors.New("api: websocket hub is required")
	case deps.Auth == nil:
		return nil, errors.New("api: auth middleware is required")
	}

	notifier := deps.Notifier
	if notifier == nil {
		notifier = deps.Hub
	}

	h := &Handler{
		config:    deps.Config,
		clock:     deps.Clock,
		store:     deps.Store,
		processor: deps.Processor,
		feed:      deps.Feed,
		hub:       deps.Hub,
		notifier:  notifier,
		bus:       deps.Bus,
		auth:      deps.Auth,
		version:   deps.Version,
		startTime: time.Now(),
		seeded:    cache.NewKeySet(cache.DefaultCapacity, cache.DefaultTTL),
	}
	h.upgrader = websocket.Upgrader{
		ReadBufferSize:   1024,
		WriteBufferSize:  1024,
		CheckOrigin:      h.checkWebSocketOrigin,
		HandshakeTimeout: 10 * time.Second,
	}
	return h, nil
}

// checkWebSocketOrigin validates WebSocket connection origins. Requests
// without an Origin header come from native clients and are accepted; the
// token check still applies to them.
func (h *Handler) checkWebSocketOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	for _, allowed := range h.config.Security.CORSOrigins {
		if allowed == "*" || allowed == origin {
			return true
		}
	}
	logging.CtxWarn(r.Context()).
		Str("origin", sanitizeLogValue(origin)).
		Msg("WebSocket connection rejected from unauthorized origin")
	return false
}

// ensureSeeded creates the quick recommenders of userID before its first
// write. The store records that a user was seeded, so this happens once per
// user; the key set only spares the store lookup on later requests. Failures
// are logged and retried on the next request; they never fail the request.
// The change feed never calls this.
func (h *Handler) ensureSeeded(ctx context.Context, userID string) {
	if !h.config.Sync.SeedQuickRecommenders {
		return
	}
	if !h.seeded.Claim(userID) {
		return
	}

	written, err := store.SeedQuickRecommenders(ctx, h.store, userID, h.clock.Now())
	if err != nil {
		h.seeded.Forget(userID)
		logging.CtxWarn(ctx).Err(err).Msg("Failed to seed quick recommenders")
		return
	}
	if written > 0 {
		logging.CtxDebug(ctx).Int("people", written).Msg("Seeded quick recommenders")
		h.notifier.Notify(ctx, userID, "", []models.Event{models.PeopleEvent()})
	}
}
