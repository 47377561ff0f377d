// Reelsync - Multi-Device Watchlist Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/reelsync

package websocket

import (
	"context"
	"sort"
	"sync"

	"github.com/tomtom215/reelsync/internal/clock"
	"github.com/tomtom215/reelsync/internal/logging"
	"github.com/tomtom215/reelsync/internal/metrics"
	"github.com/tomtom215/reelsync/internal/models"
)

// ShutdownReason identifies why the hub is shutting down.
type ShutdownReason string

const (
	// ShutdownReasonContextCanceled is the normal graceful shutdown path.
	ShutdownReasonContextCanceled ShutdownReason = "context_canceled"

	// ShutdownReasonContextDeadline may indicate a hung operation during shutdown.
	ShutdownReasonContextDeadline ShutdownReason = "context_deadline"
)

// Client frame types outside the event kinds.
const (
	MessageTypePing = "ping"
	MessageTypePong = "pong"
)

const (
	lifecycleBuffer = 256
	deliveryBuffer  = 1024
)

// lifecycleOp is a register or unregister request. Both travel on one
// channel so a connect followed by a disconnect is applied in order.
type lifecycleOp struct {
	client   *Client
	register bool
}

// delivery is one batch of frames for one user.
type delivery struct {
	userID  string
	exclude string
	frames  []models.Frame
}

// Hub is the per-user registry of live connections. A single goroutine,
// RunWithContext, owns the registry; connect, disconnect and delivery are
// messages to it. The mutex only guards reads from other goroutines.
type Hub struct {
	clients   map[string]map[*Client]struct{}
	lifecycle chan lifecycleOp
	deliver   chan delivery
	clock     clock.Clock
	mu        sync.RWMutex

	// stopped is closed when a run ends and replaced when the next starts.
	// Senders select on it so nothing blocks on a hub that is gone.
	stopped chan struct{}
}

// NewHub creates a Hub that stamps frames with clk.
func NewHub(clk clock.Clock) *Hub {
	if clk == nil {
		clk = clock.System{}
	}
	return &Hub{
		clients:   make(map[string]map[*Client]struct{}),
		lifecycle: make(chan lifecycleOp, lifecycleBuffer),
		deliver:   make(chan delivery, deliveryBuffer),
		clock:     clk,
		stopped:   make(chan struct{}),
	}
}

func (h *Hub) stoppedCh() <-chan struct{} {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.stopped
}

// Register queues c for registration. The hub acknowledges with a connected
// frame carrying the connection id. It waits while the queue is full and
// reports false when ctx ends or the hub has stopped first; the caller then
// owns closing the connection.
func (h *Hub) Register(ctx context.Context, c *Client) bool {
	stopped := h.stoppedCh()
	select {
	case <-stopped:
		return false
	default:
	}
	select {
	case h.lifecycle <- lifecycleOp{client: c, register: true}:
		return true
	case <-ctx.Done():
		return false
	case <-stopped:
		return false
	}
}

// Unregister queues c for removal. Removing an unknown or already removed
// client is a no-op. Once the hub has stopped every client is already closed,
// so Unregister returns without queueing.
func (h *Hub) Unregister(c *Client) {
	stopped := h.stoppedCh()
	select {
	case <-stopped:
		return
	default:
	}
	select {
	case h.lifecycle <- lifecycleOp{client: c}:
	case <-stopped:
	}
}

// Deliver queues frames for every connection of userID except the one whose
// connection id equals exclude. When the queue is full it waits for room
// until ctx ends or the hub stops; only then are the frames dropped, and
// devices recover through the change feed.
func (h *Hub) Deliver(ctx context.Context, userID, exclude string, frames []models.Frame) bool {
	if len(frames) == 0 {
		return true
	}
	d := delivery{userID: userID, exclude: exclude, frames: frames}
	stopped := h.stoppedCh()
	select {
	case <-stopped:
		return h.dropDelivery(d)
	default:
	}
	select {
	case h.deliver <- d:
		return true
	default:
	}

	metrics.RecordWSError("delivery_backpressure")
	select {
	case h.deliver <- d:
		return true
	case <-ctx.Done():
	case <-stopped:
	}
	return h.dropDelivery(d)
}

func (h *Hub) dropDelivery(d delivery) bool {
	metrics.RecordWSError("delivery_dropped")
	logging.Warn().
		Str("user_id", d.userID).
		Int("frames", len(d.frames)).
		Msg("websocket hub unavailable, dropping frames")
	return false
}

// Notify converts events to frames stamped with the current time and delivers
// them to the user's other connections.
func (h *Hub) Notify(ctx context.Context, userID, originConnID string, events []models.Event) {
	if len(events) == 0 {
		return
	}
	now := h.clock.Now()
	frames := make([]models.Frame, 0, len(events))
	for _, e := range events {
		frames = append(frames, e.Frame(now))
	}
	h.Deliver(ctx, userID, originConnID, frames)
}

// RunWithContext runs the hub until ctx is canceled, then closes every
// client and returns ctx.Err(). It is safe to call again after it returns.
//
// Selection is prioritized: shutdown first, then connection lifecycle, then
// deliveries, so a delivery never reaches a client whose removal is pending.
func (h *Hub) RunWithContext(ctx context.Context) error {
	h.mu.Lock()
	select {
	case <-h.stopped:
		h.stopped = make(chan struct{})
	default:
	}
	h.mu.Unlock()

	for {
		select {
		case <-ctx.Done():
			h.shutdown(ctx)
			return ctx.Err()
		default:
		}

		select {
		case op := <-h.lifecycle:
			h.apply(op)
			continue
		default:
		}

		select {
		case <-ctx.Done():
			h.shutdown(ctx)
			return ctx.Err()
		case op := <-h.lifecycle:
			h.apply(op)
		case d := <-h.deliver:
			h.fanOut(d)
		}
	}
}

func (h *Hub) apply(op lifecycleOp) {
	if op.register {
		h.add(op.client)
	} else {
		h.remove(op.client)
	}
}

func (h *Hub) add(c *Client) {
	h.mu.Lock()
	if c.closed {
		// Removed by an earlier shutdown; send is already closed.
		h.mu.Unlock()
		return
	}
	set, ok := h.clients[c.userID]
	if !ok {
		set = make(map[*Client]struct{})
		h.clients[c.userID] = set
	}
	set[c] = struct{}{}
	h.mu.Unlock()

	c.enqueue(models.Frame{
		Type:         models.FrameConnected,
		ConnectionID: c.connID,
		Timestamp:    h.clock.Now(),
	})
	h.updateGauges()

	logging.Debug().
		Str("user_id", c.userID).
		Str("connection_id", c.connID).
		Msg("websocket client connected")
}

func (h *Hub) remove(c *Client) {
	h.mu.Lock()
	removed := h.dropLocked(c)
	h.mu.Unlock()

	if removed {
		h.updateGauges()
		logging.Debug().
			Str("user_id", c.userID).
			Str("connection_id", c.connID).
			Msg("websocket client disconnected")
	}
}

// dropLocked removes c, closes its send channel and prunes an empty user.
// It reports whether c was registered.
func (h *Hub) dropLocked(c *Client) bool {
	set, ok := h.clients[c.userID]
	if !ok {
		return false
	}
	if _, ok := set[c]; !ok {
		return false
	}
	delete(set, c)
	c.closed = true
	close(c.send)
	if len(set) == 0 {
		delete(h.clients, c.userID)
	}
	return true
}

// fanOut sends d to the user's clients in id order. A client whose buffer is
// full is removed.
func (h *Hub) fanOut(d delivery) {
	h.mu.Lock()
	clients := sortedClients(h.clients[d.userID])

	var failed int
	for _, c := range clients {
		if d.exclude != "" && c.connID == d.exclude {
			continue
		}
		for _, f := range d.frames {
			if !c.enqueue(f) {
				h.dropLocked(c)
				failed++
				metrics.RecordWSError("send_buffer_full")
				break
			}
		}
	}
	h.mu.Unlock()

	if failed > 0 {
		h.updateGauges()
		logging.Warn().
			Str("user_id", d.userID).
			Int("removed", failed).
			Msg("removed websocket clients with full send buffers")
	}
}

func (h *Hub) shutdown(ctx context.Context) {
	h.mu.Lock()
	closed := 0
	for userID, set := range h.clients {
		for _, c := range sortedClients(set) {
			c.closed = true
			close(c.send)
			closed++
		}
		delete(h.clients, userID)
	}
	// Registrations still queued would otherwise leave their write pumps
	// waiting on a send channel nobody closes.
	for drained := false; !drained; {
		select {
		case op := <-h.lifecycle:
			if op.register && !op.client.closed {
				op.client.closed = true
				close(op.client.send)
				closed++
			}
		default:
			drained = true
		}
	}
	close(h.stopped)
	h.mu.Unlock()
	h.updateGauges()

	logging.Info().
		Str("component", "websocket-hub").
		Str("reason", string(getShutdownReason(ctx))).
		Int("clients_closed", closed).
		Msg("websocket hub stopped")
}

func getShutdownReason(ctx context.Context) ShutdownReason {
	if ctx.Err() == context.DeadlineExceeded {
		return ShutdownReasonContextDeadline
	}
	return ShutdownReasonContextCanceled
}

func sortedClients(set map[*Client]struct{}) []*Client {
	clients := make([]*Client, 0, len(set))
	for c := range set {
		clients = append(clients, c)
	}
	sort.Slice(clients, func(i, j int) bool { return clients[i].id < clients[j].id })
	return clients
}

func (h *Hub) updateGauges() {
	metrics.SetWSGauges(h.ClientCount(), h.UserCount())
}

// ClientCount returns the number of registered connections.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	n := 0
	for _, set := range h.clients {
		n += len(set)
	}
	return n
}

// UserCount returns the number of users with at least one connection.
func (h *Hub) UserCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// UserClientCount returns the number of connections registered for userID.
func (h *Hub) UserClientCount(userID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients[userID])
}
