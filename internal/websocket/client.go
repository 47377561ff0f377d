// Reelsync - Multi-Device Watchlist Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/reelsync

package websocket

import (
	"sync/atomic"
	"time"

	"github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"golang.org/x/time/rate"

	"github.com/tomtom215/reelsync/internal/logging"
	"github.com/tomtom215/reelsync/internal/metrics"
	"github.com/tomtom215/reelsync/internal/models"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 512 * 1024 // 512 KB
)

// Defaults for ClientOptions zero values.
const (
	DefaultSendBuffer   = 256
	DefaultInboundRate  = 5
	DefaultInboundBurst = 20
)

// clientIDCounter orders clients for deterministic fan-out.
var clientIDCounter atomic.Uint64

// ClientOptions tunes one connection.
type ClientOptions struct {
	SendBuffer   int
	InboundRate  float64 // frames per second
	InboundBurst int
}

func (o ClientOptions) withDefaults() ClientOptions {
	if o.SendBuffer <= 0 {
		o.SendBuffer = DefaultSendBuffer
	}
	if o.InboundRate <= 0 {
		o.InboundRate = DefaultInboundRate
	}
	if o.InboundBurst <= 0 {
		o.InboundBurst = DefaultInboundBurst
	}
	return o
}

// Client is one device connection. The hub owns send and closed: only the
// hub goroutine writes to or closes send, under the hub mutex.
type Client struct {
	id      uint64
	connID  string
	userID  string
	hub     *Hub
	conn    *websocket.Conn
	send    chan models.Frame
	pong    chan struct{}
	limiter *rate.Limiter
	closed  bool
}

// NewClient creates a Client for userID with a fresh connection id.
func NewClient(hub *Hub, conn *websocket.Conn, userID string, opts ClientOptions) *Client {
	opts = opts.withDefaults()
	return &Client{
		id:      clientIDCounter.Add(1),
		connID:  uuid.NewString(),
		userID:  userID,
		hub:     hub,
		conn:    conn,
		send:    make(chan models.Frame, opts.SendBuffer),
		pong:    make(chan struct{}, 1),
		limiter: rate.NewLimiter(rate.Limit(opts.InboundRate), opts.InboundBurst),
	}
}

// ID returns the ordering id.
func (c *Client) ID() uint64 { return c.id }

// ConnectionID returns the id announced in the connected frame.
func (c *Client) ConnectionID() string { return c.connID }

// UserID returns the owning user.
func (c *Client) UserID() string { return c.userID }

// enqueue offers f without blocking and reports whether it was accepted.
func (c *Client) enqueue(f models.Frame) bool {
	select {
	case c.send <- f:
		return true
	default:
		return false
	}
}

// readPump consumes client frames until the connection fails, then
// unregisters the client exactly once.
func (c *Client) readPump() {
	defer func() {
		c.hub.Unregister(c)
		_ = c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	if err := c.conn.SetReadDeadline(time.Now().Add(pongWait)); err != nil {
		logging.Error().Err(err).Msg("failed to set read deadline")
		return
	}
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseAbnormalClosure) {
				metrics.RecordWSError("read")
				logging.Debug().Err(err).Str("connection_id", c.connID).Msg("unexpected websocket close")
			}
			return
		}
		metrics.WSMessagesReceived.Inc()

		if !c.limiter.Allow() {
			metrics.RecordWSError("rate_limited")
			logging.Warn().
				Str("user_id", c.userID).
				Str("connection_id", c.connID).
				Msg("websocket client exceeded inbound frame rate")
			_ = c.conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.ClosePolicyViolation, "rate limit exceeded"),
				time.Now().Add(writeWait))
			return
		}

		var frame struct {
			Type string `json:"type"`
		}
		if json.Unmarshal(data, &frame) != nil {
			continue
		}
		if frame.Type == MessageTypePing {
			select {
			case c.pong <- struct{}{}:
			default:
			}
		}
	}
}

// writePump writes frames and keepalive pings until send is closed or a
// write fails.
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case frame, ok := <-c.send:
			if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				return
			}
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.writeFrame(frame); err != nil {
				return
			}

		case <-c.pong:
			if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				return
			}
			if err := c.writeFrame(models.Frame{Type: MessageTypePong, Timestamp: c.hub.clock.Now()}); err != nil {
				return
			}

		case <-ticker.C:
			if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				return
			}
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (c *Client) writeFrame(frame models.Frame) error {
	data, err := json.Marshal(frame)
	if err != nil {
		return err
	}
	if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
		metrics.RecordWSError("write")
		return err
	}
	metrics.WSMessagesSent.Inc()
	return nil
}

// Start launches the read and write pumps.
func (c *Client) Start() {
	go c.writePump()
	go c.readPump()
}
