// Reelsync - Multi-Device Watchlist Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/reelsync

package api

import (
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/tomtom215/reelsync/internal/logging"
	"github.com/tomtom215/reelsync/internal/metrics"
	ws "github.com/tomtom215/reelsync/internal/websocket"
)

// closeGrace bounds the write of a close frame on a rejected connection.
const closeGrace = time.Second

// SyncWebSocket opens the live channel of one device.
//
// The token comes from "Authorization: Bearer" or the token query parameter.
// A connection without a valid token is still upgraded and then closed with
// 1008 (policy violation), so browser clients see a close code instead of a
// bare handshake failure.
//
// GET /ws/sync
func (h *Handler) SyncWebSocket(w http.ResponseWriter, r *http.Request) {
	userID, authErr := h.auth.Resolve(r, true)

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		metrics.RecordWSError("upgrade")
		logging.CtxWarn(r.Context()).Err(err).Msg("WebSocket upgrade failed")
		return
	}

	if authErr != nil {
		metrics.RecordWSError("auth")
		logging.CtxWarn(r.Context()).Err(authErr).Msg("WebSocket connection rejected")
		closeWithCode(conn, websocket.ClosePolicyViolation, "authentication required")
		return
	}

	client := ws.NewClient(h.hub, conn, userID, ws.ClientOptions{
		SendBuffer:   h.config.WebSocket.SendBuffer,
		InboundRate:  h.config.WebSocket.InboundRate,
		InboundBurst: h.config.WebSocket.InboundBurst,
	})
	if !h.hub.Register(r.Context(), client) {
		metrics.RecordWSError("hub_unavailable")
		closeWithCode(conn, websocket.CloseGoingAway, "server shutting down")
		return
	}
	client.Start()

	logging.CtxDebug(r.Context()).
		Str("user_id", userID).
		Str("connection_id", client.ConnectionID()).
		Msg("Live channel connected")
}

func closeWithCode(conn *websocket.Conn, code int, reason string) {
	msg := websocket.FormatCloseMessage(code, reason)
	_ = conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(closeGrace))
	_ = conn.Close()
}
