// Reelsync - Multi-Device Watchlist Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/reelsync

package api

import (
	"context"
	"net/http"
	"time"
)

// healthCheckTimeout bounds each dependency check.
const healthCheckTimeout = 2 * time.Second

// HealthStatus is the document served by the health endpoints.
type HealthStatus struct {
	Status          string  `json:"status"`
	Version         string  `json:"version,omitempty"`
	StoreConnected  bool    `json:"store_connected"`
	EventBusBackend string  `json:"eventbus_backend,omitempty"`
	EventBusHealthy bool    `json:"eventbus_healthy"`
	LiveConnections int     `json:"live_connections"`
	LiveUsers       int     `json:"live_users"`
	Uptime          float64 `json:"uptime"`
	ServerTimestamp float64 `json:"server_timestamp"`
}

func (h *Handler) storeHealthy(ctx context.Context) bool {
	ctx, cancel := context.WithTimeout(ctx, healthCheckTimeout)
	defer cancel()
	return h.store.Ping(ctx) == nil
}

// busHealthy reports true when no bus is configured: the hub then serves
// this process alone.
func (h *Handler) busHealthy() bool {
	return h.bus == nil || h.bus.Ping() == nil
}

func (h *Handler) healthStatus(ctx context.Context) HealthStatus {
	status := HealthStatus{
		Status:          "healthy",
		Version:         h.version,
		StoreConnected:  h.storeHealthy(ctx),
		EventBusHealthy: h.busHealthy(),
		LiveConnections: h.hub.ClientCount(),
		LiveUsers:       h.hub.UserCount(),
		Uptime:          time.Since(h.startTime).Seconds(),
		ServerTimestamp: h.clock.Now(),
	}
	if h.bus != nil {
		status.EventBusBackend = h.bus.Backend()
	}
	if !status.StoreConnected || !status.EventBusHealthy {
		status.Status = "degraded"
	}
	return status
}

// Health reports dependency status. It always answers 200; use
// HealthReady for traffic decisions.
//
// GET /api/v1/health
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	NewResponseWriter(w, r).Success(h.healthStatus(r.Context()))
}

// HealthLive handles liveness check requests (Kubernetes-style).
// Returns 200 OK if the process is alive, regardless of dependencies.
//
// GET /api/v1/health/live
func (h *Handler) HealthLive(w http.ResponseWriter, r *http.Request) {
	NewResponseWriter(w, r).Success(map[string]interface{}{
		"alive":  true,
		"uptime": time.Since(h.startTime).Seconds(),
	})
}

// HealthReady handles readiness check requests (Kubernetes-style).
// Returns 503 while the store or the event bus cannot serve requests.
//
// GET /api/v1/health/ready
func (h *Handler) HealthReady(w http.ResponseWriter, r *http.Request) {
	status := h.healthStatus(r.Context())
	rw := NewResponseWriter(w, r)
	if status.Status != "healthy" {
		status.Status = "not_ready"
		rw.Envelope(http.StatusServiceUnavailable, false, status)
		return
	}
	status.Status = "ready"
	rw.Success(status)
}
