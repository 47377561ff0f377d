// Reelsync - Multi-Device Watchlist Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/reelsync

package api

import (
	"crypto/tls"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/tomtom215/reelsync/internal/auth"
	"github.com/tomtom215/reelsync/internal/logging"
)

// =====================================================
// ChiMiddleware Configuration Tests
// =====================================================

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func TestDefaultChiMiddlewareConfig(t *testing.T) {
	cfg := DefaultChiMiddlewareConfig()

	if len(cfg.CORSAllowedOrigins) != 0 {
		t.Errorf("CORSAllowedOrigins = %v, want []", cfg.CORSAllowedOrigins)
	}
	if cfg.CORSMaxAge != 86400 {
		t.Errorf("CORSMaxAge = %d, want 86400", cfg.CORSMaxAge)
	}
	if cfg.RateLimitRequests != 300 || cfg.RateLimitWindow != time.Minute {
		t.Errorf("rate limit = %d/%v, want 300/1m", cfg.RateLimitRequests, cfg.RateLimitWindow)
	}
	found := false
	for _, h := range cfg.CORSAllowedHeaders {
		if h == HeaderConnectionID {
			found = true
		}
	}
	if !found {
		t.Errorf("CORSAllowedHeaders = %v, missing %s", cfg.CORSAllowedHeaders, HeaderConnectionID)
	}
}

func TestNewChiMiddleware_NilConfig(t *testing.T) {
	m := NewChiMiddleware(nil)
	if m == nil || m.config == nil {
		t.Fatal("NewChiMiddleware(nil) returned no config")
	}
	if m.config.RateLimitRequests != 300 {
		t.Errorf("RateLimitRequests = %d, want 300", m.config.RateLimitRequests)
	}
}

func TestNewChiMiddlewareFromSecurity(t *testing.T) {
	origins := []string{"https://example.com", "https://other.com"}
	m := NewChiMiddlewareFromSecurity(origins, 200, 2*time.Minute, true)

	if len(m.config.CORSAllowedOrigins) != 2 {
		t.Errorf("CORSAllowedOrigins length = %d, want 2", len(m.config.CORSAllowedOrigins))
	}
	if m.config.RateLimitRequests != 200 {
		t.Errorf("RateLimitRequests = %d, want 200", m.config.RateLimitRequests)
	}
	if m.config.RateLimitWindow != 2*time.Minute {
		t.Errorf("RateLimitWindow = %v, want 2m", m.config.RateLimitWindow)
	}
	if !m.config.RateLimitDisabled {
		t.Error("RateLimitDisabled should be true")
	}
}

// =====================================================
// CORS Middleware Tests
// =====================================================

func TestChiMiddleware_CORS_Preflight(t *testing.T) {
	m := NewChiMiddlewareFromSecurity([]string{"https://app.example.com"}, 100, time.Minute, false)
	handler := m.CORS()(okHandler())

	tests := []struct {
		name      string
		origin    string
		wantAllow string
	}{
		{"allowed origin", "https://app.example.com", "https://app.example.com"},
		{"disallowed origin", "https://evil.example.com", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodOptions, "/api/v1/sync", nil)
			req.Header.Set("Origin", tt.origin)
			req.Header.Set("Access-Control-Request-Method", http.MethodPost)
			req.Header.Set("Access-Control-Request-Headers", HeaderConnectionID)
			rec := serve(handler, req)

			if got := rec.Header().Get("Access-Control-Allow-Origin"); got != tt.wantAllow {
				t.Errorf("Access-Control-Allow-Origin = %q, want %q", got, tt.wantAllow)
			}
			if tt.wantAllow == "" {
				return
			}
			allowed := strings.ToLower(rec.Header().Get("Access-Control-Allow-Headers"))
			if !strings.Contains(allowed, strings.ToLower(HeaderConnectionID)) {
				t.Errorf("Access-Control-Allow-Headers = %q, want %s", allowed, HeaderConnectionID)
			}
		})
	}
}

func TestChiMiddleware_CORS_WildcardOrigin(t *testing.T) {
	m := NewChiMiddlewareFromSecurity([]string{"*"}, 100, time.Minute, false)
	req := httptest.NewRequest(http.MethodGet, "/api/v1/sync/changes", nil)
	req.Header.Set("Origin", "https://anything.example.com")
	rec := serve(m.CORS()(okHandler()), req)

	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "*" {
		t.Errorf("Access-Control-Allow-Origin = %q, want *", got)
	}
}

// =====================================================
// Rate Limiting Tests
// =====================================================

func TestChiMiddleware_RateLimitByIP(t *testing.T) {
	m := NewChiMiddlewareFromSecurity(nil, 3, time.Minute, false)
	handler := m.RateLimitByIP()(okHandler())

	for i := 0; i < 3; i++ {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.RemoteAddr = "192.0.2.1:1234"
		if rec := serve(handler, req); rec.Code != http.StatusOK {
			t.Fatalf("request %d status = %d, want 200", i+1, rec.Code)
		}
	}

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "192.0.2.1:1234"
	rec := serve(handler, req)
	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("status = %d, want 429", rec.Code)
	}
	if body := decode[errorEnvelope](t, rec); body.Error.Code != ErrCodeTooManyRequests {
		t.Errorf("code = %q, want %s", body.Error.Code, ErrCodeTooManyRequests)
	}

	other := httptest.NewRequest(http.MethodGet, "/", nil)
	other.RemoteAddr = "192.0.2.2:1234"
	if rec := serve(handler, other); rec.Code != http.StatusOK {
		t.Errorf("other IP status = %d, want 200", rec.Code)
	}
}

func TestChiMiddleware_RateLimit_Disabled(t *testing.T) {
	m := NewChiMiddlewareFromSecurity(nil, 1, time.Minute, true)
	for name, mw := range map[string]func(http.Handler) http.Handler{
		"by ip":   m.RateLimitByIP(),
		"by user": m.RateLimitByUser(),
	} {
		t.Run(name, func(t *testing.T) {
			handler := mw(okHandler())
			for i := 0; i < 5; i++ {
				req := httptest.NewRequest(http.MethodGet, "/", nil)
				req.RemoteAddr = "192.0.2.1:1234"
				if rec := serve(handler, req); rec.Code != http.StatusOK {
					t.Fatalf("request %d status = %d", i+1, rec.Code)
				}
			}
		})
	}
}

// One user across many addresses shares a single budget.
func TestChiMiddleware_RateLimitByUser(t *testing.T) {
	m := NewChiMiddlewareFromSecurity(nil, 2, time.Minute, false)
	handler := m.RateLimitByUser()(okHandler())

	send := func(user, addr string) int {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.RemoteAddr = addr
		if user != "" {
			req = req.WithContext(auth.ContextWithUserID(req.Context(), user))
		}
		return serve(handler, req).Code
	}

	if code := send("alice", "192.0.2.1:1"); code != http.StatusOK {
		t.Fatalf("first status = %d", code)
	}
	if code := send("alice", "192.0.2.2:1"); code != http.StatusOK {
		t.Fatalf("second status = %d", code)
	}
	if code := send("alice", "192.0.2.3:1"); code != http.StatusTooManyRequests {
		t.Errorf("third status = %d, want 429", code)
	}
	if code := send("bob", "192.0.2.3:1"); code != http.StatusOK {
		t.Errorf("other user status = %d, want 200", code)
	}
}

func TestKeyByUser(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "192.0.2.9:4000"

	anon, err := keyByUser(req)
	if err != nil {
		t.Fatalf("keyByUser: %v", err)
	}
	if strings.HasPrefix(anon, "user:") {
		t.Errorf("anonymous key = %q, want IP based", anon)
	}

	key, err := keyByUser(req.WithContext(auth.ContextWithUserID(req.Context(), "alice")))
	if err != nil {
		t.Fatalf("keyByUser: %v", err)
	}
	if key != "user:alice" {
		t.Errorf("key = %q, want user:alice", key)
	}
}

// =====================================================
// Request ID and Security Header Tests
// =====================================================

func TestRequestIDWithLogging(t *testing.T) {
	var seen string
	handler := RequestIDWithLogging()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = logging.RequestIDFromContext(r.Context())
	}))

	tests := []struct {
		name     string
		incoming string
		keep     bool
	}{
		{"generated", "", false},
		{"kept", "device-42-req-7", true},
		{"too long", strings.Repeat("r", 129), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			seen = ""
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			if tt.incoming != "" {
				req.Header.Set(HeaderRequestID, tt.incoming)
			}
			rec := serve(handler, req)

			got := rec.Header().Get(HeaderRequestID)
			if got == "" || got != seen {
				t.Fatalf("header %q, context %q", got, seen)
			}
			if tt.keep && got != tt.incoming {
				t.Errorf("request id = %q, want %q", got, tt.incoming)
			}
			if !tt.keep && got == tt.incoming {
				t.Errorf("request id %q should have been replaced", got)
			}
		})
	}
}

func TestAPISecurityHeaders(t *testing.T) {
	handler := APISecurityHeaders()(okHandler())

	tests := []struct {
		name     string
		prepare  func(*http.Request)
		wantHSTS bool
	}{
		{"plain http", func(*http.Request) {}, false},
		{"forwarded https", func(r *http.Request) { r.Header.Set("X-Forwarded-Proto", "https") }, true},
		{"tls", func(r *http.Request) { r.TLS = &tls.ConnectionState{} }, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			tt.prepare(req)
			rec := serve(handler, req)

			want := map[string]string{
				"X-Content-Type-Options": "nosniff",
				"X-Frame-Options":        "DENY",
				"Cache-Control":          "no-store",
			}
			for k, v := range want {
				if got := rec.Header().Get(k); got != v {
					t.Errorf("%s = %q, want %q", k, got, v)
				}
			}
			if hsts := rec.Header().Get("Strict-Transport-Security") != ""; hsts != tt.wantHSTS {
				t.Errorf("HSTS present = %v, want %v", hsts, tt.wantHSTS)
			}
		})
	}
}
