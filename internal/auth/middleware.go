// Reelsync - Multi-Device Watchlist Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/reelsync

package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/tomtom215/reelsync/internal/logging"
	"github.com/tomtom215/reelsync/internal/metrics"
)

// Auth modes.
const (
	ModeJWT  = "jwt"
	ModeNone = "none"
)

type contextKey string

// UserIDContextKey holds the authenticated user id.
const UserIDContextKey contextKey = "user_id"

// ContextWithUserID stores the authenticated user on ctx, for the auth
// context and for log enrichment.
func ContextWithUserID(ctx context.Context, userID string) context.Context {
	ctx = context.WithValue(ctx, UserIDContextKey, userID)
	return logging.ContextWithUserID(ctx, userID)
}

// UserIDFromContext returns the authenticated user, or "" when the request
// did not pass through Authenticate.
func UserIDFromContext(ctx context.Context) string {
	if v, ok := ctx.Value(UserIDContextKey).(string); ok {
		return v
	}
	return ""
}

// Middleware resolves the acting user of a request.
type Middleware struct {
	jwtManager    *JWTManager
	authMode      string
	defaultUserID string
}

// NewMiddleware creates a middleware. jwtManager is required in jwt mode;
// defaultUserID is required in none mode.
func NewMiddleware(jwtManager *JWTManager, authMode, defaultUserID string) (*Middleware, error) {
	switch authMode {
	case ModeJWT:
		if jwtManager == nil {
			return nil, fmt.Errorf("auth mode %q requires a JWT manager", authMode)
		}
	case ModeNone:
		if defaultUserID == "" {
			return nil, fmt.Errorf("auth mode %q requires a default user id", authMode)
		}
	default:
		return nil, fmt.Errorf("unknown auth mode %q", authMode)
	}
	return &Middleware{jwtManager: jwtManager, authMode: authMode, defaultUserID: defaultUserID}, nil
}

// Mode returns the configured auth mode.
func (m *Middleware) Mode() string { return m.authMode }

// Authenticate is middleware that rejects requests without a valid bearer
// token with 401 and stores the user id on the request context.
func (m *Middleware) Authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		userID, err := m.Resolve(r, false)
		if err != nil {
			logging.CtxWarn(r.Context()).Err(err).Msg("Request authentication failed")
			w.Header().Set("WWW-Authenticate", `Bearer realm="reelsync"`)
			http.Error(w, "Unauthorized: "+err.Error(), http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r.WithContext(ContextWithUserID(r.Context(), userID)))
	})
}

// Resolve returns the acting user of r. allowQuery also accepts the token
// in the "token" query parameter, which browsers need for WebSocket
// handshakes. Failures are counted by reason.
func (m *Middleware) Resolve(r *http.Request, allowQuery bool) (string, error) {
	if m.authMode == ModeNone {
		return m.defaultUserID, nil
	}

	token, err := extractToken(r, allowQuery)
	if err == nil {
		var claims *Claims
		if claims, err = m.jwtManager.ValidateToken(token); err == nil {
			return claims.UserID(), nil
		}
	}

	if errors.Is(err, ErrMissingToken) {
		metrics.RecordAuthFailure("missing_token")
	} else {
		metrics.RecordAuthFailure("invalid_token")
	}
	return "", err
}

// extractToken reads "Authorization: Bearer <token>", then optionally the
// token query parameter.
func extractToken(r *http.Request, allowQuery bool) (string, error) {
	if header := r.Header.Get("Authorization"); header != "" {
		scheme, token, ok := strings.Cut(header, " ")
		if !ok || !strings.EqualFold(scheme, "Bearer") || strings.TrimSpace(token) == "" {
			return "", fmt.Errorf("%w: malformed authorization header", ErrInvalidToken)
		}
		return strings.TrimSpace(token), nil
	}
	if allowQuery {
		if token := r.URL.Query().Get("token"); token != "" {
			return token, nil
		}
	}
	return "", ErrMissingToken
}
