// Reelsync - Multi-Device Watchlist Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/reelsync

package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/tomtom215/reelsync/internal/logging"
)

// Validate checks that required configuration is present and valid
func (c *Config) Validate() error {
	validators := []func() error{
		c.validateServer,
		c.validateSecurity,
		c.validateStorage,
		c.validateSync,
		c.validateWebSocket,
		c.validateEventBus,
		c.validateLogging,
	}
	for _, validate := range validators {
		if err := validate(); err != nil {
			return err
		}
	}
	return nil
}

func (c *Config) validateServer() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("HTTP_PORT must be between 1 and 65535")
	}
	if c.Server.Timeout <= 0 {
		return fmt.Errorf("HTTP_TIMEOUT must be positive")
	}
	return nil
}

// validateSecurity validates security configuration
func (c *Config) validateSecurity() error {
	if err := c.validateAuthMode(); err != nil {
		return err
	}
	if err := c.validateCORS(); err != nil {
		return err
	}
	return c.validateRateLimits()
}

// MinJWTSecretLength is the shortest accepted HS256 secret.
const MinJWTSecretLength = 32

func (c *Config) validateAuthMode() error {
	switch c.Security.AuthMode {
	case "jwt":
		if len(c.Security.JWTSecret) < MinJWTSecretLength {
			return fmt.Errorf("JWT_SECRET must be at least %d characters when AUTH_MODE=jwt", MinJWTSecretLength)
		}
	case "none":
		if c.IsProduction() {
			return fmt.Errorf("AUTH_MODE=none is not allowed when ENVIRONMENT=production. " +
				"Set AUTH_MODE=jwt or use ENVIRONMENT=development for local use")
		}
		if strings.TrimSpace(c.Security.DefaultUserID) == "" {
			return fmt.Errorf("DEFAULT_USER_ID is required when AUTH_MODE=none")
		}
	default:
		return fmt.Errorf("AUTH_MODE must be one of: jwt, none")
	}
	return nil
}

// validateCORS rejects wildcard origins in production with authentication,
// where any site could drive the API with a stolen token.
func (c *Config) validateCORS() error {
	if c.Security.AuthMode != "none" && c.hasWildcardCORS() && c.IsProduction() {
		return fmt.Errorf("CORS_ORIGINS=* (wildcard) is not allowed in production with authentication enabled. " +
			"Set specific origins: CORS_ORIGINS=https://app.example.com")
	}
	return nil
}

func (c *Config) hasWildcardCORS() bool {
	for _, origin := range c.Security.CORSOrigins {
		if origin == "*" {
			return true
		}
	}
	return false
}

// ShouldWarnAboutCORS returns true if CORS configuration has security concerns
// that should be logged at startup
func (c *Config) ShouldWarnAboutCORS() bool {
	return c.Security.AuthMode != "none" && c.hasWildcardCORS()
}

// Rate limit constants
const (
	minRateLimitRequests = 1
	maxRateLimitRequests = 100000
	minRateLimitWindow   = time.Second
	maxRateLimitWindow   = time.Hour
)

func (c *Config) validateRateLimits() error {
	if c.Security.RateLimitDisabled {
		return nil
	}
	if c.Security.RateLimitReqs < minRateLimitRequests || c.Security.RateLimitReqs > maxRateLimitRequests {
		return fmt.Errorf("RATE_LIMIT_REQUESTS must be between %d and %d", minRateLimitRequests, maxRateLimitRequests)
	}
	if c.Security.RateLimitWindow < minRateLimitWindow || c.Security.RateLimitWindow > maxRateLimitWindow {
		return fmt.Errorf("RATE_LIMIT_WINDOW must be between %v and %v", minRateLimitWindow, maxRateLimitWindow)
	}
	return nil
}

func (c *Config) validateStorage() error {
	if !c.Storage.InMemory && strings.TrimSpace(c.Storage.Path) == "" {
		return fmt.Errorf("STORAGE_PATH is required unless STORAGE_IN_MEMORY=true")
	}
	if c.Storage.GCInterval < 0 {
		return fmt.Errorf("STORAGE_GC_INTERVAL must not be negative")
	}
	if c.Storage.GCDiscardRatio <= 0 || c.Storage.GCDiscardRatio >= 1 {
		return fmt.Errorf("STORAGE_GC_DISCARD_RATIO must be between 0 and 1 (exclusive)")
	}
	return nil
}

func (c *Config) validateSync() error {
	s := c.Sync
	if s.SkewGraceSeconds < 0 {
		return fmt.Errorf("SYNC_SKEW_GRACE_SECONDS must not be negative")
	}
	if s.MaxBatchSize < 1 {
		return fmt.Errorf("SYNC_MAX_BATCH_SIZE must be at least 1")
	}
	if s.MaxFeedLimit < 1 {
		return fmt.Errorf("SYNC_MAX_FEED_LIMIT must be at least 1")
	}
	if s.DefaultFeedLimit < 1 || s.DefaultFeedLimit > s.MaxFeedLimit {
		return fmt.Errorf("SYNC_DEFAULT_FEED_LIMIT must be between 1 and SYNC_MAX_FEED_LIMIT (%d)", s.MaxFeedLimit)
	}
	return nil
}

func (c *Config) validateWebSocket() error {
	w := c.WebSocket
	if w.SendBuffer < 1 {
		return fmt.Errorf("WS_SEND_BUFFER must be at least 1")
	}
	if w.InboundRate <= 0 {
		return fmt.Errorf("WS_INBOUND_RATE must be positive")
	}
	if w.InboundBurst < 1 {
		return fmt.Errorf("WS_INBOUND_BURST must be at least 1")
	}
	return nil
}

func (c *Config) validateEventBus() error {
	e := c.EventBus
	switch e.Backend {
	case "memory":
	case "nats":
		if !e.NATSEmbedded && strings.TrimSpace(e.NATSURL) == "" {
			return fmt.Errorf("NATS_URL is required when EVENTBUS_BACKEND=nats and NATS_EMBEDDED=false")
		}
		if e.NATSEmbedded && (e.NATSPort < 1 || e.NATSPort > 65535) {
			return fmt.Errorf("NATS_PORT must be between 1 and 65535")
		}
	default:
		return fmt.Errorf("EVENTBUS_BACKEND must be one of: memory, nats")
	}
	if strings.TrimSpace(e.Topic) == "" {
		return fmt.Errorf("EVENTBUS_TOPIC is required")
	}
	if e.BreakerFailureThreshold == 0 {
		return fmt.Errorf("EVENTBUS_BREAKER_THRESHOLD must be at least 1")
	}
	if e.BreakerTimeout <= 0 {
		return fmt.Errorf("EVENTBUS_BREAKER_TIMEOUT must be positive")
	}
	return nil
}

func (c *Config) validateLogging() error {
	if _, err := logging.ParseLevel(c.Logging.Level); err != nil {
		return fmt.Errorf("LOG_LEVEL must be one of: trace, debug, info, warn, error, disabled (%w)", err)
	}
	switch strings.ToLower(c.Logging.Format) {
	case "json", "console":
	default:
		return fmt.Errorf("LOG_FORMAT must be one of: json, console")
	}
	return nil
}

// IsProduction returns true if the application is running in production mode.
func (c *Config) IsProduction() bool {
	env := strings.ToLower(c.Server.Environment)
	return env == "production" || env == "prod"
}

// IsDevelopment returns true if the application is running in development mode.
func (c *Config) IsDevelopment() bool {
	env := strings.ToLower(c.Server.Environment)
	return env == "" || env == "development" || env == "dev"
}
