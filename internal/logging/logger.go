// Reelsync - Multi-Device Watchlist Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/reelsync

package logging

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Config mirrors the logging section of the server configuration.
type Config struct {
	// Level is trace, debug, info, warn (or warning), error or disabled.
	Level string

	// Format is json or console.
	Format string

	// Caller adds file:line to every line.
	Caller bool

	// Service and Version are stamped on every line so that logs from several
	// sync instances can be told apart. Both are omitted when empty.
	Service string
	Version string

	// Output defaults to os.Stderr.
	Output io.Writer
}

var (
	log zerolog.Logger
	mu  sync.RWMutex
)

//nolint:gochecknoinits // logging works before main calls Init
func init() {
	log = build(Config{}, zerolog.InfoLevel)
	zerolog.SetGlobalLevel(zerolog.InfoLevel)
}

// ParseLevel maps a LOG_LEVEL value to a zerolog level. An empty value means
// info. Config validation and Init share it, so both accept the same names.
func ParseLevel(level string) (zerolog.Level, error) {
	switch s := strings.ToLower(strings.TrimSpace(level)); s {
	case "":
		return zerolog.InfoLevel, nil
	case "warning":
		return zerolog.WarnLevel, nil
	case "fatal", "panic", "nolevel":
		// Valid for zerolog but they would hide every operational message.
		return zerolog.NoLevel, fmt.Errorf("unsupported log level %q", level)
	default:
		lvl, err := zerolog.ParseLevel(s)
		if err != nil {
			return zerolog.NoLevel, fmt.Errorf("unknown log level %q", level)
		}
		return lvl, nil
	}
}

// Init replaces the global logger. It can be called again, for example by
// tests redirecting output. An unknown level falls back to info and is
// reported once the new logger is in place.
func Init(cfg Config) {
	level, levelErr := ParseLevel(cfg.Level)
	if levelErr != nil {
		level = zerolog.InfoLevel
	}

	mu.Lock()
	zerolog.SetGlobalLevel(level)
	log = build(cfg, level)
	mu.Unlock()

	if levelErr != nil {
		Warn().Err(levelErr).Msg("Falling back to info logging")
	}
}

func build(cfg Config, level zerolog.Level) zerolog.Logger {
	out := cfg.Output
	if out == nil {
		out = os.Stderr
	}

	zerolog.TimeFieldFormat = time.RFC3339Nano
	zerolog.MessageFieldName = "message"

	if strings.EqualFold(cfg.Format, "console") {
		out = zerolog.ConsoleWriter{Out: out, TimeFormat: "15:04:05.000"}
	}

	lctx := zerolog.New(out).Level(level).With().Timestamp()
	if cfg.Service != "" {
		lctx = lctx.Str("service", cfg.Service)
	}
	if cfg.Version != "" {
		lctx = lctx.Str("version", cfg.Version)
	}
	if cfg.Caller {
		lctx = lctx.Caller()
	}
	return lctx.Logger()
}

// Logger returns a copy of the global logger.
func Logger() zerolog.Logger {
	mu.RLock()
	defer mu.RUnlock()
	return log
}

// SetLogger swaps the global logger without touching the global level.
//
//nolint:gocritic // zerolog.Logger is passed by value by design of the library
func SetLogger(l zerolog.Logger) {
	mu.Lock()
	defer mu.Unlock()
	log = l
}

// With starts a child logger:
//
//	relayLog := logging.With().Str("topic", topic).Logger()
func With() zerolog.Context {
	mu.RLock()
	defer mu.RUnlock()
	return log.With()
}

func Debug() *zerolog.Event {
	mu.RLock()
	defer mu.RUnlock()
	return log.Debug()
}

func Info() *zerolog.Event {
	mu.RLock()
	defer mu.RUnlock()
	return log.Info()
}

func Warn() *zerolog.Event {
	mu.RLock()
	defer mu.RUnlock()
	return log.Warn()
}

func Error() *zerolog.Event {
	mu.RLock()
	defer mu.RUnlock()
	return log.Error()
}

// Fatal logs and exits with status 1. Only main uses it.
//
//	logging.Fatal().Err(err).Msg("Failed to open entity store")
func Fatal() *zerolog.Event {
	mu.RLock()
	defer mu.RUnlock()
	return log.Fatal()
}

// Err is Error().Err(err), or an info event when err is nil.
func Err(err error) *zerolog.Event {
	mu.RLock()
	defer mu.RUnlock()
	return log.Err(err)
}
