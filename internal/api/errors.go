// Reelsync - Multi-Device Watchlist Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/reelsync

package api

import "errors"

// Request-level errors. Each rejects the whole request before any action
// runs; per-action failures are reported inside the action results instead.
var (
	// ErrBatchTooLarge indicates more actions than sync.max_batch_size
	ErrBatchTooLarge = errors.New("batch exceeds the maximum number of actions")

	// ErrInvalidParam indicates an unparsable or out of range query parameter
	ErrInvalidParam = errors.New("invalid query parameter")

	// ErrMalformedBody indicates a request body that is not the expected JSON envelope
	ErrMalformedBody = errors.New("malformed request body")
)
