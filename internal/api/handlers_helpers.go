// Reelsync - Multi-Device Watchlist Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/reelsync

package api

import (
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"strconv"
	"strings"

	"github.com/tomtom215/reelsync/internal/validation"
)

// maxBodyBytes bounds sync request bodies. A full batch of large
// addRecommendation payloads with metadata stays well below it.
const maxBodyBytes = 8 << 20

// maxConnectionIDLen bounds the echoed connection id header.
const maxConnectionIDLen = 64

// sanitizeLogValue removes control characters from strings to prevent log injection attacks.
func sanitizeLogValue(s string) string {
	var result strings.Builder
	result.Grow(len(s))
	for _, r := range s {
		if r < 0x20 || r == 0x7F {
			result.WriteString(fmt.Sprintf("\\x%02x", r))
		} else {
			result.WriteRune(r)
		}
	}
	return result.String()
}

// readBody reads at most maxBodyBytes of the request body.
// It reports whether the limit was hit separately from other read errors.
func readBody(w http.ResponseWriter, r *http.Request) ([]byte, error) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			return nil, maxErr
		}
		return nil, fmt.Errorf("%w: %w", ErrMalformedBody, err)
	}
	return body, nil
}

// writeBodyError maps a readBody or decode failure to its response.
func writeBodyError(rw *ResponseWriter, err error) {
	var maxErr *http.MaxBytesError
	if errors.As(err, &maxErr) {
		rw.PayloadTooLarge(fmt.Sprintf("request body exceeds %d bytes", maxErr.Limit))
		return
	}
	rw.BadRequest(err.Error())
}

// connectionIDFromRequest returns the live connection id a device echoes on
// its HTTP sync requests, or "" when absent or implausible.
func connectionIDFromRequest(r *http.Request) string {
	id := strings.TrimSpace(r.Header.Get(HeaderConnectionID))
	if len(id) > maxConnectionIDLen {
		return ""
	}
	return id
}

// changesParams holds the parsed query of a change feed request.
// Limit stays zero when the client did not send one.
type changesParams struct {
	Since  float64 `json:"since"`
	Limit  int     `json:"limit" validate:"omitempty,min=1"`
	Offset int     `json:"offset" validate:"min=0"`
}

// parseChangesParams reads since, limit and offset. Unparsable values are
// errors rather than silently replaced by defaults.
func parseChangesParams(r *http.Request) (*changesParams, error) {
	q := r.URL.Query()
	p := &changesParams{}

	var err error
	if p.Since, err = floatParam(q.Get("since")); err != nil {
		return nil, fmt.Errorf("%w: since: %w", ErrInvalidParam, err)
	}
	if raw := q.Get("limit"); raw != "" {
		if p.Limit, err = strconv.Atoi(raw); err != nil {
			return nil, fmt.Errorf("%w: limit must be an integer", ErrInvalidParam)
		}
		if p.Limit == 0 {
			return nil, fmt.Errorf("%w: limit must be at least 1", ErrInvalidParam)
		}
	}
	if raw := q.Get("offset"); raw != "" {
		if p.Offset, err = strconv.Atoi(raw); err != nil {
			return nil, fmt.Errorf("%w: offset must be an integer", ErrInvalidParam)
		}
	}
	return p, nil
}

func floatParam(raw string) (float64, error) {
	if raw == "" {
		return 0, nil
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, fmt.Errorf("not a number")
	}
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, fmt.Errorf("out of range")
	}
	return v, nil
}

// validateRequest validates a struct using go-playground/validator and
// returns the error envelope to send, or nil when v is valid.
func validateRequest(v interface{}) *validation.APIError {
	if validationErr := validation.ValidateStruct(v); validationErr != nil {
		return validationErr.ToAPIError()
	}
	return nil
}
