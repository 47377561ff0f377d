// Reelsync - Multi-Device Watchlist Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/reelsync

package api

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/goccy/go-json"

	"github.com/tomtom215/reelsync/internal/auth"
	"github.com/tomtom215/reelsync/internal/feed"
	"github.com/tomtom215/reelsync/internal/logging"
	"github.com/tomtom215/reelsync/internal/processor"
)

// SyncAction applies one queued action.
//
// A body that is not an action envelope is rejected with 400. Anything the
// envelope carries is answered with 200: unknown kinds, invalid data and
// conflicts are reported in the ActionResponse.
//
// POST /api/v1/sync
func (h *Handler) SyncAction(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)
	ctx := r.Context()
	userID := auth.UserIDFromContext(ctx)

	body, err := readBody(w, r)
	if err != nil {
		writeBodyError(rw, err)
		return
	}
	req, err := processor.DecodeRequest(body)
	if err != nil {
		rw.BadRequest(err.Error())
		return
	}

	h.ensureSeeded(ctx, userID)

	res := h.processor.ApplyRequest(ctx, userID, req, nil)
	h.notifier.Notify(ctx, userID, connectionIDFromRequest(r), res.Events)

	rw.JSON(http.StatusOK, res.Response)
}

// SyncBatch applies a device's queued actions in order and returns one
// result per action.
//
// POST /api/v1/sync/batch
func (h *Handler) SyncBatch(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)
	ctx := r.Context()
	userID := auth.UserIDFromContext(ctx)

	body, err := readBody(w, r)
	if err != nil {
		writeBodyError(rw, err)
		return
	}
	var batch processor.BatchRequest
	if err := json.Unmarshal(body, &batch); err != nil {
		rw.BadRequest(fmt.Sprintf("%s: %v", ErrMalformedBody, err))
		return
	}
	if limit := h.config.Sync.MaxBatchSize; len(batch.Actions) > limit {
		rw.BadRequest(fmt.Sprintf("%s: got %d, limit %d", ErrBatchTooLarge, len(batch.Actions), limit))
		return
	}

	h.ensureSeeded(ctx, userID)

	resp, events := h.processor.ProcessBatch(ctx, userID, &batch)
	h.notifier.Notify(ctx, userID, connectionIDFromRequest(r), events)

	if resp.Results == nil {
		resp.Results = []processor.ActionResponse{}
	}
	rw.JSON(http.StatusOK, resp)
}

// SyncChanges returns one page of the change feed.
//
// Query parameters: since (seconds, default 0 for a full snapshot), limit
// (1 to SYNC_MAX_FEED_LIMIT, default SYNC_DEFAULT_FEED_LIMIT) and offset.
//
// GET /api/v1/sync/changes
func (h *Handler) SyncChanges(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)
	ctx := r.Context()
	userID := auth.UserIDFromContext(ctx)

	params, err := parseChangesParams(r)
	if err != nil {
		rw.BadRequest(err.Error())
		return
	}
	if apiErr := validateRequest(params); apiErr != nil {
		rw.ValidationError(apiErr.Message, apiErr.Details)
		return
	}
	if since := processor.NormalizeTimestamp(&params.Since); since != nil {
		params.Since = *since
	}

	page, err := h.feed.Changes(ctx, userID, feed.Query{
		Since:  params.Since,
		Limit:  params.Limit,
		Offset: params.Offset,
	})
	if err != nil {
		if errors.Is(err, feed.ErrInvalidQuery) {
			rw.BadRequest(err.Error())
			return
		}
		rw.StoreError(err)
		return
	}

	logging.CtxDebug(ctx).
		Float64("since", params.Since).
		Int("offset", params.Offset).
		Int("entities", page.Len()).
		Bool("has_more", page.HasMore).
		Msg("Change feed served")

	rw.JSON(http.StatusOK, page)
}
