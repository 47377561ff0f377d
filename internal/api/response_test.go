// Reelsync - Multi-Device Watchlist Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/reelsync

package api

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/tomtom215/reelsync/internal/logging"
)

func newResponseWriterTest(requestID string) (*ResponseWriter, *httptest.ResponseRecorder) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	if requestID != "" {
		req = req.WithContext(logging.ContextWithRequestID(req.Context(), requestID))
	}
	rec := httptest.NewRecorder()
	return NewResponseWriter(rec, req), rec
}

func TestResponseWriter_Success(t *testing.T) {
	rw, rec := newResponseWriterTest("req-1")
	rw.Success(map[string]string{"status": "ok"})

	if rec.Code != http.StatusOK {
		t.Errorf("status = %d, want 200", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); !strings.HasPrefix(ct, "application/json") {
		t.Errorf("Content-Type = %q", ct)
	}
	resp := decode[APIResponse](t, rec)
	if !resp.Success || resp.Error != nil {
		t.Errorf("response = %+v", resp)
	}
	if resp.Meta == nil || resp.Meta.RequestID != "req-1" {
		t.Errorf("meta = %+v, want request id req-1", resp.Meta)
	}
}

func TestResponseWriter_Errors(t *testing.T) {
	tests := []struct {
		name       string
		write      func(*ResponseWriter)
		wantStatus int
		wantCode   string
	}{
		{"bad request", func(rw *ResponseWriter) { rw.BadRequest("nope") }, http.StatusBadRequest, ErrCodeBadRequest},
		{"unauthorized", func(rw *ResponseWriter) { rw.Unauthorized("nope") }, http.StatusUnauthorized, ErrCodeUnauthorized},
		{"payload too large", func(rw *ResponseWriter) { rw.PayloadTooLarge("nope") }, http.StatusRequestEntityTooLarge, ErrCodePayloadTooLarge},
		{"too many requests", func(rw *ResponseWriter) { rw.TooManyRequests("nope") }, http.StatusTooManyRequests, ErrCodeTooManyRequests},
		{"internal", func(rw *ResponseWriter) { rw.InternalError("nope") }, http.StatusInternalServerError, ErrCodeInternalError},
		{"unavailable", func(rw *ResponseWriter) { rw.ServiceUnavailable("nope") }, http.StatusServiceUnavailable, ErrCodeServiceUnavailable},
		{"store", func(rw *ResponseWriter) { rw.StoreError(errors.New("disk gone")) }, http.StatusInternalServerError, ErrCodeStoreError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rw, rec := newResponseWriterTest("req-2")
			tt.write(rw)

			if rec.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d", rec.Code, tt.wantStatus)
			}
			body := decode[errorEnvelope](t, rec)
			if body.Success || body.Error == nil {
				t.Fatalf("envelope = %+v", body)
			}
			if body.Error.Code != tt.wantCode || body.Error.RequestID != "req-2" {
				t.Errorf("error = %+v, want code %s with request id", body.Error, tt.wantCode)
			}
		})
	}
}

func TestResponseWriter_StoreErrorHidesCause(t *testing.T) {
	rw, rec := newResponseWriterTest("")
	rw.StoreError(errors.New("badger: value log truncated at offset 42"))

	if strings.Contains(rec.Body.String(), "badger") {
		t.Errorf("store cause leaked to client: %s", rec.Body.String())
	}
}

func TestResponseWriter_ValidationError(t *testing.T) {
	rw, rec := newResponseWriterTest("")
	rw.ValidationError("invalid query", []map[string]string{{"field": "limit", "tag": "min"}})

	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
	body := decode[struct {
		Error struct {
			Code    string              `json:"code"`
			Details []map[string]string `json:"details"`
		} `json:"error"`
	}](t, rec)
	if body.Error.Code != ErrCodeValidationFailed {
		t.Errorf("code = %q", body.Error.Code)
	}
	if len(body.Error.Details) != 1 || body.Error.Details[0]["field"] != "limit" {
		t.Errorf("details = %+v", body.Error.Details)
	}
}

func TestResponseWriter_JSONIsBare(t *testing.T) {
	rw, rec := newResponseWriterTest("")
	rw.JSON(http.StatusOK, map[string]bool{"success": true})

	if got := strings.TrimSpace(rec.Body.String()); got != `{"success":true}` {
		t.Errorf("body = %s", got)
	}
}
