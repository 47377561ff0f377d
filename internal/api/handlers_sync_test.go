// Reelsync - Multi-Device Watchlist Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/reelsync

package api

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/tomtom215/reelsync/internal/config"
	"github.com/tomtom215/reelsync/internal/feed"
	"github.com/tomtom215/reelsync/internal/models"
	"github.com/tomtom215/reelsync/internal/processor"
)

const addTT1 = `{"action":"addRecommendation","data":{"imdb_id":"tt1","person":"Bob"},"timestamp":1700000000}`

type errorEnvelope struct {
	Success bool      `json:"success"`
	Error   *APIError `json:"error"`
}

func TestSyncAction(t *testing.T) {
	tests := []struct {
		name        string
		body        string
		wantStatus  int
		wantSuccess bool
		wantCode    string
	}{
		{"applies action", addTT1, http.StatusOK, true, ""},
		{"malformed envelope", `{"action":`, http.StatusBadRequest, false, ErrCodeBadRequest},
		{"envelope of wrong type", `[1,2]`, http.StatusBadRequest, false, ErrCodeBadRequest},
		{"unknown kind", `{"action":"launchRocket","data":{}}`, http.StatusOK, false, processor.CodeUnknownAction},
		{"invalid data", `{"action":"markWatched","data":{"imdb_id":"tt1","my_rating":"ten"}}`, http.StatusOK, false, processor.CodeValidation},
		{"missing entity", `{"action":"updateRating","data":{"imdb_id":"tt404","my_rating":7}}`, http.StatusOK, false, processor.CodeNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := setupEnv(t)
			rec := env.do(t, http.MethodPost, "/api/v1/sync", tt.body)
			if rec.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d (body %s)", rec.Code, tt.wantStatus, rec.Body.String())
			}

			if tt.wantStatus != http.StatusOK {
				resp := decode[errorEnvelope](t, rec)
				if resp.Success || resp.Error == nil || resp.Error.Code != tt.wantCode {
					t.Errorf("error envelope = %+v", resp)
				}
				return
			}

			resp := decode[processor.ActionResponse](t, rec)
			if resp.Success != tt.wantSuccess || resp.ErrorCode != tt.wantCode {
				t.Errorf("response = %+v", resp)
			}
			if resp.Success && (resp.LastModified == nil || *resp.LastModified != testNow) {
				t.Errorf("last_modified = %v, want %v", resp.LastModified, testNow)
			}
			if !resp.Success && resp.Error == "" {
				t.Error("failure without error text")
			}
		})
	}
}

func TestSyncAction_NotifiesWithOrigin(t *testing.T) {
	env := setupEnv(t)
	rec := env.do(t, http.MethodPost, "/api/v1/sync", addTT1, HeaderConnectionID, "conn-a")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}

	calls := env.notifier.snapshot()
	if len(calls) != 1 {
		t.Fatalf("notifications = %d, want 1", len(calls))
	}
	if calls[0].userID != testUser || calls[0].origin != "conn-a" {
		t.Errorf("notification = %+v", calls[0])
	}
	want := models.MovieEvent(models.EventMovieAdded, "tt1")
	found := false
	for _, e := range calls[0].events {
		if e == want {
			found = true
		}
	}
	if !found {
		t.Errorf("events = %v, want %v", calls[0].events, want)
	}
}

func TestSyncAction_OversizedConnectionIDIgnored(t *testing.T) {
	env := setupEnv(t)
	env.do(t, http.MethodPost, "/api/v1/sync", addTT1, HeaderConnectionID, strings.Repeat("x", maxConnectionIDLen+1))

	calls := env.notifier.snapshot()
	if len(calls) != 1 || calls[0].origin != "" {
		t.Errorf("notifications = %+v, want one without origin", calls)
	}
}

func TestSyncAction_Conflict(t *testing.T) {
	env := setupEnv(t)
	if rec := env.do(t, http.MethodPost, "/api/v1/sync", addTT1); rec.Code != http.StatusOK {
		t.Fatalf("seed status = %d", rec.Code)
	}

	// Written long after the server copy, with a client clock far behind.
	env.clock.Set(testNow + 100)
	stale := fmt.Sprintf(`{"action":"markWatched","data":{"imdb_id":"tt1","my_rating":8},"timestamp":%v}`, (testNow-50)*1000)
	rec := env.do(t, http.MethodPost, "/api/v1/sync", stale)
	if rec.Code != http.StatusOK {
		t.Fatalf("conflict must not change the HTTP status, got %d", rec.Code)
	}

	resp := decode[processor.ActionResponse](t, rec)
	if !resp.Conflict || resp.Success {
		t.Fatalf("response = %+v, want conflict", resp)
	}
	if resp.Error != processor.ConflictMessage {
		t.Errorf("error = %q", resp.Error)
	}
	if resp.ServerState == nil || resp.ServerState.IMDbID != "tt1" {
		t.Errorf("server_state = %+v", resp.ServerState)
	}
	if resp.LastModified == nil || *resp.LastModified != testNow {
		t.Errorf("last_modified = %v, want server copy %v", resp.LastModified, testNow)
	}
	if calls := env.notifier.snapshot(); len(calls) != 1 {
		t.Errorf("conflict notified devices: %+v", calls)
	}
}

func TestSyncAction_RequiresAuth(t *testing.T) {
	env := setupEnv(t)
	req := newRequest(http.MethodPost, "/api/v1/sync", addTT1)
	rec := serve(env.router, req)

	if rec.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", rec.Code)
	}
	if calls := env.notifier.snapshot(); len(calls) != 0 {
		t.Errorf("unauthenticated request notified: %+v", calls)
	}
}

func TestSyncAction_UsersAreIsolated(t *testing.T) {
	env := setupEnv(t)
	env.do(t, http.MethodPost, "/api/v1/sync", addTT1)

	req := newRequest(http.MethodGet, "/api/v1/sync/changes", "")
	req.Header.Set("Authorization", "Bearer "+env.token(t, "mallory"))
	rec := serve(env.router, req)

	page := decode[feed.Page](t, rec)
	if len(page.Movies) != 0 {
		t.Errorf("other user sees %d movies", len(page.Movies))
	}
}

func TestSyncBatch(t *testing.T) {
	env := setupEnv(t)
	body := `{"actions":[` + addTT1 + `,{"action":"launchRocket"},{"action":"markWatched","data":{"imdb_id":"tt1","my_rating":9}}],"client_timestamp":1700000000000}`

	rec := env.do(t, http.MethodPost, "/api/v1/sync/batch", body, HeaderConnectionID, "conn-b")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d (body %s)", rec.Code, rec.Body.String())
	}

	resp := decode[processor.BatchResponse](t, rec)
	if len(resp.Results) != 3 {
		t.Fatalf("results = %d, want 3", len(resp.Results))
	}
	if !resp.Results[0].Success || resp.Results[1].Success || !resp.Results[2].Success {
		t.Errorf("results = %+v", resp.Results)
	}
	if resp.Results[1].ErrorCode != processor.CodeUnknownAction {
		t.Errorf("results[1] code = %q", resp.Results[1].ErrorCode)
	}
	if resp.ServerTimestamp != testNow {
		t.Errorf("server_timestamp = %v", resp.ServerTimestamp)
	}

	calls := env.notifier.snapshot()
	if len(calls) != 1 || calls[0].origin != "conn-b" {
		t.Fatalf("notifications = %+v, want one batch notification", calls)
	}
}

func TestSyncBatch_Rejects(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"malformed", `{"actions":`},
		{"actions not a list", `{"actions":{}}`},
		{"over the limit", `{"actions":[{},{},{},{}]}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := setupEnv(t)
			rec := env.do(t, http.MethodPost, "/api/v1/sync/batch", tt.body)
			if rec.Code != http.StatusBadRequest {
				t.Errorf("status = %d, want 400", rec.Code)
			}
		})
	}
}

func TestSyncBatch_Empty(t *testing.T) {
	env := setupEnv(t)
	rec := env.do(t, http.MethodPost, "/api/v1/sync/batch", `{"actions":[]}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), `"results":[]`) {
		t.Errorf("body = %s, want empty results list", rec.Body.String())
	}
}

func TestSyncChanges(t *testing.T) {
	env := setupEnv(t)
	env.do(t, http.MethodPost, "/api/v1/sync", addTT1)
	env.clock.Set(testNow + 10)
	env.do(t, http.MethodPost, "/api/v1/sync", `{"action":"addRecommendation","data":{"imdb_id":"tt2","person":"Bob"}}`)

	rec := env.do(t, http.MethodGet, "/api/v1/sync/changes", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	page := decode[feed.Page](t, rec)
	if len(page.Movies) != 2 || len(page.People) != 1 || page.HasMore || page.NextOffset != nil {
		t.Errorf("snapshot = %+v", page)
	}

	// Delta in milliseconds, as browsers send it.
	since := strconv.FormatFloat((testNow+5)*1000, 'f', -1, 64)
	rec = env.do(t, http.MethodGet, "/api/v1/sync/changes?since="+since, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("delta status = %d (body %s)", rec.Code, rec.Body.String())
	}
	page = decode[feed.Page](t, rec)
	if len(page.Movies) != 1 || page.Movies[0].IMDbID != "tt2" {
		t.Errorf("delta movies = %+v", page.Movies)
	}

	rec = env.do(t, http.MethodGet, "/api/v1/sync/changes?limit=1", "")
	page = decode[feed.Page](t, rec)
	if page.Len() != 1 || !page.HasMore || page.NextOffset == nil || *page.NextOffset != 1 {
		t.Errorf("first page = %+v", page)
	}
}

func TestSyncChanges_LegacyRoot(t *testing.T) {
	env := setupEnv(t)
	env.do(t, http.MethodPost, "/api/v1/sync", addTT1)

	rec := env.do(t, http.MethodGet, "/api/v1/sync", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if page := decode[feed.Page](t, rec); len(page.Movies) != 1 {
		t.Errorf("movies = %d", len(page.Movies))
	}
}

func TestSyncChanges_InvalidParams(t *testing.T) {
	tests := []struct {
		query    string
		wantCode string
	}{
		{"since=yesterday", ErrCodeBadRequest},
		{"since=NaN", ErrCodeBadRequest},
		{"limit=0", ErrCodeBadRequest},
		{"limit=ten", ErrCodeBadRequest},
		{"limit=-3", ErrCodeValidationFailed},
		{"limit=501", ErrCodeBadRequest},
		{"offset=-1", ErrCodeValidationFailed},
		{"offset=1.5", ErrCodeBadRequest},
	}
	env := setupEnv(t)
	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			rec := env.do(t, http.MethodGet, "/api/v1/sync/changes?"+tt.query, "")
			if rec.Code != http.StatusBadRequest {
				t.Fatalf("status = %d, want 400", rec.Code)
			}
			resp := decode[errorEnvelope](t, rec)
			if resp.Error == nil || resp.Error.Code != tt.wantCode {
				t.Errorf("error = %+v, want code %s", resp.Error, tt.wantCode)
			}
		})
	}
}

func TestSyncChanges_StoreFailure(t *testing.T) {
	env := setupEnv(t)
	_ = env.store.Close()

	rec := env.do(t, http.MethodGet, "/api/v1/sync/changes", "")
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500", rec.Code)
	}
	if resp := decode[errorEnvelope](t, rec); resp.Error == nil || resp.Error.Code != ErrCodeStoreError {
		t.Errorf("error = %+v", resp.Error)
	}
}

func TestSeedQuickRecommenders(t *testing.T) {
	env := setupEnv(t, withConfig(func(c *config.Config) { c.Sync.SeedQuickRecommenders = true }))

	// Pulling the feed never writes.
	page := decode[feed.Page](t, env.do(t, http.MethodGet, "/api/v1/sync/changes", ""))
	if len(page.People) != 0 || len(env.notifier.snapshot()) != 0 {
		t.Fatalf("feed seeded: people = %d, notifications = %d", len(page.People), len(env.notifier.snapshot()))
	}

	env.do(t, http.MethodPost, "/api/v1/sync", addTT1)
	calls := env.notifier.snapshot()
	if len(calls) != 2 || calls[0].origin != "" || calls[0].events[0] != models.PeopleEvent() {
		t.Fatalf("notifications = %+v, want peopleUpdated then the action events", calls)
	}
	page = decode[feed.Page](t, env.do(t, http.MethodGet, "/api/v1/sync/changes", ""))
	if len(page.People) != len(models.QuickRecommenders)+1 {
		t.Fatalf("people = %d, want quick recommenders plus Bob", len(page.People))
	}

	resp := decode[processor.ActionResponse](t,
		env.do(t, http.MethodPost, "/api/v1/sync", `{"action":"deletePerson","data":{"name":"Google Search"}}`))
	if !resp.Success {
		t.Fatalf("deletePerson = %+v", resp)
	}

	// A restart or an expired key set entry checks the store again.
	env.handler.seeded.Forget(testUser)
	env.clock.Advance(time.Hour)
	before := len(env.notifier.snapshot())
	env.do(t, http.MethodPost, "/api/v1/sync", `{"action":"addPerson","data":{"name":"Carol"}}`)
	if got := len(env.notifier.snapshot()) - before; got != 1 {
		t.Errorf("notifications after re-check = %d, want only the addPerson one", got)
	}

	page = decode[feed.Page](t, env.do(t, http.MethodGet, "/api/v1/sync/changes", ""))
	for _, p := range page.People {
		if p.Name == "Google Search" {
			t.Errorf("deleted quick recommender came back: %+v", p)
		}
	}
}

func TestSyncAction_BodyTooLarge(t *testing.T) {
	env := setupEnv(t)
	body := `{"action":"addRecommendation","data":{"imdb_id":"tt1","person":"` + strings.Repeat("a", maxBodyBytes) + `"}}`
	rec := env.do(t, http.MethodPost, "/api/v1/sync", body)
	if rec.Code != http.StatusRequestEntityTooLarge {
		t.Errorf("status = %d, want 413", rec.Code)
	}
}
