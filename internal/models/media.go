// Reelsync - Multi-Device Watchlist Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/reelsync

package models

import (
	"sort"

	"github.com/goccy/go-json"
)

// MediaType distinguishes movies from shows.
type MediaType string

const (
	MediaTypeMovie MediaType = "movie"
	MediaTypeTV    MediaType = "tv"
)

// WatchState is the lifecycle state held by a Status.
type WatchState string

const (
	StateToWatch WatchState = "toWatch"
	StateWatched WatchState = "watched"
	StateDeleted WatchState = "deleted"
	StateCustom  WatchState = "custom"
)

// Valid reports whether s is one of the known states.
func (s WatchState) Valid() bool {
	switch s {
	case StateToWatch, StateWatched, StateDeleted, StateCustom:
		return true
	}
	return false
}

// Vote values stored on a Recommendation.
const (
	VoteUp   = "upvote"
	VoteDown = "downvote"
)

// Status is the one-to-one state of a MediaItem. CustomListID is set only when
// State is StateCustom.
type Status struct {
	State        WatchState `json:"status"`
	CustomListID *string    `json:"custom_list_id"`
}

// WatchEntry records that the user watched an item. Rating is within [1, 10].
type WatchEntry struct {
	DateWatched float64 `json:"date_watched"`
	Rating      float64 `json:"my_rating"`
}

// Recommendation is one person's vote for an item. Unique per (item, person).
type Recommendation struct {
	PersonID        int64   `json:"person_id"`
	VoteType        string  `json:"vote_type"`
	DateRecommended float64 `json:"date_recommended"`
}

// Upvote reports whether the recommendation is positive.
func (r Recommendation) Upvote() bool {
	return r.VoteType != VoteDown
}

// MediaItem is the aggregate stored per (user, imdb_id).
type MediaItem struct {
	IMDbID          string           `json:"imdb_id"`
	MediaType       MediaType        `json:"media_type"`
	TMDBData        json.RawMessage  `json:"tmdb_data,omitempty"`
	OMDBData        json.RawMessage  `json:"omdb_data,omitempty"`
	LastModified    float64          `json:"last_modified"`
	Status          Status           `json:"status"`
	WatchEntry      *WatchEntry      `json:"watch_entry,omitempty"`
	Recommendations []Recommendation `json:"recommendations,omitempty"`
}

// NewMediaItem returns an item in the default toWatch state.
func NewMediaItem(imdbID string, mediaType MediaType, now float64) *MediaItem {
	if mediaType == "" {
		mediaType = MediaTypeMovie
	}
	return &MediaItem{
		IMDbID:       imdbID,
		MediaType:    mediaType,
		LastModified: now,
		Status:       Status{State: StateToWatch},
	}
}

// Recommendation returns the vote cast by personID, if any.
func (m *MediaItem) Recommendation(personID int64) (*Recommendation, bool) {
	for i := range m.Recommendations {
		if m.Recommendations[i].PersonID == personID {
			return &m.Recommendations[i], true
		}
	}
	return nil, false
}

// UpsertRecommendation inserts or replaces the vote of rec.PersonID.
// It reports whether a new recommendation was added.
func (m *MediaItem) UpsertRecommendation(rec Recommendation) bool {
	if existing, ok := m.Recommendation(rec.PersonID); ok {
		*existing = rec
		return false
	}
	m.Recommendations = append(m.Recommendations, rec)
	sort.Slice(m.Recommendations, func(i, j int) bool {
		return m.Recommendations[i].PersonID < m.Recommendations[j].PersonID
	})
	return true
}

// RemoveRecommendation drops the vote of personID and reports whether one existed.
func (m *MediaItem) RemoveRecommendation(personID int64) bool {
	for i := range m.Recommendations {
		if m.Recommendations[i].PersonID == personID {
			m.Recommendations = append(m.Recommendations[:i], m.Recommendations[i+1:]...)
			return true
		}
	}
	return false
}

// SetStatus updates the state and clears the list reference unless the new
// state is StateCustom.
func (m *MediaItem) SetStatus(state WatchState, listID *string) {
	m.Status.State = state
	if state != StateCustom {
		m.Status.CustomListID = nil
		return
	}
	m.Status.CustomListID = listID
}

// Deleted reports whether the item's status is StateDeleted.
func (m *MediaItem) Deleted() bool {
	return m.Status.State == StateDeleted
}

// RecommendationSnapshot is a Recommendation as seen by clients.
type RecommendationSnapshot struct {
	IMDbID          string  `json:"imdb_id"`
	PersonID        int64   `json:"person_id"`
	Person          string  `json:"person"`
	VoteType        string  `json:"vote_type"`
	DateRecommended float64 `json:"date_recommended"`
}

// WatchHistorySnapshot is a WatchEntry as seen by clients.
type WatchHistorySnapshot struct {
	IMDbID      string  `json:"imdb_id"`
	DateWatched float64 `json:"date_watched"`
	Rating      float64 `json:"my_rating"`
}

// MediaSnapshot is the full serialized state of a MediaItem. It is returned as
// server_state on conflicts and as the movie entries of the change feed.
type MediaSnapshot struct {
	IMDbID          string                   `json:"imdb_id"`
	MediaType       MediaType                `json:"media_type"`
	TMDBData        json.RawMessage          `json:"tmdb_data"`
	OMDBData        json.RawMessage          `json:"omdb_data"`
	LastModified    float64                  `json:"last_modified"`
	Status          WatchState               `json:"status"`
	CustomListID    *string                  `json:"custom_list_id"`
	Recommendations []RecommendationSnapshot `json:"recommendations"`
	WatchHistory    *WatchHistorySnapshot    `json:"watch_history"`
}

// Snapshot serializes the item. names resolves person ids to display names;
// unknown ids render with an empty name.
func (m *MediaItem) Snapshot(names map[int64]string) *MediaSnapshot {
	snap := &MediaSnapshot{
		IMDbID:          m.IMDbID,
		MediaType:       m.MediaType,
		TMDBData:        m.TMDBData,
		OMDBData:        m.OMDBData,
		LastModified:    m.LastModified,
		Status:          m.Status.State,
		CustomListID:    m.Status.CustomListID,
		Recommendations: make([]RecommendationSnapshot, 0, len(m.Recommendations)),
	}

	for _, r := range m.Recommendations {
		snap.Recommendations = append(snap.Recommendations, RecommendationSnapshot{
			IMDbID:          m.IMDbID,
			PersonID:        r.PersonID,
			Person:          names[r.PersonID],
			VoteType:        r.VoteType,
			DateRecommended: r.DateRecommended,
		})
	}

	if m.WatchEntry != nil {
		snap.WatchHistory = &WatchHistorySnapshot{
			IMDbID:      m.IMDbID,
			DateWatched: m.WatchEntry.DateWatched,
			Rating:      m.WatchEntry.Rating,
		}
	}

	return snap
}
