// Reelsync - Multi-Device Watchlist Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/reelsync

package models

import "sort"

// EventKind names a change pushed to live connections.
type EventKind string

const (
	EventMovieAdded    EventKind = "movieAdded"
	EventMovieUpdated  EventKind = "movieUpdated"
	EventMovieDeleted  EventKind = "movieDeleted"
	EventPeopleUpdated EventKind = "peopleUpdated"
	EventListUpdated   EventKind = "listUpdated"
)

// FrameConnected is the acknowledgement sent when a live connection is accepted.
const FrameConnected = "connected"

// Event is a domain change emitted by the action processor. EntityID is the
// imdb_id for movie kinds, the list id for listUpdated, and empty for
// peopleUpdated.
type Event struct {
	Kind     EventKind `json:"kind"`
	EntityID string    `json:"entity_id,omitempty"`
}

// MovieEvent builds a movie scoped event.
func MovieEvent(kind EventKind, imdbID string) Event {
	return Event{Kind: kind, EntityID: imdbID}
}

// ListEvent builds a listUpdated event.
func ListEvent(listID string) Event {
	return Event{Kind: EventListUpdated, EntityID: listID}
}

// PeopleEvent builds a peopleUpdated event.
func PeopleEvent() Event {
	return Event{Kind: EventPeopleUpdated}
}

// Frame is the JSON document written to a live connection.
type Frame struct {
	Type         string  `json:"type"`
	IMDbID       string  `json:"imdb_id,omitempty"`
	ListID       string  `json:"list_id,omitempty"`
	ConnectionID string  `json:"connection_id,omitempty"`
	Timestamp    float64 `json:"timestamp"`
}

// Frame renders the event for delivery at ts.
func (e Event) Frame(ts float64) Frame {
	f := Frame{Type: string(e.Kind), Timestamp: ts}
	switch e.Kind {
	case EventMovieAdded, EventMovieUpdated, EventMovieDeleted:
		f.IMDbID = e.EntityID
	case EventListUpdated:
		f.ListID = e.EntityID
	}
	return f
}

// DedupeEvents collapses duplicate (kind, entity) pairs and returns them
// sorted by kind, then entity. The input is not modified.
func DedupeEvents(events []Event) []Event {
	if len(events) == 0 {
		return nil
	}

	seen := make(map[Event]struct{}, len(events))
	out := make([]Event, 0, len(events))
	for _, e := range events {
		if _, ok := seen[e]; ok {
			continue
		}
		seen[e] = struct{}{}
		out = append(out, e)
	}

	sort.Slice(out, func(i, j int) bool {
		if out[i].Kind != out[j].Kind {
			return out[i].Kind < out[j].Kind
		}
		return out[i].EntityID < out[j].EntityID
	})
	return out
}
