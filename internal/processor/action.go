// Reelsync - Multi-Device Watchlist Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/reelsync

package processor

import (
	"bytes"
	"fmt"

	"github.com/goccy/go-json"

	"github.com/tomtom215/reelsync/internal/models"
	"github.com/tomtom215/reelsync/internal/validation"
)

// Kind names a sync action.
type Kind string

const (
	KindAddRecommendation        Kind = "addRecommendation"
	KindRemoveRecommendation     Kind = "removeRecommendation"
	KindUpdateRecommendationVote Kind = "updateRecommendationVote"
	KindMarkWatched              Kind = "markWatched"
	KindUpdateRating             Kind = "updateRating"
	KindUpdateStatus             Kind = "updateStatus"
	KindAddPerson                Kind = "addPerson"
	KindUpdatePerson             Kind = "updatePerson"
	KindUpdatePersonTrust        Kind = "updatePersonTrust"
	KindDeletePerson             Kind = "deletePerson"
	KindAddList                  Kind = "addList"
	KindUpdateList               Kind = "updateList"
	KindDeleteList               Kind = "deleteList"
)

// payloadFactories is the closed set of supported kinds.
var payloadFactories = map[Kind]func() Payload{
	KindAddRecommendation:        func() Payload { return &AddRecommendation{} },
	KindRemoveRecommendation:     func() Payload { return &RemoveRecommendation{} },
	KindUpdateRecommendationVote: func() Payload { return &UpdateRecommendationVote{} },
	KindMarkWatched:              func() Payload { return &MarkWatched{} },
	KindUpdateRating:             func() Payload { return &UpdateRating{} },
	KindUpdateStatus:             func() Payload { return &UpdateStatus{} },
	KindAddPerson:                func() Payload { return &AddPerson{} },
	KindUpdatePerson:             func() Payload { return &UpdatePerson{} },
	KindUpdatePersonTrust:        func() Payload { return &UpdatePersonTrust{} },
	KindDeletePerson:             func() Payload { return &DeletePerson{} },
	KindAddList:                  func() Payload { return &AddList{} },
	KindUpdateList:               func() Payload { return &UpdateList{} },
	KindDeleteList:               func() Payload { return &DeleteList{} },
}

// Known reports whether k is a supported action kind.
func (k Kind) Known() bool {
	_, ok := payloadFactories[k]
	return ok
}

// millisecondThreshold separates second and millisecond client timestamps.
// 1e11 seconds is year 5138; 1e11 milliseconds is 1973.
const millisecondThreshold = 1e11

// NormalizeTimestamp converts a client timestamp to server seconds. Values
// above 1e11 are milliseconds. Zero, negative and absent values mean the
// client has no opinion and yield nil.
func NormalizeTimestamp(ts *float64) *float64 {
	if ts == nil || *ts <= 0 {
		return nil
	}
	v := *ts
	if v > millisecondThreshold {
		v /= 1000
	}
	return &v
}

// Request is one action as submitted by a client.
type Request struct {
	Action    string          `json:"action"`
	Data      json.RawMessage `json:"data"`
	Timestamp *float64        `json:"timestamp"`
}

// BatchRequest holds a queue of actions flushed by a device. Actions are kept
// raw so that one malformed entry fails alone.
type BatchRequest struct {
	Actions         []json.RawMessage `json:"actions"`
	ClientTimestamp *float64          `json:"client_timestamp"`
}

// Action is a decoded, typed action ready for Apply.
type Action struct {
	Kind      Kind
	Payload   Payload
	Timestamp *float64
}

// Payload is implemented by the per-kind data types.
type Payload interface {
	kind() Kind
}

// DecodeRequest parses the action envelope.
func DecodeRequest(raw []byte) (*Request, error) {
	var req Request
	dec := json.NewDecoder(bytes.NewReader(raw))
	if err := dec.Decode(&req); err != nil {
		return nil, &ValidationError{Err: fmt.Errorf("malformed action: %w", err)}
	}
	return &req, nil
}

// ParseAction decodes raw into a typed Action.
func ParseAction(raw []byte) (*Action, error) {
	req, err := DecodeRequest(raw)
	if err != nil {
		return nil, err
	}
	return req.Parse()
}

// Parse resolves the kind and decodes data into its payload type. Unknown
// kinds fail with *UnknownActionError; undecodable data with *ValidationError.
func (r *Request) Parse() (*Action, error) {
	if r.Action == "" {
		return nil, &ValidationError{Err: fmt.Errorf("action is required")}
	}
	kind := Kind(r.Action)
	factory, ok := payloadFactories[kind]
	if !ok {
		return nil, &UnknownActionError{Kind: r.Action}
	}

	payload := factory()
	data := bytes.TrimSpace(r.Data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		data = []byte("{}")
	}
	if err := json.Unmarshal(data, payload); err != nil {
		return nil, &ValidationError{Err: fmt.Errorf("decode %s data: %w", kind, err)}
	}

	return &Action{
		Kind:      kind,
		Payload:   payload,
		Timestamp: NormalizeTimestamp(r.Timestamp),
	}, nil
}

// validate runs struct validation and payload specific checks.
func validate(p Payload) error {
	if verr := validation.ValidateStruct(p); verr != nil {
		return &ValidationError{Err: verr}
	}
	if c, ok := p.(interface{ check() error }); ok {
		if err := c.check(); err != nil {
			return &ValidationError{Err: err}
		}
	}
	return nil
}

// present reports whether an optional JSON document was supplied.
func present(raw json.RawMessage) bool {
	trimmed := bytes.TrimSpace(raw)
	return len(trimmed) > 0 && !bytes.Equal(trimmed, []byte("null"))
}

// PersonRef addresses a person by id, or by name as older clients do.
type PersonRef struct {
	PersonID *int64 `json:"person_id" validate:"omitempty,gt=0"`
	Person   string `json:"person" validate:"required_without=PersonID,omitempty,max=100"`
}

// AddRecommendation records a person's vote for an item.
type AddRecommendation struct {
	IMDbID string `json:"imdb_id" validate:"required,entityid"`
	PersonRef
	VoteType        string          `json:"vote_type" validate:"omitempty,oneof=upvote downvote"`
	Vote            *bool           `json:"vote"`
	DateRecommended *float64        `json:"date_recommended" validate:"omitempty,gt=0"`
	MediaType       string          `json:"media_type" validate:"omitempty,oneof=movie tv"`
	TMDBData        json.RawMessage `json:"tmdb_data"`
	OMDBData        json.RawMessage `json:"omdb_data"`
}

func (*AddRecommendation) kind() Kind { return KindAddRecommendation }

// RemoveRecommendation drops a person's vote.
type RemoveRecommendation struct {
	IMDbID string `json:"imdb_id" validate:"required,entityid"`
	PersonRef
}

func (*RemoveRecommendation) kind() Kind { return KindRemoveRecommendation }

// UpdateRecommendationVote flips an existing vote.
type UpdateRecommendationVote struct {
	IMDbID string `json:"imdb_id" validate:"required,entityid"`
	PersonRef
	VoteType string `json:"vote_type" validate:"required_without=Vote,omitempty,oneof=upvote downvote"`
	Vote     *bool  `json:"vote"`
}

func (*UpdateRecommendationVote) kind() Kind { return KindUpdateRecommendationVote }

// MarkWatched records a viewing and its rating.
type MarkWatched struct {
	IMDbID      string   `json:"imdb_id" validate:"required,entityid"`
	DateWatched *float64 `json:"date_watched" validate:"omitempty,gt=0"`
	Rating      float64  `json:"my_rating" validate:"required,min=1,max=10"`
	MediaType   string   `json:"media_type" validate:"omitempty,oneof=movie tv"`
}

func (*MarkWatched) kind() Kind { return KindMarkWatched }

// UpdateRating changes the rating of an existing watch entry.
type UpdateRating struct {
	IMDbID string  `json:"imdb_id" validate:"required,entityid"`
	Rating float64 `json:"my_rating" validate:"required,min=1,max=10"`
}

func (*UpdateRating) kind() Kind { return KindUpdateRating }

// UpdateStatus moves an item between lifecycle states.
type UpdateStatus struct {
	IMDbID       string  `json:"imdb_id" validate:"required,entityid"`
	Status       string  `json:"status" validate:"required,oneof=toWatch watched deleted custom"`
	CustomListID *string `json:"custom_list_id" validate:"required_if=Status custom,omitempty,entityid"`
	MediaType    string  `json:"media_type" validate:"omitempty,oneof=movie tv"`
}

func (*UpdateStatus) kind() Kind { return KindUpdateStatus }

// AddPerson creates a recommender if the name is unused.
type AddPerson struct {
	Name      string  `json:"name" validate:"required,max=100"`
	IsTrusted bool    `json:"is_trusted"`
	Color     string  `json:"color" validate:"omitempty,hexcolor"`
	Emoji     *string `json:"emoji" validate:"omitempty,max=16"`
}

func (*AddPerson) kind() Kind { return KindAddPerson }

// PersonTarget addresses the person an update applies to. When PersonID is
// set, Name is the new name; otherwise Name selects the person.
type PersonTarget struct {
	PersonID *int64 `json:"person_id" validate:"omitempty,gt=0"`
	Name     string `json:"name" validate:"required_without=PersonID,omitempty,max=100"`
}

// UpdatePerson patches the fields present in the payload.
type UpdatePerson struct {
	PersonTarget
	IsTrusted *bool   `json:"is_trusted"`
	Color     *string `json:"color" validate:"omitempty,hexcolor"`
	Emoji     *string `json:"emoji" validate:"omitempty,max=16"`
}

func (*UpdatePerson) kind() Kind { return KindUpdatePerson }

// UpdatePersonTrust sets the trust flag.
type UpdatePersonTrust struct {
	PersonTarget
	IsTrusted *bool `json:"is_trusted" validate:"required"`
}

func (*UpdatePersonTrust) kind() Kind { return KindUpdatePersonTrust }

// DeletePerson removes a person and their recommendations.
type DeletePerson struct {
	PersonTarget
}

func (*DeletePerson) kind() Kind { return KindDeletePerson }

// AddList creates or overwrites a custom list. ID may be generated offline by
// the client; the server assigns one otherwise.
type AddList struct {
	ID       string `json:"id" validate:"omitempty,entityid"`
	Name     string `json:"name" validate:"required,max=100"`
	Color    string `json:"color" validate:"omitempty,hexcolor"`
	Icon     string `json:"icon" validate:"omitempty,max=32"`
	Position *int   `json:"position" validate:"omitempty,min=0"`
}

func (*AddList) kind() Kind { return KindAddList }

// UpdateList patches a custom list. A missing list is created when a name is
// supplied.
type UpdateList struct {
	ID       string  `json:"id" validate:"required,entityid"`
	Name     *string `json:"name" validate:"omitempty,min=1,max=100"`
	Color    *string `json:"color" validate:"omitempty,hexcolor"`
	Icon     *string `json:"icon" validate:"omitempty,max=32"`
	Position *int    `json:"position" validate:"omitempty,min=0"`
}

func (*UpdateList) kind() Kind { return KindUpdateList }

// DeleteList removes a custom list and returns its items to toWatch.
type DeleteList struct {
	ID string `json:"id" validate:"required,entityid"`
}

func (*DeleteList) kind() Kind { return KindDeleteList }

// voteType resolves vote_type and the boolean vote field. vote_type wins.
func voteType(voteType string, vote *bool) string {
	if voteType != "" {
		return voteType
	}
	if vote != nil && !*vote {
		return models.VoteDown
	}
	return models.VoteUp
}

// mediaType resolves an optional media_type.
func mediaType(s string) models.MediaType {
	if s == "" {
		return models.MediaTypeMovie
	}
	return models.MediaType(s)
}

// check requires provider metadata to be JSON objects.
func (p *AddRecommendation) check() error {
	if present(p.TMDBData) && !isObject(p.TMDBData) {
		return fmt.Errorf("tmdb_data must be a JSON object")
	}
	if present(p.OMDBData) && !isObject(p.OMDBData) {
		return fmt.Errorf("omdb_data must be a JSON object")
	}
	return nil
}

func isObject(raw json.RawMessage) bool {
	trimmed := bytes.TrimSpace(raw)
	return len(trimmed) > 0 && trimmed[0] == '{'
}
