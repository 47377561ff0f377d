// Reelsync - Multi-Device Watchlist Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/reelsync

package eventbus

import (
	"errors"
	"fmt"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/goccy/go-json"

	"github.com/tomtom215/reelsync/internal/models"
)

// Metadata keys set on every envelope message.
const (
	MetadataUserID = "user_id"
	MetadataOrigin = "origin_connection_id"
)

// ErrEmptyEnvelope is returned for envelopes without a user or events.
var ErrEmptyEnvelope = errors.New("envelope has no user or events")

// Envelope is the notification published once per sync request.
type Envelope struct {
	UserID             string         `json:"user_id"`
	OriginConnectionID string         `json:"origin_connection_id,omitempty"`
	Events             []models.Event `json:"events"`
}

// ToMessage encodes e as a watermill message with a fresh UUID.
func (e *Envelope) ToMessage() (*message.Message, error) {
	if e.UserID == "" || len(e.Events) == 0 {
		return nil, ErrEmptyEnvelope
	}
	data, err := json.Marshal(e)
	if err != nil {
		return nil, fmt.Errorf("marshal envelope: %w", err)
	}
	msg := message.NewMessage(watermill.NewUUID(), data)
	msg.Metadata.Set(MetadataUserID, e.UserID)
	if e.OriginConnectionID != "" {
		msg.Metadata.Set(MetadataOrigin, e.OriginConnectionID)
	}
	return msg, nil
}

// EnvelopeFromMessage decodes a message produced by ToMessage.
func EnvelopeFromMessage(msg *message.Message) (*Envelope, error) {
	var e Envelope
	if err := json.Unmarshal(msg.Payload, &e); err != nil {
		return nil, fmt.Errorf("unmarshal envelope %s: %w", msg.UUID, err)
	}
	if e.UserID == "" || len(e.Events) == 0 {
		return nil, ErrEmptyEnvelope
	}
	return &e, nil
}
