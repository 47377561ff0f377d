// Reelsync - Multi-Device Watchlist Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/reelsync

// Package store is the entity store adapter used by the sync engine.
//
// All access is scoped to one user and happens inside a transaction:
//
//	err := st.Update(ctx, userID, func(tx store.Tx) error {
//	    item, err := tx.GetMovie("tt0111161")
//	    if errors.Is(err, store.ErrNotFound) {
//	        item = models.NewMediaItem("tt0111161", models.MediaTypeMovie, now)
//	    } else if err != nil {
//	        return err
//	    }
//	    item.LastModified = now
//	    return tx.PutMovie(item)
//	})
//
// Update commits when fn returns nil and discards every write otherwise, which
// gives each sync action its own rollback boundary. View runs fn against a
// consistent snapshot and rejects writes.
//
// Range queries (Movies, People, Lists) take a modification watermark: a value
// <= 0 returns everything, otherwise only entities with last_modified >= since.
package store

import (
	"context"
	"errors"

	"github.com/tomtom215/reelsync/internal/models"
)

var (
	// ErrNotFound is returned when a point query misses.
	ErrNotFound = errors.New("entity not found")

	// ErrDuplicate is returned when a write would break a uniqueness rule,
	// such as two people with the same name.
	ErrDuplicate = errors.New("duplicate entity")

	// ErrClosed is returned after Close.
	ErrClosed = errors.New("store is closed")

	// ErrInvalidUser is returned for an empty user identifier.
	ErrInvalidUser = errors.New("user id is required")
)

// Store opens user scoped transactions.
type Store interface {
	// Update runs fn in a read-write transaction and commits if fn returns nil.
	Update(ctx context.Context, userID string, fn func(Tx) error) error

	// View runs fn in a read-only transaction.
	View(ctx context.Context, userID string, fn func(Tx) error) error

	// Ping reports whether the store can serve requests.
	Ping(ctx context.Context) error

	// Close releases the underlying database.
	Close() error
}

// Tx exposes the entities of one user within a transaction.
type Tx interface {
	GetMovie(imdbID string) (*models.MediaItem, error)
	PutMovie(item *models.MediaItem) error
	DeleteMovie(imdbID string) error
	Movies(since float64) ([]*models.MediaItem, error)

	GetPerson(id int64) (*models.Person, error)
	PersonByName(name string) (*models.Person, error)
	// PutPerson assigns an ID when p.ID is zero and keeps names unique.
	PutPerson(p *models.Person) error
	DeletePerson(id int64) error
	People(since float64) ([]*models.Person, error)

	GetList(id string) (*models.CustomList, error)
	PutList(l *models.CustomList) error
	DeleteList(id string) error
	Lists(since float64) ([]*models.CustomList, error)

	// SeededAt returns when the quick recommenders were first created for
	// the user, or ErrNotFound if they never were.
	SeededAt() (float64, error)
	MarkSeeded(at float64) error
}

// Modified reports whether a last_modified value passes a watermark filter.
func Modified(lastModified, since float64) bool {
	return since <= 0 || lastModified >= since
}
