// Reelsync - Multi-Device Watchlist Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/reelsync

/*
Package feed builds the change feed that devices pull after being offline.

A query with Since <= 0 returns a full snapshot of the user's movies, people and
lists. Otherwise only entities with last_modified >= Since are selected. All
matches are merged into one sequence ordered by last_modified, then by kind
(list, movie, person) and identifier, and sliced by [Offset, Offset+Limit).

Because the order is total and the builder never writes, walking the pages of
one watermark by advancing Offset until HasMore is false yields every matching
entity exactly once, provided no writes land between page requests.
*/
package feed

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/tomtom215/reelsync/internal/clock"
	"github.com/tomtom215/reelsync/internal/metrics"
	"github.com/tomtom215/reelsync/internal/models"
	"github.com/tomtom215/reelsync/internal/store"
)

// Limits applied when a Builder is created without explicit values.
const (
	DefaultLimit = 100
	MaxLimit     = 500
)

// ErrInvalidQuery is returned for out of range pagination parameters.
var ErrInvalidQuery = errors.New("invalid change feed query")

// Query selects one page of the feed.
type Query struct {
	Since  float64
	Limit  int
	Offset int
}

// Page is one slice of the merged change sequence.
type Page struct {
	Movies          []*models.MediaSnapshot `json:"movies"`
	People          []*models.Person        `json:"people"`
	Lists           []*models.CustomList    `json:"lists"`
	DeletedMovieIDs []string                `json:"deletedMovieIds"`
	HasMore         bool                    `json:"hasMore"`
	NextOffset      *int                    `json:"nextOffset"`
	ServerTimestamp float64                 `json:"serverTimestamp"`
}

// Len returns the number of entities on the page.
func (p *Page) Len() int {
	return len(p.Movies) + len(p.People) + len(p.Lists)
}

// Builder reads the change feed from a store.
type Builder struct {
	store        store.Store
	clock        clock.Clock
	defaultLimit int
	maxLimit     int
}

// Option configures a Builder.
type Option func(*Builder)

// WithLimits overrides the default and maximum page sizes.
func WithLimits(defaultLimit, maxLimit int) Option {
	return func(b *Builder) {
		if maxLimit > 0 {
			b.maxLimit = maxLimit
		}
		if defaultLimit > 0 {
			b.defaultLimit = defaultLimit
		}
	}
}

// NewBuilder creates a Builder.
func NewBuilder(st store.Store, clk clock.Clock, opts ...Option) *Builder {
	b := &Builder{
		store:        st,
		clock:        clk,
		defaultLimit: DefaultLimit,
		maxLimit:     MaxLimit,
	}
	for _, opt := range opts {
		opt(b)
	}
	if b.defaultLimit > b.maxLimit {
		b.defaultLimit = b.maxLimit
	}
	return b
}

// DefaultLimit returns the page size used when a query sets none.
func (b *Builder) DefaultLimit() int { return b.defaultLimit }

// MaxLimit returns the largest accepted page size.
func (b *Builder) MaxLimit() int { return b.maxLimit }

// Kinds in tie-break order.
const (
	kindList   = "list"
	kindMovie  = "movie"
	kindPerson = "person"
)

type entry struct {
	lastModified float64
	kind         string
	id           string

	movie  *models.MediaItem
	person *models.Person
	list   *models.CustomList
}

func less(a, b *entry) bool {
	if a.lastModified != b.lastModified {
		return a.lastModified < b.lastModified
	}
	if a.kind != b.kind {
		return a.kind < b.kind
	}
	return a.id < b.id
}

// Changes returns one page of the user's change feed. A zero Limit uses the
// builder's default.
func (b *Builder) Changes(ctx context.Context, userID string, q Query) (*Page, error) {
	if q.Limit == 0 {
		q.Limit = b.defaultLimit
	}
	if q.Limit < 1 || q.Limit > b.maxLimit {
		return nil, fmt.Errorf("%w: limit must be between 1 and %d", ErrInvalidQuery, b.maxLimit)
	}
	if q.Offset < 0 {
		return nil, fmt.Errorf("%w: offset must not be negative", ErrInvalidQuery)
	}

	snapshot := q.Since <= 0
	since := q.Since
	if snapshot {
		since = 0
	}

	var (
		entries []*entry
		names   map[int64]string
	)
	err := b.store.View(ctx, userID, func(tx store.Tx) error {
		movies, err := tx.Movies(since)
		if err != nil {
			return fmt.Errorf("list movies: %w", err)
		}
		people, err := tx.People(0)
		if err != nil {
			return fmt.Errorf("list people: %w", err)
		}
		lists, err := tx.Lists(since)
		if err != nil {
			return fmt.Errorf("list lists: %w", err)
		}

		names = make(map[int64]string, len(people))
		entries = make([]*entry, 0, len(movies)+len(people)+len(lists))
		for _, m := range movies {
			entries = append(entries, &entry{lastModified: m.LastModified, kind: kindMovie, id: m.IMDbID, movie: m})
		}
		for _, p := range people {
			names[p.ID] = p.Name
			if !store.Modified(p.LastModified, since) {
				continue
			}
			entries = append(entries, &entry{
				lastModified: p.LastModified,
				kind:         kindPerson,
				id:           fmt.Sprintf("%020d", p.ID),
				person:       p,
			})
		}
		for _, l := range lists {
			entries = append(entries, &entry{lastModified: l.LastModified, kind: kindList, id: l.ID, list: l})
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	sort.Slice(entries, func(i, j int) bool { return less(entries[i], entries[j]) })

	page := &Page{
		Movies:          []*models.MediaSnapshot{},
		People:          []*models.Person{},
		Lists:           []*models.CustomList{},
		DeletedMovieIDs: []string{},
		ServerTimestamp: b.clock.Now(),
	}

	start := min(q.Offset, len(entries))
	end := min(start+q.Limit, len(entries))
	for _, e := range entries[start:end] {
		switch e.kind {
		case kindMovie:
			page.Movies = append(page.Movies, e.movie.Snapshot(names))
			if e.movie.Deleted() {
				page.DeletedMovieIDs = append(page.DeletedMovieIDs, e.movie.IMDbID)
			}
		case kindPerson:
			page.People = append(page.People, e.person)
		case kindList:
			page.Lists = append(page.Lists, e.list)
		}
	}

	if end < len(entries) {
		page.HasMore = true
		next := end
		page.NextOffset = &next
	}

	metrics.RecordFeed(snapshot, page.Len())
	return page, nil
}
