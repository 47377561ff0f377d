// Reelsync - Multi-Device Watchlist Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/reelsync

package store

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/goccy/go-json"

	"github.com/tomtom215/reelsync/internal/logging"
	"github.com/tomtom215/reelsync/internal/metrics"
	"github.com/tomtom215/reelsync/internal/models"
)

// Options configures a BadgerStore.
type Options struct {
	// Path is the data directory. Ignored when InMemory is set.
	Path string

	// InMemory keeps everything in RAM (tests, ephemeral deployments).
	InMemory bool

	// SyncWrites fsyncs every commit.
	SyncWrites bool

	// GCDiscardRatio is passed to RunValueLogGC.
	// Default: 0.5
	GCDiscardRatio float64
}

// BadgerStore implements Store on top of BadgerDB.
type BadgerStore struct {
	db     *badger.DB
	opts   Options
	mu     sync.RWMutex
	closed bool
}

// Open opens (or creates) a BadgerStore.
func Open(opts Options) (*BadgerStore, error) {
	if !opts.InMemory && opts.Path == "" {
		return nil, fmt.Errorf("storage path is required unless running in memory")
	}
	if opts.GCDiscardRatio <= 0 || opts.GCDiscardRatio >= 1 {
		opts.GCDiscardRatio = 0.5
	}

	bopts := badger.DefaultOptions(opts.Path)
	if opts.InMemory {
		bopts = badger.DefaultOptions("").WithInMemory(true)
	}
	bopts.SyncWrites = opts.SyncWrites

	// Reduce logging verbosity
	bopts.Logger = nil

	db, err := badger.Open(bopts)
	if err != nil {
		return nil, fmt.Errorf("open BadgerDB: %w", err)
	}

	logging.Info().
		Str("path", opts.Path).
		Bool("in_memory", opts.InMemory).
		Bool("sync_writes", opts.SyncWrites).
		Msg("entity store opened")

	return &BadgerStore{db: db, opts: opts}, nil
}

// OpenInMemory opens an in-memory store. Intended for tests.
func OpenInMemory() (*BadgerStore, error) {
	return Open(Options{InMemory: true})
}

// Update implements Store.
func (s *BadgerStore) Update(ctx context.Context, userID string, fn func(Tx) error) error {
	return s.run(ctx, "update", userID, true, fn)
}

// View implements Store.
func (s *BadgerStore) View(ctx context.Context, userID string, fn func(Tx) error) error {
	return s.run(ctx, "view", userID, false, fn)
}

func (s *BadgerStore) run(ctx context.Context, op, userID string, writable bool, fn func(Tx) error) (err error) {
	if userID == "" {
		return ErrInvalidUser
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return ErrClosed
	}

	start := time.Now()
	defer func() {
		metrics.RecordStoreOperation(op, time.Since(start), err)
	}()

	txFn := func(txn *badger.Txn) error {
		return fn(&badgerTx{txn: txn, keys: newKeyspace(userID)})
	}
	if writable {
		return s.db.Update(txFn)
	}
	return s.db.View(txFn)
}

// Ping implements Store.
func (s *BadgerStore) Ping(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed || s.db.IsClosed() {
		return ErrClosed
	}
	return nil
}

// RunGC reclaims value log space until nothing is left to rewrite.
// In-memory stores have no value log and return nil.
func (s *BadgerStore) RunGC() error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return ErrClosed
	}
	if s.opts.InMemory {
		return nil
	}

	for {
		err := s.db.RunValueLogGC(s.opts.GCDiscardRatio)
		if errors.Is(err, badger.ErrNoRewrite) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("run GC: %w", err)
		}
	}
}

// Close implements Store. It is safe to call more than once.
func (s *BadgerStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	return s.db.Close()
}

// badgerTx implements Tx over one badger transaction.
type badgerTx struct {
	txn  *badger.Txn
	keys keyspace
}

func (t *badgerTx) GetMovie(imdbID string) (*models.MediaItem, error) {
	var item models.MediaItem
	if err := getJSON(t.txn, t.keys.movie(imdbID), &item); err != nil {
		return nil, err
	}
	return &item, nil
}

func (t *badgerTx) PutMovie(item *models.MediaItem) error {
	if item.IMDbID == "" {
		return fmt.Errorf("put movie: imdb_id is required")
	}
	return setJSON(t.txn, t.keys.movie(item.IMDbID), item)
}

func (t *badgerTx) DeleteMovie(imdbID string) error {
	return deleteKey(t.txn, t.keys.movie(imdbID))
}

func (t *badgerTx) Movies(since float64) ([]*models.MediaItem, error) {
	return scan(t.txn, t.keys.movies(), func(m *models.MediaItem) bool {
		return Modified(m.LastModified, since)
	})
}

func (t *badgerTx) GetPerson(id int64) (*models.Person, error) {
	var p models.Person
	if err := getJSON(t.txn, t.keys.person(id), &p); err != nil {
		return nil, err
	}
	return &p, nil
}

func (t *badgerTx) PersonByName(name string) (*models.Person, error) {
	item, err := t.txn.Get(t.keys.personName(name))
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get person name index: %w", err)
	}

	var id int64
	err = item.Value(func(val []byte) error {
		var perr error
		id, perr = strconv.ParseInt(string(val), 10, 64)
		return perr
	})
	if err != nil {
		return nil, fmt.Errorf("decode person name index: %w", err)
	}
	return t.GetPerson(id)
}

func (t *badgerTx) PutPerson(p *models.Person) error {
	if p.Name == "" {
		return fmt.Errorf("put person: name is required")
	}

	if holder, err := t.PersonByName(p.Name); err == nil {
		if holder.ID != p.ID {
			return fmt.Errorf("person %q: %w", p.Name, ErrDuplicate)
		}
	} else if !errors.Is(err, ErrNotFound) {
		return err
	}

	if p.ID == 0 {
		id, err := t.nextPersonID()
		if err != nil {
			return err
		}
		p.ID = id
	} else if previous, err := t.GetPerson(p.ID); err == nil && previous.Name != p.Name {
		if err := deleteKey(t.txn, t.keys.personName(previous.Name)); err != nil {
			return err
		}
	} else if err != nil && !errors.Is(err, ErrNotFound) {
		return err
	}

	if err := t.txn.Set(t.keys.personName(p.Name), []byte(strconv.FormatInt(p.ID, 10))); err != nil {
		return fmt.Errorf("set person name index: %w", err)
	}
	return setJSON(t.txn, t.keys.person(p.ID), p)
}

func (t *badgerTx) DeletePerson(id int64) error {
	p, err := t.GetPerson(id)
	if err != nil {
		return err
	}
	if err := deleteKey(t.txn, t.keys.personName(p.Name)); err != nil {
		return err
	}
	return deleteKey(t.txn, t.keys.person(id))
}

func (t *badgerTx) People(since float64) ([]*models.Person, error) {
	return scan(t.txn, t.keys.people(), func(p *models.Person) bool {
		return Modified(p.LastModified, since)
	})
}

// nextPersonID advances the per-user counter inside the transaction so that a
// rolled back action does not consume an id.
func (t *badgerTx) nextPersonID() (int64, error) {
	key := t.keys.personSeq()
	var current uint64

	item, err := t.txn.Get(key)
	switch {
	case errors.Is(err, badger.ErrKeyNotFound):
	case err != nil:
		return 0, fmt.Errorf("get person sequence: %w", err)
	default:
		err = item.Value(func(val []byte) error {
			if len(val) != 8 {
				return fmt.Errorf("corrupt person sequence (%d bytes)", len(val))
			}
			current = binary.BigEndian.Uint64(val)
			return nil
		})
		if err != nil {
			return 0, err
		}
	}

	next := current + 1
	buf := make([]byte, 8)
	binary.BigEndian.PutUint64(buf, next)
	if err := t.txn.Set(key, buf); err != nil {
		return 0, fmt.Errorf("set person sequence: %w", err)
	}
	return int64(next), nil
}

func (t *badgerTx) GetList(id string) (*models.CustomList, error) {
	var l models.CustomList
	if err := getJSON(t.txn, t.keys.list(id), &l); err != nil {
		return nil, err
	}
	return &l, nil
}

func (t *badgerTx) PutList(l *models.CustomList) error {
	if l.ID == "" {
		return fmt.Errorf("put list: id is required")
	}
	return setJSON(t.txn, t.keys.list(l.ID), l)
}

func (t *badgerTx) DeleteList(id string) error {
	if _, err := t.GetList(id); err != nil {
		return err
	}
	return deleteKey(t.txn, t.keys.list(id))
}

func (t *badgerTx) Lists(since float64) ([]*models.CustomList, error) {
	return scan(t.txn, t.keys.lists(), func(l *models.CustomList) bool {
		return Modified(l.LastModified, since)
	})
}

type seedMarker struct {
	SeededAt float64 `json:"seeded_at"`
}

func (t *badgerTx) SeededAt() (float64, error) {
	var m seedMarker
	if err := getJSON(t.txn, t.keys.seeded(), &m); err != nil {
		return 0, err
	}
	return m.SeededAt, nil
}

func (t *badgerTx) MarkSeeded(at float64) error {
	return setJSON(t.txn, t.keys.seeded(), seedMarker{SeededAt: at})
}

func getJSON(txn *badger.Txn, key []byte, dst interface{}) error {
	item, err := txn.Get(key)
	if errors.Is(err, badger.ErrKeyNotFound) {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("get %s: %w", key, err)
	}
	return item.Value(func(val []byte) error {
		return json.Unmarshal(val, dst)
	})
}

func setJSON(txn *badger.Txn, key []byte, v interface{}) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal %s: %w", key, err)
	}
	if err := txn.Set(key, data); err != nil {
		return fmt.Errorf("set %s: %w", key, err)
	}
	return nil
}

func deleteKey(txn *badger.Txn, key []byte) error {
	if err := txn.Delete(key); err != nil && !errors.Is(err, badger.ErrKeyNotFound) {
		return fmt.Errorf("delete %s: %w", key, err)
	}
	return nil
}

// scan decodes every value under prefix and keeps those accepted by keep.
func scan[T any](txn *badger.Txn, prefix []byte, keep func(*T) bool) ([]*T, error) {
	opts := badger.DefaultIteratorOptions
	opts.PrefetchValues = true
	opts.Prefix = prefix
	it := txn.NewIterator(opts)
	defer it.Close()

	var out []*T
	for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
		v := new(T)
		err := it.Item().Value(func(val []byte) error {
			return json.Unmarshal(val, v)
		})
		if err != nil {
			return nil, fmt.Errorf("decode %s: %w", it.Item().Key(), err)
		}
		if keep(v) {
			out = append(out, v)
		}
	}
	return out, nil
}
