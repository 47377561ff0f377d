// Reelsync - Multi-Device Watchlist Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/reelsync

// Package cache provides a bounded, expiring set of keys for once-per-key
// work such as seeding a user's defaults the first time they sync.
package cache

import (
	"sync"
	"time"
)

const (
	// DefaultCapacity bounds a KeySet created with a non-positive capacity.
	DefaultCapacity = 10000
	// DefaultTTL applies to a KeySet created with a non-positive ttl.
	DefaultTTL = time.Hour
)

type entry struct {
	key       string
	expiresAt time.Time
	prev      *entry
	next      *entry
}

// KeySet is a thread-safe LRU set with per-key expiry. Claim, Forget and
// eviction are O(1). When full, the least recently claimed key is evicted.
type KeySet struct {
	mu       sync.Mutex
	capacity int
	ttl      time.Duration
	now      func() time.Time

	items map[string]*entry
	// head.next is the most recently used entry, tail.prev the least.
	head *entry
	tail *entry
}

// NewKeySet creates a set holding at most capacity keys for ttl each.
func NewKeySet(capacity int, ttl time.Duration) *KeySet {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	s := &KeySet{
		capacity: capacity,
		ttl:      ttl,
		now:      time.Now,
		items:    make(map[string]*entry),
		head:     &entry{},
		tail:     &entry{},
	}
	s.head.next = s.tail
	s.tail.prev = s.head
	return s
}

// Claim adds key and reports true when it was absent or expired. A live key
// gets a fresh ttl and moves to the front, and Claim reports false, so
// exactly one of several concurrent callers wins.
func (s *KeySet) Claim(key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	if e, ok := s.items[key]; ok {
		if now.Before(e.expiresAt) {
			e.expiresAt = now.Add(s.ttl)
			s.moveToFront(e)
			return false
		}
		s.remove(e)
	}

	e := &entry{key: key, expiresAt: now.Add(s.ttl)}
	s.pushFront(e)
	s.items[key] = e
	for len(s.items) > s.capacity {
		s.remove(s.tail.prev)
	}
	return true
}

// Contains reports whether key is present and live. It does not refresh it.
func (s *KeySet) Contains(key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.items[key]
	return ok && s.now().Before(e.expiresAt)
}

// Forget removes key so the next Claim succeeds.
func (s *KeySet) Forget(key string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if e, ok := s.items[key]; ok {
		s.remove(e)
	}
}

// Len returns the number of keys held, expired ones included until they are
// claimed again or evicted.
func (s *KeySet) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.items)
}

// Must be called with mu held.
func (s *KeySet) pushFront(e *entry) {
	e.prev = s.head
	e.next = s.head.next
	s.head.next.prev = e
	s.head.next = e
}

func (s *KeySet) moveToFront(e *entry) {
	e.prev.next = e.next
	e.next.prev = e.prev
	s.pushFront(e)
}

func (s *KeySet) remove(e *entry) {
	e.prev.next = e.next
	e.next.prev = e.prev
	delete(s.items, e.key)
}
