// Reelsync - Multi-Device Watchlist Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/reelsync

// Package clock supplies server time to every state-changing operation.
//
// Timestamps are Unix seconds with sub-second precision (float64), which is the
// representation used on the wire and in stored last_modified fields. The
// server is the only timestamp authority: client supplied values are compared
// against clock readings but never written into entities.
//
// Production code uses System. Tests inject a Manual clock so that conflict
// windows and feed ordering are deterministic:
//
//	clk := clock.NewManual(1700000000)
//	proc := processor.New(st, clk, resolver)
//	clk.Advance(5 * time.Second)
package clock

import (
	"math"
	"sync"
	"time"
)

// Clock returns the current server time in Unix seconds.
type Clock interface {
	Now() float64
}

// System reads the wall clock.
type System struct{}

// Now implements Clock.
func (System) Now() float64 {
	return FromTime(time.Now())
}

// Manual is a settable clock for tests. The zero value starts at 0.
type Manual struct {
	mu  sync.Mutex
	now float64
}

// NewManual returns a Manual clock set to now.
func NewManual(now float64) *Manual {
	return &Manual{now: now}
}

// Now implements Clock.
func (m *Manual) Now() float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.now
}

// Set moves the clock to an absolute time.
func (m *Manual) Set(now float64) {
	m.mu.Lock()
	m.now = now
	m.mu.Unlock()
}

// Advance moves the clock forward by d.
func (m *Manual) Advance(d time.Duration) {
	m.mu.Lock()
	m.now += d.Seconds()
	m.mu.Unlock()
}

// FromTime converts t to Unix seconds.
func FromTime(t time.Time) float64 {
	return float64(t.UnixNano()) / float64(time.Second)
}

// ToTime converts Unix seconds to a UTC time.Time.
func ToTime(ts float64) time.Time {
	sec, frac := math.Modf(ts)
	return time.Unix(int64(sec), int64(frac*float64(time.Second))).UTC()
}
