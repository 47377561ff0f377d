// Reelsync - Multi-Device Watchlist Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/reelsync

// Package conflict decides whether a client write is based on stale data.
//
// The policy is single-writer-wins with a skew grace: a client that declares
// a baseline timestamp older than the server's last modification (minus the
// grace) loses and must re-fetch. Absent timestamps never conflict, so the
// first write of an entity always succeeds.
package conflict

// DefaultSkewGrace tolerates small clock drift between devices, in seconds.
const DefaultSkewGrace = 1.0

// HasConflict reports whether client < server - grace. A nil timestamp on
// either side means "no opinion" and is never a conflict.
func HasConflict(serverLastModified, clientTimestamp *float64, grace float64) bool {
	if serverLastModified == nil || clientTimestamp == nil {
		return false
	}
	return *clientTimestamp < *serverLastModified-grace
}

// Decision is the outcome of a conflict check.
type Decision struct {
	Conflict           bool
	ServerLastModified float64
}

// Resolver applies HasConflict with a configured grace.
type Resolver struct {
	Grace float64
}

// NewResolver returns a Resolver. A negative grace is clamped to zero.
func NewResolver(grace float64) *Resolver {
	if grace < 0 {
		grace = 0
	}
	return &Resolver{Grace: grace}
}

// Check compares a server entity's modification time with the client's
// baseline.
func (r *Resolver) Check(serverLastModified, clientTimestamp *float64) Decision {
	d := Decision{Conflict: HasConflict(serverLastModified, clientTimestamp, r.Grace)}
	if serverLastModified != nil {
		d.ServerLastModified = *serverLastModified
	}
	return d
}
