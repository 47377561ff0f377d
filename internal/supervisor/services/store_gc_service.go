// Reelsync - Multi-Device Watchlist Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/reelsync

package services

import (
	"context"
	"errors"
	"time"

	"github.com/thejerf/suture/v4"

	"github.com/tomtom215/reelsync/internal/logging"
	"github.com/tomtom215/reelsync/internal/metrics"
	"github.com/tomtom215/reelsync/internal/store"
)

// GarbageCollector is satisfied by *store.BadgerStore.
type GarbageCollector interface {
	RunGC() error
}

// StoreGCService runs value log GC on a fixed interval. A failed pass is
// logged and counted; the next tick tries again.
type StoreGCService struct {
	store    GarbageCollector
	interval time.Duration
	name     string
}

var _ suture.Service = (*StoreGCService)(nil)

// NewStoreGCService creates the service. A non-positive interval disables
// GC and Serve returns suture.ErrDoNotRestart at once.
func NewStoreGCService(st GarbageCollector, interval time.Duration) *StoreGCService {
	return &StoreGCService{store: st, interval: interval, name: "store-gc"}
}

// Serve implements suture.Service.
func (s *StoreGCService) Serve(ctx context.Context) error {
	if s.interval <= 0 {
		logging.Debug().Msg("Store GC disabled")
		return suture.ErrDoNotRestart
	}

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			err := s.store.RunGC()
			if errors.Is(err, store.ErrClosed) {
				return suture.ErrDoNotRestart
			}
			metrics.RecordStoreGC(err)
			if err != nil {
				logging.Warn().Err(err).Msg("Store GC pass failed")
			}
		}
	}
}

func (s *StoreGCService) String() string {
	return s.name
}
