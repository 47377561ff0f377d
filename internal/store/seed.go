// Reelsync - Multi-Device Watchlist Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/reelsync

package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/tomtom215/reelsync/internal/models"
)

// SeedQuickRecommenders creates the models.QuickRecommenders people for
// userID once. A person already holding the name gets the quick key attached;
// nothing else about it changes. The user is then marked as seeded and later
// calls write nothing, so deleted or renamed quick recommenders stay that way.
// It returns the number of people written.
func SeedQuickRecommenders(ctx context.Context, st Store, userID string, now float64) (int, error) {
	written := 0
	err := st.Update(ctx, userID, func(tx Tx) error {
		written = 0
		if _, err := tx.SeededAt(); err == nil {
			return nil
		} else if !errors.Is(err, ErrNotFound) {
			return fmt.Errorf("read seed marker: %w", err)
		}

		for _, qr := range models.QuickRecommenders {
			key := qr.Key
			existing, err := tx.PersonByName(qr.Name)
			switch {
			case err == nil:
				if existing.QuickKey != nil && *existing.QuickKey == key {
					continue
				}
				existing.QuickKey = &key
				existing.LastModified = now
				if err := tx.PutPerson(existing); err != nil {
					return fmt.Errorf("tag %s: %w", qr.Name, err)
				}
			case errors.Is(err, ErrNotFound):
				emoji := qr.Emoji
				p := &models.Person{
					Name:         qr.Name,
					Color:        qr.Color,
					Emoji:        &emoji,
					QuickKey:     &key,
					LastModified: now,
				}
				if err := tx.PutPerson(p); err != nil {
					return fmt.Errorf("seed %s: %w", qr.Name, err)
				}
			default:
				return err
			}
			written++
		}
		return tx.MarkSeeded(now)
	})
	if err != nil {
		return 0, err
	}
	return written, nil
}
