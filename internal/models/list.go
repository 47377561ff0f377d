// Reelsync - Multi-Device Watchlist Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/reelsync

package models

// DefaultListIcon is applied to lists created without an icon.
const DefaultListIcon = "list"

// CustomList groups items whose Status is StateCustom.
type CustomList struct {
	ID           string  `json:"id"`
	Name         string  `json:"name"`
	Color        string  `json:"color"`
	Icon         string  `json:"icon"`
	Position     int     `json:"position"`
	CreatedAt    float64 `json:"created_at"`
	LastModified float64 `json:"last_modified"`
}
