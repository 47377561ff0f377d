// Reelsync - Multi-Device Watchlist Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/reelsync

package models

// DefaultColor is applied to people and lists created without a color.
const DefaultColor = "#0a84ff"

// Person is a recommender. Name is unique per user; recommendations reference
// the numeric ID.
type Person struct {
	ID           int64   `json:"id"`
	Name         string  `json:"name"`
	IsTrusted    bool    `json:"is_trusted"`
	Color        string  `json:"color"`
	Emoji        *string `json:"emoji"`
	QuickKey     *string `json:"quick_key"`
	LastModified float64 `json:"last_modified"`
}

// QuickRecommender describes a system seeded person.
type QuickRecommender struct {
	Key   string
	Name  string
	Color string
	Emoji string
}

// QuickRecommenders are seeded for every user.
var QuickRecommenders = []QuickRecommender{
	{Key: "youtube", Name: "Random YouTube Video", Color: "#bf5af2", Emoji: "📺"},
	{Key: "oscar", Name: "Oscar Winner/Nominee", Color: "#ffd60a", Emoji: "🏆"},
	{Key: "random_person", Name: "Random Person", Color: "#30d158", Emoji: "🤝"},
	{Key: "google", Name: "Google Search", Color: "#64d2ff", Emoji: "🔎"},
}
