// Reelsync - Multi-Device Watchlist Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/reelsync

package store

import (
	"fmt"
	"net/url"
)

// Key layout, all under a per-user prefix:
//
//	u/<user>/movie/<imdb_id>
//	u/<user>/person/<id:020d>
//	u/<user>/person_name/<name>
//	u/<user>/list/<id>
//	u/<user>/seq/person
//	u/<user>/seq/seeded
const (
	kindMovie      = "movie/"
	kindPerson     = "person/"
	kindPersonName = "person_name/"
	kindList       = "list/"
	seqPerson      = "seq/person"
	seqSeeded      = "seq/seeded"
)

// keyspace builds keys for one user. The user id is path-escaped so that it
// can never contain the separator.
type keyspace struct {
	prefix string
}

func newKeyspace(userID string) keyspace {
	return keyspace{prefix: "u/" + url.PathEscape(userID) + "/"}
}

func (k keyspace) movie(imdbID string) []byte {
	return []byte(k.prefix + kindMovie + imdbID)
}

func (k keyspace) movies() []byte {
	return []byte(k.prefix + kindMovie)
}

func (k keyspace) person(id int64) []byte {
	return []byte(fmt.Sprintf("%s%s%020d", k.prefix, kindPerson, id))
}

func (k keyspace) people() []byte {
	return []byte(k.prefix + kindPerson)
}

func (k keyspace) personName(name string) []byte {
	return []byte(k.prefix + kindPersonName + name)
}

func (k keyspace) list(id string) []byte {
	return []byte(k.prefix + kindList + id)
}

func (k keyspace) lists() []byte {
	return []byte(k.prefix + kindList)
}

func (k keyspace) personSeq() []byte {
	return []byte(k.prefix + seqPerson)
}

func (k keyspace) seeded() []byte {
	return []byte(k.prefix + seqSeeded)
}
