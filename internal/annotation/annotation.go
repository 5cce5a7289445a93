/*
 * Copyright (c) 2026 by easiwriter.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

// Package annotation models positionally anchored side content: footnotes
// and comments. Records live in a Store (memory, SQLite or Postgres);
// this package owns the rules that keep them consistent under edits:
// dense renumbering in anchor order and anchor shifting with clamping.
package annotation

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"time"
)

// ErrNotFound is returned by store mutations addressing an unknown ID.
var ErrNotFound = errors.New("annotation not found")

// ErrStaleAnchor rejects an anchor outside the document's rune range.
var ErrStaleAnchor = errors.New("annotation anchor outside document")

// ID is the stable identifier of one annotation.
type ID string

// NewID mints a random identifier. Every store uses this so records can
// move between stores during sync without translation.
func NewID() ID {
	var b [8]byte
	_, _ = rand.Read(b[:])
	return ID(hex.EncodeToString(b[:]))
}

// Record is one footnote or comment. Anchor is a rune offset into the
// document. Number is the 1-based display number among live records in
// anchor order, maintained by Renumber. Deleted is a soft-delete flag:
// deleted records are excluded from numbering, reservation and rendering
// but persist for undo until purged.
type Record struct {
	ID      ID
	Anchor  int
	Number  int
	Text    string
	Deleted bool
	Created time.Time
}

// Store holds the annotation records of a single document.
type Store interface {
	// List returns all non-purged records ordered by anchor, creation
	// time, then ID.
	List(ctx context.Context) ([]Record, error)
	// Create inserts a record at the given anchor. The caller assigns
	// the display number via a Renumber pass.
	Create(ctx context.Context, anchor int, text string) (Record, error)
	SetAnchor(ctx context.Context, id ID, anchor int) error
	SetNumber(ctx context.Context, id ID, n int) error
	SetDeleted(ctx context.Context, id ID, deleted bool) error
	// Purge removes the record permanently.
	Purge(ctx context.Context, id ID) error
}

// Live filters to the non-deleted records. Numbering and layout both go
// through this predicate so the soft-delete rule cannot diverge between
// call sites.
func Live(recs []Record) []Record {
	out := make([]Record, 0, len(recs))
	for _, r := range recs {
		if !r.Deleted {
			out = append(out, r)
		}
	}
	return out
}

// less orders records by anchor, breaking ties by creation time and then
// ID so a renumber pass is deterministic.
func less(a, b Record) bool {
	if a.Anchor != b.Anchor {
		return a.Anchor < b.Anchor
	}
	if !a.Created.Equal(b.Created) {
		return a.Created.Before(b.Created)
	}
	return a.ID < b.ID
}
