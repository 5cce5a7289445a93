/*
 * Copyright (c) 2026 by easiwriter.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package annotation

import (
	"context"
	"errors"
	"testing"
	"time"
)

func rec(id ID, anchor, number int, deleted bool) Record {
	return Record{ID: id, Anchor: anchor, Number: number, Deleted: deleted}
}

// checkDense verifies the numbering invariant: live records in anchor
// order carry exactly 1..N.
func checkDense(t *testing.T, recs []Record) {
	t.Helper()
	live := SortLive(recs)
	for i, r := range live {
		if r.Number != i+1 {
			t.Fatalf("record %s at rank %d has number %d: %+v", r.ID, i, r.Number, live)
		}
	}
}

func TestRenumberAssignsDenseSequence(t *testing.T) {
	recs := []Record{
		rec("c", 300, 0, false),
		rec("a", 10, 0, false),
		rec("b", 150, 0, false),
	}
	changed := Renumber(recs)
	if len(changed) != 3 {
		t.Fatalf("changed = %v, want all three", changed)
	}
	checkDense(t, recs)
	// second pass is a no-op
	if changed := Renumber(recs); len(changed) != 0 {
		t.Fatalf("renumber not idempotent: %v", changed)
	}
}

func TestRenumberSkipsDeleted(t *testing.T) {
	recs := []Record{
		rec("a", 10, 1, false),
		rec("b", 20, 2, true),
		rec("c", 30, 3, false),
	}
	changed := Renumber(recs)
	if len(changed) != 1 || changed[0] != "c" {
		t.Fatalf("changed = %v, want [c]", changed)
	}
	checkDense(t, recs)
	if recs[1].Number != 2 {
		t.Fatalf("deleted record number must stay untouched: %+v", recs[1])
	}
}

func TestRenumberTieBreaksByCreation(t *testing.T) {
	t0 := time.Now()
	recs := []Record{
		{ID: "late", Anchor: 50, Created: t0.Add(time.Second)},
		{ID: "early", Anchor: 50, Created: t0},
	}
	Renumber(recs)
	byID := map[ID]int{}
	for _, r := range recs {
		byID[r.ID] = r.Number
	}
	if byID["early"] != 1 || byID["late"] != 2 {
		t.Fatalf("tie-break wrong: %v", byID)
	}
}

func TestRenumberEmpty(t *testing.T) {
	if changed := Renumber(nil); len(changed) != 0 {
		t.Fatalf("changed = %v, want none", changed)
	}
}

func TestShiftAnchorsInsert(t *testing.T) {
	recs := []Record{
		rec("a", 5, 1, false),
		rec("b", 10, 2, false),
		rec("c", 20, 3, true),
	}
	moved := ShiftAnchors(recs, 10, 4)
	if len(moved) != 2 {
		t.Fatalf("moved = %+v, want b and c", moved)
	}
	if recs[0].Anchor != 5 || recs[1].Anchor != 14 || recs[2].Anchor != 24 {
		t.Fatalf("anchors = %d %d %d", recs[0].Anchor, recs[1].Anchor, recs[2].Anchor)
	}
}

func TestShiftAnchorsDeleteClamps(t *testing.T) {
	recs := []Record{
		rec("a", 5, 1, false),
		rec("inside", 12, 2, false),
		rec("after", 30, 3, false),
	}
	// delete 10 runes at 10; the anchor inside [10, 20) collapses to 10
	moved := ShiftAnchors(recs, 10, -10)
	if len(moved) != 2 {
		t.Fatalf("moved = %+v", moved)
	}
	if recs[1].Anchor != 10 {
		t.Fatalf("inside anchor = %d, want clamp to 10", recs[1].Anchor)
	}
	if recs[2].Anchor != 20 {
		t.Fatalf("after anchor = %d, want 20", recs[2].Anchor)
	}
	if recs[0].Anchor != 5 {
		t.Fatalf("anchor before edit moved: %d", recs[0].Anchor)
	}
}

func TestShiftAnchorsNoDelta(t *testing.T) {
	recs := []Record{rec("a", 5, 1, false)}
	if moved := ShiftAnchors(recs, 0, 0); moved != nil {
		t.Fatalf("moved = %+v, want nil", moved)
	}
}

// Anchors not inside a deleted range keep their position relative to the
// surrounding text across arbitrary edit sequences.
func TestShiftAnchorsPreservesRelativePosition(t *testing.T) {
	doc := []rune("the quick brown fox jumps over the lazy dog")
	anchor := 16 // before "fox"
	recs := []Record{rec("a", anchor, 1, false)}

	edits := []struct{ pos, del int; ins string }{
		{0, 0, "Once upon a time "},
		{4, 5, ""},
		{40, 0, " indeed"},
		{2, 1, "XY"},
	}
	for _, e := range edits {
		marker := string(doc[anchor:min(anchor+3, len(doc))])
		next := make([]rune, 0, len(doc))
		next = append(next, doc[:e.pos]...)
		next = append(next, []rune(e.ins)...)
		next = append(next, doc[min(e.pos+e.del, len(doc)):]...)
		doc = next
		ShiftAnchors(recs, e.pos, len([]rune(e.ins))-e.del)
		anchor = recs[0].Anchor
		if got := string(doc[anchor:min(anchor+3, len(doc))]); got != marker {
			t.Fatalf("anchor drifted after edit %+v: %q != %q", e, got, marker)
		}
	}
}

func TestLiveFilter(t *testing.T) {
	recs := []Record{
		rec("a", 1, 1, false),
		rec("b", 2, 2, true),
	}
	live := Live(recs)
	if len(live) != 1 || live[0].ID != "a" {
		t.Fatalf("live = %+v", live)
	}
}

func TestMemStoreRoundTrip(t *testing.T) {
	ctx := context.Background()
	s := NewMemStore()

	r1, err := s.Create(ctx, 40, "first")
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	r2, err := s.Create(ctx, 10, "second")
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if r1.ID == r2.ID {
		t.Fatalf("duplicate IDs")
	}
	if !r2.Created.After(r1.Created) {
		t.Fatalf("created times not monotonic: %v %v", r1.Created, r2.Created)
	}

	recs, err := s.List(ctx)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(recs) != 2 || recs[0].ID != r2.ID {
		t.Fatalf("List order wrong: %+v", recs)
	}

	if err := s.SetAnchor(ctx, r1.ID, 5); err != nil {
		t.Fatalf("SetAnchor: %v", err)
	}
	if err := s.SetNumber(ctx, r1.ID, 1); err != nil {
		t.Fatalf("SetNumber: %v", err)
	}
	if err := s.SetDeleted(ctx, r2.ID, true); err != nil {
		t.Fatalf("SetDeleted: %v", err)
	}
	recs, _ = s.List(ctx)
	if recs[0].ID != r1.ID || recs[0].Anchor != 5 || recs[0].Number != 1 {
		t.Fatalf("mutations lost: %+v", recs[0])
	}
	if !recs[1].Deleted {
		t.Fatalf("soft delete lost: %+v", recs[1])
	}

	if err := s.Purge(ctx, r2.ID); err != nil {
		t.Fatalf("Purge: %v", err)
	}
	if recs, _ = s.List(ctx); len(recs) != 1 {
		t.Fatalf("purge left records: %+v", recs)
	}

	if err := s.SetAnchor(ctx, "missing", 1); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if err := s.Purge(ctx, "missing"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}
