/*
 * Copyright (c) 2026 by easiwriter.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package notes

import (
	"testing"

	"github.com/easiwriter/WritingShedPro-sub015/internal/annotation"
	"github.com/easiwriter/WritingShedPro-sub015/internal/measure"
	"github.com/easiwriter/WritingShedPro-sub015/internal/text"
)

// All expectations use BasicProvider: 7pt advances, 13pt line heights,
// regardless of style size. The label "N" plus its two-space gap is 3
// runes, so the body column starts at 21pt.

func newTestRenderer() *Renderer {
	return NewRenderer(measure.NewFitter(measure.BasicProvider{}), text.Style{Size: 12})
}

func TestLayoutEmptyAndDeletedOnly(t *testing.T) {
	r := newTestRenderer()
	b, err := r.Layout(nil, 200)
	if err != nil || b.Height != 0 || len(b.Entries) != 0 {
		t.Fatalf("empty layout: %+v err=%v", b, err)
	}
	recs := []annotation.Record{{ID: "a", Number: 1, Text: "gone", Deleted: true}}
	b, err = r.Layout(recs, 200)
	if err != nil || b.Height != 0 || len(b.Entries) != 0 {
		t.Fatalf("deleted-only layout: %+v err=%v", b, err)
	}
}

func TestLayoutSingleEntryHeight(t *testing.T) {
	r := newTestRenderer()
	// width 91 - indent 21 = body 70 = 10 cols; "aaaa bbbb cccc" wraps
	// to "aaaa bbbb " + "cccc" = 2 lines
	recs := []annotation.Record{{ID: "a", Number: 1, Text: "aaaa bbbb cccc"}}
	b, err := r.Layout(recs, 91)
	if err != nil {
		t.Fatalf("Layout: %v", err)
	}
	if len(b.Entries) != 1 {
		t.Fatalf("entries = %d", len(b.Entries))
	}
	e := b.Entries[0]
	if e.Label != "1" || e.Indent != 21 {
		t.Fatalf("entry label/indent: %+v", e)
	}
	if len(e.Lines) != 2 || e.Height != 26 {
		t.Fatalf("entry lines/height: %+v", e)
	}
	if want := SeparatorHeight() + 26; b.Height != want {
		t.Fatalf("block height = %v, want %v", b.Height, want)
	}
}

func TestLayoutSumsEntriesAndSpacing(t *testing.T) {
	r := newTestRenderer()
	recs := []annotation.Record{
		{ID: "a", Number: 1, Text: "one"},
		{ID: "b", Number: 2, Text: "two"},
		{ID: "c", Number: 3, Text: "skip me", Deleted: true},
	}
	b, err := r.Layout(recs, 200)
	if err != nil {
		t.Fatalf("Layout: %v", err)
	}
	if len(b.Entries) != 2 {
		t.Fatalf("deleted record not filtered: %+v", b.Entries)
	}
	want := SeparatorHeight() + 13 + EntrySpacing + 13
	if b.Height != want {
		t.Fatalf("block height = %v, want %v", b.Height, want)
	}
	h, err := r.RequiredHeight(recs, 200)
	if err != nil || h != want {
		t.Fatalf("RequiredHeight = %v err=%v, want %v", h, err, want)
	}
}

func TestLayoutEmptyNoteStillOccupiesALine(t *testing.T) {
	r := newTestRenderer()
	b, err := r.Layout([]annotation.Record{{ID: "a", Number: 1}}, 200)
	if err != nil {
		t.Fatalf("Layout: %v", err)
	}
	if b.Entries[0].Height != 13 {
		t.Fatalf("empty note height = %v, want 13", b.Entries[0].Height)
	}
}

func TestLayoutDeterministicAndInputUntouched(t *testing.T) {
	r := newTestRenderer()
	recs := []annotation.Record{
		{ID: "a", Number: 1, Text: "same in, same out"},
		{ID: "b", Number: 2, Text: "every time"},
	}
	before := make([]annotation.Record, len(recs))
	copy(before, recs)

	b1, err1 := r.Layout(recs, 150)
	b2, err2 := r.Layout(recs, 150)
	if err1 != nil || err2 != nil {
		t.Fatalf("Layout: %v %v", err1, err2)
	}
	if b1.Height != b2.Height || len(b1.Entries) != len(b2.Entries) {
		t.Fatalf("non-deterministic layout: %+v vs %+v", b1, b2)
	}
	for i := range recs {
		if recs[i] != before[i] {
			t.Fatalf("input record mutated: %+v -> %+v", before[i], recs[i])
		}
	}
}

func TestLayoutClippedDropsWholeEntries(t *testing.T) {
	r := newTestRenderer()
	recs := []annotation.Record{
		{ID: "a", Number: 1, Text: "one"},
		{ID: "b", Number: 2, Text: "two"},
	}
	full, _ := r.Layout(recs, 200)
	maxH := SeparatorHeight() + 13 + 1 // room for one entry only
	b, err := r.LayoutClipped(recs, 200, maxH)
	if err != nil {
		t.Fatalf("LayoutClipped: %v", err)
	}
	if !b.Truncated {
		t.Fatalf("expected truncation: full=%v max=%v", full.Height, maxH)
	}
	if len(b.Entries) != 1 || b.Entries[0].ID != "a" {
		t.Fatalf("entries = %+v", b.Entries)
	}
	if b.Height > maxH {
		t.Fatalf("clipped height %v exceeds budget %v", b.Height, maxH)
	}
}

func TestLayoutClippedClipsLinesWithinEntry(t *testing.T) {
	r := newTestRenderer()
	// 3 lines of body at width 91 (10 cols)
	recs := []annotation.Record{{ID: "a", Number: 1, Text: "aaaa bbbb cccc dddd eeee ffff"}}
	maxH := SeparatorHeight() + 26 + 1 // room for two of the lines
	b, err := r.LayoutClipped(recs, 91, maxH)
	if err != nil {
		t.Fatalf("LayoutClipped: %v", err)
	}
	if !b.Truncated || len(b.Entries) != 1 {
		t.Fatalf("block = %+v", b)
	}
	if got := len(b.Entries[0].Lines); got != 2 {
		t.Fatalf("kept lines = %d, want 2", got)
	}
	if b.Height > maxH {
		t.Fatalf("clipped height %v exceeds budget %v", b.Height, maxH)
	}
}

func TestLayoutClippedNoRoomAtAll(t *testing.T) {
	r := newTestRenderer()
	recs := []annotation.Record{{ID: "a", Number: 1, Text: "note"}}
	b, err := r.LayoutClipped(recs, 200, 2)
	if err != nil {
		t.Fatalf("LayoutClipped: %v", err)
	}
	if !b.Truncated || b.Height != 0 || len(b.Entries) != 0 {
		t.Fatalf("block = %+v, want empty truncated", b)
	}
}

func TestLayoutClippedPassThroughWhenFits(t *testing.T) {
	r := newTestRenderer()
	recs := []annotation.Record{{ID: "a", Number: 1, Text: "short"}}
	b, err := r.LayoutClipped(recs, 200, 1000)
	if err != nil {
		t.Fatalf("LayoutClipped: %v", err)
	}
	if b.Truncated {
		t.Fatalf("unexpected truncation: %+v", b)
	}
}

func TestNoteStyleScalesBody(t *testing.T) {
	r := newTestRenderer()
	st := r.NoteStyle()
	if st.Size != 12*NoteScale {
		t.Fatalf("note size = %v, want %v", st.Size, 12*NoteScale)
	}
	r.Body = text.Style{}
	if got := r.NoteStyle().Size; got != measure.DefaultSize*NoteScale {
		t.Fatalf("default note size = %v", got)
	}
}
