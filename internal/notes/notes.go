/*
 * Copyright (c) 2026 by easiwriter.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

// Package notes lays out the annotation block that sits under the body
// text of a page: a short separator rule followed by numbered entries in
// a reduced size. The same layout, invoked once over the whole document's
// records, produces the endnotes block for endnote display mode. The
// pagination engine uses the computed height to reserve page space; the
// rendering and export layers draw from the same entries.
package notes

import (
	"strconv"

	"github.com/easiwriter/WritingShedPro-sub015/internal/annotation"
	"github.com/easiwriter/WritingShedPro-sub015/internal/geometry"
	"github.com/easiwriter/WritingShedPro-sub015/internal/measure"
	"github.com/easiwriter/WritingShedPro-sub015/internal/text"
)

const (
	// SeparatorLength is the width of the rule above the entries. By
	// convention a short rule, not the full text width.
	SeparatorLength = 1.5 * geometry.Inch
	// SeparatorPad is the vertical padding above and below the rule.
	SeparatorPad = 6.0
	// RuleThickness is the stroke width of the rule.
	RuleThickness = 0.5
	// NoteScale reduces the body size for entry text.
	NoteScale = 0.75
	// EntrySpacing separates consecutive entries.
	EntrySpacing = 3.0
	// labelGap sits between the number label and the entry body.
	labelGap = "  "
)

// SeparatorHeight is the vertical budget of the separator block.
func SeparatorHeight() float64 { return SeparatorPad + RuleThickness + SeparatorPad }

// Entry is one laid-out annotation: a hanging number label and the
// wrapped note text. Lines carry offsets into the entry's own text.
type Entry struct {
	ID     annotation.ID
	Number int
	Label  string
	Text   string
	Style  text.Style
	Indent float64 // x offset of the body column (label width)
	Lines  []measure.Line
	Height float64
}

// Block is the laid-out annotation area of one page (or the endnotes
// block of the whole document). Height includes the separator. A zero
// Block means no live annotations.
type Block struct {
	Entries   []Entry
	Height    float64
	Truncated bool
}

// Renderer lays out annotation blocks. Body is the document's base body
// style; entries are derived from it at NoteScale.
type Renderer struct {
	Fitter *measure.TextFitter
	Body   text.Style
}

// NewRenderer builds a Renderer over the given fitter.
func NewRenderer(f *measure.TextFitter, body text.Style) *Renderer {
	return &Renderer{Fitter: f, Body: body}
}

// NoteStyle is the style entries are measured and drawn with.
func (r *Renderer) NoteStyle() text.Style {
	size := r.Body.Size
	if size <= 0 {
		size = measure.DefaultSize
	}
	return text.Style{Font: r.Body.Font, Size: size * NoteScale}
}

// Layout lays out the live records at the given width, in the order
// given. Deleted records are filtered here and nowhere else downstream.
// Input records are not modified.
func (r *Renderer) Layout(recs []annotation.Record, width float64) (Block, error) {
	live := annotation.Live(recs)
	if len(live) == 0 {
		return Block{}, nil
	}
	b := Block{Height: SeparatorHeight()}
	for i, rec := range live {
		e, err := r.entry(rec, width)
		if err != nil {
			return Block{}, err
		}
		if i > 0 {
			b.Height += EntrySpacing
		}
		b.Height += e.Height
		b.Entries = append(b.Entries, e)
	}
	return b, nil
}

// RequiredHeight is the page budget the records demand at the given
// width.
func (r *Renderer) RequiredHeight(recs []annotation.Record, width float64) (float64, error) {
	b, err := r.Layout(recs, width)
	if err != nil {
		return 0, err
	}
	return b.Height, nil
}

// LayoutClipped lays out as much of the block as fits within maxHeight
// and marks the result truncated when anything was dropped. The returned
// height never exceeds maxHeight; when even the separator does not fit
// the block is empty and truncated.
func (r *Renderer) LayoutClipped(recs []annotation.Record, width, maxHeight float64) (Block, error) {
	full, err := r.Layout(recs, width)
	if err != nil || len(full.Entries) == 0 {
		return full, err
	}
	if full.Height <= maxHeight {
		return full, nil
	}
	b := Block{Truncated: true}
	if maxHeight < SeparatorHeight() {
		return b, nil
	}
	b.Height = SeparatorHeight()
	for i, e := range full.Entries {
		spacing := 0.0
		if i > 0 {
			spacing = EntrySpacing
		}
		if b.Height+spacing+e.Height > maxHeight {
			clipped, ok := clipEntry(e, maxHeight-b.Height-spacing)
			if ok {
				b.Height += spacing + clipped.Height
				b.Entries = append(b.Entries, clipped)
			}
			break
		}
		b.Height += spacing + e.Height
		b.Entries = append(b.Entries, e)
	}
	return b, nil
}

func (r *Renderer) entry(rec annotation.Record, width float64) (Entry, error) {
	st := r.NoteStyle()
	label := strconv.Itoa(rec.Number)
	indent := r.Fitter.StringWidth(label+labelGap, st)

	bodyW := width - indent
	if bodyW < width/2 {
		bodyW = width / 2
	}
	lines, h, err := r.Fitter.Measure(text.Plain(rec.Text, st), bodyW)
	if err != nil {
		return Entry{}, err
	}
	if h == 0 {
		// an empty note still occupies the label's line
		h = r.Fitter.StyleMetrics(st).LineHeight()
	}
	return Entry{
		ID:     rec.ID,
		Number: rec.Number,
		Label:  label,
		Text:   rec.Text,
		Style:  st,
		Indent: indent,
		Lines:  lines,
		Height: h,
	}, nil
}

// clipEntry keeps the leading lines that fit within budget. ok is false
// when not even the first line fits.
func clipEntry(e Entry, budget float64) (Entry, bool) {
	var h float64
	var kept []measure.Line
	for _, l := range e.Lines {
		if h+l.Height > budget {
			break
		}
		h += l.Height
		kept = append(kept, l)
	}
	if len(kept) == 0 {
		return Entry{}, false
	}
	e.Lines = kept
	e.Height = h
	return e, true
}
