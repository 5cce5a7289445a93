/*
 * Copyright (c) 2026 by easiwriter.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

// Package text holds the flowing document content as a sequence of styled
// runs. Offsets everywhere in the module are rune offsets into the
// document's linear character sequence; byte offsets would split UTF-8
// sequences and are never used at this boundary.
package text

import "strings"

// Style carries the run attributes that matter for measurement. Rendering
// attributes beyond these (color, underline) are a drawing concern and do
// not belong here.
type Style struct {
	Font   string  // family name; empty selects the default body face
	Size   float64 // point size; 0 selects the default body size
	Bold   bool
	Italic bool
}

// Run is a maximal stretch of identically styled text.
type Run struct {
	Text  string
	Style Style
}

// runeLen returns the rune count of the run.
func (r Run) runeLen() int { return len([]rune(r.Text)) }

// Change is a single edit: delete Del runes at Pos, then insert Ins at Pos.
// Inserted text inherits the style in effect at Pos.
type Change struct {
	Pos int
	Del int
	Ins string
}

// Delta returns the length delta the change causes when applied as given.
func (c Change) Delta() int { return len([]rune(c.Ins)) - c.Del }

// Buffer is the document content. The zero value is an empty document.
// Buffer is not safe for concurrent mutation; the session serializes edits
// against layout reads.
type Buffer struct {
	runs   []Run
	length int
}

// NewBuffer builds a document from styled runs. Empty runs are dropped and
// adjacent runs with equal styles are merged.
func NewBuffer(runs ...Run) *Buffer {
	b := &Buffer{}
	b.runs = normalize(runs)
	b.length = totalLen(b.runs)
	return b
}

// Plain builds a single-run document.
func Plain(s string, style Style) *Buffer {
	return NewBuffer(Run{Text: s, Style: style})
}

// Len returns the document length in runes.
func (b *Buffer) Len() int { return b.length }

// Runs returns the document's runs. The slice is shared; callers must not
// mutate it.
func (b *Buffer) Runs() []Run { return b.runs }

// Clone returns a snapshot of the document. Apply rebuilds the run slice
// instead of editing it, so the snapshot stays stable while the original
// keeps changing.
func (b *Buffer) Clone() *Buffer {
	return &Buffer{runs: b.runs, length: b.length}
}

// String returns the document's plain text.
func (b *Buffer) String() string {
	var sb strings.Builder
	for _, r := range b.runs {
		sb.WriteString(r.Text)
	}
	return sb.String()
}

// Slice returns the runs covering [start, end), clipped to the range.
// Out-of-bounds offsets are clamped.
func (b *Buffer) Slice(start, end int) []Run {
	start = clamp(start, 0, b.length)
	end = clamp(end, start, b.length)
	if start == end {
		return nil
	}
	var out []Run
	pos := 0
	for _, run := range b.runs {
		n := run.runeLen()
		runStart, runEnd := pos, pos+n
		pos = runEnd
		if runEnd <= start {
			continue
		}
		if runStart >= end {
			break
		}
		lo := max(start, runStart) - runStart
		hi := min(end, runEnd) - runStart
		rs := []rune(run.Text)
		out = append(out, Run{Text: string(rs[lo:hi]), Style: run.Style})
	}
	return out
}

// StyleAt returns the style in effect at pos: the style of the run
// containing pos, or of the preceding run when pos sits on a boundary or
// at the end of the document.
func (b *Buffer) StyleAt(pos int) Style {
	pos = clamp(pos, 0, b.length)
	cur := 0
	for _, run := range b.runs {
		n := run.runeLen()
		if pos < cur+n {
			return run.Style
		}
		cur += n
	}
	if len(b.runs) > 0 {
		return b.runs[len(b.runs)-1].Style
	}
	return Style{}
}

// Apply performs the change and returns the resulting length delta.
// Positions are clamped to the document, so a Change assembled against a
// stale length cannot corrupt the buffer.
func (b *Buffer) Apply(c Change) int {
	pos := clamp(c.Pos, 0, b.length)
	del := clamp(c.Del, 0, b.length-pos)

	style := b.StyleAt(pos)

	var out []Run
	out = append(out, b.Slice(0, pos)...)
	if c.Ins != "" {
		out = append(out, Run{Text: c.Ins, Style: style})
	}
	out = append(out, b.Slice(pos+del, b.length)...)

	b.runs = normalize(out)
	b.length = totalLen(b.runs)
	return len([]rune(c.Ins)) - del
}

func normalize(runs []Run) []Run {
	var out []Run
	for _, r := range runs {
		if r.Text == "" {
			continue
		}
		if n := len(out); n > 0 && out[n-1].Style == r.Style {
			out[n-1].Text += r.Text
			continue
		}
		out = append(out, r)
	}
	return out
}

func totalLen(runs []Run) int {
	n := 0
	for _, r := range runs {
		n += r.runeLen()
	}
	return n
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
