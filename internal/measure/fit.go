/*
 * Copyright (c) 2026 by easiwriter.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package measure

import (
	"math"
	"unicode/utf8"

	"golang.org/x/image/math/fixed"

	"github.com/easiwriter/WritingShedPro-sub015/internal/geometry"
	"github.com/easiwriter/WritingShedPro-sub015/internal/text"
)

func fixedPt(v fixed.Int26_6) float64 { return float64(v) / 64 }

// Line is one measured display line mapped back to document offsets.
// [Start, End) covers every rune the line consumed, including trailing
// spaces and the newline that closed it, so consecutive lines tile their
// fitted range exactly.
type Line struct {
	Start, End int
	Width      float64
	Height     float64
}

// LinesHeight sums the height of the given lines.
func LinesHeight(lines []Line) float64 {
	var h float64
	for _, l := range lines {
		h += l.Height
	}
	return h
}

// Fitter measures how much of a document fits in a rectangle, performing
// line wrapping. Implementations must be deterministic, must never return
// end < start, and must consume nothing when the rect has no usable area.
type Fitter interface {
	Fit(buf *text.Buffer, start int, rect geometry.Rect) (end int, lines []Line, err error)
}

// TextFitter is the standard Fitter: greedy word wrap with hard breaks on
// newlines and a rune-level fallback for words wider than the rect. Line
// height is the tallest style on the line, so mixed sizes stack correctly.
type TextFitter struct {
	Provider Provider

	cache map[FontSpec]faceEntry
}

// NewFitter builds a TextFitter over the given provider. A nil provider
// falls back to BasicProvider.
func NewFitter(p Provider) *TextFitter {
	return &TextFitter{Provider: p, cache: make(map[FontSpec]faceEntry)}
}

func (f *TextFitter) styleFace(st text.Style) faceEntry {
	spec := SpecFor(st)
	if f.cache == nil {
		f.cache = make(map[FontSpec]faceEntry)
	}
	if e, ok := f.cache[spec]; ok {
		return e
	}
	p := f.Provider
	if p == nil {
		p = BasicProvider{}
	}
	face, met := p.Resolve(spec)
	e := faceEntry{face: face, met: met}
	f.cache[spec] = e
	return e
}

func (f *TextFitter) advance(st text.Style, r rune) float64 {
	if r == '\t' {
		r = ' '
	}
	e := f.styleFace(st)
	if adv, ok := e.face.GlyphAdvance(r); ok {
		return fixedPt(adv)
	}
	if adv, ok := e.face.GlyphAdvance('?'); ok {
		return fixedPt(adv)
	}
	return e.met.LineHeight() / 2
}

func (f *TextFitter) lineHeight(st text.Style) float64 {
	return f.styleFace(st).met.LineHeight()
}

// Fit lays lines greedily from start until the next line would exceed
// rect.H, and returns the first offset that did not fit. end == start
// means nothing fit (or start is already at the end of the document).
func (f *TextFitter) Fit(buf *text.Buffer, start int, rect geometry.Rect) (int, []Line, error) {
	if start < 0 {
		start = 0
	}
	if start >= buf.Len() || rect.W <= 0 || rect.H <= 0 {
		return start, nil, nil
	}

	cur := newCursor(buf.Runs(), start)
	var (
		lines []Line
		used  float64
		end   = start
	)
	for {
		line, ok := f.nextLine(&cur, rect.W)
		if !ok {
			break
		}
		if used+line.Height > rect.H {
			return line.Start, lines, nil
		}
		lines = append(lines, line)
		used += line.Height
		end = line.End
	}
	return end, lines, nil
}

// Measure lays out buf in full at the given width and returns the lines
// and their total height. Used by the annotation block renderer, where
// required height rather than page fit is the question.
func (f *TextFitter) Measure(buf *text.Buffer, width float64) ([]Line, float64, error) {
	_, lines, err := f.Fit(buf, 0, geometry.R(0, 0, width, math.Inf(1)))
	if err != nil {
		return nil, 0, err
	}
	return lines, LinesHeight(lines), nil
}

// StringWidth sums the advances of s in the given style, with no
// wrapping.
func (f *TextFitter) StringWidth(s string, st text.Style) float64 {
	var w float64
	for _, r := range s {
		w += f.advance(st, r)
	}
	return w
}

// StyleMetrics exposes the vertical metrics the fitter uses for a style.
func (f *TextFitter) StyleMetrics(st text.Style) Metrics {
	return f.styleFace(st).met
}

// nextLine composes one display line. ok is false once the cursor is at
// the end of the document.
func (f *TextFitter) nextLine(cur *cursor, maxW float64) (Line, bool) {
	if cur.atEOF() {
		return Line{}, false
	}
	line := Line{Start: cur.pos}
	var width, height float64
	bump := func(st text.Style) {
		if lh := f.lineHeight(st); lh > height {
			height = lh
		}
	}

	for !cur.atEOF() {
		peek := *cur
		r, st := peek.next()
		switch r {
		case '\n':
			*cur = peek
			bump(st)
			line.End, line.Width, line.Height = cur.pos, width, height
			return line, true
		case ' ', '\t':
			// trailing spaces stay on the current line even when they
			// overhang the right edge
			*cur = peek
			width += f.advance(st, r)
			bump(st)
			continue
		}

		wordW, wordH := f.scanWord(&peek)
		if width > 0 && width+wordW > maxW {
			line.End, line.Width, line.Height = cur.pos, width, height
			return line, true
		}
		if width == 0 && wordW > maxW {
			// word alone exceeds the rect: consume rune by rune, at
			// least one, and break mid-word
			for !cur.atEOF() {
				p2 := *cur
				r2, st2 := p2.next()
				if r2 == ' ' || r2 == '\n' || r2 == '\t' {
					break
				}
				adv := f.advance(st2, r2)
				if width > 0 && width+adv > maxW {
					break
				}
				*cur = p2
				width += adv
				bump(st2)
			}
			line.End, line.Width, line.Height = cur.pos, width, height
			return line, true
		}
		*cur = peek
		width += wordW
		if wordH > height {
			height = wordH
		}
	}
	line.End, line.Width, line.Height = cur.pos, width, height
	return line, true
}

// scanWord consumes the word starting at c and reports its width and the
// tallest line height among its runes.
func (f *TextFitter) scanWord(c *cursor) (w, h float64) {
	for !c.atEOF() {
		save := *c
		r, st := c.next()
		if r == ' ' || r == '\n' || r == '\t' {
			*c = save
			return
		}
		w += f.advance(st, r)
		if lh := f.lineHeight(st); lh > h {
			h = lh
		}
	}
	return
}

// cursor walks (rune, style) pairs over a run slice. Copies are cheap so
// callers can peek by copying and commit by assigning back. Decoded runs
// are shared between copies.
type cursor struct {
	runs    []text.Run
	decoded [][]rune
	run     int
	idx     int
	pos     int
}

func newCursor(runs []text.Run, start int) cursor {
	c := cursor{runs: runs, decoded: make([][]rune, len(runs)), pos: start}
	remaining := start
	for c.run < len(runs) {
		n := utf8.RuneCountInString(runs[c.run].Text)
		if remaining < n {
			c.idx = remaining
			return c
		}
		remaining -= n
		c.run++
	}
	c.idx = 0
	return c
}

func (c *cursor) atEOF() bool {
	for c.run < len(c.runs) {
		if c.idx < utf8.RuneCountInString(c.runs[c.run].Text) {
			return false
		}
		c.run++
		c.idx = 0
	}
	return true
}

func (c *cursor) next() (rune, text.Style) {
	for c.run < len(c.runs) {
		if c.decoded[c.run] == nil {
			c.decoded[c.run] = []rune(c.runs[c.run].Text)
		}
		rs := c.decoded[c.run]
		if c.idx < len(rs) {
			r := rs[c.idx]
			st := c.runs[c.run].Style
			c.idx++
			c.pos++
			return r, st
		}
		c.run++
		c.idx = 0
	}
	return 0, text.Style{}
}
