/*
 * Copyright (c) 2026 by easiwriter.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package measure

import (
	"testing"

	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"

	"github.com/easiwriter/WritingShedPro-sub015/internal/geometry"
	"github.com/easiwriter/WritingShedPro-sub015/internal/text"
)

// Face7x13 gives every rune a 7px advance and 13px line height, so all
// expectations below are exact.

func fitAll(t *testing.T, s string, w, h float64) (int, []Line) {
	t.Helper()
	f := NewFitter(BasicProvider{})
	end, lines, err := f.Fit(text.Plain(s, text.Style{}), 0, geometry.R(0, 0, w, h))
	if err != nil {
		t.Fatalf("Fit: %v", err)
	}
	return end, lines
}

func checkTiling(t *testing.T, lines []Line, start, end int) {
	t.Helper()
	pos := start
	for i, l := range lines {
		if l.Start != pos {
			t.Fatalf("line %d starts at %d, want %d", i, l.Start, pos)
		}
		if l.End < l.Start {
			t.Fatalf("line %d has End < Start: %+v", i, l)
		}
		pos = l.End
	}
	if pos != end {
		t.Fatalf("lines end at %d, want %d", pos, end)
	}
}

func TestFitSingleLine(t *testing.T) {
	end, lines := fitAll(t, "hello world", 100, 13)
	if end != 11 {
		t.Fatalf("end = %d, want 11", end)
	}
	if len(lines) != 1 {
		t.Fatalf("lines = %d, want 1", len(lines))
	}
	if lines[0].Width != 77 {
		t.Fatalf("width = %v, want 77", lines[0].Width)
	}
	if lines[0].Height != 13 {
		t.Fatalf("height = %v, want 13", lines[0].Height)
	}
	checkTiling(t, lines, 0, end)
}

func TestFitWordWrap(t *testing.T) {
	// 10 rune columns: "hello " stays, "world" wraps
	end, lines := fitAll(t, "hello world", 70, 26)
	if end != 11 {
		t.Fatalf("end = %d, want 11", end)
	}
	if len(lines) != 2 {
		t.Fatalf("lines = %d, want 2: %+v", len(lines), lines)
	}
	if lines[0].End != 6 || lines[1].Start != 6 {
		t.Fatalf("wrap point wrong: %+v", lines)
	}
	checkTiling(t, lines, 0, end)
}

func TestFitHardBreakAndBlankLine(t *testing.T) {
	end, lines := fitAll(t, "ab\n\ncd", 700, 100)
	if end != 6 {
		t.Fatalf("end = %d, want 6", end)
	}
	if len(lines) != 3 {
		t.Fatalf("lines = %d, want 3: %+v", len(lines), lines)
	}
	if lines[1].Start != 3 || lines[1].End != 4 || lines[1].Width != 0 {
		t.Fatalf("blank line wrong: %+v", lines[1])
	}
	if lines[1].Height != 13 {
		t.Fatalf("blank line must keep line height: %+v", lines[1])
	}
	checkTiling(t, lines, 0, end)
}

func TestFitOverlongWordBreaksMidWord(t *testing.T) {
	end, lines := fitAll(t, "abcdefghij", 35, 100)
	if end != 10 {
		t.Fatalf("end = %d, want 10", end)
	}
	if len(lines) != 2 {
		t.Fatalf("lines = %d, want 2: %+v", len(lines), lines)
	}
	if lines[0].End != 5 {
		t.Fatalf("chunk boundary = %d, want 5", lines[0].End)
	}
	checkTiling(t, lines, 0, end)
}

func TestFitHeightLimit(t *testing.T) {
	end, lines := fitAll(t, "hello world", 70, 13)
	if len(lines) != 1 {
		t.Fatalf("lines = %d, want 1", len(lines))
	}
	if end != 6 {
		t.Fatalf("end = %d, want 6 (second line spills)", end)
	}

	// nothing fits at all
	end, lines = fitAll(t, "hello", 70, 5)
	if end != 0 || len(lines) != 0 {
		t.Fatalf("expected no fit, got end=%d lines=%+v", end, lines)
	}
}

func TestFitEmptyAndOutOfRange(t *testing.T) {
	f := NewFitter(BasicProvider{})
	buf := text.Plain("", text.Style{})
	end, lines, err := f.Fit(buf, 0, geometry.R(0, 0, 100, 100))
	if err != nil || end != 0 || lines != nil {
		t.Fatalf("empty fit: end=%d lines=%v err=%v", end, lines, err)
	}
	buf = text.Plain("abc", text.Style{})
	end, lines, err = f.Fit(buf, 3, geometry.R(0, 0, 100, 100))
	if err != nil || end != 3 || lines != nil {
		t.Fatalf("fit at EOF: end=%d lines=%v err=%v", end, lines, err)
	}
	if end, _, _ := f.Fit(buf, -2, geometry.R(0, 0, 100, 100)); end != 3 {
		t.Fatalf("negative start not clamped: end=%d", end)
	}
}

func TestFitRuneOffsets(t *testing.T) {
	end, lines := fitAll(t, "héllo wörld", 70, 26)
	if end != 11 {
		t.Fatalf("end = %d, want 11 (rune offsets)", end)
	}
	checkTiling(t, lines, 0, end)
}

// sizedProvider scales metrics with the requested size so mixed-style line
// stacking is observable; advances stay at the fixed 7px.
type sizedProvider struct{}

func (sizedProvider) Resolve(spec FontSpec) (font.Face, Metrics) {
	return basicfont.Face7x13, Metrics{Ascent: spec.Size * 0.8, Descent: spec.Size * 0.2}
}

func TestFitMixedStyleLineHeight(t *testing.T) {
	f := NewFitter(sizedProvider{})
	buf := text.NewBuffer(
		text.Run{Text: "small ", Style: text.Style{Size: 10}},
		text.Run{Text: "BIG", Style: text.Style{Size: 20}},
	)
	end, lines, err := f.Fit(buf, 0, geometry.R(0, 0, 700, 100))
	if err != nil || end != buf.Len() {
		t.Fatalf("fit: end=%d err=%v", end, err)
	}
	if len(lines) != 1 {
		t.Fatalf("lines = %d, want 1", len(lines))
	}
	if lines[0].Height != 20 {
		t.Fatalf("line height = %v, want 20 (tallest style)", lines[0].Height)
	}
}

func TestMeasureTotals(t *testing.T) {
	f := NewFitter(BasicProvider{})
	lines, h, err := f.Measure(text.Plain("one two three four", text.Style{}), 70)
	if err != nil {
		t.Fatalf("Measure: %v", err)
	}
	if want := float64(len(lines)) * 13; h != want {
		t.Fatalf("height = %v, want %v", h, want)
	}
	if h != LinesHeight(lines) {
		t.Fatalf("LinesHeight disagrees with Measure")
	}
}
