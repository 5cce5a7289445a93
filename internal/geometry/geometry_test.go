/*
 * Copyright (c) 2026 by easiwriter.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package geometry

import (
	"errors"
	"math"
	"testing"
)

func rectEq(t *testing.T, got, want Rect) {
	t.Helper()
	const eps = 1e-6
	if math.Abs(got.X-want.X) > eps || math.Abs(got.Y-want.Y) > eps ||
		math.Abs(got.W-want.W) > eps || math.Abs(got.H-want.H) > eps {
		t.Fatalf("rect mismatch: got %+v want %+v", got, want)
	}
}

func TestFramesLetterOneInchMargins(t *testing.T) {
	g := Default()
	f, err := Frames(g)
	if err != nil {
		t.Fatalf("Frames: %v", err)
	}
	rectEq(t, f.Page, R(0, 0, 612, 792))
	rectEq(t, f.Content, R(72, 72, 612-144, 792-144))
	if !f.Header.Empty() || !f.Footer.Empty() {
		t.Fatalf("expected zero header/footer rects: %+v %+v", f.Header, f.Footer)
	}
}

func TestFramesZeroMarginsEqualsPaper(t *testing.T) {
	g := Geometry{Paper: A4, Orientation: Portrait}
	f, err := Frames(g)
	if err != nil {
		t.Fatalf("Frames: %v", err)
	}
	rectEq(t, f.Content, f.Page)
	rectEq(t, f.Page, R(0, 0, 595.28, 841.89))
}

func TestFramesHeaderFooterBands(t *testing.T) {
	g := Default()
	g.Header = true
	g.HeaderHeight = 24
	g.Footer = true
	g.FooterHeight = 36
	f, err := Frames(g)
	if err != nil {
		t.Fatalf("Frames: %v", err)
	}
	rectEq(t, f.Header, R(72, 72, 468, 24))
	rectEq(t, f.Footer, R(72, 792-72-36, 468, 36))
	rectEq(t, f.Content, R(72, 72+24, 468, 792-144-24-36))
	if f.Header.MaxY() > f.Content.Y {
		t.Fatalf("header overlaps content: %+v vs %+v", f.Header, f.Content)
	}
	if f.Content.MaxY() > f.Footer.Y {
		t.Fatalf("content overlaps footer: %+v vs %+v", f.Content, f.Footer)
	}
}

func TestPaperRectOrientationAndCustom(t *testing.T) {
	g := Geometry{Paper: Legal, Orientation: Landscape}
	rectEq(t, g.PaperRect(), R(0, 0, 1008, 612))

	g = Geometry{Paper: A5, Orientation: Portrait}
	rectEq(t, g.PaperRect(), R(0, 0, 419.53, 595.28))

	g = Geometry{Paper: Custom, CustomWidth: 300, CustomHeight: 500}
	rectEq(t, g.PaperRect(), R(0, 0, 300, 500))
}

func TestValidateRejectsDegenerateContent(t *testing.T) {
	g := Default()
	g.Margins = Margins{Top: 400, Bottom: 400, Left: 72, Right: 72}
	err := g.Validate()
	if !errors.Is(err, ErrInvalidGeometry) {
		t.Fatalf("expected ErrInvalidGeometry, got %v", err)
	}

	g = Default()
	g.Margins.Left = -1
	if !errors.Is(g.Validate(), ErrInvalidGeometry) {
		t.Fatalf("negative margin accepted")
	}

	g = Geometry{Paper: Custom, Orientation: Portrait}
	if !errors.Is(g.Validate(), ErrInvalidGeometry) {
		t.Fatalf("zero custom size accepted")
	}

	g = Default()
	g.Header = true
	g.HeaderHeight = 700
	if !errors.Is(g.Validate(), ErrInvalidGeometry) {
		t.Fatalf("header consuming whole page accepted")
	}

	if err := Default().Validate(); err != nil {
		t.Fatalf("default geometry invalid: %v", err)
	}
}

func TestParseHelpers(t *testing.T) {
	p, err := ParsePaperSize(" A4 ")
	if err != nil || p != A4 {
		t.Fatalf("ParsePaperSize: %v %v", p, err)
	}
	if _, err := ParsePaperSize("b5"); err == nil {
		t.Fatalf("expected error for unknown paper size")
	}
	o, err := ParseOrientation("Landscape")
	if err != nil || o != Landscape {
		t.Fatalf("ParseOrientation: %v %v", o, err)
	}
	if _, err := ParseOrientation("upside-down"); err == nil {
		t.Fatalf("expected error for unknown orientation")
	}
}

func TestParseLength(t *testing.T) {
	cases := []struct {
		in   string
		want float64
	}{
		{"1in", 72},
		{"0.5in", 36},
		{"36pt", 36},
		{"72", 72},
		{"25.4mm", 72},
		{"2.54cm", 72},
		{" 1.5 in ", 108},
	}
	for _, c := range cases {
		got, err := ParseLength(c.in)
		if err != nil {
			t.Fatalf("ParseLength(%q): %v", c.in, err)
		}
		if math.Abs(got-c.want) > 1e-6 {
			t.Fatalf("ParseLength(%q) = %v, want %v", c.in, got, c.want)
		}
	}
	for _, bad := range []string{"", "in", "one inch", "-1in", "12em"} {
		if _, err := ParseLength(bad); err == nil {
			t.Fatalf("ParseLength(%q): expected error", bad)
		}
	}
}

func TestRectHelpers(t *testing.T) {
	r := R(10, 20, 100, 50)
	rectEq(t, r.Inset(5), R(15, 25, 90, 40))
	rectEq(t, r.CutTop(10), R(10, 30, 100, 40))
	rectEq(t, r.CutBottom(10), R(10, 20, 100, 40))
	if r.Empty() {
		t.Fatalf("non-empty rect reported empty")
	}
	if !R(0, 0, 0, 10).Empty() {
		t.Fatalf("zero-width rect not empty")
	}
	if !r.Contains(10, 20) || r.Contains(110, 20) {
		t.Fatalf("Contains boundary behavior wrong")
	}
	if r.MaxX() != 110 || r.MaxY() != 70 {
		t.Fatalf("MaxX/MaxY wrong: %v %v", r.MaxX(), r.MaxY())
	}
}
