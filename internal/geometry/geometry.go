/*
 * Copyright (c) 2026 by easiwriter.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

// Package geometry describes the physical layout of a page: paper size,
// orientation, margins and header/footer reservations, plus the derived
// rectangles every layout pass works from. All values are in points.
package geometry

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// ErrInvalidGeometry marks a page configuration whose derived content
// rectangle has no usable area. Callers reject such configurations at
// apply time and keep the previous valid one.
var ErrInvalidGeometry = errors.New("invalid page geometry")

// PaperSize names a standard paper format.
type PaperSize string

const (
	Letter PaperSize = "letter"
	Legal  PaperSize = "legal"
	A4     PaperSize = "a4"
	A5     PaperSize = "a5"
	Custom PaperSize = "custom"
)

// paperDims holds portrait dimensions in points for the named sizes.
var paperDims = map[PaperSize][2]float64{
	Letter: {612, 792},
	Legal:  {612, 1008},
	A4:     {595.28, 841.89},
	A5:     {419.53, 595.28},
}

// ParsePaperSize converts a user-supplied name to a PaperSize.
func ParsePaperSize(s string) (PaperSize, error) {
	p := PaperSize(strings.ToLower(strings.TrimSpace(s)))
	switch p {
	case Letter, Legal, A4, A5, Custom:
		return p, nil
	}
	return "", fmt.Errorf("unknown paper size %q", s)
}

// Orientation is the page rotation.
type Orientation string

const (
	Portrait  Orientation = "portrait"
	Landscape Orientation = "landscape"
)

// ParseOrientation converts a user-supplied name to an Orientation.
func ParseOrientation(s string) (Orientation, error) {
	o := Orientation(strings.ToLower(strings.TrimSpace(s)))
	switch o {
	case Portrait, Landscape:
		return o, nil
	}
	return "", fmt.Errorf("unknown orientation %q", s)
}

// ParseLength converts a user-supplied length such as "1in", "12.7mm",
// "2.54cm" or "36pt" to points. A bare number is taken as points. Negative
// lengths are rejected here rather than at geometry validation so the
// offending input can be named.
func ParseLength(s string) (float64, error) {
	t := strings.ToLower(strings.TrimSpace(s))
	unit := 1.0
	switch {
	case strings.HasSuffix(t, "in"):
		unit, t = Inch, strings.TrimSuffix(t, "in")
	case strings.HasSuffix(t, "cm"):
		unit, t = Inch/2.54, strings.TrimSuffix(t, "cm")
	case strings.HasSuffix(t, "mm"):
		unit, t = Inch/25.4, strings.TrimSuffix(t, "mm")
	case strings.HasSuffix(t, "pt"):
		t = strings.TrimSuffix(t, "pt")
	}
	v, err := strconv.ParseFloat(strings.TrimSpace(t), 64)
	if err != nil {
		return 0, fmt.Errorf("bad length %q", s)
	}
	if v < 0 {
		return 0, fmt.Errorf("negative length %q", s)
	}
	return v * unit, nil
}

// Margins are the page margins in points. All values are non-negative.
type Margins struct {
	Top    float64 `json:"top" yaml:"top"`
	Bottom float64 `json:"bottom" yaml:"bottom"`
	Left   float64 `json:"left" yaml:"left"`
	Right  float64 `json:"right" yaml:"right"`
}

// Geometry is the page configuration for a document. It is user-editable,
// effectively global per document, and read by the calculator on every
// layout pass. All fields are scalar so values compare with ==.
type Geometry struct {
	Paper        PaperSize   `json:"paper" yaml:"paper"`
	Orientation  Orientation `json:"orientation" yaml:"orientation"`
	CustomWidth  float64     `json:"customWidth,omitempty" yaml:"customWidth,omitempty"`
	CustomHeight float64     `json:"customHeight,omitempty" yaml:"customHeight,omitempty"`
	Margins      Margins     `json:"margins" yaml:"margins"`
	Header       bool        `json:"header" yaml:"header"`
	Footer       bool        `json:"footer" yaml:"footer"`
	HeaderHeight float64     `json:"headerHeight,omitempty" yaml:"headerHeight,omitempty"`
	FooterHeight float64     `json:"footerHeight,omitempty" yaml:"footerHeight,omitempty"`
}

// Default returns the geometry new documents start with: Letter portrait
// with one-inch margins and no header or footer.
func Default() Geometry {
	return Geometry{
		Paper:       Letter,
		Orientation: Portrait,
		Margins:     Margins{Top: Inch, Bottom: Inch, Left: Inch, Right: Inch},
	}
}

// PaperRect returns the page rectangle (0, 0, width, height). Named sizes
// are swapped for landscape; custom dimensions are taken as given.
func (g Geometry) PaperRect() Rect {
	if g.Paper == Custom {
		return R(0, 0, g.CustomWidth, g.CustomHeight)
	}
	d, ok := paperDims[g.Paper]
	if !ok {
		d = paperDims[Letter]
	}
	w, h := d[0], d[1]
	if g.Orientation == Landscape {
		w, h = h, w
	}
	return R(0, 0, w, h)
}

// Validate checks the configuration. It wraps ErrInvalidGeometry with the
// specific violation so settings surfaces can explain the rejection.
func (g Geometry) Validate() error {
	if g.Paper == Custom && (g.CustomWidth <= 0 || g.CustomHeight <= 0) {
		return fmt.Errorf("%w: custom size %.2fx%.2f", ErrInvalidGeometry, g.CustomWidth, g.CustomHeight)
	}
	m := g.Margins
	if m.Top < 0 || m.Bottom < 0 || m.Left < 0 || m.Right < 0 {
		return fmt.Errorf("%w: negative margin", ErrInvalidGeometry)
	}
	if g.HeaderHeight < 0 || g.FooterHeight < 0 {
		return fmt.Errorf("%w: negative header/footer height", ErrInvalidGeometry)
	}
	if _, err := Frames(g); err != nil {
		return err
	}
	return nil
}
