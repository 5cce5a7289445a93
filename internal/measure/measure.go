/*
 * Copyright (c) 2026 by easiwriter.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

// Package measure isolates all text measurement and line breaking behind
// deterministic interfaces. The pagination engine never touches font data
// directly; it asks a Fitter how much text fits in a rectangle and works
// with the returned line ranges.
package measure

import (
	"sync"

	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/font/gofont/gobold"
	"golang.org/x/image/font/gofont/gobolditalic"
	"golang.org/x/image/font/gofont/goitalic"
	"golang.org/x/image/font/gofont/goregular"
	"golang.org/x/image/font/opentype"

	"github.com/easiwriter/WritingShedPro-sub015/internal/text"
)

// DefaultSize is the body point size used when a style leaves Size at 0.
const DefaultSize = 12.0

// FontSpec describes a requested font.
type FontSpec struct {
	Family string // logical family name
	Size   float64
	Bold   bool
	Italic bool
}

// SpecFor maps a run style to a font request, applying defaults.
func SpecFor(s text.Style) FontSpec {
	spec := FontSpec{Family: s.Font, Size: s.Size, Bold: s.Bold, Italic: s.Italic}
	if spec.Size <= 0 {
		spec.Size = DefaultSize
	}
	return spec
}

// Metrics provides vertical font metrics in points for a resolved face.
type Metrics struct {
	Ascent, Descent, LineGap float64
}

// LineHeight is the advance from one baseline to the next.
func (m Metrics) LineHeight() float64 { return m.Ascent + m.Descent + m.LineGap }

// Provider maps FontSpec to a concrete font.Face.
type Provider interface {
	Resolve(FontSpec) (font.Face, Metrics)
}

// BasicProvider uses x/image/basicfont Face7x13: every glyph advances 7px
// and lines are 13px. Deterministic, which makes it the measurement
// backend for tests and for headless CLI runs.
type BasicProvider struct{}

func (BasicProvider) Resolve(FontSpec) (font.Face, Metrics) {
	f := basicfont.Face7x13
	m := f.Metrics()
	return f, Metrics{
		Ascent:  float64(m.Ascent.Round()),
		Descent: float64(m.Descent.Round()),
		LineGap: float64(m.Height.Round() - m.Ascent.Round() - m.Descent.Round()),
	}
}

// GoFontProvider resolves faces from the four embedded Go fonts via
// x/image/font/opentype, so real proportional metrics are available
// without any platform font machinery. Family is advisory: every family
// maps onto the Go faces, selected by the bold/italic flags.
type GoFontProvider struct {
	mu    sync.Mutex
	fonts [4]*opentype.Font
	faces map[faceKey]faceEntry
}

type faceKey struct {
	size    float64
	variant int
}

type faceEntry struct {
	face font.Face
	met  Metrics
}

const (
	vRegular = iota
	vBold
	vItalic
	vBoldItalic
)

// NewGoFontProvider parses the embedded fonts once; faces are derived per
// requested size on demand and cached.
func NewGoFontProvider() (*GoFontProvider, error) {
	var p GoFontProvider
	p.faces = make(map[faceKey]faceEntry)
	for i, ttf := range [][]byte{goregular.TTF, gobold.TTF, goitalic.TTF, gobolditalic.TTF} {
		f, err := opentype.Parse(ttf)
		if err != nil {
			return nil, err
		}
		p.fonts[i] = f
	}
	return &p, nil
}

func variantFor(spec FontSpec) int {
	switch {
	case spec.Bold && spec.Italic:
		return vBoldItalic
	case spec.Bold:
		return vBold
	case spec.Italic:
		return vItalic
	default:
		return vRegular
	}
}

func (p *GoFontProvider) Resolve(spec FontSpec) (font.Face, Metrics) {
	size := spec.Size
	if size <= 0 {
		size = DefaultSize
	}
	key := faceKey{size: size, variant: variantFor(spec)}

	p.mu.Lock()
	defer p.mu.Unlock()
	if e, ok := p.faces[key]; ok {
		return e.face, e.met
	}
	face, err := opentype.NewFace(p.fonts[key.variant], &opentype.FaceOptions{
		Size:    size,
		DPI:     72,
		Hinting: font.HintingFull,
	})
	if err != nil {
		// Face derivation failing for a parsed font is effectively
		// unreachable; serve the deterministic fallback rather than
		// propagate a nil face into measurement.
		return BasicProvider{}.Resolve(spec)
	}
	m := face.Metrics()
	met := Metrics{
		Ascent:  fixedPt(m.Ascent),
		Descent: fixedPt(m.Descent),
		LineGap: fixedPt(m.Height - m.Ascent - m.Descent),
	}
	p.faces[key] = faceEntry{face: face, met: met}
	return face, met
}
