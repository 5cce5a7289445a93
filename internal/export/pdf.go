/*
 * Copyright (c) 2026 by easiwriter.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

// Package export writes a paginated document to a PDF proof: one PDF page
// per computed page, body lines placed by the same measurements the
// pagination ran with, and annotation blocks drawn inside their reserved
// zones. Proofs use the PDF core fonts, so no font embedding is needed.
package export

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/jung-kurt/gofpdf"

	"github.com/easiwriter/WritingShedPro-sub015/internal/annotation"
	"github.com/easiwriter/WritingShedPro-sub015/internal/geometry"
	"github.com/easiwriter/WritingShedPro-sub015/internal/measure"
	"github.com/easiwriter/WritingShedPro-sub015/internal/notes"
	"github.com/easiwriter/WritingShedPro-sub015/internal/paginate"
	"github.com/easiwriter/WritingShedPro-sub015/internal/text"
)

// Options controls proof output.
type Options struct {
	// Title goes into the PDF metadata and the header band when the
	// geometry has one.
	Title string
	// IncludeGuides draws hairline frames around the body area and the
	// header and footer bands.
	IncludeGuides bool
}

// Exporter writes pagination results to PDF. The fitter and notes renderer
// must be the ones the pagination ran with, so re-measured lines land
// exactly where the page table placed them.
type Exporter struct {
	Fitter *measure.TextFitter
	Notes  *notes.Renderer
}

// NewExporter builds an Exporter over the given fitter and notes renderer.
func NewExporter(f *measure.TextFitter, n *notes.Renderer) *Exporter {
	return &Exporter{Fitter: f, Notes: n}
}

// WriteProof writes the paginated document to a single PDF at path. recs
// are the document's annotation records; footnote pages pull their
// entries from them by ID, and endnote mode renders them as one block on
// fresh pages after the body.
func (e *Exporter) WriteProof(path string, buf *text.Buffer, res paginate.Result, recs []annotation.Record, opts Options) error {
	if len(res.Pages) == 0 {
		return fmt.Errorf("empty pagination result")
	}
	frames, err := geometry.Frames(res.Geom)
	if err != nil {
		return err
	}
	page := frames.Page

	pdf := gofpdf.NewCustom(&gofpdf.InitType{
		UnitStr: "pt",
		Size:    gofpdf.SizeType{Wd: page.W, Ht: page.H},
	})
	title := opts.Title
	if title == "" {
		title = "Untitled"
	}
	pdf.SetTitle(title, true)
	pdf.SetAuthor("Writing Shed Pro", false)
	// The page table controls breaks, not gofpdf.
	pdf.SetAutoPageBreak(false, 0)
	tr := pdf.UnicodeTranslatorFromDescriptor("")

	byID := recordIndex(recs)

	for _, pg := range res.Pages {
		pdf.AddPageFormat("", gofpdf.SizeType{Wd: page.W, Ht: page.H})
		if opts.IncludeGuides {
			drawGuides(pdf, frames, pg)
		}
		drawBands(pdf, tr, frames, title, pg.Index+1, len(res.Pages))
		if err := e.drawBody(pdf, tr, buf, pg); err != nil {
			return err
		}
		if res.Mode == paginate.Footnotes && pg.NoteHeight > 0 {
			if err := e.drawNoteBlock(pdf, tr, pg, byID); err != nil {
				return err
			}
		}
	}
	if res.Mode == paginate.Endnotes {
		if err := e.drawEndnotes(pdf, tr, page, frames.Content, recs); err != nil {
			return err
		}
	}

	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("ensure out dir: %w", err)
		}
	}
	if err := pdf.OutputFileAndClose(path); err != nil {
		return fmt.Errorf("write pdf: %w", err)
	}
	return nil
}

// drawBody re-fits the page's rune range with the pagination's fitter and
// draws the resulting lines into the body area.
func (e *Exporter) drawBody(pdf *gofpdf.Fpdf, tr func(string) string, buf *text.Buffer, pg paginate.PageDescriptor) error {
	if pg.Start >= pg.End {
		return nil
	}
	_, lines, err := e.Fitter.Fit(buf, pg.Start, pg.Content)
	if err != nil {
		return err
	}
	pdf.SetTextColor(0, 0, 0)
	y := pg.Content.Y
	for _, ln := range lines {
		if ln.Start >= pg.End {
			break
		}
		e.drawLine(pdf, tr, buf, ln, pg.Content.X, y)
		y += ln.Height
	}
	return nil
}

// drawLine draws one measured line, switching fonts at run boundaries.
// The baseline comes from the tallest ascent on the line, so mixed sizes
// share it.
func (e *Exporter) drawLine(pdf *gofpdf.Fpdf, tr func(string) string, buf *text.Buffer, ln measure.Line, x, top float64) {
	runs := buf.Slice(ln.Start, ln.End)
	var ascent float64
	for _, run := range runs {
		if m := e.Fitter.StyleMetrics(run.Style); m.Ascent > ascent {
			ascent = m.Ascent
		}
	}
	base := top + ascent
	for _, run := range runs {
		s := strings.TrimRight(run.Text, "\n")
		if s == "" {
			continue
		}
		setStyleFont(pdf, run.Style)
		pdf.Text(x, base, tr(s))
		x += e.Fitter.StringWidth(s, run.Style)
	}
}

// drawNoteBlock draws the separator rule and the page's numbered entries
// inside the reserved zone below the body area. Truncated blocks get a
// continuation marker at the zone's bottom edge.
func (e *Exporter) drawNoteBlock(pdf *gofpdf.Fpdf, tr func(string) string, pg paginate.PageDescriptor, byID map[annotation.ID]annotation.Record) error {
	recs := make([]annotation.Record, 0, len(pg.Annotations))
	for _, id := range pg.Annotations {
		if rec, ok := byID[id]; ok {
			recs = append(recs, rec)
		}
	}
	block, err := e.Notes.LayoutClipped(recs, pg.Content.W, pg.NoteHeight)
	if err != nil {
		return err
	}
	if len(block.Entries) == 0 && !block.Truncated {
		return nil
	}
	x := pg.Content.X
	y := pg.Content.MaxY()

	y += notes.SeparatorPad
	pdf.SetDrawColor(0, 0, 0)
	pdf.SetLineWidth(notes.RuleThickness)
	pdf.Line(x, y, x+notes.SeparatorLength, y)
	y += notes.RuleThickness + notes.SeparatorPad

	for i, en := range block.Entries {
		if i > 0 {
			y += notes.EntrySpacing
		}
		e.drawEntry(pdf, tr, en, x, y)
		y += en.Height
	}

	if block.Truncated || pg.Overflow {
		marker := "(notes continue)"
		pdf.SetFont("Helvetica", "I", 8)
		pdf.SetTextColor(120, 120, 120)
		w := pdf.GetStringWidth(marker)
		pdf.Text(pg.Content.MaxX()-w, pg.Content.MaxY()+pg.NoteHeight-2, marker)
		pdf.SetTextColor(0, 0, 0)
	}
	return nil
}

// drawEndnotes renders the whole document's notes as one block on fresh
// pages after the body, flowing entry by entry.
func (e *Exporter) drawEndnotes(pdf *gofpdf.Fpdf, tr func(string) string, page, content geometry.Rect, recs []annotation.Record) error {
	block, err := e.Notes.Layout(recs, content.W)
	if err != nil {
		return err
	}
	if len(block.Entries) == 0 {
		return nil
	}
	newPage := func() float64 {
		pdf.AddPageFormat("", gofpdf.SizeType{Wd: page.W, Ht: page.H})
		return content.Y
	}
	y := newPage()

	y += notes.SeparatorPad
	pdf.SetDrawColor(0, 0, 0)
	pdf.SetLineWidth(notes.RuleThickness)
	pdf.Line(content.X, y, content.X+notes.SeparatorLength, y)
	y += notes.RuleThickness + notes.SeparatorPad

	for i, en := range block.Entries {
		need := en.Height
		if i > 0 {
			need += notes.EntrySpacing
		}
		if y+need > content.MaxY() && y > content.Y {
			y = newPage()
		} else if i > 0 {
			y += notes.EntrySpacing
		}
		e.drawEntry(pdf, tr, en, content.X, y)
		y += en.Height
	}
	return nil
}

// drawEntry draws one numbered entry: a hanging label and the wrapped
// note lines, whose offsets index the entry's own text.
func (e *Exporter) drawEntry(pdf *gofpdf.Fpdf, tr func(string) string, en notes.Entry, x, y float64) {
	m := e.Fitter.StyleMetrics(en.Style)
	setStyleFont(pdf, en.Style)
	pdf.SetTextColor(0, 0, 0)
	pdf.Text(x, y+m.Ascent, tr(en.Label))
	runes := []rune(en.Text)
	ly := y
	for _, ln := range en.Lines {
		s := strings.TrimRight(string(runes[ln.Start:ln.End]), "\n")
		if s != "" {
			pdf.Text(x+en.Indent, ly+m.Ascent, tr(s))
		}
		ly += ln.Height
	}
}

// drawGuides frames the body area as reduced by this page's reservation,
// plus the header and footer bands when the geometry has them.
func drawGuides(pdf *gofpdf.Fpdf, f geometry.PageFrames, pg paginate.PageDescriptor) {
	pdf.SetDrawColor(200, 60, 60)
	pdf.SetLineWidth(0.2)
	pdf.Rect(pg.Content.X, pg.Content.Y, pg.Content.W, pg.Content.H, "D")
	if !f.Header.Empty() {
		pdf.Rect(f.Header.X, f.Header.Y, f.Header.W, f.Header.H, "D")
	}
	if !f.Footer.Empty() {
		pdf.Rect(f.Footer.X, f.Footer.Y, f.Footer.W, f.Footer.H, "D")
	}
}

// drawBands writes the running title in the header band and the page
// number in the footer band.
func drawBands(pdf *gofpdf.Fpdf, tr func(string) string, f geometry.PageFrames, title string, n, total int) {
	if f.Header.Empty() && f.Footer.Empty() {
		return
	}
	pdf.SetTextColor(120, 120, 120)
	if !f.Header.Empty() {
		pdf.SetFont("Helvetica", "I", 9)
		pdf.Text(f.Header.X, f.Header.MaxY()-3, tr(title))
	}
	if !f.Footer.Empty() {
		pdf.SetFont("Helvetica", "", 9)
		s := fmt.Sprintf("%d / %d", n, total)
		w := pdf.GetStringWidth(s)
		pdf.Text(f.Footer.X+(f.Footer.W-w)/2, f.Footer.MaxY()-3, s)
	}
	pdf.SetTextColor(0, 0, 0)
}

// setStyleFont maps a run style onto the PDF core fonts. Helvetica covers
// the default body face; mono and serif family names select Courier and
// Times.
func setStyleFont(pdf *gofpdf.Fpdf, st text.Style) {
	family := "Helvetica"
	f := strings.ToLower(st.Font)
	switch {
	case strings.Contains(f, "courier"), strings.Contains(f, "mono"):
		family = "Courier"
	case strings.Contains(f, "times"), strings.Contains(f, "serif"):
		family = "Times"
	}
	variant := ""
	if st.Bold {
		variant += "B"
	}
	if st.Italic {
		variant += "I"
	}
	size := st.Size
	if size <= 0 {
		size = measure.DefaultSize
	}
	pdf.SetFont(family, variant, size)
}

func recordIndex(recs []annotation.Record) map[annotation.ID]annotation.Record {
	m := make(map[annotation.ID]annotation.Record, len(recs))
	for _, r := range recs {
		m[r.ID] = r
	}
	return m
}
