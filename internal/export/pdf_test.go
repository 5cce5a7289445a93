/*
 * Copyright (c) 2026 by easiwriter.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package export

import (
	"bytes"
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/easiwriter/WritingShedPro-sub015/internal/annotation"
	"github.com/easiwriter/WritingShedPro-sub015/internal/geometry"
	"github.com/easiwriter/WritingShedPro-sub015/internal/measure"
	"github.com/easiwriter/WritingShedPro-sub015/internal/notes"
	"github.com/easiwriter/WritingShedPro-sub015/internal/paginate"
	"github.com/easiwriter/WritingShedPro-sub015/internal/text"
)

func newTestExporter() (*Exporter, *paginate.Engine) {
	f := measure.NewFitter(measure.BasicProvider{})
	n := notes.NewRenderer(f, text.Style{Size: 12})
	eng := paginate.NewEngine(f, n)
	eng.Log = slog.New(slog.DiscardHandler)
	return NewExporter(f, n), eng
}

// countPDFPages counts page objects in the output. "/Type /Pages" is the
// tree node, not a page, so it is subtracted.
func countPDFPages(t *testing.T, path string) int {
	t.Helper()
	b, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read pdf: %v", err)
	}
	return bytes.Count(b, []byte("/Type /Page")) - bytes.Count(b, []byte("/Type /Pages"))
}

func TestWriteProofFootnotes_CreatesFile(t *testing.T) {
	ex, eng := newTestExporter()
	buf := text.Plain(strings.Repeat("aaaa bbbb ", 9), text.Style{Size: 12})
	geom := geometry.Geometry{Paper: geometry.Custom, Orientation: geometry.Portrait, CustomWidth: 70, CustomHeight: 39}
	recs := []annotation.Record{
		{ID: "fn1", Anchor: 5, Number: 1, Text: "note a"},
		{ID: "fn2", Anchor: 35, Number: 2, Text: "note b"},
	}
	res, err := eng.Layout(context.Background(), buf, geom, recs, paginate.Footnotes)
	if err != nil {
		t.Fatalf("layout: %v", err)
	}

	out := filepath.Join(t.TempDir(), "proofs", "draft.pdf")
	if err := ex.WriteProof(out, buf, res, recs, Options{Title: "Draft", IncludeGuides: true}); err != nil {
		t.Fatalf("write proof: %v", err)
	}
	st, err := os.Stat(out)
	if err != nil {
		t.Fatalf("stat: %v", err)
	}
	if st.Size() <= 0 {
		t.Fatal("pdf file empty")
	}
	if got := countPDFPages(t, out); got != len(res.Pages) {
		t.Fatalf("pdf has %d pages, page table has %d", got, len(res.Pages))
	}
}

func TestWriteProofEndnotes_FlowsNotesAcrossPages(t *testing.T) {
	ex, eng := newTestExporter()
	buf := text.Plain(strings.Repeat("aaaa bbbb ", 9), text.Style{Size: 12})
	geom := geometry.Geometry{Paper: geometry.Custom, Orientation: geometry.Portrait, CustomWidth: 70, CustomHeight: 39}
	recs := []annotation.Record{
		{ID: "en1", Anchor: 5, Number: 1, Text: "note a"},
		{ID: "en2", Anchor: 35, Number: 2, Text: "note b"},
	}
	res, err := eng.Layout(context.Background(), buf, geom, recs, paginate.Endnotes)
	if err != nil {
		t.Fatalf("layout: %v", err)
	}
	// Body pages reserve nothing in endnote mode: 90 runes at 30 per page.
	if len(res.Pages) != 3 {
		t.Fatalf("body pages = %d, want 3", len(res.Pages))
	}

	out := filepath.Join(t.TempDir(), "endnotes.pdf")
	if err := ex.WriteProof(out, buf, res, recs, Options{Title: "Endnotes Draft"}); err != nil {
		t.Fatalf("write proof: %v", err)
	}
	// The 12.5pt separator plus two 13pt entries and 3pt spacing exceed
	// one 39pt page, so the block flows onto a second notes page.
	if got := countPDFPages(t, out); got != len(res.Pages)+2 {
		t.Fatalf("pdf has %d pages, want %d", got, len(res.Pages)+2)
	}
}

func TestWriteProofDrawsHeaderFooterBands(t *testing.T) {
	ex, eng := newTestExporter()
	buf := text.Plain("hello world", text.Style{Size: 12})
	geom := geometry.Default()
	geom.Header = true
	geom.HeaderHeight = 24
	geom.Footer = true
	geom.FooterHeight = 24
	res, err := eng.Layout(context.Background(), buf, geom, nil, paginate.Footnotes)
	if err != nil {
		t.Fatalf("layout: %v", err)
	}

	out := filepath.Join(t.TempDir(), "bands.pdf")
	if err := ex.WriteProof(out, buf, res, nil, Options{Title: "Banded", IncludeGuides: true}); err != nil {
		t.Fatalf("write proof: %v", err)
	}
	if got := countPDFPages(t, out); got != 1 {
		t.Fatalf("pdf has %d pages, want 1", got)
	}
}

func TestWriteProofRejectsEmptyResult(t *testing.T) {
	ex, _ := newTestExporter()
	out := filepath.Join(t.TempDir(), "never.pdf")
	err := ex.WriteProof(out, text.Plain("", text.Style{}), paginate.Result{}, nil, Options{})
	if err == nil {
		t.Fatal("expected an error for an empty result")
	}
	if _, serr := os.Stat(out); serr == nil {
		t.Fatal("file should not have been written")
	}
}
