/*
 * Copyright (c) 2026 by easiwriter.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

// Package paginate splits a flowing document into pages. Each page is
// measured twice: once into the base content rect, then again into the
// rect left after reserving the height of the annotations anchored in
// the tentatively fitted range. Because shrinking the text area can move
// annotations across the page boundary, the reservation loop runs to a
// fixed point, bounded by a hard iteration cap.
package paginate

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"time"

	"github.com/easiwriter/WritingShedPro-sub015/internal/annotation"
	"github.com/easiwriter/WritingShedPro-sub015/internal/geometry"
	"github.com/easiwriter/WritingShedPro-sub015/internal/log"
	"github.com/easiwriter/WritingShedPro-sub015/internal/measure"
	"github.com/easiwriter/WritingShedPro-sub015/internal/notes"
	"github.com/easiwriter/WritingShedPro-sub015/internal/text"
)

// DefaultMaxIter caps the annotation reservation loop. Real documents
// stabilize in two or three iterations; the cap only guards pathological
// annotation density.
const DefaultMaxIter = 5

// ErrMeasureFailed wraps any failure of the measurement primitive. The
// pass that hit it is abandoned and the previous result stays in effect.
var ErrMeasureFailed = errors.New("text measurement failed")

// Engine produces Results. The zero value is not usable; construct with
// NewEngine. An Engine is stateless across passes, so one instance can
// serve consecutive passes for a document.
type Engine struct {
	Fit     measure.Fitter
	Notes   *notes.Renderer
	MaxIter int
	Log     *slog.Logger
	// Progress, when set, is invoked after each emitted page with the
	// document offset reached. Drives the initial-pass indicator.
	Progress func(offset, total int)
}

// NewEngine builds an Engine over the given fitter and notes renderer.
func NewEngine(fit measure.Fitter, r *notes.Renderer) *Engine {
	return &Engine{
		Fit:     fit,
		Notes:   r,
		MaxIter: DefaultMaxIter,
		Log:     log.WithComponent("layout"),
	}
}

// Layout runs a full pass: the whole document is split into pages under
// the given geometry, records and display mode. The context is checked
// between pages; on cancellation no result is returned and the caller's
// previous list remains valid. Input records are not modified.
func (e *Engine) Layout(ctx context.Context, buf *text.Buffer, geom geometry.Geometry, recs []annotation.Record, mode DisplayMode) (Result, error) {
	started := time.Now()
	frames, err := geometry.Frames(geom)
	if err != nil {
		return Result{}, err
	}

	live, stale := e.splitStale(annotation.SortLive(recs), buf.Len())

	res := Result{DocLen: buf.Len(), Geom: geom, Mode: mode}
	res.Report.Stale = stale

	start := 0
	for start < buf.Len() {
		if err := ctx.Err(); err != nil {
			return Result{}, err
		}
		desc, nonConv, err := e.layoutPage(buf, frames, live, start, len(res.Pages), mode)
		if err != nil {
			return Result{}, err
		}
		res.Pages = append(res.Pages, desc)
		if nonConv {
			res.Report.NonConverged = append(res.Report.NonConverged, desc.Index)
		}
		start = desc.End
		if e.Progress != nil {
			e.Progress(start, buf.Len())
		}
	}
	if len(res.Pages) == 0 {
		// an empty document still has one page
		res.Pages = append(res.Pages, PageDescriptor{Content: frames.Content})
		if e.Progress != nil {
			e.Progress(0, 0)
		}
	}
	res.Report.Duration = time.Since(started)
	return res, nil
}

// layoutPage fits one page starting at start. nonConv reports that the
// reservation loop hit its cap.
func (e *Engine) layoutPage(buf *text.Buffer, frames geometry.PageFrames, live []annotation.Record, start, index int, mode DisplayMode) (PageDescriptor, bool, error) {
	base := frames.Content

	end, lines, err := e.measure(buf, start, base)
	if err != nil {
		return PageDescriptor{}, false, err
	}
	if end == start {
		return e.forcedPage(buf, base, start, index), false, nil
	}

	pageRecs := anchorsIn(live, start, end, end == buf.Len())
	if mode == Endnotes || len(pageRecs) == 0 {
		return PageDescriptor{
			Index:       index,
			Start:       start,
			End:         end,
			Annotations: ids(pageRecs),
			Content:     base,
		}, false, nil
	}

	// at least one body line always survives the reservation
	maxReserve := base.H - lines[0].Height

	var (
		reserve  float64
		overflow bool
		rect     = base
	)
	for iter := 0; iter < e.maxIter(); iter++ {
		required, err := e.Notes.RequiredHeight(pageRecs, base.W)
		if err != nil {
			return PageDescriptor{}, false, fmt.Errorf("%w: annotation block: %v", ErrMeasureFailed, err)
		}
		reserve, overflow = required, false
		if reserve > maxReserve {
			reserve, overflow = maxReserve, true
		}
		if reserve < 0 {
			reserve = 0
		}
		rect = base.CutBottom(reserve)

		end, _, err = e.measure(buf, start, rect)
		if err != nil {
			return PageDescriptor{}, false, err
		}
		if end == start {
			return e.forcedPage(buf, rect, start, index), false, nil
		}
		next := anchorsIn(live, start, end, end == buf.Len())
		if sameRecords(next, pageRecs) {
			return PageDescriptor{
				Index:       index,
				Start:       start,
				End:         end,
				Annotations: ids(next),
				Content:     rect,
				NoteHeight:  reserve,
				Overflow:    overflow,
			}, false, nil
		}
		// set changed (annotations moved across the boundary, or all
		// moved off); iterate with the new set
		pageRecs = next
	}

	// cap hit: keep the last computed state but list the annotations
	// actually anchored in the final range, so every anchor still maps
	// to exactly one page
	e.logger().Warn("annotation reservation did not stabilize",
		slog.Int("page", index),
		slog.Int("iterations", e.maxIter()),
	)
	return PageDescriptor{
		Index:       index,
		Start:       start,
		End:         end,
		Annotations: ids(pageRecs),
		Content:     rect,
		NoteHeight:  reserve,
		Overflow:    overflow,
	}, true, nil
}

// forcedPage handles a rect too small for a single line: the page takes
// one rune so the pass always advances.
func (e *Engine) forcedPage(buf *text.Buffer, rect geometry.Rect, start, index int) PageDescriptor {
	e.logger().Warn("page cannot fit a line of text; advancing by one rune",
		slog.Int("page", index),
		slog.Int("offset", start),
	)
	end := start + 1
	if end > buf.Len() {
		end = buf.Len()
	}
	return PageDescriptor{Index: index, Start: start, End: end, Content: rect}
}

// measure calls the fitter, converting errors and panics into
// ErrMeasureFailed so a misbehaving measurement primitive can only abort
// the pass, never the process.
func (e *Engine) measure(buf *text.Buffer, start int, rect geometry.Rect) (end int, lines []measure.Line, err error) {
	defer func() {
		if p := recover(); p != nil {
			end, lines = start, nil
			err = fmt.Errorf("%w: panic: %v", ErrMeasureFailed, p)
		}
	}()
	end, lines, ferr := e.Fit.Fit(buf, start, rect)
	if ferr != nil {
		return start, nil, fmt.Errorf("%w: %v", ErrMeasureFailed, ferr)
	}
	if end < start {
		return start, nil, fmt.Errorf("%w: fit moved backwards (%d < %d)", ErrMeasureFailed, end, start)
	}
	return end, lines, nil
}

func (e *Engine) maxIter() int {
	if e.MaxIter > 0 {
		return e.MaxIter
	}
	return DefaultMaxIter
}

func (e *Engine) logger() *slog.Logger {
	if e.Log != nil {
		return e.Log
	}
	return log.WithComponent("layout")
}

// splitStale separates records whose anchor lies outside [0, docLen].
// Stale records are excluded from page assignment but reported, so a
// desynchronized store cannot crash a pass.
func (e *Engine) splitStale(live []annotation.Record, docLen int) ([]annotation.Record, []annotation.ID) {
	var stale []annotation.ID
	ok := make([]annotation.Record, 0, len(live))
	for _, r := range live {
		if r.Anchor < 0 || r.Anchor > docLen {
			stale = append(stale, r.ID)
			e.logger().Warn("skipping annotation with out-of-range anchor",
				slog.String("id", string(r.ID)),
				slog.Int("anchor", r.Anchor),
				slog.Int("docLen", docLen),
			)
			continue
		}
		ok = append(ok, r)
	}
	return ok, stale
}

// anchorsIn returns the records anchored in [start, end). A page
// boundary offset belongs to the following page; the document end
// belongs to the last page.
func anchorsIn(live []annotation.Record, start, end int, last bool) []annotation.Record {
	var out []annotation.Record
	for _, r := range live {
		if r.Anchor < start {
			continue
		}
		if r.Anchor < end || (last && r.Anchor == end) {
			out = append(out, r)
			continue
		}
		break
	}
	return out
}

func ids(recs []annotation.Record) []annotation.ID {
	if len(recs) == 0 {
		return nil
	}
	out := make([]annotation.ID, len(recs))
	for i, r := range recs {
		out[i] = r.ID
	}
	return out
}

func sameRecords(a, b []annotation.Record) bool {
	return slices.EqualFunc(a, b, func(x, y annotation.Record) bool { return x.ID == y.ID })
}
