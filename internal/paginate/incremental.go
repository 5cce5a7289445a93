/*
 * Copyright (c) 2026 by easiwriter.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package paginate

import (
	"context"
	"slices"
	"sort"
	"time"

	"github.com/easiwriter/WritingShedPro-sub015/internal/annotation"
	"github.com/easiwriter/WritingShedPro-sub015/internal/geometry"
	"github.com/easiwriter/WritingShedPro-sub015/internal/text"
)

// Relayout runs an incremental pass after the text edit chg was applied
// to buf and the record anchors were shifted.
//
// Relayout only covers plain text edits. Anything that changes records
// themselves (insert, delete, restore, renumber) must run a full pass,
// since reused pages keep their reservation heights.
func (e *Engine) Relayout(ctx context.Context, prev Result, buf *text.Buffer, geom geometry.Geometry, recs []annotation.Record, mode DisplayMode, chg text.Change) (Result, error) {
	return e.RelayoutRange(ctx, prev, buf, geom, recs, mode, chg.Pos, chg.Pos+chg.Del)
}

// RelayoutRange runs an incremental pass after one or more edits confined
// to [lo, hiOld) in prev's document coordinates; text at or beyond hiOld
// survives shifted by the net length delta. Pages in front of the page
// containing lo are carried over unchanged; regeneration starts one page
// earlier than that page, because a page's fit reads into the word that
// opens the following page. Once a regenerated boundary lines up with an
// old boundary shifted by the delta, and every remaining old page still
// carries the same annotation IDs at its shifted range, the old suffix is
// reused wholesale. When the previous result cannot be trusted (geometry
// or mode mismatch, or an edit range past its document) this falls back
// to a full Layout, which is always correct.
func (e *Engine) RelayoutRange(ctx context.Context, prev Result, buf *text.Buffer, geom geometry.Geometry, recs []annotation.Record, mode DisplayMode, lo, hiOld int) (Result, error) {
	if lo < 0 {
		lo = 0
	}
	if hiOld < lo {
		hiOld = lo
	}
	if len(prev.Pages) == 0 || prev.Geom != geom || prev.Mode != mode || hiOld > prev.DocLen {
		return e.Layout(ctx, buf, geom, recs, mode)
	}
	delta := buf.Len() - prev.DocLen
	started := time.Now()
	frames, err := geometry.Frames(geom)
	if err != nil {
		return Result{}, err
	}
	live, stale := e.splitStale(annotation.SortLive(recs), buf.Len())

	first := prev.PageAt(lo) - 1
	if first < 0 {
		first = 0
	}
	// the final page is always regenerated so anchors sitting exactly at
	// the document end land on it
	for first > 0 && prev.Pages[first-1].End >= buf.Len() {
		first--
	}

	res := Result{DocLen: buf.Len(), Geom: geom, Mode: mode}
	res.Report.Stale = stale
	res.Pages = append(res.Pages, prev.Pages[:first]...)
	res.Report.Reused = first
	for _, idx := range prev.Report.NonConverged {
		if idx < first {
			res.Report.NonConverged = append(res.Report.NonConverged, idx)
		}
	}

	// old page starts at or beyond this offset are shift-identical text
	reusableFrom := hiOld

	start := 0
	if first > 0 {
		start = prev.Pages[first-1].End
	}
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

		if start == buf.Len() {
			break
		}
		j, ok := prev.pageStartingAt(start - delta)
		if !ok || prev.Pages[j].Start < reusableFrom {
			continue
		}
		tail, ok := reuseTail(prev, j, delta, live, buf.Len())
		if !ok {
			continue
		}
		base := len(res.Pages)
		for i := range tail {
			tail[i].Index = base + i
		}
		res.Pages = append(res.Pages, tail...)
		res.Report.Reused += len(tail)
		for _, idx := range prev.Report.NonConverged {
			if idx >= j {
				res.Report.NonConverged = append(res.Report.NonConverged, idx-j+base)
			}
		}
		break
	}

	if len(res.Pages) == 0 {
		res.Pages = append(res.Pages, PageDescriptor{Content: frames.Content})
	}
	res.Report.Duration = time.Since(started)
	return res, nil
}

// pageStartingAt finds the page whose range begins exactly at start.
func (r *Result) pageStartingAt(start int) (int, bool) {
	i := sort.Search(len(r.Pages), func(i int) bool { return r.Pages[i].Start >= start })
	if i < len(r.Pages) && r.Pages[i].Start == start {
		return i, true
	}
	return 0, false
}

// reuseTail verifies that every old page from j on still carries the
// same annotation IDs at its shifted range, and returns shifted copies.
// Any mismatch vetoes the reuse; the caller keeps regenerating.
func reuseTail(prev Result, j, delta int, live []annotation.Record, docLen int) ([]PageDescriptor, bool) {
	tail := make([]PageDescriptor, 0, len(prev.Pages)-j)
	for k := j; k < len(prev.Pages); k++ {
		old := prev.Pages[k]
		s, en := old.Start+delta, old.End+delta
		now := anchorsIn(live, s, en, en == docLen)
		if !slices.Equal(ids(now), old.Annotations) {
			return nil, false
		}
		old.Start, old.End = s, en
		tail = append(tail, old)
	}
	return tail, true
}
