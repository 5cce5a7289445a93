/*
 * Copyright (c) 2026 by easiwriter.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

// Package window keeps page surfaces alive only around the viewport.
// Long documents run to hundreds of pages; a surface per page would hold
// hundreds of render targets, so the window materializes the visible
// pages plus a small buffer on either side and recycles everything else
// through a bounded pool.
package window

import (
	"log/slog"
	"sort"

	"github.com/easiwriter/WritingShedPro-sub015/internal/geometry"
	applog "github.com/easiwriter/WritingShedPro-sub015/internal/log"
	"github.com/easiwriter/WritingShedPro-sub015/internal/paginate"
)

const (
	// DefaultBuffer is how many pages beyond the visible range stay
	// materialized in each direction.
	DefaultBuffer = 2
	// PoolCap bounds the recycle pool; surfaces past it are discarded.
	PoolCap = 10
	// DefaultGap is the vertical space between stacked pages, in points.
	DefaultGap = 18.0
)

// Surface is one materialized page's backing resource. Configure may be
// called repeatedly as the page's descriptor changes; Discard frees the
// resource for good.
type Surface interface {
	Configure(page paginate.PageDescriptor, geom geometry.Geometry)
	Discard()
}

// Factory builds a fresh Surface when the pool is empty.
type Factory func() Surface

// Window tracks which pages are materialized for the current viewport.
// It is not safe for concurrent use; the session serializes access.
type Window struct {
	factory Factory
	buffer  int
	gap     float64
	log     *slog.Logger

	res paginate.Result
	// offsets[i] is the top of page i in document space; the final entry
	// is the total stacked height.
	offsets []float64

	live map[int]Surface
	pool []Surface

	top, height float64
	hasViewport bool
}

// New builds an empty window. buffer < 0 selects DefaultBuffer and
// gap < 0 selects DefaultGap.
func New(f Factory, buffer int, gap float64) *Window {
	if buffer < 0 {
		buffer = DefaultBuffer
	}
	if gap < 0 {
		gap = DefaultGap
	}
	return &Window{
		factory: f,
		buffer:  buffer,
		gap:     gap,
		log:     applog.WithComponent("window"),
		live:    map[int]Surface{},
	}
}

// SetResult swaps in a new layout, reconfiguring materialized pages in
// place. Surfaces whose page survived keep their slot with the fresh
// descriptor; pages past the new count are recycled. The materialized
// set is then re-derived for the last viewport.
func (w *Window) SetResult(res paginate.Result) {
	w.res = res
	w.recomputeOffsets()

	for idx, s := range w.live {
		if idx >= len(res.Pages) {
			w.release(idx, s)
			continue
		}
		s.Configure(res.Pages[idx], res.Geom)
	}
	if w.hasViewport {
		w.apply(w.want())
	}
}

// Scroll tells the window the viewport now covers [top, top+height) in
// stacked-page coordinates. Only pages entering or leaving the window
// transition; everything already materialized is left untouched.
func (w *Window) Scroll(top, height float64) {
	w.top, w.height = top, height
	w.hasViewport = true
	w.apply(w.want())
}

// VisibleRange reports the first and last page indexes intersecting the
// current viewport. ok is false before the first Scroll or when there
// are no pages.
func (w *Window) VisibleRange() (first, last int, ok bool) {
	if !w.hasViewport || len(w.res.Pages) == 0 {
		return 0, 0, false
	}
	first, last = w.visible(w.top, w.height)
	return first, last, true
}

// RangeAt reports the pages a viewport at top would intersect, without
// changing any surface state.
func (w *Window) RangeAt(top, height float64) (first, last int, ok bool) {
	if len(w.res.Pages) == 0 {
		return 0, 0, false
	}
	first, last = w.visible(top, height)
	return first, last, true
}

// PageOffset returns the top of page i in stacked coordinates.
func (w *Window) PageOffset(i int) float64 {
	if i < 0 || i >= len(w.res.Pages) {
		return 0
	}
	return w.offsets[i]
}

// TotalHeight is the stacked height of all pages including gaps.
func (w *Window) TotalHeight() float64 {
	if len(w.offsets) == 0 {
		return 0
	}
	return w.offsets[len(w.offsets)-1]
}

// Materialized returns the indexes currently holding a surface, sorted.
func (w *Window) Materialized() []int {
	out := make([]int, 0, len(w.live))
	for idx := range w.live {
		out = append(out, idx)
	}
	sort.Ints(out)
	return out
}

// Close discards every surface, live and pooled.
func (w *Window) Close() {
	for idx, s := range w.live {
		delete(w.live, idx)
		s.Discard()
	}
	for _, s := range w.pool {
		s.Discard()
	}
	w.pool = nil
}

func (w *Window) recomputeOffsets() {
	n := len(w.res.Pages)
	w.offsets = make([]float64, n+1)
	if n == 0 {
		return
	}
	paper := w.res.Geom.PaperRect()
	y := 0.0
	for i := 0; i < n; i++ {
		w.offsets[i] = y
		y += paper.H
		if i < n-1 {
			y += w.gap
		}
	}
	w.offsets[n] = y
}

// visible finds the inclusive page range intersecting the viewport. A
// viewport inside a gap snaps to the nearer pages around it.
func (w *Window) visible(top, height float64) (int, int) {
	n := len(w.res.Pages)
	paper := w.res.Geom.PaperRect()
	bottom := top + height

	// first page whose bottom edge is past the viewport top
	first := sort.Search(n, func(i int) bool { return w.offsets[i]+paper.H > top })
	// last page whose top edge is before the viewport bottom
	last := sort.Search(n, func(i int) bool { return w.offsets[i] >= bottom }) - 1

	if first > n-1 {
		first = n - 1
	}
	if last < first {
		last = first
	}
	if last > n-1 {
		last = n - 1
	}
	return first, last
}

// want is the set of page indexes that should be materialized: the
// visible range widened by the buffer, clamped to the document.
func (w *Window) want() map[int]bool {
	n := len(w.res.Pages)
	if n == 0 || !w.hasViewport {
		return nil
	}
	first, last := w.visible(w.top, w.height)
	lo, hi := first-w.buffer, last+w.buffer
	if lo < 0 {
		lo = 0
	}
	if hi > n-1 {
		hi = n - 1
	}
	set := make(map[int]bool, hi-lo+1)
	for i := lo; i <= hi; i++ {
		set[i] = true
	}
	return set
}

// apply transitions the live set to match want, touching only the delta.
func (w *Window) apply(want map[int]bool) {
	for idx, s := range w.live {
		if !want[idx] {
			w.release(idx, s)
		}
	}
	for idx := range want {
		if _, ok := w.live[idx]; ok {
			continue
		}
		s := w.acquire()
		s.Configure(w.res.Pages[idx], w.res.Geom)
		w.live[idx] = s
	}
}

func (w *Window) acquire() Surface {
	if n := len(w.pool); n > 0 {
		s := w.pool[n-1]
		w.pool = w.pool[:n-1]
		return s
	}
	return w.factory()
}

func (w *Window) release(idx int, s Surface) {
	delete(w.live, idx)
	if len(w.pool) < PoolCap {
		w.pool = append(w.pool, s)
		return
	}
	w.log.Debug("surface pool full; discarding", slog.Int("page", idx))
	s.Discard()
}
