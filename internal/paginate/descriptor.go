/*
 * Copyright (c) 2026 by easiwriter.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package paginate

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/easiwriter/WritingShedPro-sub015/internal/annotation"
	"github.com/easiwriter/WritingShedPro-sub015/internal/geometry"
)

// DisplayMode selects where annotation blocks are rendered.
type DisplayMode string

const (
	// Footnotes reserves space for each page's annotations at the
	// bottom of that page.
	Footnotes DisplayMode = "footnotes"
	// Endnotes renders all annotations in one block after the last
	// page; pages reserve nothing.
	Endnotes DisplayMode = "endnotes"
)

// ParseDisplayMode converts a user-supplied name to a DisplayMode.
func ParseDisplayMode(s string) (DisplayMode, error) {
	m := DisplayMode(strings.ToLower(strings.TrimSpace(s)))
	switch m {
	case Footnotes, Endnotes:
		return m, nil
	}
	return "", fmt.Errorf("unknown display mode %q", s)
}

// PageDescriptor names one page of the paginated document: the rune range
// [Start, End) it shows, the annotations anchored in that range (in
// anchor order), and the rectangle left for body text once the annotation
// block's height is reserved. Descriptors are immutable once produced; a
// later pass supersedes them wholesale.
type PageDescriptor struct {
	Index       int
	Start, End  int
	Annotations []annotation.ID
	// Content is the body text area: the base content rect minus
	// NoteHeight at the bottom.
	Content    geometry.Rect
	NoteHeight float64
	// Overflow marks a page whose annotation block needed more height
	// than the page could give up; the visible block is truncated and
	// the rendering layer shows a continuation indicator.
	Overflow bool
}

// PassReport carries the non-fatal conditions of one layout pass.
type PassReport struct {
	// NonConverged lists pages where the reservation loop hit its
	// iteration cap; the last computed state was kept.
	NonConverged []int
	// Stale lists annotations whose anchor fell outside the document
	// and were excluded from page assignment.
	Stale []annotation.ID
	// Reused counts descriptors carried over by an incremental pass.
	Reused   int
	Duration time.Duration
}

// Result is one complete pagination of a document. It is published
// wholesale (atomic pointer swap in the session), never mutated.
type Result struct {
	Pages  []PageDescriptor
	DocLen int
	Geom   geometry.Geometry
	Mode   DisplayMode
	Report PassReport
}

// PageAt returns the index of the page whose range contains pos. The
// final page also owns pos == DocLen. pos is clamped to the document.
func (r *Result) PageAt(pos int) int {
	if len(r.Pages) == 0 {
		return 0
	}
	if pos >= r.DocLen {
		return len(r.Pages) - 1
	}
	if pos < 0 {
		return 0
	}
	// first page with End > pos
	return sort.Search(len(r.Pages), func(i int) bool { return r.Pages[i].End > pos })
}
