/*
 * Copyright (c) 2026 by easiwriter.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package session

import "github.com/easiwriter/WritingShedPro-sub015/internal/text"

// envelope tracks the dirty region of a coalesced edit batch. lo and hi
// bound the edited span in the coordinates of the last published layout;
// delta is the net rune count change since then. Text before lo is
// untouched and text at or past hi survives shifted by delta, which is
// exactly what an incremental relayout needs. full forces the next pass
// to ignore the envelope; record and page-setup mutations set it because
// carried-over pages would keep stale reservation heights.
type envelope struct {
	active bool
	full   bool
	lo, hi int
	delta  int
}

// note folds one applied edit into the envelope. chg is in
// current-document coordinates; applied is the rune delta Apply reported
// after clamping.
func (ev *envelope) note(chg text.Change, applied int) {
	if !ev.active {
		ev.active = true
		ev.lo, ev.hi = chg.Pos, chg.Pos+chg.Del
		ev.delta = applied
		return
	}
	if ev.full {
		ev.delta += applied
		return
	}
	// where the dirty span currently ends
	dirtyEnd := ev.hi + ev.delta
	if dirtyEnd < ev.lo {
		dirtyEnd = ev.lo
	}
	if chg.Pos < ev.lo {
		ev.lo = chg.Pos
	}
	if end := chg.Pos + chg.Del; end > dirtyEnd {
		// the edit reaches into surviving text; the overshoot maps
		// one-to-one onto base runes past hi
		ev.hi += end - dirtyEnd
	}
	ev.delta += applied
}
