/*
 * Copyright (c) 2026 by easiwriter.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package annotation

// ShiftAnchors applies the anchor maintenance rule for an edit of delta
// runes at pos: every record with Anchor >= pos moves by delta, clamped
// so it never lands before pos (an anchor inside a deleted span collapses
// onto the deletion point). Deleted records shift too, so a later restore
// finds them in the right place. Mutates recs in place and returns copies
// of the records that moved.
func ShiftAnchors(recs []Record, pos, delta int) []Record {
	if delta == 0 {
		return nil
	}
	var moved []Record
	for i := range recs {
		if recs[i].Anchor < pos {
			continue
		}
		a := recs[i].Anchor + delta
		if a < pos {
			a = pos
		}
		if a == recs[i].Anchor {
			continue
		}
		recs[i].Anchor = a
		moved = append(moved, recs[i])
	}
	return moved
}
