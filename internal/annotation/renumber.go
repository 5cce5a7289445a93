/*
 * Copyright (c) 2026 by easiwriter.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package annotation

import "sort"

// Renumber assigns 1..N to the live records in anchor order, mutating
// Number in place, and returns the IDs whose number changed, in document
// order. Deleted records are untouched; their stale numbers are never
// displayed and a restore triggers another pass. Runs after every
// insert, soft delete, restore, and any edit that can reorder anchors.
func Renumber(recs []Record) []ID {
	idx := make([]int, 0, len(recs))
	for i := range recs {
		if !recs[i].Deleted {
			idx = append(idx, i)
		}
	}
	sort.SliceStable(idx, func(a, b int) bool { return less(recs[idx[a]], recs[idx[b]]) })

	var changed []ID
	for n, i := range idx {
		want := n + 1
		if recs[i].Number != want {
			recs[i].Number = want
			changed = append(changed, recs[i].ID)
		}
	}
	return changed
}

// SortLive returns the live records in display order (anchor, creation,
// ID). The input is not modified.
func SortLive(recs []Record) []Record {
	out := Live(recs)
	sort.SliceStable(out, func(a, b int) bool { return less(out[a], out[b]) })
	return out
}
