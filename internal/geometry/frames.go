/*
 * Copyright (c) 2026 by easiwriter.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package geometry

import "fmt"

// PageFrames are the derived rectangles of one page. Header and Footer are
// zero rects when the corresponding band is disabled. Content is the area
// available to body text before any annotation space is subtracted.
type PageFrames struct {
	Page    Rect
	Header  Rect
	Footer  Rect
	Content Rect
}

// Frames computes the page frames for g. It is a pure function of its
// input. A configuration whose content rectangle has non-positive width
// or height yields ErrInvalidGeometry, never a degenerate rect.
func Frames(g Geometry) (PageFrames, error) {
	page := g.PaperRect()
	m := g.Margins
	printable := page.W - m.Left - m.Right

	var f PageFrames
	f.Page = page

	headerH := 0.0
	if g.Header {
		headerH = g.HeaderHeight
		f.Header = R(m.Left, m.Top, printable, headerH)
	}
	footerH := 0.0
	if g.Footer {
		footerH = g.FooterHeight
		f.Footer = R(m.Left, page.H-m.Bottom-footerH, printable, footerH)
	}

	f.Content = R(
		m.Left,
		m.Top+headerH,
		printable,
		page.H-m.Top-m.Bottom-headerH-footerH,
	)
	if f.Content.Empty() {
		return PageFrames{}, fmt.Errorf("%w: content rect %.2fx%.2f", ErrInvalidGeometry, f.Content.W, f.Content.H)
	}
	return f, nil
}
