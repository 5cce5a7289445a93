/*
 * Copyright (c) 2026 by easiwriter.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package geometry

// Rectangles use page coordinates: origin at the top-left corner of the
// page, y growing downward, all values in PostScript points.

// Inch is one inch in points.
const Inch = 72.0

// Rect is an axis-aligned rectangle.
type Rect struct {
	X, Y, W, H float64
}

// R constructs a Rect.
func R(x, y, w, h float64) Rect { return Rect{X: x, Y: y, W: w, H: h} }

// MaxX returns the right edge.
func (r Rect) MaxX() float64 { return r.X + r.W }

// MaxY returns the bottom edge.
func (r Rect) MaxY() float64 { return r.Y + r.H }

// Inset returns r shrunk by d on all sides. The result may be degenerate;
// callers that need a usable rect must check Empty.
func (r Rect) Inset(d float64) Rect {
	return Rect{X: r.X + d, Y: r.Y + d, W: r.W - 2*d, H: r.H - 2*d}
}

// CutTop returns r with h removed from its top edge.
func (r Rect) CutTop(h float64) Rect {
	return Rect{X: r.X, Y: r.Y + h, W: r.W, H: r.H - h}
}

// CutBottom returns r with h removed from its bottom edge.
func (r Rect) CutBottom(h float64) Rect {
	return Rect{X: r.X, Y: r.Y, W: r.W, H: r.H - h}
}

// Empty reports whether the rect has no usable area.
func (r Rect) Empty() bool { return r.W <= 0 || r.H <= 0 }

// Contains reports whether the point (x, y) lies inside r.
func (r Rect) Contains(x, y float64) bool {
	return x >= r.X && x < r.MaxX() && y >= r.Y && y < r.MaxY()
}
