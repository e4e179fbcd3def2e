// Package region implements immutable 2D coverage arithmetic.
//
// A Region is a union of axis-aligned rectangles. All comparisons are made on
// the covered area, never on the rectangle list: two regions built from
// different partitions of the same pixels are equal.
//
// Coverage is computed by coordinate compression. The edges of every
// rectangle involved in an operation split the plane into a grid of cells,
// and each cell is either fully covered by a region or not covered at all.
package region

import (
	"fmt"
	"sort"
	"strings"
)

// Rect is an axis-aligned rectangle with exclusive Right and Bottom edges.
type Rect struct {
	Left   int `json:"left" yaml:"left"`
	Top    int `json:"top" yaml:"top"`
	Right  int `json:"right" yaml:"right"`
	Bottom int `json:"bottom" yaml:"bottom"`
}

// IsEmpty reports whether the rectangle covers no pixels.
func (r Rect) IsEmpty() bool {
	return r.Right <= r.Left || r.Bottom <= r.Top
}

// Width returns the horizontal extent, or 0 for an empty rectangle.
func (r Rect) Width() int {
	if r.IsEmpty() {
		return 0
	}
	return r.Right - r.Left
}

// Height returns the vertical extent, or 0 for an empty rectangle.
func (r Rect) Height() int {
	if r.IsEmpty() {
		return 0
	}
	return r.Bottom - r.Top
}

// Area returns the number of covered pixels.
func (r Rect) Area() int64 {
	return int64(r.Width()) * int64(r.Height())
}

// Intersect returns the overlap of r and o, which may be empty.
func (r Rect) Intersect(o Rect) Rect {
	out := Rect{
		Left:   max(r.Left, o.Left),
		Top:    max(r.Top, o.Top),
		Right:  min(r.Right, o.Right),
		Bottom: min(r.Bottom, o.Bottom),
	}
	if out.IsEmpty() {
		return Rect{}
	}
	return out
}

// Contains reports whether o lies entirely inside r.
// An empty rectangle is contained by anything.
func (r Rect) Contains(o Rect) bool {
	if o.IsEmpty() {
		return true
	}
	return r.Left <= o.Left && r.Top <= o.Top && o.Right <= r.Right && o.Bottom <= r.Bottom
}

func (r Rect) String() string {
	return fmt.Sprintf("(%d, %d) - (%d, %d)", r.Left, r.Top, r.Right, r.Bottom)
}

// Region is an immutable union of rectangles.
// The zero value is the empty region.
type Region struct {
	rects []Rect
}

// Empty is the region covering no pixels. Its Bounds is the zero Rect.
var Empty = Region{}

// New creates a region from rects. Empty rectangles are dropped; the order of
// the remaining ones is preserved.
func New(rects ...Rect) Region {
	kept := make([]Rect, 0, len(rects))
	for _, r := range rects {
		if !r.IsEmpty() {
			kept = append(kept, r)
		}
	}
	if len(kept) == 0 {
		return Empty
	}
	return Region{rects: kept}
}

// FromRect creates a single-rectangle region.
func FromRect(left, top, right, bottom int) Region {
	return New(Rect{Left: left, Top: top, Right: right, Bottom: bottom})
}

// Rects returns a copy of the constituent rectangles.
func (g Region) Rects() []Rect {
	out := make([]Rect, len(g.rects))
	copy(out, g.rects)
	return out
}

// Bounds returns the bounding box of all constituent rectangles,
// or the zero Rect for an empty region.
func (g Region) Bounds() Rect {
	if len(g.rects) == 0 {
		return Rect{}
	}
	b := g.rects[0]
	for _, r := range g.rects[1:] {
		b.Left = min(b.Left, r.Left)
		b.Top = min(b.Top, r.Top)
		b.Right = max(b.Right, r.Right)
		b.Bottom = max(b.Bottom, r.Bottom)
	}
	return b
}

// IsEmpty reports whether the region covers no pixels.
func (g Region) IsEmpty() bool {
	return len(g.rects) == 0
}

// Area returns the number of covered pixels; overlaps are counted once.
func (g Region) Area() int64 {
	var area int64
	newGrid(g).each(func(c Rect) {
		if g.coversCell(c) {
			area += c.Area()
		}
	})
	return area
}

// CoversAtMost reports whether every pixel of g is also covered by o.
func (g Region) CoversAtMost(o Region) bool {
	return subset(g, o)
}

// CoversAtLeast reports whether every pixel of o is also covered by g.
func (g Region) CoversAtLeast(o Region) bool {
	return subset(o, g)
}

// CoversExactly reports whether g and o cover the same pixels.
func (g Region) CoversExactly(o Region) bool {
	return subset(g, o) && subset(o, g)
}

// Equal is CoversExactly.
func (g Region) Equal(o Region) bool {
	return g.CoversExactly(o)
}

// Contains reports whether r is entirely covered by g.
func (g Region) Contains(r Rect) bool {
	return subset(New(r), g)
}

// Union returns the pixels covered by g or o.
func (g Region) Union(o Region) Region {
	return combine(g, o, func(a, b bool) bool { return a || b })
}

// Intersect returns the pixels covered by both g and o.
func (g Region) Intersect(o Region) Region {
	return combine(g, o, func(a, b bool) bool { return a && b })
}

// Subtract returns the pixels covered by g but not by o.
func (g Region) Subtract(o Region) Region {
	return combine(g, o, func(a, b bool) bool { return a && !b })
}

func (g Region) String() string {
	if g.IsEmpty() {
		return "[empty]"
	}
	parts := make([]string, len(g.rects))
	for i, r := range g.rects {
		parts[i] = r.String()
	}
	return strings.Join(parts, ", ")
}

func (g Region) coversCell(c Rect) bool {
	for _, r := range g.rects {
		if r.Contains(c) {
			return true
		}
	}
	return false
}

// grid is the coordinate-compressed cell decomposition of a set of regions.
type grid struct {
	xs []int
	ys []int
}

func newGrid(regions ...Region) grid {
	var xs, ys []int
	for _, g := range regions {
		for _, r := range g.rects {
			xs = append(xs, r.Left, r.Right)
			ys = append(ys, r.Top, r.Bottom)
		}
	}
	return grid{xs: uniqueSorted(xs), ys: uniqueSorted(ys)}
}

// each visits every cell row by row, left to right.
func (gr grid) each(fn func(c Rect)) {
	for j := 0; j+1 < len(gr.ys); j++ {
		for i := 0; i+1 < len(gr.xs); i++ {
			fn(Rect{Left: gr.xs[i], Top: gr.ys[j], Right: gr.xs[i+1], Bottom: gr.ys[j+1]})
		}
	}
}

func subset(a, b Region) bool {
	if a.IsEmpty() {
		return true
	}
	ok := true
	newGrid(a, b).each(func(c Rect) {
		if ok && a.coversCell(c) && !b.coversCell(c) {
			ok = false
		}
	})
	return ok
}

// combine applies op cell-wise and merges covered cells into horizontal
// runs, one rectangle per run per grid row.
func combine(a, b Region, op func(inA, inB bool) bool) Region {
	gr := newGrid(a, b)
	var out []Rect
	for j := 0; j+1 < len(gr.ys); j++ {
		top, bottom := gr.ys[j], gr.ys[j+1]
		runStart := -1
		for i := 0; i+1 < len(gr.xs); i++ {
			c := Rect{Left: gr.xs[i], Top: top, Right: gr.xs[i+1], Bottom: bottom}
			if op(a.coversCell(c), b.coversCell(c)) {
				if runStart < 0 {
					runStart = gr.xs[i]
				}
				continue
			}
			if runStart >= 0 {
				out = append(out, Rect{Left: runStart, Top: top, Right: gr.xs[i], Bottom: bottom})
				runStart = -1
			}
		}
		if runStart >= 0 {
			out = append(out, Rect{Left: runStart, Top: top, Right: gr.xs[len(gr.xs)-1], Bottom: bottom})
		}
	}
	return New(out...)
}

func uniqueSorted(vals []int) []int {
	if len(vals) == 0 {
		return nil
	}
	sort.Ints(vals)
	out := vals[:1]
	for _, v := range vals[1:] {
		if v != out[len(out)-1] {
			out = append(out, v)
		}
	}
	return out
}
