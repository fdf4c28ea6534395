// Package quadtree holds the geometry and tagged-node model shared by the
// builder, serializer and runtime traversal: axis-aligned integer
// rectangles on the lattice, their fixed NW/NE/SW/SE subdivision, and the
// deterministic sample points the builder probes before committing to a
// brute-force proof.
package quadtree

import (
	"fmt"
	"math/rand"
)

// Point is a lattice coordinate pair (x = ilon, y = ilat).
type Point struct {
	X, Y int
}

// Rectangle is an inclusive axis-aligned integer box: [X0,X1] x [Y0,Y1].
// X tracks longitude index, Y tracks latitude index.
type Rectangle struct {
	X0, Y0, X1, Y1 int
}

// Root returns the rectangle covering the whole lattice at xmax/ymax.
func Root(xmax, ymax int) Rectangle {
	return Rectangle{X0: 0, Y0: 0, X1: xmax, Y1: ymax}
}

// Width is the number of lattice columns in the rectangle.
func (r Rectangle) Width() int { return r.X1 - r.X0 + 1 }

// Height is the number of lattice rows in the rectangle.
func (r Rectangle) Height() int { return r.Y1 - r.Y0 + 1 }

// PointCount is the total number of lattice points covered.
func (r Rectangle) PointCount() int64 {
	return int64(r.Width()) * int64(r.Height())
}

// IsPoint reports whether the rectangle is a single lattice point.
func (r Rectangle) IsPoint() bool {
	return r.X0 == r.X1 && r.Y0 == r.Y1
}

// String renders the rectangle as "[x0,y0]-[x1,y1]", used by log lines
// and the stats command.
func (r Rectangle) String() string {
	return fmt.Sprintf("[%d,%d]-[%d,%d]", r.X0, r.Y0, r.X1, r.Y1)
}

// Contains reports whether (x,y) lies within the rectangle.
func (r Rectangle) Contains(x, y int) bool {
	return x >= r.X0 && x <= r.X1 && y >= r.Y0 && y <= r.Y1
}

// Midpoints returns the floor-division split point of the rectangle.
// Indices are always nonnegative on the lattice, so the floor division
// never needs to account for negative operands.
func (r Rectangle) Midpoints() (xm, ym int) {
	if r.X0 < 0 || r.Y0 < 0 {
		panic("quadtree: rectangle has negative origin; lattice indices must be nonnegative")
	}
	return (r.X0 + r.X1) / 2, (r.Y0 + r.Y1) / 2
}

// Child identifies one of the four subdivision quadrants.
type Child int

const (
	NW Child = iota
	NE
	SW
	SE
)

// Subdivide splits the rectangle into its four children in NW, NE, SW, SE
// order. When an axis has zero width, the corresponding column or row is
// suppressed: a width-0 rectangle yields only NW/SW (NE/SE are the zero
// value with Valid=false); a height-0 rectangle yields only SW/SE. A
// single-point rectangle must never reach this function.
func (r Rectangle) Subdivide() [4]ChildRect {
	if r.IsPoint() {
		panic("quadtree: cannot subdivide a single-point rectangle")
	}
	xm, ym := r.Midpoints()

	var out [4]ChildRect

	// NW: (x0..xm, ym+1..y1)
	if ym+1 <= r.Y1 {
		out[NW] = ChildRect{Rect: Rectangle{r.X0, ym + 1, xm, r.Y1}, Valid: true}
	}
	// NE: (xm+1..x1, ym+1..y1)
	if xm+1 <= r.X1 && ym+1 <= r.Y1 {
		out[NE] = ChildRect{Rect: Rectangle{xm + 1, ym + 1, r.X1, r.Y1}, Valid: true}
	}
	// SW: (x0..xm, y0..ym) — always present, it is the anchor quadrant.
	out[SW] = ChildRect{Rect: Rectangle{r.X0, r.Y0, xm, ym}, Valid: true}
	// SE: (xm+1..x1, y0..ym)
	if xm+1 <= r.X1 {
		out[SE] = ChildRect{Rect: Rectangle{xm + 1, r.Y0, r.X1, ym}, Valid: true}
	}
	return out
}

// ChildRect pairs a subdivision rectangle with whether it exists; a
// degenerate axis produces fewer than four logical children.
type ChildRect struct {
	Rect  Rectangle
	Valid bool
}

// ChildFor determines which quadrant of r contains (x,y), using the tie
// rule from the runtime traversal contract: xm belongs to the west
// (SW/NW) column, ym belongs to the south (SW/SE) row.
func (r Rectangle) ChildFor(x, y int) Child {
	xm, ym := r.Midpoints()
	west := x <= xm
	south := y <= ym
	switch {
	case south && west:
		return SW
	case south && !west:
		return SE
	case !south && west:
		return NW
	default:
		return NE
	}
}

// SamplePoints returns a deterministic set of up to count points: the
// rectangle's corners, its center, stratified thirds along each axis, and
// pseudo-random interior points drawn from a rectangle-seeded source.
// Duplicates are removed and the result is capped at count.
func (r Rectangle) SamplePoints(count int, seed uint64) []Point {
	rng := rand.New(rand.NewSource(int64(seed)))

	pts := make([]Point, 0, count+8)
	add := func(x, y int) {
		pts = append(pts, Point{X: x, Y: y})
	}

	// Corners (deduplicated below).
	add(r.X0, r.Y0)
	add(r.X1, r.Y0)
	add(r.X0, r.Y1)
	add(r.X1, r.Y1)

	xm, ym := r.Midpoints()
	add(xm, ym)

	if r.Width() > 2 {
		xThird := r.X0 + r.Width()/3
		xTwoThirds := r.X0 + (2*r.Width())/3
		add(xThird, ym)
		add(xTwoThirds, ym)
	}
	if r.Height() > 2 {
		yThird := r.Y0 + r.Height()/3
		yTwoThirds := r.Y0 + (2*r.Height())/3
		add(xm, yThird)
		add(xm, yTwoThirds)
	}

	remaining := count - len(pts)
	if remaining > 0 && r.PointCount() > int64(len(pts)) {
		for i := 0; i < remaining; i++ {
			x := r.X0 + rng.Intn(r.Width())
			y := r.Y0 + rng.Intn(r.Height())
			add(x, y)
		}
	}

	return dedupCap(pts, count)
}

func dedupCap(pts []Point, count int) []Point {
	seen := make(map[Point]struct{}, len(pts))
	out := make([]Point, 0, len(pts))
	for _, p := range pts {
		if _, ok := seen[p]; ok {
			continue
		}
		seen[p] = struct{}{}
		out = append(out, p)
		if len(out) >= count {
			break
		}
	}
	return out
}

// Iter calls fn for every lattice point in the rectangle, row-major over y
// then x. The builder's brute-force verification uses it to enumerate a
// rectangle's points before sending them to the oracle in one batch.
func (r Rectangle) Iter(fn func(x, y int)) {
	for y := r.Y0; y <= r.Y1; y++ {
		for x := r.X0; x <= r.X1; x++ {
			fn(x, y)
		}
	}
}
