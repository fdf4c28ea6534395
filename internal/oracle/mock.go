package oracle

import "context"

// RectangleOracle assigns fixed rectangular "countries" on the lattice,
// falling back to OceanID outside all of them. It is the default
// --oracle kind used by the build CLI and by builder tests that need
// axis-aligned borders (scenario S3).
type RectangleOracle struct {
	precision int
	q         int
	rects     []namedRect
	codes     map[uint16]string
}

type namedRect struct {
	x0, y0, x1, y1 int
	id             uint16
}

// NewRectangleOracle builds a small set of rectangular regions scaled to
// the given precision, loosely shaped like continents so builder stats
// stay representative across precisions.
func NewRectangleOracle(precision int) *RectangleOracle {
	q := pow10(precision)
	o := &RectangleOracle{precision: precision, q: q}
	o.rects = []namedRect{
		{60 * q, 100 * q, 120 * q, 140 * q, 1},
		{110 * q, 50 * q, 150 * q, 90 * q, 2},
		{170 * q, 115 * q, 210 * q, 160 * q, 3},
		{255 * q, 100 * q, 300 * q, 140 * q, 4},
		{290 * q, 40 * q, 330 * q, 75 * q, 5},
	}
	o.codes = map[uint16]string{1: "US", 2: "BR", 3: "EU", 4: "CN", 5: "AU"}
	return o
}

func (o *RectangleOracle) Lookup(_ context.Context, ilat, ilon int) (uint16, error) {
	for _, r := range o.rects {
		if ilon >= r.x0 && ilon <= r.x1 && ilat >= r.y0 && ilat <= r.y1 {
			return r.id, nil
		}
	}
	return OceanID, nil
}

func (o *RectangleOracle) LookupBatch(ctx context.Context, points []Point) ([]uint16, error) {
	out := make([]uint16, len(points))
	for i, p := range points {
		out[i], _ = o.Lookup(ctx, p.ILat, p.ILon)
	}
	return out, nil
}

func (o *RectangleOracle) CountryCodes() map[uint16]string { return o.codes }

// CircleOracle assigns circular "countries", useful for exercising
// border refinement against non-axis-aligned shapes.
type CircleOracle struct {
	circles []circle
	codes   map[uint16]string
}

type circle struct {
	cx, cy, r int
	id        uint16
}

func NewCircleOracle(precision int) *CircleOracle {
	q := pow10(precision)
	o := &CircleOracle{}
	o.circles = []circle{
		{150 * q, 120 * q, 20 * q, 1},
		{190 * q, 135 * q, 15 * q, 2},
		{280 * q, 125 * q, 25 * q, 3},
		{130 * q, 60 * q, 18 * q, 4},
		{310 * q, 55 * q, 12 * q, 5},
	}
	o.codes = map[uint16]string{1: "C1", 2: "C2", 3: "C3", 4: "C4", 5: "C5"}
	return o
}

func (o *CircleOracle) Lookup(_ context.Context, ilat, ilon int) (uint16, error) {
	for _, c := range o.circles {
		dx, dy := ilon-c.cx, ilat-c.cy
		if dx*dx+dy*dy <= c.r*c.r {
			return c.id, nil
		}
	}
	return OceanID, nil
}

func (o *CircleOracle) LookupBatch(ctx context.Context, points []Point) ([]uint16, error) {
	out := make([]uint16, len(points))
	for i, p := range points {
		out[i], _ = o.Lookup(ctx, p.ILat, p.ILon)
	}
	return out, nil
}

func (o *CircleOracle) CountryCodes() map[uint16]string { return o.codes }

// SimpleOracle splits the lattice into north/south hemispheres with an
// ocean band around the equator; it is the cheapest oracle for smoke
// testing the CLI end-to-end (scenario S2-adjacent).
type SimpleOracle struct {
	q int
}

func NewSimpleOracle(precision int) *SimpleOracle {
	return &SimpleOracle{q: pow10(precision)}
}

func (o *SimpleOracle) Lookup(_ context.Context, ilat, _ int) (uint16, error) {
	midLat := 90 * o.q
	oceanBand := 5 * o.q
	if abs(ilat-midLat) < oceanBand {
		return OceanID, nil
	}
	if ilat > midLat {
		return 1, nil
	}
	return 2, nil
}

func (o *SimpleOracle) LookupBatch(ctx context.Context, points []Point) ([]uint16, error) {
	out := make([]uint16, len(points))
	for i, p := range points {
		out[i], _ = o.Lookup(ctx, p.ILat, p.ILon)
	}
	return out, nil
}

func (o *SimpleOracle) CountryCodes() map[uint16]string {
	return map[uint16]string{1: "NO", 2: "SO"}
}

// GridOracle paints a checkerboard of alternating countries, used to
// stress-test the builder's split behavior (every cell is a border cell).
// When cellsPerDegree exceeds 10^precision the cell size truncates to zero
// and every point maps to country 1.
type GridOracle struct {
	cellSize int
}

func NewGridOracle(precision, cellsPerDegree int) *GridOracle {
	q := pow10(precision)
	cs := q / cellsPerDegree
	return &GridOracle{cellSize: cs}
}

func (o *GridOracle) Lookup(_ context.Context, ilat, ilon int) (uint16, error) {
	if o.cellSize == 0 {
		return 1, nil
	}
	cx, cy := ilon/o.cellSize, ilat/o.cellSize
	if (cx+cy)%2 == 0 {
		return 1, nil
	}
	return 2, nil
}

func (o *GridOracle) LookupBatch(ctx context.Context, points []Point) ([]uint16, error) {
	out := make([]uint16, len(points))
	for i, p := range points {
		out[i], _ = o.Lookup(ctx, p.ILat, p.ILon)
	}
	return out, nil
}

func (o *GridOracle) CountryCodes() map[uint16]string {
	return map[uint16]string{1: "A1", 2: "A2"}
}

func pow10(p int) int {
	n := 1
	for i := 0; i < p; i++ {
		n *= 10
	}
	return n
}

func abs(x int) int {
	if x < 0 {
		return -x
	}
	return x
}
