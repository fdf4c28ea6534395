// Package oracle defines the country-lookup contract the builder consults
// while proving or splitting rectangles, plus the concrete backends this
// repository ships: synthetic mocks, a GeoJSON point-in-polygon index, and
// a PostgreSQL/PostGIS-backed implementation.
package oracle

import "context"

// OceanID is the reserved country id for "no country" — ocean or
// international waters. It maps to the empty ISO code in every country
// table.
const OceanID uint16 = 0

// Point is a lattice coordinate, (ilat, ilon) order to match the Oracle
// contract in the specification.
type Point struct {
	ILat, ILon int
}

// Oracle is a pure, deterministic, reentrant function from lattice points
// to country ids. Implementations must be referentially transparent for
// the duration of a build: the builder assumes repeated calls with the
// same point return the same id.
type Oracle interface {
	// Lookup returns the country id for a single lattice point.
	Lookup(ctx context.Context, ilat, ilon int) (uint16, error)

	// LookupBatch returns country ids for points in the same order. The
	// default behavior implemented by Func is to call Lookup once per
	// point; Postgres overrides this with one query for the whole slice,
	// and GeoJSON with a feature-major loop over the slice.
	LookupBatch(ctx context.Context, points []Point) ([]uint16, error)

	// CountryCodes returns the id -> ISO code mapping this oracle knows
	// about. OceanID need not be present; callers treat it as "" anyway.
	CountryCodes() map[uint16]string
}

// Func adapts a plain function into an Oracle, with a fixed country-code
// table. LookupBatch falls back to calling Lookup per point.
type Func struct {
	F     func(ctx context.Context, ilat, ilon int) (uint16, error)
	Codes map[uint16]string
}

func (f Func) Lookup(ctx context.Context, ilat, ilon int) (uint16, error) {
	return f.F(ctx, ilat, ilon)
}

func (f Func) LookupBatch(ctx context.Context, points []Point) ([]uint16, error) {
	out := make([]uint16, len(points))
	for i, p := range points {
		id, err := f.F(ctx, p.ILat, p.ILon)
		if err != nil {
			return nil, err
		}
		out[i] = id
	}
	return out, nil
}

func (f Func) CountryCodes() map[uint16]string {
	return f.Codes
}
