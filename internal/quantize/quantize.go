// Package quantize converts between WGS84 coordinates and the integer
// lattice used by the quadtree builder and the runtime traversal. Both
// sides of that boundary must agree bit-for-bit on the rounding rule, so
// this package has no knobs beyond precision.
package quantize

import "math"

// Grid returns the maximum valid longitude and latitude index for a given
// precision. Q = 10^p; indices span [0, Xmax] and [0, Ymax] inclusive.
func Grid(precision int) (xmax, ymax int) {
	q := pow10(precision)
	return 360 * q, 180 * q
}

func pow10(p int) int {
	n := 1
	for i := 0; i < p; i++ {
		n *= 10
	}
	return n
}

// Clamp restricts lat/lon to the valid WGS84 ranges.
func Clamp(lat, lon float64) (float64, float64) {
	if lat > 90 {
		lat = 90
	} else if lat < -90 {
		lat = -90
	}
	if lon > 180 {
		lon = 180
	} else if lon < -180 {
		lon = -180
	}
	return lat, lon
}

// roundHalfAwayFromZero matches C's round(), which both the builder and any
// host-language runtime must reproduce for the lattice to agree.
func roundHalfAwayFromZero(x float64) int {
	if x >= 0 {
		return int(x + 0.5)
	}
	return int(x - 0.5)
}

// Quantize converts WGS84 coordinates to lattice indices at the given
// precision. lat/lon are clamped first; the result is clamped again to
// absorb floating-point edge cases at the boundary.
func Quantize(lat, lon float64, precision int) (ilat, ilon int) {
	lat, lon = Clamp(lat, lon)
	q := pow10(precision)
	xmax, ymax := Grid(precision)

	ilon = roundHalfAwayFromZero((lon + 180.0) * float64(q))
	ilat = roundHalfAwayFromZero((lat + 90.0) * float64(q))

	ilon = clampInt(ilon, 0, xmax)
	ilat = clampInt(ilat, 0, ymax)
	return ilat, ilon
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// Dequantize returns the cell-center WGS84 coordinates for a lattice point.
// Useful for oracles that only accept floating coordinates (e.g. a PostGIS
// ST_Contains query); it is not used by the traversal itself.
func Dequantize(ilat, ilon, precision int) (lat, lon float64) {
	q := float64(pow10(precision))
	lon = float64(ilon)/q - 180.0
	lat = float64(ilat)/q - 90.0
	return lat, lon
}

// QFactor returns 10^precision as a float64, for callers that need the
// scale factor directly (e.g. the stats CLI command).
func QFactor(precision int) float64 {
	return math.Pow(10, float64(precision))
}
