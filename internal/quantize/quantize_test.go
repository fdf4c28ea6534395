package quantize

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGrid(t *testing.T) {
	xmax, ymax := Grid(0)
	assert.Equal(t, 360, xmax)
	assert.Equal(t, 180, ymax)

	xmax, ymax = Grid(2)
	assert.Equal(t, 36000, xmax)
	assert.Equal(t, 18000, ymax)
}

func TestQuantizeBounds(t *testing.T) {
	for _, p := range []int{0, 1, 2, 3} {
		xmax, ymax := Grid(p)
		for _, lat := range []float64{-90, -45, 0, 45, 90} {
			for _, lon := range []float64{-180, -90, 0, 90, 180} {
				ilat, ilon := Quantize(lat, lon, p)
				assert.GreaterOrEqual(t, ilat, 0)
				assert.LessOrEqual(t, ilat, ymax)
				assert.GreaterOrEqual(t, ilon, 0)
				assert.LessOrEqual(t, ilon, xmax)
			}
		}
	}
}

func TestQuantizeCorners(t *testing.T) {
	xmax, ymax := Grid(0)

	_, ilon := Quantize(0, 180, 0)
	assert.Equal(t, xmax, ilon)

	_, ilon = Quantize(0, -180, 0)
	assert.Equal(t, 0, ilon)

	ilat, _ := Quantize(90, 0, 0)
	assert.Equal(t, ymax, ilat)

	ilat, _ = Quantize(-90, 0, 0)
	assert.Equal(t, 0, ilat)
}

func TestQuantizeDistinctPoles(t *testing.T) {
	_, ilonEast := Quantize(0, 180, 1)
	_, ilonWest := Quantize(0, -180, 1)
	assert.NotEqual(t, ilonWest, ilonEast)
}

func TestQuantizeMonotonic(t *testing.T) {
	lats := []float64{-90, -60, -30, -0.5, 0, 0.5, 30, 60, 90}
	prevLat := -1
	for _, lat := range lats {
		ilat, _ := Quantize(lat, 0, 2)
		assert.GreaterOrEqual(t, ilat, prevLat)
		prevLat = ilat
	}

	lons := []float64{-180, -90, -0.5, 0, 0.5, 90, 180}
	prevLon := -1
	for _, lon := range lons {
		_, ilon := Quantize(0, lon, 2)
		assert.GreaterOrEqual(t, ilon, prevLon)
		prevLon = ilon
	}
}

func TestQuantizeClampsOutOfRange(t *testing.T) {
	ilat, ilon := Quantize(200, 400, 0)
	xmax, ymax := Grid(0)
	assert.Equal(t, ymax, ilat)
	assert.Equal(t, xmax, ilon)

	ilat, ilon = Quantize(-200, -400, 0)
	assert.Equal(t, 0, ilat)
	assert.Equal(t, 0, ilon)
}

func TestRoundHalfAwayFromZero(t *testing.T) {
	assert.Equal(t, 1, roundHalfAwayFromZero(0.5))
	assert.Equal(t, -1, roundHalfAwayFromZero(-0.5))
	assert.Equal(t, 2, roundHalfAwayFromZero(1.5))
	assert.Equal(t, -2, roundHalfAwayFromZero(-1.5))
}

func TestDequantizeRoundTrip(t *testing.T) {
	ilat, ilon := Quantize(12.34, 56.78, 2)
	lat, lon := Dequantize(ilat, ilon, 2)
	assert.InDelta(t, 12.34, lat, 0.01)
	assert.InDelta(t, 56.78, lon, 0.01)
}
