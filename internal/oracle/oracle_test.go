package oracle

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRectangleOracleInsideAndOutside(t *testing.T) {
	o := NewRectangleOracle(2)
	ctx := context.Background()

	id, err := o.Lookup(ctx, 120*100, 80*100)
	require.NoError(t, err)
	assert.Equal(t, uint16(1), id)

	id, err = o.Lookup(ctx, 0, 0)
	require.NoError(t, err)
	assert.Equal(t, OceanID, id)
}

func TestRectangleOracleBatchMatchesSingle(t *testing.T) {
	o := NewRectangleOracle(1)
	ctx := context.Background()
	pts := []Point{{ILat: 1100, ILon: 900}, {ILat: 0, ILon: 0}, {ILat: 600, ILon: 2700}}

	batch, err := o.LookupBatch(ctx, pts)
	require.NoError(t, err)
	for i, p := range pts {
		single, err := o.Lookup(ctx, p.ILat, p.ILon)
		require.NoError(t, err)
		assert.Equal(t, single, batch[i])
	}
}

func TestCircleOracleCenterIsInside(t *testing.T) {
	o := NewCircleOracle(2)
	ctx := context.Background()
	id, err := o.Lookup(ctx, 120*100, 150*100)
	require.NoError(t, err)
	assert.Equal(t, uint16(1), id)
}

func TestSimpleOracleHemispheres(t *testing.T) {
	o := NewSimpleOracle(1)
	ctx := context.Background()

	north, _ := o.Lookup(ctx, 1800, 0)
	south, _ := o.Lookup(ctx, 0, 0)
	band, _ := o.Lookup(ctx, 900, 0)

	assert.Equal(t, uint16(1), north)
	assert.Equal(t, uint16(2), south)
	assert.Equal(t, OceanID, band)
}

func TestGridOracleCheckerboard(t *testing.T) {
	o := NewGridOracle(1, 4)
	ctx := context.Background()
	a, _ := o.Lookup(ctx, 0, 0)
	b, _ := o.Lookup(ctx, 0, o.cellSize)
	assert.NotEqual(t, a, b)
}

const testGeoJSON = `{
  "type": "FeatureCollection",
  "features": [
    {
      "type": "Feature",
      "properties": {"iso_a2": "AA"},
      "geometry": {
        "type": "Polygon",
        "coordinates": [[[0,0],[0,10],[10,10],[10,0],[0,0]]]
      }
    },
    {
      "type": "Feature",
      "properties": {"iso_a2": "BB"},
      "geometry": {
        "type": "Polygon",
        "coordinates": [[[20,20],[20,30],[30,30],[30,20],[20,20]]]
      }
    }
  ]
}`

func TestLoadGeoJSONAssignsDenseIDs(t *testing.T) {
	o, err := LoadGeoJSON(strings.NewReader(testGeoJSON), 2)
	require.NoError(t, err)
	assert.Equal(t, map[uint16]string{1: "AA", 2: "BB"}, o.CountryCodes())
}

func TestGeoJSONOracleContainsAndMisses(t *testing.T) {
	o, err := LoadGeoJSON(strings.NewReader(testGeoJSON), 3)
	require.NoError(t, err)
	ctx := context.Background()

	ilat, ilon := quantizeTestPoint(5, 5, 3)
	id, err := o.Lookup(ctx, ilat, ilon)
	require.NoError(t, err)
	assert.Equal(t, uint16(1), id)

	ilat, ilon = quantizeTestPoint(-70, -170, 3)
	id, err = o.Lookup(ctx, ilat, ilon)
	require.NoError(t, err)
	assert.Equal(t, OceanID, id)
}

func quantizeTestPoint(lat, lon float64, precision int) (ilat, ilon int) {
	q := 1.0
	for i := 0; i < precision; i++ {
		q *= 10
	}
	return int((lat + 90) * q), int((lon + 180) * q)
}

type countingOracle struct {
	calls int
	id    uint16
}

func (c *countingOracle) Lookup(_ context.Context, _, _ int) (uint16, error) {
	c.calls++
	return c.id, nil
}

func (c *countingOracle) LookupBatch(ctx context.Context, points []Point) ([]uint16, error) {
	out := make([]uint16, len(points))
	for i := range points {
		out[i], _ = c.Lookup(ctx, 0, 0)
	}
	return out, nil
}

func (c *countingOracle) CountryCodes() map[uint16]string { return map[uint16]string{1: "XX"} }

func TestLRUCacheAvoidsRepeatedCalls(t *testing.T) {
	inner := &countingOracle{id: 1}
	cache := NewLRUCache(inner, 4)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		id, err := cache.Lookup(ctx, 10, 20)
		require.NoError(t, err)
		assert.Equal(t, uint16(1), id)
	}
	assert.Equal(t, 1, inner.calls)
}

func TestLRUCacheEvictsOldest(t *testing.T) {
	inner := &countingOracle{id: 1}
	cache := NewLRUCache(inner, 2)
	ctx := context.Background()

	cache.Lookup(ctx, 1, 1)
	cache.Lookup(ctx, 2, 2)
	cache.Lookup(ctx, 3, 3) // evicts (1,1)
	cache.Lookup(ctx, 1, 1) // miss again

	assert.Equal(t, 4, inner.calls)
}

func TestLRUCacheBatchSplitsHitsAndMisses(t *testing.T) {
	inner := &countingOracle{id: 7}
	cache := NewLRUCache(inner, 8)
	ctx := context.Background()

	cache.Lookup(ctx, 1, 1)
	out, err := cache.LookupBatch(ctx, []Point{{ILat: 1, ILon: 1}, {ILat: 2, ILon: 2}})
	require.NoError(t, err)
	assert.Equal(t, []uint16{7, 7}, out)
	assert.Equal(t, 2, inner.calls)
}

func newTestRedisClient(t *testing.T) *redis.Client {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)
	return redis.NewClient(&redis.Options{Addr: mr.Addr()})
}

func TestRedisCacheAvoidsRepeatedCalls(t *testing.T) {
	inner := &countingOracle{id: 1}
	client := newTestRedisClient(t)
	cache := NewRedisCache(inner, client, "geoquad:p2:", time.Minute)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		id, err := cache.Lookup(ctx, 10, 20)
		require.NoError(t, err)
		assert.Equal(t, uint16(1), id)
	}
	assert.Equal(t, 1, inner.calls)
}

func TestRedisCacheBatchSplitsHitsAndMisses(t *testing.T) {
	inner := &countingOracle{id: 7}
	client := newTestRedisClient(t)
	cache := NewRedisCache(inner, client, "geoquad:p2:", time.Minute)
	ctx := context.Background()

	cache.Lookup(ctx, 1, 1)
	out, err := cache.LookupBatch(ctx, []Point{{ILat: 1, ILon: 1}, {ILat: 2, ILon: 2}})
	require.NoError(t, err)
	assert.Equal(t, []uint16{7, 7}, out)
	assert.Equal(t, 2, inner.calls)
}

func TestRedisCacheFlushForcesRecompute(t *testing.T) {
	inner := &countingOracle{id: 1}
	client := newTestRedisClient(t)
	cache := NewRedisCache(inner, client, "geoquad:p2:", time.Minute)
	ctx := context.Background()

	_, err := cache.Lookup(ctx, 10, 20)
	require.NoError(t, err)
	assert.Equal(t, 1, inner.calls)

	require.NoError(t, cache.Flush(ctx))

	_, err = cache.Lookup(ctx, 10, 20)
	require.NoError(t, err)
	assert.Equal(t, 2, inner.calls, "flush should force the next lookup to miss the cache")
}
