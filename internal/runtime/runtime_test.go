package runtime

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"geoquad/internal/builder"
	"geoquad/internal/oracle"
	"geoquad/internal/quadtree"
	"geoquad/internal/quantize"
	"geoquad/internal/serialize"
)

func buildAndEncode(t *testing.T, o oracle.Oracle, precision, xmax, ymax int, compress bool) ([]byte, *quadtree.Node) {
	t.Helper()
	cfg := builder.DefaultConfig(precision)
	cfg.SampleCount = 10
	cfg.BruteForceMaxPoints = 256

	node, _, err := builder.Build(context.Background(), o, xmax, ymax, cfg)
	require.NoError(t, err)

	header := serialize.Header{
		Precision: precision,
		Xmax:      xmax,
		Ymax:      ymax,
		BuildID:   "test-build",
		Countries: serialize.BuildCountryTable(o.CountryCodes()),
	}
	blob, err := serialize.Encode(node, header, compress)
	require.NoError(t, err)
	return blob, node
}

func TestStreamingLookupMatchesTreeLookup(t *testing.T) {
	o := oracle.NewRectangleOracle(0)
	blob, node := buildAndEncode(t, o, 0, 359, 179, false)

	table, err := Open(blob)
	require.NoError(t, err)

	root := quadtree.Root(359, 179)
	for ilat := 0; ilat <= 179; ilat += 3 {
		for ilon := 0; ilon <= 359; ilon += 3 {
			want := node.Lookup(ilon, ilat, root)
			got, err := table.LookupQuantized(ilat, ilon)
			require.NoError(t, err)
			assert.Equal(t, want, got, "mismatch at (%d,%d)", ilat, ilon)
		}
	}
}

func TestStreamingLookupMatchesCompressedArtifact(t *testing.T) {
	o := oracle.NewCircleOracle(0)
	blob, node := buildAndEncode(t, o, 0, 359, 179, true)

	table, err := Open(blob)
	require.NoError(t, err)

	root := quadtree.Root(359, 179)
	for ilat := 0; ilat <= 179; ilat += 5 {
		for ilon := 0; ilon <= 359; ilon += 5 {
			want := node.Lookup(ilon, ilat, root)
			got, err := table.LookupQuantized(ilat, ilon)
			require.NoError(t, err)
			assert.Equal(t, want, got)
		}
	}
}

func TestOpenMatchesSerializeDecodeHeader(t *testing.T) {
	o := oracle.NewSimpleOracle(1)
	blob, _ := buildAndEncode(t, o, 1, 3599, 1799, false)

	table, err := Open(blob)
	require.NoError(t, err)

	_, header, err := serialize.Decode(blob)
	require.NoError(t, err)

	assert.Equal(t, header.Precision, table.Precision())
	xmax, ymax := table.Bounds()
	assert.Equal(t, header.Xmax, xmax)
	assert.Equal(t, header.Ymax, ymax)
	assert.Equal(t, header.Countries.Codes(), table.Countries().Codes())
}

func TestLookupUsesLatLonQuantization(t *testing.T) {
	o := oracle.NewSimpleOracle(1)
	blob, _ := buildAndEncode(t, o, 1, 3599, 1799, false)
	table, err := Open(blob)
	require.NoError(t, err)

	ilat, ilon := quantize.Quantize(45, 10, 1)
	want, err := table.LookupQuantized(ilat, ilon)
	require.NoError(t, err)

	got, err := table.Lookup(45, 10)
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestOpenRejectsGarbage(t *testing.T) {
	_, err := Open([]byte("not a geoquad artifact"))
	assert.Error(t, err)
}
