package builder

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"geoquad/internal/oracle"
	"geoquad/internal/quadtree"
)

// allOceanOracle always returns OceanID; the smallest possible tree is a
// single leaf (scenario: whole world is one country).
type allOceanOracle struct{}

func (allOceanOracle) Lookup(context.Context, int, int) (uint16, error) { return oracle.OceanID, nil }
func (allOceanOracle) LookupBatch(_ context.Context, pts []oracle.Point) ([]uint16, error) {
	out := make([]uint16, len(pts))
	return out, nil
}
func (allOceanOracle) CountryCodes() map[uint16]string { return nil }

func TestBuildUniformOracleYieldsSingleLeaf(t *testing.T) {
	cfg := DefaultConfig(1)
	node, stats, err := Build(context.Background(), allOceanOracle{}, 3599, 1799, cfg)
	require.NoError(t, err)
	assert.True(t, node.Leaf)
	assert.Equal(t, oracle.OceanID, node.Country)
	// The 3600x1800 root splits six levels before its rectangles fit the
	// 4096-point brute-force budget; Canonicalize then merges the 4^6
	// proven leaves into the single leaf checked above.
	assert.Equal(t, int64(4096), stats.LeavesCreated)
	assert.Equal(t, int64(0), stats.SamplingMixed)
}

func TestBuildRectangleOracleMatchesReference(t *testing.T) {
	precision := 0
	o := oracle.NewRectangleOracle(precision)
	xmax, ymax := 359, 179
	cfg := DefaultConfig(precision)
	cfg.SampleCount = 10
	cfg.BruteForceMaxPoints = 256

	node, stats, err := Build(context.Background(), o, xmax, ymax, cfg)
	require.NoError(t, err)
	require.Greater(t, stats.NodesCreated, int64(1))

	root := quadtree.Root(xmax, ymax)
	for ilat := 0; ilat <= ymax; ilat += 7 {
		for ilon := 0; ilon <= xmax; ilon += 7 {
			want, err := o.Lookup(context.Background(), ilat, ilon)
			require.NoError(t, err)
			got := node.Lookup(ilon, ilat, root)
			assert.Equal(t, want, got, "mismatch at (%d,%d)", ilat, ilon)
		}
	}
}

func TestBuildGridOracleForcesManySplits(t *testing.T) {
	// Precision 1 with 8 cells per degree gives one-unit checkerboard cells.
	o := oracle.NewGridOracle(1, 8)
	cfg := DefaultConfig(0)
	cfg.SampleCount = 8
	cfg.BruteForceMaxPoints = 64

	_, stats, err := Build(context.Background(), o, 63, 63, cfg)
	require.NoError(t, err)
	assert.Greater(t, stats.SamplingMixed, int64(0))
	assert.Greater(t, stats.NodesCreated, stats.LeavesCreated)
}

func TestBuildDepthGuardAcceptsUnanimousSampleWithoutFullProof(t *testing.T) {
	o := oracle.NewGridOracle(0, 64)
	cfg := DefaultConfig(0)
	cfg.SampleCount = 4
	cfg.BruteForceMaxPoints = 1
	cfg.MaxDepth = 1

	_, stats, err := Build(context.Background(), o, 255, 255, cfg)
	require.NoError(t, err)
	assert.Greater(t, stats.DepthGuardTriggered, int64(0))
}

func TestBuildCancellationPropagates(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	o := oracle.NewGridOracle(0, 8)
	cfg := DefaultConfig(0)
	_, _, err := Build(ctx, o, 63, 63, cfg)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrCanceled)
}

func TestBuildParallelMatchesSequentialTree(t *testing.T) {
	o := oracle.NewCircleOracle(0)
	cfgSeq := DefaultConfig(0)
	cfgSeq.SampleCount = 10
	cfgSeq.BruteForceMaxPoints = 128
	cfgSeq.Parallel = false

	cfgPar := cfgSeq
	cfgPar.Parallel = true

	seqNode, _, err := Build(context.Background(), o, 359, 179, cfgSeq)
	require.NoError(t, err)
	parNode, _, err := Build(context.Background(), o, 359, 179, cfgPar)
	require.NoError(t, err)

	assert.True(t, quadtree.Equal(seqNode, parNode))
}

type erroringOracle struct{}

func (erroringOracle) Lookup(context.Context, int, int) (uint16, error) {
	return oracle.OceanID, assert.AnError
}
func (erroringOracle) LookupBatch(_ context.Context, pts []oracle.Point) ([]uint16, error) {
	return nil, assert.AnError
}
func (erroringOracle) CountryCodes() map[uint16]string { return nil }

func TestBuildWrapsOracleError(t *testing.T) {
	cfg := DefaultConfig(0)
	_, _, err := Build(context.Background(), erroringOracle{}, 63, 63, cfg)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrOracle)
}

func TestRectSeedDeterministic(t *testing.T) {
	r := quadtree.Rectangle{X0: 1, Y0: 2, X1: 3, Y1: 4}
	assert.Equal(t, rectSeed(r, 99), rectSeed(r, 99))
	assert.NotEqual(t, rectSeed(r, 99), rectSeed(r, 100))
}

func TestBuildRespectsContextBeforeExpensiveOracle(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), time.Nanosecond)
	defer cancel()
	time.Sleep(time.Millisecond)

	o := oracle.NewGridOracle(0, 4)
	cfg := DefaultConfig(0)
	_, _, err := Build(ctx, o, 255, 255, cfg)
	require.Error(t, err)
}
