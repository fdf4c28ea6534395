// Package builder implements the prove-or-split recursion that turns an
// Oracle into a quadtree.Node: sample a rectangle's points, brute-force
// verify unanimous samples against a size budget, and split on
// disagreement or when a unanimous rectangle is still too large to prove
// cheaply.
package builder

import (
	"context"
	"errors"
	"fmt"
	"hash/fnv"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"geoquad/internal/logger"
	"geoquad/internal/metrics"
	"geoquad/internal/oracle"
	"geoquad/internal/quadtree"
)

// ErrCanceled wraps ctx.Err() when a build is aborted mid-recursion.
var ErrCanceled = errors.New("builder: build canceled")

// ErrOracle wraps an error returned by the oracle during a build.
var ErrOracle = errors.New("builder: oracle call failed")

// Build runs the full recursion from the root rectangle and returns the
// resulting tree along with counters describing the work performed.
// Sibling leaves sharing one country id are merged by a Canonicalize
// post-pass; Stats counts the nodes the recursion created before it.
func Build(ctx context.Context, o oracle.Oracle, xmax, ymax int, cfg Config) (*quadtree.Node, Stats, error) {
	start := time.Now()
	b := &run{oracle: o, cfg: cfg}

	root := quadtree.Root(xmax, ymax)
	node, err := b.build(ctx, root, 0)
	stats := b.snapshot()
	stats.Duration = time.Since(start)
	metrics.BuildDurationSeconds.Observe(stats.Duration.Seconds())
	if err != nil {
		return nil, stats, err
	}
	return quadtree.Canonicalize(node), stats, nil
}

type run struct {
	oracle oracle.Oracle
	cfg    Config

	nodesCreated            atomic.Int64
	leavesCreated           atomic.Int64
	samplingMixed           atomic.Int64
	bruteForceVerifications atomic.Int64
	bruteForceFailures      atomic.Int64
	depthGuardTriggered     atomic.Int64
	oracleCalls             atomic.Int64
	oracleBatchCalls        atomic.Int64
}

func (b *run) snapshot() Stats {
	return Stats{
		NodesCreated:            b.nodesCreated.Load(),
		LeavesCreated:           b.leavesCreated.Load(),
		SamplingMixed:           b.samplingMixed.Load(),
		BruteForceVerifications: b.bruteForceVerifications.Load(),
		BruteForceFailures:      b.bruteForceFailures.Load(),
		DepthGuardTriggered:     b.depthGuardTriggered.Load(),
		OracleCalls:             b.oracleCalls.Load(),
		OracleBatchCalls:        b.oracleBatchCalls.Load(),
	}
}

func (b *run) build(ctx context.Context, rect quadtree.Rectangle, depth int) (*quadtree.Node, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCanceled, err)
	}

	if rect.IsPoint() {
		id, err := b.lookupOne(ctx, rect.Y0, rect.X0)
		if err != nil {
			return nil, err
		}
		return b.leaf(id), nil
	}

	seed := rectSeed(rect, b.cfg.RNGSeed)
	samples := rect.SamplePoints(b.cfg.SampleCount, seed)
	ids, err := b.lookupBatch(ctx, samples)
	if err != nil {
		return nil, err
	}

	unanimous, candidate := allSame(ids)
	if !unanimous {
		b.samplingMixed.Add(1)
		metrics.SamplingMixedTotal.Inc()
		return b.split(ctx, rect, depth)
	}

	smallEnough := rect.PointCount() <= b.cfg.BruteForceMaxPoints
	atDepthLimit := depth >= b.cfg.MaxDepth

	switch {
	case smallEnough:
		ok, err := b.bruteForceVerify(ctx, rect, candidate)
		if err != nil {
			return nil, err
		}
		b.bruteForceVerifications.Add(1)
		metrics.BruteForceVerificationsTotal.Inc()
		if ok {
			return b.leaf(candidate), nil
		}
		b.bruteForceFailures.Add(1)
		metrics.BruteForceFailuresTotal.Inc()
		if atDepthLimit {
			b.depthGuardTriggered.Add(1)
			metrics.DepthGuardTriggeredTotal.Inc()
			logger.L().Warn("builder: depth limit reached with failed proof, accepting sampled country",
				"rect", rect, "depth", depth, "country", candidate)
			return b.leaf(candidate), nil
		}
		return b.split(ctx, rect, depth)

	case atDepthLimit:
		b.depthGuardTriggered.Add(1)
		metrics.DepthGuardTriggeredTotal.Inc()
		logger.L().Warn("builder: depth limit reached before brute-force budget, accepting unanimous sample",
			"rect", rect, "depth", depth, "country", candidate, "points", rect.PointCount())
		return b.leaf(candidate), nil

	default:
		return b.split(ctx, rect, depth)
	}
}

func (b *run) leaf(id uint16) *quadtree.Node {
	b.nodesCreated.Add(1)
	b.leavesCreated.Add(1)
	metrics.NodesCreatedTotal.Inc()
	metrics.LeavesCreatedTotal.Inc()
	return quadtree.NewLeaf(id)
}

func (b *run) internal(children [4]*quadtree.Node) *quadtree.Node {
	b.nodesCreated.Add(1)
	metrics.NodesCreatedTotal.Inc()
	return quadtree.NewInternal(children)
}

// split recurses into the rectangle's four quadrants. The top-level call
// (depth 0) fans out across goroutines when cfg.Parallel is set; every
// other level recurses directly to keep goroutine count bounded.
func (b *run) split(ctx context.Context, rect quadtree.Rectangle, depth int) (*quadtree.Node, error) {
	childRects := rect.Subdivide()

	if b.cfg.Parallel && depth == 0 {
		return b.splitParallel(ctx, childRects)
	}

	var children [4]*quadtree.Node
	for i, cr := range childRects {
		if !cr.Valid {
			continue
		}
		child, err := b.build(ctx, cr.Rect, depth+1)
		if err != nil {
			return nil, err
		}
		children[i] = child
	}
	return b.internal(children), nil
}

func (b *run) splitParallel(ctx context.Context, childRects [4]quadtree.ChildRect) (*quadtree.Node, error) {
	var children [4]*quadtree.Node
	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)

	for i, cr := range childRects {
		if !cr.Valid {
			continue
		}
		i, cr := i, cr
		g.Go(func() error {
			child, err := b.build(gctx, cr.Rect, 1)
			if err != nil {
				return err
			}
			mu.Lock()
			children[i] = child
			mu.Unlock()
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return b.internal(children), nil
}

func (b *run) lookupOne(ctx context.Context, ilat, ilon int) (uint16, error) {
	b.oracleCalls.Add(1)
	metrics.OracleCallsTotal.Inc()
	id, err := b.oracle.Lookup(ctx, ilat, ilon)
	if err != nil {
		return oracle.OceanID, fmt.Errorf("%w: %v", ErrOracle, err)
	}
	return id, nil
}

func (b *run) lookupBatch(ctx context.Context, pts []quadtree.Point) ([]uint16, error) {
	b.oracleBatchCalls.Add(1)
	metrics.OracleBatchCallsTotal.Inc()
	op := make([]oracle.Point, len(pts))
	for i, p := range pts {
		op[i] = oracle.Point{ILat: p.Y, ILon: p.X}
	}
	ids, err := b.oracle.LookupBatch(ctx, op)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrOracle, err)
	}
	return ids, nil
}

// bruteForceVerify checks every lattice point in rect against candidate,
// short-circuiting on the first disagreement. It batches the whole
// rectangle through LookupBatch rather than issuing one call per point.
func (b *run) bruteForceVerify(ctx context.Context, rect quadtree.Rectangle, candidate uint16) (bool, error) {
	var pts []quadtree.Point
	rect.Iter(func(x, y int) {
		pts = append(pts, quadtree.Point{X: x, Y: y})
	})
	ids, err := b.lookupBatch(ctx, pts)
	if err != nil {
		return false, err
	}
	for _, id := range ids {
		if id != candidate {
			return false, nil
		}
	}
	return true, nil
}

func allSame(ids []uint16) (bool, uint16) {
	if len(ids) == 0 {
		return true, oracle.OceanID
	}
	first := ids[0]
	for _, id := range ids[1:] {
		if id != first {
			return false, first
		}
	}
	return true, first
}

// rectSeed derives a deterministic per-rectangle seed from the global
// RNG seed so concurrent builds never share a math/rand source: each
// rectangle gets its own, computed from its own bounds.
func rectSeed(rect quadtree.Rectangle, global uint64) uint64 {
	h := fnv.New64a()
	fmt.Fprintf(h, "%d:%d:%d:%d:%d", rect.X0, rect.Y0, rect.X1, rect.Y1, global)
	return h.Sum64()
}
