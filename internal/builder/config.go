package builder

import "time"

// Config controls how aggressively the builder samples, when it commits
// to a brute-force proof, and how deep it is willing to recurse before
// giving up on an exact result.
type Config struct {
	// Precision is the lattice precision the root rectangle was quantized
	// at; the builder itself does not read it.
	Precision int

	// SampleCount bounds how many points Rectangle.SamplePoints draws
	// before the builder decides a rectangle is mixed or unanimous.
	SampleCount int

	// BruteForceMaxPoints is the largest rectangle, by lattice point
	// count, the builder will exhaustively verify once sampling comes
	// back unanimous. Rectangles larger than this keep splitting even
	// when every sample agrees.
	BruteForceMaxPoints int64

	// MaxDepth caps recursion. At the limit the builder accepts the
	// unanimous sample result without a full brute-force proof rather
	// than recursing forever on an oracle with no stable tiling (e.g. a
	// fractal coastline at an unreasonably fine precision).
	MaxDepth int

	// RNGSeed seeds the deterministic per-rectangle sampler; the same
	// seed and oracle always produce the same tree.
	RNGSeed uint64

	// Parallel enables splitting the four top-level children across
	// goroutines via errgroup. Nested splits always run sequentially —
	// the fan-out is deliberately shallow to bound goroutine count.
	Parallel bool
}

// DefaultConfig returns sane defaults for interactive use and tests.
func DefaultConfig(precision int) Config {
	return Config{
		Precision:           precision,
		SampleCount:         12,
		BruteForceMaxPoints: 4096,
		MaxDepth:            48,
		RNGSeed:             0x5eed,
		Parallel:            false,
	}
}

// Stats accumulates counters describing one build run, mirroring the
// Prometheus series in internal/metrics so the CLI can print a summary
// even when no metrics server is running.
type Stats struct {
	NodesCreated             int64
	LeavesCreated            int64
	SamplingMixed            int64
	BruteForceVerifications  int64
	BruteForceFailures       int64
	DepthGuardTriggered      int64
	OracleCalls              int64
	OracleBatchCalls         int64
	Duration                 time.Duration
}
