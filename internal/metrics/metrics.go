// Package metrics registers the Prometheus collectors the builder and
// oracles report against, and exposes them over /metrics for the CLI's
// optional --metrics-addr server.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	NodesCreatedTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "geoquad_nodes_created_total",
		Help: "Total quadtree nodes created by the builder, leaves and internal combined",
	})
	LeavesCreatedTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "geoquad_leaves_created_total",
		Help: "Total leaf nodes created by the builder",
	})
	SamplingMixedTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "geoquad_sampling_mixed_total",
		Help: "Total rectangles whose sample points disagreed, forcing a split",
	})
	BruteForceVerificationsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "geoquad_brute_force_verifications_total",
		Help: "Total rectangles brute-force verified after unanimous sampling",
	})
	BruteForceFailuresTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "geoquad_brute_force_failures_total",
		Help: "Total brute-force verifications that found a disagreeing point",
	})
	DepthGuardTriggeredTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "geoquad_depth_guard_triggered_total",
		Help: "Total rectangles resolved by the max-depth fallback instead of proof",
	})
	OracleCallsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "geoquad_oracle_calls_total",
		Help: "Total single-point oracle lookups issued during a build",
	})
	OracleBatchCallsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "geoquad_oracle_batch_calls_total",
		Help: "Total batched oracle lookups issued during a build",
	})
	BuildDurationSeconds = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "geoquad_build_duration_seconds",
		Help:    "Wall-clock duration of the builder recursion from root rectangle to finished tree",
		Buckets: prometheus.ExponentialBuckets(0.01, 2, 16),
	})
	SerializeDurationSeconds = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "geoquad_serialize_duration_seconds",
		Help:    "Duration of encoding the finished tree to the binary artifact",
		Buckets: prometheus.ExponentialBuckets(0.001, 2, 12),
	})
	ArtifactBytes = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "geoquad_artifact_bytes",
		Help: "Size in bytes of the most recently produced serialized artifact",
	})
	CacheHitsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "geoquad_cache_hits_total",
		Help: "Total oracle cache hits, by backend",
	}, []string{"backend"})
	CacheMissesTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "geoquad_cache_misses_total",
		Help: "Total oracle cache misses, by backend",
	}, []string{"backend"})
)

func init() {
	prometheus.MustRegister(
		NodesCreatedTotal,
		LeavesCreatedTotal,
		SamplingMixedTotal,
		BruteForceVerificationsTotal,
		BruteForceFailuresTotal,
		DepthGuardTriggeredTotal,
		OracleCallsTotal,
		OracleBatchCallsTotal,
		BuildDurationSeconds,
		SerializeDurationSeconds,
		ArtifactBytes,
		CacheHitsTotal,
		CacheMissesTotal,
	)
}

// Handler returns the Prometheus scrape handler, mounted by the CLI when
// --metrics-addr is set.
func Handler() http.Handler { return promhttp.Handler() }
