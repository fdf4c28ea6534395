package main

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"geoquad/internal/builder"
	"geoquad/internal/codegen"
	"geoquad/internal/config"
	"geoquad/internal/logger"
	"geoquad/internal/metrics"
	"geoquad/internal/oracle"
	"geoquad/internal/quantize"
	"geoquad/internal/serialize"
	"geoquad/internal/utils"
)

func newBuildCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "build",
		Short: "Build a country-lookup artifact from an oracle",
		RunE:  runBuild,
	}

	fs := cmd.Flags()
	fs.Int("precision", 3, "decimal digits of lattice precision")
	fs.String("oracle", "rectangle", "oracle kind: rectangle|circle|simple|grid|geojson|postgres")
	fs.String("geojson-path", "", "path to a GeoJSON FeatureCollection (oracle=geojson)")
	fs.String("postgres-dsn", "", "libpq DSN for the country polygon table (oracle=postgres)")
	fs.String("postgres-table", "countries", "table name for oracle=postgres")
	fs.Int("sample-count", 12, "sample points probed per rectangle before proving or splitting")
	fs.Int64("brute-force-max-points", 4096, "largest rectangle, by point count, exhaustively verified")
	fs.Int("max-depth", 48, "recursion depth limit before accepting an unproven unanimous sample")
	fs.Bool("parallel", false, "split the four top-level children across goroutines")
	fs.Bool("compress", true, "DEFLATE-compress the binary artifact")
	fs.String("cache-backend", "lru", "oracle cache: none|lru|redis")
	fs.Int("lru-capacity", 100000, "entries kept by the in-process LRU cache")
	fs.String("redis-host", "", "Redis host for cache-backend=redis")
	fs.Bool("flush-cache", false, "delete this precision's Redis cache entries before building (cache-backend=redis)")
	fs.String("output", "world.bin", "output file path")
	fs.String("format", "binary", "output format: binary|go")
	fs.String("package-name", "geoquadtable", "package name for format=go")
	fs.String("metrics-addr", "", "if set, serve Prometheus metrics on this address during the build")
	fs.Bool("record-history", false, "insert a row into geoquad_builds after a successful build")

	return cmd
}

func runBuild(cmd *cobra.Command, _ []string) error {
	envFile, _ := cmd.Flags().GetString("env-file")
	if envFile == "" {
		envFile, _ = cmd.Root().PersistentFlags().GetString("env-file")
	}
	cfg, err := config.Load(cmd.Flags(), envFile)
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	log := logger.Setup()

	if cfg.MetricsAddr != "" {
		srv := &http.Server{Addr: cfg.MetricsAddr, Handler: metrics.Handler()}
		go func() {
			if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				log.Warn("metrics server stopped", "err", err)
			}
		}()
		defer srv.Close()
	}

	o, err := buildOracle(cfg)
	if err != nil {
		return fmt.Errorf("build: construct oracle: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	xmax, ymax := quantize.Grid(cfg.Precision)
	bcfg := builder.Config{
		Precision:           cfg.Precision,
		SampleCount:         cfg.SampleCount,
		BruteForceMaxPoints: cfg.BruteForceMaxPoints,
		MaxDepth:            cfg.MaxDepth,
		RNGSeed:             cfg.RNGSeed,
		Parallel:            cfg.Parallel,
	}

	log.Info("build starting", "precision", cfg.Precision, "oracle", cfg.OracleKind, "xmax", xmax, "ymax", ymax)

	node, stats, err := builder.Build(ctx, o, xmax, ymax, bcfg)
	if err != nil {
		return fmt.Errorf("build: %w", err)
	}

	buildID := uuid.NewString()
	log.Info("build finished",
		"build_id", buildID,
		"duration", stats.Duration,
		"nodes", stats.NodesCreated,
		"leaves", stats.LeavesCreated,
		"sampling_mixed", stats.SamplingMixed,
		"brute_force_verifications", stats.BruteForceVerifications,
		"depth_guard_triggered", stats.DepthGuardTriggered,
	)

	header := serialize.Header{
		Precision: cfg.Precision,
		Xmax:      xmax,
		Ymax:      ymax,
		BuildID:   buildID,
		Countries: serialize.BuildCountryTable(o.CountryCodes()),
	}

	encodeStart := time.Now()
	var artifact []byte
	switch cfg.Format {
	case "go":
		artifact, err = codegen.Generate(node, header, codegen.Options{
			PackageName:  cfg.PackageName,
			BuildID:      buildID,
			OracleSource: cfg.OracleKind,
		})
	default:
		artifact, err = serialize.Encode(node, header, cfg.Compress)
	}
	metrics.SerializeDurationSeconds.Observe(time.Since(encodeStart).Seconds())
	if err != nil {
		return fmt.Errorf("build: encode artifact: %w", err)
	}
	metrics.ArtifactBytes.Set(float64(len(artifact)))

	if err := os.WriteFile(cfg.OutputPath, artifact, 0o644); err != nil {
		return fmt.Errorf("build: write %s: %w", cfg.OutputPath, err)
	}
	log.Info("artifact written", "path", cfg.OutputPath, "bytes", len(artifact))

	if cfg.RecordHistory {
		if err := recordBuildHistory(ctx, cfg, buildID, stats); err != nil {
			log.Warn("build history not recorded", "err", err)
		}
	}

	return nil
}

func buildOracle(cfg config.Config) (oracle.Oracle, error) {
	var o oracle.Oracle
	switch cfg.OracleKind {
	case "rectangle":
		o = oracle.NewRectangleOracle(cfg.Precision)
	case "circle":
		o = oracle.NewCircleOracle(cfg.Precision)
	case "simple":
		o = oracle.NewSimpleOracle(cfg.Precision)
	case "grid":
		o = oracle.NewGridOracle(cfg.Precision, 8)
	case "geojson":
		f, err := os.Open(cfg.GeoJSONPath)
		if err != nil {
			return nil, err
		}
		defer f.Close()
		g, err := oracle.LoadGeoJSON(f, cfg.Precision)
		if err != nil {
			return nil, err
		}
		o = g
	case "postgres":
		pg, err := oracle.OpenPostgresOracle(context.Background(), cfg.PostgresDSN, cfg.Precision, oracle.PostgresConfig{Table: cfg.PostgresTable})
		if err != nil {
			return nil, err
		}
		o = pg
	default:
		return nil, fmt.Errorf("unknown oracle kind %q", cfg.OracleKind)
	}

	switch cfg.CacheBackend {
	case "lru":
		o = oracle.NewLRUCache(o, cfg.LRUCapacity)
	case "redis":
		client := utils.OpenRedis(cfg.RedisHost+":"+cfg.RedisPort, cfg.RedisPass, cfg.RedisDB)
		if client == nil {
			return nil, fmt.Errorf("cache-backend=redis requires redis-host")
		}
		rc := oracle.NewRedisCache(o, client, fmt.Sprintf("geoquad:p%d:", cfg.Precision), cfg.CacheTTL)
		if cfg.FlushCache {
			if err := rc.Flush(context.Background()); err != nil {
				return nil, fmt.Errorf("flush-cache: %w", err)
			}
		}
		o = rc
	}
	return o, nil
}

// recordBuildHistory inserts a row describing this build into
// geoquad_builds, creating the table on first use. It reuses the same
// Postgres DSN as the oracle backend when one was given; otherwise it
// opens a pool straight from GEOQUAD_PG_* environment variables, including
// the pool-size overrides, since there is no oracle-side *sql.DB to share.
func recordBuildHistory(ctx context.Context, cfg config.Config, buildID string, stats builder.Stats) error {
	var db *sql.DB
	var err error
	if cfg.PostgresDSN != "" {
		db, err = utils.OpenPostgres(cfg.PostgresDSN)
	} else {
		db, err = utils.OpenPostgresFromEnv()
	}
	if err != nil {
		return err
	}
	defer db.Close()

	const ddl = `
		CREATE TABLE IF NOT EXISTS geoquad_builds (
			build_id    TEXT PRIMARY KEY,
			precision   INT NOT NULL,
			oracle_kind TEXT NOT NULL,
			nodes       BIGINT NOT NULL,
			leaves      BIGINT NOT NULL,
			duration_ms BIGINT NOT NULL,
			created_at  TIMESTAMPTZ NOT NULL DEFAULT now()
		)`
	if _, err := db.ExecContext(ctx, ddl); err != nil {
		return err
	}

	_, err = db.ExecContext(ctx,
		`INSERT INTO geoquad_builds (build_id, precision, oracle_kind, nodes, leaves, duration_ms)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		buildID, cfg.Precision, cfg.OracleKind, stats.NodesCreated, stats.LeavesCreated, stats.Duration.Milliseconds(),
	)
	return err
}
