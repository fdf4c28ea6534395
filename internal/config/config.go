// Package config loads CLI settings with the priority order flags >
// GEOQUAD_* environment variables > .env file > defaults, using Viper
// for the merge and godotenv to populate the environment from a .env
// file before Viper reads it.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// Config is the fully resolved configuration for a build run.
type Config struct {
	Precision           int           `mapstructure:"precision"`
	OracleKind          string        `mapstructure:"oracle"` // "rectangle" | "circle" | "simple" | "grid" | "geojson" | "postgres"
	GeoJSONPath         string        `mapstructure:"geojson_path"`
	SampleCount         int           `mapstructure:"sample_count"`
	BruteForceMaxPoints int64         `mapstructure:"brute_force_max_points"`
	MaxDepth            int           `mapstructure:"max_depth"`
	RNGSeed             uint64        `mapstructure:"rng_seed"`
	Parallel            bool          `mapstructure:"parallel"`
	Compress            bool          `mapstructure:"compress"`

	OutputPath  string `mapstructure:"output"`
	PackageName string `mapstructure:"package_name"`
	Format      string `mapstructure:"format"` // "binary" | "go"

	CacheBackend string        `mapstructure:"cache_backend"` // "none" | "lru" | "redis"
	LRUCapacity  int           `mapstructure:"lru_capacity"`
	CacheTTL     time.Duration `mapstructure:"cache_ttl"`

	PostgresDSN   string `mapstructure:"postgres_dsn"`
	PostgresTable string `mapstructure:"postgres_table"`

	RedisHost  string `mapstructure:"redis_host"`
	RedisPort  string `mapstructure:"redis_port"`
	RedisPass  string `mapstructure:"redis_pass"`
	RedisDB    int    `mapstructure:"redis_db"`
	FlushCache bool   `mapstructure:"flush_cache"`

	LogLevel  string `mapstructure:"log_level"`
	LogFormat string `mapstructure:"log_format"`

	MetricsAddr string `mapstructure:"metrics_addr"`

	RecordHistory bool `mapstructure:"record_history"`
}

// Load builds a Config from defaults, an optional .env file, GEOQUAD_*
// environment variables, and any flags already parsed into fs. Flags
// take precedence over everything else.
func Load(fs *pflag.FlagSet, envFile string) (Config, error) {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil {
			return Config{}, fmt.Errorf("config: load %s: %w", envFile, err)
		}
	} else {
		// A missing default .env is not an error; GEOQUAD_* vars set in
		// the real environment still apply.
		_ = godotenv.Load()
	}

	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix("GEOQUAD")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))

	// Flags are registered with dashed names (e.g. "sample-count") for a
	// readable --help, but mapstructure tags use underscores; bind each
	// flag under the translated key rather than BindPFlags' default of
	// using the flag's own name verbatim.
	if fs != nil {
		var bindErr error
		fs.VisitAll(func(f *pflag.Flag) {
			if bindErr != nil {
				return
			}
			key := strings.ReplaceAll(f.Name, "-", "_")
			bindErr = v.BindPFlag(key, f)
		})
		if bindErr != nil {
			return Config{}, fmt.Errorf("config: bind flags: %w", bindErr)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("config: unmarshal: %w", err)
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("precision", 3)
	v.SetDefault("oracle", "rectangle")
	v.SetDefault("sample_count", 12)
	v.SetDefault("brute_force_max_points", int64(4096))
	v.SetDefault("max_depth", 48)
	v.SetDefault("rng_seed", uint64(0x5eed))
	v.SetDefault("parallel", false)
	v.SetDefault("compress", true)

	v.SetDefault("output", "world.bin")
	v.SetDefault("package_name", "geoquadtable")
	v.SetDefault("format", "binary")

	v.SetDefault("cache_backend", "lru")
	v.SetDefault("lru_capacity", 100000)
	v.SetDefault("cache_ttl", 24*time.Hour)

	v.SetDefault("postgres_table", "countries")

	v.SetDefault("redis_port", "6379")
	v.SetDefault("redis_db", 0)

	v.SetDefault("log_level", "info")
	v.SetDefault("log_format", "text")
}

// Validate rejects configuration combinations the builder or oracle
// factory cannot act on.
func (c Config) Validate() error {
	if c.Precision < 0 || c.Precision > 6 {
		return fmt.Errorf("config: precision %d out of range [0,6]", c.Precision)
	}
	switch c.OracleKind {
	case "rectangle", "circle", "simple", "grid", "geojson", "postgres":
	default:
		return fmt.Errorf("config: unknown oracle kind %q", c.OracleKind)
	}
	if c.OracleKind == "geojson" && c.GeoJSONPath == "" {
		return fmt.Errorf("config: oracle=geojson requires geojson_path")
	}
	if c.OracleKind == "postgres" && c.PostgresDSN == "" {
		return fmt.Errorf("config: oracle=postgres requires postgres_dsn")
	}
	switch c.Format {
	case "binary", "go":
	default:
		return fmt.Errorf("config: unknown format %q", c.Format)
	}
	switch c.CacheBackend {
	case "none", "lru", "redis":
	default:
		return fmt.Errorf("config: unknown cache_backend %q", c.CacheBackend)
	}
	if c.CacheBackend == "redis" && c.RedisHost == "" {
		return fmt.Errorf("config: cache_backend=redis requires redis_host")
	}
	return nil
}
