package config

import (
	"testing"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadRejectsMissingExplicitEnvFile(t *testing.T) {
	t.Setenv("GEOQUAD_PRECISION", "")
	cfg, err := Load(nil, "/nonexistent/.env")
	require.Error(t, err) // explicit missing envFile path is an error
	_ = cfg
}

func TestLoadFallsBackToDefaultsWithoutEnvFile(t *testing.T) {
	cfg, err := Load(nil, "")
	require.NoError(t, err)
	assert.Equal(t, 3, cfg.Precision)
	assert.Equal(t, "rectangle", cfg.OracleKind)
	assert.Equal(t, int64(4096), cfg.BruteForceMaxPoints)
	assert.True(t, cfg.Compress)
	assert.NoError(t, cfg.Validate())
}

func TestLoadHonorsEnvironmentOverride(t *testing.T) {
	t.Setenv("GEOQUAD_PRECISION", "5")
	t.Setenv("GEOQUAD_ORACLE", "circle")
	cfg, err := Load(nil, "")
	require.NoError(t, err)
	assert.Equal(t, 5, cfg.Precision)
	assert.Equal(t, "circle", cfg.OracleKind)
}

func TestLoadFlagsOverrideEnvironment(t *testing.T) {
	t.Setenv("GEOQUAD_PRECISION", "5")

	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	fs.Int("precision", 2, "")
	require.NoError(t, fs.Set("precision", "2"))

	cfg, err := Load(fs, "")
	require.NoError(t, err)
	assert.Equal(t, 2, cfg.Precision)
}

func TestValidateRejectsUnknownOracle(t *testing.T) {
	cfg, err := Load(nil, "")
	require.NoError(t, err)
	cfg.OracleKind = "made-up"
	assert.Error(t, cfg.Validate())
}

func TestValidateRequiresGeoJSONPath(t *testing.T) {
	cfg, err := Load(nil, "")
	require.NoError(t, err)
	cfg.OracleKind = "geojson"
	cfg.GeoJSONPath = ""
	assert.Error(t, cfg.Validate())
}

func TestValidateRequiresPostgresDSN(t *testing.T) {
	cfg, err := Load(nil, "")
	require.NoError(t, err)
	cfg.OracleKind = "postgres"
	cfg.PostgresDSN = ""
	assert.Error(t, cfg.Validate())
}

func TestValidateRejectsOutOfRangePrecision(t *testing.T) {
	cfg, err := Load(nil, "")
	require.NoError(t, err)
	cfg.Precision = 9
	assert.Error(t, cfg.Validate())
}
