package codegen

import (
	"context"
	"go/parser"
	"go/token"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"geoquad/internal/builder"
	"geoquad/internal/oracle"
	"geoquad/internal/serialize"
)

func TestGenerateProducesParseableGoSource(t *testing.T) {
	o := oracle.NewRectangleOracle(0)
	cfg := builder.DefaultConfig(0)
	cfg.SampleCount = 8
	cfg.BruteForceMaxPoints = 128

	node, _, err := builder.Build(context.Background(), o, 359, 179, cfg)
	require.NoError(t, err)

	header := serialize.Header{
		Precision: 0,
		Xmax:      359,
		Ymax:      179,
		Countries: serialize.BuildCountryTable(o.CountryCodes()),
	}

	src, err := Generate(node, header, Options{
		PackageName:  "worldtable",
		BuildID:      "build-123",
		OracleSource: "mock:rectangle",
	})
	require.NoError(t, err)

	fset := token.NewFileSet()
	_, err = parser.ParseFile(fset, "worldtable.go", src, parser.AllErrors)
	require.NoError(t, err, "generated source must parse:\n%s", src)

	text := string(src)
	assert.Contains(t, text, "package worldtable")
	assert.Contains(t, text, "build-123")
	assert.Contains(t, text, "func CountryID(lat, lon float64) uint16")
	assert.Contains(t, text, "func CountryISO(lat, lon float64) string")
	assert.Contains(t, text, "func CountryIDFromISO(iso string) uint16")
	assert.NotContains(t, text, `"geoquad/`, "generated file must not import this module")
}

func TestGenerateDefaultsPackageName(t *testing.T) {
	o := oracle.NewSimpleOracle(0)
	cfg := builder.DefaultConfig(0)
	node, _, err := builder.Build(context.Background(), o, 359, 179, cfg)
	require.NoError(t, err)

	header := serialize.Header{
		Precision: 0,
		Xmax:      359,
		Ymax:      179,
		Countries: serialize.BuildCountryTable(o.CountryCodes()),
	}
	src, err := Generate(node, header, Options{})
	require.NoError(t, err)
	assert.True(t, strings.Contains(string(src), "package geoquadtable"))
}

func TestGenerateEmbedsNonEmptyTree(t *testing.T) {
	o := oracle.NewCircleOracle(0)
	cfg := builder.DefaultConfig(0)
	cfg.SampleCount = 8
	cfg.BruteForceMaxPoints = 128
	node, _, err := builder.Build(context.Background(), o, 179, 89, cfg)
	require.NoError(t, err)

	header := serialize.Header{Precision: 0, Xmax: 179, Ymax: 89, Countries: serialize.BuildCountryTable(o.CountryCodes())}
	src, err := Generate(node, header, Options{PackageName: "p"})
	require.NoError(t, err)
	assert.Contains(t, string(src), `var tree = []byte("`)
}
