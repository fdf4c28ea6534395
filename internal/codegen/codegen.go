// Package codegen renders a build's artifact as a self-contained Go
// source file: the serialized tree embedded as a byte literal, plus
// verbatim quantization and traversal routines so the generated package
// has no import-time dependency on geoquad itself. Only the standard
// library is imported by the output.
package codegen

import (
	"bytes"
	"fmt"
	"strconv"
	"text/template"

	"geoquad/internal/quadtree"
	"geoquad/internal/serialize"
)

// Options controls the generated file's package clause and the
// provenance recorded in its header comment.
type Options struct {
	PackageName string
	BuildID     string
	OracleSource string // e.g. "mock:rectangle", "geojson:ne_10m_admin_0", "postgres:countries"
}

// Generate serializes node uncompressed (the generated code's decoder is
// a plain byte walk with no flate dependency) and renders the result
// through the package template.
func Generate(node *quadtree.Node, header serialize.Header, opts Options) ([]byte, error) {
	treeBytes, err := serialize.EncodeTree(node)
	if err != nil {
		return nil, fmt.Errorf("codegen: encode tree: %w", err)
	}

	data := templateData{
		PackageName:  orDefault(opts.PackageName, "geoquadtable"),
		BuildID:      opts.BuildID,
		OracleSource: opts.OracleSource,
		Precision:    header.Precision,
		Xmax:         header.Xmax,
		Ymax:         header.Ymax,
		BlobLiteral:  strconv.Quote(string(treeBytes)),
		Countries:    header.Countries.Codes(),
	}

	tmpl, err := template.New("artifact").Parse(artifactTemplate)
	if err != nil {
		return nil, fmt.Errorf("codegen: parse template: %w", err)
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return nil, fmt.Errorf("codegen: render template: %w", err)
	}
	return buf.Bytes(), nil
}

type templateData struct {
	PackageName  string
	BuildID      string
	OracleSource string
	Precision    int
	Xmax         int
	Ymax         int
	BlobLiteral  string
	Countries    []string
}

func orDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}
