package oracle

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	_ "github.com/lib/pq"

	"geoquad/internal/quantize"
)

// PostgresOracle answers lookups against a PostGIS-enabled table of
// country polygons using batched ST_Contains queries, the same access
// pattern the original DuckDB oracle used for bulk point classification.
type PostgresOracle struct {
	db        *sql.DB
	precision int
	table     string
	codes     map[uint16]string
	idForISO  map[string]uint16
}

// PostgresConfig configures the country table and schema/table name the
// oracle queries against. Table must expose at least (iso_a2 text, geom
// geometry).
type PostgresConfig struct {
	Table string
}

// OpenPostgresOracle connects using dsn (a libpq connection string) and
// loads the distinct ISO codes present in cfg.Table to build a dense
// country id table, ids assigned in ISO-code sort order so they are
// stable across reruns against the same schema.
func OpenPostgresOracle(ctx context.Context, dsn string, precision int, cfg PostgresConfig) (*PostgresOracle, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("oracle: open postgres: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("oracle: ping postgres: %w", err)
	}

	table := cfg.Table
	if table == "" {
		table = "countries"
	}

	rows, err := db.QueryContext(ctx, fmt.Sprintf("SELECT DISTINCT iso_a2 FROM %s ORDER BY iso_a2", pqIdent(table)))
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("oracle: list country codes: %w", err)
	}
	defer rows.Close()

	o := &PostgresOracle{
		db:        db,
		precision: precision,
		table:     table,
		codes:     map[uint16]string{},
		idForISO:  map[string]uint16{},
	}
	var nextID uint16 = 1
	for rows.Next() {
		var iso string
		if err := rows.Scan(&iso); err != nil {
			db.Close()
			return nil, fmt.Errorf("oracle: scan country code: %w", err)
		}
		o.codes[nextID] = iso
		o.idForISO[iso] = nextID
		nextID++
	}
	if err := rows.Err(); err != nil {
		db.Close()
		return nil, fmt.Errorf("oracle: iterate country codes: %w", err)
	}
	return o, nil
}

func pqIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

func (o *PostgresOracle) Close() error { return o.db.Close() }

func (o *PostgresOracle) Lookup(ctx context.Context, ilat, ilon int) (uint16, error) {
	ids, err := o.LookupBatch(ctx, []Point{{ILat: ilat, ILon: ilon}})
	if err != nil {
		return OceanID, err
	}
	return ids[0], nil
}

// LookupBatch issues one query classifying every point at once via
// ST_Contains against points built from unnested longitude and latitude
// arrays, which is the same
// batching strategy the builder relies on to keep proof rectangles cheap
// even against a remote oracle.
func (o *PostgresOracle) LookupBatch(ctx context.Context, points []Point) ([]uint16, error) {
	out := make([]uint16, len(points))
	if len(points) == 0 {
		return out, nil
	}

	lons := make([]float64, len(points))
	lats := make([]float64, len(points))
	for i, p := range points {
		lat, lon := quantize.Dequantize(p.ILat, p.ILon, o.precision)
		lats[i] = lat
		lons[i] = lon
	}

	query := fmt.Sprintf(`
		SELECT idx, c.iso_a2
		FROM unnest($1::double precision[], $2::double precision[]) WITH ORDINALITY AS pts(lon, lat, idx)
		LEFT JOIN %s c
			ON ST_Contains(c.geom, ST_SetSRID(ST_MakePoint(pts.lon, pts.lat), 4326))
	`, pqIdent(o.table))

	rows, err := o.db.QueryContext(ctx, query, floatArray(lons), floatArray(lats))
	if err != nil {
		return nil, fmt.Errorf("oracle: batch lookup: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var idx int64
		var iso sql.NullString
		if err := rows.Scan(&idx, &iso); err != nil {
			return nil, fmt.Errorf("oracle: scan batch result: %w", err)
		}
		id := OceanID
		if iso.Valid {
			id = o.idForISO[iso.String]
		}
		out[idx-1] = id
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("oracle: iterate batch result: %w", err)
	}
	return out, nil
}

func (o *PostgresOracle) CountryCodes() map[uint16]string { return o.codes }

func floatArray(vs []float64) string {
	parts := make([]string, len(vs))
	for i, v := range vs {
		parts[i] = fmt.Sprintf("%v", v)
	}
	return "{" + strings.Join(parts, ",") + "}"
}
