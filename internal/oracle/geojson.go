package oracle

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math"

	"geoquad/internal/quantize"
)

// polygon is a closed ring list in (lon, lat) order, matching GeoJSON's
// coordinate axis order. The outer ring is rings[0]; any further rings are
// holes.
type polygon struct {
	rings [][][2]float64
	bbox  [4]float64 // minLon, minLat, maxLon, maxLat
}

type feature struct {
	countryID uint16
	isoCode   string
	polygons  []polygon
	centroid  [2]float64
}

// GeoJSONOracle answers lookups by even-odd ray casting against polygons
// loaded from a GeoJSON FeatureCollection, with a bounding-box pre-filter
// and a nearest-centroid fallback for points that miss every polygon
// (coastal rounding, disputed borders left unassigned in the source data).
type GeoJSONOracle struct {
	precision int
	features  []feature
	codes     map[uint16]string
}

// LoadGeoJSON parses a FeatureCollection from r. Each feature must carry an
// "iso_a2" (or "ISO_A2") property; features are assigned dense country ids
// in encounter order, starting at 1 so OceanID stays reserved.
func LoadGeoJSON(r io.Reader, precision int) (*GeoJSONOracle, error) {
	var fc struct {
		Features []struct {
			Properties map[string]any  `json:"properties"`
			Geometry   json.RawMessage `json:"geometry"`
		} `json:"features"`
	}
	dec := json.NewDecoder(r)
	if err := dec.Decode(&fc); err != nil {
		return nil, fmt.Errorf("oracle: decode geojson: %w", err)
	}

	o := &GeoJSONOracle{precision: precision, codes: map[uint16]string{}}
	var nextID uint16 = 1
	for _, f := range fc.Features {
		iso := isoFromProperties(f.Properties)
		if iso == "" {
			continue
		}
		polys, err := decodeGeometry(f.Geometry)
		if err != nil {
			return nil, fmt.Errorf("oracle: feature %s: %w", iso, err)
		}
		if len(polys) == 0 {
			continue
		}
		id := nextID
		nextID++
		ft := feature{countryID: id, isoCode: iso, polygons: polys, centroid: centroidOf(polys)}
		o.features = append(o.features, ft)
		o.codes[id] = iso
	}
	return o, nil
}

func isoFromProperties(props map[string]any) string {
	for _, key := range []string{"iso_a2", "ISO_A2", "ISO2", "iso2"} {
		if v, ok := props[key]; ok {
			if s, ok := v.(string); ok && s != "" && s != "-99" {
				return s
			}
		}
	}
	return ""
}

func decodeGeometry(raw json.RawMessage) ([]polygon, error) {
	var head struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(raw, &head); err != nil {
		return nil, err
	}
	switch head.Type {
	case "Polygon":
		var g struct {
			Coordinates [][][2]float64 `json:"coordinates"`
		}
		if err := json.Unmarshal(raw, &g); err != nil {
			return nil, err
		}
		return []polygon{newPolygon(g.Coordinates)}, nil
	case "MultiPolygon":
		var g struct {
			Coordinates [][][][2]float64 `json:"coordinates"`
		}
		if err := json.Unmarshal(raw, &g); err != nil {
			return nil, err
		}
		out := make([]polygon, 0, len(g.Coordinates))
		for _, rings := range g.Coordinates {
			out = append(out, newPolygon(rings))
		}
		return out, nil
	default:
		return nil, fmt.Errorf("unsupported geometry type %q", head.Type)
	}
}

func newPolygon(rings [][][2]float64) polygon {
	p := polygon{rings: rings}
	p.bbox = [4]float64{math.Inf(1), math.Inf(1), math.Inf(-1), math.Inf(-1)}
	for _, ring := range rings {
		for _, pt := range ring {
			lon, lat := pt[0], pt[1]
			if lon < p.bbox[0] {
				p.bbox[0] = lon
			}
			if lat < p.bbox[1] {
				p.bbox[1] = lat
			}
			if lon > p.bbox[2] {
				p.bbox[2] = lon
			}
			if lat > p.bbox[3] {
				p.bbox[3] = lat
			}
		}
	}
	return p
}

func centroidOf(polys []polygon) [2]float64 {
	var sumLon, sumLat float64
	var n int
	for _, p := range polys {
		if len(p.rings) == 0 {
			continue
		}
		for _, pt := range p.rings[0] {
			sumLon += pt[0]
			sumLat += pt[1]
			n++
		}
	}
	if n == 0 {
		return [2]float64{0, 0}
	}
	return [2]float64{sumLon / float64(n), sumLat / float64(n)}
}

func (p polygon) contains(lon, lat float64) bool {
	if lon < p.bbox[0] || lon > p.bbox[2] || lat < p.bbox[1] || lat > p.bbox[3] {
		return false
	}
	inside := false
	for i, ring := range p.rings {
		hit := rayCast(ring, lon, lat)
		if i == 0 {
			inside = hit
		} else if hit {
			// A hit on a hole ring removes the point from the feature.
			inside = false
		}
	}
	return inside
}

// rayCast implements the even-odd rule for a single ring.
func rayCast(ring [][2]float64, lon, lat float64) bool {
	n := len(ring)
	if n < 3 {
		return false
	}
	inside := false
	j := n - 1
	for i := 0; i < n; i++ {
		xi, yi := ring[i][0], ring[i][1]
		xj, yj := ring[j][0], ring[j][1]
		if (yi > lat) != (yj > lat) {
			xCross := xi + (lat-yi)/(yj-yi)*(xj-xi)
			if lon < xCross {
				inside = !inside
			}
		}
		j = i
	}
	return inside
}

func (o *GeoJSONOracle) Lookup(_ context.Context, ilat, ilon int) (uint16, error) {
	lat, lon := quantize.Dequantize(ilat, ilon, o.precision)
	for _, f := range o.features {
		for _, p := range f.polygons {
			if p.contains(lon, lat) {
				return f.countryID, nil
			}
		}
	}
	if id := o.nearestCentroid(lon, lat); id != OceanID {
		return id, nil
	}
	return OceanID, nil
}

// nearestCentroid is the fallback used when no polygon claims the point:
// it picks the feature whose centroid is closest, guarded by a maximum
// distance so far-offshore points still resolve to ocean.
func (o *GeoJSONOracle) nearestCentroid(lon, lat float64) uint16 {
	const maxDistDeg = 0.75
	best := OceanID
	bestDist := math.Inf(1)
	for _, f := range o.features {
		dx := f.centroid[0] - lon
		dy := f.centroid[1] - lat
		d := dx*dx + dy*dy
		if d < bestDist {
			bestDist = d
			best = f.countryID
		}
	}
	if bestDist > maxDistDeg*maxDistDeg {
		return OceanID
	}
	return best
}

// LookupBatch walks the feature list in the outer loop, testing every
// still-unresolved point against each feature's polygons before moving to
// the next feature, and stops once every point is resolved. Each
// point-polygon test does its own bounding-box check, so the work and the
// results match one Lookup call per point.
func (o *GeoJSONOracle) LookupBatch(_ context.Context, points []Point) ([]uint16, error) {
	out := make([]uint16, len(points))
	lons := make([]float64, len(points))
	lats := make([]float64, len(points))
	resolved := make([]bool, len(points))
	remaining := len(points)

	for i, p := range points {
		lats[i], lons[i] = quantize.Dequantize(p.ILat, p.ILon, o.precision)
	}

	for _, f := range o.features {
		if remaining == 0 {
			break
		}
		for i := range points {
			if resolved[i] {
				continue
			}
			for _, poly := range f.polygons {
				if poly.contains(lons[i], lats[i]) {
					out[i] = f.countryID
					resolved[i] = true
					remaining--
					break
				}
			}
		}
	}

	for i := range points {
		if !resolved[i] {
			out[i] = o.nearestCentroid(lons[i], lats[i])
		}
	}
	return out, nil
}

func (o *GeoJSONOracle) CountryCodes() map[uint16]string { return o.codes }
