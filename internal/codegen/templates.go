package codegen

// artifactTemplate renders a standalone country-lookup package. It is
// deliberately self-contained: only "math" from the standard library is
// imported, so a caller can vendor this single file without pulling in
// the rest of geoquad.
const artifactTemplate = `// Code generated by geoquad build. DO NOT EDIT.
//
// Build ID:      {{.BuildID}}
// Oracle source: {{.OracleSource}}
// Precision:     {{.Precision}} (lattice units per degree: 10^{{.Precision}})
// Lattice size:  {{.Xmax}} x {{.Ymax}}
// Ocean leaves:  kept; id 0 leaves are encoded like any other leaf
// Sibling collapse: post-pass after the build recursion
package {{.PackageName}}

import "math"

const (
	precision = {{.Precision}}
	xmax      = {{.Xmax}}
	ymax      = {{.Ymax}}
)

var countryCodes = [...]string{
{{- range .Countries}}
	{{printf "%q" .}},
{{- end}}
}

// tree is the preorder-encoded quadtree: leaf nodes are a 0x00 tag
// followed by a country id varint; internal nodes are a 0x01 tag, a
// 4-bit child presence mask, then each present child in NW, NE, SW, SE
// order.
var tree = []byte({{.BlobLiteral}})

// CountryID returns the country id covering (lat, lon), or 0 for ocean.
func CountryID(lat, lon float64) uint16 {
	ilat, ilon := quantizePoint(lat, lon)
	id, _ := lookup(ilon, ilat)
	return id
}

// CountryISO returns the ISO code of the country covering (lat, lon), or
// "" for ocean or a point the table cannot resolve.
func CountryISO(lat, lon float64) string {
	return isoForID(CountryID(lat, lon))
}

// CountryIDFromISO returns the country id for an ISO code, or 0 if the
// code is not in this table.
func CountryIDFromISO(iso string) uint16 {
	for id, code := range countryCodes {
		if code == iso {
			return uint16(id)
		}
	}
	return 0
}

func isoForID(id uint16) string {
	if int(id) >= len(countryCodes) {
		return ""
	}
	return countryCodes[id]
}

func quantizePoint(lat, lon float64) (ilat, ilon int) {
	q := math.Pow(10, float64(precision))
	ilat = roundClamp((lat+90)*q, 0, ymax)
	ilon = roundClamp((lon+180)*q, 0, xmax)
	return ilat, ilon
}

func roundClamp(v float64, lo, hi int) int {
	r := int(math.Floor(v + 0.5))
	if v < 0 {
		r = int(math.Ceil(v - 0.5))
	}
	if r < lo {
		return lo
	}
	if r > hi {
		return hi
	}
	return r
}

func lookup(x, y int) (uint16, error) {
	id, _, err := descend(0, 0, 0, xmax, ymax, x, y)
	return id, err
}

func descend(off, x0, y0, x1, y1, x, y int) (uint16, int, error) {
	if off >= len(tree) {
		return 0, off, errTruncated
	}
	tag := tree[off]
	off++

	switch tag {
	case 0:
		country, n := uvarint(tree[off:])
		if n <= 0 {
			return 0, off, errTruncated
		}
		return uint16(country), off + n, nil
	case 1:
		if off >= len(tree) {
			return 0, off, errTruncated
		}
		mask := tree[off]
		off++

		xm, ym := (x0+x1)/2, (y0+y1)/2
		var childRects [4][4]int
		childRects[0] = [4]int{x0, ym + 1, xm, y1}
		childRects[1] = [4]int{xm + 1, ym + 1, x1, y1}
		childRects[2] = [4]int{x0, y0, xm, ym}
		childRects[3] = [4]int{xm + 1, y0, x1, ym}

		west := x <= xm
		south := y <= ym
		var target int
		switch {
		case south && west:
			target = 2
		case south && !west:
			target = 3
		case !south && west:
			target = 0
		default:
			target = 1
		}

		var result uint16
		found := false
		for i := 0; i < 4; i++ {
			if mask&(1<<uint(i)) == 0 {
				continue
			}
			if i == target && !found {
				cr := childRects[i]
				id, next, err := descend(off, cr[0], cr[1], cr[2], cr[3], x, y)
				if err != nil {
					return 0, off, err
				}
				result, off, found = id, next, true
				continue
			}
			next, err := skip(off)
			if err != nil {
				return 0, off, err
			}
			off = next
		}
		if !found {
			return 0, off, errSuppressed
		}
		return result, off, nil
	default:
		return 0, off, errBadTag
	}
}

func skip(off int) (int, error) {
	if off >= len(tree) {
		return off, errTruncated
	}
	tag := tree[off]
	off++
	switch tag {
	case 0:
		_, n := uvarint(tree[off:])
		if n <= 0 {
			return off, errTruncated
		}
		return off + n, nil
	case 1:
		if off >= len(tree) {
			return off, errTruncated
		}
		mask := tree[off]
		off++
		for i := 0; i < 4; i++ {
			if mask&(1<<uint(i)) == 0 {
				continue
			}
			next, err := skip(off)
			if err != nil {
				return off, err
			}
			off = next
		}
		return off, nil
	default:
		return off, errBadTag
	}
}

func uvarint(buf []byte) (uint64, int) {
	var x uint64
	var s uint
	for i, b := range buf {
		if b < 0x80 {
			if i >= 9 && b > 1 {
				return 0, -(i + 1)
			}
			return x | uint64(b)<<s, i + 1
		}
		x |= uint64(b&0x7f) << s
		s += 7
	}
	return 0, 0
}

type decodeError string

func (e decodeError) Error() string { return string(e) }

const (
	errTruncated  decodeError = "{{.PackageName}}: truncated tree data"
	errBadTag     decodeError = "{{.PackageName}}: unrecognized node tag"
	errSuppressed decodeError = "{{.PackageName}}: point fell into a suppressed child"
)
`
