// Package runtime implements the streaming lookup used by long-running
// processes that keep a build artifact in memory and query it through
// the Oracle-shaped API rather than through generated Go source: it
// descends the preorder tree directly, skipping the bytes of any
// sibling subtree it does not need, and never materializes a
// quadtree.Node.
//
// This decoder is written independently of internal/serialize's
// Decode/readNode so the two can be tested against each other; a bug
// that survives in both would have to be the same bug made twice.
package runtime

import (
	"encoding/binary"
	"fmt"

	"geoquad/internal/quantize"
	"geoquad/internal/serialize"
)

// Table is a parsed-header, bytes-resident artifact ready for repeated
// Lookup calls. Building one only parses the header; the tree bytes are
// walked fresh on every lookup.
type Table struct {
	precision int
	xmax, ymax int
	buildID    string
	countries  serialize.CountryTable
	tree       []byte
}

// Open validates and parses the container produced by serialize.Encode,
// without decoding the tree itself.
func Open(data []byte) (*Table, error) {
	payload, err := serialize.StripContainer(data)
	if err != nil {
		return nil, err
	}

	off := 0
	precision, n, err := readUvarint(payload, off)
	if err != nil {
		return nil, err
	}
	off += n
	xmax, n, err := readUvarint(payload, off)
	if err != nil {
		return nil, err
	}
	off += n
	ymax, n, err := readUvarint(payload, off)
	if err != nil {
		return nil, err
	}
	off += n

	if off >= len(payload) {
		return nil, fmt.Errorf("runtime: truncated build id length")
	}
	idLen := int(payload[off])
	off++
	if off+idLen > len(payload) {
		return nil, fmt.Errorf("runtime: truncated build id")
	}
	buildID := string(payload[off : off+idLen])
	off += idLen

	count, n, err := readUvarint(payload, off)
	if err != nil {
		return nil, err
	}
	off += n
	codes := make([]string, count)
	for i := range codes {
		if off >= len(payload) {
			return nil, fmt.Errorf("runtime: truncated country code length")
		}
		l := int(payload[off])
		off++
		if off+l > len(payload) {
			return nil, fmt.Errorf("runtime: truncated country code")
		}
		codes[i] = string(payload[off : off+l])
		off += l
	}

	return &Table{
		precision: int(precision),
		xmax:      int(xmax),
		ymax:      int(ymax),
		buildID:   buildID,
		countries: serialize.BuildCountryTable(denseToMap(codes)),
		tree:      payload[off:],
	}, nil
}

func denseToMap(codes []string) map[uint16]string {
	m := make(map[uint16]string, len(codes))
	for i, c := range codes {
		if c != "" {
			m[uint16(i)] = c
		}
	}
	return m
}

// Precision, Bounds, BuildID, and Countries expose the parsed header.
func (t *Table) Precision() int                    { return t.precision }
func (t *Table) Bounds() (xmax, ymax int)           { return t.xmax, t.ymax }
func (t *Table) BuildID() string                    { return t.buildID }
func (t *Table) Countries() serialize.CountryTable  { return t.countries }

// Lookup quantizes (lat, lon) and descends the tree bytes to find the
// country id covering that point.
func (t *Table) Lookup(lat, lon float64) (uint16, error) {
	ilat, ilon := quantize.Quantize(lat, lon, t.precision)
	return t.LookupQuantized(ilat, ilon)
}

// LookupQuantized descends the tree for an already-quantized point.
func (t *Table) LookupQuantized(ilat, ilon int) (uint16, error) {
	id, _, err := descend(t.tree, 0, 0, 0, t.xmax, t.ymax, ilon, ilat)
	return id, err
}

// LookupBatch quantizes and looks up every point, stopping at the first
// error.
func (t *Table) LookupBatch(points [][2]float64) ([]uint16, error) {
	out := make([]uint16, len(points))
	for i, p := range points {
		id, err := t.Lookup(p[0], p[1])
		if err != nil {
			return nil, err
		}
		out[i] = id
	}
	return out, nil
}

const (
	tagLeaf     = 0
	tagInternal = 1
)

// descend walks tree bytes starting at off, within rectangle
// [x0,y0]-[x1,y1], looking for the leaf covering (x,y). It returns the
// country id, the offset just past the subtree it consumed, and any
// parse error.
func descend(tree []byte, off, x0, y0, x1, y1, x, y int) (uint16, int, error) {
	if off >= len(tree) {
		return 0, off, fmt.Errorf("runtime: truncated tree at offset %d", off)
	}
	tag := tree[off]
	off++

	switch tag {
	case tagLeaf:
		country, n, err := readUvarint(tree, off)
		if err != nil {
			return 0, off, err
		}
		return uint16(country), off + n, nil

	case tagInternal:
		if off >= len(tree) {
			return 0, off, fmt.Errorf("runtime: truncated child mask at offset %d", off)
		}
		mask := tree[off]
		off++

		xm, ym := (x0+x1)/2, (y0+y1)/2
		childRects := [4][4]int{
			{x0, ym + 1, xm, y1}, // 0
			{xm + 1, ym + 1, x1, y1}, // 1
			{x0, y0, xm, ym},     // 2
			{xm + 1, y0, x1, ym}, // 3
		}
		target := childIndex(x, y, xm, ym)

		var result uint16
		found := false
		for i := 0; i < 4; i++ {
			if mask&(1<<uint(i)) == 0 {
				continue
			}
			if i == target && !found {
				cr := childRects[i]
				id, next, err := descend(tree, off, cr[0], cr[1], cr[2], cr[3], x, y)
				if err != nil {
					return 0, off, err
				}
				result, off, found = id, next, true
				continue
			}
			// Not the target child: skip its bytes without allocating.
			next, err := skip(tree, off)
			if err != nil {
				return 0, off, err
			}
			off = next
		}
		if !found {
			return 0, off, fmt.Errorf("runtime: point (%d,%d) fell into a suppressed child", x, y)
		}
		return result, off, nil

	default:
		return 0, off, fmt.Errorf("runtime: unknown node tag %d at offset %d", tag, off)
	}
}

// childIndex mirrors quadtree.Rectangle.ChildFor's tie rule without
// importing the quadtree package, keeping this decoder's geometry logic
// self-contained for the cross-check tests.
func childIndex(x, y, xm, ym int) int {
	west := x <= xm
	south := y <= ym
	switch {
	case south && west:
		return 2 // SW
	case south && !west:
		return 3 // SE
	case !south && west:
		return 0 // NW
	default:
		return 1 // NE
	}
}

// skip advances past one encoded node without interpreting it beyond
// what is needed to find its length, so sibling subtrees the lookup
// does not need are never materialized.
func skip(tree []byte, off int) (int, error) {
	if off >= len(tree) {
		return off, fmt.Errorf("runtime: truncated tree at offset %d", off)
	}
	tag := tree[off]
	off++
	switch tag {
	case tagLeaf:
		_, n, err := readUvarint(tree, off)
		if err != nil {
			return off, err
		}
		return off + n, nil
	case tagInternal:
		if off >= len(tree) {
			return off, fmt.Errorf("runtime: truncated child mask at offset %d", off)
		}
		mask := tree[off]
		off++
		for i := 0; i < 4; i++ {
			if mask&(1<<uint(i)) == 0 {
				continue
			}
			next, err := skip(tree, off)
			if err != nil {
				return off, err
			}
			off = next
		}
		return off, nil
	default:
		return off, fmt.Errorf("runtime: unknown node tag %d at offset %d", tag, off)
	}
}

func readUvarint(data []byte, off int) (uint64, int, error) {
	v, n := binary.Uvarint(data[off:])
	if n <= 0 {
		return 0, 0, fmt.Errorf("runtime: bad varint at offset %d", off)
	}
	return v, n, nil
}
