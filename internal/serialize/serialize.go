// Package serialize encodes a quadtree.Node into the compact preorder
// binary format shared by the streaming runtime decoder and the code
// generator, and decodes it back for round-trip tests and the stats
// command.
package serialize

import (
	"bytes"
	"compress/flate"
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	"geoquad/internal/quadtree"
)

// magic identifies a geoquad artifact; version lets the decoder reject a
// stream from an incompatible future format instead of misparsing it.
const (
	magic       uint32 = 0x47514431 // "GQD1"
	formatVers  uint8  = 1
	flagCompressed uint8 = 1 << 0
)

// ErrDecode wraps any structural problem found while decoding a stream:
// bad magic, an unsupported version, truncated data, or an unknown node
// tag.
var ErrDecode = errors.New("serialize: malformed stream")

const (
	tagLeaf     byte = 0
	tagInternal byte = 1
)

// Header carries everything the runtime needs before it can start
// descending the tree: the lattice size, the country table, and the
// build identifier stamped in by the builder for provenance.
type Header struct {
	Precision int
	Xmax      int
	Ymax      int
	BuildID   string
	Countries CountryTable
}

// Encode writes header and the tree rooted at node to a single blob.
// When compress is true the whole payload (header and tree) is wrapped
// in a raw DEFLATE stream via compress/flate.
func Encode(node *quadtree.Node, header Header, compress bool) ([]byte, error) {
	var payload bytes.Buffer
	if err := writeHeader(&payload, header); err != nil {
		return nil, fmt.Errorf("serialize: write header: %w", err)
	}
	if err := writeNode(&payload, node); err != nil {
		return nil, fmt.Errorf("serialize: write tree: %w", err)
	}

	var out bytes.Buffer
	binary.Write(&out, binary.BigEndian, magic)
	out.WriteByte(formatVers)
	flags := byte(0)
	if compress {
		flags |= flagCompressed
	}
	out.WriteByte(flags)

	if !compress {
		out.Write(payload.Bytes())
		return out.Bytes(), nil
	}

	fw, err := flate.NewWriter(&out, flate.BestCompression)
	if err != nil {
		return nil, fmt.Errorf("serialize: open compressor: %w", err)
	}
	if _, err := fw.Write(payload.Bytes()); err != nil {
		return nil, fmt.Errorf("serialize: compress payload: %w", err)
	}
	if err := fw.Close(); err != nil {
		return nil, fmt.Errorf("serialize: finalize compressor: %w", err)
	}
	return out.Bytes(), nil
}

// EncodeTree writes just the preorder tree encoding, with no container
// header, magic, or compression. internal/codegen uses this to embed
// the tree bytes in generated source alongside header fields rendered
// as plain Go literals instead of packed binary.
func EncodeTree(node *quadtree.Node) ([]byte, error) {
	var buf bytes.Buffer
	if err := writeNode(&buf, node); err != nil {
		return nil, fmt.Errorf("serialize: write tree: %w", err)
	}
	return buf.Bytes(), nil
}

// StripContainer validates the magic number and version, and returns the
// raw header+tree payload with compression already undone. It exists so
// internal/runtime can parse the header and tree with its own,
// independent decoder instead of sharing this package's readNode —
// the two decoders are meant to be cross-checked against each other.
func StripContainer(data []byte) ([]byte, error) {
	r := bytes.NewReader(data)

	var gotMagic uint32
	if err := binary.Read(r, binary.BigEndian, &gotMagic); err != nil || gotMagic != magic {
		return nil, fmt.Errorf("%w: bad magic", ErrDecode)
	}
	vers, err := r.ReadByte()
	if err != nil || vers != formatVers {
		return nil, fmt.Errorf("%w: unsupported version", ErrDecode)
	}
	flags, err := r.ReadByte()
	if err != nil {
		return nil, fmt.Errorf("%w: truncated flags", ErrDecode)
	}

	if flags&flagCompressed == 0 {
		rest := make([]byte, r.Len())
		io.ReadFull(r, rest)
		return rest, nil
	}

	fr := flate.NewReader(r)
	defer fr.Close()
	out, err := io.ReadAll(fr)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDecode, err)
	}
	return out, nil
}

// Decode parses a blob produced by Encode, fully materializing the tree
// in memory. It is used by tests, the stats command, and anything that
// wants internal/quadtree.Node rather than streaming traversal.
func Decode(data []byte) (*quadtree.Node, Header, error) {
	r := bytes.NewReader(data)

	var gotMagic uint32
	if err := binary.Read(r, binary.BigEndian, &gotMagic); err != nil || gotMagic != magic {
		return nil, Header{}, fmt.Errorf("%w: bad magic", ErrDecode)
	}
	vers, err := r.ReadByte()
	if err != nil || vers != formatVers {
		return nil, Header{}, fmt.Errorf("%w: unsupported version", ErrDecode)
	}
	flags, err := r.ReadByte()
	if err != nil {
		return nil, Header{}, fmt.Errorf("%w: truncated flags", ErrDecode)
	}

	var payload io.Reader = r
	if flags&flagCompressed != 0 {
		payload = flate.NewReader(r)
	}

	br := newByteReader(payload)
	header, err := readHeader(br)
	if err != nil {
		return nil, Header{}, fmt.Errorf("serialize: read header: %w", err)
	}
	node, err := readNode(br)
	if err != nil {
		return nil, Header{}, fmt.Errorf("serialize: read tree: %w", err)
	}
	return node, header, nil
}

func writeHeader(w *bytes.Buffer, h Header) error {
	writeUvarint(w, uint64(h.Precision))
	writeUvarint(w, uint64(h.Xmax))
	writeUvarint(w, uint64(h.Ymax))

	idBytes := []byte(h.BuildID)
	if len(idBytes) > 255 {
		return fmt.Errorf("build id too long: %d bytes", len(idBytes))
	}
	w.WriteByte(byte(len(idBytes)))
	w.Write(idBytes)

	codes := h.Countries.Codes()
	writeUvarint(w, uint64(len(codes)))
	for _, code := range codes {
		if len(code) > 255 {
			return fmt.Errorf("country code too long: %q", code)
		}
		w.WriteByte(byte(len(code)))
		w.WriteString(code)
	}
	return nil
}

func readHeader(r *byteReader) (Header, error) {
	precision, err := r.uvarint()
	if err != nil {
		return Header{}, err
	}
	xmax, err := r.uvarint()
	if err != nil {
		return Header{}, err
	}
	ymax, err := r.uvarint()
	if err != nil {
		return Header{}, err
	}

	idLen, err := r.byte()
	if err != nil {
		return Header{}, err
	}
	idBytes, err := r.bytes(int(idLen))
	if err != nil {
		return Header{}, err
	}

	count, err := r.uvarint()
	if err != nil {
		return Header{}, err
	}
	codes := make([]string, count)
	for i := range codes {
		l, err := r.byte()
		if err != nil {
			return Header{}, err
		}
		b, err := r.bytes(int(l))
		if err != nil {
			return Header{}, err
		}
		codes[i] = string(b)
	}

	return Header{
		Precision: int(precision),
		Xmax:      int(xmax),
		Ymax:      int(ymax),
		BuildID:   string(idBytes),
		Countries: newCountryTable(codes),
	}, nil
}

func writeNode(w *bytes.Buffer, n *quadtree.Node) error {
	if n == nil {
		return fmt.Errorf("%w: nil node in tree", ErrDecode)
	}
	if n.Leaf {
		w.WriteByte(tagLeaf)
		writeUvarint(w, uint64(n.Country))
		return nil
	}

	var mask byte
	for i, c := range n.Children {
		if c != nil {
			mask |= 1 << uint(i)
		}
	}
	w.WriteByte(tagInternal)
	w.WriteByte(mask)
	for i, c := range n.Children {
		if mask&(1<<uint(i)) == 0 {
			continue
		}
		if err := writeNode(w, c); err != nil {
			return err
		}
	}
	return nil
}

func readNode(r *byteReader) (*quadtree.Node, error) {
	tag, err := r.byte()
	if err != nil {
		return nil, err
	}
	switch tag {
	case tagLeaf:
		country, err := r.uvarint()
		if err != nil {
			return nil, err
		}
		return quadtree.NewLeaf(uint16(country)), nil
	case tagInternal:
		mask, err := r.byte()
		if err != nil {
			return nil, err
		}
		var children [4]*quadtree.Node
		for i := 0; i < 4; i++ {
			if mask&(1<<uint(i)) == 0 {
				continue
			}
			child, err := readNode(r)
			if err != nil {
				return nil, err
			}
			children[i] = child
		}
		return quadtree.NewInternal(children), nil
	default:
		return nil, fmt.Errorf("%w: unknown node tag %d", ErrDecode, tag)
	}
}

func writeUvarint(w *bytes.Buffer, v uint64) {
	var buf [binary.MaxVarintLen64]byte
	n := binary.PutUvarint(buf[:], v)
	w.Write(buf[:n])
}
