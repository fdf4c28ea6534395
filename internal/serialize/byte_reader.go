package serialize

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"
)

// byteReader adapts any io.Reader (including a flate.Reader, which is
// not itself an io.ByteReader) to the small read surface the decoder
// needs: single bytes, fixed-length runs, and unsigned varints.
type byteReader struct {
	r *bufio.Reader
}

func newByteReader(r io.Reader) *byteReader {
	return &byteReader{r: bufio.NewReader(r)}
}

func (b *byteReader) byte() (byte, error) {
	c, err := b.r.ReadByte()
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrDecode, err)
	}
	return c, nil
}

func (b *byteReader) bytes(n int) ([]byte, error) {
	if n == 0 {
		return nil, nil
	}
	buf := make([]byte, n)
	if _, err := io.ReadFull(b.r, buf); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDecode, err)
	}
	return buf, nil
}

func (b *byteReader) uvarint() (uint64, error) {
	v, err := binary.ReadUvarint(b.r)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrDecode, err)
	}
	return v, nil
}
