// Package wire holds the little-endian, varint-prefixed primitives shared
// by the block, transaction and checkpoint encodings.
package wire

import (
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/Klingon-tech/novanet/pkg/types"
)

var (
	// ErrShortRead is returned when the input ends before a field does.
	ErrShortRead = errors.New("unexpected end of data")
	// ErrNonCanonical is returned for a varint that is not minimally encoded.
	ErrNonCanonical = errors.New("non-canonical varint")
)

// AppendVarInt appends a Bitcoin-style compact size.
func AppendVarInt(buf []byte, v uint64) []byte {
	switch {
	case v < 0xfd:
		return append(buf, byte(v))
	case v <= 0xffff:
		buf = append(buf, 0xfd)
		return binary.LittleEndian.AppendUint16(buf, uint16(v))
	case v <= 0xffffffff:
		buf = append(buf, 0xfe)
		return binary.LittleEndian.AppendUint32(buf, uint32(v))
	default:
		buf = append(buf, 0xff)
		return binary.LittleEndian.AppendUint64(buf, v)
	}
}

// AppendBytes appends a varint length followed by b.
func AppendBytes(buf, b []byte) []byte {
	buf = AppendVarInt(buf, uint64(len(b)))
	return append(buf, b...)
}

// VarIntSize returns the encoded length of v.
func VarIntSize(v uint64) int {
	switch {
	case v < 0xfd:
		return 1
	case v <= 0xffff:
		return 3
	case v <= 0xffffffff:
		return 5
	default:
		return 9
	}
}

// Reader decodes fields from a byte slice. The first error sticks; later
// reads return zero values, so callers check Err once at the end.
type Reader struct {
	buf []byte
	off int
	err error
}

// NewReader returns a Reader over b.
func NewReader(b []byte) *Reader {
	return &Reader{buf: b}
}

// Err returns the first decoding error.
func (r *Reader) Err() error {
	return r.err
}

// Remaining returns the number of unread bytes.
func (r *Reader) Remaining() int {
	return len(r.buf) - r.off
}

// Offset returns the number of bytes consumed.
func (r *Reader) Offset() int {
	return r.off
}

func (r *Reader) next(n int) []byte {
	if r.err != nil {
		return nil
	}
	if n < 0 || r.Remaining() < n {
		r.err = fmt.Errorf("%w: need %d bytes at offset %d", ErrShortRead, n, r.off)
		return nil
	}
	b := r.buf[r.off : r.off+n]
	r.off += n
	return b
}

// Uint8 reads one byte.
func (r *Reader) Uint8() uint8 {
	b := r.next(1)
	if b == nil {
		return 0
	}
	return b[0]
}

// Uint16 reads a little-endian uint16.
func (r *Reader) Uint16() uint16 {
	b := r.next(2)
	if b == nil {
		return 0
	}
	return binary.LittleEndian.Uint16(b)
}

// Uint32 reads a little-endian uint32.
func (r *Reader) Uint32() uint32 {
	b := r.next(4)
	if b == nil {
		return 0
	}
	return binary.LittleEndian.Uint32(b)
}

// Uint64 reads a little-endian uint64.
func (r *Reader) Uint64() uint64 {
	b := r.next(8)
	if b == nil {
		return 0
	}
	return binary.LittleEndian.Uint64(b)
}

// Hash reads 32 raw bytes.
func (r *Reader) Hash() types.Hash {
	var h types.Hash
	if b := r.next(types.HashSize); b != nil {
		copy(h[:], b)
	}
	return h
}

// VarInt reads a compact size and rejects non-minimal encodings.
func (r *Reader) VarInt() uint64 {
	prefix := r.Uint8()
	var v, min uint64
	switch prefix {
	case 0xfd:
		v, min = uint64(r.Uint16()), 0xfd
	case 0xfe:
		v, min = uint64(r.Uint32()), 0x10000
	case 0xff:
		v, min = r.Uint64(), 0x100000000
	default:
		return uint64(prefix)
	}
	if r.err == nil && v < min {
		r.err = fmt.Errorf("%w: %d", ErrNonCanonical, v)
		return 0
	}
	return v
}

// Count reads a varint element count, bounded by the bytes left so a
// forged count cannot force a huge allocation. minSize is the smallest
// encoded size of one element.
func (r *Reader) Count(minSize int) int {
	n := r.VarInt()
	if r.err != nil {
		return 0
	}
	if minSize < 1 {
		minSize = 1
	}
	if n > uint64(r.Remaining()/minSize) {
		r.err = fmt.Errorf("%w: count %d exceeds remaining data", ErrShortRead, n)
		return 0
	}
	return int(n)
}

// Bytes reads a varint-prefixed byte string and returns a copy.
func (r *Reader) Bytes() []byte {
	n := r.VarInt()
	if r.err != nil {
		return nil
	}
	if n > uint64(r.Remaining()) {
		r.err = fmt.Errorf("%w: byte string of %d at offset %d", ErrShortRead, n, r.off)
		return nil
	}
	b := r.next(int(n))
	out := make([]byte, len(b))
	copy(out, b)
	return out
}
