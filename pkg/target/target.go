// Package target implements the fixed-width 256-bit difficulty target used
// by both proof-of-work and proof-of-stake blocks.
//
// A Target is an unsigned 256-bit integer; a lower target is harder to meet.
// Headers carry targets in the Bitcoin "compact" encoding, and the decoded
// compact value is the canonical one, so every node compares identical
// numbers.
package target

import (
	"encoding/hex"
	"errors"
	"fmt"
	"strings"

	"github.com/Klingon-tech/novanet/pkg/types"
	"github.com/holiman/uint256"
)

var (
	// ErrNegative is returned when a compact value has its sign bit set.
	ErrNegative = errors.New("compact target is negative")
	// ErrOverflow is returned when a compact value does not fit 256 bits.
	ErrOverflow = errors.New("compact target overflows 256 bits")
)

// Target is a 256-bit unsigned difficulty target. The zero value is zero.
type Target struct {
	n uint256.Int
}

// FromUint64 returns a target holding v.
func FromUint64(v uint64) Target {
	var t Target
	t.n.SetUint64(v)
	return t
}

// FromUint128 returns a target holding the 128-bit value hi:lo.
func FromUint128(hi, lo uint64) Target {
	var t Target
	t.n[0] = lo
	t.n[1] = hi
	return t
}

// Max returns 2^256 - 1.
func Max() Target {
	var t Target
	t.n.SetAllOne()
	return t
}

// PowLimit returns (2^256 - 1) >> shift, the usual way of writing a
// network's easiest target.
func PowLimit(shift uint) Target {
	t := Max()
	t.n.Rsh(&t.n, shift)
	return t
}

// FromBytes interprets b as a big-endian integer (at most 32 bytes).
func FromBytes(b []byte) Target {
	var t Target
	t.n.SetBytes(b)
	return t
}

// FromHash interprets a hash as a little-endian 256-bit integer, which is
// how block and kernel hashes are compared against targets.
func FromHash(h types.Hash) Target {
	r := h.Reverse()
	return FromBytes(r[:])
}

// FromHex parses a big-endian hex string, with or without a 0x prefix.
func FromHex(s string) (Target, error) {
	s = strings.TrimPrefix(strings.TrimPrefix(s, "0x"), "0X")
	if len(s)%2 == 1 {
		s = "0" + s
	}
	b, err := hex.DecodeString(s)
	if err != nil {
		return Target{}, fmt.Errorf("invalid target hex: %w", err)
	}
	if len(b) > 32 {
		return Target{}, fmt.Errorf("target must be at most 32 bytes, got %d", len(b))
	}
	return FromBytes(b), nil
}

// MustFromHex is FromHex for constants. It panics on error.
func MustFromHex(s string) Target {
	t, err := FromHex(s)
	if err != nil {
		panic(err)
	}
	return t
}

// Bytes32 returns the big-endian 32-byte encoding.
func (t Target) Bytes32() [32]byte {
	return t.n.Bytes32()
}

// Hex returns the 64-character big-endian hex encoding.
func (t Target) Hex() string {
	b := t.n.Bytes32()
	return hex.EncodeToString(b[:])
}

// String implements fmt.Stringer.
func (t Target) String() string {
	return t.Hex()
}

// MarshalText implements encoding.TextMarshaler.
func (t Target) MarshalText() ([]byte, error) {
	return []byte(t.Hex()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (t *Target) UnmarshalText(text []byte) error {
	parsed, err := FromHex(string(text))
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}

// Cmp compares t and o and returns -1, 0 or +1.
func (t Target) Cmp(o Target) int {
	return t.n.Cmp(&o.n)
}

// IsZero reports whether t is zero.
func (t Target) IsZero() bool {
	return t.n.IsZero()
}

// BitLen returns the number of bits required to represent t.
func (t Target) BitLen() int {
	return t.n.BitLen()
}

// Rsh returns t >> n.
func (t Target) Rsh(n uint) Target {
	var r Target
	r.n.Rsh(&t.n, n)
	return r
}

// Min returns the smaller of a and b.
func Min(a, b Target) Target {
	if a.Cmp(b) <= 0 {
		return a
	}
	return b
}

// Clamp bounds t to [lo, hi].
func Clamp(t, lo, hi Target) Target {
	if t.Cmp(lo) < 0 {
		return lo
	}
	if t.Cmp(hi) > 0 {
		return hi
	}
	return t
}

// MulDiv returns t * mul / div computed with a 512-bit intermediate. A
// result that does not fit 256 bits saturates at Max. div must be non-zero.
func (t Target) MulDiv(mul, div uint64) Target {
	if div == 0 {
		panic("target: MulDiv by zero")
	}
	var m, d uint256.Int
	m.SetUint64(mul)
	d.SetUint64(div)
	var r Target
	if _, overflow := r.n.MulDivOverflow(&t.n, &m, &d); overflow {
		return Max()
	}
	return r
}

// MulDivWide is MulDiv with a 128-bit multiplier given as hi:lo words,
// used when the multiplier is itself a product of two 64-bit values.
func (t Target) MulDivWide(mulHi, mulLo uint64, div Target) Target {
	if div.IsZero() {
		panic("target: MulDivWide by zero")
	}
	var m uint256.Int
	m[0] = mulLo
	m[1] = mulHi
	var r Target
	if _, overflow := r.n.MulDivOverflow(&t.n, &m, &div.n); overflow {
		return Max()
	}
	return r
}

// Work returns the expected number of hashes needed to meet t, computed as
// 2^256 / (t + 1) without leaving 256 bits.
func (t Target) Work() *uint256.Int {
	if t.n.Eq(new(uint256.Int).SetAllOne()) {
		return uint256.NewInt(1)
	}
	var notT, tPlus1, q uint256.Int
	notT.Not(&t.n)
	tPlus1.AddUint64(&t.n, 1)
	q.Div(&notT, &tPlus1)
	return q.AddUint64(&q, 1)
}

// FromCompact decodes a compact ("bits") target.
func FromCompact(bits uint32) (Target, error) {
	size := uint(bits >> 24)
	word := uint64(bits & 0x007fffff)

	if word != 0 && bits&0x00800000 != 0 {
		return Target{}, ErrNegative
	}
	if word != 0 && (size > 34 || (word > 0xff && size > 33) || (word > 0xffff && size > 32)) {
		return Target{}, ErrOverflow
	}

	var t Target
	if size <= 3 {
		t.n.SetUint64(word >> (8 * (3 - size)))
	} else {
		t.n.SetUint64(word)
		t.n.Lsh(&t.n, 8*(size-3))
	}
	return t, nil
}

// Compact encodes t in compact form. Precision below the top three
// significant bytes is dropped.
func (t Target) Compact() uint32 {
	size := uint((t.n.BitLen() + 7) / 8)
	var word uint64
	if size <= 3 {
		word = t.n.Uint64() << (8 * (3 - size))
	} else {
		var shifted uint256.Int
		shifted.Rsh(&t.n, 8*(size-3))
		word = shifted.Uint64()
	}
	// The 0x00800000 bit is the sign; move into the next size if set.
	if word&0x00800000 != 0 {
		word >>= 8
		size++
	}
	return uint32(word) | uint32(size)<<24
}

// Normalize returns the value t has after a compact round trip.
func (t Target) Normalize() Target {
	n, err := FromCompact(t.Compact())
	if err != nil {
		// Compact never produces a negative or overflowing encoding.
		panic(err)
	}
	return n
}
