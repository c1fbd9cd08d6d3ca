// Package script implements the subset of the transaction script language
// the consensus rules need: parsing, legacy signature-operation counting,
// push building and the standard pay-to-pubkey templates.
package script

import (
	"encoding/binary"
	"errors"
	"fmt"
)

// Opcodes used by consensus code.
const (
	Op0                   byte = 0x00
	OpPushData1           byte = 0x4c
	OpPushData2           byte = 0x4d
	OpPushData4           byte = 0x4e
	Op1Negate             byte = 0x4f
	Op1                   byte = 0x51
	Op16                  byte = 0x60
	OpReturn              byte = 0x6a
	OpDup                 byte = 0x76
	OpEqual               byte = 0x87
	OpEqualVerify         byte = 0x88
	OpHash160             byte = 0xa9
	OpCheckSig            byte = 0xac
	OpCheckSigVerify      byte = 0xad
	OpCheckMultiSig       byte = 0xae
	OpCheckMultiSigVerify byte = 0xaf
)

// MaxPubKeysPerMultiSig is the sigop weight of a legacy CHECKMULTISIG.
const MaxPubKeysPerMultiSig = 20

// SigHashAll is the only signature hash type accepted by the standard
// templates.
const SigHashAll byte = 0x01

// ErrMalformed is returned when a push runs past the end of the script.
var ErrMalformed = errors.New("malformed script")

// Op is one parsed instruction: an opcode and, for pushes, its data.
type Op struct {
	Code byte
	Data []byte
}

// Parse splits a script into instructions. On a truncated push it returns
// the instructions read so far together with ErrMalformed.
func Parse(s []byte) ([]Op, error) {
	var ops []Op
	for i := 0; i < len(s); {
		code := s[i]
		i++

		var n int
		switch {
		case code > Op0 && code < OpPushData1:
			n = int(code)
		case code == OpPushData1:
			if i+1 > len(s) {
				return ops, ErrMalformed
			}
			n = int(s[i])
			i++
		case code == OpPushData2:
			if i+2 > len(s) {
				return ops, ErrMalformed
			}
			n = int(binary.LittleEndian.Uint16(s[i:]))
			i += 2
		case code == OpPushData4:
			if i+4 > len(s) {
				return ops, ErrMalformed
			}
			n = int(binary.LittleEndian.Uint32(s[i:]))
			i += 4
		default:
			ops = append(ops, Op{Code: code})
			continue
		}

		if n < 0 || i+n > len(s) {
			return ops, ErrMalformed
		}
		ops = append(ops, Op{Code: code, Data: s[i : i+n]})
		i += n
	}
	return ops, nil
}

// SigOpCount returns the legacy signature-operation count of a script:
// CHECKSIG counts one and CHECKMULTISIG counts MaxPubKeysPerMultiSig.
// Counting stops at the first malformed push.
func SigOpCount(s []byte) int {
	ops, _ := Parse(s)
	n := 0
	for _, op := range ops {
		switch op.Code {
		case OpCheckSig, OpCheckSigVerify:
			n++
		case OpCheckMultiSig, OpCheckMultiSigVerify:
			n += MaxPubKeysPerMultiSig
		}
	}
	return n
}

// IsPushOnly reports whether every instruction is a data push.
func IsPushOnly(s []byte) bool {
	ops, err := Parse(s)
	if err != nil {
		return false
	}
	for _, op := range ops {
		if op.Code > Op16 {
			return false
		}
	}
	return true
}

// PayToPubKey returns <pubkey> CHECKSIG.
func PayToPubKey(pubKey []byte) []byte {
	return NewBuilder().AddData(pubKey).AddOp(OpCheckSig).Script()
}

// PayToPubKeyHash returns DUP HASH160 <hash> EQUALVERIFY CHECKSIG.
func PayToPubKeyHash(hash [20]byte) []byte {
	return NewBuilder().
		AddOp(OpDup).AddOp(OpHash160).
		AddData(hash[:]).
		AddOp(OpEqualVerify).AddOp(OpCheckSig).
		Script()
}

// ExtractPubKey returns the key of a pay-to-pubkey script.
func ExtractPubKey(s []byte) ([]byte, bool) {
	ops, err := Parse(s)
	if err != nil || len(ops) != 2 || ops[1].Code != OpCheckSig {
		return nil, false
	}
	if l := len(ops[0].Data); l != 33 && l != 65 {
		return nil, false
	}
	return ops[0].Data, true
}

// ExtractPubKeyHash returns the hash of a pay-to-pubkey-hash script.
func ExtractPubKeyHash(s []byte) ([20]byte, bool) {
	var h [20]byte
	ops, err := Parse(s)
	if err != nil || len(ops) != 5 {
		return h, false
	}
	if ops[0].Code != OpDup || ops[1].Code != OpHash160 ||
		len(ops[2].Data) != 20 || ops[3].Code != OpEqualVerify || ops[4].Code != OpCheckSig {
		return h, false
	}
	copy(h[:], ops[2].Data)
	return h, true
}

// Builder assembles scripts with minimal push encodings.
type Builder struct {
	buf []byte
}

// NewBuilder returns an empty script builder.
func NewBuilder() *Builder {
	return &Builder{}
}

// AddOp appends a bare opcode.
func (b *Builder) AddOp(op byte) *Builder {
	b.buf = append(b.buf, op)
	return b
}

// AddData appends a push of data using the smallest push opcode.
func (b *Builder) AddData(data []byte) *Builder {
	n := len(data)
	switch {
	case n < int(OpPushData1):
		b.buf = append(b.buf, byte(n))
	case n <= 0xff:
		b.buf = append(b.buf, OpPushData1, byte(n))
	case n <= 0xffff:
		b.buf = append(b.buf, OpPushData2, byte(n), byte(n>>8))
	default:
		var l [4]byte
		binary.LittleEndian.PutUint32(l[:], uint32(n))
		b.buf = append(b.buf, OpPushData4)
		b.buf = append(b.buf, l[:]...)
	}
	b.buf = append(b.buf, data...)
	return b
}

// AddInt64 appends a number. Small values use OP_0, OP_1NEGATE and
// OP_1..OP_16; anything else is pushed as a minimal little-endian
// sign-magnitude integer.
func (b *Builder) AddInt64(v int64) *Builder {
	switch {
	case v == 0:
		return b.AddOp(Op0)
	case v == -1:
		return b.AddOp(Op1Negate)
	case v >= 1 && v <= 16:
		return b.AddOp(Op1 + byte(v-1))
	}
	return b.AddData(encodeNum(v))
}

// Script returns the assembled bytes.
func (b *Builder) Script() []byte {
	out := make([]byte, len(b.buf))
	copy(out, b.buf)
	return out
}

func encodeNum(v int64) []byte {
	neg := v < 0
	mag := uint64(v)
	if neg {
		mag = uint64(-v)
	}
	var out []byte
	for mag > 0 {
		out = append(out, byte(mag))
		mag >>= 8
	}
	if out[len(out)-1]&0x80 != 0 {
		if neg {
			out = append(out, 0x80)
		} else {
			out = append(out, 0x00)
		}
	} else if neg {
		out[len(out)-1] |= 0x80
	}
	return out
}

// String renders a script for logs.
func String(s []byte) string {
	ops, err := Parse(s)
	out := ""
	for i, op := range ops {
		if i > 0 {
			out += " "
		}
		if op.Data != nil || (op.Code > Op0 && op.Code <= OpPushData4) {
			out += fmt.Sprintf("%x", op.Data)
		} else {
			out += fmt.Sprintf("OP_%02x", op.Code)
		}
	}
	if err != nil {
		out += " [error]"
	}
	return out
}
