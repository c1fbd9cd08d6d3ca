package block

import (
	"encoding/binary"
	"fmt"

	"github.com/Klingon-tech/novanet/pkg/crypto"
	"github.com/Klingon-tech/novanet/pkg/target"
	"github.com/Klingon-tech/novanet/pkg/types"
	"github.com/Klingon-tech/novanet/pkg/wire"
)

// HeaderSize is the serialized size of a header.
const HeaderSize = 80

// Header contains block metadata. Height is not part of the header; it is
// derived from the block's position in the chain.
type Header struct {
	Version    uint32     `json:"version"`
	PrevHash   types.Hash `json:"prev_hash"`
	MerkleRoot types.Hash `json:"merkle_root"`
	Timestamp  uint32     `json:"timestamp"`
	Bits       uint32     `json:"bits"` // compact target of the block's kind
	Nonce      uint32     `json:"nonce"`
}

// Hash computes the block hash: SHA-256d of the 80-byte header.
func (h *Header) Hash() types.Hash {
	return crypto.Hash(h.Serialize())
}

// Serialize returns the canonical header bytes.
// Format: version(4) | prev_hash(32) | merkle_root(32) | timestamp(4) | bits(4) | nonce(4)
func (h *Header) Serialize() []byte {
	return h.AppendTo(make([]byte, 0, HeaderSize))
}

// AppendTo appends the header bytes to buf.
func (h *Header) AppendTo(buf []byte) []byte {
	buf = binary.LittleEndian.AppendUint32(buf, h.Version)
	buf = append(buf, h.PrevHash[:]...)
	buf = append(buf, h.MerkleRoot[:]...)
	buf = binary.LittleEndian.AppendUint32(buf, h.Timestamp)
	buf = binary.LittleEndian.AppendUint32(buf, h.Bits)
	return binary.LittleEndian.AppendUint32(buf, h.Nonce)
}

// Target decodes the header's compact target.
func (h *Header) Target() (target.Target, error) {
	return target.FromCompact(h.Bits)
}

// DecodeHeader reads a header from r.
func DecodeHeader(r *wire.Reader) *Header {
	h := &Header{}
	h.Version = r.Uint32()
	h.PrevHash = r.Hash()
	h.MerkleRoot = r.Hash()
	h.Timestamp = r.Uint32()
	h.Bits = r.Uint32()
	h.Nonce = r.Uint32()
	return h
}

// DeserializeHeader decodes exactly HeaderSize bytes.
func DeserializeHeader(b []byte) (*Header, error) {
	if len(b) != HeaderSize {
		return nil, fmt.Errorf("decode header: got %d bytes, want %d", len(b), HeaderSize)
	}
	r := wire.NewReader(b)
	h := DecodeHeader(r)
	if err := r.Err(); err != nil {
		return nil, fmt.Errorf("decode header: %w", err)
	}
	return h, nil
}
