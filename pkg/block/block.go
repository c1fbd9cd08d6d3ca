// Package block defines blocks, their wire encoding, structural checks and
// the genesis block.
package block

import (
	"fmt"

	"github.com/Klingon-tech/novanet/pkg/tx"
	"github.com/Klingon-tech/novanet/pkg/types"
	"github.com/Klingon-tech/novanet/pkg/wire"
)

// Kind distinguishes proof-of-work from proof-of-stake blocks.
type Kind uint8

const (
	KindPoW Kind = iota
	KindPoS
)

// String returns "pow" or "pos".
func (k Kind) String() string {
	if k == KindPoS {
		return "pos"
	}
	return "pow"
}

// Block represents a block in the chain. Proof-of-stake blocks carry a
// signature by the staker's key; it is not covered by the block hash.
type Block struct {
	Header       *Header           `json:"header"`
	Transactions []*tx.Transaction `json:"transactions"`
	Signature    []byte            `json:"signature,omitempty"`
}

// NewBlock creates a new block with the given header and transactions.
func NewBlock(header *Header, txs []*tx.Transaction) *Block {
	return &Block{
		Header:       header,
		Transactions: txs,
	}
}

// Hash returns the block header hash.
func (b *Block) Hash() types.Hash {
	if b.Header == nil {
		return types.Hash{}
	}
	return b.Header.Hash()
}

// IsProofOfStake reports whether the block's second transaction is a
// coinstake.
func (b *Block) IsProofOfStake() bool {
	return len(b.Transactions) > 1 && b.Transactions[1].IsCoinStake()
}

// Kind returns the block's kind.
func (b *Block) Kind() Kind {
	if b.IsProofOfStake() {
		return KindPoS
	}
	return KindPoW
}

// Coinstake returns the coinstake transaction of a proof-of-stake block,
// or nil.
func (b *Block) Coinstake() *tx.Transaction {
	if !b.IsProofOfStake() {
		return nil
	}
	return b.Transactions[1]
}

// TxHashes returns the IDs of all transactions in order.
func (b *Block) TxHashes() []types.Hash {
	hashes := make([]types.Hash, len(b.Transactions))
	for i, t := range b.Transactions {
		hashes[i] = t.Hash()
	}
	return hashes
}

// Serialize returns the wire encoding.
// Format: header(80) | varint n | transactions | varbytes signature
func (b *Block) Serialize() []byte {
	buf := make([]byte, 0, b.SerializeSize())
	buf = b.Header.AppendTo(buf)
	buf = wire.AppendVarInt(buf, uint64(len(b.Transactions)))
	for _, t := range b.Transactions {
		buf = t.AppendTo(buf)
	}
	return wire.AppendBytes(buf, b.Signature)
}

// SerializeSize returns the length of the wire encoding, the size checked
// against the block size limit.
func (b *Block) SerializeSize() int {
	n := HeaderSize + wire.VarIntSize(uint64(len(b.Transactions)))
	for _, t := range b.Transactions {
		n += t.SerializeSize()
	}
	return n + wire.VarIntSize(uint64(len(b.Signature))) + len(b.Signature)
}

// minTxSize is the smallest possible encoded transaction.
const minTxSize = 4 + 4 + 1 + 1 + 4

// Decode reads one block from r.
func Decode(r *wire.Reader) *Block {
	b := &Block{Header: DecodeHeader(r)}
	n := r.Count(minTxSize)
	b.Transactions = make([]*tx.Transaction, 0, n)
	for i := 0; i < n && r.Err() == nil; i++ {
		b.Transactions = append(b.Transactions, tx.Decode(r))
	}
	b.Signature = r.Bytes()
	return b
}

// Deserialize decodes a block that must span all of data.
func Deserialize(data []byte) (*Block, error) {
	r := wire.NewReader(data)
	b := Decode(r)
	if err := r.Err(); err != nil {
		return nil, fmt.Errorf("decode block: %w", err)
	}
	if r.Remaining() != 0 {
		return nil, fmt.Errorf("decode block: %d trailing bytes", r.Remaining())
	}
	return b, nil
}
