package utxo

import (
	"encoding/binary"
	"fmt"
	"slices"

	"github.com/Klingon-tech/novanet/pkg/block"
	"github.com/Klingon-tech/novanet/pkg/crypto"
	"github.com/Klingon-tech/novanet/pkg/types"
)

// Commitment computes a merkle root over all UTXOs in the store.
// Each UTXO is hashed deterministically, the hashes are sorted, and
// a merkle tree is built from them. Returns a zero hash for an empty set.
// Two nodes with the same active chain have the same commitment.
func Commitment(store *Store) (types.Hash, error) {
	var hashes []types.Hash

	err := store.ForEach(func(u *UTXO) error {
		hashes = append(hashes, hashUTXO(u))
		return nil
	})
	if err != nil {
		return types.Hash{}, fmt.Errorf("utxo commitment: %w", err)
	}

	if len(hashes) == 0 {
		return types.Hash{}, nil
	}

	slices.SortFunc(hashes, func(a, b types.Hash) int {
		return slices.Compare(a[:], b[:])
	})

	return block.ComputeMerkleRoot(hashes), nil
}

// hashUTXO produces a deterministic hash of a UTXO.
// Format: txid(32) | index(4) | value(8) | height(4) | block_time(4) |
// tx_time(4) | flags(1) | script
func hashUTXO(u *UTXO) types.Hash {
	buf := make([]byte, 0, 57+len(u.ScriptPubKey))
	buf = append(buf, u.Outpoint.TxID[:]...)
	buf = binary.LittleEndian.AppendUint32(buf, u.Outpoint.Index)
	buf = binary.LittleEndian.AppendUint64(buf, uint64(u.Value))
	buf = binary.LittleEndian.AppendUint32(buf, u.Height)
	buf = binary.LittleEndian.AppendUint32(buf, u.BlockTime)
	buf = binary.LittleEndian.AppendUint32(buf, u.TxTime)
	var flags byte
	if u.Coinbase {
		flags |= 1
	}
	if u.Coinstake {
		flags |= 2
	}
	buf = append(buf, flags)
	buf = append(buf, u.ScriptPubKey...)
	return crypto.Hash(buf)
}
