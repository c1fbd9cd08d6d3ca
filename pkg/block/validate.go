package block

import (
	"github.com/Klingon-tech/novanet/config"
	"github.com/Klingon-tech/novanet/internal/consensus/ruleerrors"
	"github.com/Klingon-tech/novanet/pkg/types"
	"github.com/pkg/errors"
)

// Block version constants.
const (
	CurrentVersion = 1 // The current block version produced by this software.
	MaxVersion     = 1 // Bump when a fork introduces a new block version.
)

// CheckSanity runs the context-free checks on a block: everything that can
// be decided from the block itself, the parameters and the local clock.
// It is safe to call concurrently on different blocks. The proof of work
// and the block signature are checked separately (see CheckSignature).
func (b *Block) CheckSanity(p *config.Params, now uint32) error {
	if b.Header == nil {
		return errors.Wrap(ruleerrors.ErrBadBlockStructure, "block has no header")
	}
	if b.Header.Version < 1 || b.Header.Version > MaxVersion {
		return errors.Wrapf(ruleerrors.ErrBadBlockStructure, "unsupported block version %d", b.Header.Version)
	}
	if len(b.Transactions) == 0 {
		return errors.Wrap(ruleerrors.ErrBadBlockStructure, "block has no transactions")
	}

	if size := b.SerializeSize(); size > int(p.MaxBlockSize) {
		return errors.Wrapf(ruleerrors.ErrOversizeBlock, "block is %d bytes, max %d", size, p.MaxBlockSize)
	}

	if maxTime := uint64(now) + uint64(p.MaxClockDrift); uint64(b.Header.Timestamp) > maxTime {
		return errors.Wrapf(ruleerrors.ErrBadTimestamp, "block time %d too far in the future (now %d, drift %d)",
			b.Header.Timestamp, now, p.MaxClockDrift)
	}

	if !b.Transactions[0].IsCoinBase() {
		return errors.Wrap(ruleerrors.ErrBadBlockStructure, "first transaction is not a coinbase")
	}
	for i, t := range b.Transactions[1:] {
		if t.IsCoinBase() {
			return errors.Wrapf(ruleerrors.ErrBadBlockStructure, "tx %d: more than one coinbase", i+1)
		}
	}
	for i := 2; i < len(b.Transactions); i++ {
		if b.Transactions[i].IsCoinStake() {
			return errors.Wrapf(ruleerrors.ErrBadBlockStructure, "tx %d: coinstake out of position", i)
		}
	}

	if b.IsProofOfStake() {
		// The coinbase of a stake block mints nothing.
		cb := b.Transactions[0]
		if len(cb.Outputs) != 1 || !cb.Outputs[0].IsEmpty() {
			return errors.Wrap(ruleerrors.ErrBadBlockStructure, "coinbase of proof-of-stake block must have a single empty output")
		}
		if cs := b.Transactions[1]; cs.Time != b.Header.Timestamp {
			return errors.Wrapf(ruleerrors.ErrBadTimestamp, "coinstake time %d differs from block time %d",
				cs.Time, b.Header.Timestamp)
		}
	}

	for i, t := range b.Transactions {
		if err := t.Validate(p); err != nil {
			return errors.Wrapf(ruleerrors.ErrBadTransaction, "tx %d: %v", i, err)
		}
		if t.Time > b.Header.Timestamp {
			return errors.Wrapf(ruleerrors.ErrBadTimestamp, "tx %d: time %d after block time %d",
				i, t.Time, b.Header.Timestamp)
		}
	}

	// Transaction IDs, merkle root and in-block spends.
	hashes := b.TxHashes()
	created := make(map[types.Hash]struct{}, len(hashes))
	for i, h := range hashes {
		if _, dup := created[h]; dup {
			return errors.Wrapf(ruleerrors.ErrBadBlockStructure, "tx %d: duplicate transaction %s", i, h)
		}
		created[h] = struct{}{}
	}
	if root := ComputeMerkleRoot(hashes); root != b.Header.MerkleRoot {
		return errors.Wrapf(ruleerrors.ErrBadBlockStructure, "merkle root mismatch: header=%s computed=%s",
			b.Header.MerkleRoot, root)
	}

	spent := make(map[types.Outpoint]int)
	orphans := 0
	for i, t := range b.Transactions {
		if i == 0 {
			continue
		}
		dependent := false
		for _, in := range t.Inputs {
			if prev, dup := spent[in.PrevOut]; dup {
				return errors.Wrapf(ruleerrors.ErrBadTransaction, "tx %d: outpoint %s also spent by tx %d",
					i, in.PrevOut, prev)
			}
			spent[in.PrevOut] = i
			if _, ok := created[in.PrevOut.TxID]; ok {
				dependent = true
			}
		}
		if dependent {
			orphans++
		}
	}
	if orphans > int(p.MaxBlockOrphanTx()) {
		return errors.Wrapf(ruleerrors.ErrTooManyOrphanTx, "%d dependent transactions, max %d",
			orphans, p.MaxBlockOrphanTx())
	}

	sigops := 0
	for _, t := range b.Transactions {
		sigops += t.SigOpCount()
	}
	if sigops > int(p.MaxBlockSigops()) {
		return errors.Wrapf(ruleerrors.ErrTooManySigops, "%d sigops, max %d", sigops, p.MaxBlockSigops())
	}

	return nil
}
