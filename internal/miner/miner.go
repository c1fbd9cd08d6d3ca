// Package miner assembles and seals proof-of-work blocks on the active
// chain tip. Deciding when to mine is left to the caller.
package miner

import (
	"context"
	"fmt"
	"sync/atomic"

	"github.com/Klingon-tech/novanet/config"
	"github.com/Klingon-tech/novanet/internal/chain"
	"github.com/Klingon-tech/novanet/internal/consensus"
	"github.com/Klingon-tech/novanet/pkg/block"
	"github.com/Klingon-tech/novanet/pkg/script"
	"github.com/Klingon-tech/novanet/pkg/tx"
	"github.com/Klingon-tech/novanet/pkg/types"
)

// ChainState provides read-only access to the current chain state.
type ChainState interface {
	Snapshot() chain.State
	Params() *config.Params
	Engine() *consensus.Engine
}

// Miner produces proof-of-work blocks paying a fixed script.
type Miner struct {
	chain     ChainState
	payScript []byte
	threads   int
	extra     atomic.Int64
}

// New creates a block producer. threads is passed to the nonce search.
func New(chain ChainState, payScript []byte, threads int) *Miner {
	return &Miner{chain: chain, payScript: payScript, threads: threads}
}

// ProduceBlockAt builds and seals a block on the current tip with the given
// timestamp, bumped past the tip's median time if needed. fees is the total
// fee paid by txs, which the coinbase collects on top of the reward.
// The block is NOT applied to the chain; the caller must process it.
func (m *Miner) ProduceBlockAt(ctx context.Context, timestamp uint32, fees uint64, txs ...*tx.Transaction) (*block.Block, error) {
	s := m.chain.Snapshot()
	if !s.Initialized() {
		return nil, fmt.Errorf("chain has no tip")
	}
	if timestamp <= s.MedianTime {
		timestamp = s.MedianTime + 1
	}

	reward := m.Reward(&s)
	coinbase := m.BuildCoinbase(s.Height+1, timestamp, reward+fees)
	all := make([]*tx.Transaction, 0, 1+len(txs))
	all = append(all, coinbase)
	all = append(all, txs...)

	blk := block.NewBlock(&block.Header{
		Version:   block.CurrentVersion,
		PrevHash:  s.TipHash,
		Timestamp: timestamp,
		Bits:      s.NextPoWTarget.Compact(),
	}, all)
	blk.Header.MerkleRoot = block.ComputeMerkleRoot(blk.TxHashes())

	sealer := consensus.Miner{Threads: m.threads}
	if err := sealer.Mine(ctx, blk.Header); err != nil {
		return nil, fmt.Errorf("seal block: %w", err)
	}
	return blk, nil
}

// Reward returns the new coins a proof-of-work block on s may mint, cut
// down to what is left under the money supply cap. The premine is claimed
// when building directly on genesis.
func (m *Miner) Reward(s *chain.State) uint64 {
	p := m.chain.Params()
	reward := m.chain.Engine().Supply.ExpectedReward(consensus.RewardContext{
		Kind:     block.KindPoW,
		Height:   s.Height + 1,
		FirstPoW: s.Height == 0,
	})
	if s.Supply >= p.MaxMoney {
		return 0
	}
	if left := p.MaxMoney - s.Supply; reward > left {
		reward = left
	}
	return reward
}

// BuildCoinbase creates a coinbase paying value to the miner's script.
// The height and an extra nonce are pushed in the scriptSig so every
// coinbase has a unique hash.
func (m *Miner) BuildCoinbase(height, timestamp uint32, value uint64) *tx.Transaction {
	out := tx.Output{Value: int64(value), ScriptPubKey: m.payScript}
	if value == 0 {
		out = tx.Output{}
	}
	return &tx.Transaction{
		Version: 1,
		Time:    timestamp,
		Inputs: []tx.Input{{
			PrevOut:   types.NullOutpoint(),
			ScriptSig: script.NewBuilder().AddInt64(int64(height)).AddInt64(m.extra.Add(1)).Script(),
			Sequence:  tx.SequenceFinal,
		}},
		Outputs: []tx.Output{out},
	}
}
