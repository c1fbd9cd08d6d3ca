package chain

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/Klingon-tech/novanet/config"
	"github.com/Klingon-tech/novanet/internal/consensus"
	"github.com/Klingon-tech/novanet/internal/log"
	"github.com/Klingon-tech/novanet/internal/storage"
	"github.com/Klingon-tech/novanet/pkg/block"
	"github.com/Klingon-tech/novanet/pkg/crypto"
	"github.com/Klingon-tech/novanet/pkg/script"
	"github.com/Klingon-tech/novanet/pkg/tx"
	"github.com/Klingon-tech/novanet/pkg/types"
	"github.com/rs/zerolog"
)

const blockSpacing = 60

func init() {
	log.SetLogger(zerolog.Nop())
}

// harness is a regtest chain on an in-memory database with keys for
// coinbases, stakes and checkpoints.
type harness struct {
	t      *testing.T
	params *config.Params
	opts   Options
	db     storage.Store
	chain  *Chain
	key    *crypto.PrivateKey
	cpKey  *crypto.PrivateKey
	nonce  int64
}

func newHarness(t *testing.T, mutate func(p *config.Params, opts *Options)) *harness {
	t.Helper()
	key, err := crypto.GenerateKey()
	if err != nil {
		t.Fatalf("GenerateKey: %v", err)
	}
	cpKey, err := crypto.GenerateKey()
	if err != nil {
		t.Fatalf("GenerateKey: %v", err)
	}

	p := config.RegtestParams()
	p.CheckpointPublicKey = cpKey.PublicKey()
	now := time.Unix(int64(p.GenesisBlockTime)+30*24*3600, 0)
	opts := Options{
		Workers: 2,
		Now:     func() time.Time { return now },
		Scripts: StandardScripts{},
	}
	if mutate != nil {
		mutate(p, &opts)
	}

	h := &harness{t: t, params: p, opts: opts, db: storage.NewMemory(), key: key, cpKey: cpKey}
	h.chain = h.open()
	return h
}

// open creates a Chain on the harness database, initializing genesis on
// first use.
func (h *harness) open() *Chain {
	h.t.Helper()
	c, err := New(h.params, h.db, h.opts)
	if err != nil {
		h.t.Fatalf("New: %v", err)
	}
	if c.Snapshot().TipHash.IsZero() {
		if err := c.InitFromGenesis(); err != nil {
			h.t.Fatalf("InitFromGenesis: %v", err)
		}
	}
	return c
}

func (h *harness) node(hash types.Hash) *blockNode {
	h.t.Helper()
	h.chain.mu.Lock()
	defer h.chain.mu.Unlock()
	n := h.chain.index[hash]
	if n == nil {
		h.t.Fatalf("block %s not in index", hash)
	}
	return n
}

func (h *harness) bits(parent *blockNode, kind block.Kind) uint32 {
	h.chain.mu.Lock()
	defer h.chain.mu.Unlock()
	return h.chain.nextTarget(parent, kind).Compact()
}

func (h *harness) payScript() []byte {
	return script.PayToPubKey(h.key.PublicKey())
}

// coinbase pays value to the harness key; zero value gives the single
// empty output of a stake block. Every coinbase is unique.
func (h *harness) coinbase(height, ts uint32, value int64) *tx.Transaction {
	h.nonce++
	out := tx.Output{Value: value, ScriptPubKey: h.payScript()}
	if value == 0 {
		out = tx.Output{}
	}
	return &tx.Transaction{
		Version: 1,
		Time:    ts,
		Inputs: []tx.Input{{
			PrevOut:   types.NullOutpoint(),
			ScriptSig: script.NewBuilder().AddInt64(int64(height)).AddInt64(h.nonce).Script(),
			Sequence:  tx.SequenceFinal,
		}},
		Outputs: []tx.Output{out},
	}
}

// spend pays a harness-key output back to the key minus fee, signed.
func (h *harness) spend(op types.Outpoint, value, fee int64, ts uint32) *tx.Transaction {
	h.t.Helper()
	t := &tx.Transaction{
		Version: 1,
		Time:    ts,
		Inputs:  []tx.Input{{PrevOut: op, Sequence: tx.SequenceFinal}},
		Outputs: []tx.Output{{Value: value - fee, ScriptPubKey: h.payScript()}},
	}
	if err := t.SignInput(0, h.payScript(), h.key); err != nil {
		h.t.Fatalf("SignInput: %v", err)
	}
	return t
}

// powBlock mines a proof-of-work block on parent whose coinbase pays
// reward.
func (h *harness) powBlock(parent types.Hash, ts uint32, reward int64, txs ...*tx.Transaction) *block.Block {
	h.t.Helper()
	pn := h.node(parent)
	all := append([]*tx.Transaction{h.coinbase(pn.height+1, ts, reward)}, txs...)
	return h.powBlockWith(parent, ts, all...)
}

// powBlockWith mines a proof-of-work block on parent holding exactly txs,
// coinbase included.
func (h *harness) powBlockWith(parent types.Hash, ts uint32, txs ...*tx.Transaction) *block.Block {
	h.t.Helper()
	blk := block.NewBlock(&block.Header{
		Version:   block.CurrentVersion,
		PrevHash:  parent,
		Timestamp: ts,
		Bits:      h.bits(h.node(parent), block.KindPoW),
	}, txs)
	return h.mine(blk)
}

func (h *harness) mine(blk *block.Block) *block.Block {
	h.t.Helper()
	blk.Header.MerkleRoot = block.ComputeMerkleRoot(blk.TxHashes())
	miner := consensus.Miner{}
	if err := miner.Mine(context.Background(), blk.Header); err != nil {
		h.t.Fatalf("Mine: %v", err)
	}
	return blk
}

// posBlock builds a signed proof-of-stake block on parent staking the
// harness-key output op of the given value.
func (h *harness) posBlock(parent types.Hash, ts uint32, op types.Outpoint, value int64, signer *crypto.PrivateKey) *block.Block {
	h.t.Helper()
	pn := h.node(parent)
	cs := &tx.Transaction{
		Version: 1,
		Time:    ts,
		Inputs:  []tx.Input{{PrevOut: op, Sequence: tx.SequenceFinal}},
		Outputs: []tx.Output{{}, {Value: value, ScriptPubKey: h.payScript()}},
	}
	if err := cs.SignInput(0, h.payScript(), h.key); err != nil {
		h.t.Fatalf("SignInput: %v", err)
	}
	blk := block.NewBlock(&block.Header{
		Version:   block.CurrentVersion,
		PrevHash:  parent,
		Timestamp: ts,
		Bits:      h.bits(pn, block.KindPoS),
	}, []*tx.Transaction{h.coinbase(pn.height+1, ts, 0), cs})
	blk.Header.MerkleRoot = block.ComputeMerkleRoot(blk.TxHashes())
	if err := blk.Sign(signer); err != nil {
		h.t.Fatalf("Sign: %v", err)
	}
	return blk
}

func (h *harness) reward() int64 {
	return int64(h.params.PowBlockReward)
}

// next mines a block on the tip, one spacing after it.
func (h *harness) next(reward int64, txs ...*tx.Transaction) *block.Block {
	h.t.Helper()
	s := h.chain.Snapshot()
	return h.powBlock(s.TipHash, s.TipTime+blockSpacing, reward, txs...)
}

// extend mines a block on the tip and requires it to be accepted.
func (h *harness) extend(txs ...*tx.Transaction) *block.Block {
	h.t.Helper()
	blk := h.next(h.reward(), txs...)
	requireAccepted(h.t, h.process(blk))
	return blk
}

// branch mines n blocks on parent, each one spacing after the last plus
// one second, so they differ from blocks at the same height elsewhere.
func (h *harness) branch(parent types.Hash, n int) []*block.Block {
	h.t.Helper()
	ts := h.node(parent).timestamp
	blocks := make([]*block.Block, 0, n)
	for range n {
		ts += blockSpacing + 1
		blk := h.powBlock(parent, ts, h.reward())
		h.process(blk)
		blocks = append(blocks, blk)
		parent = blk.Hash()
	}
	return blocks
}

func (h *harness) process(blk *block.Block) Verdict {
	h.t.Helper()
	v, err := h.chain.ProcessBlock(blk)
	if err != nil {
		h.t.Fatalf("ProcessBlock: %v", err)
	}
	return v
}

func coinbaseOutpoint(blk *block.Block) types.Outpoint {
	return types.Outpoint{TxID: blk.Transactions[0].Hash(), Index: 0}
}

func requireAccepted(t *testing.T, v Verdict) {
	t.Helper()
	if v.Status != StatusAccepted {
		t.Fatalf("verdict = %v, want accepted", v)
	}
}

func requireRejected(t *testing.T, v Verdict, code error) {
	t.Helper()
	if v.Status != StatusRejected {
		t.Fatalf("verdict = %v, want rejected with %v", v, code)
	}
	if !errors.Is(v.Reason, code) {
		t.Fatalf("reason = %v, want %v", v.Reason, code)
	}
}
