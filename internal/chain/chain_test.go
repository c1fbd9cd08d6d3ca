package chain

import (
	"context"
	"errors"
	"testing"

	"github.com/Klingon-tech/novanet/config"
	"github.com/Klingon-tech/novanet/internal/consensus"
	"github.com/Klingon-tech/novanet/internal/consensus/ruleerrors"
	"github.com/Klingon-tech/novanet/internal/storage"
	"github.com/Klingon-tech/novanet/internal/utxo"
	"github.com/Klingon-tech/novanet/pkg/block"
	"github.com/Klingon-tech/novanet/pkg/crypto"
	"github.com/Klingon-tech/novanet/pkg/types"
)

func TestChain_New_NilArgs(t *testing.T) {
	if _, err := New(nil, storage.NewMemory(), Options{}); err == nil {
		t.Error("expected error for nil params")
	}
	if _, err := New(config.RegtestParams(), nil, Options{}); err == nil {
		t.Error("expected error for nil db")
	}
}

func TestChain_New_BadCheckpointKey(t *testing.T) {
	p := config.RegtestParams()
	p.CheckpointPublicKey = config.HexBytes{0x04, 0x01}
	_, err := New(p, storage.NewMemory(), Options{})
	if !errors.Is(err, ruleerrors.ErrConfigInvalid) {
		t.Fatalf("error = %v, want ErrConfigInvalid", err)
	}
}

func TestChain_InitFromGenesis(t *testing.T) {
	h := newHarness(t, nil)
	s := h.chain.Snapshot()

	if !s.IsGenesis() {
		t.Errorf("IsGenesis() = false at height %d", s.Height)
	}
	if s.TipHash != h.params.GenesisHash {
		t.Errorf("tip = %s, want %s", s.TipHash, h.params.GenesisHash)
	}
	if s.Supply != 0 {
		t.Errorf("supply = %d, want 0", s.Supply)
	}
	if s.HasCheckpoint() {
		t.Error("fresh chain should have no checkpoint")
	}
	if s.TipTime != h.params.GenesisBlockTime {
		t.Errorf("tip time = %d, want %d", s.TipTime, h.params.GenesisBlockTime)
	}
	if s.NextPoWTarget.Compact() != 0x207fffff {
		t.Errorf("next pow target = %08x, want 207fffff", s.NextPoWTarget.Compact())
	}

	if err := h.chain.InitFromGenesis(); err == nil {
		t.Error("second InitFromGenesis should fail")
	}
	if _, err := h.chain.GetBlock(h.params.GenesisHash); err != nil {
		t.Errorf("genesis not stored: %v", err)
	}
}

func TestChain_InitFromGenesis_Mismatch(t *testing.T) {
	p := config.RegtestParams()
	p.GenesisNonce++
	c, err := New(p, storage.NewMemory(), Options{})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := c.InitFromGenesis(); !errors.Is(err, ruleerrors.ErrConfigInvalid) {
		t.Fatalf("error = %v, want ErrConfigInvalid", err)
	}
}

func TestChain_ProcessBlock_Uninitialized(t *testing.T) {
	h := newHarness(t, nil)
	blk := h.next(h.reward())

	c, err := New(h.params, storage.NewMemory(), h.opts)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if s := c.Snapshot(); s.Initialized() || s.IsGenesis() {
		t.Errorf("empty chain: Initialized() = %v, IsGenesis() = %v", s.Initialized(), s.IsGenesis())
	}
	if _, err := c.ProcessBlock(blk); err == nil {
		t.Fatal("expected error before genesis is initialized")
	}
}

func TestChain_ProcessBlock_Genesis(t *testing.T) {
	h := newHarness(t, nil)
	c, err := New(h.params, storage.NewMemory(), h.opts)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	genesis := block.CreateGenesisBlock(h.params)
	v, err := c.ProcessBlock(genesis)
	if err != nil {
		t.Fatalf("ProcessBlock: %v", err)
	}
	requireAccepted(t, v)
	if v.Hash != h.params.GenesisHash || v.Height != 0 || v.Stage != StageAccepted {
		t.Errorf("verdict = %+v", v)
	}
	if s := c.Snapshot(); !s.IsGenesis() || s.Supply != 0 {
		t.Errorf("state after genesis: height %d supply %d", s.Height, s.Supply)
	}

	// Known from now on.
	v, err = c.ProcessBlock(genesis)
	if err != nil {
		t.Fatalf("ProcessBlock: %v", err)
	}
	requireRejected(t, v, ruleerrors.ErrDuplicateBlock)

	h.extend()
	if s := h.chain.Snapshot(); s.IsGenesis() {
		t.Error("IsGenesis() = true above genesis")
	}
}

func TestProcessBlock_ExtendsTip(t *testing.T) {
	h := newHarness(t, nil)
	blk := h.next(h.reward())

	v := h.process(blk)
	requireAccepted(t, v)
	if v.Height != 1 || v.Stage != StageAccepted || v.ReorgDepth != 0 {
		t.Errorf("verdict = %+v", v)
	}
	if v.Code() != "" {
		t.Errorf("accepted verdict code = %q", v.Code())
	}

	s := h.chain.Snapshot()
	if s.Height != 1 || s.TipHash != blk.Hash() {
		t.Fatalf("tip = %s at %d, want %s at 1", s.TipHash, s.Height, blk.Hash())
	}
	if s.Supply != h.params.PowBlockReward {
		t.Errorf("supply = %d, want %d", s.Supply, h.params.PowBlockReward)
	}
	if s.Work.IsZero() {
		t.Error("work should be non-zero")
	}

	u, err := h.chain.GetUTXO(coinbaseOutpoint(blk))
	if err != nil {
		t.Fatalf("coinbase output missing: %v", err)
	}
	if !u.Coinbase || u.Height != 1 || u.BlockTime != blk.Header.Timestamp {
		t.Errorf("utxo = %+v", u)
	}

	got, err := h.chain.GetBlockByHeight(1)
	if err != nil || got.Hash() != blk.Hash() {
		t.Errorf("GetBlockByHeight(1) = %v, %v", got, err)
	}
}

func TestProcessBlock_Premine(t *testing.T) {
	premine := 1_000_000 * config.Coin
	h := newHarness(t, func(p *config.Params, _ *Options) { p.CoinPremine = premine })

	first := h.next(int64(premine))
	requireAccepted(t, h.process(first))
	if s := h.chain.Snapshot(); s.Supply != premine {
		t.Fatalf("supply = %d, want %d", s.Supply, premine)
	}

	// Only the first proof-of-work block carries the premine.
	second := h.next(int64(premine))
	requireRejected(t, h.process(second), ruleerrors.ErrRewardMismatch)

	requireAccepted(t, h.process(h.next(h.reward())))
	if s := h.chain.Snapshot(); s.Supply != premine+h.params.PowBlockReward {
		t.Errorf("supply = %d, want %d", s.Supply, premine+h.params.PowBlockReward)
	}
}

func TestProcessBlock_RewardMismatch(t *testing.T) {
	h := newHarness(t, nil)
	before := h.chain.Snapshot()

	blk := h.next(h.reward() + 1)
	v := h.process(blk)
	requireRejected(t, v, ruleerrors.ErrRewardMismatch)
	if v.Code() != "ErrRewardMismatch" {
		t.Errorf("code = %q", v.Code())
	}
	if v.Stage != StageContextuallyChecked {
		t.Errorf("stage = %s, want %s", v.Stage, StageContextuallyChecked)
	}

	if s := h.chain.Snapshot(); s.TipHash != before.TipHash || s.Supply != before.Supply {
		t.Error("rejected block changed the chain state")
	}
	if _, err := h.chain.GetBlock(blk.Hash()); err == nil {
		t.Error("rejected block was stored")
	}
	if _, err := h.chain.GetUTXO(coinbaseOutpoint(blk)); !errors.Is(err, utxo.ErrNotFound) {
		t.Errorf("rejected coinbase output is spendable: %v", err)
	}
}

func TestProcessBlock_SupplyCap(t *testing.T) {
	h := newHarness(t, func(p *config.Params, _ *Options) {
		p.MaxMoney = 60 * config.Coin
	})
	h.extend()
	requireRejected(t, h.process(h.next(h.reward())), ruleerrors.ErrSupplyCapExceeded)
}

func TestProcessBlock_WrongBits(t *testing.T) {
	h := newHarness(t, nil)
	blk := h.next(h.reward())
	blk.Header.Bits = 0x1f7fffff
	h.mine(blk)

	v := h.process(blk)
	requireRejected(t, v, ruleerrors.ErrBadProofOfWork)
	if v.Stage != StageStructurallyChecked {
		t.Errorf("stage = %s, want %s", v.Stage, StageStructurallyChecked)
	}
}

func TestProcessBlock_InsufficientWork(t *testing.T) {
	h := newHarness(t, nil)
	blk := h.next(h.reward())
	for {
		blk.Header.Nonce++
		if consensus.CheckProofOfWork(blk.Hash(), blk.Header.Bits, h.params.PowMaxTarget) != nil {
			break
		}
	}
	v := h.process(blk)
	requireRejected(t, v, ruleerrors.ErrBadProofOfWork)
	if v.Stage != StageReceived {
		t.Errorf("stage = %s, want %s", v.Stage, StageReceived)
	}
}

func TestProcessBlock_TimestampNotAfterMedian(t *testing.T) {
	h := newHarness(t, nil)
	s := h.chain.Snapshot()
	blk := h.powBlock(s.TipHash, s.MedianTime, h.reward())
	requireRejected(t, h.process(blk), ruleerrors.ErrBadTimestamp)
}

func TestProcessBlock_FutureTimestamp(t *testing.T) {
	h := newHarness(t, nil)
	now := uint32(h.opts.Now().Unix())
	blk := h.powBlock(h.params.GenesisHash, now+h.params.MaxClockDrift+1, h.reward())

	v := h.process(blk)
	requireRejected(t, v, ruleerrors.ErrBadTimestamp)
	if v.Stage != StageReceived {
		t.Errorf("stage = %s, want %s", v.Stage, StageReceived)
	}

	// Exactly at the drift limit is fine.
	requireAccepted(t, h.process(h.powBlock(h.params.GenesisHash, now+h.params.MaxClockDrift, h.reward())))
}

func TestProcessBlock_NilBlock(t *testing.T) {
	h := newHarness(t, nil)
	requireRejected(t, h.process(nil), ruleerrors.ErrBadBlockStructure)
	requireRejected(t, h.process(&block.Block{}), ruleerrors.ErrBadBlockStructure)
}

func TestProcessBlock_DuplicateAndOrphan(t *testing.T) {
	h := newHarness(t, nil)
	blk := h.extend()

	requireRejected(t, h.process(blk), ruleerrors.ErrDuplicateBlock)

	orphan := h.next(h.reward())
	orphan.Header.PrevHash[0] ^= 0xff
	h.mine(orphan)
	v := h.process(orphan)
	requireRejected(t, v, ruleerrors.ErrOrphanBlock)

	if h.chain.Height() != 1 {
		t.Errorf("height = %d, want 1", h.chain.Height())
	}
}

func TestProcessBlock_CoinbaseMaturity(t *testing.T) {
	h := newHarness(t, nil)
	b1 := h.extend()
	op := coinbaseOutpoint(b1)
	fee := int64(config.Cent)

	// Height 2 is one block after the coinbase: still immature.
	s := h.chain.Snapshot()
	early := h.next(h.reward()+fee, h.spend(op, h.reward(), fee, s.TipTime))
	requireRejected(t, h.process(early), ruleerrors.ErrImmatureCoinbaseSpend)

	h.extend()
	s = h.chain.Snapshot()
	spend := h.spend(op, h.reward(), fee, s.TipTime)
	b3 := h.next(h.reward()+fee, spend)
	requireAccepted(t, h.process(b3))

	if _, err := h.chain.GetUTXO(op); !errors.Is(err, utxo.ErrNotFound) {
		t.Errorf("spent coinbase still unspent: %v", err)
	}
	u, err := h.chain.GetUTXO(types.Outpoint{TxID: spend.Hash(), Index: 0})
	if err != nil {
		t.Fatalf("spend output missing: %v", err)
	}
	if u.Value != h.reward()-fee {
		t.Errorf("spend output value = %d, want %d", u.Value, h.reward()-fee)
	}
	// Fees move coins; they do not mint.
	if got, want := h.chain.Snapshot().Supply, 3*h.params.PowBlockReward; got != want {
		t.Errorf("supply = %d, want %d", got, want)
	}
}

func TestProcessBlock_TransactionRules(t *testing.T) {
	h := newHarness(t, nil)
	b1 := h.extend()
	h.extend()
	op := coinbaseOutpoint(b1)
	ts := h.chain.Snapshot().TipTime
	fee := int64(config.Cent)

	tests := []struct {
		name  string
		build func() *block.Block
		code  error
	}{
		{"missing input", func() *block.Block {
			missing := op
			missing.Index = 7
			return h.next(h.reward(), h.spend(missing, h.reward(), fee, ts))
		}, ruleerrors.ErrMissingInputs},
		{"fee below minimum", func() *block.Block {
			return h.next(h.reward(), h.spend(op, h.reward(), 0, ts))
		}, ruleerrors.ErrBadTransaction},
		{"outputs exceed inputs", func() *block.Block {
			return h.next(h.reward(), h.spend(op, h.reward(), -fee, ts))
		}, ruleerrors.ErrBadTransaction},
		{"bad signature", func() *block.Block {
			sp := h.spend(op, h.reward(), fee, ts)
			sp.Outputs[0].Value--
			return h.next(h.reward()+fee+1, sp)
		}, ruleerrors.ErrBadTransaction},
		{"fee claimed twice", func() *block.Block {
			return h.next(h.reward()+2*fee, h.spend(op, h.reward(), fee, ts))
		}, ruleerrors.ErrRewardMismatch},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			requireRejected(t, h.process(tt.build()), tt.code)
			if h.chain.Height() != 2 {
				t.Errorf("height = %d, want 2", h.chain.Height())
			}
		})
	}
}

func TestProcessBlock_WithoutScriptVerifier(t *testing.T) {
	h := newHarness(t, func(_ *config.Params, opts *Options) { opts.Scripts = nil })
	b1 := h.extend()
	h.extend()

	sp := h.spend(coinbaseOutpoint(b1), h.reward(), int64(config.Cent), h.chain.Snapshot().TipTime)
	sp.Inputs[0].ScriptSig = []byte{0x01, 0x01}
	requireAccepted(t, h.process(h.next(h.reward()+int64(config.Cent), sp)))
}

func TestProcessBlocks(t *testing.T) {
	src := newHarness(t, nil)
	blocks := []*block.Block{src.extend(), src.extend(), src.extend()}

	dst := newHarness(t, nil)
	verdicts, err := dst.chain.ProcessBlocks(context.Background(), append(blocks, blocks[0]))
	if err != nil {
		t.Fatalf("ProcessBlocks: %v", err)
	}
	if len(verdicts) != 4 {
		t.Fatalf("got %d verdicts, want 4", len(verdicts))
	}
	for i := range 3 {
		requireAccepted(t, verdicts[i])
		if verdicts[i].Height != uint32(i+1) {
			t.Errorf("verdict %d height = %d", i, verdicts[i].Height)
		}
	}
	requireRejected(t, verdicts[3], ruleerrors.ErrDuplicateBlock)

	if dst.chain.TipHash() != src.chain.TipHash() {
		t.Error("replayed chain ends at a different tip")
	}
	want, err := src.chain.UTXOCommitment()
	if err != nil {
		t.Fatalf("UTXOCommitment: %v", err)
	}
	got, err := dst.chain.UTXOCommitment()
	if err != nil {
		t.Fatalf("UTXOCommitment: %v", err)
	}
	if got != want {
		t.Errorf("utxo commitment = %s, want %s", got, want)
	}
}

func TestProcessBlocks_Cancelled(t *testing.T) {
	h := newHarness(t, nil)
	blk := h.next(h.reward())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := h.chain.ProcessBlocks(ctx, []*block.Block{blk}); !errors.Is(err, context.Canceled) {
		t.Fatalf("error = %v, want context.Canceled", err)
	}
	if h.chain.Height() != 0 {
		t.Error("cancelled batch changed the chain")
	}
}

func TestChain_Recover(t *testing.T) {
	h := newHarness(t, nil)
	b1 := h.extend()
	h.extend()
	side := h.branch(h.params.GenesisHash, 1)[0]

	before := h.chain.Snapshot()
	h.chain = h.open()
	after := h.chain.Snapshot()

	if after.TipHash != before.TipHash || after.Height != before.Height {
		t.Fatalf("tip = %s at %d, want %s at %d", after.TipHash, after.Height, before.TipHash, before.Height)
	}
	if after.Supply != before.Supply {
		t.Errorf("supply = %d, want %d", after.Supply, before.Supply)
	}
	if after.Work.Cmp(&before.Work) != 0 {
		t.Errorf("work = %s, want %s", after.Work.Dec(), before.Work.Dec())
	}
	if after.StakeModifier != before.StakeModifier || after.MedianTime != before.MedianTime {
		t.Error("derived state differs after recovery")
	}

	// The side block is known again and the active chain keeps growing.
	requireRejected(t, h.process(side), ruleerrors.ErrDuplicateBlock)
	if hash, ok := h.chain.BlockHashAt(1); !ok || hash != b1.Hash() {
		t.Errorf("BlockHashAt(1) = %s, %v", hash, ok)
	}
	h.extend()
	if h.chain.Height() != 3 {
		t.Errorf("height = %d, want 3", h.chain.Height())
	}
}

func TestChain_Recover_GenesisMismatch(t *testing.T) {
	h := newHarness(t, nil)
	h.params = h.params.Copy()
	h.params.GenesisNonce++
	h.params.GenesisHash[0] ^= 0xff
	if _, err := New(h.params, h.db, h.opts); !errors.Is(err, ruleerrors.ErrConfigInvalid) {
		t.Fatalf("error = %v, want ErrConfigInvalid", err)
	}
}

func TestChain_UTXOsByAddress(t *testing.T) {
	h := newHarness(t, nil)
	b1 := h.extend()
	h.extend()

	addr := crypto.Hash160(h.key.PublicKey())
	utxos, err := h.chain.UTXOsByAddress(addr)
	if err != nil {
		t.Fatalf("UTXOsByAddress: %v", err)
	}
	if len(utxos) != 2 {
		t.Fatalf("got %d outputs, want 2", len(utxos))
	}
	found := false
	for _, u := range utxos {
		if u.Outpoint == coinbaseOutpoint(b1) {
			found = true
		}
	}
	if !found {
		t.Error("block 1 coinbase missing from address index")
	}
}
