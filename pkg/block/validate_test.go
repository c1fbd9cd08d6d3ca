package block

import (
	"errors"
	"testing"

	"github.com/Klingon-tech/novanet/config"
	"github.com/Klingon-tech/novanet/internal/consensus/ruleerrors"
	"github.com/Klingon-tech/novanet/pkg/crypto"
	"github.com/Klingon-tech/novanet/pkg/script"
	"github.com/Klingon-tech/novanet/pkg/tx"
	"github.com/Klingon-tech/novanet/pkg/types"
)

func TestCheckSanity_Valid(t *testing.T) {
	p := config.RegtestParams()
	b := powBlock(spend(types.Hash{0x05}, 0, int64(config.Coin)))
	if err := b.CheckSanity(p, testTime); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestCheckSanity_ValidPoS(t *testing.T) {
	key, err := crypto.GenerateKey()
	if err != nil {
		t.Fatal(err)
	}
	b := posBlock(t, key)
	if !b.IsProofOfStake() {
		t.Fatal("expected a proof-of-stake block")
	}
	if err := b.CheckSanity(config.RegtestParams(), testTime); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestCheckSanity_Rejects(t *testing.T) {
	p := config.RegtestParams()
	tests := []struct {
		name   string
		build  func() *Block
		reason error
	}{
		{"nil header", func() *Block {
			return &Block{Transactions: []*tx.Transaction{coinbase(1)}}
		}, ruleerrors.ErrBadBlockStructure},
		{"bad version", func() *Block {
			b := powBlock()
			b.Header.Version = MaxVersion + 1
			return b
		}, ruleerrors.ErrBadBlockStructure},
		{"no transactions", func() *Block {
			b := powBlock()
			b.Transactions = nil
			return b
		}, ruleerrors.ErrBadBlockStructure},
		{"first tx not coinbase", func() *Block {
			return finish(NewBlock(powBlock().Header, []*tx.Transaction{spend(types.Hash{0x05}, 0, int64(config.Coin))}))
		}, ruleerrors.ErrBadBlockStructure},
		{"second coinbase", func() *Block {
			return powBlock(coinbase(2))
		}, ruleerrors.ErrBadBlockStructure},
		{"coinstake out of position", func() *Block {
			cs := spend(types.Hash{0x06}, 0, int64(config.Coin))
			cs.Outputs = append([]tx.Output{{}}, cs.Outputs...)
			return powBlock(spend(types.Hash{0x05}, 0, int64(config.Coin)), cs)
		}, ruleerrors.ErrBadBlockStructure},
		{"merkle mismatch", func() *Block {
			b := powBlock()
			b.Header.MerkleRoot = types.Hash{0xff}
			return b
		}, ruleerrors.ErrBadBlockStructure},
		{"duplicate transaction", func() *Block {
			s := spend(types.Hash{0x05}, 0, int64(config.Coin))
			return powBlock(s, s)
		}, ruleerrors.ErrBadBlockStructure},
		{"double spend in block", func() *Block {
			a := spend(types.Hash{0x05}, 0, int64(config.Coin))
			b := spend(types.Hash{0x05}, 0, int64(2*config.Coin))
			return powBlock(a, b)
		}, ruleerrors.ErrBadTransaction},
		{"invalid transaction", func() *Block {
			return powBlock(spend(types.Hash{0x05}, 0, -1))
		}, ruleerrors.ErrBadTransaction},
		{"future timestamp", func() *Block {
			b := powBlock()
			b.Header.Timestamp = testTime + p.MaxClockDrift + 1
			return b
		}, ruleerrors.ErrBadTimestamp},
		{"tx after block time", func() *Block {
			s := spend(types.Hash{0x05}, 0, int64(config.Coin))
			s.Time = testTime + 1
			return powBlock(s)
		}, ruleerrors.ErrBadTimestamp},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.build().CheckSanity(p, testTime)
			if !errors.Is(err, tt.reason) {
				t.Fatalf("err = %v, want %v", err, tt.reason)
			}
		})
	}
}

func TestCheckSanity_ClockDriftBoundary(t *testing.T) {
	p := config.RegtestParams()
	b := powBlock()
	b.Header.Timestamp = testTime + p.MaxClockDrift
	finish(b)
	if err := b.CheckSanity(p, testTime); err != nil {
		t.Fatalf("block exactly at the drift limit rejected: %v", err)
	}
}

func TestCheckSanity_PoSRules(t *testing.T) {
	p := config.RegtestParams()
	key, err := crypto.GenerateKey()
	if err != nil {
		t.Fatal(err)
	}

	t.Run("coinbase pays out", func(t *testing.T) {
		b := posBlock(t, key)
		b.Transactions[0] = coinbase(1)
		finish(b)
		if err := b.CheckSanity(p, testTime); !errors.Is(err, ruleerrors.ErrBadBlockStructure) {
			t.Fatalf("err = %v, want ErrBadBlockStructure", err)
		}
	})

	t.Run("coinstake time differs", func(t *testing.T) {
		b := posBlock(t, key)
		b.Transactions[1].Time = testTime - 1
		finish(b)
		if err := b.CheckSanity(p, testTime); !errors.Is(err, ruleerrors.ErrBadTimestamp) {
			t.Fatalf("err = %v, want ErrBadTimestamp", err)
		}
	})
}

// sizedBlock returns a block padded through a coinbase output script to
// exactly size bytes.
func sizedBlock(t *testing.T, size int) *Block {
	t.Helper()
	b := powBlock()
	base := b.SerializeSize()
	out := &b.Transactions[0].Outputs[0]
	// Growing a script past 252 bytes adds two bytes of length prefix.
	pad := size - base
	if len(out.ScriptPubKey)+pad > 252 {
		pad -= 2
	}
	out.ScriptPubKey = append(out.ScriptPubKey, make([]byte, pad)...)
	finish(b)
	if got := b.SerializeSize(); got != size {
		t.Fatalf("padded block is %d bytes, want %d", got, size)
	}
	return b
}

func TestCheckSanity_SizeBoundary(t *testing.T) {
	p := config.RegtestParams().Copy()
	p.MaxBlockSize = 10_000

	if err := sizedBlock(t, int(p.MaxBlockSize)).CheckSanity(p, testTime); err != nil {
		t.Fatalf("block of exactly max size rejected: %v", err)
	}
	err := sizedBlock(t, int(p.MaxBlockSize)+1).CheckSanity(p, testTime)
	if !errors.Is(err, ruleerrors.ErrOversizeBlock) {
		t.Fatalf("err = %v, want ErrOversizeBlock", err)
	}
}

func TestCheckSanity_TooManySigops(t *testing.T) {
	p := config.RegtestParams().Copy()
	p.MaxBlockSize = 10_000 // 200 sigops

	cb := coinbase(1)
	// 11 CHECKMULTISIGs = 220 sigops.
	multi := make([]byte, 11)
	for i := range multi {
		multi[i] = script.OpCheckMultiSig
	}
	cb.Outputs = append(cb.Outputs, tx.Output{Value: int64(config.Coin), ScriptPubKey: multi})
	b := finish(NewBlock(powBlock().Header, []*tx.Transaction{cb}))

	if err := b.CheckSanity(p, testTime); !errors.Is(err, ruleerrors.ErrTooManySigops) {
		t.Fatalf("err = %v, want ErrTooManySigops", err)
	}
}

func TestCheckSanity_TooManyOrphanTx(t *testing.T) {
	p := config.RegtestParams().Copy()
	p.MaxBlockSize = 1000 // ten dependent transactions allowed

	// Minimal transactions, each spending the previous one.
	chained := func(prev types.Hash) *tx.Transaction {
		return &tx.Transaction{
			Version: 1,
			Time:    testTime,
			Inputs:  []tx.Input{{PrevOut: types.Outpoint{TxID: prev}, Sequence: tx.SequenceFinal}},
			Outputs: []tx.Output{{Value: int64(config.Coin), ScriptPubKey: []byte{script.Op1}}},
		}
	}
	txs := []*tx.Transaction{chained(types.Hash{0x05})}
	for i := 0; i < 11; i++ {
		txs = append(txs, chained(txs[len(txs)-1].Hash()))
	}

	if err := powBlock(txs[:11]...).CheckSanity(p, testTime); err != nil {
		t.Fatalf("ten dependent transactions rejected: %v", err)
	}
	err := powBlock(txs...).CheckSanity(p, testTime)
	if !errors.Is(err, ruleerrors.ErrTooManyOrphanTx) {
		t.Fatalf("err = %v, want ErrTooManyOrphanTx", err)
	}
}
