package block

import (
	"testing"

	"github.com/Klingon-tech/novanet/config"
	"github.com/Klingon-tech/novanet/pkg/crypto"
	"github.com/Klingon-tech/novanet/pkg/script"
	"github.com/Klingon-tech/novanet/pkg/tx"
	"github.com/Klingon-tech/novanet/pkg/types"
)

const testTime = 1_700_000_000

func p2pkh(b byte) []byte {
	var h [20]byte
	h[0] = b
	return script.PayToPubKeyHash(h)
}

func coinbase(height int64, outputs ...tx.Output) *tx.Transaction {
	if len(outputs) == 0 {
		outputs = []tx.Output{{Value: int64(50 * config.Coin), ScriptPubKey: p2pkh(1)}}
	}
	return &tx.Transaction{
		Version: 1,
		Time:    testTime,
		Inputs: []tx.Input{{
			PrevOut:   types.NullOutpoint(),
			ScriptSig: script.NewBuilder().AddInt64(height).AddInt64(0).Script(),
			Sequence:  tx.SequenceFinal,
		}},
		Outputs: outputs,
	}
}

func spend(prev types.Hash, index uint32, value int64) *tx.Transaction {
	return &tx.Transaction{
		Version: 1,
		Time:    testTime,
		Inputs: []tx.Input{{
			PrevOut:   types.Outpoint{TxID: prev, Index: index},
			ScriptSig: []byte{0x01, 0x01},
			Sequence:  tx.SequenceFinal,
		}},
		Outputs: []tx.Output{{Value: value, ScriptPubKey: p2pkh(2)}},
	}
}

// finish sets the merkle root of b from its transactions.
func finish(b *Block) *Block {
	b.Header.MerkleRoot = ComputeMerkleRoot(b.TxHashes())
	return b
}

func powBlock(txs ...*tx.Transaction) *Block {
	all := append([]*tx.Transaction{coinbase(1)}, txs...)
	return finish(NewBlock(&Header{
		Version:   CurrentVersion,
		PrevHash:  types.Hash{0x01},
		Timestamp: testTime,
		Bits:      0x207fffff,
	}, all))
}

// posBlock builds a signed proof-of-stake block staking a made-up output
// to key.
func posBlock(t *testing.T, key *crypto.PrivateKey) *Block {
	t.Helper()
	stake := &tx.Transaction{
		Version: 1,
		Time:    testTime,
		Inputs: []tx.Input{{
			PrevOut:  types.Outpoint{TxID: types.Hash{0x09}, Index: 0},
			Sequence: tx.SequenceFinal,
		}},
		Outputs: []tx.Output{
			{},
			{Value: int64(100 * config.Coin), ScriptPubKey: script.PayToPubKey(key.PublicKey())},
		},
	}
	b := finish(NewBlock(&Header{
		Version:   CurrentVersion,
		PrevHash:  types.Hash{0x01},
		Timestamp: testTime,
		Bits:      0x207fffff,
	}, []*tx.Transaction{coinbase(1, tx.Output{}), stake}))
	if err := b.Sign(key); err != nil {
		t.Fatalf("Sign: %v", err)
	}
	return b
}
