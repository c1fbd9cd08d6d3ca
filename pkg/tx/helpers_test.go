package tx

import (
	"github.com/Klingon-tech/novanet/config"
	"github.com/Klingon-tech/novanet/pkg/script"
	"github.com/Klingon-tech/novanet/pkg/types"
)

func testHash(b byte) types.Hash {
	var h types.Hash
	h[0] = b
	return h
}

func p2pkh(b byte) []byte {
	var h [20]byte
	h[0] = b
	return script.PayToPubKeyHash(h)
}

// sampleTx spends two outputs into one.
func sampleTx() *Transaction {
	return &Transaction{
		Version: 1,
		Time:    1_700_000_000,
		Inputs: []Input{
			{PrevOut: types.Outpoint{TxID: testHash(1), Index: 0}, ScriptSig: []byte{0x01, 0xaa}, Sequence: SequenceFinal},
			{PrevOut: types.Outpoint{TxID: testHash(2), Index: 3}, ScriptSig: []byte{0x01, 0xbb}, Sequence: SequenceFinal},
		},
		Outputs: []Output{
			{Value: int64(5 * config.Coin), ScriptPubKey: p2pkh(9)},
		},
	}
}

func coinbaseTx(height int64) *Transaction {
	return &Transaction{
		Version: 1,
		Time:    1_700_000_000,
		Inputs: []Input{{
			PrevOut:   types.NullOutpoint(),
			ScriptSig: script.NewBuilder().AddInt64(height).AddInt64(0).Script(),
			Sequence:  SequenceFinal,
		}},
		Outputs: []Output{{Value: int64(50 * config.Coin), ScriptPubKey: p2pkh(7)}},
	}
}

func coinstakeTx() *Transaction {
	return &Transaction{
		Version: 1,
		Time:    1_700_000_000,
		Inputs: []Input{
			{PrevOut: types.Outpoint{TxID: testHash(3), Index: 1}, Sequence: SequenceFinal},
		},
		Outputs: []Output{
			{},
			{Value: int64(100 * config.Coin), ScriptPubKey: p2pkh(4)},
		},
	}
}

// mapProvider is an in-memory UTXOProvider.
type mapProvider map[types.Outpoint]*PrevOutput

func (m mapProvider) GetUTXO(op types.Outpoint) (*PrevOutput, error) {
	if p, ok := m[op]; ok {
		return p, nil
	}
	return nil, ErrInputNotFound
}
