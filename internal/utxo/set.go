// Package utxo manages the UTXO set.
package utxo

import (
	"errors"

	"github.com/Klingon-tech/novanet/pkg/tx"
	"github.com/Klingon-tech/novanet/pkg/types"
)

// ErrNotFound is returned for an outpoint that is unknown or spent.
var ErrNotFound = errors.New("utxo not found")

// UTXO represents an unspent transaction output.
type UTXO struct {
	Outpoint     types.Outpoint `json:"outpoint"`
	Value        int64          `json:"value"`
	ScriptPubKey []byte         `json:"script_pubkey"`
	Height       uint32         `json:"height"`     // height of the creating block
	BlockTime    uint32         `json:"block_time"` // timestamp of the creating block
	TxTime       uint32         `json:"tx_time"`    // timestamp of the creating transaction
	Coinbase     bool           `json:"coinbase,omitempty"`
	Coinstake    bool           `json:"coinstake,omitempty"`
}

// PrevOutput returns the fields transaction validation needs.
func (u *UTXO) PrevOutput() *tx.PrevOutput {
	return &tx.PrevOutput{
		Value:        u.Value,
		ScriptPubKey: u.ScriptPubKey,
		Height:       u.Height,
		Time:         u.TxTime,
		Coinbase:     u.Coinbase,
		Coinstake:    u.Coinstake,
	}
}

// Set is read access to a UTXO set. Get returns ErrNotFound (possibly
// wrapped) for unknown or spent outpoints.
type Set interface {
	Get(outpoint types.Outpoint) (*UTXO, error)
}

// FromTransaction returns the outputs of t as UTXOs created in a block at
// height with timestamp blockTime. Empty outputs (coinstake markers and
// empty coinbases) are unspendable and skipped.
func FromTransaction(t *tx.Transaction, height, blockTime uint32) []*UTXO {
	txid := t.Hash()
	coinbase, coinstake := t.IsCoinBase(), t.IsCoinStake()
	var out []*UTXO
	for i, o := range t.Outputs {
		if o.IsEmpty() {
			continue
		}
		out = append(out, &UTXO{
			Outpoint:     types.Outpoint{TxID: txid, Index: uint32(i)},
			Value:        o.Value,
			ScriptPubKey: o.ScriptPubKey,
			Height:       height,
			BlockTime:    blockTime,
			TxTime:       t.Time,
			Coinbase:     coinbase,
			Coinstake:    coinstake,
		})
	}
	return out
}
