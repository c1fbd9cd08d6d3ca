package tx

import (
	"errors"
	"fmt"
	"math/bits"

	"github.com/Klingon-tech/novanet/config"
	"github.com/Klingon-tech/novanet/pkg/types"
)

// UTXO-aware validation errors.
var (
	ErrInputNotFound     = errors.New("input UTXO not found")
	ErrInputOverflow     = errors.New("input values overflow")
	ErrInsufficientFunds = errors.New("outputs exceed inputs")
	ErrInsufficientFee   = errors.New("insufficient fee")
	ErrImmatureSpend     = errors.New("spend of immature coinbase or coinstake")
	ErrTimestampOrder    = errors.New("transaction time earlier than input")
)

// PrevOutput is the state of a spent output as the UTXO set records it.
type PrevOutput struct {
	Value        int64
	ScriptPubKey []byte
	Height       uint32 // height of the block that created it
	Time         uint32 // timestamp of the creating transaction
	Coinbase     bool
	Coinstake    bool
}

// UTXOProvider provides read-only access to the UTXO set for validation.
// GetUTXO returns ErrInputNotFound (possibly wrapped) for unknown or spent
// outpoints.
type UTXOProvider interface {
	GetUTXO(outpoint types.Outpoint) (*PrevOutput, error)
}

// ValidateWithUTXOs checks every input of a non-coinbase transaction
// against the UTXO set for inclusion at spendHeight: inputs exist, minted
// outputs are mature, transaction time does not precede its inputs and
// input values stay within max money. It returns the total input value.
func (tx *Transaction) ValidateWithUTXOs(provider UTXOProvider, p *config.Params, spendHeight uint32) (uint64, error) {
	var totalInput uint64
	for i, in := range tx.Inputs {
		prev, err := provider.GetUTXO(in.PrevOut)
		if err != nil {
			if errors.Is(err, ErrInputNotFound) {
				return 0, fmt.Errorf("input %d (%s): %w", i, in.PrevOut, ErrInputNotFound)
			}
			return 0, fmt.Errorf("input %d: %w", i, err)
		}

		if prev.Coinbase || prev.Coinstake {
			if spendHeight < prev.Height || spendHeight-prev.Height <= p.CoinbaseMaturity {
				return 0, fmt.Errorf("input %d (%s): %w: created at %d, spent at %d, maturity %d",
					i, in.PrevOut, ErrImmatureSpend, prev.Height, spendHeight, p.CoinbaseMaturity)
			}
		}

		if tx.Time < prev.Time {
			return 0, fmt.Errorf("input %d: %w: %d < %d", i, ErrTimestampOrder, tx.Time, prev.Time)
		}

		if prev.Value < 0 || uint64(prev.Value) > p.MaxMoney {
			return 0, fmt.Errorf("input %d: %w", i, ErrInputOverflow)
		}
		sum, carry := bits.Add64(totalInput, uint64(prev.Value), 0)
		if carry != 0 || sum > p.MaxMoney {
			return 0, fmt.Errorf("input %d: %w", i, ErrInputOverflow)
		}
		totalInput = sum
	}
	return totalInput, nil
}

// CheckFee verifies that a regular transaction pays at least the required
// fee given its total input value, and returns the fee.
func (tx *Transaction) CheckFee(valueIn uint64, p *config.Params) (uint64, error) {
	out, err := tx.TotalOutputValue()
	if err != nil {
		return 0, err
	}
	valueOut := uint64(out)
	if valueIn < valueOut {
		return 0, fmt.Errorf("%w: inputs=%d outputs=%d", ErrInsufficientFunds, valueIn, valueOut)
	}
	fee := valueIn - valueOut
	if required := RequiredFee(tx, p.MinTxFees); fee < required {
		return 0, fmt.Errorf("%w: paid %d, required %d", ErrInsufficientFee, fee, required)
	}
	return fee, nil
}
