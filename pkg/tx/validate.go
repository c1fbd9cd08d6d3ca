package tx

import (
	"errors"
	"fmt"
	"math/bits"

	"github.com/Klingon-tech/novanet/config"
	"github.com/Klingon-tech/novanet/pkg/types"
)

// Validation errors.
var (
	ErrNoInputs          = errors.New("transaction has no inputs")
	ErrNoOutputs         = errors.New("transaction has no outputs")
	ErrDuplicateInput    = errors.New("duplicate input")
	ErrOutputOverflow    = errors.New("output values overflow")
	ErrNegativeOutput    = errors.New("output value is negative")
	ErrOutputTooLarge    = errors.New("output value exceeds max money")
	ErrOutputTooSmall    = errors.New("output value below minimum")
	ErrTxTooLarge        = errors.New("transaction too large")
	ErrNullPrevOut       = errors.New("non-coinbase input spends null outpoint")
	ErrCoinbaseScriptLen = errors.New("coinbase script size out of range")
)

// Coinbase scriptSig bounds.
const (
	MinCoinbaseScriptLen = 2
	MaxCoinbaseScriptLen = 100
)

// Validate checks transaction structure against the protocol parameters.
// This does NOT check UTXO existence (that requires the UTXO set).
func (tx *Transaction) Validate(p *config.Params) error {
	if len(tx.Inputs) == 0 {
		return ErrNoInputs
	}
	if len(tx.Outputs) == 0 {
		return ErrNoOutputs
	}
	if size := tx.SerializeSize(); size > int(p.MaxBlockSize) {
		return fmt.Errorf("%w: %d bytes, max %d", ErrTxTooLarge, size, p.MaxBlockSize)
	}

	coinbase, coinstake := tx.IsCoinBase(), tx.IsCoinStake()

	var total uint64
	for i, out := range tx.Outputs {
		if out.Value < 0 {
			return fmt.Errorf("output %d: %w", i, ErrNegativeOutput)
		}
		v := uint64(out.Value)
		if v > p.MaxMoney {
			return fmt.Errorf("output %d: %w: %d", i, ErrOutputTooLarge, v)
		}
		// Empty outputs are only meaningful in coinbase and coinstake.
		if out.IsEmpty() && !coinbase && !coinstake {
			return fmt.Errorf("output %d: %w: empty output", i, ErrOutputTooSmall)
		}
		if !out.IsEmpty() && v < p.MinTxoutAmount() {
			return fmt.Errorf("output %d: %w: %d < %d", i, ErrOutputTooSmall, v, p.MinTxoutAmount())
		}
		sum, carry := bits.Add64(total, v, 0)
		if carry != 0 || sum > p.MaxMoney {
			return fmt.Errorf("output %d: %w", i, ErrOutputOverflow)
		}
		total = sum
	}

	seen := make(map[types.Outpoint]struct{}, len(tx.Inputs))
	for i, in := range tx.Inputs {
		if _, dup := seen[in.PrevOut]; dup {
			return fmt.Errorf("input %d: %w", i, ErrDuplicateInput)
		}
		seen[in.PrevOut] = struct{}{}
	}

	if coinbase {
		l := len(tx.Inputs[0].ScriptSig)
		if l < MinCoinbaseScriptLen || l > MaxCoinbaseScriptLen {
			return fmt.Errorf("%w: %d", ErrCoinbaseScriptLen, l)
		}
		return nil
	}
	for i, in := range tx.Inputs {
		if in.PrevOut.IsNull() {
			return fmt.Errorf("input %d: %w", i, ErrNullPrevOut)
		}
	}
	return nil
}
