package types

import "fmt"

// NullIndex is the output index of the null outpoint spent by coinbases.
const NullIndex = ^uint32(0)

// Outpoint references a specific output in a transaction.
type Outpoint struct {
	TxID  Hash   `json:"txid"`
	Index uint32 `json:"index"`
}

// NullOutpoint returns the outpoint carried by a coinbase input.
func NullOutpoint() Outpoint {
	return Outpoint{Index: NullIndex}
}

// IsNull reports whether o is the coinbase null outpoint.
func (o Outpoint) IsNull() bool {
	return o.TxID.IsZero() && o.Index == NullIndex
}

// String returns "txid:index" in display hex.
func (o Outpoint) String() string {
	return fmt.Sprintf("%s:%d", o.TxID.String(), o.Index)
}
