// Package tx defines transaction types, their wire encoding and validation.
package tx

import (
	"encoding/binary"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"math"

	"github.com/Klingon-tech/novanet/pkg/crypto"
	"github.com/Klingon-tech/novanet/pkg/script"
	"github.com/Klingon-tech/novanet/pkg/types"
	"github.com/Klingon-tech/novanet/pkg/wire"
)

// SequenceFinal is the sequence number of a final input.
const SequenceFinal = ^uint32(0)

// Transaction represents a blockchain transaction. Every transaction
// carries its own timestamp, which stake age is measured against.
type Transaction struct {
	Version  uint32   `json:"version"`
	Time     uint32   `json:"time"`
	Inputs   []Input  `json:"inputs"`
	Outputs  []Output `json:"outputs"`
	LockTime uint32   `json:"locktime"`
}

// Input references a UTXO being spent.
type Input struct {
	PrevOut   types.Outpoint `json:"prevout"`
	ScriptSig []byte         `json:"script_sig"`
	Sequence  uint32         `json:"sequence"`
}

type inputJSON struct {
	PrevOut   types.Outpoint `json:"prevout"`
	ScriptSig string         `json:"script_sig"`
	Sequence  uint32         `json:"sequence"`
}

// MarshalJSON encodes the input with a hex-encoded script.
func (in Input) MarshalJSON() ([]byte, error) {
	return json.Marshal(inputJSON{
		PrevOut:   in.PrevOut,
		ScriptSig: hex.EncodeToString(in.ScriptSig),
		Sequence:  in.Sequence,
	})
}

// UnmarshalJSON decodes an input with a hex-encoded script.
func (in *Input) UnmarshalJSON(data []byte) error {
	var j inputJSON
	if err := json.Unmarshal(data, &j); err != nil {
		return err
	}
	b, err := hex.DecodeString(j.ScriptSig)
	if err != nil {
		return fmt.Errorf("script_sig: %w", err)
	}
	in.PrevOut, in.ScriptSig, in.Sequence = j.PrevOut, b, j.Sequence
	return nil
}

// Output defines a new UTXO. An output with zero value and an empty script
// is "empty"; it marks the first output of a coinstake.
type Output struct {
	Value        int64  `json:"value"`
	ScriptPubKey []byte `json:"script_pubkey"`
}

type outputJSON struct {
	Value        int64  `json:"value"`
	ScriptPubKey string `json:"script_pubkey"`
}

// MarshalJSON encodes the output with a hex-encoded script.
func (out Output) MarshalJSON() ([]byte, error) {
	return json.Marshal(outputJSON{Value: out.Value, ScriptPubKey: hex.EncodeToString(out.ScriptPubKey)})
}

// UnmarshalJSON decodes an output with a hex-encoded script.
func (out *Output) UnmarshalJSON(data []byte) error {
	var j outputJSON
	if err := json.Unmarshal(data, &j); err != nil {
		return err
	}
	b, err := hex.DecodeString(j.ScriptPubKey)
	if err != nil {
		return fmt.Errorf("script_pubkey: %w", err)
	}
	out.Value, out.ScriptPubKey = j.Value, b
	return nil
}

// IsEmpty reports whether the output has zero value and no script.
func (out Output) IsEmpty() bool {
	return out.Value == 0 && len(out.ScriptPubKey) == 0
}

// Hash computes the transaction ID: SHA-256d of the full serialization.
func (tx *Transaction) Hash() types.Hash {
	return crypto.Hash(tx.Serialize())
}

// Serialize returns the wire encoding.
// Format: version(4) | time(4) | varint n | inputs | varint m | outputs | locktime(4)
// where an input is prevout txid(32) | index(4) | varbytes script | sequence(4)
// and an output is value(8) | varbytes script.
func (tx *Transaction) Serialize() []byte {
	buf := make([]byte, 0, tx.SerializeSize())
	return tx.AppendTo(buf)
}

// AppendTo appends the wire encoding to buf.
func (tx *Transaction) AppendTo(buf []byte) []byte {
	buf = binary.LittleEndian.AppendUint32(buf, tx.Version)
	buf = binary.LittleEndian.AppendUint32(buf, tx.Time)

	buf = wire.AppendVarInt(buf, uint64(len(tx.Inputs)))
	for _, in := range tx.Inputs {
		buf = append(buf, in.PrevOut.TxID[:]...)
		buf = binary.LittleEndian.AppendUint32(buf, in.PrevOut.Index)
		buf = wire.AppendBytes(buf, in.ScriptSig)
		buf = binary.LittleEndian.AppendUint32(buf, in.Sequence)
	}

	buf = wire.AppendVarInt(buf, uint64(len(tx.Outputs)))
	for _, out := range tx.Outputs {
		buf = binary.LittleEndian.AppendUint64(buf, uint64(out.Value))
		buf = wire.AppendBytes(buf, out.ScriptPubKey)
	}

	return binary.LittleEndian.AppendUint32(buf, tx.LockTime)
}

// SerializeSize returns the length of the wire encoding.
func (tx *Transaction) SerializeSize() int {
	n := 4 + 4 + wire.VarIntSize(uint64(len(tx.Inputs))) + wire.VarIntSize(uint64(len(tx.Outputs))) + 4
	for _, in := range tx.Inputs {
		n += 32 + 4 + wire.VarIntSize(uint64(len(in.ScriptSig))) + len(in.ScriptSig) + 4
	}
	for _, out := range tx.Outputs {
		n += 8 + wire.VarIntSize(uint64(len(out.ScriptPubKey))) + len(out.ScriptPubKey)
	}
	return n
}

// minInputSize and minOutputSize bound decoded element counts.
const (
	minInputSize  = 32 + 4 + 1 + 4
	minOutputSize = 8 + 1
)

// Decode reads one transaction from r.
func Decode(r *wire.Reader) *Transaction {
	tx := &Transaction{}
	tx.Version = r.Uint32()
	tx.Time = r.Uint32()

	n := r.Count(minInputSize)
	tx.Inputs = make([]Input, n)
	for i := 0; i < n; i++ {
		tx.Inputs[i].PrevOut.TxID = r.Hash()
		tx.Inputs[i].PrevOut.Index = r.Uint32()
		tx.Inputs[i].ScriptSig = r.Bytes()
		tx.Inputs[i].Sequence = r.Uint32()
	}

	m := r.Count(minOutputSize)
	tx.Outputs = make([]Output, m)
	for i := 0; i < m; i++ {
		tx.Outputs[i].Value = int64(r.Uint64())
		tx.Outputs[i].ScriptPubKey = r.Bytes()
	}

	tx.LockTime = r.Uint32()
	return tx
}

// Deserialize decodes a transaction that must span all of b.
func Deserialize(b []byte) (*Transaction, error) {
	r := wire.NewReader(b)
	tx := Decode(r)
	if err := r.Err(); err != nil {
		return nil, fmt.Errorf("decode transaction: %w", err)
	}
	if r.Remaining() != 0 {
		return nil, fmt.Errorf("decode transaction: %d trailing bytes", r.Remaining())
	}
	return tx, nil
}

// IsCoinBase reports whether tx is a coinbase: a single input spending the
// null outpoint.
func (tx *Transaction) IsCoinBase() bool {
	return len(tx.Inputs) == 1 && tx.Inputs[0].PrevOut.IsNull()
}

// IsCoinStake reports whether tx is a coinstake: a non-null first input,
// at least two outputs, and an empty first output.
func (tx *Transaction) IsCoinStake() bool {
	return len(tx.Inputs) > 0 && !tx.Inputs[0].PrevOut.IsNull() &&
		len(tx.Outputs) >= 2 && tx.Outputs[0].IsEmpty()
}

// SigOpCount returns the legacy sigop count over all scripts of tx.
func (tx *Transaction) SigOpCount() int {
	n := 0
	for _, in := range tx.Inputs {
		n += script.SigOpCount(in.ScriptSig)
	}
	for _, out := range tx.Outputs {
		n += script.SigOpCount(out.ScriptPubKey)
	}
	return n
}

// TotalOutputValue returns the sum of all output values.
// Returns an error on a negative value or if the sum overflows int64.
func (tx *Transaction) TotalOutputValue() (int64, error) {
	var total int64
	for i, out := range tx.Outputs {
		if out.Value < 0 {
			return 0, fmt.Errorf("output %d: %w", i, ErrNegativeOutput)
		}
		if total > math.MaxInt64-out.Value {
			return 0, fmt.Errorf("output %d: %w", i, ErrOutputOverflow)
		}
		total += out.Value
	}
	return total, nil
}
