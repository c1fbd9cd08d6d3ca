package tx

import (
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/Klingon-tech/novanet/pkg/crypto"
	"github.com/Klingon-tech/novanet/pkg/script"
	"github.com/Klingon-tech/novanet/pkg/types"
)

// Script verification errors.
var (
	ErrNonStandardScript = errors.New("non-standard script")
	ErrScriptMismatch    = errors.New("pubkey does not match output script")
	ErrBadScriptSig      = errors.New("malformed signature script")
	ErrBadHashType       = errors.New("unsupported signature hash type")
	ErrInvalidSig        = errors.New("invalid signature")
)

// SignatureHash computes the legacy digest an input signature commits to:
// the transaction with every input script blanked, the signed input's
// script replaced by the spent output's script, and the hash type
// appended.
func (tx *Transaction) SignatureHash(idx int, subscript []byte, hashType byte) (types.Hash, error) {
	if idx < 0 || idx >= len(tx.Inputs) {
		return types.Hash{}, fmt.Errorf("input index %d out of range", idx)
	}
	cp := *tx
	cp.Inputs = make([]Input, len(tx.Inputs))
	for i, in := range tx.Inputs {
		cp.Inputs[i] = Input{PrevOut: in.PrevOut, Sequence: in.Sequence}
	}
	cp.Inputs[idx].ScriptSig = subscript

	buf := cp.Serialize()
	buf = binary.LittleEndian.AppendUint32(buf, uint32(hashType))
	return crypto.Hash(buf), nil
}

// VerifyInput checks input idx's signature script against the spent
// output's pay-to-pubkey or pay-to-pubkey-hash script.
func (tx *Transaction) VerifyInput(idx int, prevScript []byte) error {
	if idx < 0 || idx >= len(tx.Inputs) {
		return fmt.Errorf("input index %d out of range", idx)
	}
	ops, err := script.Parse(tx.Inputs[idx].ScriptSig)
	if err != nil || !script.IsPushOnly(tx.Inputs[idx].ScriptSig) {
		return fmt.Errorf("input %d: %w", idx, ErrBadScriptSig)
	}

	var sig, pubKey []byte
	if pk, ok := script.ExtractPubKey(prevScript); ok {
		if len(ops) != 1 {
			return fmt.Errorf("input %d: %w: want 1 push, got %d", idx, ErrBadScriptSig, len(ops))
		}
		sig, pubKey = ops[0].Data, pk
	} else if h, ok := script.ExtractPubKeyHash(prevScript); ok {
		if len(ops) != 2 {
			return fmt.Errorf("input %d: %w: want 2 pushes, got %d", idx, ErrBadScriptSig, len(ops))
		}
		sig, pubKey = ops[0].Data, ops[1].Data
		if crypto.Hash160(pubKey) != h {
			return fmt.Errorf("input %d: %w", idx, ErrScriptMismatch)
		}
	} else {
		return fmt.Errorf("input %d: %w", idx, ErrNonStandardScript)
	}

	if len(sig) == 0 {
		return fmt.Errorf("input %d: %w", idx, ErrInvalidSig)
	}
	hashType := sig[len(sig)-1]
	if hashType != script.SigHashAll {
		return fmt.Errorf("input %d: %w: %#x", idx, ErrBadHashType, hashType)
	}
	digest, err := tx.SignatureHash(idx, prevScript, hashType)
	if err != nil {
		return err
	}
	if !crypto.VerifySignature(digest[:], sig[:len(sig)-1], pubKey) {
		return fmt.Errorf("input %d: %w", idx, ErrInvalidSig)
	}
	return nil
}

// SignInput fills input idx's signature script for a pay-to-pubkey or
// pay-to-pubkey-hash output.
func (tx *Transaction) SignInput(idx int, prevScript []byte, key *crypto.PrivateKey) error {
	digest, err := tx.SignatureHash(idx, prevScript, script.SigHashAll)
	if err != nil {
		return err
	}
	sig, err := key.Sign(digest[:])
	if err != nil {
		return err
	}
	sig = append(sig, script.SigHashAll)

	b := script.NewBuilder().AddData(sig)
	switch {
	case isP2PK(prevScript):
	case isP2PKH(prevScript):
		b.AddData(key.PublicKey())
	default:
		return ErrNonStandardScript
	}
	tx.Inputs[idx].ScriptSig = b.Script()
	return nil
}

func isP2PK(s []byte) bool {
	_, ok := script.ExtractPubKey(s)
	return ok
}

func isP2PKH(s []byte) bool {
	_, ok := script.ExtractPubKeyHash(s)
	return ok
}
