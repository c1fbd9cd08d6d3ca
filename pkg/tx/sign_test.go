package tx

import (
	"errors"
	"testing"

	"github.com/Klingon-tech/novanet/pkg/crypto"
	"github.com/Klingon-tech/novanet/pkg/script"
)

func mustKey(t *testing.T) *crypto.PrivateKey {
	t.Helper()
	key, err := crypto.GenerateKey()
	if err != nil {
		t.Fatalf("GenerateKey: %v", err)
	}
	return key
}

func TestSignVerify_P2PKH(t *testing.T) {
	key := mustKey(t)
	prev := script.PayToPubKeyHash(crypto.Hash160(key.PublicKey()))

	tx := sampleTx()
	if err := tx.SignInput(0, prev, key); err != nil {
		t.Fatalf("SignInput: %v", err)
	}
	if err := tx.VerifyInput(0, prev); err != nil {
		t.Fatalf("VerifyInput: %v", err)
	}
}

func TestSignVerify_P2PK(t *testing.T) {
	key := mustKey(t)
	prev := script.PayToPubKey(key.PublicKey())

	tx := coinstakeTx()
	if err := tx.SignInput(0, prev, key); err != nil {
		t.Fatalf("SignInput: %v", err)
	}
	if err := tx.VerifyInput(0, prev); err != nil {
		t.Fatalf("VerifyInput: %v", err)
	}
}

func TestVerifyInput_TamperedOutput(t *testing.T) {
	key := mustKey(t)
	prev := script.PayToPubKeyHash(crypto.Hash160(key.PublicKey()))

	tx := sampleTx()
	if err := tx.SignInput(0, prev, key); err != nil {
		t.Fatal(err)
	}
	tx.Outputs[0].Value++
	if err := tx.VerifyInput(0, prev); !errors.Is(err, ErrInvalidSig) {
		t.Fatalf("err = %v, want ErrInvalidSig", err)
	}
}

func TestVerifyInput_WrongKey(t *testing.T) {
	key, other := mustKey(t), mustKey(t)
	prev := script.PayToPubKeyHash(crypto.Hash160(other.PublicKey()))

	tx := sampleTx()
	if err := tx.SignInput(0, prev, key); err != nil {
		t.Fatal(err)
	}
	if err := tx.VerifyInput(0, prev); !errors.Is(err, ErrScriptMismatch) {
		t.Fatalf("err = %v, want ErrScriptMismatch", err)
	}
}

func TestVerifyInput_NonStandard(t *testing.T) {
	tx := sampleTx()
	if err := tx.VerifyInput(0, []byte{script.OpReturn}); !errors.Is(err, ErrNonStandardScript) {
		t.Fatalf("err = %v, want ErrNonStandardScript", err)
	}
	if err := tx.SignInput(0, []byte{script.OpReturn}, mustKey(t)); !errors.Is(err, ErrNonStandardScript) {
		t.Fatalf("err = %v, want ErrNonStandardScript", err)
	}
}

func TestSignatureHash_CommitsToIndex(t *testing.T) {
	tx := sampleTx()
	prev := p2pkh(1)
	h0, err := tx.SignatureHash(0, prev, script.SigHashAll)
	if err != nil {
		t.Fatal(err)
	}
	h1, err := tx.SignatureHash(1, prev, script.SigHashAll)
	if err != nil {
		t.Fatal(err)
	}
	if h0 == h1 {
		t.Error("signature hashes of different inputs must differ")
	}
	if _, err := tx.SignatureHash(2, prev, script.SigHashAll); err == nil {
		t.Error("out of range index should fail")
	}
}
