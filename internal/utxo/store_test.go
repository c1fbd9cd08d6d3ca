package utxo

import (
	"errors"
	"testing"

	"github.com/Klingon-tech/novanet/pkg/crypto"
	"github.com/Klingon-tech/novanet/pkg/script"
	"github.com/Klingon-tech/novanet/pkg/tx"
	"github.com/Klingon-tech/novanet/pkg/types"
)

func TestStore_PutAndGet(t *testing.T) {
	s := testStore(t)
	u := makeUTXO("tx1", 0, 5000)
	u.Coinstake = true

	if err := s.Put(u); err != nil {
		t.Fatalf("Put() error: %v", err)
	}

	got, err := s.Get(u.Outpoint)
	if err != nil {
		t.Fatalf("Get() error: %v", err)
	}
	if got.Value != u.Value {
		t.Errorf("Value = %d, want %d", got.Value, u.Value)
	}
	if got.Outpoint != u.Outpoint {
		t.Error("Outpoint mismatch")
	}
	if got.Height != u.Height || got.BlockTime != u.BlockTime || got.TxTime != u.TxTime {
		t.Errorf("times/height = %d/%d/%d, want %d/%d/%d",
			got.Height, got.BlockTime, got.TxTime, u.Height, u.BlockTime, u.TxTime)
	}
	if !got.Coinstake || got.Coinbase {
		t.Error("flags did not round trip")
	}
	if string(got.ScriptPubKey) != string(u.ScriptPubKey) {
		t.Error("script mismatch")
	}
}

func TestStore_GetNotFound(t *testing.T) {
	s := testStore(t)
	_, err := s.Get(makeOutpoint("missing", 0))
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("Get() error = %v, want ErrNotFound", err)
	}
}

func TestStore_Delete(t *testing.T) {
	s := testStore(t)
	u := makeUTXO("tx1", 0, 5000)
	if err := s.Put(u); err != nil {
		t.Fatal(err)
	}
	if err := s.Delete(u.Outpoint); err != nil {
		t.Fatalf("Delete() error: %v", err)
	}
	if has, _ := s.Has(u.Outpoint); has {
		t.Error("UTXO still present after Delete")
	}
	if got, _ := s.GetByAddress(testAddr); len(got) != 0 {
		t.Errorf("address index still has %d entries", len(got))
	}
	// Deleting again is a no-op.
	if err := s.Delete(u.Outpoint); err != nil {
		t.Errorf("second Delete() error: %v", err)
	}
}

func TestStore_GetByAddress(t *testing.T) {
	s := testStore(t)
	key, err := crypto.GenerateKey()
	if err != nil {
		t.Fatal(err)
	}
	pkHash := crypto.Hash160(key.PublicKey())

	p2pkh := makeUTXO("a", 0, 100)
	p2pkh.ScriptPubKey = script.PayToPubKeyHash(pkHash)
	p2pk := makeUTXO("b", 1, 200)
	p2pk.ScriptPubKey = script.PayToPubKey(key.PublicKey())
	other := makeUTXO("c", 0, 300)

	for _, u := range []*UTXO{p2pkh, p2pk, other} {
		if err := s.Put(u); err != nil {
			t.Fatal(err)
		}
	}

	got, err := s.GetByAddress(pkHash)
	if err != nil {
		t.Fatalf("GetByAddress() error: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("GetByAddress() returned %d UTXOs, want 2", len(got))
	}
	var total int64
	for _, u := range got {
		total += u.Value
	}
	if total != 300 {
		t.Errorf("total = %d, want 300", total)
	}
}

func TestStore_ForEach(t *testing.T) {
	s := testStore(t)
	for i := uint32(0); i < 5; i++ {
		if err := s.Put(makeUTXO("tx", i, int64(i+1))); err != nil {
			t.Fatal(err)
		}
	}
	var count int
	var sum int64
	err := s.ForEach(func(u *UTXO) error {
		count++
		sum += u.Value
		return nil
	})
	if err != nil {
		t.Fatalf("ForEach() error: %v", err)
	}
	if count != 5 || sum != 15 {
		t.Errorf("count=%d sum=%d, want 5 and 15", count, sum)
	}
}

func TestFromTransaction(t *testing.T) {
	coinstake := &tx.Transaction{
		Version: 1,
		Time:    42,
		Inputs:  []tx.Input{{PrevOut: types.Outpoint{TxID: types.Hash{9}}}},
		Outputs: []tx.Output{
			{},
			{Value: 10, ScriptPubKey: script.PayToPubKeyHash(testAddr)},
		},
	}
	got := FromTransaction(coinstake, 7, 100)
	if len(got) != 1 {
		t.Fatalf("got %d UTXOs, want 1 (empty marker skipped)", len(got))
	}
	u := got[0]
	if u.Outpoint.Index != 1 || u.Outpoint.TxID != coinstake.Hash() {
		t.Errorf("outpoint = %s", u.Outpoint)
	}
	if !u.Coinstake || u.Coinbase || u.Height != 7 || u.BlockTime != 100 || u.TxTime != 42 {
		t.Errorf("unexpected UTXO %+v", u)
	}
}
