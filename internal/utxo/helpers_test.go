package utxo

import (
	"testing"

	"github.com/Klingon-tech/novanet/internal/storage"
	"github.com/Klingon-tech/novanet/pkg/crypto"
	"github.com/Klingon-tech/novanet/pkg/script"
	"github.com/Klingon-tech/novanet/pkg/types"
)

var testAddr = [20]byte{0x01, 0x02, 0x03, 0x04, 0x05, 0x06, 0x07, 0x08, 0x09, 0x0a,
	0x0b, 0x0c, 0x0d, 0x0e, 0x0f, 0x10, 0x11, 0x12, 0x13, 0x14}

func testStore(t *testing.T) *Store {
	t.Helper()
	return NewStore(storage.NewMemory())
}

func makeOutpoint(data string, index uint32) types.Outpoint {
	return types.Outpoint{
		TxID:  crypto.Hash([]byte(data)),
		Index: index,
	}
}

func makeUTXO(data string, index uint32, value int64) *UTXO {
	return &UTXO{
		Outpoint:     makeOutpoint(data, index),
		Value:        value,
		ScriptPubKey: script.PayToPubKeyHash(testAddr),
		Height:       1,
		BlockTime:    1_700_000_000,
		TxTime:       1_700_000_000,
	}
}
