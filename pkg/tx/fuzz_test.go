package tx

import (
	"bytes"
	"testing"

	"github.com/Klingon-tech/novanet/config"
)

// FuzzDeserialize checks that arbitrary bytes never panic the decoder and
// that anything it accepts re-encodes to the same bytes.
func FuzzDeserialize(f *testing.F) {
	f.Add(sampleTx().Serialize())
	f.Add(coinbaseTx(1).Serialize())
	f.Add([]byte{})
	f.Add([]byte{0x01, 0, 0, 0, 0, 0, 0, 0, 0xff, 0xff, 0xff, 0xff, 0xff})

	params := config.RegtestParams()
	f.Fuzz(func(t *testing.T, data []byte) {
		tx, err := Deserialize(data)
		if err != nil {
			return
		}
		if !bytes.Equal(tx.Serialize(), data) {
			t.Fatalf("re-encoding differs from input")
		}
		// These must not panic.
		tx.Hash()
		_ = tx.Validate(params)
		tx.SigOpCount()
		tx.IsCoinStake()
	})
}
