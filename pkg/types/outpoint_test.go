package types

import (
	"strings"
	"testing"
)

func TestOutpoint_IsNull(t *testing.T) {
	if !NullOutpoint().IsNull() {
		t.Error("NullOutpoint() should be null")
	}

	var zero Outpoint
	if zero.IsNull() {
		t.Error("zero-value Outpoint spends output 0 and is not null")
	}

	withTx := Outpoint{TxID: Hash{0x01}, Index: NullIndex}
	if withTx.IsNull() {
		t.Error("Outpoint with non-zero TxID should not be null")
	}
}

func TestOutpoint_String(t *testing.T) {
	o := Outpoint{
		TxID:  Hash{0xab},
		Index: 3,
	}
	s := o.String()

	// Display order puts the first internal byte last.
	if !strings.HasSuffix(s, "ab:3") {
		t.Errorf("String() should end with 'ab:3', got %s", s)
	}
}
