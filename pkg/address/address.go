// Package address implements base58check addresses with a one-byte
// network prefix.
package address

import (
	"bytes"
	"errors"
	"fmt"

	"github.com/Klingon-tech/novanet/pkg/crypto"
	"github.com/mr-tron/base58"
)

// PayloadSize is the length of a pubkey-hash or script-hash payload.
const PayloadSize = 20

var (
	// ErrChecksum is returned when the trailing checksum does not match.
	ErrChecksum = errors.New("address checksum mismatch")
	// ErrPrefix is returned when the version byte is not the expected one.
	ErrPrefix = errors.New("unexpected address prefix")
)

// Encode returns base58(prefix || payload || checksum[:4]).
func Encode(prefix byte, payload []byte) string {
	buf := make([]byte, 0, 1+len(payload)+4)
	buf = append(buf, prefix)
	buf = append(buf, payload...)
	sum := crypto.Hash(buf)
	buf = append(buf, sum[:4]...)
	return base58.Encode(buf)
}

// Decode parses a base58check string into its prefix and payload.
func Decode(s string) (byte, []byte, error) {
	raw, err := base58.Decode(s)
	if err != nil {
		return 0, nil, fmt.Errorf("base58: %w", err)
	}
	if len(raw) < 5 {
		return 0, nil, fmt.Errorf("address too short: %d bytes", len(raw))
	}
	body, check := raw[:len(raw)-4], raw[len(raw)-4:]
	sum := crypto.Hash(body)
	if !bytes.Equal(sum[:4], check) {
		return 0, nil, ErrChecksum
	}
	return body[0], body[1:], nil
}

// FromPubKey returns the pay-to-pubkey-hash address of a serialized key.
func FromPubKey(prefix byte, pubKey []byte) string {
	h := crypto.Hash160(pubKey)
	return Encode(prefix, h[:])
}

// DecodeWithPrefix decodes s and checks its prefix and payload size.
func DecodeWithPrefix(s string, prefix byte) ([PayloadSize]byte, error) {
	var out [PayloadSize]byte
	p, payload, err := Decode(s)
	if err != nil {
		return out, err
	}
	if p != prefix {
		return out, fmt.Errorf("%w: got %d, want %d", ErrPrefix, p, prefix)
	}
	if len(payload) != PayloadSize {
		return out, fmt.Errorf("address payload must be %d bytes, got %d", PayloadSize, len(payload))
	}
	copy(out[:], payload)
	return out, nil
}
