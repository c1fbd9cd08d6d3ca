// Package crypto provides cryptographic primitives for novanet.
package crypto

import (
	"github.com/Klingon-tech/novanet/pkg/types"
	"github.com/minio/sha256-simd"
	"github.com/zeebo/blake3"
	"golang.org/x/crypto/ripemd160" //nolint:staticcheck // address format requires RIPEMD-160
)

// Hash computes SHA-256(SHA-256(data)), the hash used for block headers,
// transaction ids, merkle nodes and stake kernels.
func Hash(data []byte) types.Hash {
	first := sha256.Sum256(data)
	return sha256.Sum256(first[:])
}

// SingleSHA256 computes one round of SHA-256.
func SingleSHA256(data []byte) types.Hash {
	return sha256.Sum256(data)
}

// Hash160 computes RIPEMD-160(SHA-256(data)), used for pay-to-pubkey-hash
// scripts and addresses.
func Hash160(data []byte) [20]byte {
	s := sha256.Sum256(data)
	h := ripemd160.New()
	h.Write(s[:])
	var out [20]byte
	copy(out[:], h.Sum(nil))
	return out
}

// Blake3 computes a BLAKE3-256 hash of the concatenated parts. Stake
// modifiers are chained with it.
func Blake3(parts ...[]byte) types.Hash {
	h := blake3.New()
	for _, p := range parts {
		h.Write(p)
	}
	var out types.Hash
	copy(out[:], h.Sum(nil))
	return out
}

// HashConcat hashes the concatenation of two hashes.
// Used for building merkle trees.
func HashConcat(a, b types.Hash) types.Hash {
	var buf [64]byte
	copy(buf[:32], a[:])
	copy(buf[32:], b[:])
	return Hash(buf[:])
}
