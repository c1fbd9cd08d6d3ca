// Package checkpoint implements signed checkpoints: a height and block hash
// endorsed by the network's checkpoint key. The chain refuses to reorganize
// at or below the most recent accepted checkpoint.
package checkpoint

import (
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"os"
	"strings"

	"github.com/Klingon-tech/novanet/internal/consensus/ruleerrors"
	"github.com/Klingon-tech/novanet/pkg/crypto"
	"github.com/Klingon-tech/novanet/pkg/types"
	"github.com/Klingon-tech/novanet/pkg/wire"
	"github.com/pkg/errors"
)

// MaxSignatureSize bounds the DER signature a checkpoint may carry.
const MaxSignatureSize = 72

// Checkpoint is a signed (height, hash) pair.
type Checkpoint struct {
	Height    uint32     `json:"height"`
	Hash      types.Hash `json:"hash"`
	Signature []byte     `json:"signature"`
}

// SigHash returns the digest a checkpoint signature commits to:
// sha256d(height LE || hash).
func SigHash(height uint32, hash types.Hash) types.Hash {
	var buf [4 + types.HashSize]byte
	binary.LittleEndian.PutUint32(buf[:4], height)
	copy(buf[4:], hash[:])
	return crypto.Hash(buf[:])
}

// Sign creates a checkpoint for (height, hash) signed with key.
func Sign(key crypto.Signer, height uint32, hash types.Hash) (*Checkpoint, error) {
	digest := SigHash(height, hash)
	sig, err := key.Sign(digest[:])
	if err != nil {
		return nil, fmt.Errorf("sign checkpoint: %w", err)
	}
	return &Checkpoint{Height: height, Hash: hash, Signature: sig}, nil
}

// Serialize returns the wire encoding:
// height(4) | hash(32) | varint n | signature(n).
func (cp *Checkpoint) Serialize() []byte {
	buf := make([]byte, 0, 4+types.HashSize+wire.VarIntSize(uint64(len(cp.Signature)))+len(cp.Signature))
	buf = binary.LittleEndian.AppendUint32(buf, cp.Height)
	buf = append(buf, cp.Hash[:]...)
	return wire.AppendBytes(buf, cp.Signature)
}

// Deserialize decodes a checkpoint. Trailing bytes are an error.
func Deserialize(b []byte) (*Checkpoint, error) {
	r := wire.NewReader(b)
	cp := &Checkpoint{
		Height: r.Uint32(),
		Hash:   r.Hash(),
	}
	cp.Signature = r.Bytes()
	if err := r.Err(); err != nil {
		return nil, fmt.Errorf("decode checkpoint: %w", err)
	}
	if r.Remaining() != 0 {
		return nil, fmt.Errorf("decode checkpoint: %d trailing bytes", r.Remaining())
	}
	if len(cp.Signature) == 0 || len(cp.Signature) > MaxSignatureSize {
		return nil, fmt.Errorf("decode checkpoint: signature length %d", len(cp.Signature))
	}
	return cp, nil
}

// String renders the checkpoint for logs.
func (cp *Checkpoint) String() string {
	return fmt.Sprintf("checkpoint %d:%s", cp.Height, cp.Hash)
}

// Verifier checks checkpoint signatures against the network key. It holds
// only the public key.
type Verifier struct {
	pubKey []byte
}

// NewVerifier creates a verifier for a compressed or uncompressed
// secp256k1 public key.
func NewVerifier(pubKey []byte) (*Verifier, error) {
	if err := crypto.ParsePublicKey(pubKey); err != nil {
		return nil, errors.Wrapf(ruleerrors.ErrConfigInvalid, "checkpoint public key: %v", err)
	}
	return &Verifier{pubKey: append([]byte(nil), pubKey...)}, nil
}

// Verify checks the checkpoint's signature.
func (v *Verifier) Verify(cp *Checkpoint) error {
	if cp == nil {
		return errors.Wrap(ruleerrors.ErrCheckpointMismatch, "nil checkpoint")
	}
	digest := SigHash(cp.Height, cp.Hash)
	if !crypto.VerifySignature(digest[:], cp.Signature, v.pubKey) {
		return errors.Wrapf(ruleerrors.ErrCheckpointMismatch, "bad signature on %s", cp)
	}
	return nil
}

// Save writes the hex-encoded wire form to path.
func Save(path string, cp *Checkpoint) error {
	data := hex.EncodeToString(cp.Serialize()) + "\n"
	if err := os.WriteFile(path, []byte(data), 0644); err != nil {
		return fmt.Errorf("write checkpoint: %w", err)
	}
	return nil
}

// Load reads a checkpoint written by Save. The signature is not checked.
func Load(path string) (*Checkpoint, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read checkpoint: %w", err)
	}
	raw, err := hex.DecodeString(strings.TrimSpace(string(data)))
	if err != nil {
		return nil, fmt.Errorf("checkpoint file %s: %w", path, err)
	}
	return Deserialize(raw)
}
