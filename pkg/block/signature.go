package block

import (
	"github.com/Klingon-tech/novanet/internal/consensus/ruleerrors"
	"github.com/Klingon-tech/novanet/pkg/crypto"
	"github.com/Klingon-tech/novanet/pkg/script"
	"github.com/pkg/errors"
)

// stakerKey returns the public key a proof-of-stake block must be signed
// with: the pay-to-pubkey key of the coinstake's first paying output.
func (b *Block) stakerKey() ([]byte, error) {
	cs := b.Coinstake()
	if cs == nil {
		return nil, errors.Wrap(ruleerrors.ErrBadBlockStructure, "block has no coinstake")
	}
	pub, ok := script.ExtractPubKey(cs.Outputs[1].ScriptPubKey)
	if !ok {
		return nil, errors.Wrap(ruleerrors.ErrBadProofOfStake, "coinstake output 1 is not pay-to-pubkey")
	}
	return pub, nil
}

// Sign signs a proof-of-stake block with the staker's key.
func (b *Block) Sign(key crypto.Signer) error {
	hash := b.Hash()
	sig, err := key.Sign(hash[:])
	if err != nil {
		return err
	}
	b.Signature = sig
	return nil
}

// CheckSignature verifies the staker's signature of a proof-of-stake
// block. Proof-of-work blocks must not be signed.
func (b *Block) CheckSignature() error {
	if !b.IsProofOfStake() {
		if len(b.Signature) != 0 {
			return errors.Wrap(ruleerrors.ErrBadBlockStructure, "proof-of-work block carries a signature")
		}
		return nil
	}
	pub, err := b.stakerKey()
	if err != nil {
		return err
	}
	hash := b.Hash()
	if len(b.Signature) == 0 || !crypto.VerifySignature(hash[:], b.Signature, pub) {
		return errors.Wrap(ruleerrors.ErrBadProofOfStake, "bad block signature")
	}
	return nil
}
