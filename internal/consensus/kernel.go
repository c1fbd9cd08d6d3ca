package consensus

import (
	"context"
	"encoding/binary"
	"errors"
	"math/bits"

	"github.com/Klingon-tech/novanet/config"
	"github.com/Klingon-tech/novanet/internal/consensus/ruleerrors"
	"github.com/Klingon-tech/novanet/pkg/crypto"
	"github.com/Klingon-tech/novanet/pkg/target"
	"github.com/Klingon-tech/novanet/pkg/types"
	"github.com/holiman/uint256"
	pkgerrors "github.com/pkg/errors"
)

// ErrNoKernel is returned by SearchKernel when no candidate meets the
// target anywhere in the searched time range.
var ErrNoKernel = errors.New("no stake kernel found")

// StakeCandidate is an unspent output offered as stake.
type StakeCandidate struct {
	Outpoint types.Outpoint
	Value    uint64
	// ConfTime is the timestamp of the block that confirmed the output.
	ConfTime uint32
}

// CoinAge describes how old a staked output is at a given block time.
type CoinAge struct {
	Raw      uint32 // seconds since confirmation
	Eligible bool   // Raw >= StakeMinAge
	Weighted uint32 // min(Raw - StakeMinAge, StakeMaxAge) when eligible
}

// KernelResult is a successful kernel search hit.
type KernelResult struct {
	Candidate StakeCandidate
	Time      uint32
	Hash      types.Hash
}

// StakeKernel evaluates stake eligibility and the kernel hash test.
type StakeKernel struct {
	params *config.Params
}

// NewStakeKernel creates a StakeKernel for p.
func NewStakeKernel(p *config.Params) *StakeKernel {
	return &StakeKernel{params: p}
}

// CoinAge computes the age of an output confirmed at confTime when staked
// in a block at blockTime.
func (k *StakeKernel) CoinAge(confTime, blockTime uint32) CoinAge {
	var age CoinAge
	if blockTime > confTime {
		age.Raw = blockTime - confTime
	}
	if age.Raw < k.params.StakeMinAge {
		return age
	}
	age.Eligible = true
	age.Weighted = min(age.Raw-k.params.StakeMinAge, k.params.StakeMaxAge)
	return age
}

// Weight returns value*age / (StakeCoinStep*StakeAgeStep), floored and
// saturated at the largest uint64.
func (k *StakeKernel) Weight(value uint64, age uint32) uint64 {
	var num, den uint256.Int
	num.Mul(uint256.NewInt(value), uint256.NewInt(uint64(age)))
	den.Mul(uint256.NewInt(k.params.StakeCoinStep), uint256.NewInt(uint64(k.params.StakeAgeStep)))
	num.Div(&num, &den)
	if !num.IsUint64() {
		return ^uint64(0)
	}
	return num.Uint64()
}

// KernelHash is sha256d(modifier || txid || index || blockTime), the value
// compared against the weighted target.
func KernelHash(modifier types.Hash, outpoint types.Outpoint, blockTime uint32) types.Hash {
	buf := make([]byte, 0, 32+32+4+4)
	buf = append(buf, modifier[:]...)
	buf = append(buf, outpoint.TxID[:]...)
	buf = binary.LittleEndian.AppendUint32(buf, outpoint.Index)
	buf = binary.LittleEndian.AppendUint32(buf, blockTime)
	return crypto.Hash(buf)
}

// WeightedTarget returns posTarget * value * age / (coinStep * ageStep),
// saturating at 2^256-1.
func (k *StakeKernel) WeightedTarget(posTarget target.Target, value uint64, age uint32) target.Target {
	hi, lo := bits.Mul64(value, uint64(age))
	dhi, dlo := bits.Mul64(k.params.StakeCoinStep, uint64(k.params.StakeAgeStep))
	return posTarget.MulDivWide(hi, lo, target.FromUint128(dhi, dlo))
}

// EvaluateStake checks that c may stake a block at blockTime: the output is
// old enough and its kernel hash is below the weighted target. It returns
// the kernel hash, which becomes the block's proof hash.
func (k *StakeKernel) EvaluateStake(c StakeCandidate, blockTime uint32, modifier types.Hash, posTarget target.Target) (types.Hash, error) {
	age := k.CoinAge(c.ConfTime, blockTime)
	if !age.Eligible {
		return types.Hash{}, pkgerrors.Wrapf(ruleerrors.ErrStakeNotMature,
			"output %s aged %ds, minimum %ds", c.Outpoint, age.Raw, k.params.StakeMinAge)
	}
	if c.Value == 0 || age.Weighted == 0 {
		return types.Hash{}, pkgerrors.Wrapf(ruleerrors.ErrBadProofOfStake,
			"output %s has zero stake weight (value %d, age %ds)", c.Outpoint, c.Value, age.Weighted)
	}

	hash := KernelHash(modifier, c.Outpoint, blockTime)
	bound := k.WeightedTarget(posTarget, c.Value, age.Weighted)
	if target.FromHash(hash).Cmp(bound) >= 0 {
		return types.Hash{}, pkgerrors.Wrapf(ruleerrors.ErrBadProofOfStake,
			"kernel hash %s not below weighted target %s", hash, bound)
	}
	return hash, nil
}

// StakeModifier derives the stake modifier of a block from its parent's
// modifier and the block's proof hash.
func StakeModifier(parent, proofHash types.Hash) types.Hash {
	return crypto.Blake3(parent[:], proofHash[:])
}

// GenesisStakeModifier is the stake modifier of the genesis block.
func GenesisStakeModifier(genesisHash types.Hash) types.Hash {
	return crypto.Blake3(genesisHash[:])
}

// SearchKernel scans block times from..to (inclusive) over all candidates
// and returns the first hit. It checks ctx between timestamps and returns
// ctx.Err() when cancelled, or ErrNoKernel when the range is exhausted.
func (k *StakeKernel) SearchKernel(ctx context.Context, candidates []StakeCandidate, from, to uint32, modifier types.Hash, posTarget target.Target) (*KernelResult, error) {
	for ts := from; ts <= to; ts++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		for _, c := range candidates {
			hash, err := k.EvaluateStake(c, ts, modifier, posTarget)
			if err != nil {
				continue
			}
			return &KernelResult{Candidate: c, Time: ts, Hash: hash}, nil
		}
		if ts == ^uint32(0) {
			break
		}
	}
	return nil, ErrNoKernel
}
