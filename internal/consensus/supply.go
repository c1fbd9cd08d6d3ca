package consensus

import (
	"math/bits"

	"github.com/Klingon-tech/novanet/config"
	"github.com/Klingon-tech/novanet/internal/consensus/ruleerrors"
	"github.com/Klingon-tech/novanet/pkg/block"
	pkgerrors "github.com/pkg/errors"
)

// StakeRewardPolicy decides how many new coins a proof-of-stake block may
// mint on top of the fees it collects.
type StakeRewardPolicy interface {
	StakeReward(height uint32, stakeValue uint64, stakeAge uint32) uint64
}

// FeesOnlyStakeReward mints nothing for stake blocks; stakers earn fees.
type FeesOnlyStakeReward struct{}

// StakeReward implements StakeRewardPolicy.
func (FeesOnlyStakeReward) StakeReward(uint32, uint64, uint32) uint64 { return 0 }

// RewardContext describes the block a reward is computed for.
type RewardContext struct {
	Kind   block.Kind
	Height uint32
	// FirstPoW is set for the first mined proof-of-work block, which
	// carries the premine.
	FirstPoW bool
	// Stake value and weighted age, for proof-of-stake blocks.
	StakeValue uint64
	StakeAge   uint32
}

// SupplyTracker computes block rewards and enforces the money supply cap.
type SupplyTracker struct {
	params *config.Params
	policy StakeRewardPolicy
}

// NewSupplyTracker creates a SupplyTracker. A nil policy selects
// FeesOnlyStakeReward.
func NewSupplyTracker(p *config.Params, policy StakeRewardPolicy) *SupplyTracker {
	if policy == nil {
		policy = FeesOnlyStakeReward{}
	}
	return &SupplyTracker{params: p, policy: policy}
}

// ExpectedReward returns the number of new coins a block may mint,
// excluding fees.
func (s *SupplyTracker) ExpectedReward(rc RewardContext) uint64 {
	if rc.Kind == block.KindPoS {
		return s.policy.StakeReward(rc.Height, rc.StakeValue, rc.StakeAge)
	}
	if rc.FirstPoW && s.params.CoinPremine > 0 {
		return s.params.CoinPremine
	}
	if rc.Height <= s.params.PowMaxBlock {
		return s.params.PowBlockReward
	}
	return 0
}

// CheckAndApplyReward checks what a block mints against its allowance and
// the supply cap, and returns the supply after the block.
//
// minted is the total output value of the coinbase and coinstake; fees is
// what they may pass on without minting: the block's transaction fees plus
// the staked input value. Only the part of minted exceeding fees is new
// money.
func (s *SupplyTracker) CheckAndApplyReward(minted, fees, expected, currentSupply uint64) (uint64, error) {
	allowed, carry := bits.Add64(expected, fees, 0)
	if carry != 0 {
		allowed = ^uint64(0)
	}
	if minted > allowed {
		return 0, pkgerrors.Wrapf(ruleerrors.ErrRewardMismatch,
			"block mints %d, allowed %d (reward %d + fees %d)", minted, allowed, expected, fees)
	}

	var newCoins uint64
	if minted > fees {
		newCoins = minted - fees
	}
	supply, carry := bits.Add64(currentSupply, newCoins, 0)
	if carry != 0 || supply > s.params.MaxMoney {
		return 0, pkgerrors.Wrapf(ruleerrors.ErrSupplyCapExceeded,
			"supply %d + %d exceeds max money %d", currentSupply, newCoins, s.params.MaxMoney)
	}
	return supply, nil
}
