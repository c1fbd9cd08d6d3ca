// Package consensus implements the hybrid proof-of-work / proof-of-stake
// rules that do not need chain storage: target retargeting, the stake
// kernel, monetary supply accounting and proof-of-work checks.
package consensus

import "github.com/Klingon-tech/novanet/config"

// Engine bundles the rule components a block validator consults. Each of
// them only reads the parameters it was built with, so an Engine is safe
// for concurrent use.
type Engine struct {
	Params  *config.Params
	Targets *TargetAdjuster
	Kernel  *StakeKernel
	Supply  *SupplyTracker
}

// NewEngine creates the rule components for p. A nil policy selects
// FeesOnlyStakeReward.
func NewEngine(p *config.Params, policy StakeRewardPolicy) *Engine {
	return &Engine{
		Params:  p,
		Targets: NewTargetAdjuster(p),
		Kernel:  NewStakeKernel(p),
		Supply:  NewSupplyTracker(p, policy),
	}
}
