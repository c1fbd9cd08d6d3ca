package chain

import (
	"github.com/Klingon-tech/novanet/pkg/target"
	"github.com/Klingon-tech/novanet/pkg/types"
	"github.com/holiman/uint256"
)

// State is an immutable snapshot of the active chain. A new State is
// published after every committed change; readers never see a half-applied
// block.
type State struct {
	TipHash    types.Hash
	Height     uint32
	TipTime    uint32
	MedianTime uint32 // median time past of the tip, the bound for the next block

	Supply uint64      // cumulative money supply at the tip
	Work   uint256.Int // cumulative work of the active chain

	NextPoWTarget target.Target
	NextPoSTarget target.Target
	// StakeModifier is the tip's modifier, which kernels of the next
	// stake block hash against.
	StakeModifier types.Hash

	// CheckpointHeight and CheckpointHash identify the reorg floor. A zero
	// hash means no checkpoint has been accepted.
	CheckpointHeight uint32
	CheckpointHash   types.Hash
}

// Initialized reports whether the chain has a tip, genesis at least.
func (s *State) Initialized() bool {
	return !s.TipHash.IsZero()
}

// IsGenesis reports whether genesis is the only block on the active chain.
func (s *State) IsGenesis() bool {
	return s.Height == 0 && s.Initialized()
}

// HasCheckpoint reports whether a checkpoint floor is in effect.
func (s *State) HasCheckpoint() bool {
	return !s.CheckpointHash.IsZero()
}
