package chain

import (
	"fmt"

	"github.com/Klingon-tech/novanet/internal/checkpoint"
	"github.com/Klingon-tech/novanet/internal/consensus/ruleerrors"
	"github.com/Klingon-tech/novanet/internal/log"
	"github.com/pkg/errors"
)

// AcceptCheckpoint verifies a signed checkpoint and raises the checkpoint
// floor to it. The checkpointed block must be on the active chain. After
// acceptance no block forking at or below the floor is accepted.
func (c *Chain) AcceptCheckpoint(cp *checkpoint.Checkpoint) error {
	if cp == nil {
		return errors.Wrap(ruleerrors.ErrCheckpointMismatch, "nil checkpoint")
	}
	if err := c.verifier.Verify(cp); err != nil {
		log.Checkpoint.Warn().Err(err).Uint32("height", cp.Height).Msg("Checkpoint rejected")
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.cp != nil && cp.Height < c.cp.Height {
		return errors.Wrapf(ruleerrors.ErrCheckpointRegression, "checkpoint at %d below floor %d",
			cp.Height, c.cp.Height)
	}
	n := c.active.at(cp.Height)
	if n == nil || n.hash != cp.Hash {
		return errors.Wrapf(ruleerrors.ErrCheckpointUnknownBlock, "block %s not on the active chain at %d",
			cp.Hash, cp.Height)
	}

	batch := c.blocks.NewBatch()
	if err := c.blocks.putCheckpoint(batch, cp); err != nil {
		return err
	}
	if err := batch.Commit(); err != nil {
		return fmt.Errorf("commit checkpoint: %w", err)
	}
	c.cp = cp
	c.publish()

	log.Checkpoint.Info().
		Uint32("height", cp.Height).
		Str("hash", cp.Hash.String()).
		Msg("Checkpoint floor raised")
	return nil
}

// Checkpoint returns the accepted checkpoint, or nil.
func (c *Chain) Checkpoint() *checkpoint.Checkpoint {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.cp
}
