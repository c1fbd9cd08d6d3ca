package chain

import (
	"fmt"

	"github.com/Klingon-tech/novanet/internal/consensus/ruleerrors"
	"github.com/Klingon-tech/novanet/pkg/block"
	"github.com/Klingon-tech/novanet/pkg/tx"
	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"
)

// ScriptVerifier checks the input scripts of a transaction against the
// scripts of the outputs it spends, one per input.
type ScriptVerifier interface {
	VerifyTransaction(t *tx.Transaction, prevScripts [][]byte) error
}

// StandardScripts verifies pay-to-pubkey and pay-to-pubkey-hash spends.
type StandardScripts struct{}

// VerifyTransaction implements ScriptVerifier.
func (StandardScripts) VerifyTransaction(t *tx.Transaction, prevScripts [][]byte) error {
	if len(prevScripts) != len(t.Inputs) {
		return fmt.Errorf("%d previous scripts for %d inputs", len(prevScripts), len(t.Inputs))
	}
	for i, script := range prevScripts {
		if err := t.VerifyInput(i, script); err != nil {
			return fmt.Errorf("input %d: %w", i, err)
		}
	}
	return nil
}

// verifyScripts runs the configured ScriptVerifier over every spending
// transaction of blk on up to Workers goroutines.
func (c *Chain) verifyScripts(blk *block.Block, prevScripts [][][]byte) error {
	if c.scripts == nil {
		return nil
	}
	var g errgroup.Group
	g.SetLimit(c.workers)
	for i := 1; i < len(blk.Transactions); i++ {
		t := blk.Transactions[i]
		g.Go(func() error {
			if err := c.scripts.VerifyTransaction(t, prevScripts[i]); err != nil {
				return errors.Wrapf(ruleerrors.ErrBadTransaction, "tx %d script: %v", i, err)
			}
			return nil
		})
	}
	return g.Wait()
}
