package chain

import (
	"fmt"

	"github.com/Klingon-tech/novanet/internal/consensus/ruleerrors"
	"github.com/Klingon-tech/novanet/internal/log"
	"github.com/Klingon-tech/novanet/internal/utxo"
	"github.com/Klingon-tech/novanet/pkg/block"
	"github.com/pkg/errors"
)

// UndoData stores the information needed to revert a block's UTXO changes:
// the outputs its transactions spent, in spending order.
type UndoData struct {
	SpentUTXOs []utxo.UTXO `json:"spent_utxos"`
}

// connectError reports a rule violation found while connecting node.
type connectError struct {
	node *blockNode
	err  error
}

func (e *connectError) Error() string {
	return fmt.Sprintf("connect block %s at %d: %v", e.node.hash, e.node.height, e.err)
}

func (e *connectError) Unwrap() error { return e.err }

// pendingNode is an index update that is applied once the batch writing it
// has committed.
type pendingNode struct {
	node   *blockNode
	supply uint64
}

// setBestChain makes the branch ending at n, a new block with the most
// work, the active chain. Blocks of the old branch are disconnected and
// the new branch connected on a UTXO view; everything is written in one
// batch, so on any error the stored and in-memory state stays as it was.
// It returns the number of blocks disconnected. Callers hold c.mu.
func (c *Chain) setBestChain(n *blockNode, blk *block.Block) (int, error) {
	tip := c.active.tip()
	fork := findFork(n, tip)
	if fork == nil {
		return 0, fmt.Errorf("block %s shares no ancestor with tip %s", n.hash, tip.hash)
	}

	var detach []*blockNode
	for k := tip; k != fork; k = k.parent {
		detach = append(detach, k)
	}
	attach := make([]*blockNode, n.height-fork.height)
	for k := n; k != fork; k = k.parent {
		attach[k.height-fork.height-1] = k
	}

	depth := len(detach)
	if depth > c.maxReorgDepth {
		return 0, errors.Wrapf(ruleerrors.ErrReorgTooDeep, "reorg of %d blocks exceeds limit %d",
			depth, c.maxReorgDepth)
	}
	if depth > 0 && c.cp != nil && fork.height <= c.cp.Height {
		return 0, errors.Wrapf(ruleerrors.ErrCheckpointConflict,
			"reorg from height %d crosses checkpoint at %d", fork.height, c.cp.Height)
	}

	view := utxo.NewView(c.utxos)
	batch := c.blocks.NewBatch()

	for _, d := range detach {
		old, err := c.blocks.GetBlock(d.hash)
		if err != nil {
			return 0, err
		}
		undo, err := c.blocks.GetUndo(d.hash)
		if err != nil {
			return 0, err
		}
		if err := disconnect(view, old, undo); err != nil {
			return 0, fmt.Errorf("disconnect block %s: %w", d.hash, err)
		}
		if err := c.blocks.deleteUndo(batch, d.hash); err != nil {
			return 0, err
		}
		r := recordOf(d)
		r.Status &^= statusConnected
		r.Supply = 0
		if err := c.blocks.putNode(batch, r); err != nil {
			return 0, err
		}
	}

	supply := fork.supply
	updates := make([]pendingNode, 0, len(attach))
	for _, a := range attach {
		b := blk
		if a != n {
			var err error
			if b, err = c.blocks.GetBlock(a.hash); err != nil {
				return 0, err
			}
		}
		undo, newSupply, err := c.connectBlock(view, a, b, supply)
		if err != nil {
			if ruleerrors.IsRuleError(err) {
				return 0, &connectError{node: a, err: err}
			}
			return 0, err
		}
		if err := c.blocks.putUndo(batch, a.hash, undo); err != nil {
			return 0, err
		}
		r := recordOf(a)
		r.Status |= statusConnected
		r.Supply = newSupply
		if err := c.blocks.putNode(batch, r); err != nil {
			return 0, err
		}
		updates = append(updates, pendingNode{node: a, supply: newSupply})
		supply = newSupply
	}

	if err := c.blocks.putBlock(batch, blk); err != nil {
		return 0, err
	}
	if err := view.Flush(c.utxos, batch); err != nil {
		return 0, fmt.Errorf("flush utxo view: %w", err)
	}
	if err := c.blocks.setTip(batch, n.hash); err != nil {
		return 0, err
	}
	if err := batch.Commit(); err != nil {
		return 0, fmt.Errorf("commit block %s: %w", n.hash, err)
	}

	for _, d := range detach {
		d.status &^= statusConnected
		d.supply = 0
	}
	for _, u := range updates {
		u.node.status |= statusConnected
		u.node.supply = u.supply
	}
	n.link()
	c.index[n.hash] = n
	c.active.setTip(n)
	c.publish()

	if depth > 0 {
		log.Chain.Info().
			Int("depth", depth).
			Uint32("fork_height", fork.height).
			Str("old_tip", tip.hash.String()).
			Str("new_tip", n.hash.String()).
			Msg("Chain reorganized")
		c.metrics.ObserveReorg(depth)
	}
	return depth, nil
}

// branchView returns the UTXO set as it stands after parent, a block that
// may be off the active chain: the active blocks above the fork are
// disconnected and the branch up to parent connected on a view that is
// never flushed. Callers hold c.mu.
func (c *Chain) branchView(parent *blockNode) (*utxo.View, error) {
	tip := c.active.tip()
	fork := findFork(parent, tip)
	if fork == nil {
		return nil, fmt.Errorf("block %s shares no ancestor with tip %s", parent.hash, tip.hash)
	}
	if depth := int(tip.height - fork.height); depth > c.maxReorgDepth {
		return nil, errors.Wrapf(ruleerrors.ErrReorgTooDeep, "fork %d blocks below the tip exceeds limit %d",
			depth, c.maxReorgDepth)
	}

	view := utxo.NewView(c.utxos)
	for k := tip; k != fork; k = k.parent {
		old, err := c.blocks.GetBlock(k.hash)
		if err != nil {
			return nil, err
		}
		undo, err := c.blocks.GetUndo(k.hash)
		if err != nil {
			return nil, err
		}
		if err := disconnect(view, old, undo); err != nil {
			return nil, fmt.Errorf("disconnect block %s: %w", k.hash, err)
		}
	}

	var attach []*blockNode
	for k := parent; k != fork; k = k.parent {
		attach = append(attach, k)
	}
	supply := fork.supply
	for i := len(attach) - 1; i >= 0; i-- {
		a := attach[i]
		b, err := c.blocks.GetBlock(a.hash)
		if err != nil {
			return nil, err
		}
		if _, supply, err = c.connectBlock(view, a, b, supply); err != nil {
			if ruleerrors.IsRuleError(err) {
				return nil, &connectError{node: a, err: err}
			}
			return nil, err
		}
	}
	return view, nil
}

// disconnect reverts blk on view: its outputs are removed and the outputs
// it spent restored from undo.
func disconnect(view *utxo.View, blk *block.Block, undo *UndoData) error {
	spent := undo.SpentUTXOs
	for i := len(blk.Transactions) - 1; i >= 0; i-- {
		t := blk.Transactions[i]
		for _, u := range utxo.FromTransaction(t, 0, 0) {
			if _, err := view.Spend(u.Outpoint); err != nil {
				return fmt.Errorf("remove output %s: %w", u.Outpoint, err)
			}
		}
		if i == 0 {
			continue
		}
		k := len(t.Inputs)
		if k > len(spent) {
			return fmt.Errorf("corrupt undo data: tx %d spends %d inputs, %d left", i, k, len(spent))
		}
		for j := len(spent) - k; j < len(spent); j++ {
			u := spent[j]
			view.Add(&u)
		}
		spent = spent[:len(spent)-k]
	}
	if len(spent) != 0 {
		return fmt.Errorf("corrupt undo data: %d spent outputs unaccounted for", len(spent))
	}
	return nil
}

// markInvalid flags n and every stored descendant as invalid, so blocks
// building on them are rejected without being connected again.
func (c *Chain) markInvalid(n *blockNode) error {
	var marked []*blockNode
	batch := c.blocks.NewBatch()
	for queue := []*blockNode{n}; len(queue) > 0; queue = queue[1:] {
		k := queue[0]
		r := recordOf(k)
		r.Status |= statusInvalid
		if err := c.blocks.putNode(batch, r); err != nil {
			return err
		}
		marked = append(marked, k)
		queue = append(queue, k.children...)
	}
	if err := batch.Commit(); err != nil {
		return fmt.Errorf("commit invalid marks: %w", err)
	}
	for _, k := range marked {
		k.status |= statusInvalid
	}
	log.Chain.Warn().
		Str("hash", n.hash.String()).
		Uint32("height", n.height).
		Int("blocks", len(marked)).
		Msg("Branch marked invalid")
	return nil
}
