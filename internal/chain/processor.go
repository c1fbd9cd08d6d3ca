package chain

import (
	"context"
	"fmt"
	"math/bits"
	"time"

	"github.com/Klingon-tech/novanet/internal/consensus"
	"github.com/Klingon-tech/novanet/internal/consensus/ruleerrors"
	"github.com/Klingon-tech/novanet/internal/log"
	"github.com/Klingon-tech/novanet/internal/utxo"
	"github.com/Klingon-tech/novanet/pkg/block"
	"github.com/Klingon-tech/novanet/pkg/target"
	"github.com/Klingon-tech/novanet/pkg/tx"
	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"
)

// ProcessBlock validates a block and, if it is valid, stores it and makes
// it the tip when its branch carries the most work, reorganizing if
// needed. Rule violations come back in the verdict; the error is only set
// for storage failures, in which case the chain state is unchanged.
func (c *Chain) ProcessBlock(blk *block.Block) (Verdict, error) {
	cand := newCandidate(blk)
	c.checkSanity(cand)
	return c.acceptCandidate(cand)
}

// ProcessBlocks processes blocks in order. The context-free checks of all
// blocks run concurrently on up to Workers goroutines; acceptance stays
// serialized in input order. Cancelling ctx stops processing between
// blocks and returns the verdicts reached so far with ctx.Err().
func (c *Chain) ProcessBlocks(ctx context.Context, blocks []*block.Block) ([]Verdict, error) {
	cands := make([]*candidate, len(blocks))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.workers)
	for i, blk := range blocks {
		cands[i] = newCandidate(blk)
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			c.checkSanity(cands[i])
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	verdicts := make([]Verdict, 0, len(blocks))
	for _, cand := range cands {
		if err := ctx.Err(); err != nil {
			return verdicts, err
		}
		v, err := c.acceptCandidate(cand)
		if err != nil {
			return verdicts, err
		}
		verdicts = append(verdicts, v)
	}
	return verdicts, nil
}

// checkSanity runs the checks that need no chain state: structure, size,
// sigops, merkle root, clock drift, proof-of-work hash and the stake block
// signature. It is safe to run concurrently on different candidates.
func (c *Chain) checkSanity(cand *candidate) {
	blk := cand.blk
	if blk == nil || blk.Header == nil {
		cand.reject(errors.Wrap(ruleerrors.ErrBadBlockStructure, "nil block or header"))
		return
	}
	now := uint32(c.now().Unix())
	if err := blk.CheckSanity(c.params, now); err != nil {
		cand.reject(err)
		return
	}
	if !blk.IsProofOfStake() {
		if err := consensus.CheckProofOfWork(cand.hash, blk.Header.Bits, c.params.PowMaxTarget); err != nil {
			cand.reject(err)
			return
		}
	}
	if err := blk.CheckSignature(); err != nil {
		cand.reject(err)
		return
	}
	cand.advance(eventSanity)
}

func (c *Chain) acceptCandidate(cand *candidate) (Verdict, error) {
	start := time.Now()

	c.mu.Lock()
	v, err := c.accept(cand)
	c.mu.Unlock()
	if err != nil {
		log.Chain.Error().Err(err).Str("hash", cand.hash.String()).Msg("Block processing failed")
		return v, err
	}

	c.report(v, time.Since(start))
	return v, nil
}

// accept runs the contextual checks and the state transition of a
// candidate. Callers hold c.mu.
func (c *Chain) accept(cand *candidate) (Verdict, error) {
	v := Verdict{Hash: cand.hash}
	if cand.rejected() {
		return c.rejectVerdict(cand, v, cand.reason), nil
	}
	tip := c.active.tip()
	if tip == nil {
		return c.acceptGenesis(cand, v)
	}

	blk := cand.blk
	if _, known := c.index[cand.hash]; known {
		return c.rejectVerdict(cand, v, errors.Wrapf(ruleerrors.ErrDuplicateBlock, "block %s already known", cand.hash)), nil
	}
	parent := c.index[blk.Header.PrevHash]
	if parent == nil {
		return c.rejectVerdict(cand, v, errors.Wrapf(ruleerrors.ErrOrphanBlock, "parent %s unknown", blk.Header.PrevHash)), nil
	}
	v.Height = parent.height + 1
	if parent.invalid() {
		return c.rejectVerdict(cand, v, errors.Wrapf(ruleerrors.ErrInvalidAncestor, "parent %s is invalid", parent.hash)), nil
	}
	if err := c.checkContext(blk, parent); err != nil {
		return c.rejectVerdict(cand, v, err), nil
	}

	kind := blk.Kind()
	proofHash := cand.hash
	if kind == block.KindPoS {
		proofHash = consensus.KernelHash(parent.modifier, blk.Coinstake().Inputs[0].PrevOut, blk.Header.Timestamp)
	}
	n := newBlockNode(cand.hash, blk.Header, kind, proofHash, parent)

	if parent != tip {
		fork := findFork(n, tip)
		if c.cp != nil && fork.height <= c.cp.Height {
			return c.rejectVerdict(cand, v, errors.Wrapf(ruleerrors.ErrCheckpointConflict,
				"fork at height %d, checkpoint floor %d", fork.height, c.cp.Height)), nil
		}
	}
	side := !heavier(n, tip)
	if side && kind == block.KindPoS {
		if err := c.checkSideStake(n, blk); err != nil {
			return c.connectFailed(cand, v, n, err)
		}
	}
	cand.advance(eventContext)
	n.seq = c.nextSeq()

	if side {
		if err := c.storeSideBlock(n, blk); err != nil {
			return v, err
		}
		v.Status = StatusSideChain
		v.Stage = cand.current()
		return v, nil
	}

	depth, err := c.setBestChain(n, blk)
	if err != nil {
		return c.connectFailed(cand, v, n, err)
	}

	cand.advance(eventAccept)
	v.Status = StatusAccepted
	v.Stage = cand.current()
	v.ReorgDepth = depth
	return v, nil
}

// acceptGenesis bootstraps an empty chain from the configured genesis
// block. Any other block needs an initialized chain.
func (c *Chain) acceptGenesis(cand *candidate, v Verdict) (Verdict, error) {
	if cand.hash != c.params.GenesisHash {
		return v, fmt.Errorf("chain not initialized")
	}
	genesis, err := block.VerifyGenesis(c.params)
	if err != nil {
		return v, err
	}
	if err := c.initGenesis(genesis); err != nil {
		return v, err
	}
	cand.advance(eventContext)
	cand.advance(eventAccept)
	v.Status = StatusAccepted
	v.Stage = cand.current()
	return v, nil
}

// connectFailed turns an error from connecting n's branch into a verdict.
// A rule broken by an ancestor marks that ancestor's subtree invalid.
func (c *Chain) connectFailed(cand *candidate, v Verdict, n *blockNode, err error) (Verdict, error) {
	var ce *connectError
	if errors.As(err, &ce) {
		reason := ce.err
		if ce.node != n {
			if err := c.markInvalid(ce.node); err != nil {
				return v, err
			}
			reason = errors.Wrapf(ruleerrors.ErrInvalidAncestor, "ancestor %s at %d: %v",
				ce.node.hash, ce.node.height, ce.err)
		}
		return c.rejectVerdict(cand, v, reason), nil
	}
	if ruleerrors.IsRuleError(err) {
		return c.rejectVerdict(cand, v, err), nil
	}
	return v, err
}

func (c *Chain) rejectVerdict(cand *candidate, v Verdict, reason error) Verdict {
	cand.reject(reason)
	v.Status = StatusRejected
	v.Reason = cand.reason
	v.Stage = cand.stage
	return v
}

// checkContext checks a block against its ancestors: the timestamp against
// their median and the target against the retarget schedule.
func (c *Chain) checkContext(blk *block.Block, parent *blockNode) error {
	h := blk.Header
	if median := parent.medianTime(); h.Timestamp <= median {
		return errors.Wrapf(ruleerrors.ErrBadTimestamp, "block time %d not after median time %d",
			h.Timestamp, median)
	}

	kind := blk.Kind()
	want := c.nextTarget(parent, kind).Compact()
	if h.Bits != want {
		code := ruleerrors.ErrBadProofOfWork
		if kind == block.KindPoS {
			code = ruleerrors.ErrBadProofOfStake
		}
		return errors.Wrapf(code, "%s block bits %08x, expected %08x", kind, h.Bits, want)
	}
	return nil
}

// checkSideStake evaluates the stake of n, a proof-of-stake block that
// does not become the tip, against the outputs of its own branch: the
// kernel and the maturity of the staked inputs.
func (c *Chain) checkSideStake(n *blockNode, blk *block.Block) error {
	view, err := c.branchView(n.parent)
	if err != nil {
		return err
	}
	cs := blk.Coinstake()
	if _, err := c.checkKernel(view, n, cs, blk.Header.Timestamp); err != nil {
		return err
	}
	if _, err := cs.ValidateWithUTXOs(view, c.params, n.height); err != nil {
		return txRuleError(1, err)
	}
	return nil
}

// storeSideBlock persists a valid block that does not extend the heaviest
// chain.
func (c *Chain) storeSideBlock(n *blockNode, blk *block.Block) error {
	batch := c.blocks.NewBatch()
	if err := c.blocks.putBlock(batch, blk); err != nil {
		return err
	}
	if err := c.blocks.putNode(batch, recordOf(n)); err != nil {
		return err
	}
	if err := batch.Commit(); err != nil {
		return fmt.Errorf("commit side block: %w", err)
	}
	n.link()
	c.index[n.hash] = n
	return nil
}

// connectBlock applies blk on top of view, validating everything that
// depends on the UTXO set of its branch: stake kernel, input existence and
// maturity, fees, scripts and the minted amount. It returns the undo data
// and the supply after the block.
func (c *Chain) connectBlock(view *utxo.View, n *blockNode, blk *block.Block, supply uint64) (*UndoData, uint64, error) {
	p := c.params
	ts := blk.Header.Timestamp
	undo := &UndoData{}

	rc := consensus.RewardContext{
		Kind:     n.kind,
		Height:   n.height,
		FirstPoW: n.kind == block.KindPoW && n.parent.powCount == 0,
	}

	// minted is what the coinbase and coinstake create; collected what
	// they may redistribute: fees and the staked inputs.
	var minted, collected uint64
	prevScripts := make([][][]byte, len(blk.Transactions))

	for i, t := range blk.Transactions {
		out, err := t.TotalOutputValue()
		if err != nil {
			return nil, 0, errors.Wrapf(ruleerrors.ErrBadTransaction, "tx %d: %v", i, err)
		}
		if i == 0 {
			minted = addSat(minted, uint64(out))
			if err := addOutputs(view, i, t, n.height, ts); err != nil {
				return nil, 0, err
			}
			continue
		}

		coinstake := i == 1 && n.kind == block.KindPoS
		if coinstake {
			stake, err := c.checkKernel(view, n, t, ts)
			if err != nil {
				return nil, 0, err
			}
			rc.StakeValue, rc.StakeAge = stake.value, stake.age
		}

		valueIn, err := t.ValidateWithUTXOs(view, p, n.height)
		if err != nil {
			return nil, 0, txRuleError(i, err)
		}
		if coinstake {
			minted = addSat(minted, uint64(out))
			collected = addSat(collected, valueIn)
		} else {
			fee, err := t.CheckFee(valueIn, p)
			if err != nil {
				return nil, 0, errors.Wrapf(ruleerrors.ErrBadTransaction, "tx %d: %v", i, err)
			}
			collected = addSat(collected, fee)
		}

		scripts := make([][]byte, len(t.Inputs))
		for j, in := range t.Inputs {
			u, err := view.Spend(in.PrevOut)
			if err != nil {
				return nil, 0, errors.Wrapf(ruleerrors.ErrMissingInputs, "tx %d input %d: %v", i, j, err)
			}
			scripts[j] = u.ScriptPubKey
			undo.SpentUTXOs = append(undo.SpentUTXOs, *u)
		}
		prevScripts[i] = scripts
		if err := addOutputs(view, i, t, n.height, ts); err != nil {
			return nil, 0, err
		}
	}

	if err := c.verifyScripts(blk, prevScripts); err != nil {
		return nil, 0, err
	}

	expected := c.engine.Supply.ExpectedReward(rc)
	newSupply, err := c.engine.Supply.CheckAndApplyReward(minted, collected, expected, supply)
	if err != nil {
		return nil, 0, err
	}
	return undo, newSupply, nil
}

type stakeInfo struct {
	value uint64
	age   uint32
}

// checkKernel evaluates the coinstake's first input against the stake
// target the block carries.
func (c *Chain) checkKernel(view *utxo.View, n *blockNode, cs *tx.Transaction, ts uint32) (stakeInfo, error) {
	op := cs.Inputs[0].PrevOut
	u, err := view.Get(op)
	if err != nil {
		return stakeInfo{}, errors.Wrapf(ruleerrors.ErrMissingInputs, "stake input %s: %v", op, err)
	}
	posTarget, err := target.FromCompact(n.bits)
	if err != nil {
		return stakeInfo{}, errors.Wrapf(ruleerrors.ErrBadProofOfStake, "bits %08x: %v", n.bits, err)
	}
	stake := consensus.StakeCandidate{Outpoint: op, Value: uint64(u.Value), ConfTime: u.BlockTime}
	if _, err := c.engine.Kernel.EvaluateStake(stake, ts, n.parent.modifier, posTarget); err != nil {
		return stakeInfo{}, err
	}
	age := c.engine.Kernel.CoinAge(u.BlockTime, ts)
	return stakeInfo{value: stake.Value, age: age.Weighted}, nil
}

// addOutputs makes the outputs of t, the i-th transaction of a block,
// spendable. A transaction may not reuse the id of one whose outputs are
// still unspent.
func addOutputs(view *utxo.View, i int, t *tx.Transaction, height, blockTime uint32) error {
	outs := utxo.FromTransaction(t, height, blockTime)
	for _, u := range outs {
		_, err := view.Get(u.Outpoint)
		switch {
		case err == nil:
			return errors.Wrapf(ruleerrors.ErrBadTransaction, "tx %d overwrites unspent output %s", i, u.Outpoint)
		case !errors.Is(err, utxo.ErrNotFound):
			return err
		}
	}
	for _, u := range outs {
		view.Add(u)
	}
	return nil
}

// txRuleError classifies a transaction validation failure.
func txRuleError(i int, err error) error {
	switch {
	case errors.Is(err, tx.ErrInputNotFound):
		return errors.Wrapf(ruleerrors.ErrMissingInputs, "tx %d: %v", i, err)
	case errors.Is(err, tx.ErrImmatureSpend):
		return errors.Wrapf(ruleerrors.ErrImmatureCoinbaseSpend, "tx %d: %v", i, err)
	default:
		return errors.Wrapf(ruleerrors.ErrBadTransaction, "tx %d: %v", i, err)
	}
}

func addSat(a, b uint64) uint64 {
	sum, carry := bits.Add64(a, b, 0)
	if carry != 0 {
		return ^uint64(0)
	}
	return sum
}

// report logs a verdict and records it in the metrics.
func (c *Chain) report(v Verdict, took time.Duration) {
	switch v.Status {
	case StatusAccepted:
		ev := log.Chain.Info().
			Uint32("height", v.Height).
			Str("hash", v.Hash.String())
		if v.ReorgDepth > 0 {
			ev = ev.Int("reorg_depth", v.ReorgDepth)
		}
		ev.Msg("Block accepted")
	case StatusSideChain:
		log.Chain.Info().
			Uint32("height", v.Height).
			Str("hash", v.Hash.String()).
			Msg("Side chain block stored")
	case StatusRejected:
		log.Chain.Warn().
			Str("hash", v.Hash.String()).
			Str("reason", v.Code()).
			Str("stage", v.Stage).
			Err(v.Reason).
			Msg("Block rejected")
	}
	c.metrics.ObserveVerdict(v.Status.String(), v.Code(), took)
}
