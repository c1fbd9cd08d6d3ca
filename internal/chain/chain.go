// Package chain implements the block validator: it owns the block index,
// the UTXO set and the chain state, decides which branch is active and
// turns every candidate block into a verdict.
package chain

import (
	"cmp"
	"fmt"
	"runtime"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/Klingon-tech/novanet/config"
	"github.com/Klingon-tech/novanet/internal/checkpoint"
	"github.com/Klingon-tech/novanet/internal/consensus"
	"github.com/Klingon-tech/novanet/internal/consensus/ruleerrors"
	"github.com/Klingon-tech/novanet/internal/log"
	"github.com/Klingon-tech/novanet/internal/metrics"
	"github.com/Klingon-tech/novanet/internal/storage"
	"github.com/Klingon-tech/novanet/internal/utxo"
	"github.com/Klingon-tech/novanet/pkg/block"
	"github.com/Klingon-tech/novanet/pkg/target"
	"github.com/Klingon-tech/novanet/pkg/types"
	"github.com/pkg/errors"
)

// MaxReorgDepth is the default maximum number of blocks that can be
// disconnected in a reorg.
const MaxReorgDepth = 1000

// Options tune a Chain. The zero value is usable.
type Options struct {
	// Workers bounds the goroutines used for sanity and script checks;
	// 0 means one per CPU.
	Workers int
	// Now is the local clock, for the future-drift check.
	Now func() time.Time
	// Scripts verifies input scripts; nil skips script verification.
	Scripts ScriptVerifier
	// RewardPolicy decides proof-of-stake minting; nil mints nothing.
	RewardPolicy consensus.StakeRewardPolicy
	// CacheBlocks is the number of decoded blocks kept in memory.
	CacheBlocks int
	// MaxReorgDepth overrides the package default when non-zero.
	MaxReorgDepth int
	// Metrics receives verdicts and tip updates; may be nil.
	Metrics *metrics.Metrics
}

// Chain is the block validator and the owner of the chain state.
type Chain struct {
	mu sync.Mutex // Protects the index, the active chain and all writes.

	params   *config.Params
	engine   *consensus.Engine
	verifier *checkpoint.Verifier
	blocks   *BlockStore
	utxos    *utxo.Store

	index  map[types.Hash]*blockNode
	active chainView
	seq    uint64
	cp     *checkpoint.Checkpoint

	state atomic.Pointer[State]

	workers       int
	now           func() time.Time
	scripts       ScriptVerifier
	maxReorgDepth int
	metrics       *metrics.Metrics
}

// New opens a chain on db, recovering the block index, tip and checkpoint
// floor persisted by a previous run. A fresh database needs
// InitFromGenesis before blocks can be processed.
func New(p *config.Params, db storage.Store, opts Options) (*Chain, error) {
	if p == nil {
		return nil, fmt.Errorf("params are nil")
	}
	if db == nil {
		return nil, fmt.Errorf("storage db is nil")
	}
	verifier, err := checkpoint.NewVerifier(p.CheckpointPublicKey)
	if err != nil {
		return nil, err
	}
	blocks, err := NewBlockStore(db, opts.CacheBlocks)
	if err != nil {
		return nil, err
	}

	c := &Chain{
		params:        p,
		engine:        consensus.NewEngine(p, opts.RewardPolicy),
		verifier:      verifier,
		blocks:        blocks,
		utxos:         utxo.NewStore(db),
		index:         make(map[types.Hash]*blockNode),
		workers:       opts.Workers,
		now:           opts.Now,
		scripts:       opts.Scripts,
		maxReorgDepth: opts.MaxReorgDepth,
		metrics:       opts.Metrics,
	}
	if c.workers <= 0 {
		c.workers = runtime.NumCPU()
	}
	if c.now == nil {
		c.now = time.Now
	}
	if c.maxReorgDepth <= 0 {
		c.maxReorgDepth = MaxReorgDepth
	}

	if err := c.recover(); err != nil {
		return nil, fmt.Errorf("recover chain: %w", err)
	}
	return c, nil
}

// recover rebuilds the in-memory index and active chain from storage.
func (c *Chain) recover() error {
	records, err := c.blocks.loadNodes()
	if err != nil {
		return err
	}
	if len(records) == 0 {
		c.state.Store(&State{})
		return nil
	}

	// Parents load before children.
	slices.SortFunc(records, func(a, b nodeRecord) int {
		if r := cmp.Compare(a.Height, b.Height); r != 0 {
			return r
		}
		return cmp.Compare(a.Seq, b.Seq)
	})
	for _, r := range records {
		var parent *blockNode
		if r.Height > 0 {
			parent = c.index[r.PrevHash]
			if parent == nil {
				return fmt.Errorf("index record %s: parent %s missing", r.Hash, r.PrevHash)
			}
		} else if r.Hash != c.params.GenesisHash {
			return errors.Wrapf(ruleerrors.ErrConfigInvalid, "stored genesis %s does not match params %s",
				r.Hash, c.params.GenesisHash)
		}
		h := &block.Header{Timestamp: r.Timestamp, Bits: r.Bits}
		n := newBlockNode(r.Hash, h, r.Kind, r.ProofHash, parent)
		n.seq, n.status, n.supply = r.Seq, r.Status, r.Supply
		n.link()
		c.index[n.hash] = n
		c.seq = max(c.seq, n.seq)
	}

	tipHash, err := c.blocks.GetTip()
	if err != nil {
		return err
	}
	tip := c.index[tipHash]
	if tip == nil {
		return fmt.Errorf("tip %s not in block index", tipHash)
	}
	c.active.setTip(tip)

	cp, err := c.blocks.GetCheckpoint()
	if err != nil {
		return err
	}
	c.cp = cp

	c.publish()
	log.Chain.Info().
		Uint32("height", tip.height).
		Str("tip", tip.hash.String()).
		Int("blocks", len(c.index)).
		Msg("Chain recovered")
	return nil
}

// InitFromGenesis stores the genesis block of the chain's parameters and
// makes it the tip. Genesis mints nothing; its supply is zero.
// Returns an error if the chain already has blocks.
func (c *Chain) InitFromGenesis() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.active.tip() != nil {
		return fmt.Errorf("chain already initialized at height %d", c.active.tip().height)
	}
	blk, err := block.VerifyGenesis(c.params)
	if err != nil {
		return err
	}
	return c.initGenesis(blk)
}

// initGenesis makes blk, the verified genesis block, the first tip.
// Callers hold c.mu.
func (c *Chain) initGenesis(blk *block.Block) error {
	hash := blk.Hash()
	n := newBlockNode(hash, blk.Header, block.KindPoW, hash, nil)
	n.status = statusConnected
	n.seq = c.nextSeq()

	batch := c.blocks.NewBatch()
	if err := c.blocks.putBlock(batch, blk); err != nil {
		return err
	}
	if err := c.blocks.putNode(batch, recordOf(n)); err != nil {
		return err
	}
	if err := c.blocks.setTip(batch, hash); err != nil {
		return err
	}
	if err := batch.Commit(); err != nil {
		return fmt.Errorf("commit genesis: %w", err)
	}

	c.index[hash] = n
	c.active.setTip(n)
	c.publish()

	log.Chain.Info().Str("hash", hash.String()).Msg("Genesis block initialized")
	return nil
}

func (c *Chain) nextSeq() uint64 {
	c.seq++
	return c.seq
}

// publish swaps in a snapshot of the active chain. Callers hold c.mu or
// have exclusive access.
func (c *Chain) publish() {
	tip := c.active.tip()
	s := &State{
		TipHash:       tip.hash,
		Height:        tip.height,
		TipTime:       tip.timestamp,
		MedianTime:    tip.medianTime(),
		Supply:        tip.supply,
		Work:          tip.work,
		NextPoWTarget: c.nextTarget(tip, block.KindPoW),
		NextPoSTarget: c.nextTarget(tip, block.KindPoS),
		StakeModifier: tip.modifier,
	}
	if c.cp != nil {
		s.CheckpointHeight = c.cp.Height
		s.CheckpointHash = c.cp.Hash
	}
	c.state.Store(s)
	c.metrics.SetTip(s.Height, s.Supply)
	if c.cp != nil {
		c.metrics.SetCheckpointFloor(c.cp.Height)
	}
}

// nextTarget returns the target a block of kind built on parent must carry.
func (c *Chain) nextTarget(parent *blockNode, kind block.Kind) target.Target {
	adj := c.engine.Targets
	_, initial, _ := adj.Bounds(kind)
	w := parent.retargetWindow(kind, int(adj.Interval(kind))+1, initial)
	return adj.NextTarget(kind, w)
}

// Snapshot returns the current chain state. It never blocks.
func (c *Chain) Snapshot() State {
	return *c.state.Load()
}

// Params returns the consensus parameters the chain enforces.
func (c *Chain) Params() *config.Params {
	return c.params
}

// Engine returns the consensus rule components.
func (c *Chain) Engine() *consensus.Engine {
	return c.engine
}

// Height returns the current chain height.
func (c *Chain) Height() uint32 {
	return c.Snapshot().Height
}

// TipHash returns the hash of the current chain tip.
func (c *Chain) TipHash() types.Hash {
	return c.Snapshot().TipHash
}

// GetBlock retrieves a stored block by its hash.
func (c *Chain) GetBlock(hash types.Hash) (*block.Block, error) {
	return c.blocks.GetBlock(hash)
}

// BlockHashAt returns the hash of the active block at height.
func (c *Chain) BlockHashAt(height uint32) (types.Hash, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := c.active.at(height)
	if n == nil {
		return types.Hash{}, false
	}
	return n.hash, true
}

// GetBlockByHeight retrieves the active block at height.
func (c *Chain) GetBlockByHeight(height uint32) (*block.Block, error) {
	hash, ok := c.BlockHashAt(height)
	if !ok {
		return nil, fmt.Errorf("no block at height %d", height)
	}
	return c.blocks.GetBlock(hash)
}

// GetUTXO returns an unspent output of the active chain.
func (c *Chain) GetUTXO(op types.Outpoint) (*utxo.UTXO, error) {
	return c.utxos.Get(op)
}

// UTXOsByAddress returns the unspent outputs paying to a key hash.
func (c *Chain) UTXOsByAddress(addr [20]byte) ([]*utxo.UTXO, error) {
	return c.utxos.GetByAddress(addr)
}

// UTXOCommitment returns the merkle commitment of the UTXO set at the tip.
func (c *Chain) UTXOCommitment() (types.Hash, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return utxo.Commitment(c.utxos)
}
