package chain

import (
	"github.com/Klingon-tech/novanet/internal/consensus"
	"github.com/Klingon-tech/novanet/pkg/block"
	"github.com/Klingon-tech/novanet/pkg/target"
	"github.com/Klingon-tech/novanet/pkg/types"
	"github.com/holiman/uint256"
)

// nodeStatus flags a block index node.
type nodeStatus uint8

const (
	// statusConnected is set while the block is connected to the UTXO
	// set, that is while it is on the active chain.
	statusConnected nodeStatus = 1 << iota
	// statusInvalid marks a block, or a descendant of one, that broke a
	// rule at connect time.
	statusInvalid
)

// blockNode is the in-memory record of a stored block: enough to choose
// tips, compute targets and walk branches without loading blocks.
type blockNode struct {
	hash      types.Hash
	parent    *blockNode
	children  []*blockNode
	height    uint32
	timestamp uint32
	bits      uint32
	kind      block.Kind

	// work is the cumulative work of the chain ending here.
	work uint256.Int
	// Blocks of each kind up to and including this one, genesis excluded.
	powCount, posCount uint32
	// Nearest ancestor-or-self of each kind, genesis excluded.
	lastPoW, lastPoS *blockNode

	proofHash types.Hash
	modifier  types.Hash

	// seq orders blocks by arrival; the earlier of two equal-work tips wins.
	seq    uint64
	status nodeStatus
	// supply after this block; meaningful while connected.
	supply uint64
}

// newBlockNode creates the node of a block with the given header fields
// on top of parent. parent is nil only for genesis.
func newBlockNode(hash types.Hash, h *block.Header, kind block.Kind, proofHash types.Hash, parent *blockNode) *blockNode {
	n := &blockNode{
		hash:      hash,
		parent:    parent,
		timestamp: h.Timestamp,
		bits:      h.Bits,
		kind:      kind,
		proofHash: proofHash,
	}
	if t, err := target.FromCompact(h.Bits); err == nil {
		n.work = *t.Work()
	}
	if parent == nil {
		n.modifier = consensus.GenesisStakeModifier(hash)
		return n
	}

	n.height = parent.height + 1
	n.work.Add(&n.work, &parent.work)
	n.powCount, n.posCount = parent.powCount, parent.posCount
	n.lastPoW, n.lastPoS = parent.lastPoW, parent.lastPoS
	if kind == block.KindPoS {
		n.posCount++
		n.lastPoS = n
	} else {
		n.powCount++
		n.lastPoW = n
	}
	n.modifier = consensus.StakeModifier(parent.modifier, proofHash)
	return n
}

// link registers n with its parent once it is part of the index.
func (n *blockNode) link() {
	if n.parent != nil {
		n.parent.children = append(n.parent.children, n)
	}
}

func (n *blockNode) isGenesis() bool {
	return n.parent == nil
}

func (n *blockNode) invalid() bool {
	return n.status&statusInvalid != 0
}

func (n *blockNode) connected() bool {
	return n.status&statusConnected != 0
}

// lastOf returns the nearest ancestor-or-self of kind.
func (n *blockNode) lastOf(kind block.Kind) *blockNode {
	if kind == block.KindPoS {
		return n.lastPoS
	}
	return n.lastPoW
}

// countOf returns the number of blocks of kind up to n.
func (n *blockNode) countOf(kind block.Kind) uint32 {
	if kind == block.KindPoS {
		return n.posCount
	}
	return n.powCount
}

// ancestor returns the ancestor of n at height, or nil.
func (n *blockNode) ancestor(height uint32) *blockNode {
	if height > n.height {
		return nil
	}
	for n != nil && n.height > height {
		n = n.parent
	}
	return n
}

// retargetWindow gathers what the next block of kind after n needs for its
// target: up to limit timestamps of kind, oldest first.
func (n *blockNode) retargetWindow(kind block.Kind, limit int, initial target.Target) consensus.Window {
	w := consensus.Window{
		Current: initial,
		Count:   n.countOf(kind),
	}
	last := n.lastOf(kind)
	if last == nil {
		return w
	}
	if t, err := target.FromCompact(last.bits); err == nil {
		w.Current = t
	}
	var ts []uint32
	for k := last; k != nil && len(ts) < limit; {
		ts = append(ts, k.timestamp)
		if k.parent == nil {
			break
		}
		k = k.parent.lastOf(kind)
	}
	// Oldest first.
	for i, j := 0, len(ts)-1; i < j; i, j = i+1, j-1 {
		ts[i], ts[j] = ts[j], ts[i]
	}
	w.Timestamps = ts
	return w
}

// medianTime returns the median timestamp of n and up to ten of its
// ancestors.
func (n *blockNode) medianTime() uint32 {
	ts := make([]uint32, 0, consensus.MedianTimeBlocks)
	for k := n; k != nil && len(ts) < consensus.MedianTimeBlocks; k = k.parent {
		ts = append(ts, k.timestamp)
	}
	return consensus.MedianTime(ts)
}

// findFork returns the last common ancestor of a and b.
func findFork(a, b *blockNode) *blockNode {
	for a != nil && b != nil && a.height > b.height {
		a = a.parent
	}
	for a != nil && b != nil && b.height > a.height {
		b = b.parent
	}
	for a != nil && b != nil && a != b {
		a, b = a.parent, b.parent
	}
	if a == nil || b == nil {
		return nil
	}
	return a
}

// heavier reports whether a should replace b as tip: strictly more work.
// Equal work keeps b, the tip seen first.
func heavier(a, b *blockNode) bool {
	return a.work.Cmp(&b.work) > 0
}

// chainView is the active chain as a height-indexed slice.
type chainView struct {
	nodes []*blockNode
}

func (v *chainView) tip() *blockNode {
	if len(v.nodes) == 0 {
		return nil
	}
	return v.nodes[len(v.nodes)-1]
}

func (v *chainView) at(height uint32) *blockNode {
	if int(height) >= len(v.nodes) {
		return nil
	}
	return v.nodes[height]
}

func (v *chainView) contains(n *blockNode) bool {
	return n != nil && v.at(n.height) == n
}

// setTip makes the chain ending at n active.
func (v *chainView) setTip(n *blockNode) {
	if n == nil {
		v.nodes = nil
		return
	}
	needed := int(n.height) + 1
	if cap(v.nodes) < needed {
		grown := make([]*blockNode, needed, needed+needed/4)
		copy(grown, v.nodes)
		v.nodes = grown
	} else {
		v.nodes = v.nodes[:needed]
	}
	for k := n; k != nil && v.nodes[k.height] != k; k = k.parent {
		v.nodes[k.height] = k
	}
}
