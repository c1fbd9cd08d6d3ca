package consensus

import (
	"github.com/Klingon-tech/novanet/config"
	"github.com/Klingon-tech/novanet/pkg/block"
	"github.com/Klingon-tech/novanet/pkg/target"
)

// Window is the history NextTarget needs for one block kind.
type Window struct {
	// Timestamps of the most recent blocks of the kind, oldest first. At
	// most Interval+1 entries are used.
	Timestamps []uint32
	// Current is the target of the most recent block of the kind.
	Current target.Target
	// Count is the number of blocks of the kind already on the chain.
	Count uint32
}

// TargetAdjuster computes the expected target of the next block of each
// kind. PoW and PoS targets retarget independently.
type TargetAdjuster struct {
	params *config.Params
}

// NewTargetAdjuster creates a TargetAdjuster for p.
func NewTargetAdjuster(p *config.Params) *TargetAdjuster {
	return &TargetAdjuster{params: p}
}

// Spacing returns the target block spacing in seconds for kind.
func (a *TargetAdjuster) Spacing(kind block.Kind) uint32 {
	if kind == block.KindPoS {
		return a.params.PosTargetSpacing
	}
	return a.params.PowTargetSpacing
}

// Interval returns the number of blocks of kind between retargets.
func (a *TargetAdjuster) Interval(kind block.Kind) uint32 {
	n := a.params.TargetTimespan / a.Spacing(kind)
	if n < 1 {
		n = 1
	}
	return n
}

// Bounds returns the min, initial and max targets of kind.
func (a *TargetAdjuster) Bounds(kind block.Kind) (lo, initial, hi target.Target) {
	if kind == block.KindPoS {
		return a.params.PosMin(), a.params.PosInitialTarget, a.params.PosMaxTarget
	}
	return a.params.PowMin(), a.params.PowInitialTarget, a.params.PowMaxTarget
}

// NextTarget returns the target the next block of kind must carry. The
// result is always a compact-normalized value inside the kind's bounds.
func (a *TargetAdjuster) NextTarget(kind block.Kind, w Window) target.Target {
	lo, initial, hi := a.Bounds(kind)

	ts := w.Timestamps
	if len(ts) < 2 {
		return initial.Normalize()
	}

	interval := a.Interval(kind)
	if w.Count%interval != 0 {
		return target.Clamp(w.Current, lo, hi).Normalize()
	}

	if uint32(len(ts)) > interval+1 {
		ts = ts[len(ts)-int(interval)-1:]
	}

	expected := uint64(len(ts)-1) * uint64(a.Spacing(kind))
	var actual uint64
	if last, first := ts[len(ts)-1], ts[0]; last > first {
		actual = uint64(last - first)
	}

	minSpan, maxSpan := expected/4, expected*4
	if minSpan == 0 {
		minSpan = 1
	}
	if actual < minSpan {
		actual = minSpan
	}
	if actual > maxSpan {
		actual = maxSpan
	}

	next := w.Current.MulDiv(actual, expected)
	return target.Clamp(next, lo, hi).Normalize()
}
