package chain

import (
	"fmt"

	"github.com/Klingon-tech/novanet/internal/consensus/ruleerrors"
	"github.com/Klingon-tech/novanet/pkg/types"
)

// Status is the outcome of processing a block.
type Status uint8

const (
	// StatusAccepted means the block is part of the active chain.
	StatusAccepted Status = iota
	// StatusSideChain means the block is valid so far and stored, but its
	// branch carries less work than the active chain.
	StatusSideChain
	// StatusRejected means the block broke a rule; Reason says which.
	StatusRejected
)

// String returns the status name used in logs and metrics labels.
func (s Status) String() string {
	switch s {
	case StatusAccepted:
		return "accepted"
	case StatusSideChain:
		return "sidechain"
	case StatusRejected:
		return "rejected"
	default:
		return fmt.Sprintf("status(%d)", uint8(s))
	}
}

// Verdict is the result of processing one block.
type Verdict struct {
	Hash   types.Hash
	Height uint32
	Status Status
	// Reason wraps a ruleerrors sentinel when Status is StatusRejected.
	Reason error
	// Stage is the last validation stage the block passed.
	Stage string
	// ReorgDepth is the number of blocks disconnected to accept the block.
	ReorgDepth int
}

// Code returns the name of the violated rule, e.g. "ErrBadTimestamp", or
// "" for a block that was not rejected.
func (v Verdict) Code() string {
	if r, ok := ruleerrors.Extract(v.Reason); ok {
		return r.Name()
	}
	return ""
}

// Accepted reports whether the block joined the active chain.
func (v Verdict) Accepted() bool {
	return v.Status == StatusAccepted
}

func (v Verdict) String() string {
	if v.Status == StatusRejected {
		return fmt.Sprintf("%s %s: %v", v.Hash, v.Status, v.Reason)
	}
	return fmt.Sprintf("%s %s at %d", v.Hash, v.Status, v.Height)
}
