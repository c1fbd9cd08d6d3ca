package chain

import (
	"context"

	"github.com/Klingon-tech/novanet/pkg/block"
	"github.com/Klingon-tech/novanet/pkg/types"
	"github.com/looplab/fsm"
)

// Validation stages of a candidate block.
const (
	StageReceived            = "received"
	StageStructurallyChecked = "structurally_checked"
	StageContextuallyChecked = "contextually_checked"
	StageAccepted            = "accepted"
	StageRejected            = "rejected"
)

// Candidate events.
const (
	eventSanity  = "sanity"
	eventContext = "context"
	eventAccept  = "accept"
	eventReject  = "reject"
)

// candidate tracks one block through validation.
type candidate struct {
	blk  *block.Block
	hash types.Hash
	fsm  *fsm.FSM
	// stage is the last stage passed before a rejection.
	stage  string
	reason error
}

func newCandidate(blk *block.Block) *candidate {
	c := &candidate{blk: blk, stage: StageReceived}
	if blk != nil {
		c.hash = blk.Hash()
	}
	c.fsm = fsm.NewFSM(
		StageReceived,
		fsm.Events{
			{Name: eventSanity, Src: []string{StageReceived}, Dst: StageStructurallyChecked},
			{Name: eventContext, Src: []string{StageStructurallyChecked}, Dst: StageContextuallyChecked},
			{Name: eventAccept, Src: []string{StageContextuallyChecked}, Dst: StageAccepted},
			{
				Name: eventReject,
				Src:  []string{StageReceived, StageStructurallyChecked, StageContextuallyChecked},
				Dst:  StageRejected,
			},
		},
		fsm.Callbacks{},
	)
	return c
}

// advance moves the candidate through event. Transitions are only fired
// in the order above, so an error means a programming mistake.
func (c *candidate) advance(event string) {
	if err := c.fsm.Event(context.Background(), event); err != nil {
		panic("chain: candidate transition " + event + " from " + c.fsm.Current() + ": " + err.Error())
	}
	if event != eventReject {
		c.stage = c.fsm.Current()
	}
}

// reject records reason and moves the candidate to the rejected stage.
func (c *candidate) reject(reason error) {
	c.reason = reason
	if c.fsm.Can(eventReject) {
		c.advance(eventReject)
	}
}

func (c *candidate) rejected() bool {
	return c.fsm.Current() == StageRejected
}

func (c *candidate) current() string {
	return c.fsm.Current()
}
