// Package ruleerrors defines the consensus rule violations a candidate
// block, checkpoint or parameter set can be rejected for.
//
// Rule checks wrap one of the sentinel values with context using
// github.com/pkg/errors, which also attaches a stack:
//
//	return errors.Wrapf(ruleerrors.ErrBadTimestamp, "time %d <= median %d", ts, median)
//
// Callers classify with errors.Is against the sentinels, or extract the
// sentinel itself with errors.As into a RuleError.
package ruleerrors

import (
	"github.com/pkg/errors"
)

// These values identify a specific RuleError.
var (
	// ErrOversizeBlock indicates the serialized block exceeds the maximum
	// block size.
	ErrOversizeBlock = newRuleError("ErrOversizeBlock")

	// ErrTooManySigops indicates the block's legacy signature operation
	// count exceeds the maximum.
	ErrTooManySigops = newRuleError("ErrTooManySigops")

	// ErrTooManyOrphanTx indicates the block carries more transactions
	// spending outputs of the same block than allowed.
	ErrTooManyOrphanTx = newRuleError("ErrTooManyOrphanTx")

	// ErrBadTimestamp indicates the block time is not after the median of
	// its recent ancestors, too far in the future, or inconsistent with
	// its transactions.
	ErrBadTimestamp = newRuleError("ErrBadTimestamp")

	// ErrBadProofOfWork indicates the header hash does not meet its target
	// or the target is not the expected one.
	ErrBadProofOfWork = newRuleError("ErrBadProofOfWork")

	// ErrBadProofOfStake indicates the stake kernel does not meet the
	// weighted target, or the stake target is not the expected one.
	ErrBadProofOfStake = newRuleError("ErrBadProofOfStake")

	// ErrStakeNotMature indicates the staked output is younger than the
	// minimum stake age.
	ErrStakeNotMature = newRuleError("ErrStakeNotMature")

	// ErrImmatureCoinbaseSpend indicates a coinbase or coinstake output is
	// spent before it reached maturity.
	ErrImmatureCoinbaseSpend = newRuleError("ErrImmatureCoinbaseSpend")

	// ErrRewardMismatch indicates the block mints more than its expected
	// reward plus collected fees.
	ErrRewardMismatch = newRuleError("ErrRewardMismatch")

	// ErrSupplyCapExceeded indicates accepting the block would push the
	// money supply above the cap.
	ErrSupplyCapExceeded = newRuleError("ErrSupplyCapExceeded")

	// ErrCheckpointMismatch indicates a checkpoint signature does not
	// verify against the configured key.
	ErrCheckpointMismatch = newRuleError("ErrCheckpointMismatch")

	// ErrCheckpointConflict indicates a block or reorganization would
	// replace history at or below the last accepted checkpoint.
	ErrCheckpointConflict = newRuleError("ErrCheckpointConflict")

	// ErrCheckpointRegression indicates a checkpoint below the current
	// checkpoint height.
	ErrCheckpointRegression = newRuleError("ErrCheckpointRegression")

	// ErrCheckpointUnknownBlock indicates a checkpoint naming a block that
	// is not on the active chain at that height.
	ErrCheckpointUnknownBlock = newRuleError("ErrCheckpointUnknownBlock")

	// ErrConfigInvalid indicates inconsistent consensus parameters, or a
	// genesis block that does not reproduce the configured hash.
	ErrConfigInvalid = newRuleError("ErrConfigInvalid")

	// ErrDuplicateBlock indicates a block with the same hash is already
	// known.
	ErrDuplicateBlock = newRuleError("ErrDuplicateBlock")

	// ErrOrphanBlock indicates the block's parent is unknown.
	ErrOrphanBlock = newRuleError("ErrOrphanBlock")

	// ErrInvalidAncestor indicates the block builds on a block that was
	// already found invalid.
	ErrInvalidAncestor = newRuleError("ErrInvalidAncestor")

	// ErrBadBlockStructure indicates a malformed block: no transactions,
	// misplaced coinbase or coinstake, or a merkle root mismatch.
	ErrBadBlockStructure = newRuleError("ErrBadBlockStructure")

	// ErrBadTransaction indicates a structurally invalid transaction or a
	// failing input script.
	ErrBadTransaction = newRuleError("ErrBadTransaction")

	// ErrMissingInputs indicates a transaction spends an output that does
	// not exist or was already spent.
	ErrMissingInputs = newRuleError("ErrMissingInputs")

	// ErrReorgTooDeep indicates the fork point lies deeper than the
	// maximum reorganization depth.
	ErrReorgTooDeep = newRuleError("ErrReorgTooDeep")
)

// RuleError identifies a rule violation. It is used to indicate that
// processing of a block or checkpoint failed due to one of the many
// validation rules.
type RuleError struct {
	message string
	inner   error
}

// Error satisfies the error interface and prints human-readable errors.
func (e RuleError) Error() string {
	if e.inner != nil {
		return e.message + ": " + e.inner.Error()
	}
	return e.message
}

// Unwrap satisfies the errors.Unwrap interface
func (e RuleError) Unwrap() error {
	return e.inner
}

// Cause satisfies the github.com/pkg/errors.Cause interface
func (e RuleError) Cause() error {
	return e.inner
}

// Name returns the identifier of the rule, e.g. "ErrBadTimestamp".
func (e RuleError) Name() string {
	return e.message
}

func newRuleError(message string) RuleError {
	return RuleError{message: message, inner: nil}
}

// Extract returns the rule an error was raised for, if any.
func Extract(err error) (RuleError, bool) {
	var r RuleError
	if !errors.As(err, &r) {
		return RuleError{}, false
	}
	return r, true
}

// IsRuleError reports whether err carries a rule violation.
func IsRuleError(err error) bool {
	_, ok := Extract(err)
	return ok
}
