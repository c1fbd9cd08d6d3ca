package ruleerrors

import (
	"fmt"
	"testing"

	"github.com/pkg/errors"
)

func TestWrappedRuleError(t *testing.T) {
	err := errors.Wrapf(ErrBadTimestamp, "time %d <= median %d", 10, 20)
	if !errors.Is(err, ErrBadTimestamp) {
		t.Fatal("TestWrappedRuleError: wrapped error should match ErrBadTimestamp")
	}
	if errors.Is(err, ErrBadProofOfWork) {
		t.Fatal("TestWrappedRuleError: wrapped error should not match ErrBadProofOfWork")
	}

	rule, ok := Extract(err)
	if !ok {
		t.Fatal("TestWrappedRuleError: Extract should find the rule")
	}
	if rule.Name() != "ErrBadTimestamp" {
		t.Fatalf("TestWrappedRuleError: Expected ErrBadTimestamp, found %s", rule.Name())
	}

	expected := "time 10 <= median 20: ErrBadTimestamp"
	if err.Error() != expected {
		t.Fatalf("TestWrappedRuleError: Expected %q, found %q", expected, err.Error())
	}
}

func TestExtract_ThroughFmtWrap(t *testing.T) {
	inner := errors.Wrap(ErrSupplyCapExceeded, "supply 5 + 3 > 7")
	outer := fmt.Errorf("block 42: %w", inner)

	rule, ok := Extract(outer)
	if !ok || rule != ErrSupplyCapExceeded {
		t.Fatalf("TestExtract_ThroughFmtWrap: Expected ErrSupplyCapExceeded, found %v (ok=%v)", rule, ok)
	}
}

func TestExtract_NonRuleError(t *testing.T) {
	if IsRuleError(errors.New("disk full")) {
		t.Fatal("TestExtract_NonRuleError: plain error should not be a rule error")
	}
	if IsRuleError(nil) {
		t.Fatal("TestExtract_NonRuleError: nil should not be a rule error")
	}
}

func TestSentinelsDistinct(t *testing.T) {
	all := []RuleError{
		ErrOversizeBlock, ErrTooManySigops, ErrTooManyOrphanTx, ErrBadTimestamp,
		ErrBadProofOfWork, ErrBadProofOfStake, ErrStakeNotMature, ErrImmatureCoinbaseSpend,
		ErrRewardMismatch, ErrSupplyCapExceeded, ErrCheckpointMismatch, ErrCheckpointConflict,
		ErrCheckpointRegression, ErrCheckpointUnknownBlock, ErrConfigInvalid, ErrDuplicateBlock,
		ErrOrphanBlock, ErrInvalidAncestor, ErrBadBlockStructure, ErrBadTransaction,
		ErrMissingInputs, ErrReorgTooDeep,
	}
	seen := make(map[string]bool)
	for _, r := range all {
		if seen[r.Name()] {
			t.Fatalf("TestSentinelsDistinct: duplicate rule name %s", r.Name())
		}
		seen[r.Name()] = true
	}
}
