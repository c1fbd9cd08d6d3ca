package config

import (
	"fmt"

	"github.com/Klingon-tech/novanet/internal/consensus/ruleerrors"
	"github.com/Klingon-tech/novanet/pkg/crypto"
	"github.com/Klingon-tech/novanet/pkg/target"
	"github.com/pkg/errors"
)

// maxGenesisIdent keeps the genesis coinbase script within the coinbase
// script size limit (9 bytes of pushes precede the ident).
const maxGenesisIdent = 75

// minBlockSize keeps every limit derived from max_block_size positive.
const minBlockSize = 100

// Validate checks runtime node config for obvious operator mistakes.
func Validate(cfg *Config) error {
	if cfg == nil {
		return fmt.Errorf("config is nil")
	}
	if cfg.Network != Mainnet && cfg.Network != Regtest {
		return fmt.Errorf("network must be %q or %q", Mainnet, Regtest)
	}
	switch cfg.DB.Backend {
	case BackendBadger, BackendBolt, BackendMemory:
	default:
		return fmt.Errorf("db.backend must be %q, %q or %q", BackendBadger, BackendBolt, BackendMemory)
	}
	if cfg.Workers < 0 {
		return fmt.Errorf("workers must not be negative")
	}
	if cfg.DB.CacheBlocks < 0 {
		return fmt.Errorf("db.cacheblocks must not be negative")
	}
	return nil
}

// Validate checks that the parameter set is internally consistent. Any
// failure wraps ruleerrors.ErrConfigInvalid and must stop the node.
func (p *Params) Validate() error {
	invalid := func(format string, args ...any) error {
		return errors.Wrapf(ruleerrors.ErrConfigInvalid, format, args...)
	}

	if p.StakeMinAge > p.StakeMaxAge {
		return invalid("stake_min_age (%d) exceeds stake_max_age (%d)", p.StakeMinAge, p.StakeMaxAge)
	}
	// The sigop and in-block spend limits derive from the block size.
	if p.MaxBlockSize < minBlockSize {
		return invalid("max_block_size (%d) below minimum %d", p.MaxBlockSize, minBlockSize)
	}
	if len(p.CheckpointPublicKey) == 0 {
		return invalid("checkpoint_public_key is required")
	}
	if err := crypto.ParsePublicKey(p.CheckpointPublicKey); err != nil {
		return invalid("checkpoint_public_key: %v", err)
	}

	if p.PowTargetSpacing == 0 || p.PosTargetSpacing == 0 {
		return invalid("target spacings must be positive")
	}
	if p.TargetTimespan < p.PowTargetSpacing || p.TargetTimespan < p.PosTargetSpacing {
		return invalid("target_timespan (%d) must cover at least one block spacing", p.TargetTimespan)
	}
	if p.StakeCoinStep == 0 || p.StakeAgeStep == 0 {
		return invalid("stake_coin_step and stake_age_step must be positive")
	}
	if p.CoinbaseMaturity < 1 {
		return invalid("coinbase_maturity must be at least 1")
	}

	if err := checkTargets("pow", p.PowMin(), p.PowInitialTarget, p.PowMaxTarget); err != nil {
		return invalid("%v", err)
	}
	if err := checkTargets("pos", p.PosMin(), p.PosInitialTarget, p.PosMaxTarget); err != nil {
		return invalid("%v", err)
	}

	if p.MaxMoney == 0 {
		return invalid("max_money must be positive")
	}
	if p.CoinPremine > p.MaxMoney {
		return invalid("coin_premine (%d) exceeds max_money (%d)", p.CoinPremine, p.MaxMoney)
	}
	if p.PowBlockReward > p.MaxMoney {
		return invalid("pow_block_reward (%d) exceeds max_money (%d)", p.PowBlockReward, p.MaxMoney)
	}

	if p.PubkeyPrefix == p.ScriptPrefix || p.PubkeyPrefix == p.PrivkeyPrefix || p.ScriptPrefix == p.PrivkeyPrefix {
		return invalid("address prefixes must be distinct")
	}
	if p.GenesisIdent == "" || len(p.GenesisIdent) > maxGenesisIdent {
		return invalid("genesis_ident must be 1..%d bytes", maxGenesisIdent)
	}
	if p.GenesisHash.IsZero() {
		return invalid("genesis_hash is required")
	}
	return nil
}

func checkTargets(kind string, lo, initial, hi target.Target) error {
	if hi.IsZero() || initial.IsZero() {
		return fmt.Errorf("%s targets must be positive", kind)
	}
	if lo.Cmp(initial) > 0 || initial.Cmp(hi) > 0 {
		return fmt.Errorf("%s targets must satisfy min <= initial <= max", kind)
	}
	// A min target that is not exactly representable in compact form could
	// be undercut by compact truncation.
	if lo.Normalize().Cmp(lo) != 0 {
		return fmt.Errorf("%s min target %s is not exactly representable in compact form", kind, lo)
	}
	return nil
}
