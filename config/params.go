package config

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"

	"github.com/Klingon-tech/novanet/pkg/target"
	"github.com/Klingon-tech/novanet/pkg/types"
	"gopkg.in/yaml.v3"
)

// =============================================================================
// Protocol Rules (immutable once the chain is running)
// These MUST match across all nodes or consensus breaks.
// =============================================================================

// Denomination constants. All on-chain values are in base units.
const (
	Coin uint64 = 100_000_000 // 10^8 base units per coin
	Cent uint64 = 1_000_000   // 10^6
)

// Time units, in seconds.
const (
	Minute uint32 = 60
	Hour          = 60 * Minute
	Day           = 24 * Hour
)

// Magic is the four-byte network identifier put in front of every packet.
type Magic [4]byte

// MarshalText encodes the magic as hex.
func (m Magic) MarshalText() ([]byte, error) {
	return []byte(hex.EncodeToString(m[:])), nil
}

// UnmarshalText decodes a hex magic.
func (m *Magic) UnmarshalText(text []byte) error {
	b, err := hex.DecodeString(string(text))
	if err != nil {
		return fmt.Errorf("invalid magic hex: %w", err)
	}
	if len(b) != len(m) {
		return fmt.Errorf("magic must be %d bytes, got %d", len(m), len(b))
	}
	copy(m[:], b)
	return nil
}

// HexBytes is a byte string written as hex in parameter files.
type HexBytes []byte

// MarshalText encodes the bytes as hex.
func (h HexBytes) MarshalText() ([]byte, error) {
	return []byte(hex.EncodeToString(h)), nil
}

// UnmarshalText decodes hex.
func (h *HexBytes) UnmarshalText(text []byte) error {
	b, err := hex.DecodeString(strings.TrimSpace(string(text)))
	if err != nil {
		return fmt.Errorf("invalid hex: %w", err)
	}
	*h = b
	return nil
}

// Params holds the consensus parameters of a network. A Params value is
// validated once at startup and treated as read-only afterwards; it is
// shared by pointer.
type Params struct {
	Name string `json:"name" yaml:"name"`

	// Network identity.
	CoinPort      uint16 `json:"coin_port" yaml:"coin_port"`
	RPCPort       uint16 `json:"rpc_port" yaml:"rpc_port"`
	MagicBytes    Magic  `json:"magic_bytes" yaml:"magic_bytes"`
	PubkeyPrefix  byte   `json:"pubkey_prefix" yaml:"pubkey_prefix"`
	PrivkeyPrefix byte   `json:"privkey_prefix" yaml:"privkey_prefix"`
	ScriptPrefix  byte   `json:"script_prefix" yaml:"script_prefix"`

	// Genesis block.
	GenesisHash      types.Hash `json:"genesis_hash" yaml:"genesis_hash"`
	GenesisIdent     string     `json:"genesis_ident" yaml:"genesis_ident"`
	GenesisTxTime    uint32     `json:"genesis_tx_time" yaml:"genesis_tx_time"`
	GenesisBlockTime uint32     `json:"genesis_block_time" yaml:"genesis_block_time"`
	GenesisNonce     uint32     `json:"genesis_nonce" yaml:"genesis_nonce"`
	GenesisVersion   uint32     `json:"genesis_version" yaml:"genesis_version"`

	// Money.
	CoinbaseMaturity uint32 `json:"coinbase_maturity" yaml:"coinbase_maturity"`
	MaxMoney         uint64 `json:"max_money" yaml:"max_money"`
	CoinPremine      uint64 `json:"coin_premine" yaml:"coin_premine"`
	MinTxFees        uint64 `json:"min_tx_fees" yaml:"min_tx_fees"`
	MinRelayTxFees   uint64 `json:"min_relay_tx_fees" yaml:"min_relay_tx_fees"`
	PowBlockReward   uint64 `json:"pow_block_reward" yaml:"pow_block_reward"`

	// Blocks.
	MaxClockDrift uint32 `json:"max_clock_drift" yaml:"max_clock_drift"`
	MaxBlockSize  uint32 `json:"max_block_size" yaml:"max_block_size"`
	PowMaxBlock   uint32 `json:"pow_max_block" yaml:"pow_max_block"`

	// Targets. Min targets bound retargeting from below and default to 1.
	PowInitialTarget target.Target `json:"pow_initial_target" yaml:"pow_initial_target"`
	PosInitialTarget target.Target `json:"pos_initial_target" yaml:"pos_initial_target"`
	PowMaxTarget     target.Target `json:"pow_max_target" yaml:"pow_max_target"`
	PosMaxTarget     target.Target `json:"pos_max_target" yaml:"pos_max_target"`
	PowMinTarget     target.Target `json:"pow_min_target,omitempty" yaml:"pow_min_target,omitempty"`
	PosMinTarget     target.Target `json:"pos_min_target,omitempty" yaml:"pos_min_target,omitempty"`
	PowTargetSpacing uint32        `json:"pow_target_spacing" yaml:"pow_target_spacing"`
	PosTargetSpacing uint32        `json:"pos_target_spacing" yaml:"pos_target_spacing"`
	TargetTimespan   uint32        `json:"target_timespan" yaml:"target_timespan"`

	// Stake.
	StakeMinAge   uint32 `json:"stake_min_age" yaml:"stake_min_age"`
	StakeMaxAge   uint32 `json:"stake_max_age" yaml:"stake_max_age"`
	StakeCoinStep uint64 `json:"stake_coin_step" yaml:"stake_coin_step"`
	StakeAgeStep  uint32 `json:"stake_age_step" yaml:"stake_age_step"`

	// Checkpoints. Only the public key is ever part of the parameters;
	// the signing key stays with the offline signer.
	CheckpointPublicKey HexBytes `json:"checkpoint_public_key" yaml:"checkpoint_public_key"`
}

// MinTxoutAmount is the smallest value a non-empty output may carry.
func (p *Params) MinTxoutAmount() uint64 { return p.MinTxFees }

// MaxBlockSizeGen is the size limit block producers aim for.
func (p *Params) MaxBlockSizeGen() uint32 { return p.MaxBlockSize / 2 }

// MaxBlockSigops is the legacy sigop limit per block.
func (p *Params) MaxBlockSigops() uint32 { return p.MaxBlockSize / 50 }

// MaxBlockOrphanTx is the limit on transactions spending outputs created
// earlier in the same block.
func (p *Params) MaxBlockOrphanTx() uint32 { return p.MaxBlockSize / 100 }

// PowMin returns the PoW min target, defaulting to 1.
func (p *Params) PowMin() target.Target {
	if p.PowMinTarget.IsZero() {
		return target.FromUint64(1)
	}
	return p.PowMinTarget
}

// PosMin returns the PoS min target, defaulting to 1.
func (p *Params) PosMin() target.Target {
	if p.PosMinTarget.IsZero() {
		return target.FromUint64(1)
	}
	return p.PosMinTarget
}

// Copy returns a deep copy, for tests and tools that derive a variant.
func (p *Params) Copy() *Params {
	cp := *p
	cp.CheckpointPublicKey = append(HexBytes(nil), p.CheckpointPublicKey...)
	return &cp
}

// =============================================================================
// Pre-defined parameter sets
// =============================================================================

// MainnetCheckpointPublicKey is the uncompressed key mainnet checkpoints
// are signed with.
const MainnetCheckpointPublicKey = "042f43a2e1e8185eb0f25380f4caa6de24d6a638ceb01374450207c9d25bfa586a20cc1295c686d20e090b324054aa4b93b405c9fea50df8bca0b70cca6b6758fc"

// MainnetParams returns the mainnet consensus parameters.
func MainnetParams() *Params {
	pubKey, _ := hex.DecodeString(MainnetCheckpointPublicKey)
	limit := target.PowLimit(20)

	return &Params{
		Name:          string(Mainnet),
		CoinPort:      7742,
		RPCPort:       7743,
		MagicBytes:    Magic{0xe5, 0xcf, 0x81, 0xde},
		PubkeyPrefix:  53,  // "N"
		PrivkeyPrefix: 52,  // "M"
		ScriptPrefix:  112, // "n"

		GenesisHash:      types.MustHexToHash("000009b4cc9d78dd3d3da01579414ddeb90ffe1d8fdf1fc232f16e174aef8724"),
		GenesisIdent:     "Matonis 07-AUG-2012 Parallel Currencies And The Roadmap To Monetary Freedom",
		GenesisTxTime:    1345083810,
		GenesisBlockTime: 1345084287,
		GenesisNonce:     2179786789,
		GenesisVersion:   1,

		CoinbaseMaturity: 1,
		// 500,000,000,000 coins do not fit 64 bits of base units; the cap
		// saturates at the largest representable amount.
		MaxMoney:       math.MaxUint64,
		CoinPremine:    2_000_000_000 * Coin,
		MinTxFees:      Cent,
		MinRelayTxFees: Cent,
		PowBlockReward: 1000 * Coin,

		MaxClockDrift: 2 * Hour,
		MaxBlockSize:  1_000_000,
		PowMaxBlock:   math.MaxUint32,

		PowInitialTarget: limit,
		PosInitialTarget: limit,
		PowMaxTarget:     limit,
		PosMaxTarget:     limit,
		PowTargetSpacing: 1 * Minute,
		PosTargetSpacing: 1 * Minute,
		TargetTimespan:   10 * Minute,

		StakeMinAge:   3 * Minute,
		StakeMaxAge:   3 * Minute,
		StakeCoinStep: 1 * Coin,
		StakeAgeStep:  1 * Day,

		CheckpointPublicKey: pubKey,
	}
}

// RegtestParams returns parameters for local testing: trivially easy
// targets, a short stake age window and its own genesis. The checkpoint
// key is the mainnet one; tools that exercise checkpoints substitute
// their own.
func RegtestParams() *Params {
	p := MainnetParams()
	limit := target.PowLimit(1)

	p.Name = string(Regtest)
	p.CoinPort = 17742
	p.RPCPort = 17743
	p.MagicBytes = Magic{0xfa, 0xbf, 0xb5, 0xda}
	p.PubkeyPrefix = 111
	p.PrivkeyPrefix = 239
	p.ScriptPrefix = 196

	p.GenesisHash = types.MustHexToHash("02fe5428dbb728fcd0690415cb24f191681a584b6cd4eb76399235a5d04f4939")
	p.GenesisIdent = "novanet regtest genesis"
	p.GenesisNonce = 1

	p.MaxMoney = 21_000_000 * Coin
	p.CoinPremine = 0
	p.PowBlockReward = 50 * Coin

	p.PowInitialTarget = limit
	p.PosInitialTarget = limit
	p.PowMaxTarget = limit
	p.PosMaxTarget = limit

	p.StakeMinAge = 1 * Hour
	p.StakeMaxAge = 30 * Day
	return p
}

// ParamsFor returns the built-in parameters for a network.
func ParamsFor(network NetworkType) *Params {
	switch network {
	case Regtest:
		return RegtestParams()
	default:
		return MainnetParams()
	}
}

// =============================================================================
// Parameter file I/O
// =============================================================================

// LoadParams reads a parameter set from a JSON or YAML file (chosen by
// extension) and validates it.
func LoadParams(path string) (*Params, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading params file: %w", err)
	}

	var p Params
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, &p)
	default:
		err = json.Unmarshal(data, &p)
	}
	if err != nil {
		return nil, fmt.Errorf("parsing params file: %w", err)
	}

	if err := p.Validate(); err != nil {
		return nil, err
	}
	return &p, nil
}

// Save writes the parameters to a JSON or YAML file (chosen by extension).
func (p *Params) Save(path string) error {
	var (
		data []byte
		err  error
	)
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		data, err = yaml.Marshal(p)
	default:
		data, err = json.MarshalIndent(p, "", "  ")
	}
	if err != nil {
		return fmt.Errorf("encoding params: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("writing params file: %w", err)
	}
	return nil
}
