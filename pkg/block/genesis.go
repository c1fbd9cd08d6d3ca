package block

import (
	"github.com/Klingon-tech/novanet/config"
	"github.com/Klingon-tech/novanet/internal/consensus/ruleerrors"
	"github.com/Klingon-tech/novanet/pkg/script"
	"github.com/Klingon-tech/novanet/pkg/target"
	"github.com/Klingon-tech/novanet/pkg/tx"
	"github.com/Klingon-tech/novanet/pkg/types"
	"github.com/pkg/errors"
)

// Genesis coinbase script numbers: the compact target of the first
// Bitcoin block and a fixed extra nonce, followed by the network's ident.
const (
	genesisScriptBits  = 486604799
	genesisScriptExtra = 9999
)

// CreateGenesisBlock builds the genesis block of a parameter set. Its
// coinbase has a single empty output, so genesis mints nothing.
func CreateGenesisBlock(p *config.Params) *Block {
	coinbase := &tx.Transaction{
		Version: 1,
		Time:    p.GenesisTxTime,
		Inputs: []tx.Input{{
			PrevOut: types.NullOutpoint(),
			ScriptSig: script.NewBuilder().
				AddInt64(genesisScriptBits).
				AddInt64(genesisScriptExtra).
				AddData([]byte(p.GenesisIdent)).
				Script(),
			Sequence: tx.SequenceFinal,
		}},
		Outputs: []tx.Output{{}},
	}

	txs := []*tx.Transaction{coinbase}
	header := &Header{
		Version:    p.GenesisVersion,
		PrevHash:   types.Hash{}, // Zero for genesis.
		MerkleRoot: ComputeMerkleRoot([]types.Hash{coinbase.Hash()}),
		Timestamp:  p.GenesisBlockTime,
		Bits:       p.PowInitialTarget.Compact(),
		Nonce:      p.GenesisNonce,
	}
	return NewBlock(header, txs)
}

// VerifyGenesis rebuilds the genesis block and checks that it reproduces
// the configured hash and meets its own proof-of-work target. A mismatch
// is a configuration error.
func VerifyGenesis(p *config.Params) (*Block, error) {
	g := CreateGenesisBlock(p)
	hash := g.Hash()
	if hash != p.GenesisHash {
		return nil, errors.Wrapf(ruleerrors.ErrConfigInvalid, "genesis hash %s does not match configured %s",
			hash, p.GenesisHash)
	}
	limit, err := g.Header.Target()
	if err != nil {
		return nil, errors.Wrapf(ruleerrors.ErrConfigInvalid, "genesis bits: %v", err)
	}
	if target.FromHash(hash).Cmp(limit) > 0 {
		return nil, errors.Wrapf(ruleerrors.ErrConfigInvalid, "genesis hash %s above its target %s", hash, limit)
	}
	return g, nil
}
