package main

import (
	"bytes"
	"encoding/hex"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/Klingon-tech/novanet/config"
	"github.com/Klingon-tech/novanet/internal/log"
	"github.com/Klingon-tech/novanet/internal/node"
	addr "github.com/Klingon-tech/novanet/pkg/address"
	"github.com/Klingon-tech/novanet/pkg/block"
	"github.com/Klingon-tech/novanet/pkg/crypto"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

func init() {
	log.SetLogger(zerolog.Nop())
}

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	app := newApp()
	app.Writer = &out
	app.ErrWriter = &out
	err := app.Run(append([]string{"novactl"}, args...))
	return out.String(), err
}

func TestGenesis(t *testing.T) {
	out, err := run(t, "--regtest", "genesis")
	require.NoError(t, err)
	require.Contains(t, out, config.RegtestParams().GenesisHash.String())
	require.Contains(t, out, "matches")
}

func TestGenesis_Mismatch(t *testing.T) {
	p := config.RegtestParams()
	p.GenesisNonce++
	path := filepath.Join(t.TempDir(), "params.json")
	require.NoError(t, p.Save(path))

	_, err := run(t, "--params", path, "genesis")
	require.Error(t, err)
}

func TestAddress(t *testing.T) {
	key, err := crypto.GenerateKey()
	require.NoError(t, err)
	pub := key.PublicKey()

	out, err := run(t, "--regtest", "address", hex.EncodeToString(pub))
	require.NoError(t, err)

	got := strings.TrimSpace(out)
	hash, err := addr.DecodeWithPrefix(got, config.RegtestParams().PubkeyPrefix)
	require.NoError(t, err)
	require.Equal(t, crypto.Hash160(pub), hash)

	_, err = run(t, "address", "zz")
	require.Error(t, err)
}

func TestCheckpointSignVerify(t *testing.T) {
	dir := t.TempDir()
	key, err := crypto.GenerateKey()
	require.NoError(t, err)

	p := config.RegtestParams()
	p.CheckpointPublicKey = key.PublicKey()
	paramsPath := filepath.Join(dir, "params.yaml")
	require.NoError(t, p.Save(paramsPath))

	keyPath := filepath.Join(dir, "cp.key")
	require.NoError(t, os.WriteFile(keyPath, []byte(hex.EncodeToString(key.Serialize())+"\n"), 0600))

	cpPath := filepath.Join(dir, "cp.hex")
	hash := p.GenesisHash.String()
	_, err = run(t, "--params", paramsPath, "checkpoint", "sign",
		"--height", "0", "--hash", hash, "--key-file", keyPath, "--out", cpPath)
	require.NoError(t, err)

	out, err := run(t, "--params", paramsPath, "checkpoint", "verify", cpPath)
	require.NoError(t, err)
	require.Contains(t, out, "signature OK")

	// The built-in regtest key did not sign it.
	_, err = run(t, "--regtest", "checkpoint", "verify", cpPath)
	require.Error(t, err)
}

func TestCheckpointSign_WrongKey(t *testing.T) {
	dir := t.TempDir()
	key, err := crypto.GenerateKey()
	require.NoError(t, err)
	keyPath := filepath.Join(dir, "cp.key")
	require.NoError(t, os.WriteFile(keyPath, []byte(hex.EncodeToString(key.Serialize())), 0600))

	_, err = run(t, "--regtest", "checkpoint", "sign",
		"--height", "1", "--hash", config.RegtestParams().GenesisHash.String(), "--key-file", keyPath)
	require.Error(t, err)
}

func TestGenerate(t *testing.T) {
	out := filepath.Join(t.TempDir(), "blocks.dat")
	_, err := run(t, "--regtest", "generate", "--count", "3", "--out", out)
	require.NoError(t, err)

	f, err := os.Open(out)
	require.NoError(t, err)
	defer f.Close()

	p := config.RegtestParams()
	var blocks []*block.Block
	err = node.ReadBlocks(f, p.MagicBytes, p.MaxBlockSize, func(b *block.Block) error {
		blocks = append(blocks, b)
		return nil
	})
	require.NoError(t, err)
	require.Len(t, blocks, 3)
	require.Equal(t, p.GenesisHash, blocks[0].Header.PrevHash)
	require.Equal(t, blocks[1].Hash(), blocks[2].Header.PrevHash)
}
