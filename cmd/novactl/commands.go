package main

import (
	"bytes"
	"encoding/hex"
	"fmt"
	"os"
	"strings"

	"github.com/Klingon-tech/novanet/internal/chain"
	"github.com/Klingon-tech/novanet/internal/checkpoint"
	"github.com/Klingon-tech/novanet/internal/miner"
	"github.com/Klingon-tech/novanet/internal/node"
	"github.com/Klingon-tech/novanet/internal/storage"
	addr "github.com/Klingon-tech/novanet/pkg/address"
	"github.com/Klingon-tech/novanet/pkg/block"
	"github.com/Klingon-tech/novanet/pkg/crypto"
	"github.com/Klingon-tech/novanet/pkg/script"
	"github.com/Klingon-tech/novanet/pkg/types"
	"github.com/urfave/cli/v2"
)

func checkpointSign(c *cli.Context) error {
	hash, err := types.HexToHash(c.String("hash"))
	if err != nil {
		return fmt.Errorf("invalid hash: %w", err)
	}

	var keyHex []byte
	if path := c.String("key-file"); path != "" {
		keyHex, err = os.ReadFile(path)
	} else {
		keyHex, err = readPassword("Checkpoint private key (hex): ")
	}
	if err != nil {
		return fmt.Errorf("read key: %w", err)
	}
	key, err := crypto.PrivateKeyFromHex(strings.TrimSpace(string(keyHex)))
	if err != nil {
		return fmt.Errorf("parse key: %w", err)
	}
	defer key.Zero()

	cp, err := checkpoint.Sign(key, uint32(c.Uint("height")), hash)
	if err != nil {
		return err
	}

	// Refuse keys that do not match the configured checkpoint key.
	p, err := loadParams(c)
	if err != nil {
		return err
	}
	v, err := checkpoint.NewVerifier(p.CheckpointPublicKey)
	if err != nil {
		return err
	}
	if err := v.Verify(cp); err != nil {
		return fmt.Errorf("key does not match the %s checkpoint public key: %w", p.Name, err)
	}

	if out := c.String("out"); out != "" {
		if err := checkpoint.Save(out, cp); err != nil {
			return err
		}
		fmt.Fprintf(c.App.Writer, "Checkpoint %s written to %s\n", cp, out)
		return nil
	}
	fmt.Fprintln(c.App.Writer, hex.EncodeToString(cp.Serialize()))
	return nil
}

func checkpointVerify(c *cli.Context) error {
	if c.NArg() != 1 {
		return fmt.Errorf("usage: novactl checkpoint verify <file>")
	}
	cp, err := checkpoint.Load(c.Args().First())
	if err != nil {
		return err
	}
	p, err := loadParams(c)
	if err != nil {
		return err
	}
	v, err := checkpoint.NewVerifier(p.CheckpointPublicKey)
	if err != nil {
		return err
	}
	if err := v.Verify(cp); err != nil {
		return err
	}
	fmt.Fprintf(c.App.Writer, "Checkpoint %s: signature OK\n", cp)
	return nil
}

func genesis(c *cli.Context) error {
	p, err := loadParams(c)
	if err != nil {
		return err
	}
	g := block.CreateGenesisBlock(p)
	fmt.Fprintf(c.App.Writer, "Network:     %s\n", p.Name)
	fmt.Fprintf(c.App.Writer, "Hash:        %s\n", g.Hash())
	fmt.Fprintf(c.App.Writer, "Merkle root: %s\n", g.Header.MerkleRoot)
	fmt.Fprintf(c.App.Writer, "Time:        %d\n", g.Header.Timestamp)
	fmt.Fprintf(c.App.Writer, "Bits:        %08x\n", g.Header.Bits)

	if _, err := block.VerifyGenesis(p); err != nil {
		return err
	}
	fmt.Fprintln(c.App.Writer, "Genesis matches the configured hash")
	return nil
}

func address(c *cli.Context) error {
	if c.NArg() != 1 {
		return fmt.Errorf("usage: novactl address <pubkey-hex>")
	}
	pubKey, err := hex.DecodeString(c.Args().First())
	if err != nil {
		return fmt.Errorf("decode pubkey: %w", err)
	}
	if err := crypto.ParsePublicKey(pubKey); err != nil {
		return err
	}
	p, err := loadParams(c)
	if err != nil {
		return err
	}
	fmt.Fprintln(c.App.Writer, addr.FromPubKey(p.PubkeyPrefix, pubKey))
	return nil
}

func generate(c *cli.Context) error {
	count := c.Int("count")
	if count <= 0 {
		return fmt.Errorf("count must be positive")
	}
	spacing := c.Int64("spacing")
	if spacing <= 0 {
		return fmt.Errorf("spacing must be positive")
	}
	p, err := loadParams(c)
	if err != nil {
		return err
	}

	var pubKey []byte
	if s := c.String("pubkey"); s != "" {
		if pubKey, err = hex.DecodeString(s); err != nil {
			return fmt.Errorf("decode pubkey: %w", err)
		}
		if err := crypto.ParsePublicKey(pubKey); err != nil {
			return err
		}
	} else {
		key, err := crypto.GenerateKey()
		if err != nil {
			return err
		}
		pubKey = key.PublicKey()
		key.Zero()
	}

	ch, err := chain.New(p, storage.NewMemory(), chain.Options{})
	if err != nil {
		return err
	}
	if err := ch.InitFromGenesis(); err != nil {
		return err
	}
	m := miner.New(ch, script.PayToPubKey(pubKey), 0)

	var buf bytes.Buffer
	for i := 0; i < count; i++ {
		ts := ch.Snapshot().TipTime + uint32(spacing)
		blk, err := m.ProduceBlockAt(c.Context, ts, 0)
		if err != nil {
			return err
		}
		v, err := ch.ProcessBlock(blk)
		if err != nil {
			return err
		}
		if !v.Accepted() {
			return fmt.Errorf("generated block %d not accepted: %s", i+1, v)
		}
		if err := node.WriteBlock(&buf, p.MagicBytes, blk); err != nil {
			return err
		}
	}

	out := c.String("out")
	if err := os.WriteFile(out, buf.Bytes(), 0644); err != nil {
		return fmt.Errorf("write %s: %w", out, err)
	}
	s := ch.Snapshot()
	fmt.Fprintf(c.App.Writer, "Wrote %d blocks to %s (tip %s, supply %d)\n", count, out, s.TipHash, s.Supply)
	return nil
}
