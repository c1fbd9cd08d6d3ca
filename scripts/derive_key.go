// derive_key.go prints the public key and per-network addresses for a
// hex-encoded private key file, creating the file with a fresh key when it
// does not exist. The public key goes into checkpoint_public_key of a
// params file.
//
// Usage: go run scripts/derive_key.go <keyfile>
package main

import (
	"encoding/hex"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"

	"github.com/Klingon-tech/novanet/config"
	"github.com/Klingon-tech/novanet/pkg/address"
	"github.com/Klingon-tech/novanet/pkg/crypto"
)

func main() {
	if len(os.Args) < 2 {
		fmt.Fprintln(os.Stderr, "usage: derive_key <keyfile>")
		os.Exit(1)
	}
	key, err := loadOrCreate(os.Args[1])
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	defer key.Zero()

	pub := key.PublicKey()
	fmt.Printf("pubkey=%s\n", hex.EncodeToString(pub))
	for _, p := range []*config.Params{config.MainnetParams(), config.RegtestParams()} {
		fmt.Printf("address.%s=%s\n", p.Name, address.FromPubKey(p.PubkeyPrefix, pub))
	}
}

func loadOrCreate(path string) (*crypto.PrivateKey, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		key, err := crypto.GenerateKey()
		if err != nil {
			return nil, err
		}
		if err := os.WriteFile(path, []byte(hex.EncodeToString(key.Serialize())+"\n"), 0600); err != nil {
			return nil, err
		}
		fmt.Fprintf(os.Stderr, "wrote new key to %s\n", path)
		return key, nil
	}
	if err != nil {
		return nil, err
	}
	return crypto.PrivateKeyFromHex(strings.TrimSpace(string(data)))
}
