// novactl is the operator tool for novanet: it signs and checks
// checkpoints, verifies genesis parameters, encodes addresses and writes
// regtest block files for novad --import.
package main

import (
	"fmt"
	"os"
	"syscall"

	"github.com/Klingon-tech/novanet/config"
	"github.com/urfave/cli/v2"
	"golang.org/x/term"
)

func main() {
	if err := newApp().Run(os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func newApp() *cli.App {
	return &cli.App{
		Name:    "novactl",
		Usage:   "Novanet operator tool",
		Version: config.Version,
		Flags: []cli.Flag{
			&cli.BoolFlag{Name: "regtest", Usage: "Use the regression test parameters"},
			&cli.StringFlag{Name: "params", Usage: "Consensus parameters file (JSON or YAML)"},
		},
		Commands: []*cli.Command{
			{
				Name:  "checkpoint",
				Usage: "Sign and verify checkpoints",
				Subcommands: []*cli.Command{
					{
						Name:   "sign",
						Usage:  "Sign a checkpoint with the checkpoint master key",
						Action: checkpointSign,
						Flags: []cli.Flag{
							&cli.UintFlag{Name: "height", Usage: "Block height", Required: true},
							&cli.StringFlag{Name: "hash", Usage: "Block hash (hex)", Required: true},
							&cli.StringFlag{Name: "key-file", Usage: "File holding the hex private key; prompts when empty"},
							&cli.StringFlag{Name: "out", Usage: "Write the checkpoint to this file instead of stdout"},
						},
					},
					{
						Name:      "verify",
						Usage:     "Verify a checkpoint file against the configured public key",
						ArgsUsage: "<file>",
						Action:    checkpointVerify,
					},
				},
			},
			{
				Name:   "genesis",
				Usage:  "Rebuild the genesis block and check it against the parameters",
				Action: genesis,
			},
			{
				Name:      "address",
				Usage:     "Encode a public key as a pay-to-pubkey-hash address",
				ArgsUsage: "<pubkey-hex>",
				Action:    address,
			},
			{
				Name:   "generate",
				Usage:  "Mine blocks on a scratch chain and write them as an import file",
				Action: generate,
				Flags: []cli.Flag{
					&cli.IntFlag{Name: "count", Usage: "Number of blocks", Value: 10},
					&cli.StringFlag{Name: "out", Usage: "Output file", Required: true},
					&cli.StringFlag{Name: "pubkey", Usage: "Pay coinbases to this public key (hex); random when empty"},
					&cli.Int64Flag{Name: "spacing", Usage: "Seconds between block timestamps", Value: 60},
				},
			},
		},
	}
}

// loadParams returns the parameters selected by the global flags.
func loadParams(c *cli.Context) (*config.Params, error) {
	if path := c.String("params"); path != "" {
		return config.LoadParams(path)
	}
	network := config.Mainnet
	if c.Bool("regtest") {
		network = config.Regtest
	}
	p := config.ParamsFor(network)
	if err := p.Validate(); err != nil {
		return nil, err
	}
	return p, nil
}

// readPassword prompts on stderr and reads a line without echo.
func readPassword(prompt string) ([]byte, error) {
	fmt.Fprint(os.Stderr, prompt)
	password, err := term.ReadPassword(int(syscall.Stdin))
	fmt.Fprintln(os.Stderr) // newline after hidden input
	if err != nil {
		return nil, err
	}
	return password, nil
}
