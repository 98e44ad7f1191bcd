package main

import (
	"context"
	"fmt"
	"io"

	"github.com/brojonat/txconfirm/service/keys"
	solanago "github.com/gagliardetto/solana-go"
	"github.com/urfave/cli/v2"
)

func walletCommands() *cli.Command {
	return &cli.Command{
		Name:  "wallet",
		Usage: "Keypair and balance commands",
		Subcommands: []*cli.Command{
			walletNewCommand(),
			walletBalanceCommand(),
		},
	}
}

type walletOutput struct {
	Address     string `json:"address"`
	KeypairPath string `json:"keypair_path,omitempty"`
}

func walletNewCommand() *cli.Command {
	return &cli.Command{
		Name:  "new",
		Usage: "Generate a new keypair and print its address",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "outfile",
				Aliases: []string{"o"},
				Usage:   "Write the keypair as a solana-keygen JSON file",
			},
		},
		Action: func(c *cli.Context) error {
			key, err := keys.Generate()
			if err != nil {
				return err
			}

			out := walletOutput{Address: key.PublicKey().String()}
			if path := c.String("outfile"); path != "" {
				if err := keys.Save(path, key); err != nil {
					return err
				}
				out.KeypairPath = path
			}

			return output(c, out, func(w io.Writer) {
				fmt.Fprintf(w, "✓ Wallet created\n")
				fmt.Fprintf(w, "  Address: %s\n", out.Address)
				if out.KeypairPath != "" {
					fmt.Fprintf(w, "  Keypair: %s\n", out.KeypairPath)
				}
			})
		},
	}
}

type balanceOutput struct {
	Address  string  `json:"address"`
	Lamports uint64  `json:"lamports"`
	SOL      float64 `json:"sol"`
}

func walletBalanceCommand() *cli.Command {
	return &cli.Command{
		Name:      "balance",
		Usage:     "Show the lamport balance of an address",
		ArgsUsage: "ADDRESS",
		Action: func(c *cli.Context) error {
			address, err := addressArg(c)
			if err != nil {
				return err
			}

			lamports, err := getCluster(c).Balance(context.Background(), address)
			if err != nil {
				return err
			}

			out := balanceOutput{
				Address:  address.String(),
				Lamports: lamports,
				SOL:      float64(lamports) / float64(solanago.LAMPORTS_PER_SOL),
			}
			return output(c, out, func(w io.Writer) {
				fmt.Fprintf(w, "%s: %d lamports (%.9f SOL)\n", out.Address, out.Lamports, out.SOL)
			})
		},
	}
}

type airdropOutput struct {
	Address   string `json:"address"`
	Lamports  uint64 `json:"lamports"`
	Signature string `json:"signature"`
}

func airdropCommand() *cli.Command {
	return &cli.Command{
		Name:      "airdrop",
		Usage:     "Request lamports from the cluster faucet",
		ArgsUsage: "ADDRESS",
		Flags: []cli.Flag{
			&cli.Uint64Flag{
				Name:    "lamports",
				Aliases: []string{"l"},
				Usage:   "Amount to request",
				EnvVars: []string{"AIRDROP_LAMPORTS"},
				Value:   2 * solanago.LAMPORTS_PER_SOL,
			},
		},
		Action: func(c *cli.Context) error {
			address, err := addressArg(c)
			if err != nil {
				return err
			}
			lamports := c.Uint64("lamports")

			sig, err := getCluster(c).Airdrop(context.Background(), address, lamports)
			if err != nil {
				return err
			}

			out := airdropOutput{Address: address.String(), Lamports: lamports, Signature: sig.String()}
			return output(c, out, func(w io.Writer) {
				fmt.Fprintf(w, "✓ Airdrop requested\n")
				fmt.Fprintf(w, "  Address:   %s\n", out.Address)
				fmt.Fprintf(w, "  Lamports:  %d\n", out.Lamports)
				fmt.Fprintf(w, "  Signature: %s\n", out.Signature)
			})
		},
	}
}

func addressArg(c *cli.Context) (solanago.PublicKey, error) {
	if c.NArg() < 1 {
		return solanago.PublicKey{}, fmt.Errorf("address is required")
	}
	address, err := solanago.PublicKeyFromBase58(c.Args().Get(0))
	if err != nil {
		return solanago.PublicKey{}, fmt.Errorf("invalid address %q: %w", c.Args().Get(0), err)
	}
	return address, nil
}
