package main

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/brojonat/txconfirm/service/solana"
	"github.com/brojonat/txconfirm/service/txn"
	solanago "github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
	"github.com/urfave/cli/v2"
)

type statusOutput struct {
	txn.Observation
	Terminal    bool                      `json:"terminal"`
	Transaction *solana.LandedTransaction `json:"transaction,omitempty"`
}

func statusCommand() *cli.Command {
	return &cli.Command{
		Name:      "status",
		Usage:     "Poll the cluster once for a signature's status",
		ArgsUsage: "SIGNATURE",
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:    "logs",
				Aliases: []string{"l"},
				Usage:   "Also fetch the landed transaction with its program logs",
			},
		},
		Action: func(c *cli.Context) error {
			if c.NArg() < 1 {
				return fmt.Errorf("signature is required")
			}
			sig, err := solanago.SignatureFromBase58(c.Args().Get(0))
			if err != nil {
				return fmt.Errorf("invalid signature: %w", err)
			}

			ctx := context.Background()
			cluster := getCluster(c)
			obs, err := txn.NewTracker(cluster, cliLogger(c)).Status(ctx, sig)
			if err != nil {
				return err
			}

			out := statusOutput{Observation: obs, Terminal: obs.Level.Terminal()}
			if c.Bool("logs") && obs.Level != txn.Unobserved {
				landed, err := cluster.Transaction(ctx, sig)
				switch {
				case err == nil:
					out.Transaction = landed
				case errors.Is(err, rpc.ErrNotFound):
					// not yet queryable at confirmed
				default:
					return err
				}
			}

			return output(c, out, func(w io.Writer) { printStatus(w, out) })
		},
	}
}

func printStatus(w io.Writer, out statusOutput) {
	fmt.Fprintf(w, "Signature: %s\n", out.Signature)
	fmt.Fprintf(w, "Level:     %s", out.Level)
	if out.Terminal {
		fmt.Fprintf(w, " (terminal)")
	}
	fmt.Fprintln(w)
	if out.Slot > 0 {
		fmt.Fprintf(w, "Slot:      %d\n", out.Slot)
	}
	if out.Confirmations != nil {
		fmt.Fprintf(w, "Confirmations: %d\n", *out.Confirmations)
	}
	if out.Err != nil {
		fmt.Fprintf(w, "Error:     %s\n", solana.FormatExecutionError(out.Err))
	}
	if out.Transaction == nil {
		return
	}
	fmt.Fprintf(w, "Fee:       %d lamports\n", out.Transaction.Fee)
	if out.Transaction.ComputeUnits != nil {
		fmt.Fprintf(w, "Compute:   %d units\n", *out.Transaction.ComputeUnits)
	}
	if len(out.Transaction.Logs) > 0 {
		fmt.Fprintln(w, "Logs:")
		for _, line := range out.Transaction.Logs {
			fmt.Fprintf(w, "  %s\n", line)
		}
	}
}
