package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os/signal"
	"syscall"

	"github.com/brojonat/txconfirm/service/config"
	"github.com/brojonat/txconfirm/service/harness"
	"github.com/brojonat/txconfirm/service/keys"
	"github.com/brojonat/txconfirm/service/program"
	"github.com/brojonat/txconfirm/service/solana"
	"github.com/brojonat/txconfirm/service/txn"
	"github.com/urfave/cli/v2"
)

// Exit codes for program initialize.
const (
	exitExecutionFailed = 1
	exitTimedOut        = 2
)

func programCommands() *cli.Command {
	return &cli.Command{
		Name:  "program",
		Usage: "Workspace program commands",
		Subcommands: []*cli.Command{
			programListCommand(),
			programCheckCommand(),
			programInitializeCommand(),
		},
	}
}

func programListCommand() *cli.Command {
	return &cli.Command{
		Name:    "list",
		Aliases: []string{"ls"},
		Usage:   "List the workspace programs",
		Action: func(c *cli.Context) error {
			programs := program.All()
			return output(c, programs, func(w io.Writer) {
				for _, p := range programs {
					fmt.Fprintf(w, "%-15s %s\n", p.Name, p.ID)
				}
			})
		},
	}
}

type programCheckOutput struct {
	Program    string `json:"program"`
	ProgramID  string `json:"program_id"`
	Deployed   bool   `json:"deployed"`
	Executable bool   `json:"executable"`
	Owner      string `json:"owner,omitempty"`
	Lamports   uint64 `json:"lamports"`
}

func programCheckCommand() *cli.Command {
	return &cli.Command{
		Name:      "check",
		Usage:     "Verify a program is deployed and executable",
		ArgsUsage: "PROGRAM (name or address)",
		Action: func(c *cli.Context) error {
			p, err := programArg(c)
			if err != nil {
				return err
			}

			info, err := program.VerifyDeployed(context.Background(), getCluster(c), p)
			if err != nil && !errors.Is(err, txn.ErrNotDeployed) {
				return err
			}

			out := programCheckOutput{
				Program:    p.Name,
				ProgramID:  p.ID.String(),
				Deployed:   err == nil,
				Executable: info.Executable,
				Lamports:   info.Lamports,
			}
			if info.Exists {
				out.Owner = info.Owner.String()
			}
			if printErr := output(c, out, func(w io.Writer) {
				if out.Deployed {
					fmt.Fprintf(w, "✓ %s is deployed\n", p)
					fmt.Fprintf(w, "  Owner:    %s\n", out.Owner)
					fmt.Fprintf(w, "  Lamports: %d\n", out.Lamports)
				} else {
					fmt.Fprintf(w, "✗ %s is not deployed\n", p)
				}
			}); printErr != nil {
				return printErr
			}

			if err != nil {
				return cli.Exit(err.Error(), 1)
			}
			return nil
		},
	}
}

type initializeOutput struct {
	Program        string `json:"program"`
	ProgramID      string `json:"program_id"`
	Payer          string `json:"payer"`
	GeneratedPayer bool   `json:"generated_payer"`
	AirdropError   string `json:"airdrop_error,omitempty"`
	Signature      string `json:"signature"`
	Outcome        string `json:"outcome"`
	Level          string `json:"level"`
	Slot           uint64 `json:"slot,omitempty"`
	Attempts       int    `json:"attempts"`
	ElapsedMs      int64  `json:"elapsed_ms"`
	ExecError      string `json:"exec_error,omitempty"`
}

func programInitializeCommand() *cli.Command {
	return &cli.Command{
		Name:      "initialize",
		Aliases:   []string{"init"},
		Usage:     "Fund a payer, send the program's initialize instruction and wait for the outcome",
		ArgsUsage: "PROGRAM (name or address)",
		Description: `Runs the full scenario: airdrop to the payer (failures are tolerated),
verify the deployment, build and sign the initialize transaction, submit it
once and poll until a terminal status or the attempt budget runs out.

Exit status is 0 on success, 1 on an execution failure and 2 on a timeout.`,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "keypair",
				Aliases: []string{"k"},
				Usage:   "solana-keygen JSON keypair for the payer (default: generate one)",
				EnvVars: []string{"PAYER_KEYPAIR_PATH"},
			},
			&cli.DurationFlag{
				Name:    "poll-interval",
				Usage:   "Delay before each status poll",
				EnvVars: []string{"CONFIRM_POLL_INTERVAL"},
			},
			&cli.IntFlag{
				Name:    "max-attempts",
				Usage:   "Number of status polls before giving up",
				EnvVars: []string{"CONFIRM_MAX_ATTEMPTS"},
			},
			&cli.StringFlag{
				Name:    "commitment",
				Usage:   "Level the wait stops at (confirmed, finalized)",
				EnvVars: []string{"CONFIRM_COMMITMENT"},
			},
			&cli.BoolFlag{
				Name:  "skip-airdrop",
				Usage: "Do not request funds for the payer",
			},
			&cli.DurationFlag{
				Name:    "settle-delay",
				Usage:   "Wait after the airdrop before checking the deployment",
				EnvVars: []string{"AIRDROP_SETTLE_DELAY"},
			},
		},
		Action: func(c *cli.Context) error {
			p, err := programArg(c)
			if err != nil {
				return err
			}

			cfg, err := initializeConfig(c)
			if err != nil {
				return err
			}

			opts, err := harness.OptionsFromConfig(cfg, p)
			if err != nil {
				return err
			}
			if c.Bool("skip-airdrop") {
				opts.AirdropLamports = 0
			}
			if cfg.PayerKeypairPath != "" || cfg.PayerPrivateKey != "" {
				payer, _, err := keys.Resolve(cfg.PayerKeypairPath, cfg.PayerPrivateKey)
				if err != nil {
					return err
				}
				opts.Payer = payer
			}

			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			logger := cliLogger(c)
			cluster := getCluster(c, harness.ClientOptions(cfg)...)
			fixture, err := harness.Setup(ctx, cluster, opts, logger, nil)
			if err != nil {
				return err
			}

			res, err := fixture.Initialize(ctx)
			if err != nil {
				return err
			}

			out := initializeOutput{
				Program:        p.Name,
				ProgramID:      p.ID.String(),
				Payer:          fixture.Payer().String(),
				GeneratedPayer: fixture.GeneratedPayer(),
				Signature:      res.Submission.Signature.String(),
				Outcome:        res.Outcome.Kind.String(),
				Level:          res.Outcome.Level.String(),
				Slot:           res.Outcome.Slot,
				Attempts:       res.Outcome.Attempts,
				ElapsedMs:      res.Outcome.Elapsed.Milliseconds(),
				ExecError:      solana.FormatExecutionError(res.Outcome.ExecErr),
			}
			if airdropErr := fixture.AirdropError(); airdropErr != nil {
				out.AirdropError = airdropErr.Error()
			}

			if err := output(c, out, func(w io.Writer) { printInitialize(w, out) }); err != nil {
				return err
			}

			switch res.Outcome.Kind {
			case txn.Succeeded:
				return nil
			case txn.TimedOut:
				return cli.Exit(res.Outcome.AsError().Error(), exitTimedOut)
			default:
				return cli.Exit(res.Outcome.AsError().Error(), exitExecutionFailed)
			}
		},
	}
}

// initializeConfig loads the environment configuration and applies flag overrides.
func initializeConfig(c *cli.Context) (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}

	cfg.RPCEndpoint = c.String("rpc-endpoint")
	cfg.PayerKeypairPath = c.String("keypair")
	if c.IsSet("keypair") {
		cfg.PayerPrivateKey = ""
	}
	if d := c.Duration("poll-interval"); d > 0 {
		cfg.ConfirmPollInterval = d
	}
	if n := c.Int("max-attempts"); n > 0 {
		cfg.ConfirmMaxAttempts = n
	}
	if commitment := c.String("commitment"); commitment != "" {
		cfg.ConfirmCommitment = commitment
	}
	if c.IsSet("settle-delay") {
		cfg.AirdropSettleDelay = c.Duration("settle-delay")
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func printInitialize(w io.Writer, out initializeOutput) {
	mark := "✗"
	if out.Outcome == txn.Succeeded.String() {
		mark = "✓"
	}
	fmt.Fprintf(w, "%s %s initialize: %s\n", mark, out.Program, out.Outcome)
	fmt.Fprintf(w, "  Signature: %s\n", out.Signature)
	fmt.Fprintf(w, "  Payer:     %s", out.Payer)
	if out.GeneratedPayer {
		fmt.Fprintf(w, " (generated)")
	}
	fmt.Fprintln(w)
	fmt.Fprintf(w, "  Level:     %s\n", out.Level)
	if out.Slot > 0 {
		fmt.Fprintf(w, "  Slot:      %d\n", out.Slot)
	}
	fmt.Fprintf(w, "  Attempts:  %d (%dms)\n", out.Attempts, out.ElapsedMs)
	if out.ExecError != "" {
		fmt.Fprintf(w, "  Error:     %s\n", out.ExecError)
	}
	if out.AirdropError != "" {
		fmt.Fprintf(w, "  Airdrop:   %s\n", out.AirdropError)
	}
}

func programArg(c *cli.Context) (program.Program, error) {
	if c.NArg() < 1 {
		return program.Program{}, fmt.Errorf("program name or address is required")
	}
	return program.Lookup(c.Args().Get(0))
}
