package main

import (
	"fmt"
	"log"
	"os"

	"github.com/brojonat/txconfirm/service/config"
	"github.com/urfave/cli/v2"
)

var (
	// Version information (set via ldflags during build)
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

func main() {
	if err := newApp().Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

func newApp() *cli.App {
	return &cli.App{
		Name:  "txconfirm",
		Usage: "Submit Solana transactions and track them to a definite outcome",
		Description: `A command-line tool for driving and inspecting transaction confirmation.

Commands that talk to the cluster use --rpc-endpoint (a local validator by default).
The submissions commands talk to the txconfirm HTTP server.`,
		Version: fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, date),
		Commands: []*cli.Command{
			walletCommands(),
			airdropCommand(),
			programCommands(),
			statusCommand(),
			submissionsCommands(),
			watchCommand(),
			{
				Name:  "db",
				Usage: "Database maintenance commands",
				Subcommands: []*cli.Command{
					migrateCommand(),
				},
			},
		},
		// Global flags available to all commands
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "rpc-endpoint",
				Aliases: []string{"u"},
				Usage:   "Solana RPC endpoint",
				EnvVars: []string{"RPC_ENDPOINT"},
				Value:   config.DefaultRPCEndpoint,
			},
			&cli.StringFlag{
				Name:    "server-url",
				Usage:   "txconfirm HTTP server URL",
				EnvVars: []string{"TXCONFIRM_SERVER_URL"},
				Value:   "http://localhost:8080",
			},
			&cli.StringFlag{
				Name:    "database-url",
				Usage:   "Database connection URL",
				EnvVars: []string{"DATABASE_URL"},
			},
			&cli.StringFlag{
				Name:    "nats-url",
				Usage:   "NATS server URL",
				EnvVars: []string{"NATS_URL"},
				Value:   "nats://localhost:4222",
			},
			&cli.StringFlag{
				Name:    "log-level",
				Usage:   "Log level for diagnostics on stderr (debug, info, warn, error)",
				EnvVars: []string{"LOG_LEVEL"},
				Value:   "error",
			},
			&cli.BoolFlag{
				Name:    "json",
				Aliases: []string{"j"},
				Usage:   "Output in JSON format",
			},
			&cli.StringFlag{
				Name:  "jq",
				Usage: "Filter JSON output through a jq expression (implies --json)",
			},
		},
	}
}
