package main

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"text/tabwriter"
	"time"

	"github.com/brojonat/txconfirm/client"
	"github.com/brojonat/txconfirm/service/txn"
	"github.com/urfave/cli/v2"
)

func submissionsCommands() *cli.Command {
	return &cli.Command{
		Name:    "submissions",
		Aliases: []string{"sub"},
		Usage:   "Start and inspect submissions through the txconfirm server",
		Subcommands: []*cli.Command{
			submitCommand(),
			listSubmissionsCommand(),
			getSubmissionCommand(),
			awaitSubmissionCommand(),
		},
	}
}

func getClient(c *cli.Context, timeout time.Duration) *client.Client {
	httpClient := &http.Client{Timeout: timeout}
	return client.NewClient(c.String("server-url"), httpClient, cliLogger(c))
}

// exitForOutcome maps a recorded outcome name to the CLI exit status.
func exitForOutcome(outcome, signature string) error {
	switch outcome {
	case txn.ExecutionFailed.String():
		return cli.Exit(fmt.Sprintf("transaction %s failed during execution", signature), exitExecutionFailed)
	case txn.TimedOut.String():
		return cli.Exit(fmt.Sprintf("transaction %s was not confirmed in time", signature), exitTimedOut)
	default:
		return nil
	}
}

func submitCommand() *cli.Command {
	return &cli.Command{
		Name:      "submit",
		Usage:     "Start a submission workflow for a program's initialize instruction",
		ArgsUsage: "PROGRAM (name or address)",
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:    "wait",
				Aliases: []string{"w"},
				Usage:   "Block until the workflow reports an outcome",
			},
			&cli.DurationFlag{
				Name:  "poll-interval",
				Usage: "Delay before each status poll (server default if unset)",
			},
			&cli.IntFlag{
				Name:  "max-attempts",
				Usage: "Number of status polls (server default if unset)",
			},
			&cli.StringFlag{
				Name:  "commitment",
				Usage: "Level the wait stops at (confirmed, finalized)",
			},
			&cli.DurationFlag{
				Name:  "timeout",
				Usage: "HTTP timeout; with --wait it must cover the confirmation window",
				Value: 5 * time.Minute,
			},
		},
		Action: func(c *cli.Context) error {
			if c.NArg() < 1 {
				return fmt.Errorf("program name or address is required")
			}
			req := client.SubmitRequest{
				Program:      c.Args().Get(0),
				PollInterval: c.Duration("poll-interval"),
				MaxAttempts:  c.Int("max-attempts"),
				Commitment:   c.String("commitment"),
			}

			ctx := context.Background()
			cl := getClient(c, c.Duration("timeout"))

			if !c.Bool("wait") {
				run, err := cl.Submit(ctx, req)
				if err != nil {
					return fmt.Errorf("failed to start submission: %w", err)
				}
				return output(c, run, func(w io.Writer) {
					fmt.Fprintf(w, "✓ Submission started for %s (%s)\n", run.Program, run.ProgramID)
					fmt.Fprintf(w, "  Workflow ID: %s\n", run.WorkflowID)
					fmt.Fprintf(w, "  Run ID:      %s\n", run.RunID)
				})
			}

			result, err := cl.SubmitAndWait(ctx, req)
			if err != nil {
				return fmt.Errorf("submission failed: %w", err)
			}
			if err := output(c, result, func(w io.Writer) {
				fmt.Fprintf(w, "%s initialize: %s\n", result.Program, result.Outcome.Kind)
				fmt.Fprintf(w, "  Signature: %s\n", result.Signature)
				fmt.Fprintf(w, "  Level:     %s\n", result.Outcome.Level)
				fmt.Fprintf(w, "  Attempts:  %d\n", result.Outcome.Attempts)
				if len(result.Outcome.ExecErr) > 0 {
					fmt.Fprintf(w, "  Error:     %s\n", result.Outcome.ExecErr)
				}
			}); err != nil {
				return err
			}
			return exitForOutcome(result.Outcome.Kind, result.Signature)
		},
	}
}

func listSubmissionsCommand() *cli.Command {
	return &cli.Command{
		Name:    "list",
		Aliases: []string{"ls"},
		Usage:   "List recorded submissions, newest first",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "program",
				Aliases: []string{"p"},
				Usage:   "Only submissions for this program",
			},
			&cli.StringFlag{
				Name:  "outcome",
				Usage: "Only submissions with this outcome (pending, confirmed, execution_failed, timed_out)",
			},
			&cli.IntFlag{
				Name:  "limit",
				Usage: "Maximum number of submissions",
				Value: 20,
			},
			&cli.IntFlag{
				Name:  "offset",
				Usage: "Number of submissions to skip",
			},
		},
		Action: func(c *cli.Context) error {
			subs, err := getClient(c, 30*time.Second).ListSubmissions(context.Background(), client.ListOptions{
				Program: c.String("program"),
				Outcome: c.String("outcome"),
				Limit:   c.Int("limit"),
				Offset:  c.Int("offset"),
			})
			if err != nil {
				return fmt.Errorf("failed to list submissions: %w", err)
			}

			return output(c, subs, func(w io.Writer) {
				if len(subs) == 0 {
					fmt.Fprintln(w, "No submissions found")
					return
				}
				tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
				fmt.Fprintln(tw, "SUBMITTED\tPROGRAM\tOUTCOME\tATTEMPTS\tSIGNATURE")
				for _, sub := range subs {
					fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%s\n",
						sub.SubmittedAt.Local().Format(time.DateTime),
						sub.Program,
						sub.Outcome,
						sub.Attempts,
						sub.Signature,
					)
				}
				tw.Flush()
			})
		},
	}
}

func getSubmissionCommand() *cli.Command {
	return &cli.Command{
		Name:      "get",
		Usage:     "Show one recorded submission",
		ArgsUsage: "SIGNATURE",
		Action: func(c *cli.Context) error {
			if c.NArg() < 1 {
				return fmt.Errorf("signature is required")
			}
			sub, err := getClient(c, 30*time.Second).GetSubmission(context.Background(), c.Args().Get(0))
			if err != nil {
				return err
			}
			return output(c, sub, func(w io.Writer) { printSubmission(w, sub) })
		},
	}
}

func awaitSubmissionCommand() *cli.Command {
	return &cli.Command{
		Name:      "await",
		Usage:     "Wait until a recorded submission has an outcome",
		ArgsUsage: "SIGNATURE",
		Flags: []cli.Flag{
			&cli.DurationFlag{
				Name:  "interval",
				Usage: "Delay between polls of the server",
				Value: time.Second,
			},
			&cli.DurationFlag{
				Name:  "timeout",
				Usage: "Give up after this long",
				Value: 2 * time.Minute,
			},
		},
		Action: func(c *cli.Context) error {
			if c.NArg() < 1 {
				return fmt.Errorf("signature is required")
			}
			sig := c.Args().Get(0)

			ctx, cancel := context.WithTimeout(context.Background(), c.Duration("timeout"))
			defer cancel()

			sub, err := getClient(c, 30*time.Second).Await(ctx, sig, c.Duration("interval"))
			if err != nil {
				return fmt.Errorf("failed waiting for %s: %w", sig, err)
			}
			if err := output(c, sub, func(w io.Writer) { printSubmission(w, sub) }); err != nil {
				return err
			}
			return exitForOutcome(sub.Outcome, sub.Signature)
		},
	}
}

func printSubmission(w io.Writer, sub *client.Submission) {
	fmt.Fprintf(w, "Signature:  %s\n", sub.Signature)
	fmt.Fprintf(w, "Program:    %s\n", sub.Program)
	fmt.Fprintf(w, "Payer:      %s\n", sub.Payer)
	fmt.Fprintf(w, "Outcome:    %s\n", sub.Outcome)
	fmt.Fprintf(w, "Level:      %s\n", sub.Level)
	if sub.Slot != nil {
		fmt.Fprintf(w, "Slot:       %d\n", *sub.Slot)
	}
	fmt.Fprintf(w, "Attempts:   %d\n", sub.Attempts)
	fmt.Fprintf(w, "Submitted:  %s\n", sub.SubmittedAt.Local().Format(time.DateTime))
	if sub.CompletedAt != nil {
		fmt.Fprintf(w, "Completed:  %s\n", sub.CompletedAt.Local().Format(time.DateTime))
	}
	if sub.ExecError != nil {
		fmt.Fprintf(w, "Error:      %s\n", *sub.ExecError)
	}
}
