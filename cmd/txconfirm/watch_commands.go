package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os/signal"
	"syscall"
	"time"

	"github.com/brojonat/txconfirm/service/nats"
	"github.com/brojonat/txconfirm/service/program"
	"github.com/itchyny/gojq"
	"github.com/urfave/cli/v2"
)

// errWatchDone stops a watch once --count events have been printed.
var errWatchDone = errors.New("watch done")

// newWatcher is replaced in tests with an in-memory event source.
var newWatcher = func(natsURL string, c *cli.Context) (eventWatcher, error) {
	return nats.NewSubscriber(natsURL, cliLogger(c))
}

type eventWatcher interface {
	Watch(ctx context.Context, program string, handle func(*nats.OutcomeEvent) error) error
	Close() error
}

func watchCommand() *cli.Command {
	return &cli.Command{
		Name:      "watch",
		Usage:     "Stream confirmation events from NATS",
		ArgsUsage: "[PROGRAM]",
		Description: `Prints submitted and completed events as they are published.
With no PROGRAM, events for all programs are shown.

Use --filter to only show events matching a jq expression, e.g.
  txconfirm watch --filter '.type == "completed" and .outcome != "confirmed"'`,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "filter",
				Aliases: []string{"f"},
				Usage:   "Only print events for which this jq expression is truthy",
			},
			&cli.IntFlag{
				Name:    "count",
				Aliases: []string{"n"},
				Usage:   "Exit after printing this many events (0 for no limit)",
			},
			&cli.DurationFlag{
				Name:  "timeout",
				Usage: "Exit after this long (0 for no limit)",
			},
		},
		Action: func(c *cli.Context) error {
			name := ""
			if c.NArg() > 0 {
				p, err := program.Lookup(c.Args().Get(0))
				if err != nil {
					return err
				}
				name = p.Name
			}

			match, err := compileFilter(c.String("filter"))
			if err != nil {
				return err
			}

			watcher, err := newWatcher(c.String("nats-url"), c)
			if err != nil {
				return fmt.Errorf("failed to connect to NATS: %w", err)
			}
			defer watcher.Close()

			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			if d := c.Duration("timeout"); d > 0 {
				var cancel context.CancelFunc
				ctx, cancel = context.WithTimeout(ctx, d)
				defer cancel()
			}

			limit := c.Int("count")
			printed := 0
			err = watcher.Watch(ctx, name, func(event *nats.OutcomeEvent) error {
				ok, err := match(event)
				if err != nil {
					return err
				}
				if !ok {
					return nil
				}
				if err := output(c, event, func(w io.Writer) { printEvent(w, event) }); err != nil {
					return err
				}
				printed++
				if limit > 0 && printed >= limit {
					return errWatchDone
				}
				return nil
			})

			switch {
			case errors.Is(err, errWatchDone):
				return nil
			case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
				return nil
			default:
				return err
			}
		},
	}
}

// compileFilter returns a predicate over events. An empty expression matches everything.
func compileFilter(expr string) (func(*nats.OutcomeEvent) (bool, error), error) {
	if expr == "" {
		return func(*nats.OutcomeEvent) (bool, error) { return true, nil }, nil
	}
	query, err := gojq.Parse(expr)
	if err != nil {
		return nil, fmt.Errorf("invalid filter: %w", err)
	}
	code, err := gojq.Compile(query)
	if err != nil {
		return nil, fmt.Errorf("failed to compile filter: %w", err)
	}

	return func(event *nats.OutcomeEvent) (bool, error) {
		data, err := json.Marshal(event)
		if err != nil {
			return false, err
		}
		var input map[string]interface{}
		if err := json.Unmarshal(data, &input); err != nil {
			return false, err
		}

		iter := code.Run(input)
		result, ok := iter.Next()
		if !ok {
			return false, nil
		}
		if err, isErr := result.(error); isErr {
			return false, fmt.Errorf("filter failed: %w", err)
		}
		return isTruthy(result), nil
	}, nil
}

func printEvent(w io.Writer, event *nats.OutcomeEvent) {
	ts := event.Timestamp.Local().Format(time.TimeOnly)
	switch event.Type {
	case nats.EventCompleted:
		fmt.Fprintf(w, "%s %-9s %-14s %s %s (%s, %d attempts)",
			ts, event.Type, event.Program, event.Signature, event.Outcome, event.Level, event.Attempts)
		if event.ExecError != nil {
			fmt.Fprintf(w, " %s", *event.ExecError)
		}
		fmt.Fprintln(w)
	default:
		fmt.Fprintf(w, "%s %-9s %-14s %s\n", ts, event.Type, event.Program, event.Signature)
	}
}
