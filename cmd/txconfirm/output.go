package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/brojonat/txconfirm/service/solana"
	"github.com/itchyny/gojq"
	"github.com/urfave/cli/v2"
)

// newRPCClient is replaced in tests with an in-memory RPC client.
var newRPCClient = solana.NewRPCClient

// getCluster builds a Solana client for the --rpc-endpoint flag.
func getCluster(c *cli.Context, opts ...solana.ClientOption) *solana.Client {
	endpoint := c.String("rpc-endpoint")
	return solana.NewClient(newRPCClient(endpoint), solana.EndpointLabel(endpoint), nil, cliLogger(c), opts...)
}

// cliLogger writes diagnostics to stderr so stdout stays parseable.
func cliLogger(c *cli.Context) *slog.Logger {
	var level slog.Level
	switch c.String("log-level") {
	case "debug":
		level = slog.LevelDebug
	case "info":
		level = slog.LevelInfo
	case "warn":
		level = slog.LevelWarn
	default:
		level = slog.LevelError
	}
	return slog.New(slog.NewTextHandler(c.App.ErrWriter, &slog.HandlerOptions{Level: level}))
}

// output renders v as JSON when --json or --jq is set, and with text otherwise.
func output(c *cli.Context, v interface{}, text func(w io.Writer)) error {
	w := c.App.Writer
	if filter := c.String("jq"); filter != "" {
		return runJQ(w, filter, v)
	}
	if c.Bool("json") {
		return outputJSON(w, v)
	}
	text(w)
	return nil
}

func outputJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// runJQ applies filter to the JSON form of v and writes every result.
func runJQ(w io.Writer, filter string, v interface{}) error {
	query, err := gojq.Parse(filter)
	if err != nil {
		return fmt.Errorf("invalid jq filter: %w", err)
	}
	code, err := gojq.Compile(query)
	if err != nil {
		return fmt.Errorf("failed to compile jq filter: %w", err)
	}

	// gojq works on plain maps and slices, not Go structs
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to marshal output: %w", err)
	}
	var input interface{}
	if err := json.Unmarshal(data, &input); err != nil {
		return fmt.Errorf("failed to normalize output: %w", err)
	}

	iter := code.Run(input)
	for {
		result, ok := iter.Next()
		if !ok {
			return nil
		}
		if err, isErr := result.(error); isErr {
			var halt *gojq.HaltError
			if errors.As(err, &halt) && halt.Value() == nil {
				return nil
			}
			return fmt.Errorf("jq filter failed: %w", err)
		}
		if s, isString := result.(string); isString {
			fmt.Fprintln(w, s)
			continue
		}
		if err := outputJSON(w, result); err != nil {
			return err
		}
	}
}

// isTruthy follows jq semantics: only false and null are falsy.
func isTruthy(v interface{}) bool {
	if v == nil {
		return false
	}
	if b, ok := v.(bool); ok {
		return b
	}
	return true
}
