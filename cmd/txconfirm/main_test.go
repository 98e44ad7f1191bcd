package main

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/brojonat/txconfirm/service/solana"
	"github.com/stretchr/testify/require"
	"github.com/urfave/cli/v2"
)

// runApp runs the CLI with args against mock and returns what it wrote to stdout.
func runApp(t *testing.T, mock *solana.MockRPCClient, args ...string) (string, error) {
	t.Helper()

	if mock != nil {
		orig := newRPCClient
		newRPCClient = func(string) solana.RPCClient { return mock }
		t.Cleanup(func() { newRPCClient = orig })
	}

	var stdout, stderr bytes.Buffer
	app := newApp()
	app.Writer = &stdout
	app.ErrWriter = &stderr
	app.ExitErrHandler = func(*cli.Context, error) {}

	err := app.Run(append([]string{"txconfirm"}, args...))
	return stdout.String(), err
}

func decodeJSON(t *testing.T, out string, v interface{}) {
	t.Helper()
	require.NoError(t, json.Unmarshal([]byte(out), v), "output was: %s", out)
}

func requireExitCode(t *testing.T, err error, code int) {
	t.Helper()
	require.Error(t, err)
	var exitErr cli.ExitCoder
	require.ErrorAs(t, err, &exitErr)
	require.Equal(t, code, exitErr.ExitCode())
}
