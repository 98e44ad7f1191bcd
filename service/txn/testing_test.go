package txn

import (
	"context"
	"io"
	"log/slog"
	"sync/atomic"
	"testing"
	"time"

	"github.com/brojonat/txconfirm/service/solana"
	solanago "github.com/gagliardetto/solana-go"
	"github.com/stretchr/testify/require"
)

var testProgram = solanago.MustPublicKeyFromBase58("91fD8V2tNaVWcK8Mhk3xc6kzsnbevrFp77yLUtqn8DXA")

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newKey(t *testing.T) solanago.PrivateKey {
	t.Helper()
	key, err := solanago.NewRandomPrivateKey()
	require.NoError(t, err)
	return key
}

func testAnchor() solana.Anchor {
	return solana.Anchor{
		Blockhash:            solanago.MustHashFromBase58("4NCYB3kRT8sCNodPNuCZo8VUh4xqpBQxsxed2wd9xaD4"),
		LastValidBlockHeight: 150,
	}
}

func testInstruction(accounts ...*solanago.AccountMeta) solanago.Instruction {
	return solanago.NewInstruction(testProgram, solanago.AccountMetaSlice(accounts), []byte{175, 175, 109, 31, 13, 152, 155, 237})
}

// countingSleep returns immediately and counts how often it was called.
type countingSleep struct {
	calls atomic.Int32
}

func (c *countingSleep) sleep(ctx context.Context, d time.Duration) error {
	c.calls.Add(1)
	return ctx.Err()
}

func newTestTracker(rpc *solana.MockRPCClient, opts ...TrackerOption) (*Tracker, *countingSleep) {
	sleeper := &countingSleep{}
	client := solana.NewClient(rpc, "localnet", nil, discardLogger())
	opts = append([]TrackerOption{WithSleep(sleeper.sleep)}, opts...)
	return NewTracker(client, discardLogger(), opts...), sleeper
}
