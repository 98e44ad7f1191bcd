// Package harness prepares the shared context integration scenarios run in:
// a funded payer, a verified program deployment and a configured sender.
package harness

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/brojonat/txconfirm/service/metrics"
	"github.com/brojonat/txconfirm/service/program"
	"github.com/brojonat/txconfirm/service/solana"
	"github.com/brojonat/txconfirm/service/txn"
	"github.com/cenkalti/backoff/v5"
	solanago "github.com/gagliardetto/solana-go"
)

// DefaultAirdropLamports is 2 SOL.
const DefaultAirdropLamports = 2 * solanago.LAMPORTS_PER_SOL

// Cluster is everything setup and scenarios need from the RPC endpoint.
// *solana.Client satisfies it.
type Cluster interface {
	txn.Network
	program.AccountReader
	Airdrop(ctx context.Context, address solanago.PublicKey, lamports uint64) (solanago.Signature, error)
}

// Options controls Setup.
type Options struct {
	Program program.Program

	// Payer funds and signs scenario transactions. Nil generates a fresh keypair.
	Payer solanago.PrivateKey

	// AirdropLamports of 0 skips the airdrop.
	AirdropLamports uint64
	// AirdropAttempts bounds faucet retries; values below 1 mean one attempt.
	AirdropAttempts int
	// AirdropRetryInterval is the first backoff between faucet retries (default 500ms).
	AirdropRetryInterval time.Duration
	// SettleDelay is waited after the airdrop before the deployment check.
	SettleDelay time.Duration

	TrackerOptions []txn.TrackerOption
	SenderOptions  []txn.SenderOption
}

// Fixture is the immutable context handed to each scenario.
type Fixture struct {
	cluster    Cluster
	program    program.Program
	payer      solanago.PrivateKey
	sender     *txn.Sender
	deployment solana.AccountInfo
	generated  bool
	airdropErr *txn.AirdropError
}

// Setup funds the payer, verifies the program is deployed and wires a
// sender. Airdrop failures are logged and recorded on the fixture; a
// deployment failure aborts with a *txn.SetupError before any transaction
// is attempted.
func Setup(ctx context.Context, cluster Cluster, opts Options, logger *slog.Logger, m *metrics.Metrics) (*Fixture, error) {
	logger = logger.With("component", "harness", "program", opts.Program.Name)

	payer := opts.Payer
	generated := false
	if payer == nil {
		key, err := solanago.NewRandomPrivateKey()
		if err != nil {
			return nil, &txn.SetupError{Program: opts.Program.ID, Err: fmt.Errorf("failed to generate payer: %w", err)}
		}
		payer = key
		generated = true
	}

	f := &Fixture{
		cluster:   cluster,
		program:   opts.Program,
		payer:     payer,
		generated: generated,
	}

	if opts.AirdropLamports > 0 {
		if err := airdrop(ctx, cluster, payer.PublicKey(), opts, logger, m); err != nil {
			f.airdropErr = err
			logger.WarnContext(ctx, "airdrop failed, continuing with existing balance",
				"payer", payer.PublicKey().String(),
				"error", err,
			)
		}
	}

	if opts.SettleDelay > 0 {
		timer := time.NewTimer(opts.SettleDelay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, ctx.Err()
		case <-timer.C:
		}
	}

	info, err := program.VerifyDeployed(ctx, cluster, opts.Program)
	if err != nil {
		logger.ErrorContext(ctx, "program deployment check failed", "error", err)
		return nil, err
	}
	f.deployment = info

	trackerOpts := append([]txn.TrackerOption{txn.WithMetrics(m)}, opts.TrackerOptions...)
	tracker := txn.NewTracker(cluster, logger, trackerOpts...)

	senderOpts := append([]txn.SenderOption{txn.WithSenderMetrics(m)}, opts.SenderOptions...)
	f.sender = txn.NewSender(cluster, tracker, logger, senderOpts...)

	logger.InfoContext(ctx, "fixture ready",
		"payer", payer.PublicKey().String(),
		"generated_payer", generated,
		"program_id", opts.Program.ID.String(),
	)
	return f, nil
}

func airdrop(
	ctx context.Context,
	cluster Cluster,
	address solanago.PublicKey,
	opts Options,
	logger *slog.Logger,
	m *metrics.Metrics,
) *txn.AirdropError {
	lamports := opts.AirdropLamports
	attempts := opts.AirdropAttempts
	if attempts < 1 {
		attempts = 1
	}
	interval := opts.AirdropRetryInterval
	if interval <= 0 {
		interval = 500 * time.Millisecond
	}

	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = interval
	policy.MaxInterval = interval * 10

	tries := 0
	operation := func() (solanago.Signature, error) {
		tries++
		return cluster.Airdrop(ctx, address, lamports)
	}
	notify := func(err error, next time.Duration) {
		if m != nil {
			m.RecordRPCRetry("RequestAirdrop", "faucet_error")
		}
		logger.InfoContext(ctx, "retrying airdrop", "error", err, "backoff", next.String())
	}

	_, err := backoff.Retry(ctx, operation,
		backoff.WithBackOff(policy),
		backoff.WithMaxTries(uint(attempts)),
		backoff.WithNotify(notify),
	)
	if err != nil {
		if m != nil {
			m.RecordAirdrop("error")
		}
		return &txn.AirdropError{Address: address, Lamports: lamports, Attempts: tries, Err: err}
	}
	if m != nil {
		m.RecordAirdrop("success")
	}
	return nil
}

func (f *Fixture) Program() program.Program { return f.program }

// Payer returns the fee payer's public key. The secret stays inside the fixture.
func (f *Fixture) Payer() solanago.PublicKey { return f.payer.PublicKey() }

// GeneratedPayer reports whether Setup created the payer.
func (f *Fixture) GeneratedPayer() bool { return f.generated }

func (f *Fixture) Sender() *txn.Sender { return f.sender }

// AirdropError is the tolerated faucet failure, or nil if funding succeeded or was skipped.
func (f *Fixture) AirdropError() *txn.AirdropError { return f.airdropErr }

func (f *Fixture) Cluster() Cluster { return f.cluster }

// Deployment is the program account seen by the deployment check.
func (f *Fixture) Deployment() solana.AccountInfo { return f.deployment }

// Request wraps instructions into a request paid and signed by the fixture payer.
func (f *Fixture) Request(instructions ...solanago.Instruction) txn.Request {
	return txn.Request{
		Program:      f.program.Name,
		Payer:        f.payer.PublicKey(),
		Instructions: instructions,
		Signers:      []txn.Signer{f.payer},
	}
}

// Initialize sends the program's initialize instruction and waits for the outcome.
func (f *Fixture) Initialize(ctx context.Context) (*txn.Result, error) {
	return f.sender.SendAndConfirm(ctx, f.Request(f.program.Initialize()))
}
