package temporal

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/brojonat/txconfirm/service/metrics"
	"github.com/brojonat/txconfirm/service/program"
	"github.com/brojonat/txconfirm/service/txn"
	solanago "github.com/gagliardetto/solana-go"
	temporalsdk "go.temporal.io/sdk/temporal"
)

// Application error types returned by activities. They are non-retryable.
const (
	ErrTypeSetup      = "SetupError"
	ErrTypeSubmission = "SubmissionError"
	ErrTypeInput      = "InvalidInput"
)

// SubmitAndConfirmInput contains the input parameters for one submission workflow.
type SubmitAndConfirmInput struct {
	Program      string        `json:"program"`    // workspace program name
	ProgramID    string        `json:"program_id"` // base58 program address
	PollInterval time.Duration `json:"poll_interval"`
	MaxAttempts  int           `json:"max_attempts"`
	Commitment   string        `json:"commitment"` // "confirmed" or "finalized"
}

// SubmitAndConfirmResult contains the result of a submission workflow.
type SubmitAndConfirmResult struct {
	Program   string      `json:"program"`
	Signature string      `json:"signature,omitempty"`
	Outcome   txn.Outcome `json:"outcome"`
	Error     *string     `json:"error,omitempty"`
}

// VerifyProgramInput contains parameters for the VerifyProgram activity.
type VerifyProgramInput struct {
	Program   string `json:"program"`
	ProgramID string `json:"program_id"`
}

// VerifyProgramResult contains the deployment state of a program account.
type VerifyProgramResult struct {
	Executable bool   `json:"executable"`
	Owner      string `json:"owner"`
	Lamports   uint64 `json:"lamports"`
}

// SubmitInitializeInput contains parameters for the SubmitInitialize activity.
type SubmitInitializeInput struct {
	Program   string `json:"program"`
	ProgramID string `json:"program_id"`
}

// GetSignatureStatusInput contains parameters for the GetSignatureStatus activity.
type GetSignatureStatusInput struct {
	Signature string `json:"signature"`
}

// RecordOutcomeInput contains parameters for the RecordOutcome activity.
type RecordOutcomeInput struct {
	Completion txn.Completion `json:"completion"`
}

// ClusterInterface defines the RPC reads needed by activities.
// This allows for easy mocking in tests.
type ClusterInterface interface {
	program.AccountReader
	txn.StatusSource
}

// SubmitterInterface sends a transaction without waiting for confirmation.
// *txn.Sender satisfies it.
type SubmitterInterface interface {
	Submit(ctx context.Context, req txn.Request) (*txn.Result, error)
}

// Activities holds the dependencies needed by Temporal activities.
type Activities struct {
	cluster   ClusterInterface
	submitter SubmitterInterface
	payer     solanago.PrivateKey
	hooks     []txn.Hook
	metrics   *metrics.Metrics
	logger    *slog.Logger
}

// NewActivities creates a new Activities instance with explicit dependencies.
// hooks receive completions from RecordOutcome; submissions reach hooks
// through the submitter. If metrics is nil, no metrics will be recorded.
func NewActivities(
	cluster ClusterInterface,
	submitter SubmitterInterface,
	payer solanago.PrivateKey,
	hooks []txn.Hook,
	m *metrics.Metrics,
	logger *slog.Logger,
) *Activities {
	if logger == nil {
		logger = slog.Default()
	}
	return &Activities{
		cluster:   cluster,
		submitter: submitter,
		payer:     payer,
		hooks:     hooks,
		metrics:   m,
		logger:    logger,
	}
}

// VerifyProgram checks that the program account exists and is executable.
// A missing deployment is a non-retryable SetupError; RPC failures are retried.
func (a *Activities) VerifyProgram(ctx context.Context, input VerifyProgramInput) (result *VerifyProgramResult, err error) {
	defer a.recordDuration("VerifyProgram", time.Now(), &err)

	p, err := resolveProgram(input.Program, input.ProgramID)
	if err != nil {
		return nil, err
	}

	info, err := program.VerifyDeployed(ctx, a.cluster, p)
	if errors.Is(err, txn.ErrNotDeployed) {
		a.logger.ErrorContext(ctx, "program not deployed", "program_id", p.ID.String())
		return nil, temporalsdk.NewNonRetryableApplicationError(err.Error(), ErrTypeSetup, err)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to verify program: %w", err)
	}

	a.logger.InfoContext(ctx, "program deployment verified", "program_id", p.ID.String())
	return &VerifyProgramResult{
		Executable: info.Executable,
		Owner:      info.Owner.String(),
		Lamports:   info.Lamports,
	}, nil
}

// SubmitInitialize builds, signs and submits the program's initialize
// instruction paid by the worker's payer. It must run with a single attempt:
// a rejected transaction is never resubmitted.
func (a *Activities) SubmitInitialize(ctx context.Context, input SubmitInitializeInput) (sub *txn.Submission, err error) {
	defer a.recordDuration("SubmitInitialize", time.Now(), &err)

	p, err := resolveProgram(input.Program, input.ProgramID)
	if err != nil {
		return nil, err
	}
	if a.payer == nil {
		return nil, temporalsdk.NewNonRetryableApplicationError("worker has no payer configured", ErrTypeSetup, txn.ErrNoPayer)
	}

	res, err := a.submitter.Submit(ctx, txn.Request{
		Program:      p.Name,
		Payer:        a.payer.PublicKey(),
		Instructions: []solanago.Instruction{p.Initialize()},
		Signers:      []txn.Signer{a.payer},
	})
	if err != nil {
		var subErr *txn.SubmissionError
		if errors.As(err, &subErr) {
			return nil, temporalsdk.NewNonRetryableApplicationError(err.Error(), ErrTypeSubmission, err)
		}
		return nil, fmt.Errorf("failed to submit initialize: %w", err)
	}

	a.logger.InfoContext(ctx, "initialize submitted",
		"program", p.Name,
		"signature", res.Submission.Signature.String(),
	)
	return &res.Submission, nil
}

// GetSignatureStatus performs one status poll.
func (a *Activities) GetSignatureStatus(ctx context.Context, input GetSignatureStatusInput) (obs *txn.Observation, err error) {
	defer a.recordDuration("GetSignatureStatus", time.Now(), &err)

	sig, err := solanago.SignatureFromBase58(input.Signature)
	if err != nil {
		return nil, temporalsdk.NewNonRetryableApplicationError("invalid signature", ErrTypeInput, err)
	}

	status, err := a.cluster.SignatureStatus(ctx, sig)
	if err != nil {
		return nil, fmt.Errorf("failed to get signature status: %w", err)
	}

	observation := txn.Observe(status, time.Now().UTC())
	if a.metrics != nil {
		a.metrics.RecordStatusObservation(observation.Level.String())
	}
	return &observation, nil
}

// RecordOutcome hands the completion to every hook and records workflow
// metrics. Hook failures are logged and do not fail the activity.
func (a *Activities) RecordOutcome(ctx context.Context, input RecordOutcomeInput) (err error) {
	defer a.recordDuration("RecordOutcome", time.Now(), &err)

	c := input.Completion
	for _, h := range a.hooks {
		if err := h.Completed(ctx, c); err != nil {
			a.logger.WarnContext(ctx, "completion hook failed",
				"signature", c.Outcome.Signature.String(),
				"error", err,
			)
		}
	}

	if a.metrics != nil {
		a.metrics.RecordWorkflowDuration(c.Program, c.Outcome.Kind.String(), c.Outcome.Elapsed.Seconds())
		a.metrics.RecordConfirmation(c.Outcome.Kind.String(), c.Outcome.Attempts, c.Outcome.Elapsed.Seconds())
	}

	a.logger.InfoContext(ctx, "outcome recorded",
		"program", c.Program,
		"signature", c.Outcome.Signature.String(),
		"outcome", c.Outcome.Kind.String(),
		"attempts", c.Outcome.Attempts,
	)
	return nil
}

func (a *Activities) recordDuration(activity string, start time.Time, err *error) {
	if a.metrics != nil {
		a.metrics.RecordActivityDuration(activity, time.Since(start).Seconds(), *err)
	}
}

// resolveProgram prefers the explicit address and falls back to the name.
func resolveProgram(name, id string) (program.Program, error) {
	key := id
	if key == "" {
		key = name
	}
	p, err := program.Lookup(key)
	if err != nil {
		return program.Program{}, temporalsdk.NewNonRetryableApplicationError(err.Error(), ErrTypeInput, err)
	}
	if name != "" {
		p.Name = name
	}
	return p, nil
}
