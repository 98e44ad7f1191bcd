package temporal

import (
	"fmt"
	"time"

	"github.com/brojonat/txconfirm/service/txn"
	temporalsdk "go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/workflow"
)

var a *Activities // for type-safe activity invocation

// SubmitAndConfirmWorkflow submits a program's initialize instruction and
// waits for its outcome.
//
// The workflow performs these steps:
// 1. Verify the program is deployed (VerifyProgram activity)
// 2. Build, sign and submit once (SubmitInitialize activity, never retried)
// 3. Sleep, then poll (GetSignatureStatus activity), up to MaxAttempts times
// 4. Hand the outcome to the hooks (RecordOutcome activity)
//
// Execution failures and timeouts are reported in the result, not as
// workflow errors. Setup and submission failures fail the workflow.
func SubmitAndConfirmWorkflow(ctx workflow.Context, input SubmitAndConfirmInput) (*SubmitAndConfirmResult, error) {
	logger := workflow.GetLogger(ctx)
	logger.Info("SubmitAndConfirmWorkflow started", "program", input.Program, "program_id", input.ProgramID)

	result := &SubmitAndConfirmResult{Program: input.Program}
	fail := func(msg string, err error) (*SubmitAndConfirmResult, error) {
		errMsg := fmt.Sprintf("%s: %v", msg, err)
		result.Error = &errMsg
		return result, fmt.Errorf("%s: %w", msg, err)
	}

	interval := input.PollInterval
	if interval <= 0 {
		interval = txn.DefaultPollInterval
	}
	maxAttempts := input.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = txn.DefaultMaxAttempts
	}
	commitment := input.Commitment
	if commitment == "" {
		commitment = "confirmed"
	}
	reached, err := txn.PredicateFor(commitment)
	if err != nil {
		return fail("invalid input", err)
	}

	recordCtx := workflow.WithActivityOptions(ctx, workflow.ActivityOptions{
		StartToCloseTimeout: 30 * time.Second,
		RetryPolicy: &temporalsdk.RetryPolicy{
			InitialInterval:    time.Second,
			BackoffCoefficient: 2.0,
			MaximumInterval:    10 * time.Second,
			MaximumAttempts:    3,
		},
	})

	// Steps 1 and 2 run once: setup failures and rejected submissions are final.
	onceCtx := workflow.WithActivityOptions(ctx, workflow.ActivityOptions{
		StartToCloseTimeout: 30 * time.Second,
		RetryPolicy:         &temporalsdk.RetryPolicy{MaximumAttempts: 1},
	})

	// Step 1: deployment check
	var deployment *VerifyProgramResult
	err = workflow.ExecuteActivity(onceCtx, a.VerifyProgram, VerifyProgramInput{
		Program:   input.Program,
		ProgramID: input.ProgramID,
	}).Get(ctx, &deployment)
	if err != nil {
		logger.Error("program verification failed", "program", input.Program, "error", err)
		return fail("program verification failed", err)
	}

	// Step 2: single submission
	var sub *txn.Submission
	err = workflow.ExecuteActivity(onceCtx, a.SubmitInitialize, SubmitInitializeInput{
		Program:   input.Program,
		ProgramID: input.ProgramID,
	}).Get(ctx, &sub)
	if err != nil {
		logger.Error("submission failed", "program", input.Program, "error", err)
		return fail("submission failed", err)
	}
	result.Signature = sub.Signature.String()
	logger.Info("transaction submitted", "signature", result.Signature)

	// Step 3: bounded polling
	pollCtx := workflow.WithActivityOptions(ctx, workflow.ActivityOptions{
		StartToCloseTimeout: 15 * time.Second,
		RetryPolicy:         &temporalsdk.RetryPolicy{MaximumAttempts: 1},
	})

	start := workflow.Now(ctx)
	obs := txn.Observation{Signature: sub.Signature}
	kind := txn.Pending
	attempts := 0
	for attempts < maxAttempts {
		attempts++
		if err := workflow.Sleep(ctx, interval); err != nil {
			return fail("confirmation interrupted", err)
		}

		var next *txn.Observation
		err := workflow.ExecuteActivity(pollCtx, a.GetSignatureStatus, GetSignatureStatusInput{
			Signature: result.Signature,
		}).Get(ctx, &next)
		if err != nil {
			logger.Warn("status poll failed", "attempt", attempts, "error", err)
			continue
		}

		obs = txn.Merge(obs, *next)
		if kind = txn.Evaluate(obs, reached); kind != txn.Pending {
			break
		}
	}
	if kind == txn.Pending {
		kind = txn.TimedOut
	}

	result.Outcome = txn.Outcome{
		Kind:      kind,
		Signature: sub.Signature,
		Level:     obs.Level,
		Slot:      obs.Slot,
		Attempts:  attempts,
		Interval:  interval,
		Elapsed:   workflow.Now(ctx).Sub(start),
		ExecErr:   obs.Err,
	}

	// Step 4: record, best effort
	err = workflow.ExecuteActivity(recordCtx, a.RecordOutcome, RecordOutcomeInput{
		Completion: txn.Completion{
			Program:     input.Program,
			Outcome:     result.Outcome,
			CompletedAt: workflow.Now(ctx),
		},
	}).Get(ctx, nil)
	if err != nil {
		logger.Warn("failed to record outcome", "signature", result.Signature, "error", err)
	}

	logger.Info("SubmitAndConfirmWorkflow completed",
		"signature", result.Signature,
		"outcome", kind.String(),
		"attempts", attempts,
	)
	return result, nil
}
