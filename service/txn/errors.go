package txn

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/brojonat/txconfirm/service/solana"
	solanago "github.com/gagliardetto/solana-go"
)

var (
	ErrNoInstructions = errors.New("transaction has no instructions")
	ErrInvalidAnchor  = errors.New("lifetime anchor has no blockhash")
	ErrNoPayer        = errors.New("transaction has no fee payer")
	ErrIntentConsumed = errors.New("intent has already been signed")
	ErrNotDeployed    = errors.New("program is not deployed")
)

// SetupError aborts a scenario before any transaction is attempted.
type SetupError struct {
	Program solanago.PublicKey
	Err     error
}

func (e *SetupError) Error() string {
	if errors.Is(e.Err, ErrNotDeployed) {
		return fmt.Sprintf("program %s is not deployed; run 'anchor deploy' first", e.Program)
	}
	return fmt.Sprintf("setup failed for program %s: %v", e.Program, e.Err)
}

func (e *SetupError) Unwrap() error { return e.Err }

// AirdropError records a faucet failure. Setup tolerates it.
type AirdropError struct {
	Address  solanago.PublicKey
	Lamports uint64
	Attempts int
	Err      error
}

func (e *AirdropError) Error() string {
	return fmt.Sprintf("airdrop of %d lamports to %s failed after %d attempt(s): %v",
		e.Lamports, e.Address, e.Attempts, e.Err)
}

func (e *AirdropError) Unwrap() error { return e.Err }

// SigningError means a required signer was not supplied, or signing itself failed.
type SigningError struct {
	Missing []solanago.PublicKey
	Err     error
}

func (e *SigningError) Error() string {
	if len(e.Missing) > 0 {
		keys := make([]string, len(e.Missing))
		for i, k := range e.Missing {
			keys[i] = k.String()
		}
		return fmt.Sprintf("missing required signer(s): %s", strings.Join(keys, ", "))
	}
	return fmt.Sprintf("signing failed: %v", e.Err)
}

func (e *SigningError) Unwrap() error { return e.Err }

// SubmissionError is an outright rejection by the node. The transaction is
// not rebuilt or resubmitted.
type SubmissionError struct {
	Blockhash solanago.Hash
	Err       error
}

func (e *SubmissionError) Error() string {
	return fmt.Sprintf("transaction rejected: %v", e.Err)
}

func (e *SubmissionError) Unwrap() error { return e.Err }

// ExecutionError means the transaction landed but the program failed.
type ExecutionError struct {
	Signature solanago.Signature
	Level     Level
	Payload   any
}

func (e *ExecutionError) Error() string {
	return fmt.Sprintf("transaction %s landed (%s) with execution error: %s",
		e.Signature, e.Level, solana.FormatExecutionError(e.Payload))
}

// TimeoutError means the attempt budget ran out with no terminal status.
// The outcome of the transaction is unknown.
type TimeoutError struct {
	Signature solanago.Signature
	Attempts  int
	Interval  time.Duration
	LastLevel Level
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("transaction %s not confirmed after %d attempts at %s (last seen: %s)",
		e.Signature, e.Attempts, e.Interval, e.LastLevel)
}
