package txn

import (
	"fmt"
	"time"

	solanago "github.com/gagliardetto/solana-go"
)

// Kind tags the result of a confirmation wait.
type Kind int

const (
	// Pending is only returned by Evaluate; it means keep polling.
	Pending Kind = iota
	Succeeded
	ExecutionFailed
	TimedOut
)

var kindNames = [...]string{
	Pending:         "pending",
	Succeeded:       "confirmed",
	ExecutionFailed: "execution_failed",
	TimedOut:        "timed_out",
}

func (k Kind) String() string {
	if k < 0 || int(k) >= len(kindNames) {
		return fmt.Sprintf("kind(%d)", int(k))
	}
	return kindNames[k]
}

func (k Kind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

func (k *Kind) UnmarshalText(b []byte) error {
	for i, name := range kindNames {
		if name == string(b) {
			*k = Kind(i)
			return nil
		}
	}
	return fmt.Errorf("unknown outcome kind %q", string(b))
}

// Evaluate decides what one observation means for a wait that stops at
// levels satisfying reached. Success needs both a reached level and an
// empty error payload.
func Evaluate(obs Observation, reached Predicate) Kind {
	switch {
	case obs.Level == Failed:
		return ExecutionFailed
	case obs.Level == Unobserved || !reached(obs.Level):
		return Pending
	case obs.Err != nil:
		return ExecutionFailed
	default:
		return Succeeded
	}
}

// Outcome is the definite result of a confirmation wait.
type Outcome struct {
	Kind      Kind               `json:"kind"`
	Signature solanago.Signature `json:"signature"`
	Level     Level              `json:"level"`
	Slot      uint64             `json:"slot,omitempty"`
	Attempts  int                `json:"attempts"`
	Interval  time.Duration      `json:"interval"`
	Elapsed   time.Duration      `json:"elapsed"`
	ExecErr   any                `json:"exec_err,omitempty"`
}

// OK reports a confirmed transaction whose program succeeded.
func (o Outcome) OK() bool { return o.Kind == Succeeded }

// AsError returns nil on success, *ExecutionError or *TimeoutError otherwise.
func (o Outcome) AsError() error {
	switch o.Kind {
	case Succeeded:
		return nil
	case ExecutionFailed:
		return &ExecutionError{Signature: o.Signature, Level: o.Level, Payload: o.ExecErr}
	case TimedOut:
		return &TimeoutError{Signature: o.Signature, Attempts: o.Attempts, Interval: o.Interval, LastLevel: o.Level}
	default:
		return fmt.Errorf("confirmation of %s still pending", o.Signature)
	}
}
