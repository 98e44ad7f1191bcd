package txn

import (
	"fmt"

	"github.com/brojonat/txconfirm/service/solana"
)

// Level is the confirmation status of a signature. Levels are ordered; an
// observation never moves to a lower level.
type Level int

const (
	Unobserved Level = iota
	Processed
	Confirmed
	Finalized
	// Failed means the transaction landed at confirmed or better with a
	// non-nil execution error.
	Failed
)

var levelNames = [...]string{
	Unobserved: "unobserved",
	Processed:  "processed",
	Confirmed:  "confirmed",
	Finalized:  "finalized",
	Failed:     "failed",
}

func (l Level) String() string {
	if l < 0 || int(l) >= len(levelNames) {
		return fmt.Sprintf("level(%d)", int(l))
	}
	return levelNames[l]
}

// Terminal reports whether no later observation can change the level.
func (l Level) Terminal() bool {
	return l == Finalized || l == Failed
}

func (l Level) MarshalText() ([]byte, error) {
	return []byte(l.String()), nil
}

func (l *Level) UnmarshalText(b []byte) error {
	parsed, err := ParseLevel(string(b))
	if err != nil {
		return err
	}
	*l = parsed
	return nil
}

// ParseLevel is the inverse of Level.String.
func ParseLevel(s string) (Level, error) {
	for i, name := range levelNames {
		if name == s {
			return Level(i), nil
		}
	}
	return Unobserved, fmt.Errorf("unknown confirmation level %q", s)
}

// LevelOf maps an RPC status onto a Level. A status that reached confirmed
// or finalized while carrying an execution error is Failed.
func LevelOf(status solana.SignatureStatus) Level {
	if !status.Found {
		return Unobserved
	}

	var l Level
	switch status.ConfirmationStatus {
	case solana.StatusProcessed:
		l = Processed
	case solana.StatusConfirmed:
		l = Confirmed
	case solana.StatusFinalized:
		l = Finalized
	default:
		// Nodes that omit confirmationStatus report rooted slots with nil confirmations.
		if status.Confirmations == nil {
			l = Finalized
		} else {
			l = Processed
		}
	}

	if status.Err != nil && l >= Confirmed {
		return Failed
	}
	return l
}

// Predicate decides whether a level is final enough to stop polling.
type Predicate func(Level) bool

// AtLeast returns a predicate satisfied by min and every higher level.
func AtLeast(min Level) Predicate {
	return func(l Level) bool { return l >= min }
}

// PredicateFor maps a commitment name ("confirmed" or "finalized") onto an
// AtLeast predicate. Processed is not final enough to count as success.
func PredicateFor(commitment string) (Predicate, error) {
	l, err := ParseLevel(commitment)
	if err != nil || (l != Confirmed && l != Finalized) {
		return nil, fmt.Errorf("invalid confirmation commitment %q", commitment)
	}
	return AtLeast(l), nil
}
