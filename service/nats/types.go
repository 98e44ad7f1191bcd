package nats

import (
	"time"

	"github.com/brojonat/txconfirm/service/solana"
	"github.com/brojonat/txconfirm/service/txn"
)

// Event types.
const (
	EventSubmitted = "submitted"
	EventCompleted = "completed"
)

// OutcomeEvent is published to the subject "confirmations.{program}" in JetStream
// when a submission is accepted and again when its confirmation wait ends.
type OutcomeEvent struct {
	Type      string `json:"type"`
	Signature string `json:"signature"`
	Program   string `json:"program"`

	// Set on submitted events
	Payer                string `json:"payer,omitempty"`
	Blockhash            string `json:"blockhash,omitempty"`
	LastValidBlockHeight uint64 `json:"last_valid_block_height,omitempty"`

	// Set on completed events
	Outcome   string  `json:"outcome,omitempty"`
	Level     string  `json:"level,omitempty"`
	Slot      uint64  `json:"slot,omitempty"`
	Attempts  int     `json:"attempts,omitempty"`
	ElapsedMs int64   `json:"elapsed_ms,omitempty"`
	ExecError *string `json:"exec_error,omitempty"`

	Timestamp   time.Time `json:"timestamp"`
	PublishedAt time.Time `json:"published_at"`
}

// FromSubmission converts a sender submission to an event.
func FromSubmission(sub txn.Submission) *OutcomeEvent {
	return &OutcomeEvent{
		Type:                 EventSubmitted,
		Signature:            sub.Signature.String(),
		Program:              sub.Program,
		Payer:                sub.Payer.String(),
		Blockhash:            sub.Blockhash.String(),
		LastValidBlockHeight: sub.LastValidBlockHeight,
		Timestamp:            sub.SubmittedAt,
		PublishedAt:          time.Now().UTC(),
	}
}

// FromCompletion converts a sender completion to an event.
func FromCompletion(c txn.Completion) *OutcomeEvent {
	event := &OutcomeEvent{
		Type:        EventCompleted,
		Signature:   c.Outcome.Signature.String(),
		Program:     c.Program,
		Outcome:     c.Outcome.Kind.String(),
		Level:       c.Outcome.Level.String(),
		Slot:        c.Outcome.Slot,
		Attempts:    c.Outcome.Attempts,
		ElapsedMs:   c.Outcome.Elapsed.Milliseconds(),
		Timestamp:   c.CompletedAt,
		PublishedAt: time.Now().UTC(),
	}
	if c.Outcome.ExecErr != nil {
		msg := solana.FormatExecutionError(c.Outcome.ExecErr)
		event.ExecError = &msg
	}
	return event
}
