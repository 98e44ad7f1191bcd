package txn

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/brojonat/txconfirm/service/metrics"
	"github.com/brojonat/txconfirm/service/solana"
	solanago "github.com/gagliardetto/solana-go"
)

// Network is the RPC surface the sender needs. *solana.Client satisfies it.
type Network interface {
	StatusSource
	LatestAnchor(ctx context.Context) (solana.Anchor, error)
	Submit(ctx context.Context, tx *solanago.Transaction, opts solana.SubmitOptions) (solanago.Signature, error)
}

// Submission describes a transaction the node accepted for broadcast.
type Submission struct {
	Signature            solanago.Signature `json:"signature"`
	Program              string             `json:"program"`
	Payer                solanago.PublicKey `json:"payer"`
	Blockhash            solanago.Hash      `json:"blockhash"`
	LastValidBlockHeight uint64             `json:"last_valid_block_height"`
	SubmittedAt          time.Time          `json:"submitted_at"`
}

// Completion describes the end of a confirmation wait.
type Completion struct {
	Program     string    `json:"program"`
	Outcome     Outcome   `json:"outcome"`
	CompletedAt time.Time `json:"completed_at"`
}

// Hook is notified as submissions progress. Hook errors are logged and never
// change the result of a submission.
type Hook interface {
	Submitted(ctx context.Context, s Submission) error
	Completed(ctx context.Context, c Completion) error
}

// Request is one transaction to send.
type Request struct {
	// Program labels the submission in metrics, logs and hooks.
	Program      string
	Payer        solanago.PublicKey
	Instructions []solanago.Instruction
	Signers      []Signer
}

// Result is a submitted transaction and, after confirmation, its outcome.
type Result struct {
	Submission Submission
	Signed     *Signed
	Outcome    Outcome
}

// Sender runs fetch anchor, build, sign, submit and confirm as one sequential flow.
type Sender struct {
	network    Network
	tracker    *Tracker
	submitOpts solana.SubmitOptions
	hooks      []Hook
	logger     *slog.Logger
	metrics    *metrics.Metrics
	now        func() time.Time
}

// SenderOption configures a Sender.
type SenderOption func(*Sender)

func WithSubmitOptions(opts solana.SubmitOptions) SenderOption {
	return func(s *Sender) { s.submitOpts = opts }
}

func WithHooks(hooks ...Hook) SenderOption {
	return func(s *Sender) { s.hooks = append(s.hooks, hooks...) }
}

func WithSenderMetrics(m *metrics.Metrics) SenderOption {
	return func(s *Sender) { s.metrics = m }
}

func NewSender(network Network, tracker *Tracker, logger *slog.Logger, opts ...SenderOption) *Sender {
	s := &Sender{
		network:    network,
		tracker:    tracker,
		submitOpts: solana.DefaultSubmitOptions(),
		logger:     logger,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Tracker returns the tracker used for confirmation.
func (s *Sender) Tracker() *Tracker { return s.tracker }

// Submit fetches a fresh anchor, builds, signs and submits. It does not wait
// for confirmation and does not resubmit when the node rejects the transaction.
func (s *Sender) Submit(ctx context.Context, req Request) (*Result, error) {
	if len(req.Instructions) == 0 {
		s.recordSubmission(req.Program, "build_failed")
		return nil, ErrNoInstructions
	}

	anchor, err := s.network.LatestAnchor(ctx)
	if err != nil {
		s.recordSubmission(req.Program, "build_failed")
		return nil, fmt.Errorf("failed to fetch lifetime anchor: %w", err)
	}

	intent, err := NewIntent(req.Payer, anchor, req.Instructions...)
	if err != nil {
		s.recordSubmission(req.Program, "build_failed")
		return nil, err
	}

	signed, err := Sign(intent, req.Signers...)
	if err != nil {
		s.recordSubmission(req.Program, "sign_failed")
		return nil, err
	}

	sig, err := s.network.Submit(ctx, signed.Transaction(), s.submitOpts)
	if err != nil {
		s.recordSubmission(req.Program, "rejected")
		s.logger.WarnContext(ctx, "transaction rejected",
			"program", req.Program,
			"signature", signed.Signature().String(),
			"error", err,
		)
		return nil, &SubmissionError{Blockhash: anchor.Blockhash, Err: err}
	}
	s.recordSubmission(req.Program, "accepted")

	if sig != signed.Signature() {
		s.logger.WarnContext(ctx, "node returned unexpected signature",
			"expected", signed.Signature().String(),
			"got", sig.String(),
		)
	}

	sub := Submission{
		Signature:            signed.Signature(),
		Program:              req.Program,
		Payer:                req.Payer,
		Blockhash:            anchor.Blockhash,
		LastValidBlockHeight: anchor.LastValidBlockHeight,
		SubmittedAt:          s.now(),
	}
	for _, h := range s.hooks {
		if err := h.Submitted(ctx, sub); err != nil {
			s.logger.WarnContext(ctx, "submission hook failed", "signature", sub.Signature.String(), "error", err)
		}
	}

	return &Result{Submission: sub, Signed: signed}, nil
}

// SendAndConfirm submits and then waits for a terminal status. Build, sign,
// submit and context errors are returned as errors; confirmation results,
// including execution failures and timeouts, are carried by Result.Outcome.
func (s *Sender) SendAndConfirm(ctx context.Context, req Request) (*Result, error) {
	res, err := s.Submit(ctx, req)
	if err != nil {
		return nil, err
	}

	outcome, err := s.tracker.Confirm(ctx, res.Submission.Signature)
	if err != nil {
		return res, fmt.Errorf("confirmation of %s interrupted: %w", res.Submission.Signature, err)
	}
	res.Outcome = outcome

	completion := Completion{Program: req.Program, Outcome: outcome, CompletedAt: s.now()}
	for _, h := range s.hooks {
		if err := h.Completed(ctx, completion); err != nil {
			s.logger.WarnContext(ctx, "completion hook failed", "signature", outcome.Signature.String(), "error", err)
		}
	}
	return res, nil
}

func (s *Sender) recordSubmission(program, status string) {
	if s.metrics != nil {
		s.metrics.RecordSubmission(program, status)
	}
}

// IsSetupError reports whether err should abort a scenario before any
// transaction is sent.
func IsSetupError(err error) bool {
	var setupErr *SetupError
	return errors.As(err, &setupErr)
}
