package txn

import (
	"context"
	"log/slog"
	"time"

	"github.com/brojonat/txconfirm/service/metrics"
	"github.com/brojonat/txconfirm/service/solana"
	solanago "github.com/gagliardetto/solana-go"
)

const (
	DefaultPollInterval = time.Second
	DefaultMaxAttempts  = 30
)

// StatusSource answers one signature status query. *solana.Client satisfies it.
type StatusSource interface {
	SignatureStatus(ctx context.Context, sig solanago.Signature) (solana.SignatureStatus, error)
}

// Tracker waits for signatures to reach a terminal status by polling at a
// fixed interval for a bounded number of attempts.
type Tracker struct {
	source       StatusSource
	interval     time.Duration
	maxAttempts  int
	reached      Predicate
	observations *Observations
	logger       *slog.Logger
	metrics      *metrics.Metrics
	sleep        func(ctx context.Context, d time.Duration) error
}

// TrackerOption configures a Tracker.
type TrackerOption func(*Tracker)

func WithInterval(d time.Duration) TrackerOption {
	return func(t *Tracker) {
		if d > 0 {
			t.interval = d
		}
	}
}

func WithMaxAttempts(n int) TrackerOption {
	return func(t *Tracker) {
		if n > 0 {
			t.maxAttempts = n
		}
	}
}

// WithPredicate replaces the default stop condition (confirmed or finalized).
func WithPredicate(p Predicate) TrackerOption {
	return func(t *Tracker) {
		if p != nil {
			t.reached = p
		}
	}
}

// WithObservations shares an observation registry between trackers.
func WithObservations(o *Observations) TrackerOption {
	return func(t *Tracker) {
		if o != nil {
			t.observations = o
		}
	}
}

func WithMetrics(m *metrics.Metrics) TrackerOption {
	return func(t *Tracker) { t.metrics = m }
}

// WithSleep replaces the wait between polls; tests pass a function that
// returns immediately.
func WithSleep(sleep func(ctx context.Context, d time.Duration) error) TrackerOption {
	return func(t *Tracker) {
		if sleep != nil {
			t.sleep = sleep
		}
	}
}

// NewTracker polls every second for up to 30 attempts unless configured otherwise.
func NewTracker(source StatusSource, logger *slog.Logger, opts ...TrackerOption) *Tracker {
	t := &Tracker{
		source:       source,
		interval:     DefaultPollInterval,
		maxAttempts:  DefaultMaxAttempts,
		reached:      AtLeast(Confirmed),
		observations: NewObservations(),
		logger:       logger,
		sleep:        sleepContext,
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Interval returns the delay before each poll.
func (t *Tracker) Interval() time.Duration { return t.interval }

// MaxAttempts returns the poll budget of one wait.
func (t *Tracker) MaxAttempts() int { return t.maxAttempts }

// Timeout is the wall-clock bound of one wait, excluding RPC latency.
func (t *Tracker) Timeout() time.Duration {
	return t.interval * time.Duration(t.maxAttempts)
}

// Status performs one poll. Terminal observations are sticky: once a
// signature is finalized or failed, later polls return the same record.
func (t *Tracker) Status(ctx context.Context, sig solanago.Signature) (Observation, error) {
	if obs, ok := t.observations.Get(sig); ok && obs.Level.Terminal() {
		return obs, nil
	}

	status, err := t.source.SignatureStatus(ctx, sig)
	if err != nil {
		return Observation{}, err
	}

	obs := t.observations.Record(status)
	if t.metrics != nil {
		t.metrics.RecordStatusObservation(obs.Level.String())
	}
	return obs, nil
}

// Confirm waits the interval, polls, and repeats until the status is
// terminal or the attempt budget is spent. The returned error is non-nil
// only when ctx ends the wait; every other result is carried by Outcome.
// A failed poll is logged and counts as an attempt.
func (t *Tracker) Confirm(ctx context.Context, sig solanago.Signature) (Outcome, error) {
	start := time.Now()
	out := Outcome{Signature: sig, Interval: t.interval}

	for attempt := 1; attempt <= t.maxAttempts; attempt++ {
		if err := t.sleep(ctx, t.interval); err != nil {
			return out, err
		}
		out.Attempts = attempt

		obs, err := t.Status(ctx, sig)
		if err != nil {
			if ctx.Err() != nil {
				return out, ctx.Err()
			}
			t.logger.WarnContext(ctx, "signature status poll failed",
				"signature", sig.String(),
				"attempt", attempt,
				"max_attempts", t.maxAttempts,
				"error", err,
			)
			continue
		}

		out.Level = obs.Level
		out.Slot = obs.Slot

		t.logger.DebugContext(ctx, "polled signature status",
			"signature", sig.String(),
			"attempt", attempt,
			"level", obs.Level.String(),
		)

		if kind := Evaluate(obs, t.reached); kind != Pending {
			out.Kind = kind
			out.ExecErr = obs.Err
			return t.finish(ctx, out, start), nil
		}
	}

	out.Kind = TimedOut
	return t.finish(ctx, out, start), nil
}

func (t *Tracker) finish(ctx context.Context, out Outcome, start time.Time) Outcome {
	out.Elapsed = time.Since(start)
	if t.metrics != nil {
		t.metrics.RecordConfirmation(out.Kind.String(), out.Attempts, out.Elapsed.Seconds())
	}

	attrs := []any{
		"signature", out.Signature.String(),
		"outcome", out.Kind.String(),
		"level", out.Level.String(),
		"attempts", out.Attempts,
		"elapsed", out.Elapsed.String(),
	}
	switch out.Kind {
	case Succeeded:
		t.logger.InfoContext(ctx, "transaction confirmed", attrs...)
	case ExecutionFailed:
		attrs = append(attrs, "exec_err", solana.FormatExecutionError(out.ExecErr))
		t.logger.WarnContext(ctx, "transaction landed with execution error", attrs...)
	default:
		t.logger.WarnContext(ctx, "confirmation timed out", attrs...)
	}
	return out
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
