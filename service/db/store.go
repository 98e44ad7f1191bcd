package db

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"time"

	"github.com/brojonat/txconfirm/service/metrics"
	"github.com/brojonat/txconfirm/service/solana"
	"github.com/brojonat/txconfirm/service/txn"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

//go:embed schema.sql
var schema string

// ErrNotFound is returned when no submission has the requested signature.
var ErrNotFound = errors.New("submission not found")

const submissionColumns = `signature, program, payer, blockhash, last_valid_block_height, submitted_at,
	outcome, level, slot, attempts, exec_error, elapsed_ms, completed_at, created_at`

// Store persists submissions and their confirmation outcomes.
// It implements txn.Hook so a Sender can record to it directly.
type Store struct {
	pool    *pgxpool.Pool
	metrics *metrics.Metrics
}

// NewStore creates a new Store with the given database connection pool.
// m may be nil.
func NewStore(pool *pgxpool.Pool, m *metrics.Metrics) *Store {
	return &Store{pool: pool, metrics: m}
}

// Connect opens a pool for databaseURL and verifies it with a ping.
func Connect(ctx context.Context, databaseURL string) (*pgxpool.Pool, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	return pool, nil
}

// Submission is a submitted transaction and, once the wait ends, its outcome.
type Submission struct {
	Signature            string     `json:"signature"`
	Program              string     `json:"program"`
	Payer                string     `json:"payer"`
	Blockhash            string     `json:"blockhash"`
	LastValidBlockHeight int64      `json:"last_valid_block_height"`
	SubmittedAt          time.Time  `json:"submitted_at"`
	Outcome              string     `json:"outcome"`
	Level                string     `json:"level"`
	Slot                 *int64     `json:"slot,omitempty"`
	Attempts             int32      `json:"attempts"`
	ExecError            *string    `json:"exec_error,omitempty"`
	ElapsedMs            *int64     `json:"elapsed_ms,omitempty"`
	CompletedAt          *time.Time `json:"completed_at,omitempty"`
	CreatedAt            time.Time  `json:"created_at"`
}

// Pending reports whether the confirmation wait has not recorded an outcome yet.
func (s *Submission) Pending() bool {
	return s.CompletedAt == nil
}

// CreateSubmissionParams contains the parameters for recording a submission.
type CreateSubmissionParams struct {
	Signature            string
	Program              string
	Payer                string
	Blockhash            string
	LastValidBlockHeight int64
	SubmittedAt          time.Time
}

// CompleteSubmissionParams contains the outcome of a confirmation wait.
type CompleteSubmissionParams struct {
	Signature   string
	Outcome     string
	Level       string
	Slot        *int64
	Attempts    int32
	ExecError   *string
	ElapsedMs   int64
	CompletedAt time.Time
}

// ListSubmissionsParams filters and paginates ListSubmissions. Empty
// Program or Outcome match everything.
type ListSubmissionsParams struct {
	Program string
	Outcome string
	Limit   int32
	Offset  int32
}

// Migrate applies the embedded schema. It is idempotent.
func (s *Store) Migrate(ctx context.Context) error {
	start := time.Now()
	_, err := s.pool.Exec(ctx, schema)
	s.record("migrate", start, err)
	if err != nil {
		return fmt.Errorf("failed to apply schema: %w", err)
	}
	return nil
}

// CreateSubmission inserts a submission. Recording the same signature twice
// returns the existing row unchanged.
func (s *Store) CreateSubmission(ctx context.Context, params CreateSubmissionParams) (*Submission, error) {
	start := time.Now()
	row := s.pool.QueryRow(ctx, `
		INSERT INTO submissions (signature, program, payer, blockhash, last_valid_block_height, submitted_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (signature) DO UPDATE SET signature = EXCLUDED.signature
		RETURNING `+submissionColumns,
		params.Signature,
		params.Program,
		params.Payer,
		params.Blockhash,
		params.LastValidBlockHeight,
		params.SubmittedAt,
	)
	sub, err := scanSubmission(row)
	s.record("create", start, err)
	if err != nil {
		return nil, fmt.Errorf("failed to create submission %s: %w", params.Signature, err)
	}
	return sub, nil
}

// CompleteSubmission records the outcome for an existing submission.
func (s *Store) CompleteSubmission(ctx context.Context, params CompleteSubmissionParams) (*Submission, error) {
	start := time.Now()
	row := s.pool.QueryRow(ctx, `
		UPDATE submissions
		SET outcome = $2, level = $3, slot = $4, attempts = $5, exec_error = $6, elapsed_ms = $7, completed_at = $8
		WHERE signature = $1
		RETURNING `+submissionColumns,
		params.Signature,
		params.Outcome,
		params.Level,
		params.Slot,
		params.Attempts,
		params.ExecError,
		params.ElapsedMs,
		params.CompletedAt,
	)
	sub, err := scanSubmission(row)
	s.record("complete", start, err)
	if err != nil {
		return nil, err
	}
	return sub, nil
}

// GetSubmission retrieves a submission by signature.
func (s *Store) GetSubmission(ctx context.Context, signature string) (*Submission, error) {
	start := time.Now()
	row := s.pool.QueryRow(ctx, `SELECT `+submissionColumns+` FROM submissions WHERE signature = $1`, signature)
	sub, err := scanSubmission(row)
	s.record("get", start, err)
	if err != nil {
		return nil, err
	}
	return sub, nil
}

// ListSubmissions returns submissions newest first.
func (s *Store) ListSubmissions(ctx context.Context, params ListSubmissionsParams) ([]*Submission, error) {
	if params.Limit <= 0 {
		params.Limit = 50
	}

	start := time.Now()
	rows, err := s.pool.Query(ctx, `
		SELECT `+submissionColumns+`
		FROM submissions
		WHERE ($1::text = '' OR program = $1) AND ($2::text = '' OR outcome = $2)
		ORDER BY submitted_at DESC
		LIMIT $3 OFFSET $4`,
		params.Program,
		params.Outcome,
		params.Limit,
		params.Offset,
	)
	if err != nil {
		s.record("list", start, err)
		return nil, fmt.Errorf("failed to list submissions: %w", err)
	}
	defer rows.Close()

	subs := make([]*Submission, 0)
	for rows.Next() {
		sub, err := scanSubmission(rows)
		if err != nil {
			s.record("list", start, err)
			return nil, err
		}
		subs = append(subs, sub)
	}
	err = rows.Err()
	s.record("list", start, err)
	if err != nil {
		return nil, fmt.Errorf("failed to list submissions: %w", err)
	}
	return subs, nil
}

// Submitted records an accepted transaction.
func (s *Store) Submitted(ctx context.Context, sub txn.Submission) error {
	_, err := s.CreateSubmission(ctx, CreateSubmissionParamsFrom(sub))
	return err
}

// Completed records the outcome of a confirmation wait.
func (s *Store) Completed(ctx context.Context, c txn.Completion) error {
	_, err := s.CompleteSubmission(ctx, CompleteSubmissionParamsFrom(c))
	return err
}

// CreateSubmissionParamsFrom converts a sender submission event.
func CreateSubmissionParamsFrom(sub txn.Submission) CreateSubmissionParams {
	return CreateSubmissionParams{
		Signature:            sub.Signature.String(),
		Program:              sub.Program,
		Payer:                sub.Payer.String(),
		Blockhash:            sub.Blockhash.String(),
		LastValidBlockHeight: int64(sub.LastValidBlockHeight),
		SubmittedAt:          sub.SubmittedAt,
	}
}

// CompleteSubmissionParamsFrom converts a sender completion event.
func CompleteSubmissionParamsFrom(c txn.Completion) CompleteSubmissionParams {
	out := c.Outcome
	params := CompleteSubmissionParams{
		Signature:   out.Signature.String(),
		Outcome:     out.Kind.String(),
		Level:       out.Level.String(),
		Attempts:    int32(out.Attempts),
		ElapsedMs:   out.Elapsed.Milliseconds(),
		CompletedAt: c.CompletedAt,
	}
	if out.Slot > 0 {
		slot := int64(out.Slot)
		params.Slot = &slot
	}
	if out.ExecErr != nil {
		msg := solana.FormatExecutionError(out.ExecErr)
		params.ExecError = &msg
	}
	return params
}

type scanner interface {
	Scan(dest ...any) error
}

func scanSubmission(row scanner) (*Submission, error) {
	var sub Submission
	err := row.Scan(
		&sub.Signature,
		&sub.Program,
		&sub.Payer,
		&sub.Blockhash,
		&sub.LastValidBlockHeight,
		&sub.SubmittedAt,
		&sub.Outcome,
		&sub.Level,
		&sub.Slot,
		&sub.Attempts,
		&sub.ExecError,
		&sub.ElapsedMs,
		&sub.CompletedAt,
		&sub.CreatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan submission: %w", err)
	}
	return &sub, nil
}

func (s *Store) record(operation string, start time.Time, err error) {
	if s.metrics == nil {
		return
	}
	if errors.Is(err, ErrNotFound) {
		err = nil
	}
	s.metrics.RecordDBQuery(operation, "submissions", time.Since(start).Seconds(), err)
}
