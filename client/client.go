package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"time"
)

// ErrNotFound is returned when the server has no record of the requested resource.
var ErrNotFound = errors.New("not found")

// Submission is a recorded transaction submission and, once the
// confirmation wait has ended, its outcome.
type Submission struct {
	Signature            string     `json:"signature"`
	Program              string     `json:"program"`
	Payer                string     `json:"payer"`
	Blockhash            string     `json:"blockhash"`
	LastValidBlockHeight int64      `json:"last_valid_block_height"`
	SubmittedAt          time.Time  `json:"submitted_at"`
	Outcome              string     `json:"outcome"` // pending, confirmed, execution_failed, timed_out
	Level                string     `json:"level"`
	Slot                 *int64     `json:"slot,omitempty"`
	Attempts             int        `json:"attempts"`
	ExecError            *string    `json:"exec_error,omitempty"`
	ElapsedMs            *int64     `json:"elapsed_ms,omitempty"`
	CompletedAt          *time.Time `json:"completed_at,omitempty"`
	CreatedAt            time.Time  `json:"created_at"`
}

// Done reports whether the confirmation wait has recorded an outcome.
func (s *Submission) Done() bool {
	return s.CompletedAt != nil
}

// SubmitRequest asks the server to submit a program's initialize instruction.
// Zero values use the server's defaults.
type SubmitRequest struct {
	Program      string        `json:"program"`
	PollInterval time.Duration `json:"-"`
	MaxAttempts  int           `json:"max_attempts,omitempty"`
	Commitment   string        `json:"commitment,omitempty"`
}

// SubmissionRun identifies the workflow started for a submission.
type SubmissionRun struct {
	WorkflowID string `json:"workflow_id"`
	RunID      string `json:"run_id"`
	Program    string `json:"program"`
	ProgramID  string `json:"program_id"`
}

// Outcome is the definite result of a confirmation wait.
type Outcome struct {
	Kind      string          `json:"kind"`
	Signature string          `json:"signature"`
	Level     string          `json:"level"`
	Slot      uint64          `json:"slot,omitempty"`
	Attempts  int             `json:"attempts"`
	Interval  time.Duration   `json:"interval"`
	Elapsed   time.Duration   `json:"elapsed"`
	ExecErr   json.RawMessage `json:"exec_err,omitempty"`
}

// SubmissionResult is the completed workflow result returned by SubmitAndWait.
type SubmissionResult struct {
	Program   string  `json:"program"`
	Signature string  `json:"signature,omitempty"`
	Outcome   Outcome `json:"outcome"`
	Error     *string `json:"error,omitempty"`
}

// SignatureStatus is one live status observation.
type SignatureStatus struct {
	Signature     string          `json:"signature"`
	Level         string          `json:"level"`
	Slot          uint64          `json:"slot,omitempty"`
	Confirmations *uint64         `json:"confirmations,omitempty"`
	Err           json.RawMessage `json:"err,omitempty"`
	ObservedAt    time.Time       `json:"observed_at"`
	Terminal      bool            `json:"terminal"`
}

// ProgramStatus is the deployment state of a program account.
type ProgramStatus struct {
	Program    string `json:"program"`
	ProgramID  string `json:"program_id"`
	Deployed   bool   `json:"deployed"`
	Executable bool   `json:"executable"`
	Owner      string `json:"owner,omitempty"`
	Lamports   uint64 `json:"lamports"`
}

// ListOptions filters and paginates ListSubmissions.
type ListOptions struct {
	Program string
	Outcome string
	Limit   int
	Offset  int
}

// Client is the HTTP client for the txconfirm service.
type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     *slog.Logger
}

// NewClient creates a new service client.
func NewClient(baseURL string, httpClient *http.Client, logger *slog.Logger) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	if logger == nil {
		logger = slog.New(slog.NewJSONHandler(io.Discard, nil))
	}
	return &Client{
		baseURL:    baseURL,
		httpClient: httpClient,
		logger:     logger,
	}
}

// Submit starts a submission workflow and returns without waiting for it.
func (c *Client) Submit(ctx context.Context, req SubmitRequest) (*SubmissionRun, error) {
	var run SubmissionRun
	if err := c.submit(ctx, req, false, http.StatusAccepted, &run); err != nil {
		return nil, err
	}
	c.logger.Debug("submission started", "program", req.Program, "workflow_id", run.WorkflowID)
	return &run, nil
}

// SubmitAndWait starts a submission workflow and blocks until it completes.
// The http.Client timeout must cover the whole confirmation window.
func (c *Client) SubmitAndWait(ctx context.Context, req SubmitRequest) (*SubmissionResult, error) {
	var result SubmissionResult
	if err := c.submit(ctx, req, true, http.StatusOK, &result); err != nil {
		return nil, err
	}
	c.logger.Debug("submission completed",
		"program", req.Program,
		"signature", result.Signature,
		"outcome", result.Outcome.Kind,
	)
	return &result, nil
}

func (c *Client) submit(ctx context.Context, sr SubmitRequest, wait bool, wantStatus int, out interface{}) error {
	reqBody := map[string]interface{}{
		"program": sr.Program,
	}
	if sr.PollInterval > 0 {
		reqBody["poll_interval"] = sr.PollInterval.String()
	}
	if sr.MaxAttempts > 0 {
		reqBody["max_attempts"] = sr.MaxAttempts
	}
	if sr.Commitment != "" {
		reqBody["commitment"] = sr.Commitment
	}

	body, err := json.Marshal(reqBody)
	if err != nil {
		return fmt.Errorf("failed to marshal request: %w", err)
	}

	u := c.baseURL + "/api/v1/submissions"
	if wait {
		u += "?wait=true"
	}
	req, err := http.NewRequestWithContext(ctx, "POST", u, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	return c.do(req, wantStatus, out)
}

// GetSubmission retrieves one recorded submission by signature.
// It returns ErrNotFound (wrapped) if the server has no record yet.
func (c *Client) GetSubmission(ctx context.Context, signature string) (*Submission, error) {
	u := fmt.Sprintf("%s/api/v1/submissions/%s", c.baseURL, url.PathEscape(signature))
	req, err := http.NewRequestWithContext(ctx, "GET", u, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	var sub Submission
	if err := c.do(req, http.StatusOK, &sub); err != nil {
		return nil, err
	}
	return &sub, nil
}

// ListSubmissions lists recorded submissions, newest first.
func (c *Client) ListSubmissions(ctx context.Context, opts ListOptions) ([]*Submission, error) {
	q := url.Values{}
	if opts.Program != "" {
		q.Set("program", opts.Program)
	}
	if opts.Outcome != "" {
		q.Set("outcome", opts.Outcome)
	}
	if opts.Limit > 0 {
		q.Set("limit", strconv.Itoa(opts.Limit))
	}
	if opts.Offset > 0 {
		q.Set("offset", strconv.Itoa(opts.Offset))
	}

	u := c.baseURL + "/api/v1/submissions"
	if len(q) > 0 {
		u += "?" + q.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, "GET", u, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	var response struct {
		Submissions []*Submission `json:"submissions"`
	}
	if err := c.do(req, http.StatusOK, &response); err != nil {
		return nil, err
	}
	return response.Submissions, nil
}

// SignatureStatus asks the server to poll the cluster once for signature.
func (c *Client) SignatureStatus(ctx context.Context, signature string) (*SignatureStatus, error) {
	u := fmt.Sprintf("%s/api/v1/signatures/%s", c.baseURL, url.PathEscape(signature))
	req, err := http.NewRequestWithContext(ctx, "GET", u, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	var status SignatureStatus
	if err := c.do(req, http.StatusOK, &status); err != nil {
		return nil, err
	}
	return &status, nil
}

// ProgramStatus reports whether a program is deployed and executable.
func (c *Client) ProgramStatus(ctx context.Context, program string) (*ProgramStatus, error) {
	u := fmt.Sprintf("%s/api/v1/programs/%s", c.baseURL, url.PathEscape(program))
	req, err := http.NewRequestWithContext(ctx, "GET", u, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	var status ProgramStatus
	if err := c.do(req, http.StatusOK, &status); err != nil {
		return nil, err
	}
	return &status, nil
}

// Await polls the recorded submission every interval until its outcome is
// recorded or ctx is done. A submission the server has not recorded yet is
// treated as still pending.
func (c *Client) Await(ctx context.Context, signature string, interval time.Duration) (*Submission, error) {
	if interval <= 0 {
		interval = time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		sub, err := c.GetSubmission(ctx, signature)
		switch {
		case err == nil && sub.Done():
			return sub, nil
		case err != nil && !errors.Is(err, ErrNotFound):
			return nil, err
		}

		c.logger.Debug("submission still pending", "signature", signature)
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
		}
	}
}

func (c *Client) do(req *http.Request, wantStatus int, out interface{}) error {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != wantStatus {
		return c.parseErrorResponse(resp)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

// parseErrorResponse attempts to parse an error response from the server.
func (c *Client) parseErrorResponse(resp *http.Response) error {
	var errResp struct {
		Error string `json:"error"`
	}

	body, _ := io.ReadAll(resp.Body)
	if err := json.Unmarshal(body, &errResp); err != nil || errResp.Error == "" {
		errResp.Error = fmt.Sprintf("request failed with status %d: %s", resp.StatusCode, string(body))
	}

	if resp.StatusCode == http.StatusNotFound {
		return fmt.Errorf("%s: %w", errResp.Error, ErrNotFound)
	}
	return fmt.Errorf("request failed: %s", errResp.Error)
}
