package temporal

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"go.temporal.io/sdk/client"
)

// Starter starts submission workflows and reads their results.
// *Client implements it; MockStarter is the test double.
type Starter interface {
	StartSubmission(ctx context.Context, input SubmitAndConfirmInput) (*SubmissionRun, error)
	GetSubmissionResult(ctx context.Context, workflowID string) (*SubmitAndConfirmResult, error)
}

// SubmissionRun identifies a started workflow execution.
type SubmissionRun struct {
	WorkflowID string `json:"workflow_id"`
	RunID      string `json:"run_id"`
}

// Client is a production implementation of Starter that talks to Temporal.
type Client struct {
	client    client.Client
	taskQueue string
	logger    *slog.Logger
}

var _ Starter = (*Client)(nil)

// NewClient creates a new Temporal client.
func NewClient(host, namespace, taskQueue string, logger *slog.Logger) (*Client, error) {
	if logger == nil {
		logger = slog.Default()
	}

	logger.Info("connecting to temporal",
		"host", host,
		"namespace", namespace,
		"task_queue", taskQueue,
	)

	c, err := client.Dial(client.Options{
		HostPort:  host,
		Namespace: namespace,
		Logger:    newTemporalLogger(logger),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to Temporal: %w", err)
	}

	return &Client{
		client:    c,
		taskQueue: taskQueue,
		logger:    logger,
	}, nil
}

// StartSubmission starts a SubmitAndConfirmWorkflow under a fresh workflow ID.
func (c *Client) StartSubmission(ctx context.Context, input SubmitAndConfirmInput) (*SubmissionRun, error) {
	id := workflowID(input.Program)

	run, err := c.client.ExecuteWorkflow(ctx, client.StartWorkflowOptions{
		ID:        id,
		TaskQueue: c.taskQueue,
		Memo: map[string]interface{}{
			"program":    input.Program,
			"program_id": input.ProgramID,
			"created_by": "txconfirm",
		},
	}, SubmitAndConfirmWorkflow, input)
	if err != nil {
		c.logger.Error("failed to start submission workflow", "workflow_id", id, "error", err)
		return nil, fmt.Errorf("failed to start workflow %q: %w", id, err)
	}

	c.logger.Info("submission workflow started",
		"workflow_id", run.GetID(),
		"run_id", run.GetRunID(),
		"program", input.Program,
	)
	return &SubmissionRun{WorkflowID: run.GetID(), RunID: run.GetRunID()}, nil
}

// GetSubmissionResult blocks until the workflow completes and returns its result.
func (c *Client) GetSubmissionResult(ctx context.Context, workflowID string) (*SubmitAndConfirmResult, error) {
	var result SubmitAndConfirmResult
	if err := c.client.GetWorkflow(ctx, workflowID, "").Get(ctx, &result); err != nil {
		return nil, fmt.Errorf("workflow %q failed: %w", workflowID, err)
	}
	return &result, nil
}

// TaskQueue returns the configured task queue for this client.
func (c *Client) TaskQueue() string {
	return c.taskQueue
}

// Close closes the Temporal client connection.
func (c *Client) Close() {
	c.logger.Info("closing temporal client")
	c.client.Close()
}

func workflowID(program string) string {
	if program == "" {
		program = "program"
	}
	return "submit-" + program + "-" + uuid.NewString()
}
