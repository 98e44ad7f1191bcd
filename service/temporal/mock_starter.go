package temporal

import (
	"context"
	"fmt"
	"sync"
)

// MockStarter is a mock implementation of Starter for testing. Started
// workflows complete immediately with Result.
type MockStarter struct {
	mu       sync.Mutex
	started  map[string]SubmitAndConfirmInput
	results  map[string]*SubmitAndConfirmResult
	next     int
	startErr error

	// Result is returned for every workflow started after it is set.
	Result *SubmitAndConfirmResult
}

var _ Starter = (*MockStarter)(nil)

// NewMockStarter creates a new MockStarter.
func NewMockStarter() *MockStarter {
	return &MockStarter{
		started: make(map[string]SubmitAndConfirmInput),
		results: make(map[string]*SubmitAndConfirmResult),
	}
}

// StartSubmission records the input under a sequential workflow ID.
func (m *MockStarter) StartSubmission(ctx context.Context, input SubmitAndConfirmInput) (*SubmissionRun, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.startErr != nil {
		return nil, m.startErr
	}

	m.next++
	id := fmt.Sprintf("submit-%s-%d", input.Program, m.next)
	m.started[id] = input
	if m.Result != nil {
		r := *m.Result
		m.results[id] = &r
	}
	return &SubmissionRun{WorkflowID: id, RunID: fmt.Sprintf("run-%d", m.next)}, nil
}

// GetSubmissionResult returns the recorded result for workflowID.
func (m *MockStarter) GetSubmissionResult(ctx context.Context, workflowID string) (*SubmitAndConfirmResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.started[workflowID]; !ok {
		return nil, fmt.Errorf("workflow %q not found", workflowID)
	}
	r, ok := m.results[workflowID]
	if !ok {
		return nil, fmt.Errorf("workflow %q has no result", workflowID)
	}
	return r, nil
}

// SetStartError makes StartSubmission fail with err.
func (m *MockStarter) SetStartError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.startErr = err
}

// Started returns the input recorded for workflowID.
func (m *MockStarter) Started(workflowID string) (SubmitAndConfirmInput, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	input, ok := m.started[workflowID]
	return input, ok
}

// StartedCount returns the number of workflows started.
func (m *MockStarter) StartedCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.started)
}
