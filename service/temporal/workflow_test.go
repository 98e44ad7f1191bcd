package temporal

import (
	"errors"
	"testing"
	"time"

	"github.com/brojonat/txconfirm/service/txn"
	solanago "github.com/gagliardetto/solana-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	temporalsdk "go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/testsuite"
)

var testSignature = solanago.Signature{7, 7, 7}

func testInput() SubmitAndConfirmInput {
	return SubmitAndConfirmInput{
		Program:      "bun_kit",
		ProgramID:    "91fD8V2tNaVWcK8Mhk3xc6kzsnbevrFp77yLUtqn8DXA",
		PollInterval: time.Second,
		MaxAttempts:  5,
		Commitment:   "confirmed",
	}
}

func testSubmission() *txn.Submission {
	return &txn.Submission{
		Signature:            testSignature,
		Program:              "bun_kit",
		Blockhash:            solanago.MustHashFromBase58("4NCYB3kRT8sCNodPNuCZo8VUh4xqpBQxsxed2wd9xaD4"),
		LastValidBlockHeight: 150,
	}
}

func observed(level txn.Level, execErr any) *txn.Observation {
	return &txn.Observation{Signature: testSignature, Level: level, Slot: 100, Err: execErr}
}

func TestSubmitAndConfirmWorkflow(t *testing.T) {
	tests := []struct {
		name           string
		input          SubmitAndConfirmInput
		mockActivities func(*testing.T, *testsuite.TestWorkflowEnvironment, *Activities)
		expectedError  bool
		validateResult func(*testing.T, *SubmitAndConfirmResult)
	}{
		{
			name:  "confirmed after processed",
			input: testInput(),
			mockActivities: func(t *testing.T, env *testsuite.TestWorkflowEnvironment, acts *Activities) {
				env.OnActivity(acts.VerifyProgram, mock.Anything, mock.Anything).Return(&VerifyProgramResult{Executable: true}, nil)
				env.OnActivity(acts.SubmitInitialize, mock.Anything, mock.Anything).Return(testSubmission(), nil)
				env.OnActivity(acts.GetSignatureStatus, mock.Anything, GetSignatureStatusInput{Signature: testSignature.String()}).
					Return(observed(txn.Unobserved, nil), nil).Once()
				env.OnActivity(acts.GetSignatureStatus, mock.Anything, mock.Anything).
					Return(observed(txn.Processed, nil), nil).Once()
				env.OnActivity(acts.GetSignatureStatus, mock.Anything, mock.Anything).
					Return(observed(txn.Confirmed, nil), nil).Once()
				env.OnActivity(acts.RecordOutcome, mock.Anything, mock.MatchedBy(func(in RecordOutcomeInput) bool {
					return in.Completion.Program == "bun_kit" && in.Completion.Outcome.Kind == txn.Succeeded
				})).Return(nil).Once()
			},
			validateResult: func(t *testing.T, result *SubmitAndConfirmResult) {
				assert.Equal(t, testSignature.String(), result.Signature)
				assert.Equal(t, txn.Succeeded, result.Outcome.Kind)
				assert.Equal(t, txn.Confirmed, result.Outcome.Level)
				assert.Equal(t, 3, result.Outcome.Attempts)
				assert.GreaterOrEqual(t, result.Outcome.Elapsed, 3*time.Second)
				assert.Nil(t, result.Error)
			},
		},
		{
			name:  "execution error is an outcome",
			input: testInput(),
			mockActivities: func(t *testing.T, env *testsuite.TestWorkflowEnvironment, acts *Activities) {
				env.OnActivity(acts.VerifyProgram, mock.Anything, mock.Anything).Return(&VerifyProgramResult{Executable: true}, nil)
				env.OnActivity(acts.SubmitInitialize, mock.Anything, mock.Anything).Return(testSubmission(), nil)
				env.OnActivity(acts.GetSignatureStatus, mock.Anything, mock.Anything).
					Return(observed(txn.Failed, map[string]any{"InstructionError": []any{0, map[string]any{"Custom": 6000}}}), nil)
				env.OnActivity(acts.RecordOutcome, mock.Anything, mock.Anything).Return(nil)
			},
			validateResult: func(t *testing.T, result *SubmitAndConfirmResult) {
				assert.Equal(t, txn.ExecutionFailed, result.Outcome.Kind)
				assert.Equal(t, 1, result.Outcome.Attempts)
				assert.NotNil(t, result.Outcome.ExecErr)
				var execErr *txn.ExecutionError
				assert.ErrorAs(t, result.Outcome.AsError(), &execErr)
			},
		},
		{
			name:  "times out after exactly max attempts",
			input: testInput(),
			mockActivities: func(t *testing.T, env *testsuite.TestWorkflowEnvironment, acts *Activities) {
				env.OnActivity(acts.VerifyProgram, mock.Anything, mock.Anything).Return(&VerifyProgramResult{Executable: true}, nil)
				env.OnActivity(acts.SubmitInitialize, mock.Anything, mock.Anything).Return(testSubmission(), nil)
				env.OnActivity(acts.GetSignatureStatus, mock.Anything, mock.Anything).
					Return(observed(txn.Processed, nil), nil).Times(5)
				env.OnActivity(acts.RecordOutcome, mock.Anything, mock.Anything).Return(nil)
			},
			validateResult: func(t *testing.T, result *SubmitAndConfirmResult) {
				assert.Equal(t, txn.TimedOut, result.Outcome.Kind)
				assert.Equal(t, 5, result.Outcome.Attempts)
				assert.Equal(t, txn.Processed, result.Outcome.Level)
				assert.GreaterOrEqual(t, result.Outcome.Elapsed, 5*time.Second)
				var timeoutErr *txn.TimeoutError
				assert.ErrorAs(t, result.Outcome.AsError(), &timeoutErr)
			},
		},
		{
			name: "finalized commitment waits past confirmed",
			input: func() SubmitAndConfirmInput {
				in := testInput()
				in.Commitment = "finalized"
				return in
			}(),
			mockActivities: func(t *testing.T, env *testsuite.TestWorkflowEnvironment, acts *Activities) {
				env.OnActivity(acts.VerifyProgram, mock.Anything, mock.Anything).Return(&VerifyProgramResult{Executable: true}, nil)
				env.OnActivity(acts.SubmitInitialize, mock.Anything, mock.Anything).Return(testSubmission(), nil)
				env.OnActivity(acts.GetSignatureStatus, mock.Anything, mock.Anything).
					Return(observed(txn.Confirmed, nil), nil).Twice()
				env.OnActivity(acts.GetSignatureStatus, mock.Anything, mock.Anything).
					Return(observed(txn.Finalized, nil), nil).Once()
				env.OnActivity(acts.RecordOutcome, mock.Anything, mock.Anything).Return(nil)
			},
			validateResult: func(t *testing.T, result *SubmitAndConfirmResult) {
				assert.Equal(t, txn.Succeeded, result.Outcome.Kind)
				assert.Equal(t, txn.Finalized, result.Outcome.Level)
				assert.Equal(t, 3, result.Outcome.Attempts)
			},
		},
		{
			name:  "poll errors consume attempts",
			input: testInput(),
			mockActivities: func(t *testing.T, env *testsuite.TestWorkflowEnvironment, acts *Activities) {
				env.OnActivity(acts.VerifyProgram, mock.Anything, mock.Anything).Return(&VerifyProgramResult{Executable: true}, nil)
				env.OnActivity(acts.SubmitInitialize, mock.Anything, mock.Anything).Return(testSubmission(), nil)
				env.OnActivity(acts.GetSignatureStatus, mock.Anything, mock.Anything).
					Return(nil, errors.New("connection reset by peer")).Times(4)
				env.OnActivity(acts.GetSignatureStatus, mock.Anything, mock.Anything).
					Return(observed(txn.Confirmed, nil), nil).Once()
				env.OnActivity(acts.RecordOutcome, mock.Anything, mock.Anything).Return(nil)
			},
			validateResult: func(t *testing.T, result *SubmitAndConfirmResult) {
				assert.Equal(t, txn.Succeeded, result.Outcome.Kind)
				assert.Equal(t, 5, result.Outcome.Attempts)
			},
		},
		{
			name:  "record failure does not fail the workflow",
			input: testInput(),
			mockActivities: func(t *testing.T, env *testsuite.TestWorkflowEnvironment, acts *Activities) {
				env.OnActivity(acts.VerifyProgram, mock.Anything, mock.Anything).Return(&VerifyProgramResult{Executable: true}, nil)
				env.OnActivity(acts.SubmitInitialize, mock.Anything, mock.Anything).Return(testSubmission(), nil)
				env.OnActivity(acts.GetSignatureStatus, mock.Anything, mock.Anything).Return(observed(txn.Finalized, nil), nil)
				env.OnActivity(acts.RecordOutcome, mock.Anything, mock.Anything).Return(errors.New("database unavailable"))
			},
			validateResult: func(t *testing.T, result *SubmitAndConfirmResult) {
				assert.Equal(t, txn.Succeeded, result.Outcome.Kind)
			},
		},
		{
			name:  "program not deployed aborts before submission",
			input: testInput(),
			mockActivities: func(t *testing.T, env *testsuite.TestWorkflowEnvironment, acts *Activities) {
				env.OnActivity(acts.VerifyProgram, mock.Anything, mock.Anything).Return(nil,
					temporalsdk.NewNonRetryableApplicationError("program 91fD8V2tNaVWcK8Mhk3xc6kzsnbevrFp77yLUtqn8DXA is not deployed; run 'anchor deploy' first", ErrTypeSetup, nil))
				env.OnActivity(acts.SubmitInitialize, mock.Anything, mock.Anything).Run(func(args mock.Arguments) {
					t.Error("SubmitInitialize must not run when the program is not deployed")
				}).Return(testSubmission(), nil)
			},
			expectedError: true,
		},
		{
			name:  "rejected submission is not polled",
			input: testInput(),
			mockActivities: func(t *testing.T, env *testsuite.TestWorkflowEnvironment, acts *Activities) {
				env.OnActivity(acts.VerifyProgram, mock.Anything, mock.Anything).Return(&VerifyProgramResult{Executable: true}, nil)
				env.OnActivity(acts.SubmitInitialize, mock.Anything, mock.Anything).Return(nil,
					temporalsdk.NewNonRetryableApplicationError("transaction rejected: blockhash not found", ErrTypeSubmission, nil)).Once()
				env.OnActivity(acts.GetSignatureStatus, mock.Anything, mock.Anything).Run(func(args mock.Arguments) {
					t.Error("GetSignatureStatus must not run after a rejected submission")
				}).Return(observed(txn.Confirmed, nil), nil)
			},
			expectedError: true,
		},
		{
			name: "processed commitment is rejected",
			input: func() SubmitAndConfirmInput {
				in := testInput()
				in.Commitment = "processed"
				return in
			}(),
			mockActivities: func(t *testing.T, env *testsuite.TestWorkflowEnvironment, acts *Activities) {},
			expectedError:  true,
		},
		{
			name: "invalid commitment",
			input: func() SubmitAndConfirmInput {
				in := testInput()
				in.Commitment = "eventually"
				return in
			}(),
			mockActivities: func(t *testing.T, env *testsuite.TestWorkflowEnvironment, acts *Activities) {},
			expectedError:  true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			testSuite := &testsuite.WorkflowTestSuite{}
			env := testSuite.NewTestWorkflowEnvironment()

			activities := &Activities{}
			register(env, activities)
			tt.mockActivities(t, env, activities)

			env.ExecuteWorkflow(SubmitAndConfirmWorkflow, tt.input)

			require.True(t, env.IsWorkflowCompleted())
			if tt.expectedError {
				assert.Error(t, env.GetWorkflowError())
				return
			}

			require.NoError(t, env.GetWorkflowError())
			var result SubmitAndConfirmResult
			require.NoError(t, env.GetWorkflowResult(&result))
			if tt.validateResult != nil {
				tt.validateResult(t, &result)
			}
			env.AssertExpectations(t)
		})
	}
}

func TestSubmitAndConfirmWorkflow_Defaults(t *testing.T) {
	testSuite := &testsuite.WorkflowTestSuite{}
	env := testSuite.NewTestWorkflowEnvironment()

	activities := &Activities{}
	register(env, activities)

	env.OnActivity(activities.VerifyProgram, mock.Anything, mock.Anything).Return(&VerifyProgramResult{Executable: true}, nil)
	env.OnActivity(activities.SubmitInitialize, mock.Anything, mock.Anything).Return(testSubmission(), nil)
	env.OnActivity(activities.GetSignatureStatus, mock.Anything, mock.Anything).Return(observed(txn.Unobserved, nil), nil)
	env.OnActivity(activities.RecordOutcome, mock.Anything, mock.Anything).Return(nil)

	startTime := env.Now()
	env.ExecuteWorkflow(SubmitAndConfirmWorkflow, SubmitAndConfirmInput{Program: "bun_kit"})

	require.NoError(t, env.GetWorkflowError())
	var result SubmitAndConfirmResult
	require.NoError(t, env.GetWorkflowResult(&result))

	assert.Equal(t, txn.TimedOut, result.Outcome.Kind)
	assert.Equal(t, txn.DefaultMaxAttempts, result.Outcome.Attempts)
	assert.Equal(t, txn.DefaultPollInterval, result.Outcome.Interval)
	assert.GreaterOrEqual(t, env.Now().Sub(startTime), time.Duration(txn.DefaultMaxAttempts)*txn.DefaultPollInterval)
}

func TestSubmitAndConfirmWorkflow_SetupFailureIsNotRetried(t *testing.T) {
	testSuite := &testsuite.WorkflowTestSuite{}
	env := testSuite.NewTestWorkflowEnvironment()

	activities := &Activities{}
	register(env, activities)

	verifyCalls := 0
	env.OnActivity(activities.VerifyProgram, mock.Anything, mock.Anything).Run(func(args mock.Arguments) {
		verifyCalls++
	}).Return(nil, errors.New("connection refused"))
	env.OnActivity(activities.SubmitInitialize, mock.Anything, mock.Anything).Run(func(args mock.Arguments) {
		t.Error("SubmitInitialize must not run after a failed deployment check")
	}).Return(testSubmission(), nil)

	env.ExecuteWorkflow(SubmitAndConfirmWorkflow, testInput())

	require.True(t, env.IsWorkflowCompleted())
	assert.Error(t, env.GetWorkflowError())
	assert.Equal(t, 1, verifyCalls)
}
