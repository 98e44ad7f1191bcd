package temporal

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/brojonat/txconfirm/service/program"
	"github.com/brojonat/txconfirm/service/solana"
	"github.com/brojonat/txconfirm/service/txn"
	solanago "github.com/gagliardetto/solana-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	temporalsdk "go.temporal.io/sdk/temporal"
)

// Mock cluster
type MockCluster struct {
	mock.Mock
}

func (m *MockCluster) AccountInfo(ctx context.Context, address solanago.PublicKey) (solana.AccountInfo, error) {
	args := m.Called(ctx, address)
	return args.Get(0).(solana.AccountInfo), args.Error(1)
}

func (m *MockCluster) SignatureStatus(ctx context.Context, sig solanago.Signature) (solana.SignatureStatus, error) {
	args := m.Called(ctx, sig)
	return args.Get(0).(solana.SignatureStatus), args.Error(1)
}

// Mock submitter
type MockSubmitter struct {
	mock.Mock
}

func (m *MockSubmitter) Submit(ctx context.Context, req txn.Request) (*txn.Result, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*txn.Result), args.Error(1)
}

// Mock hook
type MockHook struct {
	mock.Mock
}

func (m *MockHook) Submitted(ctx context.Context, s txn.Submission) error {
	return m.Called(ctx, s).Error(0)
}

func (m *MockHook) Completed(ctx context.Context, c txn.Completion) error {
	return m.Called(ctx, c).Error(0)
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func isNonRetryable(t *testing.T, err error, errType string) {
	t.Helper()
	var appErr *temporalsdk.ApplicationError
	require.ErrorAs(t, err, &appErr)
	assert.True(t, appErr.NonRetryable())
	assert.Equal(t, errType, appErr.Type())
}

func TestActivities_VerifyProgram(t *testing.T) {
	tests := []struct {
		name      string
		input     VerifyProgramInput
		setupMock func(*MockCluster)
		errType   string
		wantErr   bool
	}{
		{
			name:  "deployed",
			input: VerifyProgramInput{Program: "bun_kit"},
			setupMock: func(m *MockCluster) {
				m.On("AccountInfo", mock.Anything, program.BunKit.ID).
					Return(solana.AccountInfo{Address: program.BunKit.ID, Exists: true, Executable: true, Owner: solanago.BPFLoaderUpgradeableProgramID}, nil)
			},
		},
		{
			name:  "not deployed is non-retryable",
			input: VerifyProgramInput{Program: "bun_kit", ProgramID: program.BunKit.ID.String()},
			setupMock: func(m *MockCluster) {
				m.On("AccountInfo", mock.Anything, program.BunKit.ID).Return(solana.AccountInfo{Address: program.BunKit.ID}, nil)
			},
			wantErr: true,
			errType: ErrTypeSetup,
		},
		{
			name:  "rpc failure is retryable",
			input: VerifyProgramInput{Program: "jest_multiple"},
			setupMock: func(m *MockCluster) {
				m.On("AccountInfo", mock.Anything, program.JestMultiple.ID).Return(solana.AccountInfo{}, errors.New("connection refused"))
			},
			wantErr: true,
		},
		{
			name:      "unknown program",
			input:     VerifyProgramInput{Program: "no such program"},
			setupMock: func(m *MockCluster) {},
			wantErr:   true,
			errType:   ErrTypeInput,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cluster := new(MockCluster)
			tt.setupMock(cluster)
			acts := NewActivities(cluster, nil, nil, nil, nil, discardLogger())

			result, err := acts.VerifyProgram(context.Background(), tt.input)
			if !tt.wantErr {
				require.NoError(t, err)
				assert.True(t, result.Executable)
				assert.Equal(t, solanago.BPFLoaderUpgradeableProgramID.String(), result.Owner)
				cluster.AssertExpectations(t)
				return
			}

			require.Error(t, err)
			if tt.errType != "" {
				isNonRetryable(t, err, tt.errType)
			} else {
				var appErr *temporalsdk.ApplicationError
				assert.False(t, errors.As(err, &appErr))
			}
		})
	}
}

func TestActivities_SubmitInitialize(t *testing.T) {
	payer, err := solanago.NewRandomPrivateKey()
	require.NoError(t, err)

	t.Run("submits initialize paid by the worker payer", func(t *testing.T) {
		submitter := new(MockSubmitter)
		sub := txn.Submission{Signature: solanago.Signature{1}, Program: "bun_kit", SubmittedAt: time.Now()}
		submitter.On("Submit", mock.Anything, mock.MatchedBy(func(req txn.Request) bool {
			if len(req.Instructions) != 1 || len(req.Signers) != 1 {
				return false
			}
			return req.Program == "bun_kit" &&
				req.Payer == payer.PublicKey() &&
				req.Instructions[0].ProgramID() == program.BunKit.ID
		})).Return(&txn.Result{Submission: sub}, nil)

		acts := NewActivities(nil, submitter, payer, nil, nil, discardLogger())
		got, err := acts.SubmitInitialize(context.Background(), SubmitInitializeInput{Program: "bun_kit"})
		require.NoError(t, err)
		assert.Equal(t, sub.Signature, got.Signature)
		submitter.AssertExpectations(t)
	})

	t.Run("rejection is non-retryable", func(t *testing.T) {
		submitter := new(MockSubmitter)
		submitter.On("Submit", mock.Anything, mock.Anything).
			Return(nil, &txn.SubmissionError{Err: errors.New("Blockhash not found")})

		acts := NewActivities(nil, submitter, payer, nil, nil, discardLogger())
		_, err := acts.SubmitInitialize(context.Background(), SubmitInitializeInput{Program: "bun_kit"})
		isNonRetryable(t, err, ErrTypeSubmission)
		submitter.AssertNumberOfCalls(t, "Submit", 1)
	})

	t.Run("no payer", func(t *testing.T) {
		acts := NewActivities(nil, new(MockSubmitter), nil, nil, nil, discardLogger())
		_, err := acts.SubmitInitialize(context.Background(), SubmitInitializeInput{Program: "bun_kit"})
		isNonRetryable(t, err, ErrTypeSetup)
	})
}

func TestActivities_GetSignatureStatus(t *testing.T) {
	sig := solanago.Signature{3}
	confirmations := uint64(4)

	cluster := new(MockCluster)
	cluster.On("SignatureStatus", mock.Anything, sig).Return(solana.SignatureStatus{
		Signature:          sig,
		Found:              true,
		Slot:               55,
		Confirmations:      &confirmations,
		ConfirmationStatus: solana.StatusConfirmed,
	}, nil).Once()
	cluster.On("SignatureStatus", mock.Anything, sig).Return(solana.SignatureStatus{}, errors.New("429 Too Many Requests")).Once()

	acts := NewActivities(cluster, nil, nil, nil, nil, discardLogger())

	obs, err := acts.GetSignatureStatus(context.Background(), GetSignatureStatusInput{Signature: sig.String()})
	require.NoError(t, err)
	assert.Equal(t, txn.Confirmed, obs.Level)
	assert.Equal(t, uint64(55), obs.Slot)

	_, err = acts.GetSignatureStatus(context.Background(), GetSignatureStatusInput{Signature: sig.String()})
	assert.Error(t, err)

	_, err = acts.GetSignatureStatus(context.Background(), GetSignatureStatusInput{Signature: "not-base58-0OIl"})
	isNonRetryable(t, err, ErrTypeInput)
}

func TestActivities_RecordOutcome(t *testing.T) {
	completion := txn.Completion{
		Program:     "bun_kit",
		Outcome:     txn.Outcome{Kind: txn.Succeeded, Signature: solanago.Signature{4}, Level: txn.Confirmed, Attempts: 2},
		CompletedAt: time.Now(),
	}

	failing := new(MockHook)
	failing.On("Completed", mock.Anything, completion).Return(errors.New("database unavailable"))
	working := new(MockHook)
	working.On("Completed", mock.Anything, completion).Return(nil)

	acts := NewActivities(nil, nil, nil, []txn.Hook{failing, working}, nil, discardLogger())
	err := acts.RecordOutcome(context.Background(), RecordOutcomeInput{Completion: completion})
	require.NoError(t, err)

	failing.AssertExpectations(t)
	working.AssertExpectations(t)
}
