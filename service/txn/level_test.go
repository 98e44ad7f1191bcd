package txn

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/brojonat/txconfirm/service/solana"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLevelOf(t *testing.T) {
	one := uint64(1)
	execErr := map[string]any{"InstructionError": []any{0, "InvalidArgument"}}

	tests := []struct {
		name   string
		status solana.SignatureStatus
		want   Level
	}{
		{name: "not found", status: solana.SignatureStatus{}, want: Unobserved},
		{name: "processed", status: solana.SignatureStatus{Found: true, ConfirmationStatus: solana.StatusProcessed, Confirmations: &one}, want: Processed},
		{name: "confirmed", status: solana.SignatureStatus{Found: true, ConfirmationStatus: solana.StatusConfirmed}, want: Confirmed},
		{name: "finalized", status: solana.SignatureStatus{Found: true, ConfirmationStatus: solana.StatusFinalized}, want: Finalized},
		{name: "processed with error stays processed", status: solana.SignatureStatus{Found: true, ConfirmationStatus: solana.StatusProcessed, Err: execErr}, want: Processed},
		{name: "confirmed with error", status: solana.SignatureStatus{Found: true, ConfirmationStatus: solana.StatusConfirmed, Err: execErr}, want: Failed},
		{name: "finalized with error", status: solana.SignatureStatus{Found: true, ConfirmationStatus: solana.StatusFinalized, Err: execErr}, want: Failed},
		{name: "legacy rooted", status: solana.SignatureStatus{Found: true}, want: Finalized},
		{name: "legacy unrooted", status: solana.SignatureStatus{Found: true, Confirmations: &one}, want: Processed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, LevelOf(tt.status))
		})
	}
}

func TestLevel_Text(t *testing.T) {
	for _, l := range []Level{Unobserved, Processed, Confirmed, Finalized, Failed} {
		b, err := json.Marshal(l)
		require.NoError(t, err)

		var back Level
		require.NoError(t, json.Unmarshal(b, &back))
		assert.Equal(t, l, back)
	}

	_, err := ParseLevel("rooted")
	assert.Error(t, err)
	assert.Equal(t, "level(9)", Level(9).String())
}

func TestLevel_Terminal(t *testing.T) {
	assert.False(t, Unobserved.Terminal())
	assert.False(t, Processed.Terminal())
	assert.False(t, Confirmed.Terminal())
	assert.True(t, Finalized.Terminal())
	assert.True(t, Failed.Terminal())
}

func TestPredicateFor(t *testing.T) {
	p, err := PredicateFor("confirmed")
	require.NoError(t, err)
	assert.False(t, p(Processed))
	assert.True(t, p(Confirmed))
	assert.True(t, p(Finalized))

	p, err = PredicateFor("finalized")
	require.NoError(t, err)
	assert.False(t, p(Confirmed))
	assert.True(t, p(Finalized))

	_, err = PredicateFor("processed")
	assert.Error(t, err)
	_, err = PredicateFor("unobserved")
	assert.Error(t, err)
	_, err = PredicateFor("failed")
	assert.Error(t, err)
	_, err = PredicateFor("bogus")
	assert.Error(t, err)
}

func TestEvaluate(t *testing.T) {
	execErr := map[string]any{"InstructionError": []any{0, map[string]any{"Custom": 1}}}
	confirmedOrBetter := AtLeast(Confirmed)

	tests := []struct {
		name string
		obs  Observation
		pred Predicate
		want Kind
	}{
		{name: "unobserved keeps polling", obs: Observation{Level: Unobserved}, pred: confirmedOrBetter, want: Pending},
		{name: "processed keeps polling", obs: Observation{Level: Processed}, pred: confirmedOrBetter, want: Pending},
		{name: "confirmed succeeds", obs: Observation{Level: Confirmed}, pred: confirmedOrBetter, want: Succeeded},
		{name: "finalized succeeds", obs: Observation{Level: Finalized}, pred: confirmedOrBetter, want: Succeeded},
		{name: "failed level fails", obs: Observation{Level: Failed, Err: execErr}, pred: confirmedOrBetter, want: ExecutionFailed},
		{name: "error beats finalized", obs: Observation{Level: Finalized, Err: execErr}, pred: confirmedOrBetter, want: ExecutionFailed},
		{name: "processed with error under processed predicate", obs: Observation{Level: Processed, Err: execErr}, pred: AtLeast(Processed), want: ExecutionFailed},
		{name: "confirmed waits for finalized", obs: Observation{Level: Confirmed}, pred: AtLeast(Finalized), want: Pending},
		{name: "failed ends even a finalized wait", obs: Observation{Level: Failed, Err: execErr}, pred: AtLeast(Finalized), want: ExecutionFailed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Evaluate(tt.obs, tt.pred))
		})
	}
}

func TestOutcome_AsError(t *testing.T) {
	ok := Outcome{Kind: Succeeded}
	assert.NoError(t, ok.AsError())
	assert.True(t, ok.OK())

	failed := Outcome{Kind: ExecutionFailed, Level: Confirmed, ExecErr: "InvalidAccountData"}
	var execErr *ExecutionError
	require.ErrorAs(t, failed.AsError(), &execErr)
	assert.Contains(t, execErr.Error(), "InvalidAccountData")

	timedOut := Outcome{Kind: TimedOut, Attempts: 30, Level: Processed}
	var timeoutErr *TimeoutError
	require.ErrorAs(t, timedOut.AsError(), &timeoutErr)
	assert.Equal(t, 30, timeoutErr.Attempts)
	assert.False(t, errors.As(timedOut.AsError(), &execErr), "a timeout is never an execution error")
}

func TestKind_Text(t *testing.T) {
	b, err := json.Marshal(Outcome{Kind: TimedOut})
	require.NoError(t, err)
	assert.Contains(t, string(b), `"kind":"timed_out"`)

	var out Outcome
	require.NoError(t, json.Unmarshal(b, &out))
	assert.Equal(t, TimedOut, out.Kind)
}
