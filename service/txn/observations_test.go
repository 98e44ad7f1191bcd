package txn

import (
	"sync"
	"testing"

	"github.com/brojonat/txconfirm/service/solana"
	solanago "github.com/gagliardetto/solana-go"
	"github.com/stretchr/testify/assert"
)

func status(sig solanago.Signature, level string, execErr any) solana.SignatureStatus {
	return solana.SignatureStatus{Signature: sig, Found: true, ConfirmationStatus: level, Err: execErr}
}

func TestObservations_NeverRegress(t *testing.T) {
	sig := solanago.Signature{1}
	obs := NewObservations()

	assert.Equal(t, Processed, obs.Record(status(sig, solana.StatusProcessed, nil)).Level)
	assert.Equal(t, Confirmed, obs.Record(status(sig, solana.StatusConfirmed, nil)).Level)
	assert.Equal(t, Confirmed, obs.Record(status(sig, solana.StatusProcessed, nil)).Level)
	assert.Equal(t, Confirmed, obs.Record(solana.SignatureStatus{Signature: sig}).Level, "a node that forgets the signature does not undo confirmation")
	assert.Equal(t, Finalized, obs.Record(status(sig, solana.StatusFinalized, nil)).Level)
}

func TestObservations_FinalizedIsSticky(t *testing.T) {
	sig := solanago.Signature{2}
	obs := NewObservations()

	first := obs.Record(status(sig, solana.StatusFinalized, nil))
	assert.Equal(t, Finalized, first.Level)

	for _, next := range []solana.SignatureStatus{
		status(sig, solana.StatusProcessed, nil),
		status(sig, solana.StatusConfirmed, map[string]any{"InstructionError": []any{0, "Custom"}}),
		status(sig, solana.StatusFinalized, "late error"),
		{Signature: sig},
	} {
		got := obs.Record(next)
		assert.Equal(t, Finalized, got.Level)
		assert.Nil(t, got.Err)
		assert.Equal(t, first, got)
	}
}

func TestObservations_FailedIsSticky(t *testing.T) {
	sig := solanago.Signature{3}
	obs := NewObservations()

	failed := obs.Record(status(sig, solana.StatusConfirmed, "InvalidAccountData"))
	assert.Equal(t, Failed, failed.Level)

	got := obs.Record(status(sig, solana.StatusFinalized, nil))
	assert.Equal(t, Failed, got.Level)
	assert.Equal(t, "InvalidAccountData", got.Err)
}

func TestObservations_KeyedBySignature(t *testing.T) {
	obs := NewObservations()
	a, b := solanago.Signature{4}, solanago.Signature{5}

	obs.Record(status(a, solana.StatusFinalized, nil))
	obs.Record(status(b, solana.StatusProcessed, nil))

	gotA, ok := obs.Get(a)
	assert.True(t, ok)
	assert.Equal(t, Finalized, gotA.Level)

	gotB, ok := obs.Get(b)
	assert.True(t, ok)
	assert.Equal(t, Processed, gotB.Level)

	_, ok = obs.Get(solanago.Signature{6})
	assert.False(t, ok)
	assert.Equal(t, 2, obs.Len())
}

func TestObservations_Concurrent(t *testing.T) {
	sig := solanago.Signature{7}
	obs := NewObservations()
	levels := []string{solana.StatusProcessed, solana.StatusConfirmed, solana.StatusFinalized}

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			obs.Record(status(sig, levels[i%len(levels)], nil))
		}(i)
	}
	wg.Wait()

	got, ok := obs.Get(sig)
	assert.True(t, ok)
	assert.Equal(t, Finalized, got.Level)
}

func TestMerge(t *testing.T) {
	assert.Equal(t, Confirmed, Merge(Observation{Level: Processed}, Observation{Level: Confirmed}).Level)
	assert.Equal(t, Confirmed, Merge(Observation{Level: Confirmed}, Observation{Level: Processed}).Level)
	assert.Equal(t, Failed, Merge(Observation{Level: Processed}, Observation{Level: Failed}).Level)
	assert.Equal(t, Finalized, Merge(Observation{Level: Finalized}, Observation{Level: Failed}).Level)
	assert.Equal(t, uint64(9), Merge(Observation{Level: Confirmed, Slot: 5}, Observation{Level: Confirmed, Slot: 9}).Slot)
}
