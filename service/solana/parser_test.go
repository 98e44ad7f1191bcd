package solana

import (
	"testing"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLandedFromResult_Success(t *testing.T) {
	sig := solana.MustSignatureFromBase58("5j7s6NiJS3JAkvgkoc18WVAsiSaci2pxB2A6ueCJP4tprA2TFg9wSyTLeYouxPBJEMzJinENTkpA52YStRW5Dia7")
	blockTime := solana.UnixTimeSeconds(time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC).Unix())
	units := uint64(1234)

	landed := landedFromResult(sig, &rpc.GetTransactionResult{
		Slot:      42,
		BlockTime: &blockTime,
		Meta: &rpc.TransactionMeta{
			Fee:                  5000,
			ComputeUnitsConsumed: &units,
			LogMessages: []string{
				"Program 91fD8V2tNaVWcK8Mhk3xc6kzsnbevrFp77yLUtqn8DXA invoke [1]",
				"Program log: Instruction: Initialize",
				"Program 91fD8V2tNaVWcK8Mhk3xc6kzsnbevrFp77yLUtqn8DXA success",
			},
		},
	})

	require.NotNil(t, landed)
	assert.Equal(t, sig.String(), landed.Signature)
	assert.Equal(t, uint64(42), landed.Slot)
	require.NotNil(t, landed.BlockTime)
	assert.Equal(t, 2025, landed.BlockTime.UTC().Year())
	assert.Equal(t, uint64(5000), landed.Fee)
	require.NotNil(t, landed.ComputeUnits)
	assert.Equal(t, units, *landed.ComputeUnits)
	assert.Nil(t, landed.Err)
	assert.Len(t, landed.Logs, 3)
}

func TestLandedFromResult_ExecutionError(t *testing.T) {
	sig := solana.MustSignatureFromBase58("5j7s6NiJS3JAkvgkoc18WVAsiSaci2pxB2A6ueCJP4tprA2TFg9wSyTLeYouxPBJEMzJinENTkpA52YStRW5Dia7")

	landed := landedFromResult(sig, &rpc.GetTransactionResult{
		Slot: 7,
		Meta: &rpc.TransactionMeta{
			Err: map[string]any{"InstructionError": []any{0, map[string]any{"Custom": 6000}}},
		},
	})

	require.NotNil(t, landed.Err)
	assert.Equal(t, `{"InstructionError":[0,{"Custom":6000}]}`, *landed.Err)
	assert.Nil(t, landed.BlockTime)
}

func TestLandedFromResult_NoMeta(t *testing.T) {
	sig := solana.MustSignatureFromBase58("5j7s6NiJS3JAkvgkoc18WVAsiSaci2pxB2A6ueCJP4tprA2TFg9wSyTLeYouxPBJEMzJinENTkpA52YStRW5Dia7")

	landed := landedFromResult(sig, &rpc.GetTransactionResult{Slot: 9})

	assert.Equal(t, uint64(9), landed.Slot)
	assert.Zero(t, landed.Fee)
	assert.Nil(t, landed.Err)
}

func TestFormatExecutionError(t *testing.T) {
	tests := []struct {
		name    string
		payload any
		want    string
	}{
		{name: "nil", payload: nil, want: ""},
		{name: "string", payload: "AccountNotFound", want: "AccountNotFound"},
		{name: "object", payload: map[string]any{"InstructionError": []any{0, "InvalidArgument"}}, want: `{"InstructionError":[0,"InvalidArgument"]}`},
		{name: "unmarshalable", payload: func() {}, want: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := FormatExecutionError(tt.payload)
			if tt.name == "unmarshalable" {
				assert.NotEmpty(t, got)
				return
			}
			assert.Equal(t, tt.want, got)
		})
	}
}
