package solana

import (
	"encoding/json"
	"fmt"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
)

// landedFromResult converts a getTransaction result into a LandedTransaction.
func landedFromResult(sig solana.Signature, result *rpc.GetTransactionResult) *LandedTransaction {
	landed := &LandedTransaction{
		Signature: sig.String(),
		Slot:      result.Slot,
	}

	if result.BlockTime != nil {
		t := result.BlockTime.Time()
		landed.BlockTime = &t
	}

	if result.Meta == nil {
		return landed
	}

	landed.Fee = result.Meta.Fee
	landed.ComputeUnits = result.Meta.ComputeUnitsConsumed
	landed.Logs = result.Meta.LogMessages
	if result.Meta.Err != nil {
		msg := FormatExecutionError(result.Meta.Err)
		landed.Err = &msg
	}

	return landed
}

// FormatExecutionError renders an RPC execution error payload as compact
// JSON, e.g. {"InstructionError":[0,{"Custom":6000}]}. Payloads that do not
// marshal fall back to %v.
func FormatExecutionError(payload any) string {
	if payload == nil {
		return ""
	}
	if s, ok := payload.(string); ok {
		return s
	}
	b, err := json.Marshal(payload)
	if err != nil {
		return fmt.Sprintf("%v", payload)
	}
	return string(b)
}
