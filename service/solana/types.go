package solana

import (
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
)

// Confirmation status strings reported by getSignatureStatuses.
const (
	StatusProcessed = string(rpc.ConfirmationStatusProcessed)
	StatusConfirmed = string(rpc.ConfirmationStatusConfirmed)
	StatusFinalized = string(rpc.ConfirmationStatusFinalized)
)

// Anchor is a recent blockhash together with the last block height at which
// a transaction referencing it can still land.
type Anchor struct {
	Blockhash            solana.Hash `json:"blockhash"`
	LastValidBlockHeight uint64      `json:"last_valid_block_height"`
}

// IsZero reports whether the anchor carries no blockhash.
func (a Anchor) IsZero() bool {
	return a.Blockhash == solana.Hash{}
}

// SignatureStatus is one getSignatureStatuses entry.
// Found is false when the node has not seen the signature yet.
type SignatureStatus struct {
	Signature          solana.Signature `json:"signature"`
	Found              bool             `json:"found"`
	Slot               uint64           `json:"slot,omitempty"`
	Confirmations      *uint64          `json:"confirmations,omitempty"`
	ConfirmationStatus string           `json:"confirmation_status,omitempty"`
	Err                any              `json:"err,omitempty"` // execution error payload, nil on success
}

// AccountInfo is the subset of getAccountInfo used for deployment checks.
type AccountInfo struct {
	Address    solana.PublicKey `json:"address"`
	Exists     bool             `json:"exists"`
	Executable bool             `json:"executable"`
	Owner      solana.PublicKey `json:"owner"`
	Lamports   uint64           `json:"lamports"`
	Data       []byte           `json:"data,omitempty"`
}

// SubmitOptions controls sendTransaction.
type SubmitOptions struct {
	Encoding            solana.EncodingType
	MaxRetries          uint
	SkipPreflight       bool
	PreflightCommitment rpc.CommitmentType
}

// DefaultSubmitOptions returns base64 encoding with three node-level retries.
func DefaultSubmitOptions() SubmitOptions {
	return SubmitOptions{
		Encoding:            solana.EncodingBase64,
		MaxRetries:          3,
		PreflightCommitment: rpc.CommitmentConfirmed,
	}
}

// LandedTransaction is the ledger record of a transaction that made it into a block.
type LandedTransaction struct {
	Signature    string     `json:"signature"`
	Slot         uint64     `json:"slot"`
	BlockTime    *time.Time `json:"block_time,omitempty"`
	Fee          uint64     `json:"fee"`
	ComputeUnits *uint64    `json:"compute_units,omitempty"`
	Err          *string    `json:"err,omitempty"` // nil if execution succeeded
	Logs         []string   `json:"logs,omitempty"`
}
