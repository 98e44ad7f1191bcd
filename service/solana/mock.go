package solana

import (
	"context"
	"sync"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
)

// MockRPCClient is an in-memory RPCClient for tests.
// It's behavior-focused: set what it should return, then inspect Calls or
// Sent if the test needs to know what happened.
type MockRPCClient struct {
	mu sync.Mutex

	Blockhash            solana.Hash
	LastValidBlockHeight uint64
	BlockhashErr         error

	// SendErr rejects every submission. Otherwise the transaction's first
	// signature is returned, as a real node does.
	SendErr  error
	Sent     []*solana.Transaction
	SentOpts []rpc.TransactionOpts

	// StatusScript is consumed one entry per GetSignatureStatuses call; the
	// last entry repeats once the script runs out. A nil entry means the
	// signature has not been seen. StatusErrs, when set, is consumed the
	// same way and takes precedence for that call.
	StatusScript []*rpc.SignatureStatusesResult
	StatusErrs   []error

	Accounts   map[solana.PublicKey]*rpc.Account
	AccountErr error

	Transactions map[solana.Signature]*rpc.GetTransactionResult

	// AirdropErrs is consumed one entry per RequestAirdrop call; calls past
	// the end succeed.
	AirdropErrs []error
	Balances    map[solana.PublicKey]uint64

	calls map[string]int
}

// NewMockRPCClient returns a mock with a non-zero blockhash and empty maps.
func NewMockRPCClient() *MockRPCClient {
	return &MockRPCClient{
		Blockhash:            solana.MustHashFromBase58("4NCYB3kRT8sCNodPNuCZo8VUh4xqpBQxsxed2wd9xaD4"),
		LastValidBlockHeight: 150,
		Accounts:             make(map[solana.PublicKey]*rpc.Account),
		Transactions:         make(map[solana.Signature]*rpc.GetTransactionResult),
		Balances:             make(map[solana.PublicKey]uint64),
		calls:                make(map[string]int),
	}
}

// Calls returns how many times method was invoked.
func (m *MockRPCClient) Calls(method string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls[method]
}

// SetExecutable registers a deployed program account at address.
func (m *MockRPCClient) SetExecutable(address solana.PublicKey, executable bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Accounts[address] = &rpc.Account{
		Lamports:   1_141_440,
		Owner:      solana.BPFLoaderUpgradeableProgramID,
		Executable: executable,
	}
}

func (m *MockRPCClient) count(method string) int {
	if m.calls == nil {
		m.calls = make(map[string]int)
	}
	n := m.calls[method]
	m.calls[method] = n + 1
	return n
}

func (m *MockRPCClient) GetLatestBlockhash(ctx context.Context, commitment rpc.CommitmentType) (*rpc.GetLatestBlockhashResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.count("GetLatestBlockhash")
	if m.BlockhashErr != nil {
		return nil, m.BlockhashErr
	}
	return &rpc.GetLatestBlockhashResult{
		Value: &rpc.LatestBlockhashResult{
			Blockhash:            m.Blockhash,
			LastValidBlockHeight: m.LastValidBlockHeight,
		},
	}, nil
}

func (m *MockRPCClient) SendTransactionWithOpts(ctx context.Context, tx *solana.Transaction, opts rpc.TransactionOpts) (solana.Signature, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.count("SendTransaction")
	if m.SendErr != nil {
		return solana.Signature{}, m.SendErr
	}
	m.Sent = append(m.Sent, tx)
	m.SentOpts = append(m.SentOpts, opts)
	if len(tx.Signatures) == 0 {
		return solana.Signature{}, nil
	}
	return tx.Signatures[0], nil
}

func (m *MockRPCClient) GetSignatureStatuses(ctx context.Context, searchTransactionHistory bool, signatures ...solana.Signature) (*rpc.GetSignatureStatusesResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := m.count("GetSignatureStatuses")

	if n < len(m.StatusErrs) && m.StatusErrs[n] != nil {
		return nil, m.StatusErrs[n]
	}

	var entry *rpc.SignatureStatusesResult
	if len(m.StatusScript) > 0 {
		if n < len(m.StatusScript) {
			entry = m.StatusScript[n]
		} else {
			entry = m.StatusScript[len(m.StatusScript)-1]
		}
	}

	out := &rpc.GetSignatureStatusesResult{}
	for range signatures {
		out.Value = append(out.Value, entry)
	}
	return out, nil
}

func (m *MockRPCClient) GetAccountInfoWithOpts(ctx context.Context, account solana.PublicKey, opts *rpc.GetAccountInfoOpts) (*rpc.GetAccountInfoResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.count("GetAccountInfo")
	if m.AccountErr != nil {
		return nil, m.AccountErr
	}
	acct, ok := m.Accounts[account]
	if !ok {
		return nil, rpc.ErrNotFound
	}
	return &rpc.GetAccountInfoResult{Value: acct}, nil
}

func (m *MockRPCClient) GetTransaction(ctx context.Context, signature solana.Signature, opts *rpc.GetTransactionOpts) (*rpc.GetTransactionResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.count("GetTransaction")
	result, ok := m.Transactions[signature]
	if !ok {
		return nil, rpc.ErrNotFound
	}
	return result, nil
}

func (m *MockRPCClient) RequestAirdrop(ctx context.Context, account solana.PublicKey, lamports uint64, commitment rpc.CommitmentType) (solana.Signature, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := m.count("RequestAirdrop")
	if n < len(m.AirdropErrs) && m.AirdropErrs[n] != nil {
		return solana.Signature{}, m.AirdropErrs[n]
	}
	if m.Balances == nil {
		m.Balances = make(map[solana.PublicKey]uint64)
	}
	m.Balances[account] += lamports
	return solana.Signature{byte(n + 1)}, nil
}

func (m *MockRPCClient) GetBalance(ctx context.Context, account solana.PublicKey, commitment rpc.CommitmentType) (*rpc.GetBalanceResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.count("GetBalance")
	return &rpc.GetBalanceResult{Value: m.Balances[account]}, nil
}

// Status builds a found status entry for StatusScript.
func Status(level rpc.ConfirmationStatusType, execErr any) *rpc.SignatureStatusesResult {
	return &rpc.SignatureStatusesResult{
		Slot:               100,
		ConfirmationStatus: level,
		Err:                execErr,
	}
}
