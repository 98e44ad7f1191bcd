package solana

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/brojonat/txconfirm/service/metrics"
	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
)

// RPCClient is an interface for the Solana RPC operations we need.
// This allows us to mock the RPC layer in tests without hitting real Solana nodes.
type RPCClient interface {
	GetLatestBlockhash(ctx context.Context, commitment rpc.CommitmentType) (*rpc.GetLatestBlockhashResult, error)

	SendTransactionWithOpts(ctx context.Context, tx *solana.Transaction, opts rpc.TransactionOpts) (solana.Signature, error)

	GetSignatureStatuses(
		ctx context.Context,
		searchTransactionHistory bool,
		signatures ...solana.Signature,
	) (*rpc.GetSignatureStatusesResult, error)

	GetAccountInfoWithOpts(
		ctx context.Context,
		account solana.PublicKey,
		opts *rpc.GetAccountInfoOpts,
	) (*rpc.GetAccountInfoResult, error)

	GetTransaction(
		ctx context.Context,
		signature solana.Signature,
		opts *rpc.GetTransactionOpts,
	) (*rpc.GetTransactionResult, error)

	RequestAirdrop(ctx context.Context, account solana.PublicKey, lamports uint64, commitment rpc.CommitmentType) (solana.Signature, error)

	GetBalance(ctx context.Context, account solana.PublicKey, commitment rpc.CommitmentType) (*rpc.GetBalanceResult, error)
}

// Client wraps the RPC client with the operations the submission flow needs.
type Client struct {
	rpc      RPCClient
	logger   *slog.Logger
	metrics  *metrics.Metrics
	endpoint string // RPC endpoint label for metrics (e.g., "localnet", "devnet", rpc host)

	blockhashCommitment rpc.CommitmentType
	readCommitment      rpc.CommitmentType
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithBlockhashCommitment sets the commitment used to fetch lifetime anchors.
func WithBlockhashCommitment(c rpc.CommitmentType) ClientOption {
	return func(cl *Client) { cl.blockhashCommitment = c }
}

// WithReadCommitment sets the commitment used for account, balance and airdrop calls.
func WithReadCommitment(c rpc.CommitmentType) ClientOption {
	return func(cl *Client) { cl.readCommitment = c }
}

// NewClient creates a new Solana client.
// The endpoint parameter is used for metrics labeling. If metrics is nil,
// no metrics will be recorded.
func NewClient(rpcClient RPCClient, endpoint string, m *metrics.Metrics, logger *slog.Logger, opts ...ClientOption) *Client {
	c := &Client{
		rpc:                 rpcClient,
		logger:              logger,
		metrics:             m,
		endpoint:            endpoint,
		blockhashCommitment: rpc.CommitmentFinalized,
		readCommitment:      rpc.CommitmentConfirmed,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Endpoint returns the metrics label of the endpoint this client talks to.
func (c *Client) Endpoint() string {
	return c.endpoint
}

// LatestAnchor fetches a fresh blockhash and its expiry height.
func (c *Client) LatestAnchor(ctx context.Context) (Anchor, error) {
	start := time.Now()
	out, err := c.rpc.GetLatestBlockhash(ctx, c.blockhashCommitment)
	c.record(ctx, "GetLatestBlockhash", start, err)
	if err != nil {
		return Anchor{}, fmt.Errorf("failed to get latest blockhash: %w", err)
	}
	if out == nil || out.Value == nil {
		return Anchor{}, fmt.Errorf("failed to get latest blockhash: empty response")
	}

	anchor := Anchor{
		Blockhash:            out.Value.Blockhash,
		LastValidBlockHeight: out.Value.LastValidBlockHeight,
	}
	c.logger.DebugContext(ctx, "fetched lifetime anchor",
		"blockhash", anchor.Blockhash.String(),
		"last_valid_block_height", anchor.LastValidBlockHeight,
	)
	return anchor, nil
}

// Submit sends a signed transaction. A returned signature means the node
// accepted it for broadcast, not that it executed.
func (c *Client) Submit(ctx context.Context, tx *solana.Transaction, opts SubmitOptions) (solana.Signature, error) {
	if opts.Encoding == "" {
		opts.Encoding = solana.EncodingBase64
	}
	maxRetries := opts.MaxRetries
	txOpts := rpc.TransactionOpts{
		Encoding:            opts.Encoding,
		SkipPreflight:       opts.SkipPreflight,
		PreflightCommitment: opts.PreflightCommitment,
		MaxRetries:          &maxRetries,
	}

	start := time.Now()
	sig, err := c.rpc.SendTransactionWithOpts(ctx, tx, txOpts)
	c.record(ctx, "SendTransaction", start, err)
	if err != nil {
		return solana.Signature{}, err
	}

	c.logger.InfoContext(ctx, "transaction accepted for broadcast",
		"signature", sig.String(),
		"max_retries", maxRetries,
		"skip_preflight", opts.SkipPreflight,
	)
	return sig, nil
}

// SignatureStatus polls the status of one signature. An unknown signature is
// not an error; it comes back with Found set to false.
func (c *Client) SignatureStatus(ctx context.Context, sig solana.Signature) (SignatureStatus, error) {
	start := time.Now()
	out, err := c.rpc.GetSignatureStatuses(ctx, false, sig)
	c.record(ctx, "GetSignatureStatuses", start, err)
	if err != nil {
		return SignatureStatus{}, fmt.Errorf("failed to get signature status: %w", err)
	}

	status := SignatureStatus{Signature: sig}
	if out == nil || len(out.Value) == 0 || out.Value[0] == nil {
		return status, nil
	}

	v := out.Value[0]
	status.Found = true
	status.Slot = v.Slot
	status.Confirmations = v.Confirmations
	status.ConfirmationStatus = string(v.ConfirmationStatus)
	status.Err = v.Err
	return status, nil
}

// AccountInfo fetches an account. A missing account is reported with
// Exists set to false rather than as an error.
func (c *Client) AccountInfo(ctx context.Context, address solana.PublicKey) (AccountInfo, error) {
	start := time.Now()
	out, err := c.rpc.GetAccountInfoWithOpts(ctx, address, &rpc.GetAccountInfoOpts{
		Encoding:   solana.EncodingBase64,
		Commitment: c.readCommitment,
	})
	if errors.Is(err, rpc.ErrNotFound) {
		c.record(ctx, "GetAccountInfo", start, nil)
		return AccountInfo{Address: address}, nil
	}
	c.record(ctx, "GetAccountInfo", start, err)
	if err != nil {
		return AccountInfo{}, fmt.Errorf("failed to get account info for %s: %w", address, err)
	}
	if out == nil || out.Value == nil {
		return AccountInfo{Address: address}, nil
	}

	info := AccountInfo{
		Address:    address,
		Exists:     true,
		Executable: out.Value.Executable,
		Owner:      out.Value.Owner,
		Lamports:   out.Value.Lamports,
	}
	if out.Value.Data != nil {
		info.Data = out.Value.Data.GetBinary()
	}
	return info, nil
}

// Airdrop requests lamports from the cluster faucet.
func (c *Client) Airdrop(ctx context.Context, address solana.PublicKey, lamports uint64) (solana.Signature, error) {
	start := time.Now()
	sig, err := c.rpc.RequestAirdrop(ctx, address, lamports, c.readCommitment)
	c.record(ctx, "RequestAirdrop", start, err)
	if err != nil {
		return solana.Signature{}, fmt.Errorf("airdrop of %d lamports to %s failed: %w", lamports, address, err)
	}
	c.logger.InfoContext(ctx, "airdrop requested",
		"address", address.String(),
		"lamports", lamports,
		"signature", sig.String(),
	)
	return sig, nil
}

// Balance returns the lamport balance of an address.
func (c *Client) Balance(ctx context.Context, address solana.PublicKey) (uint64, error) {
	start := time.Now()
	out, err := c.rpc.GetBalance(ctx, address, c.readCommitment)
	c.record(ctx, "GetBalance", start, err)
	if err != nil {
		return 0, fmt.Errorf("failed to get balance for %s: %w", address, err)
	}
	if out == nil {
		return 0, nil
	}
	return out.Value, nil
}

// Transaction fetches the ledger record of a landed transaction.
// It returns rpc.ErrNotFound (wrapped) when the node has no record yet.
func (c *Client) Transaction(ctx context.Context, sig solana.Signature) (*LandedTransaction, error) {
	maxVersion := uint64(0)
	start := time.Now()
	out, err := c.rpc.GetTransaction(ctx, sig, &rpc.GetTransactionOpts{
		Encoding:                       solana.EncodingBase64,
		Commitment:                     rpc.CommitmentConfirmed,
		MaxSupportedTransactionVersion: &maxVersion,
	})
	c.record(ctx, "GetTransaction", start, err)
	if err != nil {
		return nil, fmt.Errorf("failed to get transaction %s: %w", sig, err)
	}
	if out == nil {
		return nil, fmt.Errorf("failed to get transaction %s: %w", sig, rpc.ErrNotFound)
	}
	return landedFromResult(sig, out), nil
}

// record emits the RPC metrics for one call and logs failures.
func (c *Client) record(ctx context.Context, method string, start time.Time, err error) {
	duration := time.Since(start).Seconds()
	status := "success"
	if err != nil {
		status = "error"
		c.logger.DebugContext(ctx, "rpc call failed",
			"method", method,
			"endpoint", c.endpoint,
			"error", err,
		)
	}
	if c.metrics == nil {
		return
	}
	c.metrics.RecordRPCCall(method, status, c.endpoint, duration)
	if err != nil && strings.Contains(err.Error(), "429") {
		c.metrics.RecordRateLimitHit(c.endpoint)
	}
}
