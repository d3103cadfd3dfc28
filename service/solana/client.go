package solana

import (
	"context"
	"log/slog"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"

	"github.com/bloqz/settle/service/metrics"
)

// RPCClient is an interface for the Solana RPC operations we need.
// This allows us to mock the RPC layer in tests without hitting real Solana nodes.
type RPCClient interface {
	GetLatestBlockhash(
		ctx context.Context,
		commitment rpc.CommitmentType,
	) (*rpc.GetLatestBlockhashResult, error)

	GetSignatureStatuses(
		ctx context.Context,
		searchTransactionHistory bool,
		signatures ...solana.Signature,
	) (*rpc.GetSignatureStatusesResult, error)
}

// Client wraps the RPC client with the operations the signing pipeline needs:
// fetching a fresh blockhash before signing, and checking whether a signature
// landed on chain after an ambiguous broadcast failure.
type Client struct {
	rpc      RPCClient
	logger   *slog.Logger
	metrics  *metrics.Metrics
	endpoint string // RPC endpoint identifier for metrics (e.g., "mainnet", rpc host)
}

// NewClient creates a new Solana client.
// The endpoint parameter is used for metrics labeling (e.g., "mainnet" or RPC hostname).
// If metrics is nil, no metrics will be recorded.
func NewClient(rpcClient RPCClient, endpoint string, m *metrics.Metrics, logger *slog.Logger) *Client {
	return &Client{
		rpc:      rpcClient,
		logger:   logger,
		metrics:  m,
		endpoint: endpoint,
	}
}

// LatestBlockhash fetches a fresh recent blockhash at confirmed commitment.
// The transaction builder calls this immediately before signing; blockhashes
// expire after roughly 60-90 seconds, so callers must not cache the result.
func (c *Client) LatestBlockhash(ctx context.Context) (solana.Hash, error) {
	start := time.Now()
	result, err := c.rpc.GetLatestBlockhash(ctx, rpc.CommitmentConfirmed)
	duration := time.Since(start).Seconds()

	status := "success"
	if err != nil {
		status = "error"
		c.logger.ErrorContext(ctx, "failed to get latest blockhash", "error", err)
	}
	if c.metrics != nil {
		c.metrics.RecordRPCCall("GetLatestBlockhash", status, c.endpoint, duration)
	}
	if err != nil {
		return solana.Hash{}, err
	}

	c.logger.DebugContext(ctx, "fetched latest blockhash",
		"blockhash", result.Value.Blockhash.String(),
		"last_valid_block_height", result.Value.LastValidBlockHeight,
	)
	return result.Value.Blockhash, nil
}

// SignatureExists reports whether the signature is known to the cluster. The
// dispatcher uses this after a network error during broadcast: a transaction
// must never be resubmitted until we know the first attempt did not land.
func (c *Client) SignatureExists(ctx context.Context, sig solana.Signature) (bool, error) {
	start := time.Now()
	result, err := c.rpc.GetSignatureStatuses(ctx, true, sig)
	duration := time.Since(start).Seconds()

	status := "success"
	if err != nil {
		status = "error"
	}
	if c.metrics != nil {
		c.metrics.RecordRPCCall("GetSignatureStatuses", status, c.endpoint, duration)
	}
	if err != nil {
		return false, err
	}
	if len(result.Value) == 0 || result.Value[0] == nil {
		return false, nil
	}

	c.logger.DebugContext(ctx, "signature found on chain",
		"signature", sig.String(),
		"confirmation_status", result.Value[0].ConfirmationStatus,
	)
	return true, nil
}
