// Package dispatch routes a built transaction to the resolved signing
// provider and normalizes the outcome. It is the only place that knows the
// wire differences between the three signing paths.
package dispatch

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	solanago "github.com/gagliardetto/solana-go"

	"github.com/bloqz/settle/service/metrics"
	"github.com/bloqz/settle/service/txbuild"
	"github.com/bloqz/settle/service/wallet"
)

// TransactionExecutor broadcasts a signed EVM transaction through the
// backend. Used by the custodial EVM path, where the embedded wallet signs
// but the backend owns the RPC relationship. Returns the transaction hash.
type TransactionExecutor interface {
	ExecuteTransaction(ctx context.Context, network, signedPayload string) (string, error)
}

// SignatureChecker reports whether a Solana signature is known to the
// cluster. Satisfied by solana.Client.
type SignatureChecker interface {
	SignatureExists(ctx context.Context, sig solanago.Signature) (bool, error)
}

// BuiltTx carries the chain-specific artifact produced by txbuild. Exactly
// one field is set, matching the provider family.
type BuiltTx struct {
	EVM    *txbuild.EVMTransaction
	Solana *solanago.Transaction
}

// Result is the uniform settlement outcome. Success with a TxHash, or a
// classified failure; callers never inspect raw provider errors.
type Result struct {
	Success      bool
	TxHash       string
	Network      string
	Provider     wallet.Kind
	ErrorKind    ErrorKind
	ErrorMessage string
}

// Dispatcher signs and submits built transactions.
type Dispatcher struct {
	executor TransactionExecutor
	checker  SignatureChecker
	metrics  *metrics.Metrics
	logger   *slog.Logger
}

// NewDispatcher creates a dispatcher. If m is nil, no metrics are recorded.
func NewDispatcher(executor TransactionExecutor, checker SignatureChecker, m *metrics.Metrics, logger *slog.Logger) *Dispatcher {
	return &Dispatcher{
		executor: executor,
		checker:  checker,
		metrics:  m,
		logger:   logger,
	}
}

// Dispatch submits the built transaction through the provider. The returned
// error is reserved for caller mistakes (provider/artifact mismatch);
// settlement failures come back inside the Result.
func (d *Dispatcher) Dispatch(ctx context.Context, network string, p *wallet.Provider, tx BuiltTx) (*Result, error) {
	start := time.Now()

	var res *Result
	switch p.Kind {
	case wallet.KindWalletConnectEVM:
		if tx.EVM == nil {
			return nil, fmt.Errorf("dispatch: %s provider requires an EVM transaction", p.Kind)
		}
		res = d.sendWalletConnect(ctx, network, p, tx.EVM)
	case wallet.KindCustodialEVM:
		if tx.EVM == nil {
			return nil, fmt.Errorf("dispatch: %s provider requires an EVM transaction", p.Kind)
		}
		res = d.sendCustodialEVM(ctx, network, p, tx.EVM)
	case wallet.KindCustodialSolana:
		if tx.Solana == nil {
			return nil, fmt.Errorf("dispatch: %s provider requires a solana transaction", p.Kind)
		}
		res = d.sendCustodialSolana(ctx, network, p, tx.Solana)
	default:
		return nil, fmt.Errorf("dispatch: provider kind %q cannot settle transactions", p.Kind)
	}

	status := "success"
	if !res.Success {
		status = string(res.ErrorKind)
	}
	if d.metrics != nil {
		d.metrics.RecordDispatch(string(p.Kind), network, status, time.Since(start).Seconds())
	}
	return res, nil
}

// sendWalletConnect submits through the external wallet session, which signs
// and broadcasts in one step.
func (d *Dispatcher) sendWalletConnect(ctx context.Context, network string, p *wallet.Provider, tx *txbuild.EVMTransaction) *Result {
	hash, err := p.EVM.Request(ctx, "eth_sendTransaction", tx)
	if err != nil {
		return d.failure(ctx, network, p, err)
	}
	d.logger.InfoContext(ctx, "transaction sent via walletconnect",
		"network", network, "tx_hash", hash)
	return &Result{Success: true, TxHash: hash, Network: network, Provider: p.Kind}
}

// sendCustodialEVM signs locally with the embedded wallet, then hands the
// signed bytes to the backend for broadcast. The embedded wallet has no RPC
// access of its own.
func (d *Dispatcher) sendCustodialEVM(ctx context.Context, network string, p *wallet.Provider, tx *txbuild.EVMTransaction) *Result {
	signed, err := p.EVM.Request(ctx, "eth_signTransaction", tx)
	if err != nil {
		return d.failure(ctx, network, p, err)
	}

	hash, err := d.executor.ExecuteTransaction(ctx, network, signed)
	if err != nil {
		d.logger.ErrorContext(ctx, "backend broadcast failed",
			"network", network, "error", err)
		return d.failure(ctx, network, p, err)
	}
	d.logger.InfoContext(ctx, "transaction broadcast via backend",
		"network", network, "tx_hash", hash)
	return &Result{Success: true, TxHash: hash, Network: network, Provider: p.Kind}
}

// sendCustodialSolana signs and submits through the embedded Solana wallet.
// On an ambiguous network failure after signing, the cluster is consulted
// before reporting failure: the transaction may have landed, and reporting a
// retryable error for a landed transaction invites a double spend.
func (d *Dispatcher) sendCustodialSolana(ctx context.Context, network string, p *wallet.Provider, tx *solanago.Transaction) *Result {
	sig, err := p.Solana.SignAndSendTransaction(ctx, tx)
	if err == nil {
		d.logger.InfoContext(ctx, "transaction sent via embedded solana wallet",
			"network", network, "signature", sig.String())
		return &Result{Success: true, TxHash: sig.String(), Network: network, Provider: p.Kind}
	}

	kind := classifyError(err)
	if kind == ErrorKindNetwork && !sig.IsZero() && d.checker != nil {
		exists, checkErr := d.checker.SignatureExists(ctx, sig)
		if checkErr == nil && exists {
			d.logger.WarnContext(ctx, "broadcast reported a network error but the transaction landed",
				"network", network, "signature", sig.String())
			return &Result{Success: true, TxHash: sig.String(), Network: network, Provider: p.Kind}
		}
	}
	return d.failure(ctx, network, p, err)
}

func (d *Dispatcher) failure(ctx context.Context, network string, p *wallet.Provider, err error) *Result {
	kind := classifyError(err)
	d.logger.WarnContext(ctx, "settlement attempt failed",
		"network", network,
		"provider", string(p.Kind),
		"error_kind", string(kind),
		"error", err,
	)
	return &Result{
		Network:      network,
		Provider:     p.Kind,
		ErrorKind:    kind,
		ErrorMessage: err.Error(),
	}
}
