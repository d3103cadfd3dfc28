// Package request manages peer payment requests: accepting one settles a
// real transaction, declining one just flips backend state. The backend is
// the source of truth for request status; local state is never trusted.
package request

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/bloqz/settle/service/backend"
	"github.com/bloqz/settle/service/chains"
	"github.com/bloqz/settle/service/dispatch"
	"github.com/bloqz/settle/service/intent"
	"github.com/bloqz/settle/service/metrics"
	"github.com/bloqz/settle/service/wallet"
)

// ErrAlreadyProcessed indicates the request reached a terminal status before
// this action ran, usually because the counterparty or a timer got there
// first.
var ErrAlreadyProcessed = errors.New("payment request already processed")

// ErrSenderWalletMissing indicates the payer has no connected wallet for the
// request's network.
var ErrSenderWalletMissing = errors.New("no wallet available for the request's network")

// RequestBackend is the backend surface the manager needs.
type RequestBackend interface {
	GetPaymentRequest(ctx context.Context, id string) (*backend.PaymentRequest, error)
	BuildRequestPreview(ctx context.Context, id string) (*backend.RequestPreview, error)
	MarkRequestAccepted(ctx context.Context, id, txHash string) error
	MarkRequestDeclined(ctx context.Context, id string) error
}

// Settler runs an intent through the full signing pipeline. Implemented by
// pipeline.Pipeline.
type Settler interface {
	Settle(ctx context.Context, it *intent.Intent, snap wallet.AuthSnapshot, messageID string) (*dispatch.Result, error)
}

// Manager coordinates payment request acceptance and decline.
type Manager struct {
	backend RequestBackend
	settler Settler
	metrics *metrics.Metrics
	logger  *slog.Logger
}

// NewManager creates a request manager. If m is nil, no metrics are recorded.
func NewManager(b RequestBackend, settler Settler, m *metrics.Metrics, logger *slog.Logger) *Manager {
	return &Manager{
		backend: b,
		settler: settler,
		metrics: m,
		logger:  logger,
	}
}

// Accept pays a pending payment request. The request is refetched first; a
// terminal status aborts with ErrAlreadyProcessed before any signing UI
// appears. The request is marked accepted only after the settlement
// transaction actually succeeded. A failed settlement leaves the request
// pending and is reported through the returned Result, not an error.
func (m *Manager) Accept(ctx context.Context, id string, snap wallet.AuthSnapshot) (*dispatch.Result, error) {
	pr, err := m.backend.GetPaymentRequest(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("fetch payment request: %w", err)
	}
	if pr.Terminal() {
		m.recordOutcome("accept", "already_processed")
		return nil, fmt.Errorf("%w: status is %s", ErrAlreadyProcessed, pr.Status)
	}

	family := chains.Classify(pr.Network).Family
	if !snap.HasProviderFor(family) {
		m.recordOutcome("accept", "wallet_missing")
		return nil, fmt.Errorf("%w: network %s", ErrSenderWalletMissing, pr.Network)
	}

	preview, err := m.backend.BuildRequestPreview(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("build request preview: %w", err)
	}

	it := &intent.Intent{
		Kind:               intent.KindSend,
		Network:            preview.Network,
		ToAddress:          preview.ToAddress,
		AmountDecimal:      preview.AmountDecimal,
		TokenSymbol:        preview.TokenSymbol,
		TokenContract:      preview.TokenContract,
		RawUnsignedPayload: preview.RawPayload,
		GasLimit:           preview.Fee.GasLimit,
		GasPrice:           preview.Fee.GasPrice,
	}

	res, err := m.settler.Settle(ctx, it, snap, pr.MessageID)
	if err != nil {
		return nil, fmt.Errorf("settle payment request: %w", err)
	}
	if !res.Success {
		m.logger.InfoContext(ctx, "payment request settlement failed, request stays pending",
			"request_id", id,
			"error_kind", string(res.ErrorKind),
		)
		m.recordOutcome("accept", string(res.ErrorKind))
		return res, nil
	}

	if err := m.backend.MarkRequestAccepted(ctx, id, res.TxHash); err != nil {
		if backend.IsConflict(err) {
			// Another recipient or the expiry sweep reached a terminal
			// status between our refetch and the transition.
			m.logger.WarnContext(ctx, "settlement succeeded but request was already terminal",
				"request_id", id,
				"tx_hash", res.TxHash,
			)
			m.recordOutcome("accept", "already_processed")
			return res, fmt.Errorf("%w: %v", ErrAlreadyProcessed, err)
		}
		// The money moved; the status flip can be reconciled later. Surface
		// the error without pretending the settlement failed.
		m.logger.ErrorContext(ctx, "settlement succeeded but accept transition failed",
			"request_id", id,
			"tx_hash", res.TxHash,
			"error", err,
		)
		m.recordOutcome("accept", "mark_failed")
		return res, fmt.Errorf("mark request accepted: %w", err)
	}

	m.logger.InfoContext(ctx, "payment request accepted",
		"request_id", id,
		"tx_hash", res.TxHash,
	)
	m.recordOutcome("accept", "success")
	return res, nil
}

// Decline declines a pending payment request. No transaction is involved;
// terminal requests abort with ErrAlreadyProcessed.
func (m *Manager) Decline(ctx context.Context, id string) error {
	pr, err := m.backend.GetPaymentRequest(ctx, id)
	if err != nil {
		return fmt.Errorf("fetch payment request: %w", err)
	}
	if pr.Terminal() {
		m.recordOutcome("decline", "already_processed")
		return fmt.Errorf("%w: status is %s", ErrAlreadyProcessed, pr.Status)
	}

	if err := m.backend.MarkRequestDeclined(ctx, id); err != nil {
		if backend.IsConflict(err) {
			// Lost the race to another recipient or the expiry sweep after
			// our refetch; the backend status is authoritative.
			m.recordOutcome("decline", "already_processed")
			return fmt.Errorf("%w: %v", ErrAlreadyProcessed, err)
		}
		return fmt.Errorf("mark request declined: %w", err)
	}
	m.logger.InfoContext(ctx, "payment request declined", "request_id", id)
	m.recordOutcome("decline", "success")
	return nil
}

func (m *Manager) recordOutcome(action, outcome string) {
	if m.metrics != nil {
		m.metrics.RecordRequestAction(action, outcome)
	}
}
