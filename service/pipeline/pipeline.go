// Package pipeline orchestrates the full settlement flow: classify the
// network, resolve a signing provider, build the transaction, dispatch it,
// and track the outcome.
package pipeline

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/bloqz/settle/service/backend"
	"github.com/bloqz/settle/service/chains"
	"github.com/bloqz/settle/service/db"
	"github.com/bloqz/settle/service/dispatch"
	"github.com/bloqz/settle/service/intent"
	"github.com/bloqz/settle/service/nats"
	"github.com/bloqz/settle/service/ramp"
	"github.com/bloqz/settle/service/track"
	"github.com/bloqz/settle/service/txbuild"
	"github.com/bloqz/settle/service/wallet"
)

// PipelineBackend is the backend surface the pipeline needs for transaction
// preparation.
type PipelineBackend interface {
	GetFeeEstimate(ctx context.Context, network string) (*backend.FeeEstimate, error)
	GetUnsignedTransaction(ctx context.Context, network, kind string, params map[string]any) (*backend.UnsignedTransaction, error)
}

// TxDispatcher submits built transactions. Implemented by
// dispatch.Dispatcher.
type TxDispatcher interface {
	Dispatch(ctx context.Context, network string, p *wallet.Provider, tx dispatch.BuiltTx) (*dispatch.Result, error)
}

// SettlementTracker records settlement outcomes. Implemented by
// track.Tracker.
type SettlementTracker interface {
	Record(ctx context.Context, s track.Settlement) error
	GetRecord(ctx context.Context, messageID string) (*db.SettlementRecord, error)
}

// Pipeline wires the settlement stages together.
type Pipeline struct {
	backend    PipelineBackend
	dispatcher TxDispatcher
	tracker    SettlementTracker
	blockhash  txbuild.BlockhashFetcher
	rampCfg    ramp.WidgetConfig
	logger     *slog.Logger
}

// NewPipeline creates a pipeline. rampCfg carries the static widget settings
// (base URL, API key); per-settlement fields are filled in by OpenFiatRamp.
func NewPipeline(
	b PipelineBackend,
	dispatcher TxDispatcher,
	tracker SettlementTracker,
	blockhash txbuild.BlockhashFetcher,
	rampCfg ramp.WidgetConfig,
	logger *slog.Logger,
) *Pipeline {
	return &Pipeline{
		backend:    b,
		dispatcher: dispatcher,
		tracker:    tracker,
		blockhash:  blockhash,
		rampCfg:    rampCfg,
		logger:     logger,
	}
}

// Settle runs one intent end to end. A failed settlement is reported through
// the Result; errors are reserved for stages that could not run at all
// (invalid intent, no provider, build failure). The outcome is tracked
// against messageID either way; tracking failures are logged, never
// propagated.
func (p *Pipeline) Settle(ctx context.Context, it *intent.Intent, snap wallet.AuthSnapshot, messageID string) (*dispatch.Result, error) {
	if err := it.Validate(); err != nil {
		return nil, err
	}

	info := chains.Classify(it.Network)
	if !chains.IsKnown(it.Network) {
		p.logger.WarnContext(ctx, "unknown network, treating as ethereum",
			"network", it.Network,
		)
	}

	provider, err := wallet.Resolve(info.Family, snap)
	if err != nil {
		return nil, fmt.Errorf("resolve provider for %s: %w", info.Canonical, err)
	}

	built, err := p.build(ctx, it, info, provider)
	if err != nil {
		return nil, err
	}

	res, err := p.dispatcher.Dispatch(ctx, info.Canonical, provider, built)
	if err != nil {
		return nil, err
	}

	// An expired blockhash means the transaction was built too long before
	// the user confirmed. One rebuild with a fresh blockhash is safe: the
	// expired transaction can never land.
	if !res.Success && res.ErrorKind == dispatch.ErrorKindBlockhashExpired && info.Family == chains.FamilySolana {
		p.logger.InfoContext(ctx, "blockhash expired, rebuilding once",
			"network", info.Canonical,
			"message_id", messageID,
		)
		built, err = p.build(ctx, it, info, provider)
		if err != nil {
			return nil, err
		}
		res, err = p.dispatcher.Dispatch(ctx, info.Canonical, provider, built)
		if err != nil {
			return nil, err
		}
	}

	p.trackResult(ctx, it, provider, res, messageID)
	return res, nil
}

// build produces the chain-specific artifact for the provider's family.
func (p *Pipeline) build(ctx context.Context, it *intent.Intent, info chains.Info, provider *wallet.Provider) (dispatch.BuiltTx, error) {
	switch info.Family {
	case chains.FamilySolana:
		prepared := *it
		if prepared.RawUnsignedPayload == "" {
			unsigned, err := p.backend.GetUnsignedTransaction(ctx, info.Canonical, string(it.Kind), map[string]any{
				"to_address":     it.ToAddress,
				"amount_decimal": it.AmountDecimal,
				"token_symbol":   it.TokenSymbol,
				"from_address":   provider.Address,
			})
			if err != nil {
				return dispatch.BuiltTx{}, fmt.Errorf("prepare solana transaction: %w", err)
			}
			prepared.RawUnsignedPayload = unsigned.Payload
		}
		tx, err := txbuild.BuildSolana(ctx, &prepared, p.blockhash)
		if err != nil {
			return dispatch.BuiltTx{}, err
		}
		return dispatch.BuiltTx{Solana: tx}, nil

	default:
		prepared := *it
		if prepared.GasLimit == "" && prepared.GasPrice == "" {
			// Best effort: defaults in the builder cover a missing estimate.
			fee, err := p.backend.GetFeeEstimate(ctx, info.Canonical)
			if err != nil {
				p.logger.WarnContext(ctx, "fee estimate unavailable, using defaults",
					"network", info.Canonical,
					"error", err,
				)
			} else {
				prepared.GasLimit = fee.GasLimit
				prepared.GasPrice = fee.GasPrice
			}
		}
		tx, err := txbuild.BuildEVM(&prepared, provider.Address)
		if err != nil {
			return dispatch.BuiltTx{}, err
		}
		return dispatch.BuiltTx{EVM: tx}, nil
	}
}

func (p *Pipeline) trackResult(ctx context.Context, it *intent.Intent, provider *wallet.Provider, res *dispatch.Result, messageID string) {
	s := track.Settlement{
		MessageID:     messageID,
		TxHash:        res.TxHash,
		Network:       res.Network,
		TokenSymbol:   it.TokenSymbol,
		AmountDecimal: it.AmountDecimal,
		FromAddress:   provider.Address,
		ToAddress:     it.ToAddress,
		Provider:      string(provider.Kind),
		Source:        nats.SourceWallet,
		Success:       res.Success,
		ErrorKind:     string(res.ErrorKind),
	}
	if err := p.tracker.Record(ctx, s); err != nil {
		p.logger.WarnContext(ctx, "failed to track settlement",
			"message_id", messageID,
			"tx_hash", res.TxHash,
			"error", err,
		)
	}
}

// GetEnrichedRecord returns the settlement record for a message, including
// any social enrichment stored so far.
func (p *Pipeline) GetEnrichedRecord(ctx context.Context, messageID string) (*db.SettlementRecord, error) {
	return p.tracker.GetRecord(ctx, messageID)
}

// RampParams are the per-settlement fields for opening the hosted on-ramp.
type RampParams struct {
	WalletAddress  string
	Network        string
	CryptoCurrency string
	FiatAmount     string
	FiatCurrency   string
	MessageID      string
}

// OpenFiatRamp builds the hosted on-ramp widget URL for a buy. The message
// ID rides along as the partner order ID so completed orders can be tracked
// back to their chat message.
func (p *Pipeline) OpenFiatRamp(params RampParams) (string, error) {
	cfg := p.rampCfg
	cfg.WalletAddress = params.WalletAddress
	cfg.Network = params.Network
	cfg.CryptoCurrency = params.CryptoCurrency
	cfg.FiatAmount = params.FiatAmount
	cfg.FiatCurrency = params.FiatCurrency
	cfg.PartnerOrderID = params.MessageID
	return cfg.WidgetURL()
}
