// Package ramp bridges fiat on-ramp order webhooks into the settlement
// pipeline. Completed ramp orders become settlement events just like wallet
// sends; the chat feed does not care how the money arrived.
package ramp

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"

	"github.com/bloqz/settle/service/metrics"
	"github.com/bloqz/settle/service/nats"
	"github.com/bloqz/settle/service/track"
)

// OrderStatus is the on-ramp provider's order lifecycle state.
type OrderStatus string

const (
	OrderCreated    OrderStatus = "ORDER_CREATED"
	OrderProcessing OrderStatus = "ORDER_PROCESSING"
	OrderCompleted  OrderStatus = "ORDER_COMPLETED"
	OrderFailed     OrderStatus = "ORDER_FAILED"
)

// OrderEvent is a ramp order webhook payload, normalized from the provider's
// shape.
type OrderEvent struct {
	EventID        string      `json:"event_id"`
	Status         OrderStatus `json:"status"`
	OrderID        string      `json:"order_id"`
	PartnerOrderID string      `json:"partner_order_id,omitempty"`

	// TransactionHash is set once the provider broadcasts the crypto leg.
	// Earlier events carry only order identifiers.
	TransactionHash string `json:"transaction_hash,omitempty"`

	// MessageID links the order back to the chat message that opened the
	// ramp. Absent when the user opened the ramp outside a conversation.
	MessageID string `json:"message_id,omitempty"`

	Network        string `json:"network"`
	CryptoCurrency string `json:"crypto_currency"`
	CryptoAmount   string `json:"crypto_amount"`
	WalletAddress  string `json:"wallet_address,omitempty"`
	FiatCurrency   string `json:"fiat_currency,omitempty"`
	FiatAmount     string `json:"fiat_amount,omitempty"`
}

// settlementHash picks the best available settlement identifier. The real
// transaction hash when the provider reports one, otherwise the order
// identifiers, so the record always has something to show.
func settlementHash(ev *OrderEvent) string {
	switch {
	case ev.TransactionHash != "":
		return ev.TransactionHash
	case ev.OrderID != "":
		return ev.OrderID
	default:
		return ev.PartnerOrderID
	}
}

// SettlementRecorder is the tracker surface the adapter needs.
type SettlementRecorder interface {
	Record(ctx context.Context, s track.Settlement) error
}

// Adapter turns ramp order events into tracked settlements.
type Adapter struct {
	tracker SettlementRecorder
	metrics *metrics.Metrics
	logger  *slog.Logger
}

// NewAdapter creates a ramp adapter. If m is nil, no metrics are recorded.
func NewAdapter(tracker SettlementRecorder, m *metrics.Metrics, logger *slog.Logger) *Adapter {
	return &Adapter{
		tracker: tracker,
		metrics: m,
		logger:  logger,
	}
}

// HandleOrderEvent processes one order webhook. Non-terminal statuses are
// logged and dropped; terminal statuses are recorded as settlements. Unknown
// statuses are ignored with a warning so new provider states never break the
// webhook.
func (a *Adapter) HandleOrderEvent(ctx context.Context, ev *OrderEvent) error {
	if a.metrics != nil {
		a.metrics.RecordRampEvent(string(ev.Status))
	}

	switch ev.Status {
	case OrderCreated, OrderProcessing:
		a.logger.DebugContext(ctx, "ramp order in progress",
			"order_id", ev.OrderID,
			"status", string(ev.Status),
		)
		return nil

	case OrderCompleted:
		return a.tracker.Record(ctx, track.Settlement{
			MessageID:     ev.MessageID,
			TxHash:        settlementHash(ev),
			Network:       ev.Network,
			TokenSymbol:   ev.CryptoCurrency,
			AmountDecimal: ev.CryptoAmount,
			ToAddress:     ev.WalletAddress,
			Source:        nats.SourceRamp,
			Success:       true,
		})

	case OrderFailed:
		return a.tracker.Record(ctx, track.Settlement{
			MessageID:     ev.MessageID,
			TxHash:        settlementHash(ev),
			Network:       ev.Network,
			TokenSymbol:   ev.CryptoCurrency,
			AmountDecimal: ev.CryptoAmount,
			ToAddress:     ev.WalletAddress,
			Source:        nats.SourceRamp,
			Success:       false,
			ErrorKind:     "ramp_order_failed",
		})

	default:
		a.logger.WarnContext(ctx, "unknown ramp order status, ignoring",
			"order_id", ev.OrderID,
			"status", string(ev.Status),
		)
		return nil
	}
}

// WidgetConfig holds the parameters for opening the hosted on-ramp widget.
type WidgetConfig struct {
	BaseURL        string
	APIKey         string
	WalletAddress  string
	Network        string
	CryptoCurrency string
	FiatAmount     string
	FiatCurrency   string
	PartnerOrderID string // usually the chat message ID
}

// WidgetURL builds the hosted widget URL. The partner order ID round-trips
// through the provider and comes back on webhooks, which is how completed
// orders find their chat message.
func (c WidgetConfig) WidgetURL() (string, error) {
	if c.BaseURL == "" || c.APIKey == "" {
		return "", fmt.Errorf("ramp widget requires a base URL and API key")
	}
	u, err := url.Parse(c.BaseURL)
	if err != nil {
		return "", fmt.Errorf("invalid ramp base URL: %w", err)
	}

	q := u.Query()
	q.Set("apiKey", c.APIKey)
	if c.WalletAddress != "" {
		q.Set("walletAddress", c.WalletAddress)
	}
	if c.Network != "" {
		q.Set("network", c.Network)
	}
	if c.CryptoCurrency != "" {
		q.Set("cryptoCurrencyCode", c.CryptoCurrency)
	}
	if c.FiatAmount != "" {
		q.Set("fiatAmount", c.FiatAmount)
	}
	if c.FiatCurrency != "" {
		q.Set("fiatCurrency", c.FiatCurrency)
	}
	if c.PartnerOrderID != "" {
		q.Set("partnerOrderId", c.PartnerOrderID)
	}
	u.RawQuery = q.Encode()
	return u.String(), nil
}
