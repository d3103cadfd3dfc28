package nats

import (
	"time"
)

// Settlement event sources.
const (
	SourceWallet = "wallet" // settled through a signing provider
	SourceRamp   = "ramp"   // completed through the fiat on-ramp
)

// SettlementEvent represents a settled (or failed) transaction published to
// NATS. Events are published to the subject "settlements.{network}" in
// JetStream; chat-feed consumers and the tracker both subscribe.
type SettlementEvent struct {
	// Transaction identifiers
	MessageID string `json:"message_id"`
	TxHash    string `json:"tx_hash"`
	Network   string `json:"network"`

	// Transfer details
	FromAddress   string `json:"from_address,omitempty"`
	ToAddress     string `json:"to_address,omitempty"`
	AmountDecimal string `json:"amount_decimal"`
	TokenSymbol   string `json:"token_symbol"`

	// Origin
	Source   string `json:"source"`             // wallet or ramp
	Provider string `json:"provider,omitempty"` // signing provider kind

	Success     bool   `json:"success"`
	ErrorKind   string `json:"error_kind,omitempty"`
	ExplorerURL string `json:"explorer_url,omitempty"`

	// Metadata
	SettledAt   time.Time `json:"settled_at"`
	PublishedAt time.Time `json:"published_at"`
}
