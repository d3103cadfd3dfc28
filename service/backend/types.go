package backend

import "time"

// FeeEstimate is the backend's gas suggestion for an EVM transaction.
// Values are 0x-hex quantities, passed through to the builder untouched.
type FeeEstimate struct {
	GasLimit string `json:"gas_limit"`
	GasPrice string `json:"gas_price"`
}

// UnsignedTransaction is a backend-prepared transaction payload. For Solana
// the payload is a base64-serialized transaction; for EVM it carries calldata
// for contract interactions the backend assembled (swaps, staking).
type UnsignedTransaction struct {
	Network   string `json:"network"`
	Payload   string `json:"payload"`
	ToAddress string `json:"to_address,omitempty"`
	Data      string `json:"data,omitempty"`
}

// TrackRequest records a settled transaction against a chat message so both
// participants see its status.
type TrackRequest struct {
	MessageID     string `json:"message_id"`
	TxHash        string `json:"tx_hash"`
	Network       string `json:"network"`
	TokenSymbol   string `json:"token_symbol"`
	AmountDecimal string `json:"amount_decimal"`
	FromAddress   string `json:"from_address,omitempty"`
	ToAddress     string `json:"to_address,omitempty"`
	Provider      string `json:"provider,omitempty"`
}

// ShareData is the social enrichment the backend computes for a settled
// transaction.
type ShareData struct {
	Achievement         string         `json:"achievement,omitempty"`
	UserStats           map[string]int `json:"user_stats,omitempty"`
	SocialProof         string         `json:"social_proof,omitempty"`
	PersonalizedMessage string         `json:"personalized_message,omitempty"`
}

// Payment request statuses as the backend reports them.
const (
	RequestStatusPending   = "pending"
	RequestStatusAccepted  = "accepted"
	RequestStatusDeclined  = "declined"
	RequestStatusExpired   = "expired"
	RequestStatusCancelled = "cancelled"
)

// PaymentRequest is a peer-to-peer payment request between chat users. The
// backend is the source of truth for its status.
type PaymentRequest struct {
	ID            string     `json:"id"`
	RequesterID   string     `json:"requester_id"`
	PayerID       string     `json:"payer_id"`
	AmountDecimal string     `json:"amount_decimal"`
	TokenSymbol   string     `json:"token_symbol"`
	Network       string     `json:"network"`
	Status        string     `json:"status"`
	Note          string     `json:"note,omitempty"`
	MessageID     string     `json:"message_id,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
	ExpiresAt     *time.Time `json:"expires_at,omitempty"`
}

// Terminal reports whether the request can no longer change status.
func (r *PaymentRequest) Terminal() bool {
	switch r.Status {
	case RequestStatusAccepted, RequestStatusDeclined, RequestStatusExpired, RequestStatusCancelled:
		return true
	}
	return false
}

// RequestPreview is the fully-resolved payable form of a payment request:
// recipient wallet address plus fee estimate, ready to become an intent.
type RequestPreview struct {
	ToAddress     string      `json:"to_address"`
	AmountDecimal string      `json:"amount_decimal"`
	TokenSymbol   string      `json:"token_symbol"`
	TokenContract string      `json:"token_contract,omitempty"`
	Network       string      `json:"network"`
	Fee           FeeEstimate `json:"fee"`
	RawPayload    string      `json:"raw_payload,omitempty"`
}

// Recipient is the resolved wallet identity for a chat user on a network.
type Recipient struct {
	UserID        string `json:"user_id"`
	DisplayName   string `json:"display_name,omitempty"`
	WalletAddress string `json:"wallet_address"`
	Network       string `json:"network"`
}

// TransactionStatus is the backend's view of a broadcast transaction.
type TransactionStatus struct {
	TxHash        string `json:"tx_hash"`
	Network       string `json:"network"`
	Status        string `json:"status"` // pending, confirmed, failed
	Confirmations int    `json:"confirmations"`
}
