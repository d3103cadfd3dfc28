// Package intent defines the immutable transaction intent that enters the
// signing pipeline. Intents are produced by the conversational layer or by
// payment-request acceptance; the pipeline never mutates them.
package intent

import (
	"fmt"

	"github.com/go-playground/validator/v10"
)

// Kind is the user-facing operation the intent represents.
type Kind string

const (
	KindSend    Kind = "send"
	KindSwap    Kind = "swap"
	KindStake   Kind = "stake"
	KindUnstake Kind = "unstake"
	KindApprove Kind = "approve"
	KindBuy     Kind = "buy"
	KindSell    Kind = "sell"
)

// Intent describes what the user asked for, normalized by the backend or the
// conversational layer. Amounts are decimal strings in whole-token units;
// conversion to minor units happens exactly once, in the transaction builder.
type Intent struct {
	Kind    Kind   `json:"kind" validate:"required,oneof=send swap stake unstake approve buy sell"`
	Network string `json:"network" validate:"required"`

	FromAddress string `json:"from_address,omitempty"`
	ToAddress   string `json:"to_address,omitempty"`

	AmountDecimal string `json:"amount_decimal" validate:"required"`
	TokenSymbol   string `json:"token_symbol" validate:"required"`

	// TokenContract is the ERC-20 contract address or SPL mint for
	// non-native tokens. Empty for the network's native asset.
	TokenContract string `json:"token_contract,omitempty"`

	// RawUnsignedPayload is an opaque backend- or locally-produced unsigned
	// transaction. For Solana this is a base64-encoded serialized
	// transaction; for EVM it may carry pre-built calldata.
	RawUnsignedPayload string `json:"raw_unsigned_payload,omitempty"`

	// Gas hints from the backend fee estimate, 0x-hex. Optional; the
	// builder applies defaults when absent.
	GasLimit string `json:"gas_limit,omitempty"`
	GasPrice string `json:"gas_price,omitempty"`

	// Data is pre-built EVM calldata (0x-hex) for swap/stake/approve
	// intents where the backend assembled the call. Optional.
	Data string `json:"data,omitempty"`
}

var validate = validator.New()

// Validate checks the intent's required fields. A failed validation is a
// programming or backend-data error; it is never retried.
func (i *Intent) Validate() error {
	if err := validate.Struct(i); err != nil {
		return fmt.Errorf("invalid intent: %w", err)
	}
	return nil
}
