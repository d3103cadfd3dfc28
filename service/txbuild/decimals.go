// Package txbuild turns validated intents into chain-ready transactions.
// Amount conversion from human decimal strings to minor units happens here
// and nowhere else.
package txbuild

import (
	"errors"
	"fmt"
	"math/big"
	"strings"

	"github.com/shopspring/decimal"
)

// ErrMalformedIntent indicates the intent cannot be turned into a valid
// transaction (bad address, unparseable amount, unknown token). It is a data
// error, never retried.
var ErrMalformedIntent = errors.New("malformed intent")

// tokenDecimals maps token symbols to their minor-unit exponent. Unknown
// symbols are rejected rather than defaulted: guessing a decimal exponent is
// how users lose money by a factor of 10^12.
var tokenDecimals = map[string]int32{
	"ETH":   18,
	"WETH":  18,
	"MATIC": 18,
	"POL":   18,
	"USDC":  6,
	"USDT":  6,
	"DAI":   18,
	"SOL":   9,
}

// DecimalsFor returns the minor-unit exponent for a token symbol.
func DecimalsFor(symbol string) (int32, bool) {
	d, ok := tokenDecimals[strings.ToUpper(strings.TrimSpace(symbol))]
	return d, ok
}

// toMinorUnits converts a decimal amount string into an integer count of
// minor units. The amount must be positive and must not carry more fractional
// digits than the token supports.
func toMinorUnits(amountDecimal, symbol string) (*big.Int, error) {
	decimals, ok := DecimalsFor(symbol)
	if !ok {
		return nil, fmt.Errorf("%w: unknown token symbol %q", ErrMalformedIntent, symbol)
	}

	amount, err := decimal.NewFromString(amountDecimal)
	if err != nil {
		return nil, fmt.Errorf("%w: amount %q: %v", ErrMalformedIntent, amountDecimal, err)
	}
	if amount.Sign() <= 0 {
		return nil, fmt.Errorf("%w: amount must be positive, got %q", ErrMalformedIntent, amountDecimal)
	}

	shifted := amount.Shift(decimals)
	if !shifted.IsInteger() {
		return nil, fmt.Errorf("%w: amount %q has more than %d decimal places", ErrMalformedIntent, amountDecimal, decimals)
	}
	return shifted.BigInt(), nil
}
