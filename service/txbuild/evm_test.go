package txbuild

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bloqz/settle/service/intent"
)

const (
	fromAddr = "0x1111111111111111111111111111111111111111"
	toAddr   = "0x2222222222222222222222222222222222222222"
	usdcAddr = "0x3c499c542cEF5E3811e1192ce70d8cC03d5c3359"
)

func TestBuildEVM_NativeSend(t *testing.T) {
	it := &intent.Intent{
		Kind:          intent.KindSend,
		Network:       "ethereum",
		ToAddress:     toAddr,
		AmountDecimal: "0.5",
		TokenSymbol:   "ETH",
	}

	tx, err := BuildEVM(it, fromAddr)
	require.NoError(t, err)

	// 0.5 ETH = 5e17 wei.
	assert.Equal(t, "0x6f05b59d3b20000", tx.Value)
	assert.Equal(t, fromAddr, tx.From)
	assert.Empty(t, tx.Data)
	assert.Equal(t, "0x5208", tx.Gas) // 21000
}

func TestBuildEVM_TokenSend(t *testing.T) {
	it := &intent.Intent{
		Kind:          intent.KindSend,
		Network:       "polygon",
		ToAddress:     toAddr,
		AmountDecimal: "10",
		TokenSymbol:   "USDC",
		TokenContract: usdcAddr,
	}

	tx, err := BuildEVM(it, fromAddr)
	require.NoError(t, err)

	// The transaction targets the token contract, not the recipient.
	assert.Equal(t, usdcAddr, tx.To)
	assert.Equal(t, "0x0", tx.Value)

	// transfer(address,uint256): selector + padded recipient + padded amount.
	// 10 USDC = 10_000_000 minor units = 0x989680.
	assert.Equal(t,
		"0xa9059cbb"+
			"0000000000000000000000002222222222222222222222222222222222222222"+
			"0000000000000000000000000000000000000000000000000000000000989680",
		tx.Data,
	)
}

func TestBuildEVM_GasHintPassesThrough(t *testing.T) {
	it := &intent.Intent{
		Kind:          intent.KindSend,
		Network:       "ethereum",
		ToAddress:     toAddr,
		AmountDecimal: "1",
		TokenSymbol:   "ETH",
		GasLimit:      "0x7530",
		GasPrice:      "0x3b9aca00",
	}

	tx, err := BuildEVM(it, fromAddr)
	require.NoError(t, err)
	assert.Equal(t, "0x7530", tx.Gas)
	assert.Equal(t, "0x3b9aca00", tx.GasPrice)
}

func TestBuildEVM_PrebuiltCalldata(t *testing.T) {
	it := &intent.Intent{
		Kind:          intent.KindSwap,
		Network:       "ethereum",
		ToAddress:     toAddr,
		AmountDecimal: "0.25",
		TokenSymbol:   "ETH",
		Data:          "0xdeadbeef",
	}

	tx, err := BuildEVM(it, fromAddr)
	require.NoError(t, err)
	assert.Equal(t, "0xdeadbeef", tx.Data)
	// Native-token swap still attaches the value.
	assert.Equal(t, "0x3782dace9d90000", tx.Value)
}

func TestBuildEVM_Malformed(t *testing.T) {
	tests := []struct {
		name string
		it   intent.Intent
		from string
	}{
		{
			name: "bad to address",
			it:   intent.Intent{ToAddress: "not-an-address", AmountDecimal: "1", TokenSymbol: "ETH"},
			from: fromAddr,
		},
		{
			name: "bad from address",
			it:   intent.Intent{ToAddress: toAddr, AmountDecimal: "1", TokenSymbol: "ETH"},
			from: "nope",
		},
		{
			name: "unknown token symbol",
			it:   intent.Intent{ToAddress: toAddr, AmountDecimal: "1", TokenSymbol: "WAGMI"},
			from: fromAddr,
		},
		{
			name: "negative amount",
			it:   intent.Intent{ToAddress: toAddr, AmountDecimal: "-1", TokenSymbol: "ETH"},
			from: fromAddr,
		},
		{
			name: "too many decimal places",
			it:   intent.Intent{ToAddress: toAddr, AmountDecimal: "0.0000001", TokenSymbol: "USDC"},
			from: fromAddr,
		},
		{
			name: "bad token contract",
			it:   intent.Intent{ToAddress: toAddr, AmountDecimal: "1", TokenSymbol: "USDC", TokenContract: "junk"},
			from: fromAddr,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := BuildEVM(&tt.it, tt.from)
			assert.ErrorIs(t, err, ErrMalformedIntent)
		})
	}
}

func TestDecimalsFor(t *testing.T) {
	d, ok := DecimalsFor("usdc")
	require.True(t, ok)
	assert.Equal(t, int32(6), d)

	_, ok = DecimalsFor("NOT_A_TOKEN")
	assert.False(t, ok)
}
