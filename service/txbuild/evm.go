package txbuild

import (
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"

	"github.com/bloqz/settle/service/intent"
)

// erc20TransferSelector is the 4-byte selector for transfer(address,uint256).
var erc20TransferSelector = []byte{0xa9, 0x05, 0x9c, 0xbb}

// Default gas limits applied when the intent carries no fee estimate.
const (
	defaultNativeGasLimit = 21000
	defaultTokenGasLimit  = 100000
)

// EVMTransaction is the JSON-RPC transaction object passed to the wallet's
// eth_sendTransaction / eth_signTransaction call. All numeric fields are
// 0x-hex quantities per the Ethereum JSON-RPC spec.
type EVMTransaction struct {
	From     string `json:"from"`
	To       string `json:"to"`
	Value    string `json:"value"`
	Data     string `json:"data,omitempty"`
	Gas      string `json:"gas"`
	GasPrice string `json:"gasPrice,omitempty"`
}

// BuildEVM assembles the transaction object for an EVM intent. Native sends
// carry the amount in Value; token sends target the ERC-20 contract with zero
// Value and transfer calldata. Pre-built calldata on the intent (swaps,
// approvals) passes through untouched.
func BuildEVM(it *intent.Intent, from string) (*EVMTransaction, error) {
	if !common.IsHexAddress(from) {
		return nil, fmt.Errorf("%w: invalid from address %q", ErrMalformedIntent, from)
	}
	if !common.IsHexAddress(it.ToAddress) {
		return nil, fmt.Errorf("%w: invalid to address %q", ErrMalformedIntent, it.ToAddress)
	}

	amount, err := toMinorUnits(it.AmountDecimal, it.TokenSymbol)
	if err != nil {
		return nil, err
	}

	tx := &EVMTransaction{
		From:     from,
		GasPrice: it.GasPrice,
	}

	switch {
	case it.Data != "":
		// Backend-assembled call (swap, stake, approve): trust its target
		// and calldata, attach the value only for native-token calls.
		tx.To = it.ToAddress
		tx.Data = it.Data
		if it.TokenContract == "" {
			tx.Value = hexutil.EncodeBig(amount)
		} else {
			tx.Value = "0x0"
		}
		tx.Gas = gasOrDefault(it.GasLimit, defaultTokenGasLimit)

	case it.TokenContract != "":
		// ERC-20 transfer: selector ++ pad32(to) ++ pad32(amount).
		if !common.IsHexAddress(it.TokenContract) {
			return nil, fmt.Errorf("%w: invalid token contract %q", ErrMalformedIntent, it.TokenContract)
		}
		data := make([]byte, 0, 4+32+32)
		data = append(data, erc20TransferSelector...)
		data = append(data, common.LeftPadBytes(common.HexToAddress(it.ToAddress).Bytes(), 32)...)
		data = append(data, common.LeftPadBytes(amount.Bytes(), 32)...)

		tx.To = common.HexToAddress(it.TokenContract).Hex()
		tx.Value = "0x0"
		tx.Data = hexutil.Encode(data)
		tx.Gas = gasOrDefault(it.GasLimit, defaultTokenGasLimit)

	default:
		tx.To = common.HexToAddress(it.ToAddress).Hex()
		tx.Value = hexutil.EncodeBig(amount)
		tx.Gas = gasOrDefault(it.GasLimit, defaultNativeGasLimit)
	}

	return tx, nil
}

func gasOrDefault(hint string, fallback uint64) string {
	if hint != "" {
		return hint
	}
	return hexutil.EncodeBig(new(big.Int).SetUint64(fallback))
}
