package chains

import (
	"fmt"
	"strings"
)

// Family classifies a network into a blockchain family. The family
// determines the transaction shape and the signing method used downstream.
type Family string

const (
	FamilyEVM    Family = "evm"
	FamilySolana Family = "solana"
)

// Info holds the canonical metadata for a classified network.
type Info struct {
	// Canonical is the normalized network identifier (lowercase).
	Canonical string
	Family    Family
	// NativeSymbol is the gas/native token symbol for the network.
	NativeSymbol string
	// ExplorerTemplate is a printf template with one %s verb for the
	// transaction hash.
	ExplorerTemplate string
}

// networks is the closed set of networks the pipeline understands.
var networks = map[string]Info{
	"ethereum": {
		Canonical:        "ethereum",
		Family:           FamilyEVM,
		NativeSymbol:     "ETH",
		ExplorerTemplate: "https://etherscan.io/tx/%s",
	},
	"polygon": {
		Canonical:        "polygon",
		Family:           FamilyEVM,
		NativeSymbol:     "MATIC",
		ExplorerTemplate: "https://polygonscan.com/tx/%s",
	},
	"arbitrum": {
		Canonical:        "arbitrum",
		Family:           FamilyEVM,
		NativeSymbol:     "ETH",
		ExplorerTemplate: "https://arbiscan.io/tx/%s",
	},
	"optimism": {
		Canonical:        "optimism",
		Family:           FamilyEVM,
		NativeSymbol:     "ETH",
		ExplorerTemplate: "https://optimistic.etherscan.io/tx/%s",
	},
	"base": {
		Canonical:        "base",
		Family:           FamilyEVM,
		NativeSymbol:     "ETH",
		ExplorerTemplate: "https://basescan.org/tx/%s",
	},
	"solana": {
		Canonical:        "solana",
		Family:           FamilySolana,
		NativeSymbol:     "SOL",
		ExplorerTemplate: "https://solscan.io/tx/%s",
	},
}

// Classify maps a network identifier to its chain family and canonical
// metadata. Identifiers are case-insensitive. Unknown identifiers fall back
// to ethereum/EVM; this mirrors the upstream product behavior and is kept as
// an explicit, tested policy rather than an error.
func Classify(network string) Info {
	if info, ok := networks[strings.ToLower(strings.TrimSpace(network))]; ok {
		return info
	}
	return networks["ethereum"]
}

// IsKnown reports whether the network identifier is in the supported set.
// Callers that want to reject typos instead of relying on the ethereum
// fallback can check this first.
func IsKnown(network string) bool {
	_, ok := networks[strings.ToLower(strings.TrimSpace(network))]
	return ok
}

// ExplorerURL renders the block explorer link for a transaction hash on the
// given network. Unknown networks use the ethereum explorer, consistent with
// Classify.
func ExplorerURL(network, txHash string) string {
	return fmt.Sprintf(Classify(network).ExplorerTemplate, txHash)
}
