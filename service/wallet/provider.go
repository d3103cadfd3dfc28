// Package wallet models the signing backends available to the pipeline and
// resolves which one handles a given intent. Authentication state is owned by
// the app's auth/connection layer; this package only reads a snapshot of it.
package wallet

import (
	"context"
	"errors"

	solanago "github.com/gagliardetto/solana-go"

	"github.com/bloqz/settle/service/chains"
)

// ErrNoProviderAvailable indicates that no signing backend is connected for
// the requested chain family. It is recoverable: the caller should prompt the
// user to connect a wallet or log in.
var ErrNoProviderAvailable = errors.New("no signing provider available for chain family")

// Kind identifies a signing backend variant. The set is closed: downstream
// code switches on Kind exactly once (in the dispatcher) and never
// re-inspects which wallet it is talking to.
type Kind string

const (
	KindWalletConnectEVM Kind = "walletconnect-evm"
	KindCustodialEVM     Kind = "custodial-evm"
	KindCustodialSolana  Kind = "custodial-solana"
	KindFiatRamp         Kind = "fiat-ramp"
)

// EVMSession is the JSON-RPC request surface an EVM wallet exposes. Both the
// external WalletConnect session and the embedded custodial wallet satisfy
// it. The result is the raw string the provider returns (a transaction hash
// for eth_sendTransaction, signed bytes for eth_signTransaction, a signature
// for eth_signTypedData_v4).
type EVMSession interface {
	Request(ctx context.Context, method string, params ...any) (string, error)
}

// SolanaSigner signs and submits a fully-built Solana transaction through the
// embedded wallet. The returned signature doubles as the transaction hash.
type SolanaSigner interface {
	SignAndSendTransaction(ctx context.Context, tx *solanago.Transaction) (solanago.Signature, error)
}

// Provider is the resolved signing backend for one intent. Exactly one of
// EVM/Solana is non-nil depending on Kind.
type Provider struct {
	Kind    Kind
	Address string

	EVM    EVMSession
	Solana SolanaSigner
}

// AuthSnapshot is a point-in-time view of the authenticated identities.
// It is assembled by the auth layer and passed in by value; the pipeline
// never reads connection state from globals.
type AuthSnapshot struct {
	// External wallet session (WalletConnect). Connected when both fields
	// are set.
	WalletConnectAddress string
	WalletConnectSession EVMSession

	// Embedded custodial EVM wallet.
	CustodialEVMAddress string
	CustodialEVMSession EVMSession

	// Embedded custodial Solana wallet.
	CustodialSolanaAddress string
	CustodialSolanaSigner  SolanaSigner
}

// HasProviderFor reports whether the snapshot can produce a provider for the
// family without actually resolving one. Used by the request manager to fail
// early with a wallet-missing error before building a preview.
func (s AuthSnapshot) HasProviderFor(family chains.Family) bool {
	_, err := Resolve(family, s)
	return err == nil
}

// Resolve selects exactly one signing provider for the chain family, or
// fails with ErrNoProviderAvailable. Selection is deterministic: the external
// WalletConnect session takes priority over the custodial EVM wallet, which
// takes priority over nothing. Pure function: no signing, no I/O.
func Resolve(family chains.Family, snap AuthSnapshot) (*Provider, error) {
	switch family {
	case chains.FamilyEVM:
		if snap.WalletConnectAddress != "" && snap.WalletConnectSession != nil {
			return &Provider{
				Kind:    KindWalletConnectEVM,
				Address: snap.WalletConnectAddress,
				EVM:     snap.WalletConnectSession,
			}, nil
		}
		if snap.CustodialEVMAddress != "" && snap.CustodialEVMSession != nil {
			return &Provider{
				Kind:    KindCustodialEVM,
				Address: snap.CustodialEVMAddress,
				EVM:     snap.CustodialEVMSession,
			}, nil
		}
	case chains.FamilySolana:
		if snap.CustodialSolanaAddress != "" && snap.CustodialSolanaSigner != nil {
			return &Provider{
				Kind:    KindCustodialSolana,
				Address: snap.CustodialSolanaAddress,
				Solana:  snap.CustodialSolanaSigner,
			}, nil
		}
	}
	return nil, ErrNoProviderAvailable
}
