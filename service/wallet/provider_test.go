package wallet

import (
	"context"
	"testing"

	solanago "github.com/gagliardetto/solana-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bloqz/settle/service/chains"
)

type fakeSession struct{}

func (fakeSession) Request(ctx context.Context, method string, params ...any) (string, error) {
	return "", nil
}

type fakeSigner struct{}

func (fakeSigner) SignAndSendTransaction(ctx context.Context, tx *solanago.Transaction) (solanago.Signature, error) {
	return solanago.Signature{}, nil
}

func TestResolve_PriorityOrder(t *testing.T) {
	// All three identities connected: WalletConnect wins for EVM.
	snap := AuthSnapshot{
		WalletConnectAddress:   "0xwc",
		WalletConnectSession:   fakeSession{},
		CustodialEVMAddress:    "0xcust",
		CustodialEVMSession:    fakeSession{},
		CustodialSolanaAddress: "So1ana",
		CustodialSolanaSigner:  fakeSigner{},
	}

	p, err := Resolve(chains.FamilyEVM, snap)
	require.NoError(t, err)
	assert.Equal(t, KindWalletConnectEVM, p.Kind)
	assert.Equal(t, "0xwc", p.Address)

	// Without WalletConnect, the custodial EVM wallet is selected.
	snap.WalletConnectAddress = ""
	snap.WalletConnectSession = nil
	p, err = Resolve(chains.FamilyEVM, snap)
	require.NoError(t, err)
	assert.Equal(t, KindCustodialEVM, p.Kind)

	// Solana resolution is independent of EVM state.
	p, err = Resolve(chains.FamilySolana, snap)
	require.NoError(t, err)
	assert.Equal(t, KindCustodialSolana, p.Kind)
	assert.Equal(t, "So1ana", p.Address)
}

func TestResolve_Deterministic(t *testing.T) {
	snap := AuthSnapshot{
		WalletConnectAddress: "0xwc",
		WalletConnectSession: fakeSession{},
		CustodialEVMAddress:  "0xcust",
		CustodialEVMSession:  fakeSession{},
	}
	first, err := Resolve(chains.FamilyEVM, snap)
	require.NoError(t, err)
	for range 5 {
		p, err := Resolve(chains.FamilyEVM, snap)
		require.NoError(t, err)
		assert.Equal(t, first.Kind, p.Kind)
		assert.Equal(t, first.Address, p.Address)
	}
}

func TestResolve_NoProvider(t *testing.T) {
	// Empty snapshot: nothing is eligible for either family.
	_, err := Resolve(chains.FamilyEVM, AuthSnapshot{})
	assert.ErrorIs(t, err, ErrNoProviderAvailable)

	// A Solana-only snapshot cannot serve EVM intents.
	snap := AuthSnapshot{
		CustodialSolanaAddress: "So1ana",
		CustodialSolanaSigner:  fakeSigner{},
	}
	_, err = Resolve(chains.FamilyEVM, snap)
	assert.ErrorIs(t, err, ErrNoProviderAvailable)
	assert.False(t, snap.HasProviderFor(chains.FamilyEVM))
	assert.True(t, snap.HasProviderFor(chains.FamilySolana))
}

// An address without a live session handle must not resolve; a half-connected
// identity is treated as absent.
func TestResolve_AddressWithoutSession(t *testing.T) {
	snap := AuthSnapshot{WalletConnectAddress: "0xwc"}
	_, err := Resolve(chains.FamilyEVM, snap)
	assert.ErrorIs(t, err, ErrNoProviderAvailable)
}
