package solana

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// mockRPCClient implements RPCClient for testing.
// It's behavior-focused: we set what it should return, not verify call sequences.
type mockRPCClient struct {
	blockhash     solana.Hash
	blockhashErr  error
	blockhashHits int

	statuses  []*rpc.SignatureStatusesResult
	statusErr error
}

func (m *mockRPCClient) GetLatestBlockhash(
	ctx context.Context,
	commitment rpc.CommitmentType,
) (*rpc.GetLatestBlockhashResult, error) {
	m.blockhashHits++
	if m.blockhashErr != nil {
		return nil, m.blockhashErr
	}
	return &rpc.GetLatestBlockhashResult{
		Value: &rpc.LatestBlockhashResult{
			Blockhash:            m.blockhash,
			LastValidBlockHeight: 12345,
		},
	}, nil
}

func (m *mockRPCClient) GetSignatureStatuses(
	ctx context.Context,
	searchTransactionHistory bool,
	signatures ...solana.Signature,
) (*rpc.GetSignatureStatusesResult, error) {
	if m.statusErr != nil {
		return nil, m.statusErr
	}
	return &rpc.GetSignatureStatusesResult{Value: m.statuses}, nil
}

func newTestClient(mock *mockRPCClient) *Client {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewClient(mock, "test", nil, logger)
}

func TestLatestBlockhash(t *testing.T) {
	ctx := context.Background()
	want := solana.MustHashFromBase58("GfVcyD4kkTrj4bKc7WA9sZCin9JDbdT4Zkd3EittNR1W")

	mock := &mockRPCClient{blockhash: want}
	client := newTestClient(mock)

	got, err := client.LatestBlockhash(ctx)
	require.NoError(t, err)
	assert.Equal(t, want, got)
	assert.Equal(t, 1, mock.blockhashHits)

	// Each call goes to the RPC; results are never cached.
	_, err = client.LatestBlockhash(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, mock.blockhashHits)
}

func TestLatestBlockhash_Error(t *testing.T) {
	mock := &mockRPCClient{blockhashErr: errors.New("rpc unavailable")}
	client := newTestClient(mock)

	_, err := client.LatestBlockhash(context.Background())
	require.Error(t, err)
}

func TestSignatureExists(t *testing.T) {
	ctx := context.Background()
	sig := solana.MustSignatureFromBase58("5j7s6NiJS3JAkvgkoc18WVAsiSaci2pxB2A6ueCJP4tprA2TFg9wSyTLeYouxPBJEMzJinENTkpA52YStRW5Dia7")

	t.Run("found", func(t *testing.T) {
		mock := &mockRPCClient{
			statuses: []*rpc.SignatureStatusesResult{
				{ConfirmationStatus: rpc.ConfirmationStatusConfirmed},
			},
		}
		client := newTestClient(mock)

		exists, err := client.SignatureExists(ctx, sig)
		require.NoError(t, err)
		assert.True(t, exists)
	})

	t.Run("not found", func(t *testing.T) {
		mock := &mockRPCClient{statuses: []*rpc.SignatureStatusesResult{nil}}
		client := newTestClient(mock)

		exists, err := client.SignatureExists(ctx, sig)
		require.NoError(t, err)
		assert.False(t, exists)
	})

	t.Run("rpc error surfaces", func(t *testing.T) {
		mock := &mockRPCClient{statusErr: errors.New("timeout")}
		client := newTestClient(mock)

		_, err := client.SignatureExists(ctx, sig)
		require.Error(t, err)
	})
}
