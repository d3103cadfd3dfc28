package db

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func strPtr(s string) *string { return &s }

func TestCreateRecord(t *testing.T) {
	store := NewTestStore(t)
	store.Truncate(t)

	ctx := context.Background()

	params := CreateRecordParams{
		MessageID:     "msg-1",
		TxHash:        "0xhash1",
		Network:       "polygon",
		TokenSymbol:   "USDC",
		AmountDecimal: "25",
		FromAddress:   strPtr("0xfrom"),
		ToAddress:     strPtr("0xto"),
		Provider:      "custodial-evm",
		Source:        "wallet",
		Status:        "settled",
		ExplorerURL:   "https://polygonscan.com/tx/0xhash1",
	}

	rec, err := store.CreateRecord(ctx, params)
	require.NoError(t, err)
	require.NotNil(t, rec)

	assert.Equal(t, "msg-1", rec.MessageID)
	assert.Equal(t, "0xhash1", rec.TxHash)
	assert.Equal(t, "settled", rec.Status)
	assert.False(t, rec.RefreshAttempted)
	assert.Nil(t, rec.ErrorKind)
	require.NotNil(t, rec.FromAddress)
	assert.Equal(t, "0xfrom", *rec.FromAddress)
	assert.WithinDuration(t, time.Now(), rec.CreatedAt, 5*time.Second)

	t.Run("duplicate message_id is a no-op", func(t *testing.T) {
		dup := params
		dup.TxHash = "0xDIFFERENT"
		rec2, err := store.CreateRecord(ctx, dup)
		require.NoError(t, err)
		// First write wins.
		assert.Equal(t, "0xhash1", rec2.TxHash)
	})
}

func TestGetRecord_NotFound(t *testing.T) {
	store := NewTestStore(t)
	store.Truncate(t)

	_, err := store.GetRecord(context.Background(), "nope")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestClaimRefresh(t *testing.T) {
	store := NewTestStore(t)
	store.Truncate(t)

	ctx := context.Background()
	_, err := store.CreateRecord(ctx, CreateRecordParams{
		MessageID: "msg-claim", TxHash: "0xh", Network: "ethereum",
		TokenSymbol: "ETH", AmountDecimal: "1", Status: "settled",
	})
	require.NoError(t, err)

	won, err := store.ClaimRefresh(ctx, "msg-claim")
	require.NoError(t, err)
	assert.True(t, won)

	// The second claim loses: enrichment runs at most once.
	won, err = store.ClaimRefresh(ctx, "msg-claim")
	require.NoError(t, err)
	assert.False(t, won)

	rec, err := store.GetRecord(ctx, "msg-claim")
	require.NoError(t, err)
	assert.True(t, rec.RefreshAttempted)
}

func TestUpdateEnrichment(t *testing.T) {
	store := NewTestStore(t)
	store.Truncate(t)

	ctx := context.Background()
	_, err := store.CreateRecord(ctx, CreateRecordParams{
		MessageID: "msg-enrich", TxHash: "0xh", Network: "ethereum",
		TokenSymbol: "ETH", AmountDecimal: "1", Status: "settled",
	})
	require.NoError(t, err)

	err = store.UpdateEnrichment(ctx, UpdateEnrichmentParams{
		MessageID:           "msg-enrich",
		Achievement:         strPtr("first_send"),
		SocialProof:         strPtr("3 friends sent ETH this week"),
		PersonalizedMessage: strPtr("Your first payment!"),
		UserStats:           map[string]int{"total_sends": 1},
	})
	require.NoError(t, err)

	rec, err := store.GetRecord(ctx, "msg-enrich")
	require.NoError(t, err)
	require.NotNil(t, rec.Achievement)
	assert.Equal(t, "first_send", *rec.Achievement)
	assert.Equal(t, 1, rec.UserStats["total_sends"])

	t.Run("missing record", func(t *testing.T) {
		err := store.UpdateEnrichment(ctx, UpdateEnrichmentParams{MessageID: "absent"})
		assert.ErrorIs(t, err, ErrNotFound)
	})
}

func TestListRecordsByNetwork(t *testing.T) {
	store := NewTestStore(t)
	store.Truncate(t)

	ctx := context.Background()
	for _, id := range []string{"a", "b", "c"} {
		_, err := store.CreateRecord(ctx, CreateRecordParams{
			MessageID: "msg-" + id, TxHash: "0x" + id, Network: "base",
			TokenSymbol: "ETH", AmountDecimal: "1", Status: "settled",
		})
		require.NoError(t, err)
	}

	records, err := store.ListRecordsByNetwork(ctx, "base", 10, 0)
	require.NoError(t, err)
	assert.Len(t, records, 3)

	records, err = store.ListRecordsByNetwork(ctx, "solana", 10, 0)
	require.NoError(t, err)
	assert.Empty(t, records)
}
