package backend

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewClient(srv.URL, "test-token", srv.Client(), logger)
}

func TestExecuteTransaction(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "POST", r.Method)
		assert.Equal(t, "/api/v1/transactions/execute", r.URL.Path)
		assert.Equal(t, "Bearer test-token", r.Header.Get("Authorization"))

		var body map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "polygon", body["network"])
		assert.Equal(t, "0xsigned", body["signed_payload"])

		json.NewEncoder(w).Encode(map[string]string{"tx_hash": "0xhash"})
	})

	hash, err := client.ExecuteTransaction(context.Background(), "polygon", "0xsigned")
	require.NoError(t, err)
	assert.Equal(t, "0xhash", hash)
}

func TestExecuteTransaction_EmptyHash(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]string{})
	})

	_, err := client.ExecuteTransaction(context.Background(), "polygon", "0xsigned")
	require.Error(t, err)
}

func TestTrackTransaction(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v1/transactions/track", r.URL.Path)
		var req TrackRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "msg-1", req.MessageID)
		assert.Equal(t, "0xhash", req.TxHash)
		w.WriteHeader(http.StatusCreated)
	})

	err := client.TrackTransaction(context.Background(), &TrackRequest{
		MessageID: "msg-1",
		TxHash:    "0xhash",
		Network:   "ethereum",
	})
	require.NoError(t, err)
}

func TestGetPaymentRequest(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v1/payment-requests/req-1", r.URL.Path)
		json.NewEncoder(w).Encode(PaymentRequest{
			ID:            "req-1",
			Status:        RequestStatusPending,
			AmountDecimal: "25",
			TokenSymbol:   "USDC",
			Network:       "polygon",
		})
	})

	pr, err := client.GetPaymentRequest(context.Background(), "req-1")
	require.NoError(t, err)
	assert.Equal(t, RequestStatusPending, pr.Status)
	assert.False(t, pr.Terminal())
}

func TestPaymentRequestTerminal(t *testing.T) {
	for _, status := range []string{RequestStatusAccepted, RequestStatusDeclined, RequestStatusExpired, RequestStatusCancelled} {
		pr := &PaymentRequest{Status: status}
		assert.True(t, pr.Terminal(), "status %s", status)
	}
	assert.False(t, (&PaymentRequest{Status: RequestStatusPending}).Terminal())
}

func TestBackendErrorSurfacesMessage(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusConflict)
		json.NewEncoder(w).Encode(map[string]string{"error": "request already accepted"})
	})

	err := client.MarkRequestAccepted(context.Background(), "req-1", "0xhash")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "request already accepted")
	assert.Contains(t, err.Error(), "409")
}

func TestResolveRecipient(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v1/users/user-9/wallet", r.URL.Path)
		assert.Equal(t, "solana", r.URL.Query().Get("network"))
		json.NewEncoder(w).Encode(Recipient{
			UserID:        "user-9",
			WalletAddress: "9aE476sH92Vz7DMPyq5WLPkrKWivxeuTKEFKd2sZZcde",
			Network:       "solana",
		})
	})

	rec, err := client.ResolveRecipient(context.Background(), "user-9", "solana")
	require.NoError(t, err)
	assert.Equal(t, "9aE476sH92Vz7DMPyq5WLPkrKWivxeuTKEFKd2sZZcde", rec.WalletAddress)
}

func TestGetTransactionShareData(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v1/transactions/0xhash/share-data", r.URL.Path)
		json.NewEncoder(w).Encode(ShareData{
			Achievement:         "first_send",
			SocialProof:         "3 friends sent USDC this week",
			PersonalizedMessage: "You just sent your first payment!",
			UserStats:           map[string]int{"total_sends": 1},
		})
	})

	data, err := client.GetTransactionShareData(context.Background(), "0xhash")
	require.NoError(t, err)
	assert.Equal(t, "first_send", data.Achievement)
	assert.Equal(t, 1, data.UserStats["total_sends"])
}
