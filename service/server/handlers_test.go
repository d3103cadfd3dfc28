package server

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bloqz/settle/service/db"
	"github.com/bloqz/settle/service/dispatch"
	"github.com/bloqz/settle/service/intent"
	"github.com/bloqz/settle/service/pipeline"
	"github.com/bloqz/settle/service/ramp"
	"github.com/bloqz/settle/service/request"
	"github.com/bloqz/settle/service/wallet"
)

type mockPipeline struct {
	result    *dispatch.Result
	settleErr error
	record    *db.SettlementRecord
	recordErr error
	rampURL   string
	rampErr   error
	gotMsgID  string
}

func (m *mockPipeline) Settle(ctx context.Context, it *intent.Intent, snap wallet.AuthSnapshot, messageID string) (*dispatch.Result, error) {
	m.gotMsgID = messageID
	if m.settleErr != nil {
		return nil, m.settleErr
	}
	return m.result, nil
}

func (m *mockPipeline) GetEnrichedRecord(ctx context.Context, messageID string) (*db.SettlementRecord, error) {
	if m.recordErr != nil {
		return nil, m.recordErr
	}
	return m.record, nil
}

func (m *mockPipeline) OpenFiatRamp(params pipeline.RampParams) (string, error) {
	if m.rampErr != nil {
		return "", m.rampErr
	}
	return m.rampURL, nil
}

type mockRequests struct {
	result     *dispatch.Result
	acceptErr  error
	declineErr error
	declinedID string
}

func (m *mockRequests) Accept(ctx context.Context, id string, snap wallet.AuthSnapshot) (*dispatch.Result, error) {
	if m.acceptErr != nil {
		return m.result, m.acceptErr
	}
	return m.result, nil
}

func (m *mockRequests) Decline(ctx context.Context, id string) error {
	if m.declineErr != nil {
		return m.declineErr
	}
	m.declinedID = id
	return nil
}

type mockRampEvents struct {
	events []*ramp.OrderEvent
	err    error
}

func (m *mockRampEvents) HandleOrderEvent(ctx context.Context, ev *ramp.OrderEvent) error {
	if m.err != nil {
		return m.err
	}
	m.events = append(m.events, ev)
	return nil
}

type staticSnapshots struct{ snap wallet.AuthSnapshot }

func (s staticSnapshots) SnapshotFor(ctx context.Context, userID string) (wallet.AuthSnapshot, error) {
	return s.snap, nil
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func postJSON(t *testing.T, handler http.Handler, target string, body any) *httptest.ResponseRecorder {
	t.Helper()
	data, err := json.Marshal(body)
	require.NoError(t, err)
	req := httptest.NewRequest("POST", target, bytes.NewReader(data))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)
	return w
}

func TestHandleSubmitIntent(t *testing.T) {
	pipe := &mockPipeline{result: &dispatch.Result{
		Success:  true,
		TxHash:   "0xhash",
		Network:  "polygon",
		Provider: wallet.KindCustodialEVM,
	}}
	handler := handleSubmitIntent(pipe, staticSnapshots{}, testLogger())

	w := postJSON(t, handler, "/api/v1/intents", submitIntentRequest{
		UserID:    "user-1",
		MessageID: "msg-1",
		Intent: intent.Intent{
			Kind:          intent.KindSend,
			Network:       "polygon",
			ToAddress:     "0x2222222222222222222222222222222222222222",
			AmountDecimal: "25",
			TokenSymbol:   "USDC",
		},
	})

	require.Equal(t, http.StatusOK, w.Code)
	var resp settlementResponse
	require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
	assert.True(t, resp.Success)
	assert.Equal(t, "0xhash", resp.TxHash)
	assert.Equal(t, "custodial-evm", resp.Provider)
	assert.Equal(t, "msg-1", pipe.gotMsgID)
}

func TestHandleSubmitIntent_MissingUser(t *testing.T) {
	handler := handleSubmitIntent(&mockPipeline{}, staticSnapshots{}, testLogger())
	w := postJSON(t, handler, "/api/v1/intents", submitIntentRequest{MessageID: "msg-1"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestHandleSubmitIntent_NoProvider(t *testing.T) {
	pipe := &mockPipeline{settleErr: wallet.ErrNoProviderAvailable}
	handler := handleSubmitIntent(pipe, staticSnapshots{}, testLogger())

	w := postJSON(t, handler, "/api/v1/intents", submitIntentRequest{UserID: "u", MessageID: "m"})
	assert.Equal(t, http.StatusConflict, w.Code)
}

func TestHandleGetRecord(t *testing.T) {
	mux := http.NewServeMux()
	pipe := &mockPipeline{record: &db.SettlementRecord{MessageID: "msg-1", Status: "settled"}}
	mux.Handle("GET /api/v1/records/{message_id}", handleGetRecord(pipe, testLogger()))

	req := httptest.NewRequest("GET", "/api/v1/records/msg-1", nil)
	w := httptest.NewRecorder()
	mux.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	var rec db.SettlementRecord
	require.NoError(t, json.NewDecoder(w.Body).Decode(&rec))
	assert.Equal(t, "settled", rec.Status)
}

func TestHandleGetRecord_NotFound(t *testing.T) {
	mux := http.NewServeMux()
	pipe := &mockPipeline{recordErr: db.ErrNotFound}
	mux.Handle("GET /api/v1/records/{message_id}", handleGetRecord(pipe, testLogger()))

	req := httptest.NewRequest("GET", "/api/v1/records/absent", nil)
	w := httptest.NewRecorder()
	mux.ServeHTTP(w, req)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestHandleAcceptRequest(t *testing.T) {
	mux := http.NewServeMux()
	requests := &mockRequests{result: &dispatch.Result{Success: true, TxHash: "0xhash", Network: "polygon"}}
	mux.Handle("POST /api/v1/requests/{id}/accept", handleAcceptRequest(requests, staticSnapshots{}, testLogger()))

	w := postJSON(t, mux, "/api/v1/requests/req-1/accept", map[string]string{"user_id": "u"})
	require.Equal(t, http.StatusOK, w.Code)

	var resp settlementResponse
	require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
	assert.True(t, resp.Success)
}

func TestHandleAcceptRequest_AlreadyProcessed(t *testing.T) {
	mux := http.NewServeMux()
	requests := &mockRequests{acceptErr: request.ErrAlreadyProcessed}
	mux.Handle("POST /api/v1/requests/{id}/accept", handleAcceptRequest(requests, staticSnapshots{}, testLogger()))

	w := postJSON(t, mux, "/api/v1/requests/req-1/accept", map[string]string{"user_id": "u"})
	assert.Equal(t, http.StatusConflict, w.Code)
}

func TestHandleAcceptRequest_ConflictAfterSettlement(t *testing.T) {
	// A conflict that arrives with a settlement result means the money moved;
	// the caller gets the hash with 202, not a bare 409.
	mux := http.NewServeMux()
	requests := &mockRequests{
		result:    &dispatch.Result{Success: true, TxHash: "0xhash", Network: "polygon"},
		acceptErr: request.ErrAlreadyProcessed,
	}
	mux.Handle("POST /api/v1/requests/{id}/accept", handleAcceptRequest(requests, staticSnapshots{}, testLogger()))

	w := postJSON(t, mux, "/api/v1/requests/req-1/accept", map[string]string{"user_id": "user-1"})
	require.Equal(t, http.StatusAccepted, w.Code)

	var resp map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "0xhash", resp["tx_hash"])
}

func TestHandleAcceptRequest_WalletMissing(t *testing.T) {
	mux := http.NewServeMux()
	requests := &mockRequests{acceptErr: request.ErrSenderWalletMissing}
	mux.Handle("POST /api/v1/requests/{id}/accept", handleAcceptRequest(requests, staticSnapshots{}, testLogger()))

	w := postJSON(t, mux, "/api/v1/requests/req-1/accept", map[string]string{"user_id": "u"})
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
}

func TestHandleDeclineRequest(t *testing.T) {
	mux := http.NewServeMux()
	requests := &mockRequests{}
	mux.Handle("POST /api/v1/requests/{id}/decline", handleDeclineRequest(requests, testLogger()))

	req := httptest.NewRequest("POST", "/api/v1/requests/req-1/decline", nil)
	w := httptest.NewRecorder()
	mux.ServeHTTP(w, req)

	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "req-1", requests.declinedID)
}

func TestHandleRampEvent(t *testing.T) {
	rampIn := &mockRampEvents{}
	handler := handleRampEvent(rampIn, testLogger())

	w := postJSON(t, handler, "/api/v1/ramp/events", ramp.OrderEvent{
		Status:  ramp.OrderCompleted,
		OrderID: "ord-1",
	})
	require.Equal(t, http.StatusAccepted, w.Code)
	require.Len(t, rampIn.events, 1)
	assert.Equal(t, ramp.OrderCompleted, rampIn.events[0].Status)
}

func TestHandleRampWidget(t *testing.T) {
	pipe := &mockPipeline{rampURL: "https://global.transak.com?apiKey=k"}
	handler := handleRampWidget(pipe, testLogger())

	w := postJSON(t, handler, "/api/v1/ramp/widget", pipeline.RampParams{WalletAddress: "0xabc"})
	require.Equal(t, http.StatusOK, w.Code)

	var resp map[string]string
	require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
	assert.Contains(t, resp["url"], "transak.com")
}
