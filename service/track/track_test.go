package track

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bloqz/settle/service/backend"
	"github.com/bloqz/settle/service/db"
	"github.com/bloqz/settle/service/nats"
)

// memStore is an in-memory RecordStore with the same idempotency semantics
// as the Postgres store.
type memStore struct {
	mu      sync.Mutex
	records map[string]*db.SettlementRecord
}

func newMemStore() *memStore {
	return &memStore{records: make(map[string]*db.SettlementRecord)}
}

func (m *memStore) CreateRecord(ctx context.Context, params db.CreateRecordParams) (*db.SettlementRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if existing, ok := m.records[params.MessageID]; ok {
		return existing, nil
	}
	rec := &db.SettlementRecord{
		MessageID:     params.MessageID,
		TxHash:        params.TxHash,
		Network:       params.Network,
		TokenSymbol:   params.TokenSymbol,
		AmountDecimal: params.AmountDecimal,
		FromAddress:   params.FromAddress,
		ToAddress:     params.ToAddress,
		Provider:      params.Provider,
		Source:        params.Source,
		Status:        params.Status,
		ErrorKind:     params.ErrorKind,
		ExplorerURL:   params.ExplorerURL,
		CreatedAt:     time.Now().UTC(),
	}
	m.records[params.MessageID] = rec
	return rec, nil
}

func (m *memStore) GetRecord(ctx context.Context, messageID string) (*db.SettlementRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.records[messageID]
	if !ok {
		return nil, db.ErrNotFound
	}
	cp := *rec
	return &cp, nil
}

func (m *memStore) ClaimRefresh(ctx context.Context, messageID string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.records[messageID]
	if !ok || rec.RefreshAttempted {
		return false, nil
	}
	rec.RefreshAttempted = true
	return true, nil
}

func (m *memStore) UpdateEnrichment(ctx context.Context, params db.UpdateEnrichmentParams) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.records[params.MessageID]
	if !ok {
		return db.ErrNotFound
	}
	rec.Achievement = params.Achievement
	rec.SocialProof = params.SocialProof
	rec.PersonalizedMessage = params.PersonalizedMessage
	rec.UserStats = params.UserStats
	return nil
}

type mockBackend struct {
	mu             sync.Mutex
	trackCalls     int
	trackErr       error
	shareDataCalls int
	shareData      *backend.ShareData
	shareDataErr   error
}

func (m *mockBackend) TrackTransaction(ctx context.Context, req *backend.TrackRequest) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.trackCalls++
	return m.trackErr
}

func (m *mockBackend) GetTransactionShareData(ctx context.Context, txHash string) (*backend.ShareData, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.shareDataCalls++
	if m.shareDataErr != nil {
		return nil, m.shareDataErr
	}
	return m.shareData, nil
}

func (m *mockBackend) counts() (int, int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.trackCalls, m.shareDataCalls
}

func newTestTracker(b *mockBackend, store RecordStore, pub nats.Publisher) *Tracker {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewTracker(b, store, pub, nil, logger)
}

func settledUSDC() Settlement {
	return Settlement{
		MessageID:     "msg-1",
		TxHash:        "0xhash",
		Network:       "polygon",
		TokenSymbol:   "USDC",
		AmountDecimal: "25",
		FromAddress:   "0xfrom",
		ToAddress:     "0xto",
		Provider:      "custodial-evm",
		Source:        nats.SourceWallet,
		Success:       true,
	}
}

func TestRecord_SuccessfulSettlement(t *testing.T) {
	b := &mockBackend{shareData: &backend.ShareData{Achievement: "first_send"}}
	store := newMemStore()
	pub := nats.NewMockPublisher()
	tracker := newTestTracker(b, store, pub)

	require.NoError(t, tracker.Record(context.Background(), settledUSDC()))
	tracker.WaitEnrichment()

	rec, err := tracker.GetRecord(context.Background(), "msg-1")
	require.NoError(t, err)
	assert.Equal(t, StatusSettled, rec.Status)
	assert.Equal(t, "https://polygonscan.com/tx/0xhash", rec.ExplorerURL)
	assert.True(t, rec.RefreshAttempted)
	require.NotNil(t, rec.Achievement)
	assert.Equal(t, "first_send", *rec.Achievement)

	// One settlement event on the bus.
	events := pub.GetPublishedEvents()
	require.Len(t, events, 1)
	assert.Equal(t, "msg-1", events[0].MessageID)
	assert.True(t, events[0].Success)
	assert.Equal(t, "https://polygonscan.com/tx/0xhash", events[0].ExplorerURL)
}

func TestRecord_IdempotentByMessageID(t *testing.T) {
	b := &mockBackend{shareData: &backend.ShareData{}}
	store := newMemStore()
	pub := nats.NewMockPublisher()
	tracker := newTestTracker(b, store, pub)

	s := settledUSDC()
	require.NoError(t, tracker.Record(context.Background(), s))
	tracker.WaitEnrichment()

	// Recording the same message again does nothing: no second backend
	// call, no second event, no second enrichment.
	require.NoError(t, tracker.Record(context.Background(), s))
	tracker.WaitEnrichment()

	trackCalls, shareCalls := b.counts()
	assert.Equal(t, 1, trackCalls)
	assert.Equal(t, 1, shareCalls)
	assert.Equal(t, 1, pub.GetPublishedEventCount())
}

func TestRecord_EnrichmentAttemptedExactlyOnce(t *testing.T) {
	// Share-data fetch fails: the claim is still consumed and the fetch is
	// never retried.
	b := &mockBackend{shareDataErr: errors.New("backend down")}
	store := newMemStore()
	tracker := newTestTracker(b, store, nats.NewMockPublisher())

	require.NoError(t, tracker.Record(context.Background(), settledUSDC()))
	tracker.WaitEnrichment()

	rec, err := tracker.GetRecord(context.Background(), "msg-1")
	require.NoError(t, err)
	assert.True(t, rec.RefreshAttempted)
	assert.Nil(t, rec.Achievement)

	won, err := store.ClaimRefresh(context.Background(), "msg-1")
	require.NoError(t, err)
	assert.False(t, won)
}

func TestRecord_FailedSettlement(t *testing.T) {
	b := &mockBackend{}
	store := newMemStore()
	pub := nats.NewMockPublisher()
	tracker := newTestTracker(b, store, pub)

	s := settledUSDC()
	s.Success = false
	s.TxHash = ""
	s.ErrorKind = "user_rejected"
	require.NoError(t, tracker.Record(context.Background(), s))
	tracker.WaitEnrichment()

	rec, err := tracker.GetRecord(context.Background(), "msg-1")
	require.NoError(t, err)
	assert.Equal(t, StatusFailed, rec.Status)
	require.NotNil(t, rec.ErrorKind)
	assert.Equal(t, "user_rejected", *rec.ErrorKind)
	assert.Empty(t, rec.ExplorerURL)

	// Failures are published but never enriched; the refresh claim is
	// consumed so nothing can enrich the record later either.
	assert.Equal(t, 1, pub.GetPublishedEventCount())
	_, shareCalls := b.counts()
	assert.Zero(t, shareCalls)
	assert.True(t, rec.RefreshAttempted)

	won, err := store.ClaimRefresh(context.Background(), "msg-1")
	require.NoError(t, err)
	assert.False(t, won)
}

func TestRecord_NoMessageIDSkips(t *testing.T) {
	b := &mockBackend{}
	store := newMemStore()
	pub := nats.NewMockPublisher()
	tracker := newTestTracker(b, store, pub)

	s := settledUSDC()
	s.MessageID = ""
	require.NoError(t, tracker.Record(context.Background(), s))
	tracker.WaitEnrichment()

	trackCalls, _ := b.counts()
	assert.Zero(t, trackCalls)
	assert.Zero(t, pub.GetPublishedEventCount())
}

func TestRecord_BackendTrackFailureIsSoft(t *testing.T) {
	b := &mockBackend{trackErr: errors.New("backend unavailable"), shareData: &backend.ShareData{}}
	store := newMemStore()
	pub := nats.NewMockPublisher()
	tracker := newTestTracker(b, store, pub)

	// The backend rejects tracking, but the local record and event stand.
	require.NoError(t, tracker.Record(context.Background(), settledUSDC()))
	tracker.WaitEnrichment()

	_, err := tracker.GetRecord(context.Background(), "msg-1")
	require.NoError(t, err)
	assert.Equal(t, 1, pub.GetPublishedEventCount())
}
