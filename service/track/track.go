// Package track records settlement outcomes against chat messages and
// enriches them with social share data. Tracking is best-effort: a tracking
// failure never rolls back a settled transaction.
package track

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/bloqz/settle/service/backend"
	"github.com/bloqz/settle/service/chains"
	"github.com/bloqz/settle/service/db"
	"github.com/bloqz/settle/service/metrics"
	"github.com/bloqz/settle/service/nats"
)

// Settlement statuses stored on records.
const (
	StatusSettled = "settled"
	StatusFailed  = "failed"
)

// TrackingBackend is the backend surface the tracker needs.
type TrackingBackend interface {
	TrackTransaction(ctx context.Context, req *backend.TrackRequest) error
	GetTransactionShareData(ctx context.Context, txHash string) (*backend.ShareData, error)
}

// RecordStore is the persistence surface the tracker needs. Satisfied by
// db.Store.
type RecordStore interface {
	CreateRecord(ctx context.Context, params db.CreateRecordParams) (*db.SettlementRecord, error)
	GetRecord(ctx context.Context, messageID string) (*db.SettlementRecord, error)
	ClaimRefresh(ctx context.Context, messageID string) (bool, error)
	UpdateEnrichment(ctx context.Context, params db.UpdateEnrichmentParams) error
}

// Settlement is the outcome handed to the tracker after a dispatch attempt
// or a ramp completion.
type Settlement struct {
	MessageID     string
	TxHash        string
	Network       string
	TokenSymbol   string
	AmountDecimal string
	FromAddress   string
	ToAddress     string
	Provider      string
	Source        string // nats.SourceWallet or nats.SourceRamp
	Success       bool
	ErrorKind     string
}

// Tracker records settlements, publishes settlement events, and runs the
// async enrichment step.
type Tracker struct {
	backend   TrackingBackend
	store     RecordStore
	publisher nats.Publisher
	metrics   *metrics.Metrics
	logger    *slog.Logger

	mu         sync.Mutex
	inFlight   map[string]struct{}
	enrichWait sync.WaitGroup

	// enrichTimeout bounds the background share-data fetch.
	enrichTimeout time.Duration
}

// NewTracker creates a tracker. If m is nil, no metrics are recorded.
func NewTracker(b TrackingBackend, store RecordStore, publisher nats.Publisher, m *metrics.Metrics, logger *slog.Logger) *Tracker {
	return &Tracker{
		backend:       b,
		store:         store,
		publisher:     publisher,
		metrics:       m,
		logger:        logger,
		inFlight:      make(map[string]struct{}),
		enrichTimeout: 30 * time.Second,
	}
}

// Record tracks a settlement against its chat message. It is idempotent by
// message ID: recording the same message twice is a no-op. Settlements with
// no message ID are skipped with a warning; there is nothing to attach them
// to. A non-nil error means tracking failed, which callers treat as a
// warning, never as a settlement failure.
func (t *Tracker) Record(ctx context.Context, s Settlement) error {
	if s.MessageID == "" {
		t.logger.WarnContext(ctx, "settlement has no message id, skipping tracking",
			"tx_hash", s.TxHash,
			"network", s.Network,
			"source", s.Source,
		)
		if t.metrics != nil {
			t.metrics.RecordTrackingSkipped("no_message_id")
		}
		return nil
	}

	// Serialize per message: a concurrent duplicate waits and then no-ops
	// against the store's insert guard.
	t.mu.Lock()
	if _, busy := t.inFlight[s.MessageID]; busy {
		t.mu.Unlock()
		t.logger.DebugContext(ctx, "settlement already being recorded", "message_id", s.MessageID)
		return nil
	}
	t.inFlight[s.MessageID] = struct{}{}
	t.mu.Unlock()
	defer func() {
		t.mu.Lock()
		delete(t.inFlight, s.MessageID)
		t.mu.Unlock()
	}()

	if existing, err := t.store.GetRecord(ctx, s.MessageID); err == nil && existing != nil {
		t.logger.DebugContext(ctx, "settlement already recorded", "message_id", s.MessageID)
		return nil
	}

	status := StatusSettled
	var errorKind *string
	if !s.Success {
		status = StatusFailed
		if s.ErrorKind != "" {
			errorKind = &s.ErrorKind
		}
	}

	explorerURL := ""
	if s.TxHash != "" {
		explorerURL = chains.ExplorerURL(s.Network, s.TxHash)
	}

	rec, err := t.store.CreateRecord(ctx, db.CreateRecordParams{
		MessageID:     s.MessageID,
		TxHash:        s.TxHash,
		Network:       s.Network,
		TokenSymbol:   s.TokenSymbol,
		AmountDecimal: s.AmountDecimal,
		FromAddress:   optional(s.FromAddress),
		ToAddress:     optional(s.ToAddress),
		Provider:      s.Provider,
		Source:        s.Source,
		Status:        status,
		ErrorKind:     errorKind,
		ExplorerURL:   explorerURL,
	})
	if err != nil {
		t.warnTrackingFailed(ctx, s, "store settlement record", err)
		return err
	}
	if rec.TxHash != s.TxHash {
		// The message was already recorded with a different settlement;
		// first write wins and nothing further runs.
		t.logger.DebugContext(ctx, "settlement already recorded", "message_id", s.MessageID)
		return nil
	}

	if err := t.backend.TrackTransaction(ctx, &backend.TrackRequest{
		MessageID:     s.MessageID,
		TxHash:        s.TxHash,
		Network:       s.Network,
		TokenSymbol:   s.TokenSymbol,
		AmountDecimal: s.AmountDecimal,
		FromAddress:   s.FromAddress,
		ToAddress:     s.ToAddress,
		Provider:      s.Provider,
	}); err != nil {
		// Soft failure: the local record and event still stand.
		t.warnTrackingFailed(ctx, s, "backend track", err)
	}

	if t.publisher != nil {
		event := &nats.SettlementEvent{
			MessageID:     s.MessageID,
			TxHash:        s.TxHash,
			Network:       s.Network,
			FromAddress:   s.FromAddress,
			ToAddress:     s.ToAddress,
			AmountDecimal: s.AmountDecimal,
			TokenSymbol:   s.TokenSymbol,
			Source:        s.Source,
			Provider:      s.Provider,
			Success:       s.Success,
			ErrorKind:     s.ErrorKind,
			ExplorerURL:   explorerURL,
			SettledAt:     time.Now().UTC(),
			PublishedAt:   time.Now().UTC(),
		}
		if err := t.publisher.PublishSettlement(ctx, event); err != nil {
			t.warnTrackingFailed(ctx, s, "publish settlement event", err)
		}
	}

	if t.metrics != nil {
		t.metrics.RecordSettlementTracked(s.Network, s.Source, status)
	}

	if s.Success {
		t.enrichWait.Add(1)
		go t.enrich(s.MessageID, s.TxHash)
	} else {
		// Nothing to enrich on a failure; consume the claim so the record
		// can never be enriched later.
		if _, err := t.store.ClaimRefresh(ctx, s.MessageID); err != nil {
			t.logger.WarnContext(ctx, "failed to claim enrichment", "message_id", s.MessageID, "error", err)
		}
	}
	return nil
}

// enrich fetches share data for a settled transaction and stores it. The
// refresh claim guarantees at most one attempt per record, even if the fetch
// fails: enrichment is decoration, not state, and is never retried.
func (t *Tracker) enrich(messageID, txHash string) {
	defer t.enrichWait.Done()

	ctx, cancel := context.WithTimeout(context.Background(), t.enrichTimeout)
	defer cancel()

	won, err := t.store.ClaimRefresh(ctx, messageID)
	if err != nil {
		t.logger.WarnContext(ctx, "failed to claim enrichment", "message_id", messageID, "error", err)
		return
	}
	if !won {
		return
	}

	data, err := t.backend.GetTransactionShareData(ctx, txHash)
	if err != nil {
		t.logger.WarnContext(ctx, "failed to fetch share data",
			"message_id", messageID,
			"tx_hash", txHash,
			"error", err,
		)
		if t.metrics != nil {
			t.metrics.RecordEnrichment("error")
		}
		return
	}

	if err := t.store.UpdateEnrichment(ctx, db.UpdateEnrichmentParams{
		MessageID:           messageID,
		Achievement:         optional(data.Achievement),
		SocialProof:         optional(data.SocialProof),
		PersonalizedMessage: optional(data.PersonalizedMessage),
		UserStats:           data.UserStats,
	}); err != nil {
		t.logger.WarnContext(ctx, "failed to store enrichment", "message_id", messageID, "error", err)
		if t.metrics != nil {
			t.metrics.RecordEnrichment("error")
		}
		return
	}

	t.logger.DebugContext(ctx, "settlement enriched", "message_id", messageID)
	if t.metrics != nil {
		t.metrics.RecordEnrichment("success")
	}
}

// GetRecord returns the settlement record for a message, including any
// enrichment stored so far.
func (t *Tracker) GetRecord(ctx context.Context, messageID string) (*db.SettlementRecord, error) {
	return t.store.GetRecord(ctx, messageID)
}

// WaitEnrichment blocks until all in-flight enrichment goroutines finish.
// Used on shutdown and in tests.
func (t *Tracker) WaitEnrichment() {
	t.enrichWait.Wait()
}

func (t *Tracker) warnTrackingFailed(ctx context.Context, s Settlement, step string, err error) {
	t.logger.WarnContext(ctx, "tracking step failed",
		"step", step,
		"message_id", s.MessageID,
		"tx_hash", s.TxHash,
		"error", err,
	)
	if t.metrics != nil {
		t.metrics.RecordTrackingFailure(step)
	}
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
