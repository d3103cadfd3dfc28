// Package db persists settlement records. Postgres is a cache and audit log
// here; the backend API remains the source of truth for chat-visible state.
package db

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ErrNotFound is returned when a settlement record does not exist.
var ErrNotFound = errors.New("settlement record not found")

// Store provides database operations for the service.
type Store struct {
	pool *pgxpool.Pool
}

// NewStore creates a new Store with the given database connection pool.
func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// SettlementRecord is one settled (or failed) transaction keyed by the chat
// message it belongs to. Enrichment fields are filled in asynchronously.
type SettlementRecord struct {
	MessageID     string
	TxHash        string
	Network       string
	TokenSymbol   string
	AmountDecimal string
	FromAddress   *string
	ToAddress     *string
	Provider      string
	Source        string
	Status        string // settled or failed
	ErrorKind     *string
	ExplorerURL   string

	// Social enrichment, populated by the refresh step.
	Achievement         *string
	SocialProof         *string
	PersonalizedMessage *string
	UserStats           map[string]int

	RefreshAttempted bool
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// CreateRecordParams contains the parameters for recording a settlement.
type CreateRecordParams struct {
	MessageID     string
	TxHash        string
	Network       string
	TokenSymbol   string
	AmountDecimal string
	FromAddress   *string
	ToAddress     *string
	Provider      string
	Source        string
	Status        string
	ErrorKind     *string
	ExplorerURL   string
}

const recordColumns = `message_id, tx_hash, network, token_symbol, amount_decimal,
	from_address, to_address, provider, source, status, error_kind, explorer_url,
	achievement, social_proof, personalized_message, user_stats,
	refresh_attempted, created_at, updated_at`

// CreateRecord inserts a settlement record. Inserts are idempotent on
// message_id: a second insert for the same message is a no-op and the
// original record is returned unchanged.
func (s *Store) CreateRecord(ctx context.Context, params CreateRecordParams) (*SettlementRecord, error) {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO settlement_records (
			message_id, tx_hash, network, token_symbol, amount_decimal,
			from_address, to_address, provider, source, status, error_kind, explorer_url
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		ON CONFLICT (message_id) DO NOTHING`,
		params.MessageID, params.TxHash, params.Network, params.TokenSymbol,
		params.AmountDecimal,
		pgtextFromStringPtr(params.FromAddress), pgtextFromStringPtr(params.ToAddress),
		params.Provider, params.Source, params.Status,
		pgtextFromStringPtr(params.ErrorKind), params.ExplorerURL,
	)
	if err != nil {
		return nil, fmt.Errorf("insert settlement record: %w", err)
	}
	return s.GetRecord(ctx, params.MessageID)
}

// GetRecord retrieves a settlement record by message ID.
func (s *Store) GetRecord(ctx context.Context, messageID string) (*SettlementRecord, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+recordColumns+` FROM settlement_records WHERE message_id = $1`,
		messageID,
	)
	return scanRecord(row)
}

// ListRecordsByNetwork retrieves settlement records for a network, newest
// first, with pagination.
func (s *Store) ListRecordsByNetwork(ctx context.Context, network string, limit, offset int32) ([]*SettlementRecord, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+recordColumns+` FROM settlement_records
		 WHERE network = $1
		 ORDER BY created_at DESC
		 LIMIT $2 OFFSET $3`,
		network, limit, offset,
	)
	if err != nil {
		return nil, fmt.Errorf("list settlement records: %w", err)
	}
	defer rows.Close()

	var records []*SettlementRecord
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

// ClaimRefresh atomically marks the record's enrichment as attempted and
// reports whether this caller won the claim. The flag is set exactly once per
// record regardless of outcome, so enrichment never runs twice.
func (s *Store) ClaimRefresh(ctx context.Context, messageID string) (bool, error) {
	tag, err := s.pool.Exec(ctx, `
		UPDATE settlement_records
		SET refresh_attempted = TRUE, updated_at = NOW()
		WHERE message_id = $1 AND refresh_attempted = FALSE`,
		messageID,
	)
	if err != nil {
		return false, fmt.Errorf("claim refresh: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

// UpdateEnrichmentParams contains the social enrichment fields.
type UpdateEnrichmentParams struct {
	MessageID           string
	Achievement         *string
	SocialProof         *string
	PersonalizedMessage *string
	UserStats           map[string]int
}

// UpdateEnrichment stores the social enrichment for a settled record.
func (s *Store) UpdateEnrichment(ctx context.Context, params UpdateEnrichmentParams) error {
	var stats []byte
	if params.UserStats != nil {
		var err error
		stats, err = json.Marshal(params.UserStats)
		if err != nil {
			return fmt.Errorf("marshal user stats: %w", err)
		}
	}

	tag, err := s.pool.Exec(ctx, `
		UPDATE settlement_records
		SET achievement = $2, social_proof = $3, personalized_message = $4,
		    user_stats = $5, updated_at = NOW()
		WHERE message_id = $1`,
		params.MessageID,
		pgtextFromStringPtr(params.Achievement),
		pgtextFromStringPtr(params.SocialProof),
		pgtextFromStringPtr(params.PersonalizedMessage),
		stats,
	)
	if err != nil {
		return fmt.Errorf("update enrichment: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// Close closes the underlying connection pool.
func (s *Store) Close() {
	s.pool.Close()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRecord(row rowScanner) (*SettlementRecord, error) {
	var (
		rec         SettlementRecord
		fromAddr    pgtype.Text
		toAddr      pgtype.Text
		errorKind   pgtype.Text
		achievement pgtype.Text
		socialProof pgtype.Text
		message     pgtype.Text
		stats       []byte
		createdAt   pgtype.Timestamptz
		updatedAt   pgtype.Timestamptz
	)
	err := row.Scan(
		&rec.MessageID, &rec.TxHash, &rec.Network, &rec.TokenSymbol,
		&rec.AmountDecimal, &fromAddr, &toAddr, &rec.Provider, &rec.Source,
		&rec.Status, &errorKind, &rec.ExplorerURL,
		&achievement, &socialProof, &message, &stats,
		&rec.RefreshAttempted, &createdAt, &updatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan settlement record: %w", err)
	}

	rec.FromAddress = stringPtrFromPgtext(fromAddr)
	rec.ToAddress = stringPtrFromPgtext(toAddr)
	rec.ErrorKind = stringPtrFromPgtext(errorKind)
	rec.Achievement = stringPtrFromPgtext(achievement)
	rec.SocialProof = stringPtrFromPgtext(socialProof)
	rec.PersonalizedMessage = stringPtrFromPgtext(message)
	rec.CreatedAt = createdAt.Time
	rec.UpdatedAt = updatedAt.Time

	if len(stats) > 0 {
		if err := json.Unmarshal(stats, &rec.UserStats); err != nil {
			return nil, fmt.Errorf("unmarshal user stats: %w", err)
		}
	}
	return &rec, nil
}

func pgtextFromStringPtr(s *string) pgtype.Text {
	if s == nil {
		return pgtype.Text{}
	}
	return pgtype.Text{String: *s, Valid: true}
}

func stringPtrFromPgtext(t pgtype.Text) *string {
	if !t.Valid {
		return nil
	}
	return &t.String
}
