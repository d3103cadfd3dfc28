package txbuild

import (
	"context"
	"encoding/base64"
	"fmt"

	bin "github.com/gagliardetto/binary"
	solanago "github.com/gagliardetto/solana-go"

	"github.com/bloqz/settle/service/intent"
)

// BlockhashFetcher provides a fresh recent blockhash. Satisfied by
// solana.Client; mocked in tests.
type BlockhashFetcher interface {
	LatestBlockhash(ctx context.Context) (solanago.Hash, error)
}

// BuildSolana decodes the backend-produced unsigned transaction and stamps it
// with a freshly fetched blockhash. The payload's own blockhash is ALWAYS
// overwritten: the backend built the transaction earlier and its blockhash
// may already be expired by the time the user confirms.
func BuildSolana(ctx context.Context, it *intent.Intent, fetcher BlockhashFetcher) (*solanago.Transaction, error) {
	if it.RawUnsignedPayload == "" {
		return nil, fmt.Errorf("%w: solana intent carries no unsigned transaction payload", ErrMalformedIntent)
	}

	raw, err := base64.StdEncoding.DecodeString(it.RawUnsignedPayload)
	if err != nil {
		return nil, fmt.Errorf("%w: payload is not valid base64: %v", ErrMalformedIntent, err)
	}

	tx, err := solanago.TransactionFromDecoder(bin.NewBinDecoder(raw))
	if err != nil {
		return nil, fmt.Errorf("%w: cannot decode solana transaction: %v", ErrMalformedIntent, err)
	}

	blockhash, err := fetcher.LatestBlockhash(ctx)
	if err != nil {
		return nil, fmt.Errorf("fetch recent blockhash: %w", err)
	}
	tx.Message.RecentBlockhash = blockhash

	return tx, nil
}
