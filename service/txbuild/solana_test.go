package txbuild

import (
	"context"
	"encoding/base64"
	"errors"
	"testing"

	solanago "github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/programs/system"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bloqz/settle/service/intent"
)

type staticBlockhash struct {
	hash solanago.Hash
	err  error
}

func (s staticBlockhash) LatestBlockhash(ctx context.Context) (solanago.Hash, error) {
	return s.hash, s.err
}

// encodeUnsignedTransfer builds a serialized SOL transfer the way the backend
// would, stamped with the given (possibly stale) blockhash.
func encodeUnsignedTransfer(t *testing.T, blockhash solanago.Hash) string {
	t.Helper()
	from := solanago.MustPublicKeyFromBase58("9aE476sH92Vz7DMPyq5WLPkrKWivxeuTKEFKd2sZZcde")
	to := solanago.MustPublicKeyFromBase58("BpfU8cgGhDFmGkh3Sed9WwCX5BsP2VehRz6GzzpRDt3t")

	tx, err := solanago.NewTransaction(
		[]solanago.Instruction{
			system.NewTransferInstruction(1_000_000_000, from, to).Build(),
		},
		blockhash,
		solanago.TransactionPayer(from),
	)
	require.NoError(t, err)

	raw, err := tx.MarshalBinary()
	require.NoError(t, err)
	return base64.StdEncoding.EncodeToString(raw)
}

func TestBuildSolana_OverwritesStaleBlockhash(t *testing.T) {
	stale := solanago.MustHashFromBase58("GfVcyD4kkTrj4bKc7WA9sZCin9JDbdT4Zkd3EittNR1W")
	fresh := solanago.MustHashFromBase58("EkSnNWid2cvwEVnVx9aBqawnmiCNiDgp3gUdkDPTKN1N")

	it := &intent.Intent{
		Kind:               intent.KindSend,
		Network:            "solana",
		AmountDecimal:      "1",
		TokenSymbol:        "SOL",
		RawUnsignedPayload: encodeUnsignedTransfer(t, stale),
	}

	tx, err := BuildSolana(context.Background(), it, staticBlockhash{hash: fresh})
	require.NoError(t, err)

	// The payload's blockhash is never trusted, even if it looks recent.
	assert.Equal(t, fresh, tx.Message.RecentBlockhash)
	require.Len(t, tx.Message.Instructions, 1)
}

func TestBuildSolana_MissingPayload(t *testing.T) {
	it := &intent.Intent{Kind: intent.KindSend, Network: "solana", AmountDecimal: "1", TokenSymbol: "SOL"}
	_, err := BuildSolana(context.Background(), it, staticBlockhash{})
	assert.ErrorIs(t, err, ErrMalformedIntent)
}

func TestBuildSolana_BadPayload(t *testing.T) {
	t.Run("not base64", func(t *testing.T) {
		it := &intent.Intent{RawUnsignedPayload: "!!not-base64!!"}
		_, err := BuildSolana(context.Background(), it, staticBlockhash{})
		assert.ErrorIs(t, err, ErrMalformedIntent)
	})

	t.Run("base64 but not a transaction", func(t *testing.T) {
		it := &intent.Intent{RawUnsignedPayload: base64.StdEncoding.EncodeToString([]byte("garbage"))}
		_, err := BuildSolana(context.Background(), it, staticBlockhash{})
		assert.ErrorIs(t, err, ErrMalformedIntent)
	})
}

func TestBuildSolana_BlockhashFetchFails(t *testing.T) {
	stale := solanago.MustHashFromBase58("GfVcyD4kkTrj4bKc7WA9sZCin9JDbdT4Zkd3EittNR1W")
	it := &intent.Intent{RawUnsignedPayload: encodeUnsignedTransfer(t, stale)}

	_, err := BuildSolana(context.Background(), it, staticBlockhash{err: errors.New("rpc down")})
	require.Error(t, err)
	// A fetch failure is infrastructure, not a malformed intent.
	assert.NotErrorIs(t, err, ErrMalformedIntent)
}
