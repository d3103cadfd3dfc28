package dispatch

import (
	"context"
	"errors"
	"strings"
)

// ErrorKind is the normalized failure taxonomy for settlement attempts.
// Wallet providers and RPC nodes report failures as loosely-structured
// message strings; downstream code (retry policy, user messaging) only ever
// branches on the kind.
type ErrorKind string

const (
	ErrorKindNone              ErrorKind = ""
	ErrorKindUserRejected      ErrorKind = "user_rejected"
	ErrorKindInsufficientFunds ErrorKind = "insufficient_funds"
	ErrorKindBlockhashExpired  ErrorKind = "blockhash_expired"
	ErrorKindNetwork           ErrorKind = "network_error"
	ErrorKindUnknown           ErrorKind = "unknown"
)

// classifyError maps a provider or RPC failure to an ErrorKind. A canceled
// context means the user dismissed the confirmation before the wallet
// responded, which is a rejection, not an infrastructure fault.
func classifyError(err error) ErrorKind {
	if err == nil {
		return ErrorKindNone
	}
	if errors.Is(err, context.Canceled) {
		return ErrorKindUserRejected
	}

	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "user rejected"),
		strings.Contains(msg, "user denied"),
		strings.Contains(msg, "rejected the request"):
		return ErrorKindUserRejected
	case strings.Contains(msg, "insufficient funds"),
		strings.Contains(msg, "insufficient lamports"),
		strings.Contains(msg, "insufficient balance"):
		return ErrorKindInsufficientFunds
	case strings.Contains(msg, "blockhash not found"),
		strings.Contains(msg, "blockhashnotfound"):
		return ErrorKindBlockhashExpired
	case strings.Contains(msg, "timeout"),
		strings.Contains(msg, "timed out"),
		strings.Contains(msg, "connection"),
		strings.Contains(msg, "network"),
		strings.Contains(msg, "429"):
		return ErrorKindNetwork
	default:
		return ErrorKindUnknown
	}
}

// Retryable reports whether a settlement attempt with this failure kind may
// be retried with a rebuilt transaction. User rejections and funds errors are
// final; a network error is retryable only after the caller has confirmed the
// first attempt did not land.
func (k ErrorKind) Retryable() bool {
	return k == ErrorKindBlockhashExpired || k == ErrorKindNetwork
}
