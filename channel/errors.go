package channel

import "github.com/ilodi/hoprnet/errclass"

// ErrWrongStatus is a silent-drop error: an operation requiring the
// channel to be in a particular status found it in another one.
func ErrWrongStatus(got, want Status) error {
	return errclass.Dropf("channel status %s, want %s", got, want)
}

// ErrIndexRegression is a silent-drop error: an incoming transaction's
// index was not exactly one above the channel's current index.
func ErrIndexRegression(got, want uint64) error {
	return errclass.Dropf("transaction index %d, want %d", got, want)
}

// ErrInsufficientFee is a silent-drop error: the amount received after
// absorbing an incoming transaction did not cover the relay fee.
func ErrInsufficientFee(received, fee uint64) error {
	return errclass.Dropf("received %d below relay fee %d", received, fee)
}

// ErrNonceReused is a fatal error: a counterparty submitted the same
// signed update twice, the one condition spec §7 calls out by name as
// fatal rather than a silent drop, since a second appearance of a nonce
// indicates either a replay attack or a local bug, neither of which is
// safe to paper over.
var ErrNonceReused = errclass.Fatalf("nonce reused")

// ErrStateDivergence is a fatal error: an on-chain channel exists with no
// local record, state the node cannot safely reconcile on its own.
var ErrStateDivergence = errclass.Fatalf("on-chain channel has no local record")

// ErrChannelNotFound is a recoverable error: no local record exists for
// the requested channel. This package does not rebuild a record from
// on-chain state.
var ErrChannelNotFound = errclass.Recoverablef("channel not found")

// ErrInsufficientBalance is a silent-drop error: a transfer was
// requested for more than the channel (or the requesting party's share
// of it) holds.
var ErrInsufficientBalance = errclass.Dropf("insufficient channel balance")

// ErrNotWithdrawable is a silent-drop error: withdraw was attempted on a
// channel whose local status is neither PendingClosure nor Withdrawable.
var ErrNotWithdrawable = errclass.Dropf("channel not yet withdrawable")

// ErrSignatureEncoding is a fatal error: btcec returned a compact
// signature of an unexpected length, meaning the library's contract
// changed underneath us.
func ErrSignatureEncoding(got int) error {
	return errclass.Fatalf("compact signature length %d, want 65", got)
}

// ErrInvalidSignature is a silent-drop error: a transaction's signature
// does not recover to its own CurvePoint field, or recovers to a key
// other than the channel's counterparty.
var ErrInvalidSignature = errclass.Dropf("invalid transaction signature")

// ErrTransactionEncoding is a fatal error: a persisted or embedded
// transaction did not decode to TransactionSize bytes.
func ErrTransactionEncoding(got int) error {
	return errclass.Fatalf("transaction record length %d, want %d", got, TransactionSize)
}

// ErrRecordEncoding is a fatal error: a persisted channel record did not
// decode to the expected fixed width.
func ErrRecordEncoding(got, want int) error {
	return errclass.Fatalf("channel record length %d, want %d", got, want)
}
