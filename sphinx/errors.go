package sphinx

import "github.com/ilodi/hoprnet/errclass"

// ErrWrongPacketSize is a fatal error: a trusted transport handed the
// pipeline a frame that is not exactly PacketSize(maxHops) bytes long.
// Per spec §7, a size mismatch from a trusted transport is fatal, not a
// silent drop, because it indicates the transport framing itself is
// broken.
func ErrWrongPacketSize(got, want int) error {
	return errclass.Fatalf(
		"packet size mismatch: got %d bytes, want %d", got, want,
	)
}

// ErrPathTooLong is returned at construction time when the caller
// supplies more hops than the packet's maxHops supports.
func ErrPathTooLong(hops, maxHops int) error {
	return errclass.Dropf(
		"path length %d exceeds max hops %d", hops, maxHops,
	)
}

// ErrMACMismatch is a silent-drop error: the MAC over beta did not
// verify. Per spec §4.2 step 1, a MAC failure must be dropped without
// revealing which check failed, so this error carries no further detail.
var ErrMACMismatch = errclass.Dropf("invalid header MAC")

// ErrInvalidGroupElement is returned when alpha cannot be parsed as a
// valid compressed secp256k1 point.
var ErrInvalidGroupElement = errclass.Dropf("invalid group element")

// ErrReplay is a silent-drop error: this hop has already processed a
// packet carrying the same replay-guard tag.
var ErrReplay = errclass.Dropf("replayed packet")

// ErrMessageTooLarge is returned at construction time when the caller's
// message is not exactly MessageSize bytes long; a shorter message is
// rejected as well as a longer one.
func ErrMessageTooLarge(got int) error {
	return errclass.Dropf("message length %d, want exactly MessageSize %d", got, MessageSize)
}

// ErrEmptyPath is returned at construction time when the path contains
// no hops.
var ErrEmptyPath = errclass.Dropf("path must contain at least one hop")

// ErrTransactionSeal is a silent-drop error: the embedded transaction did
// not authenticate under this hop's derived seal key.
var ErrTransactionSeal = errclass.Dropf("invalid transaction seal")
