// Package sphinx implements the fixed-size onion packet format and the
// onion transform described in spec §4.2: construction at the source,
// one-pass transform at each hop, and termination at the destination.
// Every hop performs identical work regardless of its position in the
// path, so traffic analysis cannot distinguish a relayer from the
// sender or the recipient.
package sphinx

import (
	"github.com/ilodi/hoprnet/primitives"
	"github.com/ilodi/hoprnet/ticket"
)

const (
	// AddressSize is the length in bytes of a routing address embedded
	// in beta. It is a truncated hash of a hop's public key, the same
	// way lightning-onion's 8-byte short-channel-id address works,
	// sized here to comfortably hold an on-chain-style 20-byte address.
	AddressSize = 20

	// DefaultMaxHops is the maximum path length a packet built with
	// the package-level helpers supports. Callers that need a
	// different bound should use PacketSize/HeaderSize directly.
	DefaultMaxHops = 3

	// keyHalfSize is the width of a raw, unhashed transaction key
	// half embedded in a beta slot.
	keyHalfSize = primitives.KeySize

	// perHopSize is the width of one hop's slot within beta: the next
	// hop's address, the next hop's own transaction-key half (so that
	// the current hop can sign a challenge the next hop can verify
	// without a separate round-trip acknowledgement — see DESIGN.md),
	// and the MAC that authenticates the remaining onion layer.
	perHopSize = AddressSize + keyHalfSize + primitives.MACSize

	// MessageSize is the fixed length of the onion-encrypted message
	// body.
	MessageSize = 500

	// TransactionPlaintextSize is the width of the channel package's
	// Transaction record before sealing: channelId(32) + index(8) +
	// value(8) + curvePoint(33) + signature(64) + recovery(1).
	TransactionPlaintextSize = 146

	// TransactionFieldSize is the fixed width of the embedded-payment
	// region of a Packet: TransactionPlaintextSize sealed with a
	// single-shot, zero-nonce ChaCha20-Poly1305 AEAD tag (16 bytes).
	TransactionFieldSize = TransactionPlaintextSize + transactionAEADOverhead

	// ChallengeFieldSize is the fixed width of the challenge region of
	// a Packet: a recoverable secp256k1 signature (R, S, recovery ID).
	ChallengeFieldSize = ticket.ChallengeSize

	// transactionAEADOverhead is chacha20poly1305.Overhead, duplicated
	// as an untyped constant so TransactionFieldSize stays a compile-
	// time constant without importing the cipher package here.
	transactionAEADOverhead = 16
)

// Address identifies a hop for routing purposes.
type Address [AddressSize]byte

// BetaSize returns the fixed width of beta for a path of up to maxHops
// hops.
func BetaSize(maxHops int) int {
	return maxHops * perHopSize
}

// HeaderSize returns the fixed size of a Header built for up to maxHops
// hops.
func HeaderSize(maxHops int) int {
	return primitives.GroupElementSize + BetaSize(maxHops) + primitives.MACSize
}

// PacketSize returns the fixed size in bytes of a Packet built for up to
// maxHops hops: Header ‖ Transaction ‖ Challenge ‖ Message, per spec §3.
// An implementation rejects any frame that is not of exactly this length.
func PacketSize(maxHops int) int {
	return HeaderSize(maxHops) + TransactionFieldSize + ChallengeFieldSize +
		MessageSize
}
