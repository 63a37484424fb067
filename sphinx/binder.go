package sphinx

import "github.com/ilodi/hoprnet/primitives"

// ReplayChecker is the dependency the onion transform uses to enforce
// spec §4.2 step 2: a hop must see each packet's tag at most once. A
// concrete implementation lives in the replay package; sphinx only needs
// the seen-or-insert contract.
type ReplayChecker interface {
	// SeenOrInsert reports whether tag is fresh (true) and, in the same
	// atomic action, records it as seen. A return of false means the
	// tag has already been observed and the packet must be dropped as
	// a replay.
	SeenOrInsert(tag [primitives.TagSize]byte) (bool, error)
}

// SourceBinder is the dependency the sender's packet construction uses to
// reach into the payment-channel module without sphinx importing it
// directly (spec §4.2 steps 5-6). Concrete implementations live in the
// pipeline package, where the channel module owns the transaction this
// returns in plaintext; Construct seals it under the first hop's
// transaction key before it ever touches the wire.
type SourceBinder interface {
	// BuildFirstTransaction returns the TransactionPlaintextSize-byte
	// encoding of the transaction paying amount to the first hop.
	BuildFirstTransaction(next Address, amount uint64) ([]byte, error)
}

// BindResult is what a HopBinder returns after performing the batched
// packet-channel binding action of spec §4.6.
type BindResult struct {
	// Received is the amount this hop received after validating the
	// incoming transaction.
	Received uint64

	// OutgoingTransaction is the plaintext, TransactionPlaintextSize-byte
	// encoding of the transaction to forward to the next hop. It is nil
	// when this hop is the destination. Transform seals it under the
	// next hop's transaction key before forwarding.
	OutgoingTransaction []byte
}

// HopBinder is the dependency the onion transform uses at each
// intermediate or terminal hop to validate and absorb the embedded
// transaction and register the pending ticket it is owed (spec §4.2
// step 4 and the whole of §4.6). Concrete implementations live in the
// pipeline package.
type HopBinder interface {
	// Bind performs, in one logical action, the steps of spec §4.6:
	// fetch the channel between prev and self, validate the incoming
	// transaction's fee and index, persist it, register a pending
	// ticket keyed by H(ownKeyHalf), and — unless terminal — build the
	// outgoing transaction.
	//
	// prev and next are this hop's immediate predecessor and
	// successor addresses, as learned from the transport and the
	// peeled routing header respectively. tx is the incoming
	// transaction, already opened and authenticated by the caller
	// under this hop's own transaction key. ownKeyHalf is this hop's
	// own transaction key, already verified by the caller to be the
	// one the incoming challenge was signed over. nextKeyHalf is the
	// next hop's transaction key, read from this hop's own beta slot,
	// used to combine with ownKeyHalf into the aggregate pre-image a
	// winning ticket redeems (spec §4.5); it is the zero value when
	// terminal is true.
	Bind(prev, next Address, terminal bool, tx []byte,
		ownKeyHalf, nextKeyHalf [primitives.KeySize]byte) (*BindResult, error)
}
