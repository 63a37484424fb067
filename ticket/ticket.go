package ticket

import (
	"math/big"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/ilodi/hoprnet/primitives"
)

// KeyHalfFromScalar recovers the public key-half a hop reveals when
// redeeming a ticket: the point k·G for the transaction-key scalar k.
// Both the sender and the receiving hop can compute this independently
// once they hold the raw transaction key, the same way a hop recovers a
// counterparty's identity from a Challenge without any extra round trip.
func KeyHalfFromScalar(keyHalf [primitives.KeySize]byte) *btcec.PublicKey {
	var scalar btcec.ModNScalar
	scalar.SetByteSlice(keyHalf[:])
	return primitives.BlindBaseElement(scalar)
}

// AggregateKeyHalves combines two hops' key-halves by secp256k1 point
// addition, reconstructing the aggregate pre-image that unlocks on-chain
// ticket redemption (spec §4.5's getPreviousChallenges, §9's resolved
// open question: point addition, not XOR — the original source's XOR
// code path is not carried forward here).
func AggregateKeyHalves(ownKeyHalf, nextKeyHalf [primitives.KeySize]byte) *btcec.PublicKey {
	own := KeyHalfFromScalar(ownKeyHalf)
	next := KeyHalfFromScalar(nextKeyHalf)
	return primitives.AddGroupElements(own, next)
}

// WinProbDenominatorBits is N in the winning condition H(preImage) <
// winProb * 2^N: the ticket's pre-image hash is compared against a
// WinProbNumerator/WinProbDenominator fraction of the full 256-bit hash
// space.
const WinProbDenominatorBits = 256

// Ticket is the pending claim a hop registers when it absorbs an
// incoming transaction (spec §3, §4.6 step 4). It is persisted keyed by
// HashedKeyHalf until PendingTicketStore.Delete removes it; closing the
// channel does not remove it.
type Ticket struct {
	ChannelId [32]byte

	// Challenge is the signature bound to this ticket's key-half, as
	// received in the packet that created it.
	Challenge Challenge

	// HashedKeyHalf is H(keyHalf), the key this ticket is stored under.
	HashedKeyHalf [32]byte

	Amount uint64

	// WinProbNumerator/WinProbDenominator express the winning
	// probability as a fraction in [0, 1], kept as a real per-ticket
	// field rather than hardcoded to always-win (spec §9's second open
	// question).
	WinProbNumerator   uint64
	WinProbDenominator uint64

	// OnChainSecret is the value redemption reveals on-chain: the
	// aggregate key-half pre-image this ticket's AggregateKeyHalves
	// call produced once the next hop's half became available.
	OnChainSecret [32]byte
}

// IsWinning reports whether preImage wins this ticket: H(preImage) <
// winProb * 2^N, compared as the exact rational winProb = Numerator /
// Denominator rather than a lossy float approximation.
func (t Ticket) IsWinning(preImage [32]byte) bool {
	digest := primitives.Hash(preImage[:])

	lhs := new(big.Int).SetBytes(digest[:])
	lhs.Mul(lhs, new(big.Int).SetUint64(t.WinProbDenominator))

	rhs := new(big.Int).Lsh(big.NewInt(1), WinProbDenominatorBits)
	rhs.Mul(rhs, new(big.Int).SetUint64(t.WinProbNumerator))

	return lhs.Cmp(rhs) < 0
}
