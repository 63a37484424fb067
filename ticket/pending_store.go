package ticket

import (
	"encoding/binary"

	"github.com/ilodi/hoprnet/kvstore"
)

const keyPrefix = "payments-challenge-"

// storeKey reproduces the "payments-challenge-" ‖ channelId ‖
// hashedKeyHalf key layout of spec §6, keyed by hashedKeyHalf so a
// redemption attempt can look a ticket up by the value it is about to
// reveal without a channel-wide scan.
func storeKey(channelId [32]byte, hashedKeyHalf [32]byte) []byte {
	key := make([]byte, 0, len(keyPrefix)+64)
	key = append(key, keyPrefix...)
	key = append(key, channelId[:]...)
	key = append(key, hashedKeyHalf[:]...)
	return key
}

// PendingTicketStore persists the tickets registered at the "register a
// pending ticket" step of spec §4.6 step 4, keyed by HashedKeyHalf, in
// the spirit of shachain.Store's small, single-purpose "store, look up by
// key" interface rather than a general transactional database.
type PendingTicketStore struct {
	store kvstore.Store
}

// NewPendingTicketStore returns a PendingTicketStore backed by store.
func NewPendingTicketStore(store kvstore.Store) *PendingTicketStore {
	return &PendingTicketStore{store: store}
}

// Put registers t, overwriting any ticket previously registered under
// the same channel and hashed key-half.
func (s *PendingTicketStore) Put(t Ticket) error {
	key := storeKey(t.ChannelId, t.HashedKeyHalf)
	return s.store.Put(key, encodeTicket(t))
}

// Get looks up the ticket registered for channelId under hashedKeyHalf.
// It returns kvstore.ErrNotFound if none is registered.
func (s *PendingTicketStore) Get(channelId [32]byte, hashedKeyHalf [32]byte) (Ticket, error) {
	raw, err := s.store.Get(storeKey(channelId, hashedKeyHalf))
	if err != nil {
		return Ticket{}, err
	}
	return decodeTicket(raw)
}

// Delete removes the ticket registered for channelId under
// hashedKeyHalf, e.g. once it has been redeemed or the channel it
// belongs to has closed.
func (s *PendingTicketStore) Delete(channelId [32]byte, hashedKeyHalf [32]byte) error {
	return s.store.Delete(storeKey(channelId, hashedKeyHalf))
}

// Iterate walks every ticket registered for channelId, in the order
// getPreviousChallenges (spec §4.5) needs to reconstruct the aggregate
// redemption pre-image.
func (s *PendingTicketStore) Iterate(channelId [32]byte, fn func(Ticket) error) error {
	prefix := make([]byte, 0, len(keyPrefix)+32)
	prefix = append(prefix, keyPrefix...)
	prefix = append(prefix, channelId[:]...)

	gte := append(append([]byte{}, prefix...), make([]byte, 32)...)
	lte := append(append([]byte{}, prefix...), repeat(0xff, 32)...)

	it := s.store.NewRangeIterator(gte, lte)
	defer it.Close()

	for it.Next() {
		t, err := decodeTicket(it.Value())
		if err != nil {
			return err
		}
		if err := fn(t); err != nil {
			return err
		}
	}
	return nil
}

func repeat(b byte, n int) []byte {
	out := make([]byte, n)
	for i := range out {
		out[i] = b
	}
	return out
}

// encodeTicket/decodeTicket serialize a Ticket to the flat layout this
// store persists: channelId(32) ‖ challenge(65) ‖ hashedKeyHalf(32) ‖
// amount(8) ‖ winProbNumerator(8) ‖ winProbDenominator(8) ‖
// onChainSecret(32).
func encodeTicket(t Ticket) []byte {
	buf := make([]byte, 32+ChallengeSize+32+8+8+8+32)
	off := 0
	copy(buf[off:], t.ChannelId[:])
	off += 32
	copy(buf[off:], t.Challenge[:])
	off += ChallengeSize
	copy(buf[off:], t.HashedKeyHalf[:])
	off += 32
	binary.BigEndian.PutUint64(buf[off:], t.Amount)
	off += 8
	binary.BigEndian.PutUint64(buf[off:], t.WinProbNumerator)
	off += 8
	binary.BigEndian.PutUint64(buf[off:], t.WinProbDenominator)
	off += 8
	copy(buf[off:], t.OnChainSecret[:])
	return buf
}

func decodeTicket(raw []byte) (Ticket, error) {
	want := 32 + ChallengeSize + 32 + 8 + 8 + 8 + 32
	if len(raw) != want {
		return Ticket{}, ErrTicketEncoding(len(raw), want)
	}

	var t Ticket
	off := 0
	copy(t.ChannelId[:], raw[off:])
	off += 32
	copy(t.Challenge[:], raw[off:])
	off += ChallengeSize
	copy(t.HashedKeyHalf[:], raw[off:])
	off += 32
	t.Amount = binary.BigEndian.Uint64(raw[off:])
	off += 8
	t.WinProbNumerator = binary.BigEndian.Uint64(raw[off:])
	off += 8
	t.WinProbDenominator = binary.BigEndian.Uint64(raw[off:])
	off += 8
	copy(t.OnChainSecret[:], raw[off:])
	return t, nil
}
