package pipeline

import (
	"github.com/ilodi/hoprnet/channel"
	"github.com/ilodi/hoprnet/primitives"
	"github.com/ilodi/hoprnet/sphinx"
	"github.com/ilodi/hoprnet/ticket"
)

// defaultWinProbDenominator is the denominator every ticket Bind
// registers has its winning probability expressed over, with numerator
// 1; it is not configurable. 1/2, matching §8 scenario 6's seed
// value, not WIN_PROB = 1 (which the original source effectively
// disabled), per spec §9's resolved open question.
const defaultWinProbDenominator = 2

// SourceBinder implements sphinx.SourceBinder by reaching into a
// channel.Manager, the dependency-inversion seam that lets sphinx build
// the first hop's transaction without importing channel directly.
type SourceBinder struct {
	Manager   *channel.Manager
	Directory Directory
}

var _ sphinx.SourceBinder = (*SourceBinder)(nil)

// BuildFirstTransaction implements sphinx.SourceBinder.
func (b *SourceBinder) BuildFirstTransaction(next sphinx.Address, amount uint64) ([]byte, error) {
	nextPub, ok := b.Directory.Lookup(next)
	if !ok {
		return nil, ErrUnknownPeer(next)
	}

	selfAddr := channel.AddressFromPubKey(b.Manager.SelfPubKey())
	peerAddr := channel.AddressFromPubKey(nextPub)
	channelId := channel.ComputeChannelId(selfAddr, peerAddr)

	tx, err := b.Manager.Transfer(channelId, amount)
	if err != nil {
		return nil, err
	}
	return tx.Encode(), nil
}

// HopBinder implements sphinx.HopBinder by performing, under the
// channel's mutex, the five steps of spec §4.6's batched binding
// action.
type HopBinder struct {
	Manager   *channel.Manager
	Tickets   *ticket.PendingTicketStore
	Directory Directory
	RelayFee  uint64
}

var _ sphinx.HopBinder = (*HopBinder)(nil)

// Bind implements sphinx.HopBinder. The relay-fee floor is only
// enforced for a forwarding hop: the destination has nothing further to
// relay, so a fully fee-consumed final leg (received == 0) is legal, per
// spec §4.2's edge case ("fee 0 is legal for the last hop").
func (b *HopBinder) Bind(prev, next sphinx.Address, terminal bool, txBytes []byte,
	ownKeyHalf, nextKeyHalf [primitives.KeySize]byte) (*sphinx.BindResult, error) {

	tx, err := channel.DecodeTransaction(txBytes)
	if err != nil {
		return nil, err
	}

	prevPub, ok := b.Directory.Lookup(prev)
	if !ok {
		return nil, ErrUnknownPeer(prev)
	}

	selfAddr := channel.AddressFromPubKey(b.Manager.SelfPubKey())
	prevAddr := channel.AddressFromPubKey(prevPub)
	channelId := channel.ComputeChannelId(selfAddr, prevAddr)

	var result sphinx.BindResult
	err = b.Manager.WithChannelLock(channelId, func() error {
		rec, err := b.Manager.GetRecord(channelId)
		if err != nil {
			return err
		}
		if rec.Status != channel.Open && rec.Status != channel.PendingClosure {
			return channel.ErrWrongStatus(rec.Status, channel.Open)
		}

		received := channel.ReceivedAmount(rec, tx)
		if !terminal && received < b.RelayFee {
			return channel.ErrInsufficientFee(received, b.RelayFee)
		}
		if tx.Index != rec.Index+1 {
			return channel.ErrIndexRegression(tx.Index, rec.Index+1)
		}

		if err := b.Manager.AbsorbTransaction(tx); err != nil {
			return err
		}

		hashedKeyHalf := primitives.DeriveHashedKey(ownKeyHalf)
		t := ticket.Ticket{
			ChannelId:          channelId,
			HashedKeyHalf:      hashedKeyHalf,
			Amount:             received,
			WinProbNumerator:   1,
			WinProbDenominator: defaultWinProbDenominator,
		}

		if !terminal {
			// Both halves are known right now; the aggregate point
			// is computed eagerly rather than retained as two raw
			// scalars for a later redemption-time combination — see
			// channel.Manager.GetPreviousChallenges.
			agg := ticket.AggregateKeyHalves(ownKeyHalf, nextKeyHalf)
			copy(t.OnChainSecret[:], agg.SerializeCompressed()[1:33])
		}

		if err := b.Tickets.Put(t); err != nil {
			return err
		}

		result.Received = received

		if terminal {
			return nil
		}

		nextPub, ok := b.Directory.Lookup(next)
		if !ok {
			return ErrUnknownPeer(next)
		}
		nextAddr := channel.AddressFromPubKey(nextPub)
		outChannelId := channel.ComputeChannelId(selfAddr, nextAddr)

		outTx, err := b.Manager.Transfer(outChannelId, received-b.RelayFee)
		if err != nil {
			return err
		}
		result.OutgoingTransaction = outTx.Encode()
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &result, nil
}
