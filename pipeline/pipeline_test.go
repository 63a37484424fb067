package pipeline

import (
	"context"
	"testing"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/ilodi/hoprnet/chain"
	"github.com/ilodi/hoprnet/channel"
	"github.com/ilodi/hoprnet/kvstore/memstore"
	"github.com/ilodi/hoprnet/replay"
	"github.com/ilodi/hoprnet/sphinx"
	"github.com/ilodi/hoprnet/ticket"
	"github.com/stretchr/testify/require"
)

// fakeBackend is a no-op chain.Backend: every hop in this test already
// has its channel record seeded directly via Manager.TestSeedRecord, so
// nothing here ever needs to report a real on-chain channel.
type fakeBackend struct{}

func (fakeBackend) GetChannel(ctx context.Context, a, b [20]byte) (chain.OnChainChannel, error) {
	return chain.OnChainChannel{}, nil
}
func (fakeBackend) OpenChannel(ctx context.Context, counterparty *btcec.PublicKey, deposit uint64) error {
	return nil
}
func (fakeBackend) InitiateChannelClosure(ctx context.Context, counterparty *btcec.PublicKey) error {
	return nil
}
func (fakeBackend) ClaimChannelClosure(ctx context.Context, counterparty *btcec.PublicKey) error {
	return nil
}
func (fakeBackend) CloseChannel(ctx context.Context, index, nonce, value uint64,
	curvePointX [32]byte, curvePointParity byte, sigR, sigS [32]byte, recovery byte) error {
	return nil
}
func (fakeBackend) Withdraw(ctx context.Context, counterpartyAddress [20]byte) error { return nil }
func (fakeBackend) SendTransaction(ctx context.Context, tx []byte) error             { return nil }
func (fakeBackend) GetBlock(ctx context.Context, latest bool, height uint64) (chain.BlockHeader, error) {
	return chain.BlockHeader{}, nil
}
func (fakeBackend) Subscribe(ctx context.Context, fn func(chain.BlockHeader)) (chain.Subscription, error) {
	return nil, nil
}
func (fakeBackend) OpenedChannel(ctx context.Context, party [20]byte) (<-chan chain.OpenedChannel, error) {
	return nil, nil
}
func (fakeBackend) ClosedChannel(ctx context.Context, party [20]byte) (<-chan chain.ClosedChannel, error) {
	return nil, nil
}

// node bundles everything one hop in the test topology needs: its own
// identity and address, its channel manager, and the pipeline it drives
// incoming frames through.
type node struct {
	key      *btcec.PrivateKey
	address  sphinx.Address
	manager  *channel.Manager
	pipeline *Pipeline
}

// fundChannel seeds an Open channel record on both sides of a and b
// directly, standing in for the on-chain funding handshake the pipeline
// doesn't drive in this test.
func fundChannel(t *testing.T, a, b *node, balance uint64) {
	aAddr := channel.AddressFromPubKey(a.key.PubKey())
	bAddr := channel.AddressFromPubKey(b.key.PubKey())
	channelId := channel.ComputeChannelId(aAddr, bAddr)
	aIsPartyA := aAddr != bAddr && !channelAddrGreater(aAddr, bAddr)

	require.NoError(t, a.manager.TestSeedRecord(channel.Record{
		Counterparty:  b.key.PubKey(),
		ChannelId:     channelId,
		IsSelfPartyA:  aIsPartyA,
		Status:        channel.Open,
		Balance:       balance,
		PartyABalance: balance / 2,
	}))
	require.NoError(t, b.manager.TestSeedRecord(channel.Record{
		Counterparty:  a.key.PubKey(),
		ChannelId:     channelId,
		IsSelfPartyA:  !aIsPartyA,
		Status:        channel.Open,
		Balance:       balance,
		PartyABalance: balance / 2,
	}))
}

// channelAddrGreater mirrors channel's own unexported lexGreater so test
// setup can decide which side is partyA without reaching into the
// package's internals.
func channelAddrGreater(a, b [20]byte) bool {
	for i := range a {
		if a[i] != b[i] {
			return a[i] > b[i]
		}
	}
	return false
}

func newNode(t *testing.T, dir *StaticDirectory, relayFee uint64) *node {
	priv, err := btcec.NewPrivateKey()
	require.NoError(t, err)
	dir.Add(priv.PubKey())

	tickets := ticket.NewPendingTicketStore(memstore.New())
	mgr := channel.NewManager(priv, memstore.New(), fakeBackend{}, tickets)
	guard := replay.New(memstore.New())

	source := &SourceBinder{Manager: mgr, Directory: dir}
	hop := &HopBinder{Manager: mgr, Tickets: tickets, Directory: dir, RelayFee: relayFee}

	return &node{
		key:      priv,
		address:  sphinx.AddressFromPubKey(priv.PubKey()),
		manager:  mgr,
		pipeline: New(priv, guard, source, hop),
	}
}

func testMessage() []byte {
	msg := make([]byte, sphinx.MessageSize)
	copy(msg, []byte("integration test payload"))
	return msg
}

func TestThreeHopPipelineDeliversMessage(t *testing.T) {
	dir := NewStaticDirectory()
	sender, err := btcec.NewPrivateKey()
	require.NoError(t, err)
	dir.Add(sender.PubKey())

	a := newNode(t, dir, 0)
	b := newNode(t, dir, 0)
	c := newNode(t, dir, 0)

	fundChannel(t, a, b, 100)
	fundChannel(t, b, c, 100)

	senderMgr := channel.NewManager(sender, memstore.New(), fakeBackend{}, ticket.NewPendingTicketStore(memstore.New()))
	senderSource := &SourceBinder{Manager: senderMgr, Directory: dir}

	senderAddr := channel.AddressFromPubKey(sender.PubKey())
	aAddr := channel.AddressFromPubKey(a.key.PubKey())
	senderChannelId := channel.ComputeChannelId(senderAddr, aAddr)
	senderIsPartyA := !channelAddrGreater(senderAddr, aAddr)
	require.NoError(t, senderMgr.TestSeedRecord(channel.Record{
		Counterparty:  a.key.PubKey(),
		ChannelId:     senderChannelId,
		IsSelfPartyA:  senderIsPartyA,
		Status:        channel.Open,
		Balance:       100,
		PartyABalance: 50,
	}))
	require.NoError(t, a.manager.TestSeedRecord(channel.Record{
		Counterparty:  sender.PubKey(),
		ChannelId:     senderChannelId,
		IsSelfPartyA:  !senderIsPartyA,
		Status:        channel.Open,
		Balance:       100,
		PartyABalance: 50,
	}))

	path := sphinx.Path{
		Keys:      []*btcec.PublicKey{a.key.PubKey(), b.key.PubKey(), c.key.PubKey()},
		Addresses: []sphinx.Address{a.address, b.address, c.address},
	}

	sessionKey, err := btcec.NewPrivateKey()
	require.NoError(t, err)
	pkt, err := sphinx.Construct(path, sessionKey, sender, testMessage(), 0, senderSource, sphinx.DefaultMaxHops)
	require.NoError(t, err)

	frame := pkt.ToBuffer()
	senderAddress := sphinx.AddressFromPubKey(sender.PubKey())

	effect, err := a.pipeline.Process(senderAddress, frame)
	require.NoError(t, err)
	forward, ok := effect.(EffectForward)
	require.True(t, ok)
	require.Equal(t, b.address, forward.NextAddress)

	effect, err = b.pipeline.Process(a.address, forward.Packet)
	require.NoError(t, err)
	forward, ok = effect.(EffectForward)
	require.True(t, ok)
	require.Equal(t, c.address, forward.NextAddress)

	effect, err = c.pipeline.Process(b.address, forward.Packet)
	require.NoError(t, err)
	deliver, ok := effect.(EffectDeliver)
	require.True(t, ok)
	require.Equal(t, testMessage(), deliver.Message)
}

func TestPipelineDropsReplayedPacket(t *testing.T) {
	dir := NewStaticDirectory()
	sender, err := btcec.NewPrivateKey()
	require.NoError(t, err)
	dir.Add(sender.PubKey())

	a := newNode(t, dir, 0)

	senderMgr := channel.NewManager(sender, memstore.New(), fakeBackend{}, ticket.NewPendingTicketStore(memstore.New()))
	senderSource := &SourceBinder{Manager: senderMgr, Directory: dir}

	senderAddr := channel.AddressFromPubKey(sender.PubKey())
	aAddr := channel.AddressFromPubKey(a.key.PubKey())
	channelId := channel.ComputeChannelId(senderAddr, aAddr)
	senderIsPartyA := !channelAddrGreater(senderAddr, aAddr)
	require.NoError(t, senderMgr.TestSeedRecord(channel.Record{
		Counterparty:  a.key.PubKey(),
		ChannelId:     channelId,
		IsSelfPartyA:  senderIsPartyA,
		Status:        channel.Open,
		Balance:       100,
		PartyABalance: 50,
	}))
	require.NoError(t, a.manager.TestSeedRecord(channel.Record{
		Counterparty:  sender.PubKey(),
		ChannelId:     channelId,
		IsSelfPartyA:  !senderIsPartyA,
		Status:        channel.Open,
		Balance:       100,
		PartyABalance: 50,
	}))

	path := sphinx.Path{
		Keys:      []*btcec.PublicKey{a.key.PubKey()},
		Addresses: []sphinx.Address{a.address},
	}

	sessionKey, err := btcec.NewPrivateKey()
	require.NoError(t, err)
	pkt, err := sphinx.Construct(path, sessionKey, sender, testMessage(), 0, senderSource, sphinx.DefaultMaxHops)
	require.NoError(t, err)

	frame := pkt.ToBuffer()
	senderAddress := sphinx.AddressFromPubKey(sender.PubKey())

	_, err = a.pipeline.Process(senderAddress, frame)
	require.NoError(t, err)

	effect, err := a.pipeline.Process(senderAddress, frame)
	require.NoError(t, err)
	drop, ok := effect.(EffectDrop)
	require.True(t, ok)
	require.ErrorIs(t, drop.Reason, sphinx.ErrReplay)
}

// TestThreeHopPipelineDeductsRelayFeePerHop exercises §8 scenario 1 with
// a nonzero RELAY_FEE: A sends through hops a and b to terminal hop c.
// The source pays (numHops-1)*relayFee = 2; a keeps 1 as its fee and
// forwards 1 to b; b keeps its own fee of 1 and forwards 0 to c, which
// is legal since c is the destination and never forwards further.
func TestThreeHopPipelineDeductsRelayFeePerHop(t *testing.T) {
	const relayFee = 1

	dir := NewStaticDirectory()
	sender, err := btcec.NewPrivateKey()
	require.NoError(t, err)
	dir.Add(sender.PubKey())

	a := newNode(t, dir, relayFee)
	b := newNode(t, dir, relayFee)
	c := newNode(t, dir, relayFee)

	fundChannel(t, a, b, 100)
	fundChannel(t, b, c, 100)

	senderMgr := channel.NewManager(sender, memstore.New(), fakeBackend{}, ticket.NewPendingTicketStore(memstore.New()))
	senderSource := &SourceBinder{Manager: senderMgr, Directory: dir}

	senderAddr := channel.AddressFromPubKey(sender.PubKey())
	aAddr := channel.AddressFromPubKey(a.key.PubKey())
	bAddr := channel.AddressFromPubKey(b.key.PubKey())
	senderChannelId := channel.ComputeChannelId(senderAddr, aAddr)
	senderIsPartyA := !channelAddrGreater(senderAddr, aAddr)
	require.NoError(t, senderMgr.TestSeedRecord(channel.Record{
		Counterparty:  a.key.PubKey(),
		ChannelId:     senderChannelId,
		IsSelfPartyA:  senderIsPartyA,
		Status:        channel.Open,
		Balance:       100,
		PartyABalance: 50,
	}))
	require.NoError(t, a.manager.TestSeedRecord(channel.Record{
		Counterparty:  sender.PubKey(),
		ChannelId:     senderChannelId,
		IsSelfPartyA:  !senderIsPartyA,
		Status:        channel.Open,
		Balance:       100,
		PartyABalance: 50,
	}))

	path := sphinx.Path{
		Keys:      []*btcec.PublicKey{a.key.PubKey(), b.key.PubKey(), c.key.PubKey()},
		Addresses: []sphinx.Address{a.address, b.address, c.address},
	}

	sessionKey, err := btcec.NewPrivateKey()
	require.NoError(t, err)
	pkt, err := sphinx.Construct(path, sessionKey, sender, testMessage(), relayFee, senderSource, sphinx.DefaultMaxHops)
	require.NoError(t, err)

	frame := pkt.ToBuffer()
	senderAddress := sphinx.AddressFromPubKey(sender.PubKey())

	effect, err := a.pipeline.Process(senderAddress, frame)
	require.NoError(t, err)
	forward, ok := effect.(EffectForward)
	require.True(t, ok)
	require.Equal(t, b.address, forward.NextAddress)

	// a received the full amount (2) from the sender; the incoming
	// transaction's value reflects that shift against the seeded 50/50
	// split.
	aRec, err := a.manager.GetRecord(senderChannelId)
	require.NoError(t, err)
	wantA := uint64(50)
	if senderIsPartyA {
		wantA -= 2
	} else {
		wantA += 2
	}
	require.Equal(t, wantA, aRec.PartyABalance)

	effect, err = b.pipeline.Process(a.address, forward.Packet)
	require.NoError(t, err)
	forward, ok = effect.(EffectForward)
	require.True(t, ok)
	require.Equal(t, c.address, forward.NextAddress)

	// b received 1 (2 minus a's relay fee) from a over the a-b channel.
	abChannelId := channel.ComputeChannelId(aAddr, bAddr)
	bRec, err := b.manager.GetRecord(abChannelId)
	require.NoError(t, err)
	aIsPartyAForAB := !channelAddrGreater(aAddr, bAddr)
	wantB := uint64(50)
	if aIsPartyAForAB {
		wantB -= 1
	} else {
		wantB += 1
	}
	require.Equal(t, wantB, bRec.PartyABalance)

	effect, err = c.pipeline.Process(b.address, forward.Packet)
	require.NoError(t, err)
	deliver, ok := effect.(EffectDeliver)
	require.True(t, ok)
	require.Equal(t, testMessage(), deliver.Message)
}
