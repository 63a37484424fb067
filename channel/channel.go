package channel

import (
	"context"
	"sync"
	"time"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/ilodi/hoprnet/chain"
	"github.com/ilodi/hoprnet/kvstore"
	"github.com/ilodi/hoprnet/primitives"
	"github.com/ilodi/hoprnet/ticket"
)

// SettlementTimeout bounds how long closeChannel waits for a
// counterparty-supplied newer transaction before falling back to
// submitting its own, per spec §5(b)'s 40s cooperative-settlement
// timeout.
const SettlementTimeout = 40 * time.Second

// Status is the local, off-chain view of a channel's lifecycle (spec
// §3, §4.5). It mirrors chain.Status but is tracked separately so that
// off-chain status may lead on-chain status by exactly the one
// optimistic transition taken at submission, per spec §3's invariant.
type Status int

const (
	Uninitialised Status = iota
	Funding
	Open
	PendingClosure
	Withdrawable
	Closed
)

func (s Status) String() string {
	switch s {
	case Uninitialised:
		return "Uninitialised"
	case Funding:
		return "Funding"
	case Open:
		return "Open"
	case PendingClosure:
		return "PendingClosure"
	case Withdrawable:
		return "Withdrawable"
	case Closed:
		return "Closed"
	default:
		return "Unknown"
	}
}

// ClosureState tracks which step of the closure protocol (spec §4.5's
// "Closure protocol") a channel is in. It is persisted as part of the
// channel Record (grounded on contractcourt's ChannelArbitrator
// persisting its state across restarts); nothing in this package reads
// it back to resume an interrupted closure.
type ClosureState int

const (
	NoClosure ClosureState = iota
	AwaitingCooperative
	AwaitingUnilateral
	AwaitingWithdrawable
	Withdrawing
)

// Record is the per-counterparty channel record persisted under
// KeyRecordKey (spec §3's "Channel").
type Record struct {
	Counterparty *btcec.PublicKey
	ChannelId    [32]byte

	// IsSelfPartyA reports whether this node is partyA on this
	// channel, per the funding-direction rule of spec §4.5: the
	// lexicographically smaller of the two on-chain addresses is
	// partyA.
	IsSelfPartyA bool

	Status        Status
	Balance       uint64
	PartyABalance uint64
	ClosureTime   uint64
	Index         uint64
	ClosureState  ClosureState
}

// AddressFromPubKey derives a channel party's 20-byte on-chain address
// from its public key: the first 20 bytes of sha256 over the compressed
// serialization. This mirrors sphinx.AddressFromPubKey's formula but is
// kept independent of it: an on-chain account address and a sphinx
// routing address are different domains that happen to share a
// derivation, not the same value.
func AddressFromPubKey(pub *btcec.PublicKey) [20]byte {
	h := primitives.Hash(pub.SerializeCompressed())

	var addr [20]byte
	copy(addr[:], h[:20])
	return addr
}

// ComputeChannelId returns H(accountA ‖ accountB) with accountA the
// lexicographically smaller address, per spec §3.
func ComputeChannelId(a, b [20]byte) [32]byte {
	lo, hi := a, b
	if lexGreater(lo, hi) {
		lo, hi = hi, lo
	}
	return primitives.Hash(lo[:], hi[:])
}

func lexGreater(a, b [20]byte) bool {
	for i := range a {
		if a[i] != b[i] {
			return a[i] > b[i]
		}
	}
	return false
}

// Manager owns every payment-channel operation of spec §4.5, persisting
// state through a kvstore.Store and settling through a chain.Backend.
// It holds a per-channel mutex spanning the suspension points of spec
// §5's steps (1)-(5): no two goroutines may read-modify-write the same
// channel record concurrently.
type Manager struct {
	store       kvstore.Store
	backend     chain.Backend
	self        *btcec.PrivateKey
	ticketStore *ticket.PendingTicketStore

	locksMu sync.Mutex
	locks   map[[32]byte]*sync.Mutex
}

// NewManager returns a Manager for self, persisting through store and
// settling through backend. tickets is where GetPreviousChallenges reads
// the per-channel pending tickets a redemption aggregates.
func NewManager(self *btcec.PrivateKey, store kvstore.Store, backend chain.Backend,
	tickets *ticket.PendingTicketStore) *Manager {

	return &Manager{
		store:       store,
		backend:     backend,
		self:        self,
		ticketStore: tickets,
		locks:       make(map[[32]byte]*sync.Mutex),
	}
}

// SelfPubKey returns the public key this Manager signs channel updates
// with.
func (m *Manager) SelfPubKey() *btcec.PublicKey { return m.self.PubKey() }

// WithChannelLock runs fn while holding channelId's mutex, spanning
// exactly the suspension points spec §5 requires be serialized: a
// concurrent transform of two packets bound to the same channel must
// never interleave their read-modify-write of the channel record.
func (m *Manager) WithChannelLock(channelId [32]byte, fn func() error) error {
	m.locksMu.Lock()
	lock, ok := m.locks[channelId]
	if !ok {
		lock = &sync.Mutex{}
		m.locks[channelId] = lock
	}
	m.locksMu.Unlock()

	lock.Lock()
	defer lock.Unlock()
	return fn()
}

func (m *Manager) getRecord(channelId [32]byte) (Record, error) {
	raw, err := m.store.Get(KeyRecordKey(channelId))
	if err != nil {
		if err == kvstore.ErrNotFound {
			return Record{}, ErrChannelNotFound
		}
		return Record{}, err
	}
	return decodeRecord(raw)
}

func (m *Manager) putRecord(r Record) error {
	return m.store.Put(KeyRecordKey(r.ChannelId), encodeRecord(r))
}

// OpenOrFund implements spec §4.5's openOrFund: if a channel exists both
// on-chain and locally, it is a no-op; if it exists in neither, it is
// funded and opened; if only the local record exists, that record is
// pruned since on-chain is authoritative; if only the on-chain channel
// exists, it returns ErrStateDivergence.
func (m *Manager) OpenOrFund(ctx context.Context, counterparty *btcec.PublicKey, balance uint64) error {
	selfAddr := AddressFromPubKey(m.self.PubKey())
	peerAddr := AddressFromPubKey(counterparty)
	channelId := ComputeChannelId(selfAddr, peerAddr)

	onChain, chainErr := m.backend.GetChannel(ctx, selfAddr, peerAddr)
	_, localErr := m.getRecord(channelId)

	onChainExists := chainErr == nil && onChain.Status() != chain.Uninitialised
	localExists := localErr == nil

	switch {
	case onChainExists && localExists:
		return nil
	case !onChainExists && !localExists:
		if err := m.backend.OpenChannel(ctx, counterparty, balance); err != nil {
			return err
		}
		return m.putRecord(Record{
			Counterparty: counterparty,
			ChannelId:    channelId,
			IsSelfPartyA: !lexGreater(selfAddr, peerAddr),
			Status:       Funding,
		})
	default:
		// Exactly one side has it: on-chain is authoritative, so a
		// local-only record is pruned; an on-chain-only channel is a
		// divergence this call cannot repair.
		if localExists && !onChainExists {
			return m.store.Delete(KeyRecordKey(channelId))
		}
		return ErrStateDivergence
	}
}

// IsOpen implements spec §4.5's isOpen: true iff on-chain status is Open
// or PendingClosure AND a local record exists. A local-only record is
// silently deleted; an on-chain-only record is a fatal divergence.
func (m *Manager) IsOpen(ctx context.Context, counterparty *btcec.PublicKey) (bool, error) {
	selfAddr := AddressFromPubKey(m.self.PubKey())
	peerAddr := AddressFromPubKey(counterparty)
	channelId := ComputeChannelId(selfAddr, peerAddr)

	onChain, chainErr := m.backend.GetChannel(ctx, selfAddr, peerAddr)
	_, localErr := m.getRecord(channelId)

	onChainOpen := chainErr == nil &&
		(onChain.Status() == chain.Open || onChain.Status() == chain.PendingClosure)
	localExists := localErr == nil

	switch {
	case onChainOpen && localExists:
		return true, nil
	case !onChainOpen && localExists:
		if err := m.store.Delete(KeyRecordKey(channelId)); err != nil {
			return false, err
		}
		return false, nil
	case onChainOpen && !localExists:
		return false, ErrStateDivergence
	default:
		return false, nil
	}
}

// Transfer implements spec §4.5's transfer: builds and signs an update
// moving amount toward the counterparty, but does not persist it —
// persistence happens only once the recipient acknowledges, or, on the
// recipient's side, at TestAndSetNonce time.
func (m *Manager) Transfer(channelId [32]byte, amount uint64) (Transaction, error) {
	rec, err := m.getRecord(channelId)
	if err != nil {
		return Transaction{}, err
	}
	if rec.Status != Open && rec.Status != PendingClosure {
		return Transaction{}, ErrWrongStatus(rec.Status, Open)
	}

	partyABalance := rec.PartyABalance
	if rec.IsSelfPartyA {
		if amount > partyABalance {
			return Transaction{}, ErrInsufficientBalance
		}
		partyABalance -= amount
	} else {
		bBalance := rec.Balance - rec.PartyABalance
		if amount > bBalance {
			return Transaction{}, ErrInsufficientBalance
		}
		partyABalance += amount
	}

	tx := Transaction{
		ChannelId: channelId,
		Index:     rec.Index + 1,
		Value:     partyABalance,
	}
	if err := tx.Sign(m.self); err != nil {
		return Transaction{}, err
	}
	return tx, nil
}

// TestAndSetNonce implements spec §4.5's testAndSetNonce: the sole
// defense against a counterparty submitting the same signed update
// twice. It returns ErrNonceReused on the second call with the same
// signature.
func (m *Manager) TestAndSetNonce(channelId [32]byte, signature [64]byte) error {
	sigHash := primitives.Hash(signature[:])
	key := NonceKey(channelId, sigHash)

	_, err := m.store.Get(key)
	switch {
	case err == nil:
		return ErrNonceReused
	case err != kvstore.ErrNotFound:
		return err
	}
	return m.store.Put(key, []byte{1})
}

// AbsorbTransaction implements the "persist" half of spec §4.6 step 4:
// it validates tx's signature and index and updates the channel's
// currentValue/index in one call. The fee/received computation itself
// lives in the pipeline package, which owns the relay-fee policy;
// Manager only knows how to apply an already-validated update.
func (m *Manager) AbsorbTransaction(tx Transaction) error {
	rec, err := m.getRecord(tx.ChannelId)
	if err != nil {
		return err
	}
	if rec.Status != Open && rec.Status != PendingClosure {
		return ErrWrongStatus(rec.Status, Open)
	}

	signer, err := tx.Recover()
	if err != nil {
		return err
	}
	if !signer.IsEqual(rec.Counterparty) {
		return ErrInvalidSignature
	}

	if tx.Index != rec.Index+1 {
		return ErrIndexRegression(tx.Index, rec.Index+1)
	}

	rec.Index = tx.Index
	rec.PartyABalance = tx.Value
	if err := m.putRecord(rec); err != nil {
		return err
	}
	return m.store.Put(TransactionKey(tx.ChannelId), tx.Encode())
}

// ReceivedAmount computes the amount this node received when absorbing
// tx, given the channel's value before the update, per the
// partyA/partyB rule of spec §4.5/§4.6 step 2: a transfer from A reduces
// partyABalance, a transfer from B increases it, so the amount the
// non-sender received is the absolute delta.
func ReceivedAmount(rec Record, tx Transaction) uint64 {
	if tx.Value >= rec.PartyABalance {
		return tx.Value - rec.PartyABalance
	}
	return rec.PartyABalance - tx.Value
}

// GetRecord exposes the current local record for channelId, used by the
// pipeline's binder adapter to compute ReceivedAmount before calling
// AbsorbTransaction.
func (m *Manager) GetRecord(channelId [32]byte) (Record, error) {
	return m.getRecord(channelId)
}

// SubmitSettlement implements spec §4.5's submitSettlement: it reads the
// latest transaction, falling back in order to the restore transaction
// and then the stashed restore transaction — the three-tier fallback
// the original source uses to recover after the node itself crashed
// mid-update, supplemented here since the distilled spec names the keys
// but not this ordering's rationale — and submits it to the chain
// backend's CloseChannel.
func (m *Manager) SubmitSettlement(ctx context.Context, channelId [32]byte) error {
	tx, err := m.latestSettlementTransaction(channelId)
	if err == ErrChannelNotFound {
		tx, err = m.selfSignedSnapshot(channelId)
	}
	if err != nil {
		return err
	}

	var curvePointX [32]byte
	copy(curvePointX[:], tx.CurvePoint[1:33])
	curvePointParity := tx.CurvePoint[0]

	var sigR, sigS [32]byte
	copy(sigR[:], tx.Signature[:32])
	copy(sigS[:], tx.Signature[32:])

	return m.backend.CloseChannel(ctx, tx.Index, 0, tx.Value,
		curvePointX, curvePointParity, sigR, sigS, tx.Recovery)
}

func (m *Manager) latestSettlementTransaction(channelId [32]byte) (Transaction, error) {
	for _, key := range [][]byte{
		TransactionKey(channelId),
		RestoreTransactionKey(channelId),
		StashedRestoreTransactionKey(channelId),
	} {
		raw, err := m.store.Get(key)
		if err == kvstore.ErrNotFound {
			continue
		}
		if err != nil {
			return Transaction{}, err
		}
		return DecodeTransaction(raw)
	}
	return Transaction{}, ErrChannelNotFound
}

// selfSignedSnapshot builds and signs a Transaction reflecting the
// channel record's own current index/value. submitSettlement falls back
// to this when no update was ever persisted for the channel — a channel
// that was funded but never carried a transfer still needs something to
// submit.
func (m *Manager) selfSignedSnapshot(channelId [32]byte) (Transaction, error) {
	rec, err := m.getRecord(channelId)
	if err != nil {
		return Transaction{}, err
	}

	tx := Transaction{ChannelId: channelId, Index: rec.Index, Value: rec.PartyABalance}
	if err := tx.Sign(m.self); err != nil {
		return Transaction{}, err
	}
	return tx, nil
}

// CloseChannel implements spec §4.5's closure protocol: it reads
// on-chain state, prunes and fails on Uninitialised, otherwise decides
// between the cooperative and unilateral path and records the decision
// as ClosureState in the channel record.
func (m *Manager) CloseChannel(ctx context.Context, channelId [32]byte, counterpartyHasNewerTx bool) error {
	rec, err := m.getRecord(channelId)
	if err != nil {
		return err
	}

	selfAddr := AddressFromPubKey(m.self.PubKey())
	peerAddr := AddressFromPubKey(rec.Counterparty)
	onChain, err := m.backend.GetChannel(ctx, selfAddr, peerAddr)
	if err != nil {
		return err
	}

	if onChain.Status() == chain.Uninitialised {
		if err := m.store.Delete(KeyRecordKey(channelId)); err != nil {
			return err
		}
		return ErrStateDivergence
	}

	rec.ClosureTime = onChain.ClosureTime

	if onChain.Status() == chain.Withdrawable {
		rec.ClosureState = AwaitingWithdrawable
		return m.putRecord(rec)
	}

	rec.Status = PendingClosure

	if counterpartyHasNewerTx {
		rec.ClosureState = AwaitingCooperative
		if err := m.putRecord(rec); err != nil {
			return err
		}
		return m.awaitCooperativeSettlement(ctx, channelId)
	}

	rec.ClosureState = AwaitingUnilateral
	if err := m.putRecord(rec); err != nil {
		return err
	}
	if err := m.backend.InitiateChannelClosure(ctx, rec.Counterparty); err != nil {
		return err
	}
	return m.SubmitSettlement(ctx, channelId)
}

// awaitCooperativeSettlement implements spec §5(b)'s SETTLEMENT_TIMEOUT:
// asking the counterparty for a newer transaction happens over the
// SETTLE_CHANNEL stream protocol, a transport-level exchange outside
// this module's scope, so the only thing this call can do on its own is
// wait out the timeout and then submit its own transaction unilaterally.
func (m *Manager) awaitCooperativeSettlement(ctx context.Context, channelId [32]byte) error {
	timer := time.NewTimer(SettlementTimeout)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return m.SubmitSettlement(ctx, channelId)
	}
}

// Withdraw implements spec §4.5's withdraw: if the channel isn't already
// Withdrawable it subscribes to new blocks and waits until one reports a
// time at or past the ClosureTime in the channel record, then invokes the
// chain backend's Withdraw and prunes the channel's keys (see
// pruneChannel). Nonce-set entries and pending tickets are not pruned.
func (m *Manager) Withdraw(ctx context.Context, channelId [32]byte) error {
	rec, err := m.getRecord(channelId)
	if err != nil {
		return err
	}
	if rec.Status != PendingClosure && rec.Status != Withdrawable {
		return ErrNotWithdrawable
	}

	if rec.Status != Withdrawable {
		if err := m.awaitWithdrawable(ctx, channelId, rec); err != nil {
			return err
		}
		rec, err = m.getRecord(channelId)
		if err != nil {
			return err
		}
	}

	rec.ClosureState = Withdrawing
	if err := m.putRecord(rec); err != nil {
		return err
	}

	peerAddr := AddressFromPubKey(rec.Counterparty)
	if err := m.backend.Withdraw(ctx, peerAddr); err != nil {
		return err
	}

	return m.pruneChannel(channelId)
}

// awaitWithdrawable subscribes to new block headers and blocks until one
// reports a time at or past rec.ClosureTime, then records the channel as
// Withdrawable. The target is re-read from rec on every call rather than
// cached across a reconnect, so a node that reconnects after any amount
// of downtime computes the same target it would have computed had it
// stayed connected throughout — closureTime is itself authoritative
// on-chain state.
func (m *Manager) awaitWithdrawable(ctx context.Context, channelId [32]byte, rec Record) error {
	reached := make(chan struct{})
	var once sync.Once

	sub, err := m.backend.Subscribe(ctx, func(header chain.BlockHeader) {
		if header.Time >= rec.ClosureTime {
			once.Do(func() { close(reached) })
		}
	})
	if err != nil {
		return err
	}
	defer sub.Close()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-reached:
	}

	rec.Status = Withdrawable
	rec.ClosureState = AwaitingWithdrawable
	return m.putRecord(rec)
}

// GetPreviousChallenges implements spec §4.5's getPreviousChallenges: it
// iterates the per-channel pending-ticket store. The key-half
// aggregation itself (point addition, per §9's resolved open question)
// happens eagerly at bind time in the pipeline package, as soon as both
// halves are known — the raw key-half scalars are not retained past
// that point, only their hash and the resulting aggregate point — so
// this call simply returns the tickets whose OnChainSecret a redemption
// can use directly.
func (m *Manager) GetPreviousChallenges(channelId [32]byte) ([]ticket.Ticket, error) {
	var tickets []ticket.Ticket
	err := m.ticketStore.Iterate(channelId, func(t ticket.Ticket) error {
		tickets = append(tickets, t)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return tickets, nil
}

func (m *Manager) pruneChannel(channelId [32]byte) error {
	return m.store.Batch([]kvstore.Op{
		{Key: KeyRecordKey(channelId)},
		{Key: TransactionKey(channelId)},
		{Key: RestoreTransactionKey(channelId)},
		{Key: StashedRestoreTransactionKey(channelId)},
		{Key: IndexKey(channelId)},
		{Key: CurrentValueKey(channelId)},
		{Key: ClosureStateKey(channelId)},
	})
}

func encodeRecord(r Record) []byte {
	buf := make([]byte, 33+32+1+1+8+8+8+8+1)
	off := 0
	copy(buf[off:], r.Counterparty.SerializeCompressed())
	off += 33
	copy(buf[off:], r.ChannelId[:])
	off += 32
	if r.IsSelfPartyA {
		buf[off] = 1
	}
	off++
	buf[off] = byte(r.Status)
	off++
	putUint64(buf[off:], r.Balance)
	off += 8
	putUint64(buf[off:], r.PartyABalance)
	off += 8
	putUint64(buf[off:], r.ClosureTime)
	off += 8
	putUint64(buf[off:], r.Index)
	off += 8
	buf[off] = byte(r.ClosureState)
	return buf
}

func decodeRecord(raw []byte) (Record, error) {
	want := 33 + 32 + 1 + 1 + 8 + 8 + 8 + 8 + 1
	if len(raw) != want {
		return Record{}, ErrRecordEncoding(len(raw), want)
	}

	var r Record
	off := 0
	pub, err := btcec.ParsePubKey(raw[off : off+33])
	if err != nil {
		return Record{}, err
	}
	r.Counterparty = pub
	off += 33
	copy(r.ChannelId[:], raw[off:off+32])
	off += 32
	r.IsSelfPartyA = raw[off] == 1
	off++
	r.Status = Status(raw[off])
	off++
	r.Balance = getUint64(raw[off:])
	off += 8
	r.PartyABalance = getUint64(raw[off:])
	off += 8
	r.ClosureTime = getUint64(raw[off:])
	off += 8
	r.Index = getUint64(raw[off:])
	off += 8
	r.ClosureState = ClosureState(raw[off])
	return r, nil
}

func putUint64(b []byte, v uint64) {
	for i := 7; i >= 0; i-- {
		b[i] = byte(v)
		v >>= 8
	}
}

func getUint64(b []byte) uint64 {
	var v uint64
	for i := 0; i < 8; i++ {
		v = v<<8 | uint64(b[i])
	}
	return v
}
