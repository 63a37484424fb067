// Package chain defines the abstract chain backend the channel module
// settles through (spec §6). It is an interface only: no concrete
// implementation lives in this module, the same way lnd's lnwallet
// package defines WalletController/BlockChainIO as interfaces that a
// separate backend (btcwallet, neutrino, ...) satisfies.
package chain

import (
	"context"

	"github.com/btcsuite/btcd/btcec/v2"
)

// Status mirrors the on-chain channel status, derived from the raw
// contract's stateCounter via StatusFromCounter.
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

// StatusFromCounter derives the on-chain Status from the contract's raw
// stateCounter field: ChannelStatus = stateCounter mod 10 (spec §6).
func StatusFromCounter(stateCounter uint64) Status {
	return Status(stateCounter % 10)
}

// OnChainChannel is the raw record the chain backend's GetChannel
// returns (spec §6).
type OnChainChannel struct {
	Deposit       uint64
	PartyABalance uint64
	ClosureTime   uint64
	StateCounter  uint64
}

// Status derives this record's Status from its StateCounter.
func (c OnChainChannel) Status() Status { return StatusFromCounter(c.StateCounter) }

// OpenedChannel is the event payload the OpenedChannel stream yields.
type OpenedChannel struct {
	PartyA, PartyB [20]byte
}

// ClosedChannel is the event payload the ClosedChannel stream yields.
type ClosedChannel struct {
	PartyA, PartyB [20]byte
}

// BlockHeader is the minimal block payload Subscribe delivers.
type BlockHeader struct {
	Number uint64
	Time   uint64
}

// Subscription is a handle a caller cancels once it no longer needs
// events, mirroring the transport-owned subscription lifecycle of spec
// §5 ("chain subscriptions are owned by the channel they describe and
// cleaned up on Closed").
type Subscription interface {
	// Close cancels the subscription. Calling Close more than once is
	// a no-op.
	Close() error
}

// Backend is the abstract chain backend every channel operation settles
// through (spec §6). Concrete implementations (an RPC client against a
// live deployment, or a local development chain for tests) live outside
// this module; it is named here purely as an interface, the explicit
// external collaborator spec §1 calls out.
type Backend interface {
	// GetChannel fetches the on-chain record for the channel between
	// a and b.
	GetChannel(ctx context.Context, a, b [20]byte) (OnChainChannel, error)

	// OpenChannel funds and opens a channel with counterparty.
	OpenChannel(ctx context.Context, counterparty *btcec.PublicKey, deposit uint64) error

	// InitiateChannelClosure begins the unilateral closure clock for
	// the channel with counterparty.
	InitiateChannelClosure(ctx context.Context, counterparty *btcec.PublicKey) error

	// ClaimChannelClosure finalizes closure once the channel is
	// Withdrawable.
	ClaimChannelClosure(ctx context.Context, counterparty *btcec.PublicKey) error

	// CloseChannel submits the final settlement transaction's
	// components, split the way the on-chain contract's calldata
	// expects: curvePointX/curvePointParity instead of a single
	// compressed point, sigR/sigS instead of a single signature field.
	CloseChannel(ctx context.Context, index, nonce, value uint64,
		curvePointX [32]byte, curvePointParity byte,
		sigR, sigS [32]byte, recovery byte) error

	// Withdraw claims the settled balance owed to this node from the
	// channel with counterpartyAddress.
	Withdraw(ctx context.Context, counterpartyAddress [20]byte) error

	// SendTransaction broadcasts a raw, already-assembled chain
	// transaction, used by callers that need lower-level access than
	// the typed operations above provide.
	SendTransaction(ctx context.Context, tx []byte) error

	// GetBlock fetches the latest block if latest is true, or a
	// specific height otherwise; height is ignored when latest is
	// true.
	GetBlock(ctx context.Context, latest bool, height uint64) (BlockHeader, error)

	// Subscribe delivers every new block header to fn until the
	// returned Subscription is closed or ctx is done.
	Subscribe(ctx context.Context, fn func(BlockHeader)) (Subscription, error)

	// OpenedChannel streams OpenedChannel events where either
	// participant is party.
	OpenedChannel(ctx context.Context, party [20]byte) (<-chan OpenedChannel, error)

	// ClosedChannel streams ClosedChannel events where either
	// participant is party.
	ClosedChannel(ctx context.Context, party [20]byte) (<-chan ClosedChannel, error)
}

// TestHarness is implemented by backends that support driving block time
// directly, for use by the test suite only. Per spec §9's design note,
// this replaces the original mineBlock test hack: it is never called
// from a production code path, only from test setup, the same way lntest
// exposes chain-advance hooks solely to the test harness.
type TestHarness interface {
	// TestBlockAdvance mines n blocks (or the backend's equivalent of
	// advancing block time), for use only by tests driving a channel
	// through Withdrawable.
	TestBlockAdvance(ctx context.Context, n int) error
}
