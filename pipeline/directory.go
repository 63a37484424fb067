package pipeline

import (
	"sync"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/ilodi/hoprnet/sphinx"
)

// Directory maps a sphinx.Address back to the public key it was derived
// from. sphinx itself never needs this — a hop only ever forwards to an
// address — but the channel module needs an actual public key to
// compute a channelId or a counterparty check, so the binder adapters
// in this package look it up here. Populating it is a transport-layer
// concern (peer discovery, address book) outside this module's scope.
type Directory interface {
	Lookup(addr sphinx.Address) (*btcec.PublicKey, bool)
}

// StaticDirectory is a fixed, in-memory Directory, suitable for tests
// and for a deployment that already knows its peer set.
type StaticDirectory struct {
	mu     sync.RWMutex
	byAddr map[sphinx.Address]*btcec.PublicKey
}

// NewStaticDirectory returns an empty StaticDirectory.
func NewStaticDirectory() *StaticDirectory {
	return &StaticDirectory{byAddr: make(map[sphinx.Address]*btcec.PublicKey)}
}

// Add registers pub under its own derived address.
func (d *StaticDirectory) Add(pub *btcec.PublicKey) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.byAddr[sphinx.AddressFromPubKey(pub)] = pub
}

// Lookup implements Directory.
func (d *StaticDirectory) Lookup(addr sphinx.Address) (*btcec.PublicKey, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	pub, ok := d.byAddr[addr]
	return pub, ok
}
