// Package replay implements the per-hop replay guard of spec §4.2 step
// 2: a packet carrying a tag this hop has already seen is dropped.
package replay

import (
	"encoding/hex"
	"sync"

	"github.com/ilodi/hoprnet/kvstore"
	"github.com/ilodi/hoprnet/primitives"
)

const keyPrefix = "packet-tag-"

func storeKey(tag [primitives.TagSize]byte) []byte {
	return []byte(keyPrefix + hex.EncodeToString(tag[:]))
}

// Guard is a kvstore-backed sphinx.ReplayChecker. A tag that has never
// been seen is recorded and SeenOrInsert reports it as fresh; any
// further packet carrying the same tag is reported as a replay.
//
// kvstore.Store exposes no atomic conditional-write primitive, so a bare
// Get-then-Put would let two concurrent transforms of the same tag both
// observe ErrNotFound and both report fresh. mu serializes SeenOrInsert
// across all tags — coarser than per-tag locking, but the same
// read-check-then-write span htlcswitch's circuit_map guards with a
// single mutex over its whole map.
type Guard struct {
	mu    sync.Mutex
	store kvstore.Store
}

// New returns a Guard backed by store.
func New(store kvstore.Store) *Guard {
	return &Guard{store: store}
}

// SeenOrInsert implements sphinx.ReplayChecker.
func (g *Guard) SeenOrInsert(tag [primitives.TagSize]byte) (bool, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	key := storeKey(tag)

	_, err := g.store.Get(key)
	switch {
	case err == nil:
		return false, nil
	case err != kvstore.ErrNotFound:
		return false, err
	}

	if err := g.store.Put(key, []byte{1}); err != nil {
		return false, err
	}
	return true, nil
}

// Prune deletes the given store keys in one batch. Since tags are random
// 16-byte values, key order does not correspond to an age cutoff;
// callers that want a retention
// window should track tag insertion order out of band and pass this the
// set of keys to delete. Prune exists so a bounded deployment has a way
// to reclaim space at all, not as a precise recency cutoff.
func (g *Guard) Prune(keys [][]byte) error {
	ops := make([]kvstore.Op, len(keys))
	for i, k := range keys {
		ops[i] = kvstore.Op{Key: k, Value: nil}
	}
	return g.store.Batch(ops)
}
