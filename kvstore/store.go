// Package kvstore defines the flat, prefix-scanned key/value contract
// the channel, ticket, and replay modules persist their state through.
// It intentionally does not follow lnd's walletdb.DB bucket/transaction
// model: every key this project writes already carries its own
// hierarchy baked into the byte string (spec §6's "payments-"-prefixed
// keys), and every read pattern is either a point lookup or a
// lexicographic range scan bounded by gte/lte — a shape closer to
// shachain.Store's small, single-purpose interface than to a
// multi-bucket transactional database.
package kvstore

import "github.com/ilodi/hoprnet/errclass"

// ErrNotFound is returned by Get when key has no value.
var ErrNotFound = errclass.Dropf("key not found")

// Op is a single write within a Batch: a nil Value deletes Key, any
// other Value (including an empty, non-nil slice) sets it.
type Op struct {
	Key   []byte
	Value []byte
}

// Iterator walks keys in ascending lexicographic order between a range
// Store's NewRangeIterator bound. The zero value is not usable; it must
// be obtained from NewRangeIterator. An Iterator that has returned false
// from Next must still have Close called on it.
type Iterator interface {
	// Next advances to the next key/value pair, reporting whether one
	// was found. It must be called once before the first Key/Value
	// access.
	Next() bool

	// Key returns the current key. The returned slice must not be
	// retained past the next call to Next.
	Key() []byte

	// Value returns the current value. The returned slice must not be
	// retained past the next call to Next.
	Value() []byte

	// Close releases resources held by the iterator.
	Close() error
}

// Store is the flat key/value contract every stateful package in this
// module persists through.
type Store interface {
	// Get fetches the value stored under key. It returns ErrNotFound
	// if key is absent.
	Get(key []byte) ([]byte, error)

	// Put sets key to value, creating or overwriting it.
	Put(key, value []byte) error

	// Delete removes key. It is not an error for key to already be
	// absent.
	Delete(key []byte) error

	// Batch applies every op atomically: either all of them are
	// visible to a subsequent Get/NewRangeIterator, or none are.
	Batch(ops []Op) error

	// NewRangeIterator returns an Iterator over every key k such that
	// gte <= k <= lte in lexicographic byte order. A nil gte starts
	// from the smallest key; a nil lte runs to the largest key.
	NewRangeIterator(gte, lte []byte) Iterator
}
