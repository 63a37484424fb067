// Package memstore is an in-memory kvstore.Store used by tests across
// the module, grounded on the same
// small-surface, mutex-guarded style shachain.RevocationStore uses for
// its own in-memory bookkeeping.
package memstore

import (
	"sort"
	"sync"

	"github.com/ilodi/hoprnet/kvstore"
)

// Store is a sorted, mutex-guarded, in-memory kvstore.Store.
type Store struct {
	mu   sync.RWMutex
	data map[string][]byte
}

// A compile time check to ensure Store implements the kvstore.Store
// interface.
var _ kvstore.Store = (*Store)(nil)

// New returns an empty Store.
func New() *Store {
	return &Store{data: make(map[string][]byte)}
}

// Get implements kvstore.Store.
func (s *Store) Get(key []byte) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	v, ok := s.data[string(key)]
	if !ok {
		return nil, kvstore.ErrNotFound
	}

	out := make([]byte, len(v))
	copy(out, v)
	return out, nil
}

// Put implements kvstore.Store.
func (s *Store) Put(key, value []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.put(key, value)
	return nil
}

func (s *Store) put(key, value []byte) {
	v := make([]byte, len(value))
	copy(v, value)
	s.data[string(key)] = v
}

// Delete implements kvstore.Store.
func (s *Store) Delete(key []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.data, string(key))
	return nil
}

// Batch implements kvstore.Store.
func (s *Store) Batch(ops []kvstore.Op) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, op := range ops {
		if op.Value == nil {
			delete(s.data, string(op.Key))
			continue
		}
		s.put(op.Key, op.Value)
	}
	return nil
}

// NewRangeIterator implements kvstore.Store.
func (s *Store) NewRangeIterator(gte, lte []byte) kvstore.Iterator {
	s.mu.RLock()
	defer s.mu.RUnlock()

	keys := make([]string, 0, len(s.data))
	for k := range s.data {
		if gte != nil && k < string(gte) {
			continue
		}
		if lte != nil && k > string(lte) {
			continue
		}
		keys = append(keys, k)
	}
	sort.Strings(keys)

	values := make([][]byte, len(keys))
	for i, k := range keys {
		values[i] = s.data[k]
	}

	return &iterator{keys: keys, values: values, pos: -1}
}

type iterator struct {
	keys   []string
	values [][]byte
	pos    int
}

func (it *iterator) Next() bool {
	it.pos++
	return it.pos < len(it.keys)
}

func (it *iterator) Key() []byte {
	return []byte(it.keys[it.pos])
}

func (it *iterator) Value() []byte {
	return it.values[it.pos]
}

func (it *iterator) Close() error { return nil }
