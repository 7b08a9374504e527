package ixkv

import (
	"sync"
)

// MemStorage is a transient in-memory Storage. Scans see a snapshot taken
// when Scan is called; writes made while an iterator is open copy the
// underlying slice instead of disturbing it.
type MemStorage struct {
	mu     sync.RWMutex
	items  sortedItems[[]byte]
	shared bool
}

var _ Storage = (*MemStorage)(nil)
var _ BatchWriter = (*MemStorage)(nil)

func NewMemStorage() *MemStorage {
	return &MemStorage{}
}

func (s *MemStorage) Read(key []byte) ([]byte, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.items.get(key)
	if !ok {
		return nil, false, nil
	}
	return cloneBytes(v), true, nil
}

func (s *MemStorage) Write(key, value []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.prepareToWrite_locked()
	s.items.put(key, nonNilBytes(cloneBytes(value)))
	return nil
}

func (s *MemStorage) Remove(key []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.prepareToWrite_locked()
	s.items.remove(key)
	return nil
}

func (s *MemStorage) WriteBatch(b *Batch) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.prepareToWrite_locked()
	for k, op := range b.All() {
		if op.Deleted {
			s.items.remove(k)
		} else {
			s.items.put(k, nonNilBytes(cloneBytes(op.Value)))
		}
	}
	return nil
}

func (s *MemStorage) Scan(min, max []byte, order Order) Iterator {
	if InvertedRange(min, max) {
		return EmptyIterator()
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	lo, hi := s.items.bounds(min, max)
	s.shared = true
	return &memIterator{items: s.items[lo:hi], reverse: order.reversed(), pos: -1}
}

// Len returns the number of stored records.
func (s *MemStorage) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.items)
}

// Clone returns an independent copy of the storage.
func (s *MemStorage) Clone() *MemStorage {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.shared = true
	return &MemStorage{items: s.items, shared: true}
}

func (s *MemStorage) prepareToWrite_locked() {
	if s.shared {
		s.items = s.items.clone()
		s.shared = false
	}
}

func nonNilBytes(b []byte) []byte {
	if b == nil {
		return []byte{}
	}
	return b
}

type memIterator struct {
	items   sortedItems[[]byte]
	reverse bool
	pos     int
	started bool
}

func (it *memIterator) Next() bool {
	if !it.started {
		it.started = true
		if it.reverse {
			it.pos = len(it.items) - 1
		} else {
			it.pos = 0
		}
	} else if it.reverse {
		it.pos--
	} else {
		it.pos++
	}
	return it.pos >= 0 && it.pos < len(it.items)
}

func (it *memIterator) valid() bool {
	return it.started && it.pos >= 0 && it.pos < len(it.items)
}

func (it *memIterator) Key() []byte {
	if !it.valid() {
		return nil
	}
	return it.items[it.pos].key
}

func (it *memIterator) Value() []byte {
	if !it.valid() {
		return nil
	}
	return it.items[it.pos].value
}

func (it *memIterator) Err() error { return nil }

func (it *memIterator) Close() error {
	it.items = nil
	return nil
}
