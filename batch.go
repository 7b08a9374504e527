package ixkv

import (
	"bytes"
	"iter"
	"slices"
	"sort"
)

// Op is a pending mutation of a single key: either an insert of Value or a
// deletion.
type Op struct {
	Value   []byte
	Deleted bool
}

func Insert(value []byte) Op {
	return Op{Value: value}
}

func Delete() Op {
	return Op{Deleted: true}
}

// Option returns the value the op leaves behind, if any.
func (op Op) Option() ([]byte, bool) {
	if op.Deleted {
		return nil, false
	}
	return op.Value, true
}

func (op Op) String() string {
	if op.Deleted {
		return "delete"
	}
	return "insert(" + hexstr(op.Value) + ")"
}

// Batch is a set of pending ops ordered by key. A later op on the same key
// replaces the earlier one.
type Batch struct {
	items sortedItems[Op]
}

func NewBatch() *Batch {
	return &Batch{}
}

func (b *Batch) Insert(key, value []byte) {
	b.items.put(key, Insert(cloneBytes(value)))
}

func (b *Batch) Delete(key []byte) {
	b.items.put(key, Delete())
}

func (b *Batch) Get(key []byte) (Op, bool) {
	return b.items.get(key)
}

func (b *Batch) Len() int {
	return len(b.items)
}

// All yields ops in ascending key order.
func (b *Batch) All() iter.Seq2[[]byte, Op] {
	return func(yield func([]byte, Op) bool) {
		for _, it := range b.items {
			if !yield(it.key, it.value) {
				return
			}
		}
	}
}

func (b *Batch) Reset() {
	b.items = b.items[:0]
}

// sortedItems is a slice kept sorted by key; the in-memory storage and
// batches share it.
type sortedItems[V any] []sortedItem[V]

type sortedItem[V any] struct {
	key   []byte
	value V
}

func (s sortedItems[V]) find(key []byte) (int, bool) {
	i := sort.Search(len(s), func(i int) bool {
		return bytes.Compare(s[i].key, key) >= 0
	})
	if i < len(s) && bytes.Equal(s[i].key, key) {
		return i, true
	}
	return i, false
}

func (s sortedItems[V]) get(key []byte) (V, bool) {
	i, ok := s.find(key)
	if !ok {
		var zero V
		return zero, false
	}
	return s[i].value, true
}

func (s *sortedItems[V]) put(key []byte, value V) {
	i, ok := s.find(key)
	if ok {
		(*s)[i].value = value
		return
	}
	*s = slices.Insert(*s, i, sortedItem[V]{key: cloneBytes(key), value: value})
}

func (s *sortedItems[V]) remove(key []byte) {
	i, ok := s.find(key)
	if !ok {
		return
	}
	*s = slices.Delete(*s, i, i+1)
}

// bounds returns the half-open index range [lo, hi) covering [min, max).
func (s sortedItems[V]) bounds(min, max []byte) (int, int) {
	lo := 0
	if min != nil {
		lo, _ = s.find(min)
	}
	hi := len(s)
	if max != nil {
		hi, _ = s.find(max)
	}
	if lo > hi {
		lo = hi
	}
	return lo, hi
}

func (s sortedItems[V]) clone() sortedItems[V] {
	return slices.Clone(s)
}
