package ixkv

import (
	"bytes"
)

// Buffer is a Storage that stages writes in a Batch on top of a base
// Storage. Reads and scans see the staged writes merged over the base.
// Commit flushes the batch to the base, Discard drops it.
//
// Buffer is how a caller makes a multi-step write (such as an IndexedMap
// save touching several indexes) all-or-nothing: run it against a Buffer
// and only Commit when every step succeeded.
type Buffer struct {
	base    Storage
	pending *Batch
}

var _ Storage = (*Buffer)(nil)

func NewBuffer(base Storage) *Buffer {
	return &Buffer{base: base, pending: NewBatch()}
}

func (b *Buffer) Base() Storage {
	return b.base
}

// Pending returns the staged batch. It must not be modified.
func (b *Buffer) Pending() *Batch {
	return b.pending
}

func (b *Buffer) Read(key []byte) ([]byte, bool, error) {
	if op, ok := b.pending.Get(key); ok {
		v, found := op.Option()
		return cloneBytes(v), found, nil
	}
	return b.base.Read(key)
}

func (b *Buffer) Write(key, value []byte) error {
	b.pending.Insert(key, nonNilBytes(value))
	return nil
}

func (b *Buffer) Remove(key []byte) error {
	b.pending.Delete(key)
	return nil
}

func (b *Buffer) Scan(min, max []byte, order Order) Iterator {
	if InvertedRange(min, max) {
		return EmptyIterator()
	}
	lo, hi := b.pending.items.bounds(min, max)
	return &mergedIterator{
		base:    b.base.Scan(min, max, order),
		pending: b.pending.items[lo:hi].clone(),
		reverse: order.reversed(),
		pos:     -1,
	}
}

// Commit applies the staged ops to the base storage and empties the buffer.
// On error the buffer keeps its ops, so the caller can retry or Discard.
func (b *Buffer) Commit() error {
	if b.pending.Len() == 0 {
		return nil
	}
	if err := ApplyBatch(b.base, b.pending); err != nil {
		return err
	}
	b.pending = NewBatch()
	return nil
}

func (b *Buffer) Discard() {
	b.pending = NewBatch()
}

// mergedIterator yields base records overlaid with pending ops, in order.
type mergedIterator struct {
	base    Iterator
	pending sortedItems[Op]
	reverse bool
	pos     int

	baseValid bool
	baseMoved bool
	started   bool

	k, v []byte
	err  error
}

func (it *mergedIterator) pendingAt() (sortedItem[Op], bool) {
	if it.pos < 0 || it.pos >= len(it.pending) {
		return sortedItem[Op]{}, false
	}
	return it.pending[it.pos], true
}

func (it *mergedIterator) advancePending() {
	if it.reverse {
		it.pos--
	} else {
		it.pos++
	}
}

func (it *mergedIterator) advanceBase() {
	it.baseValid = it.base.Next()
	if !it.baseValid {
		if err := it.base.Err(); err != nil {
			it.err = err
		}
	}
}

// before reports whether key a comes before key b in scan order.
func (it *mergedIterator) before(a, b []byte) bool {
	c := bytes.Compare(a, b)
	if it.reverse {
		return c > 0
	}
	return c < 0
}

func (it *mergedIterator) Next() bool {
	if it.err != nil {
		return false
	}
	if !it.started {
		it.started = true
		if it.reverse {
			it.pos = len(it.pending) - 1
		} else {
			it.pos = 0
		}
		it.advanceBase()
	}
	for {
		if it.err != nil {
			return false
		}
		p, hasPending := it.pendingAt()
		switch {
		case !it.baseValid && !hasPending:
			it.k, it.v = nil, nil
			return false

		case hasPending && (!it.baseValid || !it.before(it.base.Key(), p.key)):
			// pending op wins over a base record with the same key
			if it.baseValid && bytes.Equal(it.base.Key(), p.key) {
				it.advanceBase()
			}
			it.advancePending()
			if p.value.Deleted {
				continue
			}
			it.k, it.v = p.key, p.value.Value
			return true

		default:
			it.k, it.v = cloneBytes(it.base.Key()), cloneBytes(it.base.Value())
			it.advanceBase()
			return true
		}
	}
}

func (it *mergedIterator) Key() []byte   { return it.k }
func (it *mergedIterator) Value() []byte { return it.v }

func (it *mergedIterator) Err() error {
	return it.err
}

func (it *mergedIterator) Close() error {
	it.pending = nil
	return it.base.Close()
}
