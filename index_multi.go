package ixkv

import (
	"iter"
)

// multiIndex allows any number of primary keys per index key. The record
// key is the joined segments of the index key followed by the primary key,
// so every record is unique even when index keys repeat.
type multiIndex[PK, IK, T any] struct {
	indexBase[PK, T]
	iks      Key[IK]
	extract  func(PK, T) IK
	withData bool
}

func (m *multiIndex[PK, IK, T]) fullKey() Key[Pair[IK, PK]] {
	return PairKey(m.iks, m.ref().keys)
}

func (m *multiIndex[PK, IK, T]) rawKey(ik IK, pk PK) []byte {
	return appendJoined(cloneBytes(m.base), m.fullKey().Segments(Pair[IK, PK]{ik, pk}))
}

func (m *multiIndex[PK, IK, T]) Save(store Storage, pk PK, data T) error {
	raw := m.rawKey(m.extract(pk, data), pk)
	var value []byte
	if m.withData {
		value = encodeKey(m.ref().keys, pk)
	} else {
		value = []byte{}
	}
	return store.Write(raw, value)
}

func (m *multiIndex[PK, IK, T]) Remove(store Storage, pk PK, old T) error {
	return store.Remove(m.rawKey(m.extract(pk, old), pk))
}

func (m *multiIndex[PK, IK, T]) decodeEntry(raw []byte) (Pair[IK, PK], error) {
	p, err := decodeKey(m.fullKey(), raw[len(m.base):])
	if err != nil {
		return p, m.keyErr(raw, err, "")
	}
	return p, nil
}

func (m *multiIndex[PK, IK, T]) bounds(min, max *Bound[Pair[IK, PK]]) ([]byte, []byte) {
	return rawBounds(m.base, m.fullKey(), min, max)
}

func (m *multiIndex[PK, IK, T]) IsEmpty(store Storage) (bool, error) {
	return isRangeEmpty(store, m.base, prefixEnd(m.base))
}

// Keys yields (index key, primary key) pairs in the range.
func (m *multiIndex[PK, IK, T]) Keys(store Storage, min, max *Bound[Pair[IK, PK]], order Order) iter.Seq2[Pair[IK, PK], error] {
	lo, hi := m.bounds(min, max)
	return func(yield func(Pair[IK, PK], error) bool) {
		for rec, err := range scanRecords(store, lo, hi, order) {
			if err != nil {
				yield(Pair[IK, PK]{}, err)
				return
			}
			if !yield(m.decodeEntry(rec.Key)) {
				return
			}
		}
	}
}

// loadPrimary reads the data of a primary key from the owning collection.
func (m *multiIndex[PK, IK, T]) loadPrimary(store Storage, pkRaw []byte) (T, error) {
	var zero T
	ref := m.ref()
	raw := concat(ref.base, pkRaw)
	value, found, err := store.Read(raw)
	if err != nil {
		return zero, err
	}
	if !found {
		return zero, keyErrf(ref.namespace, "", raw, ErrNotFound, "indexed by %s", m.namespace)
	}
	v, err := ref.codec.Decode(value)
	if err != nil {
		return zero, keyErrf(ref.namespace, "", raw, err, "")
	}
	return v, nil
}

func (m *multiIndex[PK, IK, T]) prefix(ik IK) []byte {
	return appendNested(cloneBytes(m.base), m.iks.Segments(ik))
}

// MultiIndexMap is a multi index whose queries return the primary data,
// read from the primary namespace.
type MultiIndexMap[PK, IK, T any] struct {
	multiIndex[PK, IK, T]
}

var _ Index[string, int] = (*MultiIndexMap[string, string, int])(nil)

func NewMultiIndexMap[PK, IK, T any](namespace string, keys Key[IK], extract func(PK, T) IK) *MultiIndexMap[PK, IK, T] {
	return &MultiIndexMap[PK, IK, T]{multiIndex[PK, IK, T]{
		indexBase: newIndexBase[PK, T](namespace),
		iks:       keys,
		extract:   extract,
		withData:  true,
	}}
}

// Range yields every entry in the range together with its primary data.
func (m *MultiIndexMap[PK, IK, T]) Range(store Storage, min, max *Bound[Pair[IK, PK]], order Order) iter.Seq2[IndexEntry[IK, PK, T], error] {
	lo, hi := m.bounds(min, max)
	return func(yield func(IndexEntry[IK, PK, T], error) bool) {
		for rec, err := range scanRecords(store, lo, hi, order) {
			if err != nil {
				yield(IndexEntry[IK, PK, T]{}, err)
				return
			}
			p, err := m.decodeEntry(rec.Key)
			if err != nil {
				if !yield(IndexEntry[IK, PK, T]{}, err) {
					return
				}
				continue
			}
			data, err := m.loadPrimary(store, rec.Value)
			if !yield(IndexEntry[IK, PK, T]{p.First, p.Second, data}, err) {
				return
			}
		}
	}
}

// Prefix restricts the index to entries whose index key is ik.
func (m *MultiIndexMap[PK, IK, T]) Prefix(ik IK) IndexPrefix[PK, PK, T] {
	return IndexPrefix[PK, PK, T]{
		namespace: m.namespace,
		base:      m.prefix(ik),
		root:      len(m.base),
		width:     m.fullKey().Width(),
		suffix:    m.ref().keys,
		pks:       m.ref().keys,
		load:      m.loadPrimary,
	}
}

// MultiIndexSet is a multi index that only records primary keys.
type MultiIndexSet[PK, IK, T any] struct {
	multiIndex[PK, IK, T]
}

var _ Index[string, int] = (*MultiIndexSet[string, string, int])(nil)

func NewMultiIndexSet[PK, IK, T any](namespace string, keys Key[IK], extract func(PK, T) IK) *MultiIndexSet[PK, IK, T] {
	return &MultiIndexSet[PK, IK, T]{multiIndex[PK, IK, T]{
		indexBase: newIndexBase[PK, T](namespace),
		iks:       keys,
		extract:   extract,
	}}
}

// Range yields (index key, primary key) pairs in the range.
func (m *MultiIndexSet[PK, IK, T]) Range(store Storage, min, max *Bound[Pair[IK, PK]], order Order) iter.Seq2[KV[IK, PK], error] {
	return func(yield func(KV[IK, PK], error) bool) {
		for p, err := range m.Keys(store, min, max, order) {
			if !yield(KV[IK, PK]{p.First, p.Second}, err) {
				return
			}
		}
	}
}

func (m *MultiIndexSet[PK, IK, T]) Prefix(ik IK) IndexPrefix[PK, PK, Empty] {
	return IndexPrefix[PK, PK, Empty]{
		namespace: m.namespace,
		base:      m.prefix(ik),
		root:      len(m.base),
		width:     m.fullKey().Width(),
		suffix:    m.ref().keys,
		pks:       m.ref().keys,
		load:      loadNothing,
	}
}

func loadNothing(Storage, []byte) (Empty, error) {
	return Empty{}, nil
}

// SubPrefix restricts a multi index over a composite index key to entries
// whose index key starts with a. Bounds then cover the rest of the index
// key followed by the primary key.
func SubPrefix[PK, A, B, T any](m *MultiIndexMap[PK, Pair[A, B], T], a A) IndexPrefix[Pair[B, PK], PK, T] {
	ck := asComposite(m.iks)
	return IndexPrefix[Pair[B, PK], PK, T]{
		namespace: m.namespace,
		base:      appendNested(cloneBytes(m.base), ck.First().Segments(a)),
		root:      len(m.base),
		width:     m.fullKey().Width(),
		suffix:    PairKey(ck.Second(), m.ref().keys),
		pks:       m.ref().keys,
		load:      m.loadPrimary,
	}
}

// SetSubPrefix is SubPrefix for a MultiIndexSet.
func SetSubPrefix[PK, A, B, T any](m *MultiIndexSet[PK, Pair[A, B], T], a A) IndexPrefix[Pair[B, PK], PK, Empty] {
	ck := asComposite(m.iks)
	return IndexPrefix[Pair[B, PK], PK, Empty]{
		namespace: m.namespace,
		base:      appendNested(cloneBytes(m.base), ck.First().Segments(a)),
		root:      len(m.base),
		width:     m.fullKey().Width(),
		suffix:    PairKey(ck.Second(), m.ref().keys),
		pks:       m.ref().keys,
		load:      loadNothing,
	}
}

// IndexPrefix is a narrowed view of a multi index. S is the type of the key
// segments left after the prefix; it ends with the primary key, or with
// its trailing part once AppendIndex has fixed some of it.
type IndexPrefix[S, PK, V any] struct {
	namespace string
	base      []byte
	root      int // length of the index namespace prefix
	width     int // segments in a whole index record key
	suffix    Key[S]
	pks       Key[PK]
	load      func(store Storage, pkRaw []byte) (V, error)
}

// AppendIndex narrows p by fixing the next segment group to a.
func AppendIndex[A, B, PK, V any](p IndexPrefix[Pair[A, B], PK, V], a A) IndexPrefix[B, PK, V] {
	ck := asComposite(p.suffix)
	return IndexPrefix[B, PK, V]{
		namespace: p.namespace,
		base:      appendNested(cloneBytes(p.base), ck.First().Segments(a)),
		root:      p.root,
		width:     p.width,
		suffix:    ck.Second(),
		pks:       p.pks,
		load:      p.load,
	}
}

// primaryKey extracts the trailing primary key segments of a record key.
// The whole record key is split, since the prefix may already cover some
// of the primary key.
func (p IndexPrefix[S, PK, V]) primaryKey(raw []byte) (PK, []byte, error) {
	var zero PK
	segs, err := splitSegments(raw[p.root:], p.width)
	if err != nil {
		return zero, nil, keyErrf("", p.namespace, raw, err, "")
	}
	pkSegs := segs[len(segs)-p.pks.Width():]
	pk, err := p.pks.Decode(pkSegs)
	if err != nil {
		return zero, nil, keyErrf("", p.namespace, raw, err, "")
	}
	return pk, joinSegments(pkSegs), nil
}

func (p IndexPrefix[S, PK, V]) Keys(store Storage, min, max *Bound[S], order Order) iter.Seq2[PK, error] {
	lo, hi := rawBounds(p.base, p.suffix, min, max)
	return func(yield func(PK, error) bool) {
		for rec, err := range scanRecords(store, lo, hi, order) {
			if err != nil {
				var zero PK
				yield(zero, err)
				return
			}
			pk, _, err := p.primaryKey(rec.Key)
			if !yield(pk, err) {
				return
			}
		}
	}
}

// Range yields primary keys with their data.
func (p IndexPrefix[S, PK, V]) Range(store Storage, min, max *Bound[S], order Order) iter.Seq2[KV[PK, V], error] {
	lo, hi := rawBounds(p.base, p.suffix, min, max)
	return func(yield func(KV[PK, V], error) bool) {
		for rec, err := range scanRecords(store, lo, hi, order) {
			if err != nil {
				yield(KV[PK, V]{}, err)
				return
			}
			pk, pkRaw, err := p.primaryKey(rec.Key)
			if err != nil {
				if !yield(KV[PK, V]{}, err) {
					return
				}
				continue
			}
			v, err := p.load(store, pkRaw)
			if !yield(KV[PK, V]{pk, v}, err) {
				return
			}
		}
	}
}

func (p IndexPrefix[S, PK, V]) Values(store Storage, min, max *Bound[S], order Order) iter.Seq2[V, error] {
	return func(yield func(V, error) bool) {
		for kv, err := range p.Range(store, min, max, order) {
			if !yield(kv.Value, err) {
				return
			}
		}
	}
}

func (p IndexPrefix[S, PK, V]) IsEmpty(store Storage) (bool, error) {
	return isRangeEmpty(store, p.base, prefixEnd(p.base))
}
