package ixkv

import "iter"

// indexedCore keeps a primary map and an index bundle consistent. Every
// mutation goes through replace.
type indexedCore[K, T any, I IndexList[K, T]] struct {
	primary *Map[K, T]
	idx     I
}

func newIndexedCore[K, T any, I IndexList[K, T]](namespace string, keys Key[K], codec Codec[T], idx I) indexedCore[K, T, I] {
	primary := NewMap(namespace, keys, codec)
	attachIndexes[K, T](idx, &primaryRef[K, T]{
		namespace: namespace,
		base:      primary.base,
		keys:      keys,
		codec:     codec,
	})
	return indexedCore[K, T, I]{primary: primary, idx: idx}
}

// replace moves pk from old to data (nil data removes it):
//
//  1. every IndexChecker approves data, otherwise nothing is written;
//  2. index records of old are removed;
//  3. index records of data are saved; a failure here stops before the
//     primary record is touched;
//  4. the primary record is written or removed.
func (c *indexedCore[K, T, I]) replace(store Storage, pk K, data *T, old *T) error {
	indexes := c.idx.Indexes()
	if data != nil {
		for _, idx := range indexes {
			if checker, ok := idx.(IndexChecker[K, T]); ok {
				if err := checker.Check(store, pk, *data); err != nil {
					return err
				}
			}
		}
	}
	if old != nil {
		for _, idx := range indexes {
			if err := idx.Remove(store, pk, *old); err != nil {
				return err
			}
		}
	}
	if data == nil {
		return c.primary.Remove(store, pk)
	}
	for _, idx := range indexes {
		if err := idx.Save(store, pk, *data); err != nil {
			return err
		}
	}
	return c.primary.Save(store, pk, *data)
}

func (c *indexedCore[K, T, I]) mayLoadPtr(store Storage, pk K) (*T, error) {
	old, found, err := c.primary.MayLoad(store, pk)
	if err != nil || !found {
		return nil, err
	}
	return &old, nil
}

func (c *indexedCore[K, T, I]) save(store Storage, pk K, data T) error {
	old, err := c.mayLoadPtr(store, pk)
	if err != nil {
		return err
	}
	return c.replace(store, pk, &data, old)
}

func (c *indexedCore[K, T, I]) remove(store Storage, pk K) error {
	old, err := c.mayLoadPtr(store, pk)
	if err != nil || old == nil {
		return err
	}
	return c.replace(store, pk, nil, old)
}

func (c *indexedCore[K, T, I]) update(store Storage, pk K, fn func(old *T) (*T, error)) (*T, error) {
	old, err := c.mayLoadPtr(store, pk)
	if err != nil {
		return nil, err
	}
	var arg *T
	if old != nil {
		cp := *old
		arg = &cp
	}
	updated, err := fn(arg)
	if err != nil {
		return nil, err
	}
	if updated == nil && old == nil {
		return nil, nil
	}
	if err := c.replace(store, pk, updated, old); err != nil {
		return nil, err
	}
	return updated, nil
}

// clear removes the primary records in the range along with their index
// records.
func (c *indexedCore[K, T, I]) clear(store Storage, min, max *Bound[K]) error {
	var victims []KV[K, T]
	for kv, err := range c.primary.Range(store, min, max, Ascending) {
		if err != nil {
			return err
		}
		victims = append(victims, kv)
	}
	for _, kv := range victims {
		if err := c.replace(store, kv.Key, nil, &kv.Value); err != nil {
			return err
		}
	}
	return nil
}

// IndexedMap is a primary Map with a bundle of secondary indexes that are
// updated along with it.
type IndexedMap[K, T any, I IndexList[K, T]] struct {
	core indexedCore[K, T, I]

	// Idx is the index bundle, for typed index queries like
	// m.Idx.Owner.Prefix(owner).
	Idx I
}

// NewIndexedMap builds an indexed map and attaches the bundled indexes to
// it. An index can belong to only one collection.
func NewIndexedMap[K, T any, I IndexList[K, T]](namespace string, keys Key[K], codec Codec[T], idx I) *IndexedMap[K, T, I] {
	return &IndexedMap[K, T, I]{core: newIndexedCore(namespace, keys, codec, idx), Idx: idx}
}

// Primary returns the underlying map. Writing to it directly bypasses the
// indexes.
func (m *IndexedMap[K, T, I]) Primary() *Map[K, T] {
	return m.core.primary
}

func (m *IndexedMap[K, T, I]) Namespace() string {
	return m.core.primary.namespace
}

// Save stores data under pk and reindexes it. On ErrDuplicateIndexValue
// the store is left unchanged.
func (m *IndexedMap[K, T, I]) Save(store Storage, pk K, data T) error {
	return m.core.save(store, pk, data)
}

func (m *IndexedMap[K, T, I]) Remove(store Storage, pk K) error {
	return m.core.remove(store, pk)
}

// Update stores whatever fn returns for the current data (nil if absent);
// returning nil removes pk. Errors from fn are returned unchanged, with
// nothing written.
func (m *IndexedMap[K, T, I]) Update(store Storage, pk K, fn func(old *T) (*T, error)) (*T, error) {
	return m.core.update(store, pk, fn)
}

// Clear removes the records in the range and their index records.
func (m *IndexedMap[K, T, I]) Clear(store Storage, min, max *Bound[K]) error {
	return m.core.clear(store, min, max)
}

func (m *IndexedMap[K, T, I]) Has(store Storage, pk K) (bool, error) {
	return m.core.primary.Has(store, pk)
}

func (m *IndexedMap[K, T, I]) MayLoad(store Storage, pk K) (T, bool, error) {
	return m.core.primary.MayLoad(store, pk)
}

func (m *IndexedMap[K, T, I]) Load(store Storage, pk K) (T, error) {
	return m.core.primary.Load(store, pk)
}

func (m *IndexedMap[K, T, I]) IsEmpty(store Storage) (bool, error) {
	return m.core.primary.IsEmpty(store)
}

func (m *IndexedMap[K, T, I]) Range(store Storage, min, max *Bound[K], order Order) iter.Seq2[KV[K, T], error] {
	return m.core.primary.Range(store, min, max, order)
}

func (m *IndexedMap[K, T, I]) Keys(store Storage, min, max *Bound[K], order Order) iter.Seq2[K, error] {
	return m.core.primary.Keys(store, min, max, order)
}

func (m *IndexedMap[K, T, I]) Values(store Storage, min, max *Bound[K], order Order) iter.Seq2[T, error] {
	return m.core.primary.Values(store, min, max, order)
}

func (m *IndexedMap[K, T, I]) RangeRaw(store Storage, min, max *Bound[K], order Order) iter.Seq2[Record, error] {
	return m.core.primary.RangeRaw(store, min, max, order)
}

// IndexedSet is an indexed collection that exposes keys only. The data is
// still persisted in the primary namespace, since removing a key needs it
// to find the index records to drop.
type IndexedSet[K, T any, I IndexList[K, T]] struct {
	core indexedCore[K, T, I]

	Idx I
}

func NewIndexedSet[K, T any, I IndexList[K, T]](namespace string, keys Key[K], codec Codec[T], idx I) *IndexedSet[K, T, I] {
	return &IndexedSet[K, T, I]{core: newIndexedCore(namespace, keys, codec, idx), Idx: idx}
}

func (s *IndexedSet[K, T, I]) Namespace() string {
	return s.core.primary.namespace
}

func (s *IndexedSet[K, T, I]) Save(store Storage, pk K, data T) error {
	return s.core.save(store, pk, data)
}

func (s *IndexedSet[K, T, I]) Remove(store Storage, pk K) error {
	return s.core.remove(store, pk)
}

func (s *IndexedSet[K, T, I]) Update(store Storage, pk K, fn func(old *T) (*T, error)) (*T, error) {
	return s.core.update(store, pk, fn)
}

func (s *IndexedSet[K, T, I]) Clear(store Storage, min, max *Bound[K]) error {
	return s.core.clear(store, min, max)
}

func (s *IndexedSet[K, T, I]) Has(store Storage, pk K) (bool, error) {
	return s.core.primary.Has(store, pk)
}

func (s *IndexedSet[K, T, I]) IsEmpty(store Storage) (bool, error) {
	return s.core.primary.IsEmpty(store)
}

// Range yields the keys of the set.
func (s *IndexedSet[K, T, I]) Range(store Storage, min, max *Bound[K], order Order) iter.Seq2[K, error] {
	return s.core.primary.Keys(store, min, max, order)
}

func (s *IndexedSet[K, T, I]) RangeRaw(store Storage, min, max *Bound[K], order Order) iter.Seq2[[]byte, error] {
	return s.core.primary.KeysRaw(store, min, max, order)
}
