package ixkv

// Map is a typed primary store over one namespace. The scan methods come
// from the embedded whole-namespace Prefix.
type Map[K, V any] struct {
	Prefix[K, V]
}

func NewMap[K, V any](namespace string, keys Key[K], codec Codec[V]) *Map[K, V] {
	return &Map[K, V]{newPrefix(namespace, encodeNamespace(namespace), keys, codec)}
}

// Key returns the key codec of the map.
func (m *Map[K, V]) Key() Key[K] {
	return m.keys
}

func (m *Map[K, V]) Codec() Codec[V] {
	return m.codec
}

// RawKey returns the full storage key of k.
func (m *Map[K, V]) RawKey(k K) []byte {
	return appendJoined(cloneBytes(m.base), m.keys.Segments(k))
}

func (m *Map[K, V]) Has(store Storage, k K) (bool, error) {
	_, found, err := store.Read(m.RawKey(k))
	return found, err
}

// MayLoad returns the value under k; an absent key is not an error.
func (m *Map[K, V]) MayLoad(store Storage, k K) (V, bool, error) {
	var zero V
	raw := m.RawKey(k)
	data, found, err := store.Read(raw)
	if err != nil || !found {
		return zero, false, err
	}
	v, err := m.codec.Decode(data)
	if err != nil {
		return zero, false, keyErrf(m.namespace, "", raw, err, "")
	}
	return v, true, nil
}

// Load is MayLoad that fails with ErrNotFound when k is absent.
func (m *Map[K, V]) Load(store Storage, k K) (V, error) {
	v, found, err := m.MayLoad(store, k)
	if err != nil {
		return v, err
	}
	if !found {
		return v, keyErrf(m.namespace, "", m.RawKey(k), ErrNotFound, "")
	}
	return v, nil
}

func (m *Map[K, V]) Save(store Storage, k K, v V) error {
	raw := m.RawKey(k)
	data, err := m.codec.Encode(v)
	if err != nil {
		return keyErrf(m.namespace, "", raw, err, "")
	}
	return store.Write(raw, data)
}

// Remove deletes k. Removing an absent key does nothing.
func (m *Map[K, V]) Remove(store Storage, k K) error {
	return store.Remove(m.RawKey(k))
}

// Update replaces the value under k with whatever fn returns for the old one
// (nil when absent). Returning nil removes the key. An error from fn is
// returned as is and nothing is written.
func (m *Map[K, V]) Update(store Storage, k K, fn func(old *V) (*V, error)) (*V, error) {
	old, found, err := m.MayLoad(store, k)
	if err != nil {
		return nil, err
	}
	var oldPtr *V
	if found {
		oldPtr = &old
	}
	updated, err := fn(oldPtr)
	if err != nil {
		return nil, err
	}
	if updated == nil {
		return nil, m.Remove(store, k)
	}
	if err := m.Save(store, k, *updated); err != nil {
		return nil, err
	}
	return updated, nil
}

// MapPrefix returns the records of m whose key starts with a.
func MapPrefix[A, B, V any](m *Map[Pair[A, B], V], a A) Prefix[B, V] {
	return Append(m.Prefix, a)
}

// MapSubPrefix returns the records of a map keyed by a triple whose first
// two elements are a and b.
func MapSubPrefix[A, B, C, V any](m *Map[Pair[A, Pair[B, C]], V], a A, b B) Prefix[C, V] {
	return Append(Append(m.Prefix, a), b)
}
