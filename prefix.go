package ixkv

import (
	"bytes"
	"context"
	"iter"
	"log/slog"
)

const (
	debugLogRawScans = false
)

// scanRecords runs a raw scan and yields owned copies of every record. A
// storage error is yielded once, after the records that preceded it.
func scanRecords(store Storage, min, max []byte, order Order) iter.Seq2[Record, error] {
	return func(yield func(Record, error) bool) {
		if InvertedRange(min, max) {
			if debugLogRawScans {
				slog.Default().LogAttrs(context.Background(), slog.LevelDebug, "SCAN inverted", hexAttr("min", min), hexAttr("max", max))
			}
			return
		}
		if debugLogRawScans {
			slog.Default().LogAttrs(context.Background(), slog.LevelDebug, "SCAN", hexAttr("min", min), hexAttr("max", max), slog.String("order", order.String()))
		}
		it := store.Scan(min, max, order)
		closed := false
		defer func() {
			if !closed {
				it.Close()
			}
		}()
		for it.Next() {
			k, v := it.Key(), it.Value()
			if debugLogRawScans {
				slog.Default().LogAttrs(context.Background(), slog.LevelDebug, "found", hexAttr("key", k), hexAttr("val", v))
			}
			if !yield(Record{Key: cloneBytes(k), Value: cloneBytes(nonNilBytes(v))}, nil) {
				return
			}
		}
		err := it.Err()
		closed = true
		if cerr := it.Close(); err == nil {
			err = cerr
		}
		if err != nil {
			yield(Record{}, err)
		}
	}
}

// isRangeEmpty reports whether [min, max) holds no records.
func isRangeEmpty(store Storage, min, max []byte) (bool, error) {
	for _, err := range scanRecords(store, min, max, Ascending) {
		if err != nil {
			return false, err
		}
		return false, nil
	}
	return true, nil
}

// clearRange removes every record in [min, max). Keys are collected first,
// since not every backend tolerates writes under an open iterator.
func clearRange(store Storage, min, max []byte) error {
	var keys [][]byte
	for rec, err := range scanRecords(store, min, max, Ascending) {
		if err != nil {
			return err
		}
		keys = append(keys, rec.Key)
	}
	for _, k := range keys {
		if err := store.Remove(k); err != nil {
			return err
		}
	}
	return nil
}

// Prefix is a view of the records of one namespace whose keys start with a
// fixed run of leading segments. K is the type of the remaining segments;
// bounds and decoded keys are expressed in it.
type Prefix[K, V any] struct {
	namespace string
	base      []byte
	keys      Key[K]
	codec     Codec[V]
}

func newPrefix[K, V any](namespace string, base []byte, keys Key[K], codec Codec[V]) Prefix[K, V] {
	return Prefix[K, V]{namespace: namespace, base: base, keys: keys, codec: codec}
}

func (p Prefix[K, V]) Namespace() string {
	return p.namespace
}

// Base returns the raw bytes every key under this prefix starts with.
func (p Prefix[K, V]) Base() []byte {
	return p.base
}

func (p Prefix[K, V]) bounds(min, max *Bound[K]) ([]byte, []byte) {
	return rawBounds(p.base, p.keys, min, max)
}

func (p Prefix[K, V]) decodeKey(rawKey []byte) (K, error) {
	if !bytes.HasPrefix(rawKey, p.base) {
		var zero K
		return zero, keyErrf(p.namespace, "", rawKey, nil, "key outside of prefix %s", hexstr(p.base))
	}
	k, err := decodeKey(p.keys, rawKey[len(p.base):])
	if err != nil {
		return k, keyErrf(p.namespace, "", rawKey, err, "")
	}
	return k, nil
}

func (p Prefix[K, V]) decodeValue(rawKey, rawValue []byte) (V, error) {
	v, err := p.codec.Decode(rawValue)
	if err != nil {
		return v, keyErrf(p.namespace, "", rawKey, err, "")
	}
	return v, nil
}

// RangeRaw yields records with the prefix stripped from their keys.
func (p Prefix[K, V]) RangeRaw(store Storage, min, max *Bound[K], order Order) iter.Seq2[Record, error] {
	lo, hi := p.bounds(min, max)
	n := len(p.base)
	return func(yield func(Record, error) bool) {
		for rec, err := range scanRecords(store, lo, hi, order) {
			if err != nil {
				yield(Record{}, err)
				return
			}
			rec.Key = rec.Key[n:]
			if !yield(rec, nil) {
				return
			}
		}
	}
}

// KeysRaw yields keys with the prefix stripped.
func (p Prefix[K, V]) KeysRaw(store Storage, min, max *Bound[K], order Order) iter.Seq2[[]byte, error] {
	return func(yield func([]byte, error) bool) {
		for rec, err := range p.RangeRaw(store, min, max, order) {
			if !yield(rec.Key, err) {
				return
			}
		}
	}
}

func (p Prefix[K, V]) ValuesRaw(store Storage, min, max *Bound[K], order Order) iter.Seq2[[]byte, error] {
	return func(yield func([]byte, error) bool) {
		for rec, err := range p.RangeRaw(store, min, max, order) {
			if !yield(rec.Value, err) {
				return
			}
		}
	}
}

// Range yields decoded key/value pairs. A record that fails to decode is
// reported as an error in its position; iteration continues if the caller
// keeps consuming.
func (p Prefix[K, V]) Range(store Storage, min, max *Bound[K], order Order) iter.Seq2[KV[K, V], error] {
	lo, hi := p.bounds(min, max)
	return func(yield func(KV[K, V], error) bool) {
		for rec, err := range scanRecords(store, lo, hi, order) {
			if err != nil {
				yield(KV[K, V]{}, err)
				return
			}
			k, err := p.decodeKey(rec.Key)
			if err != nil {
				if !yield(KV[K, V]{}, err) {
					return
				}
				continue
			}
			v, err := p.decodeValue(rec.Key, rec.Value)
			if !yield(KV[K, V]{k, v}, err) {
				return
			}
		}
	}
}

func (p Prefix[K, V]) Keys(store Storage, min, max *Bound[K], order Order) iter.Seq2[K, error] {
	lo, hi := p.bounds(min, max)
	return func(yield func(K, error) bool) {
		for rec, err := range scanRecords(store, lo, hi, order) {
			if err != nil {
				var zero K
				yield(zero, err)
				return
			}
			if !yield(p.decodeKey(rec.Key)) {
				return
			}
		}
	}
}

func (p Prefix[K, V]) Values(store Storage, min, max *Bound[K], order Order) iter.Seq2[V, error] {
	lo, hi := p.bounds(min, max)
	return func(yield func(V, error) bool) {
		for rec, err := range scanRecords(store, lo, hi, order) {
			if err != nil {
				var zero V
				yield(zero, err)
				return
			}
			if !yield(p.decodeValue(rec.Key, rec.Value)) {
				return
			}
		}
	}
}

func (p Prefix[K, V]) IsEmpty(store Storage) (bool, error) {
	lo, hi := p.bounds(nil, nil)
	return isRangeEmpty(store, lo, hi)
}

// Clear removes every record of the prefix within the bounds.
func (p Prefix[K, V]) Clear(store Storage, min, max *Bound[K]) error {
	lo, hi := p.bounds(min, max)
	return clearRange(store, lo, hi)
}

// Append narrows p by fixing the next key segment group to a.
func Append[A, B, V any](p Prefix[Pair[A, B], V], a A) Prefix[B, V] {
	ck := asComposite(p.keys)
	base := appendNested(cloneBytes(p.base), ck.First().Segments(a))
	return newPrefix(p.namespace, base, ck.Second(), p.codec)
}

// Collect drains a fallible sequence, stopping at the first error.
func Collect[T any](seq iter.Seq2[T, error]) ([]T, error) {
	var out []T
	for v, err := range seq {
		if err != nil {
			return out, err
		}
		out = append(out, v)
	}
	return out, nil
}
