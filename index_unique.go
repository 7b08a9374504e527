package ixkv

import (
	"bytes"
	"iter"
)

// uniqueIndex maps each index key to exactly one primary key. The record
// value is varbytes(joined pk) optionally followed by the encoded data.
type uniqueIndex[PK, IK, T any] struct {
	indexBase[PK, T]
	iks      Key[IK]
	extract  func(T) IK
	withData bool
}

func (u *uniqueIndex[PK, IK, T]) rawKey(ik IK) []byte {
	return appendJoined(cloneBytes(u.base), u.iks.Segments(ik))
}

func (u *uniqueIndex[PK, IK, T]) encodeValue(pkRaw []byte, data T) ([]byte, error) {
	buf := appendVarbytes(nil, pkRaw)
	if u.withData {
		enc, err := u.ref().codec.Encode(data)
		if err != nil {
			return nil, err
		}
		buf = appendRaw(buf, enc)
	}
	return buf, nil
}

// splitValue returns the joined primary key and the encoded data.
func (u *uniqueIndex[PK, IK, T]) splitValue(raw, value []byte) ([]byte, []byte, error) {
	d := makeByteDecoder(value)
	pkRaw, err := d.VarBytes()
	if err != nil {
		return nil, nil, u.keyErr(raw, err, "")
	}
	return pkRaw, d.Rest(), nil
}

func (u *uniqueIndex[PK, IK, T]) decodePK(raw, pkRaw []byte) (PK, error) {
	pk, err := decodeKey(u.ref().keys, pkRaw)
	if err != nil {
		return pk, u.keyErr(raw, err, "")
	}
	return pk, nil
}

func (u *uniqueIndex[PK, IK, T]) decodeData(raw, enc []byte) (T, error) {
	v, err := u.ref().codec.Decode(enc)
	if err != nil {
		return v, u.keyErr(raw, err, "")
	}
	return v, nil
}

func (u *uniqueIndex[PK, IK, T]) decodeIK(raw []byte) (IK, error) {
	ik, err := decodeKey(u.iks, raw[len(u.base):])
	if err != nil {
		return ik, u.keyErr(raw, err, "")
	}
	return ik, nil
}

// Check fails with ErrDuplicateIndexValue when the index key of data is
// already taken by a different primary key.
func (u *uniqueIndex[PK, IK, T]) Check(store Storage, pk PK, data T) error {
	raw := u.rawKey(u.extract(data))
	value, found, err := store.Read(raw)
	if err != nil || !found {
		return err
	}
	existing, _, err := u.splitValue(raw, value)
	if err != nil {
		return err
	}
	if !bytes.Equal(existing, encodeKey(u.ref().keys, pk)) {
		return u.keyErr(raw, ErrDuplicateIndexValue, "")
	}
	return nil
}

func (u *uniqueIndex[PK, IK, T]) Save(store Storage, pk PK, data T) error {
	if err := u.Check(store, pk, data); err != nil {
		return err
	}
	raw := u.rawKey(u.extract(data))
	value, err := u.encodeValue(encodeKey(u.ref().keys, pk), data)
	if err != nil {
		return u.keyErr(raw, err, "")
	}
	return store.Write(raw, value)
}

func (u *uniqueIndex[PK, IK, T]) Remove(store Storage, pk PK, old T) error {
	return store.Remove(u.rawKey(u.extract(old)))
}

func (u *uniqueIndex[PK, IK, T]) read(store Storage, ik IK) ([]byte, []byte, []byte, error) {
	raw := u.rawKey(ik)
	value, found, err := store.Read(raw)
	if err != nil {
		return raw, nil, nil, err
	}
	if !found {
		return raw, nil, nil, u.keyErr(raw, ErrNotFound, "")
	}
	pkRaw, data, err := u.splitValue(raw, value)
	return raw, pkRaw, data, err
}

func (u *uniqueIndex[PK, IK, T]) Has(store Storage, ik IK) (bool, error) {
	_, found, err := store.Read(u.rawKey(ik))
	return found, err
}

// LoadKey returns the primary key owning ik.
func (u *uniqueIndex[PK, IK, T]) LoadKey(store Storage, ik IK) (PK, error) {
	raw, pkRaw, _, err := u.read(store, ik)
	if err != nil {
		var zero PK
		return zero, err
	}
	return u.decodePK(raw, pkRaw)
}

// Keys yields the index keys in the range.
func (u *uniqueIndex[PK, IK, T]) Keys(store Storage, min, max *Bound[IK], order Order) iter.Seq2[IK, error] {
	lo, hi := rawBounds(u.base, u.iks, min, max)
	return func(yield func(IK, error) bool) {
		for rec, err := range scanRecords(store, lo, hi, order) {
			if err != nil {
				var zero IK
				yield(zero, err)
				return
			}
			if !yield(u.decodeIK(rec.Key)) {
				return
			}
		}
	}
}

// scan yields decoded index keys with the still-encoded record parts. A
// record that fails to decode is passed to fn with its error, and the scan
// goes on if fn returns true.
func (u *uniqueIndex[PK, IK, T]) scan(store Storage, min, max *Bound[IK], order Order, fn func(raw []byte, ik IK, pkRaw, data []byte, err error) bool) error {
	lo, hi := rawBounds(u.base, u.iks, min, max)
	for rec, err := range scanRecords(store, lo, hi, order) {
		if err != nil {
			return err
		}
		ik, err := u.decodeIK(rec.Key)
		if err != nil {
			if !fn(rec.Key, ik, nil, nil, err) {
				return nil
			}
			continue
		}
		pkRaw, data, err := u.splitValue(rec.Key, rec.Value)
		if !fn(rec.Key, ik, pkRaw, data, err) {
			return nil
		}
	}
	return nil
}

func (u *uniqueIndex[PK, IK, T]) IsEmpty(store Storage) (bool, error) {
	return isRangeEmpty(store, u.base, prefixEnd(u.base))
}

// UniqueIndexMap is a unique index that stores a copy of the data next to
// the primary key, so lookups by index key never touch the primary records.
type UniqueIndexMap[PK, IK, T any] struct {
	uniqueIndex[PK, IK, T]
}

var _ Index[string, int] = (*UniqueIndexMap[string, string, int])(nil)
var _ IndexChecker[string, int] = (*UniqueIndexMap[string, string, int])(nil)

func NewUniqueIndexMap[PK, IK, T any](namespace string, keys Key[IK], extract func(T) IK) *UniqueIndexMap[PK, IK, T] {
	return &UniqueIndexMap[PK, IK, T]{uniqueIndex[PK, IK, T]{
		indexBase: newIndexBase[PK, T](namespace),
		iks:       keys,
		extract:   extract,
		withData:  true,
	}}
}

// Load returns the data whose index key is ik, or ErrNotFound.
func (u *UniqueIndexMap[PK, IK, T]) Load(store Storage, ik IK) (T, error) {
	raw, _, data, err := u.read(store, ik)
	if err != nil {
		var zero T
		return zero, err
	}
	return u.decodeData(raw, data)
}

func (u *UniqueIndexMap[PK, IK, T]) Range(store Storage, min, max *Bound[IK], order Order) iter.Seq2[KV[IK, T], error] {
	return func(yield func(KV[IK, T], error) bool) {
		err := u.scan(store, min, max, order, func(raw []byte, ik IK, _, enc []byte, err error) bool {
			if err != nil {
				return yield(KV[IK, T]{}, err)
			}
			data, err := u.decodeData(raw, enc)
			return yield(KV[IK, T]{ik, data}, err)
		})
		if err != nil {
			yield(KV[IK, T]{}, err)
		}
	}
}

// UniqueIndexSet is a unique index that only records the primary key.
type UniqueIndexSet[PK, IK, T any] struct {
	uniqueIndex[PK, IK, T]
}

var _ Index[string, int] = (*UniqueIndexSet[string, string, int])(nil)
var _ IndexChecker[string, int] = (*UniqueIndexSet[string, string, int])(nil)

func NewUniqueIndexSet[PK, IK, T any](namespace string, keys Key[IK], extract func(T) IK) *UniqueIndexSet[PK, IK, T] {
	return &UniqueIndexSet[PK, IK, T]{uniqueIndex[PK, IK, T]{
		indexBase: newIndexBase[PK, T](namespace),
		iks:       keys,
		extract:   extract,
	}}
}

// Load returns the primary key whose index key is ik, or ErrNotFound.
func (u *UniqueIndexSet[PK, IK, T]) Load(store Storage, ik IK) (PK, error) {
	return u.LoadKey(store, ik)
}

func (u *UniqueIndexSet[PK, IK, T]) Range(store Storage, min, max *Bound[IK], order Order) iter.Seq2[KV[IK, PK], error] {
	return func(yield func(KV[IK, PK], error) bool) {
		err := u.scan(store, min, max, order, func(raw []byte, ik IK, pkRaw, _ []byte, err error) bool {
			if err != nil {
				return yield(KV[IK, PK]{}, err)
			}
			pk, err := u.decodePK(raw, pkRaw)
			return yield(KV[IK, PK]{ik, pk}, err)
		})
		if err != nil {
			yield(KV[IK, PK]{}, err)
		}
	}
}
