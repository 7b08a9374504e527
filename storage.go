package ixkv

//go:generate mockgen -source storage.go -destination storage_mocks.go -package ixkv

// Storage is the raw, byte-oriented key-value store everything else in this
// package is built on. Keys are compared lexicographically.
//
// A Storage is not expected to be safe for concurrent writes; callers
// serialize mutations, the same way a single bolt or leveldb transaction
// is used by one goroutine at a time.
type Storage interface {
	// Read returns the value stored under key. found is false when the key
	// is absent; an empty value is still found.
	Read(key []byte) (value []byte, found bool, err error)

	// Write stores value under key, replacing any previous value.
	Write(key, value []byte) error

	// Remove deletes key. Removing an absent key is not an error.
	Remove(key []byte) error

	// Scan iterates over keys in [min, max). A nil bound is open. When
	// min > max the iterator is empty. The caller must Close the iterator.
	Scan(min, max []byte, order Order) Iterator
}

// Iterator walks the records of a Scan. Key and Value are only valid until
// the next call to Next unless the implementation documents otherwise.
type Iterator interface {
	Next() bool
	Key() []byte
	Value() []byte
	Err() error
	Close() error
}

// BatchWriter is implemented by storages that can apply a Batch atomically.
type BatchWriter interface {
	WriteBatch(b *Batch) error
}

// ApplyBatch writes every op of b into store, using BatchWriter when the
// store supports it.
func ApplyBatch(store Storage, b *Batch) error {
	if bw, ok := store.(BatchWriter); ok {
		return bw.WriteBatch(b)
	}
	for k, op := range b.All() {
		var err error
		if op.Deleted {
			err = store.Remove(k)
		} else {
			err = store.Write(k, op.Value)
		}
		if err != nil {
			return err
		}
	}
	return nil
}

// emptyIterator is returned for ranges that cannot contain anything.
type emptyIterator struct{}

func (emptyIterator) Next() bool    { return false }
func (emptyIterator) Key() []byte   { return nil }
func (emptyIterator) Value() []byte { return nil }
func (emptyIterator) Err() error    { return nil }
func (emptyIterator) Close() error  { return nil }

// EmptyIterator returns an iterator that yields nothing. Backends use it
// for inverted ranges.
func EmptyIterator() Iterator {
	return emptyIterator{}
}

// errIterator reports err on the first Next.
type errIterator struct {
	err error
}

func (it errIterator) Next() bool    { return false }
func (it errIterator) Key() []byte   { return nil }
func (it errIterator) Value() []byte { return nil }
func (it errIterator) Err() error    { return it.err }
func (it errIterator) Close() error  { return nil }

// ErrIterator returns an iterator that yields nothing and reports err.
func ErrIterator(err error) Iterator {
	return errIterator{err}
}

// InvertedRange reports whether [min, max) is empty because min > max.
func InvertedRange(min, max []byte) bool {
	return min != nil && max != nil && string(min) > string(max)
}
