package ixkv

import "fmt"

// Index observes writes to a primary collection keyed by K holding T, and
// keeps its own records in sync with them.
type Index[K, T any] interface {
	// Save records data stored under pk. On error nothing is written.
	Save(store Storage, pk K, data T) error

	// Remove forgets old, the data previously stored under pk.
	Remove(store Storage, pk K, old T) error
}

// IndexChecker is implemented by indexes that can reject a Save. Check
// never writes; indexed collections run every check before mutating
// anything, so a rejected save leaves the store unchanged.
type IndexChecker[K, T any] interface {
	Check(store Storage, pk K, data T) error
}

// IndexList is the bundle of indexes of an indexed collection. Typically a
// struct with one field per index, so that callers reach typed query
// methods through it.
type IndexList[K, T any] interface {
	Indexes() []Index[K, T]
}

type indexSlice[K, T any] []Index[K, T]

func (s indexSlice[K, T]) Indexes() []Index[K, T] {
	return s
}

// Indexes builds an IndexList out of individual indexes.
func Indexes[K, T any](indexes ...Index[K, T]) IndexList[K, T] {
	return indexSlice[K, T](indexes)
}

// primaryRef describes the collection an index belongs to.
type primaryRef[K, T any] struct {
	namespace string
	base      []byte
	keys      Key[K]
	codec     Codec[T]
}

func (r *primaryRef[K, T]) rawKey(pk K) []byte {
	return appendJoined(cloneBytes(r.base), r.keys.Segments(pk))
}

// attachable is implemented by the built-in indexes, which learn the
// primary key codec, the value codec and the primary namespace from the
// indexed collection that owns them.
type attachable[K, T any] interface {
	attach(ref *primaryRef[K, T])
}

// indexBase is embedded by the built-in indexes.
type indexBase[K, T any] struct {
	namespace string
	base      []byte
	primary   *primaryRef[K, T]
}

func newIndexBase[K, T any](namespace string) indexBase[K, T] {
	return indexBase[K, T]{namespace: namespace, base: encodeNamespace(namespace)}
}

func (ib *indexBase[K, T]) attach(ref *primaryRef[K, T]) {
	if ib.primary != nil && ib.primary.namespace != ref.namespace {
		panic(fmt.Errorf("index %q already belongs to %q, cannot attach to %q", ib.namespace, ib.primary.namespace, ref.namespace))
	}
	ib.primary = ref
}

func (ib *indexBase[K, T]) ref() *primaryRef[K, T] {
	if ib.primary == nil {
		panic(fmt.Errorf("index %q is not attached to an indexed collection", ib.namespace))
	}
	return ib.primary
}

// Namespace returns the namespace holding the index records.
func (ib *indexBase[K, T]) Namespace() string {
	return ib.namespace
}

func (ib *indexBase[K, T]) keyErr(raw []byte, err error, format string, args ...any) error {
	var pns string
	if ib.primary != nil {
		pns = ib.primary.namespace
	}
	return keyErrf(pns, ib.namespace, raw, err, format, args...)
}

func attachIndexes[K, T any](list IndexList[K, T], ref *primaryRef[K, T]) {
	for _, idx := range list.Indexes() {
		if a, ok := idx.(attachable[K, T]); ok {
			a.attach(ref)
		}
	}
}

// IndexEntry is a multi-index record with its primary data.
type IndexEntry[IK, PK, T any] struct {
	IndexKey   IK
	PrimaryKey PK
	Value      T
}
