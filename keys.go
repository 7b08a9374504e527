package ixkv

import (
	"encoding/binary"
	"fmt"
	"math"
)

// Key describes how values of type K are turned into raw key segments and
// back. Encoded keys are prefix-free (see joinSegments). A single-segment
// key sorts like its value; in a composite key every segment but the last
// sorts by length first, then by bytes.
type Key[K any] interface {
	// Segments returns the raw segments of k, in order.
	Segments(k K) [][]byte

	// Decode is the inverse of Segments. It receives exactly Width segments.
	Decode(segs [][]byte) (K, error)

	// Width is the number of segments every key of this type has.
	Width() int
}

// CompositeKey is a Key over a Pair that can be split into its prefix and
// suffix halves, enabling partial-key range queries.
type CompositeKey[A, B any] interface {
	Key[Pair[A, B]]
	First() Key[A]
	Second() Key[B]
}

const maxSegmentLen = math.MaxUint16

// joinSegments concatenates segments so that every segment except the last
// carries a 2-byte big-endian length prefix. The last one needs no prefix
// because nothing follows it.
func joinSegments(segs [][]byte) []byte {
	return appendJoined(nil, segs)
}

func appendJoined(buf []byte, segs [][]byte) []byte {
	for i, seg := range segs {
		if i < len(segs)-1 {
			buf = appendLengthPrefixed(buf, seg)
		} else {
			buf = appendRaw(buf, seg)
		}
	}
	return buf
}

// appendNested appends every segment with a length prefix; used for
// namespaces and key prefixes, which always have something after them.
func appendNested(buf []byte, segs [][]byte) []byte {
	for _, seg := range segs {
		buf = appendLengthPrefixed(buf, seg)
	}
	return buf
}

func appendLengthPrefixed(buf []byte, seg []byte) []byte {
	if len(seg) > maxSegmentLen {
		panic(fmt.Errorf("key segment too long: %d bytes, max %d", len(seg), maxSegmentLen))
	}
	off, buf := grow(buf, 2+len(seg))
	binary.BigEndian.PutUint16(buf[off:], uint16(len(seg)))
	copy(buf[off+2:], seg)
	return buf
}

// encodeNamespace returns the length-prefixed form of a namespace, the
// leading bytes of every raw key in it.
func encodeNamespace(ns string) []byte {
	return appendLengthPrefixed(nil, []byte(ns))
}

// splitSegments is the inverse of joinSegments for a known segment count.
func splitSegments(raw []byte, n int) ([][]byte, error) {
	if n <= 0 {
		return nil, dataErrf(raw, 0, nil, "invalid key width %d", n)
	}
	d := makeByteDecoder(raw)
	segs := make([][]byte, n)
	for i := 0; i < n-1; i++ {
		l, err := d.Uint16()
		if err != nil {
			return nil, err
		}
		seg, err := d.Raw(int(l))
		if err != nil {
			return nil, err
		}
		segs[i] = seg
	}
	segs[n-1] = d.Rest()
	return segs, nil
}

func encodeKey[K any](kc Key[K], k K) []byte {
	return joinSegments(kc.Segments(k))
}

func decodeKey[K any](kc Key[K], raw []byte) (K, error) {
	segs, err := splitSegments(raw, kc.Width())
	if err != nil {
		var zero K
		return zero, err
	}
	return kc.Decode(segs)
}

func checkWidth(segs [][]byte, n int) error {
	if len(segs) != n {
		return dataErrf(nil, 0, nil, "got %d key segments, wanted %d", len(segs), n)
	}
	return nil
}

// ---------------------------------------------------------------- scalars

type stringKey struct{}

// String is the Key for string keys.
var String Key[string] = stringKey{}

func (stringKey) Segments(k string) [][]byte { return [][]byte{[]byte(k)} }
func (stringKey) Width() int                 { return 1 }
func (stringKey) Decode(segs [][]byte) (string, error) {
	if err := checkWidth(segs, 1); err != nil {
		return "", err
	}
	return string(segs[0]), nil
}

type bytesKey struct{}

// Bytes is the Key for []byte keys.
var Bytes Key[[]byte] = bytesKey{}

func (bytesKey) Segments(k []byte) [][]byte { return [][]byte{k} }
func (bytesKey) Width() int                 { return 1 }
func (bytesKey) Decode(segs [][]byte) ([]byte, error) {
	if err := checkWidth(segs, 1); err != nil {
		return nil, err
	}
	return cloneBytes(nonNilBytes(segs[0])), nil
}

type boolKey struct{}

// Bool encodes false as 0x00 and true as 0x01.
var Bool Key[bool] = boolKey{}

func (boolKey) Segments(k bool) [][]byte {
	if k {
		return [][]byte{{1}}
	}
	return [][]byte{{0}}
}
func (boolKey) Width() int { return 1 }
func (boolKey) Decode(segs [][]byte) (bool, error) {
	if err := checkWidth(segs, 1); err != nil {
		return false, err
	}
	if len(segs[0]) != 1 || segs[0][0] > 1 {
		return false, dataErrf(segs[0], 0, nil, "invalid bool key")
	}
	return segs[0][0] == 1, nil
}

type unsigned interface {
	~uint8 | ~uint16 | ~uint32 | ~uint64
}

type signed interface {
	~int8 | ~int16 | ~int32 | ~int64
}

// uintKey encodes unsigned integers as fixed-width big-endian, so byte
// order equals numeric order.
type uintKey[T unsigned] struct {
	size int
}

var (
	Uint8  Key[uint8]  = uintKey[uint8]{1}
	Uint16 Key[uint16] = uintKey[uint16]{2}
	Uint32 Key[uint32] = uintKey[uint32]{4}
	Uint64 Key[uint64] = uintKey[uint64]{8}
)

func (kc uintKey[T]) Segments(k T) [][]byte {
	return [][]byte{putUint(make([]byte, kc.size), uint64(k))}
}

func (kc uintKey[T]) Width() int { return 1 }

func (kc uintKey[T]) Decode(segs [][]byte) (T, error) {
	if err := checkWidth(segs, 1); err != nil {
		return 0, err
	}
	if len(segs[0]) != kc.size {
		return 0, dataErrf(segs[0], 0, nil, "invalid %d-byte integer key", kc.size)
	}
	return T(getUint(segs[0])), nil
}

// intKey encodes signed integers as fixed-width big-endian with the sign bit
// flipped, so that negative numbers sort before positive ones.
type intKey[T signed] struct {
	size int
}

var (
	Int8  Key[int8]  = intKey[int8]{1}
	Int16 Key[int16] = intKey[int16]{2}
	Int32 Key[int32] = intKey[int32]{4}
	Int64 Key[int64] = intKey[int64]{8}
)

func (kc intKey[T]) signBit() uint64 {
	return 1 << (uint(kc.size)*8 - 1)
}

func (kc intKey[T]) mask() uint64 {
	if kc.size == 8 {
		return math.MaxUint64
	}
	return 1<<(uint(kc.size)*8) - 1
}

func (kc intKey[T]) Segments(k T) [][]byte {
	u := (uint64(int64(k)) & kc.mask()) ^ kc.signBit()
	return [][]byte{putUint(make([]byte, kc.size), u)}
}

func (kc intKey[T]) Width() int { return 1 }

func (kc intKey[T]) Decode(segs [][]byte) (T, error) {
	if err := checkWidth(segs, 1); err != nil {
		return 0, err
	}
	if len(segs[0]) != kc.size {
		return 0, dataErrf(segs[0], 0, nil, "invalid %d-byte integer key", kc.size)
	}
	u := getUint(segs[0]) ^ kc.signBit()
	// sign-extend from size*8 bits
	shift := 64 - uint(kc.size)*8
	return T(int64(u<<shift) >> shift), nil
}

func putUint(b []byte, v uint64) []byte {
	switch len(b) {
	case 1:
		b[0] = byte(v)
	case 2:
		binary.BigEndian.PutUint16(b, uint16(v))
	case 4:
		binary.BigEndian.PutUint32(b, uint32(v))
	case 8:
		binary.BigEndian.PutUint64(b, v)
	default:
		panic("unsupported integer size")
	}
	return b
}

func getUint(b []byte) uint64 {
	switch len(b) {
	case 1:
		return uint64(b[0])
	case 2:
		return uint64(binary.BigEndian.Uint16(b))
	case 4:
		return uint64(binary.BigEndian.Uint32(b))
	case 8:
		return binary.BigEndian.Uint64(b)
	default:
		panic("unsupported integer size")
	}
}

// ---------------------------------------------------------------- tuples

// Pair is a two-element composite key. Longer tuples nest: a triple is
// Pair[A, Pair[B, C]], whose prefix is A and suffix is Pair[B, C].
type Pair[A, B any] struct {
	First  A
	Second B
}

func MakePair[A, B any](a A, b B) Pair[A, B] {
	return Pair[A, B]{a, b}
}

func MakeTriple[A, B, C any](a A, b B, c C) Pair[A, Pair[B, C]] {
	return Pair[A, Pair[B, C]]{a, Pair[B, C]{b, c}}
}

func (p Pair[A, B]) String() string {
	return fmt.Sprintf("(%v, %v)", p.First, p.Second)
}

type pairKey[A, B any] struct {
	a Key[A]
	b Key[B]
}

var _ CompositeKey[string, int64] = pairKey[string, int64]{}

// PairKey returns the Key of Pair[A, B] whose segments are a's followed
// by b's. The result also implements CompositeKey[A, B].
func PairKey[A, B any](a Key[A], b Key[B]) Key[Pair[A, B]] {
	return pairKey[A, B]{a, b}
}

// TripleKey returns the Key of a three-element tuple.
func TripleKey[A, B, C any](a Key[A], b Key[B], c Key[C]) Key[Pair[A, Pair[B, C]]] {
	return PairKey(a, PairKey(b, c))
}

func (kc pairKey[A, B]) First() Key[A]  { return kc.a }
func (kc pairKey[A, B]) Second() Key[B] { return kc.b }
func (kc pairKey[A, B]) Width() int     { return kc.a.Width() + kc.b.Width() }

func (kc pairKey[A, B]) Segments(k Pair[A, B]) [][]byte {
	segs := kc.a.Segments(k.First)
	return append(segs, kc.b.Segments(k.Second)...)
}

func (kc pairKey[A, B]) Decode(segs [][]byte) (Pair[A, B], error) {
	var p Pair[A, B]
	if err := checkWidth(segs, kc.Width()); err != nil {
		return p, err
	}
	wa := kc.a.Width()
	a, err := kc.a.Decode(segs[:wa])
	if err != nil {
		return p, err
	}
	b, err := kc.b.Decode(segs[wa:])
	if err != nil {
		return p, err
	}
	return Pair[A, B]{a, b}, nil
}

func asComposite[A, B any](kc Key[Pair[A, B]]) CompositeKey[A, B] {
	ck, ok := kc.(CompositeKey[A, B])
	if !ok {
		panic(fmt.Errorf("key codec %T cannot be split into prefix and suffix", kc))
	}
	return ck
}

// RawKey returns the storage key of a record in namespace whose key
// consists of segs.
func RawKey(namespace string, segs ...[]byte) []byte {
	return appendJoined(encodeNamespace(namespace), segs)
}
