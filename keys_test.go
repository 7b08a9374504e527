package ixkv

import (
	"bytes"
	"math"
	"slices"
	"strings"
	"testing"
)

func TestJoinSegments(t *testing.T) {
	deepEqual(t, joinSegments([][]byte{[]byte("ab")}), x("6162"))
	deepEqual(t, joinSegments([][]byte{[]byte("ab"), {1}}), x("0002 6162 01"))
	deepEqual(t, joinSegments([][]byte{{}, {}, {7}}), x("0000 0000 07"))
	deepEqual(t, encodeNamespace("foo"), x("0003 666f6f"))
	deepEqual(t, RawKey("foo", []byte("a"), []byte("b")), x("0003 666f6f 0001 61 62"))
}

func TestSplitSegments(t *testing.T) {
	segs, err := splitSegments(x("0002 6162 0000 ff"), 3)
	ok(t, err)
	deepEqual(t, segs, [][]byte{[]byte("ab"), {}, {0xff}})

	_, err = splitSegments(x("0005 6162"), 2)
	if err == nil {
		t.Fatalf("splitSegments(truncated) = nil error, wanted DataError")
	}
	_, err = splitSegments(x("00"), 2)
	if err == nil {
		t.Fatalf("splitSegments(short length) = nil error, wanted DataError")
	}
}

func TestSegmentTooLong(t *testing.T) {
	long := strings.Repeat("a", maxSegmentLen+1)
	expectPanic(t, func() {
		encodeKey(PairKey(String, String), MakePair(long, "b"))
	})
	expectPanic(t, func() { encodeNamespace(long) })

	// the last segment has no length prefix, so any size is fine
	raw := encodeKey(String, long)
	deepEqual(t, len(raw), maxSegmentLen+1)
}

func roundTrip[K any](t *testing.T, kc Key[K], values ...K) {
	t.Helper()
	for _, v := range values {
		raw := encodeKey(kc, v)
		got, err := decodeKey(kc, raw)
		ok(t, err)
		deepEqual(t, got, v)
	}
}

func TestKeyRoundTrip(t *testing.T) {
	roundTrip(t, String, "", "a", "hello world", "\x00\xff")
	roundTrip(t, Bytes, []byte{}, []byte{0, 1, 2})
	roundTrip(t, Bool, false, true)
	roundTrip(t, Uint8, 0, 1, math.MaxUint8)
	roundTrip(t, Uint16, 0, 0x1234, math.MaxUint16)
	roundTrip(t, Uint32, 0, 0x12345678, math.MaxUint32)
	roundTrip(t, Uint64, 0, 1, math.MaxUint64)
	roundTrip(t, Int8, math.MinInt8, -1, 0, 1, math.MaxInt8)
	roundTrip(t, Int16, math.MinInt16, -1, 0, 1, math.MaxInt16)
	roundTrip(t, Int32, math.MinInt32, -1, 0, 1, math.MaxInt32)
	roundTrip(t, Int64, math.MinInt64, -1, 0, 1, math.MaxInt64)
	roundTrip(t, PairKey(String, Uint64), Pair[string, uint64]{"", 0}, Pair[string, uint64]{"abc", 42})
	roundTrip(t, TripleKey(String, Bytes, Int32),
		MakeTriple("a", []byte("b"), int32(-7)),
		MakeTriple("", []byte{}, int32(0)))
	roundTrip(t, PairKey(PairKey(Uint8, String), String),
		MakePair(MakePair(uint8(1), "x"), "y"))
}

func TestKeyEncodingPreservesOrder(t *testing.T) {
	ints := []int64{math.MinInt64, -1000, -1, 0, 1, 255, 256, math.MaxInt64}
	var raws [][]byte
	for _, v := range ints {
		raws = append(raws, encodeKey(Int64, v))
	}
	if !slices.IsSortedFunc(raws, bytes.Compare) {
		t.Errorf("** Int64 encodings are not sorted: %x", raws)
	}

	small := []int8{math.MinInt8, -1, 0, 1, math.MaxInt8}
	raws = nil
	for _, v := range small {
		raws = append(raws, encodeKey(Int8, v))
	}
	if !slices.IsSortedFunc(raws, bytes.Compare) {
		t.Errorf("** Int8 encodings are not sorted: %x", raws)
	}

	deepEqual(t, encodeKey(Int16, -1), x("7fff"))
	deepEqual(t, encodeKey(Int16, 0), x("8000"))
	deepEqual(t, encodeKey(Uint32, 0x01020304), x("01020304"))
}

func TestKeyEncodingIsPrefixFree(t *testing.T) {
	kc := PairKey(String, String)
	a := encodeKey(kc, MakePair("a", "bc"))
	b := encodeKey(kc, MakePair("ab", "c"))
	if bytes.Equal(a, b) {
		t.Fatalf("** (a, bc) and (ab, c) encode to the same bytes %x", a)
	}

	// a prefix of one element never matches a longer element
	p := appendNested(nil, String.Segments("a"))
	if bytes.HasPrefix(b, p) {
		t.Fatalf("** %x starts with prefix %x", b, p)
	}
	if !bytes.HasPrefix(a, p) {
		t.Fatalf("** %x does not start with prefix %x", a, p)
	}
}

func TestKeyDecodeErrors(t *testing.T) {
	_, err := decodeKey(Uint32, x("0102"))
	if err == nil {
		t.Errorf("** Uint32 decoded a 2-byte key")
	}
	_, err = decodeKey(Bool, x("02"))
	if err == nil {
		t.Errorf("** Bool decoded 0x02")
	}
	_, err = decodeKey(PairKey(String, Uint8), x("0009 61"))
	if err == nil {
		t.Errorf("** pair decoded a truncated key")
	}
	_, err = Uint8.Decode([][]byte{{1}, {2}})
	if err == nil {
		t.Errorf("** Uint8 decoded two segments")
	}
}

func TestAsCompositePanicsOnScalar(t *testing.T) {
	expectPanic(t, func() {
		var kc Key[Pair[string, string]] = fakePairKey{}
		asComposite(kc)
	})
}

type fakePairKey struct{}

func (fakePairKey) Segments(Pair[string, string]) [][]byte { return nil }
func (fakePairKey) Decode([][]byte) (Pair[string, string], error) {
	return Pair[string, string]{}, nil
}
func (fakePairKey) Width() int { return 2 }
