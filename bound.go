package ixkv

import "fmt"

// Bound is one end of a typed range scan. A nil *Bound means the range is
// open on that side.
type Bound[K any] struct {
	Key       K
	Exclusive bool
}

func Inclusive[K any](k K) *Bound[K] {
	return &Bound[K]{Key: k}
}

func Exclusive[K any](k K) *Bound[K] {
	return &Bound[K]{Key: k, Exclusive: true}
}

func (b *Bound[K]) String() string {
	if b == nil {
		return "open"
	}
	if b.Exclusive {
		return fmt.Sprintf("exclusive(%v)", b.Key)
	}
	return fmt.Sprintf("inclusive(%v)", b.Key)
}

// rawBounds translates typed bounds into a raw [min, max) range under base.
//
// Appending 0x00 to an encoded key yields the smallest byte string greater
// than it, so an exclusive lower bound and an inclusive upper bound both use
// that sentinel. Without bounds the range covers exactly the keys starting
// with base.
func rawBounds[K any](base []byte, kc Key[K], min, max *Bound[K]) ([]byte, []byte) {
	var lo, hi []byte
	if min == nil {
		lo = cloneBytes(base)
	} else {
		lo = appendJoined(cloneBytes(base), kc.Segments(min.Key))
		if min.Exclusive {
			lo = append(lo, 0)
		}
	}
	if max == nil {
		hi = prefixEnd(base)
	} else {
		hi = appendJoined(cloneBytes(base), kc.Segments(max.Key))
		if !max.Exclusive {
			hi = append(hi, 0)
		}
	}
	return lo, hi
}
