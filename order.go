package ixkv

import "fmt"

// Order is the direction of a scan. The numeric values are stable and
// are what crosses any boundary that needs a primitive encoding.
type Order int32

const (
	Ascending  Order = 1
	Descending Order = 2
)

func (o Order) Int32() int32 {
	return int32(o)
}

func (o Order) String() string {
	switch o {
	case Ascending:
		return "asc"
	case Descending:
		return "desc"
	default:
		return fmt.Sprintf("Order(%d)", int32(o))
	}
}

func (o Order) reversed() bool {
	return o == Descending
}

// OrderFromInt32 is the inverse of Order.Int32.
func OrderFromInt32(v int32) (Order, error) {
	switch Order(v) {
	case Ascending, Descending:
		return Order(v), nil
	default:
		return 0, dataErrf(nil, 0, nil, "invalid order: must be 1 (asc) or 2 (desc), found %d", v)
	}
}

// Record is an owned key/value pair, the unit yielded by every raw scan.
type Record struct {
	Key   []byte
	Value []byte
}

// KV is a decoded key/value pair.
type KV[K, V any] struct {
	Key   K
	Value V
}
