package ixkv

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/golang/snappy"
	"github.com/vmihailenco/msgpack/v5"
)

// Codec turns stored values into bytes and back.
type Codec[T any] interface {
	Encode(v T) ([]byte, error)
	Decode(data []byte) (T, error)
}

type msgpackCodec[T any] struct{}

// MsgPack is the default value codec. Keys of map[string]string and
// map[string]any values are sorted; other map types encode in Go's map
// iteration order.
func MsgPack[T any]() Codec[T] {
	return msgpackCodec[T]{}
}

func (msgpackCodec[T]) Encode(v T) ([]byte, error) {
	var bb bytesBuilder
	enc := msgpack.GetEncoder()
	enc.ResetDict(&bb, nil)
	enc.SetSortMapKeys(true)
	err := enc.Encode(v)
	msgpack.PutEncoder(enc)
	if err != nil {
		return nil, fmt.Errorf("failed to encode %T using MsgPack: %w", v, err)
	}
	return nonNilBytes(bb.Buf), nil
}

func (msgpackCodec[T]) Decode(data []byte) (T, error) {
	var v T
	var r bytes.Reader
	r.Reset(data)
	dec := msgpack.GetDecoder()
	dec.ResetDict(&r, nil)
	err := dec.Decode(&v)
	msgpack.PutDecoder(dec)
	if err != nil {
		return v, dataErrf(data, 0, err, "failed to decode msgpack into %T", v)
	}
	return v, nil
}

type jsonCodec[T any] struct{}

// JSON encodes values with encoding/json. Handy for stores that are
// inspected by hand.
func JSON[T any]() Codec[T] {
	return jsonCodec[T]{}
}

func (jsonCodec[T]) Encode(v T) ([]byte, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("failed to encode %T to JSON: %w", v, err)
	}
	return raw, nil
}

func (jsonCodec[T]) Decode(data []byte) (T, error) {
	var v T
	if err := json.Unmarshal(data, &v); err != nil {
		return v, dataErrf(data, 0, err, "failed to decode JSON into %T", v)
	}
	return v, nil
}

type snappyCodec[T any] struct {
	inner Codec[T]
}

// Snappy wraps inner with snappy block compression.
func Snappy[T any](inner Codec[T]) Codec[T] {
	return snappyCodec[T]{inner}
}

func (c snappyCodec[T]) Encode(v T) ([]byte, error) {
	raw, err := c.inner.Encode(v)
	if err != nil {
		return nil, err
	}
	return snappy.Encode(nil, raw), nil
}

func (c snappyCodec[T]) Decode(data []byte) (T, error) {
	raw, err := snappy.Decode(nil, data)
	if err != nil {
		var zero T
		return zero, dataErrf(data, 0, err, "failed to decompress snappy block")
	}
	return c.inner.Decode(raw)
}

type rawCodec struct{}

// Raw stores byte slices as is.
func Raw() Codec[[]byte] {
	return rawCodec{}
}

func (rawCodec) Encode(v []byte) ([]byte, error) {
	return nonNilBytes(v), nil
}

func (rawCodec) Decode(data []byte) ([]byte, error) {
	return cloneBytes(nonNilBytes(data)), nil
}

// Empty is the value of sets, where the key alone is the record.
type Empty struct{}

type emptyCodec struct{}

// EmptyCodec stores Empty as a zero-length value.
var EmptyCodec Codec[Empty] = emptyCodec{}

func (emptyCodec) Encode(Empty) ([]byte, error) {
	return []byte{}, nil
}

func (emptyCodec) Decode(data []byte) (Empty, error) {
	if len(data) != 0 {
		return Empty{}, dataErrf(data, 0, nil, "expected empty value")
	}
	return Empty{}, nil
}

type bytesBuilder struct {
	Buf []byte
}

func (bb *bytesBuilder) Write(b []byte) (int, error) {
	bb.Buf = appendRaw(bb.Buf, b)
	return len(b), nil
}

func (bb *bytesBuilder) WriteByte(c byte) error {
	bb.Buf = append(bb.Buf, c)
	return nil
}

func (bb *bytesBuilder) WriteString(s string) (int, error) {
	bb.Buf = append(bb.Buf, s...)
	return len(s), nil
}
