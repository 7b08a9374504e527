package ixkv

import (
	"testing"
)

func TestInc(t *testing.T) {
	tests := []struct {
		input    []byte
		expected []byte
		ok       bool
	}{
		{x("00"), x("01"), true},
		{x("0000"), x("0001"), true},
		{x("00ff"), x("0100"), true},
		{x("12ffff"), x("130000"), true},
		{x("ff"), x("ff"), false},
		{x("ffff"), x("ffff"), false},
	}
	for _, tt := range tests {
		a := cloneBytes(tt.input)
		ok := inc(a)
		if ok != tt.ok || string(a) != string(tt.expected) {
			t.Errorf("** inc(%x) = %x, %v, wanted %x, %v", tt.input, a, ok, tt.expected, tt.ok)
		}
	}
}

func TestPrefixEnd(t *testing.T) {
	deepEqual(t, prefixEnd(x("0003 666f6f")), x("0003 666f70"))
	deepEqual(t, prefixEnd(x("01ff")), x("0200"))
	if e := prefixEnd(x("ffff")); e != nil {
		t.Errorf("** prefixEnd(ffff) = %x, wanted nil", e)
	}
	if e := prefixEnd(nil); e != nil {
		t.Errorf("** prefixEnd(nil) = %x, wanted nil", e)
	}
}

func TestByteDecoder(t *testing.T) {
	buf := appendVarbytes(nil, []byte("hello"))
	buf = appendRaw(buf, x("0102 ff"))
	d := makeByteDecoder(buf)
	deepEqual(t, must(d.VarBytes()), []byte("hello"))
	deepEqual(t, must(d.Uint16()), uint16(0x0102))
	deepEqual(t, d.Off(), 8)
	deepEqual(t, d.Rest(), x("ff"))
	deepEqual(t, d.Rest(), []byte{})

	d = makeByteDecoder(x("05 6162"))
	if _, err := d.VarBytes(); err == nil {
		t.Errorf("** VarBytes decoded a truncated value")
	}
	d = makeByteDecoder(x("ff"))
	if _, err := d.Uvarint(); err == nil {
		t.Errorf("** Uvarint decoded a truncated varint")
	}
}

func TestCloneBytes(t *testing.T) {
	if cloneBytes(nil) != nil {
		t.Errorf("** cloneBytes(nil) != nil")
	}
	c := cloneBytes([]byte{})
	if c == nil || len(c) != 0 {
		t.Errorf("** cloneBytes(empty) = %#v", c)
	}
	orig := []byte("abc")
	c = cloneBytes(orig)
	orig[0] = 'x'
	deepEqual(t, c, []byte("abc"))
	deepEqual(t, concat(x("01"), nil, x("0203")), x("010203"))
}
