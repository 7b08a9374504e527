// Package storagetest is the conformance suite every ixkv.Storage backend
// runs, plus helpers for tests that work with raw records.
package storagetest

import (
	"bytes"
	"fmt"
	"log/slog"
	"strings"
	"testing"

	"github.com/andreyvit/ixkv"
)

// Factory returns a new empty storage. Cleanup goes through t.Cleanup.
type Factory func(t testing.TB) ixkv.Storage

// Run checks that the storages produced by newStore honor the Storage
// contract.
func Run(t *testing.T, newStore Factory) {
	t.Run("read_write", func(t *testing.T) {
		s := newStore(t)
		NotFound(t, s, K("'a"))
		ensure(t, s.Write(K("'a"), K("'1")))
		ensure(t, s.Write(K("'b"), K("'2")))
		Found(t, s, K("'a"), K("'1"))
		Found(t, s, K("'b"), K("'2"))
		ensure(t, s.Write(K("'a"), K("'3")))
		Found(t, s, K("'a"), K("'3"))
	})

	t.Run("empty_value", func(t *testing.T) {
		s := newStore(t)
		ensure(t, s.Write(K("'a"), []byte{}))
		ensure(t, s.Write(K("'b"), nil))
		Found(t, s, K("'a"), []byte{})
		Found(t, s, K("'b"), []byte{})
		Eq(t, Scan(t, s, nil, nil, ixkv.Ascending), "'a=", "'b=")
	})

	t.Run("remove", func(t *testing.T) {
		s := newStore(t)
		ensure(t, s.Write(K("'a"), K("'1")))
		ensure(t, s.Remove(K("'a")))
		NotFound(t, s, K("'a"))
		ensure(t, s.Remove(K("'a")))
		ensure(t, s.Remove(K("'never")))
		Eq(t, Scan(t, s, nil, nil, ixkv.Ascending))
	})

	t.Run("scan_order", func(t *testing.T) {
		s := newStore(t)
		Fill(t, s, "01='a", "0100='b", "02='c", "ff='d", "00='e")
		Eq(t, Scan(t, s, nil, nil, ixkv.Ascending), "00='e", "01='a", "0100='b", "02='c", "ff='d")
		Eq(t, Scan(t, s, nil, nil, ixkv.Descending), "ff='d", "02='c", "0100='b", "01='a", "00='e")
	})

	t.Run("scan_bounds", func(t *testing.T) {
		s := newStore(t)
		Fill(t, s, "01=", "0100=", "02=", "0200=", "03=")
		Eq(t, Scan(t, s, K("01"), K("02"), ixkv.Ascending), "01=", "0100=")
		Eq(t, Scan(t, s, K("01"), K("02"), ixkv.Descending), "0100=", "01=")
		Eq(t, Scan(t, s, K("0100"), nil, ixkv.Ascending), "0100=", "02=", "0200=", "03=")
		Eq(t, Scan(t, s, nil, K("0200"), ixkv.Descending), "02=", "0100=", "01=")
		Eq(t, Scan(t, s, K("04"), nil, ixkv.Ascending))
		Eq(t, Scan(t, s, K("02"), K("02"), ixkv.Ascending))
	})

	t.Run("inverted_range", func(t *testing.T) {
		s := newStore(t)
		Fill(t, s, "01=", "02=", "03=")
		Eq(t, Scan(t, s, K("03"), K("01"), ixkv.Ascending))
		Eq(t, Scan(t, s, K("03"), K("01"), ixkv.Descending))
	})

	t.Run("batch", func(t *testing.T) {
		s := newStore(t)
		Fill(t, s, "01='x", "02='y")
		b := ixkv.NewBatch()
		b.Insert(K("03"), K("'z"))
		b.Delete(K("01"))
		b.Insert(K("02"), K("'w"))
		ensure(t, ixkv.ApplyBatch(s, b))
		Eq(t, Scan(t, s, nil, nil, ixkv.Ascending), "02='w", "03='z")
	})

	t.Run("early_close", func(t *testing.T) {
		s := newStore(t)
		Fill(t, s, "01=", "02=", "03=")
		it := s.Scan(nil, nil, ixkv.Ascending)
		if !it.Next() {
			t.Fatalf("** expected a record, got %v", it.Err())
		}
		ensure(t, it.Close())
		ensure(t, s.Write(K("04"), nil))
		Eq(t, Scan(t, s, K("03"), nil, ixkv.Ascending), "03=", "04=")
	})
}

// Scan collects a raw scan as "key=value" strings in Format notation.
func Scan(t testing.TB, s ixkv.Storage, min, max []byte, order ixkv.Order) []string {
	t.Helper()
	it := s.Scan(min, max, order)
	defer it.Close()
	var result []string
	for it.Next() {
		v := it.Value()
		if v == nil {
			v = []byte{}
		}
		result = append(result, Format(it.Key())+"="+Format(v))
	}
	if err := it.Err(); err != nil {
		t.Fatalf("** scan failed: %v", err)
	}
	return result
}

// Fill writes records given as "key=value" in K notation.
func Fill(t testing.TB, s ixkv.Storage, records ...string) {
	t.Helper()
	for _, r := range records {
		k, v, ok := strings.Cut(r, "=")
		if !ok {
			t.Fatalf("** invalid record spec %q", r)
		}
		ensure(t, s.Write(K(k), K(v)))
	}
}

func Found(t testing.TB, s ixkv.Storage, key, expected []byte) {
	t.Helper()
	v, found, err := s.Read(key)
	ensure(t, err)
	if !found {
		t.Fatalf("** %s not found, wanted %s", Format(key), Format(expected))
	}
	if v == nil || !bytes.Equal(v, expected) {
		t.Fatalf("** %s = %s, wanted %s", Format(key), Format(v), Format(expected))
	}
}

func NotFound(t testing.TB, s ixkv.Storage, key []byte) {
	t.Helper()
	v, found, err := s.Read(key)
	ensure(t, err)
	if found {
		t.Fatalf("** %s = %s, wanted not found", Format(key), Format(v))
	}
}

func Eq(t testing.TB, actual []string, expected ...string) {
	t.Helper()
	a := strings.Join(actual, "\n")
	e := strings.Join(expected, "\n")
	if a != e {
		t.Fatalf("** got:\n%s\n\nwanted:\n%s", a, e)
	}
}

// K decodes a compact byte notation: hex digits, optionally separated by
// spaces or underscores, and 'text runs appended verbatim. K("'ab 00")
// is "ab\x00".
func K(spec string) []byte {
	data := []byte{}
	for _, elem := range strings.Fields(spec) {
		if text, ok := strings.CutPrefix(elem, "'"); ok {
			data = append(data, text...)
			continue
		}
		var err error
		data, err = appendHexDecoding(data, elem)
		if err != nil {
			panic(fmt.Errorf("%w in element %q", err, elem))
		}
	}
	return data
}

// Format is the inverse of K for printing: printable runs of letters are
// shown as 'text, everything else as hex.
func Format(b []byte) string {
	if b == nil {
		return "<nil>"
	}
	var buf strings.Builder
	allPrintable := len(b) > 0
	for _, c := range b {
		if !isPrintable(c) {
			allPrintable = false
			break
		}
	}
	if allPrintable {
		buf.WriteByte('\'')
		buf.Write(b)
		return buf.String()
	}
	fmt.Fprintf(&buf, "%x", b)
	return buf.String()
}

func isPrintable(c byte) bool {
	return (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || (c >= '0' && c <= '9') || c == '_'
}

func appendHexDecoding(data []byte, hex string) ([]byte, error) {
	const none byte = 0xFF

	prev := none
	for _, b := range []byte(hex) {
		var half byte
		switch b {
		case '_':
			if prev != none {
				data = append(data, prev)
				prev = none
			}
			continue
		case '0', '1', '2', '3', '4', '5', '6', '7', '8', '9':
			half = b - '0'
		case 'a', 'b', 'c', 'd', 'e', 'f':
			half = b - 'a' + 10
		case 'A', 'B', 'C', 'D', 'E', 'F':
			half = b - 'A' + 10
		default:
			return nil, fmt.Errorf("invalid char '%c'", b)
		}
		if prev == none {
			prev = half
		} else {
			data = append(data, prev<<4|half)
			prev = none
		}
	}
	if prev != none {
		data = append(data, prev)
	}
	return data, nil
}

// Logger returns a debug-level logger that writes to the test log.
func Logger(t testing.TB) *slog.Logger {
	return slog.New(slog.NewTextHandler(&logWriter{t}, &slog.HandlerOptions{
		Level: slog.LevelDebug,
	}))
}

type logWriter struct{ t testing.TB }

func (c *logWriter) Write(buf []byte) (int, error) {
	msg := string(buf)
	origLen := len(msg)
	msg = strings.TrimSuffix(msg, "\n")
	c.t.Log(msg)
	return origLen, nil
}

func ensure(t testing.TB, err error) {
	t.Helper()
	if err != nil {
		t.Fatalf("** %v", err)
	}
}
