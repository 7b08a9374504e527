package ixkv

import (
	"fmt"
	"strings"
)

type DumpFlags uint64

const (
	DumpNamespaceHeaders = DumpFlags(1 << iota)
	DumpRecords
	DumpStats

	DumpAll = DumpFlags(0xFFFFFFFFFFFFFFFF)
)

var (
	dumpSep1 = strings.Repeat("=", 80)
	dumpSep2 = strings.Repeat("-", 60)
)

func (f DumpFlags) Contains(v DumpFlags) bool {
	return (f & v) == v
}

// Dump renders the contents of a store grouped by namespace, for debugging
// and for the ixkv CLI. Keys are shown without their namespace, as hex.
// The store is scanned once; the records of a namespace are held until its
// header, which needs their totals, has been written.
func Dump(store Storage, f DumpFlags) (string, error) {
	var w, pending strings.Builder
	var cur *NamespaceStats
	flush := func() {
		if cur != nil {
			dumpHeader(&w, f, cur)
			w.WriteString(pending.String())
			pending.Reset()
		}
	}

	var badKeys [][]byte
	err := walkNamespaces(store, func(ns string, pos int, rec Record, rest []byte) bool {
		if pos == 1 {
			flush()
			cur = &NamespaceStats{Namespace: ns}
		}
		cur.add(rec)
		if f.Contains(DumpRecords) {
			fmt.Fprintf(&pending, "%s.%d: %s = %s\n", ns, pos, hexstr(rest), hexstr(rec.Value))
		}
		return true
	}, func(rec Record) {
		badKeys = append(badKeys, rec.Key)
	})
	if err != nil {
		return "", err
	}
	flush()

	if len(badKeys) > 0 {
		fmt.Fprintln(&w, dumpSep1)
		fmt.Fprintf(&w, "** %d keys outside of any namespace\n", len(badKeys))
		if f.Contains(DumpRecords) {
			for _, k := range badKeys {
				fmt.Fprintf(&w, "** %s\n", hexstr(k))
			}
		}
	}
	return w.String(), nil
}

func dumpHeader(w *strings.Builder, f DumpFlags, s *NamespaceStats) {
	if f.Contains(DumpNamespaceHeaders) {
		fmt.Fprintln(w, dumpSep1)
		fmt.Fprintf(w, "%s (%d records)\n", s.Namespace, s.Records)
	}
	if f.Contains(DumpStats) {
		fmt.Fprintf(w, "%s.stats: key_size = %d, value_size = %d, total_size = %d\n", s.Namespace, s.KeySize, s.ValueSize, s.TotalSize())
		if f.Contains(DumpRecords) {
			fmt.Fprintln(w, dumpSep2)
		}
	}
}
