package ixkv

// NamespaceStats summarizes the records of one namespace.
type NamespaceStats struct {
	Namespace string
	Records   int
	KeySize   int
	ValueSize int
}

func (ns *NamespaceStats) TotalSize() int {
	return ns.KeySize + ns.ValueSize
}

func (ns *NamespaceStats) add(rec Record) {
	ns.Records++
	ns.KeySize += len(rec.Key)
	ns.ValueSize += len(rec.Value)
}

// splitNamespace separates the namespace of a raw key from the rest.
func splitNamespace(raw []byte) (string, []byte, error) {
	d := makeByteDecoder(raw)
	n, err := d.Uint16()
	if err != nil {
		return "", nil, err
	}
	ns, err := d.Raw(int(n))
	if err != nil {
		return "", nil, err
	}
	return string(ns), d.Rest(), nil
}

// Stats walks the whole store and returns per-namespace totals in namespace
// order. Keys that do not start with a valid namespace are counted under
// Invalid.
func Stats(store Storage) (stats []NamespaceStats, invalid int, err error) {
	err = walkNamespaces(store, func(ns string, _ int, rec Record, rest []byte) bool {
		if n := len(stats); n == 0 || stats[n-1].Namespace != ns {
			stats = append(stats, NamespaceStats{Namespace: ns})
		}
		stats[len(stats)-1].add(rec)
		return true
	}, func(Record) {
		invalid++
	})
	return stats, invalid, err
}

// walkNamespaces visits every record in key order, which keeps the records
// of a namespace contiguous. pos is the 1-based position within the
// namespace.
func walkNamespaces(store Storage, fn func(ns string, pos int, rec Record, rest []byte) bool, bad func(rec Record)) error {
	var cur string
	var pos int
	for rec, err := range scanRecords(store, nil, nil, Ascending) {
		if err != nil {
			return err
		}
		ns, rest, err := splitNamespace(rec.Key)
		if err != nil {
			if bad != nil {
				bad(rec)
			}
			continue
		}
		if ns != cur || pos == 0 {
			cur, pos = ns, 0
		}
		pos++
		if !fn(ns, pos, rec, rest) {
			return nil
		}
	}
	return nil
}
