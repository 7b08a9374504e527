// Package pebblestore provides an ixkv.Storage on top of Pebble.
package pebblestore

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/andreyvit/ixkv"
	"github.com/cockroachdb/pebble"
)

// Store is an ixkv.Storage over a Pebble database. Single writes and
// batches are committed with the configured sync mode.
type Store struct {
	db        *pebble.DB
	writeOpts *pebble.WriteOptions
	path      string
	readOnly  bool
	logger    *slog.Logger
}

var (
	_ ixkv.Storage     = (*Store)(nil)
	_ ixkv.BatchWriter = (*Store)(nil)
)

// Open creates or opens a Pebble database at path. The caller must Close it.
func Open(path string, opts ...Option) (*Store, error) {
	cfg := DefaultConfig()
	for _, o := range opts {
		o(cfg)
	}
	log := cfg.Logger
	if log == nil {
		log = slog.Default()
	}
	log = log.With("component", "pebblestore")

	cache := pebble.NewCache(cfg.CacheSize)
	defer cache.Unref()

	pOpts := &pebble.Options{
		Cache:        cache,
		MemTableSize: cfg.MemTableSize,
		MaxOpenFiles: cfg.MaxOpenFiles,
		FS:           cfg.FS,
		ReadOnly:     cfg.ReadOnly,
	}
	db, err := pebble.Open(path, pOpts)
	if err != nil {
		return nil, fmt.Errorf("pebblestore: failed to open %s: %w", path, err)
	}

	writeOpts := pebble.NoSync
	if cfg.SyncWrites {
		writeOpts = pebble.Sync
	}
	log.Info("database opened", "path", path, "sync", cfg.SyncWrites, "read_only", cfg.ReadOnly)
	return &Store{db: db, writeOpts: writeOpts, path: path, readOnly: cfg.ReadOnly, logger: log}, nil
}

func (s *Store) DB() *pebble.DB { return s.db }

func (s *Store) Close() error {
	if !s.readOnly {
		if err := s.db.Flush(); err != nil {
			s.logger.Error("flush failed during shutdown", "error", err)
		}
	}
	if err := s.db.Close(); err != nil {
		return fmt.Errorf("pebblestore: close failed: %w", err)
	}
	s.logger.Info("database closed", "path", s.path)
	return nil
}

func (s *Store) Read(key []byte) ([]byte, bool, error) {
	val, closer, err := s.db.Get(key)
	if errors.Is(err, pebble.ErrNotFound) {
		return nil, false, nil
	} else if err != nil {
		return nil, false, fmt.Errorf("pebblestore: get failed: %w", err)
	}
	defer closer.Close()

	// the returned slice is only valid until closer.Close()
	out := make([]byte, len(val))
	copy(out, val)
	return out, true, nil
}

func (s *Store) Write(key, value []byte) error {
	if err := s.db.Set(key, value, s.writeOpts); err != nil {
		return fmt.Errorf("pebblestore: set failed: %w", err)
	}
	return nil
}

func (s *Store) Remove(key []byte) error {
	if err := s.db.Delete(key, s.writeOpts); err != nil {
		return fmt.Errorf("pebblestore: delete failed: %w", err)
	}
	return nil
}

// WriteBatch commits b atomically.
func (s *Store) WriteBatch(b *ixkv.Batch) error {
	pb := s.db.NewBatch()
	defer pb.Close()
	for k, op := range b.All() {
		var err error
		if op.Deleted {
			err = pb.Delete(k, nil)
		} else {
			err = pb.Set(k, op.Value, nil)
		}
		if err != nil {
			return fmt.Errorf("pebblestore: batch failed: %w", err)
		}
	}
	if err := pb.Commit(s.writeOpts); err != nil {
		return fmt.Errorf("pebblestore: batch commit failed: %w", err)
	}
	s.logger.Debug("batch committed", "ops", b.Len())
	return nil
}

func (s *Store) Scan(min, max []byte, order ixkv.Order) ixkv.Iterator {
	if ixkv.InvertedRange(min, max) {
		return ixkv.EmptyIterator()
	}
	iter, err := s.db.NewIter(&pebble.IterOptions{LowerBound: min, UpperBound: max})
	if err != nil {
		return ixkv.ErrIterator(fmt.Errorf("pebblestore: new iterator failed: %w", err))
	}
	return &pebbleIterator{iter: iter, reverse: order == ixkv.Descending}
}

type pebbleIterator struct {
	iter    *pebble.Iterator
	reverse bool
	started bool
	valid   bool
	closed  bool
	err     error
	value   []byte
}

func (it *pebbleIterator) Next() bool {
	if it.closed || it.err != nil {
		return false
	}
	switch {
	case !it.started && it.reverse:
		it.valid = it.iter.Last()
	case !it.started:
		it.valid = it.iter.First()
	case !it.valid:
		return false
	case it.reverse:
		it.valid = it.iter.Prev()
	default:
		it.valid = it.iter.Next()
	}
	it.started = true
	if !it.valid {
		return false
	}
	val, err := it.iter.ValueAndErr()
	if err != nil {
		it.err = err
		it.valid = false
		return false
	}
	it.value = val
	return true
}

func (it *pebbleIterator) Key() []byte {
	if !it.valid {
		return nil
	}
	return it.iter.Key()
}

func (it *pebbleIterator) Value() []byte {
	if !it.valid {
		return nil
	}
	return it.value
}

func (it *pebbleIterator) Err() error {
	if it.err != nil {
		return it.err
	}
	return it.iter.Error()
}

func (it *pebbleIterator) Close() error {
	if it.closed {
		return nil
	}
	it.closed = true
	it.valid = false
	return it.iter.Close()
}
