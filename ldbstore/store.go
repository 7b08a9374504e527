// Package ldbstore provides an ixkv.Storage on top of goleveldb.
package ldbstore

import (
	"context"
	"errors"
	"log/slog"

	"github.com/andreyvit/ixkv"
	"github.com/syndtr/goleveldb/leveldb"
	"github.com/syndtr/goleveldb/leveldb/iterator"
	"github.com/syndtr/goleveldb/leveldb/opt"
	"github.com/syndtr/goleveldb/leveldb/util"
)

// LevelDB is the part of the goleveldb API shared by *leveldb.DB and
// *leveldb.Transaction, so a Store can sit on either.
type LevelDB interface {
	Get(key []byte, ro *opt.ReadOptions) (value []byte, err error)
	NewIterator(slice *util.Range, ro *opt.ReadOptions) iterator.Iterator
	Put(key, value []byte, wo *opt.WriteOptions) error
	Delete(key []byte, wo *opt.WriteOptions) error
	Write(batch *leveldb.Batch, wo *opt.WriteOptions) error
}

var (
	_ LevelDB = (*leveldb.DB)(nil)
	_ LevelDB = (*leveldb.Transaction)(nil)
)

type Option func(s *Store)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Store) { s.logger = logger }
}

// WithSync makes every write wait for the OS to flush it.
func WithSync(sync bool) Option {
	return func(s *Store) { s.wo = &opt.WriteOptions{Sync: sync} }
}

type Store struct {
	db     LevelDB
	closer func() error
	wo     *opt.WriteOptions
	logger *slog.Logger
}

var (
	_ ixkv.Storage     = (*Store)(nil)
	_ ixkv.BatchWriter = (*Store)(nil)
)

// New wraps an open database or transaction. The caller keeps ownership of
// db; Close is a no-op.
func New(db LevelDB, opts ...Option) *Store {
	s := &Store{db: db, logger: slog.Default()}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Open opens (creating if needed) a leveldb directory. o may be nil.
func Open(path string, o *opt.Options, opts ...Option) (*Store, error) {
	db, err := leveldb.OpenFile(path, o)
	if err != nil {
		return nil, err
	}
	s := New(db, opts...)
	s.closer = db.Close
	s.logger.LogAttrs(context.Background(), slog.LevelDebug, "ixkv: opened leveldb", slog.String("path", path))
	return s, nil
}

func (s *Store) DB() LevelDB { return s.db }

func (s *Store) Close() error {
	if s.closer == nil {
		return nil
	}
	return s.closer()
}

func (s *Store) Read(key []byte) ([]byte, bool, error) {
	v, err := s.db.Get(key, nil)
	if errors.Is(err, leveldb.ErrNotFound) {
		return nil, false, nil
	} else if err != nil {
		return nil, false, err
	}
	if v == nil {
		v = []byte{}
	}
	return v, true, nil
}

func (s *Store) Write(key, value []byte) error {
	return s.db.Put(key, value, s.wo)
}

func (s *Store) Remove(key []byte) error {
	return s.db.Delete(key, s.wo)
}

func (s *Store) WriteBatch(b *ixkv.Batch) error {
	var lb leveldb.Batch
	for k, op := range b.All() {
		if op.Deleted {
			lb.Delete(k)
		} else {
			lb.Put(k, op.Value)
		}
	}
	if err := s.db.Write(&lb, s.wo); err != nil {
		return err
	}
	s.logger.LogAttrs(context.Background(), slog.LevelDebug, "ixkv: leveldb batch", slog.Int("ops", lb.Len()))
	return nil
}

func (s *Store) Scan(min, max []byte, order ixkv.Order) ixkv.Iterator {
	if ixkv.InvertedRange(min, max) {
		return ixkv.EmptyIterator()
	}
	it := s.db.NewIterator(&util.Range{Start: min, Limit: max}, nil)
	return &ldbIterator{it: it, reverse: order == ixkv.Descending}
}

type ldbIterator struct {
	it      iterator.Iterator
	reverse bool
	started bool
	done    bool
}

func (i *ldbIterator) Next() bool {
	if i.done {
		return false
	}
	var ok bool
	switch {
	case !i.started && i.reverse:
		ok = i.it.Last()
	case !i.started:
		ok = i.it.First()
	case i.reverse:
		ok = i.it.Prev()
	default:
		ok = i.it.Next()
	}
	i.started = true
	if !ok {
		i.done = true
	}
	return ok
}

func (i *ldbIterator) Key() []byte {
	if !i.started || i.done {
		return nil
	}
	return i.it.Key()
}

func (i *ldbIterator) Value() []byte {
	if !i.started || i.done {
		return nil
	}
	return i.it.Value()
}

func (i *ldbIterator) Err() error {
	return i.it.Error()
}

func (i *ldbIterator) Close() error {
	i.done = true
	i.it.Release()
	return nil
}
