package ixkv

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"os"
	"time"

	"go.etcd.io/bbolt"
)

const DefaultBoltBucket = "ixkv"

var ErrReadOnly = errors.New("storage is read-only")

type BoltOptions struct {
	// Bucket holds every record. Defaults to DefaultBoltBucket.
	Bucket string

	Timeout  time.Duration
	NoSync   bool
	ReadOnly bool
	FileMode os.FileMode

	Logger *slog.Logger
}

// BoltDB is a bbolt file whose single bucket backs a Storage. Each Update or
// View call gets a BoltStorage bound to one bolt transaction.
type BoltDB struct {
	bdb    *bbolt.DB
	bucket []byte
	logger *slog.Logger
}

func OpenBolt(path string, opt BoltOptions) (*BoltDB, error) {
	if opt.Bucket == "" {
		opt.Bucket = DefaultBoltBucket
	}
	if opt.FileMode == 0 {
		opt.FileMode = 0o644
	}
	logger := loggerOrDefault(opt.Logger)
	bdb, err := bbolt.Open(path, opt.FileMode, &bbolt.Options{
		Timeout:  opt.Timeout,
		NoSync:   opt.NoSync,
		ReadOnly: opt.ReadOnly,
	})
	if err != nil {
		return nil, err
	}
	logger.LogAttrs(context.Background(), slog.LevelDebug, "ixkv: opened bolt", slog.String("path", path), slog.String("bucket", opt.Bucket))
	return &BoltDB{bdb: bdb, bucket: []byte(opt.Bucket), logger: logger}, nil
}

// NewBoltDB wraps an already open bbolt database.
func NewBoltDB(bdb *bbolt.DB, bucket string, logger *slog.Logger) *BoltDB {
	if bucket == "" {
		bucket = DefaultBoltBucket
	}
	return &BoltDB{bdb: bdb, bucket: []byte(bucket), logger: loggerOrDefault(logger)}
}

func (db *BoltDB) Bolt() *bbolt.DB { return db.bdb }

func (db *BoltDB) Close() error {
	return db.bdb.Close()
}

// Update runs fn in a writable transaction, committing when fn returns nil
// and rolling back otherwise.
func (db *BoltDB) Update(fn func(s *BoltStorage) error) error {
	return db.bdb.Update(func(btx *bbolt.Tx) error {
		s, err := NewBoltStorage(btx, string(db.bucket), db.logger)
		if err != nil {
			return err
		}
		err = fn(s)
		if err != nil {
			db.logger.LogAttrs(context.Background(), slog.LevelDebug, "ixkv: bolt update rolled back", slog.Any("err", err))
		}
		return err
	})
}

// View runs fn in a read-only transaction.
func (db *BoltDB) View(fn func(s *BoltStorage) error) error {
	return db.bdb.View(func(btx *bbolt.Tx) error {
		s, err := NewBoltStorage(btx, string(db.bucket), db.logger)
		if err != nil {
			return err
		}
		return fn(s)
	})
}

// BoltStorage is a Storage over one bolt transaction. It must not be used
// after the Update or View callback returns.
type BoltStorage struct {
	btx    *bbolt.Tx
	b      *bbolt.Bucket // nil in a read-only tx before the first write
	logger *slog.Logger
}

var _ Storage = (*BoltStorage)(nil)
var _ BatchWriter = (*BoltStorage)(nil)

// NewBoltStorage binds a Storage to a transaction the caller manages. In a
// writable transaction the bucket is created if missing.
func NewBoltStorage(btx *bbolt.Tx, bucket string, logger *slog.Logger) (*BoltStorage, error) {
	if bucket == "" {
		bucket = DefaultBoltBucket
	}
	s := &BoltStorage{btx: btx, logger: loggerOrDefault(logger)}
	if btx.Writable() {
		b, err := btx.CreateBucketIfNotExists([]byte(bucket))
		if err != nil {
			return nil, err
		}
		s.b = b
	} else {
		s.b = btx.Bucket([]byte(bucket))
	}
	return s, nil
}

func (s *BoltStorage) BoltTx() *bbolt.Tx { return s.btx }

func (s *BoltStorage) Writable() bool { return s.btx.Writable() }

func (s *BoltStorage) Read(key []byte) ([]byte, bool, error) {
	if s.b == nil {
		return nil, false, nil
	}
	// A cursor distinguishes an empty value from a missing key.
	k, v := s.b.Cursor().Seek(key)
	if k == nil || !bytes.Equal(k, key) {
		return nil, false, nil
	}
	return nonNilBytes(cloneBytes(v)), true, nil
}

func (s *BoltStorage) Write(key, value []byte) error {
	if s.b == nil {
		return ErrReadOnly
	}
	return s.b.Put(key, nonNilBytes(value))
}

func (s *BoltStorage) Remove(key []byte) error {
	if s.b == nil {
		return ErrReadOnly
	}
	return s.b.Delete(key)
}

// WriteBatch applies b inside the current transaction, which makes it
// atomic together with everything else the transaction does.
func (s *BoltStorage) WriteBatch(b *Batch) error {
	if s.b == nil {
		return ErrReadOnly
	}
	for k, op := range b.All() {
		var err error
		if op.Deleted {
			err = s.b.Delete(k)
		} else {
			err = s.b.Put(k, nonNilBytes(op.Value))
		}
		if err != nil {
			return err
		}
	}
	s.logger.LogAttrs(context.Background(), slog.LevelDebug, "ixkv: bolt batch", slog.Int("ops", b.Len()))
	return nil
}

func (s *BoltStorage) Scan(min, max []byte, order Order) Iterator {
	if s.b == nil || InvertedRange(min, max) {
		return EmptyIterator()
	}
	return &boltIterator{c: s.b.Cursor(), min: min, max: max, reverse: order.reversed()}
}

type boltIterator struct {
	c        *bbolt.Cursor
	min, max []byte
	reverse  bool
	started  bool
	k, v     []byte
}

func (it *boltIterator) Next() bool {
	if it.c == nil {
		return false
	}
	var k, v []byte
	switch {
	case !it.started && it.reverse:
		k, v = seekBefore(it.c, it.max)
	case !it.started:
		if it.min != nil {
			k, v = it.c.Seek(it.min)
		} else {
			k, v = it.c.First()
		}
	case it.reverse:
		k, v = it.c.Prev()
	default:
		k, v = it.c.Next()
	}
	it.started = true
	if k == nil ||
		(!it.reverse && it.max != nil && bytes.Compare(k, it.max) >= 0) ||
		(it.reverse && it.min != nil && bytes.Compare(k, it.min) < 0) {
		it.k, it.v, it.c = nil, nil, nil
		return false
	}
	it.k, it.v = k, nonNilBytes(v)
	return true
}

// seekBefore positions c on the last key below limit, or on the last key
// overall when limit is nil.
func seekBefore(c *bbolt.Cursor, limit []byte) ([]byte, []byte) {
	if limit == nil {
		return c.Last()
	}
	k, _ := c.Seek(limit)
	if k == nil {
		return c.Last()
	}
	return c.Prev()
}

func (it *boltIterator) Key() []byte   { return it.k }
func (it *boltIterator) Value() []byte { return it.v }
func (it *boltIterator) Err() error    { return nil }

func (it *boltIterator) Close() error {
	it.c = nil
	return nil
}

// BoltBucketStats reports page-level usage of the bucket, as bbolt sees it.
type BoltBucketStats struct {
	Keys       int
	LeafInuse  int64
	LeafAlloc  int64
	BranchSize int64
}

func (s *BoltStorage) BucketStats() BoltBucketStats {
	if s.b == nil {
		return BoltBucketStats{}
	}
	bs := s.b.Stats()
	return BoltBucketStats{
		Keys:       bs.KeyN,
		LeafInuse:  int64(bs.LeafInuse),
		LeafAlloc:  int64(bs.LeafAlloc),
		BranchSize: int64(bs.BranchAlloc),
	}
}
