package ixkv_test

import (
	"path/filepath"
	"testing"

	"go.etcd.io/bbolt"

	"github.com/andreyvit/ixkv"
	"github.com/andreyvit/ixkv/storagetest"
)

func TestMemStorage(t *testing.T) {
	storagetest.Run(t, func(t testing.TB) ixkv.Storage {
		return ixkv.NewMemStorage()
	})
}

func TestBufferOverEmptyBase(t *testing.T) {
	storagetest.Run(t, func(t testing.TB) ixkv.Storage {
		return ixkv.NewBuffer(ixkv.NewMemStorage())
	})
}

func TestBoltStorage(t *testing.T) {
	storagetest.Run(t, func(t testing.TB) ixkv.Storage {
		bdb, err := bbolt.Open(filepath.Join(t.TempDir(), "test.db"), 0o644, nil)
		if err != nil {
			t.Fatal(err)
		}
		btx, err := bdb.Begin(true)
		if err != nil {
			t.Fatal(err)
		}
		t.Cleanup(func() {
			btx.Rollback()
			bdb.Close()
		})
		s, err := ixkv.NewBoltStorage(btx, "", storagetest.Logger(t))
		if err != nil {
			t.Fatal(err)
		}
		return s
	})
}

func TestBoltUpdateAndView(t *testing.T) {
	db, err := ixkv.OpenBolt(filepath.Join(t.TempDir(), "test.db"), ixkv.BoltOptions{Logger: storagetest.Logger(t)})
	if err != nil {
		t.Fatal(err)
	}
	defer db.Close()

	err = db.View(func(s *ixkv.BoltStorage) error {
		storagetest.NotFound(t, s, storagetest.K("'a"))
		storagetest.Eq(t, storagetest.Scan(t, s, nil, nil, ixkv.Ascending))
		if err := s.Write(storagetest.K("'a"), nil); err != ixkv.ErrReadOnly {
			t.Errorf("** Write in a read-only tx without a bucket = %v, wanted ErrReadOnly", err)
		}
		return nil
	})
	if err != nil {
		t.Fatal(err)
	}

	err = db.Update(func(s *ixkv.BoltStorage) error {
		storagetest.Fill(t, s, "'a='1", "'b='2")
		return nil
	})
	if err != nil {
		t.Fatal(err)
	}

	rollback := errTest("rollback")
	err = db.Update(func(s *ixkv.BoltStorage) error {
		storagetest.Fill(t, s, "'c='3")
		return rollback
	})
	if err != rollback {
		t.Fatalf("** Update = %v, wanted %v", err, rollback)
	}

	err = db.View(func(s *ixkv.BoltStorage) error {
		storagetest.Eq(t, storagetest.Scan(t, s, nil, nil, ixkv.Descending), "'b='2", "'a='1")
		if n := s.BucketStats().Keys; n != 2 {
			t.Errorf("** BucketStats().Keys = %d, wanted 2", n)
		}
		return nil
	})
	if err != nil {
		t.Fatal(err)
	}
}

type errTest string

func (e errTest) Error() string { return string(e) }
