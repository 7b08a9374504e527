package pebblestore

import (
	"log/slog"

	"github.com/cockroachdb/pebble/vfs"
)

// Config holds the tunables of a Store. Use Option functions to change them.
type Config struct {
	CacheSize    int64
	MemTableSize uint64
	MaxOpenFiles int
	SyncWrites   bool
	ReadOnly     bool

	// FS overrides the filesystem, e.g. vfs.NewMem() in tests.
	FS vfs.FS

	Logger *slog.Logger
}

func DefaultConfig() *Config {
	return &Config{
		CacheSize:    64 << 20,
		MemTableSize: 32 << 20,
		MaxOpenFiles: 1000,
		SyncWrites:   true,
	}
}

type Option func(*Config)

func WithCacheSize(n int64) Option {
	return func(c *Config) { c.CacheSize = n }
}

func WithMemTableSize(n uint64) Option {
	return func(c *Config) { c.MemTableSize = n }
}

func WithMaxOpenFiles(n int) Option {
	return func(c *Config) { c.MaxOpenFiles = n }
}

// WithSyncWrites controls whether commits wait for the WAL to reach disk.
func WithSyncWrites(sync bool) Option {
	return func(c *Config) { c.SyncWrites = sync }
}

// WithReadOnly opens the database without write access; writes then fail.
func WithReadOnly(ro bool) Option {
	return func(c *Config) { c.ReadOnly = ro }
}

func WithFS(fs vfs.FS) Option {
	return func(c *Config) { c.FS = fs }
}

func WithLogger(logger *slog.Logger) Option {
	return func(c *Config) { c.Logger = logger }
}
