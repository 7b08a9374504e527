package main

import (
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/andreyvit/ixkv"
	"github.com/andreyvit/ixkv/ldbstore"
	"github.com/andreyvit/ixkv/pebblestore"
	"github.com/spf13/viper"
	"github.com/syndtr/goleveldb/leveldb/opt"
	"github.com/urfave/cli/v2"
	"go.uber.org/zap"
)

type config struct {
	Backend string
	Path    string
	Bucket  string
	Verbose bool
}

// loadConfig merges .ixkv.yaml, IXKV_* environment variables and command
// line flags, in increasing priority.
func loadConfig(c *cli.Context) (*config, error) {
	v := viper.New()
	v.SetConfigName(".ixkv")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.SetEnvPrefix("IXKV")
	v.AutomaticEnv()
	v.SetDefault("backend", "bolt")
	v.SetDefault("bucket", ixkv.DefaultBoltBucket)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("reading config: %w", err)
		}
	}

	cfg := &config{
		Backend: v.GetString("backend"),
		Path:    v.GetString("path"),
		Bucket:  v.GetString("bucket"),
		Verbose: v.GetBool("verbose"),
	}
	if c.IsSet(backendFlag.Name) {
		cfg.Backend = c.String(backendFlag.Name)
	}
	if c.IsSet(pathFlag.Name) {
		cfg.Path = c.String(pathFlag.Name)
	}
	if c.IsSet(bucketFlag.Name) {
		cfg.Bucket = c.String(bucketFlag.Name)
	}
	if c.IsSet(verboseFlag.Name) {
		cfg.Verbose = c.Bool(verboseFlag.Name)
	}
	if cfg.Path == "" {
		return nil, fmt.Errorf("missing database path: use --%s or IXKV_PATH", pathFlag.Name)
	}
	return cfg, nil
}

func newLogger(cfg *config) (*zap.Logger, error) {
	zc := zap.NewProductionConfig()
	if cfg.Verbose {
		zc.Level = zap.NewAtomicLevelAt(zap.DebugLevel)
	}
	return zc.Build()
}

// withStore opens the configured store read-only where the backend allows
// it and passes it to fn.
func withStore(c *cli.Context, fn func(store ixkv.Storage, log *zap.SugaredLogger) error) error {
	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}
	zl, err := newLogger(cfg)
	if err != nil {
		return err
	}
	defer zl.Sync()
	log := zl.Sugar()
	// backends log through slog
	level := slog.LevelWarn
	if cfg.Verbose {
		level = slog.LevelDebug
	}
	slogger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	log.Debugw("opening store", "backend", cfg.Backend, "path", cfg.Path)
	switch cfg.Backend {
	case "bolt":
		db, err := ixkv.OpenBolt(cfg.Path, ixkv.BoltOptions{
			Bucket:   cfg.Bucket,
			ReadOnly: true,
			Logger:   slogger,
		})
		if err != nil {
			return err
		}
		defer db.Close()
		return db.View(func(s *ixkv.BoltStorage) error {
			return fn(s, log)
		})

	case "leveldb":
		s, err := ldbstore.Open(cfg.Path, &opt.Options{ReadOnly: true}, ldbstore.WithLogger(slogger))
		if err != nil {
			return err
		}
		defer s.Close()
		return fn(s, log)

	case "pebble":
		s, err := pebblestore.Open(cfg.Path, pebblestore.WithLogger(slogger), pebblestore.WithReadOnly(true))
		if err != nil {
			return err
		}
		defer s.Close()
		return fn(s, log)

	default:
		return fmt.Errorf("unknown backend %q, expected bolt, leveldb or pebble", cfg.Backend)
	}
}
