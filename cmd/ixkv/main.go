package main

import (
	"fmt"
	"os"

	"github.com/urfave/cli/v2"
)

// Run using
//  go run ./cmd/ixkv <command> <flags>

var (
	backendFlag = cli.StringFlag{
		Name:  "backend",
		Usage: "storage backend: bolt, leveldb or pebble (env IXKV_BACKEND)",
	}
	pathFlag = cli.StringFlag{
		Name:  "path",
		Usage: "database file or directory (env IXKV_PATH)",
	}
	bucketFlag = cli.StringFlag{
		Name:  "bucket",
		Usage: "bolt bucket holding the records (env IXKV_BUCKET)",
	}
	verboseFlag = cli.BoolFlag{
		Name:  "verbose",
		Usage: "enable debug logging",
	}
)

func main() {
	if err := newApp().Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newApp() *cli.App {
	return &cli.App{
		Name:  "ixkv",
		Usage: "inspect ixkv stores",
		Flags: []cli.Flag{
			&backendFlag,
			&pathFlag,
			&bucketFlag,
			&verboseFlag,
		},
		Commands: []*cli.Command{
			&Dump,
			&StatsCmd,
			&Get,
		},
	}
}
