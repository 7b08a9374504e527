package main

import (
	"fmt"

	"github.com/andreyvit/ixkv"
	"github.com/urfave/cli/v2"
	"go.uber.org/zap"
)

var (
	noRecordsFlag = cli.BoolFlag{
		Name:  "no-records",
		Usage: "print namespace headers and stats only",
	}
)

var Dump = cli.Command{
	Action: dump,
	Name:   "dump",
	Usage:  "prints every record of the store, grouped by namespace",
	Flags: []cli.Flag{
		&noRecordsFlag,
	},
}

func dump(c *cli.Context) error {
	flags := ixkv.DumpAll
	if c.Bool(noRecordsFlag.Name) {
		flags = ixkv.DumpNamespaceHeaders | ixkv.DumpStats
	}
	return withStore(c, func(store ixkv.Storage, log *zap.SugaredLogger) error {
		out, err := ixkv.Dump(store, flags)
		if err != nil {
			return err
		}
		fmt.Fprint(c.App.Writer, out)
		log.Debugw("dump finished", "bytes", len(out))
		return nil
	})
}
