package main

import (
	"fmt"

	"github.com/andreyvit/ixkv"
	"github.com/urfave/cli/v2"
	"go.uber.org/zap"
)

var StatsCmd = cli.Command{
	Action: stats,
	Name:   "stats",
	Usage:  "prints record counts and sizes per namespace",
}

func stats(c *cli.Context) error {
	return withStore(c, func(store ixkv.Storage, log *zap.SugaredLogger) error {
		all, invalid, err := ixkv.Stats(store)
		if err != nil {
			return err
		}
		w := c.App.Writer
		fmt.Fprintf(w, "%-32s %10s %12s %12s\n", "namespace", "records", "key bytes", "value bytes")
		var total ixkv.NamespaceStats
		for _, s := range all {
			fmt.Fprintf(w, "%-32s %10d %12d %12d\n", s.Namespace, s.Records, s.KeySize, s.ValueSize)
			total.Records += s.Records
			total.KeySize += s.KeySize
			total.ValueSize += s.ValueSize
		}
		fmt.Fprintf(w, "%-32s %10d %12d %12d\n", "TOTAL", total.Records, total.KeySize, total.ValueSize)
		if invalid > 0 {
			log.Warnw("keys outside of any namespace", "count", invalid)
		}
		return nil
	})
}
