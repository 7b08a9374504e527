package main

import (
	"encoding/hex"
	"encoding/json"
	"fmt"

	"github.com/andreyvit/ixkv"
	"github.com/urfave/cli/v2"
	"go.uber.org/zap"
)

var (
	hexKeyFlag = cli.BoolFlag{
		Name:  "hex",
		Usage: "key segments are given in hex",
	}
	msgpackFlag = cli.BoolFlag{
		Name:  "msgpack",
		Usage: "decode the value as msgpack and print it as JSON",
	}
)

var Get = cli.Command{
	Action:    get,
	Name:      "get",
	Usage:     "prints the value of one record",
	ArgsUsage: "<namespace> <key segment>...",
	Flags: []cli.Flag{
		&hexKeyFlag,
		&msgpackFlag,
	},
}

func get(c *cli.Context) error {
	if c.Args().Len() < 2 {
		return fmt.Errorf("expected a namespace and at least one key segment")
	}
	args := c.Args().Slice()
	ns := args[0]
	var segs [][]byte
	for _, a := range args[1:] {
		if c.Bool(hexKeyFlag.Name) {
			seg, err := hex.DecodeString(a)
			if err != nil {
				return fmt.Errorf("invalid hex key segment %q: %w", a, err)
			}
			segs = append(segs, seg)
		} else {
			segs = append(segs, []byte(a))
		}
	}
	key := ixkv.RawKey(ns, segs...)

	return withStore(c, func(store ixkv.Storage, log *zap.SugaredLogger) error {
		value, found, err := store.Read(key)
		if err != nil {
			return err
		}
		if !found {
			return fmt.Errorf("%s/%x: %w", ns, key, ixkv.ErrNotFound)
		}
		log.Debugw("found", "key", hex.EncodeToString(key), "size", len(value))
		if !c.Bool(msgpackFlag.Name) {
			fmt.Fprintln(c.App.Writer, hex.EncodeToString(value))
			return nil
		}
		v, err := ixkv.MsgPack[any]().Decode(value)
		if err != nil {
			return err
		}
		out, err := json.MarshalIndent(v, "", "  ")
		if err != nil {
			return err
		}
		fmt.Fprintln(c.App.Writer, string(out))
		return nil
	})
}
