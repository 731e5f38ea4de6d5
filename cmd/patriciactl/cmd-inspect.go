package main

import (
	"fmt"

	"github.com/davecgh/go-spew/spew"
	"github.com/dustin/go-humanize"
	"github.com/urfave/cli/v2"

	"github.com/rpcpool/patricia-cache/addr"
	"github.com/rpcpool/patricia-cache/internal/logstore"
	"github.com/rpcpool/patricia-cache/patricia"
)

func newCmdInspect() *cli.Command {
	return &cli.Command{
		Name:        "inspect",
		Usage:       "Load a log file and print the node at a given address (address 0 by default).",
		Description: "Load a log file and print the node at a given address (address 0, the log's first record, by default).",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "log", Required: true, Usage: "path to the log file"},
			&cli.Uint64Flag{Name: "addr", Value: 0, Usage: "log address of the node to inspect (build prints the root's address)"},
			&cli.BoolFlag{Name: "dump", Usage: "spew-dump the full node structure instead of a summary"},
		},
		Action: func(c *cli.Context) error {
			store, err := logstore.Open(c.String("log"))
			if err != nil {
				return fmt.Errorf("open log: %w", err)
			}
			defer store.Close()

			tree := patricia.NewTree(store, addr.Address(c.Uint64("addr")))
			node, err := tree.Root()
			if err != nil {
				return fmt.Errorf("load node: %w", err)
			}

			if c.Bool("dump") {
				spew.Dump(node)
				return nil
			}

			fmt.Printf("log size:        %s\n", humanize.Bytes(uint64(store.Size())))
			fmt.Printf("node address:    %d\n", node.Address())
			fmt.Printf("key suffix:      %q\n", node.KeySuffix())
			fmt.Printf("has value:       %v\n", node.HasValue())
			if node.HasValue() {
				fmt.Printf("value:           %q (%s)\n", node.Value(), humanize.Bytes(uint64(len(node.Value()))))
			}
			fmt.Printf("children:        %d\n", node.ChildrenCount())
			if node.ChildrenCount() > 0 {
				fmt.Printf("child addr width: %d bytes\n", node.ChildAddressLength())
			}
			return nil
		},
	}
}
