package main

import (
	"bufio"
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/schollz/progressbar/v3"
	"github.com/urfave/cli/v2"

	"github.com/rpcpool/patricia-cache/internal/logstore"
)

// newCmdBuild builds a minimal single-level Patricia log from a flat
// tab-separated key/value input file, one "key\tvalue" pair per line.
// It is a demo/test fixture builder, not a general trie compressor: it
// does not merge shared key prefixes beyond the first byte, so every
// input key must start with a distinct byte. A full radix-compressing
// builder belongs to the real ingestion pipeline this stands in for,
// which is out of scope here (see DESIGN.md).
func newCmdBuild() *cli.Command {
	return &cli.Command{
		Name:        "build",
		Usage:       "Build a log file + single-level Patricia trie from a flat tab-separated key/value input.",
		Description: "Build a log file + single-level Patricia trie from a flat tab-separated key/value input.",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "input", Required: true, Usage: "path to a tab-separated key\\tvalue input file"},
			&cli.StringFlag{Name: "out", Required: true, Usage: "path to the log file to create"},
		},
		Action: func(c *cli.Context) error {
			pairs, err := readKVPairs(c.String("input"))
			if err != nil {
				return err
			}
			sort.Slice(pairs, func(i, j int) bool { return pairs[i].key[0] < pairs[j].key[0] })
			for i := 1; i < len(pairs); i++ {
				if pairs[i].key[0] == pairs[i-1].key[0] {
					return fmt.Errorf("keys %q and %q share first byte 0x%02x: the demo builder cannot compress beyond one level", pairs[i-1].key, pairs[i].key, pairs[i].key[0])
				}
			}

			store, err := logstore.Open(c.String("out"))
			if err != nil {
				return fmt.Errorf("open output log: %w", err)
			}
			defer store.Close()
			b := logstore.NewBuilder(store)

			bar := progressbar.Default(int64(len(pairs)), "building leaves")
			children := make([]logstore.ChildEntry, 0, len(pairs))
			for _, p := range pairs {
				leafAddr, err := b.AppendNode(p.key[1:], p.value, true, nil, 0, false)
				if err != nil {
					return fmt.Errorf("append leaf for key %q: %w", p.key, err)
				}
				children = append(children, logstore.ChildEntry{FirstByte: p.key[0], Address: leafAddr})
				_ = bar.Add(1)
			}

			rootAddr, err := b.AppendNode(nil, nil, false, children, 8, true)
			if err != nil {
				return fmt.Errorf("append root: %w", err)
			}

			fmt.Printf("wrote %d leaves, root at address %d\n", len(pairs), rootAddr)
			return nil
		},
	}
}

type kvPair struct {
	key   []byte
	value []byte
}

func readKVPairs(path string) ([]kvPair, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open input: %w", err)
	}
	defer f.Close()

	var pairs []kvPair
	scanner := bufio.NewScanner(f)
	for lineNo := 1; scanner.Scan(); lineNo++ {
		line := scanner.Text()
		if strings.TrimSpace(line) == "" {
			continue
		}
		parts := strings.SplitN(line, "\t", 2)
		if len(parts) != 2 || len(parts[0]) == 0 {
			return nil, fmt.Errorf("input line %d: expected \"key\\tvalue\" with a non-empty key", lineNo)
		}
		pairs = append(pairs, kvPair{key: []byte(parts[0]), value: []byte(parts[1])})
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("scan input: %w", err)
	}
	return pairs, nil
}
