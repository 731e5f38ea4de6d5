// Command patriciactl inspects, builds, and verifies the on-disk
// Patricia-trie log store, and reports caching-orchestrator telemetry,
// following the flat cmd-xxx.go-per-subcommand layout of the teacher
// CLI's main.go.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sort"
	"syscall"

	"github.com/urfave/cli/v2"
	"k8s.io/klog/v2"
)

var gitCommitSHA = ""

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		interrupt := make(chan os.Signal, 1)
		signal.Notify(interrupt, syscall.SIGTERM, syscall.SIGINT)
		select {
		case <-interrupt:
			fmt.Println()
			klog.Info("received interrupt signal")
			cancel()
		case <-ctx.Done():
		}
		signal.Stop(interrupt)
	}()

	app := &cli.App{
		Name:        "patriciactl",
		Version:     gitCommitSHA,
		Description: "Inspect and manage an embedded Patricia-trie log store and its entity-iterable cache.",
		Commands: []*cli.Command{
			newCmdInspect(),
			newCmdBuild(),
			newCmdVerify(),
			newCmdCacheStats(),
		},
	}

	sort.Sort(cli.CommandsByName(app.Commands))

	if err := app.RunContext(ctx, os.Args); err != nil {
		klog.Fatal(err)
	}
}
