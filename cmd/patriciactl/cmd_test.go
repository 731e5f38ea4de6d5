package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/urfave/cli/v2"
)

func newTestApp() *cli.App {
	return &cli.App{
		Name: "patriciactl",
		Commands: []*cli.Command{
			newCmdInspect(),
			newCmdBuild(),
			newCmdVerify(),
			newCmdCacheStats(),
		},
	}
}

func TestBuildInspectVerifyRoundTrip(t *testing.T) {
	dir := t.TempDir()
	input := filepath.Join(dir, "kv.tsv")
	logPath := filepath.Join(dir, "log.db")

	require.NoError(t, os.WriteFile(input, []byte("apple\tfruit\nbanana\tyellow\n"), 0o644))

	app := newTestApp()
	err := app.Run([]string{"patriciactl", "build", "--input", input, "--out", logPath})
	require.NoError(t, err)

	info, err := os.Stat(logPath)
	require.NoError(t, err)
	require.Greater(t, info.Size(), int64(0))

	app = newTestApp()
	err = app.Run([]string{"patriciactl", "inspect", "--log", logPath})
	require.NoError(t, err)

	app = newTestApp()
	err = app.Run([]string{"patriciactl", "verify", "--log", logPath})
	require.NoError(t, err)
}

func TestBuildRejectsSharedFirstByte(t *testing.T) {
	dir := t.TempDir()
	input := filepath.Join(dir, "kv.tsv")
	logPath := filepath.Join(dir, "log.db")
	require.NoError(t, os.WriteFile(input, []byte("apple\t1\napricot\t2\n"), 0o644))

	app := newTestApp()
	err := app.Run([]string{"patriciactl", "build", "--input", input, "--out", logPath})
	require.Error(t, err)
}

func TestBuildRejectsMalformedLine(t *testing.T) {
	dir := t.TempDir()
	input := filepath.Join(dir, "kv.tsv")
	logPath := filepath.Join(dir, "log.db")
	require.NoError(t, os.WriteFile(input, []byte("no-tab-here\n"), 0o644))

	app := newTestApp()
	err := app.Run([]string{"patriciactl", "build", "--input", input, "--out", logPath})
	require.Error(t, err)
}
