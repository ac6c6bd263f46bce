package snapshot

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

// fakeTool writes a shell script standing in for the zfs/btrfs binary so
// Export/List can be exercised without a real dataset tool present.
func fakeTool(t *testing.T, script string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "fake-zfs")
	require.NoError(t, os.WriteFile(path, []byte("#!/bin/sh\n"+script), 0o755))
	return path
}

func TestExportWritesCommandStdoutToExportFile(t *testing.T) {
	tool := fakeTool(t, `
case "$1" in
send) echo -n "fake-stream-bytes" ;;
esac
`)
	e := New(tool)
	outDir := t.TempDir()

	path, err := e.Export(context.Background(), outDir, "tank/data", "", "tank/data@2024-01-01")
	require.NoError(t, err)
	require.Equal(t, filepath.Join(outDir, "tank_data_tank_data_2024-01-01.snap"), path)

	got, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Equal(t, "fake-stream-bytes", string(got))
}

func TestExportPropagatesCommandFailure(t *testing.T) {
	tool := fakeTool(t, `echo "boom" 1>&2; exit 1`)
	e := New(tool)

	_, err := e.Export(context.Background(), t.TempDir(), "tank/data", "", "tank/data@x")
	require.Error(t, err)
}

func TestListParsesNewlineSeparatedOutput(t *testing.T) {
	tool := fakeTool(t, `
case "$1" in
list) printf "tank/data@2024-01-01\ntank/data@2024-01-02\n" ;;
esac
`)
	e := New(tool)

	snaps, err := e.List(context.Background(), "tank/data")
	require.NoError(t, err)
	require.Equal(t, []string{"tank/data@2024-01-01", "tank/data@2024-01-02"}, snaps)
}

func TestGetFilenameUsesMostRecentSnapshot(t *testing.T) {
	tool := fakeTool(t, `
case "$1" in
list) printf "tank/data@2024-01-01\ntank/data@2024-01-02\n" ;;
esac
`)
	e := New(tool)

	name, err := e.GetFilename(context.Background(), "tank/data")
	require.NoError(t, err)
	require.Equal(t, "tank_data_tank_data_2024-01-02.snap", name)
}

func TestVerifyFailsWhenExportedFileMissing(t *testing.T) {
	e := New("unused")
	err := e.Verify(context.Background(), "tank/data", filepath.Join(t.TempDir(), "missing.snap"))
	require.Error(t, err)
}

func TestNewDefaultsToolToZFS(t *testing.T) {
	e := New("")
	require.Equal(t, "zfs", e.Tool)
}
