// Package snapshot implements the Exporter leaf by shelling out to the
// dataset tool (zfs/btrfs-style "send" semantics) via os/exec. This is the
// one leaf deliberately left on the standard library: no third-party
// ZFS/Btrfs Go binding exists, and the contract here is a thin process
// wrapper, not a concern a library would meaningfully improve (see
// DESIGN.md).
package snapshot

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
)

// Exporter shells out to a configurable command ("zfs" by default) to
// serialize a dataset snapshot into a file under outDir.
type Exporter struct {
	// Tool is the CLI binary to invoke, e.g. "zfs" or "btrfs".
	Tool string
}

// New constructs an Exporter for the given CLI tool ("zfs" if empty).
func New(tool string) *Exporter {
	if tool == "" {
		tool = "zfs"
	}
	return &Exporter{Tool: tool}
}

// Export runs `<tool> send [-i base] ref` for dataset and writes its stdout
// to outDir/<dataset>_<ref>.snap, returning that path.
func (e *Exporter) Export(ctx context.Context, outDir, dataset, base, ref string) (string, error) {
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return "", fmt.Errorf("create export dir %q: %w", outDir, err)
	}

	args := []string{"send"}
	if base != "" {
		args = append(args, "-i", qualify(dataset, base))
	}
	args = append(args, qualify(dataset, ref))

	filename := exportFilename(dataset, ref)
	path := filepath.Join(outDir, filename)

	out, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("create export file %q: %w", path, err)
	}
	defer out.Close()

	cmd := exec.CommandContext(ctx, e.Tool, args...)
	cmd.Stdout = out
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return "", fmt.Errorf("%s %s: %w (%s)", e.Tool, strings.Join(args, " "), err, stderr.String())
	}
	return path, nil
}

// Verify confirms that the exported file at path exists. It does not invoke
// the tool and does not check the file's content or the snapshot it came
// from.
func (e *Exporter) Verify(ctx context.Context, dataset, path string) error {
	if _, err := os.Stat(path); err != nil {
		return fmt.Errorf("exported snapshot file missing: %w", err)
	}
	return nil
}

// List enumerates the snapshots known for dataset via `<tool> list -t
// snapshot -H -o name`.
func (e *Exporter) List(ctx context.Context, dataset string) ([]string, error) {
	cmd := exec.CommandContext(ctx, e.Tool, "list", "-t", "snapshot", "-H", "-o", "name", dataset)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("%s list snapshot %s: %w (%s)", e.Tool, dataset, err, stderr.String())
	}
	lines := strings.Split(strings.TrimSpace(stdout.String()), "\n")
	out := make([]string, 0, len(lines))
	for _, l := range lines {
		if l = strings.TrimSpace(l); l != "" {
			out = append(out, l)
		}
	}
	return out, nil
}

// GetFilename returns the deterministic basename Export would choose for
// dataset's most recent snapshot, without actually exporting it.
func (e *Exporter) GetFilename(ctx context.Context, dataset string) (string, error) {
	snaps, err := e.List(ctx, dataset)
	if err != nil {
		return "", err
	}
	if len(snaps) == 0 {
		return "", fmt.Errorf("no snapshots found for dataset %q", dataset)
	}
	return exportFilename(dataset, snaps[len(snaps)-1]), nil
}

func qualify(dataset, snapshot string) string {
	if strings.Contains(snapshot, "@") {
		return snapshot
	}
	return dataset + "@" + snapshot
}

func exportFilename(dataset, ref string) string {
	safeDataset := strings.ReplaceAll(dataset, "/", "_")
	safeRef := strings.ReplaceAll(strings.ReplaceAll(ref, "@", "_"), "/", "_")
	return fmt.Sprintf("%s_%s.snap", safeDataset, safeRef)
}
