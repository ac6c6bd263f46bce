// Package splitter implements the Splitter leaf: a fixed-size,
// index-addressed chunker over an afero.Fs file. Each call to Split reads
// one chunkSize window of the input and writes it to a sibling file named
// by Extension(index), so a resumed pipeline always regenerates the same
// split path for the same index.
package splitter

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/afero"

	"github.com/duskvault/snaprelay/internal/transform"
)

// Splitter chunks a file into fixed-size, index-addressed parts.
type Splitter struct {
	fs        afero.Fs
	chunkSize int64
}

// New constructs a Splitter that produces chunkSize-byte splits (the last
// split may be shorter). fs is injected so tests run against
// afero.NewMemMapFs().
func New(fs afero.Fs, chunkSize int64) *Splitter {
	if chunkSize <= 0 {
		chunkSize = 64 << 20 // 64 MiB default
	}
	return &Splitter{fs: fs, chunkSize: chunkSize}
}

// Extension returns the index-dependent suffix for the index-th split,
// e.g. "part000", "part001". The orchestrator treats this as an opaque
// string and only composes it onto the exported basename.
func (s *Splitter) Extension(index uint64) string {
	return fmt.Sprintf("part%03d", index)
}

// Split produces the index-th chunk of input. Split beyond the last chunk
// reports transform.ErrEndOfStream so the caller, together with
// split_qty, knows to stop.
func (s *Splitter) Split(ctx context.Context, input string, index uint64) (string, error) {
	in, err := s.fs.Open(input)
	if err != nil {
		return "", fmt.Errorf("open input %q: %w", input, err)
	}
	defer in.Close()

	info, err := in.Stat()
	if err != nil {
		return "", fmt.Errorf("stat input %q: %w", input, err)
	}

	offset := int64(index) * s.chunkSize
	if offset >= info.Size() {
		return "", transform.ErrEndOfStream
	}

	if _, err := in.Seek(offset, io.SeekStart); err != nil {
		return "", fmt.Errorf("seek input %q: %w", input, err)
	}

	outPath := input + "." + s.Extension(index)
	out, err := s.fs.Create(outPath)
	if err != nil {
		return "", fmt.Errorf("create split %q: %w", outPath, err)
	}
	defer out.Close()

	if _, err := io.CopyN(out, in, s.chunkSize); err != nil && err != io.EOF {
		return "", fmt.Errorf("write split %q: %w", outPath, err)
	}
	return outPath, ctx.Err()
}
