// Package compress implements the Compressor leaf via
// github.com/klauspost/compress/zstd.
package compress

import (
	"context"
	"fmt"
	"io"

	"github.com/klauspost/compress/zstd"
	"github.com/spf13/afero"
)

// Compressor zstd-compresses a file into a sibling ".zst"-suffixed file,
// leaving the input as it is, and verifies it by decompressing the whole
// stream.
type Compressor struct {
	fs    afero.Fs
	level zstd.EncoderLevel
}

// New constructs a Compressor at the given zstd level (zstd.SpeedDefault if
// zero-valued).
func New(fs afero.Fs, level zstd.EncoderLevel) *Compressor {
	if level == 0 {
		level = zstd.SpeedDefault
	}
	return &Compressor{fs: fs, level: level}
}

// Extension is the fixed suffix for zstd-compressed output.
func (c *Compressor) Extension() string { return "zst" }

// Compress writes input's zstd-compressed content to input+".zst".
func (c *Compressor) Compress(ctx context.Context, input string) (string, error) {
	in, err := c.fs.Open(input)
	if err != nil {
		return "", fmt.Errorf("open input %q: %w", input, err)
	}
	defer in.Close()

	outPath := input + "." + c.Extension()
	out, err := c.fs.Create(outPath)
	if err != nil {
		return "", fmt.Errorf("create %q: %w", outPath, err)
	}
	defer out.Close()

	enc, err := zstd.NewWriter(out, zstd.WithEncoderLevel(c.level))
	if err != nil {
		return "", fmt.Errorf("new zstd writer: %w", err)
	}
	if _, err := io.Copy(enc, in); err != nil {
		_ = enc.Close()
		return "", fmt.Errorf("compress %q: %w", input, err)
	}
	if err := enc.Close(); err != nil {
		return "", fmt.Errorf("close zstd writer: %w", err)
	}
	return outPath, ctx.Err()
}

// Verify decompresses path (a zstd stream) to the end to confirm it is a
// well-formed stream.
func (c *Compressor) Verify(ctx context.Context, path string) error {
	f, err := c.fs.Open(path)
	if err != nil {
		return fmt.Errorf("open %q: %w", path, err)
	}
	defer f.Close()

	dec, err := zstd.NewReader(f)
	if err != nil {
		return fmt.Errorf("new zstd reader: %w", err)
	}
	defer dec.Close()

	if _, err := io.Copy(io.Discard, dec); err != nil {
		return fmt.Errorf("verify zstd stream %q: %w", path, err)
	}
	return ctx.Err()
}
