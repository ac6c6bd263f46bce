package hash

import (
	"context"
	"crypto/sha256"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	"lukechampine.com/blake3"
)

func writeTempFile(t *testing.T, content []byte) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "input")
	require.NoError(t, os.WriteFile(path, content, 0o644))
	return path
}

func TestBlake3HasherMatchesReferenceDigest(t *testing.T) {
	content := []byte("snapshot stream contents")
	path := writeTempFile(t, content)

	h := NewBlake3()
	h.Reset()
	require.NoError(t, h.CalFile(context.Background(), path))

	want := blake3.Sum256(content)
	require.Equal(t, want[:], h.GetDigest())
}

func TestSHA256HasherMatchesReferenceDigest(t *testing.T) {
	content := []byte("snapshot stream contents")
	path := writeTempFile(t, content)

	h := NewSHA256()
	h.Reset()
	require.NoError(t, h.CalFile(context.Background(), path))

	want := sha256.Sum256(content)
	require.Equal(t, want[:], h.GetDigest())
}

func TestResetClearsPriorDigest(t *testing.T) {
	path1 := writeTempFile(t, []byte("first"))
	path2 := writeTempFile(t, []byte("second, different length"))

	h := NewBlake3()
	require.NoError(t, h.CalFile(context.Background(), path1))
	d1 := append([]byte(nil), h.GetDigest()...)

	h.Reset()
	require.NoError(t, h.CalFile(context.Background(), path2))
	d2 := h.GetDigest()

	require.NotEqual(t, d1, d2)
}

func TestGetHexDigestIsLowercaseHex(t *testing.T) {
	path := writeTempFile(t, []byte("x"))
	h := NewBlake3()
	require.NoError(t, h.CalFile(context.Background(), path))
	hexDigest := h.GetHexDigest()
	require.Len(t, hexDigest, 64) // 32-byte digest -> 64 hex chars
}
