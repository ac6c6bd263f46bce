// Package hash provides two interchangeable Hasher leaves: a blake3 hasher
// (the default) and a sha256 hasher (the named alternate). The orchestrator
// treats a Hash as opaque and never records which algorithm produced it —
// picking between these two is a deployment-time constructor choice, not
// something the pipeline state machine is aware of.
package hash

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	hashpkg "hash"
	"io"
	"os"

	"lukechampine.com/blake3"
)

// blakeHasher wraps lukechampine.com/blake3 behind transform.Hasher.
type blakeHasher struct {
	h      hashpkg.Hash
	digest []byte
}

// NewBlake3 constructs the default Hasher leaf.
func NewBlake3() *blakeHasher {
	return &blakeHasher{h: blake3.New(32, nil)}
}

func (b *blakeHasher) Reset()            { b.h.Reset(); b.digest = nil }
func (b *blakeHasher) Update(p []byte)    { b.h.Write(p) }
func (b *blakeHasher) GetDigest() []byte {
	if b.digest == nil {
		b.digest = b.h.Sum(nil)
	}
	return b.digest
}
func (b *blakeHasher) GetHexDigest() string { return hex.EncodeToString(b.GetDigest()) }

func (b *blakeHasher) CalFile(ctx context.Context, path string) error {
	return calFile(ctx, b.h, path, func(sum []byte) { b.digest = sum })
}

// sha256Hasher wraps stdlib crypto/sha256 behind transform.Hasher. Kept
// stdlib deliberately — sha256 is a named alternate algorithm here, not a
// concern that needs a third-party binding.
type sha256Hasher struct {
	h      hashpkg.Hash
	digest []byte
}

// NewSHA256 constructs the alternate Hasher leaf.
func NewSHA256() *sha256Hasher {
	return &sha256Hasher{h: sha256.New()}
}

func (s *sha256Hasher) Reset()          { s.h.Reset(); s.digest = nil }
func (s *sha256Hasher) Update(p []byte) { s.h.Write(p) }
func (s *sha256Hasher) GetDigest() []byte {
	if s.digest == nil {
		s.digest = s.h.Sum(nil)
	}
	return s.digest
}
func (s *sha256Hasher) GetHexDigest() string { return hex.EncodeToString(s.GetDigest()) }

func (s *sha256Hasher) CalFile(ctx context.Context, path string) error {
	return calFile(ctx, s.h, path, func(sum []byte) { s.digest = sum })
}

// calFile streams path's content through h and records the resulting
// digest via record. Shared by both hashers since CalFile's contract
// ("reset then hash a whole file") does not depend on the algorithm.
func calFile(ctx context.Context, h hashpkg.Hash, path string, record func([]byte)) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	if _, err := io.Copy(h, f); err != nil {
		return err
	}
	record(h.Sum(nil))
	return ctx.Err()
}
