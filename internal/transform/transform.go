// Package transform defines the capability interfaces every leaf
// transformer must satisfy. Each is side-effecting on the filesystem or
// network and returns a path or digest; none of them know about the
// orchestrator's persisted state. Concrete leaves live in the sibling
// packages (snapshot, splitter, compress, encrypt, hash, remote); tests
// substitute deterministic fakes constructed directly against these
// interfaces — there is no global registry, everything is injected at
// construction.
package transform

import (
	"context"
	"errors"
)

// ErrEndOfStream is returned by Splitter.Split when asked for an index past
// the last chunk the input file actually has. Callers combine this with
// split_qty to know when to stop producing splits.
var ErrEndOfStream = errors.New("end of stream")

// Exporter serializes a point-in-time dataset snapshot into a file and can
// verify/enumerate what it has exported.
type Exporter interface {
	Export(ctx context.Context, outDir, dataset, base, ref string) (path string, err error)
	Verify(ctx context.Context, dataset, path string) error
	List(ctx context.Context, dataset string) ([]string, error)
	GetFilename(ctx context.Context, dataset string) (string, error)
}

// Splitter produces the index-th chunk of an input file. It is stateful in
// the sense that it is parameterized by the same input across calls; split
// beyond the last chunk must report ErrEndOfStream so the caller (together
// with split_qty) knows to stop.
type Splitter interface {
	Split(ctx context.Context, input string, index uint64) (path string, err error)
	Extension(index uint64) string
}

// Compressor compresses a file and can verify the result by decompressing
// at least a prefix of it.
type Compressor interface {
	Compress(ctx context.Context, input string) (path string, err error)
	Verify(ctx context.Context, path string) error
	Extension() string
}

// Encryptor encrypts/decrypts a file. The orchestrator always performs a
// round trip (encrypt then decrypt then hash-compare) before trusting
// ciphertext enough to upload it.
type Encryptor interface {
	Encrypt(ctx context.Context, input string) (path string, err error)
	Decrypt(ctx context.Context, input string) (path string, err error)
	Extension() string
}

// Hasher computes content digests. The orchestrator always calls Reset
// before CalFile. The identity of the algorithm behind a Hasher is a
// deployment-wide constant the orchestrator never records in persisted
// state.
type Hasher interface {
	Reset()
	Update(b []byte)
	CalFile(ctx context.Context, path string) error
	GetDigest() []byte
	GetHexDigest() string
}

// RemoteUploader uploads a local file to a remote destination key.
// Idempotency on the destination key is desirable but not required by the
// orchestrator — cleanup only happens after a successful upload.
type RemoteUploader interface {
	Upload(ctx context.Context, src, dst string, tags, metadata map[string]string) error
}
