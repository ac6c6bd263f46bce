// Package remote implements the RemoteUploader leaf via
// cloud.google.com/go/storage, exercising the Upload/tags/metadata
// contract.
package remote

import (
	"context"
	"fmt"
	"io"

	"cloud.google.com/go/storage"
	"github.com/spf13/afero"
)

// Uploader uploads local files into a single GCS bucket under an optional
// key prefix.
type Uploader struct {
	fs     afero.Fs
	client *storage.Client
	bucket string
	prefix string
}

// New constructs an Uploader. client is injected so tests can swap in a
// fake GCS server (storage.Client supports a custom HTTP transport/endpoint
// for exactly this purpose).
func New(fs afero.Fs, client *storage.Client, bucket, prefix string) *Uploader {
	return &Uploader{fs: fs, client: client, bucket: bucket, prefix: prefix}
}

// Upload copies src (a local file) to the object key dst within the
// configured bucket/prefix. GCS has no first-class "tags" concept the way
// S3 does, so tags are folded into object metadata under a "tag-" prefix
// alongside metadata proper.
func (u *Uploader) Upload(ctx context.Context, src, dst string, tags, metadata map[string]string) error {
	f, err := u.fs.Open(src)
	if err != nil {
		return fmt.Errorf("open %q: %w", src, err)
	}
	defer f.Close()

	key := dst
	if u.prefix != "" {
		key = u.prefix + "/" + dst
	}

	obj := u.client.Bucket(u.bucket).Object(key)
	w := obj.NewWriter(ctx)
	w.Metadata = mergedMetadata(tags, metadata)

	if _, err := io.Copy(w, f); err != nil {
		_ = w.Close()
		return fmt.Errorf("upload %q to gs://%s/%s: %w", src, u.bucket, key, err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("finalize upload gs://%s/%s: %w", u.bucket, key, err)
	}
	return nil
}

func mergedMetadata(tags, metadata map[string]string) map[string]string {
	out := make(map[string]string, len(tags)+len(metadata))
	for k, v := range metadata {
		out[k] = v
	}
	for k, v := range tags {
		out["tag-"+k] = v
	}
	return out
}
