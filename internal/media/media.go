// Package media implements the asset lifecycle for variant product media:
// ingestion of image and video payloads, signed URL resolution for stored
// video references, and best-effort cleanup of durable objects when the
// owning item goes away.
package media

import (
	"context"
	"io"
	"time"

	"github.com/pleasantpearl/pleasantpearl-backend/pkg/storage/imagecdn"
)

// ImageBackend uploads permanently public image assets and destroys them by
// public ID. Uploaded URLs never expire.
type ImageBackend interface {
	Upload(ctx context.Context, fileName string, body io.Reader) (imagecdn.UploadResult, error)
	Destroy(ctx context.Context, publicID string) error
}

// VideoStore is the durable private object store for video assets. Objects
// are only reachable through presigned GET URLs.
type VideoStore interface {
	Put(ctx context.Context, key string, body io.Reader, contentType string) error
	SignGetURL(ctx context.Context, key string, ttl time.Duration) (string, time.Time, error)
	Delete(ctx context.Context, key string) error
}

// FileInput is one uploaded payload handed to the pipeline. Open returns a
// fresh reader for the buffered content; the pipeline closes every reader it
// opens, on success and failure alike.
type FileInput struct {
	FileName    string
	ContentType string
	Size        int64
	Open        func() (io.ReadCloser, error)
}

// VariantInput is the per-color submission for one ingestion call.
type VariantInput struct {
	Color  string
	Images []FileInput
	Videos []FileInput
	Stock  int
}
