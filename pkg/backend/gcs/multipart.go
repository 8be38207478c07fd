package gcs

import (
	"context"

	"cloud.google.com/go/storage"

	"github.com/objstream/objstream/pkg/backend"
)

// PutMultipart begins a chunked upload session for key.
//
// GCS has no part-based multipart API; the storage.Writer streams through a
// resumable upload, flushing in ChunkSize units. Pipelining happens inside
// the writer, so WaitForCapacity only has to surface deferred errors.
func (b *Backend) PutMultipart(ctx context.Context, key string) (backend.MultipartWriter, error) {
	wctx, cancel := context.WithCancel(ctx)
	w := b.bucket.Object(key).NewWriter(wctx)
	w.ChunkSize = b.chunkSize

	return &resumableWriter{backend: b, key: key, w: w, cancel: cancel}, nil
}

type resumableWriter struct {
	backend *Backend
	key     string
	w       *storage.Writer
	cancel  context.CancelFunc
	err     error
}

func (rw *resumableWriter) WaitForCapacity(ctx context.Context, n int) error {
	if rw.err != nil {
		return rw.err
	}
	return ctx.Err()
}

func (rw *resumableWriter) Write(p []byte) {
	if rw.err != nil {
		return
	}
	if _, err := rw.w.Write(p); err != nil {
		rw.err = rw.backend.wrapError("Write", rw.key, err)
	}
}

func (rw *resumableWriter) Finish(ctx context.Context) error {
	if rw.err != nil {
		rw.cancel()
		return rw.err
	}
	if err := rw.w.Close(); err != nil {
		rw.cancel()
		return rw.backend.wrapError("Finish", rw.key, err)
	}
	rw.cancel()
	return nil
}

// Abort cancels the resumable upload by tearing down its context.
func (rw *resumableWriter) Abort(ctx context.Context) error {
	rw.cancel()
	return nil
}
