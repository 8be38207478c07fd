package transfer

import (
	"context"
	"errors"
	"io"

	"go.uber.org/zap"

	"github.com/objstream/objstream/pkg/backend"
)

// UploadOptions configures a chunked upload.
type UploadOptions struct {
	// ChunkSize is the part size. Zero uses backend.DefaultChunkSize.
	ChunkSize int64

	// MaxConcurrency bounds in-flight parts. Zero uses
	// backend.DefaultMaxConcurrency.
	MaxConcurrency int

	// BandwidthLimit caps throughput in bytes per second. Zero is unlimited.
	BandwidthLimit int64

	// Logger receives per-operation debug logs. Nil is silent.
	Logger *zap.Logger
}

func (o *UploadOptions) normalize() {
	if o.ChunkSize <= 0 {
		o.ChunkSize = backend.DefaultChunkSize
	}
	if o.MaxConcurrency <= 0 {
		o.MaxConcurrency = backend.DefaultMaxConcurrency
	}
	if o.Logger == nil {
		o.Logger = zap.NewNop()
	}
}

// Upload streams src into the backend as a multipart upload, pacing the
// producer against the in-flight part budget. Sources smaller than one chunk
// use a single put instead of a multipart session.
//
// Any write or finalize failure aborts the whole upload; partially uploaded
// parts are the backend's garbage to collect.
func Upload(ctx context.Context, b backend.Backend, src io.Reader, key string, opts UploadOptions) (int64, error) {
	opts.normalize()
	limiter := newBandwidthLimiter(opts.BandwidthLimit, opts.ChunkSize)

	buf := make([]byte, opts.ChunkSize)
	n, err := readChunk(src, buf)
	if err != nil {
		return 0, err
	}

	// Sub-chunk sources skip the multipart session entirely.
	if int64(n) < opts.ChunkSize {
		if err := limiter.waitN(ctx, n); err != nil {
			return 0, err
		}
		if err := b.Put(ctx, key, buf[:n]); err != nil {
			return 0, err
		}
		opts.Logger.Debug("upload complete",
			zap.String("key", key), zap.Int64("bytes", int64(n)), zap.Bool("multipart", false))
		return int64(n), nil
	}

	w, err := b.PutMultipart(ctx, key)
	if err != nil {
		return 0, err
	}

	var written int64
	for n > 0 {
		// Backpressure: the producer never outruns the concurrency budget.
		if err := w.WaitForCapacity(ctx, opts.MaxConcurrency); err != nil {
			_ = w.Abort(ctx)
			return written, err
		}
		if err := limiter.waitN(ctx, n); err != nil {
			_ = w.Abort(ctx)
			return written, err
		}
		w.Write(buf[:n])
		written += int64(n)

		n, err = readChunk(src, buf)
		if err != nil {
			_ = w.Abort(ctx)
			return written, err
		}
	}

	if err := w.Finish(ctx); err != nil {
		return written, err
	}

	opts.Logger.Debug("upload complete",
		zap.String("key", key), zap.Int64("bytes", written), zap.Bool("multipart", true))
	return written, nil
}

// readChunk fills buf as far as the source allows. Returns the byte count
// with a nil error at end of source.
func readChunk(r io.Reader, buf []byte) (int, error) {
	n, err := io.ReadFull(r, buf)
	if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
		return n, nil
	}
	return n, err
}
