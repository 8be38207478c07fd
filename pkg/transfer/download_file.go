package transfer

import (
	"context"
	"os"
	"path/filepath"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"

	"github.com/objstream/objstream/pkg/backend"
)

// DownloadOptions configures a chunked download.
type DownloadOptions struct {
	// ChunkSize is the ranged-read size. Zero uses backend.DefaultChunkSize.
	ChunkSize int64

	// MaxConcurrency bounds concurrent ranged reads. Zero uses
	// backend.DefaultMaxConcurrency.
	MaxConcurrency int

	// BandwidthLimit caps throughput in bytes per second. Zero is unlimited.
	BandwidthLimit int64

	// Logger receives per-operation debug logs. Nil is silent.
	Logger *zap.Logger
}

func (o *DownloadOptions) normalize() {
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

// fetchResult carries one chunk's outcome from a fetcher to the writer.
type fetchResult struct {
	chunk Chunk
	data  []byte
	err   error
}

// DownloadToFile fetches the object at key through parallel ranged reads and
// assembles it at dest, returning the total byte count.
//
// Chunks may complete in any order; each is written at its own offset, so
// correctness never depends on arrival order. The temp file lives in dest's
// directory because the final rename must stay on one filesystem. The first
// chunk error fails the operation; sibling fetches finish and are discarded.
func DownloadToFile(ctx context.Context, b backend.Backend, key, dest string, opts DownloadOptions) (int64, error) {
	opts.normalize()

	meta, err := b.Head(ctx, key)
	if err != nil {
		return 0, err
	}
	total := meta.Size

	dir := filepath.Dir(dest)
	tmp, err := os.CreateTemp(dir, ".objstream-*.tmp")
	if err != nil {
		return 0, err
	}
	tmpName := tmp.Name()
	cleanup := func() {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
	}

	if err := tmp.Truncate(total); err != nil {
		cleanup()
		return 0, err
	}

	if err := fetchToFile(ctx, b, key, tmp, total, opts); err != nil {
		cleanup()
		return 0, err
	}

	if err := tmp.Sync(); err != nil {
		cleanup()
		return 0, err
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return 0, err
	}
	if err := os.Rename(tmpName, dest); err != nil {
		_ = os.Remove(tmpName)
		return 0, err
	}

	opts.Logger.Debug("download complete",
		zap.String("key", key), zap.String("dest", dest), zap.Int64("bytes", total))
	return total, nil
}

// fetchToFile runs the fetch pool and the single writer that owns out.
func fetchToFile(ctx context.Context, b backend.Backend, key string, out *os.File, total int64, opts DownloadOptions) error {
	chunks := splitChunks(0, total, opts.ChunkSize)
	if len(chunks) == 0 {
		return nil
	}

	limiter := newBandwidthLimiter(opts.BandwidthLimit, opts.ChunkSize)
	results := make(chan fetchResult, opts.MaxConcurrency)

	// One writer owns the output file. Out-of-order arrivals land at their
	// offset; no reordering buffer exists. After the first error the writer
	// keeps draining so in-flight fetchers never block on send.
	writeDone := make(chan error, 1)
	go func() {
		var firstErr error
		for res := range results {
			if firstErr != nil {
				continue
			}
			if res.err != nil {
				firstErr = res.err
				continue
			}
			if _, err := out.WriteAt(res.data, res.chunk.Start); err != nil {
				firstErr = err
			}
		}
		writeDone <- firstErr
	}()

	sem := semaphore.NewWeighted(int64(opts.MaxConcurrency))
	var wg sync.WaitGroup
	var admitErr error
	for _, c := range chunks {
		if err := sem.Acquire(ctx, 1); err != nil {
			admitErr = err
			break
		}
		wg.Add(1)
		go func(c Chunk) {
			defer wg.Done()
			defer sem.Release(1)
			if err := limiter.waitN(ctx, int(c.Len())); err != nil {
				results <- fetchResult{chunk: c, err: err}
				return
			}
			data, err := b.GetRange(ctx, key, c.Start, c.End)
			results <- fetchResult{chunk: c, data: data, err: err}
		}(c)
	}

	wg.Wait()
	close(results)

	if err := <-writeDone; err != nil {
		return err
	}
	return admitErr
}
