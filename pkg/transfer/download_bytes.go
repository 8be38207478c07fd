package transfer

import (
	"context"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/objstream/objstream/pkg/backend"
)

// Range selects bytes [Start, End) of an object.
type Range struct {
	Start int64
	End   int64
}

// Len returns the range's byte length.
func (r Range) Len() int64 {
	return r.End - r.Start
}

// DownloadToBytes fetches the object at key (or the given sub-range) through
// parallel ranged reads and returns the concatenated bytes.
//
// An explicit range makes the metadata probe unnecessary. Results are
// gathered positionally, so the output preserves index order no matter how
// fetches complete. Fetch failures are not cancelled into siblings; the
// first error wins and the rest are discarded.
func DownloadToBytes(ctx context.Context, b backend.Backend, key string, rng *Range, opts DownloadOptions) ([]byte, error) {
	opts.normalize()

	var offset, total int64
	if rng != nil {
		offset, total = rng.Start, rng.Len()
	} else {
		meta, err := b.Head(ctx, key)
		if err != nil {
			return nil, err
		}
		total = meta.Size
	}

	// Single-chunk reads skip the pool entirely.
	if total <= opts.ChunkSize {
		if rng != nil {
			return b.GetRange(ctx, key, rng.Start, rng.End)
		}
		return b.Get(ctx, key)
	}

	limiter := newBandwidthLimiter(opts.BandwidthLimit, opts.ChunkSize)
	chunks := splitChunks(offset, total, opts.ChunkSize)
	parts := make([][]byte, len(chunks))

	// No shared context here: a failed chunk must not forcibly abort its
	// siblings, only discard their results.
	var g errgroup.Group
	g.SetLimit(opts.MaxConcurrency)
	for i, c := range chunks {
		g.Go(func() error {
			if err := limiter.waitN(ctx, int(c.Len())); err != nil {
				return err
			}
			data, err := b.GetRange(ctx, key, c.Start, c.End)
			if err != nil {
				return err
			}
			parts[i] = data
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	out := make([]byte, 0, total)
	for _, part := range parts {
		out = append(out, part...)
	}

	opts.Logger.Debug("download complete",
		zap.String("key", key), zap.Int64("bytes", int64(len(out))))
	return out, nil
}
