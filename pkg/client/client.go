// Package client exposes the accelerated object-storage operation surface:
// single-shot put/get, whole-file transfers, chunked multipart transfers,
// and recursive listing, all against a session-managed backend handle.
package client

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"go.uber.org/zap"

	"github.com/objstream/objstream/pkg/backend"
	"github.com/objstream/objstream/pkg/backend/gcs"
	"github.com/objstream/objstream/pkg/backend/s3"
	"github.com/objstream/objstream/pkg/credential"
	"github.com/objstream/objstream/pkg/session"
	"github.com/objstream/objstream/pkg/transfer"
)

// Client is the top-level handle. Every operation first consults the session
// so expiring credentials are refreshed and the backend rebuilt before any
// bytes move.
type Client struct {
	session *session.Session
	cfg     backend.Config
	logger  *zap.Logger
}

// Option configures a Client.
type Option func(*options)

type options struct {
	source      credential.Source
	logger      *zap.Logger
	sessionOpts []session.Option
}

// WithCredentialSource attaches an external credential source. The client
// caches its credentials and transparently rebuilds the backend as they
// near expiry. Without one, configured credentials are static and no
// rebuild ever happens.
func WithCredentialSource(source credential.Source) Option {
	return func(o *options) { o.source = source }
}

// WithLogger attaches a structured logger.
func WithLogger(logger *zap.Logger) Option {
	return func(o *options) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithSessionOptions passes options through to the underlying session.
func WithSessionOptions(opts ...session.Option) Option {
	return func(o *options) { o.sessionOpts = append(o.sessionOpts, opts...) }
}

// ParseKind maps a provider name onto a backend kind. The historical aliases
// "s8k" and "gcs_s3" select the S3 wire surface.
func ParseKind(provider string) (backend.Kind, error) {
	switch strings.ToLower(provider) {
	case "s3", "s8k", "gcs_s3":
		return backend.KindS3, nil
	case "gcs":
		return backend.KindGCS, nil
	default:
		return "", &backend.ConfigError{
			Field:   "Provider",
			Message: fmt.Sprintf("unsupported provider type %q (supported: s3, s8k, gcs_s3, gcs)", provider),
		}
	}
}

// New builds a client for the given provider kind and bucket config.
func New(ctx context.Context, kind backend.Kind, cfg backend.Config, opts ...Option) (*Client, error) {
	o := &options{logger: zap.NewNop()}
	for _, opt := range opts {
		opt(o)
	}

	build, err := builderFor(kind)
	if err != nil {
		return nil, err
	}

	sessionOpts := append([]session.Option{session.WithLogger(o.logger)}, o.sessionOpts...)
	if o.source != nil {
		sessionOpts = append(sessionOpts, session.WithCredentialCache(credential.NewCache(o.source, 0)))
	}

	sess, err := session.New(ctx, kind, cfg, build, sessionOpts...)
	if err != nil {
		return nil, err
	}

	return &Client{session: sess, cfg: cfg, logger: o.logger}, nil
}

func builderFor(kind backend.Kind) (session.BuildFunc, error) {
	switch kind {
	case backend.KindS3:
		return func(ctx context.Context, cfg backend.Config) (backend.Backend, error) {
			return s3.New(ctx, cfg)
		}, nil
	case backend.KindGCS:
		return func(ctx context.Context, cfg backend.Config) (backend.Backend, error) {
			return gcs.New(ctx, cfg)
		}, nil
	default:
		return nil, &backend.ConfigError{
			Field:   "Provider",
			Message: fmt.Sprintf("unsupported backend kind %q", kind),
		}
	}
}

// Put creates or overwrites an object with the given bytes in a single
// request, returning the byte count.
func (c *Client) Put(ctx context.Context, key string, data []byte) (int64, error) {
	snap, err := c.session.Handle(ctx)
	if err != nil {
		return 0, err
	}
	if err := snap.Backend.Put(ctx, key, data); err != nil {
		return 0, err
	}
	return int64(len(data)), nil
}

// Get returns an object's bytes. A non-nil rng selects [Start, End).
func (c *Client) Get(ctx context.Context, key string, rng *transfer.Range) ([]byte, error) {
	snap, err := c.session.Handle(ctx)
	if err != nil {
		return nil, err
	}
	if rng != nil {
		return snap.Backend.GetRange(ctx, key, rng.Start, rng.End)
	}
	return snap.Backend.Get(ctx, key)
}

// Upload copies a local file to remotePath in a single request.
func (c *Client) Upload(ctx context.Context, localPath, remotePath string) (int64, error) {
	data, err := os.ReadFile(localPath)
	if err != nil {
		return 0, err
	}
	return c.Put(ctx, remotePath, data)
}

// Download copies the object at remotePath to a local file.
func (c *Client) Download(ctx context.Context, remotePath, localPath string) (int64, error) {
	data, err := c.Get(ctx, remotePath, nil)
	if err != nil {
		return 0, err
	}
	if err := os.WriteFile(localPath, data, 0o644); err != nil {
		return 0, err
	}
	return int64(len(data)), nil
}

// UploadMultipart streams a local file to remotePath as a concurrent
// multipart upload.
func (c *Client) UploadMultipart(ctx context.Context, localPath, remotePath string, opts ...TransferOption) (int64, error) {
	f, err := os.Open(localPath)
	if err != nil {
		return 0, err
	}
	defer func() { _ = f.Close() }()
	return c.UploadMultipartReader(ctx, f, remotePath, opts...)
}

// UploadMultipartReader streams src to remotePath as a concurrent multipart
// upload. Used for in-memory sources.
func (c *Client) UploadMultipartReader(ctx context.Context, src io.Reader, remotePath string, opts ...TransferOption) (int64, error) {
	snap, err := c.session.Handle(ctx)
	if err != nil {
		return 0, err
	}
	settings := c.settings(opts)
	return transfer.Upload(ctx, snap.Backend, src, remotePath, transfer.UploadOptions{
		ChunkSize:      settings.chunkSize,
		MaxConcurrency: settings.concurrency,
		BandwidthLimit: settings.bandwidthLimit,
		Logger:         c.logger,
	})
}

// DownloadMultipart fetches remotePath through parallel ranged reads into a
// local file, returning the total byte count.
func (c *Client) DownloadMultipart(ctx context.Context, remotePath, localPath string, opts ...TransferOption) (int64, error) {
	snap, err := c.session.Handle(ctx)
	if err != nil {
		return 0, err
	}
	settings := c.settings(opts)
	return transfer.DownloadToFile(ctx, snap.Backend, remotePath, localPath, transfer.DownloadOptions{
		ChunkSize:      settings.chunkSize,
		MaxConcurrency: settings.concurrency,
		BandwidthLimit: settings.bandwidthLimit,
		Logger:         c.logger,
	})
}

// DownloadMultipartBytes fetches remotePath (or the given sub-range) through
// parallel ranged reads into memory.
func (c *Client) DownloadMultipartBytes(ctx context.Context, remotePath string, rng *transfer.Range, opts ...TransferOption) ([]byte, error) {
	snap, err := c.session.Handle(ctx)
	if err != nil {
		return nil, err
	}
	settings := c.settings(opts)
	return transfer.DownloadToBytes(ctx, snap.Backend, remotePath, rng, transfer.DownloadOptions{
		ChunkSize:      settings.chunkSize,
		MaxConcurrency: settings.concurrency,
		BandwidthLimit: settings.bandwidthLimit,
		Logger:         c.logger,
	})
}

// ListRecursive walks the tree under the seed prefixes and returns the
// merged, sorted result.
func (c *Client) ListRecursive(ctx context.Context, prefixes []string, opts transfer.ListRecursiveOptions) (*transfer.ListResult, error) {
	snap, err := c.session.Handle(ctx)
	if err != nil {
		return nil, err
	}
	if opts.MaxConcurrency <= 0 {
		opts.MaxConcurrency = c.cfg.Concurrency()
	}
	if opts.Logger == nil {
		opts.Logger = c.logger
	}
	return transfer.ListRecursive(ctx, snap.Backend, prefixes, opts)
}

// Close releases the session's backend handle.
func (c *Client) Close() error {
	return c.session.Close()
}
