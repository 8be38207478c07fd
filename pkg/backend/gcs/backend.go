// Package gcs implements the backend capability for Google Cloud Storage.
package gcs

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/url"

	"cloud.google.com/go/storage"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"
	htransport "google.golang.org/api/transport/http"

	"github.com/objstream/objstream/pkg/backend"
)

// DefaultMaxKeys is the default page size for list operations.
const DefaultMaxKeys = 1000

// Backend implements backend.Backend for Google Cloud Storage.
type Backend struct {
	client    *storage.Client
	bucket    *storage.BucketHandle
	name      string
	chunkSize int
}

var _ backend.Backend = (*Backend)(nil)

// New creates a GCS backend from the given configuration.
//
// Credentials resolve through Application Default Credentials unless a
// service account key (inline or file path) is configured. SkipSignature
// selects unauthenticated access for public buckets and emulators.
func New(ctx context.Context, cfg backend.Config) (*Backend, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	opts := clientOptions(cfg)

	if cfg.ProxyURL != "" {
		hc, err := proxyClient(ctx, cfg, opts)
		if err != nil {
			return nil, backend.WrapError("New", backend.KindGCS, cfg.Bucket, "", err)
		}
		opts = append(opts, option.WithHTTPClient(hc))
	}

	client, err := storage.NewClient(ctx, opts...)
	if err != nil {
		return nil, backend.WrapError("New", backend.KindGCS, cfg.Bucket, "", err)
	}

	return &Backend{
		client:    client,
		bucket:    client.Bucket(cfg.Bucket),
		name:      cfg.Bucket,
		chunkSize: int(cfg.ChunkSize()),
	}, nil
}

func clientOptions(cfg backend.Config) []option.ClientOption {
	var opts []option.ClientOption
	switch {
	case cfg.SkipSignature:
		opts = append(opts, option.WithoutAuthentication())
	case cfg.ServiceAccountKey != "":
		opts = append(opts, option.WithCredentialsJSON([]byte(cfg.ServiceAccountKey)))
	case cfg.ServiceAccountPath != "":
		opts = append(opts, option.WithCredentialsFile(cfg.ServiceAccountPath))
	}
	if cfg.Endpoint != "" {
		opts = append(opts, option.WithEndpoint(cfg.Endpoint))
	}
	return opts
}

// proxyClient wraps the proxied base transport with the API auth layer so
// proxy routing and credentials compose.
func proxyClient(ctx context.Context, cfg backend.Config, opts []option.ClientOption) (*http.Client, error) {
	proxy, err := url.Parse(cfg.ProxyURL)
	if err != nil {
		return nil, err
	}
	base := &http.Transport{Proxy: http.ProxyURL(proxy)}
	trans, err := htransport.NewTransport(ctx, base, opts...)
	if err != nil {
		return nil, err
	}
	return &http.Client{Transport: trans}, nil
}

// Put creates or overwrites an object in a single request.
func (b *Backend) Put(ctx context.Context, key string, data []byte) error {
	w := b.bucket.Object(key).NewWriter(ctx)
	if _, err := w.Write(data); err != nil {
		_ = w.Close()
		return b.wrapError("Put", key, err)
	}
	if err := w.Close(); err != nil {
		return b.wrapError("Put", key, err)
	}
	return nil
}

// Get returns the full contents of an object.
func (b *Backend) Get(ctx context.Context, key string) ([]byte, error) {
	r, err := b.bucket.Object(key).NewReader(ctx)
	if err != nil {
		return nil, b.wrapError("Get", key, err)
	}
	defer func() { _ = r.Close() }()

	data, err := io.ReadAll(r)
	if err != nil {
		return nil, b.wrapError("Get", key, err)
	}
	return data, nil
}

// GetRange returns bytes [start, end) of an object.
func (b *Backend) GetRange(ctx context.Context, key string, start, end int64) ([]byte, error) {
	r, err := b.bucket.Object(key).NewRangeReader(ctx, start, end-start)
	if err != nil {
		return nil, b.wrapError("GetRange", key, err)
	}
	defer func() { _ = r.Close() }()

	data, err := io.ReadAll(r)
	if err != nil {
		return nil, b.wrapError("GetRange", key, err)
	}
	return data, nil
}

// Head returns metadata for a single object.
func (b *Backend) Head(ctx context.Context, key string) (*backend.ObjectMeta, error) {
	attrs, err := b.bucket.Object(key).Attrs(ctx)
	if err != nil {
		return nil, b.wrapError("Head", key, err)
	}

	return &backend.ObjectMeta{
		Key:          attrs.Name,
		Size:         attrs.Size,
		LastModified: attrs.Updated,
		ETag:         attrs.Etag,
	}, nil
}

// ListWithDelimiter returns one page of objects and immediate child prefixes.
func (b *Backend) ListWithDelimiter(ctx context.Context, opts backend.ListOptions) (*backend.ListPage, error) {
	delimiter := opts.Delimiter
	if delimiter == "" {
		delimiter = "/"
	}
	maxKeys := opts.MaxKeys
	if maxKeys <= 0 {
		maxKeys = DefaultMaxKeys
	}

	it := b.bucket.Objects(ctx, &storage.Query{
		Prefix:    opts.Prefix,
		Delimiter: delimiter,
	})

	var attrs []*storage.ObjectAttrs
	pager := iterator.NewPager(it, maxKeys, opts.ContinuationToken)
	nextToken, err := pager.NextPage(&attrs)
	if err != nil {
		return nil, b.wrapError("ListWithDelimiter", opts.Prefix, err)
	}

	page := &backend.ListPage{
		ContinuationToken: nextToken,
		IsTruncated:       nextToken != "",
	}
	for _, a := range attrs {
		// Entries with a Prefix are synthetic directory markers produced by
		// the delimiter; everything else is an object.
		if a.Prefix != "" {
			page.CommonPrefixes = append(page.CommonPrefixes, a.Prefix)
			continue
		}
		page.Objects = append(page.Objects, backend.ObjectMeta{
			Key:          a.Name,
			Size:         a.Size,
			LastModified: a.Updated,
			ETag:         a.Etag,
		})
	}

	return page, nil
}

// Close releases the underlying client.
func (b *Backend) Close() error {
	return b.client.Close()
}

// wrapError converts GCS errors to backend errors with appropriate sentinels.
func (b *Backend) wrapError(op, key string, err error) error {
	wrapped := &backend.BackendError{
		Op:       op,
		Provider: backend.KindGCS,
		Bucket:   b.name,
		Key:      key,
		Err:      err,
	}

	if errors.Is(err, storage.ErrObjectNotExist) || errors.Is(err, storage.ErrBucketNotExist) {
		wrapped.Err = backend.ErrNotFound
		return wrapped
	}

	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) {
		switch apiErr.Code {
		case http.StatusNotFound:
			wrapped.Err = backend.ErrNotFound
			return wrapped
		case http.StatusForbidden, http.StatusUnauthorized:
			wrapped.Err = backend.ErrPermissionDenied
			return wrapped
		}
	}

	return backend.WrapError(op, backend.KindGCS, b.name, key, err)
}
