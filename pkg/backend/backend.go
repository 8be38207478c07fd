// Package backend defines the object-storage capability the transfer engine
// orchestrates.
//
// Backends implement a minimal surface: single-shot put/get, ranged reads,
// metadata probes, delimiter listing, and multipart writes. Wire-level
// concerns (signing, transport retries, pagination mechanics) stay inside
// the implementations - the engine never sees them.
package backend

import (
	"context"
	"time"
)

// Backend abstracts a single bucket of an object store.
//
// Implementations must be safe for concurrent use. All byte ranges are
// half-open: [start, end).
type Backend interface {
	// Put creates or overwrites an object in a single request.
	Put(ctx context.Context, key string, data []byte) error

	// Get returns the full contents of an object.
	// Returns ErrNotFound if the object does not exist.
	Get(ctx context.Context, key string) ([]byte, error)

	// GetRange returns bytes [start, end) of an object.
	GetRange(ctx context.Context, key string, start, end int64) ([]byte, error)

	// Head returns metadata for a single object.
	// Returns ErrNotFound if the object does not exist.
	Head(ctx context.Context, key string) (*ObjectMeta, error)

	// ListWithDelimiter returns one page of objects and immediate child
	// prefixes under opts.Prefix.
	ListWithDelimiter(ctx context.Context, opts ListOptions) (*ListPage, error)

	// PutMultipart begins a multipart upload session for key.
	PutMultipart(ctx context.Context, key string) (MultipartWriter, error)

	// Close releases any resources held by the backend.
	Close() error
}

// MultipartWriter streams parts of a multipart upload with bounded in-flight
// capacity.
//
// Write never blocks; callers pace themselves with WaitForCapacity before
// each Write so the number of in-flight parts stays within their budget.
// Errors from individual parts surface on the next WaitForCapacity or on
// Finish.
type MultipartWriter interface {
	// WaitForCapacity blocks until fewer than n parts are in flight, or a
	// previously queued part has failed.
	WaitForCapacity(ctx context.Context, n int) error

	// Write queues p as the next part. The slice is copied; callers may
	// reuse their buffer immediately.
	Write(p []byte)

	// Finish waits for all queued parts and commits the upload.
	Finish(ctx context.Context) error

	// Abort cancels the upload and releases backend-side state.
	Abort(ctx context.Context) error
}

// ObjectMeta contains metadata for a single object or directory marker.
type ObjectMeta struct {
	// Key is the full object key (path) in the bucket.
	Key string

	// Size is the object size in bytes.
	Size int64

	// LastModified is when the object was last modified.
	LastModified time.Time

	// ETag is the entity tag without surrounding quotes. May be empty.
	ETag string
}

// ListOptions configures a ListWithDelimiter operation.
type ListOptions struct {
	// Prefix filters results to keys starting with this value.
	Prefix string

	// Delimiter groups keys. Empty defaults to "/".
	Delimiter string

	// ContinuationToken resumes listing from a previous ListPage.
	ContinuationToken string

	// MaxKeys limits the number of keys returned per page.
	// Zero uses the backend default (typically 1000).
	MaxKeys int
}

// ListPage contains one page of results from a delimiter listing.
type ListPage struct {
	// Objects are summaries of objects directly under the requested Prefix.
	Objects []ObjectMeta

	// CommonPrefixes are the immediate child prefixes.
	CommonPrefixes []string

	// ContinuationToken retrieves the next page. Empty means no more pages.
	ContinuationToken string

	// IsTruncated indicates whether more results are available.
	IsTruncated bool
}

// Kind identifies a storage provider implementation.
type Kind string

const (
	// KindS3 is AWS S3 or any S3-compatible store.
	KindS3 Kind = "s3"

	// KindGCS is Google Cloud Storage.
	KindGCS Kind = "gcs"
)

// String returns the string representation of the backend kind.
func (k Kind) String() string {
	return string(k)
}
