// Package s3 implements the backend capability for AWS S3 and S3-compatible
// stores.
package s3

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"

	"github.com/objstream/objstream/pkg/backend"
)

// DefaultMaxKeys is the default page size for list operations.
const DefaultMaxKeys = 1000

// MaxAllowedKeys is the maximum page size allowed by S3.
const MaxAllowedKeys = 1000

// DefaultAWSRegion is the fallback region for AWS S3 when not specified.
const DefaultAWSRegion = "us-east-1"

// Backend implements backend.Backend for AWS S3 and S3-compatible storage.
type Backend struct {
	client *s3.Client
	bucket string
}

var _ backend.Backend = (*Backend)(nil)

// New creates an S3 backend from the given configuration.
//
// Credentials resolve through the AWS SDK v2 default chain unless explicit
// credentials are present in the config. For S3-compatible stores set
// Endpoint and typically ForcePathStyle.
func New(ctx context.Context, cfg backend.Config) (*Backend, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if strings.HasPrefix(cfg.Endpoint, "http://") && !cfg.AllowHTTP {
		return nil, &backend.ConfigError{
			Field:   "Endpoint",
			Message: "plain-HTTP endpoint requires AllowHTTP",
		}
	}

	awsCfg, err := loadAWSConfig(ctx, cfg)
	if err != nil {
		return nil, backend.WrapError("New", backend.KindS3, cfg.Bucket, "", err)
	}

	s3Opts := []func(*s3.Options){
		func(o *s3.Options) {
			if cfg.ForcePathStyle {
				o.UsePathStyle = true
			}
		},
	}
	if cfg.Endpoint != "" {
		s3Opts = append(s3Opts, func(o *s3.Options) {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		})
	}

	return &Backend{
		client: s3.NewFromConfig(awsCfg, s3Opts...),
		bucket: cfg.Bucket,
	}, nil
}

// loadAWSConfig builds the AWS configuration with appropriate credentials
// and transport settings.
func loadAWSConfig(ctx context.Context, cfg backend.Config) (aws.Config, error) {
	var opts []func(*awsconfig.LoadOptions) error

	// Only apply explicit region if the caller set one; let the SDK resolve
	// from env/profile first.
	if cfg.Region != "" {
		opts = append(opts, awsconfig.WithRegion(cfg.Region))
	}

	switch {
	case cfg.SkipSignature:
		opts = append(opts, awsconfig.WithCredentialsProvider(aws.AnonymousCredentials{}))
	case cfg.AccessKeyID != "" && cfg.SecretAccessKey != "":
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, cfg.SessionToken),
		))
	}

	if hc := httpClient(cfg); hc != nil {
		opts = append(opts, awsconfig.WithHTTPClient(hc))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return aws.Config{}, err
	}

	awsCfg.Region = resolveRegion(cfg.Endpoint, awsCfg.Region)
	return awsCfg, nil
}

// httpClient builds a transport honoring the pool/timeout/proxy settings.
// Returns nil when none are set so the SDK default client applies.
func httpClient(cfg backend.Config) *http.Client {
	if cfg.ConnectTimeout == 0 && cfg.ReadTimeout == 0 && cfg.MaxPoolConnections == 0 && cfg.ProxyURL == "" {
		return nil
	}

	transport := &http.Transport{
		Proxy: http.ProxyFromEnvironment,
	}
	if cfg.ProxyURL != "" {
		if proxy, err := url.Parse(cfg.ProxyURL); err == nil {
			transport.Proxy = http.ProxyURL(proxy)
		}
	}
	if cfg.ConnectTimeout > 0 {
		transport.DialContext = (&net.Dialer{Timeout: cfg.ConnectTimeout}).DialContext
	}
	if cfg.ReadTimeout > 0 {
		transport.ResponseHeaderTimeout = cfg.ReadTimeout
	}
	if cfg.MaxPoolConnections > 0 {
		transport.MaxIdleConnsPerHost = cfg.MaxPoolConnections
		transport.MaxConnsPerHost = cfg.MaxPoolConnections
	}
	return &http.Client{Transport: transport}
}

// resolveRegion applies the fallback default after SDK config loading.
// S3-compatible stores (endpoint set) get no default; the endpoint decides.
func resolveRegion(endpoint, sdkRegion string) string {
	if sdkRegion != "" {
		return sdkRegion
	}
	if endpoint == "" {
		return DefaultAWSRegion
	}
	return ""
}

// Put creates or overwrites an object in a single request.
func (b *Backend) Put(ctx context.Context, key string, data []byte) error {
	_, err := b.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(b.bucket),
		Key:           aws.String(key),
		Body:          bytes.NewReader(data),
		ContentLength: aws.Int64(int64(len(data))),
	})
	if err != nil {
		return b.wrapError("Put", key, err)
	}
	return nil
}

// Get returns the full contents of an object.
func (b *Backend) Get(ctx context.Context, key string) ([]byte, error) {
	out, err := b.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(b.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return nil, b.wrapError("Get", key, err)
	}
	defer func() { _ = out.Body.Close() }()

	data, err := io.ReadAll(out.Body)
	if err != nil {
		return nil, b.wrapError("Get", key, err)
	}
	return data, nil
}

// GetRange returns bytes [start, end) of an object.
func (b *Backend) GetRange(ctx context.Context, key string, start, end int64) ([]byte, error) {
	// An empty range has no valid inclusive header form.
	if end <= start {
		return nil, nil
	}

	// HTTP Range headers are inclusive on both ends.
	rangeHeader := fmt.Sprintf("bytes=%d-%d", start, end-1)

	out, err := b.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(b.bucket),
		Key:    aws.String(key),
		Range:  aws.String(rangeHeader),
	})
	if err != nil {
		return nil, b.wrapError("GetRange", key, err)
	}
	defer func() { _ = out.Body.Close() }()

	data, err := io.ReadAll(out.Body)
	if err != nil {
		return nil, b.wrapError("GetRange", key, err)
	}
	return data, nil
}

// Head returns metadata for a single object.
func (b *Backend) Head(ctx context.Context, key string) (*backend.ObjectMeta, error) {
	out, err := b.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(b.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return nil, b.wrapError("Head", key, err)
	}

	return &backend.ObjectMeta{
		Key:          key,
		Size:         aws.ToInt64(out.ContentLength),
		LastModified: aws.ToTime(out.LastModified),
		ETag:         cleanETag(aws.ToString(out.ETag)),
	}, nil
}

// ListWithDelimiter returns one page of objects and immediate child prefixes.
func (b *Backend) ListWithDelimiter(ctx context.Context, opts backend.ListOptions) (*backend.ListPage, error) {
	delimiter := opts.Delimiter
	if delimiter == "" {
		delimiter = "/"
	}

	input := &s3.ListObjectsV2Input{
		Bucket:    aws.String(b.bucket),
		Delimiter: aws.String(delimiter),
		MaxKeys:   aws.Int32(int32(clampMaxKeys(opts.MaxKeys))),
	}
	if opts.Prefix != "" {
		input.Prefix = aws.String(opts.Prefix)
	}
	if opts.ContinuationToken != "" {
		input.ContinuationToken = aws.String(opts.ContinuationToken)
	}

	out, err := b.client.ListObjectsV2(ctx, input)
	if err != nil {
		return nil, b.wrapError("ListWithDelimiter", opts.Prefix, err)
	}

	page := &backend.ListPage{
		Objects:     make([]backend.ObjectMeta, 0, len(out.Contents)),
		IsTruncated: aws.ToBool(out.IsTruncated),
	}
	for _, obj := range out.Contents {
		page.Objects = append(page.Objects, backend.ObjectMeta{
			Key:          aws.ToString(obj.Key),
			Size:         aws.ToInt64(obj.Size),
			LastModified: aws.ToTime(obj.LastModified),
			ETag:         cleanETag(aws.ToString(obj.ETag)),
		})
	}
	for _, cp := range out.CommonPrefixes {
		page.CommonPrefixes = append(page.CommonPrefixes, aws.ToString(cp.Prefix))
	}
	if out.NextContinuationToken != nil {
		page.ContinuationToken = *out.NextContinuationToken
	}

	return page, nil
}

// Close releases any resources held by the backend. The S3 client requires
// no explicit cleanup; this satisfies the interface.
func (b *Backend) Close() error {
	return nil
}

// wrapError converts S3 errors to backend errors with appropriate sentinels.
func (b *Backend) wrapError(op, key string, err error) error {
	wrapped := &backend.BackendError{
		Op:       op,
		Provider: backend.KindS3,
		Bucket:   b.bucket,
		Key:      key,
		Err:      err,
	}

	// Typed SDK errors first.
	var notFound *types.NotFound
	var noSuchKey *types.NoSuchKey
	switch {
	case errors.As(err, &notFound), errors.As(err, &noSuchKey):
		wrapped.Err = backend.ErrNotFound
		return wrapped
	}

	// smithy API error codes next.
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.ErrorCode() {
		case "NoSuchKey", "NotFound", "NoSuchBucket":
			wrapped.Err = backend.ErrNotFound
			return wrapped
		case "AccessDenied", "Forbidden", "InvalidAccessKeyId", "SignatureDoesNotMatch":
			wrapped.Err = backend.ErrPermissionDenied
			return wrapped
		}
	}

	// Substring inspection of the composed chain as the fallback.
	return backend.WrapError(op, backend.KindS3, b.bucket, key, err)
}

// cleanETag removes surrounding quotes from an ETag value.
// S3 returns ETags with quotes, e.g., "d41d8cd98f00b204e9800998ecf8427e".
func cleanETag(etag string) string {
	return strings.Trim(etag, "\"")
}

// clampMaxKeys applies defaults and limits to page size values.
func clampMaxKeys(requested int) int {
	if requested <= 0 {
		requested = DefaultMaxKeys
	}
	if requested > MaxAllowedKeys {
		return MaxAllowedKeys
	}
	return requested
}
