package backend

import "time"

// Config configures a backend for a single bucket.
//
// The upstream callers hand us a loosely-typed key/value map; this struct is
// the closed, typed form of it. Fields that do not apply to a given provider
// are ignored by that provider's constructor.
type Config struct {
	// Bucket is the bucket name (required).
	Bucket string

	// Region is the region name. S3 only; when Endpoint is set no default
	// region is applied.
	Region string

	// Endpoint is a custom endpoint URL for S3-compatible stores or a GCS
	// emulator.
	Endpoint string

	// AccessKeyID, SecretAccessKey, and SessionToken are explicit
	// credentials. When unset the SDK default chain applies. These are the
	// fields a credential refresh overlays.
	AccessKeyID     string
	SecretAccessKey string
	SessionToken    string

	// AllowHTTP permits plain-HTTP endpoints (local stacks, emulators).
	AllowHTTP bool

	// SkipSignature disables request signing for anonymous access.
	SkipSignature bool

	// ForcePathStyle forces path-style URLs. Required for most
	// S3-compatible stores.
	ForcePathStyle bool

	// ConnectTimeout bounds connection establishment. Zero uses the
	// transport default.
	ConnectTimeout time.Duration

	// ReadTimeout bounds the wait for response headers. Zero uses the
	// transport default.
	ReadTimeout time.Duration

	// MaxPoolConnections caps idle connections per host. Zero uses the
	// transport default.
	MaxPoolConnections int

	// MultipartChunkSize is the default chunk size for multipart transfers.
	// Zero uses DefaultChunkSize.
	MultipartChunkSize int64

	// MaxConcurrency is the default concurrency budget for chunked
	// transfers. Zero uses DefaultMaxConcurrency.
	MaxConcurrency int

	// ServiceAccountKey is inline service account JSON. GCS only.
	ServiceAccountKey string

	// ServiceAccountPath is a path to a service account JSON file. GCS only.
	ServiceAccountPath string

	// ProxyURL routes requests through an HTTP proxy. GCS only in the
	// original surface; honored by both providers here.
	ProxyURL string
}

// DefaultChunkSize is the default multipart chunk size (32 MiB).
const DefaultChunkSize int64 = 32 * 1024 * 1024

// DefaultMaxConcurrency is the default concurrency budget for chunked
// transfers.
const DefaultMaxConcurrency = 32

// Validate checks that required configuration is present.
func (c *Config) Validate() error {
	if c.Bucket == "" {
		return &ConfigError{Field: "Bucket", Message: "bucket name is required"}
	}

	// If one explicit credential is set, both must be set.
	if (c.AccessKeyID != "") != (c.SecretAccessKey != "") {
		return &ConfigError{
			Field:   "AccessKeyID/SecretAccessKey",
			Message: "both access key ID and secret access key must be provided together",
		}
	}

	return nil
}

// ChunkSize returns the configured chunk size or the default.
func (c *Config) ChunkSize() int64 {
	if c.MultipartChunkSize > 0 {
		return c.MultipartChunkSize
	}
	return DefaultChunkSize
}

// Concurrency returns the configured concurrency budget or the default.
func (c *Config) Concurrency() int {
	if c.MaxConcurrency > 0 {
		return c.MaxConcurrency
	}
	return DefaultMaxConcurrency
}

// WithCredentials returns a copy of the config with the credential fields
// replaced. Used when a refreshed credential is overlaid onto the prior
// generation's config.
func (c Config) WithCredentials(accessKeyID, secretAccessKey, sessionToken string) Config {
	c.AccessKeyID = accessKeyID
	c.SecretAccessKey = secretAccessKey
	c.SessionToken = sessionToken
	return c
}
