// Package config loads the CLI configuration from file, environment, and
// defaults.
package config

import (
	"time"
)

// Config is the root configuration for the objstream CLI.
type Config struct {
	// Provider selects the backend: s3, s8k, gcs_s3, or gcs.
	Provider string `mapstructure:"provider"`

	Storage  StorageConfig  `mapstructure:"storage"`
	Transfer TransferConfig `mapstructure:"transfer"`
	Logging  LoggingConfig  `mapstructure:"logging"`
}

// StorageConfig holds the bucket and connection settings passed through to
// the backend constructor.
type StorageConfig struct {
	Bucket             string        `mapstructure:"bucket"`
	Region             string        `mapstructure:"region_name"`
	Endpoint           string        `mapstructure:"endpoint_url"`
	AccessKey          string        `mapstructure:"access_key"`
	SecretKey          string        `mapstructure:"secret_key"`
	SessionToken       string        `mapstructure:"token"`
	AllowHTTP          bool          `mapstructure:"allow_http"`
	SkipSignature      bool          `mapstructure:"skip_signature"`
	ForcePathStyle     bool          `mapstructure:"force_path_style"`
	ConnectTimeout     time.Duration `mapstructure:"connect_timeout"`
	ReadTimeout        time.Duration `mapstructure:"read_timeout"`
	MaxPoolConnections int           `mapstructure:"max_pool_connections"`
	ServiceAccountKey  string        `mapstructure:"service_account_key"`
	ServiceAccountPath string        `mapstructure:"service_account_path"`
	ProxyURL           string        `mapstructure:"proxy_url"`
}

// TransferConfig holds the chunked-transfer defaults.
type TransferConfig struct {
	MultipartChunkSize int64 `mapstructure:"multipart_chunksize"`
	MaxConcurrency     int   `mapstructure:"max_concurrency"`
	BandwidthLimit     int64 `mapstructure:"bandwidth_limit"`
}

// LoggingConfig controls the process logger.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}
