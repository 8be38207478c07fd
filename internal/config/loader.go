package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-viper/mapstructure/v2"
	"github.com/spf13/viper"

	"github.com/objstream/objstream/pkg/backend"
)

// Defaults applied when neither file nor environment supplies a value.
const (
	DefaultProvider  = "s3"
	DefaultLogLevel  = "info"
	DefaultLogFormat = "json"
)

// Load reads configuration from the given file path (optional), the
// OBJSTREAM_* environment, and defaults, in increasing precedence of
// default < file < environment.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigType("yaml")

	v.SetDefault("provider", DefaultProvider)
	v.SetDefault("transfer.multipart_chunksize", backend.DefaultChunkSize)
	v.SetDefault("transfer.max_concurrency", backend.DefaultMaxConcurrency)
	v.SetDefault("transfer.bandwidth_limit", 0)
	v.SetDefault("logging.level", DefaultLogLevel)
	v.SetDefault("logging.format", DefaultLogFormat)

	// Every key needs a registered default for the automatic environment
	// lookup to find it during Unmarshal.
	for _, key := range []string{
		"storage.bucket", "storage.region_name", "storage.endpoint_url",
		"storage.access_key", "storage.secret_key", "storage.token",
		"storage.service_account_key", "storage.service_account_path",
		"storage.proxy_url",
	} {
		v.SetDefault(key, "")
	}
	v.SetDefault("storage.allow_http", false)
	v.SetDefault("storage.skip_signature", false)
	v.SetDefault("storage.force_path_style", false)
	v.SetDefault("storage.connect_timeout", time.Duration(0))
	v.SetDefault("storage.read_timeout", time.Duration(0))
	v.SetDefault("storage.max_pool_connections", 0)

	v.SetEnvPrefix("OBJSTREAM")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return nil, fmt.Errorf("read config %s: %w", path, err)
			}
		}
	}

	var cfg Config
	decodeHook := mapstructure.ComposeDecodeHookFunc(
		mapstructure.StringToTimeDurationHookFunc(),
		mapstructure.StringToSliceHookFunc(","),
	)
	if err := v.Unmarshal(&cfg, viper.DecodeHook(decodeHook)); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}

	return &cfg, nil
}

// BackendConfig translates the storage and transfer sections into the
// backend's typed config.
func (c *Config) BackendConfig() backend.Config {
	return backend.Config{
		Bucket:             c.Storage.Bucket,
		Region:             c.Storage.Region,
		Endpoint:           c.Storage.Endpoint,
		AccessKeyID:        c.Storage.AccessKey,
		SecretAccessKey:    c.Storage.SecretKey,
		SessionToken:       c.Storage.SessionToken,
		AllowHTTP:          c.Storage.AllowHTTP,
		SkipSignature:      c.Storage.SkipSignature,
		ForcePathStyle:     c.Storage.ForcePathStyle,
		ConnectTimeout:     c.Storage.ConnectTimeout,
		ReadTimeout:        c.Storage.ReadTimeout,
		MaxPoolConnections: c.Storage.MaxPoolConnections,
		MultipartChunkSize: c.Transfer.MultipartChunkSize,
		MaxConcurrency:     c.Transfer.MaxConcurrency,
		ServiceAccountKey:  c.Storage.ServiceAccountKey,
		ServiceAccountPath: c.Storage.ServiceAccountPath,
		ProxyURL:           c.Storage.ProxyURL,
	}
}
