package backend

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		wantErr string
	}{
		{
			name: "valid minimal",
			cfg:  Config{Bucket: "b"},
		},
		{
			name: "valid with credentials",
			cfg:  Config{Bucket: "b", AccessKeyID: "AKID", SecretAccessKey: "secret"},
		},
		{
			name:    "missing bucket",
			cfg:     Config{},
			wantErr: "Bucket",
		},
		{
			name:    "access key without secret",
			cfg:     Config{Bucket: "b", AccessKeyID: "AKID"},
			wantErr: "AccessKeyID/SecretAccessKey",
		},
		{
			name:    "secret without access key",
			cfg:     Config{Bucket: "b", SecretAccessKey: "secret"},
			wantErr: "AccessKeyID/SecretAccessKey",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			var cerr *ConfigError
			require.ErrorAs(t, err, &cerr)
			assert.Equal(t, tt.wantErr, cerr.Field)
		})
	}
}

func TestConfigDefaults(t *testing.T) {
	cfg := Config{Bucket: "b"}
	assert.Equal(t, DefaultChunkSize, cfg.ChunkSize())
	assert.Equal(t, DefaultMaxConcurrency, cfg.Concurrency())

	cfg.MultipartChunkSize = 8 * 1024 * 1024
	cfg.MaxConcurrency = 4
	assert.Equal(t, int64(8*1024*1024), cfg.ChunkSize())
	assert.Equal(t, 4, cfg.Concurrency())
}

func TestConfigWithCredentials(t *testing.T) {
	base := Config{Bucket: "b", Region: "us-west-2", AccessKeyID: "OLD", SecretAccessKey: "old-secret"}

	next := base.WithCredentials("NEW", "new-secret", "new-token")

	assert.Equal(t, "NEW", next.AccessKeyID)
	assert.Equal(t, "new-secret", next.SecretAccessKey)
	assert.Equal(t, "new-token", next.SessionToken)
	assert.Equal(t, "us-west-2", next.Region)

	// The receiver is untouched.
	assert.Equal(t, "OLD", base.AccessKeyID)
	assert.Empty(t, base.SessionToken)
}
