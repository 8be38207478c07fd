package gcs

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/objstream/objstream/pkg/backend"
)

func TestNew_RequiresBucket(t *testing.T) {
	_, err := New(context.Background(), backend.Config{})

	var cfgErr *backend.ConfigError
	require.ErrorAs(t, err, &cfgErr)
	assert.Equal(t, "Bucket", cfgErr.Field)
}

func TestNew_ChunkSizeFromConfig(t *testing.T) {
	tests := []struct {
		name      string
		chunkSize int64
		want      int
	}{
		{name: "configured", chunkSize: 8 * 1024 * 1024, want: 8 * 1024 * 1024},
		{name: "default", chunkSize: 0, want: int(backend.DefaultChunkSize)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b, err := New(context.Background(), backend.Config{
				Bucket: "bucket",
				// Anonymous access so construction never consults ADC.
				SkipSignature:      true,
				MultipartChunkSize: tt.chunkSize,
			})
			require.NoError(t, err)
			defer func() { _ = b.Close() }()

			assert.Equal(t, tt.want, b.chunkSize)
		})
	}
}
