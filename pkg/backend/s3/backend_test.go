package s3

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetRange_EmptyRange(t *testing.T) {
	// An empty window must short-circuit before a Range header is ever
	// rendered; "bytes=5-4" would be rejected by the service.
	b := &Backend{bucket: "bucket"}

	data, err := b.GetRange(context.Background(), "key", 5, 5)
	require.NoError(t, err)
	assert.Empty(t, data)

	data, err = b.GetRange(context.Background(), "key", 10, 3)
	require.NoError(t, err)
	assert.Empty(t, data)
}

func TestResolveRegion(t *testing.T) {
	tests := []struct {
		name      string
		endpoint  string
		sdkRegion string
		want      string
	}{
		{name: "sdk region wins", endpoint: "http://localhost:9000", sdkRegion: "eu-west-1", want: "eu-west-1"},
		{name: "aws default without endpoint", endpoint: "", sdkRegion: "", want: DefaultAWSRegion},
		{name: "custom endpoint gets no default", endpoint: "http://localhost:9000", sdkRegion: "", want: ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, resolveRegion(tt.endpoint, tt.sdkRegion))
		})
	}
}

func TestCleanETag(t *testing.T) {
	assert.Equal(t, "abc123", cleanETag(`"abc123"`))
	assert.Equal(t, "abc123", cleanETag("abc123"))
	assert.Equal(t, "", cleanETag(`""`))
}

func TestClampMaxKeys(t *testing.T) {
	assert.Equal(t, DefaultMaxKeys, clampMaxKeys(0))
	assert.Equal(t, DefaultMaxKeys, clampMaxKeys(-5))
	assert.Equal(t, 250, clampMaxKeys(250))
	assert.Equal(t, MaxAllowedKeys, clampMaxKeys(5000))
}
