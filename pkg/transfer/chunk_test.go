package transfer

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSplitChunks_PartitionsRangeExactly(t *testing.T) {
	cases := []struct {
		name      string
		totalSize int64
		chunkSize int64
	}{
		{"Empty", 0, 8},
		{"SingleByte", 1, 8},
		{"ExactOneChunk", 8, 8},
		{"OneByteOver", 9, 8},
		{"ExactMultiple", 64, 8},
		{"UnevenTail", 100, 32},
		{"ChunkLargerThanTotal", 5, 1 << 20},
		{"LargeObject", 5<<30 + 7, 32 << 20},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			chunks := splitChunks(0, tc.totalSize, tc.chunkSize)

			if tc.totalSize == 0 {
				assert.Empty(t, chunks)
				return
			}

			expectedCount := (tc.totalSize + tc.chunkSize - 1) / tc.chunkSize
			require.Len(t, chunks, int(expectedCount))

			// No gaps, no overlaps, exact coverage of [0, totalSize).
			var next int64
			for i, c := range chunks {
				assert.Equal(t, int64(i), c.Index)
				assert.Equal(t, next, c.Start)
				assert.Greater(t, c.End, c.Start)
				assert.LessOrEqual(t, c.Len(), tc.chunkSize)
				next = c.End
			}
			assert.Equal(t, tc.totalSize, next)

			// Only the last chunk may be short.
			for _, c := range chunks[:len(chunks)-1] {
				assert.Equal(t, tc.chunkSize, c.Len())
			}
		})
	}
}

func TestSplitChunks_WithOffset(t *testing.T) {
	chunks := splitChunks(100, 25, 10)

	require.Len(t, chunks, 3)
	assert.Equal(t, Chunk{Index: 0, Start: 100, End: 110}, chunks[0])
	assert.Equal(t, Chunk{Index: 1, Start: 110, End: 120}, chunks[1])
	assert.Equal(t, Chunk{Index: 2, Start: 120, End: 125}, chunks[2])
}

func TestSplitChunks_InvalidInputs(t *testing.T) {
	assert.Nil(t, splitChunks(0, -1, 8))
	assert.Nil(t, splitChunks(0, 10, 0))
	assert.Nil(t, splitChunks(0, 10, -3))
}
