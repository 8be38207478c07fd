// Package transfer implements the concurrent chunked upload/download engines
// and the recursive lister.
package transfer

// Chunk is one contiguous byte sub-range of an object, the unit of parallel
// transfer. The range is half-open: [Start, End). All range handling in this
// package uses the exclusive-end convention.
type Chunk struct {
	Index int64
	Start int64
	End   int64
}

// Len returns the chunk's byte length.
func (c Chunk) Len() int64 {
	return c.End - c.Start
}

// splitChunks partitions [offset, offset+totalSize) into chunkSize-sized
// pieces. The descriptors are pairwise disjoint and cover the range exactly
// once; only the last chunk may be shorter than chunkSize.
func splitChunks(offset, totalSize, chunkSize int64) []Chunk {
	if totalSize <= 0 || chunkSize <= 0 {
		return nil
	}

	count := (totalSize + chunkSize - 1) / chunkSize
	chunks := make([]Chunk, 0, count)
	for i := int64(0); i < count; i++ {
		start := offset + i*chunkSize
		end := start + chunkSize
		if end > offset+totalSize {
			end = offset + totalSize
		}
		chunks = append(chunks, Chunk{Index: i, Start: start, End: end})
	}
	return chunks
}
