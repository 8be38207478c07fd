package client

// TransferOption overrides per-operation transfer settings. Unset values
// fall back to the client config's chunk size and concurrency budget.
type TransferOption func(*transferSettings)

type transferSettings struct {
	chunkSize      int64
	concurrency    int
	bandwidthLimit int64
}

// WithChunkSize overrides the chunk size for one operation.
func WithChunkSize(chunkSize int64) TransferOption {
	return func(s *transferSettings) {
		if chunkSize > 0 {
			s.chunkSize = chunkSize
		}
	}
}

// WithConcurrency overrides the concurrency budget for one operation.
func WithConcurrency(concurrency int) TransferOption {
	return func(s *transferSettings) {
		if concurrency > 0 {
			s.concurrency = concurrency
		}
	}
}

// WithBandwidthLimit caps one operation's throughput in bytes per second.
func WithBandwidthLimit(bytesPerSecond int64) TransferOption {
	return func(s *transferSettings) {
		if bytesPerSecond > 0 {
			s.bandwidthLimit = bytesPerSecond
		}
	}
}

func (c *Client) settings(opts []TransferOption) transferSettings {
	s := transferSettings{
		chunkSize:   c.cfg.ChunkSize(),
		concurrency: c.cfg.Concurrency(),
	}
	for _, opt := range opts {
		opt(&s)
	}
	return s
}
