package transfer

import (
	"context"

	"golang.org/x/time/rate"
)

// bandwidthLimiter paces chunk transfers to a bytes-per-second budget.
// A nil limiter is unlimited.
type bandwidthLimiter struct {
	limiter *rate.Limiter
}

// newBandwidthLimiter builds a limiter for bytesPerSecond. Zero or negative
// means unlimited (returns nil). The burst is one chunk so a single large
// chunk never deadlocks against the bucket size.
func newBandwidthLimiter(bytesPerSecond, chunkSize int64) *bandwidthLimiter {
	if bytesPerSecond <= 0 {
		return nil
	}
	burst := int(chunkSize)
	if burst <= 0 {
		burst = 1 << 30
	}
	return &bandwidthLimiter{limiter: rate.NewLimiter(rate.Limit(bytesPerSecond), burst)}
}

// waitN blocks until n bytes of budget are available.
func (l *bandwidthLimiter) waitN(ctx context.Context, n int) error {
	if l == nil || n <= 0 {
		return nil
	}
	if n > l.limiter.Burst() {
		n = l.limiter.Burst()
	}
	return l.limiter.WaitN(ctx, n)
}
