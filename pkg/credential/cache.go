package credential

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/objstream/objstream/pkg/backend"
)

// DefaultRefreshThreshold is how far ahead of expiry a refresh is triggered.
const DefaultRefreshThreshold = 15 * time.Minute

// Fallback lifetimes applied when the source's expiration is unusable.
const (
	// unparsableExpiryTTL is the conservative lifetime assumed when the
	// source returns an expiration that cannot be parsed.
	unparsableExpiryTTL = time.Hour

	// staticCredentialTTL is the lifetime assumed when the source provides
	// no expiration at all. Some sources are static.
	staticCredentialTTL = 365 * 24 * time.Hour
)

// Cache serves the active credential, refreshing ahead of expiry.
//
// The fast path is a lock-free atomic load. Refresh uses double-checked
// locking so contention produces exactly one outbound round trip to the
// source per staleness window.
type Cache struct {
	source    Source
	threshold time.Duration

	mu      sync.Mutex
	current atomic.Pointer[cached]

	// now is swapped in tests.
	now func() time.Time
}

// NewCache creates a cache over the given source. A zero threshold uses
// DefaultRefreshThreshold.
func NewCache(source Source, threshold time.Duration) *Cache {
	if threshold <= 0 {
		threshold = DefaultRefreshThreshold
	}
	return &Cache{source: source, threshold: threshold, now: time.Now}
}

// ActiveCredential returns a credential guaranteed fresh for at least the
// refresh threshold, fetching from the source when the cached one is due.
//
// A refresh failure surfaces as a retryable backend.ErrCredentialSource;
// credentials are never silently served past expiry.
func (c *Cache) ActiveCredential(ctx context.Context) (*Credential, error) {
	if cred := c.freshCredential(); cred != nil {
		return cred, nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	// Another caller may have refreshed while we waited on the lock.
	if cred := c.freshCredential(); cred != nil {
		return cred, nil
	}

	entry, err := c.refresh(ctx)
	if err != nil {
		return nil, err
	}
	c.current.Store(entry)
	return entry.credential, nil
}

// ExpireAt returns the expiry of the cached credential, or the zero time
// when nothing is cached yet.
func (c *Cache) ExpireAt() time.Time {
	if entry := c.current.Load(); entry != nil {
		return entry.expireAt
	}
	return time.Time{}
}

// freshCredential is the lock-free fast path: returns the cached credential
// when it is not yet within the refresh threshold of expiring.
func (c *Cache) freshCredential() *Credential {
	entry := c.current.Load()
	if entry == nil {
		return nil
	}
	if c.now().Before(entry.expireAt.Add(-c.threshold)) {
		return entry.credential
	}
	return nil
}

// refresh fetches a new credential from the source. If the source itself
// returns near-stale data, it is told to renew and fetched once more.
func (c *Cache) refresh(ctx context.Context) (*cached, error) {
	entry, err := c.fetch(ctx)
	if err != nil {
		return nil, err
	}

	if !c.now().Before(entry.expireAt.Add(-c.threshold)) {
		if err := c.source.TriggerRefresh(ctx); err != nil {
			return nil, fmt.Errorf("%w: trigger refresh: %v", backend.ErrCredentialSource, err)
		}
		entry, err = c.fetch(ctx)
		if err != nil {
			return nil, err
		}
	}

	return entry, nil
}

func (c *Cache) fetch(ctx context.Context) (*cached, error) {
	info, err := c.source.FetchCredential(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: fetch: %v", backend.ErrCredentialSource, err)
	}

	return &cached{
		credential: &Credential{
			AccessKeyID:     info.AccessKeyID,
			SecretAccessKey: info.SecretAccessKey,
			SessionToken:    info.SessionToken,
		},
		expireAt: c.parseExpiry(info.Expiration),
	}, nil
}

// parseExpiry resolves the source-supplied expiration. Absent expirations
// mark the credential as effectively non-expiring; unparsable ones fall back
// to a conservative short lifetime rather than failing the refresh.
func (c *Cache) parseExpiry(expiration string) time.Time {
	if expiration == "" {
		return c.now().Add(staticCredentialTTL)
	}
	expireAt, err := time.Parse(time.RFC3339, expiration)
	if err != nil {
		return c.now().Add(unparsableExpiryTTL)
	}
	return expireAt
}
