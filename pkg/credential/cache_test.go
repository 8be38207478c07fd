package credential

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/objstream/objstream/pkg/backend"
)

// countingSource records fetch and refresh calls. Each fetch returns a
// distinct access key so tests can tell credentials apart.
type countingSource struct {
	mu       sync.Mutex
	fetches  atomic.Int64
	refreshs atomic.Int64

	expiration string
	fetchErr   error
	refreshErr error

	// afterRefresh, when set, replaces expiration once TriggerRefresh
	// has been called.
	afterRefresh string
}

func (s *countingSource) FetchCredential(ctx context.Context) (*Info, error) {
	n := s.fetches.Add(1)
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fetchErr != nil {
		return nil, s.fetchErr
	}
	return &Info{
		AccessKeyID:     fmt.Sprintf("AKID-%d", n),
		SecretAccessKey: "secret",
		SessionToken:    "token",
		Expiration:      s.expiration,
	}, nil
}

func (s *countingSource) TriggerRefresh(ctx context.Context) error {
	s.refreshs.Add(1)
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.refreshErr != nil {
		return s.refreshErr
	}
	if s.afterRefresh != "" {
		s.expiration = s.afterRefresh
	}
	return nil
}

func fixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

func TestCache_FreshCredentialServedWithoutFetch(t *testing.T) {
	now := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	src := &countingSource{expiration: now.Add(2 * time.Hour).Format(time.RFC3339)}
	c := NewCache(src, 0)
	c.now = fixedClock(now)

	first, err := c.ActiveCredential(context.Background())
	require.NoError(t, err)
	require.Equal(t, int64(1), src.fetches.Load())

	// Well short of the threshold: the cached credential is reused.
	c.now = fixedClock(now.Add(50 * time.Second))
	second, err := c.ActiveCredential(context.Background())
	require.NoError(t, err)
	assert.Same(t, first, second)
	assert.Equal(t, int64(1), src.fetches.Load())
	assert.Equal(t, int64(0), src.refreshs.Load())
}

func TestCache_RefreshWithinThreshold(t *testing.T) {
	now := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	src := &countingSource{expiration: now.Add(16 * time.Minute).Format(time.RFC3339)}
	c := NewCache(src, 0)
	c.now = fixedClock(now)

	_, err := c.ActiveCredential(context.Background())
	require.NoError(t, err)
	require.Equal(t, int64(1), src.fetches.Load())

	// 950s later the credential is inside the 15-minute refresh window.
	src.mu.Lock()
	src.expiration = now.Add(3 * time.Hour).Format(time.RFC3339)
	src.mu.Unlock()
	c.now = fixedClock(now.Add(950 * time.Second))

	cred, err := c.ActiveCredential(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "AKID-2", cred.AccessKeyID)
	assert.Equal(t, int64(2), src.fetches.Load())
}

func TestCache_ConcurrentCallersSingleFetch(t *testing.T) {
	now := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	src := &countingSource{expiration: now.Add(2 * time.Hour).Format(time.RFC3339)}
	c := NewCache(src, 0)
	c.now = fixedClock(now)

	const callers = 32
	var wg sync.WaitGroup
	creds := make([]*Credential, callers)
	errs := make([]error, callers)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			creds[i], errs[i] = c.ActiveCredential(context.Background())
		}(i)
	}
	wg.Wait()

	assert.Equal(t, int64(1), src.fetches.Load(), "contended refresh must hit the source once")
	for i := 0; i < callers; i++ {
		require.NoError(t, errs[i])
		assert.Same(t, creds[0], creds[i])
	}
}

func TestCache_NearStaleFetchTriggersSourceRefresh(t *testing.T) {
	now := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	src := &countingSource{
		// The source hands back a credential already inside the window.
		expiration:   now.Add(5 * time.Minute).Format(time.RFC3339),
		afterRefresh: now.Add(2 * time.Hour).Format(time.RFC3339),
	}
	c := NewCache(src, 0)
	c.now = fixedClock(now)

	cred, err := c.ActiveCredential(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(1), src.refreshs.Load())
	assert.Equal(t, int64(2), src.fetches.Load())
	assert.Equal(t, "AKID-2", cred.AccessKeyID)
	assert.Equal(t, now.Add(2*time.Hour), c.ExpireAt())
}

func TestCache_UnparsableExpirationFallsBack(t *testing.T) {
	now := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	src := &countingSource{expiration: "next tuesday"}
	c := NewCache(src, 0)
	c.now = fixedClock(now)

	_, err := c.ActiveCredential(context.Background())
	require.NoError(t, err)
	assert.Equal(t, now.Add(time.Hour), c.ExpireAt())
	// The assumed hour exceeds the threshold, so no renew round trip.
	assert.Equal(t, int64(0), src.refreshs.Load())
}

func TestCache_MissingExpirationTreatedAsStatic(t *testing.T) {
	now := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	src := &countingSource{}
	c := NewCache(src, 0)
	c.now = fixedClock(now)

	_, err := c.ActiveCredential(context.Background())
	require.NoError(t, err)
	assert.Equal(t, now.Add(365*24*time.Hour), c.ExpireAt())

	// A year-long lifetime never re-fetches under normal clocks.
	c.now = fixedClock(now.Add(24 * time.Hour))
	_, err = c.ActiveCredential(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(1), src.fetches.Load())
}

func TestCache_FetchErrorIsCredentialSourceError(t *testing.T) {
	src := &countingSource{fetchErr: errors.New("profile vanished")}
	c := NewCache(src, 0)

	_, err := c.ActiveCredential(context.Background())
	require.Error(t, err)
	assert.True(t, errors.Is(err, backend.ErrCredentialSource))
	assert.True(t, backend.IsCredentialSource(err))
}

func TestCache_TriggerRefreshErrorSurfaces(t *testing.T) {
	now := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	src := &countingSource{
		expiration: now.Add(time.Minute).Format(time.RFC3339),
		refreshErr: errors.New("renew endpoint down"),
	}
	c := NewCache(src, 0)
	c.now = fixedClock(now)

	_, err := c.ActiveCredential(context.Background())
	require.Error(t, err)
	assert.True(t, errors.Is(err, backend.ErrCredentialSource))
	assert.Zero(t, c.ExpireAt(), "failed refresh must not cache anything")
}

func TestCache_CustomThreshold(t *testing.T) {
	now := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	src := &countingSource{expiration: now.Add(10 * time.Minute).Format(time.RFC3339)}
	c := NewCache(src, time.Minute)
	c.now = fixedClock(now)

	// Ten minutes out is fresh under a one-minute threshold.
	_, err := c.ActiveCredential(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(0), src.refreshs.Load())
	assert.Equal(t, int64(1), src.fetches.Load())
}

func TestStaticSource(t *testing.T) {
	src := &StaticSource{Info: Info{AccessKeyID: "AKID", SecretAccessKey: "secret"}}

	info, err := src.FetchCredential(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "AKID", info.AccessKeyID)
	assert.Empty(t, info.Expiration)
	require.NoError(t, src.TriggerRefresh(context.Background()))
}
