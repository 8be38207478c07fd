// Package credential caches short-lived credentials from an external source
// and refreshes them ahead of expiry.
package credential

import (
	"context"
	"time"
)

// Credential is an immutable set of access credentials. Instances are shared
// by reference across concurrent readers and never mutated after
// construction.
type Credential struct {
	AccessKeyID     string
	SecretAccessKey string
	SessionToken    string
}

// Info is the raw descriptor returned by a Source. Expiration is an RFC 3339
// timestamp; empty means the source is static.
type Info struct {
	AccessKeyID     string
	SecretAccessKey string
	SessionToken    string
	Expiration      string
}

// Source is the external credential capability. Static credentials,
// short-lived token vendors, and test doubles all satisfy the same
// two-method contract; the cache never knows which it is talking to.
type Source interface {
	// FetchCredential returns the current credential descriptor.
	FetchCredential(ctx context.Context) (*Info, error)

	// TriggerRefresh signals the source to renew its credential. The cache
	// calls this when a fetch returns near-stale data.
	TriggerRefresh(ctx context.Context) error
}

// StaticSource wraps a fixed credential in the Source contract.
type StaticSource struct {
	Info Info
}

// FetchCredential returns the fixed credential descriptor.
func (s *StaticSource) FetchCredential(ctx context.Context) (*Info, error) {
	info := s.Info
	return &info, nil
}

// TriggerRefresh is a no-op for static credentials.
func (s *StaticSource) TriggerRefresh(ctx context.Context) error {
	return nil
}

// cached pairs a credential with its expiry. Owned exclusively by the cache;
// replaced wholesale on refresh, never mutated in place.
type cached struct {
	credential *Credential
	expireAt   time.Time
}
