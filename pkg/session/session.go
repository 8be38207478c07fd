// Package session owns the live backend handle for a client and rebuilds it
// when credentials refresh.
//
// The handle, its config, and its expiry form one immutable snapshot held
// behind a single atomic pointer. Readers never observe a torn update;
// rebuilds swap the whole snapshot or nothing.
package session

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/objstream/objstream/pkg/backend"
	"github.com/objstream/objstream/pkg/credential"
)

// DefaultRefreshThreshold is how far ahead of expiry a rebuild is triggered.
const DefaultRefreshThreshold = 15 * time.Minute

// BuildFunc constructs a backend from a config. The provider constructors
// (s3.New, gcs.New) satisfy it directly.
type BuildFunc func(ctx context.Context, cfg backend.Config) (backend.Backend, error)

// Snapshot is one generation of the session: the live handle, the config it
// was built from, and when its credentials expire. ExpireAt is zero for
// static credentials.
type Snapshot struct {
	Backend  backend.Backend
	Config   backend.Config
	ExpireAt time.Time
}

// Session tracks the current backend generation for a client.
type Session struct {
	kind      backend.Kind
	build     BuildFunc
	creds     *credential.Cache
	threshold time.Duration
	logger    *zap.Logger

	mu      sync.Mutex
	current atomic.Pointer[Snapshot]

	// retired holds superseded backends. They stay open until Close so
	// callers still transferring against an older snapshot are never
	// interrupted by a rebuild. Guarded by mu.
	retired []backend.Backend

	// now is swapped in tests.
	now func() time.Time
}

// Option configures a Session.
type Option func(*Session)

// WithCredentialCache attaches a credential cache. Sessions without one hold
// static credentials and never rebuild.
func WithCredentialCache(cache *credential.Cache) Option {
	return func(s *Session) { s.creds = cache }
}

// WithRefreshThreshold overrides the refresh-ahead threshold.
func WithRefreshThreshold(threshold time.Duration) Option {
	return func(s *Session) {
		if threshold > 0 {
			s.threshold = threshold
		}
	}
}

// WithLogger attaches a structured logger.
func WithLogger(logger *zap.Logger) Option {
	return func(s *Session) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// New builds the initial backend generation and returns the session.
func New(ctx context.Context, kind backend.Kind, cfg backend.Config, build BuildFunc, opts ...Option) (*Session, error) {
	s := &Session{
		kind:      kind,
		build:     build,
		threshold: DefaultRefreshThreshold,
		logger:    zap.NewNop(),
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}

	// With a credential source attached, the first generation is already
	// built from a fetched credential rather than whatever the config holds.
	if s.creds != nil {
		cred, err := s.creds.ActiveCredential(ctx)
		if err != nil {
			return nil, err
		}
		cfg = cfg.WithCredentials(cred.AccessKeyID, cred.SecretAccessKey, cred.SessionToken)
	}

	snap, err := s.rebuild(ctx, cfg)
	if err != nil {
		return nil, err
	}
	s.current.Store(snap)
	return s, nil
}

// Handle returns the current snapshot, rebuilding first if the session's
// credentials are due to expire. Every transfer operation calls this before
// touching the backend.
func (s *Session) Handle(ctx context.Context) (*Snapshot, error) {
	if err := s.MaybeRefresh(ctx); err != nil {
		return nil, err
	}
	return s.current.Load(), nil
}

// MaybeRefresh rebuilds the backend when the current generation's expiry is
// within the refresh threshold. Static-credential sessions are a no-op.
// Rebuild failures are retryable and leave the previous generation in place.
// The superseded backend stays usable until Close, so snapshots obtained
// before the swap keep working.
func (s *Session) MaybeRefresh(ctx context.Context) error {
	if s.creds == nil {
		return nil
	}
	if !s.due(s.current.Load()) {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	// Re-check: another caller may have finished the rebuild while we
	// waited on the lock.
	snap := s.current.Load()
	if !s.due(snap) {
		return nil
	}

	cred, err := s.creds.ActiveCredential(ctx)
	if err != nil {
		return err
	}

	cfg := snap.Config.WithCredentials(cred.AccessKeyID, cred.SecretAccessKey, cred.SessionToken)
	next, err := s.rebuild(ctx, cfg)
	if err != nil {
		return err
	}

	// Expiry is monotonically non-decreasing across generations.
	if next.ExpireAt.Before(snap.ExpireAt) {
		next.ExpireAt = snap.ExpireAt
	}

	s.current.Store(next)

	// The superseded backend may still be serving callers that obtained
	// their snapshot before the swap; it is retired, not closed.
	if snap.Backend != nil {
		s.retired = append(s.retired, snap.Backend)
	}

	s.logger.Debug("backend session rebuilt",
		zap.String("provider", s.kind.String()),
		zap.Time("expire_at", next.ExpireAt),
	)
	return nil
}

// due reports whether the snapshot's credentials are within the refresh
// threshold of expiring. Snapshots without an expiry never come due.
func (s *Session) due(snap *Snapshot) bool {
	if snap == nil || snap.ExpireAt.IsZero() {
		return false
	}
	return !s.now().Before(snap.ExpireAt.Add(-s.threshold))
}

// rebuild constructs a fresh snapshot from cfg. Nothing is swapped on
// failure; the backend, config, and expiry only change together.
func (s *Session) rebuild(ctx context.Context, cfg backend.Config) (*Snapshot, error) {
	b, err := s.build(ctx, cfg)
	if err != nil {
		return nil, err
	}
	snap := &Snapshot{Backend: b, Config: cfg}
	if s.creds != nil {
		snap.ExpireAt = s.creds.ExpireAt()
	}
	return snap, nil
}

// Close releases the current backend handle and every retired generation.
func (s *Session) Close() error {
	s.mu.Lock()
	retired := s.retired
	s.retired = nil
	s.mu.Unlock()

	var firstErr error
	for _, b := range retired {
		if err := b.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	if snap := s.current.Load(); snap != nil && snap.Backend != nil {
		if err := snap.Backend.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
