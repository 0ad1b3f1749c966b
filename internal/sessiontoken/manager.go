package sessiontoken

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/phuslu/log"
)

// Manager owns the mutable session token (spec.md §4.2). Reads go through
// Current(), which copies the Snapshot out under a brief hold of the
// mutex; reads are not lock-free, but they never wait for a provider
// fetch, since Refresh releases the mutex while fetching. Writes go
// through Refresh(), which coalesces concurrent
// callers into a single in-flight fetch (single-flight), same as the
// teacher's internal/session.Manager trigger-channel pattern generalized
// from "run a tier" to "fetch a token".
type Manager struct {
	provider TokenProvider
	logger   log.Logger

	minRefreshInterval time.Duration
	proactiveInterval  time.Duration

	mu          sync.Mutex
	current     Snapshot
	lastAttempt time.Time
	inFlight    chan struct{} // non-nil while a refresh is in progress
	inFlightErr error

	stopOnce sync.Once
	stopCh   chan struct{}
	doneCh   chan struct{}
}

// Config carries the tunables spec.md §4.2 names.
type Config struct {
	MinRefreshInterval time.Duration // default 300s
	ProactiveInterval  time.Duration // default 3600s
}

// NewManager constructs a Manager. The returned Manager has no token
// until the first successful Refresh; Current() on a zero-value Manager
// returns an invalid Snapshot.
func NewManager(provider TokenProvider, cfg Config, logger log.Logger) *Manager {
	if cfg.MinRefreshInterval <= 0 {
		cfg.MinRefreshInterval = 300 * time.Second
	}
	if cfg.ProactiveInterval <= 0 {
		cfg.ProactiveInterval = 3600 * time.Second
	}
	return &Manager{
		provider:           provider,
		logger:             logger,
		minRefreshInterval: cfg.MinRefreshInterval,
		proactiveInterval:  cfg.ProactiveInterval,
		stopCh:             make(chan struct{}),
		doneCh:             make(chan struct{}),
	}
}

// Current returns the latest known token snapshot without blocking on any
// in-flight refresh.
func (m *Manager) Current() Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.current
}

// Refresh asks the provider for a fresh token, coalescing concurrent
// callers (single-flight): if a refresh is already in progress, callers
// wait on it rather than triggering a second fetch. A refresh requested
// within minRefreshInterval of the last *attempt* is throttled and
// returns the current snapshot unchanged, with no exception for a
// reactive ("auth-error") refresh (spec.md §4.2 #4): the throttle still
// applies, it just means the caller treats the already-current token as
// freshly refreshed and retries its request against it, rather than the
// Session Manager silently re-hitting the provider on every page
// failure across every worker.
func (m *Manager) Refresh(ctx context.Context, reason string) (Snapshot, error) {
	m.mu.Lock()
	if ch := m.inFlight; ch != nil {
		m.mu.Unlock()
		select {
		case <-ch:
			m.mu.Lock()
			snap, err := m.current, m.inFlightErr
			m.mu.Unlock()
			return snap, err
		case <-ctx.Done():
			return Snapshot{}, ctx.Err()
		}
	}

	if !m.lastAttempt.IsZero() && time.Since(m.lastAttempt) < m.minRefreshInterval {
		snap := m.current
		m.mu.Unlock()
		return snap, nil
	}

	ch := make(chan struct{})
	m.inFlight = ch
	m.lastAttempt = time.Now()
	m.mu.Unlock()

	m.logger.Info().Str("component", "session_manager").Str("reason", reason).Msg("refreshing session token")
	cookie, err := m.provider.FetchToken(ctx)

	m.mu.Lock()
	if err != nil {
		m.inFlightErr = fmt.Errorf("refresh token: %w", err)
	} else {
		m.current = NewSnapshot(cookie, time.Now())
		m.inFlightErr = nil
	}
	snap, retErr := m.current, m.inFlightErr
	m.inFlight = nil
	m.mu.Unlock()
	close(ch)

	if retErr != nil {
		m.logger.Error().Str("component", "session_manager").Err(retErr).Msg("session token refresh failed")
	}
	return snap, retErr
}

// Test performs a lightweight validity check of the current token by
// requiring it to be non-empty; callers needing a live upstream check
// should use the Adapter's Search against a cheap page instead — Test
// only verifies local state, matching spec.md §4.2's narrow contract.
func (m *Manager) Test(ctx context.Context) error {
	if !m.Current().Valid() {
		return fmt.Errorf("session token: no valid token present")
	}
	return nil
}

// Run starts the proactive-refresh ticker; it blocks until Shutdown is
// called or ctx is cancelled.
func (m *Manager) Run(ctx context.Context) {
	defer close(m.doneCh)
	ticker := time.NewTicker(m.proactiveInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			if _, err := m.Refresh(ctx, "proactive"); err != nil {
				m.logger.Warn().Str("component", "session_manager").Err(err).Msg("proactive refresh failed")
			}
		case <-m.stopCh:
			return
		case <-ctx.Done():
			return
		}
	}
}

// Shutdown stops the proactive ticker and waits for Run to return.
func (m *Manager) Shutdown() {
	m.stopOnce.Do(func() { close(m.stopCh) })
	<-m.doneCh
}
