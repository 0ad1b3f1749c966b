package sessiontoken

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/phuslu/log"
)

type countingProvider struct {
	calls int32
	delay time.Duration
	seq   int32
}

func (p *countingProvider) FetchToken(ctx context.Context) (string, error) {
	atomic.AddInt32(&p.calls, 1)
	if p.delay > 0 {
		time.Sleep(p.delay)
	}
	n := atomic.AddInt32(&p.seq, 1)
	return "seed" + string(rune('0'+n)) + "_1700000000000_rest", nil
}

func newTestManager(p TokenProvider, cfg Config) *Manager {
	return NewManager(p, cfg, log.DefaultLogger)
}

func TestManagerRefreshSingleFlight(t *testing.T) {
	p := &countingProvider{delay: 20 * time.Millisecond}
	m := newTestManager(p, Config{MinRefreshInterval: time.Hour})

	var wg sync.WaitGroup
	const n = 10
	wg.Add(n)
	for i := 0; i < n; i++ {
		go func() {
			defer wg.Done()
			if _, err := m.Refresh(context.Background(), "concurrent"); err != nil {
				t.Errorf("Refresh: %v", err)
			}
		}()
	}
	wg.Wait()

	if got := atomic.LoadInt32(&p.calls); got != 1 {
		t.Errorf("provider FetchToken calls = %d, want 1 (single-flight)", got)
	}
}

func TestManagerRefreshThrottled(t *testing.T) {
	p := &countingProvider{}
	m := newTestManager(p, Config{MinRefreshInterval: time.Hour})

	if _, err := m.Refresh(context.Background(), "initial"); err != nil {
		t.Fatalf("first Refresh: %v", err)
	}
	if _, err := m.Refresh(context.Background(), "too_soon"); err != nil {
		t.Fatalf("second Refresh: %v", err)
	}
	if got := atomic.LoadInt32(&p.calls); got != 1 {
		t.Errorf("provider FetchToken calls = %d, want 1 (throttled)", got)
	}
}

// TestManagerRefreshAuthReasonStillThrottled verifies spec.md §4.2 #4:
// a reactive refresh after an auth error is throttled exactly like any
// other reason — it returns the current (already-fresh) snapshot without
// calling the provider again, leaving it to the caller's own per-page
// retry to re-attempt the request.
func TestManagerRefreshAuthReasonStillThrottled(t *testing.T) {
	p := &countingProvider{}
	m := newTestManager(p, Config{MinRefreshInterval: time.Hour})

	first, err := m.Refresh(context.Background(), "initial")
	if err != nil {
		t.Fatalf("first Refresh: %v", err)
	}
	second, err := m.Refresh(context.Background(), "auth-error")
	if err != nil {
		t.Fatalf("auth-error Refresh: %v", err)
	}
	if got := atomic.LoadInt32(&p.calls); got != 1 {
		t.Errorf("provider FetchToken calls = %d, want 1 (throttle applies uniformly)", got)
	}
	if second != first {
		t.Errorf("throttled auth-error Refresh returned %+v, want unchanged snapshot %+v", second, first)
	}
}

func TestManagerCurrentBeforeAnyRefresh(t *testing.T) {
	m := newTestManager(&countingProvider{}, Config{})
	if m.Current().Valid() {
		t.Error("Current() before any Refresh: want invalid snapshot")
	}
}
