package supervisor

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/phuslu/log"

	"github.com/joestump/marketwatch/internal/adapter"
	"github.com/joestump/marketwatch/internal/allowlist"
	"github.com/joestump/marketwatch/internal/history"
	"github.com/joestump/marketwatch/internal/model"
	"github.com/joestump/marketwatch/internal/notifier/console"
	"github.com/joestump/marketwatch/internal/scheduler"
	"github.com/joestump/marketwatch/internal/sessiontoken"
)

type stubAdapter struct{}

func (stubAdapter) Search(ctx context.Context, query string, page, rows int, token sessiontoken.Snapshot) ([]model.Item, error) {
	return nil, &adapter.Error{Kind: adapter.KindEmptyPage, Op: "stub"}
}
func (stubAdapter) RequestDelay() time.Duration { return time.Millisecond }

type stubProvider struct{}

func (stubProvider) FetchToken(ctx context.Context) (string, error) {
	return "seed_1700000000000_rest", nil
}

func newTestSupervisor(t *testing.T) *Supervisor {
	t.Helper()
	dir := t.TempDir()
	allow, err := allowlist.New(filepath.Join(dir, "whitelist.txt"))
	if err != nil {
		t.Fatalf("allowlist.New: %v", err)
	}
	if err := allow.Add("u1"); err != nil {
		t.Fatalf("Add: %v", err)
	}

	pool := scheduler.NewPool(1, 2, 4)
	t.Cleanup(pool.Shutdown)
	tokens := sessiontoken.NewManager(stubProvider{}, sessiontoken.Config{MinRefreshInterval: time.Hour}, log.DefaultLogger)
	if _, err := tokens.Refresh(context.Background(), "initial"); err != nil {
		t.Fatalf("Refresh: %v", err)
	}
	hist := history.NewStore(dir)
	notify := console.New(log.DefaultLogger)
	sched := scheduler.New(pool, stubAdapter{}, tokens, hist, notify, scheduler.Config{ItemSleep: time.Millisecond}, log.DefaultLogger)

	return New(allow, sched, dir, model.UserSettings{Queries: []string{"lens"}, PollIntervalS: 1, PagesPerCycle: 1, RowsPerPage: 30, MaxAgeMin: 1440, NotifyNewOnly: true})
}

func TestStartRejectsUnauthorizedUser(t *testing.T) {
	s := newTestSupervisor(t)
	if err := s.Start(context.Background(), "intruder"); err == nil {
		t.Error("Start for non-allow-listed user: want error")
	}
}

func TestStartStopLifecycle(t *testing.T) {
	s := newTestSupervisor(t)
	defer s.Shutdown()

	if err := s.Start(context.Background(), "u1"); err != nil {
		t.Fatalf("Start: %v", err)
	}
	status, err := s.Status("u1")
	if err != nil {
		t.Fatalf("Status: %v", err)
	}
	if status.State != "running" {
		t.Errorf("Status.State = %q, want running", status.State)
	}

	if err := s.Stop("u1"); err != nil {
		t.Fatalf("Stop: %v", err)
	}
}

func TestGlobalStatsListsStartedUsers(t *testing.T) {
	s := newTestSupervisor(t)
	defer s.Shutdown()

	if err := s.Start(context.Background(), "u1"); err != nil {
		t.Fatalf("Start: %v", err)
	}
	stats := s.GlobalStats()
	if len(stats) != 1 || stats[0].UserID != "u1" {
		t.Errorf("GlobalStats = %+v, want one entry for u1", stats)
	}
}
