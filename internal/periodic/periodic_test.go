package periodic

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/phuslu/log"

	"github.com/joestump/marketwatch/internal/allowlist"
	"github.com/joestump/marketwatch/internal/model"
	"github.com/joestump/marketwatch/internal/scheduler"
	"github.com/joestump/marketwatch/internal/supervisor"
)

type countingNotifier struct {
	admin int
}

func (n *countingNotifier) SendText(ctx context.Context, userID, text string) error  { return nil }
func (n *countingNotifier) SendPhoto(ctx context.Context, userID, url, caption string) error {
	return nil
}
func (n *countingNotifier) SendAdmin(ctx context.Context, text string) error {
	n.admin++
	return nil
}

func TestStatsDigestSkipsWhenNoUsers(t *testing.T) {
	dir := t.TempDir()
	allow, err := allowlist.New(filepath.Join(dir, "whitelist.txt"))
	if err != nil {
		t.Fatalf("allowlist.New: %v", err)
	}
	pool := scheduler.NewPool(1, 1, 1)
	defer pool.Shutdown()
	sched := scheduler.New(pool, nil, nil, nil, nil, scheduler.Config{}, log.DefaultLogger)
	sup := supervisor.New(allow, sched, dir, model.UserSettings{Queries: []string{"x"}})

	n := &countingNotifier{}
	d := NewStatsDigest(sup, n, time.Hour, log.DefaultLogger)
	d.fire(context.Background())

	if n.admin != 0 {
		t.Errorf("SendAdmin calls = %d, want 0 when no users have been started", n.admin)
	}
}
