// Package periodic implements the Periodic Tasks component (spec.md
// §4.9, C9): the stats-digest tick. The proactive session-token refresh
// tick lives in sessiontoken.Manager.Run, since that ticker owns state
// (the token) that periodic would otherwise need a second lock to reach.
package periodic

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/phuslu/log"

	"github.com/joestump/marketwatch/internal/notifier"
	"github.com/joestump/marketwatch/internal/supervisor"
)

// StatsDigest periodically summarizes every user's counters via
// Notifier.SendAdmin.
type StatsDigest struct {
	sup      *supervisor.Supervisor
	notify   notifier.Notifier
	interval time.Duration
	logger   log.Logger
}

// NewStatsDigest returns a StatsDigest that fires every interval.
func NewStatsDigest(sup *supervisor.Supervisor, notify notifier.Notifier, interval time.Duration, logger log.Logger) *StatsDigest {
	if interval <= 0 {
		interval = time.Hour
	}
	return &StatsDigest{sup: sup, notify: notify, interval: interval, logger: logger}
}

// Run blocks, firing the digest every interval until ctx is cancelled.
func (d *StatsDigest) Run(ctx context.Context) {
	ticker := time.NewTicker(d.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			d.fire(ctx)
		case <-ctx.Done():
			return
		}
	}
}

func (d *StatsDigest) fire(ctx context.Context) {
	stats := d.sup.GlobalStats()
	if len(stats) == 0 {
		return
	}
	var b strings.Builder
	b.WriteString(fmt.Sprintf("stats digest: %d active users\n", len(stats)))
	for _, s := range stats {
		b.WriteString(fmt.Sprintf("- %s [%s]: %d cycles, %d found, %d new, %d sent, %d errors\n",
			s.UserID, s.State, s.Stats.CyclesRun, s.Stats.ItemsFound, s.Stats.ItemsNew, s.Stats.ItemsSent, s.Stats.Errors))
	}
	if err := d.notify.SendAdmin(ctx, b.String()); err != nil {
		d.logger.Warn().Str("component", "periodic").Err(err).Msg("stats digest delivery failed")
	}
}
