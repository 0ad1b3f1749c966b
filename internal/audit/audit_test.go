package audit

import (
	"context"
	"path/filepath"
	"testing"
	"time"
)

func TestOpenAppliesMigrationsAndRoundTrips(t *testing.T) {
	path := filepath.Join(t.TempDir(), "marketwatch.db")
	db, err := Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer db.Close()

	ctx := context.Background()
	now := time.Now()
	it := Iteration{UserID: "u1", Query: "lens", ItemsFound: 5, ItemsNew: 2, ItemsSent: 2, StartedAt: now, EndedAt: now.Add(time.Second)}
	if err := db.RecordIteration(ctx, it); err != nil {
		t.Fatalf("RecordIteration: %v", err)
	}
	if err := db.RecordEvent(ctx, Event{UserID: "u1", Kind: "auth_refresh", Message: "refreshed", CreatedAt: now}); err != nil {
		t.Fatalf("RecordEvent: %v", err)
	}

	iters, err := db.RecentIterations(ctx, 10)
	if err != nil {
		t.Fatalf("RecentIterations: %v", err)
	}
	if len(iters) != 1 || iters[0].UserID != "u1" || iters[0].ItemsNew != 2 {
		t.Errorf("RecentIterations = %+v, want one row for u1 with ItemsNew=2", iters)
	}

	events, err := db.RecentEvents(ctx, 10)
	if err != nil {
		t.Fatalf("RecentEvents: %v", err)
	}
	if len(events) != 1 || events[0].Kind != "auth_refresh" {
		t.Errorf("RecentEvents = %+v, want one auth_refresh row", events)
	}
}
