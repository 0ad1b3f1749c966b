package mcpserver

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/phuslu/log"

	"github.com/joestump/marketwatch/internal/adapter"
	"github.com/joestump/marketwatch/internal/allowlist"
	"github.com/joestump/marketwatch/internal/history"
	"github.com/joestump/marketwatch/internal/model"
	"github.com/joestump/marketwatch/internal/notifier/console"
	"github.com/joestump/marketwatch/internal/scheduler"
	"github.com/joestump/marketwatch/internal/sessiontoken"
	"github.com/joestump/marketwatch/internal/supervisor"
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

func newTestServer(t *testing.T) *Server {
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
	sup := supervisor.New(allow, sched, dir, model.UserSettings{Queries: []string{"lens"}, PollIntervalS: 1, PagesPerCycle: 1, RowsPerPage: 30, MaxAgeMin: 1440, NotifyNewOnly: true})
	t.Cleanup(sup.Shutdown)

	return NewServer(sup)
}

func makeRequest(name string, args map[string]any) mcp.CallToolRequest {
	return mcp.CallToolRequest{
		Params: mcp.CallToolParams{Name: name, Arguments: args},
	}
}

func resultText(t *testing.T, result *mcp.CallToolResult) string {
	t.Helper()
	if len(result.Content) == 0 {
		t.Fatal("result has no content")
	}
	tc, ok := result.Content[0].(mcp.TextContent)
	if !ok {
		t.Fatalf("result content is %T, not TextContent", result.Content[0])
	}
	return tc.Text
}

func TestHandleStartUserRejectsMissingUserID(t *testing.T) {
	s := newTestServer(t)
	result, err := s.handleStartUser(context.Background(), makeRequest("start_user", map[string]any{}))
	if err != nil {
		t.Fatalf("handleStartUser: %v", err)
	}
	if !result.IsError {
		t.Error("handleStartUser with no user_id: want IsError true")
	}
}

func TestHandleStartUserRejectsUnauthorized(t *testing.T) {
	s := newTestServer(t)
	result, err := s.handleStartUser(context.Background(), makeRequest("start_user", map[string]any{"user_id": "intruder"}))
	if err != nil {
		t.Fatalf("handleStartUser: %v", err)
	}
	if !result.IsError {
		t.Error("handleStartUser for non-allow-listed user: want IsError true")
	}
}

func TestHandleStartAndStopUser(t *testing.T) {
	s := newTestServer(t)
	result, err := s.handleStartUser(context.Background(), makeRequest("start_user", map[string]any{"user_id": "u1"}))
	if err != nil {
		t.Fatalf("handleStartUser: %v", err)
	}
	if result.IsError {
		t.Fatalf("handleStartUser: want success, got error result: %s", resultText(t, result))
	}

	result, err = s.handleStopUser(context.Background(), makeRequest("stop_user", map[string]any{"user_id": "u1"}))
	if err != nil {
		t.Fatalf("handleStopUser: %v", err)
	}
	if result.IsError {
		t.Fatalf("handleStopUser: want success, got error result: %s", resultText(t, result))
	}
}

func TestHandleGlobalStats(t *testing.T) {
	s := newTestServer(t)
	result, err := s.handleGlobalStats(context.Background(), makeRequest("global_stats", map[string]any{}))
	if err != nil {
		t.Fatalf("handleGlobalStats: %v", err)
	}
	if result.IsError {
		t.Fatalf("handleGlobalStats: want success, got error result: %s", resultText(t, result))
	}
}
