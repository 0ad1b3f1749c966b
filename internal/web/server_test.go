package web

import (
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/phuslu/log"

	"github.com/joestump/marketwatch/internal/allowlist"
	"github.com/joestump/marketwatch/internal/model"
	"github.com/joestump/marketwatch/internal/scheduler"
	"github.com/joestump/marketwatch/internal/supervisor"
)

func TestHealthzReturnsOK(t *testing.T) {
	dir := t.TempDir()
	allow, err := allowlist.New(filepath.Join(dir, "whitelist.txt"))
	if err != nil {
		t.Fatalf("allowlist.New: %v", err)
	}
	pool := scheduler.NewPool(1, 1, 1)
	defer pool.Shutdown()
	sched := scheduler.New(pool, nil, nil, nil, nil, scheduler.Config{}, log.DefaultLogger)
	sup := supervisor.New(allow, sched, dir, model.UserSettings{Queries: []string{"x"}})

	s := New(0, nil, sup)

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	w := httptest.NewRecorder()
	s.mux.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("status = %d, want 200", w.Code)
	}
	if w.Body.String() != "ok" {
		t.Errorf("body = %q, want %q", w.Body.String(), "ok")
	}
}

func TestStatusPageRendersWithNoUsers(t *testing.T) {
	dir := t.TempDir()
	allow, err := allowlist.New(filepath.Join(dir, "whitelist.txt"))
	if err != nil {
		t.Fatalf("allowlist.New: %v", err)
	}
	pool := scheduler.NewPool(1, 1, 1)
	defer pool.Shutdown()
	sched := scheduler.New(pool, nil, nil, nil, nil, scheduler.Config{}, log.DefaultLogger)
	sup := supervisor.New(allow, sched, dir, model.UserSettings{Queries: []string{"x"}})

	s := New(0, nil, sup)

	req := httptest.NewRequest(http.MethodGet, "/status", nil)
	w := httptest.NewRecorder()
	s.mux.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("status = %d, want 200, body: %s", w.Code, w.Body.String())
	}
}
