// Package web implements the supplemental Status Dashboard
// (SPEC_FULL.md §9.8): a read-only GET /status page over the Audit Store
// plus GET /healthz. Grounded on the teacher's internal/web.Server —
// same embed.FS template shape, same html/template + goldmark rendering
// — generalized from a Claude CLI session dashboard to a marketwatch
// per-user/per-iteration dashboard.
package web

import (
	"bytes"
	"context"
	"embed"
	"fmt"
	"html/template"
	"net/http"
	"time"

	"github.com/yuin/goldmark"

	"github.com/joestump/marketwatch/internal/audit"
	"github.com/joestump/marketwatch/internal/supervisor"
)

//go:embed templates/*.html
var templateFS embed.FS

// Server is the HTTP server for the status dashboard.
type Server struct {
	audit *audit.DB
	sup   *supervisor.Supervisor
	mux   *http.ServeMux
	tmpl  *template.Template
	srv   *http.Server
}

// New returns a Server listening on port, reading from auditDB and sup.
func New(port int, auditDB *audit.DB, sup *supervisor.Supervisor) *Server {
	s := &Server{audit: auditDB, sup: sup, mux: http.NewServeMux()}
	s.parseTemplates()
	s.registerRoutes()
	s.srv = &http.Server{
		Addr:         fmt.Sprintf(":%d", port),
		Handler:      s.mux,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	return s
}

func (s *Server) parseTemplates() {
	funcMap := template.FuncMap{
		"fmtTime": func(t time.Time) string {
			if t.IsZero() {
				return "--"
			}
			return t.UTC().Format("2006-01-02 15:04:05 UTC")
		},
		"statusClass": func(state string) string {
			switch state {
			case "running":
				return "status-running"
			case "paused":
				return "status-paused"
			case "stopping":
				return "status-stopping"
			default:
				return "status-stopped"
			}
		},
		"renderMarkdown": func(md string) template.HTML {
			var buf bytes.Buffer
			if err := goldmark.Convert([]byte(md), &buf); err != nil {
				return template.HTML(template.HTMLEscapeString(md))
			}
			return template.HTML(buf.String())
		},
	}
	s.tmpl = template.Must(template.New("").Funcs(funcMap).ParseFS(templateFS, "templates/*.html"))
}

func (s *Server) registerRoutes() {
	s.mux.HandleFunc("/status", s.handleStatus)
	s.mux.HandleFunc("/healthz", s.handleHealthz)
}

type statusPageData struct {
	Users      []supervisor.UserStatus
	Iterations []audit.Iteration
	Events     []audit.Event
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	data := statusPageData{Users: s.sup.GlobalStats()}

	if s.audit != nil {
		iters, err := s.audit.RecentIterations(r.Context(), 50)
		if err == nil {
			data.Iterations = iters
		}
		events, err := s.audit.RecentEvents(r.Context(), 50)
		if err == nil {
			data.Events = events
		}
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := s.tmpl.ExecuteTemplate(w, "status.html", data); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

// Start begins serving HTTP requests; it blocks until Shutdown is called.
func (s *Server) Start() error {
	if err := s.srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.srv.Shutdown(ctx)
}
