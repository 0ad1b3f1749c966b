// Package supervisor implements the Supervisor (spec.md §4.9): the single
// entry point that wires the Allow-list, per-user settings storage, and
// Scheduler together, and exposes the small capability set the chat
// front-end (and, concretely, the MCP control surface, SPEC_FULL.md §9.7)
// drives: start, stop, pause, resume, status, global stats, shutdown.
package supervisor

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"

	"github.com/joestump/marketwatch/internal/allowlist"
	"github.com/joestump/marketwatch/internal/model"
	"github.com/joestump/marketwatch/internal/scheduler"
	"github.com/joestump/marketwatch/internal/storage"
	"github.com/joestump/marketwatch/internal/usersession"
)

// Supervisor is the top-level control surface implementation.
type Supervisor struct {
	allow     *allowlist.List
	sched     *scheduler.Scheduler
	dataDir   string
	parserDef model.UserSettings

	mu       sync.Mutex
	sessions map[string]*usersession.Session
}

// New returns a Supervisor. parserDefault supplies the fallback settings
// (spec.md §6) used for a user with no settings file of their own.
func New(allow *allowlist.List, sched *scheduler.Scheduler, dataDir string, parserDefault model.UserSettings) *Supervisor {
	return &Supervisor{
		allow: allow, sched: sched, dataDir: dataDir, parserDef: parserDefault,
		sessions: make(map[string]*usersession.Session),
	}
}

func (s *Supervisor) settingsPath(userID string) string {
	return filepath.Join(s.dataDir, "user_settings", userID+".json")
}

func (s *Supervisor) loadSettings(userID string) (model.UserSettings, error) {
	st := s.parserDef
	st.UserID = userID
	js := storage.NewJSONStore(s.settingsPath(userID))
	if err := js.Load(&st); err != nil && err != storage.ErrNotExist {
		return model.UserSettings{}, fmt.Errorf("supervisor: load settings for %s: %w", userID, err)
	}
	if err := st.Validate(); err != nil {
		return model.UserSettings{}, fmt.Errorf("supervisor: invalid settings for %s: %w", userID, err)
	}
	return st, nil
}

// Start starts userID's polling loop, gated by the allow-list (spec.md
// §4.9). Starting an already-running user is a no-op.
func (s *Supervisor) Start(ctx context.Context, userID string) error {
	if !s.allow.Contains(userID) {
		return fmt.Errorf("supervisor: user %s is not on the allow-list", userID)
	}

	s.mu.Lock()
	sess, exists := s.sessions[userID]
	if !exists {
		settings, err := s.loadSettings(userID)
		if err != nil {
			s.mu.Unlock()
			return err
		}
		sess = usersession.New(userID, settings)
		s.sessions[userID] = sess
	}
	s.mu.Unlock()

	return s.sched.StartUser(ctx, sess)
}

// Stop stops userID's polling loop.
func (s *Supervisor) Stop(userID string) error {
	return s.sched.StopUser(userID)
}

// Pause pauses userID's polling loop without destroying its session.
func (s *Supervisor) Pause(userID string) error {
	return s.sched.PauseUser(userID)
}

// Resume resumes userID's paused polling loop.
func (s *Supervisor) Resume(userID string) error {
	return s.sched.ResumeUser(userID)
}

// UserStatus is the per-user snapshot returned by Status.
type UserStatus struct {
	UserID string
	State  string
	Stats  usersession.Stats
}

// Status returns userID's current state and counters.
func (s *Supervisor) Status(userID string) (UserStatus, error) {
	s.mu.Lock()
	sess, ok := s.sessions[userID]
	s.mu.Unlock()
	if !ok {
		return UserStatus{}, fmt.Errorf("supervisor: unknown user %s", userID)
	}
	return UserStatus{UserID: userID, State: sess.State().String(), Stats: sess.Stats()}, nil
}

// GlobalStats returns the status of every user the Supervisor has ever
// started this process.
func (s *Supervisor) GlobalStats() []UserStatus {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]UserStatus, 0, len(s.sessions))
	for id, sess := range s.sessions {
		out = append(out, UserStatus{UserID: id, State: sess.State().String(), Stats: sess.Stats()})
	}
	return out
}

// Shutdown stops every user's loop, waiting up to each one's shutdown
// grace period.
func (s *Supervisor) Shutdown() {
	s.sched.ShutdownAll()
}
