// Package usersession implements the per-user state machine (spec.md
// §4.6): STOPPED -> RUNNING -> {PAUSED, STOPPING} -> STOPPED, with a
// fatal-error transition to STOPPING from RUNNING or PAUSED.
package usersession

import (
	"fmt"
	"sync"
	"time"

	"github.com/joestump/marketwatch/internal/model"
)

// State is one of the user session's lifecycle states.
type State int

const (
	Stopped State = iota
	Running
	Paused
	Stopping
)

func (s State) String() string {
	switch s {
	case Stopped:
		return "stopped"
	case Running:
		return "running"
	case Paused:
		return "paused"
	case Stopping:
		return "stopping"
	default:
		return "unknown"
	}
}

// Stats are the counters the status dashboard and global_stats operation
// report per user.
type Stats struct {
	CyclesRun     int64
	ItemsFound    int64
	ItemsNew      int64
	ItemsSent     int64
	Errors        int64
	LastCycleAt   time.Time
	LastError     string
}

// Session is the mutable per-user state shared between the Scheduler's
// loop goroutine and control-surface callers (Supervisor, MCP tools, the
// status dashboard). All access goes through its methods; the zero value
// is not usable, use New.
type Session struct {
	UserID string

	mu       sync.RWMutex
	state    State
	settings model.UserSettings
	stats    Stats
}

// New returns a Session in the Stopped state for userID with the given
// initial settings.
func New(userID string, settings model.UserSettings) *Session {
	return &Session{UserID: userID, state: Stopped, settings: settings}
}

// State returns the current lifecycle state.
func (s *Session) State() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

// Settings returns the latest settings the loop should use on its next
// cycle.
func (s *Session) Settings() model.UserSettings {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.settings
}

// UpdateSettings replaces the settings the loop reads on its next cycle
// without disturbing the lifecycle state.
func (s *Session) UpdateSettings(settings model.UserSettings) {
	s.mu.Lock()
	s.settings = settings
	s.mu.Unlock()
}

// Stats returns a copy of the current counters.
func (s *Session) Stats() Stats {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.stats
}

// transition validates and applies a state change; returns an error if
// the transition is not legal from the current state.
func (s *Session) transition(to State) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !legal(s.state, to) {
		return fmt.Errorf("usersession: illegal transition %s -> %s for user %s", s.state, to, s.UserID)
	}
	s.state = to
	return nil
}

func legal(from, to State) bool {
	if to == Stopping {
		return from == Running || from == Paused
	}
	switch from {
	case Stopped:
		return to == Running
	case Running:
		return to == Paused || to == Stopping
	case Paused:
		return to == Running || to == Stopping
	case Stopping:
		return to == Stopped
	default:
		return false
	}
}

// Start transitions Stopped -> Running.
func (s *Session) Start() error { return s.transition(Running) }

// Pause transitions Running -> Paused.
func (s *Session) Pause() error { return s.transition(Paused) }

// Resume transitions Paused -> Running.
func (s *Session) Resume() error { return s.transition(Running) }

// RequestStop transitions Running or Paused -> Stopping; the loop
// observes this and exits, then calls MarkStopped.
func (s *Session) RequestStop() error { return s.transition(Stopping) }

// MarkStopped transitions Stopping -> Stopped once the loop goroutine has
// actually exited.
func (s *Session) MarkStopped() error { return s.transition(Stopped) }

// Fail records a fatal error and forces a transition to Stopping from
// Running or Paused. In Stopped or Stopping it records the error and
// leaves the state unchanged.
func (s *Session) Fail(err error) {
	s.mu.Lock()
	s.stats.Errors++
	s.stats.LastError = err.Error()
	if s.state == Running || s.state == Paused {
		s.state = Stopping
	}
	s.mu.Unlock()
}

// RecordCycle updates the counters after one polling cycle completes.
func (s *Session) RecordCycle(found, fresh, sent int, cycleErr error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stats.CyclesRun++
	s.stats.ItemsFound += int64(found)
	s.stats.ItemsNew += int64(fresh)
	s.stats.ItemsSent += int64(sent)
	s.stats.LastCycleAt = time.Now()
	if cycleErr != nil {
		s.stats.Errors++
		s.stats.LastError = cycleErr.Error()
	}
}
