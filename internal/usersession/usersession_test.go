package usersession

import (
	"errors"
	"testing"

	"github.com/joestump/marketwatch/internal/model"
)

func TestLifecycleHappyPath(t *testing.T) {
	s := New("u1", model.UserSettings{Queries: []string{"lens"}})
	if s.State() != Stopped {
		t.Fatalf("initial state = %v, want Stopped", s.State())
	}
	if err := s.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if s.State() != Running {
		t.Fatalf("state after Start = %v, want Running", s.State())
	}
	if err := s.Pause(); err != nil {
		t.Fatalf("Pause: %v", err)
	}
	if s.State() != Paused {
		t.Fatalf("state after Pause = %v, want Paused", s.State())
	}
	if err := s.Resume(); err != nil {
		t.Fatalf("Resume: %v", err)
	}
	if s.State() != Running {
		t.Fatalf("state after Resume = %v, want Running", s.State())
	}
	if err := s.RequestStop(); err != nil {
		t.Fatalf("RequestStop: %v", err)
	}
	if s.State() != Stopping {
		t.Fatalf("state after RequestStop = %v, want Stopping", s.State())
	}
	if err := s.MarkStopped(); err != nil {
		t.Fatalf("MarkStopped: %v", err)
	}
	if s.State() != Stopped {
		t.Fatalf("state after MarkStopped = %v, want Stopped", s.State())
	}
}

func TestIllegalTransitionsRejected(t *testing.T) {
	s := New("u1", model.UserSettings{Queries: []string{"lens"}})
	if err := s.Pause(); err == nil {
		t.Error("Pause from Stopped: want error")
	}
	if err := s.RequestStop(); err == nil {
		t.Error("RequestStop from Stopped: want error")
	}
	if err := s.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if err := s.Start(); err == nil {
		t.Error("Start from Running: want error")
	}
}

func TestFailForcesStoppingFromRunningOrPaused(t *testing.T) {
	s := New("u1", model.UserSettings{Queries: []string{"lens"}})
	_ = s.Start()
	s.Fail(errors.New("boom"))
	if s.State() != Stopping {
		t.Errorf("state after Fail from Running = %v, want Stopping", s.State())
	}
	if s.Stats().Errors != 1 {
		t.Errorf("Errors = %d, want 1", s.Stats().Errors)
	}

	s2 := New("u2", model.UserSettings{Queries: []string{"lens"}})
	s2.Fail(errors.New("boom"))
	if s2.State() != Stopped {
		t.Errorf("Fail from Stopped: state = %v, want unchanged Stopped", s2.State())
	}
}

func TestRecordCycleAccumulates(t *testing.T) {
	s := New("u1", model.UserSettings{Queries: []string{"lens"}})
	s.RecordCycle(10, 3, 3, nil)
	s.RecordCycle(5, 0, 0, nil)
	stats := s.Stats()
	if stats.CyclesRun != 2 || stats.ItemsFound != 15 || stats.ItemsNew != 3 || stats.ItemsSent != 3 {
		t.Errorf("Stats = %+v, want cumulative counters", stats)
	}
}
