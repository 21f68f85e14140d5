package session

import (
	"context"
	"testing"
	"time"
)

func TestManagerCreateGetEnd(t *testing.T) {
	m := NewManager(time.Minute)
	s := m.Create("u1")
	if s.ID == "" {
		t.Fatalf("session ID should not be empty")
	}
	if s.Status != StatusIdle {
		t.Fatalf("fresh session status = %q, want %q", s.Status, StatusIdle)
	}

	got, err := m.Get(s.ID)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if got.UserID != "u1" || got.DetectionEnabled {
		t.Fatalf("unexpected session state: %+v", got)
	}

	ended, err := m.End(s.ID)
	if err != nil {
		t.Fatalf("End() error = %v", err)
	}
	if ended.Status != StatusStopped {
		t.Fatalf("ended status = %q, want %q", ended.Status, StatusStopped)
	}
}

func TestManagerActivateEnablesDetection(t *testing.T) {
	m := NewManager(time.Minute)
	s := m.Create("u1")

	active, err := m.Activate(s.ID)
	if err != nil {
		t.Fatalf("Activate() error = %v", err)
	}
	if active.Status != StatusActive || !active.DetectionEnabled {
		t.Fatalf("activated state = %+v", active)
	}
	if active.CaptureStartedAt.IsZero() {
		t.Fatalf("CaptureStartedAt not set")
	}

	// Re-activating does not reset the capture clock.
	again, err := m.Activate(s.ID)
	if err != nil {
		t.Fatalf("Activate() twice error = %v", err)
	}
	if !again.CaptureStartedAt.Equal(active.CaptureStartedAt) {
		t.Fatalf("CaptureStartedAt changed on re-activation")
	}
}

func TestManagerPauseResumeDetection(t *testing.T) {
	m := NewManager(time.Minute)
	s := m.Create("u1")
	if _, err := m.Activate(s.ID); err != nil {
		t.Fatalf("Activate() error = %v", err)
	}

	paused, err := m.SetDetection(s.ID, false)
	if err != nil {
		t.Fatalf("SetDetection(false) error = %v", err)
	}
	if paused.DetectionEnabled || paused.Status != StatusActive {
		t.Fatalf("paused state = %+v, want active with detection off", paused)
	}

	resumed, err := m.SetDetection(s.ID, true)
	if err != nil {
		t.Fatalf("SetDetection(true) error = %v", err)
	}
	if !resumed.DetectionEnabled {
		t.Fatalf("detection did not resume")
	}
}

func TestManagerStoppedIsTerminal(t *testing.T) {
	m := NewManager(time.Minute)
	s := m.Create("u1")
	if _, err := m.End(s.ID); err != nil {
		t.Fatalf("End() error = %v", err)
	}

	if _, err := m.Activate(s.ID); err != ErrStopped {
		t.Fatalf("Activate() after End error = %v, want ErrStopped", err)
	}
	if _, err := m.SetDetection(s.ID, true); err != ErrStopped {
		t.Fatalf("SetDetection() after End error = %v, want ErrStopped", err)
	}

	// Ending again is a no-op, not an error.
	again, err := m.End(s.ID)
	if err != nil {
		t.Fatalf("second End() error = %v", err)
	}
	if again.Status != StatusStopped {
		t.Fatalf("second End() status = %q", again.Status)
	}
}

func TestManagerJanitorExpiresInactive(t *testing.T) {
	m := NewManager(30 * time.Millisecond)
	s := m.Create("u1")

	expired := make(chan string, 1)
	m.SetExpireHook(func(es *Session) { expired <- es.ID })

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	m.StartJanitor(ctx, 10*time.Millisecond)

	select {
	case id := <-expired:
		if id != s.ID {
			t.Fatalf("expired session = %q, want %q", id, s.ID)
		}
	case <-time.After(time.Second):
		t.Fatalf("janitor did not expire the session")
	}

	got, err := m.Get(s.ID)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if got.Status != StatusStopped {
		t.Fatalf("Status = %q, want %q", got.Status, StatusStopped)
	}
}
