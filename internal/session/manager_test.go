package session

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/voxterm/voxterm/internal/voicecmd"
)

func TestManagerCreateGetEnd(t *testing.T) {
	m := NewManager(time.Minute)
	s := m.Create("u1", "claude", "pipe")
	if s.ID == "" {
		t.Fatalf("session ID should not be empty")
	}

	got, err := m.Get(s.ID)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if got.UserID != "u1" || got.CLI != "claude" || got.Backend != "pipe" || got.Status != StatusActive {
		t.Fatalf("unexpected session state: %+v", got)
	}

	ended, err := m.End(s.ID)
	if err != nil {
		t.Fatalf("End() error = %v", err)
	}
	if ended.Status != StatusEnded {
		t.Fatalf("ended status = %q, want %q", ended.Status, StatusEnded)
	}
}

func TestManagerRuntimeLifecycle(t *testing.T) {
	m := NewManager(time.Minute)
	s := m.Create("u1", "claude", "")

	rt, err := m.Runtime(s.ID)
	if err != nil {
		t.Fatalf("Runtime() error = %v", err)
	}
	if rt.Controller == nil || rt.Engine == nil {
		t.Fatalf("runtime missing components: %+v", rt)
	}
	if rt.Engine.State() != voicecmd.StateActive {
		t.Fatalf("engine state = %q, want %q", rt.Engine.State(), voicecmd.StateActive)
	}

	if _, err := m.End(s.ID); err != nil {
		t.Fatalf("End() error = %v", err)
	}
	if _, err := m.Runtime(s.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("Runtime() after End error = %v, want ErrNotFound", err)
	}
	if rt.Engine.State() != voicecmd.StateIdle {
		t.Fatalf("engine state after End = %q, want %q", rt.Engine.State(), voicecmd.StateIdle)
	}
}

func TestManagerJanitorExpiresInactive(t *testing.T) {
	m := NewManager(30 * time.Millisecond)
	s := m.Create("u1", "claude", "")

	expired := make(chan string, 1)
	m.SetExpireHook(func(sess *Session) {
		select {
		case expired <- sess.ID:
		default:
		}
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	m.StartJanitor(ctx, 10*time.Millisecond)

	select {
	case id := <-expired:
		if id != s.ID {
			t.Fatalf("expired id = %q, want %q", id, s.ID)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("expire hook never fired")
	}

	got, err := m.Get(s.ID)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if got.Status != StatusEnded {
		t.Fatalf("Status = %q, want %q", got.Status, StatusEnded)
	}
	if _, err := m.Runtime(s.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("Runtime() after expiry error = %v, want ErrNotFound", err)
	}
}

func TestManagerAppliesTerminalDefaults(t *testing.T) {
	m := NewManager(time.Minute)
	m.SetTerminalDefaults(50, 132, 2*time.Second)
	s := m.Create("u1", "claude", "")

	rt, err := m.Runtime(s.ID)
	if err != nil {
		t.Fatalf("Runtime() error = %v", err)
	}
	rows, cols := rt.Controller.Size()
	if rows != 50 || cols != 132 {
		t.Fatalf("geometry = %dx%d, want 50x132", rows, cols)
	}
	if got := rt.Controller.StopGrace(); got != 2*time.Second {
		t.Fatalf("StopGrace = %v, want 2s", got)
	}
}

func TestManagerZeroTerminalDefaultsKeepControllerDefaults(t *testing.T) {
	m := NewManager(time.Minute)
	s := m.Create("u1", "claude", "")

	rt, err := m.Runtime(s.ID)
	if err != nil {
		t.Fatalf("Runtime() error = %v", err)
	}
	rows, cols := rt.Controller.Size()
	if rows != 24 || cols != 80 {
		t.Fatalf("geometry = %dx%d, want 24x80", rows, cols)
	}
	if got := rt.Controller.StopGrace(); got != 5*time.Second {
		t.Fatalf("StopGrace = %v, want 5s", got)
	}
}

func TestManagerActiveCount(t *testing.T) {
	m := NewManager(time.Minute)
	a := m.Create("u1", "claude", "")
	m.Create("u2", "gemini", "")
	if got := m.ActiveCount(); got != 2 {
		t.Fatalf("ActiveCount = %d, want 2", got)
	}
	if _, err := m.End(a.ID); err != nil {
		t.Fatalf("End() error = %v", err)
	}
	if got := m.ActiveCount(); got != 1 {
		t.Fatalf("ActiveCount = %d, want 1", got)
	}
}
