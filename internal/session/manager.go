package session

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/voxterm/voxterm/internal/term"
	"github.com/voxterm/voxterm/internal/voicecmd"
)

type Status string

const (
	StatusActive Status = "active"
	StatusEnded  Status = "ended"
)

var ErrNotFound = errors.New("session not found")

type Session struct {
	ID             string    `json:"session_id"`
	UserID         string    `json:"user_id"`
	Status         Status    `json:"status"`
	CLI            string    `json:"cli"`
	Backend        string    `json:"backend"`
	StartedAt      time.Time `json:"started_at"`
	LastActivityAt time.Time `json:"last_activity_at"`
}

// Runtime holds the live machinery behind a session: the terminal
// controller owning the child process and the segmentation engine feeding
// it. Both are torn down when the session ends or expires.
type Runtime struct {
	Controller *term.Controller
	Engine     *voicecmd.Engine
}

type Manager struct {
	mu                sync.RWMutex
	sessions          map[string]*Session
	runtimes          map[string]*Runtime
	sessionByUser     map[string]string
	inactivityTimeout time.Duration
	onExpire          func(*Session)

	termRows      int
	termCols      int
	termStopGrace time.Duration
}

func NewManager(inactivityTimeout time.Duration) *Manager {
	if inactivityTimeout <= 0 {
		inactivityTimeout = 2 * time.Minute
	}
	return &Manager{
		sessions:          make(map[string]*Session),
		runtimes:          make(map[string]*Runtime),
		sessionByUser:     make(map[string]string),
		inactivityTimeout: inactivityTimeout,
	}
}

// SetTerminalDefaults sets the geometry and stop grace applied to every
// controller this manager creates. Zero values keep the controller defaults.
func (m *Manager) SetTerminalDefaults(rows, cols int, stopGrace time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.termRows = rows
	m.termCols = cols
	m.termStopGrace = stopGrace
}

func (m *Manager) SetExpireHook(hook func(*Session)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onExpire = hook
}

func (m *Manager) Create(userID, cli, backend string) *Session {
	now := time.Now().UTC()
	s := &Session{
		ID:             uuid.NewString(),
		UserID:         userID,
		CLI:            cli,
		Backend:        backend,
		Status:         StatusActive,
		StartedAt:      now,
		LastActivityAt: now,
	}

	engine := voicecmd.NewEngine()
	engine.Start()
	ctrl := term.NewController()

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.termRows > 0 && m.termCols > 0 {
		ctrl.Resize(m.termRows, m.termCols)
	}
	ctrl.SetStopGrace(m.termStopGrace)
	rt := &Runtime{
		Controller: ctrl,
		Engine:     engine,
	}
	m.sessions[s.ID] = s
	m.runtimes[s.ID] = rt
	if userID != "" {
		m.sessionByUser[userID] = s.ID
	}
	return clone(s)
}

func (m *Manager) Get(sessionID string) (*Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.sessions[sessionID]
	if !ok {
		return nil, ErrNotFound
	}
	return clone(s), nil
}

// Runtime returns the live machinery for an active session. Callers must
// not retain it past End.
func (m *Manager) Runtime(sessionID string) (*Runtime, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	rt, ok := m.runtimes[sessionID]
	if !ok {
		return nil, ErrNotFound
	}
	return rt, nil
}

func (m *Manager) Touch(sessionID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[sessionID]
	if !ok {
		return ErrNotFound
	}
	s.LastActivityAt = time.Now().UTC()
	return nil
}

func (m *Manager) End(sessionID string) (*Session, error) {
	m.mu.Lock()
	s, ok := m.sessions[sessionID]
	if !ok {
		m.mu.Unlock()
		return nil, ErrNotFound
	}
	s.Status = StatusEnded
	s.LastActivityAt = time.Now().UTC()
	if s.UserID != "" {
		delete(m.sessionByUser, s.UserID)
	}
	rt := m.runtimes[sessionID]
	delete(m.runtimes, sessionID)
	out := clone(s)
	m.mu.Unlock()

	stopRuntime(rt)
	return out, nil
}

func (m *Manager) StartJanitor(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = 5 * time.Second
	}
	ticker := time.NewTicker(interval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				m.expireInactive()
			}
		}
	}()
}

func (m *Manager) ActiveCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	count := 0
	for _, s := range m.sessions {
		if s.Status == StatusActive {
			count++
		}
	}
	return count
}

func (m *Manager) expireInactive() {
	now := time.Now().UTC()
	var expired []*Session
	var stale []*Runtime

	m.mu.Lock()
	for id, s := range m.sessions {
		if s.Status != StatusActive {
			continue
		}
		if now.Sub(s.LastActivityAt) < m.inactivityTimeout {
			continue
		}
		s.Status = StatusEnded
		s.LastActivityAt = now
		expired = append(expired, clone(s))
		if s.UserID != "" {
			delete(m.sessionByUser, s.UserID)
		}
		if rt, ok := m.runtimes[id]; ok {
			stale = append(stale, rt)
			delete(m.runtimes, id)
		}
	}
	hook := m.onExpire
	m.mu.Unlock()

	for _, rt := range stale {
		stopRuntime(rt)
	}
	if hook != nil {
		for _, s := range expired {
			hook(s)
		}
	}
}

func stopRuntime(rt *Runtime) {
	if rt == nil {
		return
	}
	rt.Engine.Stop()
	rt.Controller.Stop()
}

func clone(s *Session) *Session {
	c := *s
	return &c
}
