package session

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
)

type Status string

const (
	// StatusIdle means the session exists but the camera has not started.
	StatusIdle Status = "idle"
	// StatusActive means capture is running; detection may still be paused.
	StatusActive Status = "active"
	// StatusStopped is terminal. A stopped session never restarts.
	StatusStopped Status = "stopped"
)

var (
	ErrNotFound = errors.New("session not found")
	ErrStopped  = errors.New("session already stopped")
)

type Session struct {
	ID               string    `json:"session_id"`
	UserID           string    `json:"user_id"`
	Status           Status    `json:"status"`
	DetectionEnabled bool      `json:"detection_enabled"`
	StartedAt        time.Time `json:"started_at"`
	CaptureStartedAt time.Time `json:"capture_started_at,omitempty"`
	LastActivityAt   time.Time `json:"last_activity_at"`
}

// ElapsedSeconds reports whole seconds since capture began, zero while idle.
func (s *Session) ElapsedSeconds() int64 {
	if s.CaptureStartedAt.IsZero() {
		return 0
	}
	return int64(time.Since(s.CaptureStartedAt) / time.Second)
}

type Manager struct {
	mu                sync.RWMutex
	sessions          map[string]*Session
	sessionByUser     map[string]string
	inactivityTimeout time.Duration
	onExpire          func(*Session)
}

func NewManager(inactivityTimeout time.Duration) *Manager {
	if inactivityTimeout <= 0 {
		inactivityTimeout = 2 * time.Minute
	}
	return &Manager{
		sessions:          make(map[string]*Session),
		sessionByUser:     make(map[string]string),
		inactivityTimeout: inactivityTimeout,
	}
}

func (m *Manager) SetExpireHook(hook func(*Session)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onExpire = hook
}

func (m *Manager) Create(userID string) *Session {
	now := time.Now().UTC()
	s := &Session{
		ID:             uuid.NewString(),
		UserID:         userID,
		Status:         StatusIdle,
		StartedAt:      now,
		LastActivityAt: now,
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessions[s.ID] = s
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

// Activate marks capture as running and enables detection. Idempotent for an
// already-active session; a stopped session stays stopped.
func (m *Manager) Activate(sessionID string) (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[sessionID]
	if !ok {
		return nil, ErrNotFound
	}
	if s.Status == StatusStopped {
		return nil, ErrStopped
	}
	now := time.Now().UTC()
	if s.Status != StatusActive {
		s.Status = StatusActive
		s.DetectionEnabled = true
		s.CaptureStartedAt = now
	}
	s.LastActivityAt = now
	return clone(s), nil
}

// SetDetection flips the pause flag without touching capture state.
func (m *Manager) SetDetection(sessionID string, enabled bool) (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[sessionID]
	if !ok {
		return nil, ErrNotFound
	}
	if s.Status == StatusStopped {
		return nil, ErrStopped
	}
	s.DetectionEnabled = enabled
	s.LastActivityAt = time.Now().UTC()
	return clone(s), nil
}

// End stops the session terminally. Ending twice returns the stopped
// snapshot without error.
func (m *Manager) End(sessionID string) (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[sessionID]
	if !ok {
		return nil, ErrNotFound
	}
	if s.Status != StatusStopped {
		s.Status = StatusStopped
		s.DetectionEnabled = false
		s.LastActivityAt = time.Now().UTC()
		if s.UserID != "" {
			delete(m.sessionByUser, s.UserID)
		}
	}
	return clone(s), nil
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
		if s.Status != StatusStopped {
			count++
		}
	}
	return count
}

func (m *Manager) expireInactive() {
	now := time.Now().UTC()
	var expired []*Session

	m.mu.Lock()
	for _, s := range m.sessions {
		if s.Status == StatusStopped {
			continue
		}
		if now.Sub(s.LastActivityAt) < m.inactivityTimeout {
			continue
		}
		s.Status = StatusStopped
		s.DetectionEnabled = false
		s.LastActivityAt = now
		expired = append(expired, clone(s))
		if s.UserID != "" {
			delete(m.sessionByUser, s.UserID)
		}
	}
	hook := m.onExpire
	m.mu.Unlock()

	if hook != nil {
		for _, s := range expired {
			hook(s)
		}
	}
}

func clone(s *Session) *Session {
	c := *s
	return &c
}
