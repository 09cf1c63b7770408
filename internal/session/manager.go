package session

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Manager owns every live session and expires idle ones.
type Manager struct {
	mu       sync.RWMutex
	sessions map[string]*Session
	deps     Deps
	idle     time.Duration
}

// NewManager creates a manager. Sessions untouched for longer than idle are closed
// by Sweep.
func NewManager(deps Deps, idle time.Duration) *Manager {
	return &Manager{
		sessions: make(map[string]*Session),
		deps:     deps,
		idle:     idle,
	}
}

// NewID returns a fresh session id
func NewID() string {
	return uuid.New().String()
}

// Get returns the session for id, creating it on first use
func (m *Manager) Get(id string) *Session {
	m.mu.RLock()
	s, ok := m.sessions[id]
	m.mu.RUnlock()
	if ok {
		s.Touch()
		return s
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if s, ok := m.sessions[id]; ok {
		s.Touch()
		return s
	}
	s = newSession(id, m.deps)
	m.sessions[id] = s
	log.Printf("[session] created %s", id)
	return s
}

// Lookup returns an existing session without creating one
func (m *Manager) Lookup(id string) (*Session, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.sessions[id]
	return s, ok
}

func (m *Manager) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}

// Sweep closes sessions idle since before now-idle and returns how many it removed.
func (m *Manager) Sweep(now time.Time) int {
	cutoff := now.Add(-m.idle)

	m.mu.Lock()
	var expired []*Session
	for id, s := range m.sessions {
		if s.idleSince().Before(cutoff) {
			expired = append(expired, s)
			delete(m.sessions, id)
		}
	}
	m.mu.Unlock()

	for _, s := range expired {
		s.Close()
		log.Printf("[session] expired %s", s.ID)
	}
	return len(expired)
}

// Run sweeps periodically until ctx is done
func (m *Manager) Run(ctx context.Context, every time.Duration) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			m.Sweep(now)
		}
	}
}

// Close closes every session
func (m *Manager) Close() {
	m.mu.Lock()
	sessions := m.sessions
	m.sessions = make(map[string]*Session)
	m.mu.Unlock()

	for _, s := range sessions {
		s.Close()
	}
}
