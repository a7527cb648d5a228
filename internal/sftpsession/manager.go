package sftpsession

import (
	"sync"

	"github.com/mordilloSan/termbridge/internal/eventbus"
)

// Manager owns the registry of live SFTP sessions and implements
// spec.md §4.3's check-out/check-in serialization: an operation removes
// the session from the registry for its duration, so a concurrent call
// on the same id sees it as absent (ErrSessionNotFound) instead of
// blocking or racing the single-threaded SFTP subsystem handle.
type Manager struct {
	mu       sync.Mutex
	sessions map[string]*Session
	bus      *eventbus.Bus
}

func NewManager(bus *eventbus.Bus) *Manager {
	return &Manager{sessions: make(map[string]*Session), bus: bus}
}

func (m *Manager) checkout(id string) *Session {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[id]
	if !ok {
		return nil
	}
	delete(m.sessions, id)
	return s
}

func (m *Manager) checkin(id string, s *Session) {
	m.mu.Lock()
	m.sessions[id] = s
	m.mu.Unlock()
}

func (m *Manager) register(id string, s *Session) {
	m.mu.Lock()
	m.sessions[id] = s
	m.mu.Unlock()
}

// withSession checks s out, runs fn, and checks it back in — unless fn
// signals the session should be dropped (e.g. after Close).
func (m *Manager) withSession(id string, fn func(*Session) error) error {
	s := m.checkout(id)
	if s == nil {
		return ErrSessionNotFound
	}
	err := fn(s)
	if s.dropped {
		return err
	}
	m.checkin(id, s)
	return err
}

// List returns the ids of all sessions currently checked in (a session
// mid-operation is, by design, invisible here).
func (m *Manager) List() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	ids := make([]string, 0, len(m.sessions))
	for id := range m.sessions {
		ids = append(ids, id)
	}
	return ids
}
