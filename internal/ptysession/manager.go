package ptysession

import (
	"sync"

	"github.com/mordilloSan/termbridge/internal/eventbus"
)

// Manager owns the registry of live PTY sessions, mirroring the teacher's
// sessions map in bridge/terminal/manager.go but keyed only by session id
// (no container/target distinction — that was LinuxIO's docker-exec
// concern, out of scope here).
type Manager struct {
	mu       sync.Mutex
	sessions map[string]*Session
	bus      *eventbus.Bus
}

func NewManager(bus *eventbus.Bus) *Manager {
	return &Manager{sessions: make(map[string]*Session), bus: bus}
}

func (m *Manager) get(id string) *Session {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.sessions[id]
}

func (m *Manager) put(id string, s *Session) {
	m.mu.Lock()
	m.sessions[id] = s
	m.mu.Unlock()
}

func (m *Manager) delete(id string) *Session {
	m.mu.Lock()
	defer m.mu.Unlock()
	s := m.sessions[id]
	delete(m.sessions, id)
	return s
}

// List returns the ids of all registered PTY sessions. The IPC list_tabs
// command does not use it; it reads the tab coordinator's records.
func (m *Manager) List() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	ids := make([]string, 0, len(m.sessions))
	for id := range m.sessions {
		ids = append(ids, id)
	}
	return ids
}
