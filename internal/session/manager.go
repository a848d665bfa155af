// Package session maps browser sessions to upload panels and expires idle ones.
package session

import (
	"sort"
	"sync"
	"time"

	"github.com/codewave/panel/internal/upload"
	"github.com/google/uuid"
	"github.com/labstack/gommon/log"
)

// DefaultMaxSessions bounds live panels when no limit is configured.
const DefaultMaxSessions = 1000

// Manager owns every live upload panel.
type Manager struct {
	sessions    map[string]*State
	mu          sync.RWMutex
	newPanel    upload.Factory
	maxSessions int
	logger      *log.Logger
	now         func() time.Time
}

// State is one live browser session.
type State struct {
	Panel        *upload.Panel
	CreatedAt    time.Time
	LastAccessed time.Time
}

// NewManager creates a manager that builds panels with newPanel.
func NewManager(newPanel upload.Factory, maxSessions int, logger *log.Logger) *Manager {
	if maxSessions <= 0 {
		maxSessions = DefaultMaxSessions
	}
	if logger == nil {
		logger = log.New("session")
	}
	return &Manager{
		sessions:    make(map[string]*State),
		newPanel:    newPanel,
		maxSessions: maxSessions,
		logger:      logger,
		now:         time.Now,
	}
}

// Create starts a new session with a fresh ID.
func (m *Manager) Create() *upload.Panel {
	panel, _ := m.GetOrCreate("")
	return panel
}

// GetOrCreate returns the panel for id, creating a new session when id is
// empty or unknown. The boolean is true when a session was created. A new
// session always gets a fresh ID; client-chosen IDs are never adopted.
func (m *Manager) GetOrCreate(id string) (*upload.Panel, bool) {
	m.mu.Lock()
	now := m.now()
	if state, ok := m.sessions[id]; ok && id != "" {
		state.LastAccessed = now
		m.mu.Unlock()
		return state.Panel, false
	}
	evicted := m.evictLocked()
	panel := m.newPanel(uuid.New().String())
	m.sessions[panel.ID()] = &State{Panel: panel, CreatedAt: now, LastAccessed: now}
	m.mu.Unlock()

	for _, p := range evicted {
		p.Close()
	}
	m.logger.Debugf("[Manager] created session %s", shortID(panel.ID()))
	return panel, true
}

// Get returns the panel for id and marks the session as used.
func (m *Manager) Get(id string) (*upload.Panel, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	state, ok := m.sessions[id]
	if !ok {
		return nil, false
	}
	state.LastAccessed = m.now()
	return state.Panel, true
}

// Touch updates the LastAccessed timestamp of a session.
func (m *Manager) Touch(id string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	state, ok := m.sessions[id]
	if !ok {
		return false
	}
	state.LastAccessed = m.now()
	return true
}

// Delete ends a session and closes its panel.
func (m *Manager) Delete(id string) bool {
	m.mu.Lock()
	state, ok := m.sessions[id]
	if ok {
		delete(m.sessions, id)
	}
	m.mu.Unlock()

	if ok {
		state.Panel.Close()
	}
	return ok
}

// Count returns the number of live sessions.
func (m *Manager) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}

// CleanupOldSessions closes sessions not accessed within maxAge. Sessions
// with an upload in flight are kept until the upload completes.
func (m *Manager) CleanupOldSessions(maxAge time.Duration) int {
	cutoff := m.now().Add(-maxAge)

	m.mu.Lock()
	var expired []*State
	for id, state := range m.sessions {
		if !state.LastAccessed.Before(cutoff) || state.Panel.Uploading() {
			continue
		}
		expired = append(expired, state)
		delete(m.sessions, id)
	}
	m.mu.Unlock()

	for _, state := range expired {
		state.Panel.Close()
		m.logger.Infof("[Manager] cleaned up session %s (idle %s)",
			shortID(state.Panel.ID()), m.now().Sub(state.LastAccessed).Round(time.Second))
	}
	return len(expired)
}

// evictLocked removes least recently used sessions so that one more fits.
// Idle panels go first. m.mu must be held; the caller closes the returned
// panels after unlocking.
func (m *Manager) evictLocked() []*upload.Panel {
	if len(m.sessions) < m.maxSessions {
		return nil
	}

	states := make([]*State, 0, len(m.sessions))
	for _, s := range m.sessions {
		states = append(states, s)
	}
	sort.Slice(states, func(i, j int) bool {
		ui, uj := states[i].Panel.Uploading(), states[j].Panel.Uploading()
		if ui != uj {
			return !ui
		}
		return states[i].LastAccessed.Before(states[j].LastAccessed)
	})

	toFree := len(m.sessions) - m.maxSessions + 1
	evicted := make([]*upload.Panel, 0, toFree)
	for _, s := range states[:toFree] {
		delete(m.sessions, s.Panel.ID())
		evicted = append(evicted, s.Panel)
		m.logger.Infof("[Manager] evicted session %s to stay under %d sessions", shortID(s.Panel.ID()), m.maxSessions)
	}
	return evicted
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
