package session

import (
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/sandboxrunner/sandboxrunner/pkg/apperrors"
)

// Manager holds every live session in memory, keyed by id. The map
// itself is guarded by a reader/writer lock; each Session additionally
// guards its own message log so that one session's append never blocks
// reads of another.
type Manager struct {
	sessions map[string]*Session
	mu       sync.RWMutex
}

// NewManager creates an empty session store.
func NewManager() *Manager {
	return &Manager{sessions: make(map[string]*Session)}
}

// Create starts a new session, generating a fresh id when none is
// supplied (the empty string) and reusing the existing session if the
// given id already exists.
func (m *Manager) Create(id string) *Session {
	if id == "" {
		id = uuid.New().String()
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if existing, ok := m.sessions[id]; ok {
		return existing
	}

	s := &Session{ID: id, CreatedAt: time.Now()}
	m.sessions[id] = s
	return s
}

// Get retrieves a session by id.
func (m *Manager) Get(id string) (*Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	s, ok := m.sessions[id]
	if !ok {
		return nil, apperrors.New(apperrors.KindTransport, id, apperrors.ErrNotFound)
	}
	return s, nil
}

// Append creates the session if it does not yet exist, then appends the
// message to it, returning the stamped Message.
func (m *Manager) Append(id string, role MessageRole, content string) (string, Message) {
	s := m.Create(id)
	return s.ID, s.Append(role, content)
}

// List returns the messages in a session, in append order.
func (m *Manager) List(id string) ([]Message, error) {
	s, err := m.Get(id)
	if err != nil {
		return nil, err
	}
	return s.Messages(), nil
}

// Summarize returns one Summary per non-empty session, sorted by id for
// deterministic output.
func (m *Manager) Summarize() []Summary {
	m.mu.RLock()
	sessions := make([]*Session, 0, len(m.sessions))
	for _, s := range m.sessions {
		sessions = append(sessions, s)
	}
	m.mu.RUnlock()

	summaries := make([]Summary, 0, len(sessions))
	for _, s := range sessions {
		if count := s.Count(); count > 0 {
			summaries = append(summaries, Summary{
				ID:          s.ID,
				Count:       count,
				CreatedAt:   s.CreatedAt,
				LastUpdated: s.LastUpdated(),
			})
		}
	}

	sort.Slice(summaries, func(i, j int) bool { return summaries[i].ID < summaries[j].ID })
	return summaries
}

// Delete removes a session. Deleting an unknown id is an ErrNotFound.
func (m *Manager) Delete(id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.sessions[id]; !ok {
		return apperrors.New(apperrors.KindTransport, id, apperrors.ErrNotFound)
	}
	delete(m.sessions, id)
	return nil
}
