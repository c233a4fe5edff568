package session

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/hashicorp/golang-lru/v2/expirable"
)

// Manager defaults.
const (
	DefaultCapacity = 10000
	DefaultTTL      = 30 * time.Minute
)

// ManagerOption applies a configuration option to the Manager.
type ManagerOption func(*Manager)

// WithCapacity bounds how many sessions are kept. Least recently used
// sessions are dropped first.
func WithCapacity(n int) ManagerOption {
	return func(m *Manager) {
		if n > 0 {
			m.capacity = n
		}
	}
}

// WithTTL sets how long an untouched session survives.
func WithTTL(ttl time.Duration) ManagerOption {
	return func(m *Manager) {
		if ttl > 0 {
			m.ttl = ttl
		}
	}
}

// WithWindowSize sets the exclusion window of new sessions.
func WithWindowSize(n int) ManagerOption {
	return func(m *Manager) {
		if n >= 0 {
			m.windowSize = n
		}
	}
}

// WithIDGenerator replaces the uuid generator used for new session ids.
func WithIDGenerator(gen func() string) ManagerOption {
	return func(m *Manager) {
		if gen != nil {
			m.newID = gen
		}
	}
}

// Manager keeps the live sessions keyed by id.
type Manager struct {
	mu         sync.Mutex
	sessions   *expirable.LRU[string, *Session]
	capacity   int
	ttl        time.Duration
	windowSize int
	newID      func() string
}

// NewManager creates a session table.
func NewManager(opts ...ManagerOption) *Manager {
	m := &Manager{
		capacity:   DefaultCapacity,
		ttl:        DefaultTTL,
		windowSize: DefaultWindowSize,
		newID:      uuid.NewString,
	}
	for _, opt := range opts {
		opt(m)
	}
	m.sessions = expirable.NewLRU[string, *Session](m.capacity, nil, m.ttl)
	return m
}

// Get returns a live session and refreshes its TTL.
func (m *Manager) Get(id string) (*Session, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions.Get(id)
	if ok {
		m.sessions.Add(id, s)
	}
	return s, ok
}

// GetOrCreate returns the session for id, creating it when missing. An
// empty id always creates a session with a fresh id. created reports
// whether the session is new.
func (m *Manager) GetOrCreate(id string) (s *Session, created bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if id == "" {
		id = m.newID()
	} else if s, ok := m.sessions.Get(id); ok {
		m.sessions.Add(id, s)
		return s, false
	}
	s = New(id, m.windowSize)
	m.sessions.Add(id, s)
	return s, true
}

// Remove drops a session.
func (m *Manager) Remove(id string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessions.Remove(id)
}

// Len returns the number of live sessions.
func (m *Manager) Len() int {
	return m.sessions.Len()
}

// WindowSize returns the exclusion window of new sessions.
func (m *Manager) WindowSize() int { return m.windowSize }
