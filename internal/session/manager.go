package session

import (
	"sync"

	"github.com/jgaa/wfde/internal/worker"
)

// Manager is the cross-worker session registry (spec.md §4.8): a global
// mutex-guarded map keyed by session id is the only state shared across
// worker goroutines. Each session is additionally pinned to the
// housekeeping stub of the worker it was created on; that stub is touched
// only by its owning worker and needs no lock.
type Manager struct {
	pool *worker.Pool

	mu       sync.Mutex
	sessions map[string]*Session
}

// NewManager returns a Manager that assigns housekeeping duty to pool.
func NewManager(pool *worker.Pool) *Manager {
	return &Manager{pool: pool, sessions: make(map[string]*Session)}
}

// Pool returns the worker pool backing this manager, so callers that need
// to assign a worker before constructing the Session (entity.Acceptor) can
// reuse the same pool Register will later pin housekeeping to.
func (m *Manager) Pool() *worker.Pool { return m.pool }

// Register adds sess to the registry and arms its housekeeping stub on the
// worker it is pinned to.
func (m *Manager) Register(sess *Session) {
	m.mu.Lock()
	m.sessions[sess.ID()] = sess
	m.mu.Unlock()

	m.pool.At(sess.WorkerIndex()).Register(sess, func(id string) {
		m.CloseSession(id)
	})
}

// Lookup returns the session for id, and whether it was found. Safe to
// call from any goroutine - the registry map is the one piece of state
// shared across workers (spec.md §5 "Shared-resource policy").
func (m *Manager) Lookup(id string) (*Session, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	sess, ok := m.sessions[id]

	return sess, ok
}

// Count returns the number of registered sessions.
func (m *Manager) Count() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	return len(m.sessions)
}

// CloseSession closes sess's control connection, unregisters it from its
// worker's housekeeping stub, and removes it from the registry. Idempotent:
// a session already removed is a no-op.
func (m *Manager) CloseSession(id string) {
	m.mu.Lock()
	sess, ok := m.sessions[id]
	if ok {
		delete(m.sessions, id)
	}
	m.mu.Unlock()

	if !ok {
		return
	}

	m.pool.At(sess.WorkerIndex()).Unregister(id)
	_ = sess.Close()
}

// CloseAll closes every registered session, used on host/server shutdown
// (spec.md §5 "Cancellation / timeouts").
func (m *Manager) CloseAll() {
	m.mu.Lock()
	ids := make([]string, 0, len(m.sessions))
	for id := range m.sessions {
		ids = append(ids, id)
	}
	m.mu.Unlock()

	for _, id := range ids {
		m.CloseSession(id)
	}
}
