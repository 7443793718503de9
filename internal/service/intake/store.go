package intake

import (
	"sync"

	model "github.com/zhouzirui/z-intake/backend/internal/model/intake"
)

// entry guards one session. mu serialises turns; the snapshot is what
// readers see and is replaced once a turn finishes.
type entry struct {
	mu      sync.Mutex
	session model.Session

	snapMu   sync.RWMutex
	snapshot model.Session
}

func (e *entry) publish() {
	snap := e.session.Clone()
	e.snapMu.Lock()
	e.snapshot = snap
	e.snapMu.Unlock()
}

func (e *entry) view() model.Session {
	e.snapMu.RLock()
	defer e.snapMu.RUnlock()
	return e.snapshot.Clone()
}

// sessionStore is the in-memory session table. Sessions share nothing but
// the table itself.
type sessionStore struct {
	mu       sync.RWMutex
	sessions map[string]*entry
}

func newSessionStore() *sessionStore {
	return &sessionStore{sessions: make(map[string]*entry)}
}

func (s *sessionStore) create(session model.Session) *entry {
	e := &entry{session: session}
	e.publish()

	s.mu.Lock()
	s.sessions[session.ID] = e
	s.mu.Unlock()
	return e
}

func (s *sessionStore) get(id string) (*entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.sessions[id]
	if !ok {
		return nil, ErrSessionNotFound
	}
	return e, nil
}

func (s *sessionStore) remove(id string) {
	s.mu.Lock()
	delete(s.sessions, id)
	s.mu.Unlock()
}

func (s *sessionStore) entries() []*entry {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*entry, 0, len(s.sessions))
	for _, e := range s.sessions {
		out = append(out, e)
	}
	return out
}

func (s *sessionStore) len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}
