package store

import (
	"errors"
	"sync"
	"time"

	"github.com/dunamismax/photoresize/internal/editor"
)

var ErrSessionNotFound = errors.New("session not found")

type sessionEntry struct {
	mu       sync.Mutex
	session  *editor.Session
	lastUsed time.Time
}

// MemorySessionStore keeps live editing sessions. Each session is guarded by
// its own lock so requests against different sessions never contend.
type MemorySessionStore struct {
	mu       sync.Mutex
	sessions map[string]*sessionEntry
	now      func() time.Time
}

func NewMemorySessionStore() *MemorySessionStore {
	return &MemorySessionStore{
		sessions: make(map[string]*sessionEntry),
		now:      time.Now,
	}
}

func (s *MemorySessionStore) Put(id string, session *editor.Session) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[id] = &sessionEntry{session: session, lastUsed: s.now()}
}

// With runs fn while holding the session's lock.
func (s *MemorySessionStore) With(id string, fn func(*editor.Session) error) error {
	s.mu.Lock()
	entry, ok := s.sessions[id]
	s.mu.Unlock()
	if !ok {
		return ErrSessionNotFound
	}

	entry.mu.Lock()
	defer entry.mu.Unlock()
	entry.lastUsed = s.now()
	return fn(entry.session)
}

func (s *MemorySessionStore) Delete(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.sessions[id]
	delete(s.sessions, id)
	return ok
}

func (s *MemorySessionStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}

// EvictIdle drops sessions unused for longer than ttl and reports how many
// were released.
func (s *MemorySessionStore) EvictIdle(ttl time.Duration) int {
	cutoff := s.now().Add(-ttl)

	s.mu.Lock()
	defer s.mu.Unlock()

	evicted := 0
	for id, entry := range s.sessions {
		if !entry.mu.TryLock() {
			continue
		}
		idle := entry.lastUsed.Before(cutoff)
		entry.mu.Unlock()
		if idle {
			delete(s.sessions, id)
			evicted++
		}
	}
	return evicted
}
