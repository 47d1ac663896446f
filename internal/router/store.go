package router

import (
	"crypto/rand"
	"encoding/hex"
	"maps"
	"sync"
	"time"
)

// InMemorySessionStore keeps sessions in a mutex-guarded map. Sessions
// carry only light per-chat state (the /mode override), so losing them
// to a restart or an idle prune is harmless: the chat falls back to the
// configured default mode on its next message.
type InMemorySessionStore struct {
	mu       sync.RWMutex
	sessions map[SessionKey]*Session

	// maxSessions caps the map when positive. A flood of first-contact
	// chats cannot then grow it without bound.
	maxSessions int

	// now is swapped out by tests that need deterministic idle times.
	now func() time.Time
}

// NewInMemorySessionStore returns an empty, unbounded store.
func NewInMemorySessionStore() *InMemorySessionStore {
	return &InMemorySessionStore{
		sessions: make(map[SessionKey]*Session),
		now:      time.Now,
	}
}

// SetMaxSessions caps the number of live sessions. Zero lifts the cap.
func (s *InMemorySessionStore) SetMaxSessions(limit int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.maxSessions = limit
}

// GetOrCreate returns the session for key, minting one on first contact.
// The bool reports a fresh creation. At the session cap no session is
// minted and (nil, false) comes back; the caller turns that into a
// throttling reply.
func (s *InMemorySessionStore) GetOrCreate(key SessionKey) (*Session, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if sess, ok := s.sessions[key]; ok {
		return sess, false
	}
	if s.maxSessions > 0 && len(s.sessions) >= s.maxSessions {
		return nil, false
	}

	sess := s.mint(key)
	s.sessions[key] = sess
	return sess, true
}

// mint builds a fresh session. Callers hold the write lock.
func (s *InMemorySessionStore) mint(key SessionKey) *Session {
	now := s.now()
	return &Session{
		ID:           newSessionID(),
		Key:          key,
		CreatedAt:    now,
		LastActiveAt: now,
	}
}

// Get returns the session for key, or nil when there is none.
func (s *InMemorySessionStore) Get(key SessionKey) *Session {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.sessions[key]
}

// Touch refreshes LastActiveAt. Unknown keys are ignored.
func (s *InMemorySessionStore) Touch(key SessionKey) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[key]
	if !ok {
		return
	}
	sess.LastActiveAt = s.now()
}

// Delete drops the session for key, if any.
func (s *InMemorySessionStore) Delete(key SessionKey) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, key)
}

// Prune drops sessions idle longer than maxIdle and reports the count.
// Both the lazy pipeline pruner and the cron job land here.
func (s *InMemorySessionStore) Prune(maxIdle time.Duration) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	cutoff := s.now().Add(-maxIdle)
	dropped := 0
	maps.DeleteFunc(s.sessions, func(_ SessionKey, sess *Session) bool {
		if sess.LastActiveAt.Before(cutoff) {
			dropped++
			return true
		}
		return false
	})
	return dropped
}

// Len reports the number of live sessions.
func (s *InMemorySessionStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}

// Range visits every session until fn returns false. The read lock is
// held throughout, so fn must not call back into the store.
func (s *InMemorySessionStore) Range(fn func(SessionKey, *Session) bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for key, sess := range s.sessions {
		if !fn(key, sess) {
			return
		}
	}
}

// ActiveKeys snapshots the keys of live sessions, for the lane cleaner.
func (s *InMemorySessionStore) ActiveKeys() map[SessionKey]struct{} {
	s.mu.RLock()
	defer s.mu.RUnlock()

	keys := make(map[SessionKey]struct{}, len(s.sessions))
	for key := range s.sessions {
		keys[key] = struct{}{}
	}
	return keys
}

// newSessionID returns 16 random bytes as hex. crypto/rand.Read cannot
// fail on the platforms the daemon targets.
func newSessionID() string {
	var buf [16]byte
	rand.Read(buf[:])
	return hex.EncodeToString(buf[:])
}
