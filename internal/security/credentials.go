// Package security provides centralized credential management, log redaction,
// per-chat rate limiting, input validation, audit logging, and subprocess
// sanitization.
package security

import (
	"maps"
	"slices"
	"sync"
)

// CredentialStore holds every secret the daemon knows at runtime: bot
// token, API keys, bearer tokens. Modules register what they load so the
// redactor and the subprocess environment filter see one authoritative
// list instead of each re-reading the environment.
type CredentialStore struct {
	mu      sync.RWMutex
	secrets map[string]string
}

// NewCredentialStore returns an empty store.
func NewCredentialStore() *CredentialStore {
	return &CredentialStore{secrets: make(map[string]string)}
}

// Set stores a credential under name. Last write wins, which is what a
// config reload wants.
func (s *CredentialStore) Set(name, value string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.secrets[name] = value
}

// Get returns the credential and whether it is present.
func (s *CredentialStore) Get(name string) (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.secrets[name]
	return v, ok
}

// Has reports whether a credential is registered under name.
func (s *CredentialStore) Has(name string) bool {
	_, ok := s.Get(name)
	return ok
}

// Names lists the registered credential names, sorted. Names are safe to
// log; values never are.
func (s *CredentialStore) Names() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Sorted(maps.Keys(s.secrets))
}

// Values returns the non-empty credential values for registration with a
// Redactor. Order is not specified.
func (s *CredentialStore) Values() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	values := make([]string, 0, len(s.secrets))
	for _, v := range s.secrets {
		if v != "" {
			values = append(values, v)
		}
	}
	return values
}

// Delete removes a credential. Unknown names are ignored.
func (s *CredentialStore) Delete(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.secrets, name)
}

// Len reports how many credentials are registered.
func (s *CredentialStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.secrets)
}
