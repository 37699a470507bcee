package updater

import "sync"

// SessionStore is session-scoped key/value state: it lives for one app
// session and is gone after, deliberately, so a loop-prevention decision
// never leaks into an unrelated later session.
type SessionStore interface {
	Get(key string) string
	Set(key, value string)
	Delete(key string)
}

// MemorySession is the in-process SessionStore.
type MemorySession struct {
	mu     sync.Mutex
	values map[string]string
}

func NewMemorySession() *MemorySession {
	return &MemorySession{values: make(map[string]string)}
}

func (s *MemorySession) Get(key string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.values[key]
}

func (s *MemorySession) Set(key, value string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.values[key] = value
}

func (s *MemorySession) Delete(key string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.values, key)
}
