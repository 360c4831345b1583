package rating

import (
	"sync"
	"time"
)

// Registry keeps one Session per key (web session id, chat id) and tears down
// sessions idle for longer than ttl.
type Registry struct {
	ttl time.Duration
	now func() time.Time

	mu        sync.Mutex
	sessions  map[string]*Session
	lastSweep time.Time
}

func NewRegistry(ttl time.Duration) *Registry {
	return &Registry{
		ttl:      ttl,
		now:      time.Now,
		sessions: make(map[string]*Session),
	}
}

// With runs fn on the session for key, creating it if needed. Calls for the
// same key are serialized.
func (r *Registry) With(key string, fn func(s *Session) error) error {
	s := r.acquire(key)
	defer r.release(s)
	s.mu.Lock()
	defer s.mu.Unlock()
	return fn(s)
}

// End discards the session for key.
func (r *Registry) End(key string) {
	r.mu.Lock()
	delete(r.sessions, key)
	r.mu.Unlock()
}

// Len returns the number of live sessions.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}

// Sweep removes idle sessions and returns how many were removed.
func (r *Registry) Sweep() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.sweepLocked()
}

// acquire returns the session for key and pins it until release, so a sweep
// running between lookup and lock cannot drop it.
func (r *Registry) acquire(key string) *Session {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.ttl > 0 && r.now().Sub(r.lastSweep) > r.ttl {
		r.sweepLocked()
	}
	s, ok := r.sessions[key]
	if !ok {
		s = &Session{}
		r.sessions[key] = s
	}
	s.pins++
	s.lastSeen = r.now()
	return s
}

func (r *Registry) release(s *Session) {
	r.mu.Lock()
	s.pins--
	s.lastSeen = r.now()
	r.mu.Unlock()
}

func (r *Registry) sweepLocked() int {
	now := r.now()
	r.lastSweep = now
	if r.ttl <= 0 {
		return 0
	}
	n := 0
	for k, s := range r.sessions {
		if s.pins > 0 {
			continue // in use
		}
		if now.Sub(s.lastSeen) > r.ttl {
			delete(r.sessions, k)
			n++
		}
	}
	return n
}
