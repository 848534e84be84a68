package server

import "sync"

// SessionRegistry is the live set of sessions on the server. Membership
// changes are atomic with respect to the snapshots taken during broadcast
// fan-out: a broadcast works on the membership as of the moment it was
// decided, and a session removed before the snapshot never sees the line.
type SessionRegistry struct {
	mu       sync.RWMutex
	sessions map[*Session]struct{}
}

// NewSessionRegistry creates an empty registry.
func NewSessionRegistry() *SessionRegistry {
	return &SessionRegistry{sessions: make(map[*Session]struct{})}
}

// Add registers a newly accepted session.
func (r *SessionRegistry) Add(s *Session) {
	r.mu.Lock()
	r.sessions[s] = struct{}{}
	r.mu.Unlock()
}

// Remove deregisters a terminating session. Removing a session that is not
// registered is a no-op, which keeps termination idempotent.
func (r *SessionRegistry) Remove(s *Session) {
	r.mu.Lock()
	delete(r.sessions, s)
	r.mu.Unlock()
}

// Snapshot returns the current members.
func (r *SessionRegistry) Snapshot() []*Session {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make([]*Session, 0, len(r.sessions))
	for s := range r.sessions {
		result = append(result, s)
	}
	return result
}

// FindByUsername returns the authenticated session of the named user, or nil
// if that user is not connected.
func (r *SessionRegistry) FindByUsername(username string) *Session {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for s := range r.sessions {
		if name, authed := s.identity(); authed && name == username {
			return s
		}
	}
	return nil
}

// Count returns the number of live sessions.
func (r *SessionRegistry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}
