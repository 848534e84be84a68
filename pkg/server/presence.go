package server

import (
	"sync"

	"github.com/LaTsa99/LaTsaServer/pkg/model"
)

// PresenceRegistry tracks the Online/Offline status of every registered
// account. It is constructed explicitly from the account store when the
// server is built and passed by reference to every session, so there is no
// order-dependent lazy initialization.
type PresenceRegistry struct {
	mu sync.RWMutex
	m  map[string]model.Presence
}

// NewPresenceRegistry seeds the registry with one Offline entry per account.
func NewPresenceRegistry(accounts []model.Account) *PresenceRegistry {
	m := make(map[string]model.Presence, len(accounts))
	for _, a := range accounts {
		m[a.Username] = model.Offline
	}
	return &PresenceRegistry{m: m}
}

// Add creates an Offline entry for a newly registered account.
func (p *PresenceRegistry) Add(username string) {
	p.mu.Lock()
	p.m[username] = model.Offline
	p.mu.Unlock()
}

// Set replaces the status of an existing entry. Usernames without an entry
// are ignored: entries exist only for registered accounts.
func (p *PresenceRegistry) Set(username string, status model.Presence) {
	p.mu.Lock()
	if _, ok := p.m[username]; ok {
		p.m[username] = status
	}
	p.mu.Unlock()
}

// Get returns the status of a user. Absent entries read as Offline.
func (p *PresenceRegistry) Get(username string) model.Presence {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if status, ok := p.m[username]; ok {
		return status
	}
	return model.Offline
}

// Remove deletes an entry when its account is deleted.
func (p *PresenceRegistry) Remove(username string) {
	p.mu.Lock()
	delete(p.m, username)
	p.mu.Unlock()
}
