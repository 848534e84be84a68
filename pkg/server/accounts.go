package server

import (
	"sync"

	"github.com/LaTsa99/LaTsaServer/pkg/model"
)

// AccountStore is the in-memory registry of registered accounts. It is loaded
// from the datastore at startup and written back at shutdown; during normal
// operation it is the single source of truth. All access goes through the
// store's lock so that existence checks and mutations are atomic.
type AccountStore struct {
	mu       sync.RWMutex
	accounts []*model.Account          // registration order, preserved for listings
	byName   map[string]*model.Account // case-sensitive exact match
}

// NewAccountStore builds a store seeded with previously persisted accounts.
func NewAccountStore(accounts []model.Account) *AccountStore {
	s := &AccountStore{
		byName: make(map[string]*model.Account, len(accounts)),
	}
	for i := range accounts {
		a := accounts[i]
		s.accounts = append(s.accounts, &a)
		s.byName[a.Username] = &a
	}
	return s
}

// Create adds a new account with the given credential hash. The existence
// check and the insert happen under one lock acquisition, so concurrent
// registrations of the same name yield exactly one success.
func (s *AccountStore) Create(username, credentialHash string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.byName[username]; exists {
		return model.ErrUsernameTaken
	}
	a := &model.Account{Username: username, CredentialHash: credentialHash}
	s.accounts = append(s.accounts, a)
	s.byName[username] = a
	return nil
}

// Get returns a copy of the named account.
func (s *AccountStore) Get(username string) (model.Account, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	a, ok := s.byName[username]
	if !ok {
		return model.Account{}, false
	}
	return *a, true
}

// IsAdmin reports the current admin flag of the named account. Sessions read
// this live rather than caching it, so a promotion takes effect immediately.
func (s *AccountStore) IsAdmin(username string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()

	a, ok := s.byName[username]
	return ok && a.IsAdmin
}

// Ban sets the banned flag of the named account.
func (s *AccountStore) Ban(username string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	a, ok := s.byName[username]
	if !ok {
		return model.ErrUnknownUser
	}
	if a.IsBanned {
		return model.ErrAlreadyBanned
	}
	a.IsBanned = true
	return nil
}

// Unban clears the banned flag of the named account.
func (s *AccountStore) Unban(username string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	a, ok := s.byName[username]
	if !ok {
		return model.ErrUnknownUser
	}
	if !a.IsBanned {
		return model.ErrNotBanned
	}
	a.IsBanned = false
	return nil
}

// SetAdmin grants or revokes admin rights.
func (s *AccountStore) SetAdmin(username string, admin bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	a, ok := s.byName[username]
	if !ok {
		return model.ErrUnknownUser
	}
	if a.IsAdmin == admin {
		if admin {
			return model.ErrAlreadyAdmin
		}
		return model.ErrNotAdmin
	}
	a.IsAdmin = admin
	return nil
}

// Delete removes the named account entirely.
func (s *AccountStore) Delete(username string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.byName[username]; !ok {
		return model.ErrUnknownUser
	}
	delete(s.byName, username)
	for i, a := range s.accounts {
		if a.Username == username {
			s.accounts = append(s.accounts[:i], s.accounts[i+1:]...)
			break
		}
	}
	return nil
}

// All returns a snapshot of every account in registration order.
func (s *AccountStore) All() []model.Account {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]model.Account, 0, len(s.accounts))
	for _, a := range s.accounts {
		result = append(result, *a)
	}
	return result
}
