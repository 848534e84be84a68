package server

import (
	"sort"
	"sync"

	"github.com/LaTsa99/LaTsaServer/pkg/model"
)

// Blacklist is the set of IPv4 addresses refused at the accept gate.
type Blacklist struct {
	mu  sync.RWMutex
	set map[string]struct{}
}

// NewBlacklist builds a blacklist seeded with previously persisted addresses.
func NewBlacklist(ips []string) *Blacklist {
	set := make(map[string]struct{}, len(ips))
	for _, ip := range ips {
		set[ip] = struct{}{}
	}
	return &Blacklist{set: set}
}

// Contains reports whether ip is blacklisted.
func (b *Blacklist) Contains(ip string) bool {
	b.mu.RLock()
	defer b.mu.RUnlock()

	_, ok := b.set[ip]
	return ok
}

// Add inserts a syntactically valid IPv4 address.
func (b *Blacklist) Add(ip string) error {
	if err := model.ValidateIPv4(ip); err != nil {
		return err
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if _, ok := b.set[ip]; ok {
		return model.ErrIPListed
	}
	b.set[ip] = struct{}{}
	return nil
}

// Remove deletes a previously blacklisted address.
func (b *Blacklist) Remove(ip string) error {
	if err := model.ValidateIPv4(ip); err != nil {
		return err
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if _, ok := b.set[ip]; !ok {
		return model.ErrIPNotListed
	}
	delete(b.set, ip)
	return nil
}

// All returns the blacklisted addresses in sorted order.
func (b *Blacklist) All() []string {
	b.mu.RLock()
	defer b.mu.RUnlock()

	result := make([]string, 0, len(b.set))
	for ip := range b.set {
		result = append(result, ip)
	}
	sort.Strings(result)
	return result
}
