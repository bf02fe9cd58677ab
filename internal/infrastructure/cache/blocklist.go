package cache

import "sync"

// Blocklist is a mutex-guarded string set. Blocked IPs, user ids and file
// content hashes are each kept in their own independent instance.
type Blocklist struct {
	mu      sync.RWMutex
	entries map[string]struct{}
}

// NewBlocklist creates an empty blocklist.
func NewBlocklist() *Blocklist {
	return &Blocklist{entries: make(map[string]struct{})}
}

// Add inserts value into the set.
func (b *Blocklist) Add(value string) {
	b.mu.Lock()
	b.entries[value] = struct{}{}
	b.mu.Unlock()
}

// Remove deletes value from the set (idempotent).
func (b *Blocklist) Remove(value string) {
	b.mu.Lock()
	delete(b.entries, value)
	b.mu.Unlock()
}

// Contains reports whether value is in the set.
func (b *Blocklist) Contains(value string) bool {
	b.mu.RLock()
	_, ok := b.entries[value]
	b.mu.RUnlock()
	return ok
}

// Len returns the number of blocked entries.
func (b *Blocklist) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.entries)
}
