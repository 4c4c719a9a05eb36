// Package session holds the display name of the local user for the
// lifetime of one client process.
package session

import (
	"strings"
	"sync"
)

// Store is a process-scoped identity store. The zero value is empty and
// ready to use.
type Store struct {
	mu   sync.RWMutex
	name string
}

func NewStore() *Store {
	return &Store{}
}

// Get returns the stored name, or "" when no identity is known.
func (s *Store) Get() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.name
}

// Set stores name with surrounding whitespace removed. A blank name
// clears the store.
func (s *Store) Set(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.name = strings.TrimSpace(name)
}

func (s *Store) Clear() {
	s.Set("")
}

func (s *Store) Known() bool {
	return s.Get() != ""
}
