// Package dedup tracks which stream IDs have already been emitted in
// the current run so each item reaches the sink at most once.
package dedup

import "sync"

// Set is a concurrent-safe emitted-ID set.
type Set struct {
	mu   sync.Mutex
	seen map[string]struct{}
}

// New returns an empty set.
func New() *Set {
	return &Set{seen: make(map[string]struct{})}
}

// ShouldEmit atomically records id and reports whether this call was
// the first to see it. Exactly one caller gets true per id.
func (s *Set) ShouldEmit(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.seen[id]; ok {
		return false
	}
	s.seen[id] = struct{}{}
	return true
}

// Len reports how many distinct IDs have been emitted.
func (s *Set) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.seen)
}
