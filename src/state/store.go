package state

import (
	"fmt"
	"strings"
	"sync"
)

// InternalPrefix marks keys synthesized by actions (e.g. "*Key65") as opposed to
// keys declared by the user in a profile's InitialStates.
const InternalPrefix = "*"

// Observer is called after every write with the written key and value.
type Observer func(key string, value int)

// Store is a process-wide map of named integer states shared by every action
// execution. It is safe for concurrent use.
type Store struct {
	mu       sync.RWMutex
	values   map[string]int
	observer Observer
}

func NewStore() *Store {
	return &Store{values: make(map[string]int)}
}

// KeyStateKey returns the internal key used to track whether a virtual key is down.
func KeyStateKey(virtualKeyCode uint16) string {
	return fmt.Sprintf("%sKey%d", InternalPrefix, virtualKeyCode)
}

// IsInternal reports whether key belongs to the reserved internal namespace.
func IsInternal(key string) bool {
	return strings.HasPrefix(key, InternalPrefix)
}

// SetObserver installs a callback invoked after each Set. Pass nil to remove it.
func (s *Store) SetObserver(observer Observer) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.observer = observer
}

// Get returns the current value of key and whether it was ever set.
func (s *Store) Get(key string) (int, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	value, ok := s.values[key]
	return value, ok
}

// Set writes value unconditionally.
func (s *Store) Set(key string, value int) {
	s.mu.Lock()
	s.values[key] = value
	observer := s.observer
	s.mu.Unlock()

	if observer != nil {
		observer(key, value)
	}
}

// CompareAndSet writes value only if the current value of key equals old
// (an unset key compares as 0). It reports whether the write happened.
func (s *Store) CompareAndSet(key string, old, value int) bool {
	s.mu.Lock()
	if s.values[key] != old {
		s.mu.Unlock()
		return false
	}
	s.values[key] = value
	observer := s.observer
	s.mu.Unlock()

	if observer != nil {
		observer(key, value)
	}
	return true
}

// Reset drops every user-defined key and seeds the store with initial.
// Internal keys are kept: a key held down across a profile reload must still be
// released by its KeyUp.
func (s *Store) Reset(initial map[string]int) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for key := range s.values {
		if !IsInternal(key) {
			delete(s.values, key)
		}
	}
	for key, value := range initial {
		s.values[key] = value
	}
}

// Snapshot copies the current values. With userOnly set, internal keys are skipped.
func (s *Store) Snapshot(userOnly bool) map[string]int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	snapshot := make(map[string]int, len(s.values))
	for key, value := range s.values {
		if userOnly && IsInternal(key) {
			continue
		}
		snapshot[key] = value
	}
	return snapshot
}

// Len returns the number of keys currently stored.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.values)
}
