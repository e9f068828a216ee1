// Package state holds the latest known raw value per topic. The store is the
// single de-duplication gate for the whole pipeline: an update whose raw text
// matches the stored value changes nothing and triggers nothing downstream.
package state

import (
	"strings"
	"sync"
)

// Separator is the topic path separator. Every stored topic starts with it;
// malformed topics are rejected at intake and again here.
const Separator = "/"

// Store is a concurrency-safe topic→value map with last-write-wins semantics.
// It is mutated by message intake and read concurrently by rule evaluation
// and the query surface.
type Store struct {
	mu     sync.RWMutex
	values map[string]string
}

// NewStore creates an empty store.
func NewStore() *Store {
	return &Store{values: make(map[string]string)}
}

// Get returns the stored raw value for a topic.
func (s *Store) Get(topic string) (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	v, ok := s.values[topic]
	return v, ok
}

// Set stores value under topic and reports whether the stored state changed.
// Equality is on raw text, not on coerced values. Topics that do not start
// with the path separator are rejected and report no change.
func (s *Store) Set(topic, value string) bool {
	if !strings.HasPrefix(topic, Separator) {
		return false
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if current, ok := s.values[topic]; ok && current == value {
		return false
	}
	s.values[topic] = value
	return true
}

// Snapshot returns a defensive copy of the full state. Evaluation runs
// against the copy so a concurrent Set never mutates the map mid-pass.
func (s *Store) Snapshot() map[string]string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	snapshot := make(map[string]string, len(s.values))
	for k, v := range s.values {
		snapshot[k] = v
	}
	return snapshot
}

// WithPrefix returns a copy of the entries whose topic starts with prefix.
// Used by the query surface for room/device listings.
func (s *Store) WithPrefix(prefix string) map[string]string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	matched := make(map[string]string)
	for k, v := range s.values {
		if strings.HasPrefix(k, prefix) {
			matched[k] = v
		}
	}
	return matched
}

// Len returns the number of stored topics.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.values)
}
