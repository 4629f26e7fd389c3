package tagger

import (
	"sort"
	"sync"
)

// KeySet is a concurrency-safe set of object keys.
type KeySet struct {
	mu   sync.Mutex
	keys map[string]struct{}
}

func NewKeySet() *KeySet {
	return &KeySet{keys: make(map[string]struct{})}
}

// Add inserts keys and returns how many were new.
func (s *KeySet) Add(keys ...string) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	added := 0
	for _, k := range keys {
		if _, ok := s.keys[k]; ok {
			continue
		}
		s.keys[k] = struct{}{}
		added++
	}
	return added
}

func (s *KeySet) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.keys)
}

// Sorted returns a sorted copy of the keys.
func (s *KeySet) Sorted() []string {
	s.mu.Lock()
	out := make([]string, 0, len(s.keys))
	for k := range s.keys {
		out = append(out, k)
	}
	s.mu.Unlock()

	sort.Strings(out)
	return out
}
