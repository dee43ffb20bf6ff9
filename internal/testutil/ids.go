package testutil

import (
	"fmt"
	"sync"
)

// SequenceIDSource returns predictable ids ("LOG-0001", "LOG-0002", ...)
// so tests can assert on generated audit entries and golden files stay
// stable across runs.
//
// Thread-safety: safe for concurrent use via internal mutex.
type SequenceIDSource struct {
	mu     sync.Mutex
	prefix string
	n      int
}

// NewSequenceIDSource creates a source with the given id prefix.
func NewSequenceIDSource(prefix string) *SequenceIDSource {
	return &SequenceIDSource{prefix: prefix}
}

// NewID returns the next id in the sequence.
func (s *SequenceIDSource) NewID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.n++
	return fmt.Sprintf("%s-%04d", s.prefix, s.n)
}

// Reset restarts the sequence. After Reset the next id ends in -0001.
func (s *SequenceIDSource) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.n = 0
}
