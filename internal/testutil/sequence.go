package testutil

import "sync"

// Sequence is a resettable tag-id source for tests.
//
// It satisfies tagging.IDSource. Unlike tagging.Sequence it can be rewound,
// so the same scan run twice produces identical ids.
type Sequence struct {
	mu   sync.Mutex
	last int64
}

// NewSequence returns a sequence whose first id is 1.
func NewSequence() *Sequence {
	return &Sequence{}
}

// Next returns the next id.
func (s *Sequence) Next() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.last++
	return s.last
}

// Current returns the last id handed out, or 0.
func (s *Sequence) Current() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.last
}

// Reset rewinds the sequence so the next id is 1 again.
func (s *Sequence) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.last = 0
}
