package testutil

import (
	"fmt"
	"sync"
)

// RunIDs hands out predictable run ids: "<prefix>-1", "<prefix>-2", ...
//
// It satisfies runner.RunIDGenerator, which keeps summaries and golden output
// stable across test runs.
type RunIDs struct {
	mu     sync.Mutex
	prefix string
	n      int
}

// NewRunIDs creates a generator. An empty prefix defaults to "run".
func NewRunIDs(prefix string) *RunIDs {
	if prefix == "" {
		prefix = "run"
	}
	return &RunIDs{prefix: prefix}
}

// Generate returns the next run id.
func (g *RunIDs) Generate() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.n++
	return fmt.Sprintf("%s-%d", g.prefix, g.n)
}
