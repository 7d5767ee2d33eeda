package testutil

import (
	"fmt"
	"sync"
)

// RunIDSequence generates predictable replication run ids for tests:
// "<prefix>-0001", "<prefix>-0002", ...
//
// This keeps ledger rows and golden output byte-identical across runs.
//
// Thread-safety: RunIDSequence is safe for concurrent use via internal mutex.
type RunIDSequence struct {
	mu     sync.Mutex
	prefix string
	n      int
}

// NewRunIDSequence creates a generator. If prefix is empty, "run" is used.
func NewRunIDSequence(prefix string) *RunIDSequence {
	if prefix == "" {
		prefix = "run"
	}
	return &RunIDSequence{prefix: prefix}
}

// Generate returns the next id.
//
// Implements server.RunIDGenerator.
func (g *RunIDSequence) Generate() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.n++
	return fmt.Sprintf("%s-%04d", g.prefix, g.n)
}
