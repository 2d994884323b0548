package testutil

import (
	"fmt"
	"sync"
)

// SequenceIDs generates "<prefix>-1", "<prefix>-2", ... without running
// out, for deterministic lifecycle message ids in long scenarios.
//
// Unlike engine.FixedGenerator, which panics when its list is exhausted,
// SequenceIDs never fails.
//
// Thread-safety: SequenceIDs is safe for concurrent use.
type SequenceIDs struct {
	mu     sync.Mutex
	prefix string
	n      int
}

// NewSequenceIDs creates a generator. An empty prefix means "msg".
func NewSequenceIDs(prefix string) *SequenceIDs {
	if prefix == "" {
		prefix = "msg"
	}
	return &SequenceIDs{prefix: prefix}
}

// Generate returns the next id.
//
// Implements engine.IDGenerator.
func (g *SequenceIDs) Generate() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.n++
	return fmt.Sprintf("%s-%d", g.prefix, g.n)
}
