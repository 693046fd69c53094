package engine

import (
	"fmt"
	"sync"

	"github.com/google/uuid"

	"github.com/roach88/osversion/internal/ir"
)

// HandleGenerator mints handles for records created by split and merge
// rules. Implemented by UUIDGenerator (production) and FixedGenerator and
// SequentialGenerator (tests).
type HandleGenerator interface {
	Generate() ir.Handle
}

// UUIDGenerator generates braced random (version 4) UUID handles, the form
// model files use: "{550e8400-e29b-41d4-a716-446655440000}".
//
// Thread-safety: UUIDGenerator is stateless and safe for concurrent use.
type UUIDGenerator struct{}

// Generate creates a new handle.
// Panics if the system random source fails.
func (UUIDGenerator) Generate() ir.Handle {
	return ir.Handle("{" + uuid.New().String() + "}")
}

// FixedGenerator returns predetermined handles for testing.
//
// Thread-safety: FixedGenerator is safe for concurrent use via internal mutex.
type FixedGenerator struct {
	mu      sync.Mutex
	handles []ir.Handle
	idx     int
}

// NewFixedGenerator creates a generator that returns handles in order.
func NewFixedGenerator(handles ...ir.Handle) *FixedGenerator {
	return &FixedGenerator{handles: handles}
}

// Generate returns the next predetermined handle.
//
// Panics if all handles have been consumed so a test that mints more records
// than it expects fails loudly.
func (g *FixedGenerator) Generate() ir.Handle {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.idx >= len(g.handles) {
		panic("FixedGenerator: all handles exhausted")
	}
	h := g.handles[g.idx]
	g.idx++
	return h
}

// SequentialGenerator returns well-formed handles with an increasing
// counter in the last group: {00000000-0000-4000-8000-000000000001}, ...
// Use a Prefix to keep generated handles apart from fixture handles.
type SequentialGenerator struct {
	Prefix uint16

	mu sync.Mutex
	n  uint64
}

// Generate returns the next handle in sequence.
func (g *SequentialGenerator) Generate() ir.Handle {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.n++
	return ir.Handle(fmt.Sprintf("{%08x-0000-4000-8000-%012x}", g.Prefix, g.n))
}
