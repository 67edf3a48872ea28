package cartapi

import (
	"fmt"
	"sync"

	"github.com/google/uuid"
)

// RequestIDGenerator produces the X-Request-ID value for each call.
type RequestIDGenerator interface {
	Generate() string
}

// UUIDv7Generator generates time-sortable request IDs, which keeps journal
// entries and server logs in creation order when sorted by ID.
//
// Stateless and safe for concurrent use.
type UUIDv7Generator struct{}

// Generate returns a new hyphenated UUIDv7.
func (UUIDv7Generator) Generate() string {
	return uuid.Must(uuid.NewV7()).String()
}

// FixedGenerator returns predetermined IDs for tests and golden traces.
type FixedGenerator struct {
	mu  sync.Mutex
	ids []string
	idx int
}

// NewFixedGenerator creates a generator that returns ids in order.
func NewFixedGenerator(ids ...string) *FixedGenerator {
	return &FixedGenerator{ids: ids}
}

// Generate returns the next predetermined ID. Panics when exhausted, which
// catches a test that issued more requests than it expected.
func (g *FixedGenerator) Generate() string {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.idx >= len(g.ids) {
		panic("FixedGenerator: all ids exhausted")
	}
	id := g.ids[g.idx]
	g.idx++
	return id
}

// SequenceGenerator returns prefix-0001, prefix-0002, and so on. Used where a
// test cannot know up front how many requests it will issue.
type SequenceGenerator struct {
	Prefix string

	mu sync.Mutex
	n  int
}

// Generate returns the next ID in the sequence.
func (g *SequenceGenerator) Generate() string {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.n++
	return fmt.Sprintf("%s-%04d", g.Prefix, g.n)
}
