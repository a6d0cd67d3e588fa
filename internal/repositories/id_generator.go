package repositories

import (
	"sync"
	"time"
)

// IDGenerator hands out process-unique record identifiers derived from the wall clock.
//
// Identifiers are epoch milliseconds, bumped by one whenever the clock has not advanced
// past the last issued value, so they are strictly increasing within the process.
// A single generator is shared by the repositories of every content kind.
type IDGenerator struct {
	mu   sync.Mutex
	last int64
	now  func() time.Time
}

// NewIDGenerator creates a new IDGenerator using the system clock
func NewIDGenerator() *IDGenerator {
	return &IDGenerator{now: time.Now}
}

// Next returns a new identifier greater than every identifier issued or observed before
func (g *IDGenerator) Next() int64 {
	g.mu.Lock()
	defer g.mu.Unlock()

	id := g.now().UnixMilli()
	if id <= g.last {
		id = g.last + 1
	}
	g.last = id
	return id
}

// Observe records an identifier that already exists in a backing store,
// so that Next never returns it again.
func (g *IDGenerator) Observe(id int64) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if id > g.last {
		g.last = id
	}
}
