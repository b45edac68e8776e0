package lifecycle

import (
	"fmt"
	"sync"
)

// InFlight serializes mutations per entity: while a request for a key is
// outstanding, a second Acquire for the same key fails with ErrInFlight.
type InFlight struct {
	mu      sync.Mutex
	pending map[string]struct{}
}

// NewInFlight creates an empty guard
func NewInFlight() *InFlight {
	return &InFlight{pending: make(map[string]struct{})}
}

// Acquire marks key as outstanding. The returned release func must be called
// once the request completes; calling it more than once is harmless.
func (g *InFlight) Acquire(key string) (func(), error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if _, busy := g.pending[key]; busy {
		return nil, fmt.Errorf("%s: %w", key, ErrInFlight)
	}
	g.pending[key] = struct{}{}

	var once sync.Once
	return func() {
		once.Do(func() {
			g.mu.Lock()
			delete(g.pending, key)
			g.mu.Unlock()
		})
	}, nil
}

// Busy reports whether key has an outstanding request (used to disable actions)
func (g *InFlight) Busy(key string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	_, busy := g.pending[key]
	return busy
}
