package lifecycle

import "sync"

// Scope tracks the liveness of a consuming context (a dialog, a board view).
// A response is applied only if the scope is still open and the ticket it was
// issued under is the latest one; the in-flight call itself is not cancelled.
type Scope struct {
	mu         sync.Mutex
	generation uint64
	closed     bool
}

// Ticket identifies one outstanding request within a Scope
type Ticket struct {
	scope      *Scope
	generation uint64
}

// NewScope opens a scope
func NewScope() *Scope {
	return &Scope{}
}

// Begin issues a ticket for a new request, superseding earlier ones
func (s *Scope) Begin() Ticket {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.generation++
	return Ticket{scope: s, generation: s.generation}
}

// Close tears the scope down; every outstanding ticket becomes stale
func (s *Scope) Close() {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
}

// Live reports whether a response for this ticket may still be applied
func (t Ticket) Live() bool {
	if t.scope == nil {
		return false
	}
	t.scope.mu.Lock()
	defer t.scope.mu.Unlock()
	return !t.scope.closed && t.scope.generation == t.generation
}

// Deliver calls apply with v only if the ticket is live. It reports whether
// the value was applied.
func Deliver[T any](t Ticket, v T, apply func(T)) bool {
	if !t.Live() {
		return false
	}
	apply(v)
	return true
}
