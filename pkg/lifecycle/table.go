package lifecycle

// Table is a static adjacency list of legal next states for one entity type.
// A Table is immutable once built and safe for concurrent reads.
type Table[S comparable] struct {
	next map[S][]S
}

// NewTable builds a Table from an adjacency map. The slices are copied.
func NewTable[S comparable](adjacency map[S][]S) Table[S] {
	next := make(map[S][]S, len(adjacency))
	for from, targets := range adjacency {
		cp := make([]S, len(targets))
		copy(cp, targets)
		next[from] = cp
	}
	return Table[S]{next: next}
}

// Allows reports whether from -> to is a legal edge. Self-loops are never edges;
// callers decide how to treat a same-state request.
func (t Table[S]) Allows(from, to S) bool {
	for _, s := range t.next[from] {
		if s == to {
			return true
		}
	}
	return false
}

// Next returns the legal targets from a state in declaration order
func (t Table[S]) Next(from S) []S {
	targets := t.next[from]
	out := make([]S, len(targets))
	copy(out, targets)
	return out
}

// IsTerminal reports whether a state has no outgoing edges
func (t Table[S]) IsTerminal(s S) bool {
	return len(t.next[s]) == 0
}

// Check validates from -> to and returns a *TransitionError when it is not legal.
// A same-state request is accepted as a no-op.
func (t Table[S]) Check(entity string, from, to S) error {
	if from == to || t.Allows(from, to) {
		return nil
	}
	return &TransitionError{Entity: entity, From: anyString(from), To: anyString(to)}
}
