package lifecycle

import (
	"fmt"
	"sort"
)

// Step is one threshold of a Bands classifier: values >= Min map to Value
type Step[T any] struct {
	Min   float64
	Value T
}

// Bands maps a number onto ordered, non-overlapping bands. It is the one
// classifier used for onboarding phases, stall severity, dunning severity and
// health risk, so every threshold is evaluated the same way (inclusive lower bound).
type Bands[T any] struct {
	floor T
	steps []Step[T] // sorted by Min descending
}

// NewBands builds a classifier. Values below every step map to floor.
// Duplicate minimums are rejected since they would make two bands overlap.
func NewBands[T any](floor T, steps ...Step[T]) (Bands[T], error) {
	sorted := make([]Step[T], len(steps))
	copy(sorted, steps)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Min > sorted[j].Min })

	for i := 1; i < len(sorted); i++ {
		if sorted[i].Min == sorted[i-1].Min {
			return Bands[T]{}, fmt.Errorf("duplicate band threshold %v", sorted[i].Min)
		}
	}
	return Bands[T]{floor: floor, steps: sorted}, nil
}

// MustBands is NewBands for package-level tables
func MustBands[T any](floor T, steps ...Step[T]) Bands[T] {
	b, err := NewBands(floor, steps...)
	if err != nil {
		panic(err)
	}
	return b
}

// Classify returns the band for v
func (b Bands[T]) Classify(v float64) T {
	for _, s := range b.steps {
		if v >= s.Min {
			return s.Value
		}
	}
	return b.floor
}

// Steps returns the thresholds in ascending order
func (b Bands[T]) Steps() []Step[T] {
	out := make([]Step[T], len(b.steps))
	for i, s := range b.steps {
		out[len(b.steps)-1-i] = s
	}
	return out
}
