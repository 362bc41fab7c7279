// Package population implements the bounded-multiset search engine:
// scored wrappers, mutate/delete strategies, peer selection, and the
// stagnation/reset detector.
package population

import (
	"math"

	"github.com/evoswarm/evoswarm/individual"
)

// ScoredWrapper pairs an individual with its cached fitness. A fresh
// wrapper starts at +Inf, meaning "not yet scored".
type ScoredWrapper[T individual.Individual[T]] struct {
	Value   T
	fitness float64
}

// NewWrapper builds a wrapper around value with fitness +Inf.
func NewWrapper[T individual.Individual[T]](value T) *ScoredWrapper[T] {
	return &ScoredWrapper[T]{Value: value, fitness: math.Inf(1)}
}

// NewWrapperWithFitness builds a wrapper with an already-known cached
// fitness, used when reconstructing a wrapper decoded from the wire or
// from disk (the encoded fitness is trusted rather than recomputed).
func NewWrapperWithFitness[T individual.Individual[T]](value T, fitness float64) *ScoredWrapper[T] {
	return &ScoredWrapper[T]{Value: value, fitness: fitness}
}

// Mutate delegates to the wrapped individual's Mutate; it does not
// rescore. Callers must call Score afterward.
func (w *ScoredWrapper[T]) Mutate(peer *ScoredWrapper[T]) {
	w.Value.Mutate(peer.Value)
}

// Score recomputes and caches the fitness. A NaN result is a
// programmer error in the user's scoring function and panics rather
// than silently corrupting ordering.
func (w *ScoredWrapper[T]) Score() {
	f := w.Value.Fitness()
	if math.IsNaN(f) {
		panic("evoswarm: fitness of individual is NaN")
	}
	w.fitness = f
}

// Fitness returns the cached fitness value.
func (w *ScoredWrapper[T]) Fitness() float64 {
	return w.fitness
}

// AuxiliaryFitness returns the optional tiebreaker, or 0 if the
// wrapped individual does not implement it.
func (w *ScoredWrapper[T]) AuxiliaryFitness() float64 {
	if af, ok := individual.HasAuxiliaryFitness(w.Value); ok {
		return af.AuxiliaryFitness()
	}
	return 0
}

// Clone returns a new wrapper holding a deep copy of the wrapped
// individual, carrying over the cached fitness (the clone's fitness is
// still correct until it is mutated).
func (w *ScoredWrapper[T]) Clone() *ScoredWrapper[T] {
	return &ScoredWrapper[T]{Value: w.Value.Clone(), fitness: w.fitness}
}

// Less implements the total order used throughout the engine: ascending
// by fitness, with NaN refused (callers never observe a NaN-fitness
// wrapper because Score panics before one can be admitted).
func Less[T individual.Individual[T]](a, b *ScoredWrapper[T]) bool {
	if math.IsNaN(a.fitness) || math.IsNaN(b.fitness) {
		panic("evoswarm: NaN fitness encountered during comparison")
	}
	return a.fitness < b.fitness
}

// sameFitness reports whether a and b have bit-identical fitness, the
// duplicate-elimination rule used by SortUnique/RandomBest3.
func sameFitness[T individual.Individual[T]](a, b *ScoredWrapper[T]) bool {
	return a.fitness == b.fitness
}
