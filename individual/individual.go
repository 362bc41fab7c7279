// Package individual defines the capability surface a caller-supplied
// candidate solution type must implement to be searched by the
// population engine. The core never looks inside T; it only calls
// through this interface.
package individual

// Individual is the narrow capability every candidate solution type
// must implement. T is the concrete type itself, so Mutate can accept
// a same-typed peer without boxing through interface{}.
type Individual[T any] interface {
	// Mutate applies an in-place randomized change, optionally biased
	// by peer (another individual in the same population). Mutate must
	// be total: it has no error return and is assumed to always succeed.
	Mutate(peer T)

	// Fitness returns a real number where lower is better. Must never
	// return NaN; doing so is a programmer error and the caller will panic.
	Fitness() float64

	// Clone returns a deep copy so the engine can mutate a candidate
	// without disturbing the source.
	Clone() T
}

// AuxiliaryFitness is an optional tiebreaker used when Config's
// additional_fitness_threshold groups individuals whose primary
// fitness is within epsilon of each other.
type AuxiliaryFitness interface {
	AuxiliaryFitness() float64
}

// RandomReset is an optional capability invoked by the stagnation
// detector when a population has made no progress for reset_limit
// external rounds. It returns the individual to a fresh random
// starting configuration.
type RandomReset interface {
	RandomReset()
}

// OnNewBest is an optional notification hook called whenever a
// wrapper becomes the new best-known individual in its population.
type OnNewBest interface {
	OnNewBest()
}

// HasAuxiliaryFitness type-asserts v against AuxiliaryFitness, returning
// nil and false if the capability is absent.
func HasAuxiliaryFitness(v any) (AuxiliaryFitness, bool) {
	af, ok := v.(AuxiliaryFitness)
	return af, ok
}

// HasRandomReset type-asserts v against RandomReset.
func HasRandomReset(v any) (RandomReset, bool) {
	rr, ok := v.(RandomReset)
	return rr, ok
}

// HasOnNewBest type-asserts v against OnNewBest.
func HasOnNewBest(v any) (OnNewBest, bool) {
	nb, ok := v.(OnNewBest)
	return nb, ok
}
