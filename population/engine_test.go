package population

import (
	"math"
	"testing"

	"github.com/evoswarm/evoswarm/config"
)

// scalar is a minimal individual.Individual[scalar] used to exercise the
// engine without pulling in one of the example domains: its fitness is
// just abs(value), and Mutate moves value by a fixed step of 0.37
// toward the peer's value (upward when the two are equal).
type scalar struct {
	value float64
}

func (s *scalar) Mutate(peer *scalar) {
	step := 0.37
	if s.value > peer.value {
		s.value -= step
	} else {
		s.value += step
	}
}

func (s *scalar) Fitness() float64 {
	return math.Abs(s.value)
}

func (s *scalar) Clone() *scalar {
	return &scalar{value: s.value}
}

func newTestPopulation(t *testing.T, cfg config.Config) *Population[*scalar] {
	t.Helper()
	seed := &scalar{value: 10.0}
	return New[*scalar](seed, cfg)
}

func TestNewPopulationRespectsSize(t *testing.T) {
	cfg := config.Default()
	cfg.MaxPopulationSize = 12
	p := newTestPopulation(t, cfg)

	if p.Len() != 12 {
		t.Fatalf("expected 12 members, got %d", p.Len())
	}
}

func TestSortWitnessAfterDelete(t *testing.T) {
	cfg := config.Default()
	cfg.MaxPopulationSize = 8
	cfg.MutateMethod = config.Simple
	cfg.DeleteMethod = config.SortKeep
	cfg.NumOfMutations = 3
	p := newTestPopulation(t, cfg)

	for i := 0; i < 5; i++ {
		p.MutateRound()
		p.Delete()

		min := p.members[0].Fitness()
		for _, w := range p.members {
			if w.Fitness() < min {
				t.Fatalf("index 0 is not the minimum-fitness wrapper")
			}
		}
	}
}

func TestSizeBoundHoldsAcrossRounds(t *testing.T) {
	methods := []config.MutateMethod{config.Simple, config.OnlyBest, config.LowMem}
	deletes := []config.DeleteMethod{config.SortKeep, config.SortUnique, config.RandomBest3}

	for _, m := range methods {
		for _, d := range deletes {
			cfg := config.Default()
			cfg.MaxPopulationSize = 10
			cfg.MutateMethod = m
			cfg.DeleteMethod = d
			cfg.NumOfMutations = 4
			p := newTestPopulation(t, cfg)

			for round := 0; round < 20; round++ {
				p.MutateRound()
				p.Delete()

				if p.Len() < 1 || p.Len() > cfg.MaxPopulationSize {
					t.Fatalf("method=%s delete=%s round=%d: size %d out of [1,%d]",
						m, d, round, p.Len(), cfg.MaxPopulationSize)
				}
			}
		}
	}
}

func TestNewBestFitnessNeverIncreases(t *testing.T) {
	cfg := config.Default()
	cfg.MaxPopulationSize = 10
	cfg.MutateMethod = config.Simple
	cfg.NumOfMutations = 5
	p := newTestPopulation(t, cfg)

	best := p.NewBestFitness()
	for i := 0; i < 15; i++ {
		p.MutateRound()
		p.Delete()

		if p.NewBestFitness() > best {
			t.Fatalf("new best fitness increased: %v -> %v", best, p.NewBestFitness())
		}
		best = p.NewBestFitness()
	}
}

func TestNoAdjacentDuplicatesUnderSortUnique(t *testing.T) {
	cfg := config.Default()
	cfg.MaxPopulationSize = 10
	cfg.MutateMethod = config.Simple
	cfg.DeleteMethod = config.SortUnique
	cfg.NumOfMutations = 3
	p := newTestPopulation(t, cfg)

	for i := 0; i < 10; i++ {
		p.MutateRound()
		p.Delete()

		for j := 1; j < len(p.members); j++ {
			if sameFitness(p.members[j-1], p.members[j]) {
				t.Fatalf("adjacent duplicate fitness %v at index %d", p.members[j].Fitness(), j)
			}
		}
	}
}

func TestRandomBest3PreservesTopThree(t *testing.T) {
	cfg := config.Default()
	cfg.MaxPopulationSize = 10
	cfg.MutateMethod = config.Simple
	cfg.DeleteMethod = config.RandomBest3
	cfg.NumOfMutations = 3
	p := newTestPopulation(t, cfg)

	for round := 0; round < 10; round++ {
		p.MutateRound()
		p.sort()
		top3 := map[*ScoredWrapper[*scalar]]bool{
			p.members[0]: true,
			p.members[1]: true,
			p.members[2]: true,
		}

		p.deleteRandomBest3()

		for w := range top3 {
			found := false
			for _, m := range p.members {
				if m == w {
					found = true
					break
				}
			}
			if !found {
				t.Fatalf("round %d: top-3 member with fitness %v dropped by RandomBest3", round, w.Fitness())
			}
		}
	}
}

// resettableScalar is a scalar individual that also implements
// individual.RandomReset, so CheckReset's stagnation-escape path has
// something observable to assert against.
type resettableScalar struct {
	value       float64
	resetCalled bool
}

func (s *resettableScalar) Mutate(peer *resettableScalar) {
	step := 0.37
	if s.value > peer.value {
		s.value -= step
	} else {
		s.value += step
	}
}

func (s *resettableScalar) Fitness() float64 { return math.Abs(s.value) }

func (s *resettableScalar) Clone() *resettableScalar {
	return &resettableScalar{value: s.value}
}

func (s *resettableScalar) RandomReset() {
	s.resetCalled = true
	s.value = 0
}

func TestCheckResetEscalatesAfterStagnation(t *testing.T) {
	cfg := config.Default()
	cfg.MaxPopulationSize = 5
	cfg.ResetLimit = 3

	seed := &resettableScalar{value: 10.0}
	p := New[*resettableScalar](seed, cfg)

	// Force a stuck best by repeatedly handing in a candidate with the
	// exact same fitness as the current best.
	stuckFitness := p.members[0].Fitness()

	for i := 0; i < 3; i++ {
		candidate := NewWrapper(&resettableScalar{value: stuckFitness})
		candidate.Score()
		p.CheckReset(candidate)
	}

	if p.resetCounter != 0 {
		t.Fatalf("expected reset_counter to clear after reaching reset_limit, got %d", p.resetCounter)
	}

	for i, w := range p.members {
		if !w.Value.resetCalled {
			t.Fatalf("member %d: RandomReset was not invoked by the stagnation reset", i)
		}
	}
}

func TestRandomBest3PreservesTiedTopThree(t *testing.T) {
	cfg := config.Default()
	cfg.MaxPopulationSize = 4
	cfg.DeleteMethod = config.RandomBest3

	for trial := 0; trial < 20; trial++ {
		wrappers := []*ScoredWrapper[*scalar]{
			NewWrapperWithFitness[*scalar](&scalar{value: 1.0}, 1.0),
			NewWrapperWithFitness[*scalar](&scalar{value: -1.0}, 1.0),
			NewWrapperWithFitness[*scalar](&scalar{value: 1.0}, 1.0),
			NewWrapperWithFitness[*scalar](&scalar{value: 2.0}, 2.0),
			NewWrapperWithFitness[*scalar](&scalar{value: 3.0}, 3.0),
			NewWrapperWithFitness[*scalar](&scalar{value: 4.0}, 4.0),
		}
		tied := map[*ScoredWrapper[*scalar]]bool{wrappers[0]: true, wrappers[1]: true, wrappers[2]: true}

		p := FromWrappers(wrappers, cfg)
		p.deleteRandomBest3()

		survivors := 0
		for _, m := range p.members {
			if tied[m] {
				survivors++
			}
		}
		if survivors != 3 {
			t.Fatalf("trial %d: expected all three fitness=1.0 wrappers to survive RandomBest3, got %d survivors of %d members", trial, survivors, len(p.members))
		}
	}
}

func TestPanicsOnNaNFitness(t *testing.T) {
	defer func() {
		if r := recover(); r == nil {
			t.Fatalf("expected panic on NaN fitness")
		}
	}()

	w := NewWrapper(&nanIndividual{})
	w.Score()
}

type nanIndividual struct{}

func (n *nanIndividual) Mutate(peer *nanIndividual) {}
func (n *nanIndividual) Fitness() float64            { return math.NaN() }
func (n *nanIndividual) Clone() *nanIndividual       { return &nanIndividual{} }
