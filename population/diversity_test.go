package population

import (
	"math"
	"testing"

	"github.com/evoswarm/evoswarm/config"
)

// tagged is a gob-friendly individual (exported field) used to test
// DiversityIndex: scalar has no exported fields, so gob refuses to
// encode it and DiversityIndex would return an error.
type tagged struct {
	Value float64
}

func (t *tagged) Mutate(peer *tagged) { t.Value = peer.Value }
func (t *tagged) Fitness() float64    { return math.Abs(t.Value) }
func (t *tagged) Clone() *tagged      { return &tagged{Value: t.Value} }

func TestDiversityIndexOneForIdenticalPopulation(t *testing.T) {
	cfg := config.Default()
	cfg.MaxPopulationSize = 5
	wrappers := make([]*ScoredWrapper[*tagged], 5)
	for i := range wrappers {
		wrappers[i] = NewWrapperWithFitness[*tagged](&tagged{Value: 3.0}, 3.0)
	}
	p := FromWrappers(wrappers, cfg)

	idx, err := p.DiversityIndex()
	if err != nil {
		t.Fatalf("DiversityIndex: %v", err)
	}
	if idx != 1.0 {
		t.Fatalf("expected diversity index 1.0 for an identical population, got %v", idx)
	}
}

func TestDiversityIndexLowerForVariedPopulation(t *testing.T) {
	cfg := config.Default()
	cfg.MaxPopulationSize = 5
	wrappers := []*ScoredWrapper[*tagged]{
		NewWrapperWithFitness[*tagged](&tagged{Value: 1.0}, 1.0),
		NewWrapperWithFitness[*tagged](&tagged{Value: 2.0}, 2.0),
		NewWrapperWithFitness[*tagged](&tagged{Value: 3.0}, 3.0),
		NewWrapperWithFitness[*tagged](&tagged{Value: 4.0}, 4.0),
		NewWrapperWithFitness[*tagged](&tagged{Value: 5.0}, 5.0),
	}
	identical := []*ScoredWrapper[*tagged]{
		NewWrapperWithFitness[*tagged](&tagged{Value: 1.0}, 1.0),
		NewWrapperWithFitness[*tagged](&tagged{Value: 1.0}, 1.0),
		NewWrapperWithFitness[*tagged](&tagged{Value: 1.0}, 1.0),
		NewWrapperWithFitness[*tagged](&tagged{Value: 1.0}, 1.0),
		NewWrapperWithFitness[*tagged](&tagged{Value: 1.0}, 1.0),
	}

	varied := FromWrappers(wrappers, cfg)
	same := FromWrappers(identical, cfg)

	variedIdx, err := varied.DiversityIndex()
	if err != nil {
		t.Fatalf("DiversityIndex: %v", err)
	}
	sameIdx, err := same.DiversityIndex()
	if err != nil {
		t.Fatalf("DiversityIndex: %v", err)
	}

	if variedIdx >= sameIdx {
		t.Fatalf("expected a varied population's diversity index (%v) to be lower than an identical one's (%v)", variedIdx, sameIdx)
	}
}

func TestDiversityIndexDefinedForTrivialPopulation(t *testing.T) {
	cfg := config.Default()
	cfg.MaxPopulationSize = 1
	wrappers := []*ScoredWrapper[*tagged]{
		NewWrapperWithFitness[*tagged](&tagged{Value: 1.0}, 1.0),
	}
	p := FromWrappers(wrappers, cfg)

	idx, err := p.DiversityIndex()
	if err != nil {
		t.Fatalf("DiversityIndex: %v", err)
	}
	if idx != 1.0 {
		t.Fatalf("expected diversity index 1.0 for a single-member population, got %v", idx)
	}
}
