package population

import (
	"crypto/rand"
	"encoding/binary"
	"math"
	"sort"
	"sync"

	mrand "math/rand"

	"github.com/evoswarm/evoswarm/config"
	"github.com/evoswarm/evoswarm/individual"
)

// Population is a bounded multiset of scored wrappers with a
// mutation/selection regime. It is never accessed concurrently by
// more than one goroutine at a time: the coordinator holds its own
// mutex around calls into it, and a node worker drives its population
// from a single goroutine.
type Population[T individual.Individual[T]] struct {
	members []*ScoredWrapper[T]
	cfg     config.Config

	newBestFitness float64
	resetFitness   float64
	resetCounter   uint64

	rng   *mrand.Rand
	rngMu sync.Mutex
}

// New builds a population of cfg.MaxPopulationSize distinct scored
// wrappers by cloning seed and applying one mutation peered against
// the seed itself, then scoring and sorting ascending.
func New[T individual.Individual[T]](seed T, cfg config.Config) *Population[T] {
	p := &Population[T]{
		cfg: cfg,
		rng: mrand.New(mrand.NewSource(entropySeed())),
	}

	seedWrapper := NewWrapper(seed)
	seedWrapper.Score()

	members := make([]*ScoredWrapper[T], 0, cfg.MaxPopulationSize)
	for i := 0; i < cfg.MaxPopulationSize; i++ {
		w := NewWrapper(seed.Clone())
		w.Mutate(seedWrapper)
		w.Score()
		members = append(members, w)
	}
	p.members = members
	p.sort()

	p.newBestFitness = p.members[0].Fitness()
	p.resetFitness = p.newBestFitness
	return p
}

// FromWrappers builds a population directly from an existing slice of
// wrappers (used when restoring a persisted export), sorting it and
// initializing the stagnation detector from the current best.
func FromWrappers[T individual.Individual[T]](wrappers []*ScoredWrapper[T], cfg config.Config) *Population[T] {
	p := &Population[T]{
		cfg:     cfg,
		members: wrappers,
		rng:     mrand.New(mrand.NewSource(entropySeed())),
	}
	p.sort()
	p.newBestFitness = p.members[0].Fitness()
	p.resetFitness = p.newBestFitness
	return p
}

// entropySeed draws a 64-bit seed from crypto/rand, matching the
// "reseeded from entropy" requirement without exposing a global RNG.
func entropySeed() int64 {
	var buf [8]byte
	if _, err := rand.Read(buf[:]); err != nil {
		// crypto/rand failing is effectively unrecoverable on any real
		// platform; fall back to a fixed seed rather than panic, since
		// callers just want *a* usable RNG, not a perfectly unique one.
		return 0x5eed
	}
	return int64(binary.LittleEndian.Uint64(buf[:]))
}

// Reseed reseeds the population's RNG from entropy. Called by the
// worker on receiving a seed, and once by the server at startup.
func (p *Population[T]) Reseed() {
	p.rngMu.Lock()
	defer p.rngMu.Unlock()
	p.rng = mrand.New(mrand.NewSource(entropySeed()))
}

func (p *Population[T]) rndFloat64() float64 {
	p.rngMu.Lock()
	defer p.rngMu.Unlock()
	return p.rng.Float64()
}

func (p *Population[T]) rndIntn(n int) int {
	p.rngMu.Lock()
	defer p.rngMu.Unlock()
	return p.rng.Intn(n)
}

// Len returns the current population size.
func (p *Population[T]) Len() int {
	return len(p.members)
}

// Best returns the minimum-fitness wrapper (index 0 after sort/delete).
func (p *Population[T]) Best() *ScoredWrapper[T] {
	return p.members[0]
}

// NewBestFitness returns the minimum fitness ever observed by this
// population; it only ever moves down.
func (p *Population[T]) NewBestFitness() float64 {
	return p.newBestFitness
}

// IsJobDone reports whether the best fitness has reached the
// configured target.
func (p *Population[T]) IsJobDone() bool {
	return p.members[0].Fitness() < p.cfg.FitnessLimit
}

// peerIndex picks a uniform random index other than source, from a
// population of the given length. If length is 1, source is returned
// (it is its own peer).
func (p *Population[T]) peerIndex(length, source int) int {
	if length <= 1 {
		return source
	}
	for {
		idx := p.rndIntn(length)
		if idx != source {
			return idx
		}
	}
}

// MutateRound runs one mutate pass using the configured strategy.
func (p *Population[T]) MutateRound() {
	switch p.cfg.MutateMethod {
	case config.Simple:
		p.mutateSimple()
	case config.OnlyBest:
		p.mutateOnlyBest()
	case config.LowMem:
		p.mutateLowMem()
	}
}

// mutateSimple clones every wrapper, applies num_of_mutations peered
// mutation steps to each clone, scores it, and appends it. A fresh
// peer is drawn for every step from the pre-round snapshot length, and
// clones are only appended after the loop, so they never become
// eligible peers within the same round.
func (p *Population[T]) mutateSimple() {
	originalLen := len(p.members)
	appended := make([]*ScoredWrapper[T], 0, originalLen)

	for i := 0; i < originalLen; i++ {
		clone := p.members[i].Clone()
		for step := uint64(0); step < p.cfg.NumOfMutations; step++ {
			peer := p.members[p.peerIndex(originalLen, i)]
			clone.Mutate(peer)
		}
		clone.Score()
		appended = append(appended, clone)
	}
	p.members = append(p.members, appended...)
}

// mutateOnlyBest mutates a working clone of each source one mutation
// step at a time, appending the clone only when strictly improved.
// Peer selection is resolved once per outer iteration against the
// pre-round snapshot, so candidates appended mid-round are never
// themselves eligible as a peer source within that same round.
func (p *Population[T]) mutateOnlyBest() {
	originalLen := len(p.members)
	var appended []*ScoredWrapper[T]

	for i := 0; i < originalLen; i++ {
		source := p.members[i]
		currentFitness := source.Fitness()
		clone := source.Clone()
		peer := p.members[p.peerIndex(originalLen, i)]

		for step := uint64(0); step < p.cfg.NumOfMutations; step++ {
			clone.Mutate(peer)
			clone.Score()
			if clone.Fitness() < currentFitness {
				appended = append(appended, clone.Clone())
			}
		}
	}
	p.members = append(p.members, appended...)
}

// mutateLowMem picks one random source, clones it, applies
// num_of_mutations peered mutation steps, scores, and appends. At most
// one new candidate per round.
func (p *Population[T]) mutateLowMem() {
	originalLen := len(p.members)
	source := p.rndIntn(originalLen)
	clone := p.members[source].Clone()

	for step := uint64(0); step < p.cfg.NumOfMutations; step++ {
		peer := p.members[p.peerIndex(originalLen, source)]
		clone.Mutate(peer)
	}
	clone.Score()
	p.members = append(p.members, clone)
}

// sort stable-sorts members ascending by fitness, the hot-path
// ordering most other operations assume.
func (p *Population[T]) sort() {
	sort.SliceStable(p.members, func(i, j int) bool {
		return Less(p.members[i], p.members[j])
	})
}

// Delete applies the configured delete strategy, restoring the
// max_population_size bound.
func (p *Population[T]) Delete() {
	switch p.cfg.DeleteMethod {
	case config.SortKeep:
		p.deleteSortKeep()
	case config.SortUnique:
		p.deleteSortUnique()
	case config.RandomBest3:
		p.deleteRandomBest3()
	}
	p.applyAuxiliaryOrdering()
	if best := p.members[0].Fitness(); best < p.newBestFitness {
		p.newBestFitness = best
	}
}

func (p *Population[T]) deleteSortKeep() {
	p.sort()
	p.truncate()
}

func (p *Population[T]) deleteSortUnique() {
	p.sort()
	p.dedupAdjacentFrom(0)
	p.truncate()
}

// deleteRandomBest3 sorts, removes adjacent duplicates beyond the
// protected top three, then repeatedly swap-removes a uniformly random
// index in [3, len) until the size invariant holds. Deduping is
// skipped over the first three positions: three wrappers tied for the
// minimum fitness must all survive, the same way RandomBest3 guarantees
// the top three survive under the swap-remove loop below, so a tied
// leading group can't be collapsed to one the way SortUnique does.
func (p *Population[T]) deleteRandomBest3() {
	p.sort()
	p.dedupAdjacentFrom(3)

	for len(p.members) > p.cfg.MaxPopulationSize && len(p.members) > 3 {
		idx := 3 + p.rndIntn(len(p.members)-3)
		last := len(p.members) - 1
		p.members[idx] = p.members[last]
		p.members = p.members[:last]
	}
	p.truncate()
}

// dedupAdjacentFrom removes adjacent same-fitness duplicates starting
// at index start, leaving members[:start] untouched.
func (p *Population[T]) dedupAdjacentFrom(start int) {
	if start >= len(p.members) {
		return
	}
	out := p.members[:start+1]
	for _, w := range p.members[start+1:] {
		if !sameFitness(out[len(out)-1], w) {
			out = append(out, w)
		}
	}
	p.members = out
}

func (p *Population[T]) truncate() {
	if len(p.members) > p.cfg.MaxPopulationSize {
		p.members = p.members[:p.cfg.MaxPopulationSize]
	}
	if len(p.members) < 1 {
		panic("evoswarm: population collapsed to zero members")
	}
}

// applyAuxiliaryOrdering re-orders members whose fitness differs by
// less than additional_fitness_threshold, breaking ties by auxiliary
// fitness ascending. It is a no-op when the threshold is unset.
// Applied once per round so readers of members[0] (Best, IsJobDone,
// CheckReset) observe the auxiliary-adjusted best.
func (p *Population[T]) applyAuxiliaryOrdering() {
	if p.cfg.AdditionalFitnessThreshold == nil {
		return
	}
	threshold := *p.cfg.AdditionalFitnessThreshold
	sort.SliceStable(p.members, func(i, j int) bool {
		a, b := p.members[i], p.members[j]
		if math.Abs(a.Fitness()-b.Fitness()) < threshold {
			return a.AuxiliaryFitness() < b.AuxiliaryFitness()
		}
		return a.Fitness() < b.Fitness()
	})
}

// CheckReset implements the stagnation detector: when handed a new
// candidate from outside (a seed or a result), it decides whether to
// accept the candidate, merely note the lack of progress, or force a
// full random reset.
func (p *Population[T]) CheckReset(candidate *ScoredWrapper[T]) {
	currentBest := p.members[0].Fitness()

	if currentBest == p.resetFitness {
		p.resetCounter++
		if p.cfg.ResetLimit > 0 && p.resetCounter >= p.cfg.MaxReset() {
			p.randomReset()
			p.resetCounter = 0
			p.resetFitness = p.members[0].Fitness()
			return
		}
		p.members = append(p.members, candidate)
		return
	}

	p.resetFitness = currentBest
	p.resetCounter = 0
	if candidate.Fitness() > currentBest {
		p.members = append(p.members, candidate)
	}
}

// randomReset calls RandomReset (if implemented) on every wrapper and
// rescores, escaping a local minimum.
func (p *Population[T]) randomReset() {
	for _, w := range p.members {
		if rr, ok := individual.HasRandomReset(w.Value); ok {
			rr.RandomReset()
			w.Score()
		}
	}
	p.sort()
}

// Members returns the current member slice, ascending by fitness if
// the caller has most recently called Delete. Callers must not mutate
// the returned slice's backing array directly; it is exposed for
// iteration (persistence, diagnostics) only.
func (p *Population[T]) Members() []*ScoredWrapper[T] {
	return p.members
}

// Add appends a wrapper directly without going through CheckReset, used
// by the coordinator when it merges a worker's result or a loaded
// individual into its reference population.
func (p *Population[T]) Add(w *ScoredWrapper[T]) {
	p.members = append(p.members, w)
}

// RandomMember returns a uniformly random wrapper, used by the
// coordinator's PrepareSeed.
func (p *Population[T]) RandomMember() *ScoredWrapper[T] {
	return p.members[p.rndIntn(len(p.members))]
}
