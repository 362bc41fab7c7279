// Package coordinator implements the server side of the
// coordination protocol: it owns the reference population,
// dispatches seeds, ingests results, tracks the global best, and
// persists state.
package coordinator

import (
	"context"
	"path/filepath"
	"sync"

	"github.com/evoswarm/evoswarm/codec"
	"github.com/evoswarm/evoswarm/config"
	"github.com/evoswarm/evoswarm/evoerr"
	"github.com/evoswarm/evoswarm/individual"
	"github.com/evoswarm/evoswarm/logging"
	"github.com/evoswarm/evoswarm/population"
	"github.com/evoswarm/evoswarm/wire"
)

// Coordinator owns the server-side reference population and
// implements the single Exchange operation the transport exposes.
// It satisfies transport.Exchanger without importing transport, so
// the core coordination logic has no dependency on gRPC.
type Coordinator[T individual.Individual[T]] struct {
	mu  sync.Mutex
	pop *population.Population[T]
	cfg config.Config
	log *logging.Logger

	outDir         string
	fileCounter    uint64
	nodeScore      map[string]uint64
	nodeRequests   map[string]uint64
	requestsServed uint64
	resultsMerged  uint64
	decodeErrors   uint64

	// OnPersisted, if set, is called every time the coordinator writes
	// population or individual state to disk, letting the caller drive
	// a progress indicator off "population persisted" events without
	// coordinator depending on one.
	OnPersisted func()
}

// New builds a Coordinator seeded by a single initial individual.
func New[T individual.Individual[T]](seed T, cfg config.Config, outDir string, log *logging.Logger) *Coordinator[T] {
	pop := population.New[T](seed, cfg)
	pop.Reseed()
	return &Coordinator[T]{
		pop:          pop,
		cfg:          cfg,
		log:          log,
		outDir:       outDir,
		nodeScore:    make(map[string]uint64),
		nodeRequests: make(map[string]uint64),
	}
}

// SetPopulation replaces the reference population wholesale, used when
// restoring from a previously persisted export file.
func (c *Coordinator[T]) SetPopulation(pop *population.Population[T]) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.pop = pop
}

// IsJobDone reports whether the global best has reached the
// configured target.
func (c *Coordinator[T]) IsJobDone() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.pop.IsJobDone()
}

// ReadPopulation loads a whole population export (as written by
// SavePopulation) from path and replaces the coordinator's reference
// population with it. The file's
// format must match cfg.FileFormat; a mismatch surfaces as a
// SerializationError.
func (c *Coordinator[T]) ReadPopulation(path string) error {
	data, err := codec.ReadFile(path)
	if err != nil {
		return err
	}
	var records []codec.Record[T]
	if err := codec.DecodeRecords(c.cfg.FileFormat, data, &records); err != nil {
		return err
	}
	if len(records) == 0 {
		return evoerr.Serialization(errEmptyPopulationFile)
	}

	wrappers := make([]*population.ScoredWrapper[T], 0, len(records))
	for _, rec := range records {
		wrappers = append(wrappers, population.NewWrapperWithFitness[T](rec.Individual, rec.Fitness))
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.pop = population.FromWrappers(wrappers, c.cfg)
	return nil
}

// ReadIndividual loads a single scored wrapper (as written by
// save_new_best_individual snapshots) from path and adds it to the
// reference population.
func (c *Coordinator[T]) ReadIndividual(path string) error {
	data, err := codec.ReadFile(path)
	if err != nil {
		return err
	}
	var rec codec.Record[T]
	if err := codec.DecodeRecord(c.cfg.FileFormat, data, &rec); err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.pop.Add(population.NewWrapperWithFitness[T](rec.Individual, rec.Fitness))
	return nil
}

// Exchange implements transport.Exchanger: it merges the worker's
// result (if any payload is present) and replies with the next seed,
// or a Finished status if the job is complete. A malformed result
// payload is logged and dropped rather than failing the whole
// coordinator, so one bad worker can't take down the job.
func (c *Coordinator[T]) Exchange(ctx context.Context, req *wire.ResultMessage) (*wire.SeedMessage, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.requestsServed++
	c.nodeRequests[req.WorkerID]++

	if len(req.Payload) > 0 {
		if err := c.mergeResultLocked(req.WorkerID, req.Payload); err != nil {
			c.decodeErrors++
			if c.log != nil {
				c.log.Errorf("dropping malformed result from %s: %v", req.WorkerID, err)
			}
			// The connection and the coordinator both survive a single
			// bad message; we still reply with a seed below.
		}
	}

	return c.prepareSeedLocked()
}

// prepareSeedLocked picks the next seed to hand a worker. Must
// be called with mu held.
func (c *Coordinator[T]) prepareSeedLocked() (*wire.SeedMessage, error) {
	if c.pop.IsJobDone() {
		return &wire.SeedMessage{Finished: true}, nil
	}

	best := c.pop.RandomMember()
	rec := codec.Record[T]{Individual: best.Value, Fitness: best.Fitness()}
	payload, err := codec.EncodeRecord(c.cfg.FileFormat, rec)
	if err != nil {
		return nil, evoerr.Serialization(err)
	}
	return &wire.SeedMessage{Finished: false, Payload: payload}, nil
}

// mergeResultLocked folds a worker's returned result into the reference
// population. Must be called with mu held.
func (c *Coordinator[T]) mergeResultLocked(workerID string, payload []byte) error {
	var rec codec.Record[T]
	if err := codec.DecodeRecord(c.cfg.FileFormat, payload, &rec); err != nil {
		return err
	}

	before := c.pop.NewBestFitness()
	w := population.NewWrapperWithFitness[T](rec.Individual, rec.Fitness)
	c.pop.Add(w)
	c.pop.Delete()
	c.resultsMerged++

	if after := c.pop.NewBestFitness(); after < before {
		best := c.pop.Best()
		if nb, ok := individual.HasOnNewBest(best.Value); ok {
			nb.OnNewBest()
		}
		c.nodeScore[workerID]++

		if c.cfg.SaveNewBestIndividual {
			if err := c.saveBestIndividualLocked(best); err != nil {
				return err
			}
		}
	}
	return nil
}

func (c *Coordinator[T]) saveBestIndividualLocked(best *population.ScoredWrapper[T]) error {
	rec := codec.Record[T]{Individual: best.Value, Fitness: best.Fitness()}
	data, err := codec.EncodeRecord(c.cfg.FileFormat, rec)
	if err != nil {
		return err
	}
	name := codec.IndividualFileName(c.fileCounter, c.cfg.FileFormat)
	if err := codec.WriteFile(filepath.Join(c.outDir, name), data); err != nil {
		return err
	}
	c.fileCounter++
	if c.OnPersisted != nil {
		c.OnPersisted()
	}
	return nil
}

// SavePopulation persists the whole reference population under
// cfg.ExportFileName using the configured format.
func (c *Coordinator[T]) SavePopulation() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.savePopulationLocked()
}

func (c *Coordinator[T]) savePopulationLocked() error {
	members := c.pop.Members()
	records := make([]codec.Record[T], len(members))
	for i, w := range members {
		records[i] = codec.Record[T]{Individual: w.Value, Fitness: w.Fitness()}
	}
	data, err := codec.EncodeRecords(c.cfg.FileFormat, records)
	if err != nil {
		return err
	}
	if err := codec.WriteFile(filepath.Join(c.outDir, c.cfg.ExportFileName), data); err != nil {
		return err
	}

	if c.log != nil {
		if idx, err := c.pop.DiversityIndex(); err == nil {
			c.log.Debugf("population persisted: %d members, diversity_index=%.4f", len(members), idx)
		}
	}
	if c.OnPersisted != nil {
		c.OnPersisted()
	}
	return nil
}

// FinishJob persists the whole population, the terminal action taken
// once IsJobDone() becomes true.
func (c *Coordinator[T]) FinishJob() error {
	return c.SavePopulation()
}

// NodeScore returns a snapshot of the per-worker new-best credit
// counters, keyed by worker identity.
func (c *Coordinator[T]) NodeScore() map[string]uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make(map[string]uint64, len(c.nodeScore))
	for k, v := range c.nodeScore {
		out[k] = v
	}
	return out
}

// Stats returns a snapshot of the coordinator's diagnostic counters;
// these are not part of any invariant, only logging/diagnostics.
func (c *Coordinator[T]) Stats() (requestsServed, resultsMerged, decodeErrors uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.requestsServed, c.resultsMerged, c.decodeErrors
}

// WorkerConfidence returns a two-sided Wilson score confidence
// interval on a worker's new-best delivery rate (credited exchanges
// over total exchanges it has made), a diagnostic over delivery
// quality rather than part of any search invariant.
func (c *Coordinator[T]) WorkerConfidence(workerID string, confidence float64) (lo, hi float64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return WilsonConfidence(c.nodeScore[workerID], c.nodeRequests[workerID], confidence)
}

var errEmptyPopulationFile = emptyPopulationError{}

type emptyPopulationError struct{}

func (emptyPopulationError) Error() string {
	return "population export file decoded to zero records"
}
