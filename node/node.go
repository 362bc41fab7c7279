// Package node implements the worker side of the coordination
// protocol: it owns one Population and runs the per-round loop,
// exchanging one seed/result pair with the server per iteration of its
// outer loop.
package node

import (
	"context"

	"github.com/evoswarm/evoswarm/codec"
	"github.com/evoswarm/evoswarm/config"
	"github.com/evoswarm/evoswarm/evoerr"
	"github.com/evoswarm/evoswarm/individual"
	"github.com/evoswarm/evoswarm/logging"
	"github.com/evoswarm/evoswarm/population"
	"github.com/evoswarm/evoswarm/wire"
)

// Exchanger is the client-side capability node needs from the
// transport: one round trip of Result-in, Seed-out.
// transport.CoordinatorClient satisfies this without node needing to
// import grpc directly.
type Exchanger interface {
	Exchange(ctx context.Context, req *wire.ResultMessage) (*wire.SeedMessage, error)
}

// Worker owns a local population and drives the Idle -> AwaitingSeed
// -> Working -> Reporting -> Idle loop.
type Worker[T individual.Individual[T]] struct {
	pop      *population.Population[T]
	cfg      config.Config
	log      *logging.Logger
	client   Exchanger
	workerID string

	lastBestFitness float64

	// OnRound, if set, is called once per inner mutate/delete round
	// (the unit ProgressReporter ticks against), letting the caller
	// drive a progress indicator without node depending on it.
	OnRound func()
}

// New builds a Worker with its own local population seeded from seed.
func New[T individual.Individual[T]](seed T, cfg config.Config, client Exchanger, workerID string, log *logging.Logger) *Worker[T] {
	pop := population.New[T](seed, cfg)
	return &Worker[T]{
		pop:             pop,
		cfg:             cfg,
		log:             log,
		client:          client,
		workerID:        workerID,
		lastBestFitness: pop.NewBestFitness(),
	}
}

// Run repeatedly performs one exchange with the server until it
// observes a Finished status or ctx is canceled, returning nil on
// normal completion. A failed exchange or a canceled ctx yields a
// TransportError; a seed or result that cannot be decoded or encoded
// yields a SerializationError.
func (w *Worker[T]) Run(ctx context.Context) error {
	var lastResultPayload []byte

	for {
		select {
		case <-ctx.Done():
			return evoerr.Transport(ctx.Err())
		default:
		}

		resp, err := w.client.Exchange(ctx, &wire.ResultMessage{WorkerID: w.workerID, Payload: lastResultPayload})
		if err != nil {
			return evoerr.Transport(err)
		}
		if resp.Finished {
			if w.log != nil {
				w.log.Infof("worker %s received Finished", w.workerID)
			}
			return nil
		}

		best, err := w.processRound(ctx, resp.Payload)
		if err != nil {
			return err
		}

		rec := codec.Record[T]{Individual: best.Value, Fitness: best.Fitness()}
		payload, err := codec.EncodeRecord(w.cfg.FileFormat, rec)
		if err != nil {
			return evoerr.Serialization(err)
		}
		lastResultPayload = payload
	}
}

// processRound runs one exchange's worth of local search: reseed, merge
// the incoming seed via CheckReset, run bounded rounds, and compute the
// new best.
func (w *Worker[T]) processRound(ctx context.Context, seedPayload []byte) (*population.ScoredWrapper[T], error) {
	w.pop.Reseed()

	var rec codec.Record[T]
	if err := codec.DecodeRecord(w.cfg.FileFormat, seedPayload, &rec); err != nil {
		return nil, err
	}
	seed := population.NewWrapperWithFitness[T](rec.Individual, rec.Fitness)
	w.pop.CheckReset(seed)

	for i := uint64(0); i < w.cfg.NumOfIterations; i++ {
		select {
		case <-ctx.Done():
			return nil, evoerr.Transport(ctx.Err())
		default:
		}

		w.pop.MutateRound()
		w.pop.Delete()

		if w.OnRound != nil {
			w.OnRound()
		}

		if w.pop.IsJobDone() {
			break
		}
	}

	best := w.pop.Best()
	if best.Fitness() < w.lastBestFitness {
		w.lastBestFitness = best.Fitness()
		if nb, ok := individual.HasOnNewBest(best.Value); ok {
			nb.OnNewBest()
		}
	}

	if w.log != nil {
		if idx, err := w.pop.DiversityIndex(); err == nil {
			w.log.Debugf("worker %s diversity_index=%.4f", w.workerID, idx)
		}
	}

	return best, nil
}
