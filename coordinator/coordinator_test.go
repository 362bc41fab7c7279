package coordinator

import (
	"context"
	"math"
	"os"
	"testing"

	"github.com/evoswarm/evoswarm/codec"
	"github.com/evoswarm/evoswarm/config"
	"github.com/evoswarm/evoswarm/wire"
)

type num struct {
	V float64
}

func (n *num) Mutate(peer *num) {
	if n.V > peer.V {
		n.V -= 0.5
	} else {
		n.V += 0.5
	}
}

func (n *num) Fitness() float64 { return math.Abs(n.V) }
func (n *num) Clone() *num      { return &num{V: n.V} }

func testConfig() config.Config {
	cfg := config.Default()
	cfg.MaxPopulationSize = 6
	cfg.FileFormat = config.JSON
	cfg.FitnessLimit = -1 // never "done" on its own in these tests
	return cfg
}

func TestPrepareSeedRepliesFinishedWhenDone(t *testing.T) {
	cfg := testConfig()
	cfg.FitnessLimit = 1000 // trivially satisfied by any starting fitness
	c := New[*num](&num{V: 5}, cfg, t.TempDir(), nil)

	resp, err := c.Exchange(context.Background(), &wire.ResultMessage{})
	if err != nil {
		t.Fatalf("Exchange: %v", err)
	}
	if !resp.Finished {
		t.Fatalf("expected Finished=true once fitness_limit is trivially satisfied")
	}
}

func TestExchangeMergesResultAndReturnsSeed(t *testing.T) {
	cfg := testConfig()
	c := New[*num](&num{V: 5}, cfg, t.TempDir(), nil)

	resp, err := c.Exchange(context.Background(), &wire.ResultMessage{WorkerID: "w0"})
	if err != nil {
		t.Fatalf("Exchange: %v", err)
	}
	if resp.Finished {
		t.Fatalf("did not expect Finished yet")
	}
	if len(resp.Payload) == 0 {
		t.Fatalf("expected a non-empty seed payload")
	}

	var seedRec codec.Record[*num]
	if err := codec.DecodeRecord(cfg.FileFormat, resp.Payload, &seedRec); err != nil {
		t.Fatalf("decode seed: %v", err)
	}

	// Merge a genuinely improved result.
	resultRec := codec.Record[*num]{Individual: &num{V: 0}, Fitness: 0}
	payload, err := codec.EncodeRecord(cfg.FileFormat, resultRec)
	if err != nil {
		t.Fatalf("encode result: %v", err)
	}

	if _, err := c.Exchange(context.Background(), &wire.ResultMessage{WorkerID: "w1", Payload: payload}); err != nil {
		t.Fatalf("Exchange (merge): %v", err)
	}

	served, merged, decodeErrs := c.Stats()
	if served != 2 {
		t.Errorf("requestsServed = %d, want 2", served)
	}
	if merged != 1 {
		t.Errorf("resultsMerged = %d, want 1", merged)
	}
	if decodeErrs != 0 {
		t.Errorf("decodeErrors = %d, want 0", decodeErrs)
	}

	score := c.NodeScore()
	if score["w1"] != 1 {
		t.Errorf("NodeScore()[w1] = %d, want 1 (w1 improved on the best)", score["w1"])
	}
}

func TestExchangeDropsMalformedResultPayload(t *testing.T) {
	cfg := testConfig()
	c := New[*num](&num{V: 5}, cfg, t.TempDir(), nil)

	// Truncated/corrupt JSON: decodes to an error, not a type mismatch,
	// since the generic Record[*num] makes type mismatches unrepresentable.
	resp, err := c.Exchange(context.Background(), &wire.ResultMessage{WorkerID: "w0", Payload: []byte("{not-json")})
	if err != nil {
		t.Fatalf("Exchange: %v", err)
	}
	if resp.Finished {
		t.Fatalf("did not expect Finished yet")
	}

	served, merged, decodeErrs := c.Stats()
	if served != 1 {
		t.Errorf("requestsServed = %d, want 1", served)
	}
	if merged != 0 {
		t.Errorf("resultsMerged = %d, want 0 (malformed payload should be dropped)", merged)
	}
	if decodeErrs != 1 {
		t.Errorf("decodeErrors = %d, want 1", decodeErrs)
	}
}

func TestSavePopulationAndReadPopulationRoundTrip(t *testing.T) {
	cfg := testConfig()
	dir := t.TempDir()
	c := New[*num](&num{V: 3}, cfg, dir, nil)

	if err := c.SavePopulation(); err != nil {
		t.Fatalf("SavePopulation: %v", err)
	}

	path := dir + "/" + cfg.ExportFileName
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("expected export file to exist: %v", err)
	}

	c2 := New[*num](&num{V: 3}, cfg, dir, nil)
	if err := c2.ReadPopulation(path); err != nil {
		t.Fatalf("ReadPopulation: %v", err)
	}
}

func TestSaveNewBestIndividualWritesIncrementalFiles(t *testing.T) {
	cfg := testConfig()
	cfg.SaveNewBestIndividual = true
	cfg.MaxPopulationSize = 3
	dir := t.TempDir()
	c := New[*num](&num{V: 10}, cfg, dir, nil)

	resultRec := codec.Record[*num]{Individual: &num{V: 0}, Fitness: 0}
	payload, err := codec.EncodeRecord(cfg.FileFormat, resultRec)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}

	if _, err := c.Exchange(context.Background(), &wire.ResultMessage{WorkerID: "w0", Payload: payload}); err != nil {
		t.Fatalf("Exchange: %v", err)
	}

	if _, err := os.Stat(dir + "/individual_0.json"); err != nil {
		t.Fatalf("expected individual_0.json to exist: %v", err)
	}
}
