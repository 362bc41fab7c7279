// Package wire defines the two application messages that travel over
// the transport: Seed (server to worker) and Result (worker to
// server). Both carry a codec.Record, encoded in the configured file
// format, as an opaque payload, so the gRPC layer never needs to know
// the concrete individual type.
package wire

// SeedMessage is sent server -> worker in response to an Exchange
// call. Finished and Payload together express either a "job done"
// control status or an "unfinished, here's your next seed" status as
// a single structured field.
type SeedMessage struct {
	Finished bool
	Payload  []byte
}

// ResultMessage is sent worker -> server as the single Exchange
// request, carrying the worker's current best wrapper.
type ResultMessage struct {
	WorkerID string
	Payload  []byte
}
