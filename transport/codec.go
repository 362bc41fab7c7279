// Package transport wires the Seed/Result exchange onto real
// google.golang.org/grpc machinery without protoc-generated
// stubs: a hand-written grpc.ServiceDesc carries the single unary
// Exchange method, and a custom encoding.Codec lets gob-encoded
// payloads ride over gRPC's connection management, interceptor chain,
// and deadline propagation instead of protobuf.
package transport

import (
	"bytes"
	"encoding/gob"

	"google.golang.org/grpc/encoding"
)

// gobCodecName is the content-subtype a client opts into with
// grpc.CallContentSubtype("gob"); the server accepts whatever
// subtype the client negotiated per RPC.
const gobCodecName = "gob"

// GobCodec implements google.golang.org/grpc/encoding.Codec using
// encoding/gob instead of protobuf. It is registered globally in
// init() so it is available as soon as this package is imported.
type GobCodec struct{}

func (GobCodec) Marshal(v any) ([]byte, error) {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(v); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (GobCodec) Unmarshal(data []byte, v any) error {
	return gob.NewDecoder(bytes.NewReader(data)).Decode(v)
}

func (GobCodec) Name() string {
	return gobCodecName
}

func init() {
	encoding.RegisterCodec(GobCodec{})
}
