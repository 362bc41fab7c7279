package transport

import (
	"context"

	"github.com/evoswarm/evoswarm/wire"
	"google.golang.org/grpc"
)

// Exchanger is implemented by the coordinator: the single server-side
// operation the wire protocol exposes.
type Exchanger interface {
	Exchange(ctx context.Context, req *wire.ResultMessage) (*wire.SeedMessage, error)
}

// ServiceName is the fully-qualified name used in the hand-written
// ServiceDesc, standing in for what protoc would normally derive from
// a .proto package/service declaration.
const ServiceName = "evoswarm.v1.Coordinator"

// ServiceDesc is the hand-written grpc.ServiceDesc for the Coordinator
// service. It is registered with grpc.NewServer via
// RegisterCoordinatorServer, mirroring what a generated *_grpc.pb.go
// file would provide, without running protoc.
var ServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*Exchanger)(nil),
	Methods: []grpc.MethodDesc{
		{
			MethodName: "Exchange",
			Handler:    exchangeHandler,
		},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "evoswarm/transport/service.go",
}

func exchangeHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(wire.ResultMessage)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(Exchanger).Exchange(ctx, in)
	}
	info := &grpc.UnaryServerInfo{
		Server:     srv,
		FullMethod: "/" + ServiceName + "/Exchange",
	}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(Exchanger).Exchange(ctx, req.(*wire.ResultMessage))
	}
	return interceptor(ctx, in, info, handler)
}

// RegisterCoordinatorServer registers srv's Exchange method against s
// using the hand-written ServiceDesc above.
func RegisterCoordinatorServer(s grpc.ServiceRegistrar, srv Exchanger) {
	s.RegisterService(&ServiceDesc, srv)
}

// CoordinatorClient is the hand-written client stub for the single
// Exchange RPC, selecting the gob content-subtype registered in
// codec.go.
type CoordinatorClient struct {
	cc *grpc.ClientConn
}

// NewCoordinatorClient wraps an established connection.
func NewCoordinatorClient(cc *grpc.ClientConn) *CoordinatorClient {
	return &CoordinatorClient{cc: cc}
}

// Exchange issues the single unary RPC that carries the whole wire
// protocol: a Result in, a Seed out.
func (c *CoordinatorClient) Exchange(ctx context.Context, in *wire.ResultMessage) (*wire.SeedMessage, error) {
	out := new(wire.SeedMessage)
	err := c.cc.Invoke(ctx, "/"+ServiceName+"/Exchange", in, out, grpc.CallContentSubtype(gobCodecName))
	if err != nil {
		return nil, err
	}
	return out, nil
}
