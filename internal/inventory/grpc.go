package inventory

import (
	"context"

	"github.com/ariefcatur/go-order-saga/internal/orders"
	"go.opentelemetry.io/contrib/instrumentation/google.golang.org/grpc/otelgrpc"
	"google.golang.org/grpc"
)

const serviceName = "inventory.InventoryService"

const (
	MethodCheckAvailability = "CheckAvailability"
	MethodReserveItems      = "ReserveItems"
	MethodReleaseItems      = "ReleaseItems"
	MethodRestockItems      = "RestockItems"
)

// ItemsRequest maps product id to requested quantity.
type ItemsRequest struct {
	Items map[string]int `json:"items"`
}

type AvailabilityResponse struct {
	Availability map[string]bool `json:"availability"`
}

type InventoryServer interface {
	CheckAvailability(ctx context.Context, req *ItemsRequest) (*AvailabilityResponse, error)
	ReserveItems(ctx context.Context, req *ItemsRequest) (*orders.ReservationResult, error)
	ReleaseItems(ctx context.Context, req *ItemsRequest) (*orders.ReleaseResult, error)
	RestockItems(ctx context.Context, req *ItemsRequest) (*orders.RestockResult, error)
}

func fullMethod(method string) string {
	return "/" + serviceName + "/" + method
}

var ServiceDesc = grpc.ServiceDesc{
	ServiceName: serviceName,
	HandlerType: (*InventoryServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: MethodCheckAvailability, Handler: unary(MethodCheckAvailability, InventoryServer.CheckAvailability)},
		{MethodName: MethodReserveItems, Handler: unary(MethodReserveItems, InventoryServer.ReserveItems)},
		{MethodName: MethodReleaseItems, Handler: unary(MethodReleaseItems, InventoryServer.ReleaseItems)},
		{MethodName: MethodRestockItems, Handler: unary(MethodRestockItems, InventoryServer.RestockItems)},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "inventory.proto",
}

func RegisterInventoryServer(s grpc.ServiceRegistrar, srv InventoryServer) {
	s.RegisterService(&ServiceDesc, srv)
}

// NewServer returns a traced gRPC server with the inventory service registered.
func NewServer(srv InventoryServer, opts ...grpc.ServerOption) *grpc.Server {
	opts = append([]grpc.ServerOption{grpc.StatsHandler(otelgrpc.NewServerHandler())}, opts...)
	s := grpc.NewServer(opts...)
	RegisterInventoryServer(s, srv)
	return s
}

func unary[Resp any](method string, call func(InventoryServer, context.Context, *ItemsRequest) (Resp, error)) grpc.MethodHandler {
	return func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
		in := new(ItemsRequest)
		if err := dec(in); err != nil {
			return nil, err
		}
		if interceptor == nil {
			return call(srv.(InventoryServer), ctx, in)
		}
		info := &grpc.UnaryServerInfo{Server: srv, FullMethod: fullMethod(method)}
		handler := func(ctx context.Context, req any) (any, error) {
			return call(srv.(InventoryServer), ctx, req.(*ItemsRequest))
		}
		return interceptor(ctx, in, info, handler)
	}
}
