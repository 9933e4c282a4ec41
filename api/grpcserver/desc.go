package grpcserver

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

const ServiceName = "labelreg.v1.Registry"

// RegistryServer is the server API for labelreg.v1.Registry.
type RegistryServer interface {
	SetLabel(context.Context, *wrapperspb.BytesValue) (*emptypb.Empty, error)
	ClearLabel(context.Context, *emptypb.Empty) (*wrapperspb.UInt64Value, error)
	ForceSetLabel(context.Context, *structpb.Struct) (*emptypb.Empty, error)
	ForceClearLabel(context.Context, *wrapperspb.StringValue) (*wrapperspb.UInt64Value, error)
	Endow(context.Context, *structpb.Struct) (*emptypb.Empty, error)
	Lookup(context.Context, *wrapperspb.StringValue) (*structpb.Struct, error)
	Balance(context.Context, *wrapperspb.StringValue) (*structpb.Struct, error)
}

var RegistryServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*RegistryServer)(nil),
	Methods: []grpc.MethodDesc{
		unary("SetLabel", RegistryServer.SetLabel),
		unary("ClearLabel", RegistryServer.ClearLabel),
		unary("ForceSetLabel", RegistryServer.ForceSetLabel),
		unary("ForceClearLabel", RegistryServer.ForceClearLabel),
		unary("Endow", RegistryServer.Endow),
		unary("Lookup", RegistryServer.Lookup),
		unary("Balance", RegistryServer.Balance),
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "labelreg/v1/registry.proto",
}

func fullMethod(name string) string {
	return "/" + ServiceName + "/" + name
}

// unary builds the method descriptor for call. Req is always a pointer
// to a protobuf message.
func unary[Req any, PReq interface {
	*Req
}, Resp any](
	name string,
	call func(RegistryServer, context.Context, PReq) (Resp, error),
) grpc.MethodDesc {
	return grpc.MethodDesc{
		MethodName: name,
		Handler: func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
			in := PReq(new(Req))
			if err := dec(in); err != nil {
				return nil, err
			}
			s := srv.(RegistryServer)
			if interceptor == nil {
				return call(s, ctx, in)
			}
			info := &grpc.UnaryServerInfo{Server: srv, FullMethod: fullMethod(name)}
			return interceptor(ctx, in, info, func(ctx context.Context, req any) (any, error) {
				return call(s, ctx, req.(PReq))
			})
		},
	}
}
