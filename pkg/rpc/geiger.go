// Package rpc defines the geiger.v1.GeigerService gRPC contract.
//
// Messages are protobuf well-known types: requests and responses are
// google.protobuf.Struct documents, except for empty requests and the
// binary export payload.
package rpc

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

// ServiceName is the fully-qualified gRPC service name.
const ServiceName = "geiger.v1.GeigerService"

// FullMethod returns the "/service/method" name gRPC uses for method.
func FullMethod(method string) string {
	return "/" + ServiceName + "/" + method
}

// GeigerServiceServer is the server API for GeigerService.
type GeigerServiceServer interface {
	GetLatestReading(context.Context, *emptypb.Empty) (*structpb.Struct, error)
	GetHistory(context.Context, *structpb.Struct) (*structpb.Struct, error)
	IngestReadings(context.Context, *structpb.Struct) (*structpb.Struct, error)
	GetAnalytics(context.Context, *structpb.Struct) (*structpb.Struct, error)
	GetPollerDiagnostics(context.Context, *emptypb.Empty) (*structpb.Struct, error)
	PollOnce(context.Context, *emptypb.Empty) (*structpb.Struct, error)
	StartPoller(context.Context, *emptypb.Empty) (*structpb.Struct, error)
	StopPoller(context.Context, *emptypb.Empty) (*structpb.Struct, error)
	ExportReadings(context.Context, *structpb.Struct) (*wrapperspb.BytesValue, error)
	ListSerialPorts(context.Context, *emptypb.Empty) (*structpb.Struct, error)
}

// UnimplementedGeigerServiceServer returns Unimplemented for every method.
// Embed it to stay forward compatible.
type UnimplementedGeigerServiceServer struct{}

func (UnimplementedGeigerServiceServer) GetLatestReading(context.Context, *emptypb.Empty) (*structpb.Struct, error) {
	return nil, status.Error(codes.Unimplemented, "method GetLatestReading not implemented")
}
func (UnimplementedGeigerServiceServer) GetHistory(context.Context, *structpb.Struct) (*structpb.Struct, error) {
	return nil, status.Error(codes.Unimplemented, "method GetHistory not implemented")
}
func (UnimplementedGeigerServiceServer) IngestReadings(context.Context, *structpb.Struct) (*structpb.Struct, error) {
	return nil, status.Error(codes.Unimplemented, "method IngestReadings not implemented")
}
func (UnimplementedGeigerServiceServer) GetAnalytics(context.Context, *structpb.Struct) (*structpb.Struct, error) {
	return nil, status.Error(codes.Unimplemented, "method GetAnalytics not implemented")
}
func (UnimplementedGeigerServiceServer) GetPollerDiagnostics(context.Context, *emptypb.Empty) (*structpb.Struct, error) {
	return nil, status.Error(codes.Unimplemented, "method GetPollerDiagnostics not implemented")
}
func (UnimplementedGeigerServiceServer) PollOnce(context.Context, *emptypb.Empty) (*structpb.Struct, error) {
	return nil, status.Error(codes.Unimplemented, "method PollOnce not implemented")
}
func (UnimplementedGeigerServiceServer) StartPoller(context.Context, *emptypb.Empty) (*structpb.Struct, error) {
	return nil, status.Error(codes.Unimplemented, "method StartPoller not implemented")
}
func (UnimplementedGeigerServiceServer) StopPoller(context.Context, *emptypb.Empty) (*structpb.Struct, error) {
	return nil, status.Error(codes.Unimplemented, "method StopPoller not implemented")
}
func (UnimplementedGeigerServiceServer) ExportReadings(context.Context, *structpb.Struct) (*wrapperspb.BytesValue, error) {
	return nil, status.Error(codes.Unimplemented, "method ExportReadings not implemented")
}
func (UnimplementedGeigerServiceServer) ListSerialPorts(context.Context, *emptypb.Empty) (*structpb.Struct, error) {
	return nil, status.Error(codes.Unimplemented, "method ListSerialPorts not implemented")
}

// unary builds a method descriptor that decodes Req and dispatches to call.
func unary[Req any, Resp any](name string, call func(GeigerServiceServer, context.Context, *Req) (Resp, error)) grpc.MethodDesc {
	fullMethod := FullMethod(name)

	return grpc.MethodDesc{
		MethodName: name,
		Handler: func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
			in := new(Req)
			if err := dec(in); err != nil {
				return nil, err
			}
			s := srv.(GeigerServiceServer)
			if interceptor == nil {
				return call(s, ctx, in)
			}
			info := &grpc.UnaryServerInfo{Server: srv, FullMethod: fullMethod}
			return interceptor(ctx, in, info, func(ctx context.Context, req any) (any, error) {
				return call(s, ctx, req.(*Req))
			})
		},
	}
}

// ServiceDesc describes GeigerService for grpc.Server.RegisterService.
var ServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*GeigerServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		unary("GetLatestReading", GeigerServiceServer.GetLatestReading),
		unary("GetHistory", GeigerServiceServer.GetHistory),
		unary("IngestReadings", GeigerServiceServer.IngestReadings),
		unary("GetAnalytics", GeigerServiceServer.GetAnalytics),
		unary("GetPollerDiagnostics", GeigerServiceServer.GetPollerDiagnostics),
		unary("PollOnce", GeigerServiceServer.PollOnce),
		unary("StartPoller", GeigerServiceServer.StartPoller),
		unary("StopPoller", GeigerServiceServer.StopPoller),
		unary("ExportReadings", GeigerServiceServer.ExportReadings),
		unary("ListSerialPorts", GeigerServiceServer.ListSerialPorts),
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "geiger/v1/geiger.proto",
}

// RegisterGeigerServiceServer registers srv on s.
func RegisterGeigerServiceServer(s grpc.ServiceRegistrar, srv GeigerServiceServer) {
	s.RegisterService(&ServiceDesc, srv)
}
