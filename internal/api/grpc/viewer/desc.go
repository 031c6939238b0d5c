package viewer

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

// ServiceName is the fully qualified gRPC service name.
const ServiceName = "mova.viewer.v1.ViewerService"

// Method names of ViewerService.
const (
	MethodGetStatus     = "GetStatus"
	MethodGetSnapshot   = "GetSnapshot"
	MethodFindSnapshot  = "FindSnapshot"
	MethodListHistory   = "ListHistory"
	MethodListAlerts    = "ListAlerts"
	MethodAlertHistory  = "AlertHistory"
	MethodAcknowledge   = "AcknowledgeAlert"
	MethodClearAlerts   = "ClearAlerts"
	MethodPin           = "Pin"
	MethodUnpin         = "Unpin"
	MethodReset         = "Reset"
	MethodDrainEvents   = "DrainEvents"
	MethodDrainRawLines = "DrainRawLines"
	MethodSetRecording  = "SetRecording"
	MethodControlReplay = "ControlReplay"
)

// FullMethod returns the invocation path of method, e.g.
// "/mova.viewer.v1.ViewerService/GetStatus".
func FullMethod(method string) string {
	return "/" + ServiceName + "/" + method
}

// ViewerServer is the server API of ViewerService.
type ViewerServer interface {
	GetStatus(ctx context.Context, req *emptypb.Empty) (*structpb.Struct, error)
	// GetSnapshot returns the current snapshot, or the display view when req is true.
	GetSnapshot(ctx context.Context, req *wrapperspb.BoolValue) (*structpb.Struct, error)
	FindSnapshot(ctx context.Context, req *wrapperspb.Int64Value) (*structpb.Struct, error)
	ListHistory(ctx context.Context, req *wrapperspb.Int64Value) (*structpb.ListValue, error)
	ListAlerts(ctx context.Context, req *emptypb.Empty) (*structpb.ListValue, error)
	AlertHistory(ctx context.Context, req *wrapperspb.Int64Value) (*structpb.ListValue, error)
	AcknowledgeAlert(ctx context.Context, req *wrapperspb.Int64Value) (*emptypb.Empty, error)
	ClearAlerts(ctx context.Context, req *emptypb.Empty) (*emptypb.Empty, error)
	// Pin freezes the display view; zero pins the current snapshot.
	Pin(ctx context.Context, req *wrapperspb.Int64Value) (*structpb.Struct, error)
	Unpin(ctx context.Context, req *emptypb.Empty) (*emptypb.Empty, error)
	Reset(ctx context.Context, req *emptypb.Empty) (*emptypb.Empty, error)
	DrainEvents(ctx context.Context, req *emptypb.Empty) (*structpb.ListValue, error)
	DrainRawLines(ctx context.Context, req *emptypb.Empty) (*structpb.ListValue, error)
	// SetRecording starts recording to req, or stops it when req is empty.
	SetRecording(ctx context.Context, req *wrapperspb.StringValue) (*emptypb.Empty, error)
	ControlReplay(ctx context.Context, req *structpb.Struct) (*emptypb.Empty, error)
}

// ServiceDesc describes ViewerService for grpc.Server.RegisterService.
//
//nolint:gochecknoglobals // Mirrors what protoc-gen-go-grpc emits.
var ServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*ViewerServer)(nil),
	Methods: []grpc.MethodDesc{
		unary(MethodGetStatus, ViewerServer.GetStatus),
		unary(MethodGetSnapshot, ViewerServer.GetSnapshot),
		unary(MethodFindSnapshot, ViewerServer.FindSnapshot),
		unary(MethodListHistory, ViewerServer.ListHistory),
		unary(MethodListAlerts, ViewerServer.ListAlerts),
		unary(MethodAlertHistory, ViewerServer.AlertHistory),
		unary(MethodAcknowledge, ViewerServer.AcknowledgeAlert),
		unary(MethodClearAlerts, ViewerServer.ClearAlerts),
		unary(MethodPin, ViewerServer.Pin),
		unary(MethodUnpin, ViewerServer.Unpin),
		unary(MethodReset, ViewerServer.Reset),
		unary(MethodDrainEvents, ViewerServer.DrainEvents),
		unary(MethodDrainRawLines, ViewerServer.DrainRawLines),
		unary(MethodSetRecording, ViewerServer.SetRecording),
		unary(MethodControlReplay, ViewerServer.ControlReplay),
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "mova/viewer/v1/viewer.proto",
}

// Register attaches srv to registrar.
func Register(registrar grpc.ServiceRegistrar, srv ViewerServer) {
	registrar.RegisterService(&ServiceDesc, srv)
}

// unary builds the method descriptor for one RPC. The request message is
// allocated from the handler's parameter type.
func unary[Req proto.Message, Resp proto.Message](
	name string,
	call func(ViewerServer, context.Context, Req) (Resp, error),
) grpc.MethodDesc {
	return grpc.MethodDesc{
		MethodName: name,
		Handler: func(
			srv any,
			ctx context.Context,
			dec func(any) error,
			interceptor grpc.UnaryServerInterceptor,
		) (any, error) {
			var zero Req

			in, ok := zero.ProtoReflect().New().Interface().(Req)
			if !ok {
				return nil, errUnexpectedRequest
			}

			if err := dec(in); err != nil {
				return nil, err
			}

			server, ok := srv.(ViewerServer)
			if !ok {
				return nil, errUnexpectedServer
			}

			if interceptor == nil {
				return call(server, ctx, in)
			}

			info := &grpc.UnaryServerInfo{
				Server:     srv,
				FullMethod: FullMethod(name),
			}

			return interceptor(ctx, in, info, func(ctx context.Context, req any) (any, error) {
				typed, ok := req.(Req)
				if !ok {
					return nil, errUnexpectedRequest
				}

				return call(server, ctx, typed)
			})
		},
	}
}
