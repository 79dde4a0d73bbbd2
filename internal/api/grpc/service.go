// Package grpc exposes the status service over gRPC.
//
// The service is declared without generated stubs: requests and responses
// are google.protobuf.Struct messages whose fields mirror the HTTP API.
package grpc

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/structpb"
)

// ServiceName is the fully qualified gRPC service name.
const ServiceName = "statusline.v1.StatusService"

// Full method names.
const (
	GetStatusMethod    = "/" + ServiceName + "/GetStatus"
	AppendEventsMethod = "/" + ServiceName + "/AppendEvents"
)

// StatusServiceServer is the server API for StatusService.
type StatusServiceServer interface {
	// GetStatus takes {entity_id, start, end} and returns
	// {intervals: [{event, from, to}]}.
	GetStatus(context.Context, *structpb.Struct) (*structpb.Struct, error)
	// AppendEvents takes {entity_id, events: [{timestamp, event}]} and
	// returns {accepted}.
	AppendEvents(context.Context, *structpb.Struct) (*structpb.Struct, error)
}

// ServiceDesc describes StatusService for grpc.Server.RegisterService.
var ServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*StatusServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "GetStatus", Handler: getStatusHandler},
		{MethodName: "AppendEvents", Handler: appendEventsHandler},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "statusline/v1/status.proto",
}

// RegisterStatusServiceServer registers srv on s.
func RegisterStatusServiceServer(s grpc.ServiceRegistrar, srv StatusServiceServer) {
	s.RegisterService(&ServiceDesc, srv)
}

func getStatusHandler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(structpb.Struct)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(StatusServiceServer).GetStatus(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: GetStatusMethod}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(StatusServiceServer).GetStatus(ctx, req.(*structpb.Struct))
	}
	return interceptor(ctx, in, info, handler)
}

func appendEventsHandler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(structpb.Struct)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(StatusServiceServer).AppendEvents(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: AppendEventsMethod}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(StatusServiceServer).AppendEvents(ctx, req.(*structpb.Struct))
	}
	return interceptor(ctx, in, info, handler)
}

// Client is a StatusService client.
type Client struct {
	cc grpc.ClientConnInterface
}

// NewClient creates a StatusService client on cc.
func NewClient(cc grpc.ClientConnInterface) *Client {
	return &Client{cc: cc}
}

// GetStatus calls StatusService.GetStatus.
func (c *Client) GetStatus(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, GetStatusMethod, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

// AppendEvents calls StatusService.AppendEvents.
func (c *Client) AppendEvents(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, AppendEventsMethod, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}
