package grpcx

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

// Сообщения: well-known types, поэтому описание сервиса собрано вручную без protoc.
var presenceServiceDesc = grpc.ServiceDesc{
	ServiceName: serviceName,
	HandlerType: (*PresenceServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "IsOnline", Handler: isOnlineHandler},
		{MethodName: "OnlineUsers", Handler: onlineUsersHandler},
		{MethodName: "UnreadCount", Handler: unreadCountHandler},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "messaging/v1/presence.proto",
}

func fullMethod(name string) string { return "/" + serviceName + "/" + name }

func isOnlineHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(wrapperspb.Int64Value)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(PresenceServer).IsOnline(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: fullMethod("IsOnline")}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(PresenceServer).IsOnline(ctx, req.(*wrapperspb.Int64Value))
	}
	return interceptor(ctx, in, info, handler)
}

func onlineUsersHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(emptypb.Empty)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(PresenceServer).OnlineUsers(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: fullMethod("OnlineUsers")}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(PresenceServer).OnlineUsers(ctx, req.(*emptypb.Empty))
	}
	return interceptor(ctx, in, info, handler)
}

func unreadCountHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(wrapperspb.Int64Value)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(PresenceServer).UnreadCount(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: fullMethod("UnreadCount")}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(PresenceServer).UnreadCount(ctx, req.(*wrapperspb.Int64Value))
	}
	return interceptor(ctx, in, info, handler)
}
