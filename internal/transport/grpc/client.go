package grpcx

import (
	"context"

	"github.com/cwrk-planet/messaging-service/internal/domain"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

// Client: клиент к messaging.v1.Presence для соседних сервисов.
type Client struct {
	cc grpc.ClientConnInterface
}

func NewClient(cc grpc.ClientConnInterface) *Client {
	return &Client{cc: cc}
}

func (c *Client) IsOnline(ctx context.Context, uid domain.UserID, opts ...grpc.CallOption) (bool, error) {
	out := new(wrapperspb.BoolValue)
	if err := c.cc.Invoke(ctx, fullMethod("IsOnline"), wrapperspb.Int64(int64(uid)), out, opts...); err != nil {
		return false, err
	}
	return out.GetValue(), nil
}

func (c *Client) OnlineUsers(ctx context.Context, opts ...grpc.CallOption) ([]domain.UserID, error) {
	out := new(structpb.ListValue)
	if err := c.cc.Invoke(ctx, fullMethod("OnlineUsers"), &emptypb.Empty{}, out, opts...); err != nil {
		return nil, err
	}
	ids := make([]domain.UserID, 0, len(out.GetValues()))
	for _, v := range out.GetValues() {
		ids = append(ids, domain.UserID(v.GetNumberValue()))
	}
	return ids, nil
}

func (c *Client) UnreadCount(ctx context.Context, uid domain.UserID, opts ...grpc.CallOption) (int64, error) {
	out := new(wrapperspb.Int64Value)
	if err := c.cc.Invoke(ctx, fullMethod("UnreadCount"), wrapperspb.Int64(int64(uid)), out, opts...); err != nil {
		return 0, err
	}
	return out.GetValue(), nil
}
