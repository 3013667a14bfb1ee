package grpcx

import (
	"context"
	"errors"

	"github.com/cwrk-planet/messaging-service/internal/domain"
	"github.com/cwrk-planet/messaging-service/pkg/logger"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

const serviceName = "messaging.v1.Presence"

type PresenceReader interface {
	IsOnline(ctx context.Context, uid domain.UserID) bool
	OnlineUsers(ctx context.Context) []domain.UserID
}

type UnreadCounter interface {
	UnreadCount(ctx context.Context, viewer domain.UserID) (int, error)
}

// PresenceServer: внутренний API для соседних сервисов (лента, уведомления).
type PresenceServer interface {
	IsOnline(ctx context.Context, in *wrapperspb.Int64Value) (*wrapperspb.BoolValue, error)
	OnlineUsers(ctx context.Context, in *emptypb.Empty) (*structpb.ListValue, error)
	UnreadCount(ctx context.Context, in *wrapperspb.Int64Value) (*wrapperspb.Int64Value, error)
}

type Server struct {
	presence PresenceReader
	unread   UnreadCounter
}

func NewServer(presence PresenceReader, unread UnreadCounter) *Server {
	return &Server{presence: presence, unread: unread}
}

func Register(grpcServer *grpc.Server, s PresenceServer) {
	grpcServer.RegisterService(&presenceServiceDesc, s)
}

func (s *Server) IsOnline(ctx context.Context, in *wrapperspb.Int64Value) (*wrapperspb.BoolValue, error) {
	uid, err := userID(in)
	if err != nil {
		return nil, err
	}
	return wrapperspb.Bool(s.presence.IsOnline(ctx, uid)), nil
}

func (s *Server) OnlineUsers(ctx context.Context, _ *emptypb.Empty) (*structpb.ListValue, error) {
	users := s.presence.OnlineUsers(ctx)
	out := &structpb.ListValue{Values: make([]*structpb.Value, 0, len(users))}
	for _, id := range users {
		out.Values = append(out.Values, structpb.NewNumberValue(float64(id)))
	}
	return out, nil
}

func (s *Server) UnreadCount(ctx context.Context, in *wrapperspb.Int64Value) (*wrapperspb.Int64Value, error) {
	uid, err := userID(in)
	if err != nil {
		return nil, err
	}
	n, err := s.unread.UnreadCount(ctx, uid)
	if err != nil {
		return nil, toStatus(ctx, err)
	}
	return wrapperspb.Int64(int64(n)), nil
}

// -------- helpers --------

func userID(in *wrapperspb.Int64Value) (domain.UserID, error) {
	uid := domain.UserID(in.GetValue())
	if !uid.Valid() {
		return 0, status.Error(codes.InvalidArgument, "user id must be positive")
	}
	return uid, nil
}

func toStatus(ctx context.Context, err error) error {
	switch {
	case errors.Is(err, domain.ErrInvalidInput):
		return status.Error(codes.InvalidArgument, err.Error())
	case errors.Is(err, domain.ErrUserNotFound), errors.Is(err, domain.ErrMessageNotFound):
		return status.Error(codes.NotFound, err.Error())
	case errors.Is(err, domain.ErrUnauthorized):
		return status.Error(codes.Unauthenticated, "unauthorized")
	case errors.Is(err, domain.ErrForbidden):
		return status.Error(codes.PermissionDenied, "forbidden")
	case errors.Is(err, context.DeadlineExceeded):
		return status.Error(codes.DeadlineExceeded, "deadline exceeded")
	default:
		logger.FromCtx(ctx).Error("grpc handler failed", "err", err)
		return status.Error(codes.Internal, "internal error")
	}
}
