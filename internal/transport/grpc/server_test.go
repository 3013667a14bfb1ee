package grpcx

import (
	"context"
	"errors"
	"net"
	"testing"
	"time"

	"github.com/cwrk-planet/messaging-service/internal/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"
)

type fakePresence struct{ online []domain.UserID }

func (f fakePresence) IsOnline(_ context.Context, uid domain.UserID) bool {
	for _, id := range f.online {
		if id == uid {
			return true
		}
	}
	return false
}

func (f fakePresence) OnlineUsers(context.Context) []domain.UserID { return f.online }

type fakeUnread map[domain.UserID]int

func (f fakeUnread) UnreadCount(_ context.Context, uid domain.UserID) (int, error) {
	if uid == 13 {
		return 0, errors.New("db is gone")
	}
	if uid == 404 {
		return 0, domain.ErrUserNotFound
	}
	return f[uid], nil
}

type panicUnread struct{}

func (panicUnread) UnreadCount(context.Context, domain.UserID) (int, error) { panic("boom") }

func dialBufconn(t *testing.T, srv PresenceServer) *Client {
	t.Helper()
	lis := bufconn.Listen(1 << 20)
	gs := grpc.NewServer(grpc.ChainUnaryInterceptor(UnaryServerInterceptor(time.Second)))
	Register(gs, srv)
	go func() { _ = gs.Serve(lis) }()
	t.Cleanup(gs.Stop)

	cc, err := grpc.NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
			return lis.DialContext(ctx)
		}),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = cc.Close() })
	return NewClient(cc)
}

func TestPresenceServer(t *testing.T) {
	c := dialBufconn(t, NewServer(fakePresence{online: []domain.UserID{1, 7}}, fakeUnread{1: 3}))
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	online, err := c.IsOnline(ctx, 7)
	require.NoError(t, err)
	assert.True(t, online)

	online, err = c.IsOnline(ctx, 2)
	require.NoError(t, err)
	assert.False(t, online)

	users, err := c.OnlineUsers(ctx)
	require.NoError(t, err)
	assert.Equal(t, []domain.UserID{1, 7}, users)

	n, err := c.UnreadCount(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, int64(3), n)
}

func TestPresenceServer_StatusCodes(t *testing.T) {
	c := dialBufconn(t, NewServer(fakePresence{}, fakeUnread{}))
	ctx := context.Background()

	_, err := c.IsOnline(ctx, 0)
	assert.Equal(t, codes.InvalidArgument, status.Code(err))

	_, err = c.UnreadCount(ctx, 404)
	assert.Equal(t, codes.NotFound, status.Code(err))

	_, err = c.UnreadCount(ctx, 13)
	assert.Equal(t, codes.Internal, status.Code(err))
	assert.NotContains(t, err.Error(), "db is gone")
}

func TestUnaryInterceptor_RecoversPanic(t *testing.T) {
	c := dialBufconn(t, NewServer(fakePresence{}, panicUnread{}))

	_, err := c.UnreadCount(context.Background(), 1)
	assert.Equal(t, codes.Internal, status.Code(err))
}
