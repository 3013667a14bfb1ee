package client

import (
	"context"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/cwrk-planet/messaging-service/internal/domain"
	"github.com/cwrk-planet/messaging-service/internal/memstore"
	"github.com/cwrk-planet/messaging-service/internal/presence"
	"github.com/cwrk-planet/messaging-service/internal/security"
	"github.com/cwrk-planet/messaging-service/internal/service"
	httpx "github.com/cwrk-planet/messaging-service/internal/transport/http"
	"github.com/cwrk-planet/messaging-service/internal/transport/ws"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type liveUser struct {
	ctrl *Controller
	rt   *Realtime
}

// startStack поднимает REST + websocket поверх memstore, как в cmd/messaging.
func startStack(t *testing.T) (*httptest.Server, *security.TokenManager) {
	t.Helper()
	store := memstore.New()
	store.AddUser(domain.User{ID: 1, Username: "alice"})
	store.AddUser(domain.User{ID: 2, Username: "bob"})

	gw := ws.NewGateway(presence.NewRegistry(), store.Messages(), ws.Options{ServerFanout: true})
	svc := service.NewMessageService(store.Messages(), store.Users(), gw)
	tokens := security.NewTokenManager("scenario-secret", "", time.Hour, 0)
	wsSrv := ws.NewServer(gw, tokens, ws.ServerConfig{RequireToken: true})

	srv := httptest.NewServer(httpx.NewRouter(httpx.RouterDeps{
		Handler: httpx.NewHandler(svc, gw),
		Tokens:  tokens,
		WS:      wsSrv.HandleWS,
	}))
	t.Cleanup(srv.Close)
	return srv, tokens
}

func connect(t *testing.T, srv *httptest.Server, tokens *security.TokenManager, uid domain.UserID) *liveUser {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	token, err := tokens.SignAccessToken(uid, time.Now())
	require.NoError(t, err)

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"
	rt, err := DialRealtime(ctx, wsURL, token, uid)
	require.NoError(t, err)
	t.Cleanup(func() { _ = rt.Close() })

	ctrl := NewController(uid, NewRESTClient(srv.URL, token, srv.Client()), rt, Options{})
	go func() { _ = rt.Run(ctx, ctrl.HandleEvent) }()

	require.Eventually(t, func() bool { return ctrl.IsOnline(uid) }, 3*time.Second, 10*time.Millisecond, "join snapshot")
	return &liveUser{ctrl: ctrl, rt: rt}
}

func TestScenario_ReadReceiptWithoutRefetch(t *testing.T) {
	srv, tokens := startStack(t)
	ctx := context.Background()

	alice := connect(t, srv, tokens, 1)
	bob := connect(t, srv, tokens, 2)

	require.NoError(t, alice.ctrl.Open(ctx, 2))
	require.NoError(t, bob.ctrl.LoadConversations(ctx))

	alice.ctrl.SetComposer("hello")
	require.NoError(t, alice.ctrl.Send(ctx))

	// у алисы строка появляется из messageSent
	require.Eventually(t, func() bool { return len(alice.ctrl.View().Messages) == 1 }, 3*time.Second, 10*time.Millisecond)
	sent := alice.ctrl.View().Messages[0]
	assert.Equal(t, "hello", sent.Body)
	assert.False(t, sent.IsRead)

	// у боба: непрочитанный диалог
	require.Eventually(t, func() bool {
		for _, c := range bob.ctrl.Conversations() {
			if c.Partner.ID == 1 {
				return c.UnreadCount == 1
			}
		}
		return false
	}, 3*time.Second, 10*time.Millisecond)

	require.NoError(t, bob.ctrl.Open(ctx, 1))
	v := bob.ctrl.View()
	require.Len(t, v.Messages, 1)
	assert.True(t, v.Messages[0].IsRead)

	// алиса видит прочтение без перезапроса
	require.Eventually(t, func() bool {
		ms := alice.ctrl.View().Messages
		return len(ms) == 1 && ms[0].IsRead
	}, 3*time.Second, 10*time.Millisecond)

	require.Eventually(t, func() bool {
		for _, c := range bob.ctrl.Conversations() {
			if c.Partner.ID == 1 {
				return c.UnreadCount == 0
			}
		}
		return false
	}, 3*time.Second, 10*time.Millisecond)
}

func TestScenario_TypingReachesPartner(t *testing.T) {
	srv, tokens := startStack(t)
	ctx := context.Background()

	alice := connect(t, srv, tokens, 1)
	bob := connect(t, srv, tokens, 2)
	require.NoError(t, bob.ctrl.Open(ctx, 1))
	require.NoError(t, alice.ctrl.Open(ctx, 2))

	alice.ctrl.Typing()
	require.Eventually(t, func() bool { return bob.ctrl.View().PartnerTyping }, 3*time.Second, 10*time.Millisecond)

	alice.ctrl.SetComposer("done typing")
	require.NoError(t, alice.ctrl.Send(ctx))
	require.Eventually(t, func() bool { return !bob.ctrl.View().PartnerTyping }, 3*time.Second, 10*time.Millisecond)
	require.Eventually(t, func() bool { return len(bob.ctrl.View().Messages) == 1 }, 3*time.Second, 10*time.Millisecond)
}
