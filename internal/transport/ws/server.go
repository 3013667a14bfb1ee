package ws

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/cwrk-planet/messaging-service/internal/domain"
	"github.com/cwrk-planet/messaging-service/pkg/logger"

	"github.com/gorilla/websocket"
)

type TokenVerifier interface {
	UserID(token string) (domain.UserID, error)
}

type ServerConfig struct {
	PingInterval   time.Duration
	ReadLimit      int64
	SendBuffer     int
	AllowedOrigins []string
	// RequireToken: без токена соединение не принимается.
	RequireToken bool
}

func (c *ServerConfig) defaults() {
	if c.PingInterval <= 0 {
		c.PingInterval = 15 * time.Second
	}
	if c.ReadLimit <= 0 {
		c.ReadLimit = 64 << 10
	}
	if c.SendBuffer <= 0 {
		c.SendBuffer = 64
	}
}

type Server struct {
	upgrader websocket.Upgrader
	gw       *Gateway
	tokens   TokenVerifier
	cfg      ServerConfig

	mu    sync.Mutex
	conns map[*wsConn]struct{}
	wg    sync.WaitGroup
}

func NewServer(gw *Gateway, tokens TokenVerifier, cfg ServerConfig) *Server {
	cfg.defaults()
	s := &Server{
		gw:     gw,
		tokens: tokens,
		cfg:    cfg,
		conns:  make(map[*wsConn]struct{}),
	}
	s.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     s.checkOrigin,
	}
	return s
}

// WS endpoint: GET /ws (Authorization: Bearer ... или ?token=...)
func (s *Server) HandleWS(w http.ResponseWriter, r *http.Request) {
	var authUser domain.UserID
	token := bearerToken(r)
	switch {
	case token != "" && s.tokens != nil:
		uid, err := s.tokens.UserID(token)
		if err != nil {
			http.Error(w, "invalid token", http.StatusUnauthorized)
			return
		}
		authUser = uid
	case s.cfg.RequireToken:
		http.Error(w, "missing token", http.StatusUnauthorized)
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade уже ответил клиенту
		slog.Warn("ws upgrade failed", "err", err)
		return
	}

	ctx := r.Context()
	c := newWsConn(conn, s.cfg.SendBuffer)
	if !s.track(c) {
		_ = c.Close()
		return
	}
	defer s.untrack(c)

	sess := s.gw.Open(ctx, c, authUser)

	go c.writeLoop(s.cfg.PingInterval)
	s.readLoop(ctx, c, sess)

	closeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()
	s.gw.Close(closeCtx, sess)

	if err := c.Close(); err != nil {
		sess.log.Debug("ws close failed", "err", err)
	}
}

func (s *Server) readLoop(ctx context.Context, c *wsConn, sess *Session) {
	wait := 2 * s.cfg.PingInterval

	c.conn.SetReadLimit(s.cfg.ReadLimit)
	_ = c.conn.SetReadDeadline(time.Now().Add(wait))
	c.conn.SetPongHandler(func(string) error {
		_ = c.conn.SetReadDeadline(time.Now().Add(wait))
		s.gw.Touch(ctx, sess)
		return nil
	})

	for {
		kind, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				sess.log.Debug("ws read failed", "err", err)
			}
			return
		}
		if kind != websocket.TextMessage {
			continue
		}
		_ = c.conn.SetReadDeadline(time.Now().Add(wait))
		s.gw.Handle(ctx, sess, data)
	}
}

func (s *Server) track(c *wsConn) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.conns == nil {
		return false
	}
	s.conns[c] = struct{}{}
	s.wg.Add(1)
	return true
}

func (s *Server) untrack(c *wsConn) {
	s.mu.Lock()
	if s.conns != nil {
		delete(s.conns, c)
	}
	s.mu.Unlock()
	s.wg.Done()
}

// Shutdown закрывает все соединения и ждёт, пока отработают их read-loop'ы
// (userOffline и снятие с реестра).
func (s *Server) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	conns := s.conns
	s.conns = nil
	s.mu.Unlock()

	for c := range conns {
		_ = c.Close()
	}

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		logger.FromCtx(ctx).Info("ws sessions closed", "count", len(conns))
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *Server) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" || len(s.cfg.AllowedOrigins) == 0 {
		return true
	}
	for _, o := range s.cfg.AllowedOrigins {
		if o == "*" || strings.EqualFold(o, origin) {
			return true
		}
	}
	return false
}

func bearerToken(r *http.Request) string {
	if h := r.Header.Get("Authorization"); strings.HasPrefix(h, "Bearer ") {
		return strings.TrimSpace(h[len("Bearer "):])
	}
	return strings.TrimSpace(r.URL.Query().Get("token"))
}
