package ws

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"

	"github.com/cwrk-planet/messaging-service/internal/domain"
	"github.com/cwrk-planet/messaging-service/internal/presence"
	"github.com/cwrk-planet/messaging-service/internal/protocol"
	"github.com/cwrk-planet/messaging-service/pkg/logger"
)

// MessageLookup: сверка клиентских событий с сохранёнными сообщениями (репозиторий сообщений).
type MessageLookup interface {
	GetByID(ctx context.Context, id domain.MessageID) (*domain.Message, error)
}

// Relay рассылает кадры между инстансами; nil: доставка только в локальный реестр.
type Relay interface {
	PublishToUser(ctx context.Context, userID domain.UserID, frame []byte) error
	PublishBroadcast(ctx context.Context, frame []byte) error
}

type Options struct {
	// ServerFanout: рассылку message/messageRead/conversationRead делает сервер после записи в БД,
	// одноимённые клиентские события игнорируются.
	ServerFanout bool
	Mirror       presence.Mirror
	Relay        Relay
}

type Gateway struct {
	registry     *presence.Registry
	messages     MessageLookup
	serverFanout bool
	mirror       presence.Mirror
	relay        Relay
}

func NewGateway(registry *presence.Registry, messages MessageLookup, opts Options) *Gateway {
	return &Gateway{
		registry:     registry,
		messages:     messages,
		serverFanout: opts.ServerFanout,
		mirror:       opts.Mirror,
		relay:        opts.Relay,
	}
}

// Open регистрирует новое соединение в состоянии Connected. authUser == 0: без токена.
func (g *Gateway) Open(ctx context.Context, tr Transport, authUser domain.UserID) *Session {
	s := newSession(tr, authUser, logger.FromCtx(ctx))
	s.log.Debug("ws session opened", "auth_user", authUser)
	return s
}

// Handle разбирает кадр и обрабатывает событие. Ошибки уходят клиенту кадром error,
// соединение при этом живёт дальше.
func (g *Gateway) Handle(ctx context.Context, s *Session, data []byte) {
	ev, err := protocol.DecodeInbound(data)
	if err != nil {
		s.fail(protocol.CodeInvalidPayload, err.Error())
		return
	}
	g.Dispatch(ctx, s, ev)
}

func (g *Gateway) Dispatch(ctx context.Context, s *Session, ev protocol.Inbound) {
	defer func() {
		if r := recover(); r != nil {
			s.log.Error("ws handler panic",
				logger.Event(string(ev.InboundKind())),
				"panic", r,
				"stack", string(debug.Stack()))
			s.fail(protocol.CodeInternal, "internal error")
		}
	}()

	if s.state == StateClosed {
		return
	}
	if join, ok := ev.(protocol.Join); ok {
		g.join(ctx, s, join.UserID)
		return
	}
	if s.state != StateJoined {
		s.fail(protocol.CodeNotJoined, "join first")
		return
	}

	switch e := ev.(type) {
	case protocol.SendMessage:
		g.sendMessage(ctx, s, e)
	case protocol.Typing:
		g.typing(ctx, s, e.SenderID, e.ReceiverID, true)
	case protocol.StopTyping:
		g.typing(ctx, s, e.SenderID, e.ReceiverID, false)
	case protocol.MarkAsRead:
		g.markAsRead(ctx, s, e)
	case protocol.ConversationReadByUser:
		g.conversationReadByUser(ctx, s, e)
	default:
		s.fail(protocol.CodeInvalidPayload, fmt.Sprintf("unsupported event %q", ev.InboundKind()))
	}
}

// Close переводит сессию в Closed; если это было последнее соединение пользователя: userOffline всем.
func (g *Gateway) Close(ctx context.Context, s *Session) {
	prev := s.state
	s.state = StateClosed
	if prev != StateJoined {
		return
	}

	uid, last, ok := g.registry.Unregister(s.id)
	if !ok {
		return
	}
	if g.mirror != nil {
		d, err := g.mirror.Disconnected(ctx, uid, s.id)
		switch {
		case err != nil:
			s.log.Warn("presence mirror disconnect failed", logger.UserID(int64(uid)), "err", err)
		case d != presence.DepartureUnknown:
			// соединения, которого зеркало не знало, решает локальный реестр
			last = d == presence.DepartureLast
		}
	}
	s.log.Debug("ws session closed", logger.UserID(int64(uid)), "last", last)

	if last {
		g.broadcast(ctx, protocol.UserOffline{UserID: uid, Message: protocol.OfflineText(uid)})
	}
}

// Touch продлевает присутствие (pong от клиента).
func (g *Gateway) Touch(ctx context.Context, s *Session) {
	if g.mirror == nil || s.state != StateJoined {
		return
	}
	if err := g.mirror.Touch(ctx, s.user); err != nil {
		s.log.Debug("presence touch failed", "err", err)
	}
}

func (g *Gateway) join(ctx context.Context, s *Session, uid domain.UserID) {
	if !uid.Valid() {
		s.fail(protocol.CodeInvalidPayload, "userId is required")
		return
	}
	if s.authUser.Valid() && uid != s.authUser {
		s.fail(protocol.CodeForbidden, "userId does not match token")
		return
	}
	if s.state == StateJoined {
		if uid != s.user {
			s.fail(protocol.CodeAlreadyJoined, "connection already joined as "+s.user.String())
		}
		return
	}

	first := g.registry.Register(uid, s)
	s.state = StateJoined
	s.user = uid
	s.log = s.log.With(logger.UserID(int64(uid)))

	if g.mirror != nil {
		f, err := g.mirror.Connected(ctx, uid, s.id)
		if err != nil {
			s.log.Warn("presence mirror connect failed", "err", err)
		} else {
			first = f
		}
	}

	s.reply(protocol.OnlineUsers{UserIDs: g.OnlineUsers(ctx)})
	if first {
		g.broadcast(ctx, protocol.UserOnline{UserID: uid, Message: protocol.OnlineText(uid)})
	}
}

func (g *Gateway) sendMessage(ctx context.Context, s *Session, e protocol.SendMessage) {
	if e.SenderID != s.user {
		s.fail(protocol.CodeForbidden, "senderId does not match joined user")
		return
	}
	if g.serverFanout {
		// уже разослано сервером после записи
		s.log.Debug("ws sendMessage ignored, server fan-out", "message_id", e.MessageID)
		return
	}

	msg, ok := g.lookup(ctx, s, e.MessageID)
	if !ok {
		return
	}
	if msg.SenderID != s.user || msg.ReceiverID != e.ReceiverID {
		s.fail(protocol.CodeForbidden, "message does not belong to this conversation")
		return
	}
	g.MessageCreated(ctx, *msg)
}

func (g *Gateway) typing(ctx context.Context, s *Session, sender, receiver domain.UserID, active bool) {
	if sender != s.user {
		s.fail(protocol.CodeForbidden, "senderId does not match joined user")
		return
	}
	if !receiver.Valid() {
		s.fail(protocol.CodeInvalidPayload, "receiverId is required")
		return
	}
	if active {
		g.emitToUser(ctx, receiver, protocol.UserTyping{SenderID: sender, Message: protocol.TypingText(sender)})
		return
	}
	g.emitToUser(ctx, receiver, protocol.UserStoppedTyping{SenderID: sender})
}

func (g *Gateway) markAsRead(ctx context.Context, s *Session, e protocol.MarkAsRead) {
	if e.ReadBy != s.user {
		s.fail(protocol.CodeForbidden, "readBy does not match joined user")
		return
	}
	if g.serverFanout {
		return
	}

	msg, ok := g.lookup(ctx, s, e.MessageID)
	if !ok {
		return
	}
	if msg.ReceiverID != s.user || msg.SenderID != e.SenderID || !msg.IsRead {
		s.fail(protocol.CodeForbidden, "message is not read by this user")
		return
	}
	g.emitToUser(ctx, msg.SenderID, protocol.MessageRead{MessageID: msg.ID, ReadBy: s.user})
}

func (g *Gateway) conversationReadByUser(ctx context.Context, s *Session, e protocol.ConversationReadByUser) {
	if e.ReadBy != s.user {
		s.fail(protocol.CodeForbidden, "readBy does not match joined user")
		return
	}
	if g.serverFanout {
		return
	}
	if !e.ConversationWith.Valid() {
		s.fail(protocol.CodeInvalidPayload, "conversationWith is required")
		return
	}
	g.emitToUser(ctx, e.ConversationWith, protocol.ConversationRead{ReadBy: s.user, ConversationWith: e.ConversationWith})
}

func (g *Gateway) lookup(ctx context.Context, s *Session, id domain.MessageID) (*domain.Message, bool) {
	if g.messages == nil {
		s.fail(protocol.CodeInternal, "message store unavailable")
		return nil, false
	}
	msg, err := g.messages.GetByID(ctx, id)
	switch {
	case errors.Is(err, domain.ErrMessageNotFound):
		s.fail(protocol.CodeNotFound, "message not found")
		return nil, false
	case err != nil:
		s.log.Error("ws message lookup failed", "message_id", id, "err", err)
		s.fail(protocol.CodeInternal, "internal error")
		return nil, false
	}
	return msg, true
}

// --- Notifier: вызывается сервисом после успешной записи ---

// MessageCreated: message: всем соединениям получателя, messageSent: всем соединениям отправителя
// (включая отправившее устройство: подтверждение отправки приходит только так).
func (g *Gateway) MessageCreated(ctx context.Context, msg domain.Message) {
	payload := protocol.NewChatMessage(msg)
	payload.IsRead = false

	g.emitToUser(ctx, msg.ReceiverID, protocol.MessageEvent{ChatMessage: payload})
	g.emitToUser(ctx, msg.SenderID, protocol.MessageSent{ChatMessage: payload})
}

func (g *Gateway) MessageRead(ctx context.Context, msg domain.Message, readBy domain.UserID) {
	g.emitToUser(ctx, msg.SenderID, protocol.MessageRead{MessageID: msg.ID, ReadBy: readBy})
}

func (g *Gateway) ConversationRead(ctx context.Context, reader, partner domain.UserID, count int64) {
	g.emitToUser(ctx, partner, protocol.ConversationRead{ReadBy: reader, ConversationWith: partner})
	g.emitToUser(ctx, reader, protocol.ConversationMarkedAsRead{UserID: partner, MarkedCount: count})
	g.emitToUser(ctx, partner, protocol.ConversationMarkedAsRead{ReadBy: reader, MarkedCount: count})
}

// --- presence queries ---

func (g *Gateway) IsOnline(ctx context.Context, uid domain.UserID) bool {
	if g.registry.IsOnline(uid) {
		return true
	}
	if g.mirror == nil {
		return false
	}
	users, err := g.mirror.OnlineUsers(ctx)
	if err != nil {
		logger.FromCtx(ctx).Warn("presence mirror online users failed", "err", err)
		return false
	}
	for _, id := range users {
		if id == uid {
			return true
		}
	}
	return false
}

func (g *Gateway) OnlineUsers(ctx context.Context) []domain.UserID {
	if g.mirror != nil {
		users, err := g.mirror.OnlineUsers(ctx)
		if err == nil {
			return users
		}
		logger.FromCtx(ctx).Warn("presence mirror online users failed", "err", err)
	}
	return g.registry.OnlineUsers()
}

// --- fan-out ---

func (g *Gateway) emitToUser(ctx context.Context, uid domain.UserID, ev protocol.Outbound) {
	frame, err := protocol.Encode(ev)
	if err != nil {
		slog.Error("ws encode failed", "type", ev.OutboundKind(), "err", err)
		return
	}
	if g.relay != nil {
		err = g.relay.PublishToUser(ctx, uid, frame)
		if err == nil {
			return
		}
		logger.FromCtx(ctx).Warn("ws relay publish failed, local delivery", logger.UserID(int64(uid)), "err", err)
	}
	g.DeliverLocal(uid, frame)
}

func (g *Gateway) broadcast(ctx context.Context, ev protocol.Outbound) {
	frame, err := protocol.Encode(ev)
	if err != nil {
		slog.Error("ws encode failed", "type", ev.OutboundKind(), "err", err)
		return
	}
	if g.relay != nil {
		err = g.relay.PublishBroadcast(ctx, frame)
		if err == nil {
			return
		}
		logger.FromCtx(ctx).Warn("ws relay broadcast failed, local delivery", "err", err)
	}
	g.BroadcastLocal(frame)
}

// DeliverLocal отдаёт кадр всем локальным соединениям пользователя. Пропавшие соединения: no-op.
func (g *Gateway) DeliverLocal(uid domain.UserID, frame []byte) int {
	n := 0
	for _, c := range g.registry.ConnectionsFor(uid) {
		if err := c.Send(frame); err != nil {
			slog.Debug("ws deliver dropped", logger.UserID(int64(uid)), logger.ConnID(c.ID()), "err", err)
			continue
		}
		n++
	}
	return n
}

func (g *Gateway) BroadcastLocal(frame []byte) int {
	n := 0
	for _, c := range g.registry.All() {
		if err := c.Send(frame); err != nil {
			slog.Debug("ws broadcast dropped", logger.ConnID(c.ID()), "err", err)
			continue
		}
		n++
	}
	return n
}
