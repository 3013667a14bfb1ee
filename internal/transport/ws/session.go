package ws

import (
	"log/slog"

	"github.com/cwrk-planet/messaging-service/internal/domain"
	"github.com/cwrk-planet/messaging-service/internal/protocol"
	"github.com/cwrk-planet/messaging-service/pkg/logger"

	"github.com/google/uuid"
)

// State соединения: Connected -> Joined -> Closed.
type State int

const (
	StateConnected State = iota
	StateJoined
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateConnected:
		return "connected"
	case StateJoined:
		return "joined"
	default:
		return "closed"
	}
}

// Transport: то, во что сессия пишет кадры (gorilla conn или фейк в тестах).
type Transport interface {
	Send(frame []byte) error
	Close() error
}

// Session живёт ровно одно соединение. Поля state/user меняет только read-loop этого соединения.
type Session struct {
	id       string
	tr       Transport
	authUser domain.UserID

	state State
	user  domain.UserID
	log   *slog.Logger
}

func newSession(tr Transport, authUser domain.UserID, log *slog.Logger) *Session {
	id := uuid.NewString()
	return &Session{
		id:       id,
		tr:       tr,
		authUser: authUser,
		state:    StateConnected,
		log:      log.With(logger.ConnID(id)),
	}
}

func (s *Session) ID() string              { return s.id }
func (s *Session) Send(frame []byte) error { return s.tr.Send(frame) }
func (s *Session) State() State            { return s.state }
func (s *Session) UserID() domain.UserID   { return s.user }
func (s *Session) AuthUser() domain.UserID { return s.authUser }

func (s *Session) reply(ev protocol.Outbound) {
	frame, err := protocol.Encode(ev)
	if err != nil {
		s.log.Error("ws encode reply failed", "type", ev.OutboundKind(), "err", err)
		return
	}
	if err := s.tr.Send(frame); err != nil {
		s.log.Debug("ws reply dropped", "type", ev.OutboundKind(), "err", err)
	}
}

func (s *Session) fail(code, msg string) {
	s.reply(protocol.Error{Code: code, Message: msg})
}
