package service

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/cwrk-planet/messaging-service/internal/domain"
)

type MessageRepository interface {
	Create(ctx context.Context, sender, receiver domain.UserID, body string) (*domain.Message, error)
	GetByID(ctx context.Context, id domain.MessageID) (*domain.Message, error)
	ListBetween(ctx context.Context, a, b domain.UserID, offset, limit int) ([]domain.Message, error)
	CountBetween(ctx context.Context, a, b domain.UserID) (int, error)
	MarkRead(ctx context.Context, id domain.MessageID, reader domain.UserID) (bool, error)
	MarkConversationRead(ctx context.Context, reader, partner domain.UserID) (int64, error)
	UnreadCount(ctx context.Context, user domain.UserID) (int, error)
	Conversations(ctx context.Context, user domain.UserID) ([]domain.Conversation, error)
}

type UserRepository interface {
	GetByID(ctx context.Context, id domain.UserID) (*domain.User, error)
}

// Notifier получает события только после успешной записи в БД.
type Notifier interface {
	MessageCreated(ctx context.Context, msg domain.Message)
	MessageRead(ctx context.Context, msg domain.Message, readBy domain.UserID)
	ConversationRead(ctx context.Context, reader, partner domain.UserID, count int64)
}

type nopNotifier struct{}

func (nopNotifier) MessageCreated(context.Context, domain.Message)                        {}
func (nopNotifier) MessageRead(context.Context, domain.Message, domain.UserID)            {}
func (nopNotifier) ConversationRead(context.Context, domain.UserID, domain.UserID, int64) {}

type MessageService struct {
	messages MessageRepository
	users    UserRepository
	notifier Notifier
}

// NewMessageService: без notifier рассылку в realtime делают сами клиенты.
func NewMessageService(messages MessageRepository, users UserRepository, notifier Notifier) *MessageService {
	if notifier == nil {
		notifier = nopNotifier{}
	}
	return &MessageService{messages: messages, users: users, notifier: notifier}
}

func (s *MessageService) Send(ctx context.Context, sender, receiver domain.UserID, body string) (*domain.Message, error) {
	if !sender.Valid() {
		return nil, domain.ErrUnauthorized
	}
	if !receiver.Valid() {
		return nil, fmt.Errorf("%w: receiver id", domain.ErrInvalidInput)
	}
	if sender == receiver {
		return nil, domain.ErrSelfConversation
	}
	body, err := domain.NormalizeBody(body)
	if err != nil {
		return nil, err
	}
	if _, err := s.users.GetByID(ctx, receiver); err != nil {
		return nil, err
	}

	msg, err := s.messages.Create(ctx, sender, receiver, body)
	if err != nil {
		return nil, fmt.Errorf("create message: %w", err)
	}
	s.notifier.MessageCreated(ctx, *msg)
	return msg, nil
}

// History: страница диалога viewer<->partner, новые первыми.
func (s *MessageService) History(ctx context.Context, viewer, partner domain.UserID, page, limit int) ([]domain.Message, domain.Page, error) {
	if !partner.Valid() {
		return nil, domain.Page{}, fmt.Errorf("%w: user id", domain.ErrInvalidInput)
	}
	page, limit = domain.NormalizePage(page, limit)

	total, err := s.messages.CountBetween(ctx, viewer, partner)
	if err != nil {
		return nil, domain.Page{}, fmt.Errorf("count messages: %w", err)
	}
	meta := domain.NewPage(page, limit, total)

	msgs, err := s.messages.ListBetween(ctx, viewer, partner, meta.Offset(), meta.Limit)
	if err != nil {
		return nil, domain.Page{}, fmt.Errorf("list messages: %w", err)
	}
	return msgs, meta, nil
}

// MarkRead: отметить может только получатель. Уведомление: только при реальном переходе false->true.
func (s *MessageService) MarkRead(ctx context.Context, viewer domain.UserID, id domain.MessageID) (*domain.Message, error) {
	if id <= 0 {
		return nil, fmt.Errorf("%w: message id", domain.ErrInvalidInput)
	}
	msg, err := s.messages.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if msg.ReceiverID != viewer {
		return nil, domain.ErrForbidden
	}

	changed, err := s.messages.MarkRead(ctx, id, viewer)
	if err != nil {
		return nil, fmt.Errorf("mark read: %w", err)
	}
	msg.IsRead = true
	if changed {
		s.notifier.MessageRead(ctx, *msg, viewer)
	}
	return msg, nil
}

func (s *MessageService) MarkConversationRead(ctx context.Context, viewer, partner domain.UserID) (int64, error) {
	if !partner.Valid() || partner == viewer {
		return 0, fmt.Errorf("%w: user id", domain.ErrInvalidInput)
	}
	n, err := s.messages.MarkConversationRead(ctx, viewer, partner)
	if err != nil {
		return 0, fmt.Errorf("mark conversation read: %w", err)
	}
	if n > 0 {
		s.notifier.ConversationRead(ctx, viewer, partner, n)
	}
	slog.Debug("conversation marked read", "reader", viewer, "partner", partner, "count", n)
	return n, nil
}

func (s *MessageService) Conversations(ctx context.Context, viewer domain.UserID) ([]domain.Conversation, error) {
	return s.messages.Conversations(ctx, viewer)
}

func (s *MessageService) UnreadCount(ctx context.Context, viewer domain.UserID) (int, error) {
	return s.messages.UnreadCount(ctx, viewer)
}
