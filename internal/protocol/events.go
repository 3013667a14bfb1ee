package protocol

import (
	"time"

	"github.com/cwrk-planet/messaging-service/internal/domain"
)

// InboundKind: события клиент -> сервер.
type InboundKind string

const (
	KindJoin                   InboundKind = "join"
	KindSendMessage            InboundKind = "sendMessage"
	KindTyping                 InboundKind = "typing"
	KindStopTyping             InboundKind = "stopTyping"
	KindMarkAsRead             InboundKind = "markAsRead"
	KindConversationReadByUser InboundKind = "conversationReadByUser"
)

// OutboundKind: события сервер -> клиент.
type OutboundKind string

const (
	KindMessage                  OutboundKind = "message"
	KindMessageSent              OutboundKind = "messageSent"
	KindUserTyping               OutboundKind = "userTyping"
	KindUserStoppedTyping        OutboundKind = "userStoppedTyping"
	KindMessageRead              OutboundKind = "messageRead"
	KindConversationRead         OutboundKind = "conversationRead"
	KindConversationMarkedAsRead OutboundKind = "conversationMarkedAsRead"
	KindUserOnline               OutboundKind = "userOnline"
	KindUserOffline              OutboundKind = "userOffline"
	KindOnlineUsers              OutboundKind = "onlineUsers"
	KindError                    OutboundKind = "error"
)

type Inbound interface {
	InboundKind() InboundKind
}

type Outbound interface {
	OutboundKind() OutboundKind
}

// --- inbound ---

type Join struct {
	UserID domain.UserID `json:"userId"`
}

type SendMessage struct {
	SenderID   domain.UserID    `json:"senderId"`
	ReceiverID domain.UserID    `json:"receiverId"`
	Message    string           `json:"message"`
	MessageID  domain.MessageID `json:"messageId"`
	CreatedAt  time.Time        `json:"createdAt"`
	SenderName string           `json:"senderName,omitempty"`
}

type Typing struct {
	SenderID   domain.UserID `json:"senderId"`
	ReceiverID domain.UserID `json:"receiverId"`
}

type StopTyping struct {
	SenderID   domain.UserID `json:"senderId"`
	ReceiverID domain.UserID `json:"receiverId"`
}

// MarkAsRead: SenderID: автор исходного сообщения, именно его уведомляем.
type MarkAsRead struct {
	MessageID domain.MessageID `json:"messageId"`
	SenderID  domain.UserID    `json:"senderId"`
	ReadBy    domain.UserID    `json:"readBy"`
}

type ConversationReadByUser struct {
	ConversationWith domain.UserID `json:"conversationWith"`
	ReadBy           domain.UserID `json:"readBy"`
}

func (Join) InboundKind() InboundKind                   { return KindJoin }
func (SendMessage) InboundKind() InboundKind            { return KindSendMessage }
func (Typing) InboundKind() InboundKind                 { return KindTyping }
func (StopTyping) InboundKind() InboundKind             { return KindStopTyping }
func (MarkAsRead) InboundKind() InboundKind             { return KindMarkAsRead }
func (ConversationReadByUser) InboundKind() InboundKind { return KindConversationReadByUser }

// --- outbound ---

// ChatMessage: каноническое представление сообщения в realtime.
type ChatMessage struct {
	ID         domain.MessageID `json:"id"`
	SenderID   domain.UserID    `json:"senderId"`
	SenderName string           `json:"senderName"`
	ReceiverID domain.UserID    `json:"receiverId"`
	// ReceiverName нужен отправителю, чтобы подписать новый диалог в списке.
	ReceiverName string    `json:"receiverName,omitempty"`
	Message      string    `json:"message"`
	CreatedAt    time.Time `json:"createdAt"`
	IsRead       bool      `json:"isRead"`
}

func NewChatMessage(m domain.Message) ChatMessage {
	return ChatMessage{
		ID:           m.ID,
		SenderID:     m.SenderID,
		SenderName:   m.SenderName,
		ReceiverID:   m.ReceiverID,
		ReceiverName: m.ReceiverName,
		Message:      m.Body,
		CreatedAt:    m.CreatedAt,
		IsRead:       m.IsRead,
	}
}

func (c ChatMessage) Domain() domain.Message {
	return domain.Message{
		ID:           c.ID,
		SenderID:     c.SenderID,
		SenderName:   c.SenderName,
		ReceiverID:   c.ReceiverID,
		ReceiverName: c.ReceiverName,
		Body:         c.Message,
		CreatedAt:    c.CreatedAt,
		IsRead:       c.IsRead,
	}
}

type MessageEvent struct {
	ChatMessage
}

type MessageSent struct {
	ChatMessage
}

type UserTyping struct {
	SenderID domain.UserID `json:"senderId"`
	Message  string        `json:"message"`
}

type UserStoppedTyping struct {
	SenderID domain.UserID `json:"senderId"`
}

type MessageRead struct {
	MessageID domain.MessageID `json:"messageId"`
	ReadBy    domain.UserID    `json:"readBy"`
}

type ConversationRead struct {
	ReadBy           domain.UserID `json:"readBy"`
	ConversationWith domain.UserID `json:"conversationWith"`
}

// ConversationMarkedAsRead: читателю приходит UserID (с кем диалог), автору: ReadBy.
type ConversationMarkedAsRead struct {
	UserID      domain.UserID `json:"userId,omitempty"`
	ReadBy      domain.UserID `json:"readBy,omitempty"`
	MarkedCount int64         `json:"markedCount"`
}

type UserOnline struct {
	UserID  domain.UserID `json:"userId"`
	Message string        `json:"message"`
}

type UserOffline struct {
	UserID  domain.UserID `json:"userId"`
	Message string        `json:"message"`
}

type OnlineUsers struct {
	UserIDs []domain.UserID `json:"userIds"`
}

type Error struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

const (
	CodeInvalidPayload = "invalid_payload"
	CodeNotJoined      = "not_joined"
	CodeAlreadyJoined  = "already_joined"
	CodeForbidden      = "forbidden"
	CodeNotFound       = "not_found"
	CodeInternal       = "internal"
)

func (MessageEvent) OutboundKind() OutboundKind             { return KindMessage }
func (MessageSent) OutboundKind() OutboundKind              { return KindMessageSent }
func (UserTyping) OutboundKind() OutboundKind               { return KindUserTyping }
func (UserStoppedTyping) OutboundKind() OutboundKind        { return KindUserStoppedTyping }
func (MessageRead) OutboundKind() OutboundKind              { return KindMessageRead }
func (ConversationRead) OutboundKind() OutboundKind         { return KindConversationRead }
func (ConversationMarkedAsRead) OutboundKind() OutboundKind { return KindConversationMarkedAsRead }
func (UserOnline) OutboundKind() OutboundKind               { return KindUserOnline }
func (UserOffline) OutboundKind() OutboundKind              { return KindUserOffline }
func (OnlineUsers) OutboundKind() OutboundKind              { return KindOnlineUsers }
func (Error) OutboundKind() OutboundKind                    { return KindError }

func OnlineText(id domain.UserID) string  { return id.String() + " is online" }
func OfflineText(id domain.UserID) string { return id.String() + " went offline" }
func TypingText(id domain.UserID) string  { return id.String() + " is typing..." }
