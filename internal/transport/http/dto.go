package http

import (
	"time"

	"github.com/cwrk-planet/messaging-service/internal/domain"
)

type ErrorResponse struct {
	Message string `json:"message"`
}

type SendMessageRequest struct {
	ReceiverID domain.UserID `json:"receiverId"`
	Message    string        `json:"message"`
}

type UserRef struct {
	ID       domain.UserID `json:"id"`
	Username string        `json:"username"`
}

type MessageItem struct {
	ID         domain.MessageID `json:"id"`
	SenderID   domain.UserID    `json:"senderId"`
	ReceiverID domain.UserID    `json:"receiverId"`
	Message    string           `json:"message"`
	IsRead     bool             `json:"isRead"`
	CreatedAt  time.Time        `json:"createdAt"`
	Sender     UserRef          `json:"sender"`
	Receiver   UserRef          `json:"receiver"`
}

type PaginationMeta struct {
	Page       int  `json:"page"`
	Limit      int  `json:"limit"`
	TotalCount int  `json:"totalCount"`
	TotalPages int  `json:"totalPages"`
	HasMore    bool `json:"hasMore"`
}

type MessagesResponse struct {
	Data       []MessageItem  `json:"data"`
	Pagination PaginationMeta `json:"pagination"`
}

type SendMessageResponse struct {
	Message string      `json:"message"`
	Data    MessageItem `json:"data"`
}

type StatusResponse struct {
	Message string `json:"message"`
}

type ConversationReadResponse struct {
	Message      string `json:"message"`
	UpdatedCount int64  `json:"updatedCount"`
}

type UnreadCountResponse struct {
	UnreadCount int `json:"unreadCount"`
}

type PresenceResponse struct {
	UserID domain.UserID `json:"userId"`
	Online bool          `json:"online"`
}

type ConversationUser struct {
	ID         domain.UserID `json:"id"`
	Username   string        `json:"username"`
	Bio        *string       `json:"bio"`
	ProfilePic *string       `json:"profile_pic"`
}

type LastMessage struct {
	ID        domain.MessageID `json:"id"`
	Message   string           `json:"message"`
	SenderID  domain.UserID    `json:"senderId"`
	CreatedAt time.Time        `json:"createdAt"`
	IsRead    bool             `json:"isRead"`
}

type ConversationItem struct {
	User            ConversationUser `json:"user"`
	LastMessage     *LastMessage     `json:"lastMessage"`
	UnreadCount     int              `json:"unreadCount"`
	LastMessageTime time.Time        `json:"lastMessageTime"`
}

func toMessageItem(m domain.Message) MessageItem {
	return MessageItem{
		ID:         m.ID,
		SenderID:   m.SenderID,
		ReceiverID: m.ReceiverID,
		Message:    m.Body,
		IsRead:     m.IsRead,
		CreatedAt:  m.CreatedAt,
		Sender:     UserRef{ID: m.SenderID, Username: m.SenderName},
		Receiver:   UserRef{ID: m.ReceiverID, Username: m.ReceiverName},
	}
}

func toConversationItem(c domain.Conversation) ConversationItem {
	item := ConversationItem{
		User: ConversationUser{
			ID:         c.Partner.ID,
			Username:   c.Partner.Username,
			Bio:        c.Partner.Bio,
			ProfilePic: c.Partner.ProfilePic,
		},
		UnreadCount:     c.UnreadCount,
		LastMessageTime: c.LastMessageTime,
	}
	if c.LastMessage != nil {
		item.LastMessage = &LastMessage{
			ID:        c.LastMessage.ID,
			Message:   c.LastMessage.Body,
			SenderID:  c.LastMessage.SenderID,
			CreatedAt: c.LastMessage.CreatedAt,
			IsRead:    c.LastMessage.IsRead,
		}
	}
	return item
}
