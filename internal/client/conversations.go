package client

import (
	"sort"

	"github.com/cwrk-planet/messaging-service/internal/domain"

	"github.com/samber/lo"
)

// ConversationList: список диалогов, который патчится событиями без перезапроса.
type ConversationList struct {
	me    domain.UserID
	items []domain.Conversation
}

func NewConversationList(me domain.UserID) *ConversationList {
	return &ConversationList{me: me}
}

func (l *ConversationList) Set(convs []domain.Conversation) {
	l.items = append([]domain.Conversation(nil), convs...)
	l.sort()
}

func (l *ConversationList) Items() []domain.Conversation {
	out := make([]domain.Conversation, len(l.items))
	for i, c := range l.items {
		if c.LastMessage != nil {
			lm := *c.LastMessage
			c.LastMessage = &lm
		}
		out[i] = c
	}
	return out
}

func (l *ConversationList) Get(partner domain.UserID) (domain.Conversation, bool) {
	i := l.find(partner)
	if i < 0 {
		return domain.Conversation{}, false
	}
	return l.items[i], true
}

// ApplyMessage: новое сообщение (входящее или своё). open: партнёр открытого диалога.
func (l *ConversationList) ApplyMessage(m domain.Message, open domain.UserID) {
	if m.SenderID != l.me && m.ReceiverID != l.me {
		return
	}
	partner := m.PartnerOf(l.me)
	name := m.SenderName
	if m.SenderID == l.me {
		name = m.ReceiverName
	}
	i := l.find(partner)
	if i < 0 {
		l.items = append(l.items, domain.Conversation{Partner: domain.User{ID: partner}})
		i = len(l.items) - 1
	}

	c := &l.items[i]
	if c.Partner.Username == "" {
		c.Partner.Username = name
	}
	if c.LastMessage != nil && c.LastMessage.ID == m.ID {
		return
	}
	if c.LastMessage == nil || !m.CreatedAt.Before(c.LastMessageTime) {
		msg := m
		c.LastMessage = &msg
		c.LastMessageTime = m.CreatedAt
	}
	if m.ReceiverID == l.me && !m.IsRead && partner != open {
		c.UnreadCount++
	}
	l.sort()
}

// ClearUnread: диалог открыт и прочитан целиком.
func (l *ConversationList) ClearUnread(partner domain.UserID) {
	i := l.find(partner)
	if i < 0 {
		return
	}
	l.items[i].UnreadCount = 0
	if lm := l.items[i].LastMessage; lm != nil && lm.SenderID == partner {
		lm.IsRead = true
	}
}

// Decrement уменьшает счётчик непрочитанных, не ниже нуля.
func (l *ConversationList) Decrement(partner domain.UserID, n int64) {
	i := l.find(partner)
	if i < 0 || n <= 0 {
		return
	}
	c := &l.items[i]
	c.UnreadCount -= int(n)
	if c.UnreadCount < 0 {
		c.UnreadCount = 0
	}
	if c.UnreadCount == 0 && c.LastMessage != nil && c.LastMessage.SenderID == partner {
		c.LastMessage.IsRead = true
	}
}

// MessageRead: партнёр прочитал наше сообщение.
func (l *ConversationList) MessageRead(id domain.MessageID) {
	for i := range l.items {
		if lm := l.items[i].LastMessage; lm != nil && lm.ID == id {
			lm.IsRead = true
			return
		}
	}
}

// PartnerReadAll: партнёр прочитал весь диалог.
func (l *ConversationList) PartnerReadAll(partner domain.UserID) {
	i := l.find(partner)
	if i < 0 {
		return
	}
	if lm := l.items[i].LastMessage; lm != nil && lm.SenderID == l.me {
		lm.IsRead = true
	}
}

func (l *ConversationList) TotalUnread() int {
	return lo.SumBy(l.items, func(c domain.Conversation) int { return c.UnreadCount })
}

func (l *ConversationList) find(partner domain.UserID) int {
	_, i, _ := lo.FindIndexOf(l.items, func(c domain.Conversation) bool { return c.Partner.ID == partner })
	return i
}

func (l *ConversationList) sort() {
	sort.SliceStable(l.items, func(i, j int) bool {
		return l.items[i].LastMessageTime.After(l.items[j].LastMessageTime)
	})
}
