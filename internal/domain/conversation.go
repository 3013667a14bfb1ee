package domain

import "time"

// Conversation: производная сущность: пара пользователей, в таблице не хранится.
type Conversation struct {
	Partner         User
	LastMessage     *Message
	UnreadCount     int
	LastMessageTime time.Time
}
