package domain

import (
	"fmt"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"
)

// MaxMessageLength в рунах.
const MaxMessageLength = 4000

type MessageID int64

func (id MessageID) String() string { return strconv.FormatInt(int64(id), 10) }

func (id *MessageID) UnmarshalJSON(b []byte) error {
	v, err := parseID(b)
	if err != nil {
		return fmt.Errorf("message id: %w", err)
	}
	*id = MessageID(v)
	return nil
}

func ParseMessageID(s string) (MessageID, error) {
	v, err := strconv.ParseInt(s, 10, 64)
	if err != nil || v <= 0 {
		return 0, ErrInvalidInput
	}
	return MessageID(v), nil
}

type Message struct {
	ID           MessageID `db:"id"`
	SenderID     UserID    `db:"sender_id"`
	ReceiverID   UserID    `db:"receiver_id"`
	SenderName   string    `db:"sender_name"`
	ReceiverName string    `db:"receiver_name"`
	Body         string    `db:"body"`
	CreatedAt    time.Time `db:"created_at"`
	IsRead       bool      `db:"is_read"`
}

// Between: сообщение принадлежит диалогу {a, b} в любом направлении.
func (m Message) Between(a, b UserID) bool {
	return (m.SenderID == a && m.ReceiverID == b) || (m.SenderID == b && m.ReceiverID == a)
}

// PartnerOf возвращает собеседника для viewer.
func (m Message) PartnerOf(viewer UserID) UserID {
	if m.SenderID == viewer {
		return m.ReceiverID
	}
	return m.SenderID
}

// NormalizeBody обрезает пробелы и проверяет длину.
func NormalizeBody(body string) (string, error) {
	body = strings.TrimSpace(body)
	if body == "" {
		return "", ErrEmptyMessage
	}
	if utf8.RuneCountInString(body) > MaxMessageLength {
		return "", ErrMessageTooLong
	}
	return body, nil
}
