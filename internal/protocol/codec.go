package protocol

import (
	"encoding/json"
	"errors"
	"fmt"
)

var (
	ErrMalformedFrame = errors.New("malformed frame")
	ErrUnknownEvent   = errors.New("unknown event")
)

// Frame: конверт на проводе: {"type": "...", "payload": {...}}.
type Frame struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

var inboundFactories = map[InboundKind]func() Inbound{
	KindJoin:                   func() Inbound { return &Join{} },
	KindSendMessage:            func() Inbound { return &SendMessage{} },
	KindTyping:                 func() Inbound { return &Typing{} },
	KindStopTyping:             func() Inbound { return &StopTyping{} },
	KindMarkAsRead:             func() Inbound { return &MarkAsRead{} },
	KindConversationReadByUser: func() Inbound { return &ConversationReadByUser{} },
}

var outboundFactories = map[OutboundKind]func() Outbound{
	KindMessage:                  func() Outbound { return &MessageEvent{} },
	KindMessageSent:              func() Outbound { return &MessageSent{} },
	KindUserTyping:               func() Outbound { return &UserTyping{} },
	KindUserStoppedTyping:        func() Outbound { return &UserStoppedTyping{} },
	KindMessageRead:              func() Outbound { return &MessageRead{} },
	KindConversationRead:         func() Outbound { return &ConversationRead{} },
	KindConversationMarkedAsRead: func() Outbound { return &ConversationMarkedAsRead{} },
	KindUserOnline:               func() Outbound { return &UserOnline{} },
	KindUserOffline:              func() Outbound { return &UserOffline{} },
	KindOnlineUsers:              func() Outbound { return &OnlineUsers{} },
	KindError:                    func() Outbound { return &Error{} },
}

// Encode сериализует исходящее событие в кадр.
func Encode(ev Outbound) ([]byte, error) {
	return encode(string(ev.OutboundKind()), ev)
}

// EncodeInbound нужен клиенту.
func EncodeInbound(ev Inbound) ([]byte, error) {
	return encode(string(ev.InboundKind()), ev)
}

func encode(kind string, v any) ([]byte, error) {
	payload, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encode %s: %w", kind, err)
	}
	return json.Marshal(Frame{Type: kind, Payload: payload})
}

// DecodeInbound возвращает значение (не указатель) конкретного типа события.
func DecodeInbound(data []byte) (Inbound, error) {
	kind, payload, err := splitFrame(data)
	if err != nil {
		return nil, err
	}
	mk, ok := inboundFactories[InboundKind(kind)]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownEvent, kind)
	}
	ev := mk()
	if err := unmarshalPayload(payload, ev); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrMalformedFrame, kind, err)
	}
	return derefInbound(ev), nil
}

func DecodeOutbound(data []byte) (Outbound, error) {
	kind, payload, err := splitFrame(data)
	if err != nil {
		return nil, err
	}
	mk, ok := outboundFactories[OutboundKind(kind)]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownEvent, kind)
	}
	ev := mk()
	if err := unmarshalPayload(payload, ev); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrMalformedFrame, kind, err)
	}
	return derefOutbound(ev), nil
}

func splitFrame(data []byte) (string, json.RawMessage, error) {
	var f Frame
	if err := json.Unmarshal(data, &f); err != nil {
		return "", nil, fmt.Errorf("%w: %v", ErrMalformedFrame, err)
	}
	if f.Type == "" {
		return "", nil, fmt.Errorf("%w: missing type", ErrMalformedFrame)
	}
	return f.Type, f.Payload, nil
}

func unmarshalPayload(payload json.RawMessage, dst any) error {
	if len(payload) == 0 {
		return errors.New("missing payload")
	}
	return json.Unmarshal(payload, dst)
}

func derefInbound(ev Inbound) Inbound {
	switch v := ev.(type) {
	case *Join:
		return *v
	case *SendMessage:
		return *v
	case *Typing:
		return *v
	case *StopTyping:
		return *v
	case *MarkAsRead:
		return *v
	case *ConversationReadByUser:
		return *v
	}
	return ev
}

func derefOutbound(ev Outbound) Outbound {
	switch v := ev.(type) {
	case *MessageEvent:
		return *v
	case *MessageSent:
		return *v
	case *UserTyping:
		return *v
	case *UserStoppedTyping:
		return *v
	case *MessageRead:
		return *v
	case *ConversationRead:
		return *v
	case *ConversationMarkedAsRead:
		return *v
	case *UserOnline:
		return *v
	case *UserOffline:
		return *v
	case *OnlineUsers:
		return *v
	case *Error:
		return *v
	}
	return ev
}
