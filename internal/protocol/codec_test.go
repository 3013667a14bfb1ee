package protocol

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/cwrk-planet/messaging-service/internal/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeInbound_WireNames(t *testing.T) {
	cases := []struct {
		raw  string
		want Inbound
	}{
		{`{"type":"join","payload":{"userId":3}}`, Join{UserID: 3}},
		{`{"type":"typing","payload":{"senderId":1,"receiverId":"2"}}`, Typing{SenderID: 1, ReceiverID: 2}},
		{`{"type":"stopTyping","payload":{"senderId":1,"receiverId":2}}`, StopTyping{SenderID: 1, ReceiverID: 2}},
		{`{"type":"markAsRead","payload":{"messageId":9,"senderId":1,"readBy":2}}`, MarkAsRead{MessageID: 9, SenderID: 1, ReadBy: 2}},
		{`{"type":"conversationReadByUser","payload":{"conversationWith":1,"readBy":2}}`, ConversationReadByUser{ConversationWith: 1, ReadBy: 2}},
	}
	for _, c := range cases {
		got, err := DecodeInbound([]byte(c.raw))
		require.NoError(t, err, c.raw)
		assert.Equal(t, c.want, got)
	}
}

func TestDecodeInbound_SendMessage(t *testing.T) {
	raw := `{"type":"sendMessage","payload":{"senderId":1,"senderName":"alice","receiverId":2,
		"message":"hello","messageId":"15","createdAt":"2024-05-01T10:00:00.000Z"}}`

	got, err := DecodeInbound([]byte(raw))
	require.NoError(t, err)

	sm, ok := got.(SendMessage)
	require.True(t, ok)
	assert.Equal(t, domain.MessageID(15), sm.MessageID)
	assert.Equal(t, "hello", sm.Message)
	assert.Equal(t, "alice", sm.SenderName)
	assert.True(t, sm.CreatedAt.Equal(time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)))
}

func TestDecodeInbound_Errors(t *testing.T) {
	_, err := DecodeInbound([]byte(`not json`))
	assert.ErrorIs(t, err, ErrMalformedFrame)

	_, err = DecodeInbound([]byte(`{"payload":{}}`))
	assert.ErrorIs(t, err, ErrMalformedFrame)

	_, err = DecodeInbound([]byte(`{"type":"message","payload":{}}`))
	assert.ErrorIs(t, err, ErrUnknownEvent, "outbound names are not accepted inbound")

	_, err = DecodeInbound([]byte(`{"type":"join"}`))
	assert.ErrorIs(t, err, ErrMalformedFrame)

	_, err = DecodeInbound([]byte(`{"type":"join","payload":{"userId":"x"}}`))
	assert.ErrorIs(t, err, ErrMalformedFrame)
}

func TestEncode_MessageShape(t *testing.T) {
	created := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	frame, err := Encode(MessageEvent{ChatMessage{
		ID: 5, SenderID: 1, SenderName: "alice", ReceiverID: 2, Message: "hi", CreatedAt: created,
	}})
	require.NoError(t, err)

	var f struct {
		Type    string         `json:"type"`
		Payload map[string]any `json:"payload"`
	}
	require.NoError(t, json.Unmarshal(frame, &f))
	assert.Equal(t, "message", f.Type)
	assert.ElementsMatch(t,
		[]string{"id", "senderId", "senderName", "receiverId", "message", "createdAt", "isRead"},
		keys(f.Payload))
	assert.Equal(t, false, f.Payload["isRead"])
}

func TestEncode_OutboundShapes(t *testing.T) {
	cases := []struct {
		ev     Outbound
		typ    string
		fields []string
	}{
		{UserTyping{SenderID: 1, Message: TypingText(1)}, "userTyping", []string{"senderId", "message"}},
		{UserStoppedTyping{SenderID: 1}, "userStoppedTyping", []string{"senderId"}},
		{MessageRead{MessageID: 1, ReadBy: 2}, "messageRead", []string{"messageId", "readBy"}},
		{ConversationRead{ReadBy: 2, ConversationWith: 1}, "conversationRead", []string{"readBy", "conversationWith"}},
		{UserOnline{UserID: 1, Message: OnlineText(1)}, "userOnline", []string{"userId", "message"}},
		{UserOffline{UserID: 1, Message: OfflineText(1)}, "userOffline", []string{"userId", "message"}},
	}
	for _, c := range cases {
		frame, err := Encode(c.ev)
		require.NoError(t, err)

		var f struct {
			Type    string         `json:"type"`
			Payload map[string]any `json:"payload"`
		}
		require.NoError(t, json.Unmarshal(frame, &f))
		assert.Equal(t, c.typ, f.Type)
		assert.ElementsMatch(t, c.fields, keys(f.Payload), c.typ)
	}
}

func TestOutboundRoundTrip_MessageSent(t *testing.T) {
	in := MessageSent{ChatMessage{ID: 8, SenderID: 1, ReceiverID: 2, Message: "yo", CreatedAt: time.Unix(100, 0).UTC()}}
	frame, err := Encode(in)
	require.NoError(t, err)

	out, err := DecodeOutbound(frame)
	require.NoError(t, err)
	assert.Equal(t, in, out)
}

func TestTexts(t *testing.T) {
	assert.Equal(t, "4 is online", OnlineText(4))
	assert.Equal(t, "4 went offline", OfflineText(4))
	assert.Equal(t, "4 is typing...", TypingText(4))
}

func keys(m map[string]any) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	return out
}
