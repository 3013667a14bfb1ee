package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/cwrk-planet/messaging-service/internal/domain"
	httpx "github.com/cwrk-planet/messaging-service/internal/transport/http"
)

// APIError: ответ сервера с кодом >= 400.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api: %d %s", e.Status, e.Message)
}

// RESTClient ходит в /messages с Bearer токеном.
type RESTClient struct {
	base  string
	token string
	http  *http.Client
}

func NewRESTClient(baseURL, token string, hc *http.Client) *RESTClient {
	if hc == nil {
		hc = &http.Client{Timeout: 15 * time.Second}
	}
	return &RESTClient{base: strings.TrimRight(baseURL, "/"), token: token, http: hc}
}

func (c *RESTClient) Messages(ctx context.Context, partner domain.UserID, page, limit int) ([]domain.Message, domain.Page, error) {
	q := url.Values{}
	q.Set("page", strconv.Itoa(page))
	q.Set("limit", strconv.Itoa(limit))

	var resp httpx.MessagesResponse
	if err := c.do(ctx, http.MethodGet, "/messages/"+partner.String()+"?"+q.Encode(), nil, &resp); err != nil {
		return nil, domain.Page{}, err
	}
	msgs := make([]domain.Message, 0, len(resp.Data))
	for _, it := range resp.Data {
		msgs = append(msgs, fromItem(it))
	}
	p := resp.Pagination
	return msgs, domain.Page{Page: p.Page, Limit: p.Limit, TotalCount: p.TotalCount, TotalPages: p.TotalPages, HasMore: p.HasMore}, nil
}

func (c *RESTClient) Send(ctx context.Context, receiver domain.UserID, body string) (*domain.Message, error) {
	var resp httpx.SendMessageResponse
	req := httpx.SendMessageRequest{ReceiverID: receiver, Message: body}
	if err := c.do(ctx, http.MethodPost, "/messages", req, &resp); err != nil {
		return nil, err
	}
	m := fromItem(resp.Data)
	return &m, nil
}

func (c *RESTClient) MarkRead(ctx context.Context, id domain.MessageID) error {
	return c.do(ctx, http.MethodPut, "/messages/"+id.String()+"/read", nil, nil)
}

func (c *RESTClient) MarkConversationRead(ctx context.Context, partner domain.UserID) (int64, error) {
	var resp httpx.ConversationReadResponse
	if err := c.do(ctx, http.MethodPut, "/messages/"+partner.String()+"/conversation/read", nil, &resp); err != nil {
		return 0, err
	}
	return resp.UpdatedCount, nil
}

func (c *RESTClient) Conversations(ctx context.Context) ([]domain.Conversation, error) {
	var resp []httpx.ConversationItem
	if err := c.do(ctx, http.MethodGet, "/messages/conversations/list", nil, &resp); err != nil {
		return nil, err
	}
	out := make([]domain.Conversation, 0, len(resp))
	for _, it := range resp {
		conv := domain.Conversation{
			Partner: domain.User{
				ID:         it.User.ID,
				Username:   it.User.Username,
				Bio:        it.User.Bio,
				ProfilePic: it.User.ProfilePic,
			},
			UnreadCount:     it.UnreadCount,
			LastMessageTime: it.LastMessageTime,
		}
		if lm := it.LastMessage; lm != nil {
			conv.LastMessage = &domain.Message{
				ID:        lm.ID,
				SenderID:  lm.SenderID,
				Body:      lm.Message,
				CreatedAt: lm.CreatedAt,
				IsRead:    lm.IsRead,
			}
		}
		out = append(out, conv)
	}
	return out, nil
}

func (c *RESTClient) do(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		body = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.base+path, body)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		var e httpx.ErrorResponse
		_ = json.NewDecoder(resp.Body).Decode(&e)
		return &APIError{Status: resp.StatusCode, Message: e.Message}
	}
	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s %s: %w", method, path, err)
	}
	return nil
}

func fromItem(it httpx.MessageItem) domain.Message {
	return domain.Message{
		ID:           it.ID,
		SenderID:     it.SenderID,
		ReceiverID:   it.ReceiverID,
		SenderName:   it.Sender.Username,
		ReceiverName: it.Receiver.Username,
		Body:         it.Message,
		CreatedAt:    it.CreatedAt,
		IsRead:       it.IsRead,
	}
}
