package http

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/cwrk-planet/messaging-service/internal/domain"
	httpmw "github.com/cwrk-planet/messaging-service/internal/transport/http/middleware"
	"github.com/cwrk-planet/messaging-service/pkg/httputil"

	"github.com/go-chi/chi/v5"
)

type MessageSvc interface {
	Send(ctx context.Context, sender, receiver domain.UserID, body string) (*domain.Message, error)
	History(ctx context.Context, viewer, partner domain.UserID, page, limit int) ([]domain.Message, domain.Page, error)
	MarkRead(ctx context.Context, viewer domain.UserID, id domain.MessageID) (*domain.Message, error)
	MarkConversationRead(ctx context.Context, viewer, partner domain.UserID) (int64, error)
	Conversations(ctx context.Context, viewer domain.UserID) ([]domain.Conversation, error)
	UnreadCount(ctx context.Context, viewer domain.UserID) (int, error)
}

type PresenceSvc interface {
	IsOnline(ctx context.Context, uid domain.UserID) bool
}

type Handler struct {
	messages MessageSvc
	presence PresenceSvc
}

func NewHandler(messages MessageSvc, presence PresenceSvc) *Handler {
	return &Handler{messages: messages, presence: presence}
}

// GET /messages/conversations/list
func (h *Handler) ListConversations(w http.ResponseWriter, r *http.Request) {
	viewer := httpmw.UserIDFromCtx(r.Context())

	convs, err := h.messages.Conversations(r.Context(), viewer)
	if err != nil {
		writeErr(w, r, "ListConversations", err)
		return
	}
	out := make([]ConversationItem, 0, len(convs))
	for _, c := range convs {
		out = append(out, toConversationItem(c))
	}
	httputil.JSON(w, http.StatusOK, out)
}

// GET /messages/{userId}?page=&limit=
func (h *Handler) GetMessages(w http.ResponseWriter, r *http.Request) {
	viewer := httpmw.UserIDFromCtx(r.Context())
	partner, err := domain.ParseUserID(chi.URLParam(r, "userId"))
	if err != nil {
		httputil.JSON(w, http.StatusBadRequest, ErrorResponse{Message: "Invalid user ID"})
		return
	}
	page := queryInt(r, "page")
	limit := queryInt(r, "limit")

	msgs, meta, err := h.messages.History(r.Context(), viewer, partner, page, limit)
	if err != nil {
		writeErr(w, r, "GetMessages", err)
		return
	}
	items := make([]MessageItem, 0, len(msgs))
	for _, m := range msgs {
		items = append(items, toMessageItem(m))
	}
	httputil.JSON(w, http.StatusOK, MessagesResponse{
		Data: items,
		Pagination: PaginationMeta{
			Page:       meta.Page,
			Limit:      meta.Limit,
			TotalCount: meta.TotalCount,
			TotalPages: meta.TotalPages,
			HasMore:    meta.HasMore,
		},
	})
}

// POST /messages
func (h *Handler) SendMessage(w http.ResponseWriter, r *http.Request) {
	var req SendMessageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		slog.Debug("handler.SendMessage.Decode:", slog.Any("err", err))
		httputil.JSON(w, http.StatusBadRequest, ErrorResponse{Message: "invalid json"})
		return
	}
	if !req.ReceiverID.Valid() || req.Message == "" {
		httputil.JSON(w, http.StatusBadRequest, ErrorResponse{Message: "Receiver ID and message are required"})
		return
	}

	msg, err := h.messages.Send(r.Context(), httpmw.UserIDFromCtx(r.Context()), req.ReceiverID, req.Message)
	if err != nil {
		writeErr(w, r, "SendMessage", err)
		return
	}
	httputil.JSON(w, http.StatusCreated, SendMessageResponse{
		Message: "Message sent successfully",
		Data:    toMessageItem(*msg),
	})
}

// PUT /messages/{messageId}/read
func (h *Handler) MarkAsRead(w http.ResponseWriter, r *http.Request) {
	id, err := domain.ParseMessageID(chi.URLParam(r, "messageId"))
	if err != nil {
		httputil.JSON(w, http.StatusBadRequest, ErrorResponse{Message: "Invalid message ID"})
		return
	}
	if _, err := h.messages.MarkRead(r.Context(), httpmw.UserIDFromCtx(r.Context()), id); err != nil {
		writeErr(w, r, "MarkAsRead", err)
		return
	}
	httputil.JSON(w, http.StatusOK, StatusResponse{Message: "Message marked as read"})
}

// PUT /messages/{userId}/conversation/read
func (h *Handler) MarkConversationAsRead(w http.ResponseWriter, r *http.Request) {
	partner, err := domain.ParseUserID(chi.URLParam(r, "userId"))
	if err != nil {
		httputil.JSON(w, http.StatusBadRequest, ErrorResponse{Message: "Invalid user ID"})
		return
	}
	n, err := h.messages.MarkConversationRead(r.Context(), httpmw.UserIDFromCtx(r.Context()), partner)
	if err != nil {
		writeErr(w, r, "MarkConversationAsRead", err)
		return
	}
	httputil.JSON(w, http.StatusOK, ConversationReadResponse{
		Message:      "Conversation marked as read",
		UpdatedCount: n,
	})
}

// GET /messages/unread/count
func (h *Handler) UnreadCount(w http.ResponseWriter, r *http.Request) {
	n, err := h.messages.UnreadCount(r.Context(), httpmw.UserIDFromCtx(r.Context()))
	if err != nil {
		writeErr(w, r, "UnreadCount", err)
		return
	}
	httputil.JSON(w, http.StatusOK, UnreadCountResponse{UnreadCount: n})
}

// GET /presence/{userId}
func (h *Handler) Presence(w http.ResponseWriter, r *http.Request) {
	uid, err := domain.ParseUserID(chi.URLParam(r, "userId"))
	if err != nil {
		httputil.JSON(w, http.StatusBadRequest, ErrorResponse{Message: "Invalid user ID"})
		return
	}
	online := h.presence != nil && h.presence.IsOnline(r.Context(), uid)
	httputil.JSON(w, http.StatusOK, PresenceResponse{UserID: uid, Online: online})
}

// нечисловые значения -> 0, дальше нормализует сервис
func queryInt(r *http.Request, key string) int {
	n, err := strconv.Atoi(r.URL.Query().Get(key))
	if err != nil {
		return 0
	}
	return n
}
