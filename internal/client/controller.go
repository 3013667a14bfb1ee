package client

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"

	"github.com/cwrk-planet/messaging-service/internal/domain"
	"github.com/cwrk-planet/messaging-service/internal/protocol"
	"github.com/cwrk-planet/messaging-service/pkg/logger"

	"github.com/samber/lo"
)

const PageSize = 10

type State int

const (
	StateIdle State = iota
	StateLoading
	StateLoaded
	StateLoadingMore
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateLoading:
		return "loading"
	case StateLoaded:
		return "loaded"
	case StateLoadingMore:
		return "loading_more"
	case StateFailed:
		return "failed"
	default:
		return "idle"
	}
}

var ErrNoConversation = errors.New("client: no conversation open")

type API interface {
	Messages(ctx context.Context, partner domain.UserID, page, limit int) ([]domain.Message, domain.Page, error)
	Send(ctx context.Context, receiver domain.UserID, body string) (*domain.Message, error)
	MarkRead(ctx context.Context, id domain.MessageID) error
	MarkConversationRead(ctx context.Context, partner domain.UserID) (int64, error)
	Conversations(ctx context.Context) ([]domain.Conversation, error)
}

type Emitter interface {
	Emit(ev protocol.Inbound) error
}

// Viewport: прокручиваемая область сообщений. Нужна, чтобы подгрузка старых сообщений не сдвигала экран.
type Viewport interface {
	ContentHeight() int
	ScrollBy(delta int)
}

type Options struct {
	Viewport Viewport
	Clock    Clock
	// OnChange вызывается после каждого изменения состояния (перерисовка UI).
	OnChange func()
	Logger   *slog.Logger
}

// View: снимок состояния для отрисовки.
type View struct {
	State         State
	Partner       domain.UserID
	Messages      []domain.Message
	HasMore       bool
	PartnerTyping bool
	Composer      string
	InlineError   string
	Err           error
}

type Controller struct {
	me       domain.UserID
	api      API
	emitter  Emitter
	viewport Viewport
	onChange func()
	log      *slog.Logger

	typing *TypingIndicator

	mu        sync.Mutex
	gen       uint64
	partner   domain.UserID
	state     State
	timeline  *Timeline
	page      int
	hasMore   bool
	composer  string
	inlineErr string
	err       error
	convs     *ConversationList
	online    map[domain.UserID]struct{}
}

func NewController(me domain.UserID, api API, emitter Emitter, opts Options) *Controller {
	log := opts.Logger
	if log == nil {
		log = logger.L()
	}
	c := &Controller{
		me:       me,
		api:      api,
		emitter:  emitter,
		viewport: opts.Viewport,
		onChange: opts.OnChange,
		log:      log.With("component", "client", "me", me),
		timeline: NewTimeline(),
		convs:    NewConversationList(me),
		online:   make(map[domain.UserID]struct{}),
	}
	c.typing = NewTypingIndicator(opts.Clock, TypingTimeout, func(bool) { c.changed() })
	return c
}

func (c *Controller) View() View {
	c.mu.Lock()
	defer c.mu.Unlock()
	return View{
		State:         c.state,
		Partner:       c.partner,
		Messages:      c.timeline.Items(),
		HasMore:       c.hasMore,
		PartnerTyping: c.typing.Active(),
		Composer:      c.composer,
		InlineError:   c.inlineErr,
		Err:           c.err,
	}
}

func (c *Controller) Conversations() []domain.Conversation {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.convs.Items()
}

func (c *Controller) IsOnline(uid domain.UserID) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.online[uid]
	return ok
}

// LoadConversations загружает список диалогов; дальше он живёт на событиях.
func (c *Controller) LoadConversations(ctx context.Context) error {
	convs, err := c.api.Conversations(ctx)
	if err != nil {
		return err
	}
	c.mu.Lock()
	c.convs.Set(convs)
	c.mu.Unlock()
	c.changed()
	return nil
}

// Open открывает диалог: первая страница, затем отметка о прочтении.
func (c *Controller) Open(ctx context.Context, partner domain.UserID) error {
	c.mu.Lock()
	c.gen++
	gen := c.gen
	c.partner = partner
	c.state = StateLoading
	c.timeline.Reset()
	c.page = 0
	c.hasMore = false
	c.err = nil
	c.inlineErr = ""
	c.mu.Unlock()
	c.typing.Stop()
	c.changed()

	msgs, meta, err := c.api.Messages(ctx, partner, 1, PageSize)

	c.mu.Lock()
	if gen != c.gen {
		// пока грузили, открыли другой диалог
		c.mu.Unlock()
		return nil
	}
	if err != nil {
		c.state = StateFailed
		c.err = err
		c.mu.Unlock()
		c.changed()
		return err
	}
	c.timeline.InsertAll(lo.Reverse(msgs))
	c.page = 1
	c.hasMore = meta.HasMore
	c.state = StateLoaded
	c.mu.Unlock()
	c.changed()

	c.markConversationRead(ctx, gen, partner)
	return nil
}

// Retry повторяет загрузку после ошибки.
func (c *Controller) Retry(ctx context.Context) error {
	c.mu.Lock()
	partner, state := c.partner, c.state
	c.mu.Unlock()
	if !partner.Valid() {
		return ErrNoConversation
	}
	if state != StateFailed {
		return nil
	}
	return c.Open(ctx, partner)
}

func (c *Controller) markConversationRead(ctx context.Context, gen uint64, partner domain.UserID) {
	if _, err := c.api.MarkConversationRead(ctx, partner); err != nil {
		c.log.Warn("mark conversation read failed", "partner", partner, "err", err)
		return
	}

	c.mu.Lock()
	if gen == c.gen {
		c.timeline.MarkAllFrom(partner)
	}
	c.convs.ClearUnread(partner)
	c.mu.Unlock()
	c.changed()

	c.emit(protocol.ConversationReadByUser{ConversationWith: partner, ReadBy: c.me})
}

// LoadMore подгружает следующую (более старую) страницу и сохраняет позицию прокрутки.
func (c *Controller) LoadMore(ctx context.Context) error {
	c.mu.Lock()
	if c.state != StateLoaded || !c.hasMore {
		c.mu.Unlock()
		return nil
	}
	c.state = StateLoadingMore
	gen, partner, next := c.gen, c.partner, c.page+1
	c.mu.Unlock()
	c.changed()

	msgs, meta, err := c.api.Messages(ctx, partner, next, PageSize)

	// меряем после ответа: сообщения, пришедшие во время запроса, уже в высоте
	heightBefore := 0
	if c.viewport != nil {
		heightBefore = c.viewport.ContentHeight()
	}

	c.mu.Lock()
	if gen != c.gen {
		c.mu.Unlock()
		return nil
	}
	c.state = StateLoaded
	if err != nil {
		c.mu.Unlock()
		c.log.Warn("load more failed", "partner", partner, "page", next, "err", err)
		c.changed()
		return err
	}
	added := c.timeline.InsertAll(lo.Reverse(msgs))
	if len(msgs) > 0 {
		c.page = next
		c.hasMore = meta.HasMore
	} else {
		c.hasMore = false
	}
	c.mu.Unlock()
	c.changed()

	if added > 0 && c.viewport != nil {
		c.viewport.ScrollBy(c.viewport.ContentHeight() - heightBefore)
	}
	return nil
}

func (c *Controller) SetComposer(text string) {
	c.mu.Lock()
	c.composer = text
	c.mu.Unlock()
}

// Send отправляет текст из поля ввода. Строку в ленту не добавляем: она придёт событием messageSent.
func (c *Controller) Send(ctx context.Context) error {
	c.mu.Lock()
	text := c.composer
	partner := c.partner
	if strings.TrimSpace(text) == "" {
		c.mu.Unlock()
		return nil
	}
	if !partner.Valid() {
		c.mu.Unlock()
		return ErrNoConversation
	}
	c.composer = ""
	c.inlineErr = ""
	c.mu.Unlock()
	c.changed()

	msg, err := c.api.Send(ctx, partner, text)
	if err != nil {
		c.mu.Lock()
		if c.composer == "" {
			c.composer = text
		}
		c.inlineErr = "Failed to send message"
		c.mu.Unlock()
		c.changed()
		return err
	}

	c.emit(protocol.SendMessage{
		SenderID:   c.me,
		ReceiverID: partner,
		Message:    msg.Body,
		MessageID:  msg.ID,
		CreatedAt:  msg.CreatedAt,
		SenderName: msg.SenderName,
	})
	c.emit(protocol.StopTyping{SenderID: c.me, ReceiverID: partner})
	return nil
}

// Typing: пользователь печатает в поле ввода.
func (c *Controller) Typing() {
	c.mu.Lock()
	partner := c.partner
	c.mu.Unlock()
	if !partner.Valid() {
		return
	}
	c.emit(protocol.Typing{SenderID: c.me, ReceiverID: partner})
}

// HandleEvent применяет событие шлюза к локальному состоянию.
func (c *Controller) HandleEvent(ctx context.Context, ev protocol.Outbound) {
	switch e := ev.(type) {
	case protocol.MessageEvent:
		c.onMessage(ctx, e.Domain())
	case protocol.MessageSent:
		m := e.Domain()
		c.mu.Lock()
		c.convs.ApplyMessage(m, c.partner)
		if c.partner.Valid() && m.ReceiverID == c.partner && c.acceptsLocked() {
			c.timeline.Insert(m)
		}
		c.mu.Unlock()
	case protocol.UserTyping:
		if c.isPartner(e.SenderID) {
			c.typing.Signal()
		}
		return
	case protocol.UserStoppedTyping:
		if c.isPartner(e.SenderID) {
			c.typing.Stop()
		}
		return
	case protocol.MessageRead:
		c.mu.Lock()
		c.timeline.MarkReadThrough(e.MessageID)
		c.convs.MessageRead(e.MessageID)
		c.mu.Unlock()
	case protocol.ConversationRead:
		c.onPartnerReadAll(e.ReadBy)
	case protocol.ConversationMarkedAsRead:
		switch {
		case e.UserID.Valid():
			c.mu.Lock()
			c.convs.Decrement(e.UserID, e.MarkedCount)
			c.mu.Unlock()
		case e.ReadBy.Valid():
			c.onPartnerReadAll(e.ReadBy)
		}
	case protocol.OnlineUsers:
		c.mu.Lock()
		c.online = lo.SliceToMap(e.UserIDs, func(id domain.UserID) (domain.UserID, struct{}) {
			return id, struct{}{}
		})
		c.mu.Unlock()
	case protocol.UserOnline:
		c.mu.Lock()
		c.online[e.UserID] = struct{}{}
		c.mu.Unlock()
	case protocol.UserOffline:
		c.mu.Lock()
		delete(c.online, e.UserID)
		c.mu.Unlock()
	case protocol.Error:
		c.log.Warn("gateway error", "code", e.Code, "message", e.Message)
		return
	default:
		return
	}
	c.changed()
}

func (c *Controller) onMessage(ctx context.Context, m domain.Message) {
	c.mu.Lock()
	partner := c.partner
	loading := c.state == StateLoading
	open := partner
	if loading {
		// счётчик ведём как для закрытого диалога, его обнулит markConversationRead после загрузки
		open = 0
	}
	c.convs.ApplyMessage(m, open)
	inserted := partner.Valid() && m.Between(c.me, partner) && c.acceptsLocked() && c.timeline.Insert(m)
	c.mu.Unlock()

	// во время загрузки прочтение отметит markConversationRead целиком
	if !inserted || loading || m.SenderID != partner || m.IsRead {
		return
	}

	// входящее в открытом диалоге: сразу прочитано
	if err := c.api.MarkRead(ctx, m.ID); err != nil {
		c.log.Warn("mark read failed", "message_id", m.ID, "err", err)
		return
	}
	c.mu.Lock()
	c.timeline.MarkReadThrough(m.ID)
	c.mu.Unlock()
	c.emit(protocol.MarkAsRead{MessageID: m.ID, SenderID: m.SenderID, ReadBy: c.me})
}

func (c *Controller) onPartnerReadAll(reader domain.UserID) {
	c.mu.Lock()
	if reader == c.partner {
		c.timeline.MarkAllFrom(c.me)
	}
	c.convs.PartnerReadAll(reader)
	c.mu.Unlock()
}

// acceptsLocked: лента открытого диалога принимает события. Во время первой загрузки тоже:
// InsertAll потом пропустит дубликаты по id.
func (c *Controller) acceptsLocked() bool {
	switch c.state {
	case StateLoading, StateLoaded, StateLoadingMore:
		return true
	}
	return false
}

func (c *Controller) isPartner(uid domain.UserID) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.partner.Valid() && uid == c.partner
}

func (c *Controller) emit(ev protocol.Inbound) {
	if c.emitter == nil {
		return
	}
	if err := c.emitter.Emit(ev); err != nil {
		c.log.Warn("emit failed", "type", ev.InboundKind(), "err", err)
	}
}

func (c *Controller) changed() {
	if c.onChange != nil {
		c.onChange()
	}
}
