package client

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/cwrk-planet/messaging-service/internal/domain"
	"github.com/cwrk-planet/messaging-service/internal/protocol"
)

type fakeTimer struct {
	at      time.Duration
	f       func()
	stopped bool
	fired   bool
}

type fakeClock struct {
	mu     sync.Mutex
	now    time.Duration
	timers []*fakeTimer
}

func (c *fakeClock) AfterFunc(d time.Duration, f func()) Timer {
	c.mu.Lock()
	defer c.mu.Unlock()
	t := &fakeTimer{at: c.now + d, f: f}
	c.timers = append(c.timers, t)
	return &fakeTimerHandle{c: c, t: t}
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now += d
	var due []*fakeTimer
	for _, t := range c.timers {
		if !t.stopped && !t.fired && t.at <= c.now {
			t.fired = true
			due = append(due, t)
		}
	}
	c.mu.Unlock()
	for _, t := range due {
		t.f()
	}
}

type fakeTimerHandle struct {
	c *fakeClock
	t *fakeTimer
}

func (h *fakeTimerHandle) Stop() bool {
	h.c.mu.Lock()
	defer h.c.mu.Unlock()
	active := !h.t.stopped && !h.t.fired
	h.t.stopped = true
	return active
}

type fakeEmitter struct {
	mu     sync.Mutex
	events []protocol.Inbound
}

func (e *fakeEmitter) Emit(ev protocol.Inbound) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.events = append(e.events, ev)
	return nil
}

func (e *fakeEmitter) kinds() []protocol.InboundKind {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]protocol.InboundKind, 0, len(e.events))
	for _, ev := range e.events {
		out = append(out, ev.InboundKind())
	}
	return out
}

func (e *fakeEmitter) reset() {
	e.mu.Lock()
	e.events = nil
	e.mu.Unlock()
}

type fakeViewport struct {
	rowHeight int
	rows      func() int
	scrolled  int
}

func (v *fakeViewport) ContentHeight() int { return v.rows() * v.rowHeight }
func (v *fakeViewport) ScrollBy(d int)     { v.scrolled += d }

var errBoom = errors.New("boom")

// fakeAPI хранит диалог me<->partner, новые первыми.
type fakeAPI struct {
	mu        sync.Mutex
	me        domain.UserID
	history   []domain.Message // newest first
	failPages map[int]error
	sendErr   error
	nextID    domain.MessageID
	marked    []domain.MessageID
	convReads []domain.UserID
	convs     []domain.Conversation

	// beforeMessages срабатывает в начале Messages, пока запрос "в полёте".
	beforeMessages func(page int)
}

func newFakeAPI(me domain.UserID) *fakeAPI {
	return &fakeAPI{me: me, failPages: map[int]error{}, nextID: 1000}
}

// seed: n сообщений, чередуя авторов, id 1..n, старые раньше.
func (a *fakeAPI) seed(partner domain.UserID, n int, base time.Time) {
	for i := 1; i <= n; i++ {
		from, to := partner, a.me
		if i%2 == 0 {
			from, to = a.me, partner
		}
		m := domain.Message{ID: domain.MessageID(i), SenderID: from, ReceiverID: to, Body: "m", CreatedAt: base.Add(time.Duration(i) * time.Minute)}
		a.history = append([]domain.Message{m}, a.history...)
	}
}

func (a *fakeAPI) Messages(_ context.Context, _ domain.UserID, page, limit int) ([]domain.Message, domain.Page, error) {
	if a.beforeMessages != nil {
		a.beforeMessages(page)
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	if err := a.failPages[page]; err != nil {
		return nil, domain.Page{}, err
	}
	meta := domain.NewPage(page, limit, len(a.history))
	from := meta.Offset()
	if from > len(a.history) {
		from = len(a.history)
	}
	to := from + limit
	if to > len(a.history) {
		to = len(a.history)
	}
	return append([]domain.Message(nil), a.history[from:to]...), meta, nil
}

func (a *fakeAPI) Send(_ context.Context, receiver domain.UserID, body string) (*domain.Message, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.sendErr != nil {
		return nil, a.sendErr
	}
	a.nextID++
	return &domain.Message{ID: a.nextID, SenderID: a.me, ReceiverID: receiver, Body: body, CreatedAt: time.Now()}, nil
}

func (a *fakeAPI) MarkRead(_ context.Context, id domain.MessageID) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.marked = append(a.marked, id)
	return nil
}

func (a *fakeAPI) MarkConversationRead(_ context.Context, partner domain.UserID) (int64, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.convReads = append(a.convReads, partner)
	return 1, nil
}

func (a *fakeAPI) Conversations(context.Context) ([]domain.Conversation, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.convs, nil
}
