// Package memstore: хранилище сообщений в памяти: dev-режим без Postgres и тесты.
package memstore

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/cwrk-planet/messaging-service/internal/domain"
)

type Store struct {
	mu     sync.RWMutex
	users  map[domain.UserID]domain.User
	msgs   map[domain.MessageID]*domain.Message
	nextID domain.MessageID
	now    func() time.Time
}

func New() *Store {
	return &Store{
		users: make(map[domain.UserID]domain.User),
		msgs:  make(map[domain.MessageID]*domain.Message),
		now:   time.Now,
	}
}

// WithClock подменяет часы (тесты).
func (s *Store) WithClock(now func() time.Time) *Store {
	s.now = now
	return s
}

func (s *Store) AddUser(u domain.User) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.users[u.ID] = u
}

func (s *Store) Messages() *MessageRepository { return &MessageRepository{s: s} }
func (s *Store) Users() *UserRepository       { return &UserRepository{s: s} }

type UserRepository struct{ s *Store }

func (r *UserRepository) GetByID(_ context.Context, id domain.UserID) (*domain.User, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	u, ok := r.s.users[id]
	if !ok {
		return nil, domain.ErrUserNotFound
	}
	return &u, nil
}

type MessageRepository struct{ s *Store }

func (r *MessageRepository) Create(_ context.Context, sender, receiver domain.UserID, body string) (*domain.Message, error) {
	s := r.s
	s.mu.Lock()
	defer s.mu.Unlock()

	from, ok := s.users[sender]
	if !ok {
		return nil, domain.ErrUserNotFound
	}
	to, ok := s.users[receiver]
	if !ok {
		return nil, domain.ErrUserNotFound
	}

	s.nextID++
	m := &domain.Message{
		ID:           s.nextID,
		SenderID:     sender,
		ReceiverID:   receiver,
		SenderName:   from.Username,
		ReceiverName: to.Username,
		Body:         body,
		CreatedAt:    s.now().UTC(),
	}
	s.msgs[m.ID] = m
	out := *m
	return &out, nil
}

func (r *MessageRepository) GetByID(_ context.Context, id domain.MessageID) (*domain.Message, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	m, ok := r.s.msgs[id]
	if !ok {
		return nil, domain.ErrMessageNotFound
	}
	out := *m
	return &out, nil
}

func (r *MessageRepository) ListBetween(_ context.Context, a, b domain.UserID, offset, limit int) ([]domain.Message, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	all := r.s.between(a, b)
	if offset >= len(all) {
		return []domain.Message{}, nil
	}
	end := offset + limit
	if end > len(all) {
		end = len(all)
	}
	return all[offset:end], nil
}

func (r *MessageRepository) CountBetween(_ context.Context, a, b domain.UserID) (int, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	return len(r.s.between(a, b)), nil
}

func (r *MessageRepository) MarkRead(_ context.Context, id domain.MessageID, reader domain.UserID) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	m, ok := r.s.msgs[id]
	if !ok || m.ReceiverID != reader || m.IsRead {
		return false, nil
	}
	m.IsRead = true
	return true, nil
}

func (r *MessageRepository) MarkConversationRead(_ context.Context, reader, partner domain.UserID) (int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	var n int64
	for _, m := range r.s.msgs {
		if m.SenderID == partner && m.ReceiverID == reader && !m.IsRead {
			m.IsRead = true
			n++
		}
	}
	return n, nil
}

func (r *MessageRepository) UnreadCount(_ context.Context, user domain.UserID) (int, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	n := 0
	for _, m := range r.s.msgs {
		if m.ReceiverID == user && !m.IsRead {
			n++
		}
	}
	return n, nil
}

func (r *MessageRepository) Conversations(_ context.Context, user domain.UserID) ([]domain.Conversation, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	byPartner := make(map[domain.UserID]*domain.Conversation)
	for _, m := range r.s.sorted() {
		if m.SenderID != user && m.ReceiverID != user {
			continue
		}
		partner := m.PartnerOf(user)
		c, ok := byPartner[partner]
		if !ok {
			last := m
			c = &domain.Conversation{
				Partner:         r.s.users[partner],
				LastMessage:     &last,
				LastMessageTime: m.CreatedAt,
			}
			byPartner[partner] = c
		}
		if m.SenderID == partner && !m.IsRead {
			c.UnreadCount++
		}
	}

	out := make([]domain.Conversation, 0, len(byPartner))
	for _, c := range byPartner {
		out = append(out, *c)
	}
	sort.Slice(out, func(i, j int) bool {
		return newer(*out[i].LastMessage, *out[j].LastMessage)
	})
	return out, nil
}

// sorted: все сообщения, новые первыми. Вызывать под mu.
func (s *Store) sorted() []domain.Message {
	out := make([]domain.Message, 0, len(s.msgs))
	for _, m := range s.msgs {
		out = append(out, *m)
	}
	sort.Slice(out, func(i, j int) bool { return newer(out[i], out[j]) })
	return out
}

func (s *Store) between(a, b domain.UserID) []domain.Message {
	var out []domain.Message
	for _, m := range s.sorted() {
		if m.Between(a, b) {
			out = append(out, m)
		}
	}
	return out
}

func newer(a, b domain.Message) bool {
	if !a.CreatedAt.Equal(b.CreatedAt) {
		return a.CreatedAt.After(b.CreatedAt)
	}
	return a.ID > b.ID
}
