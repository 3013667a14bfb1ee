package presence

import (
	"sync"

	"github.com/cwrk-planet/messaging-service/internal/domain"

	"github.com/samber/lo"
)

// Conn: живое соединение, которое реестр умеет адресовать.
type Conn interface {
	ID() string
	Send(frame []byte) error
}

// Registry: userID -> множество соединений. Единственное разделяемое состояние шлюза.
type Registry struct {
	mu     sync.RWMutex
	users  map[domain.UserID]map[string]Conn
	owners map[string]domain.UserID // connID -> userID
}

func NewRegistry() *Registry {
	return &Registry{
		users:  make(map[domain.UserID]map[string]Conn),
		owners: make(map[string]domain.UserID),
	}
}

// Register идемпотентно добавляет соединение. first=true, если это первое соединение пользователя.
func (r *Registry) Register(userID domain.UserID, c Conn) (first bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if owner, ok := r.owners[c.ID()]; ok && owner == userID {
		return false
	}

	set, ok := r.users[userID]
	if !ok {
		set = make(map[string]Conn)
		r.users[userID] = set
	}
	set[c.ID()] = c
	r.owners[c.ID()] = userID
	return len(set) == 1
}

// Unregister ищет владельца по соединению: закрывающийся сокет своего пользователя не знает.
// last=true, если множество опустело и запись удалена.
func (r *Registry) Unregister(connID string) (userID domain.UserID, last bool, ok bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	userID, ok = r.owners[connID]
	if !ok {
		return 0, false, false
	}
	delete(r.owners, connID)

	set := r.users[userID]
	delete(set, connID)
	if len(set) == 0 {
		delete(r.users, userID)
		return userID, true, true
	}
	return userID, false, true
}

// ConnectionsFor возвращает снимок соединений; пустой срез = offline.
func (r *Registry) ConnectionsFor(userID domain.UserID) []Conn {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return lo.Values(r.users[userID])
}

func (r *Registry) IsOnline(userID domain.UserID) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.users[userID]) > 0
}

func (r *Registry) OnlineUsers() []domain.UserID {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return lo.Keys(r.users)
}

// All: все соединения процесса, для широковещательных событий.
func (r *Registry) All() []Conn {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Conn, 0, len(r.owners))
	for _, set := range r.users {
		out = append(out, lo.Values(set)...)
	}
	return out
}

// Len: число соединений.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.owners)
}
