package client

import (
	"sort"

	"github.com/cwrk-planet/messaging-service/internal/domain"
)

// Timeline: сообщения открытого диалога по возрастанию (createdAt, id) с индексом id -> позиция.
type Timeline struct {
	items []domain.Message
	index map[domain.MessageID]int
}

func NewTimeline() *Timeline {
	return &Timeline{index: make(map[domain.MessageID]int)}
}

func before(a, b domain.Message) bool {
	if !a.CreatedAt.Equal(b.CreatedAt) {
		return a.CreatedAt.Before(b.CreatedAt)
	}
	return a.ID < b.ID
}

// Insert добавляет сообщение на своё место. Дубликат по id: false.
func (t *Timeline) Insert(m domain.Message) bool {
	if _, ok := t.index[m.ID]; ok {
		return false
	}
	pos := sort.Search(len(t.items), func(i int) bool { return before(m, t.items[i]) })
	t.items = append(t.items, domain.Message{})
	copy(t.items[pos+1:], t.items[pos:])
	t.items[pos] = m
	t.reindex(pos)
	return true
}

// InsertAll возвращает число реально добавленных.
func (t *Timeline) InsertAll(ms []domain.Message) int {
	n := 0
	for _, m := range ms {
		if t.Insert(m) {
			n++
		}
	}
	return n
}

func (t *Timeline) reindex(from int) {
	for i := from; i < len(t.items); i++ {
		t.index[t.items[i].ID] = i
	}
}

func (t *Timeline) Get(id domain.MessageID) (domain.Message, bool) {
	i, ok := t.index[id]
	if !ok {
		return domain.Message{}, false
	}
	return t.items[i], true
}

func (t *Timeline) Len() int { return len(t.items) }

func (t *Timeline) Items() []domain.Message {
	out := make([]domain.Message, len(t.items))
	copy(out, t.items)
	return out
}

func (t *Timeline) Reset() {
	t.items = nil
	t.index = make(map[domain.MessageID]int)
}

// MarkReadThrough помечает прочитанным id и все более ранние непрочитанные того же автора.
// Неизвестный id: ничего не меняем.
func (t *Timeline) MarkReadThrough(id domain.MessageID) int {
	pos, ok := t.index[id]
	if !ok {
		return 0
	}
	sender := t.items[pos].SenderID
	n := 0
	for i := 0; i <= pos; i++ {
		if t.items[i].SenderID == sender && !t.items[i].IsRead {
			t.items[i].IsRead = true
			n++
		}
	}
	return n
}

// MarkAllFrom помечает прочитанными все сообщения автора.
func (t *Timeline) MarkAllFrom(sender domain.UserID) int {
	n := 0
	for i := range t.items {
		if t.items[i].SenderID == sender && !t.items[i].IsRead {
			t.items[i].IsRead = true
			n++
		}
	}
	return n
}
