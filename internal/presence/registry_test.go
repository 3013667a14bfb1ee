package presence

import (
	"fmt"
	"sync"
	"testing"

	"github.com/cwrk-planet/messaging-service/internal/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubConn struct{ id string }

func (c stubConn) ID() string              { return c.id }
func (c stubConn) Send(frame []byte) error { return nil }

func TestRegistry_FirstAndLastTransitions(t *testing.T) {
	r := NewRegistry()

	assert.True(t, r.Register(1, stubConn{"a"}))
	assert.False(t, r.Register(1, stubConn{"b"}))
	assert.False(t, r.Register(1, stubConn{"a"}), "re-register is idempotent")
	assert.Len(t, r.ConnectionsFor(1), 2)
	assert.True(t, r.IsOnline(1))

	uid, last, ok := r.Unregister("a")
	require.True(t, ok)
	assert.Equal(t, domain.UserID(1), uid)
	assert.False(t, last)

	uid, last, ok = r.Unregister("b")
	require.True(t, ok)
	assert.Equal(t, domain.UserID(1), uid)
	assert.True(t, last)

	assert.False(t, r.IsOnline(1))
	assert.Empty(t, r.ConnectionsFor(1))
	assert.Empty(t, r.OnlineUsers())

	assert.True(t, r.Register(1, stubConn{"c"}), "next connection after going offline is first again")
}

func TestRegistry_UnregisterUnknown(t *testing.T) {
	r := NewRegistry()
	_, last, ok := r.Unregister("nope")
	assert.False(t, ok)
	assert.False(t, last)
}

func TestRegistry_ConnectionsForUnknownUserIsEmpty(t *testing.T) {
	r := NewRegistry()
	conns := r.ConnectionsFor(42)
	assert.NotNil(t, conns)
	assert.Empty(t, conns)
}

func TestRegistry_AllAndLen(t *testing.T) {
	r := NewRegistry()
	r.Register(1, stubConn{"a"})
	r.Register(2, stubConn{"b"})
	r.Register(2, stubConn{"c"})

	assert.Len(t, r.All(), 3)
	assert.Equal(t, 3, r.Len())
	assert.ElementsMatch(t, []domain.UserID{1, 2}, r.OnlineUsers())
}

func TestRegistry_ConcurrentRegisterExactlyOneFirst(t *testing.T) {
	r := NewRegistry()

	var (
		wg     sync.WaitGroup
		mu     sync.Mutex
		firsts int
	)
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			if r.Register(7, stubConn{fmt.Sprintf("c%d", i)}) {
				mu.Lock()
				firsts++
				mu.Unlock()
			}
		}(i)
	}
	wg.Wait()
	assert.Equal(t, 1, firsts)

	lasts := 0
	for i := 0; i < 50; i++ {
		if _, last, _ := r.Unregister(fmt.Sprintf("c%d", i)); last {
			lasts++
		}
	}
	assert.Equal(t, 1, lasts)
}
