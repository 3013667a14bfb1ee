package memstore

import (
	"context"
	"testing"
	"time"

	"github.com/cwrk-planet/messaging-service/internal/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seeded() *Store {
	s := New().WithClock(func() time.Time { return time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC) })
	s.AddUser(domain.User{ID: 1, Username: "alice"})
	s.AddUser(domain.User{ID: 2, Username: "bob"})
	s.AddUser(domain.User{ID: 3, Username: "carol"})
	return s
}

func TestStore_ListBetweenNewestFirst(t *testing.T) {
	ctx := context.Background()
	repo := seeded().Messages()

	for i := 0; i < 5; i++ {
		_, err := repo.Create(ctx, 1, 2, "m")
		require.NoError(t, err)
	}
	_, err := repo.Create(ctx, 1, 3, "other")
	require.NoError(t, err)

	got, err := repo.ListBetween(ctx, 2, 1, 1, 2)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, domain.MessageID(4), got[0].ID)
	assert.Equal(t, domain.MessageID(3), got[1].ID)
	assert.Equal(t, "alice", got[0].SenderName)

	n, err := repo.CountBetween(ctx, 1, 2)
	require.NoError(t, err)
	assert.Equal(t, 5, n)

	empty, err := repo.ListBetween(ctx, 1, 2, 50, 10)
	require.NoError(t, err)
	assert.Empty(t, empty)
}

func TestStore_UnknownUser(t *testing.T) {
	_, err := seeded().Messages().Create(context.Background(), 1, 99, "x")
	assert.ErrorIs(t, err, domain.ErrUserNotFound)
}

func TestStore_ReadFlagsAreMonotonic(t *testing.T) {
	ctx := context.Background()
	repo := seeded().Messages()

	m, err := repo.Create(ctx, 1, 2, "x")
	require.NoError(t, err)

	changed, err := repo.MarkRead(ctx, m.ID, 1)
	require.NoError(t, err)
	assert.False(t, changed)

	changed, err = repo.MarkRead(ctx, m.ID, 2)
	require.NoError(t, err)
	assert.True(t, changed)

	n, err := repo.MarkConversationRead(ctx, 2, 1)
	require.NoError(t, err)
	assert.Zero(t, n)

	got, err := repo.GetByID(ctx, m.ID)
	require.NoError(t, err)
	assert.True(t, got.IsRead)
}

func TestStore_Conversations(t *testing.T) {
	ctx := context.Background()
	repo := seeded().Messages()

	_, _ = repo.Create(ctx, 2, 1, "from bob")
	_, _ = repo.Create(ctx, 3, 1, "from carol")
	_, _ = repo.Create(ctx, 3, 1, "again carol")
	_, _ = repo.Create(ctx, 1, 2, "to bob")

	convs, err := repo.Conversations(ctx, 1)
	require.NoError(t, err)
	require.Len(t, convs, 2)

	assert.Equal(t, "bob", convs[0].Partner.Username)
	assert.Equal(t, "to bob", convs[0].LastMessage.Body)
	assert.Equal(t, 1, convs[0].UnreadCount)
	assert.Equal(t, "carol", convs[1].Partner.Username)
	assert.Equal(t, 2, convs[1].UnreadCount)

	unread, err := repo.UnreadCount(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, 3, unread)
}
