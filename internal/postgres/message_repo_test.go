package postgres

import (
	"context"
	"os"
	"testing"

	"github.com/cwrk-planet/messaging-service/internal/domain"
	"github.com/cwrk-planet/messaging-service/internal/pg"
	"github.com/cwrk-planet/messaging-service/migrations"

	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Интеграционные тесты: нужен TEST_POSTGRES_DSN, всё выполняется в транзакции и откатывается.
func withTx(t *testing.T) (context.Context, pgx.Tx) {
	t.Helper()
	dsn := os.Getenv("TEST_POSTGRES_DSN")
	if dsn == "" {
		t.Skip("TEST_POSTGRES_DSN not set")
	}
	ctx := context.Background()
	pool, err := pg.NewPool(ctx, pg.Config{DSN: dsn, MaxConns: 2})
	require.NoError(t, err)
	t.Cleanup(pool.Close)

	tx, err := pool.Begin(ctx)
	require.NoError(t, err)
	t.Cleanup(func() { _ = tx.Rollback(context.Background()) })

	require.NoError(t, pg.Migrate(ctx, tx, migrations.FS))
	return ctx, tx
}

func createUser(t *testing.T, ctx context.Context, tx pgx.Tx, name string) domain.UserID {
	t.Helper()
	var id int64
	require.NoError(t, tx.QueryRow(ctx, `INSERT INTO users (username) VALUES ($1) RETURNING id`, name).Scan(&id))
	return domain.UserID(id)
}

func TestMessageRepository_PaginationAndCount(t *testing.T) {
	ctx, tx := withTx(t)
	a := createUser(t, ctx, tx, "pg_alice")
	b := createUser(t, ctx, tx, "pg_bob")
	repo := NewMessageRepository(tx)

	var last *domain.Message
	for i := 0; i < 25; i++ {
		from, to := a, b
		if i%2 == 1 {
			from, to = b, a
		}
		m, err := repo.Create(ctx, from, to, "msg")
		require.NoError(t, err)
		last = m
	}

	total, err := repo.CountBetween(ctx, b, a)
	require.NoError(t, err)
	assert.Equal(t, 25, total)

	page := domain.NewPage(2, 10, total)
	got, err := repo.ListBetween(ctx, a, b, page.Offset(), page.Limit)
	require.NoError(t, err)
	assert.Len(t, got, 10)
	assert.Equal(t, 3, page.TotalPages)

	first, err := repo.ListBetween(ctx, a, b, 0, 1)
	require.NoError(t, err)
	require.Len(t, first, 1)
	assert.Equal(t, last.ID, first[0].ID, "newest first")
	assert.Equal(t, "pg_alice", first[0].SenderName)
}

func TestMessageRepository_MarkConversationReadIsIdempotent(t *testing.T) {
	ctx, tx := withTx(t)
	a := createUser(t, ctx, tx, "pg_carol")
	b := createUser(t, ctx, tx, "pg_dave")
	repo := NewMessageRepository(tx)

	for i := 0; i < 3; i++ {
		_, err := repo.Create(ctx, a, b, "hi")
		require.NoError(t, err)
	}

	n, err := repo.MarkConversationRead(ctx, b, a)
	require.NoError(t, err)
	assert.EqualValues(t, 3, n)

	n, err = repo.MarkConversationRead(ctx, b, a)
	require.NoError(t, err)
	assert.EqualValues(t, 0, n)

	unread, err := repo.UnreadCount(ctx, b)
	require.NoError(t, err)
	assert.Equal(t, 0, unread)
}

func TestMessageRepository_MarkReadAndLookup(t *testing.T) {
	ctx, tx := withTx(t)
	a := createUser(t, ctx, tx, "pg_erin")
	b := createUser(t, ctx, tx, "pg_frank")
	repo := NewMessageRepository(tx)

	m, err := repo.Create(ctx, a, b, "ping")
	require.NoError(t, err)

	changed, err := repo.MarkRead(ctx, m.ID, a)
	require.NoError(t, err)
	assert.False(t, changed, "sender cannot flip own message")

	changed, err = repo.MarkRead(ctx, m.ID, b)
	require.NoError(t, err)
	assert.True(t, changed)

	changed, err = repo.MarkRead(ctx, m.ID, b)
	require.NoError(t, err)
	assert.False(t, changed)

	got, err := repo.GetByID(ctx, m.ID)
	require.NoError(t, err)
	assert.True(t, got.IsRead)

	_, err = repo.GetByID(ctx, m.ID+1000)
	assert.ErrorIs(t, err, domain.ErrMessageNotFound)
}

func TestMessageRepository_CreateUnknownReceiver(t *testing.T) {
	ctx, tx := withTx(t)
	a := createUser(t, ctx, tx, "pg_gina")

	_, err := NewMessageRepository(tx).Create(ctx, a, a+100000, "lost")
	assert.ErrorIs(t, err, domain.ErrUserNotFound)
}

func TestMessageRepository_Conversations(t *testing.T) {
	ctx, tx := withTx(t)
	me := createUser(t, ctx, tx, "pg_me")
	p1 := createUser(t, ctx, tx, "pg_p1")
	p2 := createUser(t, ctx, tx, "pg_p2")
	repo := NewMessageRepository(tx)

	_, err := repo.Create(ctx, p1, me, "one")
	require.NoError(t, err)
	_, err = repo.Create(ctx, p2, me, "two")
	require.NoError(t, err)
	_, err = repo.Create(ctx, p2, me, "three")
	require.NoError(t, err)
	_, err = repo.Create(ctx, me, p1, "four")
	require.NoError(t, err)

	convs, err := repo.Conversations(ctx, me)
	require.NoError(t, err)
	require.Len(t, convs, 2)

	// created_at одинаковый внутри транзакции, порядок решает id
	assert.Equal(t, p1, convs[0].Partner.ID)
	assert.Equal(t, "four", convs[0].LastMessage.Body)
	assert.Equal(t, 1, convs[0].UnreadCount)
	assert.Equal(t, p2, convs[1].Partner.ID)
	assert.Equal(t, 2, convs[1].UnreadCount)

	u, err := NewUserRepository(tx).GetByID(ctx, p2)
	require.NoError(t, err)
	assert.Equal(t, "pg_p2", u.Username)
}
