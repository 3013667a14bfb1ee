package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/cwrk-planet/messaging-service/internal/domain"

	"github.com/jackc/pgx/v5"
)

type MessageRepository struct {
	q querier
}

// NewMessageRepository принимает *pgxpool.Pool или pgx.Tx.
func NewMessageRepository(q querier) *MessageRepository {
	return &MessageRepository{q: q}
}

func (r *MessageRepository) Create(ctx context.Context, sender, receiver domain.UserID, body string) (*domain.Message, error) {
	row := r.q.QueryRow(ctx, QueryCreateMessage, sender, receiver, body)
	m, err := scanMessage(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrUserNotFound
		}
		return nil, mapPgError(err)
	}
	return m, nil
}

func (r *MessageRepository) GetByID(ctx context.Context, id domain.MessageID) (*domain.Message, error) {
	m, err := scanMessage(r.q.QueryRow(ctx, QueryGetMessageByID, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrMessageNotFound
		}
		return nil, mapPgError(err)
	}
	return m, nil
}

// ListBetween возвращает сообщения диалога {a, b}, новые первыми.
func (r *MessageRepository) ListBetween(ctx context.Context, a, b domain.UserID, offset, limit int) ([]domain.Message, error) {
	rows, err := r.q.Query(ctx, QueryListMessagesBetween, a, b, offset, limit)
	if err != nil {
		return nil, mapPgError(err)
	}
	defer rows.Close()

	out := make([]domain.Message, 0, limit)
	for rows.Next() {
		m, err := scanMessage(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list messages: %w", err)
	}
	return out, nil
}

func (r *MessageRepository) CountBetween(ctx context.Context, a, b domain.UserID) (int, error) {
	var n int64
	if err := r.q.QueryRow(ctx, QueryCountMessagesBetween, a, b).Scan(&n); err != nil {
		return 0, mapPgError(err)
	}
	return int(n), nil
}

// MarkRead переводит is_read false->true; false в ответе = уже было прочитано.
func (r *MessageRepository) MarkRead(ctx context.Context, id domain.MessageID, reader domain.UserID) (bool, error) {
	tag, err := r.q.Exec(ctx, QueryMarkMessageRead, id, reader)
	if err != nil {
		return false, mapPgError(err)
	}
	return tag.RowsAffected() > 0, nil
}

// MarkConversationRead помечает прочитанными все сообщения partner -> reader.
func (r *MessageRepository) MarkConversationRead(ctx context.Context, reader, partner domain.UserID) (int64, error) {
	tag, err := r.q.Exec(ctx, QueryMarkConversationRead, partner, reader)
	if err != nil {
		return 0, mapPgError(err)
	}
	return tag.RowsAffected(), nil
}

func (r *MessageRepository) UnreadCount(ctx context.Context, user domain.UserID) (int, error) {
	var n int64
	if err := r.q.QueryRow(ctx, QueryUnreadCount, user).Scan(&n); err != nil {
		return 0, mapPgError(err)
	}
	return int(n), nil
}

func (r *MessageRepository) Conversations(ctx context.Context, user domain.UserID) ([]domain.Conversation, error) {
	rows, err := r.q.Query(ctx, QueryListConversations, user)
	if err != nil {
		return nil, mapPgError(err)
	}
	defer rows.Close()

	var out []domain.Conversation
	for rows.Next() {
		var (
			c      domain.Conversation
			last   domain.Message
			unread int64
		)
		if err := rows.Scan(
			&c.Partner.ID, &c.Partner.Username, &c.Partner.Bio, &c.Partner.ProfilePic,
			&last.ID, &last.SenderID, &last.ReceiverID, &last.Body, &last.CreatedAt, &last.IsRead,
			&unread,
		); err != nil {
			return nil, err
		}
		c.LastMessage = &last
		c.LastMessageTime = last.CreatedAt
		c.UnreadCount = int(unread)
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list conversations: %w", err)
	}
	return out, nil
}

func scanMessage(row pgx.Row) (*domain.Message, error) {
	var m domain.Message
	if err := row.Scan(
		&m.ID, &m.SenderID, &m.ReceiverID, &m.SenderName, &m.ReceiverName,
		&m.Body, &m.CreatedAt, &m.IsRead,
	); err != nil {
		return nil, err
	}
	return &m, nil
}
