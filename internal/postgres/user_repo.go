package postgres

import (
	"context"
	"errors"

	"github.com/cwrk-planet/messaging-service/internal/domain"

	"github.com/jackc/pgx/v5"
)

// UserRepository читает users; таблицей владеет auth/profile, здесь только чтение.
type UserRepository struct {
	q querier
}

func NewUserRepository(q querier) *UserRepository {
	return &UserRepository{q: q}
}

func (r *UserRepository) GetByID(ctx context.Context, id domain.UserID) (*domain.User, error) {
	var u domain.User
	err := r.q.QueryRow(ctx, QueryGetUserByID, id).Scan(&u.ID, &u.Username, &u.Bio, &u.ProfilePic)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrUserNotFound
		}
		return nil, mapPgError(err)
	}
	return &u, nil
}
