package persistence

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/rs/xid"

	"flashdeal/internal/domain"
	"flashdeal/internal/domain/entity"
)

type UserRepository struct {
	db *sqlx.DB
}

func NewUserRepository(db *sqlx.DB) *UserRepository {
	return &UserRepository{db: db}
}

func (r *UserRepository) Create(ctx context.Context, user entity.User) (entity.User, error) {
	if user.ID == "" {
		user.ID = xid.New().String()
	}

	query := `INSERT INTO users (id, name) VALUES ($1, $2)`

	if _, err := r.db.ExecContext(ctx, query, user.ID, user.Name); err != nil {
		return entity.User{}, fmt.Errorf("insert user: %w", err)
	}

	return user, nil
}

func (r *UserRepository) Get(ctx context.Context, userID string) (entity.User, error) {
	query := `SELECT id, name FROM users WHERE id = $1`

	var schema userSchema
	if err := r.db.GetContext(ctx, &schema, query, userID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return entity.User{}, domain.NewUserNotFoundError(userID)
		}
		return entity.User{}, fmt.Errorf("get user: %w", err)
	}

	return schema.toDomain(), nil
}
