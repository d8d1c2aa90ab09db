package redisstore

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
	"github.com/rs/xid"

	"flashdeal/internal/domain"
	"flashdeal/internal/domain/entity"
)

type UserStore struct {
	client *redis.Client
}

func NewUserStore(client *redis.Client) *UserStore {
	return &UserStore{client: client}
}

func (s *UserStore) Create(ctx context.Context, user entity.User) (entity.User, error) {
	if user.ID == "" {
		user.ID = xid.New().String()
	}

	if err := s.client.Set(ctx, "user:"+user.ID, user.Name, 0).Err(); err != nil {
		return entity.User{}, fmt.Errorf("set user: %w", err)
	}

	return user, nil
}

func (s *UserStore) Get(ctx context.Context, userID string) (entity.User, error) {
	name, err := s.client.Get(ctx, "user:"+userID).Result()
	if errors.Is(err, redis.Nil) {
		return entity.User{}, domain.NewUserNotFoundError(userID)
	}
	if err != nil {
		return entity.User{}, fmt.Errorf("get user: %w", err)
	}

	return entity.User{ID: userID, Name: name}, nil
}
