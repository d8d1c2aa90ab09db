package memstore

import (
	"context"
	"sync"

	"github.com/rs/xid"

	"flashdeal/internal/domain"
	"flashdeal/internal/domain/entity"
)

type UserStore struct {
	mu    sync.RWMutex
	users map[string]entity.User
}

func NewUserStore() *UserStore {
	return &UserStore{
		users: make(map[string]entity.User),
	}
}

func (s *UserStore) Create(_ context.Context, user entity.User) (entity.User, error) {
	if user.ID == "" {
		user.ID = xid.New().String()
	}

	s.mu.Lock()
	s.users[user.ID] = user
	s.mu.Unlock()

	return user, nil
}

func (s *UserStore) Get(_ context.Context, userID string) (entity.User, error) {
	s.mu.RLock()
	user, ok := s.users[userID]
	s.mu.RUnlock()

	if !ok {
		return entity.User{}, domain.NewUserNotFoundError(userID)
	}

	return user, nil
}
