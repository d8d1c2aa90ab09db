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

type ProductStore struct {
	client *redis.Client
}

func NewProductStore(client *redis.Client) *ProductStore {
	return &ProductStore{client: client}
}

func (s *ProductStore) Create(ctx context.Context, product entity.Product) (entity.Product, error) {
	if product.ID == "" {
		product.ID = xid.New().String()
	}

	if err := s.client.Set(ctx, "product:"+product.ID, product.Name, 0).Err(); err != nil {
		return entity.Product{}, fmt.Errorf("set product: %w", err)
	}

	return product, nil
}

func (s *ProductStore) Get(ctx context.Context, productID string) (entity.Product, error) {
	name, err := s.client.Get(ctx, "product:"+productID).Result()
	if errors.Is(err, redis.Nil) {
		return entity.Product{}, domain.NewProductNotFoundError(productID)
	}
	if err != nil {
		return entity.Product{}, fmt.Errorf("get product: %w", err)
	}

	return entity.Product{ID: productID, Name: name}, nil
}
