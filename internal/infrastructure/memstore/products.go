package memstore

import (
	"context"
	"sync"

	"github.com/rs/xid"

	"flashdeal/internal/domain"
	"flashdeal/internal/domain/entity"
)

type ProductStore struct {
	mu       sync.RWMutex
	products map[string]entity.Product
}

func NewProductStore() *ProductStore {
	return &ProductStore{
		products: make(map[string]entity.Product),
	}
}

func (s *ProductStore) Create(_ context.Context, product entity.Product) (entity.Product, error) {
	if product.ID == "" {
		product.ID = xid.New().String()
	}

	s.mu.Lock()
	s.products[product.ID] = product
	s.mu.Unlock()

	return product, nil
}

func (s *ProductStore) Get(_ context.Context, productID string) (entity.Product, error) {
	s.mu.RLock()
	product, ok := s.products[productID]
	s.mu.RUnlock()

	if !ok {
		return entity.Product{}, domain.NewProductNotFoundError(productID)
	}

	return product, nil
}
