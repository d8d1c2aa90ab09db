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

type ProductRepository struct {
	db *sqlx.DB
}

func NewProductRepository(db *sqlx.DB) *ProductRepository {
	return &ProductRepository{db: db}
}

func (r *ProductRepository) Create(ctx context.Context, product entity.Product) (entity.Product, error) {
	if product.ID == "" {
		product.ID = xid.New().String()
	}

	query := `INSERT INTO products (id, name) VALUES ($1, $2)`

	if _, err := r.db.ExecContext(ctx, query, product.ID, product.Name); err != nil {
		return entity.Product{}, fmt.Errorf("insert product: %w", err)
	}

	return product, nil
}

func (r *ProductRepository) Get(ctx context.Context, productID string) (entity.Product, error) {
	query := `SELECT id, name FROM products WHERE id = $1`

	var schema productSchema
	if err := r.db.GetContext(ctx, &schema, query, productID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return entity.Product{}, domain.NewProductNotFoundError(productID)
		}
		return entity.Product{}, fmt.Errorf("get product: %w", err)
	}

	return schema.toDomain(), nil
}
