package persistence

import (
	"time"

	"flashdeal/internal/domain/entity"
)

type dealSchema struct {
	ID                 string    `db:"id"`
	ProductID          string    `db:"product_id"`
	StartTime          time.Time `db:"start_time"`
	EndTime            time.Time `db:"end_time"`
	DiscountRate       float64   `db:"discount_rate"`
	InventoryRemaining int64     `db:"inventory_remaining"`
	Valid              bool      `db:"valid"`
}

func (s dealSchema) toDomain(redeemers []string) entity.Deal {
	deal := entity.Deal{
		ID:                 s.ID,
		ProductID:          s.ProductID,
		StartTime:          s.StartTime,
		EndTime:            s.EndTime,
		DiscountRate:       s.DiscountRate,
		InventoryRemaining: s.InventoryRemaining,
		Valid:              s.Valid,
		Redeemers:          make(map[string]struct{}, len(redeemers)),
	}

	for _, userID := range redeemers {
		deal.Redeemers[userID] = struct{}{}
	}

	return deal
}

type userSchema struct {
	ID   string `db:"id"`
	Name string `db:"name"`
}

func (s userSchema) toDomain() entity.User {
	return entity.User{ID: s.ID, Name: s.Name}
}

type productSchema struct {
	ID   string `db:"id"`
	Name string `db:"name"`
}

func (s productSchema) toDomain() entity.Product {
	return entity.Product{ID: s.ID, Name: s.Name}
}
